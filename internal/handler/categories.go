package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/bartab-pos/api/internal/database"
	"github.com/bartab-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CategoryStore defines the read methods needed by category handlers;
// mutations go through the catalog service. Satisfied by *database.Queries.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]database.MenuCategory, error)
	GetCategory(ctx context.Context, id uuid.UUID) (database.MenuCategory, error)
	GetCategoryByHandle(ctx context.Context, handle string) (database.MenuCategory, error)
}

// CategoryHandler handles menu category endpoints.
type CategoryHandler struct {
	store   CategoryStore
	catalog *service.CatalogService
}

func NewCategoryHandler(store CategoryStore, catalog *service.CatalogService) *CategoryHandler {
	return &CategoryHandler{store: store, catalog: catalog}
}

// RegisterRoutes registers category endpoints on the given Chi router.
func (h *CategoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/handle/{handle}", h.GetByHandle)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/image", h.UploadImage)
}

// --- Request / Response types ---

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type categoryResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Handle      string    `json:"handle"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *CategoryHandler) toCategoryResponse(ctx context.Context, c database.MenuCategory) categoryResponse {
	resp := categoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: textPtr(c.Description),
		Handle:      c.Handle,
		CreatedAt:   c.CreatedAt,
	}
	url, err := h.catalog.ImageURL(ctx, c.ImageKey)
	if err != nil {
		log.Printf("ERROR: presign category image: %v", err)
	} else {
		resp.ImageURL = url
	}
	return resp
}

// --- Handlers ---

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		log.Printf("ERROR: list categories: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = h.toCategoryResponse(r.Context(), c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid category ID")
		return
	}

	category, err := h.store.GetCategory(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "category not found")
			return
		}
		log.Printf("ERROR: get category: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, h.toCategoryResponse(r.Context(), category))
}

func (h *CategoryHandler) GetByHandle(w http.ResponseWriter, r *http.Request) {
	category, err := h.store.GetCategoryByHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "category not found")
			return
		}
		log.Printf("ERROR: get category by handle: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, h.toCategoryResponse(r.Context(), category))
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		errorJSON(w, http.StatusBadRequest, "name is required")
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		if writeCatalogError(w, err) {
			return
		}
		log.Printf("ERROR: create category: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, h.toCategoryResponse(r.Context(), *category))
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid category ID")
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		errorJSON(w, http.StatusBadRequest, "name is required")
		return
	}

	category, err := h.catalog.UpdateCategory(r.Context(), id, req.Name, req.Description)
	if err != nil {
		if writeCatalogError(w, err) {
			return
		}
		log.Printf("ERROR: update category: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, h.toCategoryResponse(r.Context(), *category))
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid category ID")
		return
	}

	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		if writeCatalogError(w, err) {
			return
		}
		log.Printf("ERROR: delete category: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage accepts a multipart form with an "image" file part.
func (h *CategoryHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid category ID")
		return
	}

	if err := r.ParseMultipartForm(service.MaxImageSize); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	category, err := h.catalog.SaveCategoryImage(r.Context(), id, header.Filename, file, header.Size)
	if err != nil {
		if writeCatalogError(w, err) {
			return
		}
		log.Printf("ERROR: save category image: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, h.toCategoryResponse(r.Context(), *category))
}
