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
	"github.com/jackc/pgx/v5/pgtype"
)

// ProductStore defines the read methods needed by product handlers;
// mutations go through the catalog service. Satisfied by *database.Queries.
type ProductStore interface {
	SearchProducts(ctx context.Context, query pgtype.Text) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	GetProductByHandle(ctx context.Context, handle string) (database.Product, error)
}

// ProductHandler handles product catalog endpoints.
type ProductHandler struct {
	store   ProductStore
	catalog *service.CatalogService
}

func NewProductHandler(store ProductStore, catalog *service.CatalogService) *ProductHandler {
	return &ProductHandler{store: store, catalog: catalog}
}

// RegisterRoutes registers product endpoints on the given Chi router.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/handle/{handle}", h.GetByHandle)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/image", h.UploadImage)
}

// --- Request / Response types ---

type productRequest struct {
	Name        string `json:"name"`
	Size        string `json:"size"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
}

type productResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Size        string    `json:"size"`
	Unit        string    `json:"unit"`
	Description *string   `json:"description"`
	Handle      string    `json:"handle"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *ProductHandler) toProductResponse(ctx context.Context, p database.Product) productResponse {
	resp := productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Size:        p.Size,
		Unit:        p.Unit,
		Description: textPtr(p.Description),
		Handle:      p.Handle,
		CreatedAt:   p.CreatedAt,
	}
	url, err := h.catalog.ImageURL(ctx, p.ImageKey)
	if err != nil {
		log.Printf("ERROR: presign product image: %v", err)
	} else {
		resp.ImageURL = url
	}
	return resp
}

// --- Handlers ---

// List returns products, optionally filtered by ?q= across name, size
// and unit.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query := pgtype.Text{}
	if q := r.URL.Query().Get("q"); q != "" {
		query = pgtype.Text{String: q, Valid: true}
	}

	products, err := h.store.SearchProducts(r.Context(), query)
	if err != nil {
		log.Printf("ERROR: search products: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = h.toProductResponse(r.Context(), p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "product not found")
			return
		}
		log.Printf("ERROR: get product: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(r.Context(), product))
}

func (h *ProductHandler) GetByHandle(w http.ResponseWriter, r *http.Request) {
	product, err := h.store.GetProductByHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "product not found")
			return
		}
		log.Printf("ERROR: get product by handle: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(r.Context(), product))
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Size == "" || req.Unit == "" {
		errorJSON(w, http.StatusBadRequest, "name, size and unit are required")
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), service.CreateProductInput{
		Name:        req.Name,
		Size:        req.Size,
		Unit:        req.Unit,
		Description: req.Description,
	})
	if err != nil {
		if writeCatalogError(w, err) {
			return
		}
		log.Printf("ERROR: create product: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, h.toProductResponse(r.Context(), *product))
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Size == "" || req.Unit == "" {
		errorJSON(w, http.StatusBadRequest, "name, size and unit are required")
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), id, service.UpdateProductInput{
		Name:        req.Name,
		Size:        req.Size,
		Unit:        req.Unit,
		Description: req.Description,
	})
	if err != nil {
		if writeCatalogError(w, err) {
			return
		}
		log.Printf("ERROR: update product: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(r.Context(), *product))
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		if writeCatalogError(w, err) {
			return
		}
		log.Printf("ERROR: delete product: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage accepts a multipart form with an "image" file part.
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid product ID")
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

	product, err := h.catalog.SaveProductImage(r.Context(), id, header.Filename, file, header.Size)
	if err != nil {
		if writeCatalogError(w, err) {
			return
		}
		log.Printf("ERROR: save product image: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(r.Context(), *product))
}
