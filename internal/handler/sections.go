package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/bartab-pos/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// SectionStore defines the database methods needed by section handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SectionStore interface {
	ListSections(ctx context.Context) ([]database.Section, error)
	GetSection(ctx context.Context, id uuid.UUID) (database.Section, error)
	CreateSection(ctx context.Context, arg database.CreateSectionParams) (database.Section, error)
	UpdateSection(ctx context.Context, arg database.UpdateSectionParams) (database.Section, error)
	DeleteSection(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// SectionHandler handles floor section CRUD endpoints.
type SectionHandler struct {
	store SectionStore
}

func NewSectionHandler(store SectionStore) *SectionHandler {
	return &SectionHandler{store: store}
}

// RegisterRoutes registers section endpoints on the given Chi router.
func (h *SectionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type sectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type sectionResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func toSectionResponse(s database.Section) sectionResponse {
	return sectionResponse{
		ID:          s.ID,
		Name:        s.Name,
		Description: textPtr(s.Description),
		CreatedAt:   s.CreatedAt,
	}
}

// --- Handlers ---

func (h *SectionHandler) List(w http.ResponseWriter, r *http.Request) {
	sections, err := h.store.ListSections(r.Context())
	if err != nil {
		log.Printf("ERROR: list sections: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]sectionResponse, len(sections))
	for i, s := range sections {
		resp[i] = toSectionResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid section ID")
		return
	}

	section, err := h.store.GetSection(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "section not found")
			return
		}
		log.Printf("ERROR: get section: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toSectionResponse(section))
}

func (h *SectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req sectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		errorJSON(w, http.StatusBadRequest, "name is required")
		return
	}

	section, err := h.store.CreateSection(r.Context(), database.CreateSectionParams{
		Name:        req.Name,
		Description: descText(req.Description),
	})
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			errorJSON(w, http.StatusConflict, "section name already exists")
			return
		}
		log.Printf("ERROR: create section: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toSectionResponse(section))
}

func (h *SectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid section ID")
		return
	}

	var req sectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		errorJSON(w, http.StatusBadRequest, "name is required")
		return
	}

	section, err := h.store.UpdateSection(r.Context(), database.UpdateSectionParams{
		ID:          id,
		Name:        req.Name,
		Description: descText(req.Description),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "section not found")
			return
		}
		if database.IsUniqueViolation(err, "") {
			errorJSON(w, http.StatusConflict, "section name already exists")
			return
		}
		log.Printf("ERROR: update section: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toSectionResponse(section))
}

func (h *SectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid section ID")
		return
	}

	if _, err := h.store.DeleteSection(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "section not found")
			return
		}
		log.Printf("ERROR: delete section: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func descText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
