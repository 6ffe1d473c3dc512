package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/bartab-pos/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TableStore interface {
	ListTables(ctx context.Context, arg database.ListTablesParams) ([]database.ListTablesRow, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	UpdateTable(ctx context.Context, arg database.UpdateTableParams) (database.Table, error)
	DeleteTable(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// TableHandler handles table registry CRUD. Occupancy is read-only here:
// in_use only moves through the order lifecycle.
type TableHandler struct {
	store TableStore
}

func NewTableHandler(store TableStore) *TableHandler {
	return &TableHandler{store: store}
}

// RegisterRoutes registers table endpoints on the given Chi router.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type tableRequest struct {
	SectionID   string `json:"section_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type tableResponse struct {
	ID          uuid.UUID `json:"id"`
	SectionID   *string   `json:"section_id"`
	SectionName *string   `json:"section_name,omitempty"`
	Name        string    `json:"name"`
	InUse       bool      `json:"in_use"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTableResponse(t database.Table) tableResponse {
	return tableResponse{
		ID:          t.ID,
		SectionID:   uuidPtr(t.SectionID),
		Name:        t.Name,
		InUse:       t.InUse,
		Description: textPtr(t.Description),
		CreatedAt:   t.CreatedAt,
	}
}

// --- Handlers ---

// List returns tables, optionally filtered by ?in_use= and ?section_id=.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	var params database.ListTablesParams

	if v := r.URL.Query().Get("in_use"); v != "" {
		inUse, err := strconv.ParseBool(v)
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid in_use filter")
			return
		}
		params.InUse = pgtype.Bool{Bool: inUse, Valid: true}
	}
	if v := r.URL.Query().Get("section_id"); v != "" {
		sectionID, err := uuid.Parse(v)
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid section_id filter")
			return
		}
		params.SectionID = pgtype.UUID{Bytes: sectionID, Valid: true}
	}

	tables, err := h.store.ListTables(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t.Table)
		resp[i].SectionName = textPtr(t.SectionName)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid table ID")
		return
	}

	table, err := h.store.GetTable(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "table not found")
			return
		}
		log.Printf("ERROR: get table: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		errorJSON(w, http.StatusBadRequest, "name is required")
		return
	}

	sectionID, ok := optionalUUID(req.SectionID)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "invalid section_id")
		return
	}

	table, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		SectionID:   sectionID,
		Name:        req.Name,
		Description: descText(req.Description),
	})
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			errorJSON(w, http.StatusConflict, "table name already exists in section")
			return
		}
		if database.IsForeignKeyViolation(err) {
			errorJSON(w, http.StatusBadRequest, "section does not exist")
			return
		}
		log.Printf("ERROR: create table: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(table))
}

func (h *TableHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid table ID")
		return
	}

	var req tableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		errorJSON(w, http.StatusBadRequest, "name is required")
		return
	}

	sectionID, ok := optionalUUID(req.SectionID)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "invalid section_id")
		return
	}

	table, err := h.store.UpdateTable(r.Context(), database.UpdateTableParams{
		ID:          id,
		SectionID:   sectionID,
		Name:        req.Name,
		Description: descText(req.Description),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "table not found")
			return
		}
		if database.IsUniqueViolation(err, "") {
			errorJSON(w, http.StatusConflict, "table name already exists in section")
			return
		}
		if database.IsForeignKeyViolation(err) {
			errorJSON(w, http.StatusBadRequest, "section does not exist")
			return
		}
		log.Printf("ERROR: update table: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// Delete removes a table. Tables with order history are kept for
// reporting integrity and rejected with a conflict.
func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid table ID")
		return
	}

	if _, err := h.store.DeleteTable(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "table not found")
			return
		}
		if database.IsForeignKeyViolation(err) {
			errorJSON(w, http.StatusConflict, "table has order history")
			return
		}
		log.Printf("ERROR: delete table: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func optionalUUID(s string) (pgtype.UUID, bool) {
	if s == "" {
		return pgtype.UUID{}, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, false
	}
	return pgtype.UUID{Bytes: id, Valid: true}, true
}
