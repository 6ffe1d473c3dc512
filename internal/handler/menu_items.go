package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/bartab-pos/api/internal/database"
	"github.com/bartab-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// MenuStore defines the read methods needed by menu handlers; mutations
// go through the catalog service. Satisfied by *database.Queries.
type MenuStore interface {
	ListMenuItems(ctx context.Context, query pgtype.Text) ([]database.MenuItemRow, error)
	ListActiveMenuItems(ctx context.Context) ([]database.MenuItemRow, error)
	ListActiveMenuItemsByCategory(ctx context.Context, categoryID pgtype.UUID) ([]database.MenuItemRow, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItemRow, error)
}

// MenuHandler handles menu item endpoints.
type MenuHandler struct {
	store   MenuStore
	catalog *service.CatalogService
}

func NewMenuHandler(store MenuStore, catalog *service.CatalogService) *MenuHandler {
	return &MenuHandler{store: store, catalog: catalog}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/active", h.ListActive)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createMenuItemRequest struct {
	ProductID  string `json:"product_id"`
	CategoryID string `json:"category_id"`
	Price      string `json:"price"`
}

type updateMenuItemRequest struct {
	CategoryID string `json:"category_id"`
	Price      string `json:"price"`
	IsActive   bool   `json:"is_active"`
}

type menuItemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	CategoryID  *string   `json:"category_id"`
	Price       string    `json:"price"`
	IsActive    bool      `json:"is_active"`
	Handle      string    `json:"handle"`
	ProductName string    `json:"product_name,omitempty"`
	ProductSize string    `json:"product_size,omitempty"`
	ProductUnit string    `json:"product_unit,omitempty"`
}

func toMenuItemResponse(m database.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:         m.ID,
		ProductID:  m.ProductID,
		CategoryID: uuidPtr(m.CategoryID),
		Price:      moneyString(m.Price),
		IsActive:   m.IsActive,
		Handle:     m.Handle,
	}
}

func toMenuItemRowResponse(m database.MenuItemRow) menuItemResponse {
	resp := toMenuItemResponse(m.MenuItem)
	resp.ProductName = m.ProductName
	resp.ProductSize = m.ProductSize
	resp.ProductUnit = m.ProductUnit
	return resp
}

// --- Handlers ---

// List returns all menu items, optionally filtered by ?q= over the
// underlying product.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	query := pgtype.Text{}
	if q := r.URL.Query().Get("q"); q != "" {
		query = pgtype.Text{String: q, Valid: true}
	}

	items, err := h.store.ListMenuItems(r.Context(), query)
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemRowResponses(items))
}

// ListActive returns orderable items, optionally scoped to one category
// via ?category_id= ("none" selects uncategorized items).
func (h *MenuHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	cat := r.URL.Query().Get("category_id")
	if cat == "" {
		items, err := h.store.ListActiveMenuItems(r.Context())
		if err != nil {
			log.Printf("ERROR: list active menu items: %v", err)
			errorJSON(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, toMenuItemRowResponses(items))
		return
	}

	categoryID := pgtype.UUID{}
	if cat != "none" {
		id, err := uuid.Parse(cat)
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid category_id filter")
			return
		}
		categoryID = pgtype.UUID{Bytes: id, Valid: true}
	}

	items, err := h.store.ListActiveMenuItemsByCategory(r.Context(), categoryID)
	if err != nil {
		log.Printf("ERROR: list menu items by category: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemRowResponses(items))
}

func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid menu item ID")
		return
	}

	item, err := h.store.GetMenuItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "menu item not found")
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemRowResponse(item))
}

func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid product_id")
		return
	}
	categoryID, ok := parseOptionalID(req.CategoryID)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "invalid category_id")
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid price")
		return
	}

	item, err := h.catalog.CreateMenuItem(r.Context(), service.CreateMenuItemInput{
		ProductID:  productID,
		CategoryID: categoryID,
		Price:      price,
	})
	if err != nil {
		if writeCatalogError(w, err) {
			return
		}
		log.Printf("ERROR: create menu item: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toMenuItemResponse(*item))
}

func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid menu item ID")
		return
	}

	var req updateMenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	categoryID, ok := parseOptionalID(req.CategoryID)
	if !ok {
		errorJSON(w, http.StatusBadRequest, "invalid category_id")
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid price")
		return
	}

	item, err := h.catalog.UpdateMenuItem(r.Context(), id, service.UpdateMenuItemInput{
		CategoryID: categoryID,
		Price:      price,
		IsActive:   req.IsActive,
	})
	if err != nil {
		if writeCatalogError(w, err) {
			return
		}
		log.Printf("ERROR: update menu item: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemResponse(*item))
}

func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid menu item ID")
		return
	}

	if err := h.catalog.DeleteMenuItem(r.Context(), id); err != nil {
		if writeCatalogError(w, err) {
			return
		}
		log.Printf("ERROR: delete menu item: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toMenuItemRowResponses(items []database.MenuItemRow) []menuItemResponse {
	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = toMenuItemRowResponse(m)
	}
	return resp
}

// parseOptionalID parses an optional uuid field; empty means absent.
func parseOptionalID(s string) (uuid.UUID, bool) {
	if s == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
