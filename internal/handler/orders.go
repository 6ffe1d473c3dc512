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
	"github.com/bartab-pos/api/internal/middleware"
	"github.com/bartab-pos/api/internal/service"
	"github.com/bartab-pos/api/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderReadStore defines the read methods needed by order handlers;
// every state transition goes through the order service.
// Satisfied by *database.Queries.
type OrderReadStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOpenOrderByTable(ctx context.Context, tableID uuid.UUID) (database.Order, error)
	ListOpenOrders(ctx context.Context) ([]database.OrderSummaryRow, error)
	ListHistoricalOrders(ctx context.Context, arg database.ListHistoricalOrdersParams) ([]database.OrderSummaryRow, error)
	SearchOrders(ctx context.Context, query string) ([]database.OrderSummaryRow, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemDetailRow, error)
	ListUndeliveredItems(ctx context.Context) ([]database.OrderItemDetailRow, error)
}

// OrderHandler handles the order lifecycle endpoints.
type OrderHandler struct {
	svc    *service.OrderService
	store  OrderReadStore
	binder *session.Binder
}

func NewOrderHandler(svc *service.OrderService, store OrderReadStore, binder *session.Binder) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, binder: binder}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ListOpen)
	r.Get("/history", h.ListHistory)
	r.Get("/search", h.Search)
	r.Get("/undelivered", h.ListUndelivered)
	r.Post("/finalize-all", h.FinalizeAll)
	r.Post("/activate", h.ActivateTable)

	r.Get("/active", h.ActiveOrder)
	r.Delete("/active", h.ClearActiveOrder)

	r.Get("/{id}", h.Get)
	r.Post("/{id}/bind", h.BindOrder)
	r.Post("/{id}/items", h.AddItem)
	r.Post("/{id}/finalize", h.Finalize)
	r.Post("/{id}/pay", h.Pay)
	r.Post("/{id}/switch-table", h.SwitchTable)
	r.Get("/{id}/bill", h.Bill)

	r.Post("/items/{itemID}/deliver", h.DeliverItem)
	r.Delete("/items/{itemID}", h.DeleteItem)
}

// --- Request / Response types ---

type activateTableRequest struct {
	TableID string `json:"table_id"`
}

type addItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
}

type switchTableRequest struct {
	TableID string `json:"table_id"`
}

type orderResponse struct {
	ID         uuid.UUID `json:"id"`
	TableID    uuid.UUID `json:"table_id"`
	IsFinished bool      `json:"is_finished"`
	IsPaid     bool      `json:"is_paid"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type orderSummaryResponse struct {
	orderResponse
	TableName      string `json:"table_name"`
	Total          string `json:"total"`
	DeliveredTotal string `json:"delivered_total"`
}

type orderItemResponse struct {
	ID           uuid.UUID `json:"id"`
	OrderID      uuid.UUID `json:"order_id"`
	MenuItemID   uuid.UUID `json:"menu_item_id"`
	Quantity     int32     `json:"quantity"`
	PriceAtOrder string    `json:"price_at_order"`
	IsDelivered  bool      `json:"is_delivered"`
	ProductName  string    `json:"product_name,omitempty"`
	ProductSize  string    `json:"product_size,omitempty"`
	ProductUnit  string    `json:"product_unit,omitempty"`
}

type billResponse struct {
	OrderID        uuid.UUID `json:"order_id"`
	Total          string    `json:"total"`
	DeliveredTotal string    `json:"delivered_total"`
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:         o.ID,
		TableID:    o.TableID,
		IsFinished: o.IsFinished,
		IsPaid:     o.IsPaid,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func toOrderSummaryResponse(row database.OrderSummaryRow) orderSummaryResponse {
	return orderSummaryResponse{
		orderResponse:  toOrderResponse(row.Order),
		TableName:      row.TableName,
		Total:          moneyString(row.Total),
		DeliveredTotal: moneyString(row.DeliveredTotal),
	}
}

func toOrderItemResponse(item database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:           item.ID,
		OrderID:      item.OrderID,
		MenuItemID:   item.MenuItemID,
		Quantity:     item.Quantity,
		PriceAtOrder: moneyString(item.PriceAtOrder),
		IsDelivered:  item.IsDelivered,
	}
}

func toOrderItemDetailResponse(row database.OrderItemDetailRow) orderItemResponse {
	resp := toOrderItemResponse(row.OrderItem)
	resp.ProductName = row.ProductName
	resp.ProductSize = row.ProductSize
	resp.ProductUnit = row.ProductUnit
	return resp
}

// --- Handlers ---

// ActivateTable opens a new order on a free table and binds it to the
// caller's session.
func (h *OrderHandler) ActivateTable(w http.ResponseWriter, r *http.Request) {
	var req activateTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid table_id")
		return
	}

	order, err := h.svc.ActivateTable(r.Context(), tableID)
	if err != nil {
		if writeOrderError(w, err) {
			return
		}
		log.Printf("ERROR: activate table: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.bindToSession(r.Context(), order.ID)
	writeJSON(w, http.StatusCreated, toOrderResponse(*order))
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: get order: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	itemResp := make([]orderItemResponse, len(items))
	for i, item := range items {
		itemResp[i] = toOrderItemDetailResponse(item)
	}
	writeJSON(w, http.StatusOK, struct {
		orderResponse
		Items []orderItemResponse `json:"items"`
	}{toOrderResponse(order), itemResp})
}

// ListOpen returns every open order with its running totals. A
// ?table_id= filter narrows it to one table's open order.
func (h *OrderHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("table_id"); v != "" {
		tableID, err := uuid.Parse(v)
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid table_id filter")
			return
		}
		order, err := h.store.GetOpenOrderByTable(r.Context(), tableID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeJSON(w, http.StatusOK, []orderResponse{})
				return
			}
			log.Printf("ERROR: get open order by table: %v", err)
			errorJSON(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, []orderResponse{toOrderResponse(order)})
		return
	}

	orders, err := h.store.ListOpenOrders(r.Context())
	if err != nil {
		log.Printf("ERROR: list open orders: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toOrderSummaryResponses(orders))
}

// ListHistory returns finalized orders, newest first, paginated with
// ?limit= and ?offset=.
func (h *OrderHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := int32(50)
	offset := int32(0)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 1 || n > 500 {
			errorJSON(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = int32(n)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			errorJSON(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = int32(n)
	}

	orders, err := h.store.ListHistoricalOrders(r.Context(), database.ListHistoricalOrdersParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.Printf("ERROR: list historical orders: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toOrderSummaryResponses(orders))
}

// Search finds orders by table name.
func (h *OrderHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		errorJSON(w, http.StatusBadRequest, "q is required")
		return
	}

	orders, err := h.store.SearchOrders(r.Context(), query)
	if err != nil {
		log.Printf("ERROR: search orders: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toOrderSummaryResponses(orders))
}

// ListUndelivered returns every undelivered line across open orders, the
// kitchen's worklist.
func (h *OrderHandler) ListUndelivered(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListUndeliveredItems(r.Context())
	if err != nil {
		log.Printf("ERROR: list undelivered items: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]orderItemResponse, len(items))
	for i, item := range items {
		resp[i] = toOrderItemDetailResponse(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	menuItemID, err := uuid.Parse(req.MenuItemID)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid menu_item_id")
		return
	}

	item, err := h.svc.AddOrderItem(r.Context(), orderID, menuItemID, req.Quantity)
	if err != nil {
		if writeOrderError(w, err) {
			return
		}
		log.Printf("ERROR: add order item: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toOrderItemResponse(*item))
}

func (h *OrderHandler) DeliverItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid item ID")
		return
	}

	item, err := h.svc.DeliverOrderItem(r.Context(), itemID)
	if err != nil {
		if writeOrderError(w, err) {
			return
		}
		log.Printf("ERROR: deliver order item: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toOrderItemResponse(*item))
}

func (h *OrderHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid item ID")
		return
	}

	if err := h.svc.DeleteOrderItem(r.Context(), itemID); err != nil {
		if writeOrderError(w, err) {
			return
		}
		log.Printf("ERROR: delete order item: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Finalize closes the order and frees its table. The session binding is
// cleared since the order can no longer be worked on.
func (h *OrderHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.svc.FinalizeOrder(r.Context(), orderID)
	if err != nil {
		if writeOrderError(w, err) {
			return
		}
		log.Printf("ERROR: finalize order: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.clearSessionIfBound(r.Context(), orderID)
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

func (h *OrderHandler) Pay(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.svc.MarkPaid(r.Context(), orderID)
	if err != nil {
		if writeOrderError(w, err) {
			return
		}
		log.Printf("ERROR: mark order paid: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

func (h *OrderHandler) SwitchTable(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req switchTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid table_id")
		return
	}

	order, err := h.svc.SwitchTable(r.Context(), orderID, tableID)
	if err != nil {
		if writeOrderError(w, err) {
			return
		}
		log.Printf("ERROR: switch table: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// FinalizeAll closes every open order, the end-of-day sweep.
func (h *OrderHandler) FinalizeAll(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.FinalizeAllOpen(r.Context())
	if err != nil {
		log.Printf("ERROR: finalize all open: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]int{"finalized": count})
}

func (h *OrderHandler) Bill(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	bill, err := h.svc.Bill(r.Context(), orderID)
	if err != nil {
		if writeOrderError(w, err) {
			return
		}
		log.Printf("ERROR: get order bill: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, billResponse{
		OrderID:        orderID,
		Total:          bill.Total.StringFixed(2),
		DeliveredTotal: bill.DeliveredTotal.StringFixed(2),
	})
}

// BindOrder points the caller's session at an existing order.
func (h *OrderHandler) BindOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	if _, err := h.store.GetOrder(r.Context(), orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			errorJSON(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: get order: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		errorJSON(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.binder.Bind(r.Context(), claims.UserID, orderID); err != nil {
		log.Printf("ERROR: bind order: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActiveOrder returns the order bound to the caller's session.
func (h *OrderHandler) ActiveOrder(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		errorJSON(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID, err := h.binder.Active(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, session.ErrNoActiveOrder) {
			errorJSON(w, http.StatusNotFound, "no active order")
			return
		}
		log.Printf("ERROR: get active order: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Stale binding; clean it up.
			_ = h.binder.Clear(r.Context(), claims.UserID)
			errorJSON(w, http.StatusNotFound, "no active order")
			return
		}
		log.Printf("ERROR: get order: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) ClearActiveOrder(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		errorJSON(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.binder.Clear(r.Context(), claims.UserID); err != nil {
		log.Printf("ERROR: clear active order: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bindToSession is best-effort: a Redis hiccup must not fail the
// activation that already committed.
func (h *OrderHandler) bindToSession(ctx context.Context, orderID uuid.UUID) {
	claims := middleware.ClaimsFromContext(ctx)
	if claims == nil {
		return
	}
	if err := h.binder.Bind(ctx, claims.UserID, orderID); err != nil {
		log.Printf("ERROR: bind order to session: %v", err)
	}
}

func (h *OrderHandler) clearSessionIfBound(ctx context.Context, orderID uuid.UUID) {
	claims := middleware.ClaimsFromContext(ctx)
	if claims == nil {
		return
	}
	active, err := h.binder.Active(ctx, claims.UserID)
	if err != nil || active != orderID {
		return
	}
	if err := h.binder.Clear(ctx, claims.UserID); err != nil {
		log.Printf("ERROR: clear session binding: %v", err)
	}
}

func toOrderSummaryResponses(orders []database.OrderSummaryRow) []orderSummaryResponse {
	resp := make([]orderSummaryResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderSummaryResponse(o)
	}
	return resp
}
