package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bartab-pos/api/internal/auth"
	"github.com/bartab-pos/api/internal/database"
	"github.com/bartab-pos/api/internal/enum"
	"github.com/bartab-pos/api/internal/handler"
	"github.com/bartab-pos/api/internal/middleware"
	"github.com/bartab-pos/api/internal/service"
	"github.com/bartab-pos/api/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// --- Fakes ---

type fakeOrderTx struct{ pgx.Tx }

func (t *fakeOrderTx) Commit(ctx context.Context) error   { return nil }
func (t *fakeOrderTx) Rollback(ctx context.Context) error { return nil }

type fakeOrderDB struct{}

func (db *fakeOrderDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeOrderTx{}, nil
}

type ordersMock struct {
	tables     map[uuid.UUID]database.Table
	orders     map[uuid.UUID]database.Order
	menuItems  map[uuid.UUID]database.GetMenuItemForOrderRow
	orderItems map[uuid.UUID]database.OrderItem
}

func newOrdersMock() *ordersMock {
	return &ordersMock{
		tables:     make(map[uuid.UUID]database.Table),
		orders:     make(map[uuid.UUID]database.Order),
		menuItems:  make(map[uuid.UUID]database.GetMenuItemForOrderRow),
		orderItems: make(map[uuid.UUID]database.OrderItem),
	}
}

func (m *ordersMock) GetTableForUpdate(_ context.Context, id uuid.UUID) (database.Table, error) {
	t, ok := m.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *ordersMock) SetTableInUse(_ context.Context, arg database.SetTableInUseParams) (database.Table, error) {
	t := m.tables[arg.ID]
	t.InUse = arg.InUse
	m.tables[arg.ID] = t
	return t, nil
}

func (m *ordersMock) CreateOrder(_ context.Context, tableID uuid.UUID) (database.Order, error) {
	o := database.Order{ID: uuid.New(), TableID: tableID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.orders[o.ID] = o
	return o, nil
}

func (m *ordersMock) GetOrder(_ context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *ordersMock) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *ordersMock) FinalizeOrder(_ context.Context, id uuid.UUID) (database.Order, error) {
	o := m.orders[id]
	o.IsFinished = true
	m.orders[id] = o
	return o, nil
}

func (m *ordersMock) MarkOrderPaid(_ context.Context, id uuid.UUID) (database.Order, error) {
	o := m.orders[id]
	o.IsPaid = true
	m.orders[id] = o
	return o, nil
}

func (m *ordersMock) UpdateOrderTable(_ context.Context, arg database.UpdateOrderTableParams) (database.Order, error) {
	o := m.orders[arg.ID]
	o.TableID = arg.TableID
	m.orders[arg.ID] = o
	return o, nil
}

func (m *ordersMock) ListOpenOrders(_ context.Context) ([]database.OrderSummaryRow, error) {
	var rows []database.OrderSummaryRow
	for _, o := range m.orders {
		if !o.IsFinished {
			rows = append(rows, database.OrderSummaryRow{Order: o, TableName: m.tables[o.TableID].Name})
		}
	}
	return rows, nil
}

func (m *ordersMock) GetMenuItemForOrder(_ context.Context, id uuid.UUID) (database.GetMenuItemForOrderRow, error) {
	row, ok := m.menuItems[id]
	if !ok {
		return database.GetMenuItemForOrderRow{}, pgx.ErrNoRows
	}
	return row, nil
}

func (m *ordersMock) CreateOrderItem(_ context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	item := database.OrderItem{
		ID:           uuid.New(),
		OrderID:      arg.OrderID,
		MenuItemID:   arg.MenuItemID,
		Quantity:     arg.Quantity,
		PriceAtOrder: arg.PriceAtOrder,
	}
	m.orderItems[item.ID] = item
	return item, nil
}

func (m *ordersMock) GetOrderItemForUpdate(_ context.Context, id uuid.UUID) (database.GetOrderItemForUpdateRow, error) {
	item, ok := m.orderItems[id]
	if !ok {
		return database.GetOrderItemForUpdateRow{}, pgx.ErrNoRows
	}
	return database.GetOrderItemForUpdateRow{
		OrderItem:       item,
		OrderIsFinished: m.orders[item.OrderID].IsFinished,
	}, nil
}

func (m *ordersMock) SetOrderItemDelivered(_ context.Context, id uuid.UUID) (database.OrderItem, error) {
	item := m.orderItems[id]
	item.IsDelivered = true
	m.orderItems[id] = item
	return item, nil
}

func (m *ordersMock) DeleteOrderItem(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	if _, ok := m.orderItems[id]; !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(m.orderItems, id)
	return id, nil
}

func (m *ordersMock) GetOrderBill(_ context.Context, orderID uuid.UUID) (database.GetOrderBillRow, error) {
	total := decimal.Zero
	delivered := decimal.Zero
	for _, item := range m.orderItems {
		if item.OrderID != orderID {
			continue
		}
		line := service.NumericToDecimal(item.PriceAtOrder).Mul(decimal.NewFromInt32(item.Quantity))
		total = total.Add(line)
		if item.IsDelivered {
			delivered = delivered.Add(line)
		}
	}
	return database.GetOrderBillRow{
		Total:          service.DecimalToNumeric(total),
		DeliveredTotal: service.DecimalToNumeric(delivered),
	}, nil
}

func (m *ordersMock) GetOpenOrderByTable(_ context.Context, tableID uuid.UUID) (database.Order, error) {
	for _, o := range m.orders {
		if o.TableID == tableID && !o.IsFinished {
			return o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *ordersMock) ListHistoricalOrders(_ context.Context, _ database.ListHistoricalOrdersParams) ([]database.OrderSummaryRow, error) {
	var rows []database.OrderSummaryRow
	for _, o := range m.orders {
		if o.IsFinished {
			rows = append(rows, database.OrderSummaryRow{Order: o})
		}
	}
	return rows, nil
}

func (m *ordersMock) SearchOrders(_ context.Context, _ string) ([]database.OrderSummaryRow, error) {
	return nil, nil
}

func (m *ordersMock) ListOrderItemsByOrder(_ context.Context, orderID uuid.UUID) ([]database.OrderItemDetailRow, error) {
	var rows []database.OrderItemDetailRow
	for _, item := range m.orderItems {
		if item.OrderID == orderID {
			rows = append(rows, database.OrderItemDetailRow{OrderItem: item})
		}
	}
	return rows, nil
}

func (m *ordersMock) ListUndeliveredItems(_ context.Context) ([]database.OrderItemDetailRow, error) {
	var rows []database.OrderItemDetailRow
	for _, item := range m.orderItems {
		if !item.IsDelivered && !m.orders[item.OrderID].IsFinished {
			rows = append(rows, database.OrderItemDetailRow{OrderItem: item})
		}
	}
	return rows, nil
}

type bindRedisMock struct {
	redis.Cmdable
	data map[string]string
}

func (m *bindRedisMock) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (m *bindRedisMock) Get(ctx context.Context, key string) *redis.StringCmd {
	val, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (m *bindRedisMock) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.data, k)
	}
	return redis.NewIntResult(1, nil)
}

// --- Setup ---

var testUserID = uuid.New()

func setupOrderRouter(mock *ordersMock) *chi.Mux {
	svc := service.NewOrderService(&fakeOrderDB{}, mock, func(_ database.DBTX) service.OrderStore {
		return mock
	})
	binder := session.NewBinder(&bindRedisMock{data: make(map[string]string)})
	h := handler.NewOrderHandler(svc, mock, binder)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			claims := &auth.Claims{UserID: testUserID, Role: enum.UserRoleStaff}
			next.ServeHTTP(w, req.WithContext(middleware.ContextWithClaims(req.Context(), claims)))
		})
	})
	r.Route("/orders", h.RegisterRoutes)
	return r
}

func seedTable(m *ordersMock, inUse bool) uuid.UUID {
	id := uuid.New()
	m.tables[id] = database.Table{ID: id, Name: "T1", InUse: inUse}
	return id
}

func seedOrder(m *ordersMock, tableID uuid.UUID, finished bool) uuid.UUID {
	id := uuid.New()
	m.orders[id] = database.Order{ID: id, TableID: tableID, IsFinished: finished}
	return id
}

func seedMenuItem(m *ordersMock, price string) uuid.UUID {
	id := uuid.New()
	m.menuItems[id] = database.GetMenuItemForOrderRow{
		ID:    id,
		Price: service.DecimalToNumeric(decimal.RequireFromString(price)),
	}
	return id
}

// --- Tests ---

func TestOrderActivateTable(t *testing.T) {
	mock := newOrdersMock()
	tableID := seedTable(mock, false)
	router := setupOrderRouter(mock)

	rr := doRequest(t, router, "POST", "/orders/activate", map[string]string{"table_id": tableID.String()})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}

	resp := decodeObject(t, rr)
	if resp["table_id"] != tableID.String() {
		t.Errorf("table_id = %v, want %s", resp["table_id"], tableID)
	}
	if !mock.tables[tableID].InUse {
		t.Error("table should be in use")
	}
}

func TestOrderActivateBusyTable(t *testing.T) {
	mock := newOrdersMock()
	tableID := seedTable(mock, true)
	router := setupOrderRouter(mock)

	rr := doRequest(t, router, "POST", "/orders/activate", map[string]string{"table_id": tableID.String()})
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestOrderActivateBindsSession(t *testing.T) {
	mock := newOrdersMock()
	tableID := seedTable(mock, false)
	router := setupOrderRouter(mock)

	rr := doRequest(t, router, "POST", "/orders/activate", map[string]string{"table_id": tableID.String()})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
	orderID := decodeObject(t, rr)["id"]

	rr = doRequest(t, router, "GET", "/orders/active", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("active order status = %d, want 200", rr.Code)
	}
	if got := decodeObject(t, rr)["id"]; got != orderID {
		t.Errorf("active order = %v, want %v", got, orderID)
	}
}

func TestOrderActiveWhenUnbound(t *testing.T) {
	router := setupOrderRouter(newOrdersMock())

	rr := doRequest(t, router, "GET", "/orders/active", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestOrderAddItem(t *testing.T) {
	mock := newOrdersMock()
	tableID := seedTable(mock, true)
	orderID := seedOrder(mock, tableID, false)
	menuItemID := seedMenuItem(mock, "9.50")
	router := setupOrderRouter(mock)

	rr := doRequest(t, router, "POST", "/orders/"+orderID.String()+"/items", map[string]interface{}{
		"menu_item_id": menuItemID.String(),
		"quantity":     2,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}

	resp := decodeObject(t, rr)
	if resp["price_at_order"] != "9.50" {
		t.Errorf("price_at_order = %v, want 9.50", resp["price_at_order"])
	}
}

func TestOrderAddItemZeroQuantity(t *testing.T) {
	mock := newOrdersMock()
	tableID := seedTable(mock, true)
	orderID := seedOrder(mock, tableID, false)
	menuItemID := seedMenuItem(mock, "9.50")
	router := setupOrderRouter(mock)

	rr := doRequest(t, router, "POST", "/orders/"+orderID.String()+"/items", map[string]interface{}{
		"menu_item_id": menuItemID.String(),
		"quantity":     0,
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestOrderAddItemToFinalized(t *testing.T) {
	mock := newOrdersMock()
	tableID := seedTable(mock, false)
	orderID := seedOrder(mock, tableID, true)
	menuItemID := seedMenuItem(mock, "9.50")
	router := setupOrderRouter(mock)

	rr := doRequest(t, router, "POST", "/orders/"+orderID.String()+"/items", map[string]interface{}{
		"menu_item_id": menuItemID.String(),
		"quantity":     1,
	})
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestOrderFinalizeAndPay(t *testing.T) {
	mock := newOrdersMock()
	tableID := seedTable(mock, true)
	orderID := seedOrder(mock, tableID, false)
	router := setupOrderRouter(mock)

	// Paying an open order is rejected.
	rr := doRequest(t, router, "POST", "/orders/"+orderID.String()+"/pay", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("pay open order: status = %d, want 409", rr.Code)
	}

	rr = doRequest(t, router, "POST", "/orders/"+orderID.String()+"/finalize", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("finalize: status = %d, want 200", rr.Code)
	}
	if mock.tables[tableID].InUse {
		t.Error("table should be freed by finalize")
	}

	rr = doRequest(t, router, "POST", "/orders/"+orderID.String()+"/finalize", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("second finalize: status = %d, want 409", rr.Code)
	}

	rr = doRequest(t, router, "POST", "/orders/"+orderID.String()+"/pay", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("pay: status = %d, want 200", rr.Code)
	}
	if got := decodeObject(t, rr)["is_paid"]; got != true {
		t.Errorf("is_paid = %v, want true", got)
	}
}

func TestOrderBill(t *testing.T) {
	mock := newOrdersMock()
	tableID := seedTable(mock, true)
	orderID := seedOrder(mock, tableID, false)
	burger := seedMenuItem(mock, "9.50")
	router := setupOrderRouter(mock)

	rr := doRequest(t, router, "POST", "/orders/"+orderID.String()+"/items", map[string]interface{}{
		"menu_item_id": burger.String(),
		"quantity":     2,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add item: status = %d", rr.Code)
	}

	rr = doRequest(t, router, "GET", "/orders/"+orderID.String()+"/bill", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("bill: status = %d, want 200", rr.Code)
	}

	resp := decodeObject(t, rr)
	if resp["total"] != "19.00" {
		t.Errorf("total = %v, want 19.00", resp["total"])
	}
	if resp["delivered_total"] != "0.00" {
		t.Errorf("delivered_total = %v, want 0.00", resp["delivered_total"])
	}
}

func TestOrderSwitchTable(t *testing.T) {
	mock := newOrdersMock()
	oldTable := seedTable(mock, true)
	newTable := seedTable(mock, false)
	orderID := seedOrder(mock, oldTable, false)
	router := setupOrderRouter(mock)

	rr := doRequest(t, router, "POST", "/orders/"+orderID.String()+"/switch-table", map[string]string{
		"table_id": newTable.String(),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if mock.tables[oldTable].InUse {
		t.Error("old table should be freed")
	}
	if !mock.tables[newTable].InUse {
		t.Error("new table should be in use")
	}
}

func TestOrderFinalizeAll(t *testing.T) {
	mock := newOrdersMock()
	t1 := seedTable(mock, true)
	t2 := seedTable(mock, true)
	seedOrder(mock, t1, false)
	seedOrder(mock, t2, false)
	router := setupOrderRouter(mock)

	rr := doRequest(t, router, "POST", "/orders/finalize-all", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	resp := decodeObject(t, rr)
	if resp["finalized"] != float64(2) {
		t.Errorf("finalized = %v, want 2", resp["finalized"])
	}
}

func TestOrderDeliverItem(t *testing.T) {
	mock := newOrdersMock()
	tableID := seedTable(mock, true)
	orderID := seedOrder(mock, tableID, false)
	menuItemID := seedMenuItem(mock, "3.00")
	router := setupOrderRouter(mock)

	rr := doRequest(t, router, "POST", "/orders/"+orderID.String()+"/items", map[string]interface{}{
		"menu_item_id": menuItemID.String(),
		"quantity":     1,
	})
	itemID := decodeObject(t, rr)["id"].(string)

	rr = doRequest(t, router, "POST", "/orders/items/"+itemID+"/deliver", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := decodeObject(t, rr)["is_delivered"]; got != true {
		t.Errorf("is_delivered = %v, want true", got)
	}

	// Delivered items leave the kitchen worklist.
	rr = doRequest(t, router, "GET", "/orders/undelivered", nil)
	if got := decodeList(t, rr); len(got) != 0 {
		t.Errorf("undelivered = %v, want empty", got)
	}
}
