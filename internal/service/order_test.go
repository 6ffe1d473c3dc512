package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bartab-pos/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// fakeTx stands in for a pgx transaction. It tracks commit/rollback and
// releases the mock's row lock when the transaction ends, mirroring how
// FOR UPDATE locks are held until commit.
type fakeTx struct {
	pgx.Tx
	release   func()
	committed bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	t.finish()
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.finish()
	return nil
}

func (t *fakeTx) finish() {
	if t.release != nil {
		t.release()
		t.release = nil
	}
}

type fakeDB struct {
	mu  sync.Mutex
	txs []*fakeTx
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	tx := &fakeTx{}
	db.mu.Lock()
	db.txs = append(db.txs, tx)
	db.mu.Unlock()
	return tx, nil
}

func (db *fakeDB) lastTx() *fakeTx {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.txs[len(db.txs)-1]
}

type mockStore struct {
	mu    sync.Mutex
	rowMu sync.Mutex

	tables     map[uuid.UUID]database.Table
	orders     map[uuid.UUID]database.Order
	menuItems  map[uuid.UUID]database.GetMenuItemForOrderRow
	orderItems map[uuid.UUID]database.OrderItem

	failFreeTable   bool
	failFinalizeFor uuid.UUID
}

func newMockStore() *mockStore {
	return &mockStore{
		tables:     make(map[uuid.UUID]database.Table),
		orders:     make(map[uuid.UUID]database.Order),
		menuItems:  make(map[uuid.UUID]database.GetMenuItemForOrderRow),
		orderItems: make(map[uuid.UUID]database.OrderItem),
	}
}

func (s *mockStore) GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	return t, nil
}

func (s *mockStore) SetTableInUse(ctx context.Context, arg database.SetTableInUseParams) (database.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFreeTable && !arg.InUse {
		return database.Table{}, errors.New("write failed")
	}
	t, ok := s.tables[arg.ID]
	if !ok {
		return database.Table{}, pgx.ErrNoRows
	}
	t.InUse = arg.InUse
	s.tables[arg.ID] = t
	return t, nil
}

func (s *mockStore) CreateOrder(ctx context.Context, tableID uuid.UUID) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := database.Order{ID: uuid.New(), TableID: tableID}
	s.orders[o.ID] = o
	return o, nil
}

func (s *mockStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (s *mockStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return s.GetOrder(ctx, id)
}

func (s *mockStore) FinalizeOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.failFinalizeFor {
		return database.Order{}, errors.New("write failed")
	}
	o, ok := s.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.IsFinished = true
	s.orders[id] = o
	return o, nil
}

func (s *mockStore) MarkOrderPaid(ctx context.Context, id uuid.UUID) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[id]
	o.IsPaid = true
	s.orders[id] = o
	return o, nil
}

func (s *mockStore) UpdateOrderTable(ctx context.Context, arg database.UpdateOrderTableParams) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[arg.ID]
	o.TableID = arg.TableID
	s.orders[arg.ID] = o
	return o, nil
}

func (s *mockStore) ListOpenOrders(ctx context.Context) ([]database.OrderSummaryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []database.OrderSummaryRow
	for _, o := range s.orders {
		if !o.IsFinished {
			rows = append(rows, database.OrderSummaryRow{Order: o})
		}
	}
	return rows, nil
}

func (s *mockStore) GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (database.GetMenuItemForOrderRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.menuItems[id]
	if !ok {
		return database.GetMenuItemForOrderRow{}, pgx.ErrNoRows
	}
	return m, nil
}

func (s *mockStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := database.OrderItem{
		ID:           uuid.New(),
		OrderID:      arg.OrderID,
		MenuItemID:   arg.MenuItemID,
		Quantity:     arg.Quantity,
		PriceAtOrder: arg.PriceAtOrder,
	}
	s.orderItems[item.ID] = item
	return item, nil
}

func (s *mockStore) GetOrderItemForUpdate(ctx context.Context, id uuid.UUID) (database.GetOrderItemForUpdateRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.orderItems[id]
	if !ok {
		return database.GetOrderItemForUpdateRow{}, pgx.ErrNoRows
	}
	return database.GetOrderItemForUpdateRow{
		OrderItem:       item,
		OrderIsFinished: s.orders[item.OrderID].IsFinished,
	}, nil
}

func (s *mockStore) SetOrderItemDelivered(ctx context.Context, id uuid.UUID) (database.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.orderItems[id]
	item.IsDelivered = true
	s.orderItems[id] = item
	return item, nil
}

func (s *mockStore) DeleteOrderItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orderItems[id]; !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(s.orderItems, id)
	return id, nil
}

func (s *mockStore) GetOrderBill(ctx context.Context, orderID uuid.UUID) (database.GetOrderBillRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	delivered := decimal.Zero
	for _, item := range s.orderItems {
		if item.OrderID != orderID {
			continue
		}
		line := NumericToDecimal(item.PriceAtOrder).Mul(decimal.NewFromInt32(item.Quantity))
		total = total.Add(line)
		if item.IsDelivered {
			delivered = delivered.Add(line)
		}
	}
	return database.GetOrderBillRow{
		Total:          DecimalToNumeric(total),
		DeliveredTotal: DecimalToNumeric(delivered),
	}, nil
}

// txStore is what the service's store factory hands back inside a
// transaction. The first FOR UPDATE read takes the row lock; the fakeTx
// releases it on commit or rollback.
type txStore struct {
	*mockStore
	tx *fakeTx
}

func (s *txStore) lockRows() {
	if s.tx.release == nil {
		s.rowMu.Lock()
		s.tx.release = s.rowMu.Unlock
	}
}

func (s *txStore) GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error) {
	s.lockRows()
	return s.mockStore.GetTableForUpdate(ctx, id)
}

func (s *txStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	s.lockRows()
	return s.mockStore.GetOrderForUpdate(ctx, id)
}

func (s *txStore) GetOrderItemForUpdate(ctx context.Context, id uuid.UUID) (database.GetOrderItemForUpdateRow, error) {
	s.lockRows()
	return s.mockStore.GetOrderItemForUpdate(ctx, id)
}

func newTestService(store *mockStore) (*OrderService, *fakeDB) {
	db := &fakeDB{}
	svc := NewOrderService(db, store, func(dbtx database.DBTX) OrderStore {
		return &txStore{mockStore: store, tx: dbtx.(*fakeTx)}
	})
	return svc, db
}

func addTable(s *mockStore, inUse bool) uuid.UUID {
	id := uuid.New()
	s.tables[id] = database.Table{ID: id, Name: "T1", InUse: inUse}
	return id
}

func addOrder(s *mockStore, tableID uuid.UUID, finished bool) uuid.UUID {
	id := uuid.New()
	s.orders[id] = database.Order{ID: id, TableID: tableID, IsFinished: finished}
	return id
}

func addMenuItem(s *mockStore, price string) uuid.UUID {
	id := uuid.New()
	s.menuItems[id] = database.GetMenuItemForOrderRow{
		ID:    id,
		Price: DecimalToNumeric(decimal.RequireFromString(price)),
	}
	return id
}

func TestActivateTable(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, false)
	svc, db := newTestService(store)

	order, err := svc.ActivateTable(context.Background(), tableID)
	if err != nil {
		t.Fatalf("ActivateTable: %v", err)
	}
	if order.TableID != tableID {
		t.Errorf("order.TableID = %s, want %s", order.TableID, tableID)
	}
	if !store.tables[tableID].InUse {
		t.Error("table should be in use after activation")
	}
	if !db.lastTx().committed {
		t.Error("transaction should be committed")
	}
}

func TestActivateTableNotFound(t *testing.T) {
	store := newMockStore()
	svc, _ := newTestService(store)

	_, err := svc.ActivateTable(context.Background(), uuid.New())
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("err = %v, want ErrTableNotFound", err)
	}
}

func TestActivateTableInUse(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, true)
	svc, _ := newTestService(store)

	_, err := svc.ActivateTable(context.Background(), tableID)
	if !errors.Is(err, ErrTableInUse) {
		t.Errorf("err = %v, want ErrTableInUse", err)
	}
}

func TestActivateTableConcurrent(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, false)
	svc, _ := newTestService(store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ActivateTable(context.Background(), tableID)
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrTableInUse):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflict != 1 {
		t.Errorf("got %d successes and %d conflicts, want exactly one of each", ok, conflict)
	}
	if len(store.orders) != 1 {
		t.Errorf("got %d orders, want 1", len(store.orders))
	}
}

func TestAddOrderItem(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, true)
	orderID := addOrder(store, tableID, false)
	menuItemID := addMenuItem(store, "9.50")
	svc, _ := newTestService(store)

	item, err := svc.AddOrderItem(context.Background(), orderID, menuItemID, 2)
	if err != nil {
		t.Fatalf("AddOrderItem: %v", err)
	}
	if item.Quantity != 2 {
		t.Errorf("quantity = %d, want 2", item.Quantity)
	}
	if got := NumericToDecimal(item.PriceAtOrder); !got.Equal(decimal.RequireFromString("9.50")) {
		t.Errorf("price_at_order = %s, want 9.50", got)
	}
}

func TestAddOrderItemInvalidQuantity(t *testing.T) {
	store := newMockStore()
	svc, _ := newTestService(store)

	for _, qty := range []int32{0, -1} {
		_, err := svc.AddOrderItem(context.Background(), uuid.New(), uuid.New(), qty)
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("quantity %d: err = %v, want ErrInvalidQuantity", qty, err)
		}
	}
}

func TestAddOrderItemFinalizedOrder(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, false)
	orderID := addOrder(store, tableID, true)
	menuItemID := addMenuItem(store, "5.00")
	svc, _ := newTestService(store)

	_, err := svc.AddOrderItem(context.Background(), orderID, menuItemID, 1)
	if !errors.Is(err, ErrOrderFinalized) {
		t.Errorf("err = %v, want ErrOrderFinalized", err)
	}
}

func TestAddOrderItemMenuItemMissing(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, true)
	orderID := addOrder(store, tableID, false)
	svc, _ := newTestService(store)

	_, err := svc.AddOrderItem(context.Background(), orderID, uuid.New(), 1)
	if !errors.Is(err, ErrMenuItemNotFound) {
		t.Errorf("err = %v, want ErrMenuItemNotFound", err)
	}
}

// A menu price edit after ordering must not change what was already on
// the bill.
func TestAddOrderItemPriceCaptured(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, true)
	orderID := addOrder(store, tableID, false)
	menuItemID := addMenuItem(store, "9.50")
	svc, _ := newTestService(store)

	if _, err := svc.AddOrderItem(context.Background(), orderID, menuItemID, 2); err != nil {
		t.Fatalf("AddOrderItem: %v", err)
	}

	m := store.menuItems[menuItemID]
	m.Price = DecimalToNumeric(decimal.RequireFromString("12.00"))
	store.menuItems[menuItemID] = m

	bill, err := svc.Bill(context.Background(), orderID)
	if err != nil {
		t.Fatalf("Bill: %v", err)
	}
	if want := decimal.RequireFromString("19.00"); !bill.Total.Equal(want) {
		t.Errorf("total = %s, want %s", bill.Total, want)
	}
}

func TestDeliverOrderItem(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, true)
	orderID := addOrder(store, tableID, false)
	menuItemID := addMenuItem(store, "3.00")
	svc, _ := newTestService(store)

	item, err := svc.AddOrderItem(context.Background(), orderID, menuItemID, 1)
	if err != nil {
		t.Fatalf("AddOrderItem: %v", err)
	}

	delivered, err := svc.DeliverOrderItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("DeliverOrderItem: %v", err)
	}
	if !delivered.IsDelivered {
		t.Error("item should be delivered")
	}

	// Delivering again is a no-op, not an error.
	again, err := svc.DeliverOrderItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("second DeliverOrderItem: %v", err)
	}
	if !again.IsDelivered {
		t.Error("item should stay delivered")
	}
}

func TestDeliverOrderItemFinalizedOrder(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, true)
	orderID := addOrder(store, tableID, false)
	menuItemID := addMenuItem(store, "3.00")
	svc, _ := newTestService(store)

	item, err := svc.AddOrderItem(context.Background(), orderID, menuItemID, 1)
	if err != nil {
		t.Fatalf("AddOrderItem: %v", err)
	}
	if _, err := svc.FinalizeOrder(context.Background(), orderID); err != nil {
		t.Fatalf("FinalizeOrder: %v", err)
	}

	if _, err := svc.DeliverOrderItem(context.Background(), item.ID); !errors.Is(err, ErrOrderFinalized) {
		t.Errorf("err = %v, want ErrOrderFinalized", err)
	}
}

func TestDeleteOrderItem(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, true)
	orderID := addOrder(store, tableID, false)
	menuItemID := addMenuItem(store, "3.00")
	svc, _ := newTestService(store)

	item, err := svc.AddOrderItem(context.Background(), orderID, menuItemID, 1)
	if err != nil {
		t.Fatalf("AddOrderItem: %v", err)
	}
	if err := svc.DeleteOrderItem(context.Background(), item.ID); err != nil {
		t.Fatalf("DeleteOrderItem: %v", err)
	}
	if err := svc.DeleteOrderItem(context.Background(), item.ID); !errors.Is(err, ErrOrderItemNotFound) {
		t.Errorf("err = %v, want ErrOrderItemNotFound", err)
	}
}

func TestDeleteOrderItemFinalizedOrder(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, true)
	orderID := addOrder(store, tableID, false)
	menuItemID := addMenuItem(store, "3.00")
	svc, _ := newTestService(store)

	item, err := svc.AddOrderItem(context.Background(), orderID, menuItemID, 1)
	if err != nil {
		t.Fatalf("AddOrderItem: %v", err)
	}
	if _, err := svc.FinalizeOrder(context.Background(), orderID); err != nil {
		t.Fatalf("FinalizeOrder: %v", err)
	}

	if err := svc.DeleteOrderItem(context.Background(), item.ID); !errors.Is(err, ErrOrderFinalized) {
		t.Errorf("err = %v, want ErrOrderFinalized", err)
	}
}

func TestFinalizeOrder(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, true)
	orderID := addOrder(store, tableID, false)
	svc, _ := newTestService(store)

	order, err := svc.FinalizeOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("FinalizeOrder: %v", err)
	}
	if !order.IsFinished {
		t.Error("order should be finished")
	}
	if store.tables[tableID].InUse {
		t.Error("table should be freed")
	}

	if _, err := svc.FinalizeOrder(context.Background(), orderID); !errors.Is(err, ErrOrderFinalized) {
		t.Errorf("second finalize: err = %v, want ErrOrderFinalized", err)
	}
}

// When freeing the table fails the whole transaction must abort rather
// than leaving a finished order on an occupied table.
func TestFinalizeOrderFreeTableFails(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, true)
	orderID := addOrder(store, tableID, false)
	store.failFreeTable = true
	svc, db := newTestService(store)

	if _, err := svc.FinalizeOrder(context.Background(), orderID); err == nil {
		t.Fatal("expected error")
	}
	if db.lastTx().committed {
		t.Error("transaction should not be committed")
	}
}

func TestMarkPaid(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, true)
	orderID := addOrder(store, tableID, false)
	svc, _ := newTestService(store)

	if _, err := svc.MarkPaid(context.Background(), orderID); !errors.Is(err, ErrOrderNotFinished) {
		t.Fatalf("err = %v, want ErrOrderNotFinished", err)
	}

	if _, err := svc.FinalizeOrder(context.Background(), orderID); err != nil {
		t.Fatalf("FinalizeOrder: %v", err)
	}

	order, err := svc.MarkPaid(context.Background(), orderID)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if !order.IsPaid {
		t.Error("order should be paid")
	}

	// Paying again is a no-op.
	if _, err := svc.MarkPaid(context.Background(), orderID); err != nil {
		t.Errorf("second MarkPaid: %v", err)
	}
}

func TestSwitchTable(t *testing.T) {
	store := newMockStore()
	oldTable := addTable(store, true)
	newTable := addTable(store, false)
	orderID := addOrder(store, oldTable, false)
	svc, _ := newTestService(store)

	order, err := svc.SwitchTable(context.Background(), orderID, newTable)
	if err != nil {
		t.Fatalf("SwitchTable: %v", err)
	}
	if order.TableID != newTable {
		t.Errorf("order.TableID = %s, want %s", order.TableID, newTable)
	}
	if store.tables[oldTable].InUse {
		t.Error("old table should be freed")
	}
	if !store.tables[newTable].InUse {
		t.Error("new table should be in use")
	}
}

func TestSwitchTableConflicts(t *testing.T) {
	store := newMockStore()
	oldTable := addTable(store, true)
	busyTable := addTable(store, true)
	orderID := addOrder(store, oldTable, false)
	finishedID := addOrder(store, oldTable, true)
	svc, _ := newTestService(store)

	if _, err := svc.SwitchTable(context.Background(), orderID, oldTable); !errors.Is(err, ErrSameTable) {
		t.Errorf("same table: err = %v, want ErrSameTable", err)
	}
	if _, err := svc.SwitchTable(context.Background(), orderID, busyTable); !errors.Is(err, ErrTableInUse) {
		t.Errorf("busy target: err = %v, want ErrTableInUse", err)
	}
	if _, err := svc.SwitchTable(context.Background(), orderID, uuid.New()); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("missing target: err = %v, want ErrTableNotFound", err)
	}
	if _, err := svc.SwitchTable(context.Background(), finishedID, busyTable); !errors.Is(err, ErrOrderFinalized) {
		t.Errorf("finalized order: err = %v, want ErrOrderFinalized", err)
	}
}

func TestFinalizeAllOpen(t *testing.T) {
	store := newMockStore()
	t1 := addTable(store, true)
	t2 := addTable(store, true)
	t3 := addTable(store, true)
	addOrder(store, t1, false)
	addOrder(store, t2, false)
	failing := addOrder(store, t3, false)
	store.failFinalizeFor = failing
	svc, _ := newTestService(store)

	count, err := svc.FinalizeAllOpen(context.Background())
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if err == nil {
		t.Error("expected joined error for the failing order")
	}
	if store.tables[t1].InUse || store.tables[t2].InUse {
		t.Error("tables of finalized orders should be freed")
	}
	if !store.tables[t3].InUse {
		t.Error("table of failed order should stay in use")
	}
}

func TestBill(t *testing.T) {
	store := newMockStore()
	tableID := addTable(store, true)
	orderID := addOrder(store, tableID, false)
	burger := addMenuItem(store, "9.50")
	cola := addMenuItem(store, "2.00")
	svc, _ := newTestService(store)

	if _, err := svc.AddOrderItem(context.Background(), orderID, burger, 2); err != nil {
		t.Fatalf("add burger: %v", err)
	}
	colaItem, err := svc.AddOrderItem(context.Background(), orderID, cola, 1)
	if err != nil {
		t.Fatalf("add cola: %v", err)
	}
	if _, err := svc.DeliverOrderItem(context.Background(), colaItem.ID); err != nil {
		t.Fatalf("deliver cola: %v", err)
	}

	bill, err := svc.Bill(context.Background(), orderID)
	if err != nil {
		t.Fatalf("Bill: %v", err)
	}
	if want := decimal.RequireFromString("21.00"); !bill.Total.Equal(want) {
		t.Errorf("total = %s, want %s", bill.Total, want)
	}
	if want := decimal.RequireFromString("2.00"); !bill.DeliveredTotal.Equal(want) {
		t.Errorf("delivered total = %s, want %s", bill.DeliveredTotal, want)
	}
}

func TestBillOrderNotFound(t *testing.T) {
	store := newMockStore()
	svc, _ := newTestService(store)

	if _, err := svc.Bill(context.Background(), uuid.New()); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}
