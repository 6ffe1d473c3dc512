package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/bartab-pos/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the order service.
var (
	ErrTableNotFound     = errors.New("table not found")
	ErrTableInUse        = errors.New("table is already in use")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderFinalized    = errors.New("order is finalized")
	ErrOrderNotFinished  = errors.New("order is not finalized yet")
	ErrOrderItemNotFound = errors.New("order item not found")
	ErrMenuItemNotFound  = errors.New("menu item not found or inactive")
	ErrInvalidQuantity   = errors.New("quantity must be >= 1")
	ErrSameTable         = errors.New("order is already on that table")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order lifecycle.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.Table, error)
	SetTableInUse(ctx context.Context, arg database.SetTableInUseParams) (database.Table, error)
	CreateOrder(ctx context.Context, tableID uuid.UUID) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	FinalizeOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	MarkOrderPaid(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderTable(ctx context.Context, arg database.UpdateOrderTableParams) (database.Order, error)
	ListOpenOrders(ctx context.Context) ([]database.OrderSummaryRow, error)
	GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (database.GetMenuItemForOrderRow, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrderItemForUpdate(ctx context.Context, id uuid.UUID) (database.GetOrderItemForUpdateRow, error)
	SetOrderItemDelivered(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	GetOrderBill(ctx context.Context, orderID uuid.UUID) (database.GetOrderBillRow, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// OrderService owns the order/table lifecycle. Every multi-entity
// transition runs in one transaction with the affected rows locked, and
// all state preconditions are re-checked under those locks.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService. store handles reads outside
// transactions; newStore builds transaction-bound stores.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, store: store, newStore: newStore}
}

// Bill is an order's computed totals. Total covers every line (the
// invoice view); DeliveredTotal covers delivered lines only (the floor
// view).
type Bill struct {
	Total          decimal.Decimal
	DeliveredTotal decimal.Decimal
}

// ActivateTable opens a new order on a free table, marking it in use.
// The in_use flag is re-read under a row lock so two concurrent
// activations on the same table cannot both succeed.
func (s *OrderService) ActivateTable(ctx context.Context, tableID uuid.UUID) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTableForUpdate(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}
	if table.InUse {
		return nil, ErrTableInUse
	}

	if _, err := store.SetTableInUse(ctx, database.SetTableInUseParams{ID: tableID, InUse: true}); err != nil {
		return nil, fmt.Errorf("set table in use: %w", err)
	}

	order, err := store.CreateOrder(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &order, nil
}

// AddOrderItem appends a line to an open order, capturing the menu item's
// current price as price_at_order. Later price edits never touch it.
func (s *OrderService) AddOrderItem(ctx context.Context, orderID, menuItemID uuid.UUID, quantity int32) (*database.OrderItem, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.IsFinished {
		return nil, ErrOrderFinalized
	}

	menuItem, err := store.GetMenuItemForOrder(ctx, menuItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("get menu item: %w", err)
	}

	item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
		OrderID:      orderID,
		MenuItemID:   menuItemID,
		Quantity:     quantity,
		PriceAtOrder: menuItem.Price,
	})
	if err != nil {
		return nil, fmt.Errorf("create order item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &item, nil
}

// DeliverOrderItem marks a line delivered. Idempotent: delivering an
// already-delivered line is a no-op. Rejected once the order is finalized.
func (s *OrderService) DeliverOrderItem(ctx context.Context, itemID uuid.UUID) (*database.OrderItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	row, err := store.GetOrderItemForUpdate(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderItemNotFound
		}
		return nil, fmt.Errorf("get order item: %w", err)
	}
	if row.OrderIsFinished {
		return nil, ErrOrderFinalized
	}

	item := row.OrderItem
	if !item.IsDelivered {
		item, err = store.SetOrderItemDelivered(ctx, itemID)
		if err != nil {
			return nil, fmt.Errorf("set delivered: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &item, nil
}

// DeleteOrderItem removes a line permanently. Only allowed while the
// owning order is open, matching AddOrderItem's guard.
func (s *OrderService) DeleteOrderItem(ctx context.Context, itemID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	row, err := store.GetOrderItemForUpdate(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderItemNotFound
		}
		return fmt.Errorf("get order item: %w", err)
	}
	if row.OrderIsFinished {
		return ErrOrderFinalized
	}

	if _, err := store.DeleteOrderItem(ctx, itemID); err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}

	return tx.Commit(ctx)
}

// FinalizeOrder closes an order for item mutation and frees its table.
// Both writes happen in one transaction: a finished order whose table
// still reads in_use must never be observable.
func (s *OrderService) FinalizeOrder(ctx context.Context, orderID uuid.UUID) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.IsFinished {
		return nil, ErrOrderFinalized
	}

	if _, err := store.GetTableForUpdate(ctx, order.TableID); err != nil {
		return nil, fmt.Errorf("lock table: %w", err)
	}

	finalized, err := store.FinalizeOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("finalize order: %w", err)
	}

	if _, err := store.SetTableInUse(ctx, database.SetTableInUseParams{ID: order.TableID, InUse: false}); err != nil {
		return nil, fmt.Errorf("free table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &finalized, nil
}

// MarkPaid records payment on a finalized order. Idempotent for
// already-paid orders.
func (s *OrderService) MarkPaid(ctx context.Context, orderID uuid.UUID) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !order.IsFinished {
		return nil, ErrOrderNotFinished
	}

	if !order.IsPaid {
		order, err = store.MarkOrderPaid(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("mark paid: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &order, nil
}

// SwitchTable moves an open order to a free table: three writes, one
// transaction. Both table rows are locked in a deterministic order so two
// concurrent switches cannot deadlock.
func (s *OrderService) SwitchTable(ctx context.Context, orderID, newTableID uuid.UUID) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.IsFinished {
		return nil, ErrOrderFinalized
	}
	if order.TableID == newTableID {
		return nil, ErrSameTable
	}

	var newTable database.Table
	for _, id := range lockOrdered(order.TableID, newTableID) {
		t, err := store.GetTableForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) && id == newTableID {
				return nil, ErrTableNotFound
			}
			return nil, fmt.Errorf("lock table: %w", err)
		}
		if id == newTableID {
			newTable = t
		}
	}
	if newTable.InUse {
		return nil, ErrTableInUse
	}

	if _, err := store.SetTableInUse(ctx, database.SetTableInUseParams{ID: order.TableID, InUse: false}); err != nil {
		return nil, fmt.Errorf("free old table: %w", err)
	}
	if _, err := store.SetTableInUse(ctx, database.SetTableInUseParams{ID: newTableID, InUse: true}); err != nil {
		return nil, fmt.Errorf("occupy new table: %w", err)
	}

	moved, err := store.UpdateOrderTable(ctx, database.UpdateOrderTableParams{ID: orderID, TableID: newTableID})
	if err != nil {
		return nil, fmt.Errorf("update order table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &moved, nil
}

// FinalizeAllOpen finalizes every open order for end-of-day close-out.
// Each order is its own transaction: one failure does not abort the rest.
// Returns the count finalized and the joined per-order failures, if any.
func (s *OrderService) FinalizeAllOpen(ctx context.Context) (int, error) {
	open, err := s.store.ListOpenOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list open orders: %w", err)
	}

	var count int
	var errs []error
	for _, o := range open {
		if _, err := s.FinalizeOrder(ctx, o.ID); err != nil {
			// Already finalized by a racing command still counts as closed.
			if errors.Is(err, ErrOrderFinalized) {
				count++
				continue
			}
			errs = append(errs, fmt.Errorf("order %s: %w", o.ID, err))
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}

// Bill computes both bill views for an order.
func (s *OrderService) Bill(ctx context.Context, orderID uuid.UUID) (Bill, error) {
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, ErrOrderNotFound
		}
		return Bill{}, fmt.Errorf("get order: %w", err)
	}

	row, err := s.store.GetOrderBill(ctx, orderID)
	if err != nil {
		return Bill{}, fmt.Errorf("get order bill: %w", err)
	}
	return Bill{
		Total:          NumericToDecimal(row.Total),
		DeliveredTotal: NumericToDecimal(row.DeliveredTotal),
	}, nil
}

// lockOrdered returns the two table ids sorted by byte order, the fixed
// locking order for multi-table transactions.
func lockOrdered(a, b uuid.UUID) [2]uuid.UUID {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return [2]uuid.UUID{a, b}
	}
	return [2]uuid.UUID{b, a}
}

// --- Helpers ---

// NumericToDecimal converts a pgtype.Numeric to a decimal, treating
// invalid values as zero.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecimalToNumeric converts a decimal to a pgtype.Numeric with two
// fraction digits.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
