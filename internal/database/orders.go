package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, table_id, is_finished, is_paid, created_at, updated_at`

const createOrderSQL = `
	INSERT INTO orders (table_id)
	VALUES ($1)
	RETURNING ` + orderColumns

func (q *Queries) CreateOrder(ctx context.Context, tableID uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrderSQL, tableID))
}

const getOrderSQL = `
	SELECT ` + orderColumns + `
	FROM orders
	WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderSQL, id))
}

// getOrderForUpdateSQL locks the order row so concurrent finalize/add-item
// commands serialize on it.
const getOrderForUpdateSQL = `
	SELECT ` + orderColumns + `
	FROM orders
	WHERE id = $1
	FOR UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdateSQL, id))
}

const getOpenOrderByTableSQL = `
	SELECT ` + orderColumns + `
	FROM orders
	WHERE table_id = $1 AND is_finished = false`

// GetOpenOrderByTable returns the table's open order, if any. The
// activation transaction keeps this unique.
func (q *Queries) GetOpenOrderByTable(ctx context.Context, tableID uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOpenOrderByTableSQL, tableID))
}

// OrderSummaryRow is an order joined with its table name and bill totals
// for list views.
type OrderSummaryRow struct {
	Order
	TableName      string
	Total          pgtype.Numeric
	DeliveredTotal pgtype.Numeric
}

const orderSummarySelect = `
	SELECT o.id, o.table_id, o.is_finished, o.is_paid, o.created_at, o.updated_at, t.name,
	       COALESCE(SUM(oi.price_at_order * oi.quantity), 0) AS total,
	       COALESCE(SUM(oi.price_at_order * oi.quantity) FILTER (WHERE oi.is_delivered), 0) AS delivered_total
	FROM orders o
	JOIN tables t ON t.id = o.table_id
	LEFT JOIN order_items oi ON oi.order_id = o.id`

const listOpenOrdersSQL = orderSummarySelect + `
	WHERE o.is_finished = false
	GROUP BY o.id, t.name
	ORDER BY o.created_at`

func (q *Queries) ListOpenOrders(ctx context.Context) ([]OrderSummaryRow, error) {
	rows, err := q.db.Query(ctx, listOpenOrdersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrderSummaries(rows)
}

const listHistoricalOrdersSQL = orderSummarySelect + `
	WHERE o.is_finished = true
	GROUP BY o.id, t.name
	ORDER BY o.created_at DESC
	LIMIT $1 OFFSET $2`

type ListHistoricalOrdersParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListHistoricalOrders(ctx context.Context, arg ListHistoricalOrdersParams) ([]OrderSummaryRow, error) {
	rows, err := q.db.Query(ctx, listHistoricalOrdersSQL, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrderSummaries(rows)
}

const searchOrdersSQL = orderSummarySelect + `
	WHERE t.name ILIKE '%' || $1 || '%'
	GROUP BY o.id, t.name
	ORDER BY o.created_at DESC
	LIMIT 100`

// SearchOrders finds orders by table name.
func (q *Queries) SearchOrders(ctx context.Context, query string) ([]OrderSummaryRow, error) {
	rows, err := q.db.Query(ctx, searchOrdersSQL, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrderSummaries(rows)
}

// finalizeOrderSQL only matches open orders; zero rows means the order was
// already finalized (or never existed) and the caller distinguishes.
const finalizeOrderSQL = `
	UPDATE orders
	SET is_finished = true, updated_at = now()
	WHERE id = $1 AND is_finished = false
	RETURNING ` + orderColumns

func (q *Queries) FinalizeOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, finalizeOrderSQL, id))
}

const markOrderPaidSQL = `
	UPDATE orders
	SET is_paid = true, updated_at = now()
	WHERE id = $1 AND is_finished = true
	RETURNING ` + orderColumns

func (q *Queries) MarkOrderPaid(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, markOrderPaidSQL, id))
}

const updateOrderTableSQL = `
	UPDATE orders
	SET table_id = $2, updated_at = now()
	WHERE id = $1
	RETURNING ` + orderColumns

type UpdateOrderTableParams struct {
	ID      uuid.UUID
	TableID uuid.UUID
}

func (q *Queries) UpdateOrderTable(ctx context.Context, arg UpdateOrderTableParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderTableSQL, arg.ID, arg.TableID))
}

// --- Order items ---

const orderItemColumns = `id, order_id, menu_item_id, quantity, price_at_order, is_delivered, created_at, updated_at`

const createOrderItemSQL = `
	INSERT INTO order_items (order_id, menu_item_id, quantity, price_at_order)
	VALUES ($1, $2, $3, $4)
	RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID      uuid.UUID
	MenuItemID   uuid.UUID
	Quantity     int32
	PriceAtOrder pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItemSQL, arg.OrderID, arg.MenuItemID, arg.Quantity, arg.PriceAtOrder)
	return scanOrderItem(row)
}

// GetOrderItemForUpdateRow carries the owning order's state so item
// mutations can enforce the open-order guard under the same lock.
type GetOrderItemForUpdateRow struct {
	OrderItem
	OrderIsFinished bool
}

const getOrderItemForUpdateSQL = `
	SELECT oi.id, oi.order_id, oi.menu_item_id, oi.quantity, oi.price_at_order, oi.is_delivered,
	       oi.created_at, oi.updated_at, o.is_finished
	FROM order_items oi
	JOIN orders o ON o.id = oi.order_id
	WHERE oi.id = $1
	FOR UPDATE OF oi, o`

func (q *Queries) GetOrderItemForUpdate(ctx context.Context, id uuid.UUID) (GetOrderItemForUpdateRow, error) {
	var r GetOrderItemForUpdateRow
	err := q.db.QueryRow(ctx, getOrderItemForUpdateSQL, id).Scan(
		&r.ID, &r.OrderID, &r.MenuItemID, &r.Quantity, &r.PriceAtOrder, &r.IsDelivered,
		&r.CreatedAt, &r.UpdatedAt, &r.OrderIsFinished,
	)
	return r, err
}

const setOrderItemDeliveredSQL = `
	UPDATE order_items
	SET is_delivered = true, updated_at = now()
	WHERE id = $1
	RETURNING ` + orderItemColumns

func (q *Queries) SetOrderItemDelivered(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, setOrderItemDeliveredSQL, id))
}

const deleteOrderItemSQL = `
	DELETE FROM order_items
	WHERE id = $1
	RETURNING id`

func (q *Queries) DeleteOrderItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteOrderItemSQL, id).Scan(&deleted)
	return deleted, err
}

// OrderItemDetailRow is an order item joined with the menu item's product
// fields for display.
type OrderItemDetailRow struct {
	OrderItem
	ProductName string
	ProductSize string
	ProductUnit string
}

const orderItemDetailSelect = `
	SELECT oi.id, oi.order_id, oi.menu_item_id, oi.quantity, oi.price_at_order, oi.is_delivered,
	       oi.created_at, oi.updated_at, p.name, p.size, p.unit
	FROM order_items oi
	JOIN menu_items m ON m.id = oi.menu_item_id
	JOIN products p ON p.id = m.product_id`

const listOrderItemsByOrderSQL = orderItemDetailSelect + `
	WHERE oi.order_id = $1
	ORDER BY oi.created_at`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItemDetailRow, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrderSQL, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrderItemDetails(rows)
}

const listUndeliveredItemsSQL = orderItemDetailSelect + `
	JOIN orders o ON o.id = oi.order_id
	WHERE o.is_finished = false AND oi.is_delivered = false
	ORDER BY oi.created_at`

// ListUndeliveredItems returns the kitchen/floor queue: undelivered lines
// across all open orders.
func (q *Queries) ListUndeliveredItems(ctx context.Context) ([]OrderItemDetailRow, error) {
	rows, err := q.db.Query(ctx, listUndeliveredItemsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrderItemDetails(rows)
}

// GetOrderBillRow carries both bill views: the invoice total over all
// items and the delivered-only subtotal for the floor display.
type GetOrderBillRow struct {
	Total          pgtype.Numeric
	DeliveredTotal pgtype.Numeric
}

const getOrderBillSQL = `
	SELECT COALESCE(SUM(price_at_order * quantity), 0),
	       COALESCE(SUM(price_at_order * quantity) FILTER (WHERE is_delivered), 0)
	FROM order_items
	WHERE order_id = $1`

func (q *Queries) GetOrderBill(ctx context.Context, orderID uuid.UUID) (GetOrderBillRow, error) {
	var r GetOrderBillRow
	err := q.db.QueryRow(ctx, getOrderBillSQL, orderID).Scan(&r.Total, &r.DeliveredTotal)
	return r, err
}

// --- scan helpers ---

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.TableID, &o.IsFinished, &o.IsPaid, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func scanOrderItem(row interface{ Scan(dest ...any) error }) (OrderItem, error) {
	var oi OrderItem
	err := row.Scan(&oi.ID, &oi.OrderID, &oi.MenuItemID, &oi.Quantity, &oi.PriceAtOrder, &oi.IsDelivered, &oi.CreatedAt, &oi.UpdatedAt)
	return oi, err
}

func collectOrderSummaries(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]OrderSummaryRow, error) {
	var orders []OrderSummaryRow
	for rows.Next() {
		var o OrderSummaryRow
		if err := rows.Scan(&o.ID, &o.TableID, &o.IsFinished, &o.IsPaid, &o.CreatedAt, &o.UpdatedAt,
			&o.TableName, &o.Total, &o.DeliveredTotal); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func collectOrderItemDetails(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]OrderItemDetailRow, error) {
	var items []OrderItemDetailRow
	for rows.Next() {
		var it OrderItemDetailRow
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Quantity, &it.PriceAtOrder,
			&it.IsDelivered, &it.CreatedAt, &it.UpdatedAt, &it.ProductName, &it.ProductSize, &it.ProductUnit); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
