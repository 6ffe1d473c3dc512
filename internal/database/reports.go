package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Report queries aggregate over finalized orders only: an open order's
// bill is still mutating and does not count as revenue yet.

type DateRangeParams struct {
	StartDate time.Time
	EndDate   time.Time // exclusive
}

const getDailyRevenueSQL = `
	SELECT DATE(o.created_at) AS sale_date,
	       COUNT(DISTINCT o.id) AS order_count,
	       COALESCE(SUM(oi.price_at_order * oi.quantity), 0) AS total_revenue
	FROM orders o
	LEFT JOIN order_items oi ON oi.order_id = o.id
	WHERE o.is_finished = true
	  AND o.created_at >= $1 AND o.created_at < $2
	GROUP BY DATE(o.created_at)
	ORDER BY sale_date`

type GetDailyRevenueRow struct {
	SaleDate     pgtype.Date
	OrderCount   int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetDailyRevenue(ctx context.Context, arg DateRangeParams) ([]GetDailyRevenueRow, error) {
	rows, err := q.db.Query(ctx, getDailyRevenueSQL, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GetDailyRevenueRow
	for rows.Next() {
		var r GetDailyRevenueRow
		if err := rows.Scan(&r.SaleDate, &r.OrderCount, &r.TotalRevenue); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

const getProductSalesSQL = `
	SELECT p.id, p.name, p.size, p.unit,
	       SUM(oi.quantity) AS quantity_sold,
	       SUM(oi.price_at_order * oi.quantity) AS total_revenue
	FROM order_items oi
	JOIN orders o ON o.id = oi.order_id
	JOIN menu_items m ON m.id = oi.menu_item_id
	JOIN products p ON p.id = m.product_id
	WHERE o.is_finished = true
	  AND o.created_at >= $1 AND o.created_at < $2
	GROUP BY p.id, p.name, p.size, p.unit
	ORDER BY quantity_sold DESC
	LIMIT $3`

type GetProductSalesParams struct {
	StartDate time.Time
	EndDate   time.Time
	Limit     int32
}

type GetProductSalesRow struct {
	ProductID    uuid.UUID
	ProductName  string
	ProductSize  string
	ProductUnit  string
	QuantitySold int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetProductSales(ctx context.Context, arg GetProductSalesParams) ([]GetProductSalesRow, error) {
	rows, err := q.db.Query(ctx, getProductSalesSQL, arg.StartDate, arg.EndDate, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GetProductSalesRow
	for rows.Next() {
		var r GetProductSalesRow
		if err := rows.Scan(&r.ProductID, &r.ProductName, &r.ProductSize, &r.ProductUnit, &r.QuantitySold, &r.TotalRevenue); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

const getHourlyOrderCountsSQL = `
	SELECT CAST(EXTRACT(HOUR FROM o.created_at) AS INTEGER) AS hour,
	       COUNT(*) AS order_count
	FROM orders o
	WHERE o.is_finished = true
	  AND o.created_at >= $1 AND o.created_at < $2
	GROUP BY hour
	ORDER BY hour`

type GetHourlyOrderCountsRow struct {
	Hour       int32
	OrderCount int64
}

func (q *Queries) GetHourlyOrderCounts(ctx context.Context, arg DateRangeParams) ([]GetHourlyOrderCountsRow, error) {
	rows, err := q.db.Query(ctx, getHourlyOrderCountsSQL, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GetHourlyOrderCountsRow
	for rows.Next() {
		var r GetHourlyOrderCountsRow
		if err := rows.Scan(&r.Hour, &r.OrderCount); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

const getCategoryRevenueSQL = `
	SELECT c.id, COALESCE(c.name, 'Uncategorized') AS category_name,
	       SUM(oi.price_at_order * oi.quantity) AS total_revenue
	FROM order_items oi
	JOIN orders o ON o.id = oi.order_id
	JOIN menu_items m ON m.id = oi.menu_item_id
	LEFT JOIN menu_categories c ON c.id = m.category_id
	WHERE o.is_finished = true
	  AND o.created_at >= $1 AND o.created_at < $2
	GROUP BY c.id, c.name
	ORDER BY total_revenue DESC`

type GetCategoryRevenueRow struct {
	CategoryID   pgtype.UUID
	CategoryName string
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetCategoryRevenue(ctx context.Context, arg DateRangeParams) ([]GetCategoryRevenueRow, error) {
	rows, err := q.db.Query(ctx, getCategoryRevenueSQL, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GetCategoryRevenueRow
	for rows.Next() {
		var r GetCategoryRevenueRow
		if err := rows.Scan(&r.CategoryID, &r.CategoryName, &r.TotalRevenue); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
