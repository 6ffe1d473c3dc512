package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemJoinColumns = `
	m.id, m.product_id, m.category_id, m.price, m.is_active, m.handle, m.created_at, m.updated_at,
	p.name, p.size, p.unit, p.image_key`

// MenuItemRow is a menu item joined with its underlying product's
// identifying fields, which every listing needs for display.
type MenuItemRow struct {
	MenuItem
	ProductName     string
	ProductSize     string
	ProductUnit     string
	ProductImageKey pgtype.Text
}

const listMenuItemsSQL = `
	SELECT ` + menuItemJoinColumns + `
	FROM menu_items m
	JOIN products p ON p.id = m.product_id
	WHERE $1::text IS NULL
	   OR p.name ILIKE '%' || $1 || '%'
	   OR p.size ILIKE '%' || $1 || '%'
	   OR p.unit ILIKE '%' || $1 || '%'
	ORDER BY p.name, p.size`

// ListMenuItems lists menu items, optionally filtered by a free-text
// query over the underlying product.
func (q *Queries) ListMenuItems(ctx context.Context, query pgtype.Text) ([]MenuItemRow, error) {
	rows, err := q.db.Query(ctx, listMenuItemsSQL, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMenuItemRows(rows)
}

const listActiveMenuItemsByCategorySQL = `
	SELECT ` + menuItemJoinColumns + `
	FROM menu_items m
	JOIN products p ON p.id = m.product_id
	WHERE m.is_active = true
	  AND ($1::uuid IS NULL AND m.category_id IS NULL OR m.category_id = $1)
	ORDER BY p.name, p.size`

// ListActiveMenuItemsByCategory lists orderable items for one category;
// a NULL category id selects uncategorized items.
func (q *Queries) ListActiveMenuItemsByCategory(ctx context.Context, categoryID pgtype.UUID) ([]MenuItemRow, error) {
	rows, err := q.db.Query(ctx, listActiveMenuItemsByCategorySQL, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMenuItemRows(rows)
}

const listActiveMenuItemsSQL = `
	SELECT ` + menuItemJoinColumns + `
	FROM menu_items m
	JOIN products p ON p.id = m.product_id
	WHERE m.is_active = true
	ORDER BY m.category_id NULLS LAST, p.name, p.size`

func (q *Queries) ListActiveMenuItems(ctx context.Context) ([]MenuItemRow, error) {
	rows, err := q.db.Query(ctx, listActiveMenuItemsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMenuItemRows(rows)
}

const getMenuItemSQL = `
	SELECT ` + menuItemJoinColumns + `
	FROM menu_items m
	JOIN products p ON p.id = m.product_id
	WHERE m.id = $1`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItemRow, error) {
	return scanMenuItemRow(q.db.QueryRow(ctx, getMenuItemSQL, id))
}

// getMenuItemForOrderSQL only matches active items: an inactive item is
// invisible to the ordering flow, indistinguishable from a missing one.
const getMenuItemForOrderSQL = `
	SELECT m.id, m.price
	FROM menu_items m
	WHERE m.id = $1 AND m.is_active = true`

type GetMenuItemForOrderRow struct {
	ID    uuid.UUID
	Price pgtype.Numeric
}

func (q *Queries) GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (GetMenuItemForOrderRow, error) {
	var r GetMenuItemForOrderRow
	err := q.db.QueryRow(ctx, getMenuItemForOrderSQL, id).Scan(&r.ID, &r.Price)
	return r, err
}

const createMenuItemSQL = `
	INSERT INTO menu_items (product_id, category_id, price, handle)
	VALUES ($1, $2, $3, $4)
	RETURNING id, product_id, category_id, price, is_active, handle, created_at, updated_at`

type CreateMenuItemParams struct {
	ProductID  uuid.UUID
	CategoryID pgtype.UUID
	Price      pgtype.Numeric
	Handle     string
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	var m MenuItem
	err := q.db.QueryRow(ctx, createMenuItemSQL, arg.ProductID, arg.CategoryID, arg.Price, arg.Handle).
		Scan(&m.ID, &m.ProductID, &m.CategoryID, &m.Price, &m.IsActive, &m.Handle, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const updateMenuItemSQL = `
	UPDATE menu_items
	SET category_id = $2, price = $3, is_active = $4, updated_at = now()
	WHERE id = $1
	RETURNING id, product_id, category_id, price, is_active, handle, created_at, updated_at`

type UpdateMenuItemParams struct {
	ID         uuid.UUID
	CategoryID pgtype.UUID
	Price      pgtype.Numeric
	IsActive   bool
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	var m MenuItem
	err := q.db.QueryRow(ctx, updateMenuItemSQL, arg.ID, arg.CategoryID, arg.Price, arg.IsActive).
		Scan(&m.ID, &m.ProductID, &m.CategoryID, &m.Price, &m.IsActive, &m.Handle, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const deleteMenuItemSQL = `
	DELETE FROM menu_items
	WHERE id = $1
	RETURNING id`

func (q *Queries) DeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteMenuItemSQL, id).Scan(&deleted)
	return deleted, err
}

func scanMenuItemRow(row interface{ Scan(dest ...any) error }) (MenuItemRow, error) {
	var m MenuItemRow
	err := row.Scan(
		&m.ID, &m.ProductID, &m.CategoryID, &m.Price, &m.IsActive, &m.Handle, &m.CreatedAt, &m.UpdatedAt,
		&m.ProductName, &m.ProductSize, &m.ProductUnit, &m.ProductImageKey,
	)
	return m, err
}

func collectMenuItemRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]MenuItemRow, error) {
	var items []MenuItemRow
	for rows.Next() {
		m, err := scanMenuItemRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
