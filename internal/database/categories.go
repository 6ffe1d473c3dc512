package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const categoryColumns = `id, name, description, image_key, handle, created_at`

const listCategoriesSQL = `
	SELECT ` + categoryColumns + `
	FROM menu_categories
	ORDER BY name`

func (q *Queries) ListCategories(ctx context.Context) ([]MenuCategory, error) {
	rows, err := q.db.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []MenuCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const getCategorySQL = `
	SELECT ` + categoryColumns + `
	FROM menu_categories
	WHERE id = $1`

func (q *Queries) GetCategory(ctx context.Context, id uuid.UUID) (MenuCategory, error) {
	return scanCategory(q.db.QueryRow(ctx, getCategorySQL, id))
}

const getCategoryByHandleSQL = `
	SELECT ` + categoryColumns + `
	FROM menu_categories
	WHERE handle = $1`

func (q *Queries) GetCategoryByHandle(ctx context.Context, handle string) (MenuCategory, error) {
	return scanCategory(q.db.QueryRow(ctx, getCategoryByHandleSQL, handle))
}

const createCategorySQL = `
	INSERT INTO menu_categories (name, description, handle)
	VALUES ($1, $2, $3)
	RETURNING ` + categoryColumns

type CreateCategoryParams struct {
	Name        string
	Description pgtype.Text
	Handle      string
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (MenuCategory, error) {
	row := q.db.QueryRow(ctx, createCategorySQL, arg.Name, arg.Description, arg.Handle)
	return scanCategory(row)
}

const updateCategorySQL = `
	UPDATE menu_categories
	SET name = $2, description = $3
	WHERE id = $1
	RETURNING ` + categoryColumns

type UpdateCategoryParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (MenuCategory, error) {
	return scanCategory(q.db.QueryRow(ctx, updateCategorySQL, arg.ID, arg.Name, arg.Description))
}

const setCategoryImageSQL = `
	UPDATE menu_categories
	SET image_key = $2
	WHERE id = $1
	RETURNING ` + categoryColumns

type SetCategoryImageParams struct {
	ID       uuid.UUID
	ImageKey pgtype.Text
}

func (q *Queries) SetCategoryImage(ctx context.Context, arg SetCategoryImageParams) (MenuCategory, error) {
	return scanCategory(q.db.QueryRow(ctx, setCategoryImageSQL, arg.ID, arg.ImageKey))
}

const deleteCategorySQL = `
	DELETE FROM menu_categories
	WHERE id = $1
	RETURNING id`

func (q *Queries) DeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteCategorySQL, id).Scan(&deleted)
	return deleted, err
}

func scanCategory(row interface{ Scan(dest ...any) error }) (MenuCategory, error) {
	var c MenuCategory
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ImageKey, &c.Handle, &c.CreatedAt)
	return c, err
}
