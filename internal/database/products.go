package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, name, size, unit, description, image_key, handle, created_at, updated_at`

const searchProductsSQL = `
	SELECT ` + productColumns + `
	FROM products
	WHERE $1::text IS NULL
	   OR name ILIKE '%' || $1 || '%'
	   OR size ILIKE '%' || $1 || '%'
	   OR unit ILIKE '%' || $1 || '%'
	ORDER BY name, size`

// SearchProducts lists products matching the free-text query across
// name, size and unit. A NULL query lists everything.
func (q *Queries) SearchProducts(ctx context.Context, query pgtype.Text) ([]Product, error) {
	rows, err := q.db.Query(ctx, searchProductsSQL, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const getProductSQL = `
	SELECT ` + productColumns + `
	FROM products
	WHERE id = $1`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductSQL, id))
}

const getProductByHandleSQL = `
	SELECT ` + productColumns + `
	FROM products
	WHERE handle = $1`

func (q *Queries) GetProductByHandle(ctx context.Context, handle string) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductByHandleSQL, handle))
}

const createProductSQL = `
	INSERT INTO products (name, size, unit, description, handle)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING ` + productColumns

type CreateProductParams struct {
	Name        string
	Size        string
	Unit        string
	Description pgtype.Text
	Handle      string
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProductSQL, arg.Name, arg.Size, arg.Unit, arg.Description, arg.Handle)
	return scanProduct(row)
}

// updateProductSQL never rewrites the handle: it is derived once at first
// save and immutable thereafter.
const updateProductSQL = `
	UPDATE products
	SET name = $2, size = $3, unit = $4, description = $5, updated_at = now()
	WHERE id = $1
	RETURNING ` + productColumns

type UpdateProductParams struct {
	ID          uuid.UUID
	Name        string
	Size        string
	Unit        string
	Description pgtype.Text
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, updateProductSQL, arg.ID, arg.Name, arg.Size, arg.Unit, arg.Description)
	return scanProduct(row)
}

const setProductImageSQL = `
	UPDATE products
	SET image_key = $2, updated_at = now()
	WHERE id = $1
	RETURNING ` + productColumns

type SetProductImageParams struct {
	ID       uuid.UUID
	ImageKey pgtype.Text
}

func (q *Queries) SetProductImage(ctx context.Context, arg SetProductImageParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, setProductImageSQL, arg.ID, arg.ImageKey))
}

const deleteProductSQL = `
	DELETE FROM products
	WHERE id = $1
	RETURNING id`

// DeleteProduct cascades to the product's menu item (they are one entity
// split in two).
func (q *Queries) DeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteProductSQL, id).Scan(&deleted)
	return deleted, err
}

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Size, &p.Unit, &p.Description, &p.ImageKey, &p.Handle, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
