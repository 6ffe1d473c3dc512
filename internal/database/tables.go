package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, section_id, name, in_use, description, created_at`

const listTablesSQL = `
	SELECT t.id, t.section_id, t.name, t.in_use, t.description, t.created_at, s.name
	FROM tables t
	LEFT JOIN sections s ON s.id = t.section_id
	WHERE ($1::boolean IS NULL OR t.in_use = $1)
	  AND ($2::uuid IS NULL OR t.section_id = $2)
	ORDER BY s.name NULLS LAST, t.name`

type ListTablesParams struct {
	InUse     pgtype.Bool
	SectionID pgtype.UUID
}

type ListTablesRow struct {
	Table
	SectionName pgtype.Text
}

func (q *Queries) ListTables(ctx context.Context, arg ListTablesParams) ([]ListTablesRow, error) {
	rows, err := q.db.Query(ctx, listTablesSQL, arg.InUse, arg.SectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []ListTablesRow
	for rows.Next() {
		var t ListTablesRow
		if err := rows.Scan(&t.ID, &t.SectionID, &t.Name, &t.InUse, &t.Description, &t.CreatedAt, &t.SectionName); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

const getTableSQL = `
	SELECT ` + tableColumns + `
	FROM tables
	WHERE id = $1`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTableSQL, id))
}

// getTableForUpdateSQL locks the table row for the rest of the transaction.
// Every occupancy transition re-reads in_use under this lock instead of
// trusting a value read earlier in the request.
const getTableForUpdateSQL = `
	SELECT ` + tableColumns + `
	FROM tables
	WHERE id = $1
	FOR UPDATE`

func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, getTableForUpdateSQL, id))
}

const createTableSQL = `
	INSERT INTO tables (section_id, name, description)
	VALUES ($1, $2, $3)
	RETURNING ` + tableColumns

type CreateTableParams struct {
	SectionID   pgtype.UUID
	Name        string
	Description pgtype.Text
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, createTableSQL, arg.SectionID, arg.Name, arg.Description))
}

// updateTableSQL deliberately never touches in_use: occupancy is owned by
// the order lifecycle, not the table edit form.
const updateTableSQL = `
	UPDATE tables
	SET section_id = $2, name = $3, description = $4
	WHERE id = $1
	RETURNING ` + tableColumns

type UpdateTableParams struct {
	ID          uuid.UUID
	SectionID   pgtype.UUID
	Name        string
	Description pgtype.Text
}

func (q *Queries) UpdateTable(ctx context.Context, arg UpdateTableParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, updateTableSQL, arg.ID, arg.SectionID, arg.Name, arg.Description))
}

const deleteTableSQL = `
	DELETE FROM tables
	WHERE id = $1
	RETURNING id`

// DeleteTable fails with a foreign key violation when the table has order
// history; callers surface that as a conflict rather than cascading.
func (q *Queries) DeleteTable(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteTableSQL, id).Scan(&deleted)
	return deleted, err
}

const setTableInUseSQL = `
	UPDATE tables
	SET in_use = $2
	WHERE id = $1
	RETURNING ` + tableColumns

type SetTableInUseParams struct {
	ID    uuid.UUID
	InUse bool
}

func (q *Queries) SetTableInUse(ctx context.Context, arg SetTableInUseParams) (Table, error) {
	return scanTable(q.db.QueryRow(ctx, setTableInUseSQL, arg.ID, arg.InUse))
}

func scanTable(row interface{ Scan(dest ...any) error }) (Table, error) {
	var t Table
	err := row.Scan(&t.ID, &t.SectionID, &t.Name, &t.InUse, &t.Description, &t.CreatedAt)
	return t, err
}
