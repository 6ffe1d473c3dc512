package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const sectionColumns = `id, name, description, created_at`

const listSectionsSQL = `
	SELECT ` + sectionColumns + `
	FROM sections
	ORDER BY name`

func (q *Queries) ListSections(ctx context.Context) ([]Section, error) {
	rows, err := q.db.Query(ctx, listSectionsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []Section
	for rows.Next() {
		var s Section
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt); err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

const getSectionSQL = `
	SELECT ` + sectionColumns + `
	FROM sections
	WHERE id = $1`

func (q *Queries) GetSection(ctx context.Context, id uuid.UUID) (Section, error) {
	var s Section
	err := q.db.QueryRow(ctx, getSectionSQL, id).Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt)
	return s, err
}

const createSectionSQL = `
	INSERT INTO sections (name, description)
	VALUES ($1, $2)
	RETURNING ` + sectionColumns

type CreateSectionParams struct {
	Name        string
	Description pgtype.Text
}

func (q *Queries) CreateSection(ctx context.Context, arg CreateSectionParams) (Section, error) {
	var s Section
	err := q.db.QueryRow(ctx, createSectionSQL, arg.Name, arg.Description).
		Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt)
	return s, err
}

const updateSectionSQL = `
	UPDATE sections
	SET name = $2, description = $3
	WHERE id = $1
	RETURNING ` + sectionColumns

type UpdateSectionParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
}

func (q *Queries) UpdateSection(ctx context.Context, arg UpdateSectionParams) (Section, error) {
	var s Section
	err := q.db.QueryRow(ctx, updateSectionSQL, arg.ID, arg.Name, arg.Description).
		Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt)
	return s, err
}

const deleteSectionSQL = `
	DELETE FROM sections
	WHERE id = $1
	RETURNING id`

func (q *Queries) DeleteSection(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteSectionSQL, id).Scan(&deleted)
	return deleted, err
}
