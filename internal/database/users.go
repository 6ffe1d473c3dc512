package database

import (
	"context"

	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, full_name, role, is_active, created_at, updated_at`

const createUserSQL = `
	INSERT INTO users (email, password_hash, full_name, role)
	VALUES ($1, $2, $3, $4)
	RETURNING ` + userColumns

type CreateUserParams struct {
	Email        string
	PasswordHash string
	FullName     string
	Role         string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUserSQL, arg.Email, arg.PasswordHash, arg.FullName, arg.Role)
	return scanUser(row)
}

const getUserByEmailSQL = `
	SELECT ` + userColumns + `
	FROM users
	WHERE email = $1 AND is_active = true`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmailSQL, email))
}

const getUserSQL = `
	SELECT ` + userColumns + `
	FROM users
	WHERE id = $1`

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserSQL, id))
}

const listUsersSQL = `
	SELECT ` + userColumns + `
	FROM users
	WHERE is_active = true
	ORDER BY full_name`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const updateUserSQL = `
	UPDATE users
	SET email = $2, full_name = $3, role = $4, updated_at = now()
	WHERE id = $1 AND is_active = true
	RETURNING ` + userColumns

type UpdateUserParams struct {
	ID       uuid.UUID
	Email    string
	FullName string
	Role     string
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, updateUserSQL, arg.ID, arg.Email, arg.FullName, arg.Role)
	return scanUser(row)
}

const softDeleteUserSQL = `
	UPDATE users
	SET is_active = false, updated_at = now()
	WHERE id = $1 AND is_active = true
	RETURNING id`

func (q *Queries) SoftDeleteUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteUserSQL, id).Scan(&deleted)
	return deleted, err
}

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
