package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Section struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	CreatedAt   time.Time
}

type Table struct {
	ID          uuid.UUID
	SectionID   pgtype.UUID
	Name        string
	InUse       bool
	Description pgtype.Text
	CreatedAt   time.Time
}

type Product struct {
	ID          uuid.UUID
	Name        string
	Size        string
	Unit        string
	Description pgtype.Text
	ImageKey    pgtype.Text
	Handle      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type MenuCategory struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	ImageKey    pgtype.Text
	Handle      string
	CreatedAt   time.Time
}

type MenuItem struct {
	ID         uuid.UUID
	ProductID  uuid.UUID
	CategoryID pgtype.UUID
	Price      pgtype.Numeric
	IsActive   bool
	Handle     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Order struct {
	ID         uuid.UUID
	TableID    uuid.UUID
	IsFinished bool
	IsPaid     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type OrderItem struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	MenuItemID   uuid.UUID
	Quantity     int32
	PriceAtOrder pgtype.Numeric
	IsDelivered  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
