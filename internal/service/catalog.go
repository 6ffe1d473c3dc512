package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/bartab-pos/api/internal/blob"
	"github.com/bartab-pos/api/internal/database"
	"github.com/bartab-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the catalog service.
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrMenuItemNotExists = errors.New("menu item does not exist")
	ErrDuplicateProduct  = errors.New("product with this name, unit and size already exists")
	ErrDuplicateCategory = errors.New("category with this name already exists")
	ErrMenuItemExists    = errors.New("product is already on the menu")
	ErrInvalidUnit       = errors.New("invalid unit")
	ErrInvalidPrice      = errors.New("price must be greater than zero")
	ErrInvalidImageType  = errors.New("image must be a .jpg, .jpeg or .png file")
	ErrImageTooLarge     = errors.New("image exceeds the 2 MiB limit")
)

// MaxImageSize caps uploaded images at 2 MiB.
const MaxImageSize = 2 << 20

const imageURLExpiry = 15 * time.Minute

var imageContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// CatalogStore defines the DB methods needed by the catalog.
// Satisfied by *database.Queries.
type CatalogStore interface {
	SearchProducts(ctx context.Context, query pgtype.Text) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	GetProductByHandle(ctx context.Context, handle string) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	SetProductImage(ctx context.Context, arg database.SetProductImageParams) (database.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error)

	ListCategories(ctx context.Context) ([]database.MenuCategory, error)
	GetCategory(ctx context.Context, id uuid.UUID) (database.MenuCategory, error)
	CreateCategory(ctx context.Context, arg database.CreateCategoryParams) (database.MenuCategory, error)
	UpdateCategory(ctx context.Context, arg database.UpdateCategoryParams) (database.MenuCategory, error)
	SetCategoryImage(ctx context.Context, arg database.SetCategoryImageParams) (database.MenuCategory, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error)

	ListMenuItems(ctx context.Context, query pgtype.Text) ([]database.MenuItemRow, error)
	ListActiveMenuItems(ctx context.Context) ([]database.MenuItemRow, error)
	ListActiveMenuItemsByCategory(ctx context.Context, categoryID pgtype.UUID) ([]database.MenuItemRow, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItemRow, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// CatalogService manages products, categories and menu items, including
// their images.
type CatalogService struct {
	store CatalogStore
	blobs blob.Store
}

func NewCatalogService(store CatalogStore, blobs blob.Store) *CatalogService {
	return &CatalogService{store: store, blobs: blobs}
}

type CreateProductInput struct {
	Name        string
	Size        string
	Unit        string
	Description string
}

// CreateProduct registers a product. The handle is derived from
// name/size/unit once and never changes afterwards.
func (s *CatalogService) CreateProduct(ctx context.Context, in CreateProductInput) (*database.Product, error) {
	if !enum.IsValidUnit(in.Unit) {
		return nil, ErrInvalidUnit
	}

	p, err := s.store.CreateProduct(ctx, database.CreateProductParams{
		Name:        in.Name,
		Size:        in.Size,
		Unit:        in.Unit,
		Description: textOrNull(in.Description),
		Handle:      slug.Make(in.Name + " " + in.Size + " " + in.Unit),
	})
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, ErrDuplicateProduct
		}
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &p, nil
}

type UpdateProductInput struct {
	Name        string
	Size        string
	Unit        string
	Description string
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, in UpdateProductInput) (*database.Product, error) {
	if !enum.IsValidUnit(in.Unit) {
		return nil, ErrInvalidUnit
	}

	p, err := s.store.UpdateProduct(ctx, database.UpdateProductParams{
		ID:          id,
		Name:        in.Name,
		Size:        in.Size,
		Unit:        in.Unit,
		Description: textOrNull(in.Description),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		if database.IsUniqueViolation(err, "") {
			return nil, ErrDuplicateProduct
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return &p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// SaveProductImage validates and uploads an image, then records its key
// on the product. The upload happens first so a failed DB write never
// leaves a dangling key; the orphaned object is removed best-effort.
func (s *CatalogService) SaveProductImage(ctx context.Context, id uuid.UUID, filename string, r io.Reader, size int64) (*database.Product, error) {
	contentType, err := validateImage(filename, size)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetProduct(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	key := blob.ImageKey("products", id, filename)
	if err := s.blobs.Put(ctx, key, r, size, contentType); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	p, err := s.store.SetProductImage(ctx, database.SetProductImageParams{
		ID:       id,
		ImageKey: pgtype.Text{String: key, Valid: true},
	})
	if err != nil {
		_ = s.blobs.Remove(ctx, key)
		return nil, fmt.Errorf("record image key: %w", err)
	}
	return &p, nil
}

// ImageURL resolves a stored image key to a presigned URL. An empty key
// yields an empty URL.
func (s *CatalogService) ImageURL(ctx context.Context, imageKey pgtype.Text) (string, error) {
	if !imageKey.Valid || imageKey.String == "" {
		return "", nil
	}
	return s.blobs.PresignedGetURL(ctx, imageKey.String, imageURLExpiry)
}

func (s *CatalogService) CreateCategory(ctx context.Context, name, description string) (*database.MenuCategory, error) {
	c, err := s.store.CreateCategory(ctx, database.CreateCategoryParams{
		Name:        name,
		Description: textOrNull(description),
		Handle:      slug.Make(name),
	})
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, ErrDuplicateCategory
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uuid.UUID, name, description string) (*database.MenuCategory, error) {
	c, err := s.store.UpdateCategory(ctx, database.UpdateCategoryParams{
		ID:          id,
		Name:        name,
		Description: textOrNull(description),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		if database.IsUniqueViolation(err, "") {
			return nil, ErrDuplicateCategory
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	return &c, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

func (s *CatalogService) SaveCategoryImage(ctx context.Context, id uuid.UUID, filename string, r io.Reader, size int64) (*database.MenuCategory, error) {
	contentType, err := validateImage(filename, size)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetCategory(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	key := blob.ImageKey("categories", id, filename)
	if err := s.blobs.Put(ctx, key, r, size, contentType); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	c, err := s.store.SetCategoryImage(ctx, database.SetCategoryImageParams{
		ID:       id,
		ImageKey: pgtype.Text{String: key, Valid: true},
	})
	if err != nil {
		_ = s.blobs.Remove(ctx, key)
		return nil, fmt.Errorf("record image key: %w", err)
	}
	return &c, nil
}

type CreateMenuItemInput struct {
	ProductID  uuid.UUID
	CategoryID uuid.UUID // optional, uuid.Nil for uncategorized
	Price      decimal.Decimal
}

// CreateMenuItem puts a product on the menu. One product, one menu item.
func (s *CatalogService) CreateMenuItem(ctx context.Context, in CreateMenuItemInput) (*database.MenuItem, error) {
	if !in.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	m, err := s.store.CreateMenuItem(ctx, database.CreateMenuItemParams{
		ProductID:  in.ProductID,
		CategoryID: uuidOrNull(in.CategoryID),
		Price:      DecimalToNumeric(in.Price),
		Handle:     s.menuItemHandle(ctx, in.ProductID),
	})
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, ErrMenuItemExists
		}
		if database.IsForeignKeyViolation(err) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("create menu item: %w", err)
	}
	return &m, nil
}

type UpdateMenuItemInput struct {
	CategoryID uuid.UUID
	Price      decimal.Decimal
	IsActive   bool
}

func (s *CatalogService) UpdateMenuItem(ctx context.Context, id uuid.UUID, in UpdateMenuItemInput) (*database.MenuItem, error) {
	if !in.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	m, err := s.store.UpdateMenuItem(ctx, database.UpdateMenuItemParams{
		ID:         id,
		CategoryID: uuidOrNull(in.CategoryID),
		Price:      DecimalToNumeric(in.Price),
		IsActive:   in.IsActive,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMenuItemNotExists
		}
		if database.IsForeignKeyViolation(err) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("update menu item: %w", err)
	}
	return &m, nil
}

func (s *CatalogService) DeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.DeleteMenuItem(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMenuItemNotExists
		}
		return fmt.Errorf("delete menu item: %w", err)
	}
	return nil
}

// menuItemHandle reuses the product's handle when available, since menu
// item and product are one-to-one.
func (s *CatalogService) menuItemHandle(ctx context.Context, productID uuid.UUID) string {
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return productID.String()
	}
	return p.Handle
}

func validateImage(filename string, size int64) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := imageContentTypes[ext]
	if !ok {
		return "", ErrInvalidImageType
	}
	if size > MaxImageSize {
		return "", ErrImageTooLarge
	}
	return contentType, nil
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func uuidOrNull(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}
