package catalog

import (
	"context"
	"errors"
	"time"

	"zapchasti.org/internal/auth"
)

var (
	ErrNotFound     = errors.New("catalog: not found")
	ErrConflict     = errors.New("catalog: already exists")
	ErrInvalidInput = errors.New("catalog: invalid input")
)

// Product is a stocked auto part. Prices are integer kopecks. A product
// belongs to a category and is stocked by one department.
type Product struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SKU          string    `json:"sku"`
	Brand        string    `json:"brand,omitempty"`
	Description  string    `json:"description,omitempty"`
	Price        int64     `json:"price"`
	Quantity     int       `json:"quantity"`
	CategoryID   string    `json:"category_id,omitempty"`
	DepartmentID string    `json:"department_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProductUpdate carries partial mutations; nil fields stay untouched.
type ProductUpdate struct {
	Title        *string
	SKU          *string
	Brand        *string
	Description  *string
	Price        *int64
	Quantity     *int
	CategoryID   *string
	DepartmentID *string
}

// ProductQuery filters listings. Department is forced to the caller's own
// department for scoped roles regardless of what was requested.
type ProductQuery struct {
	CategoryID   string
	DepartmentID string
	Search       string
	Limit        int
	Offset       int
}

type Category struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	ParentID  string    `json:"parent_id,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CategoryUpdate struct {
	Title    *string
	Slug     *string
	ParentID *string
	Position *int
}

// Filter is a faceted-search attribute attached to a category.
type Filter struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"category_id"`
	Name       string    `json:"name"`
	Values     []string  `json:"values"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type FilterUpdate struct {
	Name   *string
	Values *[]string
}

// Department is a physical branch: warehouse plus storefront counter.
type Department struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city,omitempty"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type DepartmentUpdate struct {
	Name    *string
	City    *string
	Address *string
	Phone   *string
}

type Promotion struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PromotionUpdate struct {
	Title    *string
	Body     *string
	StartsAt *time.Time
	EndsAt   *time.Time
	Active   *bool
}

// ServiceKit is a pre-assembled maintenance bundle bookable from the
// storefront (oil service kit, brake service kit and so on).
type ServiceKit struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Vehicle     string    `json:"vehicle,omitempty"`
	Description string    `json:"description,omitempty"`
	Price       int64     `json:"price"`
	Parts       []string  `json:"parts,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ServiceKitUpdate struct {
	Title       *string
	Vehicle     *string
	Description *string
	Price       *int64
	Parts       *[]string
}

// Store is the persistence contract. Product mutations take the actor and
// scope so the pg implementation can re-check the department boundary and
// write the audit entry inside the mutation transaction.
type Store interface {
	ListProducts(ctx context.Context, q ProductQuery) ([]Product, error)
	FindProduct(ctx context.Context, id string) (Product, error)
	CreateProduct(ctx context.Context, actorID string, p Product) (Product, error)
	UpdateProduct(ctx context.Context, actorID string, scope auth.Scope, id string, upd ProductUpdate) (Product, error)
	DeleteProducts(ctx context.Context, actorID string, scope auth.Scope, ids []string) error

	ListCategories(ctx context.Context) ([]Category, error)
	FindCategory(ctx context.Context, id string) (Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, id string, upd CategoryUpdate) (Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListFilters(ctx context.Context, categoryID string) ([]Filter, error)
	CreateFilter(ctx context.Context, f Filter) (Filter, error)
	UpdateFilter(ctx context.Context, id string, upd FilterUpdate) (Filter, error)
	DeleteFilter(ctx context.Context, id string) error

	ListDepartments(ctx context.Context) ([]Department, error)
	FindDepartment(ctx context.Context, id string) (Department, error)
	CreateDepartment(ctx context.Context, d Department) (Department, error)
	UpdateDepartment(ctx context.Context, id string, upd DepartmentUpdate) (Department, error)
	DeleteDepartment(ctx context.Context, id string) error

	ListPromotions(ctx context.Context, activeOnly bool, now time.Time) ([]Promotion, error)
	CreatePromotion(ctx context.Context, p Promotion) (Promotion, error)
	UpdatePromotion(ctx context.Context, id string, upd PromotionUpdate) (Promotion, error)
	DeletePromotion(ctx context.Context, id string) error

	ListServiceKits(ctx context.Context) ([]ServiceKit, error)
	FindServiceKit(ctx context.Context, id string) (ServiceKit, error)
	CreateServiceKit(ctx context.Context, k ServiceKit) (ServiceKit, error)
	UpdateServiceKit(ctx context.Context, id string, upd ServiceKitUpdate) (ServiceKit, error)
	DeleteServiceKit(ctx context.Context, id string) error
}
