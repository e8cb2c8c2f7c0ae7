package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zapchasti.org/internal/auth"
)

var (
	ErrNotFound     = errors.New("orders: not found")
	ErrInvalidInput = errors.New("orders: invalid input")
)

// Status is the closed order lifecycle set.
type Status string

const (
	StatusNew        Status = "new"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every lifecycle state, in board order.
var Statuses = []Status{StatusNew, StatusProcessing, StatusReady, StatusDone, StatusCancelled}

// ParseStatus validates a transmitted status value.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(strings.ToLower(raw)))
	for _, known := range Statuses {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
}

// Item is one order line. Title and price are copied from the product at
// checkout time so the order stays stable if the catalog changes.
type Item struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// Order is a storefront purchase fulfilled by one department.
type Order struct {
	ID            string    `json:"id"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	Status        Status    `json:"status"`
	DepartmentID  string    `json:"department_id,omitempty"`
	Total         int64     `json:"total"`
	Items         []Item    `json:"items"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Query filters the back-office order listing.
type Query struct {
	Status       Status
	DepartmentID string
	Limit        int
	Offset       int
}

// Store is the persistence contract for orders.
type Store interface {
	CreateOrder(ctx context.Context, o Order) (Order, error)
	ListOrders(ctx context.Context, q Query) ([]Order, error)
	FindOrder(ctx context.Context, id string) (Order, error)
	UpdateOrderStatus(ctx context.Context, scope auth.Scope, id string, status Status) (Order, error)
	CountOrdersByStatus(ctx context.Context, scope auth.Scope) (map[Status]int, error)
}
