package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zapchasti.org/internal/auth"
	"zapchasti.org/internal/catalog"
	"zapchasti.org/internal/ids"
	"zapchasti.org/internal/obs"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ProductResolver looks up catalog products at checkout; the pg catalog
// store satisfies it.
type ProductResolver interface {
	FindProduct(ctx context.Context, id string) (catalog.Product, error)
}

// Service implements storefront checkout and back-office order management.
type Service struct {
	store    Store
	products ProductResolver
}

// NewService constructs the order service.
func NewService(store Store, products ProductResolver) (*Service, error) {
	if store == nil {
		return nil, errors.New("order store is required")
	}
	if products == nil {
		return nil, errors.New("product resolver is required")
	}
	return &Service{store: store, products: products}, nil
}

// PlaceInput is a storefront checkout request.
type PlaceInput struct {
	CustomerName  string
	CustomerPhone string
	Items         []PlaceItem
}

type PlaceItem struct {
	ProductID string
	Quantity  int
}

// Place creates an order priced from the current catalog. The order is
// routed to the department stocking the first item.
func (s *Service) Place(ctx context.Context, in PlaceInput) (Order, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	if in.CustomerPhone == "" {
		return Order{}, fmt.Errorf("%w: customer phone is required", ErrInvalidInput)
	}
	if len(in.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order items are required", ErrInvalidInput)
	}

	order := Order{
		ID:            ids.New(),
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		Status:        StatusNew,
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: item quantity must be positive", ErrInvalidInput)
		}
		product, err := s.products.FindProduct(ctx, strings.TrimSpace(item.ProductID))
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return Order{}, fmt.Errorf("%w: product %s", ErrNotFound, item.ProductID)
			}
			return Order{}, err
		}
		if order.DepartmentID == "" {
			order.DepartmentID = product.DepartmentID
		}
		order.Items = append(order.Items, Item{
			ProductID: product.ID,
			Title:     product.Title,
			Price:     product.Price,
			Quantity:  item.Quantity,
		})
		order.Total += product.Price * int64(item.Quantity)
	}
	return s.store.CreateOrder(ctx, order)
}

// List returns orders visible under the scope. A scoped caller always gets
// their own department regardless of the requested filter.
func (s *Service) List(ctx context.Context, scope auth.Scope, q Query) ([]Order, error) {
	if q.Status != "" {
		status, err := ParseStatus(string(q.Status))
		if err != nil {
			return nil, err
		}
		q.Status = status
	}
	if dep := scope.Department(); dep != "" {
		q.DepartmentID = dep
	}
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return s.store.ListOrders(ctx, q)
}

// Get fetches one order, applying the department scope.
func (s *Service) Get(ctx context.Context, scope auth.Scope, id string) (Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	order, err := s.store.FindOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !scope.Allows(order.DepartmentID) {
		return Order{}, auth.ErrForbidden
	}
	return order, nil
}

// UpdateStatus moves an order to a new lifecycle state. The store
// re-checks the department boundary inside the transaction.
func (s *Service) UpdateStatus(ctx context.Context, scope auth.Scope, id, rawStatus string) (Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	status, err := ParseStatus(rawStatus)
	if err != nil {
		return Order{}, err
	}
	return s.store.UpdateOrderStatus(ctx, scope, id, status)
}

// StatusCounts returns per-status order counts for the dashboard. The
// store retries transient failures; if the read still fails the endpoint
// degrades to zero-valued counters instead of erroring the page.
func (s *Service) StatusCounts(ctx context.Context, scope auth.Scope) map[Status]int {
	counts, err := s.store.CountOrdersByStatus(ctx, scope)
	if err != nil {
		obs.LogError("order counts degraded to zeros", err, nil)
		counts = nil
	}
	result := make(map[Status]int, len(Statuses))
	for _, status := range Statuses {
		result[status] = counts[status]
	}
	return result
}
