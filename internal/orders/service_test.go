package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapchasti.org/internal/auth"
	"zapchasti.org/internal/catalog"
)

type fakeStore struct {
	createOrder       func(ctx context.Context, o Order) (Order, error)
	listOrders        func(ctx context.Context, q Query) ([]Order, error)
	findOrder         func(ctx context.Context, id string) (Order, error)
	updateOrderStatus func(ctx context.Context, scope auth.Scope, id string, status Status) (Order, error)
	countByStatus     func(ctx context.Context, scope auth.Scope) (map[Status]int, error)
}

func (f *fakeStore) CreateOrder(ctx context.Context, o Order) (Order, error) {
	return f.createOrder(ctx, o)
}
func (f *fakeStore) ListOrders(ctx context.Context, q Query) ([]Order, error) {
	return f.listOrders(ctx, q)
}
func (f *fakeStore) FindOrder(ctx context.Context, id string) (Order, error) {
	return f.findOrder(ctx, id)
}
func (f *fakeStore) UpdateOrderStatus(ctx context.Context, scope auth.Scope, id string, status Status) (Order, error) {
	return f.updateOrderStatus(ctx, scope, id, status)
}
func (f *fakeStore) CountOrdersByStatus(ctx context.Context, scope auth.Scope) (map[Status]int, error) {
	return f.countByStatus(ctx, scope)
}

type fakeResolver struct {
	products map[string]catalog.Product
}

func (f *fakeResolver) FindProduct(ctx context.Context, id string) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func TestPlacePricesFromCatalog(t *testing.T) {
	resolver := &fakeResolver{products: map[string]catalog.Product{
		"p-1": {ID: "p-1", Title: "Фильтр воздушный", Price: 95000, DepartmentID: "dep-2"},
		"p-2": {ID: "p-2", Title: "Масло 5W-30", Price: 420000, DepartmentID: "dep-2"},
	}}
	var created Order
	store := &fakeStore{createOrder: func(ctx context.Context, o Order) (Order, error) {
		created = o
		return o, nil
	}}
	svc, err := NewService(store, resolver)
	require.NoError(t, err)

	order, err := svc.Place(context.Background(), PlaceInput{
		CustomerPhone: "9954091882",
		CustomerName:  "Иван",
		Items: []PlaceItem{
			{ProductID: "p-1", Quantity: 2},
			{ProductID: "p-2", Quantity: 1},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, StatusNew, order.Status)
	assert.Equal(t, int64(2*95000+420000), created.Total)
	assert.Equal(t, "dep-2", created.DepartmentID)
	assert.Len(t, created.Items, 2)
	assert.Equal(t, "Фильтр воздушный", created.Items[0].Title)
	assert.NotEmpty(t, created.ID)
}

func TestPlaceRejectsUnknownProductAndBadInput(t *testing.T) {
	svc, err := NewService(&fakeStore{}, &fakeResolver{products: map[string]catalog.Product{}})
	require.NoError(t, err)

	_, err = svc.Place(context.Background(), PlaceInput{CustomerPhone: "9954091882",
		Items: []PlaceItem{{ProductID: "missing", Quantity: 1}}})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Place(context.Background(), PlaceInput{Items: []PlaceItem{{ProductID: "p", Quantity: 1}}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Place(context.Background(), PlaceInput{CustomerPhone: "9954091882"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListForcesDepartmentForScopedCaller(t *testing.T) {
	var gotQuery Query
	store := &fakeStore{listOrders: func(ctx context.Context, q Query) ([]Order, error) {
		gotQuery = q
		return nil, nil
	}}
	svc, err := NewService(store, &fakeResolver{})
	require.NoError(t, err)

	scope := auth.Scope{Kind: auth.ScopeDepartment, DepartmentID: "dep-2"}
	_, err = svc.List(context.Background(), scope, Query{DepartmentID: "dep-9", Status: "new"})

	require.NoError(t, err)
	assert.Equal(t, "dep-2", gotQuery.DepartmentID)
	assert.Equal(t, StatusNew, gotQuery.Status)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc, err := NewService(&fakeStore{}, &fakeResolver{})
	require.NoError(t, err)

	_, err = svc.List(context.Background(), auth.GlobalScope, Query{Status: "shipped-to-moon"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetDeniesForeignDepartment(t *testing.T) {
	store := &fakeStore{findOrder: func(ctx context.Context, id string) (Order, error) {
		return Order{ID: id, DepartmentID: "dep-7"}, nil
	}}
	svc, err := NewService(store, &fakeResolver{})
	require.NoError(t, err)

	scope := auth.Scope{Kind: auth.ScopeDepartment, DepartmentID: "dep-5"}
	_, err = svc.Get(context.Background(), scope, "o-1")
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestStatusCountsDegradesToZeros(t *testing.T) {
	store := &fakeStore{countByStatus: func(ctx context.Context, scope auth.Scope) (map[Status]int, error) {
		return nil, errors.New("connection reset")
	}}
	svc, err := NewService(store, &fakeResolver{})
	require.NoError(t, err)

	counts := svc.StatusCounts(context.Background(), auth.GlobalScope)

	require.Len(t, counts, len(Statuses))
	for _, status := range Statuses {
		assert.Zero(t, counts[status])
	}
}

func TestStatusCountsFillsMissingStatuses(t *testing.T) {
	store := &fakeStore{countByStatus: func(ctx context.Context, scope auth.Scope) (map[Status]int, error) {
		return map[Status]int{StatusNew: 3, StatusDone: 12}, nil
	}}
	svc, err := NewService(store, &fakeResolver{})
	require.NoError(t, err)

	counts := svc.StatusCounts(context.Background(), auth.GlobalScope)

	assert.Equal(t, 3, counts[StatusNew])
	assert.Equal(t, 12, counts[StatusDone])
	assert.Equal(t, 0, counts[StatusCancelled])
}
