package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapchasti.org/internal/auth"
	"zapchasti.org/internal/cache"
)

// fakeStore implements Store through overridable function fields.
type fakeStore struct {
	listProducts   func(ctx context.Context, q ProductQuery) ([]Product, error)
	findProduct    func(ctx context.Context, id string) (Product, error)
	createProduct  func(ctx context.Context, actorID string, p Product) (Product, error)
	updateProduct  func(ctx context.Context, actorID string, scope auth.Scope, id string, upd ProductUpdate) (Product, error)
	deleteProducts func(ctx context.Context, actorID string, scope auth.Scope, ids []string) error

	listCategories func(ctx context.Context) ([]Category, error)
	findCategory   func(ctx context.Context, id string) (Category, error)

	listPromotions func(ctx context.Context, activeOnly bool, now time.Time) ([]Promotion, error)
}

func (f *fakeStore) ListProducts(ctx context.Context, q ProductQuery) ([]Product, error) {
	return f.listProducts(ctx, q)
}
func (f *fakeStore) FindProduct(ctx context.Context, id string) (Product, error) {
	return f.findProduct(ctx, id)
}
func (f *fakeStore) CreateProduct(ctx context.Context, actorID string, p Product) (Product, error) {
	return f.createProduct(ctx, actorID, p)
}
func (f *fakeStore) UpdateProduct(ctx context.Context, actorID string, scope auth.Scope, id string, upd ProductUpdate) (Product, error) {
	return f.updateProduct(ctx, actorID, scope, id, upd)
}
func (f *fakeStore) DeleteProducts(ctx context.Context, actorID string, scope auth.Scope, ids []string) error {
	return f.deleteProducts(ctx, actorID, scope, ids)
}
func (f *fakeStore) ListCategories(ctx context.Context) ([]Category, error) {
	return f.listCategories(ctx)
}
func (f *fakeStore) FindCategory(ctx context.Context, id string) (Category, error) {
	return f.findCategory(ctx, id)
}
func (f *fakeStore) CreateCategory(ctx context.Context, c Category) (Category, error) { return c, nil }
func (f *fakeStore) UpdateCategory(ctx context.Context, id string, upd CategoryUpdate) (Category, error) {
	return Category{ID: id}, nil
}
func (f *fakeStore) DeleteCategory(ctx context.Context, id string) error { return nil }
func (f *fakeStore) ListFilters(ctx context.Context, categoryID string) ([]Filter, error) {
	return nil, nil
}
func (f *fakeStore) CreateFilter(ctx context.Context, fl Filter) (Filter, error) { return fl, nil }
func (f *fakeStore) UpdateFilter(ctx context.Context, id string, upd FilterUpdate) (Filter, error) {
	return Filter{ID: id}, nil
}
func (f *fakeStore) DeleteFilter(ctx context.Context, id string) error { return nil }
func (f *fakeStore) ListDepartments(ctx context.Context) ([]Department, error) {
	return nil, nil
}
func (f *fakeStore) FindDepartment(ctx context.Context, id string) (Department, error) {
	return Department{ID: id}, nil
}
func (f *fakeStore) CreateDepartment(ctx context.Context, d Department) (Department, error) {
	return d, nil
}
func (f *fakeStore) UpdateDepartment(ctx context.Context, id string, upd DepartmentUpdate) (Department, error) {
	return Department{ID: id}, nil
}
func (f *fakeStore) DeleteDepartment(ctx context.Context, id string) error { return nil }
func (f *fakeStore) ListPromotions(ctx context.Context, activeOnly bool, now time.Time) ([]Promotion, error) {
	return f.listPromotions(ctx, activeOnly, now)
}
func (f *fakeStore) CreatePromotion(ctx context.Context, p Promotion) (Promotion, error) {
	return p, nil
}
func (f *fakeStore) UpdatePromotion(ctx context.Context, id string, upd PromotionUpdate) (Promotion, error) {
	return Promotion{ID: id}, nil
}
func (f *fakeStore) DeletePromotion(ctx context.Context, id string) error { return nil }
func (f *fakeStore) ListServiceKits(ctx context.Context) ([]ServiceKit, error) {
	return nil, nil
}
func (f *fakeStore) FindServiceKit(ctx context.Context, id string) (ServiceKit, error) {
	return ServiceKit{ID: id}, nil
}
func (f *fakeStore) CreateServiceKit(ctx context.Context, k ServiceKit) (ServiceKit, error) {
	return k, nil
}
func (f *fakeStore) UpdateServiceKit(ctx context.Context, id string, upd ServiceKitUpdate) (ServiceKit, error) {
	return ServiceKit{ID: id}, nil
}
func (f *fakeStore) DeleteServiceKit(ctx context.Context, id string) error { return nil }

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	svc, err := NewService(store, nil, time.Minute)
	require.NoError(t, err)
	return svc
}

func TestAdminProductsForcesDepartmentFilter(t *testing.T) {
	var gotQuery ProductQuery
	store := &fakeStore{
		listProducts: func(ctx context.Context, q ProductQuery) ([]Product, error) {
			gotQuery = q
			return []Product{{ID: "p-1", DepartmentID: "dep-2"}}, nil
		},
	}
	svc := newTestService(t, store)

	scope := auth.Scope{Kind: auth.ScopeDepartment, DepartmentID: "dep-2"}
	// The caller asked for every department; the scope overrides it.
	products, err := svc.AdminProducts(context.Background(), scope, ProductQuery{DepartmentID: ""})

	require.NoError(t, err)
	assert.Equal(t, "dep-2", gotQuery.DepartmentID)
	assert.Len(t, products, 1)
}

func TestAdminProductsGlobalScopeKeepsRequestedFilter(t *testing.T) {
	var gotQuery ProductQuery
	store := &fakeStore{
		listProducts: func(ctx context.Context, q ProductQuery) ([]Product, error) {
			gotQuery = q
			return nil, nil
		},
	}
	svc := newTestService(t, store)

	_, err := svc.AdminProducts(context.Background(), auth.GlobalScope, ProductQuery{DepartmentID: "dep-7"})

	require.NoError(t, err)
	assert.Equal(t, "dep-7", gotQuery.DepartmentID)
}

func TestAdminProductDeniesForeignDepartment(t *testing.T) {
	store := &fakeStore{
		findProduct: func(ctx context.Context, id string) (Product, error) {
			return Product{ID: id, DepartmentID: "dep-7"}, nil
		},
	}
	svc := newTestService(t, store)

	scope := auth.Scope{Kind: auth.ScopeDepartment, DepartmentID: "dep-5"}
	_, err := svc.AdminProduct(context.Background(), scope, "p-1")

	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestCreateProductDefaultsToOwnDepartment(t *testing.T) {
	var created Product
	store := &fakeStore{
		createProduct: func(ctx context.Context, actorID string, p Product) (Product, error) {
			created = p
			return p, nil
		},
	}
	svc := newTestService(t, store)

	scope := auth.Scope{Kind: auth.ScopeDepartment, DepartmentID: "dep-5"}
	actor := auth.Identity{ID: "mgr-1", Role: auth.RoleManager, DepartmentID: "dep-5"}
	_, err := svc.CreateProduct(context.Background(), actor, scope, Product{
		Title: "Свечи зажигания", SKU: "ngk-bkr6e", Price: 32000, Quantity: 40,
	})

	require.NoError(t, err)
	assert.Equal(t, "dep-5", created.DepartmentID)
	assert.Equal(t, "NGK-BKR6E", created.SKU)
	assert.NotEmpty(t, created.ID)
}

func TestCreateProductRejectsForeignDepartment(t *testing.T) {
	svc := newTestService(t, &fakeStore{})

	scope := auth.Scope{Kind: auth.ScopeDepartment, DepartmentID: "dep-5"}
	actor := auth.Identity{ID: "mgr-1", Role: auth.RoleManager, DepartmentID: "dep-5"}
	_, err := svc.CreateProduct(context.Background(), actor, scope, Product{
		Title: "Аккумулятор", SKU: "VARTA-E11", Price: 750000, DepartmentID: "dep-7",
	})

	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestCreateProductValidation(t *testing.T) {
	svc := newTestService(t, &fakeStore{})

	_, err := svc.CreateProduct(context.Background(), auth.Identity{ID: "a"}, auth.GlobalScope, Product{SKU: "X"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateProduct(context.Background(), auth.Identity{ID: "a"}, auth.GlobalScope, Product{
		Title: "Диск", SKU: "D-1", Price: -1,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateProductRejectsScopeEscape(t *testing.T) {
	svc := newTestService(t, &fakeStore{})

	scope := auth.Scope{Kind: auth.ScopeDepartment, DepartmentID: "dep-5"}
	foreign := "dep-7"
	_, err := svc.UpdateProduct(context.Background(), auth.Identity{ID: "mgr-1"}, scope, "p-1", ProductUpdate{
		DepartmentID: &foreign,
	})

	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestDeleteProductsDedupesAndRequiresIDs(t *testing.T) {
	var gotIDs []string
	store := &fakeStore{
		deleteProducts: func(ctx context.Context, actorID string, scope auth.Scope, ids []string) error {
			gotIDs = ids
			return nil
		},
	}
	svc := newTestService(t, store)

	err := svc.DeleteProducts(context.Background(), auth.Identity{ID: "a"}, auth.GlobalScope,
		[]string{"p-1", " p-1 ", "p-2", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1", "p-2"}, gotIDs)

	err = svc.DeleteProducts(context.Background(), auth.Identity{ID: "a"}, auth.GlobalScope, []string{"", " "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestActivePromotionsPassesNow(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var gotActive bool
	var gotNow time.Time
	store := &fakeStore{
		listPromotions: func(ctx context.Context, activeOnly bool, now time.Time) ([]Promotion, error) {
			gotActive = activeOnly
			gotNow = now
			return nil, nil
		},
	}
	svc := newTestService(t, store).WithClock(func() time.Time { return fixed })

	_, err := svc.ActivePromotions(context.Background())

	require.NoError(t, err)
	assert.True(t, gotActive)
	assert.Equal(t, fixed, gotNow)
}

func TestCreatePromotionValidatesWindow(t *testing.T) {
	svc := newTestService(t, &fakeStore{})

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.CreatePromotion(context.Background(), Promotion{
		Title: "Скидка на масла", StartsAt: start, EndsAt: start,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

type fakeCache struct {
	data map[string][]byte
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := f.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}
func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.data[key] = value
	return nil
}
func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func TestCategoriesServedFromCacheUntilInvalidated(t *testing.T) {
	calls := 0
	store := &fakeStore{
		listCategories: func(ctx context.Context) ([]Category, error) {
			calls++
			return []Category{{ID: "c-1", Title: "Масла", Slug: "masla"}}, nil
		},
	}
	c := &fakeCache{data: map[string][]byte{}}
	svc, err := NewService(store, c, time.Minute)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		list, err := svc.Categories(context.Background())
		require.NoError(t, err)
		require.Len(t, list, 1)
	}
	assert.Equal(t, 1, calls, "second and third reads must hit the cache")

	// An admin write drops the cached listing.
	_, err = svc.CreateCategory(context.Background(), Category{Title: "Фильтры", Slug: "filtry"})
	require.NoError(t, err)

	_, err = svc.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "read after invalidation must hit the store")
}

func TestCategoryFiltersChecksCategoryExists(t *testing.T) {
	store := &fakeStore{
		findCategory: func(ctx context.Context, id string) (Category, error) {
			return Category{}, ErrNotFound
		},
	}
	svc := newTestService(t, store)

	_, err := svc.CategoryFilters(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
