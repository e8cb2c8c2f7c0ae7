package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"zapchasti.org/internal/auth"
	"zapchasti.org/internal/cache"
	"zapchasti.org/internal/ids"
	"zapchasti.org/internal/obs"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	cacheKeyCategories  = "catalog:categories"
	cacheKeyPromotions  = "catalog:promotions:active"
	cacheKeyServiceKits = "catalog:service-kits"
)

// Service implements catalog operations for both the storefront and the
// back office. Admin product mutations re-check the caller's department
// scope; the store enforces it once more inside the transaction.
type Service struct {
	store    Store
	cache    cache.Client
	cacheTTL time.Duration
	now      func() time.Time
}

// NewService constructs the catalog service. cacheClient may be nil; the
// service then always reads through to the store.
func NewService(store Store, cacheClient cache.Client, cacheTTL time.Duration) (*Service, error) {
	if store == nil {
		return nil, errors.New("catalog store is required")
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Service{store: store, cache: cacheClient, cacheTTL: cacheTTL, now: time.Now}, nil
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// --- storefront reads ---

func (s *Service) Products(ctx context.Context, q ProductQuery) ([]Product, error) {
	q = normalizeQuery(q)
	return s.store.ListProducts(ctx, q)
}

func (s *Service) Product(ctx context.Context, id string) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}
	return s.store.FindProduct(ctx, id)
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	var cached []Category
	if s.readCache(ctx, cacheKeyCategories, &cached) {
		return cached, nil
	}
	list, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, cacheKeyCategories, list)
	return list, nil
}

func (s *Service) CategoryFilters(ctx context.Context, categoryID string) ([]Filter, error) {
	categoryID = strings.TrimSpace(categoryID)
	if categoryID == "" {
		return nil, fmt.Errorf("%w: category id is required", ErrInvalidInput)
	}
	if _, err := s.store.FindCategory(ctx, categoryID); err != nil {
		return nil, err
	}
	return s.store.ListFilters(ctx, categoryID)
}

// ActivePromotions returns promotions whose window covers now.
func (s *Service) ActivePromotions(ctx context.Context) ([]Promotion, error) {
	var cached []Promotion
	if s.readCache(ctx, cacheKeyPromotions, &cached) {
		return cached, nil
	}
	list, err := s.store.ListPromotions(ctx, true, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, cacheKeyPromotions, list)
	return list, nil
}

func (s *Service) ServiceKits(ctx context.Context) ([]ServiceKit, error) {
	var cached []ServiceKit
	if s.readCache(ctx, cacheKeyServiceKits, &cached) {
		return cached, nil
	}
	list, err := s.store.ListServiceKits(ctx)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, cacheKeyServiceKits, list)
	return list, nil
}

func (s *Service) ServiceKit(ctx context.Context, id string) (ServiceKit, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ServiceKit{}, fmt.Errorf("%w: service kit id is required", ErrInvalidInput)
	}
	return s.store.FindServiceKit(ctx, id)
}

func (s *Service) Departments(ctx context.Context) ([]Department, error) {
	return s.store.ListDepartments(ctx)
}

// --- back-office products ---

// AdminProducts lists products visible under the scope. A scoped caller
// always gets their own department regardless of the requested filter.
func (s *Service) AdminProducts(ctx context.Context, scope auth.Scope, q ProductQuery) ([]Product, error) {
	q = normalizeQuery(q)
	if dep := scope.Department(); dep != "" {
		q.DepartmentID = dep
	}
	return s.store.ListProducts(ctx, q)
}

func (s *Service) AdminProduct(ctx context.Context, scope auth.Scope, id string) (Product, error) {
	p, err := s.Product(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if !scope.Allows(p.DepartmentID) {
		return Product{}, auth.ErrForbidden
	}
	return p, nil
}

func (s *Service) CreateProduct(ctx context.Context, actor auth.Identity, scope auth.Scope, p Product) (Product, error) {
	if err := validateProduct(&p); err != nil {
		return Product{}, err
	}
	if p.DepartmentID == "" {
		p.DepartmentID = scope.Department()
	}
	if !scope.Allows(p.DepartmentID) {
		return Product{}, auth.ErrForbidden
	}
	p.ID = ids.New()
	return s.store.CreateProduct(ctx, actor.ID, p)
}

func (s *Service) UpdateProduct(ctx context.Context, actor auth.Identity, scope auth.Scope, id string, upd ProductUpdate) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}
	if err := validateProductUpdate(&upd); err != nil {
		return Product{}, err
	}
	if upd.DepartmentID != nil && !scope.Allows(*upd.DepartmentID) {
		return Product{}, auth.ErrForbidden
	}
	return s.store.UpdateProduct(ctx, actor.ID, scope, id, upd)
}

// DeleteProducts removes a batch. All-or-nothing under department scope:
// one out-of-scope member rejects the whole batch untouched.
func (s *Service) DeleteProducts(ctx context.Context, actor auth.Identity, scope auth.Scope, productIDs []string) error {
	cleaned := dedupe(productIDs)
	if len(cleaned) == 0 {
		return fmt.Errorf("%w: product ids are required", ErrInvalidInput)
	}
	return s.store.DeleteProducts(ctx, actor.ID, scope, cleaned)
}

// --- back-office categories, filters, departments, promotions, kits ---

func (s *Service) CreateCategory(ctx context.Context, c Category) (Category, error) {
	if err := validateCategory(&c); err != nil {
		return Category{}, err
	}
	c.ID = ids.New()
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return Category{}, err
	}
	s.invalidate(ctx, cacheKeyCategories)
	return created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, upd CategoryUpdate) (Category, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Category{}, fmt.Errorf("%w: category id is required", ErrInvalidInput)
	}
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return Category{}, fmt.Errorf("%w: category title is required", ErrInvalidInput)
	}
	if upd.Slug != nil {
		slug := normalizeSlug(*upd.Slug)
		if slug == "" {
			return Category{}, fmt.Errorf("%w: category slug is required", ErrInvalidInput)
		}
		upd.Slug = &slug
	}
	updated, err := s.store.UpdateCategory(ctx, id, upd)
	if err != nil {
		return Category{}, err
	}
	s.invalidate(ctx, cacheKeyCategories)
	return updated, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: category id is required", ErrInvalidInput)
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cacheKeyCategories)
	return nil
}

func (s *Service) CreateFilter(ctx context.Context, f Filter) (Filter, error) {
	f.CategoryID = strings.TrimSpace(f.CategoryID)
	f.Name = strings.TrimSpace(f.Name)
	if f.CategoryID == "" || f.Name == "" {
		return Filter{}, fmt.Errorf("%w: filter category and name are required", ErrInvalidInput)
	}
	if _, err := s.store.FindCategory(ctx, f.CategoryID); err != nil {
		return Filter{}, err
	}
	f.Values = dedupe(f.Values)
	f.ID = ids.New()
	return s.store.CreateFilter(ctx, f)
}

func (s *Service) UpdateFilter(ctx context.Context, id string, upd FilterUpdate) (Filter, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Filter{}, fmt.Errorf("%w: filter id is required", ErrInvalidInput)
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return Filter{}, fmt.Errorf("%w: filter name is required", ErrInvalidInput)
	}
	if upd.Values != nil {
		values := dedupe(*upd.Values)
		upd.Values = &values
	}
	return s.store.UpdateFilter(ctx, id, upd)
}

func (s *Service) DeleteFilter(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: filter id is required", ErrInvalidInput)
	}
	return s.store.DeleteFilter(ctx, id)
}

func (s *Service) CreateDepartment(ctx context.Context, d Department) (Department, error) {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return Department{}, fmt.Errorf("%w: department name is required", ErrInvalidInput)
	}
	d.ID = ids.New()
	return s.store.CreateDepartment(ctx, d)
}

func (s *Service) UpdateDepartment(ctx context.Context, id string, upd DepartmentUpdate) (Department, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Department{}, fmt.Errorf("%w: department id is required", ErrInvalidInput)
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return Department{}, fmt.Errorf("%w: department name is required", ErrInvalidInput)
	}
	return s.store.UpdateDepartment(ctx, id, upd)
}

func (s *Service) DeleteDepartment(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: department id is required", ErrInvalidInput)
	}
	return s.store.DeleteDepartment(ctx, id)
}

func (s *Service) Promotions(ctx context.Context) ([]Promotion, error) {
	return s.store.ListPromotions(ctx, false, s.now().UTC())
}

func (s *Service) CreatePromotion(ctx context.Context, p Promotion) (Promotion, error) {
	if err := validatePromotion(&p); err != nil {
		return Promotion{}, err
	}
	p.ID = ids.New()
	created, err := s.store.CreatePromotion(ctx, p)
	if err != nil {
		return Promotion{}, err
	}
	s.invalidate(ctx, cacheKeyPromotions)
	return created, nil
}

func (s *Service) UpdatePromotion(ctx context.Context, id string, upd PromotionUpdate) (Promotion, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Promotion{}, fmt.Errorf("%w: promotion id is required", ErrInvalidInput)
	}
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return Promotion{}, fmt.Errorf("%w: promotion title is required", ErrInvalidInput)
	}
	if upd.StartsAt != nil && upd.EndsAt != nil && !upd.EndsAt.After(*upd.StartsAt) {
		return Promotion{}, fmt.Errorf("%w: promotion must end after it starts", ErrInvalidInput)
	}
	updated, err := s.store.UpdatePromotion(ctx, id, upd)
	if err != nil {
		return Promotion{}, err
	}
	s.invalidate(ctx, cacheKeyPromotions)
	return updated, nil
}

func (s *Service) DeletePromotion(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: promotion id is required", ErrInvalidInput)
	}
	if err := s.store.DeletePromotion(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cacheKeyPromotions)
	return nil
}

func (s *Service) CreateServiceKit(ctx context.Context, k ServiceKit) (ServiceKit, error) {
	k.Title = strings.TrimSpace(k.Title)
	if k.Title == "" {
		return ServiceKit{}, fmt.Errorf("%w: service kit title is required", ErrInvalidInput)
	}
	if k.Price < 0 {
		return ServiceKit{}, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	k.Parts = dedupe(k.Parts)
	k.ID = ids.New()
	created, err := s.store.CreateServiceKit(ctx, k)
	if err != nil {
		return ServiceKit{}, err
	}
	s.invalidate(ctx, cacheKeyServiceKits)
	return created, nil
}

func (s *Service) UpdateServiceKit(ctx context.Context, id string, upd ServiceKitUpdate) (ServiceKit, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ServiceKit{}, fmt.Errorf("%w: service kit id is required", ErrInvalidInput)
	}
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return ServiceKit{}, fmt.Errorf("%w: service kit title is required", ErrInvalidInput)
	}
	if upd.Price != nil && *upd.Price < 0 {
		return ServiceKit{}, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if upd.Parts != nil {
		parts := dedupe(*upd.Parts)
		upd.Parts = &parts
	}
	updated, err := s.store.UpdateServiceKit(ctx, id, upd)
	if err != nil {
		return ServiceKit{}, err
	}
	s.invalidate(ctx, cacheKeyServiceKits)
	return updated, nil
}

func (s *Service) DeleteServiceKit(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: service kit id is required", ErrInvalidInput)
	}
	if err := s.store.DeleteServiceKit(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cacheKeyServiceKits)
	return nil
}

// --- helpers ---

func (s *Service) readCache(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			obs.LogError("cache read failed", err, map[string]any{"key": key})
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		obs.LogError("cache decode failed", err, map[string]any{"key": key})
		return false
	}
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		obs.LogError("cache write failed", err, map[string]any{"key": key})
	}
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		obs.LogError("cache invalidation failed", err, map[string]any{"keys": keys})
	}
}

func normalizeQuery(q ProductQuery) ProductQuery {
	q.CategoryID = strings.TrimSpace(q.CategoryID)
	q.DepartmentID = strings.TrimSpace(q.DepartmentID)
	q.Search = strings.TrimSpace(q.Search)
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

func validateProduct(p *Product) error {
	p.Title = strings.TrimSpace(p.Title)
	p.SKU = strings.TrimSpace(strings.ToUpper(p.SKU))
	p.Brand = strings.TrimSpace(p.Brand)
	p.CategoryID = strings.TrimSpace(p.CategoryID)
	p.DepartmentID = strings.TrimSpace(p.DepartmentID)
	if p.Title == "" || p.SKU == "" {
		return fmt.Errorf("%w: product title and sku are required", ErrInvalidInput)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if p.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	return nil
}

func validateProductUpdate(upd *ProductUpdate) error {
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return fmt.Errorf("%w: product title is required", ErrInvalidInput)
		}
		upd.Title = &title
	}
	if upd.SKU != nil {
		sku := strings.TrimSpace(strings.ToUpper(*upd.SKU))
		if sku == "" {
			return fmt.Errorf("%w: product sku is required", ErrInvalidInput)
		}
		upd.SKU = &sku
	}
	if upd.Price != nil && *upd.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if upd.Quantity != nil && *upd.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	if upd.DepartmentID != nil {
		dep := strings.TrimSpace(*upd.DepartmentID)
		upd.DepartmentID = &dep
	}
	return nil
}

func validateCategory(c *Category) error {
	c.Title = strings.TrimSpace(c.Title)
	c.Slug = normalizeSlug(c.Slug)
	if c.Title == "" || c.Slug == "" {
		return fmt.Errorf("%w: category title and slug are required", ErrInvalidInput)
	}
	return nil
}

func validatePromotion(p *Promotion) error {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return fmt.Errorf("%w: promotion title is required", ErrInvalidInput)
	}
	if p.StartsAt.IsZero() || p.EndsAt.IsZero() || !p.EndsAt.After(p.StartsAt) {
		return fmt.Errorf("%w: promotion must end after it starts", ErrInvalidInput)
	}
	return nil
}

func normalizeSlug(raw string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(raw)), "-")
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
