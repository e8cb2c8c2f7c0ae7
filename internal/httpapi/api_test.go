package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zapchasti.org/internal/auth"
	"zapchasti.org/internal/catalog"
	"zapchasti.org/internal/orders"
)

type fakeIdentityStore struct {
	byID      map[string]auth.Identity
	listCalls int
	findErr   error
}

func (f *fakeIdentityStore) CreateIdentity(_ context.Context, _ string, id auth.Identity) (auth.Identity, error) {
	f.byID[id.ID] = id
	return id, nil
}

func (f *fakeIdentityStore) FindIdentity(_ context.Context, id string) (auth.Identity, error) {
	if f.findErr != nil {
		return auth.Identity{}, f.findErr
	}
	found, ok := f.byID[id]
	if !ok {
		return auth.Identity{}, auth.ErrNotFound
	}
	return found, nil
}

func (f *fakeIdentityStore) FindIdentityByPhone(_ context.Context, phone string) (auth.Identity, error) {
	for _, id := range f.byID {
		if id.Phone == phone {
			return id, nil
		}
	}
	return auth.Identity{}, auth.ErrNotFound
}

func (f *fakeIdentityStore) ListIdentities(_ context.Context, _ auth.Scope) ([]auth.Identity, error) {
	f.listCalls++
	return nil, nil
}

func (f *fakeIdentityStore) UpdateIdentity(_ context.Context, _ string, _ auth.Scope, id string, _ auth.IdentityUpdate) (auth.Identity, error) {
	return f.byID[id], nil
}

func (f *fakeIdentityStore) DisableIdentity(context.Context, string, auth.Scope, string) error {
	return nil
}

// fakeCatalogStore stubs only what the tests reach; the embedded
// interface covers the rest.
type fakeCatalogStore struct {
	catalog.Store
	lastQuery  catalog.ProductQuery
	deleteErr  error
	deletedIDs []string
}

func (f *fakeCatalogStore) ListProducts(_ context.Context, q catalog.ProductQuery) ([]catalog.Product, error) {
	f.lastQuery = q
	return nil, nil
}

func (f *fakeCatalogStore) DeleteProducts(_ context.Context, _ string, _ auth.Scope, ids []string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = ids
	return nil
}

type fakeOrderStore struct {
	orders.Store
}

type fixture struct {
	api        *API
	handler    http.Handler
	identities *fakeIdentityStore
	catalog    *fakeCatalogStore
	tokens     *auth.Tokens
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	identities := &fakeIdentityStore{byID: make(map[string]auth.Identity)}
	accounts, err := auth.NewAccounts(identities)
	if err != nil {
		t.Fatalf("NewAccounts: %v", err)
	}
	catalogStore := &fakeCatalogStore{}
	catalogSvc, err := catalog.NewService(catalogStore, nil, 0)
	if err != nil {
		t.Fatalf("catalog.NewService: %v", err)
	}
	orderSvc, err := orders.NewService(&fakeOrderStore{}, catalogStore)
	if err != nil {
		t.Fatalf("orders.NewService: %v", err)
	}
	api := New(Options{
		Version:    "test",
		Tokens:     tokens,
		Accounts:   accounts,
		Identities: identities,
		Catalog:    catalogSvc,
		Orders:     orderSvc,
	})
	return &fixture{
		api:        api,
		handler:    api.Handler(),
		identities: identities,
		catalog:    catalogStore,
		tokens:     tokens,
	}
}

func (f *fixture) addIdentity(t *testing.T, id, phone, password string, role auth.Role, departmentID string) auth.Identity {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	identity := auth.Identity{
		ID:           id,
		Phone:        phone,
		Name:         "Test " + id,
		PasswordHash: hash,
		Role:         role,
		DepartmentID: departmentID,
		Status:       auth.StatusActive,
	}
	f.identities.byID[id] = identity
	return identity
}

func (f *fixture) tokenFor(t *testing.T, id auth.Identity) string {
	t.Helper()
	token, _, err := f.tokens.Issue(id)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestGuardRejectsMissingToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/admin/users", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if f.identities.listCalls != 0 {
		t.Fatalf("handler ran despite missing token")
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "unauthorized" {
		t.Fatalf("code = %v, want unauthorized", body["code"])
	}
	if body["request_id"] == "" || body["request_id"] == nil {
		t.Fatalf("request_id missing from error body")
	}
}

func TestGuardRejectsClientRole(t *testing.T) {
	f := newFixture(t)
	client := f.addIdentity(t, "u-client", "9954091882", "secret123", auth.RoleClient, "")
	rec := f.do(t, http.MethodGet, "/v1/admin/users", f.tokenFor(t, client), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if f.identities.listCalls != 0 {
		t.Fatalf("handler ran despite client role")
	}
}

func TestGuardRejectsManagerWithoutPermission(t *testing.T) {
	f := newFixture(t)
	manager := f.addIdentity(t, "u-mgr", "9954091883", "secret123", auth.RoleManager, "dep-5")

	// Managers may see products but not users.
	rec := f.do(t, http.MethodGet, "/v1/admin/users", f.tokenFor(t, manager), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("users: status = %d, want 403", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/v1/admin/products", f.tokenFor(t, manager), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("products: status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestGuardRejectsDisabledIdentity(t *testing.T) {
	f := newFixture(t)
	admin := f.addIdentity(t, "u-adm", "9954091884", "secret123", auth.RoleAdmin, "")
	token := f.tokenFor(t, admin)
	admin.Status = auth.StatusDisabled
	f.identities.byID[admin.ID] = admin

	rec := f.do(t, http.MethodGet, "/v1/admin/users", token, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGuardAnswers500WhenIdentityStoreIsDown(t *testing.T) {
	f := newFixture(t)
	admin := f.addIdentity(t, "u-admin", "9954091882", "secret123", auth.RoleAdmin, "")
	token := f.tokenFor(t, admin)
	f.identities.findErr = errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")

	rec := f.do(t, http.MethodGet, "/v1/admin/users", token, "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if f.identities.listCalls != 0 {
		t.Fatalf("handler ran despite failed identity load")
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != "internal" {
		t.Fatalf("code = %v, want internal", body["code"])
	}
	if body["error"] == "invalid token" {
		t.Fatalf("store outage reported as a credential failure")
	}
}

func TestManagerProductListForcedToOwnDepartment(t *testing.T) {
	f := newFixture(t)
	manager := f.addIdentity(t, "u-mgr", "9954091883", "secret123", auth.RoleManager, "dep-5")

	rec := f.do(t, http.MethodGet, "/v1/admin/products?department_id=dep-7", f.tokenFor(t, manager), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if f.catalog.lastQuery.DepartmentID != "dep-5" {
		t.Fatalf("query department = %q, want dep-5", f.catalog.lastQuery.DepartmentID)
	}
}

func TestBulkDeleteOutOfScopeIs403(t *testing.T) {
	f := newFixture(t)
	manager := f.addIdentity(t, "u-mgr", "9954091883", "secret123", auth.RoleManager, "dep-5")
	f.catalog.deleteErr = auth.ErrForbidden

	rec := f.do(t, http.MethodPost, "/v1/admin/products/delete", f.tokenFor(t, manager),
		`{"ids":["p1","p2"]}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestBulkDeleteNoContentOnSuccess(t *testing.T) {
	f := newFixture(t)
	admin := f.addIdentity(t, "u-adm", "9954091884", "secret123", auth.RoleAdmin, "")

	rec := f.do(t, http.MethodPost, "/v1/admin/products/delete", f.tokenFor(t, admin),
		`{"ids":["p1","p2","p1"]}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
	if len(f.catalog.deletedIDs) != 2 {
		t.Fatalf("deleted ids = %v, want deduplicated pair", f.catalog.deletedIDs)
	}
}

func TestAdminLoginSetsSessionCookie(t *testing.T) {
	f := newFixture(t)
	f.addIdentity(t, "u-adm", "9954091882", "secret123", auth.RoleAdmin, "")

	rec := f.do(t, http.MethodPost, "/v1/admin/login", "",
		`{"phone":"9954091882","password":"secret123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == adminCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("adminToken cookie not set")
	}
	if !cookie.HttpOnly {
		t.Errorf("cookie not HttpOnly")
	}
	if cookie.Path != "/" {
		t.Errorf("cookie path = %q, want /", cookie.Path)
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie samesite = %v, want Lax", cookie.SameSite)
	}
	if cookie.Secure {
		t.Errorf("cookie Secure outside production")
	}
	if cookie.MaxAge <= 0 {
		t.Errorf("cookie max age = %d, want positive", cookie.MaxAge)
	}

	// The cookie alone must open the back office.
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
	req.AddCookie(cookie)
	rec2 := httptest.NewRecorder()
	f.handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Fatalf("cookie session: status = %d", rec2.Code)
	}
}

func TestAdminLoginHidesNonAdminAccounts(t *testing.T) {
	f := newFixture(t)
	f.addIdentity(t, "u-client", "9954091882", "secret123", auth.RoleClient, "")

	rec := f.do(t, http.MethodPost, "/v1/admin/login", "",
		`{"phone":"9954091882","password":"secret123"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Пользователь не найден или не админ") {
		t.Fatalf("body = %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/v1/admin/login", "",
		`{"phone":"0000000000","password":"secret123"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown phone: status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Пользователь не найден или не админ") {
		t.Fatalf("unknown phone must read identically, got %s", rec.Body.String())
	}
}

func TestAdminLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.addIdentity(t, "u-adm", "9954091882", "secret123", auth.RoleAdmin, "")

	rec := f.do(t, http.MethodPost, "/v1/admin/login", "",
		`{"phone":"9954091882","password":"nope-nope"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Неверный пароль") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/admin/logout", "", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == adminCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("adminToken cookie not cleared")
	}
}

func TestHealthzAndRequestIDHeader(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("X-Request-Id header missing")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodDelete, "/v1/products", "", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if rec.Header().Get("Allow") != http.MethodGet {
		t.Fatalf("Allow = %q", rec.Header().Get("Allow"))
	}
}
