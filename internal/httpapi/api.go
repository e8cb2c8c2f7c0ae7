// Package httpapi is the HTTP layer: routing, the authentication and
// permission pipeline in front of the back office, and the JSON codec
// for both surfaces.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"sort"
	"time"

	"zapchasti.org/internal/audit"
	"zapchasti.org/internal/auth"
	"zapchasti.org/internal/catalog"
	"zapchasti.org/internal/obs"
	"zapchasti.org/internal/orders"
)

// ReadyProbe pings the backing store for /readyz.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options wires the API. Everything but the probe is required.
type Options struct {
	Version    string
	Production bool

	Tokens     *auth.Tokens
	Accounts   *auth.Accounts
	Identities auth.IdentityStore
	Catalog    *catalog.Service
	Orders     *orders.Service
	AuditLog   audit.Store

	ReadyProbe     ReadyProbe
	AllowedOrigins []string
	MaxBodyBytes   int64
	RatePerSecond  int
	RateBurst      int
}

type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	production bool

	tokens     *auth.Tokens
	accounts   *auth.Accounts
	identities auth.IdentityStore
	catalog    *catalog.Service
	orders     *orders.Service
	auditLog   audit.Store

	allowedOrigins []string
	maxBodyBytes   int64
	ratePerSecond  int
	rateBurst      int
}

func New(opts Options) *API {
	a := &API{
		mux:            http.NewServeMux(),
		readyProbe:     opts.ReadyProbe,
		version:        opts.Version,
		production:     opts.Production,
		tokens:         opts.Tokens,
		accounts:       opts.Accounts,
		identities:     opts.Identities,
		catalog:        opts.Catalog,
		orders:         opts.Orders,
		auditLog:       opts.AuditLog,
		allowedOrigins: opts.AllowedOrigins,
		maxBodyBytes:   opts.MaxBodyBytes,
		ratePerSecond:  opts.RatePerSecond,
		rateBurst:      opts.RateBurst,
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 20
	}
	if a.ratePerSecond <= 0 {
		a.ratePerSecond = 20
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 40
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// storefront
	a.mux.HandleFunc("/v1/products", a.methods(methodMap{
		http.MethodGet: a.listProducts,
	}))
	a.mux.HandleFunc("/v1/products/", a.methods(methodMap{
		http.MethodGet: a.getProduct,
	}))
	a.mux.HandleFunc("/v1/categories", a.methods(methodMap{
		http.MethodGet: a.listCategories,
	}))
	a.mux.HandleFunc("/v1/categories/", a.methods(methodMap{
		http.MethodGet: a.getCategoryFilters,
	}))
	a.mux.HandleFunc("/v1/departments", a.methods(methodMap{
		http.MethodGet: a.listDepartments,
	}))
	a.mux.HandleFunc("/v1/promotions", a.methods(methodMap{
		http.MethodGet: a.listPromotions,
	}))
	a.mux.HandleFunc("/v1/service-kits", a.methods(methodMap{
		http.MethodGet: a.listServiceKits,
	}))
	a.mux.HandleFunc("/v1/service-kits/", a.methods(methodMap{
		http.MethodGet: a.getServiceKit,
	}))
	a.mux.HandleFunc("/v1/orders", a.methods(methodMap{
		http.MethodPost: a.placeOrder,
	}))

	// storefront sessions
	a.mux.HandleFunc("/v1/auth/login", a.methods(methodMap{
		http.MethodPost: a.handleLogin,
	}))
	a.mux.HandleFunc("/v1/auth/register", a.methods(methodMap{
		http.MethodPost: a.handleRegister,
	}))
	a.mux.HandleFunc("/v1/auth/logout", a.methods(methodMap{
		http.MethodPost: a.handleLogout,
	}))
	a.mux.HandleFunc("/v1/auth/me", a.methods(methodMap{
		http.MethodGet: a.handleMe,
	}))

	// back-office sessions
	a.mux.HandleFunc("/v1/admin/login", a.methods(methodMap{
		http.MethodPost: a.handleAdminLogin,
	}))
	a.mux.HandleFunc("/v1/admin/logout", a.methods(methodMap{
		http.MethodPost: a.handleAdminLogout,
	}))

	// back office: products
	a.mux.HandleFunc("/v1/admin/products", a.methods(methodMap{
		http.MethodGet:  a.guard(a.adminListProducts, auth.PermViewProducts),
		http.MethodPost: a.guard(a.adminCreateProduct, auth.PermEditProducts),
	}))
	a.mux.HandleFunc("/v1/admin/products/", a.handleAdminProductItem)

	// back office: taxonomy and reference data
	a.mux.HandleFunc("/v1/admin/categories", a.methods(methodMap{
		http.MethodGet:  a.guard(a.adminListCategories, auth.PermEditCategories),
		http.MethodPost: a.guard(a.adminCreateCategory, auth.PermEditCategories),
	}))
	a.mux.HandleFunc("/v1/admin/categories/", a.handleAdminCategoryItem)
	a.mux.HandleFunc("/v1/admin/filters", a.methods(methodMap{
		http.MethodPost: a.guard(a.adminCreateFilter, auth.PermEditFilters),
	}))
	a.mux.HandleFunc("/v1/admin/filters/", a.handleAdminFilterItem)
	a.mux.HandleFunc("/v1/admin/departments", a.methods(methodMap{
		http.MethodGet:  a.guard(a.adminListDepartments, auth.PermEditDepartments),
		http.MethodPost: a.guard(a.adminCreateDepartment, auth.PermEditDepartments),
	}))
	a.mux.HandleFunc("/v1/admin/departments/", a.handleAdminDepartmentItem)
	a.mux.HandleFunc("/v1/admin/promotions", a.methods(methodMap{
		http.MethodGet:  a.guard(a.adminListPromotions, auth.PermEditPromotions),
		http.MethodPost: a.guard(a.adminCreatePromotion, auth.PermEditPromotions),
	}))
	a.mux.HandleFunc("/v1/admin/promotions/", a.handleAdminPromotionItem)
	a.mux.HandleFunc("/v1/admin/service-kits", a.methods(methodMap{
		http.MethodGet:  a.guard(a.adminListServiceKits, auth.PermEditServiceKits),
		http.MethodPost: a.guard(a.adminCreateServiceKit, auth.PermEditServiceKits),
	}))
	a.mux.HandleFunc("/v1/admin/service-kits/", a.handleAdminServiceKitItem)

	// back office: orders
	a.mux.HandleFunc("/v1/admin/orders", a.methods(methodMap{
		http.MethodGet: a.guard(a.adminListOrders, auth.PermViewOrders),
	}))
	a.mux.HandleFunc("/v1/admin/orders/", a.handleAdminOrderItem)

	// back office: users
	a.mux.HandleFunc("/v1/admin/users", a.methods(methodMap{
		http.MethodGet:  a.guard(a.adminListUsers, auth.PermViewUsers),
		http.MethodPost: a.guard(a.adminCreateUser, auth.PermEditUsers),
	}))
	a.mux.HandleFunc("/v1/admin/users/", a.handleAdminUserItem)

	// back office: audit trail
	a.mux.HandleFunc("/v1/admin/audit/products", a.methods(methodMap{
		http.MethodGet: a.guard(a.adminProductAudit, auth.PermViewAudit),
	}))
	a.mux.HandleFunc("/v1/admin/audit/users", a.methods(methodMap{
		http.MethodGet: a.guard(a.adminUserAudit, auth.PermViewAudit),
	}))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = obs.Instrument(h)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.ratePerSecond, a.rateBurst)
	h = CORS(a.allowedOrigins)(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return h
}

type methodMap map[string]http.HandlerFunc

func (a *API) methods(m methodMap) http.HandlerFunc {
	allowed := make([]string, 0, len(m))
	for method := range m {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := m[r.Method]; ok {
			h(w, r)
			return
		}
		methodNotAllowed(w, r, allowed...)
	}
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "zapchasti-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "zapchasti-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
