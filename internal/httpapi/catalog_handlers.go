package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"zapchasti.org/internal/catalog"
)

func pathID(r *http.Request, prefix string) string {
	return strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
}

func parseProductQuery(r *http.Request) catalog.ProductQuery {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return catalog.ProductQuery{
		CategoryID:   q.Get("category_id"),
		DepartmentID: q.Get("department_id"),
		Search:       q.Get("search"),
		Limit:        limit,
		Offset:       offset,
	}
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.catalog.Products(r.Context(), parseProductQuery(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/v1/products/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	p, err := a.catalog.Product(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.catalog.Categories(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// getCategoryFilters serves /v1/categories/{id}/filters.
func (a *API) getCategoryFilters(w http.ResponseWriter, r *http.Request) {
	rest := pathID(r, "/v1/categories/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "filters" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	filters, err := a.catalog.CategoryFilters(r.Context(), parts[0])
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"filters": filters})
}

func (a *API) listDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := a.catalog.Departments(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"departments": departments})
}

func (a *API) listPromotions(w http.ResponseWriter, r *http.Request) {
	promotions, err := a.catalog.ActivePromotions(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promotions": promotions})
}

func (a *API) listServiceKits(w http.ResponseWriter, r *http.Request) {
	kits, err := a.catalog.ServiceKits(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service_kits": kits})
}

func (a *API) getServiceKit(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/v1/service-kits/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	kit, err := a.catalog.ServiceKit(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, kit)
}
