package httpapi

import (
	"net/http"
	"time"

	"zapchasti.org/internal/auth"
	"zapchasti.org/internal/catalog"
)

type productRequest struct {
	Title        string `json:"title"`
	SKU          string `json:"sku"`
	Brand        string `json:"brand"`
	Description  string `json:"description"`
	Price        int64  `json:"price"`
	Quantity     int    `json:"quantity"`
	CategoryID   string `json:"category_id"`
	DepartmentID string `json:"department_id"`
}

type productPatch struct {
	Title        *string `json:"title"`
	SKU          *string `json:"sku"`
	Brand        *string `json:"brand"`
	Description  *string `json:"description"`
	Price        *int64  `json:"price"`
	Quantity     *int    `json:"quantity"`
	CategoryID   *string `json:"category_id"`
	DepartmentID *string `json:"department_id"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (a *API) adminListProducts(w http.ResponseWriter, r *http.Request) {
	_, scope := actorAndScope(r)
	products, err := a.catalog.AdminProducts(r.Context(), scope, parseProductQuery(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) adminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, scope := actorAndScope(r)
	p, err := a.catalog.CreateProduct(r.Context(), actor, scope, catalog.Product{
		Title:        req.Title,
		SKU:          req.SKU,
		Brand:        req.Brand,
		Description:  req.Description,
		Price:        req.Price,
		Quantity:     req.Quantity,
		CategoryID:   req.CategoryID,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleAdminProductItem serves /v1/admin/products/{id} and the bulk
// delete endpoint /v1/admin/products/delete.
func (a *API) handleAdminProductItem(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/v1/admin/products/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if id == "delete" {
		a.methods(methodMap{
			http.MethodPost: a.guard(a.adminBulkDeleteProducts, auth.PermEditProducts),
		})(w, r)
		return
	}
	a.methods(methodMap{
		http.MethodGet: a.guard(func(w http.ResponseWriter, r *http.Request) {
			a.adminGetProduct(w, r, id)
		}, auth.PermViewProducts),
		http.MethodPatch: a.guard(func(w http.ResponseWriter, r *http.Request) {
			a.adminUpdateProduct(w, r, id)
		}, auth.PermEditProducts),
		http.MethodDelete: a.guard(func(w http.ResponseWriter, r *http.Request) {
			a.adminDeleteProduct(w, r, id)
		}, auth.PermEditProducts),
	})(w, r)
}

func (a *API) adminGetProduct(w http.ResponseWriter, r *http.Request, id string) {
	_, scope := actorAndScope(r)
	p, err := a.catalog.AdminProduct(r.Context(), scope, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) adminUpdateProduct(w http.ResponseWriter, r *http.Request, id string) {
	var req productPatch
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, scope := actorAndScope(r)
	p, err := a.catalog.UpdateProduct(r.Context(), actor, scope, id, catalog.ProductUpdate{
		Title:        req.Title,
		SKU:          req.SKU,
		Brand:        req.Brand,
		Description:  req.Description,
		Price:        req.Price,
		Quantity:     req.Quantity,
		CategoryID:   req.CategoryID,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) adminDeleteProduct(w http.ResponseWriter, r *http.Request, id string) {
	actor, scope := actorAndScope(r)
	if err := a.catalog.DeleteProducts(r.Context(), actor, scope, []string{id}); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) adminBulkDeleteProducts(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, scope := actorAndScope(r)
	if err := a.catalog.DeleteProducts(r.Context(), actor, scope, req.IDs); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- categories ---

type categoryRequest struct {
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	ParentID string `json:"parent_id"`
	Position int    `json:"position"`
}

type categoryPatch struct {
	Title    *string `json:"title"`
	Slug     *string `json:"slug"`
	ParentID *string `json:"parent_id"`
	Position *int    `json:"position"`
}

func (a *API) adminListCategories(w http.ResponseWriter, r *http.Request) {
	a.listCategories(w, r)
}

func (a *API) adminCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.catalog.CreateCategory(r.Context(), catalog.Category{
		Title:    req.Title,
		Slug:     req.Slug,
		ParentID: req.ParentID,
		Position: req.Position,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) handleAdminCategoryItem(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/v1/admin/categories/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	a.methods(methodMap{
		http.MethodPatch: a.guard(func(w http.ResponseWriter, r *http.Request) {
			var req categoryPatch
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			c, err := a.catalog.UpdateCategory(r.Context(), id, catalog.CategoryUpdate{
				Title:    req.Title,
				Slug:     req.Slug,
				ParentID: req.ParentID,
				Position: req.Position,
			})
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, c)
		}, auth.PermEditCategories),
		http.MethodDelete: a.guard(func(w http.ResponseWriter, r *http.Request) {
			if err := a.catalog.DeleteCategory(r.Context(), id); err != nil {
				handleDomainError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}, auth.PermEditCategories),
	})(w, r)
}

// --- filters ---

type filterRequest struct {
	CategoryID string   `json:"category_id"`
	Name       string   `json:"name"`
	Values     []string `json:"values"`
}

type filterPatch struct {
	Name   *string   `json:"name"`
	Values *[]string `json:"values"`
}

func (a *API) adminCreateFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	f, err := a.catalog.CreateFilter(r.Context(), catalog.Filter{
		CategoryID: req.CategoryID,
		Name:       req.Name,
		Values:     req.Values,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (a *API) handleAdminFilterItem(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/v1/admin/filters/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	a.methods(methodMap{
		http.MethodPatch: a.guard(func(w http.ResponseWriter, r *http.Request) {
			var req filterPatch
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			f, err := a.catalog.UpdateFilter(r.Context(), id, catalog.FilterUpdate{
				Name:   req.Name,
				Values: req.Values,
			})
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, f)
		}, auth.PermEditFilters),
		http.MethodDelete: a.guard(func(w http.ResponseWriter, r *http.Request) {
			if err := a.catalog.DeleteFilter(r.Context(), id); err != nil {
				handleDomainError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}, auth.PermEditFilters),
	})(w, r)
}

// --- departments ---

type departmentRequest struct {
	Name    string `json:"name"`
	City    string `json:"city"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type departmentPatch struct {
	Name    *string `json:"name"`
	City    *string `json:"city"`
	Address *string `json:"address"`
	Phone   *string `json:"phone"`
}

func (a *API) adminListDepartments(w http.ResponseWriter, r *http.Request) {
	a.listDepartments(w, r)
}

func (a *API) adminCreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req departmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	d, err := a.catalog.CreateDepartment(r.Context(), catalog.Department{
		Name:    req.Name,
		City:    req.City,
		Address: req.Address,
		Phone:   req.Phone,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (a *API) handleAdminDepartmentItem(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/v1/admin/departments/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	a.methods(methodMap{
		http.MethodPatch: a.guard(func(w http.ResponseWriter, r *http.Request) {
			var req departmentPatch
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			d, err := a.catalog.UpdateDepartment(r.Context(), id, catalog.DepartmentUpdate{
				Name:    req.Name,
				City:    req.City,
				Address: req.Address,
				Phone:   req.Phone,
			})
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, d)
		}, auth.PermEditDepartments),
		http.MethodDelete: a.guard(func(w http.ResponseWriter, r *http.Request) {
			if err := a.catalog.DeleteDepartment(r.Context(), id); err != nil {
				handleDomainError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}, auth.PermEditDepartments),
	})(w, r)
}

// --- promotions ---

type promotionRequest struct {
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Active   bool      `json:"active"`
}

type promotionPatch struct {
	Title    *string    `json:"title"`
	Body     *string    `json:"body"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Active   *bool      `json:"active"`
}

func (a *API) adminListPromotions(w http.ResponseWriter, r *http.Request) {
	promotions, err := a.catalog.Promotions(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promotions": promotions})
}

func (a *API) adminCreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.catalog.CreatePromotion(r.Context(), catalog.Promotion{
		Title:    req.Title,
		Body:     req.Body,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		Active:   req.Active,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleAdminPromotionItem(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/v1/admin/promotions/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	a.methods(methodMap{
		http.MethodPatch: a.guard(func(w http.ResponseWriter, r *http.Request) {
			var req promotionPatch
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			p, err := a.catalog.UpdatePromotion(r.Context(), id, catalog.PromotionUpdate{
				Title:    req.Title,
				Body:     req.Body,
				StartsAt: req.StartsAt,
				EndsAt:   req.EndsAt,
				Active:   req.Active,
			})
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, p)
		}, auth.PermEditPromotions),
		http.MethodDelete: a.guard(func(w http.ResponseWriter, r *http.Request) {
			if err := a.catalog.DeletePromotion(r.Context(), id); err != nil {
				handleDomainError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}, auth.PermEditPromotions),
	})(w, r)
}

// --- service kits ---

type serviceKitRequest struct {
	Title       string   `json:"title"`
	Vehicle     string   `json:"vehicle"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Parts       []string `json:"parts"`
}

type serviceKitPatch struct {
	Title       *string   `json:"title"`
	Vehicle     *string   `json:"vehicle"`
	Description *string   `json:"description"`
	Price       *int64    `json:"price"`
	Parts       *[]string `json:"parts"`
}

func (a *API) adminListServiceKits(w http.ResponseWriter, r *http.Request) {
	a.listServiceKits(w, r)
}

func (a *API) adminCreateServiceKit(w http.ResponseWriter, r *http.Request) {
	var req serviceKitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	k, err := a.catalog.CreateServiceKit(r.Context(), catalog.ServiceKit{
		Title:       req.Title,
		Vehicle:     req.Vehicle,
		Description: req.Description,
		Price:       req.Price,
		Parts:       req.Parts,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, k)
}

func (a *API) handleAdminServiceKitItem(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/v1/admin/service-kits/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	a.methods(methodMap{
		http.MethodPatch: a.guard(func(w http.ResponseWriter, r *http.Request) {
			var req serviceKitPatch
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
			k, err := a.catalog.UpdateServiceKit(r.Context(), id, catalog.ServiceKitUpdate{
				Title:       req.Title,
				Vehicle:     req.Vehicle,
				Description: req.Description,
				Price:       req.Price,
				Parts:       req.Parts,
			})
			if err != nil {
				handleDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, k)
		}, auth.PermEditServiceKits),
		http.MethodDelete: a.guard(func(w http.ResponseWriter, r *http.Request) {
			if err := a.catalog.DeleteServiceKit(r.Context(), id); err != nil {
				handleDomainError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}, auth.PermEditServiceKits),
	})(w, r)
}
