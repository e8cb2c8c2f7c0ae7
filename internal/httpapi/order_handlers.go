package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"zapchasti.org/internal/auth"
	"zapchasti.org/internal/orders"
)

type placeOrderRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	Items         []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

func (a *API) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in := orders.PlaceInput{
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, orders.PlaceItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	o, err := a.orders.Place(r.Context(), in)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (a *API) adminListOrders(w http.ResponseWriter, r *http.Request) {
	_, scope := actorAndScope(r)
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	var status orders.Status
	if raw := q.Get("status"); raw != "" {
		parsed, err := orders.ParseStatus(raw)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		status = parsed
	}
	result, err := a.orders.List(r.Context(), scope, orders.Query{
		Status:       status,
		DepartmentID: q.Get("department_id"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": result})
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

// handleAdminOrderItem serves /v1/admin/orders/counts,
// /v1/admin/orders/{id} and /v1/admin/orders/{id}/status.
func (a *API) handleAdminOrderItem(w http.ResponseWriter, r *http.Request) {
	rest := pathID(r, "/v1/admin/orders/")
	if rest == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if rest == "counts" {
		a.methods(methodMap{
			http.MethodGet: a.guard(a.adminOrderCounts, auth.PermViewOrders),
		})(w, r)
		return
	}
	id, sub, found := strings.Cut(rest, "/")
	if !found {
		a.methods(methodMap{
			http.MethodGet: a.guard(func(w http.ResponseWriter, r *http.Request) {
				a.adminGetOrder(w, r, id)
			}, auth.PermViewOrders),
		})(w, r)
		return
	}
	if sub == "status" {
		a.methods(methodMap{
			http.MethodPost: a.guard(func(w http.ResponseWriter, r *http.Request) {
				a.adminUpdateOrderStatus(w, r, id)
			}, auth.PermEditOrders),
		})(w, r)
		return
	}
	writeError(w, r, http.StatusNotFound, "not found")
}

func (a *API) adminGetOrder(w http.ResponseWriter, r *http.Request, id string) {
	_, scope := actorAndScope(r)
	o, err := a.orders.Get(r.Context(), scope, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) adminUpdateOrderStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req orderStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	_, scope := actorAndScope(r)
	o, err := a.orders.UpdateStatus(r.Context(), scope, id, req.Status)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// adminOrderCounts powers the dashboard. The service never errors here;
// on store failure it degrades to zeroed counters.
func (a *API) adminOrderCounts(w http.ResponseWriter, r *http.Request) {
	_, scope := actorAndScope(r)
	counts := a.orders.StatusCounts(r.Context(), scope)
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}
