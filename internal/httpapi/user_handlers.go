package httpapi

import (
	"net/http"

	"zapchasti.org/internal/auth"
)

type createUserRequest struct {
	Phone        string `json:"phone"`
	Name         string `json:"name"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	DepartmentID string `json:"department_id"`
}

type userPatch struct {
	Phone        *string `json:"phone"`
	Name         *string `json:"name"`
	Password     *string `json:"password"`
	Role         *string `json:"role"`
	DepartmentID *string `json:"department_id"`
	Status       *string `json:"status"`
}

func (a *API) adminListUsers(w http.ResponseWriter, r *http.Request) {
	_, scope := actorAndScope(r)
	users, err := a.accounts.List(r.Context(), scope)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) adminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor, scope := actorAndScope(r)
	id, err := a.accounts.Create(r.Context(), actor, scope, req.Phone, req.Name, req.Password, req.Role, req.DepartmentID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, id)
}

func (a *API) handleAdminUserItem(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/v1/admin/users/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	a.methods(methodMap{
		http.MethodGet: a.guard(func(w http.ResponseWriter, r *http.Request) {
			a.adminGetUser(w, r, id)
		}, auth.PermViewUsers),
		http.MethodPatch: a.guard(func(w http.ResponseWriter, r *http.Request) {
			a.adminUpdateUser(w, r, id)
		}, auth.PermEditUsers),
		http.MethodDelete: a.guard(func(w http.ResponseWriter, r *http.Request) {
			a.adminDisableUser(w, r, id)
		}, auth.PermEditUsers),
	})(w, r)
}

func (a *API) adminGetUser(w http.ResponseWriter, r *http.Request, id string) {
	_, scope := actorAndScope(r)
	user, err := a.accounts.Get(r.Context(), scope, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) adminUpdateUser(w http.ResponseWriter, r *http.Request, id string) {
	var req userPatch
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := auth.IdentityUpdate{
		Phone:        req.Phone,
		Name:         req.Name,
		Password:     req.Password,
		DepartmentID: req.DepartmentID,
		Status:       req.Status,
	}
	if req.Role != nil {
		role, err := auth.ParseRole(*req.Role)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		upd.Role = &role
	}
	actor, scope := actorAndScope(r)
	user, err := a.accounts.Update(r.Context(), actor, scope, id, upd)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// adminDisableUser is the user delete: the account is disabled, never
// removed.
func (a *API) adminDisableUser(w http.ResponseWriter, r *http.Request, id string) {
	actor, scope := actorAndScope(r)
	if err := a.accounts.Disable(r.Context(), actor, scope, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
