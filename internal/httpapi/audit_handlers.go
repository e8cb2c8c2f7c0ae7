package httpapi

import (
	"net/http"
	"strconv"

	"zapchasti.org/internal/audit"
)

func (a *API) adminProductAudit(w http.ResponseWriter, r *http.Request) {
	a.serveAudit(w, r, audit.EntityProduct)
}

func (a *API) adminUserAudit(w http.ResponseWriter, r *http.Request) {
	a.serveAudit(w, r, audit.EntityUser)
}

func (a *API) serveAudit(w http.ResponseWriter, r *http.Request, entity audit.Entity) {
	_, scope := actorAndScope(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := a.auditLog.ListEntries(r.Context(), entity, scope, limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
