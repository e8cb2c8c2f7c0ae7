package httpapi

import (
	"errors"
	"net/http"
	"time"

	"zapchasti.org/internal/auth"
)

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type registerRequest struct {
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      auth.Identity `json:"user"`
}

func (a *API) issueSession(w http.ResponseWriter, r *http.Request, id auth.Identity, cookie string) {
	token, expiresAt, err := a.tokens.Issue(id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.setSessionCookie(w, cookie, token, int(a.tokens.TTL().Seconds()))
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      id,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.accounts.Login(r.Context(), req.Phone, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			writeError(w, r, http.StatusUnauthorized, "Пользователь не найден")
		case errors.Is(err, auth.ErrWrongPassword):
			writeError(w, r, http.StatusUnauthorized, "Неверный пароль")
		default:
			handleDomainError(w, r, err)
		}
		return
	}
	a.issueSession(w, r, id, clientCookie)
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.accounts.Register(r.Context(), req.Phone, req.Name, req.Password)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.issueSession(w, r, id, clientCookie)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.clearSessionCookie(w, clientCookie)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	id, err := a.authenticate(r)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

// handleAdminLogin is the back-office door. An unknown phone and a known
// phone without a back-office role answer identically.
func (a *API) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.accounts.AdminLogin(r.Context(), req.Phone, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			writeError(w, r, http.StatusUnauthorized, "Пользователь не найден или не админ")
		case errors.Is(err, auth.ErrWrongPassword):
			writeError(w, r, http.StatusUnauthorized, "Неверный пароль")
		default:
			handleDomainError(w, r, err)
		}
		return
	}
	a.issueSession(w, r, id, adminCookie)
}

func (a *API) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	a.clearSessionCookie(w, adminCookie)
	w.WriteHeader(http.StatusNoContent)
}
