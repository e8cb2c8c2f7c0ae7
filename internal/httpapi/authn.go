package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"zapchasti.org/internal/auth"
)

const (
	adminCookie  = "adminToken"
	clientCookie = "authToken"

	authHeader = "Authorization"
	bearer     = "Bearer "
)

// tokenFromRequest pulls the session token: Authorization header first,
// then the back-office cookie, then the storefront cookie.
func tokenFromRequest(r *http.Request) (string, error) {
	if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
		if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
			return "", auth.ErrNoToken
		}
		token := strings.TrimSpace(header[len(bearer):])
		if token == "" {
			return "", auth.ErrNoToken
		}
		return token, nil
	}
	for _, name := range []string{adminCookie, clientCookie} {
		if c, err := r.Cookie(name); err == nil && strings.TrimSpace(c.Value) != "" {
			return strings.TrimSpace(c.Value), nil
		}
	}
	return "", auth.ErrNoToken
}

// authenticate verifies the token and loads the current identity from the
// store. The department scope is resolved from the stored identity, not
// the token, so a department transfer takes effect without re-login.
func (a *API) authenticate(r *http.Request) (auth.Identity, error) {
	token, err := tokenFromRequest(r)
	if err != nil {
		return auth.Identity{}, err
	}
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return auth.Identity{}, err
	}
	id, err := a.identities.FindIdentity(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return auth.Identity{}, auth.ErrInvalidToken
		}
		// A store outage is not a credential problem; let the caller
		// answer 500 instead of telling a valid session it is invalid.
		return auth.Identity{}, fmt.Errorf("load identity: %w", err)
	}
	if id.Status != auth.StatusActive {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}

// setSessionCookie issues the session cookie. Secure is set only in
// production so local development over plain HTTP keeps working.
func (a *API) setSessionCookie(w http.ResponseWriter, name, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.production,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.production,
		SameSite: http.SameSiteLaxMode,
	})
}
