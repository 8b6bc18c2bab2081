package dashboard

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	tokenCookie    = "dashboard_token"
	cookieLifetime = 24 * 60 * 60
)

func (h *Handler) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	enabled := h.pol.AuthEnabled()
	writeJSON(w, http.StatusOK, h.stamp(map[string]any{
		"authEnabled":     enabled,
		"tokenConfigured": enabled,
	}))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request body"})
		return
	}

	secret := h.pol.Token()
	if secret == "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Authentication not configured"})
		return
	}
	if !tokenEqual(body.Token, secret) {
		h.logger.Printf("Dashboard: rejected login from %s", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid token"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    body.Token,
		Path:     "/",
		MaxAge:   cookieLifetime,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Login successful"})
}

// authorized reports whether r carries the dashboard token. Always true when
// no token is configured.
func (h *Handler) authorized(r *http.Request) bool {
	secret := h.pol.Token()
	if secret == "" {
		return true
	}
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && tokenEqual(bearer, secret) {
		return true
	}
	if tok := r.Header.Get("X-Dashboard-Token"); tok != "" && tokenEqual(tok, secret) {
		return true
	}
	if c, err := r.Cookie(tokenCookie); err == nil && tokenEqual(c.Value, secret) {
		return true
	}
	if tok := r.URL.Query().Get("token"); tok != "" && tokenEqual(tok, secret) {
		return true
	}
	return false
}

// requireAPI answers unauthenticated API requests with 401.
func (h *Handler) requireAPI(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized", "authRequired": true})
			return
		}
		next(w, r)
	})
}

// requirePage redirects unauthenticated page requests to the login page.
func (h *Handler) requirePage(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.authorized(r) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next(w, r)
	})
}

func tokenEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
