package httpapi

import (
	"net/http"
	"time"
)

const sessionMaxAge = 30 * 24 * time.Hour

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	authorizeURL, err := s.authSvc.BeginLogin()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	http.Redirect(w, r, authorizeURL, http.StatusFound)
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "state and code are required")
		return
	}

	cookieValue, err := s.authSvc.CompleteLogin(r.Context(), state, code)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    cookieValue,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// The subscription needs the freshly stored token; a failure here is
	// retried by the background loop.
	if err := s.authSvc.EnsureEventSubscription(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("chat event subscription failed after login")
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}
