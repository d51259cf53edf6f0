package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	appAuth "github.com/giveaway-hub/giveaway-hub/internal/application/auth"
	appGiveaway "github.com/giveaway-hub/giveaway-hub/internal/application/giveaway"
	"github.com/giveaway-hub/giveaway-hub/internal/domain/winner"
	"github.com/giveaway-hub/giveaway-hub/internal/infrastructure/sse"
)

// SignatureVerifier authenticates inbound webhook deliveries.
type SignatureVerifier interface {
	VerifySignature(ctx context.Context, messageID, timestamp string, body []byte, signature string) error
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	giveawaySvc  *appGiveaway.Service
	authSvc      *appAuth.Service
	winners      winner.Repository
	hub          *sse.Hub
	verifier     SignatureVerifier
	cookieName   string
	cookieSecure bool
	logger       zerolog.Logger
}

func NewServer(
	giveawaySvc *appGiveaway.Service,
	authSvc *appAuth.Service,
	winners winner.Repository,
	hub *sse.Hub,
	verifier SignatureVerifier,
	cookieName string,
	cookieSecure bool,
	logger zerolog.Logger,
) *Server {
	return &Server{
		giveawaySvc:  giveawaySvc,
		authSvc:      authSvc,
		winners:      winners,
		hub:          hub,
		verifier:     verifier,
		cookieName:   cookieName,
		cookieSecure: cookieSecure,
		logger:       logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", s.login)
			r.Get("/callback", s.callback)
			r.Post("/logout", s.logout)
		})

		r.Route("/giveaway", func(r chi.Router) {
			// The SSE stream stays open indefinitely, so the request
			// timeout applies only to the control and read routes.
			r.Get("/events", s.events)
			r.Get("/status", s.status)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(30 * time.Second))
				r.Use(s.requireAuth)
				r.Post("/start", s.startGiveaway)
				r.Post("/stop", s.stopGiveaway)
				r.Post("/reset", s.resetGiveaway)
				r.Post("/roll", s.rollWinner)
			})
		})

		r.With(middleware.Timeout(30 * time.Second)).Post("/webhook", s.webhook)
	})

	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.authSvc.SessionUser(r.Context(), s.sessionCookie(r)); err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) sessionCookie(r *http.Request) string {
	c, err := r.Cookie(s.cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// decodeBody decodes a JSON body, treating an empty body as an empty object.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
