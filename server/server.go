// Package server exposes the operational JSON API: device-auth flows,
// account management, session control and cosmetic lookups.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jasonzli-DEV/fortniteLobbyBot/accounts"
	"github.com/jasonzli-DEV/fortniteLobbyBot/cosmetics"
	"github.com/jasonzli-DEV/fortniteLobbyBot/epicauth"
	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/presets"
	"github.com/jasonzli-DEV/fortniteLobbyBot/registry"
	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
	"github.com/jasonzli-DEV/fortniteLobbyBot/users"
	"github.com/jasonzli-DEV/fortniteLobbyBot/vault"
)

// Deps carries everything the handlers need.
type Deps struct {
	Auth      *epicauth.Service
	Vault     *vault.Vault
	Registry  *registry.Registry
	Users     users.Repo
	Accounts  accounts.Repo
	Sessions  sessions.Repo
	Cosmetics *cosmetics.Service
	Presets   presets.Repo

	MaxAccountsPerUser int
	ExtensionMinutes   int
	MaxExtensions      int
}

type Server struct {
	deps Deps
	http *http.Server
}

func New(addr string, deps Deps) *Server {
	s := &Server{deps: deps}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(api chi.Router) {
		api.Post("/auth/start", s.handleAuthStart)
		api.Post("/auth/poll", s.handleAuthPoll)
		api.Post("/auth/cancel", s.handleAuthCancel)

		api.Post("/accounts", s.handleAccountAdd)
		api.Get("/accounts", s.handleAccountList)
		api.Delete("/accounts/{accountID}", s.handleAccountRemove)

		api.Post("/sessions/start", s.handleSessionStart)
		api.Get("/sessions", s.handleSessionList)
		api.Post("/sessions/{accountID}/stop", s.handleSessionStop)
		api.Post("/sessions/{accountID}/extend", s.handleSessionExtend)
		api.Post("/sessions/{accountID}/loadout", s.handleSessionLoadout)
		api.Get("/sessions/{accountID}/status", s.handleSessionStatus)

		api.Post("/presets", s.handlePresetSave)
		api.Get("/presets", s.handlePresetList)
		api.Post("/presets/apply", s.handlePresetApply)
		api.Delete("/presets/{name}", s.handlePresetDelete)

		api.Get("/cosmetics/search", s.handleCosmeticsSearch)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the listener fails or Shutdown runs.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router (testing only).
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.Status()).
			Dur("took", time.Since(started)).
			Msg("request")
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func respondErr(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound),
		apperrors.Is(err, apperrors.ErrAccountNotFound),
		apperrors.Is(err, apperrors.ErrSessionNotFound),
		apperrors.Is(err, apperrors.ErrNoAuthSession),
		apperrors.Is(err, apperrors.ErrPresetNotFound),
		apperrors.Is(err, apperrors.ErrNotRunning):
		return http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrDuplicateSession),
		apperrors.Is(err, apperrors.ErrAccountExists),
		apperrors.Is(err, apperrors.ErrExtensionsUsedUp),
		apperrors.Is(err, apperrors.ErrSessionEnded):
		return http.StatusConflict
	case apperrors.Is(err, apperrors.ErrUserCapacity),
		apperrors.Is(err, apperrors.ErrGlobalCapacity):
		return http.StatusTooManyRequests
	case apperrors.Is(err, apperrors.ErrAuthDenied),
		apperrors.Is(err, apperrors.ErrPermissionDenied):
		return http.StatusForbidden
	case apperrors.Is(err, apperrors.ErrAuthExpired),
		apperrors.Is(err, apperrors.ErrAuthTimedOut),
		apperrors.Is(err, apperrors.ErrAuthCancelled):
		return http.StatusGone
	case apperrors.Is(err, apperrors.ErrInvalidGrant),
		apperrors.Is(err, apperrors.ErrVaultCorrupt),
		apperrors.Is(err, apperrors.ErrNotReady):
		return http.StatusUnprocessableEntity
	case apperrors.Is(err, apperrors.ErrPresetName):
		return http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrClientDisabled):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
