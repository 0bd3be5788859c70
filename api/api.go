// Package api is the JSON HTTP surface of the ledger.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/billbatista/acasinha-splits/eventlogger"
	"github.com/billbatista/acasinha-splits/ledger"
	"github.com/billbatista/acasinha-splits/middleware"
	"github.com/billbatista/acasinha-splits/session"
	"github.com/billbatista/acasinha-splits/token"
	"github.com/billbatista/acasinha-splits/user"
	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/cors"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Ledger      *ledger.Service
	Users       user.Repository
	Sessions    session.Repository
	Tokens      *token.Issuer
	Audit       ledger.Auditor
	Logger      *slog.Logger
	DB          Pinger
	CORSOrigins []string
	// SecureCookies marks the session cookie Secure; off for plain-HTTP dev.
	SecureCookies bool
}

type API struct {
	Deps
	router *chi.Mux
}

func New(d Deps) *API {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	a := &API{Deps: d, router: chi.NewRouter()}
	a.setupRoutes()
	return a
}

func (a *API) setupRoutes() {
	r := a.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	var tokens middleware.TokenParser
	if a.Tokens != nil {
		tokens = a.Tokens
	}
	r.Use(middleware.AuthMiddleware(a.Sessions, tokens))

	r.Get("/health", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", a.handleRegister)
		r.Post("/auth/login", a.handleLogin)
		r.Post("/auth/logout", a.handleLogout)

		// Protected routes - require authentication
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Get("/users/me", a.handleMe)
			r.Patch("/users/me", a.handleUpdateMe)
			r.Get("/users/me/balance", a.handleMyBalance)
			r.Get("/users/me/entries", a.handleMyEntries)
			r.Get("/users", a.handleFindUser)
			r.Get("/users/{userID}/balance", a.handleUserBalance)

			r.Get("/events", a.handleListEvents)
			r.Post("/events", a.handleCreateEvent)
			r.Get("/events/{eventID}", a.handleGetEvent)
			r.Patch("/events/{eventID}", a.handleRenameEvent)
			r.Delete("/events/{eventID}", a.handleDeleteEvent)
			r.Post("/events/{eventID}/cancel", a.handleCancelEvent)
			r.Post("/events/{eventID}/entries", a.handleAddParticipant)

			r.Patch("/entries/{entryID}", a.handleAdjustEntry)
			r.Delete("/entries/{entryID}", a.handleDeleteEntry)

			r.Post("/payments", a.handleRecordPayment)
		})
	})
}

// Handler wraps the router with CORS.
func (a *API) Handler() http.Handler {
	origins := a.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	wildcard := len(origins) == 1 && origins[0] == "*"

	// Note: When AllowedOrigins is "*", AllowCredentials must be false
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: !wildcard,
	}).Handler(a.router)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.DB != nil {
		if err := a.DB.PingContext(r.Context()); err != nil {
			a.Logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) emit(eventType string, actor uuid.UUID, data map[string]string) {
	if a.Audit == nil {
		return
	}
	a.Audit.Log(eventlogger.NewEvent(
		eventlogger.WithType(eventType),
		eventlogger.WithActor(actor),
		eventlogger.WithData(data),
	))
}
