package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Registrations  RegistrationService
	Events         EventService
	Store          StoreStatus
	MaxBodyBytes   int64
	IdempotencyTTL time.Duration
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	regs := NewRegistrationHandler(d.Registrations)
	events := NewEventHandler(d.Events)

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger)                  // structured access log, outside Recoverer so panics log as 500
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(CORS)

	// Health
	r.Get("/health", HealthCheck)
	r.Get("/ready", ReadyCheck(d.Store))

	createRegistration := http.Handler(http.HandlerFunc(regs.Create))
	if d.IdempotencyTTL > 0 {
		createRegistration = NewIdempotency(d.IdempotencyTTL).Middleware(createRegistration)
	}

	// API routes
	r.Route("/events", func(r chi.Router) {
		r.Use(ReadOnly(d.Store))
		r.Use(BodyLimit(d.MaxBodyBytes))

		r.Post("/", events.CreateEvent)
		r.Get("/", events.ListEvents)

		r.Route("/registrations", func(r chi.Router) {
			r.Method(http.MethodPost, "/", createRegistration)
			r.Get("/", regs.List)
			r.Get("/invitation/{code}", regs.GetByInvitationCode)
			r.Get("/{id}", regs.Get)
			r.Put("/{id}", regs.Update)
			r.Delete("/{id}", regs.Delete)
		})

		r.Get("/{id}", events.GetEvent)
		r.Delete("/{id}", events.DeleteEvent)
		r.Put("/{id}/capacity", events.ResizeCapacity)
	})

	return r
}
