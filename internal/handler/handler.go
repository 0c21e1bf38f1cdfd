// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/log"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/repository"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/service"
)

// RegistrationService is the registration workflow as the handlers use it.
type RegistrationService interface {
	Create(ctx context.Context, req model.CreateRegistrationRequest) (*model.Registration, error)
	SetStatus(ctx context.Context, id string, status model.Status, reason string) (*model.Registration, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Registration, error)
	GetByInvitationCode(ctx context.Context, code string) (*model.Registration, error)
	List(ctx context.Context, filter model.RegistrationFilter) ([]model.Registration, error)
}

// EventService is event management as the handlers use it.
type EventService interface {
	CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ResizeCapacity(ctx context.Context, id string, total int) (*model.Event, error)
}

// StoreStatus reports on the backing store for readiness and degraded mode.
type StoreStatus interface {
	Ping(ctx context.Context) error
	ReadOnly() bool
	Name() string
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

const msgInternal = "internal server error"

// errorStatus maps a service error onto an HTTP status and a client-safe
// message.
func errorStatus(err error) (int, string) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrDuplicateRegistration),
		errors.Is(err, service.ErrEventFull):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrEventNotFound),
		errors.Is(err, service.ErrRegistrationNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrEventHasRegistrations),
		errors.Is(err, service.ErrBelowReserved):
		return http.StatusConflict, err.Error()
	case errors.Is(err, repository.ErrReadOnly):
		return http.StatusServiceUnavailable, msgReadOnly
	case errors.Is(err, repository.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "storage is temporarily unavailable, retry later"
	case errors.Is(err, service.ErrContention):
		return http.StatusServiceUnavailable, service.ErrContention.Error()
	}
	return http.StatusInternalServerError, msgInternal
}

// writeServiceError writes the mapped error. Server-side failures are
// logged in full; the client only sees a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	switch {
	case status == http.StatusInternalServerError:
		log.ErrorContext(r.Context(), log.CatHTTP, "request failed",
			"method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
	case status == http.StatusServiceUnavailable:
		log.Warn(log.CatHTTP, "request refused",
			"method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	writeError(w, status, msg)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyCheck handles GET /ready
// Reports 503 when the store does not answer a ping.
func ReadyCheck(store StoreStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := "read-write"
		if store.ReadOnly() {
			mode = "read-only"
		}
		resp := model.ReadinessResponse{Status: "ready", Mode: mode, Store: store.Name()}

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			log.Warn(log.CatHTTP, "readiness ping failed", "store", store.Name(), "error", err)
			resp.Status = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
