package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"
)

// EventHandler serves /events.
type EventHandler struct {
	svc EventService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

// CreateEvent handles POST /events
// Creates a new event with the given title and capacity.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.EventResponse{Event: event})
}

// ListEvents handles GET /events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, model.EventListResponse{Events: events, Count: len(events)})
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.EventResponse{Event: event})
}

// DeleteEvent handles DELETE /events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "event deleted"})
}

// ResizeCapacity handles PUT /events/{id}/capacity
func (h *EventHandler) ResizeCapacity(w http.ResponseWriter, r *http.Request) {
	var req model.ResizeCapacityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.ResizeCapacity(r.Context(), chi.URLParam(r, "id"), req.Total)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.EventResponse{Event: event})
}
