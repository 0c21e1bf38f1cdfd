package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"
)

// RegistrationHandler serves /events/registrations.
type RegistrationHandler struct {
	svc RegistrationService
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

// Create handles POST /events/registrations
// Reserves a seat and stores the registration.
func (h *RegistrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRegistrationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.RegistrationResponse{Registration: reg})
}

// List handles GET /events/registrations?eventId=&status=
func (h *RegistrationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.RegistrationFilter{EventID: q.Get("eventId")}
	if raw := q.Get("status"); raw != "" {
		st, err := model.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = &st
	}

	regs, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if regs == nil {
		regs = []model.Registration{}
	}

	writeJSON(w, http.StatusOK, model.RegistrationListResponse{Registrations: regs, Count: len(regs)})
}

// Get handles GET /events/registrations/{id}
func (h *RegistrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.RegistrationResponse{Registration: reg})
}

// GetByInvitationCode handles GET /events/registrations/invitation/{code}
func (h *RegistrationHandler) GetByInvitationCode(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.GetByInvitationCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.RegistrationResponse{Registration: reg})
}

// Update handles PUT /events/registrations/{id}
// Body {status, rejectionReason?}; status is approved, rejected or cancelled.
func (h *RegistrationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateRegistrationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.svc.SetStatus(r.Context(), chi.URLParam(r, "id"), model.Status(req.Status), req.RejectionReason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.RegistrationResponse{Registration: reg})
}

// Delete handles DELETE /events/registrations/{id}
func (h *RegistrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "registration deleted"})
}
