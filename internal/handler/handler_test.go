package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/log"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/repository"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/service"
)

var errUnexpectedCall = errors.New("unexpected call")

type fakeRegistrations struct {
	createFn    func(context.Context, model.CreateRegistrationRequest) (*model.Registration, error)
	setStatusFn func(context.Context, string, model.Status, string) (*model.Registration, error)
	deleteFn    func(context.Context, string) error
	getFn       func(context.Context, string) (*model.Registration, error)
	byCodeFn    func(context.Context, string) (*model.Registration, error)
	listFn      func(context.Context, model.RegistrationFilter) ([]model.Registration, error)
}

func (f *fakeRegistrations) Create(ctx context.Context, req model.CreateRegistrationRequest) (*model.Registration, error) {
	if f.createFn == nil {
		return nil, errUnexpectedCall
	}
	return f.createFn(ctx, req)
}

func (f *fakeRegistrations) SetStatus(ctx context.Context, id string, s model.Status, reason string) (*model.Registration, error) {
	if f.setStatusFn == nil {
		return nil, errUnexpectedCall
	}
	return f.setStatusFn(ctx, id, s, reason)
}

func (f *fakeRegistrations) Delete(ctx context.Context, id string) error {
	if f.deleteFn == nil {
		return errUnexpectedCall
	}
	return f.deleteFn(ctx, id)
}

func (f *fakeRegistrations) Get(ctx context.Context, id string) (*model.Registration, error) {
	if f.getFn == nil {
		return nil, errUnexpectedCall
	}
	return f.getFn(ctx, id)
}

func (f *fakeRegistrations) GetByInvitationCode(ctx context.Context, code string) (*model.Registration, error) {
	if f.byCodeFn == nil {
		return nil, errUnexpectedCall
	}
	return f.byCodeFn(ctx, code)
}

func (f *fakeRegistrations) List(ctx context.Context, filter model.RegistrationFilter) ([]model.Registration, error) {
	if f.listFn == nil {
		return nil, errUnexpectedCall
	}
	return f.listFn(ctx, filter)
}

type fakeEvents struct {
	createFn func(context.Context, model.CreateEventRequest) (*model.Event, error)
	listFn   func(context.Context) ([]model.Event, error)
	getFn    func(context.Context, string) (*model.Event, error)
	deleteFn func(context.Context, string) error
	resizeFn func(context.Context, string, int) (*model.Event, error)
}

func (f *fakeEvents) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	if f.createFn == nil {
		return nil, errUnexpectedCall
	}
	return f.createFn(ctx, req)
}

func (f *fakeEvents) ListEvents(ctx context.Context) ([]model.Event, error) {
	if f.listFn == nil {
		return nil, errUnexpectedCall
	}
	return f.listFn(ctx)
}

func (f *fakeEvents) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if f.getFn == nil {
		return nil, errUnexpectedCall
	}
	return f.getFn(ctx, id)
}

func (f *fakeEvents) DeleteEvent(ctx context.Context, id string) error {
	if f.deleteFn == nil {
		return errUnexpectedCall
	}
	return f.deleteFn(ctx, id)
}

func (f *fakeEvents) ResizeCapacity(ctx context.Context, id string, total int) (*model.Event, error) {
	if f.resizeFn == nil {
		return nil, errUnexpectedCall
	}
	return f.resizeFn(ctx, id, total)
}

type fakeStore struct {
	readOnly bool
	pingErr  error
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }
func (s *fakeStore) ReadOnly() bool             { return s.readOnly }
func (s *fakeStore) Name() string               { return "fake" }

func newTestRouter(regs *fakeRegistrations, events *fakeEvents, store *fakeStore) http.Handler {
	if regs == nil {
		regs = &fakeRegistrations{}
	}
	if events == nil {
		events = &fakeEvents{}
	}
	if store == nil {
		store = &fakeStore{}
	}
	return NewRouter(Deps{
		Registrations:  regs,
		Events:         events,
		Store:          store,
		MaxBodyBytes:   1 << 20,
		IdempotencyTTL: time.Minute,
	})
}

func do(h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func sampleRegistration() *model.Registration {
	return &model.Registration{
		ID:             "reg-1",
		EventID:        "evt-1",
		AttendeeInfo:   model.AttendeeInfo{Email: "a@x.com"},
		Status:         model.StatusPending,
		PaymentStatus:  model.PaymentPending,
		TotalAmount:    49,
		InvitationCode: "INV-0123456789AB",
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&service.ValidationError{Field: "eventId", Message: "is required"}, http.StatusBadRequest},
		{fmt.Errorf("%w: got %q", service.ErrInvalidStatus, "pending"), http.StatusBadRequest},
		{service.ErrDuplicateRegistration, http.StatusBadRequest},
		{service.ErrEventFull, http.StatusBadRequest},
		{service.ErrEventNotFound, http.StatusNotFound},
		{service.ErrRegistrationNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: approved to pending", service.ErrInvalidTransition), http.StatusConflict},
		{service.ErrEventHasRegistrations, http.StatusConflict},
		{service.ErrBelowReserved, http.StatusConflict},
		{fmt.Errorf("write capacity: %w", repository.ErrReadOnly), http.StatusServiceUnavailable},
		{fmt.Errorf("get event: %w", repository.ErrUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: event e1", service.ErrContention), http.StatusServiceUnavailable},
		{errors.New("pq: something broke"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got, msg := errorStatus(tt.err)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestCreateRegistration(t *testing.T) {
	var got model.CreateRegistrationRequest
	regs := &fakeRegistrations{
		createFn: func(_ context.Context, req model.CreateRegistrationRequest) (*model.Registration, error) {
			got = req
			return sampleRegistration(), nil
		},
	}
	h := newTestRouter(regs, nil, nil)

	rec := do(h, http.MethodPost, "/events/registrations",
		`{"eventId":"evt-1","attendeeInfo":{"email":"a@x.com","name":"Ann"},"pricingId":"std","totalAmount":49}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "evt-1", got.EventID)
	assert.Equal(t, "Ann", got.AttendeeInfo.Name)
	assert.Equal(t, 49.0, got.TotalAmount)

	resp := decode[model.RegistrationResponse](t, rec)
	require.NotNil(t, resp.Registration)
	assert.Equal(t, "reg-1", resp.Registration.ID)
	assert.Equal(t, "INV-0123456789AB", resp.Registration.InvitationCode)
}

func TestCreateRegistration_BadBody(t *testing.T) {
	h := newTestRouter(nil, nil, nil)

	for _, body := range []string{`{`, `{"eventId":"e","unknown":1}`} {
		rec := do(h, http.MethodPost, "/events/registrations", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode[model.ErrorResponse](t, rec).Error, "invalid request body")
	}
}

func TestCreateRegistration_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", &service.ValidationError{Field: "attendeeInfo.email", Message: "is required"}, http.StatusBadRequest, "attendeeInfo.email is required"},
		{"duplicate", service.ErrDuplicateRegistration, http.StatusBadRequest, service.ErrDuplicateRegistration.Error()},
		{"full", service.ErrEventFull, http.StatusBadRequest, service.ErrEventFull.Error()},
		{"no event", service.ErrEventNotFound, http.StatusNotFound, service.ErrEventNotFound.Error()},
		{"contention", service.ErrContention, http.StatusServiceUnavailable, service.ErrContention.Error()},
		{"unknown", errors.New("connection reset by peer at 10.0.0.7"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regs := &fakeRegistrations{
				createFn: func(context.Context, model.CreateRegistrationRequest) (*model.Registration, error) {
					return nil, tt.err
				},
			}
			rec := do(newTestRouter(regs, nil, nil), http.MethodPost, "/events/registrations",
				`{"eventId":"evt-1","attendeeInfo":{"email":"a@x.com"}}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decode[model.ErrorResponse](t, rec).Error)
		})
	}
}

func TestUpdateRegistration(t *testing.T) {
	var gotID, gotReason string
	var gotStatus model.Status
	regs := &fakeRegistrations{
		setStatusFn: func(_ context.Context, id string, s model.Status, reason string) (*model.Registration, error) {
			gotID, gotStatus, gotReason = id, s, reason
			switch s {
			case model.StatusRejected:
				reg := sampleRegistration()
				reg.Status = s
				reg.RejectionReason = reason
				return reg, nil
			case model.StatusApproved:
				return nil, fmt.Errorf("%w: cancelled to approved", service.ErrInvalidTransition)
			}
			return nil, fmt.Errorf("%w: got %q", service.ErrInvalidStatus, s)
		},
	}
	h := newTestRouter(regs, nil, nil)

	rec := do(h, http.MethodPut, "/events/registrations/reg-1", `{"status":"rejected","rejectionReason":"late"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "reg-1", gotID)
	assert.Equal(t, model.StatusRejected, gotStatus)
	assert.Equal(t, "late", gotReason)
	assert.Equal(t, "late", decode[model.RegistrationResponse](t, rec).Registration.RejectionReason)

	rec = do(h, http.MethodPut, "/events/registrations/reg-1", `{"status":"approved"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(h, http.MethodPut, "/events/registrations/reg-1", `{"status":"pending"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAndDeleteRegistration(t *testing.T) {
	regs := &fakeRegistrations{
		getFn: func(_ context.Context, id string) (*model.Registration, error) {
			if id == "reg-1" {
				return sampleRegistration(), nil
			}
			return nil, service.ErrRegistrationNotFound
		},
		byCodeFn: func(_ context.Context, code string) (*model.Registration, error) {
			if code == "INV-0123456789AB" {
				return sampleRegistration(), nil
			}
			return nil, service.ErrRegistrationNotFound
		},
		deleteFn: func(_ context.Context, id string) error {
			if id == "reg-1" {
				return nil
			}
			return service.ErrRegistrationNotFound
		},
	}
	h := newTestRouter(regs, nil, nil)

	rec := do(h, http.MethodGet, "/events/registrations/reg-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reg-1", decode[model.RegistrationResponse](t, rec).Registration.ID)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/events/registrations/nope", "").Code)

	rec = do(h, http.MethodGet, "/events/registrations/invitation/INV-0123456789AB", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reg-1", decode[model.RegistrationResponse](t, rec).Registration.ID)

	rec = do(h, http.MethodDelete, "/events/registrations/reg-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "registration deleted", decode[model.MessageResponse](t, rec).Message)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodDelete, "/events/registrations/nope", "").Code)
}

func TestListRegistrations(t *testing.T) {
	var got model.RegistrationFilter
	regs := &fakeRegistrations{
		listFn: func(_ context.Context, f model.RegistrationFilter) ([]model.Registration, error) {
			got = f
			if f.EventID == "empty" {
				return nil, nil
			}
			return []model.Registration{*sampleRegistration()}, nil
		},
	}
	h := newTestRouter(regs, nil, nil)

	rec := do(h, http.MethodGet, "/events/registrations?eventId=evt-1&status=pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "evt-1", got.EventID)
	require.NotNil(t, got.Status)
	assert.Equal(t, model.StatusPending, *got.Status)
	list := decode[model.RegistrationListResponse](t, rec)
	assert.Equal(t, 1, list.Count)
	assert.Len(t, list.Registrations, 1)

	rec = do(h, http.MethodGet, "/events/registrations?eventId=empty", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got.Status)
	assert.JSONEq(t, `{"registrations":[],"count":0}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/events/registrations?status=archived", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventRoutes(t *testing.T) {
	event := &model.Event{ID: "evt-1", Title: "Launch", Status: model.EventPublished, Capacity: model.NewCapacity(10, 0)}
	events := &fakeEvents{
		createFn: func(_ context.Context, req model.CreateEventRequest) (*model.Event, error) {
			if req.Capacity <= 0 {
				return nil, &service.ValidationError{Field: "capacity", Message: "must be a positive integer"}
			}
			return event, nil
		},
		listFn: func(context.Context) ([]model.Event, error) { return []model.Event{*event}, nil },
		getFn: func(_ context.Context, id string) (*model.Event, error) {
			if id == event.ID {
				return event, nil
			}
			return nil, service.ErrEventNotFound
		},
		deleteFn: func(context.Context, string) error { return service.ErrEventHasRegistrations },
		resizeFn: func(_ context.Context, _ string, total int) (*model.Event, error) {
			if total < 3 {
				return nil, service.ErrBelowReserved
			}
			e := *event
			e.Capacity = model.NewCapacity(total, 3)
			return &e, nil
		},
	}
	h := newTestRouter(nil, events, nil)

	rec := do(h, http.MethodPost, "/events", `{"title":"Launch","capacity":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "evt-1", decode[model.EventResponse](t, rec).Event.ID)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/events", `{"title":"Launch","capacity":0}`).Code)

	rec = do(h, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[model.EventListResponse](t, rec).Count)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/events/evt-1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/events/missing", "").Code)
	assert.Equal(t, http.StatusConflict, do(h, http.MethodDelete, "/events/evt-1", "").Code)

	rec = do(h, http.MethodPut, "/events/evt-1/capacity", `{"total":20}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.NewCapacity(20, 3), decode[model.EventResponse](t, rec).Event.Capacity)
	assert.Equal(t, http.StatusConflict, do(h, http.MethodPut, "/events/evt-1/capacity", `{"total":2}`).Code)
}

func TestReadOnlyMode(t *testing.T) {
	var calls atomic.Int32
	regs := &fakeRegistrations{
		createFn: func(context.Context, model.CreateRegistrationRequest) (*model.Registration, error) {
			calls.Add(1)
			return sampleRegistration(), nil
		},
		listFn: func(context.Context, model.RegistrationFilter) ([]model.Registration, error) {
			return []model.Registration{*sampleRegistration()}, nil
		},
	}
	h := newTestRouter(regs, nil, &fakeStore{readOnly: true})

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPost, "/events/registrations", `{"eventId":"evt-1","attendeeInfo":{"email":"a@x.com"}}`},
		{http.MethodPut, "/events/registrations/reg-1", `{"status":"approved"}`},
		{http.MethodDelete, "/events/registrations/reg-1", ""},
		{http.MethodPost, "/events", `{"title":"x","capacity":1}`},
		{http.MethodPut, "/events/evt-1/capacity", `{"total":5}`},
		{http.MethodDelete, "/events/evt-1", ""},
	} {
		rec := do(h, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, msgReadOnly, decode[model.ErrorResponse](t, rec).Error)
	}
	assert.Zero(t, calls.Load())

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/events/registrations", "").Code)
}

func TestHealthAndReady(t *testing.T) {
	store := &fakeStore{}
	h := newTestRouter(nil, nil, store)

	rec := do(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.ReadinessResponse{Status: "ready", Mode: "read-write", Store: "fake"},
		decode[model.ReadinessResponse](t, rec))

	store.readOnly = true
	rec = do(h, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "read-only", decode[model.ReadinessResponse](t, rec).Mode)

	store.pingErr = repository.ErrUnavailable
	rec = do(h, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decode[model.ReadinessResponse](t, rec).Status)
}

func TestCORSPreflight(t *testing.T) {
	rec := do(newTestRouter(nil, nil, nil), http.MethodOptions, "/events/registrations", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), IdempotencyHeader)
}

func TestBodyLimit(t *testing.T) {
	h := NewRouter(Deps{
		Registrations: &fakeRegistrations{},
		Events:        &fakeEvents{},
		Store:         &fakeStore{},
		MaxBodyBytes:  16,
	})
	rec := do(h, http.MethodPost, "/events/registrations",
		`{"eventId":"evt-1","attendeeInfo":{"email":"someone@example.com"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdempotentCreate(t *testing.T) {
	var calls atomic.Int32
	regs := &fakeRegistrations{
		createFn: func(_ context.Context, req model.CreateRegistrationRequest) (*model.Registration, error) {
			n := calls.Add(1)
			if req.EventID == "broken" {
				return nil, errors.New("boom")
			}
			reg := sampleRegistration()
			reg.ID = fmt.Sprintf("reg-%d", n)
			return reg, nil
		},
	}
	h := newTestRouter(regs, nil, nil)
	body := `{"eventId":"evt-1","attendeeInfo":{"email":"a@x.com"}}`

	first := do(h, http.MethodPost, "/events/registrations", body, IdempotencyHeader, "k1")
	require.Equal(t, http.StatusCreated, first.Code)

	second := do(h, http.MethodPost, "/events/registrations", body, IdempotencyHeader, "k1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, int32(1), calls.Load())

	third := do(h, http.MethodPost, "/events/registrations", body, IdempotencyHeader, "k2")
	require.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, "reg-2", decode[model.RegistrationResponse](t, third).Registration.ID)

	do(h, http.MethodPost, "/events/registrations", body)
	assert.Equal(t, int32(3), calls.Load())

	broken := `{"eventId":"broken","attendeeInfo":{"email":"a@x.com"}}`
	assert.Equal(t, http.StatusInternalServerError,
		do(h, http.MethodPost, "/events/registrations", broken, IdempotencyHeader, "k3").Code)
	assert.Equal(t, http.StatusInternalServerError,
		do(h, http.MethodPost, "/events/registrations", broken, IdempotencyHeader, "k3").Code)
	assert.Equal(t, int32(5), calls.Load())
}

func TestIdempotentCreate_InFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	regs := &fakeRegistrations{
		createFn: func(context.Context, model.CreateRegistrationRequest) (*model.Registration, error) {
			close(started)
			<-release
			return sampleRegistration(), nil
		},
	}
	h := newTestRouter(regs, nil, nil)
	body := `{"eventId":"evt-1","attendeeInfo":{"email":"a@x.com"}}`

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- do(h, http.MethodPost, "/events/registrations", body, IdempotencyHeader, "slow")
	}()
	<-started

	rec := do(h, http.MethodPost, "/events/registrations", body, IdempotencyHeader, "slow")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	assert.Equal(t, http.StatusCreated, (<-done).Code)
}

func TestIdempotentCreate_PanicIsNotRemembered(t *testing.T) {
	var calls atomic.Int32
	regs := &fakeRegistrations{
		createFn: func(context.Context, model.CreateRegistrationRequest) (*model.Registration, error) {
			if calls.Add(1) == 1 {
				panic("store exploded")
			}
			return sampleRegistration(), nil
		},
	}
	h := newTestRouter(regs, nil, nil)
	body := `{"eventId":"evt-1","attendeeInfo":{"email":"a@x.com"}}`

	first := do(h, http.MethodPost, "/events/registrations", body, IdempotencyHeader, "k-panic")
	require.Equal(t, http.StatusInternalServerError, first.Code)

	second := do(h, http.MethodPost, "/events/registrations", body, IdempotencyHeader, "k-panic")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Empty(t, second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, sampleRegistration().ID, decode[model.RegistrationResponse](t, second).Registration.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLogger_RecordsRecoveredPanicAs500(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, log.Init(log.Config{Level: "info", Format: "json"}, &buf))
	t.Cleanup(func() { _ = log.Init(log.Config{Level: "info", Format: "text"}, os.Stderr) })

	regs := &fakeRegistrations{
		createFn: func(context.Context, model.CreateRegistrationRequest) (*model.Registration, error) {
			panic("store exploded")
		},
	}
	h := newTestRouter(regs, nil, nil)
	rec := do(h, http.MethodPost, "/events/registrations", `{"eventId":"evt-1","attendeeInfo":{"email":"a@x.com"}}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var access map[string]any
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var line map[string]any
		if json.Unmarshal(sc.Bytes(), &line) == nil && line["msg"] == "request" {
			access = line
		}
	}
	require.NotNil(t, access, buf.String())
	assert.Equal(t, float64(http.StatusInternalServerError), access["status"])
	assert.Equal(t, "/events/registrations", access["path"])
}
