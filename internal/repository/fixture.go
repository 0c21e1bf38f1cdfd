package repository

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"
)

//go:embed fixtures/default.yaml
var defaultFixtures []byte

type fixtureEvent struct {
	ID               string            `yaml:"id"`
	Title            string            `yaml:"title"`
	Description      string            `yaml:"description"`
	Status           model.EventStatus `yaml:"status"`
	RequiresApproval bool              `yaml:"requiresApproval"`
	Total            int               `yaml:"total"`
	CreatedAt        time.Time         `yaml:"createdAt"`
}

type fixtureRegistration struct {
	ID               string              `yaml:"id"`
	EventID          string              `yaml:"eventId"`
	AttendeeInfo     model.AttendeeInfo  `yaml:"attendeeInfo"`
	PricingID        string              `yaml:"pricingId"`
	Status           model.Status        `yaml:"status"`
	PaymentStatus    model.PaymentStatus `yaml:"paymentStatus"`
	TotalAmount      float64             `yaml:"totalAmount"`
	InvitationCode   string              `yaml:"invitationCode"`
	RegistrationDate time.Time           `yaml:"registrationDate"`
}

type fixtureFile struct {
	Events        []fixtureEvent        `yaml:"events"`
	Registrations []fixtureRegistration `yaml:"registrations"`
}

// FixtureStore serves a fixed data set and refuses every mutation with
// ErrReadOnly. It backs the service's degraded mode.
type FixtureStore struct {
	data *MemoryStore
}

var _ Store = (*FixtureStore)(nil)

// LoadFixtures reads fixtures from path, or the embedded defaults when path
// is empty.
func LoadFixtures(path string) (*FixtureStore, error) {
	raw := defaultFixtures
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read fixtures: %w", err)
		}
		raw = b
	}
	return ParseFixtures(raw)
}

// ParseFixtures builds a FixtureStore from YAML. Reserved seats are derived
// from the registrations that hold a seat, so the loaded data always
// satisfies the ledger invariants.
func ParseFixtures(raw []byte) (*FixtureStore, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	held := make(map[string]int)
	for _, r := range f.Registrations {
		if _, err := model.ParseStatus(string(r.Status)); err != nil {
			return nil, fmt.Errorf("fixture registration %s: %w", r.ID, err)
		}
		if r.Status.HoldsSeat() {
			held[r.EventID]++
		}
	}

	mem := NewMemoryStore()
	for _, e := range f.Events {
		if e.Total <= 0 {
			return nil, fmt.Errorf("fixture event %s: total must be positive", e.ID)
		}
		if held[e.ID] > e.Total {
			return nil, fmt.Errorf("fixture event %s: %d seats held exceeds total %d", e.ID, held[e.ID], e.Total)
		}
		mem.events[e.ID] = model.Event{
			ID:               e.ID,
			Title:            e.Title,
			Description:      e.Description,
			Status:           e.Status,
			RequiresApproval: e.RequiresApproval,
			Capacity:         model.NewCapacity(e.Total, held[e.ID]),
			CreatedAt:        e.CreatedAt,
			UpdatedAt:        e.CreatedAt,
		}
	}

	for _, r := range f.Registrations {
		if _, ok := mem.events[r.EventID]; !ok {
			return nil, fmt.Errorf("fixture registration %s: unknown event %s", r.ID, r.EventID)
		}
		reg := model.Registration{
			ID:               r.ID,
			EventID:          r.EventID,
			AttendeeInfo:     r.AttendeeInfo,
			PricingID:        r.PricingID,
			Status:           r.Status,
			PaymentStatus:    r.PaymentStatus,
			TotalAmount:      r.TotalAmount,
			InvitationCode:   r.InvitationCode,
			RegistrationDate: r.RegistrationDate,
			UpdatedAt:        r.RegistrationDate,
		}
		if err := mem.InsertRegistration(context.Background(), &reg); err != nil {
			return nil, fmt.Errorf("fixture registration %s: %w", r.ID, err)
		}
	}

	return &FixtureStore{data: mem}, nil
}

func (s *FixtureStore) Name() string                   { return "fixture" }
func (s *FixtureStore) ReadOnly() bool                 { return true }
func (s *FixtureStore) Ping(ctx context.Context) error { return ctx.Err() }
func (s *FixtureStore) Close(context.Context) error    { return nil }

func (s *FixtureStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.data.GetEvent(ctx, id)
}

func (s *FixtureStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.data.ListEvents(ctx)
}

func (s *FixtureStore) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	return s.data.GetRegistration(ctx, id)
}

func (s *FixtureStore) FindByEventAndEmail(ctx context.Context, eventID, email string) (*model.Registration, error) {
	return s.data.FindByEventAndEmail(ctx, eventID, email)
}

func (s *FixtureStore) FindByInvitationCode(ctx context.Context, code string) (*model.Registration, error) {
	return s.data.FindByInvitationCode(ctx, code)
}

func (s *FixtureStore) ListRegistrations(ctx context.Context, filter model.RegistrationFilter) ([]model.Registration, error) {
	return s.data.ListRegistrations(ctx, filter)
}

func (s *FixtureStore) CreateEvent(context.Context, *model.Event) error { return ErrReadOnly }

func (s *FixtureStore) SwapCapacity(context.Context, string, int64, model.Capacity) error {
	return ErrReadOnly
}

func (s *FixtureStore) DeleteEvent(context.Context, string) error { return ErrReadOnly }

func (s *FixtureStore) InsertRegistration(context.Context, *model.Registration) error {
	return ErrReadOnly
}

func (s *FixtureStore) UpdateRegistrationStatus(context.Context, string, model.Status, model.StatusChange) error {
	return ErrReadOnly
}

func (s *FixtureStore) DeleteRegistration(context.Context, string, model.Status) error {
	return ErrReadOnly
}
