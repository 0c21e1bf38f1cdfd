package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"
)

// Collection and index names used by MongoStore.
const (
	EventsCollection        = "events"
	RegistrationsCollection = "registrations"

	indexEventEmail     = "event_email_unique"
	indexInvitationCode = "invitation_code_unique"
	indexEventStatus    = "event_status"
)

type eventDoc struct {
	ID               string            `bson:"_id"`
	Title            string            `bson:"title"`
	Description      string            `bson:"description,omitempty"`
	Status           model.EventStatus `bson:"status"`
	RequiresApproval bool              `bson:"requiresApproval"`
	Capacity         model.Capacity    `bson:"capacity"`
	Version          int64             `bson:"version"`
	CreatedAt        time.Time         `bson:"createdAt"`
	UpdatedAt        time.Time         `bson:"updatedAt"`
}

type registrationDoc struct {
	ID               string              `bson:"_id"`
	EventID          string              `bson:"eventId"`
	AttendeeInfo     model.AttendeeInfo  `bson:"attendeeInfo"`
	PricingID        string              `bson:"pricingId,omitempty"`
	Status           model.Status        `bson:"status"`
	PaymentStatus    model.PaymentStatus `bson:"paymentStatus"`
	TotalAmount      float64             `bson:"totalAmount"`
	InvitationCode   string              `bson:"invitationCode"`
	RejectionReason  string              `bson:"rejectionReason,omitempty"`
	RegistrationDate time.Time           `bson:"registrationDate"`
	UpdatedAt        time.Time           `bson:"updatedAt"`
}

// MongoStore implements Store on two MongoDB collections.
type MongoStore struct {
	client *mongo.Client
	events *mongo.Collection
	regs   *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore uses the named database on a connected client.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client: client,
		events: db.Collection(EventsCollection),
		regs:   db.Collection(RegistrationsCollection),
	}
}

// EnsureIndexes creates the unique indexes the workflow relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.regs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "eventId", Value: 1}, {Key: "attendeeInfo.email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexEventEmail),
		},
		{
			Keys:    bson.D{{Key: "invitationCode", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexInvitationCode),
		},
		{
			Keys:    bson.D{{Key: "eventId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName(indexEventStatus),
		},
	})
	if err != nil {
		return fmt.Errorf("create registration indexes: %w", classifyMongo(err))
	}
	return nil
}

func (s *MongoStore) Name() string   { return "mongo" }
func (s *MongoStore) ReadOnly() bool { return false }

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := s.events.InsertOne(ctx, toEventDoc(e))
	if err != nil {
		return fmt.Errorf("insert event: %w", classifyMongo(err))
	}
	return nil
}

func (s *MongoStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var doc eventDoc
	if err := s.events.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", classifyMongo(err))
	}
	return doc.model(), nil
}

func (s *MongoStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.events.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", classifyMongo(err))
	}
	var docs []eventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode events: %w", classifyMongo(err))
	}
	events := make([]model.Event, 0, len(docs))
	for i := range docs {
		events = append(events, *docs[i].model())
	}
	return events, nil
}

// SwapCapacity matches on the version the caller read, so a concurrent
// writer makes the filter miss instead of being overwritten.
func (s *MongoStore) SwapCapacity(ctx context.Context, id string, version int64, c model.Capacity) error {
	filter := bson.D{{Key: "_id", Value: id}, {Key: "version", Value: version}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "capacity", Value: c},
			{Key: "updatedAt", Value: time.Now().UTC()},
		}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
	}
	res, err := s.events.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update capacity: %w", classifyMongo(err))
	}
	if res.MatchedCount == 1 {
		return nil
	}
	return s.missingOrConflict(ctx, s.events, id)
}

// DeleteEvent refuses to remove an event that still has registrations or
// holds reserved seats. A reservation always precedes the registration
// insert, so the reserved filter also blocks a create that is in flight.
func (s *MongoStore) DeleteEvent(ctx context.Context, id string) error {
	n, err := s.regs.CountDocuments(ctx, bson.M{"eventId": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("count registrations: %w", classifyMongo(err))
	}
	if n > 0 {
		if _, err := s.GetEvent(ctx, id); err != nil {
			return err
		}
		return ErrHasRegistrations
	}
	res, err := s.events.DeleteOne(ctx, bson.M{"_id": id, "capacity.reserved": 0})
	if err != nil {
		return fmt.Errorf("delete event: %w", classifyMongo(err))
	}
	if res.DeletedCount == 0 {
		if _, err := s.GetEvent(ctx, id); err != nil {
			return err
		}
		return ErrHasRegistrations
	}
	return nil
}

func (s *MongoStore) InsertRegistration(ctx context.Context, reg *model.Registration) error {
	if _, err := s.GetEvent(ctx, reg.EventID); err != nil {
		return err
	}
	if _, err := s.regs.InsertOne(ctx, toRegistrationDoc(reg)); err != nil {
		return fmt.Errorf("insert registration: %w", classifyMongo(err))
	}
	return nil
}

func (s *MongoStore) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	return s.findRegistration(ctx, bson.M{"_id": id})
}

func (s *MongoStore) FindByEventAndEmail(ctx context.Context, eventID, email string) (*model.Registration, error) {
	return s.findRegistration(ctx, bson.D{{Key: "eventId", Value: eventID}, {Key: "attendeeInfo.email", Value: email}})
}

func (s *MongoStore) FindByInvitationCode(ctx context.Context, code string) (*model.Registration, error) {
	return s.findRegistration(ctx, bson.M{"invitationCode": code})
}

func (s *MongoStore) ListRegistrations(ctx context.Context, filter model.RegistrationFilter) ([]model.Registration, error) {
	q := bson.D{}
	if filter.EventID != "" {
		q = append(q, bson.E{Key: "eventId", Value: filter.EventID})
	}
	if filter.Status != nil {
		q = append(q, bson.E{Key: "status", Value: *filter.Status})
	}
	opts := options.Find().SetSort(bson.D{{Key: "registrationDate", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.regs.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", classifyMongo(err))
	}
	var docs []registrationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode registrations: %w", classifyMongo(err))
	}
	regs := make([]model.Registration, 0, len(docs))
	for i := range docs {
		regs = append(regs, *docs[i].model())
	}
	return regs, nil
}

func (s *MongoStore) UpdateRegistrationStatus(ctx context.Context, id string, from model.Status, change model.StatusChange) error {
	filter := bson.D{{Key: "_id", Value: id}, {Key: "status", Value: from}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: change.Status},
		{Key: "rejectionReason", Value: change.RejectionReason},
		{Key: "updatedAt", Value: change.UpdatedAt},
	}}}
	res, err := s.regs.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update registration status: %w", classifyMongo(err))
	}
	if res.MatchedCount == 1 {
		return nil
	}
	return s.missingOrConflict(ctx, s.regs, id)
}

func (s *MongoStore) DeleteRegistration(ctx context.Context, id string, expected model.Status) error {
	res, err := s.regs.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}, {Key: "status", Value: expected}})
	if err != nil {
		return fmt.Errorf("delete registration: %w", classifyMongo(err))
	}
	if res.DeletedCount == 1 {
		return nil
	}
	return s.missingOrConflict(ctx, s.regs, id)
}

func (s *MongoStore) findRegistration(ctx context.Context, filter any) (*model.Registration, error) {
	var doc registrationDoc
	if err := s.regs.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", classifyMongo(err))
	}
	return doc.model(), nil
}

func (s *MongoStore) missingOrConflict(ctx context.Context, coll *mongo.Collection, id string) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("check existence: %w", classifyMongo(err))
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func toEventDoc(e *model.Event) eventDoc {
	return eventDoc{
		ID:               e.ID,
		Title:            e.Title,
		Description:      e.Description,
		Status:           e.Status,
		RequiresApproval: e.RequiresApproval,
		Capacity:         e.Capacity,
		Version:          e.Version,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func (d *eventDoc) model() *model.Event {
	return &model.Event{
		ID:               d.ID,
		Title:            d.Title,
		Description:      d.Description,
		Status:           d.Status,
		RequiresApproval: d.RequiresApproval,
		Capacity:         d.Capacity,
		Version:          d.Version,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func toRegistrationDoc(r *model.Registration) registrationDoc {
	return registrationDoc{
		ID:               r.ID,
		EventID:          r.EventID,
		AttendeeInfo:     r.AttendeeInfo,
		PricingID:        r.PricingID,
		Status:           r.Status,
		PaymentStatus:    r.PaymentStatus,
		TotalAmount:      r.TotalAmount,
		InvitationCode:   r.InvitationCode,
		RejectionReason:  r.RejectionReason,
		RegistrationDate: r.RegistrationDate,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (d *registrationDoc) model() *model.Registration {
	return &model.Registration{
		ID:               d.ID,
		EventID:          d.EventID,
		AttendeeInfo:     d.AttendeeInfo,
		PricingID:        d.PricingID,
		Status:           d.Status,
		PaymentStatus:    d.PaymentStatus,
		TotalAmount:      d.TotalAmount,
		InvitationCode:   d.InvitationCode,
		RejectionReason:  d.RejectionReason,
		RegistrationDate: d.RegistrationDate,
		UpdatedAt:        d.UpdatedAt,
	}
}

// classifyMongo maps driver errors onto the package's sentinel errors.
func classifyMongo(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		if strings.Contains(err.Error(), indexInvitationCode) {
			return ErrDuplicateInvitation
		}
		return ErrDuplicate
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
