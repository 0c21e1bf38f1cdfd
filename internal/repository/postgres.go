package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/model"
)

// PostgreSQL error codes and constraint names the adapter translates.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	constraintInvitationCode = "registrations_invitation_code_key"
)

const eventColumns = `id, title, description, status, requires_approval,
	capacity_total, capacity_reserved, capacity_available, version, created_at, updated_at`

const registrationColumns = `id, event_id, attendee_email, attendee_name, attendee_phone, attendee_company,
	pricing_id, status, payment_status, total_amount, invitation_code, rejection_reason,
	registration_date, updated_at`

// PostgresStore implements Store with pgx directly (no ORM).
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore constructs a PostgresStore on an open pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (r *PostgresStore) Name() string   { return "postgres" }
func (r *PostgresStore) ReadOnly() bool { return false }

func (r *PostgresStore) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *PostgresStore) Close(context.Context) error {
	r.db.Close()
	return nil
}

// CreateEvent inserts a new event.
func (r *PostgresStore) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Title, e.Description, e.Status, e.RequiresApproval,
		e.Capacity.Total, e.Capacity.Reserved, e.Capacity.Available, e.Version, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", classifyPg(err))
	}
	return nil
}

// GetEvent returns a single event or ErrNotFound.
func (r *PostgresStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", classifyPg(err))
	}
	return e, nil
}

// ListEvents returns all events ordered by creation time descending.
func (r *PostgresStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", classifyPg(err))
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// SwapCapacity writes the capacity triple only if the row still carries
// the version the caller read. The CHECK constraints on the table reject
// any triple that breaks 0 <= reserved <= total.
func (r *PostgresStore) SwapCapacity(ctx context.Context, id string, version int64, c model.Capacity) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events
		 SET capacity_total = $3, capacity_reserved = $4, capacity_available = $5,
		     version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $2`,
		id, version, c.Total, c.Reserved, c.Available,
	)
	if err != nil {
		return fmt.Errorf("update capacity: %w", classifyPg(err))
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return r.missingOrConflict(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id)
}

// DeleteEvent removes an event that holds no reserved seats. The
// registrations foreign key is ON DELETE RESTRICT, so an event with
// registrations cannot be removed even if one is inserted concurrently.
func (r *PostgresStore) DeleteEvent(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1 AND capacity_reserved = 0`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", classifyPg(err))
	}
	if tag.RowsAffected() == 0 {
		err := r.missingOrConflict(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id)
		if errors.Is(err, ErrConflict) {
			return ErrHasRegistrations
		}
		return err
	}
	return nil
}

// InsertRegistration creates the registration record. Uniqueness of
// (event_id, attendee_email) and invitation_code is enforced by indexes.
func (r *PostgresStore) InsertRegistration(ctx context.Context, reg *model.Registration) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		reg.ID, reg.EventID, reg.AttendeeInfo.Email, reg.AttendeeInfo.Name, reg.AttendeeInfo.Phone,
		reg.AttendeeInfo.Company, reg.PricingID, reg.Status, reg.PaymentStatus, reg.TotalAmount,
		reg.InvitationCode, reg.RejectionReason, reg.RegistrationDate, reg.UpdatedAt,
	)
	if err != nil {
		err = classifyPg(err)
		if errors.Is(err, ErrHasRegistrations) {
			// Foreign key on insert means the event row is gone.
			return ErrNotFound
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (r *PostgresStore) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	return r.findRegistration(ctx, `id = $1`, id)
}

func (r *PostgresStore) FindByEventAndEmail(ctx context.Context, eventID, email string) (*model.Registration, error) {
	return r.findRegistration(ctx, `event_id = $1 AND attendee_email = $2`, eventID, email)
}

func (r *PostgresStore) FindByInvitationCode(ctx context.Context, code string) (*model.Registration, error) {
	return r.findRegistration(ctx, `invitation_code = $1`, code)
}

// ListRegistrations returns registrations matching the filter, oldest first.
func (r *PostgresStore) ListRegistrations(ctx context.Context, filter model.RegistrationFilter) ([]model.Registration, error) {
	var conds []string
	var args []any
	if filter.EventID != "" {
		args = append(args, filter.EventID)
		conds = append(conds, fmt.Sprintf("event_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	sql := `SELECT ` + registrationColumns + ` FROM registrations`
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY registration_date ASC, id ASC"

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", classifyPg(err))
	}
	defer rows.Close()

	regs := []model.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

func (r *PostgresStore) UpdateRegistrationStatus(ctx context.Context, id string, from model.Status, change model.StatusChange) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE registrations
		 SET status = $3, rejection_reason = $4, updated_at = $5
		 WHERE id = $1 AND status = $2`,
		id, from, change.Status, change.RejectionReason, change.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update registration status: %w", classifyPg(err))
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return r.missingOrConflict(ctx, `SELECT EXISTS (SELECT 1 FROM registrations WHERE id = $1)`, id)
}

func (r *PostgresStore) DeleteRegistration(ctx context.Context, id string, expected model.Status) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM registrations WHERE id = $1 AND status = $2`, id, expected)
	if err != nil {
		return fmt.Errorf("delete registration: %w", classifyPg(err))
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return r.missingOrConflict(ctx, `SELECT EXISTS (SELECT 1 FROM registrations WHERE id = $1)`, id)
}

func (r *PostgresStore) findRegistration(ctx context.Context, where string, args ...any) (*model.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", classifyPg(err))
	}
	return reg, nil
}

// missingOrConflict decides why a conditional write touched no rows.
func (r *PostgresStore) missingOrConflict(ctx context.Context, existsSQL, id string) error {
	var exists bool
	if err := r.db.QueryRow(ctx, existsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("check existence: %w", classifyPg(err))
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Status, &e.RequiresApproval,
		&e.Capacity.Total, &e.Capacity.Reserved, &e.Capacity.Available,
		&e.Version, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var reg model.Registration
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.AttendeeInfo.Email, &reg.AttendeeInfo.Name, &reg.AttendeeInfo.Phone,
		&reg.AttendeeInfo.Company, &reg.PricingID, &reg.Status, &reg.PaymentStatus, &reg.TotalAmount,
		&reg.InvitationCode, &reg.RejectionReason, &reg.RegistrationDate, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// classifyPg maps driver errors onto the package's sentinel errors.
func classifyPg(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if pgErr.ConstraintName == constraintInvitationCode {
				return ErrDuplicateInvitation
			}
			return ErrDuplicate
		case pgForeignKeyViolation:
			return ErrHasRegistrations
		}
		return err
	}

	var connErr *pgconn.ConnectError
	var netErr *net.OpError
	if pgconn.Timeout(err) || errors.As(err, &connErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
