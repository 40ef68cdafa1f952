package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/reservation"
)

// PostgreSQL error codes the store translates.
const (
	pgExclusionViolation = "23P01"
	pgCheckViolation     = "23514"
)

// PostgresStore implements the catalog and both engine stores on
// PostgreSQL.  The booking_details exclusion constraint refuses
// overlapping active intervals even when another process writes them.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a store bound to pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore { return &PostgresStore{pool: pool} }

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Get implements reservation.Catalog.
func (s *PostgresStore) Get(ctx context.Context, id uint64) (model.ServiceInstance, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	inst, err := scanService(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ServiceInstance{}, serviceNotFound(id)
	}
	if err != nil {
		return model.ServiceInstance{}, fmt.Errorf("get service %d: %w", id, err)
	}
	return inst, nil
}

// List implements reservation.Catalog.
func (s *PostgresStore) List(ctx context.Context, t model.ServiceType) ([]model.ServiceInstance, error) {
	q := `SELECT ` + serviceColumns + ` FROM services`
	var args []any
	if t != "" {
		q += ` WHERE service_type = $1`
		args = append(args, string(t))
	}
	q += ` ORDER BY id`
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()
	var out []model.ServiceInstance
	for rows.Next() {
		inst, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// CreateBooking implements reservation.BookingStore.
func (s *PostgresStore) CreateBooking(ctx context.Context, b model.Booking) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, d := range b.Details {
		var id uint64
		err := tx.QueryRow(ctx, `SELECT id FROM services WHERE id = $1 FOR UPDATE`, d.ServiceID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return serviceNotFound(d.ServiceID)
		}
		if err != nil {
			return fmt.Errorf("lock service %d: %w", d.ServiceID, err)
		}
	}
	if _, err := tx.Exec(ctx, `INSERT INTO bookings (id, owner_id, created_at) VALUES ($1, $2, $3)`,
		b.ID, b.OwnerID, b.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	batch := &pgx.Batch{}
	for _, d := range b.Details {
		batch.Queue(`INSERT INTO booking_details (id, booking_id, service_id, starts_at, ends_at, status)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			d.ID, b.ID, d.ServiceID, d.Interval.Start.UTC(), d.Interval.End.UTC(), string(d.Status))
	}
	br := tx.SendBatch(ctx, batch)
	for _, d := range b.Details {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			if pgCode(err) == pgExclusionViolation {
				return fmt.Errorf("%w: service %d is already booked in that interval", reservation.ErrOverlap, d.ServiceID)
			}
			return fmt.Errorf("insert booking detail: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert booking details: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	return nil
}

// CancelDetail implements reservation.BookingStore.
func (s *PostgresStore) CancelDetail(ctx context.Context, detailID string, at time.Time) error {
	if _, err := uuid.Parse(detailID); err != nil {
		return detailNotFound(detailID)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE booking_details SET status = 'CANCELLED', cancelled_at = $1
		WHERE id = $2 AND status = 'ACTIVE'`, at.UTC(), detailID)
	if err != nil {
		return fmt.Errorf("cancel detail %s: %w", detailID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM booking_details WHERE id = $1)`, detailID).Scan(&exists); err != nil {
		return fmt.Errorf("check detail %s: %w", detailID, err)
	}
	if !exists {
		return detailNotFound(detailID)
	}
	return nil
}

// GetDetail implements reservation.BookingStore.
func (s *PostgresStore) GetDetail(ctx context.Context, detailID string) (model.BookingDetail, uint64, error) {
	// A malformed id cannot name a row; the uuid cast would fail instead.
	if _, err := uuid.Parse(detailID); err != nil {
		return model.BookingDetail{}, 0, detailNotFound(detailID)
	}
	var owner uint64
	row := s.pool.QueryRow(ctx, `SELECT `+pgDetailColumns+`, b.owner_id
		FROM booking_details d JOIN bookings b ON b.id = d.booking_id
		WHERE d.id = $1`, detailID)
	d, err := scanPgDetail(row, &owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BookingDetail{}, 0, detailNotFound(detailID)
	}
	if err != nil {
		return model.BookingDetail{}, 0, fmt.Errorf("get detail %s: %w", detailID, err)
	}
	return d, owner, nil
}

// uuid columns are read back as text
const pgDetailColumns = `d.id::text, d.booking_id::text, d.service_id, d.starts_at, d.ends_at, d.status, d.cancelled_at`

func scanPgDetail(row pgx.Row, extra ...any) (model.BookingDetail, error) {
	var d model.BookingDetail
	var status string
	var cancelled *time.Time
	dest := append([]any{&d.ID, &d.BookingID, &d.ServiceID, &d.Interval.Start, &d.Interval.End, &status, &cancelled}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.BookingDetail{}, err
	}
	d.Status = model.DetailStatus(status)
	d.Interval.Start = d.Interval.Start.UTC()
	d.Interval.End = d.Interval.End.UTC()
	if cancelled != nil {
		at := cancelled.UTC()
		d.CancelledAt = &at
	}
	return d, nil
}

// ActiveDetails implements reservation.BookingStore.
func (s *PostgresStore) ActiveDetails(ctx context.Context, serviceID uint64) ([]model.BookingDetail, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgDetailColumns+`
		FROM booking_details d
		WHERE d.service_id = $1 AND d.status = 'ACTIVE'
		ORDER BY d.starts_at`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list details of service %d: %w", serviceID, err)
	}
	defer rows.Close()
	var out []model.BookingDetail
	for rows.Next() {
		d, err := scanPgDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListBookings implements reservation.BookingStore.
func (s *PostgresStore) ListBookings(ctx context.Context, ownerID uint64) ([]model.Booking, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgDetailColumns+`, b.created_at
		FROM bookings b JOIN booking_details d ON d.booking_id = b.id
		WHERE b.owner_id = $1
		ORDER BY b.created_at DESC, b.id, d.starts_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list bookings of %d: %w", ownerID, err)
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		var created time.Time
		d, err := scanPgDetail(rows, &created)
		if err != nil {
			return nil, err
		}
		out = appendDetail(out, ownerID, created.UTC(), d)
	}
	return out, rows.Err()
}

// GetEvent implements reservation.EventStore.
func (s *PostgresStore) GetEvent(ctx context.Context, id uint64) (model.Event, error) {
	var ev model.Event
	err := s.pool.QueryRow(ctx, `SELECT id, name, starts_at, seats_total, seats_remaining FROM events WHERE id = $1`, id).
		Scan(&ev.ID, &ev.Name, &ev.StartsAt, &ev.SeatsTotal, &ev.SeatsRemaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Event{}, eventNotFound(id)
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("get event %d: %w", id, err)
	}
	ev.StartsAt = ev.StartsAt.UTC()
	return ev, nil
}

// ListEnrollments implements reservation.EventStore.
func (s *PostgresStore) ListEnrollments(ctx context.Context, eventID uint64) ([]model.Enrollment, error) {
	rows, err := s.pool.Query(ctx, `SELECT id::text, event_id, user_id, participants, created_at, updated_at
		FROM enrollments WHERE event_id = $1 ORDER BY user_id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments of event %d: %w", eventID, err)
	}
	defer rows.Close()
	var out []model.Enrollment
	for rows.Next() {
		var en model.Enrollment
		if err := rows.Scan(&en.ID, &en.EventID, &en.UserID, &en.Participants, &en.CreatedAt, &en.UpdatedAt); err != nil {
			return nil, err
		}
		en.CreatedAt = en.CreatedAt.UTC()
		en.UpdatedAt = en.UpdatedAt.UTC()
		out = append(out, en)
	}
	return out, rows.Err()
}

// SaveEnrollment implements reservation.EventStore.
func (s *PostgresStore) SaveEnrollment(ctx context.Context, en model.Enrollment, prevRemaining, newRemaining int) error {
	return s.withCounter(ctx, en.EventID, prevRemaining, newRemaining, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO enrollments (id, event_id, user_id, participants, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (event_id, user_id)
			DO UPDATE SET participants = EXCLUDED.participants, updated_at = EXCLUDED.updated_at`,
			en.ID, en.EventID, en.UserID, en.Participants, en.CreatedAt.UTC(), en.UpdatedAt.UTC())
		return err
	})
}

// DeleteEnrollment implements reservation.EventStore.
func (s *PostgresStore) DeleteEnrollment(ctx context.Context, en model.Enrollment, prevRemaining, newRemaining int) error {
	return s.withCounter(ctx, en.EventID, prevRemaining, newRemaining, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM enrollments WHERE event_id = $1 AND user_id = $2`, en.EventID, en.UserID)
		return err
	})
}

func (s *PostgresStore) withCounter(ctx context.Context, eventID uint64, prev, next int, write func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE events SET seats_remaining = $1 WHERE id = $2 AND seats_remaining = $3`, next, eventID, prev)
	if err != nil {
		if pgCode(err) == pgCheckViolation {
			return fmt.Errorf("%w: %v", reservation.ErrLedgerConflict, err)
		}
		return fmt.Errorf("update seat counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
			return fmt.Errorf("check event %d: %w", eventID, err)
		}
		if !exists {
			return eventNotFound(eventID)
		}
		return counterMoved(eventID, prev)
	}
	if err := write(tx); err != nil {
		return fmt.Errorf("write enrollment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// Seed inserts the given catalog entries and events, keeping their ids.
// Existing rows are left untouched.
func (s *PostgresStore) Seed(ctx context.Context, services []model.ServiceInstance, events []model.Event) error {
	for _, inst := range services {
		if _, err := s.pool.Exec(ctx, `INSERT INTO services (`+serviceColumns+`) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT DO NOTHING`,
			inst.ID, string(inst.Type), inst.Code, inst.MaxCapacity, string(inst.Status)); err != nil {
			return fmt.Errorf("seed service %s: %w", inst.Code, err)
		}
	}
	for _, ev := range events {
		if _, err := s.pool.Exec(ctx, `INSERT INTO events (id, name, starts_at, seats_total, seats_remaining) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT DO NOTHING`,
			ev.ID, ev.Name, ev.StartsAt.UTC(), ev.SeatsTotal, ev.SeatsRemaining); err != nil {
			return fmt.Errorf("seed event %s: %w", ev.Name, err)
		}
	}
	// Explicit ids leave the sequences behind.
	for _, table := range []string{"services", "events"} {
		if _, err := s.pool.Exec(ctx, `SELECT setval(pg_get_serial_sequence('`+table+`', 'id'), COALESCE((SELECT MAX(id) FROM `+table+`), 1))`); err != nil {
			return fmt.Errorf("sync %s sequence: %w", table, err)
		}
	}
	return nil
}
