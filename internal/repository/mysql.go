package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/reservation"
)

// mysqlCheckViolation is ER_CHECK_CONSTRAINT_VIOLATED.
const mysqlCheckViolation = 3819

// MySQLStore implements the catalog and both engine stores on MySQL.  All
// timestamps are written and read in UTC (the DSN sets loc=UTC).
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a store bound to db.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// DB exposes the underlying handle.
func (s *MySQLStore) DB() *sql.DB { return s.db }

const serviceColumns = `id, service_type, code, max_capacity, status`

func scanService(row interface{ Scan(...any) error }) (model.ServiceInstance, error) {
	var inst model.ServiceInstance
	var typ, status string
	if err := row.Scan(&inst.ID, &typ, &inst.Code, &inst.MaxCapacity, &status); err != nil {
		return model.ServiceInstance{}, err
	}
	inst.Type = model.ServiceType(typ)
	inst.Status = model.ServiceStatus(status)
	return inst, nil
}

// Get implements reservation.Catalog.
func (s *MySQLStore) Get(ctx context.Context, id uint64) (model.ServiceInstance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id)
	inst, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ServiceInstance{}, serviceNotFound(id)
	}
	if err != nil {
		return model.ServiceInstance{}, fmt.Errorf("get service %d: %w", id, err)
	}
	return inst, nil
}

// List implements reservation.Catalog.
func (s *MySQLStore) List(ctx context.Context, t model.ServiceType) ([]model.ServiceInstance, error) {
	q := `SELECT ` + serviceColumns + ` FROM services`
	var args []any
	if t != "" {
		q += ` WHERE service_type = ?`
		args = append(args, string(t))
	}
	q += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, args...)
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

// CreateBooking implements reservation.BookingStore.  Each affected
// service row is locked with SELECT ... FOR UPDATE, so writers in other
// processes serialise on the same instance, and the overlap check is
// repeated against the table before inserting.
func (s *MySQLStore) CreateBooking(ctx context.Context, b model.Booking) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, d := range b.Details {
		var id uint64
		err := tx.QueryRowContext(ctx, `SELECT id FROM services WHERE id = ? FOR UPDATE`, d.ServiceID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return serviceNotFound(d.ServiceID)
		}
		if err != nil {
			return fmt.Errorf("lock service %d: %w", d.ServiceID, err)
		}
		var other string
		err = tx.QueryRowContext(ctx, `SELECT id FROM booking_details
               WHERE service_id = ? AND status = 'ACTIVE' AND starts_at < ? AND ends_at > ?
               LIMIT 1`, d.ServiceID, d.Interval.End.UTC(), d.Interval.Start.UTC()).Scan(&other)
		if err == nil {
			return fmt.Errorf("%w: detail %s already holds service %d", reservation.ErrOverlap, other, d.ServiceID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check overlap on service %d: %w", d.ServiceID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO bookings (id, owner_id, created_at) VALUES (?, ?, ?)`,
		b.ID, b.OwnerID, b.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	if len(b.Details) > 0 {
		query := `INSERT INTO booking_details (id, booking_id, service_id, starts_at, ends_at, status) VALUES `
		args := make([]any, 0, len(b.Details)*6)
		for i, d := range b.Details {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?)"
			args = append(args, d.ID, b.ID, d.ServiceID, d.Interval.Start.UTC(), d.Interval.End.UTC(), string(d.Status))
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert booking details: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	committed = true
	return nil
}

// CancelDetail implements reservation.BookingStore.
func (s *MySQLStore) CancelDetail(ctx context.Context, detailID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE booking_details SET status = 'CANCELLED', cancelled_at = ?
               WHERE id = ? AND status = 'ACTIVE'`, at.UTC(), detailID)
	if err != nil {
		return fmt.Errorf("cancel detail %s: %w", detailID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// Nothing changed: either already cancelled or unknown.
	var id string
	err = s.db.QueryRowContext(ctx, `SELECT id FROM booking_details WHERE id = ?`, detailID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return detailNotFound(detailID)
	}
	return err
}

const mysqlDetailColumns = `d.id, d.booking_id, d.service_id, d.starts_at, d.ends_at, d.status, d.cancelled_at`

func scanDetail(row interface{ Scan(...any) error }, extra ...any) (model.BookingDetail, error) {
	var d model.BookingDetail
	var status string
	var cancelled sql.NullTime
	dest := append([]any{&d.ID, &d.BookingID, &d.ServiceID, &d.Interval.Start, &d.Interval.End, &status, &cancelled}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.BookingDetail{}, err
	}
	d.Status = model.DetailStatus(status)
	d.Interval.Start = d.Interval.Start.UTC()
	d.Interval.End = d.Interval.End.UTC()
	if cancelled.Valid {
		at := cancelled.Time.UTC()
		d.CancelledAt = &at
	}
	return d, nil
}

// GetDetail implements reservation.BookingStore.
func (s *MySQLStore) GetDetail(ctx context.Context, detailID string) (model.BookingDetail, uint64, error) {
	var owner uint64
	row := s.db.QueryRowContext(ctx, `SELECT `+mysqlDetailColumns+`, b.owner_id
               FROM booking_details d JOIN bookings b ON b.id = d.booking_id
               WHERE d.id = ?`, detailID)
	d, err := scanDetail(row, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BookingDetail{}, 0, detailNotFound(detailID)
	}
	if err != nil {
		return model.BookingDetail{}, 0, fmt.Errorf("get detail %s: %w", detailID, err)
	}
	return d, owner, nil
}

// ActiveDetails implements reservation.BookingStore.
func (s *MySQLStore) ActiveDetails(ctx context.Context, serviceID uint64) ([]model.BookingDetail, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+mysqlDetailColumns+`
               FROM booking_details d
               WHERE d.service_id = ? AND d.status = 'ACTIVE'
               ORDER BY d.starts_at`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list details of service %d: %w", serviceID, err)
	}
	defer rows.Close()
	var out []model.BookingDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListBookings implements reservation.BookingStore.
func (s *MySQLStore) ListBookings(ctx context.Context, ownerID uint64) ([]model.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+mysqlDetailColumns+`, b.created_at
               FROM bookings b JOIN booking_details d ON d.booking_id = b.id
               WHERE b.owner_id = ?
               ORDER BY b.created_at DESC, b.id, d.starts_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list bookings of %d: %w", ownerID, err)
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		var created time.Time
		d, err := scanDetail(rows, &created)
		if err != nil {
			return nil, err
		}
		out = appendDetail(out, ownerID, created.UTC(), d)
	}
	return out, rows.Err()
}

// appendDetail groups detail rows ordered by booking into bookings.
func appendDetail(out []model.Booking, ownerID uint64, created time.Time, d model.BookingDetail) []model.Booking {
	if n := len(out); n > 0 && out[n-1].ID == d.BookingID {
		out[n-1].Details = append(out[n-1].Details, d)
		return out
	}
	return append(out, model.Booking{
		ID:        d.BookingID,
		OwnerID:   ownerID,
		CreatedAt: created,
		Details:   []model.BookingDetail{d},
	})
}

// GetEvent implements reservation.EventStore.
func (s *MySQLStore) GetEvent(ctx context.Context, id uint64) (model.Event, error) {
	var ev model.Event
	err := s.db.QueryRowContext(ctx, `SELECT id, name, starts_at, seats_total, seats_remaining FROM events WHERE id = ?`, id).
		Scan(&ev.ID, &ev.Name, &ev.StartsAt, &ev.SeatsTotal, &ev.SeatsRemaining)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, eventNotFound(id)
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("get event %d: %w", id, err)
	}
	ev.StartsAt = ev.StartsAt.UTC()
	return ev, nil
}

// ListEnrollments implements reservation.EventStore.
func (s *MySQLStore) ListEnrollments(ctx context.Context, eventID uint64) ([]model.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, event_id, user_id, participants, created_at, updated_at
               FROM enrollments WHERE event_id = ? ORDER BY user_id`, eventID)
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
func (s *MySQLStore) SaveEnrollment(ctx context.Context, en model.Enrollment, prevRemaining, newRemaining int) error {
	return s.withCounter(ctx, en.EventID, prevRemaining, newRemaining, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO enrollments (id, event_id, user_id, participants, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE participants = VALUES(participants), updated_at = VALUES(updated_at)`,
			en.ID, en.EventID, en.UserID, en.Participants, en.CreatedAt.UTC(), en.UpdatedAt.UTC())
		return err
	})
}

// DeleteEnrollment implements reservation.EventStore.
func (s *MySQLStore) DeleteEnrollment(ctx context.Context, en model.Enrollment, prevRemaining, newRemaining int) error {
	return s.withCounter(ctx, en.EventID, prevRemaining, newRemaining, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE event_id = ? AND user_id = ?`, en.EventID, en.UserID)
		return err
	})
}

// withCounter moves the seat counter of eventID from prev to next and runs
// write in the same transaction.
func (s *MySQLStore) withCounter(ctx context.Context, eventID uint64, prev, next int, write func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE events SET seats_remaining = ? WHERE id = ? AND seats_remaining = ?`, next, eventID, prev)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlCheckViolation {
			return fmt.Errorf("%w: %v", reservation.ErrLedgerConflict, err)
		}
		return fmt.Errorf("update seat counter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var id uint64
		err := tx.QueryRowContext(ctx, `SELECT id FROM events WHERE id = ?`, eventID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return eventNotFound(eventID)
		}
		if err != nil {
			return fmt.Errorf("check event %d: %w", eventID, err)
		}
		return counterMoved(eventID, prev)
	}
	if err := write(tx); err != nil {
		return fmt.Errorf("write enrollment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	committed = true
	return nil
}

// Seed inserts the given catalog entries and events, keeping their ids.
// Existing rows are left untouched.
func (s *MySQLStore) Seed(ctx context.Context, services []model.ServiceInstance, events []model.Event) error {
	for _, inst := range services {
		if _, err := s.db.ExecContext(ctx, `INSERT IGNORE INTO services (`+serviceColumns+`) VALUES (?, ?, ?, ?, ?)`,
			inst.ID, string(inst.Type), inst.Code, inst.MaxCapacity, string(inst.Status)); err != nil {
			return fmt.Errorf("seed service %s: %w", inst.Code, err)
		}
	}
	for _, ev := range events {
		if _, err := s.db.ExecContext(ctx, `INSERT IGNORE INTO events (id, name, starts_at, seats_total, seats_remaining) VALUES (?, ?, ?, ?, ?)`,
			ev.ID, ev.Name, ev.StartsAt.UTC(), ev.SeatsTotal, ev.SeatsRemaining); err != nil {
			return fmt.Errorf("seed event %s: %w", ev.Name, err)
		}
	}
	return nil
}
