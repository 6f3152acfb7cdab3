package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// uniqueViolation is the PostgreSQL error code for unique_violation.
const uniqueViolation = "23505"

const bookingColumns = `id, emergency_type, latitude, longitude, address,
	vehicle_id, driver_contact, candidate_address, candidate_latitude, candidate_longitude, device_token,
	status, status_history, round, excluded_vehicles, created_at, updated_at`

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	db *sql.DB
	q  Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db, q: db}
}

// NewBookingRepositoryWithTx creates a booking repository using a transaction.
// ApplyTransition on such a repository runs inside the caller's transaction.
func NewBookingRepositoryWithTx(tx *sql.Tx) *BookingRepository {
	return &BookingRepository{q: tx}
}

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	history, err := json.Marshal(b.History)
	if err != nil {
		return fmt.Errorf("encode status history: %w", err)
	}
	excluded, err := json.Marshal(nonNil(b.ExcludedVehicles))
	if err != nil {
		return fmt.Errorf("encode excluded vehicles: %w", err)
	}

	query := `INSERT INTO emergency_bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = r.q.ExecContext(ctx, query,
		b.ID,
		b.EmergencyType,
		b.Location.Latitude,
		b.Location.Longitude,
		b.Location.Address,
		b.Candidate.VehicleID,
		b.Candidate.DriverContact,
		b.Candidate.Address,
		b.Candidate.Coordinates.Latitude,
		b.Candidate.Coordinates.Longitude,
		b.Candidate.DeviceToken,
		b.Status,
		history,
		b.Round,
		excluded,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrDuplicateID
		}
		return err
	}
	return nil
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM emergency_bookings WHERE id = $1`
	return scanBooking(r.q.QueryRowContext(ctx, query, id))
}

// FindOpenByDriverContact retrieves the newest PENDING booking for a driver.
func (r *BookingRepository) FindOpenByDriverContact(ctx context.Context, contact string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM emergency_bookings
		WHERE driver_contact = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`
	return scanBooking(r.q.QueryRowContext(ctx, query, contact, domain.BookingStatusPending))
}

// GetAll retrieves the 100 most recent bookings.
func (r *BookingRepository) GetAll(ctx context.Context) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM emergency_bookings ORDER BY created_at DESC LIMIT 100`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ApplyTransition locks the booking row, validates the expected status and
// writes the new state in a single transaction.
func (r *BookingRepository) ApplyTransition(ctx context.Context, id string, t repository.Transition) (*domain.Booking, error) {
	if r.db == nil {
		return applyTransition(ctx, r.q, id, t)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	b, err := applyTransition(ctx, tx, id, t)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return b, nil
}

func applyTransition(ctx context.Context, q Querier, id string, t repository.Transition) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM emergency_bookings WHERE id = $1 FOR UPDATE`
	b, err := scanBooking(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if err := repository.Apply(b, t, time.Now().UTC()); err != nil {
		return nil, err
	}

	history, err := json.Marshal(b.History)
	if err != nil {
		return nil, fmt.Errorf("encode status history: %w", err)
	}
	excluded, err := json.Marshal(nonNil(b.ExcludedVehicles))
	if err != nil {
		return nil, fmt.Errorf("encode excluded vehicles: %w", err)
	}

	update := `UPDATE emergency_bookings SET
			vehicle_id = $1, driver_contact = $2, candidate_address = $3,
			candidate_latitude = $4, candidate_longitude = $5, device_token = $6,
			status = $7, status_history = $8, round = $9, excluded_vehicles = $10, updated_at = $11
		WHERE id = $12 AND status = $13`

	result, err := q.ExecContext(ctx, update,
		b.Candidate.VehicleID,
		b.Candidate.DriverContact,
		b.Candidate.Address,
		b.Candidate.Coordinates.Latitude,
		b.Candidate.Coordinates.Longitude,
		b.Candidate.DeviceToken,
		b.Status,
		history,
		b.Round,
		excluded,
		b.UpdatedAt,
		id,
		t.From,
	)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, repository.ErrConflict
	}

	return b, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var (
		b        domain.Booking
		history  []byte
		excluded []byte
	)
	err := row.Scan(
		&b.ID,
		&b.EmergencyType,
		&b.Location.Latitude,
		&b.Location.Longitude,
		&b.Location.Address,
		&b.Candidate.VehicleID,
		&b.Candidate.DriverContact,
		&b.Candidate.Address,
		&b.Candidate.Coordinates.Latitude,
		&b.Candidate.Coordinates.Longitude,
		&b.Candidate.DeviceToken,
		&b.Status,
		&history,
		&b.Round,
		&excluded,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(history, &b.History); err != nil {
		return nil, fmt.Errorf("decode status history of booking %s: %w", b.ID, err)
	}
	if len(excluded) > 0 {
		if err := json.Unmarshal(excluded, &b.ExcludedVehicles); err != nil {
			return nil, fmt.Errorf("decode excluded vehicles of booking %s: %w", b.ID, err)
		}
	}
	return &b, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
