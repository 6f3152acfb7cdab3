package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const ambulanceColumns = `id, vehicle_number, COALESCE(driver_name, ''), phone, COALESCE(device_token, ''),
	status, COALESCE(base_address, ''), last_latitude, last_longitude, updated_at`

// AmbulanceRepository is a PostgreSQL implementation of repository.AmbulanceRepository.
type AmbulanceRepository struct {
	q Querier
}

// NewAmbulanceRepository creates a new PostgreSQL ambulance repository.
func NewAmbulanceRepository(db *sql.DB) *AmbulanceRepository {
	return &AmbulanceRepository{q: db}
}

// NewAmbulanceRepositoryWithTx creates an ambulance repository using a transaction.
func NewAmbulanceRepositoryWithTx(tx *sql.Tx) *AmbulanceRepository {
	return &AmbulanceRepository{q: tx}
}

// Create adds a new ambulance.
func (r *AmbulanceRepository) Create(ctx context.Context, a *domain.Ambulance) error {
	query := `INSERT INTO ambulances
		(id, vehicle_number, driver_name, phone, device_token, status, base_address, last_latitude, last_longitude, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.ExecContext(ctx, query,
		a.ID, a.VehicleNumber, a.DriverName, a.Phone, a.DeviceToken,
		a.Status, a.BaseAddress, a.LastLatitude, a.LastLongitude, a.UpdatedAt,
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

// GetByID retrieves an ambulance by ID.
func (r *AmbulanceRepository) GetByID(ctx context.Context, id string) (*domain.Ambulance, error) {
	query := `SELECT ` + ambulanceColumns + ` FROM ambulances WHERE id = $1`
	return scanAmbulance(r.q.QueryRowContext(ctx, query, id))
}

// GetByPhone retrieves an ambulance by its driver's phone number.
func (r *AmbulanceRepository) GetByPhone(ctx context.Context, phone string) (*domain.Ambulance, error) {
	query := `SELECT ` + ambulanceColumns + ` FROM ambulances WHERE phone = $1`
	return scanAmbulance(r.q.QueryRowContext(ctx, query, phone))
}

// GetByVehicleNumber retrieves an ambulance by vehicle registration.
func (r *AmbulanceRepository) GetByVehicleNumber(ctx context.Context, vehicleNumber string) (*domain.Ambulance, error) {
	query := `SELECT ` + ambulanceColumns + ` FROM ambulances WHERE vehicle_number = $1`
	return scanAmbulance(r.q.QueryRowContext(ctx, query, vehicleNumber))
}

// GetAll retrieves all ambulances.
func (r *AmbulanceRepository) GetAll(ctx context.Context) ([]*domain.Ambulance, error) {
	query := `SELECT ` + ambulanceColumns + ` FROM ambulances ORDER BY vehicle_number`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ambulances []*domain.Ambulance
	for rows.Next() {
		a, err := scanAmbulance(rows)
		if err != nil {
			return nil, err
		}
		ambulances = append(ambulances, a)
	}
	return ambulances, rows.Err()
}

// UpdateStatus updates the availability of an ambulance.
func (r *AmbulanceRepository) UpdateStatus(ctx context.Context, id string, status domain.AmbulanceStatus) error {
	query := `UPDATE ambulances SET status = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, query, status, time.Now().UTC(), id)
}

// UpdateLocation records the last known position of an ambulance.
func (r *AmbulanceRepository) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	query := `UPDATE ambulances SET last_latitude = $1, last_longitude = $2, updated_at = $3 WHERE id = $4`
	return r.execOne(ctx, query, lat, lng, time.Now().UTC(), id)
}

// UpdateDeviceToken replaces the push token of an ambulance.
func (r *AmbulanceRepository) UpdateDeviceToken(ctx context.Context, id string, token string) error {
	query := `UPDATE ambulances SET device_token = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, query, token, time.Now().UTC(), id)
}

// execOne runs an update that must touch exactly one row.
func (r *AmbulanceRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanAmbulance(row rowScanner) (*domain.Ambulance, error) {
	var a domain.Ambulance
	err := row.Scan(
		&a.ID,
		&a.VehicleNumber,
		&a.DriverName,
		&a.Phone,
		&a.DeviceToken,
		&a.Status,
		&a.BaseAddress,
		&a.LastLatitude,
		&a.LastLongitude,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
