package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

var (
	selectForUpdate = regexp.QuoteMeta(`FROM emergency_bookings WHERE id = $1 FOR UPDATE`)
	updateBooking   = regexp.QuoteMeta(`UPDATE emergency_bookings SET`)
	insertBooking   = regexp.QuoteMeta(`INSERT INTO emergency_bookings`)
	selectByID      = regexp.QuoteMeta(`FROM emergency_bookings WHERE id = $1`)
)

var bookingColumnNames = []string{
	"id", "emergency_type", "latitude", "longitude", "address",
	"vehicle_id", "driver_contact", "candidate_address", "candidate_latitude", "candidate_longitude", "device_token",
	"status", "status_history", "round", "excluded_vehicles", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*BookingRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewBookingRepository(db), mock
}

func bookingRow(t *testing.T, id string, status domain.BookingStatus, round int, excluded []string) *sqlmock.Rows {
	t.Helper()
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	history, err := json.Marshal([]domain.StatusEntry{{Status: domain.BookingStatusPending, Timestamp: created, Details: "created"}})
	require.NoError(t, err)
	excludedJSON, err := json.Marshal(nonNil(excluded))
	require.NoError(t, err)

	return sqlmock.NewRows(bookingColumnNames).AddRow(
		id, "cardiac", 12.97, 77.59, "MG Road",
		"KA01AB1234", "9876543210", "Station A", 12.98, 77.60, "",
		string(status), history, round, excludedJSON, created, created,
	)
}

func TestBookingRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	b := &domain.Booking{
		ID:            "b-1",
		EmergencyType: domain.EmergencyTypeCardiac,
		Status:        domain.BookingStatusPending,
		History:       []domain.StatusEntry{{Status: domain.BookingStatusPending, Timestamp: now}},
		Round:         1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	mock.ExpectExec(insertBooking).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(context.Background(), b))

	mock.ExpectExec(insertBooking).WillReturnError(&pq.Error{Code: uniqueViolation})
	assert.ErrorIs(t, repo.Create(context.Background(), b), repository.ErrDuplicateID)

	mock.ExpectExec(insertBooking).WillReturnError(errors.New("connection reset"))
	err := repo.Create(context.Background(), b)
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrDuplicateID)
}

func TestBookingRepository_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(selectByID).WithArgs("b-1").
		WillReturnRows(bookingRow(t, "b-1", domain.BookingStatusPending, 2, []string{"KA01ZZ0000"}))

	b, err := repo.GetByID(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EmergencyTypeCardiac, b.EmergencyType)
	assert.Equal(t, domain.BookingStatusPending, b.Status)
	assert.Equal(t, 2, b.Round)
	assert.Equal(t, "Station A", b.Candidate.Address)
	assert.Equal(t, []string{"KA01ZZ0000"}, b.ExcludedVehicles)
	require.Len(t, b.History, 1)

	mock.ExpectQuery(selectByID).WithArgs("missing").WillReturnRows(sqlmock.NewRows(bookingColumnNames))
	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBookingRepository_ApplyTransition_LocksAndWrites(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectForUpdate).WithArgs("b-1").
		WillReturnRows(bookingRow(t, "b-1", domain.BookingStatusPending, 1, nil))
	mock.ExpectExec(updateBooking).
		WithArgs(
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"REJECTED", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"b-1", "PENDING",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, err := repo.ApplyTransition(context.Background(), "b-1", repository.Transition{
		From:           domain.BookingStatusPending,
		To:             domain.BookingStatusRejected,
		Details:        "Driver rejected the booking",
		Round:          1,
		ExcludeCurrent: true,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusRejected, b.Status)
	assert.Equal(t, []string{"KA01AB1234"}, b.ExcludedVehicles)
	require.Len(t, b.History, 2)
	assert.Equal(t, "Driver rejected the booking", b.History[1].Details)
}

func TestBookingRepository_ApplyTransition_Conflicts(t *testing.T) {
	accept := repository.Transition{From: domain.BookingStatusPending, To: domain.BookingStatusAccepted, Round: 1}

	t.Run("status moved on", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WithArgs("b-1").
			WillReturnRows(bookingRow(t, "b-1", domain.BookingStatusAccepted, 1, nil))
		mock.ExpectRollback()

		_, err := repo.ApplyTransition(context.Background(), "b-1", accept)
		assert.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("round moved on", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WithArgs("b-1").
			WillReturnRows(bookingRow(t, "b-1", domain.BookingStatusPending, 2, []string{"KA01ZZ0000"}))
		mock.ExpectRollback()

		_, err := repo.ApplyTransition(context.Background(), "b-1", accept)
		assert.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("guarded update touches no row", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WithArgs("b-1").
			WillReturnRows(bookingRow(t, "b-1", domain.BookingStatusPending, 1, nil))
		mock.ExpectExec(updateBooking).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := repo.ApplyTransition(context.Background(), "b-1", accept)
		assert.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("missing booking", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(selectForUpdate).WithArgs("nope").WillReturnRows(sqlmock.NewRows(bookingColumnNames))
		mock.ExpectRollback()

		_, err := repo.ApplyTransition(context.Background(), "nope", accept)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestBookingRepository_FindOpenByDriverContact(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE driver_contact = $1 AND status = $2`)).
		WithArgs("9876543210", "PENDING").
		WillReturnRows(bookingRow(t, "b-7", domain.BookingStatusPending, 1, nil))

	b, err := repo.FindOpenByDriverContact(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.Equal(t, "b-7", b.ID)
}

func TestBookingRepository_GetAll(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := bookingRow(t, "b-2", domain.BookingStatusAccepted, 1, nil)
	rows.AddRow(
		"b-1", "accident", 12.9, 77.5, "Ring Road",
		"KA01AB0001", "9123456780", "Station B", 12.91, 77.51, "token",
		"CANCELLED", []byte(`[]`), 3, []byte(`["KA01AB0002","KA01AB0003"]`), time.Now(), time.Now(),
	)
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC LIMIT 100`)).WillReturnRows(rows)

	bookings, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, "b-2", bookings[0].ID)
	assert.Equal(t, domain.BookingStatusCancelled, bookings[1].Status)
	assert.Len(t, bookings[1].ExcludedVehicles, 2)
}
