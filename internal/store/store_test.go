package store

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_ClaimFeed(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	testCases := []struct {
		name             string
		claim            Claim
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedErr      error
	}{
		{
			name:  "Row matches version and is idle, claim succeeds",
			claim: Claim{ExpectedVersion: 3, At: now},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "feeder_states" SET`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedErr: nil,
		},
		{
			name:  "Another invocation claimed first, conflict",
			claim: Claim{ExpectedVersion: 3, At: now},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "feeder_states" SET`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			expectedErr: ErrConflict,
		},
		{
			name:  "Served reservation is deleted with the claim",
			claim: Claim{ExpectedVersion: 3, At: now, ReservationID: "r-1"},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "feeder_states" SET`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "reservations" WHERE id = $1`)).
					WithArgs("r-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedErr: nil,
		},
		{
			name:  "Reservation already gone, claim rolls back",
			claim: Claim{ExpectedVersion: 3, At: now, ReservationID: "r-1"},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "feeder_states" SET`)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "reservations" WHERE id = $1`)).
					WithArgs("r-1").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			expectedErr: ErrConflict,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			s := NewGormStore(gormDB, time.Second)

			tc.mockExpectations(mock)

			err := s.ClaimFeed(context.Background(), tc.claim)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_DeleteReservationNotFound(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "reservations" WHERE id = $1`)).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.DeleteReservation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_SnapshotTimeout(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, 20*time.Millisecond)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "feeder_states"`)).
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	start := time.Now()
	_, err := s.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGormStore_SetStatus(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "feeder_states" SET "status"=$1`)).
		WithArgs(1, Any{}, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, s.SetStatus(context.Background(), 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
