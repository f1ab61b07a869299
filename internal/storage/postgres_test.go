package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
)

// Queries are matched with sqlmock's default regexp matcher against a quoted
// prefix of the statement gorm generates, so trailing ORDER BY and LIMIT
// clauses do not break the expectations.

// newMockDB opens gorm on top of sqlmock and checks expectations on cleanup.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return gormDB, mock, func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestIsTransientError(t *testing.T) {
	transient := map[string]error{
		"deadline":          context.DeadlineExceeded,
		"wrapped deadline":  fmt.Errorf("count crm_records: %w", context.DeadlineExceeded),
		"connection class":  &pgconn.PgError{Code: "08006"},
		"resources class":   &pgconn.PgError{Code: "53300"},
		"deadlock":          &pgconn.PgError{Code: "40P01"},
		"serialization":     &pgconn.PgError{Code: "40001"},
		"refused":           errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"),
		"io timeout":        errors.New("read tcp 10.0.0.1:41000->10.0.0.5:5432: i/o timeout"),
		"starting up":       errors.New("FATAL: the database system is starting up"),
		"reset by peer":     errors.New("write: connection reset by peer"),
		"unresolvable host": errors.New("could not translate host name \"db\""),
	}
	permanent := map[string]error{
		"nil":              nil,
		"not found":        gorm.ErrRecordNotFound,
		"invalid tx":       gorm.ErrInvalidTransaction,
		"syntax":           &pgconn.PgError{Code: "42601"},
		"unique violation": &pgconn.PgError{Code: "23505"},
		"plain":            errors.New("column \"meta_lead_id\" does not exist"),
	}

	for name, err := range transient {
		assert.Truef(t, isTransientError(err), "%s should be transient", name)
	}
	for name, err := range permanent {
		assert.Falsef(t, isTransientError(err), "%s should be permanent", name)
	}
}

func TestRetryableOperation(t *testing.T) {
	ctx := context.Background()

	t.Run("transient error is retried", func(t *testing.T) {
		calls := 0
		err := retryableOperation(ctx, newRetryPolicy(ctx, time.Second), "CreateRecord", func() error {
			calls++
			if calls < 3 {
				return &pgconn.PgError{Code: "40001"}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("duplicate is returned at once", func(t *testing.T) {
		calls := 0
		err := retryableOperation(ctx, newRetryPolicy(ctx, time.Second), "CreateRecord", func() error {
			calls++
			return checkConstraintViolation(&pgconn.PgError{Code: "23505", ConstraintName: "idx_crm_records_type_meta_lead"})
		})
		assert.True(t, apperrors.IsDuplicateError(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("permanent error is returned at once", func(t *testing.T) {
		calls := 0
		err := retryableOperation(ctx, newRetryPolicy(ctx, time.Second), "SaveSetting", func() error {
			calls++
			return errors.New("column \"forms\" is of type jsonb")
		})
		assert.EqualError(t, err, "column \"forms\" is of type jsonb")
		assert.Equal(t, 1, calls)
	})
}

func TestPostgresRepo_Close(t *testing.T) {
	gormDB, mock, teardown := newMockDB(t)
	t.Cleanup(teardown)
	mock.ExpectClose()
	assert.NoError(t, NewPostgresRepoFromDB(gormDB).Close(context.Background()))

	gormDB, mock, teardown = newMockDB(t)
	t.Cleanup(teardown)
	mock.ExpectClose().WillReturnError(errors.New("db close error"))
	err := NewPostgresRepoFromDB(gormDB).Close(context.Background())
	assert.ErrorContains(t, err, "failed to close SQL DB")
	assert.ErrorContains(t, err, "db close error")
}

func TestCheckConstraintViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "idx_crm_records_type_meta_lead"}

	tests := []struct {
		in       error
		sentinel error
		fragment string
	}{
		{gorm.ErrRecordNotFound, apperrors.ErrNotFound, "record not found"},
		{fmt.Errorf("find setting: %w", gorm.ErrRecordNotFound), apperrors.ErrNotFound, "record not found"},
		{gorm.ErrDuplicatedKey, apperrors.ErrDuplicate, "duplicated key"},
		{unique, apperrors.ErrDuplicate, "idx_crm_records_type_meta_lead"},
		{fmt.Errorf("insert lead: %w", unique), apperrors.ErrDuplicate, "idx_crm_records_type_meta_lead"},
		{&pgconn.PgError{Code: "23503", ConstraintName: "fk_sync_notes_records"}, apperrors.ErrBadRequest, "fk_sync_notes_records"},
		{&pgconn.PgError{Code: "23502", ColumnName: "meta_lead_id"}, apperrors.ErrBadRequest, "meta_lead_id"},
		{&pgconn.PgError{Code: "23514", ConstraintName: "sync_settings_status_check"}, apperrors.ErrBadRequest, "sync_settings_status_check"},
		{&pgconn.PgError{Code: "22001", ColumnName: "record_type"}, apperrors.ErrBadRequest, "record_type"},
		{&pgconn.PgError{Code: "22P02", DataTypeName: "jsonb"}, apperrors.ErrBadRequest, "jsonb"},
		{&pgconn.PgError{Code: "40P01"}, apperrors.ErrDatabase, "40P01"},
		{&pgconn.PgError{Code: "53200"}, apperrors.ErrDatabase, "insufficient resources"},
		{&pgconn.PgError{Code: "08003"}, apperrors.ErrDatabase, "connection error"},
		{&pgconn.PgError{Code: "XX000"}, apperrors.ErrDatabase, "unhandled pgcode XX000"},
		{errors.New("driver: bad connection"), apperrors.ErrDatabase, "bad connection"},
	}

	assert.NoError(t, checkConstraintViolation(nil))
	for _, tt := range tests {
		t.Run(tt.in.Error(), func(t *testing.T) {
			out := checkConstraintViolation(tt.in)
			assert.ErrorIs(t, out, tt.sentinel)
			assert.ErrorIs(t, out, tt.in)
			assert.ErrorContains(t, out, tt.fragment)
		})
	}
}
