package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tokenpoint/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- CounterRepo Tests ---

func TestCounterRepo_GetAndIncrement_ReturnsNewSequence(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCounterRepo(db)
	ctx := context.Background()

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*int64) = 7
			return nil
		},
	}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"0924", "L"}).Return(row)

	seq, err := repo.GetAndIncrement(ctx, "0924", "L")
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
	db.AssertExpectations(t)
}

func TestCounterRepo_GetAndIncrement_SingleStatement(t *testing.T) {
	// The whole advance must be one upsert statement so concurrent callers
	// can never read the same value before writing it back.
	db := new(mockDBTX)
	repo := NewCounterRepo(db)
	ctx := context.Background()

	var captured string
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*int64) = 1
			return nil
		},
	}
	db.On("QueryRow", ctx, mock.MatchedBy(func(sql string) bool {
		captured = sql
		return true
	}), []any{"0126", "G"}).Return(row)

	_, err := repo.GetAndIncrement(ctx, "0126", "G")
	require.NoError(t, err)
	assert.Contains(t, captured, "ON CONFLICT")
	assert.Contains(t, captured, "RETURNING last_sequence")
}

func TestCounterRepo_GetAndIncrement_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewCounterRepo(db)
	ctx := context.Background()

	row := &mockRow{scanErr: errors.New("connection refused")}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"0924", "A"}).Return(row)

	_, err := repo.GetAndIncrement(ctx, "0924", "A")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
