package db

import (
	"context"

	"tokenpoint/internal/types"
)

// CounterRepo hands out identifier sequences per (period, typeCode) key.
// It implements sequencer.CounterStore.
//
// The increment is a single atomic statement: an upsert that seeds the row
// at 1 on first use and increments it thereafter, returning the new value.
// Two concurrent purchases in the same period/type can never observe the
// same sequence number; a separate read-then-write here would hand the same
// number to both.
type CounterRepo struct {
	db DBTX
}

// NewCounterRepo creates a CounterRepo backed by the given connection.
func NewCounterRepo(db DBTX) *CounterRepo {
	return &CounterRepo{db: db}
}

// GetAndIncrement atomically advances the counter for the key and returns
// the new sequence. Counters are created on first use and never deleted.
func (r *CounterRepo) GetAndIncrement(ctx context.Context, period, typeCode string) (int64, error) {
	var seq int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO counters (period, type_code, last_sequence)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (period, type_code)
		 DO UPDATE SET last_sequence = counters.last_sequence + 1
		 RETURNING last_sequence`,
		period, typeCode,
	).Scan(&seq)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to advance counter", err)
	}
	return seq, nil
}
