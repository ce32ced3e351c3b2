package sequencer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenpoint/internal/types"
)

type fakeCounterStore struct {
	counts map[string]int64
	err    error
	calls  int
}

func (f *fakeCounterStore) GetAndIncrement(_ context.Context, period, typeCode string) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	key := period + "/" + typeCode
	f.counts[key]++
	return f.counts[key], nil
}

var september2024 = time.Date(2024, time.September, 15, 10, 0, 0, 0, time.UTC)

func TestPeriod(t *testing.T) {
	assert.Equal(t, "0924", Period(september2024))
	assert.Equal(t, "0126", Period(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestNextCustomerID_Format(t *testing.T) {
	store := &fakeCounterStore{counts: map[string]int64{"0924/L": 6}}
	s := New(store, nil)

	// Sequence 7 for period 0924, type L.
	id := s.NextCustomerID(context.Background(), september2024, []types.TokenType{types.TokenElectricity})
	assert.Equal(t, "SAI-0924-L-0007", id)
}

func TestNextCustomerID_MixedServices(t *testing.T) {
	store := &fakeCounterStore{}
	s := New(store, nil)

	id := s.NextCustomerID(context.Background(), september2024,
		[]types.TokenType{types.TokenElectricity, types.TokenWater})
	assert.Equal(t, "SAI-0924-M-0001", id)
}

func TestNextCustomerID_NoServicesIsPlaceholder(t *testing.T) {
	store := &fakeCounterStore{}
	s := New(store, nil, WithRandIntN(func(n int) int { return 0 }))

	id := s.NextCustomerID(context.Background(), september2024, nil)
	assert.Equal(t, "PENDING-AAAA", id)
	assert.Zero(t, store.calls, "placeholder IDs must not consume a sequence")
}

func TestNextOrderID_Format(t *testing.T) {
	store := &fakeCounterStore{}
	s := New(store, nil)
	ctx := context.Background()

	assert.Equal(t, "ORD-0924-L-0001", s.NextOrderID(ctx, september2024, types.TokenElectricity))
	assert.Equal(t, "ORD-0924-L-0002", s.NextOrderID(ctx, september2024, types.TokenElectricity))
	assert.Equal(t, "ORD-0924-A-0001", s.NextOrderID(ctx, september2024, types.TokenWater))
	assert.Equal(t, "ORD-0924-G-0001", s.NextOrderID(ctx, september2024, types.TokenGas))
	assert.Equal(t, "ORD-0924-S-0001", s.NextOrderID(ctx, september2024, types.TokenSolar))
}

func TestNextOrderID_CounterOutageFallsBackToRandomSuffix(t *testing.T) {
	store := &fakeCounterStore{err: errors.New("connection refused")}
	fallbacks := 0
	s := New(store, nil,
		WithRandIntN(func(n int) int { return 42 }),
		WithFallbackHook(func() { fallbacks++ }),
	)

	id := s.NextOrderID(context.Background(), september2024, types.TokenElectricity)
	assert.Equal(t, "ORD-0924-L-0042", id, "degraded mode pads the random suffix to 4 digits")
	assert.Equal(t, 1, fallbacks)
}

func TestNextOrderID_WidthIsFourDigits(t *testing.T) {
	store := &fakeCounterStore{counts: map[string]int64{"0924/L": 12344}}
	s := New(store, nil)

	// Sequences beyond 9999 widen rather than truncate.
	id := s.NextOrderID(context.Background(), september2024, types.TokenElectricity)
	require.Equal(t, "ORD-0924-L-12345", id)
}

func TestTypeCodeFor(t *testing.T) {
	tests := []struct {
		name  string
		in    []types.TokenType
		want  string
		hasCode bool
	}{
		{"empty", nil, "", false},
		{"single electricity", []types.TokenType{types.TokenElectricity}, "L", true},
		{"single water", []types.TokenType{types.TokenWater}, "A", true},
		{"same type repeated", []types.TokenType{types.TokenGas, types.TokenGas}, "G", true},
		{"mixed", []types.TokenType{types.TokenGas, types.TokenSolar}, "M", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := typeCodeFor(tt.in)
			assert.Equal(t, tt.hasCode, ok)
			assert.Equal(t, tt.want, code)
		})
	}
}
