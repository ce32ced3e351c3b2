// Package sequencer issues the human-readable customer and order identifiers
// used across the platform. Identifiers embed a monthly period and a token
// type code and carry a monotonically increasing sequence from the counter
// store; when the store is unreachable the sequencer degrades to a random
// suffix rather than blocking the purchase.
package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"tokenpoint/internal/types"
)

const (
	// CustomerPrefix heads sequenced customer identifiers.
	CustomerPrefix = "SAI"
	// OrderPrefix heads sequenced order identifiers.
	OrderPrefix = "ORD"
	// PendingPrefix heads the placeholder identifier for customers with no
	// services; these carry a random code instead of a sequence.
	PendingPrefix = "PENDING"
)

// placeholderAlphabet excludes easily confused characters (0/O, 1/I).
const placeholderAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CounterStore hands out sequence numbers per (period, typeCode) key.
// Implementations MUST make GetAndIncrement atomic: the counter is shared by
// concurrent purchases and a read-modify-write here would hand the same
// sequence to two orders. The pgx implementation uses a single-statement
// upsert increment.
type CounterStore interface {
	GetAndIncrement(ctx context.Context, period, typeCode string) (int64, error)
}

// Sequencer mints identifiers of the form PREFIX-<MMYY>-<code>-<seq:04d>.
// Sequencing is best-effort uniqueness, not a strict total order: consumers
// must not assume gap-free sequences, and under a counter-store outage the
// sequence slot is filled with a random 4-digit suffix instead.
type Sequencer struct {
	counters CounterStore
	logger   *slog.Logger
	// randIntN is rand.Intn, injectable for tests.
	randIntN func(n int) int
	// onFallback, when set, is invoked each time the sequencer degrades to a
	// random suffix. Used to emit the SequencerFallback metric.
	onFallback func()
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithRandIntN overrides the random source. For tests.
func WithRandIntN(fn func(n int) int) Option {
	return func(s *Sequencer) { s.randIntN = fn }
}

// WithFallbackHook registers a callback fired on every degraded-mode
// identifier.
func WithFallbackHook(fn func()) Option {
	return func(s *Sequencer) { s.onFallback = fn }
}

// New creates a Sequencer over the given counter store.
func New(counters CounterStore, logger *slog.Logger, opts ...Option) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sequencer{
		counters: counters,
		logger:   logger,
		randIntN: rand.Intn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Period formats the monthly counter period (MMYY) for the given time.
func Period(now time.Time) string {
	return now.Format("0106")
}

// NextOrderID mints the identifier for a new order of the given token type,
// e.g. ORD-0924-L-0007.
func (s *Sequencer) NextOrderID(ctx context.Context, now time.Time, tokenType types.TokenType) string {
	return s.next(ctx, OrderPrefix, Period(now), tokenType.Code())
}

// NextCustomerID mints the identifier for a customer based on the token
// types of their current services:
//
//   - one distinct type  -> SAI-<MMYY>-<letter>-<seq>
//   - multiple types     -> SAI-<MMYY>-M-<seq>
//   - no services        -> PENDING-<rand4> (no sequence consumed)
//
// Crossing the zero-services boundary in either direction re-issues the
// identifier, so a placeholder customer picks up a sequenced ID with their
// first service and vice versa.
func (s *Sequencer) NextCustomerID(ctx context.Context, now time.Time, serviceTypes []types.TokenType) string {
	code, ok := typeCodeFor(serviceTypes)
	if !ok {
		return fmt.Sprintf("%s-%s", PendingPrefix, s.placeholderCode())
	}
	return s.next(ctx, CustomerPrefix, Period(now), code)
}

// next consumes one sequence from the counter and formats the identifier.
// A counter-store failure is non-fatal: the sequence slot is filled with a
// random 4-digit suffix and a warning is logged.
func (s *Sequencer) next(ctx context.Context, prefix, period, typeCode string) string {
	seq, err := s.counters.GetAndIncrement(ctx, period, typeCode)
	if err != nil {
		if s.onFallback != nil {
			s.onFallback()
		}
		suffix := s.randIntN(10000)
		s.logger.Warn("counter store unreachable; using random identifier suffix",
			slog.String("code", string(types.ErrCodeSequencerDegraded)),
			slog.String("period", period),
			slog.String("type_code", typeCode),
			slog.String("error", err.Error()),
		)
		return fmt.Sprintf("%s-%s-%s-%04d", prefix, period, typeCode, suffix)
	}
	return fmt.Sprintf("%s-%s-%s-%04d", prefix, period, typeCode, seq)
}

// placeholderCode generates the 4-character random code for PENDING IDs.
func (s *Sequencer) placeholderCode() string {
	b := make([]byte, 4)
	for i := range b {
		b[i] = placeholderAlphabet[s.randIntN(len(placeholderAlphabet))]
	}
	return string(b)
}

// typeCodeFor derives the identifier type code from a customer's service
// token types. Returns ok=false for an empty list (placeholder case).
func typeCodeFor(serviceTypes []types.TokenType) (string, bool) {
	if len(serviceTypes) == 0 {
		return "", false
	}
	first := serviceTypes[0]
	for _, t := range serviceTypes[1:] {
		if t != first {
			return types.MixedTypeCode, true
		}
	}
	return first.Code(), true
}
