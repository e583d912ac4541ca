// Package capacity defines the shared registration counter and the
// reserve-or-reject gate enforced against it.
package capacity

import "context"

// DefaultMax is the cap a ledger is bootstrapped with when the first
// registration creates it.
const DefaultMax = 100

// Ledger is the shared counter document for one event.
// Invariant: 0 <= Current <= Max, under any number of concurrent writers.
type Ledger struct {
	Current int
	Max     int
}

// Remaining returns how many slots are still open.
func (l Ledger) Remaining() int {
	return l.Max - l.Current
}

// Gate reserves and releases capacity slots. ReserveSlot must be atomic with
// respect to concurrent callers: the backing store serializes the
// read-modify-write so a stale read can never push Current past Max.
type Gate interface {
	// ReserveSlot consumes one slot, bootstrapping a missing ledger with
	// {Current: 1, Max: DefaultMax}. Returns a REASON_FULL error when no
	// capacity remains; that outcome is terminal for the submission.
	ReserveSlot(ctx context.Context, ledgerID string) error
	// ReleaseSlot is the compensating decrement, floored at zero. Normal
	// flow never calls it; it exists for administrative correction.
	ReleaseSlot(ctx context.Context, ledgerID string) error
	GetLedger(ctx context.Context, ledgerID string) (Ledger, error)
}
