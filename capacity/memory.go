package capacity

import (
	"context"
	"sync"
)

var _ Gate = &MemoryGate{}

// MemoryGate is an in-process Gate. The mutex stands in for the store's
// transaction serialization, which makes it suitable for tests and local runs
// but not for more than one process.
type MemoryGate struct {
	mu         sync.Mutex
	ledgers    map[string]*Ledger
	defaultMax int
}

func NewMemoryGate(defaultMax int) *MemoryGate {
	return &MemoryGate{
		ledgers:    map[string]*Ledger{},
		defaultMax: defaultMax,
	}
}

// SetLedger seeds a ledger, overwriting any existing one.
func (g *MemoryGate) SetLedger(ledgerID string, ledger Ledger) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ledgers[ledgerID] = &ledger
}

func (g *MemoryGate) ReserveSlot(ctx context.Context, ledgerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ledger, ok := g.ledgers[ledgerID]
	if !ok {
		g.ledgers[ledgerID] = &Ledger{Current: 1, Max: g.defaultMax}
		return nil
	}

	if ledger.Current >= ledger.Max {
		return NewFullError(ledgerID)
	}

	ledger.Current++
	return nil
}

func (g *MemoryGate) ReleaseSlot(ctx context.Context, ledgerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ledger, ok := g.ledgers[ledgerID]
	if !ok || ledger.Current == 0 {
		return nil
	}

	ledger.Current--
	return nil
}

func (g *MemoryGate) GetLedger(ctx context.Context, ledgerID string) (Ledger, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ledger, ok := g.ledgers[ledgerID]
	if !ok {
		return Ledger{Current: 0, Max: g.defaultMax}, nil
	}

	return *ledger, nil
}
