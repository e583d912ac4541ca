package capacity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGateReserveSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("bootstraps a missing ledger with one slot taken", func(t *testing.T) {
		gate := NewMemoryGate(100)

		require.NoError(t, gate.ReserveSlot(ctx, "event"))

		ledger, err := gate.GetLedger(ctx, "event")
		require.NoError(t, err)
		assert.Equal(t, Ledger{Current: 1, Max: 100}, ledger)
	})

	t.Run("rejects when full", func(t *testing.T) {
		gate := NewMemoryGate(100)
		gate.SetLedger("event", Ledger{Current: 2, Max: 2})

		err := gate.ReserveSlot(ctx, "event")

		var capErr *Error
		require.True(t, errors.As(err, &capErr))
		assert.Equal(t, REASON_FULL, capErr.Reason)

		ledger, err := gate.GetLedger(ctx, "event")
		require.NoError(t, err)
		assert.Equal(t, 2, ledger.Current)
	})

	t.Run("concurrent reserves never overshoot the cap", func(t *testing.T) {
		const (
			maxSlots = 5
			callers  = 40
		)

		gate := NewMemoryGate(100)
		gate.SetLedger("event", Ledger{Current: 0, Max: maxSlots})

		var wg sync.WaitGroup
		results := make(chan error, callers)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- gate.ReserveSlot(ctx, "event")
			}()
		}
		wg.Wait()
		close(results)

		reserved := 0
		full := 0
		for err := range results {
			if err == nil {
				reserved++
				continue
			}

			var capErr *Error
			require.True(t, errors.As(err, &capErr))
			assert.Equal(t, REASON_FULL, capErr.Reason)
			full++
		}

		assert.Equal(t, maxSlots, reserved)
		assert.Equal(t, callers-maxSlots, full)

		ledger, err := gate.GetLedger(ctx, "event")
		require.NoError(t, err)
		assert.Equal(t, maxSlots, ledger.Current)
	})
}

func TestMemoryGateReleaseSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("decrements a taken slot", func(t *testing.T) {
		gate := NewMemoryGate(100)
		gate.SetLedger("event", Ledger{Current: 3, Max: 5})

		require.NoError(t, gate.ReleaseSlot(ctx, "event"))

		ledger, err := gate.GetLedger(ctx, "event")
		require.NoError(t, err)
		assert.Equal(t, 2, ledger.Current)
	})

	t.Run("floors at zero", func(t *testing.T) {
		gate := NewMemoryGate(100)
		gate.SetLedger("event", Ledger{Current: 0, Max: 5})

		require.NoError(t, gate.ReleaseSlot(ctx, "event"))

		ledger, err := gate.GetLedger(ctx, "event")
		require.NoError(t, err)
		assert.Equal(t, 0, ledger.Current)
	})

	t.Run("missing ledger is a no-op", func(t *testing.T) {
		gate := NewMemoryGate(100)

		require.NoError(t, gate.ReleaseSlot(ctx, "event"))
	})
}

func TestMemoryGateGetLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("missing ledger reads as empty with the default cap", func(t *testing.T) {
		gate := NewMemoryGate(25)

		ledger, err := gate.GetLedger(ctx, "event")
		require.NoError(t, err)
		assert.Equal(t, Ledger{Current: 0, Max: 25}, ledger)
	})
}

func TestLedgerRemaining(t *testing.T) {
	assert.Equal(t, 3, Ledger{Current: 7, Max: 10}.Remaining())
	assert.Equal(t, 0, Ledger{Current: 10, Max: 10}.Remaining())
}
