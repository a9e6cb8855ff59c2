// Package budget is the in-process, lock-free budget ledger fronting every
// tollbooth request: a sync.Map (a single map, not sharded) of per-user
// atomic balance/delta pairs, hydrated from and periodically reported back to the remote ledger
// service ("Atlas"), with tier and subscription state carried alongside.
package budget

import "go.uber.org/atomic"

// Entry is a single user's in-RAM budget state. Balance and Delta are
// lock-free atomics — concurrent deduct/credit calls never block each
// other or a concurrent reporter swap.
type Entry struct {
	// Balance is the current USD balance; requests are admitted while it
	// is strictly positive and may go negative under racing deducts.
	Balance *atomic.Float64
	// Delta is usage accumulated since the last successful report to
	// Atlas; negative values represent spend.
	Delta *atomic.Float64
}

func newEntry(balance float64) *Entry {
	return &Entry{
		Balance: atomic.NewFloat64(balance),
		Delta:   atomic.NewFloat64(0),
	}
}
