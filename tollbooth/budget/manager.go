package budget

import (
	"sync"

	"go.uber.org/zap"

	"github.com/lifelog/core/internal/metrics"
)

// Manager is the process-wide budget ledger. It is safe for concurrent use
// from every request-handling goroutine; the only serialization point is
// the hydration/report background loops, which only ever touch entries
// through their own atomics.
type Manager struct {
	entries       sync.Map // string (userID) -> *Entry
	defaultBudget float64
	tiers         *TierManager
	subscriptions *SubscriptionManager
	versions      *VersionCache
	client        *AtlasClient
	logger        *zap.Logger
	metrics       *metrics.Collector
}

// New constructs a Manager seeded with defaultBudgetUSD for unknown users.
// Atlas hydration is the caller's responsibility (via Hydrate / RunRehydrator)
// so construction never blocks on a network call.
func New(defaultBudgetUSD float64, client *AtlasClient, logger *zap.Logger, m *metrics.Collector) *Manager {
	return &Manager{
		defaultBudget: defaultBudgetUSD,
		tiers:         newTierManager(),
		subscriptions: newSubscriptionManager(),
		versions:      newVersionCache(),
		client:        client,
		logger:        logger,
		metrics:       m,
	}
}

// Tiers exposes the tier map populated by hydration.
func (m *Manager) Tiers() *TierManager { return m.tiers }

// Subscriptions exposes the subscription map populated by hydration.
func (m *Manager) Subscriptions() *SubscriptionManager { return m.subscriptions }

// Versions exposes the shared version cache updated from Atlas usage
// report responses.
func (m *Manager) Versions() *VersionCache { return m.versions }

// HasBudget reports whether a user may spend: lazily creates an entry with
// the default budget on first lookup, then returns balance > 0.
func (m *Manager) HasBudget(userID string) bool {
	entry := m.getOrCreate(userID, m.defaultBudget)
	return entry.Balance.Load() > 0
}

// GetBalance returns a user's current balance, or the default budget for a
// user not yet seen.
func (m *Manager) GetBalance(userID string) float64 {
	if v, ok := m.entries.Load(userID); ok {
		return v.(*Entry).Balance.Load()
	}
	return m.defaultBudget
}

// Deduct subtracts cost from both balance and delta. A no-op for a user
// with no entry — deduction presumes a prior HasBudget call initialised
// it.
func (m *Manager) Deduct(userID string, costUSD float64) {
	v, ok := m.entries.Load(userID)
	if !ok {
		return
	}
	entry := v.(*Entry)
	entry.Balance.Sub(costUSD)
	entry.Delta.Sub(costUSD)
	if m.metrics != nil {
		m.metrics.RecordBudgetDeduction("ok")
	}
}

// Credit adds amount to both balance and delta, lazily creating the entry
// with default+amount if the user is unknown.
func (m *Manager) Credit(userID string, amountUSD float64) {
	v, loaded := m.entries.LoadOrStore(userID, newEntry(m.defaultBudget+amountUSD))
	if loaded {
		entry := v.(*Entry)
		entry.Balance.Add(amountUSD)
		entry.Delta.Add(amountUSD)
	}
}

// SetBudget authoritatively sets a user's balance (e.g. from an Atlas
// webhook) and zeroes the pending delta, since the external source of
// truth just resynced.
func (m *Manager) SetBudget(userID string, balanceUSD float64) {
	v, loaded := m.entries.LoadOrStore(userID, newEntry(balanceUSD))
	if loaded {
		entry := v.(*Entry)
		entry.Balance.Store(balanceUSD)
		entry.Delta.Store(0)
	}
}

// BudgetsCount returns the number of entries currently held in RAM.
func (m *Manager) BudgetsCount() int {
	n := 0
	m.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (m *Manager) getOrCreate(userID string, defaultBudget float64) *Entry {
	v, _ := m.entries.LoadOrStore(userID, newEntry(defaultBudget))
	return v.(*Entry)
}
