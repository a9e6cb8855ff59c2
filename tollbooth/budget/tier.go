package budget

import "sync"

// TierManager is the process-wide map of user ID to service tier
// ("starter", "pro", ...), populated by Atlas hydration and consulted
// during request admission for tier-gated model access.
type TierManager struct {
	mu    sync.RWMutex
	tiers map[string]string
}

func newTierManager() *TierManager {
	return &TierManager{tiers: make(map[string]string)}
}

// SetTier records a user's tier.
func (t *TierManager) SetTier(userID, tier string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tiers[userID] = tier
}

// Tier returns a user's tier, or "" if unknown.
func (t *TierManager) Tier(userID string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tiers[userID]
}
