package budget

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// deltaReportThreshold is the minimum absolute delta worth reporting;
// below it, floating noise isn't worth a network round trip.
const deltaReportThreshold = 0.001

// RunReporter pushes accumulated usage to Atlas on every tick until ctx is
// cancelled. A no-op when Atlas is not configured.
func (m *Manager) RunReporter(ctx context.Context, interval time.Duration) {
	if !m.client.Configured() {
		if m.logger != nil {
			m.logger.Debug("atlas not configured, usage reporter disabled")
		}
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.reportUsage(ctx); err != nil && m.logger != nil {
				m.logger.Error("usage report to atlas failed, will retry", zap.Error(err))
			}
		}
	}
}

// reportUsage swaps every entry's delta to zero, collects the
// above-threshold ones, and POSTs them to Atlas. On failure, the reported
// deltas are added back so no spend is lost.
func (m *Manager) reportUsage(ctx context.Context) error {
	type pending struct {
		userID string
		entry  *Entry
		delta  float64
	}

	var toReport []pending
	m.entries.Range(func(key, value any) bool {
		entry := value.(*Entry)
		delta := entry.Delta.Swap(0)
		if delta < -deltaReportThreshold || delta > deltaReportThreshold {
			toReport = append(toReport, pending{userID: key.(string), entry: entry, delta: delta})
		}
		return true
	})

	if len(toReport) == 0 {
		return nil
	}

	reports := make([]UsageReport, 0, len(toReport))
	for _, p := range toReport {
		reports = append(reports, UsageReport{
			UserID:     p.userID,
			TokensUsed: 0,
			CostUSD:    -p.delta, // spend is reported as a positive cost
		})
	}

	resp, err := m.client.PostUsage(ctx, reports)
	if err != nil {
		for _, p := range toReport {
			p.entry.Delta.Add(p.delta)
		}
		return err
	}

	if m.logger != nil {
		m.logger.Info("reported usage to atlas",
			zap.Int("reports", len(reports)),
			zap.Uint64("recorded", resp.Recorded),
			zap.Uint64("total", resp.Total),
		)
	}
	if resp.LatestVersion != nil {
		m.versions.Set(*resp.LatestVersion)
	}
	return nil
}
