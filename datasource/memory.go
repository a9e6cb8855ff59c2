package datasource

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is the hot-path Store: a per-process map used when the ingestion
// executor hands batches directly to the transform engine in the same
// process, with no durability beyond process lifetime.
type Memory struct {
	mu          sync.RWMutex
	batches     map[string][]Batch // key: sourceID+"/"+stream
	checkpoints map[string]time.Time // key: sourceID+"/"+stream+"/"+consumerKey
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		batches:     map[string][]Batch{},
		checkpoints: map[string]time.Time{},
	}
}

func streamSlot(sourceID, stream string) string { return sourceID + "/" + stream }

func consumerSlot(sourceID, stream, consumerKey string) string {
	return sourceID + "/" + stream + "/" + consumerKey
}

func (m *Memory) WriteBatch(_ context.Context, sourceID, stream string, records []Record, minTS, maxTS time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batchID := uuid.NewString()
	cp := make([]Record, len(records))
	copy(cp, records)

	slot := streamSlot(sourceID, stream)
	m.batches[slot] = append(m.batches[slot], Batch{
		ID:       batchID,
		SourceID: sourceID,
		Stream:   stream,
		MinTS:    minTS,
		MaxTS:    maxTS,
		Records:  cp,
	})
	sort.SliceStable(m.batches[slot], func(i, j int) bool {
		return m.batches[slot][i].MaxTS.Before(m.batches[slot][j].MaxTS)
	})
	return batchID, nil
}

func (m *Memory) ReadWithCheckpoint(_ context.Context, sourceID, stream, consumerKey string) ([]Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	checkpoint := m.checkpoints[consumerSlot(sourceID, stream, consumerKey)]
	var out []Batch
	for _, b := range m.batches[streamSlot(sourceID, stream)] {
		if b.MaxTS.After(checkpoint) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Memory) UpdateCheckpoint(_ context.Context, sourceID, stream, consumerKey string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := consumerSlot(sourceID, stream, consumerKey)
	if cur, ok := m.checkpoints[key]; ok && ts.Before(cur) {
		return nil // monotonicity: never regress, silently ignore
	}
	m.checkpoints[key] = ts
	return nil
}

func (m *Memory) Checkpoint(_ context.Context, sourceID, stream, consumerKey string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkpoints[consumerSlot(sourceID, stream, consumerKey)], nil
}
