package datasource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runConformanceSuite exercises the Store contract against any
// implementation: both Memory and Object must pass identically.
func runConformanceSuite(t *testing.T, newStore func() Store) {
	t.Run("WriteThenReadReturnsAllBatches", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		_, err := s.WriteBatch(ctx, "src1", "stream1", []Record{
			{Key: "a", Timestamp: base, Payload: []byte("1")},
		}, base, base)
		require.NoError(t, err)

		batches, err := s.ReadWithCheckpoint(ctx, "src1", "stream1", "consumer1")
		require.NoError(t, err)
		require.Len(t, batches, 1)
		assert.Len(t, batches[0].Records, 1)
		assert.Equal(t, "a", batches[0].Records[0].Key)
	})

	t.Run("BatchesOrderedByAscendingMaxTS", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

		_, err := s.WriteBatch(ctx, "src1", "stream1", []Record{{Key: "late", Timestamp: base.Add(2 * time.Hour), Payload: []byte("x")}}, base.Add(time.Hour), base.Add(2*time.Hour))
		require.NoError(t, err)
		_, err = s.WriteBatch(ctx, "src1", "stream1", []Record{{Key: "early", Timestamp: base, Payload: []byte("x")}}, base, base)
		require.NoError(t, err)

		batches, err := s.ReadWithCheckpoint(ctx, "src1", "stream1", "consumer1")
		require.NoError(t, err)
		require.Len(t, batches, 2)
		assert.True(t, batches[0].MaxTS.Before(batches[1].MaxTS))
		assert.Equal(t, "early", batches[0].Records[0].Key)
		assert.Equal(t, "late", batches[1].Records[0].Key)
	})

	t.Run("CheckpointFiltersAlreadyConsumedBatches", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		_, err := s.WriteBatch(ctx, "src1", "stream1", []Record{{Key: "a", Timestamp: base, Payload: []byte("x")}}, base, base)
		require.NoError(t, err)

		require.NoError(t, s.UpdateCheckpoint(ctx, "src1", "stream1", "consumer1", base))

		_, err = s.WriteBatch(ctx, "src1", "stream1", []Record{{Key: "b", Timestamp: base.Add(time.Hour), Payload: []byte("y")}}, base.Add(time.Hour), base.Add(time.Hour))
		require.NoError(t, err)

		batches, err := s.ReadWithCheckpoint(ctx, "src1", "stream1", "consumer1")
		require.NoError(t, err)
		require.Len(t, batches, 1)
		assert.Equal(t, "b", batches[0].Records[0].Key)
	})

	t.Run("CheckpointNeverRegresses", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

		require.NoError(t, s.UpdateCheckpoint(ctx, "src1", "stream1", "consumer1", base.Add(time.Hour)))
		require.NoError(t, s.UpdateCheckpoint(ctx, "src1", "stream1", "consumer1", base))

		cp, err := s.Checkpoint(ctx, "src1", "stream1", "consumer1")
		require.NoError(t, err)
		assert.True(t, cp.Equal(base.Add(time.Hour)), "checkpoint must not regress")
	})

	t.Run("UnknownCheckpointIsZeroTime", func(t *testing.T) {
		s := newStore()
		cp, err := s.Checkpoint(context.Background(), "src-new", "stream-new", "consumer-new")
		require.NoError(t, err)
		assert.True(t, cp.IsZero())
	})

	t.Run("RecordOrderWithinBatchPreserved", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

		_, err := s.WriteBatch(ctx, "src1", "stream1", []Record{
			{Key: "r1", Timestamp: base, Payload: []byte("1")},
			{Key: "r2", Timestamp: base.Add(time.Minute), Payload: []byte("2")},
			{Key: "r3", Timestamp: base.Add(2 * time.Minute), Payload: []byte("3")},
		}, base, base.Add(2*time.Minute))
		require.NoError(t, err)

		batches, err := s.ReadWithCheckpoint(ctx, "src1", "stream1", "consumer1")
		require.NoError(t, err)
		require.Len(t, batches, 1)
		require.Len(t, batches[0].Records, 3)
		assert.Equal(t, []string{"r1", "r2", "r3"}, []string{
			batches[0].Records[0].Key, batches[0].Records[1].Key, batches[0].Records[2].Key,
		})
	})

	t.Run("DistinctConsumersHaveIndependentCheckpoints", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

		_, err := s.WriteBatch(ctx, "src1", "stream1", []Record{{Key: "a", Timestamp: base, Payload: []byte("x")}}, base, base)
		require.NoError(t, err)

		require.NoError(t, s.UpdateCheckpoint(ctx, "src1", "stream1", "consumer_A", base))

		batchesA, err := s.ReadWithCheckpoint(ctx, "src1", "stream1", "consumer_A")
		require.NoError(t, err)
		assert.Empty(t, batchesA)

		batchesB, err := s.ReadWithCheckpoint(ctx, "src1", "stream1", "consumer_B")
		require.NoError(t, err)
		assert.Len(t, batchesB, 1)
	})
}
