package dayscore

import (
	"context"
	"math"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&DayEmbedding{}))
	return db
}

func vec(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

// TestScoreDay_S4_ChaosBaseline covers spec scenario S4: no day embeddings
// exist before date D, so the rolling centroid is absent and the score must
// be nil with calibration_days = 0.
func TestScoreDay_S4_ChaosBaseline(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	events := []EventEmbedding{{Vector: vec(4, 1), DurationMinutes: 30}}
	result, err := ScoreDay(ctx, db, "2026-06-01", events, "test-model")
	require.NoError(t, err)

	assert.Nil(t, result.Score)
	assert.Equal(t, 0, result.CalibrationDays)

	var stored DayEmbedding
	require.NoError(t, db.First(&stored, "day_date = ? AND dimension = ?", "2026-06-01", CombinedDimension).Error)
	assert.Equal(t, "2026-06-01_combined", stored.ID)
}

// TestScoreDay_S5_ChaosComputed covers spec scenario S5: day D-1's stored
// combined embedding is [1,0,0,...], day D's events centroid to
// [0,1,0,...]. The 1-day decay is e^-0.1, but since there is only one
// historical day the rolling centroid unit-normalizes back to [1,0,0,...]
// regardless of the decay weight. Cosine(day, rolling) = 0, so chaos = 1.0.
func TestScoreDay_S5_ChaosComputed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, storeDayEmbedding(ctx, db, "2026-05-31", CombinedDimension, vec(4, 0), "seed", "test-model"))

	events := []EventEmbedding{{Vector: vec(4, 1), DurationMinutes: 60}}
	result, err := ScoreDay(ctx, db, "2026-06-01", events, "test-model")
	require.NoError(t, err)

	require.NotNil(t, result.Score)
	assert.InDelta(t, 1.0, *result.Score, 1e-6)
	assert.Equal(t, 1, result.CalibrationDays)
}

func TestScoreDay_NoEvents_ScoresNil(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	result, err := ScoreDay(ctx, db, "2026-06-01", nil, "test-model")
	require.NoError(t, err)
	assert.Nil(t, result.Score)
}

func TestComputeDimensionCentroid_AppliesExponentialDecay(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Two historical days pointing in different directions; the more
	// recent one should dominate after decay-weighting.
	require.NoError(t, storeDayEmbedding(ctx, db, "2026-05-30", CombinedDimension, vec(3, 0), "a", "m"))
	require.NoError(t, storeDayEmbedding(ctx, db, "2026-05-31", CombinedDimension, vec(3, 1), "b", "m"))

	centroid, err := computeDimensionCentroid(ctx, db, CombinedDimension, "2026-06-01", CentroidWindowDays)
	require.NoError(t, err)
	require.NotNil(t, centroid)

	// Recent day (1 day ago) has more weight than the older one (2 days
	// ago), so axis 1 should dominate axis 0.
	assert.Greater(t, centroid[1], centroid[0])

	var norm float64
	for _, v := range centroid {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestCosineSimilarity_OrthogonalIsZero(t *testing.T) {
	assert.Equal(t, float32(0), CosineSimilarity(vec(4, 0), vec(4, 1)))
}

func TestCosineSimilarity_IdenticalIsOne(t *testing.T) {
	assert.InDelta(t, float32(1), CosineSimilarity(vec(4, 2), vec(4, 2)), 1e-6)
}

func TestEmbeddingBytesRoundTrip(t *testing.T) {
	original := []float32{0.5, -0.25, 1.0, -1.0, 0.0}
	roundTripped := BytesToEmbedding(EmbeddingToBytes(original))
	require.Len(t, roundTripped, len(original))
	for i := range original {
		assert.InDelta(t, original[i], roundTripped[i], 1e-6)
	}
}
