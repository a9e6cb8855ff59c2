package dayscore

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CentroidWindowDays is how far back a rolling centroid looks for
// historical day embeddings.
const CentroidWindowDays = 30

// DecayRate is the exponential-decay constant applied per day of age when
// folding historical embeddings into a rolling centroid.
const DecayRate = 0.1

// CombinedDimension is the dimension key under which the whole-day
// duration-weighted centroid is stored. Per-axis embeddings are a
// diagnostic-only table and are never used for chaos scoring.
const CombinedDimension = "combined"

// DayEmbedding is a stored centroid for one day and one dimension key.
type DayEmbedding struct {
	ID        string `gorm:"primaryKey"`
	DayDate   string `gorm:"uniqueIndex:idx_day_embedding_day_dim"`
	Dimension string `gorm:"uniqueIndex:idx_day_embedding_day_dim"`
	Embedding []byte
	TextHash  string
	Model     string
	CreatedAt time.Time
}

func (DayEmbedding) TableName() string { return "day_embedding" }

// EventEmbedding pairs an event's embedding vector with the duration (in
// minutes) it occupied; duration is the centroid weight.
type EventEmbedding struct {
	Vector         []float32
	DurationMinutes float64
}

// ChaosScoreResult is the outcome of a day's chaos/order scoring.
type ChaosScoreResult struct {
	Score           *float64
	CalibrationDays int
}

// EmbeddingToBytes packs a float32 embedding into a little-endian byte
// slice for BLOB storage.
func EmbeddingToBytes(embedding []float32) []byte {
	out := make([]byte, 4*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// BytesToEmbedding unpacks a little-endian byte BLOB back into a float32
// embedding.
func BytesToEmbedding(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// CosineSimilarity computes the cosine similarity between two vectors,
// using the shorter length when they differ. Returns 0 when either norm
// is zero.
func CosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float32
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB)))
	if denom > 0 {
		return dot / denom
	}
	return 0
}

// durationWeightedCentroid folds a day's event embeddings into a single
// unit-normalized centroid, weighted by event duration (an event with zero
// or negative duration is weighted as 1). Returns nil if the weighted sum
// norm is zero (e.g. every event vector is all zeros).
func durationWeightedCentroid(events []EventEmbedding) []float32 {
	if len(events) == 0 {
		return nil
	}

	dim := len(events[0].Vector)
	sum := make([]float64, dim)
	var totalWeight float64
	for _, e := range events {
		weight := e.DurationMinutes
		if weight <= 0 {
			weight = 1 // an instantaneous event still contributes to the centroid
		}
		totalWeight += weight
		for i, v := range e.Vector {
			if i < dim {
				sum[i] += float64(v) * weight
			}
		}
	}
	if totalWeight <= 0 {
		return nil
	}

	centroid := make([]float32, dim)
	var norm float64
	for i, v := range sum {
		c := v / totalWeight
		centroid[i] = float32(c)
		norm += c * c
	}
	norm = math.Sqrt(norm)
	if norm <= 0 {
		return nil
	}
	for i := range centroid {
		centroid[i] = float32(float64(centroid[i]) / norm)
	}
	return centroid
}

// storeDayEmbedding upserts the centroid for (dayDate, dimension).
func storeDayEmbedding(ctx context.Context, db *gorm.DB, dayDate, dimension string, embedding []float32, textHash, model string) error {
	row := DayEmbedding{
		ID:        fmt.Sprintf("%s_%s", dayDate, dimension),
		DayDate:   dayDate,
		Dimension: dimension,
		Embedding: EmbeddingToBytes(embedding),
		TextHash:  textHash,
		Model:     model,
		CreatedAt: time.Now(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day_date"}, {Name: "dimension"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"embedding", "text_hash", "model", "created_at",
		}),
	}).Create(&row).Error
}

// computeDimensionCentroid computes an exponentially-decayed centroid for a
// dimension over the window_days strictly before beforeDate (YYYY-MM-DD).
// Returns nil if no historical embeddings exist in the window.
func computeDimensionCentroid(ctx context.Context, db *gorm.DB, dimension, beforeDate string, windowDays int) ([]float32, error) {
	before, err := time.Parse("2006-01-02", beforeDate)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", beforeDate, err)
	}
	windowStart := before.AddDate(0, 0, -windowDays)

	var rows []DayEmbedding
	if err := db.WithContext(ctx).
		Where("dimension = ? AND day_date >= ? AND day_date < ?",
			dimension, windowStart.Format("2006-01-02"), beforeDate).
		Order("day_date DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var weightedSum []float64
	var totalWeight float64
	for _, row := range rows {
		date, err := time.Parse("2006-01-02", row.DayDate)
		if err != nil {
			date = before
		}
		daysAgo := before.Sub(date).Hours() / 24
		weight := math.Exp(-DecayRate * daysAgo)
		totalWeight += weight

		embedding := BytesToEmbedding(row.Embedding)
		if weightedSum == nil {
			weightedSum = make([]float64, len(embedding))
		}
		for i, v := range embedding {
			if i < len(weightedSum) {
				weightedSum[i] += float64(v) * weight
			}
		}
	}
	if totalWeight <= 0 {
		return nil, nil
	}

	centroid := make([]float32, len(weightedSum))
	var norm float64
	for i, v := range weightedSum {
		c := v / totalWeight
		centroid[i] = float32(c)
		norm += c * c
	}
	norm = math.Sqrt(norm)
	if norm <= 0 {
		return nil, nil
	}
	for i := range centroid {
		centroid[i] = float32(float64(centroid[i]) / norm)
	}
	return centroid, nil
}

// countCalibrationDays reports how many distinct days have a stored
// "combined" centroid strictly before the given date, within the rolling
// window. This is the diagnostic surfaced to the UI as "N days until the
// chaos score stabilizes".
func countCalibrationDays(ctx context.Context, db *gorm.DB, beforeDate string) (int, error) {
	before, err := time.Parse("2006-01-02", beforeDate)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", beforeDate, err)
	}
	windowStart := before.AddDate(0, 0, -CentroidWindowDays)

	var count int64
	if err := db.WithContext(ctx).Model(&DayEmbedding{}).
		Where("dimension = ? AND day_date >= ? AND day_date < ?",
			CombinedDimension, windowStart.Format("2006-01-02"), beforeDate).
		Distinct("day_date").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// ScoreDay computes and persists the chaos/order score for a day given its
// event embeddings, mirroring the original's duration-weighted centroid +
// rolling-centroid cosine-distance approach. A nil Score means the day
// either had no events to embed or is still within the calibration window
// (no rolling centroid yet to compare against).
func ScoreDay(ctx context.Context, db *gorm.DB, dayDate string, events []EventEmbedding, model string) (ChaosScoreResult, error) {
	calibrationDays, err := countCalibrationDays(ctx, db, dayDate)
	if err != nil {
		return ChaosScoreResult{}, err
	}
	result := ChaosScoreResult{CalibrationDays: calibrationDays}

	if len(events) == 0 {
		return result, nil
	}

	dayCentroid := durationWeightedCentroid(events)
	if dayCentroid == nil {
		return result, nil
	}

	textHash := fmt.Sprintf("%s_events_%d", dayDate, len(events))
	if err := storeDayEmbedding(ctx, db, dayDate, CombinedDimension, dayCentroid, textHash, model); err != nil {
		return ChaosScoreResult{}, fmt.Errorf("storing day centroid: %w", err)
	}

	rollingCentroid, err := computeDimensionCentroid(ctx, db, CombinedDimension, dayDate, CentroidWindowDays)
	if err != nil {
		return ChaosScoreResult{}, fmt.Errorf("computing rolling centroid: %w", err)
	}
	if rollingCentroid == nil {
		return result, nil
	}

	chaos := 1 - float64(CosineSimilarity(dayCentroid, rollingCentroid))
	chaos = clamp01(chaos)
	result.Score = &chaos
	return result, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
