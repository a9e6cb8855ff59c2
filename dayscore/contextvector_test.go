package dayscore

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lifelog/core/registry"
)

// newContextVectorTestDB creates an empty table for every registered
// ontology so ComputeContextVector's presence query can run against the
// full catalogue, not just the ontologies a given test cares about.
func newContextVectorTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	reg := registry.New()
	require.NoError(t, reg.Validate())
	for _, ont := range reg.Ontologies() {
		stmt := "CREATE TABLE " + ont.TableName + " (id TEXT PRIMARY KEY, " + ont.TimestampColumn + " DATETIME"
		if ont.EndTimestampColumn != "" {
			stmt += ", " + ont.EndTimestampColumn + " DATETIME"
		}
		stmt += ")"
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func TestComputeContextVector_WeighsPresentOntologiesOnly(t *testing.T) {
	db := newContextVectorTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	require.NoError(t, db.Exec(
		`INSERT INTO calendar_event (id, starts_at, ends_at) VALUES (?, ?, ?)`,
		"evt-1", start.Add(9*time.Hour), start.Add(10*time.Hour),
	).Error)
	// health_workout left empty: absent for the day.

	reg := registry.New()
	require.NoError(t, reg.Validate())

	vector, err := ComputeContextVector(ctx, db, reg, start, end)
	require.NoError(t, err)

	for dim, v := range vector {
		assert.GreaterOrEqual(t, v, 0.0, "dim %d", dim)
		assert.LessOrEqual(t, v, 1.0, "dim %d", dim)
	}
	// calendar_event weighs "when" at 0.6 of a small denominator shared
	// with other registered ontologies; it must be strictly positive.
	assert.Greater(t, vector[registry.DimWhen], 0.0)
}

func TestComputeContextVector_AllAbsentIsZeroVector(t *testing.T) {
	db := newContextVectorTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	reg := registry.New()
	require.NoError(t, reg.Validate())

	vector, err := ComputeContextVector(ctx, db, reg, start, end)
	require.NoError(t, err)
	assert.Equal(t, ContextVector{}, vector)
}

func TestShannonEntropy_UniformIsOne(t *testing.T) {
	v := ContextVector{1, 1, 1, 1, 1, 1, 1}
	assert.InDelta(t, 1.0, ShannonEntropy(v), 1e-9)
}

func TestShannonEntropy_SingleDimensionIsZero(t *testing.T) {
	v := ContextVector{1, 0, 0, 0, 0, 0, 0}
	assert.Equal(t, 0.0, ShannonEntropy(v))
}

func TestShannonEntropy_AllZeroIsZero(t *testing.T) {
	assert.Equal(t, 0.0, ShannonEntropy(ContextVector{}))
}
