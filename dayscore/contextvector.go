// Package dayscore computes the per-day W6H context vector, its Shannon
// entropy, and the chaos/order score derived from day-embedding centroids.
// The seven axes — who, whom, what, when, where, why, how — are the
// fixed ordering established by registry.ContextWeights.
package dayscore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lifelog/core/registry"
)

// NumDims is the W6H axis count: who, whom, what, when, where, why, how.
const NumDims = 7

// ContextVector is the fixed 7-axis [who,whom,what,when,where,why,how]
// coverage vector for a day: each axis is the fraction of registered
// context weight contributed by ontologies that have at least one row in
// the day window.
type ContextVector [NumDims]float64

// ComputeContextVector queries every registered ontology for row presence
// within [start, end) and folds its context weights into the vector. An
// ontology contributes its full weight vector when present, none when
// absent; the result is normalized by the weight totals across all
// registered ontologies so a dimension with no heavily-weighted ontology
// present for the day reads low rather than artificially capped at 1.
func ComputeContextVector(ctx context.Context, db *gorm.DB, reg *registry.Registry, start, end time.Time) (ContextVector, error) {
	var totalWeights, presentWeights [NumDims]float64

	for _, ont := range reg.Ontologies() {
		for dim := 0; dim < NumDims; dim++ {
			totalWeights[dim] += ont.ContextWeights[dim]
		}

		present, err := ontologyHasData(ctx, db, ont, start, end)
		if err != nil {
			return ContextVector{}, fmt.Errorf("checking presence of %s: %w", ont.Name, err)
		}
		if present {
			for dim := 0; dim < NumDims; dim++ {
				presentWeights[dim] += ont.ContextWeights[dim]
			}
		}
	}

	var vector ContextVector
	for dim := 0; dim < NumDims; dim++ {
		if totalWeights[dim] > 0 {
			vector[dim] = presentWeights[dim] / totalWeights[dim]
		}
	}
	return vector, nil
}

// ontologyHasData reports whether an ontology's table has any row whose
// timestamp column falls within the day window. Ontologies with no source
// stream (e.g. derived tables still awaiting their first transform run)
// are queried the same way — an empty table just reads as absent.
func ontologyHasData(ctx context.Context, db *gorm.DB, ont registry.Ontology, start, end time.Time) (bool, error) {
	query := fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM %s WHERE %s >= ? AND %s < ? LIMIT 1)",
		ont.TableName, ont.TimestampColumn, ont.TimestampColumn,
	)
	var exists bool
	if err := db.WithContext(ctx).Raw(query, start, end).Scan(&exists).Error; err != nil {
		return false, err
	}
	return exists, nil
}
