// Package datasource implements the Data Source Abstraction: a
// checkpointed batch store with two interchangeable backends, a hot
// in-memory pass-through and a cold persistent object store, sharing one
// checkpoint contract so the transform engine never needs to know
// which one it is reading from.
package datasource

import (
	"context"
	"time"
)

// Record is a provider-neutral row emitted by the ingestion executor:
// a stable primary key, a timestamp used for checkpoint ordering, and the
// raw provider payload.
type Record struct {
	Key       string
	Timestamp time.Time
	Payload   []byte
}

// Batch is an ordered group of records written in one write_batch call.
// Records within a batch preserve insertion order (spec guarantee).
type Batch struct {
	ID        string
	SourceID  string
	Stream    string
	MinTS     time.Time
	MaxTS     time.Time
	Records   []Record
}

// Store is the C2 contract. Implementations: Memory (hot path) and Object
// (cold path) — both pass the conformance suite in conformance_test.go.
type Store interface {
	// WriteBatch durably persists records and returns the new batch id.
	// minTS/maxTS bound the batch's record timestamps.
	WriteBatch(ctx context.Context, sourceID, stream string, records []Record, minTS, maxTS time.Time) (batchID string, err error)

	// ReadWithCheckpoint returns, in ascending max_ts order, every batch for
	// (sourceID, stream) whose max_ts is strictly after the consumer's
	// current checkpoint.
	ReadWithCheckpoint(ctx context.Context, sourceID, stream, consumerKey string) ([]Batch, error)

	// UpdateCheckpoint advances the (sourceID, stream, consumerKey)
	// checkpoint to ts. Callers must never call this with a ts older than
	// the current checkpoint; implementations enforce monotonicity.
	UpdateCheckpoint(ctx context.Context, sourceID, stream, consumerKey string, ts time.Time) error

	// Checkpoint returns the current checkpoint timestamp, or the zero
	// time if the consumer has never advanced it.
	Checkpoint(ctx context.Context, sourceID, stream, consumerKey string) (time.Time, error)
}
