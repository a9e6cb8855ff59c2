// Package transform implements the transform engine: converting raw
// ingested batches into normalised ontology rows via batched idempotent
// upserts, with checkpoint advancement and per-row failure isolation.
package transform

import "github.com/lifelog/core/datasource"

// Mapper validates one raw record and builds its target-ontology row plus
// deterministic id. Implementations are the only per-ontology code a new
// transform needs to write; the Engine handles batching, upsert, and
// checkpointing generically.
type Mapper interface {
	// Map returns the row to upsert (a pointer to a GORM model struct) and
	// its deterministic id. An error marks the record as a validation
	// failure (counted in records_failed, the batch continues).
	Map(record datasource.Record) (row any, id string, err error)
}

// OntologyTransform is (source_table, target_table, domain) plus the wiring
// the Engine needs: the consumer key under which it reads from the Data
// Source, its Mapper, batch threshold, conflict-resolution columns, and any
// chained transforms that should run after this one completes.
type OntologyTransform struct {
	Name           string
	SourceID       string
	Stream         string
	TargetOntology string
	SourceTable    string
	TargetTable    string
	Domain         string
	Mapper         Mapper

	// BatchThreshold is the row count that triggers a flush; 100-500
	// depending on ontology cardinality is typical.
	BatchThreshold int

	// IDColumn is the conflict target, almost always "id".
	IDColumn string
	// UpdateColumns lists columns the upsert overwrites unconditionally.
	UpdateColumns []string
	// MonotoneColumns lists columns that must never regress on conflict
	// (e.g. "departure_time"); the upsert uses GREATEST(excluded, existing).
	MonotoneColumns []string

	ChainedTransforms []*OntologyTransform
}

// ConsumerKey is the checkpoint key: "<source_stream>_to_<target_ontology>".
func (t *OntologyTransform) ConsumerKey() string {
	return t.SourceID + "_" + t.Stream + "_to_" + t.TargetOntology
}

// TransformResult is the per-run outcome.
type TransformResult struct {
	RecordsRead     int
	RecordsWritten  int
	RecordsFailed   int
	LastProcessedID string
	ChainedResults  []TransformResult
}
