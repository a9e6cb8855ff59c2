package transform

import (
	"context"
	"reflect"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lifelog/core/datasource"
	"github.com/lifelog/core/internal/metrics"
)

const defaultBatchThreshold = 250

// Engine runs OntologyTransforms against a Data Source: read unconsumed
// batches, map each record, upsert the batch, advance the checkpoint, and
// run any chained transforms.
type Engine struct {
	db      *gorm.DB
	store   datasource.Store
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewEngine constructs an Engine. metrics may be nil.
func NewEngine(db *gorm.DB, store datasource.Store, logger *zap.Logger, m *metrics.Collector) *Engine {
	return &Engine{db: db, store: store, logger: logger, metrics: m}
}

// Run executes one transform to completion: every unconsumed batch for its
// checkpoint key is processed, the checkpoint advances per batch, and any
// chained transforms run afterward in the same call, serially.
func (e *Engine) Run(ctx context.Context, t *OntologyTransform) (TransformResult, error) {
	readStart := time.Now()
	batches, err := e.store.ReadWithCheckpoint(ctx, t.SourceID, t.Stream, t.ConsumerKey())
	if e.metrics != nil {
		e.metrics.RecordTransformRun(t.SourceTable, t.TargetTable, statusLabel(err), time.Since(readStart))
	}
	if err != nil {
		return TransformResult{}, err
	}

	result := TransformResult{}
	greatestFn := greatestFnForDialect(e.db.Dialector.Name())

	for _, batch := range batches {
		batchResult, err := e.processBatch(ctx, t, batch, greatestFn)
		result.RecordsRead += batchResult.RecordsRead
		result.RecordsWritten += batchResult.RecordsWritten
		result.RecordsFailed += batchResult.RecordsFailed
		if batchResult.LastProcessedID != "" {
			result.LastProcessedID = batchResult.LastProcessedID
		}
		if err != nil {
			// Checkpoint advance failure is fatal to this run; prior
			// batches' checkpoint advances stand.
			return result, err
		}
		if err := e.store.UpdateCheckpoint(ctx, t.SourceID, t.Stream, t.ConsumerKey(), batch.MaxTS); err != nil {
			return result, err
		}
	}

	for _, chained := range t.ChainedTransforms {
		chainedResult, err := e.Run(ctx, chained)
		result.ChainedResults = append(result.ChainedResults, chainedResult)
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

func (e *Engine) processBatch(ctx context.Context, t *OntologyTransform, batch datasource.Batch, greatestFn string) (TransformResult, error) {
	result := TransformResult{}
	threshold := t.BatchThreshold
	if threshold <= 0 {
		threshold = defaultBatchThreshold
	}

	var pending []any
	flush := func() {
		if len(pending) == 0 {
			return
		}
		start := time.Now()
		written, failed := e.upsert(ctx, t, pending, greatestFn)
		if e.metrics != nil {
			e.metrics.RecordBatchInsert(t.TargetTable, time.Since(start))
			if failed > 0 {
				e.metrics.RecordRecordsFailed(t.TargetTable, failed)
			}
		}
		result.RecordsWritten += written
		result.RecordsFailed += failed
		pending = pending[:0]
	}

	for _, rec := range batch.Records {
		result.RecordsRead++
		row, id, err := t.Mapper.Map(rec)
		if err != nil {
			e.logger.Warn("transform record validation failed",
				zap.String("target_table", t.TargetTable), zap.Error(err))
			result.RecordsFailed++
			continue
		}
		pending = append(pending, row)
		result.LastProcessedID = id

		if len(pending) >= threshold {
			flush()
		}
	}
	flush()

	return result, nil
}

// upsert performs the batch multi-row upsert with per-row fallback on
// batch failure.
func (e *Engine) upsert(ctx context.Context, t *OntologyTransform, rows []any, greatestFn string) (written, failed int) {
	onConflict := buildOnConflict(t, greatestFn)

	if slice := toHomogeneousSlice(rows); slice != nil {
		err := e.db.WithContext(ctx).Table(t.TargetTable).Clauses(onConflict).Create(slice).Error
		if err == nil {
			return len(rows), 0
		}
		e.logger.Warn("batch upsert failed, falling back to per-row insert",
			zap.String("target_table", t.TargetTable), zap.Error(err))
	}

	for _, row := range rows {
		if err := e.db.WithContext(ctx).Table(t.TargetTable).Clauses(onConflict).Create(row).Error; err != nil {
			e.logger.Error("per-row upsert failed", zap.String("target_table", t.TargetTable), zap.Error(err))
			failed++
			continue
		}
		written++
	}
	return written, failed
}

// toHomogeneousSlice builds a concrete []T slice (via reflection) from a
// []any of identically-typed rows, since GORM's Create needs a concrete
// slice type to batch multiple rows into one statement. Returns nil if the
// rows are not all the same type (caller falls back to per-row inserts).
func toHomogeneousSlice(rows []any) any {
	if len(rows) == 0 {
		return nil
	}
	elemType := reflect.TypeOf(rows[0])
	slice := reflect.MakeSlice(reflect.SliceOf(elemType), 0, len(rows))
	for _, r := range rows {
		if reflect.TypeOf(r) != elemType {
			return nil
		}
		slice = reflect.Append(slice, reflect.ValueOf(r))
	}
	return slice.Interface()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
