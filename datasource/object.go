package datasource

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lifelog/core/lifelog"
)

// ObjectClient is the narrow blob-storage contract the cold-path Store
// needs. FilesystemClient is the only implementation wired in this repo
// (no cloud object-store SDK is in the domain stack); a cloud-backed
// client would only need to satisfy this interface.
type ObjectClient interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns every key with the given prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// FilesystemClient implements ObjectClient against a local directory tree,
// rooted at BasePath, mirroring Archive.BasePath from config.ArchiveConfig.
type FilesystemClient struct {
	BasePath string
}

// NewFilesystemClient constructs a client rooted at basePath.
func NewFilesystemClient(basePath string) *FilesystemClient {
	return &FilesystemClient{BasePath: basePath}
}

func (c *FilesystemClient) resolve(key string) string {
	return filepath.Join(c.BasePath, filepath.FromSlash(key))
}

func (c *FilesystemClient) Put(_ context.Context, key string, data []byte) error {
	path := c.resolve(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return lifelog.Wrap(lifelog.KindDatabase, "create archive directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return lifelog.Wrap(lifelog.KindDatabase, "write archive object", err)
	}
	return nil
}

func (c *FilesystemClient) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(c.resolve(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lifelog.New(lifelog.KindNotFound, fmt.Sprintf("archive object %q not found", key))
		}
		return nil, lifelog.Wrap(lifelog.KindDatabase, "read archive object", err)
	}
	return data, nil
}

func (c *FilesystemClient) List(_ context.Context, prefix string) ([]string, error) {
	root := c.resolve(prefix)
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(c.BasePath, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, lifelog.Wrap(lifelog.KindDatabase, "list archive objects", err)
	}
	return out, nil
}

// checkpointRow is the GORM-backed monotonic checkpoint table shared by
// every cold-path consumer, keyed by (source_id, stream, consumer_key).
type checkpointRow struct {
	SourceID    string    `gorm:"column:source_id;primaryKey"`
	Stream      string    `gorm:"column:stream;primaryKey"`
	ConsumerKey string    `gorm:"column:consumer_key;primaryKey"`
	Timestamp   time.Time `gorm:"column:checkpoint_ts"`
}

func (checkpointRow) TableName() string { return "datasource_checkpoints" }

// recordLine is the on-disk JSONL shape for one record within a batch
// object. Payload is base64-encoded since it may be arbitrary bytes.
type recordLine struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Payload   string    `json:"payload"`
}

// Object is the cold-path Store: batches are written as JSONL files under
// ingest/{source_id}/{stream}/{max_ts_nanos}_{batch_id}.jsonl, checkpoints live in Postgres/
// MySQL/SQLite via GORM.
type Object struct {
	client ObjectClient
	db     *gorm.DB
}

// NewObject constructs a cold-path Store. db must already have the
// datasource_checkpoints table migrated.
func NewObject(client ObjectClient, db *gorm.DB) *Object {
	return &Object{client: client, db: db}
}

func objectKey(sourceID, stream string, maxTS time.Time, batchID string) string {
	// Zero-padded nanosecond prefix keeps List+sort lexicographic order
	// equal to chronological order.
	return fmt.Sprintf("ingest/%s/%s/%020d_%s.jsonl", sourceID, stream, maxTS.UnixNano(), batchID)
}

func (o *Object) WriteBatch(ctx context.Context, sourceID, stream string, records []Record, minTS, maxTS time.Time) (string, error) {
	batchID := uuid.NewString()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		line := recordLine{
			Key:       r.Key,
			Timestamp: r.Timestamp,
			Payload:   base64.StdEncoding.EncodeToString(r.Payload),
		}
		if err := enc.Encode(line); err != nil {
			return "", lifelog.Wrap(lifelog.KindEncoding, "encode batch record", err)
		}
	}

	key := objectKey(sourceID, stream, maxTS, batchID)
	if err := o.client.Put(ctx, key, buf.Bytes()); err != nil {
		return "", err
	}
	_ = minTS // not stored; ReadWithCheckpoint recomputes MinTS from the record timestamps
	return batchID, nil
}

func (o *Object) ReadWithCheckpoint(ctx context.Context, sourceID, stream, consumerKey string) ([]Batch, error) {
	checkpoint, err := o.Checkpoint(ctx, sourceID, stream, consumerKey)
	if err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("ingest/%s/%s/", sourceID, stream)
	keys, err := o.client.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		key     string
		maxTS   time.Time
		batchID string
	}
	var candidates []candidate
	for _, k := range keys {
		base := filepath.Base(k)
		name := strings.TrimSuffix(base, ".jsonl")
		parts := strings.SplitN(name, "_", 2)
		if len(parts) != 2 {
			continue
		}
		nanos, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			continue
		}
		maxTS := time.Unix(0, nanos).UTC()
		if !maxTS.After(checkpoint) {
			continue
		}
		candidates = append(candidates, candidate{key: k, maxTS: maxTS, batchID: parts[1]})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].maxTS.Before(candidates[j].maxTS) })

	out := make([]Batch, 0, len(candidates))
	for _, c := range candidates {
		data, err := o.client.Get(ctx, c.key)
		if err != nil {
			return nil, err
		}
		records, minTS, err := decodeBatch(data)
		if err != nil {
			return nil, err
		}
		out = append(out, Batch{
			ID:       c.batchID,
			SourceID: sourceID,
			Stream:   stream,
			MinTS:    minTS,
			MaxTS:    c.maxTS,
			Records:  records,
		})
	}
	return out, nil
}

func decodeBatch(data []byte) ([]Record, time.Time, error) {
	var records []Record
	var minTS time.Time
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var line recordLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, time.Time{}, lifelog.Wrap(lifelog.KindEncoding, "decode batch record", err)
		}
		payload, err := base64.StdEncoding.DecodeString(line.Payload)
		if err != nil {
			return nil, time.Time{}, lifelog.Wrap(lifelog.KindEncoding, "decode batch record payload", err)
		}
		if minTS.IsZero() || line.Timestamp.Before(minTS) {
			minTS = line.Timestamp
		}
		records = append(records, Record{Key: line.Key, Timestamp: line.Timestamp, Payload: payload})
	}
	if err := scanner.Err(); err != nil {
		return nil, time.Time{}, lifelog.Wrap(lifelog.KindEncoding, "scan batch", err)
	}
	return records, minTS, nil
}

func (o *Object) UpdateCheckpoint(ctx context.Context, sourceID, stream, consumerKey string, ts time.Time) error {
	row := checkpointRow{SourceID: sourceID, Stream: stream, ConsumerKey: consumerKey, Timestamp: ts}
	return o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing checkpointRow
		err := tx.Where("source_id = ? AND stream = ? AND consumer_key = ?", sourceID, stream, consumerKey).
			Take(&existing).Error
		if err == nil && ts.Before(existing.Timestamp) {
			return nil // monotonicity: never regress
		}
		if err != nil && err != gorm.ErrRecordNotFound {
			return lifelog.Wrap(lifelog.KindDatabase, "read checkpoint", err)
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_id"}, {Name: "stream"}, {Name: "consumer_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"checkpoint_ts"}),
		}).Create(&row).Error; err != nil {
			return lifelog.Wrap(lifelog.KindDatabase, "upsert checkpoint", err)
		}
		return nil
	})
}

func (o *Object) Checkpoint(ctx context.Context, sourceID, stream, consumerKey string) (time.Time, error) {
	var row checkpointRow
	err := o.db.WithContext(ctx).
		Where("source_id = ? AND stream = ? AND consumer_key = ?", sourceID, stream, consumerKey).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, lifelog.Wrap(lifelog.KindDatabase, "read checkpoint", err)
	}
	return row.Timestamp, nil
}
