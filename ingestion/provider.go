// Package ingestion implements the Ingestion Executor: the per-stream
// sync procedure of credential refresh, provider pagination, batch
// emission to the Data Source, and cursor bookkeeping, against a narrow
// Provider interface every upstream adapter implements.
package ingestion

import (
	"context"
	"time"
)

// SyncMode selects full re-ingestion or resumption from a stored cursor.
type SyncMode int

const (
	FullRefresh SyncMode = iota
	Incremental
)

// Cursor is an opaque, provider-defined pagination/resume token persisted
// between runs as the stream's sync cursor.
type Cursor string

// ProviderRecord is a provider-neutral record the executor hands to the
// Data Source; it carries a stable primary key and timestamp.
type ProviderRecord struct {
	Key       string
	Timestamp time.Time
	Payload   []byte

	// ThreadPosition/ThreadMessageCount are populated only for
	// thread-structured providers (e.g. Gmail); zero otherwise.
	ThreadPosition      int
	ThreadMessageCount  int
}

// Page is one page of provider results plus the cursor to resume after it.
type Page struct {
	Records    []ProviderRecord
	NextCursor Cursor
	HasMore    bool
}

// Provider is the narrow contract every upstream adapter implements.
// FetchPage must be side-effect free beyond the HTTP call itself: OAuth
// refresh and cursor persistence are the executor's responsibility. The
// executor does not retry a failed page; the error ends the run.
type Provider interface {
	// Name is the provider's registry source name (e.g. "google", "github").
	Name() string

	// FetchPage retrieves one page starting from cursor. An empty cursor
	// with mode FullRefresh means "start from the beginning"; an empty
	// cursor with mode Incremental means "no prior cursor, do a bounded
	// initial sync".
	FetchPage(ctx context.Context, accessToken string, mode SyncMode, cursor Cursor) (Page, error)

	// SupportsIncremental reports whether this provider can resume from a
	// cursor at all (some push-only streams cannot).
	SupportsIncremental() bool
}

// SyncResult is the per-run outcome recorded by the executor.
type SyncResult struct {
	SourceID       string
	Stream         string
	RecordsFetched int
	RecordsWritten int
	RecordsFailed  int
	NextCursor     Cursor
	StartedAt      time.Time
	CompletedAt    time.Time
	Err            error
}
