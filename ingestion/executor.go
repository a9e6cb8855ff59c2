package ingestion

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lifelog/core/datasource"
	"github.com/lifelog/core/ingestion/oauthproxy"
	"github.com/lifelog/core/lifelog"
)

// Credentials is a source's current OAuth/device-token state.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// CredentialStore persists and refreshes a source's credentials. The
// executor checks token expiry before every run and refreshes proactively.
type CredentialStore interface {
	Load(ctx context.Context, sourceID string) (Credentials, error)
	Save(ctx context.Context, sourceID string, creds Credentials) error
	MarkAuthError(ctx context.Context, sourceID string, err error) error
}

// CursorStore persists the per-(source,stream) sync cursor and mode
// decision, separately from the Data Source checkpoint (the cursor is a
// provider-pagination token, not a consumer checkpoint timestamp).
type CursorStore interface {
	Load(ctx context.Context, sourceID, stream string) (Cursor, error)
	Save(ctx context.Context, sourceID, stream string, cursor Cursor) error
}

// refreshSafetyWindow is how far ahead of expiry the executor proactively
// refreshes the access token.
const refreshSafetyWindow = 5 * time.Minute

// Executor runs the per-stream sync procedure against a Provider, writing
// batches to a Store and persisting cursors/credentials.
type Executor struct {
	store       datasource.Store
	oauthClient *oauthproxy.Client
	creds       CredentialStore
	cursors     CursorStore
	logger      *zap.Logger
	batchSize   int
}

// NewExecutor constructs an Executor. batchSize bounds how many records
// accumulate before a batch is flushed to the Data Source.
func NewExecutor(store datasource.Store, oauthClient *oauthproxy.Client, creds CredentialStore, cursors CursorStore, logger *zap.Logger, batchSize int) *Executor {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Executor{store: store, oauthClient: oauthClient, creds: creds, cursors: cursors, logger: logger, batchSize: batchSize}
}

// Sync runs one full sync of (sourceID, stream) against provider: resolve
// credentials, load the cursor, page through the provider until
// exhausted, flushing batches and advancing the cursor as it goes.
func (e *Executor) Sync(ctx context.Context, sourceID, stream, provider string, p Provider, forceFullRefresh bool) SyncResult {
	result := SyncResult{SourceID: sourceID, Stream: stream, StartedAt: time.Now()}

	accessToken, err := e.resolveCredentials(ctx, sourceID, provider)
	if err != nil {
		result.Err = err
		result.CompletedAt = time.Now()
		return result
	}

	mode := Incremental
	cursor, err := e.cursors.Load(ctx, sourceID, stream)
	if err != nil {
		result.Err = err
		result.CompletedAt = time.Now()
		return result
	}
	if forceFullRefresh || cursor == "" || !p.SupportsIncremental() {
		mode = FullRefresh
	}

	var pending []datasource.Record
	flush := func(minTS, maxTS time.Time) {
		if len(pending) == 0 {
			return
		}
		if _, err := e.store.WriteBatch(ctx, sourceID, stream, pending, minTS, maxTS); err != nil {
			e.logger.Error("write batch failed", zap.String("source_id", sourceID), zap.String("stream", stream), zap.Error(err))
			result.RecordsFailed += len(pending)
		} else {
			result.RecordsWritten += len(pending)
		}
		pending = pending[:0]
	}

	var batchMin, batchMax time.Time // bounds of every record in pending
	for {
		page, err := p.FetchPage(ctx, accessToken, mode, cursor)
		if err != nil {
			result.Err = err
			break
		}

		for _, r := range page.Records {
			pending = append(pending, datasource.Record{Key: r.Key, Timestamp: r.Timestamp, Payload: r.Payload})
			if batchMin.IsZero() || r.Timestamp.Before(batchMin) {
				batchMin = r.Timestamp
			}
			if r.Timestamp.After(batchMax) {
				batchMax = r.Timestamp
			}
		}
		result.RecordsFetched += len(page.Records)

		if len(pending) >= e.batchSize {
			flush(batchMin, batchMax)
			batchMin, batchMax = time.Time{}, time.Time{}
		}

		cursor = page.NextCursor
		if err := e.cursors.Save(ctx, sourceID, stream, cursor); err != nil {
			result.Err = err
			break
		}

		if !page.HasMore {
			break
		}
		mode = Incremental // subsequent pages within one run always resume from the returned cursor
	}

	if len(pending) > 0 {
		var minTS, maxTS time.Time
		for _, r := range pending {
			if minTS.IsZero() || r.Timestamp.Before(minTS) {
				minTS = r.Timestamp
			}
			if r.Timestamp.After(maxTS) {
				maxTS = r.Timestamp
			}
		}
		flush(minTS, maxTS)
	}

	result.NextCursor = cursor
	result.CompletedAt = time.Now()
	return result
}

func (e *Executor) resolveCredentials(ctx context.Context, sourceID, provider string) (string, error) {
	creds, err := e.creds.Load(ctx, sourceID)
	if err != nil {
		return "", err
	}

	if creds.ExpiresAt.IsZero() || time.Until(creds.ExpiresAt) > refreshSafetyWindow {
		return creds.AccessToken, nil
	}

	refreshed, err := e.oauthClient.Refresh(ctx, provider, creds.RefreshToken)
	if err != nil {
		if markErr := e.creds.MarkAuthError(ctx, sourceID, err); markErr != nil {
			e.logger.Error("failed to mark source auth error", zap.String("source_id", sourceID), zap.Error(markErr))
		}
		return "", lifelog.Wrap(lifelog.KindAuthentication, "refresh oauth token", err)
	}

	newCreds := Credentials{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    time.Now().Add(refreshed.ExpiresIn),
	}
	if refreshed.RefreshToken != "" {
		newCreds.RefreshToken = refreshed.RefreshToken
	}
	if err := e.creds.Save(ctx, sourceID, newCreds); err != nil {
		return "", err
	}
	return newCreds.AccessToken, nil
}
