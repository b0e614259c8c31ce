package worker

// sync_worker.go
// Processes fiscal document sync jobs from QueueDocumentSync.
// Retries the sidecar with exponential backoff (3 attempts); a document that
// still cannot be refreshed is handed to the retry cron.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/lifecycle"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MaxSyncRetries is the number of cron attempts before a pending document is
// moved to the DLQ and left for a manual sync.
const MaxSyncRetries = 8

// SyncJobPayload is the job envelope sent to QueueDocumentSync.
type SyncJobPayload struct {
	ShipmentID string `json:"carregamento_id"`
}

// DocumentSyncer is satisfied by *lifecycle.Syncer.
type DocumentSyncer interface {
	Sync(ctx context.Context, id uuid.UUID) (*model.Shipment, error)
}

// SyncStore is the slice of the shipment repository the sync paths need.
type SyncStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Shipment, error)
	UpdateDocument(ctx context.Context, id uuid.UUID, doc model.FiscalDocument) error
	ListPendingSync(ctx context.Context, now time.Time, limit int) ([]model.Shipment, error)
	RecordSyncFailure(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt *time.Time, lastErr string) error
}

type SyncWorker struct {
	syncer   DocumentSyncer
	store    SyncStore
	attempts int
}

func NewSyncWorker(syncer DocumentSyncer, store SyncStore) *SyncWorker {
	return &SyncWorker{syncer: syncer, store: store, attempts: 3}
}

// Process handles a single sync job:
//  1. Parse SyncJobPayload from the job envelope
//  2. Call the syncer with exponential backoff
//  3. On exhaustion, record the failure so the retry cron picks it up
func (w *SyncWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload SyncJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("sync_worker: invalid payload: %w", err)
	}
	id, err := uuid.Parse(payload.ShipmentID)
	if err != nil {
		return fmt.Errorf("sync_worker: invalid carregamento_id %q", payload.ShipmentID)
	}

	var rec *model.Shipment
	syncErr := withRetry(ctx, w.attempts, func(attempt int) error {
		s, err := w.syncer.Sync(ctx, id)
		if err != nil {
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("shipment_id", id.String()).
				Msg("sync_worker: sync attempt failed")
			if !errors.Is(err, lifecycle.ErrSyncUnavailable) {
				return permanent{err}
			}
			return err
		}
		rec = s
		return nil
	})

	if syncErr != nil {
		var p permanent
		if errors.As(syncErr, &p) {
			return p.err
		}
		return w.scheduleRetry(ctx, id, syncErr)
	}

	log.Info().
		Str("shipment_id", id.String()).
		Str("status", rec.Document.Status).
		Msg("sync_worker: document refreshed")
	return nil
}

// scheduleRetry hands a pending document to the cron. Any other status is
// left alone; a failed sync never changes what is stored.
func (w *SyncWorker) scheduleRetry(ctx context.Context, id uuid.UUID, cause error) error {
	rec, err := w.store.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("sync_worker: reload shipment: %w", err)
	}
	if fiscal.DocumentStatus(rec.Document.Status) != fiscal.StatusPending {
		return cause
	}
	retries := rec.Document.RetryCount + 1
	next := time.Now().Add(computeRetryBackoff(retries))
	if err := w.store.RecordSyncFailure(ctx, id, retries, &next, cause.Error()); err != nil {
		return fmt.Errorf("sync_worker: record failure: %w", err)
	}
	return cause
}

// permanent stops withRetry early.
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = 1s, 3 = 2s.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			// 1s, 2s … (exponential backoff)
			wait := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		err := fn(i)
		if err == nil {
			return nil
		}
		lastErr = err
		if _, ok := err.(permanent); ok {
			return err
		}
	}
	return lastErr
}

// computeRetryBackoff spaces cron attempts: 30s, 1m, 2m … capped at 30m.
func computeRetryBackoff(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	d := 30 * time.Second << uint(min(retryCount-1, 6))
	if d > 30*time.Minute {
		d = 30 * time.Minute
	}
	return d
}
