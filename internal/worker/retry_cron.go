package worker

// retry_cron.go
// Background goroutine that periodically refreshes fiscal documents stuck in
// status 'pendente' whose next retry time has passed. Skips ticks while the
// sidecar breaker is open so a downed sidecar is not hammered.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 10
)

// Breaker is the view of the sidecar breaker the cron consults.
type Breaker interface {
	Open() bool
}

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	Store  SyncStore
	Syncer DocumentSyncer
	CB     Breaker
	RDB    *redis.Client
	Now    func() time.Time
}

// StartRetryCron launches a background goroutine that ticks every 30s,
// queries pending documents, and refreshes them through the syncer.
// It respects the context for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg)
			}
		}
	}()
}

func processRetries(ctx context.Context, cfg RetryCronConfig) {
	// If CB is open, skip entirely, don't hammer a downed sidecar
	if cfg.CB != nil && cfg.CB.Open() {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return
	}

	pending, err := cfg.Store.ListPendingSync(ctx, cfg.Now(), retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query pending documents")
		return
	}
	if len(pending) == 0 {
		return
	}

	log.Info().Int("count", len(pending)).Msg("retry_cron: processing pending documents")

	for i := range pending {
		rec := &pending[i]

		// Check CB state before each call, it may have tripped mid-batch
		if cfg.CB != nil && cfg.CB.Open() {
			log.Debug().Msg("retry_cron: circuit breaker opened mid-batch, stopping")
			return
		}

		updated, err := cfg.Syncer.Sync(ctx, rec.ID)
		if err == nil {
			log.Info().
				Str("shipment_id", rec.ID.String()).
				Str("status", updated.Document.Status).
				Int("total_retries", rec.Document.RetryCount).
				Msg("retry_cron: document refreshed")
			continue
		}
		recordFailure(ctx, cfg, rec, err)
	}
}

func recordFailure(ctx context.Context, cfg RetryCronConfig, rec *model.Shipment, cause error) {
	// the listed row is a snapshot; the document may have moved on during Sync
	cur, err := cfg.Store.FindByID(ctx, rec.ID)
	if err != nil {
		log.Error().Err(err).Str("shipment_id", rec.ID.String()).Msg("retry_cron: failed to reload shipment")
		return
	}
	if fiscal.DocumentStatus(cur.Document.Status) != fiscal.StatusPending {
		log.Info().
			Str("shipment_id", rec.ID.String()).
			Str("status", cur.Document.Status).
			Msg("retry_cron: document no longer pending, failure ignored")
		return
	}
	retries := cur.Document.RetryCount + 1
	errMsg := cause.Error()

	if retries < MaxSyncRetries {
		next := cfg.Now().Add(computeRetryBackoff(retries))
		if err := cfg.Store.RecordSyncFailure(ctx, rec.ID, retries, &next, errMsg); err != nil {
			log.Error().Err(err).Str("shipment_id", rec.ID.String()).Msg("retry_cron: failed to record failure")
			return
		}
		log.Warn().
			Str("shipment_id", rec.ID.String()).
			Int("retry_count", retries).
			Time("next_retry_at", next).
			Msg("retry_cron: sync retry failed, scheduled next attempt")
		return
	}

	// Exhausted: the stored status stays as it is. A nil next retry with a
	// non-zero count keeps the record out of ListPendingSync until a manual
	// sync resets the counter.
	reason := fmt.Sprintf("max retries (%d) exceeded: %s", MaxSyncRetries, errMsg)
	if err := cfg.Store.RecordSyncFailure(ctx, rec.ID, retries, nil, reason); err != nil {
		log.Error().Err(err).Str("shipment_id", rec.ID.String()).Msg("retry_cron: failed to record exhaustion")
		return
	}
	log.Error().
		Str("shipment_id", rec.ID.String()).
		Int("retries", retries).
		Msg("retry_cron: max retries exceeded, moved to DLQ")

	payload, _ := json.Marshal(SyncJobPayload{ShipmentID: rec.ID.String()})
	SendToDLQ(ctx, cfg.RDB, QueueDocumentSync, JobDocumentSync, payload, reason, retries)
}
