package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/infra"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueDocumentSync = "jobs:documento_sync"
	QueueEmail        = "jobs:email"

	JobDocumentSync = "documento_sync"
	JobEmail        = "email"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JobHandler processes one job payload. A returned error is logged and
// counted; retries are the handler's own business.
type JobHandler func(ctx context.Context, payload json.RawMessage) error

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueDocumentSync pushes a fiscal document refresh for one shipment.
func (d *Dispatcher) EnqueueDocumentSync(ctx context.Context, id uuid.UUID) error {
	return d.enqueue(ctx, QueueDocumentSync, JobDocumentSync, SyncJobPayload{ShipmentID: id.String()})
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes both queues and routes jobs by type.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]JobHandler
	metrics  *infra.Metrics
}

func NewPool(rdb *redis.Client, handlers map[string]JobHandler, m *infra.Metrics) *Pool {
	return &Pool{rdb: rdb, handlers: handlers, metrics: m}
}

// Start launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, zero CPU when idle.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	queues := []string{QueueDocumentSync, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], []byte(result[1]))
		}
	}
}

func (p *Pool) process(ctx context.Context, queue string, raw []byte) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}
	h, ok := p.handlers[job.Type]
	if !ok {
		log.Error().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type")
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, "unknown job type", 0)
		return
	}

	outcome := "ok"
	if err := h(ctx, job.Payload); err != nil {
		outcome = "error"
		log.Error().Err(err).Str("type", job.Type).Str("queue", queue).Msg("job failed")
	}
	if p.metrics != nil {
		p.metrics.JobsProcessed.WithLabelValues(job.Type, outcome).Inc()
	}
}
