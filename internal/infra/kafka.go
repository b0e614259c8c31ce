package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// EventDocumentStatusChanged is the type of every event on the documents topic.
const EventDocumentStatusChanged = "carregamento.documento.status_alterado"

// DocumentEvent announces a fiscal document status transition.
type DocumentEvent struct {
	ID             string    `json:"id"`
	Type           string    `json:"tipo"`
	ShipmentID     uuid.UUID `json:"carregamento_id"`
	Mode           string    `json:"modo"`
	PreviousStatus string    `json:"status_anterior"`
	Status         string    `json:"status"`
	AccessKey      string    `json:"chave_acesso,omitempty"`
	Protocol       string    `json:"protocolo,omitempty"`
	OccurredAt     time.Time `json:"ocorrido_em"`
}

type EventPublisher interface {
	PublishDocumentEvent(ctx context.Context, ev DocumentEvent) error
	Close() error
}

// NewEventPublisher returns a Kafka publisher, or a log-only publisher when no
// brokers are configured.
func NewEventPublisher(brokers []string, topic string, m *Metrics) EventPublisher {
	if len(brokers) == 0 {
		log.Info().Msg("kafka: no brokers configured, document events will only be logged")
		return LogPublisher{}
	}
	return &KafkaPublisher{
		topic:   topic,
		metrics: m,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    1,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// KafkaPublisher keys messages by shipment id so transitions of one
// shipment stay ordered within a partition.
type KafkaPublisher struct {
	writer  *kafka.Writer
	topic   string
	metrics *Metrics
}

func (p *KafkaPublisher) PublishDocumentEvent(ctx context.Context, ev DocumentEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Type == "" {
		ev.Type = EventDocumentStatusChanged
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka: marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.ShipmentID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "ce-type", Value: []byte(ev.Type)},
			{Key: "ce-id", Value: []byte(ev.ID)},
			{Key: "ce-time", Value: []byte(ev.OccurredAt.Format(time.RFC3339))},
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: ev.OccurredAt,
	}

	err = p.writer.WriteMessages(ctx, msg)
	if p.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		p.metrics.EventsPublished.WithLabelValues(p.topic, status).Inc()
	}
	if err != nil {
		return fmt.Errorf("kafka: publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// LogPublisher writes events to the log instead of a broker.
type LogPublisher struct{}

func (LogPublisher) PublishDocumentEvent(_ context.Context, ev DocumentEvent) error {
	log.Info().
		Str("shipment_id", ev.ShipmentID.String()).
		Str("previous", ev.PreviousStatus).
		Str("status", ev.Status).
		Msg("kafka: document event (log only)")
	return nil
}

func (LogPublisher) Close() error { return nil }
