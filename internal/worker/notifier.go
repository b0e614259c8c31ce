package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/infra"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/rs/zerolog/log"
)

// EmailQueue is satisfied by *Dispatcher.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload EmailJobPayload) error
}

// Notifier reacts to persisted document transitions: every transition is
// published as an event, and an authorization mails the DANFE to the
// recipient when an address is on file. It implements lifecycle.Listener.
type Notifier struct {
	events infra.EventPublisher
	emails EmailQueue
}

func NewNotifier(events infra.EventPublisher, emails EmailQueue) *Notifier {
	return &Notifier{events: events, emails: emails}
}

func (n *Notifier) DocumentChanged(ctx context.Context, s *model.Shipment, previous fiscal.DocumentStatus) {
	ev := infra.DocumentEvent{
		Type:           infra.EventDocumentStatusChanged,
		ShipmentID:     s.ID,
		Mode:           s.Mode,
		PreviousStatus: string(previous),
		Status:         s.Document.Status,
		AccessKey:      s.Document.AccessKey,
		Protocol:       s.Document.Protocol,
		OccurredAt:     time.Now().UTC(),
	}
	if n.events != nil {
		if err := n.events.PublishDocumentEvent(ctx, ev); err != nil {
			log.Warn().Err(err).Str("shipment_id", s.ID.String()).Msg("notifier: publish failed")
		}
	}

	if fiscal.DocumentStatus(s.Document.Status) != fiscal.StatusAuthorized || n.emails == nil {
		return
	}
	to := s.Fiscal.Recipient.Email
	if to == "" {
		return
	}
	job := EmailJobPayload{
		ToEmail:    to,
		Subject:    fmt.Sprintf("NF-e autorizada - %s", s.Document.AccessKey),
		Body:       danfeBody(s),
		ShipmentID: s.ID.String(),
		AccessKey:  s.Document.AccessKey,
	}
	if err := n.emails.EnqueueEmail(ctx, job); err != nil {
		log.Warn().Err(err).Str("email", to).Msg("notifier: failed to enqueue email")
		return
	}
	log.Info().Str("email", to).Str("shipment_id", s.ID.String()).Msg("notifier: email job enqueued")
}

func danfeBody(s *model.Shipment) string {
	body := fmt.Sprintf("Segue em anexo o DANFE da NF-e referente ao carregamento de %s.\n", s.Product)
	body += fmt.Sprintf("Chave de acesso: %s\nProtocolo: %s\n", s.Document.AccessKey, s.Document.Protocol)
	if s.Weighing.FinalWeight.Valid {
		body += fmt.Sprintf("Peso final: %s kg\n", s.Weighing.FinalWeight.Decimal.StringFixed(2))
	}
	return body
}
