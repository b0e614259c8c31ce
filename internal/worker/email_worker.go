package worker

// email_worker.go
// Processes email jobs from QueueEmail: mails the authorized DANFE to the
// recipient, fetching the PDF from the NF-e sidecar at send time.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/infra"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ToEmail    string `json:"to_email"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	ShipmentID string `json:"carregamento_id"`
	AccessKey  string `json:"chave_acesso"`
}

// ArtifactSource opens rendered fiscal documents; *infra.NFeClient.
type ArtifactSource interface {
	Artifact(ctx context.Context, id uuid.UUID, kind string) (*infra.Artifact, error)
}

// Sender is satisfied by *infra.Mailer.
type Sender interface {
	SendDocument(to, subject, body, fileName string, attachment []byte) error
}

type EmailWorker struct {
	mailer    Sender
	artifacts ArtifactSource
}

func NewEmailWorker(mailer Sender, artifacts ArtifactSource) *EmailWorker {
	return &EmailWorker{mailer: mailer, artifacts: artifacts}
}

// Process sends an email with the DANFE as attachment. A missing PDF still
// sends the message with the access key in the body.
func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("email_worker: invalid payload: %w", err)
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return nil
	}

	var (
		pdf      []byte
		fileName string
	)
	if id, err := uuid.Parse(payload.ShipmentID); err == nil && w.artifacts != nil {
		a, err := w.artifacts.Artifact(ctx, id, infra.ArtifactPDF)
		if err != nil {
			log.Warn().Err(err).Str("shipment_id", payload.ShipmentID).Msg("email_worker: DANFE unavailable, sending without attachment")
		} else {
			pdf, err = io.ReadAll(a.Body)
			a.Body.Close()
			if err != nil {
				return fmt.Errorf("email_worker: read DANFE: %w", err)
			}
			fileName = fmt.Sprintf("danfe_%s.pdf", payload.AccessKey)
		}
	}

	if err := w.mailer.SendDocument(payload.ToEmail, payload.Subject, payload.Body, fileName, pdf); err != nil {
		return fmt.Errorf("email_worker: send to %s: %w", payload.ToEmail, err)
	}
	log.Info().Str("to", payload.ToEmail).Str("shipment_id", payload.ShipmentID).Msg("email_worker: DANFE sent")
	return nil
}
