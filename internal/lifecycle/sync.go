// Package lifecycle refreshes the external NF-e of a persisted shipment.
// A sync either succeeds and writes the new document block back, or fails
// without touching what is stored.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSyncUnavailable wraps every failure of the external call; callers
	// may retry.
	ErrSyncUnavailable = errors.New("sincronizacao do documento fiscal indisponivel")
	ErrNotFiscal       = errors.New("carregamento interno nao possui documento fiscal")
)

// Result is what the fiscal system reports for one shipment.
type Result struct {
	ExternalID string
	Status     string
	AccessKey  string
	Protocol   string
	PDFURL     string
	XMLURL     string
	Message    string
}

// FiscalClient talks to the NF-e issuer.
type FiscalClient interface {
	Sync(ctx context.Context, s *model.Shipment) (*Result, error)
}

// Store is the slice of the shipment repository the syncer needs.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Shipment, error)
	UpdateDocument(ctx context.Context, id uuid.UUID, doc model.FiscalDocument) error
}

// Listener is told about status transitions after they are persisted.
type Listener interface {
	DocumentChanged(ctx context.Context, s *model.Shipment, previous fiscal.DocumentStatus)
}

type Syncer struct {
	store     Store
	client    FiscalClient
	listeners []Listener
	now       func() time.Time
}

func NewSyncer(store Store, client FiscalClient, listeners ...Listener) *Syncer {
	return &Syncer{store: store, client: client, listeners: listeners, now: time.Now}
}

// Sync is idempotent: calling it again only refreshes the document block.
// An authorized status is never replaced.
func (s *Syncer) Sync(ctx context.Context, id uuid.UUID) (*model.Shipment, error) {
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !fiscal.Mode(rec.Mode).IsFiscal() {
		return nil, ErrNotFiscal
	}

	res, err := s.client.Sync(ctx, rec)
	if err != nil {
		log.Warn().Err(err).Str("shipment_id", id.String()).Msg("lifecycle: sync falhou")
		return nil, fmt.Errorf("%w: %v", ErrSyncUnavailable, err)
	}

	prev := fiscal.DocumentStatus(rec.Document.Status)
	doc := Merge(rec.Document, res, s.now())
	if err := s.store.UpdateDocument(ctx, id, doc); err != nil {
		return nil, fmt.Errorf("lifecycle: persist document: %w", err)
	}
	rec.Document = doc

	next := fiscal.DocumentStatus(doc.Status)
	log.Info().
		Str("shipment_id", id.String()).
		Str("status", string(next)).
		Str("previous", string(prev)).
		Msg("lifecycle: documento sincronizado")

	if next != prev {
		for _, l := range s.listeners {
			l.DocumentChanged(ctx, rec, prev)
		}
	}
	return rec, nil
}

// Merge folds a sync result into the stored block. Empty result fields keep
// the stored values, and an authorized document keeps its key and protocol.
func Merge(cur model.FiscalDocument, res *Result, at time.Time) model.FiscalDocument {
	prev := fiscal.DocumentStatus(cur.Status)
	next := fiscal.Advance(prev, fiscal.ParseExternalStatus(res.Status))

	doc := cur
	doc.Status = string(next)
	keep := func(dst *string, v string) {
		if v == "" {
			return
		}
		if prev.Terminal() && *dst != "" {
			return
		}
		*dst = v
	}
	keep(&doc.ExternalID, res.ExternalID)
	keep(&doc.AccessKey, res.AccessKey)
	keep(&doc.Protocol, res.Protocol)
	if res.PDFURL != "" {
		doc.PDFURL = res.PDFURL
	}
	if res.XMLURL != "" {
		doc.XMLURL = res.XMLURL
	}

	t := at
	doc.LastSyncAt = &t
	doc.RetryCount = 0
	doc.NextRetryAt = nil
	doc.LastError = nil
	if next == fiscal.StatusError && res.Message != "" {
		msg := res.Message
		doc.LastError = &msg
	}
	return doc
}
