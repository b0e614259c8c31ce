package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/dto"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/infra"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/lifecycle"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DocumentSyncer refreshes the fiscal document of one shipment.
type DocumentSyncer interface {
	Sync(ctx context.Context, id uuid.UUID) (*model.Shipment, error)
}

// SyncQueue defers a sync to the worker pool.
type SyncQueue interface {
	EnqueueDocumentSync(ctx context.Context, id uuid.UUID) error
}

// ArtifactSource streams rendered documents from the fiscal sidecar.
type ArtifactSource interface {
	Artifact(ctx context.Context, id uuid.UUID, kind string) (*infra.Artifact, error)
}

type DocumentService interface {
	Sync(ctx context.Context, id uuid.UUID) (*dto.SyncResponse, error)
	EnqueueSync(ctx context.Context, id uuid.UUID) (*dto.SyncResponse, error)
	Artifact(ctx context.Context, id uuid.UUID, kind string) (*infra.Artifact, error)
	// Romaneio renders the loading ticket and returns the file path.
	Romaneio(ctx context.Context, id uuid.UUID) (string, error)
}

type documentService struct {
	shipments ShipmentService
	syncer    DocumentSyncer
	queue     SyncQueue
	artifacts ArtifactSource
	pdfPath   string
	metrics   *infra.Metrics
}

func NewDocumentService(
	shipments ShipmentService,
	syncer DocumentSyncer,
	queue SyncQueue,
	artifacts ArtifactSource,
	pdfPath string,
	m *infra.Metrics,
) DocumentService {
	return &documentService{
		shipments: shipments,
		syncer:    syncer,
		queue:     queue,
		artifacts: artifacts,
		pdfPath:   pdfPath,
		metrics:   m,
	}
}

// Sync calls the sidecar inline. On failure the stored status is unchanged
// and the error wraps lifecycle.ErrSyncUnavailable.
func (s *documentService) Sync(ctx context.Context, id uuid.UUID) (*dto.SyncResponse, error) {
	rec, err := s.syncer.Sync(ctx, id)
	if err != nil {
		if errors.Is(err, lifecycle.ErrSyncUnavailable) {
			s.count("unavailable")
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.count(rec.Document.Status)
	return &dto.SyncResponse{Document: rec.Document}, nil
}

func (s *documentService) EnqueueSync(ctx context.Context, id uuid.UUID) (*dto.SyncResponse, error) {
	rec, err := s.fiscalShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.queue.EnqueueDocumentSync(ctx, id); err != nil {
		return nil, fmt.Errorf("enfileirar sincronizacao: %w", err)
	}
	log.Info().Str("shipment_id", id.String()).Msg("document: sync enqueued")
	return &dto.SyncResponse{Document: rec.Document, Enqueued: true}, nil
}

func (s *documentService) Artifact(ctx context.Context, id uuid.UUID, kind string) (*infra.Artifact, error) {
	if kind != infra.ArtifactPDF && kind != infra.ArtifactXML {
		return nil, ErrUnknownArtifact
	}
	if _, err := s.fiscalShipment(ctx, id); err != nil {
		return nil, err
	}
	return s.artifacts.Artifact(ctx, id, kind)
}

func (s *documentService) Romaneio(ctx context.Context, id uuid.UUID) (string, error) {
	rec, err := s.shipments.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return infra.GenerateRomaneioPDF(rec, s.pdfPath)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *documentService) fiscalShipment(ctx context.Context, id uuid.UUID) (*model.Shipment, error) {
	rec, err := s.shipments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !fiscal.Mode(rec.Mode).IsFiscal() {
		return nil, lifecycle.ErrNotFiscal
	}
	return rec, nil
}

func (s *documentService) count(status string) {
	if s.metrics != nil {
		s.metrics.DocumentSyncs.WithLabelValues(status).Inc()
	}
}
