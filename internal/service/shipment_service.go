package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/dto"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/infra"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/repository"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/shipment"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	suggestionScan  = 200
	suggestionLimit = 20
)

type ShipmentService interface {
	Create(ctx context.Context, caller shipment.Caller, req dto.CreateShipmentRequest) (*dto.ShipmentResponse, error)
	Update(ctx context.Context, caller shipment.Caller, id uuid.UUID, req dto.UpdateShipmentRequest) (*dto.ShipmentResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Shipment, error)
	Suggestions(ctx context.Context, field, query string) (*dto.SuggestionsResponse, error)
	// Save persists a submitted record: a create when editing is false.
	Save(ctx context.Context, rec model.Shipment, editing bool) (*model.Shipment, error)
}

type shipmentService struct {
	repo     repository.ShipmentRepository
	registry RegistryService
	defaults shipment.Defaults
	metrics  *infra.Metrics
	now      func() time.Time
}

func NewShipmentService(repo repository.ShipmentRepository, registry RegistryService, defaults shipment.Defaults, m *infra.Metrics) ShipmentService {
	return &shipmentService{repo: repo, registry: registry, defaults: defaults, metrics: m, now: time.Now}
}

// Create runs the same reducer a session would: defaults, patch, submit.
func (s *shipmentService) Create(ctx context.Context, caller shipment.Caller, req dto.CreateShipmentRequest) (*dto.ShipmentResponse, error) {
	mode, err := fiscal.ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	dir, err := s.registry.Preload(ctx, req.Patch.FarmID, req.Patch.WarehouseID)
	if err != nil {
		return nil, err
	}

	r := shipment.New(mode, caller, dir, s.defaults, s.now())
	out, err := r.Apply(ctx, req.Patch)
	if err != nil {
		return nil, err
	}
	rec, err := r.Submit(req.Confirm)
	if err != nil {
		return nil, err
	}
	saved, err := s.Save(ctx, rec, false)
	if err != nil {
		return nil, err
	}
	return &dto.ShipmentResponse{Shipment: *saved, Denied: out.Denied}, nil
}

// Update loads the persisted record, applies the patch under the caller's
// access matrix and saves the result. Locked sections are reported in Denied.
func (s *shipmentService) Update(ctx context.Context, caller shipment.Caller, id uuid.UUID, req dto.UpdateShipmentRequest) (*dto.ShipmentResponse, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dir, err := s.registry.Preload(ctx, req.Patch.FarmID, req.Patch.WarehouseID)
	if err != nil {
		return nil, err
	}

	r, err := shipment.Load(*cur, caller, dir)
	if err != nil {
		return nil, err
	}
	out, err := r.Apply(ctx, req.Patch)
	if err != nil {
		return nil, err
	}
	rec, err := r.Submit(req.Confirm)
	if err != nil {
		return nil, err
	}
	saved, err := s.Save(ctx, rec, true)
	if err != nil {
		return nil, err
	}
	return &dto.ShipmentResponse{Shipment: *saved, Denied: out.Denied}, nil
}

func (s *shipmentService) Get(ctx context.Context, id uuid.UUID) (*model.Shipment, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return rec, nil
}

// Save persists rec. An edit is checked against the stored document status,
// not the caller's copy: a record authorized since it was loaded is locked.
func (s *shipmentService) Save(ctx context.Context, rec model.Shipment, editing bool) (*model.Shipment, error) {
	op := "create"
	if editing {
		op = "update"
		cur, err := s.Get(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		if fiscal.DocumentStatus(cur.Document.Status).Terminal() {
			return nil, shipment.ErrRecordLocked
		}
		if err := s.repo.Update(ctx, &rec); err != nil {
			if errors.Is(err, repository.ErrDocumentAuthorized) {
				return nil, shipment.ErrRecordLocked
			}
			return nil, fmt.Errorf("salvar carregamento: %w", notFound(err))
		}
		// the document block is owned by the sync path
		rec.Document = cur.Document
	} else {
		if err := s.repo.Create(ctx, &rec); err != nil {
			return nil, fmt.Errorf("salvar carregamento: %w", err)
		}
	}
	if s.metrics != nil {
		s.metrics.ShipmentsSaved.WithLabelValues(rec.Mode, op).Inc()
	}
	log.Info().
		Str("shipment_id", rec.ID.String()).
		Str("mode", rec.Mode).
		Str("operation", op).
		Msg("shipment: saved")
	return &rec, nil
}

// Suggestions lists distinct historical values of a free-text field. Values
// that differ only by case or accents collapse to the most recent spelling.
func (s *shipmentService) Suggestions(ctx context.Context, field, query string) (*dto.SuggestionsResponse, error) {
	column, ok := repository.SuggestionColumns[field]
	if !ok {
		return nil, ErrUnknownSuggestionField
	}
	values, err := s.repo.DistinctValues(ctx, column, suggestionScan)
	if err != nil {
		return nil, err
	}
	return &dto.SuggestionsResponse{Field: field, Values: foldSuggestions(values, query, suggestionLimit)}, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold strips diacritics and case: "Goiânia" and "GOIANIA" share a key.
func fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}

func foldSuggestions(values []string, query string, limit int) []string {
	q := fold(query)
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, limit)
	for _, v := range values {
		key := fold(v)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if q != "" && !strings.Contains(key, q) {
			continue
		}
		out = append(out, strings.TrimSpace(v))
	}
	// prefix matches first, keeping recency order otherwise
	if q != "" {
		sort.SliceStable(out, func(i, j int) bool {
			return strings.HasPrefix(fold(out[i]), q) && !strings.HasPrefix(fold(out[j]), q)
		})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
