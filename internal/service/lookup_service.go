package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/enrichment"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/infra"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	lookupCachePrefix = "consulta:"
	negativeCacheTTL  = time.Hour
)

// LookupService fronts the CNPJ and CEP registries with a redis cache.
// Misses are cached too, for a shorter time, so unknown keys do not hit the
// registry on every keystroke. Concurrent lookups of one key share a call.
type LookupService interface {
	enrichment.TaxIDLookup
	enrichment.PostalCodeLookup
}

type lookupService struct {
	taxID   enrichment.TaxIDLookup
	cep     enrichment.PostalCodeLookup
	rdb     *redis.Client
	ttl     time.Duration
	metrics *infra.Metrics
	sf      singleflight.Group
}

// NewLookupService wires the registries. rdb and m may be nil.
func NewLookupService(taxID enrichment.TaxIDLookup, cep enrichment.PostalCodeLookup, rdb *redis.Client, ttl time.Duration, m *infra.Metrics) LookupService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &lookupService{taxID: taxID, cep: cep, rdb: rdb, ttl: ttl, metrics: m}
}

type cachedLookup struct {
	Found   bool                    `json:"found"`
	Entity  *enrichment.LegalEntity `json:"entity,omitempty"`
	Address *enrichment.Address     `json:"address,omitempty"`
}

func (s *lookupService) LookupCNPJ(ctx context.Context, cnpj string) (*enrichment.LegalEntity, error) {
	cnpj = fiscal.OnlyDigits(cnpj)
	if !fiscal.IsCNPJ(cnpj) {
		return nil, fiscal.ErrInvalidTaxID
	}
	v, err := s.lookup(ctx, "cnpj", cnpj, func(ctx context.Context) (cachedLookup, error) {
		e, err := s.taxID.LookupCNPJ(ctx, cnpj)
		return cachedLookup{Found: err == nil, Entity: e}, err
	})
	if err != nil {
		return nil, err
	}
	return v.Entity, nil
}

func (s *lookupService) LookupCEP(ctx context.Context, cep string) (*enrichment.Address, error) {
	cep = fiscal.OnlyDigits(cep)
	if !fiscal.IsCEP(cep) {
		return nil, fiscal.ErrInvalidPostalCode
	}
	v, err := s.lookup(ctx, "cep", cep, func(ctx context.Context) (cachedLookup, error) {
		a, err := s.cep.LookupCEP(ctx, cep)
		return cachedLookup{Found: err == nil, Address: a}, err
	})
	if err != nil {
		return nil, err
	}
	return v.Address, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *lookupService) lookup(ctx context.Context, kind, key string, fetch func(context.Context) (cachedLookup, error)) (cachedLookup, error) {
	cacheKey := lookupCachePrefix + kind + ":" + key

	if v, ok := s.cached(ctx, cacheKey); ok {
		s.count(kind, "cache")
		if !v.Found {
			return v, enrichment.ErrNotFound
		}
		return v, nil
	}

	res, err, shared := s.sf.Do(cacheKey, func() (interface{}, error) {
		v, err := fetch(ctx)
		switch {
		case err == nil:
			s.store(ctx, cacheKey, v, s.ttl)
		case errors.Is(err, enrichment.ErrNotFound):
			s.store(ctx, cacheKey, cachedLookup{Found: false}, negativeCacheTTL)
		}
		return v, err
	})

	outcome := "ok"
	switch {
	case errors.Is(err, enrichment.ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
		log.Warn().Err(err).Str(kind, key).Msg("lookup: registry unavailable")
	}
	if !shared {
		s.count(kind, outcome)
	}
	if err != nil {
		return cachedLookup{}, err
	}
	return res.(cachedLookup), nil
}

func (s *lookupService) cached(ctx context.Context, key string) (cachedLookup, bool) {
	if s.rdb == nil {
		return cachedLookup{}, false
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debug().Err(err).Str("key", key).Msg("lookup: cache read failed")
		}
		return cachedLookup{}, false
	}
	var v cachedLookup
	if err := json.Unmarshal(raw, &v); err != nil {
		return cachedLookup{}, false
	}
	return v, true
}

func (s *lookupService) store(ctx context.Context, key string, v cachedLookup, ttl time.Duration) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("lookup: cache write failed")
	}
}

func (s *lookupService) count(kind, outcome string) {
	if s.metrics != nil {
		s.metrics.LookupsTotal.WithLabelValues(kind, outcome).Inc()
	}
}
