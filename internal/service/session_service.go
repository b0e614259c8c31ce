package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/infra"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/shipment"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionService keeps the server-side working copies of records being
// edited. Sessions live in memory and expire after an idle period.
type SessionService interface {
	Create(ctx context.Context, caller shipment.Caller, mode string) (shipment.View, error)
	Open(ctx context.Context, caller shipment.Caller, id uuid.UUID) (shipment.View, error)
	Get(caller shipment.Caller, sid uuid.UUID) (shipment.View, error)
	Apply(ctx context.Context, caller shipment.Caller, sid uuid.UUID, p shipment.Patch) (shipment.View, shipment.Outcome, error)
	BlurPostalCode(caller shipment.Caller, sid uuid.UUID) (shipment.View, bool, error)
	// Submit validates and persists the record; the session is closed only
	// when the save succeeds.
	Submit(ctx context.Context, caller shipment.Caller, sid uuid.UUID, confirmed bool) (*model.Shipment, error)
	Discard(caller shipment.Caller, sid uuid.UUID) error
	// StartPurger closes idle sessions until ctx is done.
	StartPurger(ctx context.Context, every time.Duration)
}

type sessionService struct {
	shipments ShipmentService
	registry  RegistryService
	lookups   shipment.Lookups
	defaults  shipment.Defaults
	idle      time.Duration
	metrics   *infra.Metrics

	mu       sync.Mutex
	sessions map[uuid.UUID]*shipment.Session
}

func NewSessionService(
	shipments ShipmentService,
	registry RegistryService,
	lookups shipment.Lookups,
	defaults shipment.Defaults,
	idle time.Duration,
	m *infra.Metrics,
) SessionService {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &sessionService{
		shipments: shipments,
		registry:  registry,
		lookups:   lookups,
		defaults:  defaults,
		idle:      idle,
		metrics:   m,
		sessions:  make(map[uuid.UUID]*shipment.Session),
	}
}

func (s *sessionService) Create(_ context.Context, caller shipment.Caller, mode string) (shipment.View, error) {
	m, err := fiscal.ParseMode(mode)
	if err != nil {
		return shipment.View{}, err
	}
	r := shipment.New(m, caller, s.registry, s.defaults, time.Now())
	return s.register(shipment.NewSession(r, caller.UserID, s.lookups)), nil
}

func (s *sessionService) Open(ctx context.Context, caller shipment.Caller, id uuid.UUID) (shipment.View, error) {
	rec, err := s.shipments.Get(ctx, id)
	if err != nil {
		return shipment.View{}, err
	}
	r, err := shipment.Load(*rec, caller, s.registry)
	if err != nil {
		return shipment.View{}, err
	}
	return s.register(shipment.NewSession(r, caller.UserID, s.lookups)), nil
}

func (s *sessionService) Get(caller shipment.Caller, sid uuid.UUID) (shipment.View, error) {
	sess, err := s.session(caller, sid)
	if err != nil {
		return shipment.View{}, err
	}
	return sess.Snapshot(), nil
}

func (s *sessionService) Apply(ctx context.Context, caller shipment.Caller, sid uuid.UUID, p shipment.Patch) (shipment.View, shipment.Outcome, error) {
	sess, err := s.session(caller, sid)
	if err != nil {
		return shipment.View{}, shipment.Outcome{}, err
	}
	return sess.Apply(ctx, p)
}

func (s *sessionService) BlurPostalCode(caller shipment.Caller, sid uuid.UUID) (shipment.View, bool, error) {
	sess, err := s.session(caller, sid)
	if err != nil {
		return shipment.View{}, false, err
	}
	v, started := sess.BlurPostalCode()
	return v, started, nil
}

func (s *sessionService) Submit(ctx context.Context, caller shipment.Caller, sid uuid.UUID, confirmed bool) (*model.Shipment, error) {
	sess, err := s.session(caller, sid)
	if err != nil {
		return nil, err
	}
	rec, err := sess.Submit(confirmed)
	if err != nil {
		return nil, err
	}
	_, editing := sess.Editing()
	saved, err := s.shipments.Save(ctx, rec, editing)
	if errors.Is(err, shipment.ErrRecordLocked) {
		// authorized while the session was open; nothing left to edit
		s.drop(sid)
		return nil, err
	}
	if err != nil {
		// the working copy survives so the caller can retry
		return nil, err
	}
	s.drop(sid)
	return saved, nil
}

func (s *sessionService) Discard(caller shipment.Caller, sid uuid.UUID) error {
	if _, err := s.session(caller, sid); err != nil {
		return err
	}
	s.drop(sid)
	return nil
}

func (s *sessionService) StartPurger(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.closeAll()
				return
			case now := <-ticker.C:
				s.purge(now)
			}
		}
	}()
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *sessionService) register(sess *shipment.Session) shipment.View {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	s.gauge(n)
	return sess.Snapshot()
}

func (s *sessionService) session(caller shipment.Caller, sid uuid.UUID) (*shipment.Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sid]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.Owner != caller.UserID {
		return nil, ErrSessionForbidden
	}
	return sess, nil
}

func (s *sessionService) drop(sid uuid.UUID) {
	s.mu.Lock()
	sess, ok := s.sessions[sid]
	delete(s.sessions, sid)
	n := len(s.sessions)
	s.mu.Unlock()
	if ok {
		sess.Close()
	}
	s.gauge(n)
}

func (s *sessionService) purge(now time.Time) int {
	var expired []*shipment.Session
	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.IdleSince()) >= s.idle {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
		log.Debug().Str("session_id", sess.ID.String()).Msg("session: expired")
	}
	s.gauge(n)
	return len(expired)
}

func (s *sessionService) closeAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[uuid.UUID]*shipment.Session)
	s.mu.Unlock()
	for _, sess := range all {
		sess.Close()
	}
	s.gauge(0)
}

func (s *sessionService) gauge(n int) {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(n))
	}
}
