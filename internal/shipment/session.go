package shipment

import (
	"context"
	"sync"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/access"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/enrichment"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/google/uuid"
)

// View is what a client renders for a working record.
type View struct {
	SessionID         *uuid.UUID              `json:"sessao_id,omitempty"`
	Record            model.Shipment          `json:"carregamento"`
	Editing           bool                    `json:"edicao"`
	Locked            bool                    `json:"bloqueado"`
	Access            map[access.Section]bool `json:"acesso"`
	ShowsCarrier      bool                    `json:"exibe_transportador"`
	RecipientRequired bool                    `json:"destinatario_obrigatorio"`
	SaleCFOPs         []fiscal.SaleCFOP       `json:"cfops_venda,omitempty"`
	Notices           []enrichment.Notice     `json:"avisos,omitempty"`
}

// View renders the reducer state.
func (r *Reducer) View() View {
	v := View{
		Record:            r.rec,
		Editing:           r.editing,
		Locked:            r.Locked(),
		Access:            r.Access(),
		ShowsCarrier:      fiscal.ShowsCarrier(r.mode, r.rec.Fiscal.HasTransportDocument),
		RecipientRequired: fiscal.DefaultsFor(r.mode).RecipientRequired,
	}
	if r.mode == fiscal.ModeSale {
		v.SaleCFOPs = fiscal.SaleCFOPs
	}
	return v
}

// Lookups wires the enrichment collaborators into a session. Nil lookups
// disable the matching resolver.
type Lookups struct {
	TaxID      enrichment.TaxIDLookup
	PostalCode enrichment.PostalCodeLookup
	Debounce   time.Duration
}

// Session is one caller's editing of one record. It serialises the reducer
// against the asynchronous enrichment results.
type Session struct {
	ID    uuid.UUID
	Owner uuid.UUID

	mu        sync.Mutex
	r         *Reducer
	taxID     *enrichment.Resolver[*enrichment.LegalEntity]
	cep       *enrichment.Resolver[*enrichment.Address]
	notices   []enrichment.Notice
	lastTouch time.Time
	closed    bool
}

func NewSession(r *Reducer, owner uuid.UUID, l Lookups) *Session {
	s := &Session{ID: uuid.New(), Owner: owner, r: r, lastTouch: time.Now()}
	if l.TaxID != nil {
		s.taxID = enrichment.NewResolver(enrichment.FieldRecipientTaxID, fiscal.CNPJLength, l.Debounce,
			l.TaxID.LookupCNPJ, s.onLegalEntity)
	}
	if l.PostalCode != nil {
		// blur is the trigger, no debounce needed
		s.cep = enrichment.NewResolver(enrichment.FieldRecipientPostalCode, fiscal.CEPLength, 0,
			l.PostalCode.LookupCEP, s.onAddress)
	}
	return s
}

// Apply forwards the patch to the reducer and schedules the tax-ID lookup
// when the recipient CNPJ changed.
func (s *Session) Apply(ctx context.Context, p Patch) (View, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouch = time.Now()

	before := s.r.rec.Fiscal.Recipient
	out, err := s.r.Apply(ctx, p)
	if err != nil {
		return s.viewLocked(), out, err
	}
	after := s.r.rec.Fiscal.Recipient
	if s.taxID != nil && before.TaxID != after.TaxID {
		s.taxID.Trigger(after.TaxID)
	}
	if s.cep != nil && before.PostalCode != after.PostalCode {
		s.cep.Reset()
	}
	return s.viewLocked(), out, nil
}

// BlurPostalCode runs the postal-code lookup for the current CEP.
func (s *Session) BlurPostalCode() (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouch = time.Now()

	started := false
	if s.cep != nil && s.r.access[access.SectionFiscalRecipient] {
		started = s.cep.Trigger(s.r.rec.Fiscal.Recipient.PostalCode)
	}
	return s.viewLocked(), started
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) Submit(confirmed bool) (model.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouch = time.Now()
	return s.r.Submit(confirmed)
}

// Editing reports whether the session wraps a persisted record, and which.
func (s *Session) Editing() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.rec.ID, s.r.editing
}

// IdleSince is the time of the last caller interaction.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTouch
}

// Close cancels pending lookups; late results are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.taxID != nil {
		s.taxID.Close()
	}
	if s.cep != nil {
		s.cep.Close()
	}
}

func (s *Session) viewLocked() View {
	v := s.r.View()
	id := s.ID
	v.SessionID = &id
	v.Notices = append([]enrichment.Notice(nil), s.notices...)
	return v
}

func (s *Session) onLegalEntity(res enrichment.Result[*enrichment.LegalEntity]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !res.Current() {
		return
	}
	err := res.Err
	if err == nil && !res.Value.Complete() {
		err = enrichment.ErrIncomplete
	}
	if err != nil {
		s.notify(enrichment.NoticeFor(res.Field, err))
		return
	}
	s.clearNotices(res.Field)
	s.r.ApplyLegalEntity(res.Value)
}

func (s *Session) onAddress(res enrichment.Result[*enrichment.Address]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !res.Current() {
		return
	}
	err := res.Err
	if err == nil && !res.Value.Complete() {
		err = enrichment.ErrIncomplete
	}
	if err != nil {
		s.notify(enrichment.NoticeFor(res.Field, err))
		return
	}
	s.clearNotices(res.Field)
	s.r.ApplyAddress(res.Value)
}

func (s *Session) notify(n enrichment.Notice) {
	s.clearNotices(n.Field)
	s.notices = append(s.notices, n)
}

func (s *Session) clearNotices(field string) {
	kept := s.notices[:0]
	for _, n := range s.notices {
		if n.Field != field {
			kept = append(kept, n)
		}
	}
	s.notices = kept
}
