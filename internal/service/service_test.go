package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/access"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/config"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/dto"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/enrichment"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/infra"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/lifecycle"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/middleware"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/repository"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/shipment"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/weighing"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ── In-memory stubs ──────────────────────────────────────────────────────────

type memShipments struct {
	mu       sync.Mutex
	recs     map[uuid.UUID]model.Shipment
	order    []uuid.UUID
	failSave error
	// runs at the start of Update, outside the lock
	beforeUpdate func(id uuid.UUID)
}

func newMemShipments() *memShipments {
	return &memShipments{recs: map[uuid.UUID]model.Shipment{}}
}

func (m *memShipments) Create(_ context.Context, s *model.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.recs[s.ID] = *s
	m.order = append(m.order, s.ID)
	return nil
}

func (m *memShipments) FindByID(_ context.Context, id uuid.UUID) (*model.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.recs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (m *memShipments) Update(_ context.Context, s *model.Shipment) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate(s.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	cur, ok := m.recs[s.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if fiscal.DocumentStatus(cur.Document.Status).Terminal() {
		return repository.ErrDocumentAuthorized
	}
	doc := cur.Document
	cur = *s
	cur.Document = doc
	m.recs[s.ID] = cur
	return nil
}

func (m *memShipments) UpdateDocument(_ context.Context, id uuid.UUID, doc model.FiscalDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.recs[id]
	s.Document = doc
	m.recs[id] = s
	return nil
}

func (m *memShipments) ListPendingSync(context.Context, time.Time, int) ([]model.Shipment, error) {
	return nil, nil
}

func (m *memShipments) RecordSyncFailure(context.Context, uuid.UUID, int, *time.Time, string) error {
	return nil
}

// DistinctValues returns the column's values newest first.
func (m *memShipments) DistinctValues(_ context.Context, column string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		s := m.recs[m.order[i]]
		var v string
		switch column {
		case "plate":
			v = s.Plate
		case "product":
			v = s.Product
		case "destination_name":
			v = s.DestinationName
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

type memFarms struct{ farms map[uuid.UUID]model.Farm }

func (m *memFarms) Create(_ context.Context, f *model.Farm) error { m.farms[f.ID] = *f; return nil }
func (m *memFarms) FindByID(_ context.Context, id uuid.UUID) (*model.Farm, error) {
	f, ok := m.farms[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &f, nil
}
func (m *memFarms) List(context.Context) ([]model.Farm, error) {
	out := make([]model.Farm, 0, len(m.farms))
	for _, f := range m.farms {
		out = append(out, f)
	}
	return out, nil
}

type memWarehouses struct{ warehouses map[uuid.UUID]model.Warehouse }

func (m *memWarehouses) Create(_ context.Context, w *model.Warehouse) error {
	m.warehouses[w.ID] = *w
	return nil
}
func (m *memWarehouses) FindByID(_ context.Context, id uuid.UUID) (*model.Warehouse, error) {
	w, ok := m.warehouses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &w, nil
}
func (m *memWarehouses) List(context.Context) ([]model.Warehouse, error) {
	out := make([]model.Warehouse, 0, len(m.warehouses))
	for _, w := range m.warehouses {
		out = append(out, w)
	}
	return out, nil
}

var (
	farmID      = uuid.MustParse("00000000-0000-0000-0000-0000000000f1")
	warehouseID = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")

	adminCaller    = shipment.Caller{UserID: uuid.New(), Role: access.RoleAdmin}
	operatorCaller = shipment.Caller{UserID: uuid.New(), Role: access.RoleOperator, Permissions: []string{access.PermUpdate}}
)

func newRegistry() RegistryService {
	farms := &memFarms{farms: map[uuid.UUID]model.Farm{
		farmID: {ID: farmID, Name: "Fazenda Imperial", Active: true, Party: model.Party{
			TaxID: "11222333000181", LegalName: "Fazenda Imperial Ltda", StateRegistration: "131234567",
			City: "Sorriso", UF: "MT", PostalCode: "78890000",
		}},
	}}
	warehouses := &memWarehouses{warehouses: map[uuid.UUID]model.Warehouse{
		warehouseID: {ID: warehouseID, Name: "Armazem Sorriso", Email: "nfe@armazem.com.br", Active: true, Party: model.Party{
			TaxID: "11444777000161", LegalName: "Armazem Sorriso SA", StateRegistration: "139999999",
			City: "Sorriso", UF: "MT", PostalCode: "78890000",
		}, RefMoisture: decimal.NewFromInt(13), ShrinkFactor: decimal.RequireFromString("1.3"), RefImpurities: decimal.NewFromInt(1)},
	}}
	return NewRegistryService(farms, warehouses)
}

func ptr[T any](v T) *T { return &v }

func identification() shipment.Patch {
	return shipment.Patch{
		Plate:           ptr("ABC1D23"),
		DriverName:      ptr("Joao Silva"),
		FarmID:          ptr(farmID),
		WarehouseID:     ptr(warehouseID),
		Product:         ptr("Soja"),
		DestinationName: ptr("Armazem Sorriso"),
	}
}

var testDefaults = shipment.Defaults{Policy: weighing.DefaultPolicy()}

func newShipmentSvc(repo *memShipments, m *infra.Metrics) ShipmentService {
	return NewShipmentService(repo, newRegistry(), testDefaults, m)
}

// ── Shipment service ─────────────────────────────────────────────────────────

func TestShipmentService_CreateInternal(t *testing.T) {
	repo := newMemShipments()
	m := infra.NewMetrics()
	svc := newShipmentSvc(repo, m)

	resp, err := svc.Create(context.Background(), adminCaller, dto.CreateShipmentRequest{Patch: identification()})
	require.NoError(t, err)
	assert.Equal(t, string(fiscal.ModeInternal), resp.Shipment.Mode)
	assert.Equal(t, "Fazenda Imperial", resp.Shipment.FarmName)
	assert.Len(t, repo.recs, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShipmentsSaved.WithLabelValues("interno", "create")))
}

func TestShipmentService_CreateTransferNeedsConfirmation(t *testing.T) {
	repo := newMemShipments()
	svc := newShipmentSvc(repo, nil)

	req := dto.CreateShipmentRequest{Mode: "transferencia", Patch: identification()}
	_, err := svc.Create(context.Background(), adminCaller, req)
	assert.ErrorIs(t, err, shipment.ErrConfirmationRequired)
	assert.Empty(t, repo.recs)

	req.Confirm = true
	resp, err := svc.Create(context.Background(), adminCaller, req)
	require.NoError(t, err)
	assert.Equal(t, fiscal.CFOPTransferSameState, resp.Shipment.Fiscal.CFOP)
}

func TestShipmentService_CreateRejectsUnknownMode(t *testing.T) {
	svc := newShipmentSvc(newMemShipments(), nil)
	_, err := svc.Create(context.Background(), adminCaller, dto.CreateShipmentRequest{Mode: "exportacao"})
	assert.ErrorIs(t, err, fiscal.ErrUnknownMode)
}

func TestShipmentService_CreateUnknownFarm(t *testing.T) {
	svc := newShipmentSvc(newMemShipments(), nil)
	p := identification()
	p.FarmID = ptr(uuid.New())
	_, err := svc.Create(context.Background(), adminCaller, dto.CreateShipmentRequest{Patch: p})
	assert.ErrorIs(t, err, shipment.ErrUnknownFarm)
}

func TestShipmentService_CreateValidationErrors(t *testing.T) {
	svc := newShipmentSvc(newMemShipments(), nil)
	_, err := svc.Create(context.Background(), adminCaller, dto.CreateShipmentRequest{
		Patch: shipment.Patch{Plate: ptr("12")},
	})
	errs, ok := shipment.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, errs, "placa")
	assert.Contains(t, errs, "motorista")
}

func TestShipmentService_UpdateMissing(t *testing.T) {
	svc := newShipmentSvc(newMemShipments(), nil)
	_, err := svc.Update(context.Background(), adminCaller, uuid.New(), dto.UpdateShipmentRequest{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShipmentService_UpdateReportsDeniedSections(t *testing.T) {
	repo := newMemShipments()
	svc := newShipmentSvc(repo, nil)
	created, err := svc.Create(context.Background(), adminCaller, dto.CreateShipmentRequest{Patch: identification()})
	require.NoError(t, err)

	resp, err := svc.Update(context.Background(), operatorCaller, created.Shipment.ID, dto.UpdateShipmentRequest{
		Patch: shipment.Patch{
			DriverName: ptr("Maria Souza"),
			Weighing:   &shipment.WeighingPatch{Gross: ptr(decimal.NewFromInt(40000))},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Maria Souza", resp.Shipment.DriverName)
	assert.False(t, resp.Shipment.Weighing.Gross.Valid)
	assert.Contains(t, resp.Denied, "pesagem.peso_bruto")
}

func TestShipmentService_UpdateKeepsDocumentBlock(t *testing.T) {
	repo := newMemShipments()
	svc := newShipmentSvc(repo, nil)
	created, err := svc.Create(context.Background(), adminCaller, dto.CreateShipmentRequest{
		Mode: "transferencia", Confirm: true, Patch: identification(),
	})
	require.NoError(t, err)
	id := created.Shipment.ID
	require.NoError(t, repo.UpdateDocument(context.Background(), id, model.FiscalDocument{Status: string(fiscal.StatusPending), ExternalID: "ext-1"}))

	_, err = svc.Update(context.Background(), adminCaller, id, dto.UpdateShipmentRequest{
		Confirm: true,
		Patch:   shipment.Patch{Notes: ptr("lona azul")},
	})
	require.NoError(t, err)
	got, _ := repo.FindByID(context.Background(), id)
	assert.Equal(t, "ext-1", got.Document.ExternalID)
}

func authorize(t *testing.T, repo *memShipments, id uuid.UUID) {
	t.Helper()
	require.NoError(t, repo.UpdateDocument(context.Background(), id, model.FiscalDocument{
		Status:    string(fiscal.StatusAuthorized),
		AccessKey: "51260511222333000181550010000000011000000010",
		Protocol:  "151260000000001",
	}))
}

func TestShipmentService_SaveAuthorizedMidUpdateIsLocked(t *testing.T) {
	repo := newMemShipments()
	svc := newShipmentSvc(repo, nil)
	created, err := svc.Create(context.Background(), adminCaller, dto.CreateShipmentRequest{
		Mode: "transferencia", Confirm: true, Patch: identification(),
	})
	require.NoError(t, err)
	id := created.Shipment.ID

	// authorization lands between the status check and the write
	repo.beforeUpdate = func(id uuid.UUID) { authorize(t, repo, id) }
	_, err = svc.Update(context.Background(), adminCaller, id, dto.UpdateShipmentRequest{
		Confirm: true,
		Patch:   shipment.Patch{Notes: ptr("lona azul")},
	})
	assert.ErrorIs(t, err, shipment.ErrRecordLocked)

	got, _ := repo.FindByID(context.Background(), id)
	assert.Empty(t, got.Notes)
	assert.Equal(t, string(fiscal.StatusAuthorized), got.Document.Status)
	assert.Equal(t, "51260511222333000181550010000000011000000010", got.Document.AccessKey)
}

// ── Suggestions ──────────────────────────────────────────────────────────────

func TestFoldSuggestions(t *testing.T) {
	values := []string{"Goiânia", "GOIANIA", "Rio Verde", "goiania ", "Anápolis", "Senador Canedo"}

	assert.Equal(t, []string{"Goiânia", "Rio Verde", "Anápolis", "Senador Canedo"}, foldSuggestions(values, "", 20))
	assert.Equal(t, []string{"Anápolis", "Goiânia", "Senador Canedo"}, foldSuggestions(values, "AN", 20))
	assert.Equal(t, []string{"Goiânia"}, foldSuggestions(values, "goia", 20))
	assert.Len(t, foldSuggestions(values, "", 2), 2)
}

func TestShipmentService_Suggestions(t *testing.T) {
	repo := newMemShipments()
	svc := newShipmentSvc(repo, nil)
	for _, prod := range []string{"Soja", "Milho", "SOJA"} {
		p := identification()
		p.Product = ptr(prod)
		_, err := svc.Create(context.Background(), adminCaller, dto.CreateShipmentRequest{Patch: p})
		require.NoError(t, err)
	}

	resp, err := svc.Suggestions(context.Background(), "produto", "")
	require.NoError(t, err)
	assert.Equal(t, "produto", resp.Field)
	assert.Equal(t, []string{"SOJA", "Milho"}, resp.Values)

	_, err = svc.Suggestions(context.Background(), "senha", "")
	assert.ErrorIs(t, err, ErrUnknownSuggestionField)
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_PreloadUnknownWarehouse(t *testing.T) {
	_, err := newRegistry().Preload(context.Background(), ptr(farmID), ptr(uuid.New()))
	assert.ErrorIs(t, err, shipment.ErrUnknownWarehouse)
}

type brokenFarms struct {
	memFarms
	err error
}

func (b *brokenFarms) FindByID(context.Context, uuid.UUID) (*model.Farm, error) { return nil, b.err }

func TestRegistry_DatabaseFailureIsNotUnknownFarm(t *testing.T) {
	down := errors.New("pq: too many connections")
	reg := NewRegistryService(&brokenFarms{err: down}, &memWarehouses{warehouses: map[uuid.UUID]model.Warehouse{}})

	_, err := reg.Preload(context.Background(), ptr(farmID), nil)
	assert.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, shipment.ErrUnknownFarm)

	// a create surfaces the failure instead of a bad selection
	svc := NewShipmentService(newMemShipments(), reg, testDefaults, nil)
	_, err = svc.Create(context.Background(), adminCaller, dto.CreateShipmentRequest{Patch: identification()})
	assert.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, shipment.ErrUnknownFarm)

	_, err = NewRegistryService(&memFarms{farms: map[uuid.UUID]model.Farm{}}, nil).Farm(context.Background(), farmID)
	assert.ErrorIs(t, err, shipment.ErrUnknownFarm)
}

func TestRegistry_PreloadServesSelections(t *testing.T) {
	dir, err := newRegistry().Preload(context.Background(), ptr(farmID), nil)
	require.NoError(t, err)
	f, err := dir.Farm(context.Background(), farmID)
	require.NoError(t, err)
	assert.Equal(t, "Fazenda Imperial", f.Name)

	// not preloaded: falls through to the repositories
	w, err := dir.Warehouse(context.Background(), warehouseID)
	require.NoError(t, err)
	assert.Equal(t, "Armazem Sorriso", w.Name)
}

// ── Editing sessions ─────────────────────────────────────────────────────────

func newSessionSvc(repo *memShipments, idle time.Duration, m *infra.Metrics) (*sessionService, ShipmentService) {
	reg := newRegistry()
	ships := NewShipmentService(repo, reg, testDefaults, m)
	svc := NewSessionService(ships, reg, shipment.Lookups{}, testDefaults, idle, m).(*sessionService)
	return svc, ships
}

func TestSession_CreateApplySubmit(t *testing.T) {
	repo := newMemShipments()
	m := infra.NewMetrics()
	svc, _ := newSessionSvc(repo, time.Hour, m)
	ctx := context.Background()

	view, err := svc.Create(ctx, adminCaller, "transferencia")
	require.NoError(t, err)
	require.NotNil(t, view.SessionID)
	sid := *view.SessionID
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))

	_, err = svc.Submit(ctx, adminCaller, sid, true)
	_, isValidation := shipment.AsValidation(err)
	assert.True(t, isValidation, "empty transfer must not validate: %v", err)

	view, out, err := svc.Apply(ctx, adminCaller, sid, identification())
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, "Fazenda Imperial Ltda", view.Record.Fiscal.Issuer.LegalName)

	_, err = svc.Submit(ctx, adminCaller, sid, false)
	assert.ErrorIs(t, err, shipment.ErrConfirmationRequired)

	// unconfirmed submit keeps the working copy
	_, err = svc.Get(adminCaller, sid)
	require.NoError(t, err)

	rec, err := svc.Submit(ctx, adminCaller, sid, true)
	require.NoError(t, err)
	assert.Equal(t, fiscal.CFOPTransferSameState, rec.Fiscal.CFOP)
	assert.Len(t, repo.recs, 1)

	_, err = svc.Get(adminCaller, sid)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestSession_OtherUserIsForbidden(t *testing.T) {
	svc, _ := newSessionSvc(newMemShipments(), time.Hour, nil)
	view, err := svc.Create(context.Background(), adminCaller, "")
	require.NoError(t, err)

	_, err = svc.Get(operatorCaller, *view.SessionID)
	assert.ErrorIs(t, err, ErrSessionForbidden)
	assert.ErrorIs(t, svc.Discard(operatorCaller, *view.SessionID), ErrSessionForbidden)
	assert.NoError(t, svc.Discard(adminCaller, *view.SessionID))
}

func TestSession_PersistenceFailureKeepsSession(t *testing.T) {
	repo := newMemShipments()
	svc, _ := newSessionSvc(repo, time.Hour, nil)
	ctx := context.Background()
	view, err := svc.Create(ctx, adminCaller, "interno")
	require.NoError(t, err)
	sid := *view.SessionID
	_, _, err = svc.Apply(ctx, adminCaller, sid, identification())
	require.NoError(t, err)

	repo.failSave = errors.New("connection reset")
	_, err = svc.Submit(ctx, adminCaller, sid, false)
	require.Error(t, err)

	got, err := svc.Get(adminCaller, sid)
	require.NoError(t, err)
	assert.Equal(t, "ABC1D23", got.Record.Plate)

	repo.failSave = nil
	_, err = svc.Submit(ctx, adminCaller, sid, false)
	require.NoError(t, err)
}

func TestSession_OpenExistingIsEditing(t *testing.T) {
	repo := newMemShipments()
	svc, ships := newSessionSvc(repo, time.Hour, nil)
	ctx := context.Background()
	created, err := ships.Create(ctx, adminCaller, dto.CreateShipmentRequest{Patch: identification()})
	require.NoError(t, err)

	view, err := svc.Open(ctx, adminCaller, created.Shipment.ID)
	require.NoError(t, err)
	assert.True(t, view.Editing)
	assert.True(t, view.Access[access.SectionWeighing])

	_, err = svc.Open(ctx, adminCaller, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSession_SubmitAfterAuthorizationIsLocked(t *testing.T) {
	repo := newMemShipments()
	svc, ships := newSessionSvc(repo, time.Hour, nil)
	ctx := context.Background()
	created, err := ships.Create(ctx, adminCaller, dto.CreateShipmentRequest{
		Mode: "transferencia", Confirm: true, Patch: identification(),
	})
	require.NoError(t, err)
	id := created.Shipment.ID

	view, err := svc.Open(ctx, adminCaller, id)
	require.NoError(t, err)
	sid := *view.SessionID
	_, _, err = svc.Apply(ctx, adminCaller, sid, shipment.Patch{Notes: ptr("lona azul"), DriverName: ptr("Maria Souza")})
	require.NoError(t, err)

	// the NF-e is authorized while the session is still open
	authorize(t, repo, id)

	_, err = svc.Submit(ctx, adminCaller, sid, true)
	assert.ErrorIs(t, err, shipment.ErrRecordLocked)

	got, _ := repo.FindByID(ctx, id)
	assert.Equal(t, "Joao Silva", got.DriverName)
	assert.Empty(t, got.Notes)
	assert.Equal(t, string(fiscal.StatusAuthorized), got.Document.Status)
	assert.Equal(t, "151260000000001", got.Document.Protocol)

	_, err = svc.Get(adminCaller, sid)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSession_PurgeDropsIdleSessions(t *testing.T) {
	svc, _ := newSessionSvc(newMemShipments(), time.Minute, nil)
	view, err := svc.Create(context.Background(), adminCaller, "")
	require.NoError(t, err)

	assert.Equal(t, 0, svc.purge(time.Now()))
	assert.Equal(t, 1, svc.purge(time.Now().Add(2*time.Minute)))
	_, err = svc.Get(adminCaller, *view.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// ── Document service ─────────────────────────────────────────────────────────

type stubSyncer struct {
	rec *model.Shipment
	err error
}

func (s *stubSyncer) Sync(context.Context, uuid.UUID) (*model.Shipment, error) { return s.rec, s.err }

type stubQueue struct{ ids []uuid.UUID }

func (q *stubQueue) EnqueueDocumentSync(_ context.Context, id uuid.UUID) error {
	q.ids = append(q.ids, id)
	return nil
}

type stubArtifacts struct{ calls int }

func (a *stubArtifacts) Artifact(context.Context, uuid.UUID, string) (*infra.Artifact, error) {
	a.calls++
	return nil, infra.ErrArtifactNotFound
}

func seeded(t *testing.T, repo *memShipments, mode string) uuid.UUID {
	t.Helper()
	svc := newShipmentSvc(repo, nil)
	resp, err := svc.Create(context.Background(), adminCaller, dto.CreateShipmentRequest{
		Mode: mode, Confirm: true, Patch: identification(),
	})
	require.NoError(t, err)
	return resp.Shipment.ID
}

func TestDocumentService_SyncUnavailableIsCounted(t *testing.T) {
	m := infra.NewMetrics()
	syncer := &stubSyncer{err: lifecycle.ErrSyncUnavailable}
	svc := NewDocumentService(newShipmentSvc(newMemShipments(), nil), syncer, &stubQueue{}, &stubArtifacts{}, t.TempDir(), m)

	_, err := svc.Sync(context.Background(), uuid.New())
	assert.ErrorIs(t, err, lifecycle.ErrSyncUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentSyncs.WithLabelValues("unavailable")))

	syncer.err = gorm.ErrRecordNotFound
	_, err = svc.Sync(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentService_SyncReturnsDocument(t *testing.T) {
	rec := &model.Shipment{ID: uuid.New(), Document: model.FiscalDocument{Status: string(fiscal.StatusAuthorized), AccessKey: "5126"}}
	svc := NewDocumentService(newShipmentSvc(newMemShipments(), nil), &stubSyncer{rec: rec}, &stubQueue{}, &stubArtifacts{}, t.TempDir(), nil)

	resp, err := svc.Sync(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "5126", resp.Document.AccessKey)
	assert.False(t, resp.Enqueued)
}

func TestDocumentService_EnqueueOnlyFiscal(t *testing.T) {
	repo := newMemShipments()
	internal := seeded(t, repo, "interno")
	transfer := seeded(t, repo, "transferencia")
	q := &stubQueue{}
	svc := NewDocumentService(newShipmentSvc(repo, nil), &stubSyncer{}, q, &stubArtifacts{}, t.TempDir(), nil)

	_, err := svc.EnqueueSync(context.Background(), internal)
	assert.ErrorIs(t, err, lifecycle.ErrNotFiscal)

	resp, err := svc.EnqueueSync(context.Background(), transfer)
	require.NoError(t, err)
	assert.True(t, resp.Enqueued)
	assert.Equal(t, []uuid.UUID{transfer}, q.ids)
}

func TestDocumentService_Artifact(t *testing.T) {
	repo := newMemShipments()
	internal := seeded(t, repo, "interno")
	transfer := seeded(t, repo, "transferencia")
	arts := &stubArtifacts{}
	svc := NewDocumentService(newShipmentSvc(repo, nil), &stubSyncer{}, &stubQueue{}, arts, t.TempDir(), nil)

	_, err := svc.Artifact(context.Background(), transfer, "docx")
	assert.ErrorIs(t, err, ErrUnknownArtifact)
	_, err = svc.Artifact(context.Background(), internal, infra.ArtifactPDF)
	assert.ErrorIs(t, err, lifecycle.ErrNotFiscal)
	_, err = svc.Artifact(context.Background(), uuid.New(), infra.ArtifactPDF)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Artifact(context.Background(), transfer, infra.ArtifactXML)
	assert.ErrorIs(t, err, infra.ErrArtifactNotFound)
	assert.Equal(t, 1, arts.calls)
}

func TestDocumentService_Romaneio(t *testing.T) {
	repo := newMemShipments()
	id := seeded(t, repo, "interno")
	dir := t.TempDir()
	svc := NewDocumentService(newShipmentSvc(repo, nil), &stubSyncer{}, &stubQueue{}, &stubArtifacts{}, dir, nil)

	path, err := svc.Romaneio(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, dir))
	assert.True(t, strings.HasSuffix(path, ".pdf"))
}

// ── Lookups ──────────────────────────────────────────────────────────────────

type countingRegistry struct {
	mu    sync.Mutex
	calls int
}

func (c *countingRegistry) LookupCNPJ(_ context.Context, cnpj string) (*enrichment.LegalEntity, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if cnpj == "00000000000000" {
		return nil, enrichment.ErrNotFound
	}
	return &enrichment.LegalEntity{TaxID: cnpj, LegalName: "Cooperativa Agro"}, nil
}

func (c *countingRegistry) LookupCEP(_ context.Context, cep string) (*enrichment.Address, error) {
	return &enrichment.Address{PostalCode: cep, City: "Sorriso", UF: "MT"}, nil
}

func TestLookupService_NormalizesAndValidates(t *testing.T) {
	reg := &countingRegistry{}
	m := infra.NewMetrics()
	svc := NewLookupService(reg, reg, nil, time.Hour, m)

	e, err := svc.LookupCNPJ(context.Background(), "11.222.333/0001-81")
	require.NoError(t, err)
	assert.Equal(t, "11222333000181", e.TaxID)

	_, err = svc.LookupCNPJ(context.Background(), "1122")
	assert.ErrorIs(t, err, fiscal.ErrInvalidTaxID)
	_, err = svc.LookupCEP(context.Background(), "7889")
	assert.ErrorIs(t, err, fiscal.ErrInvalidPostalCode)

	_, err = svc.LookupCNPJ(context.Background(), "00.000.000/0000-00")
	assert.ErrorIs(t, err, enrichment.ErrNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("cnpj", "not_found")))

	a, err := svc.LookupCEP(context.Background(), "78890-000")
	require.NoError(t, err)
	assert.Equal(t, "78890000", a.PostalCode)
}

// ── Auth ─────────────────────────────────────────────────────────────────────

type memUsers struct{ users []model.User }

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.users = append(m.users, *u)
	return nil
}
func (m *memUsers) FindByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Active && (u.Username == username || (u.Email != nil && strings.EqualFold(*u.Email, username))) {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *memUsers) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func newAuthSvc(t *testing.T) (AuthService, *memUsers, *config.Config) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("segredo123"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &memUsers{users: []model.User{{
		ID: uuid.New(), Username: "balanca", Name: "Operador Balanca", PasswordHash: string(hash),
		Role: access.RoleWeigher, Permissions: []string{access.PermManageWeight}, Active: true,
	}}}
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 1, JWTRefreshHours: 24}
	return NewAuthService(users, cfg), users, cfg
}

func TestAuth_LoginIssuesClaims(t *testing.T) {
	svc, _, cfg := newAuthSvc(t)
	resp, err := svc.Login(context.Background(), dto.LoginRequest{Username: "balanca", Password: "segredo123"})
	require.NoError(t, err)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.Equal(t, access.RoleWeigher, resp.User.Role)

	claims, err := middleware.ParseToken(resp.AccessToken, cfg.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, middleware.TokenAccess, claims.TokenType)
	assert.Equal(t, []string{access.PermManageWeight}, claims.Permissions)
}

func TestAuth_WrongPassword(t *testing.T) {
	svc, _, _ := newAuthSvc(t)
	_, err := svc.Login(context.Background(), dto.LoginRequest{Username: "balanca", Password: "errada"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), dto.LoginRequest{Username: "ninguem", Password: "segredo123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuth_RefreshNeedsRefreshToken(t *testing.T) {
	svc, users, _ := newAuthSvc(t)
	resp, err := svc.Login(context.Background(), dto.LoginRequest{Username: "balanca", Password: "segredo123"})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), resp.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	next, err := svc.Refresh(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)

	users.users[0].Active = false
	_, err = svc.Refresh(context.Background(), resp.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
