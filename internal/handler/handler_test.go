package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/access"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/dto"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/enrichment"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/infra"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/lifecycle"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/middleware"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/service"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/shipment"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

var callerID = uuid.New()

// withClaims stands in for JWTAuth.
func withClaims(role string, perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &middleware.JWTClaims{
			UserID: callerID.String(), Username: "teste", Role: role, Permissions: perms,
			TokenType: middleware.TokenAccess,
		})
		c.Next()
	}
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// ── Error mapping ────────────────────────────────────────────────────────────

func TestRespondError_Statuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrSessionNotFound, http.StatusNotFound},
		{enrichment.ErrNotFound, http.StatusNotFound},
		{service.ErrSessionForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: %q", fiscal.ErrUnknownMode, "x"), http.StatusBadRequest},
		{fiscal.ErrInvalidTaxID, http.StatusBadRequest},
		{fmt.Errorf("%w: boom", shipment.ErrUnknownFarm), http.StatusUnprocessableEntity},
		{shipment.ValidationErrors{"placa": "campo obrigatorio"}, http.StatusUnprocessableEntity},
		{shipment.ErrConfirmationRequired, http.StatusConflict},
		{lifecycle.ErrNotFiscal, http.StatusConflict},
		{shipment.ErrRecordLocked, http.StatusLocked},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("%w: timeout", lifecycle.ErrSyncUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("brasilapi: %w", infra.ErrCircuitOpen), http.StatusServiceUnavailable},
		{errors.New("pq: relation does not exist"), http.StatusInternalServerError},
		{fmt.Errorf("shipment: resolve farm: %w", errors.New("consultar fazenda: pq: too many connections")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			respondError(c, tc.err)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRespondError_HidesInternals(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondError(c, errors.New("pq: password authentication failed"))
	assert.NotContains(t, w.Body.String(), "pq:")
}

func TestRespondError_ValidationFields(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondError(c, shipment.ValidationErrors{"fiscal.cfop": "campo obrigatorio"})

	body := decode(t, w)
	fields := body["fields"].(map[string]interface{})
	assert.Equal(t, "campo obrigatorio", fields["fiscal.cfop"])
}

// ── Shipments ────────────────────────────────────────────────────────────────

type stubShipments struct {
	err      error
	lastCall shipment.Caller
}

func (s *stubShipments) Create(_ context.Context, c shipment.Caller, req dto.CreateShipmentRequest) (*dto.ShipmentResponse, error) {
	s.lastCall = c
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ShipmentResponse{Shipment: model.Shipment{ID: uuid.New(), Mode: req.Mode}}, nil
}

func (s *stubShipments) Update(_ context.Context, c shipment.Caller, id uuid.UUID, _ dto.UpdateShipmentRequest) (*dto.ShipmentResponse, error) {
	s.lastCall = c
	if s.err != nil {
		return nil, s.err
	}
	return &dto.ShipmentResponse{Shipment: model.Shipment{ID: id}, Denied: []string{"pesagem.peso_bruto"}}, nil
}

func (s *stubShipments) Get(_ context.Context, id uuid.UUID) (*model.Shipment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Shipment{ID: id}, nil
}

func (s *stubShipments) Suggestions(_ context.Context, field, q string) (*dto.SuggestionsResponse, error) {
	if field != "produto" {
		return nil, service.ErrUnknownSuggestionField
	}
	return &dto.SuggestionsResponse{Field: field, Values: []string{"Soja " + q}}, nil
}

func (s *stubShipments) Save(context.Context, model.Shipment, bool) (*model.Shipment, error) {
	return nil, errors.New("unused")
}

func shipmentsRouter(svc service.ShipmentService) *gin.Engine {
	h := NewShipmentsHandler(svc)
	r := gin.New()
	g := r.Group("/v1/carregamentos", withClaims(access.RoleOperator, access.PermUpdate))
	g.POST("", h.Create)
	g.GET("/sugestoes/:campo", h.Suggestions)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	return r
}

func TestShipments_CreatePassesCaller(t *testing.T) {
	svc := &stubShipments{}
	w := do(shipmentsRouter(svc), http.MethodPost, "/v1/carregamentos", `{"modo":"transferencia","confirmar":true,"dados":{"placa":"ABC1D23"}}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, callerID, svc.lastCall.UserID)
	assert.Equal(t, []string{access.PermUpdate}, svc.lastCall.Permissions)
}

func TestShipments_CreateRejectsUnknownMode(t *testing.T) {
	w := do(shipmentsRouter(&stubShipments{}), http.MethodPost, "/v1/carregamentos", `{"modo":"exportacao"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	fields := decode(t, w)["fields"].(map[string]interface{})
	assert.Equal(t, "oneof", fields["modo"])
}

func TestShipments_CreateBadJSON(t *testing.T) {
	w := do(shipmentsRouter(&stubShipments{}), http.MethodPost, "/v1/carregamentos", `{"modo":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShipments_ConfirmationRequired(t *testing.T) {
	w := do(shipmentsRouter(&stubShipments{err: shipment.ErrConfirmationRequired}), http.MethodPost, "/v1/carregamentos", `{"modo":"venda"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestShipments_UpdateReturnsDenied(t *testing.T) {
	id := uuid.New()
	w := do(shipmentsRouter(&stubShipments{}), http.MethodPut, "/v1/carregamentos/"+id.String(), `{"dados":{"pesagem":{"peso_bruto":"40000"}}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"pesagem.peso_bruto"}, decode(t, w)["negados"])
}

func TestShipments_GetInvalidID(t *testing.T) {
	w := do(shipmentsRouter(&stubShipments{}), http.MethodGet, "/v1/carregamentos/nao-e-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShipments_Suggestions(t *testing.T) {
	r := shipmentsRouter(&stubShipments{})
	w := do(r, http.MethodGet, "/v1/carregamentos/sugestoes/produto?q=rr", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"Soja rr"}, decode(t, w)["valores"])

	w = do(r, http.MethodGet, "/v1/carregamentos/sugestoes/senha", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ── Sessions ─────────────────────────────────────────────────────────────────

type stubSessions struct {
	owner uuid.UUID
	sid   uuid.UUID
}

func (s *stubSessions) check(c shipment.Caller, sid uuid.UUID) error {
	if sid != s.sid {
		return service.ErrSessionNotFound
	}
	if c.UserID != s.owner {
		return service.ErrSessionForbidden
	}
	return nil
}

func (s *stubSessions) view() shipment.View {
	id := s.sid
	return shipment.View{SessionID: &id}
}

func (s *stubSessions) Create(context.Context, shipment.Caller, string) (shipment.View, error) {
	return s.view(), nil
}
func (s *stubSessions) Open(context.Context, shipment.Caller, uuid.UUID) (shipment.View, error) {
	return shipment.View{}, service.ErrNotFound
}
func (s *stubSessions) Get(c shipment.Caller, sid uuid.UUID) (shipment.View, error) {
	return s.view(), s.check(c, sid)
}
func (s *stubSessions) Apply(_ context.Context, c shipment.Caller, sid uuid.UUID, p shipment.Patch) (shipment.View, shipment.Outcome, error) {
	if err := s.check(c, sid); err != nil {
		return shipment.View{}, shipment.Outcome{}, err
	}
	return s.view(), shipment.Outcome{Changed: p.Plate != nil}, nil
}
func (s *stubSessions) BlurPostalCode(c shipment.Caller, sid uuid.UUID) (shipment.View, bool, error) {
	return s.view(), true, s.check(c, sid)
}
func (s *stubSessions) Submit(_ context.Context, c shipment.Caller, sid uuid.UUID, confirmed bool) (*model.Shipment, error) {
	if err := s.check(c, sid); err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, shipment.ErrConfirmationRequired
	}
	return &model.Shipment{ID: uuid.New()}, nil
}
func (s *stubSessions) Discard(c shipment.Caller, sid uuid.UUID) error { return s.check(c, sid) }
func (s *stubSessions) StartPurger(context.Context, time.Duration)   {}

func sessionsRouter(svc service.SessionService) *gin.Engine {
	h := NewSessionsHandler(svc)
	r := gin.New()
	g := r.Group("/v1/carregamentos", withClaims(access.RoleAdmin))
	g.POST("/sessoes", h.Create)
	g.GET("/sessoes/:sid", h.Get)
	g.PATCH("/sessoes/:sid", h.Apply)
	g.DELETE("/sessoes/:sid", h.Discard)
	g.POST("/sessoes/:sid/cep/blur", h.BlurPostalCode)
	g.POST("/sessoes/:sid/enviar", h.Submit)
	g.POST("/:id/sessoes", h.Open)
	return r
}

func TestSessions_Flow(t *testing.T) {
	svc := &stubSessions{owner: callerID, sid: uuid.New()}
	r := sessionsRouter(svc)
	base := "/v1/carregamentos/sessoes/" + svc.sid.String()

	w := do(r, http.MethodPost, "/v1/carregamentos/sessoes", `{"modo":"venda"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, svc.sid.String(), decode(t, w)["sessao_id"])

	w = do(r, http.MethodPatch, base, `{"placa":"ABC1D23"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["alterado"])

	w = do(r, http.MethodPost, base+"/cep/blur", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["consulta_iniciada"])

	w = do(r, http.MethodPost, base+"/enviar", `{"confirmar":false}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(r, http.MethodPost, base+"/enviar", `{"confirmar":true}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSessions_OwnershipAndExpiry(t *testing.T) {
	svc := &stubSessions{owner: uuid.New(), sid: uuid.New()}
	r := sessionsRouter(svc)

	w := do(r, http.MethodGet, "/v1/carregamentos/sessoes/"+svc.sid.String(), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(r, http.MethodGet, "/v1/carregamentos/sessoes/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodPost, "/v1/carregamentos/"+uuid.NewString()+"/sessoes", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ── Documents ────────────────────────────────────────────────────────────────

type stubDocuments struct {
	syncErr  error
	enqueued int
	romaneio string
}

func (s *stubDocuments) Sync(context.Context, uuid.UUID) (*dto.SyncResponse, error) {
	if s.syncErr != nil {
		return nil, s.syncErr
	}
	return &dto.SyncResponse{Document: model.FiscalDocument{Status: string(fiscal.StatusAuthorized)}}, nil
}
func (s *stubDocuments) EnqueueSync(context.Context, uuid.UUID) (*dto.SyncResponse, error) {
	s.enqueued++
	return &dto.SyncResponse{Enqueued: true}, nil
}
func (s *stubDocuments) Artifact(_ context.Context, _ uuid.UUID, kind string) (*infra.Artifact, error) {
	if kind != infra.ArtifactPDF {
		return nil, infra.ErrArtifactNotFound
	}
	return &infra.Artifact{ContentType: "application/pdf", Body: io.NopCloser(bytes.NewReader([]byte("%PDF-1.4")))}, nil
}
func (s *stubDocuments) Romaneio(context.Context, uuid.UUID) (string, error) {
	return s.romaneio, nil
}

func documentsRouter(svc service.DocumentService) *gin.Engine {
	h := NewDocumentsHandler(svc)
	r := gin.New()
	g := r.Group("/v1/carregamentos", withClaims(access.RoleManager))
	g.POST("/:id/documento/sincronizar", h.Sync)
	g.GET("/:id/documento/:tipo", h.Artifact)
	g.GET("/:id/romaneio", h.Romaneio)
	return r
}

func TestDocuments_Sync(t *testing.T) {
	svc := &stubDocuments{}
	r := documentsRouter(svc)
	path := "/v1/carregamentos/" + uuid.NewString() + "/documento/sincronizar"

	w := do(r, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, path+"?async=true", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, svc.enqueued)

	svc.syncErr = fmt.Errorf("%w: connection refused", lifecycle.ErrSyncUnavailable)
	w = do(r, http.MethodPost, path, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestDocuments_ArtifactStreams(t *testing.T) {
	r := documentsRouter(&stubDocuments{})
	id := uuid.NewString()

	w := do(r, http.MethodGet, "/v1/carregamentos/"+id+"/documento/pdf", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "nfe_"+id+".pdf")
	assert.Equal(t, "%PDF-1.4", w.Body.String())

	w = do(r, http.MethodGet, "/v1/carregamentos/"+id+"/documento/xml", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ── Lookups ──────────────────────────────────────────────────────────────────

type stubLookups struct{ calls int }

func (s *stubLookups) LookupCNPJ(_ context.Context, cnpj string) (*enrichment.LegalEntity, error) {
	s.calls++
	return &enrichment.LegalEntity{TaxID: fiscal.OnlyDigits(cnpj), LegalName: "Cooperativa"}, nil
}
func (s *stubLookups) LookupCEP(context.Context, string) (*enrichment.Address, error) {
	s.calls++
	return nil, enrichment.ErrNotFound
}

func TestLookups_ValidatesParams(t *testing.T) {
	svc := &stubLookups{}
	h := NewLookupsHandler(svc)
	r := gin.New()
	r.GET("/cnpj/:cnpj", h.CNPJ)
	r.GET("/cep/:cep", h.CEP)

	w := do(r, http.MethodGet, "/cnpj/123", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, svc.calls)

	w = do(r, http.MethodGet, "/cnpj/11222333000181", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cooperativa", decode(t, w)["razao_social"])

	w = do(r, http.MethodGet, "/cep/78890000", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validate.Var("11.222.333/0001-81", "cnpj"))
	assert.Error(t, validate.Var("1122233300018", "cnpj"))
	assert.NoError(t, validate.Var("78890-000", "cep"))
	assert.NoError(t, validate.Var("mt", "uf"))
	assert.Error(t, validate.Var("XX", "uf"))
}
