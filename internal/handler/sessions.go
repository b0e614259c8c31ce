package handler

import (
	"net/http"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/dto"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/middleware"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/service"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/shipment"
	"github.com/gin-gonic/gin"
)

// SessionsHandler exposes server-side editing sessions. Enrichment results
// arrive asynchronously and show up in the next GET as filled fields or
// avisos.
type SessionsHandler struct{ svc service.SessionService }

func NewSessionsHandler(svc service.SessionService) *SessionsHandler {
	return &SessionsHandler{svc: svc}
}

// Create godoc
// @Summary Abre uma sessao para um carregamento novo
// @Tags sessoes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateSessionRequest true "Modo"
// @Success 201 {object} shipment.View
// @Failure 400 {object} apierror.APIError
// @Router /v1/carregamentos/sessoes [post]
func (h *SessionsHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	view, err := h.svc.Create(c.Request.Context(), middleware.Caller(c), req.Mode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Open godoc
// @Summary Abre uma sessao de edicao de um carregamento salvo
// @Tags sessoes
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID do carregamento"
// @Success 201 {object} shipment.View
// @Failure 404 {object} apierror.APIError
// @Router /v1/carregamentos/{id}/sessoes [post]
func (h *SessionsHandler) Open(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.Open(c.Request.Context(), middleware.Caller(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Get godoc
// @Summary Estado atual da sessao
// @Tags sessoes
// @Produce json
// @Security BearerAuth
// @Param sid path string true "ID da sessao"
// @Success 200 {object} shipment.View
// @Failure 404 {object} apierror.APIError
// @Router /v1/carregamentos/sessoes/{sid} [get]
func (h *SessionsHandler) Get(c *gin.Context) {
	sid, ok := parseID(c, "sid")
	if !ok {
		return
	}
	view, err := h.svc.Get(middleware.Caller(c), sid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Apply godoc
// @Summary Aplica alteracoes ao registro da sessao
// @Tags sessoes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sid path string true "ID da sessao"
// @Param body body shipment.Patch true "Alteracoes"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/carregamentos/sessoes/{sid} [patch]
func (h *SessionsHandler) Apply(c *gin.Context) {
	sid, ok := parseID(c, "sid")
	if !ok {
		return
	}
	var p shipment.Patch
	if !bindAndValidate(c, &p) {
		return
	}
	view, out, err := h.svc.Apply(c.Request.Context(), middleware.Caller(c), sid, p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SessionResponse{View: view, Changed: out.Changed, Denied: out.Denied})
}

// BlurPostalCode godoc
// @Summary Dispara a consulta do CEP do destinatario
// @Tags sessoes
// @Produce json
// @Security BearerAuth
// @Param sid path string true "ID da sessao"
// @Success 200 {object} dto.BlurResponse
// @Router /v1/carregamentos/sessoes/{sid}/cep/blur [post]
func (h *SessionsHandler) BlurPostalCode(c *gin.Context) {
	sid, ok := parseID(c, "sid")
	if !ok {
		return
	}
	view, started, err := h.svc.BlurPostalCode(middleware.Caller(c), sid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BlurResponse{View: view, LookupStarted: started})
}

// Submit godoc
// @Summary Valida e salva o registro da sessao
// @Tags sessoes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sid path string true "ID da sessao"
// @Param body body dto.SubmitRequest true "Confirmacao"
// @Success 200 {object} model.Shipment
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/carregamentos/sessoes/{sid}/enviar [post]
func (h *SessionsHandler) Submit(c *gin.Context) {
	sid, ok := parseID(c, "sid")
	if !ok {
		return
	}
	var req dto.SubmitRequest
	if !bindAndValidate(c, &req) {
		return
	}
	rec, err := h.svc.Submit(c.Request.Context(), middleware.Caller(c), sid, req.Confirm)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Discard godoc
// @Summary Descarta a sessao sem salvar
// @Tags sessoes
// @Security BearerAuth
// @Param sid path string true "ID da sessao"
// @Success 204
// @Router /v1/carregamentos/sessoes/{sid} [delete]
func (h *SessionsHandler) Discard(c *gin.Context) {
	sid, ok := parseID(c, "sid")
	if !ok {
		return
	}
	if err := h.svc.Discard(middleware.Caller(c), sid); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
