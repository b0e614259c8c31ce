package handler

import (
	"net/http"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/dto"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/middleware"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// ShipmentsHandler serves the session-less record endpoints.
type ShipmentsHandler struct{ svc service.ShipmentService }

func NewShipmentsHandler(svc service.ShipmentService) *ShipmentsHandler {
	return &ShipmentsHandler{svc: svc}
}

// Create godoc
// @Summary Cria um carregamento
// @Description Aplica os dados ao registro novo e salva. Modos fiscais exigem confirmar=true.
// @Tags carregamentos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CreateShipmentRequest true "Carregamento"
// @Success 201 {object} dto.ShipmentResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/carregamentos [post]
func (h *ShipmentsHandler) Create(c *gin.Context) {
	var req dto.CreateShipmentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), middleware.Caller(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Update godoc
// @Summary Atualiza um carregamento
// @Description Secoes sem permissao sao ignoradas e listadas em negados.
// @Tags carregamentos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID do carregamento"
// @Param body body dto.UpdateShipmentRequest true "Alteracoes"
// @Success 200 {object} dto.ShipmentResponse
// @Failure 404 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/carregamentos/{id} [put]
func (h *ShipmentsHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateShipmentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), middleware.Caller(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get godoc
// @Summary Busca um carregamento
// @Tags carregamentos
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID do carregamento"
// @Success 200 {object} model.Shipment
// @Failure 404 {object} apierror.APIError
// @Router /v1/carregamentos/{id} [get]
func (h *ShipmentsHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rec, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Suggestions godoc
// @Summary Valores ja usados em um campo livre
// @Tags carregamentos
// @Produce json
// @Security BearerAuth
// @Param campo path string true "placa, motorista, produto, variedade, talhao ou destino"
// @Param q query string false "Filtro, sem diferenciar acentos"
// @Success 200 {object} dto.SuggestionsResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/carregamentos/sugestoes/{campo} [get]
func (h *ShipmentsHandler) Suggestions(c *gin.Context) {
	resp, err := h.svc.Suggestions(c.Request.Context(), c.Param("campo"), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
