package handler

import (
	"net/http"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/apierror"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

type LookupsHandler struct{ svc service.LookupService }

func NewLookupsHandler(svc service.LookupService) *LookupsHandler {
	return &LookupsHandler{svc: svc}
}

// CNPJ godoc
// @Summary Consulta razao social e endereco pelo CNPJ
// @Tags consultas
// @Produce json
// @Security BearerAuth
// @Param cnpj path string true "CNPJ com ou sem mascara"
// @Success 200 {object} enrichment.LegalEntity
// @Failure 404 {object} apierror.APIError
// @Failure 503 {object} apierror.APIError
// @Router /v1/consultas/cnpj/{cnpj} [get]
func (h *LookupsHandler) CNPJ(c *gin.Context) {
	cnpj := c.Param("cnpj")
	if err := validate.Var(cnpj, "cnpj"); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("CNPJ deve ter 14 digitos"))
		return
	}
	e, err := h.svc.LookupCNPJ(c.Request.Context(), cnpj)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// CEP godoc
// @Summary Consulta endereco pelo CEP
// @Tags consultas
// @Produce json
// @Security BearerAuth
// @Param cep path string true "CEP com ou sem mascara"
// @Success 200 {object} enrichment.Address
// @Failure 404 {object} apierror.APIError
// @Router /v1/consultas/cep/{cep} [get]
func (h *LookupsHandler) CEP(c *gin.Context) {
	cep := c.Param("cep")
	if err := validate.Var(cep, "cep"); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("CEP deve ter 8 digitos"))
		return
	}
	a, err := h.svc.LookupCEP(c.Request.Context(), cep)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
