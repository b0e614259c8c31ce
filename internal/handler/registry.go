package handler

import (
	"net/http"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

type RegistryHandler struct{ svc service.RegistryService }

func NewRegistryHandler(svc service.RegistryService) *RegistryHandler {
	return &RegistryHandler{svc: svc}
}

// Farms godoc
// @Summary Lista as fazendas ativas
// @Tags cadastros
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Farm
// @Router /v1/fazendas [get]
func (h *RegistryHandler) Farms(c *gin.Context) {
	farms, err := h.svc.ListFarms(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, farms)
}

// Warehouses godoc
// @Summary Lista os armazens ativos
// @Tags cadastros
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Warehouse
// @Router /v1/armazens [get]
func (h *RegistryHandler) Warehouses(c *gin.Context) {
	warehouses, err := h.svc.ListWarehouses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, warehouses)
}
