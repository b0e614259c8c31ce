package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

type DocumentsHandler struct{ svc service.DocumentService }

func NewDocumentsHandler(svc service.DocumentService) *DocumentsHandler {
	return &DocumentsHandler{svc: svc}
}

// Sync godoc
// @Summary Sincroniza o documento fiscal com o emissor
// @Description Com async=true apenas enfileira a sincronizacao. Falhas nao alteram o status salvo.
// @Tags documentos
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID do carregamento"
// @Param async query bool false "Enfileirar em vez de sincronizar agora"
// @Success 200 {object} dto.SyncResponse
// @Success 202 {object} dto.SyncResponse
// @Failure 409 {object} apierror.APIError
// @Failure 503 {object} apierror.APIError
// @Router /v1/carregamentos/{id}/documento/sincronizar [post]
func (h *DocumentsHandler) Sync(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if c.Query("async") == "true" {
		resp, err := h.svc.EnqueueSync(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, resp)
		return
	}
	resp, err := h.svc.Sync(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Artifact godoc
// @Summary Baixa o DANFE (pdf) ou o XML da NF-e
// @Tags documentos
// @Produce application/pdf,application/xml
// @Security BearerAuth
// @Param id path string true "ID do carregamento"
// @Param tipo path string true "pdf ou xml"
// @Success 200 {file} binary
// @Failure 404 {object} apierror.APIError
// @Router /v1/carregamentos/{id}/documento/{tipo} [get]
func (h *DocumentsHandler) Artifact(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	kind := c.Param("tipo")
	art, err := h.svc.Artifact(c.Request.Context(), id, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	defer art.Body.Close()

	name := fmt.Sprintf("nfe_%s.%s", id, kind)
	c.DataFromReader(http.StatusOK, -1, art.ContentType, art.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf(`inline; filename="%s"`, name),
	})
}

// Romaneio godoc
// @Summary Gera o romaneio de carregamento em PDF
// @Tags documentos
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "ID do carregamento"
// @Success 200 {file} binary
// @Failure 404 {object} apierror.APIError
// @Router /v1/carregamentos/{id}/romaneio [get]
func (h *DocumentsHandler) Romaneio(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	path, err := h.svc.Romaneio(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
