package dto

import (
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/shipment"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// CreateSessionRequest opens an editing session for a new shipment.
type CreateSessionRequest struct {
	Mode string `json:"modo" validate:"omitempty,oneof=interno transferencia venda"`
}

// SubmitRequest carries the explicit confirmation fiscal modes require.
type SubmitRequest struct {
	Confirm bool `json:"confirmar"`
}

// CreateShipmentRequest is the session-less create: a mode plus the same
// patch a session would receive.
type CreateShipmentRequest struct {
	Mode    string         `json:"modo" validate:"omitempty,oneof=interno transferencia venda"`
	Confirm bool           `json:"confirmar"`
	Patch   shipment.Patch `json:"dados"`
}

type UpdateShipmentRequest struct {
	Confirm bool           `json:"confirmar"`
	Patch   shipment.Patch `json:"dados"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// SessionResponse is the rendered working record plus what the last patch did.
type SessionResponse struct {
	shipment.View
	Changed bool     `json:"alterado"`
	Denied  []string `json:"negados,omitempty"`
}

type ShipmentResponse struct {
	Shipment model.Shipment `json:"carregamento"`
	Denied   []string       `json:"negados,omitempty"`
}

type SuggestionsResponse struct {
	Field  string   `json:"campo"`
	Values []string `json:"valores"`
}

type BlurResponse struct {
	shipment.View
	LookupStarted bool `json:"consulta_iniciada"`
}

type SyncResponse struct {
	Document model.FiscalDocument `json:"documento"`
	Enqueued bool                 `json:"enfileirado,omitempty"`
}
