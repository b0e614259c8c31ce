package fiscal

import "strings"

// DocumentStatus is the external NF-e lifecycle state mirrored on a shipment.
// DocumentStatus: "nenhum" | "pendente" | "autorizado" | "erro"
type DocumentStatus string

const (
	StatusNone       DocumentStatus = "nenhum"
	StatusPending    DocumentStatus = "pendente"
	StatusAuthorized DocumentStatus = "autorizado"
	StatusError      DocumentStatus = "erro"
)

// Terminal reports whether no further sync may change the status.
func (s DocumentStatus) Terminal() bool {
	return s == StatusAuthorized
}

// ParseExternalStatus maps the sidecar vocabulary onto DocumentStatus.
// Anything not recognised as authorized or failed is still in flight.
func ParseExternalStatus(raw string) DocumentStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return StatusNone
	case "autorizado", "autorizada", "authorized", "100":
		return StatusAuthorized
	case "erro", "error", "rejeitado", "rejeitada", "denegado", "denegada":
		return StatusError
	default:
		return StatusPending
	}
}

// Advance returns the status a record moves to when a sync reports next.
// authorized never moves; an empty report leaves the current status as is.
func Advance(current, next DocumentStatus) DocumentStatus {
	if current.Terminal() {
		return current
	}
	if next == "" || next == StatusNone {
		if current == "" {
			return StatusNone
		}
		return current
	}
	return next
}
