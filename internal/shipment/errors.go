package shipment

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrConfirmationRequired is returned by Submit for fiscal modes until the
	// caller confirms the summary.
	ErrConfirmationRequired = errors.New("confirmacao necessaria para emitir documento fiscal")
	ErrModeChange           = errors.New("o modo do carregamento nao pode ser alterado")
	ErrRecordLocked         = errors.New("carregamento bloqueado: documento fiscal autorizado")
	ErrUnknownFarm          = errors.New("fazenda nao encontrada")
	ErrUnknownWarehouse     = errors.New("armazem nao encontrado")
)

// ValidationErrors maps a field path to a user-facing message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "validacao falhou: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}
