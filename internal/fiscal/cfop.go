package fiscal

import (
	"errors"
	"strings"
)

// Transfer CFOPs are always derived from the issuer and recipient UF.
const (
	CFOPTransferSameState  = "5905"
	CFOPTransferOtherState = "6905"
)

// SaleCFOP is one entry of the fixed list offered for sale shipments.
type SaleCFOP struct {
	Code        string `json:"codigo"`
	Description string `json:"descricao"`
	Interstate  bool   `json:"interestadual"`
}

// SaleCFOPs is the closed list a caller may pick from in sale mode.
var SaleCFOPs = []SaleCFOP{
	{Code: "5101", Description: "Venda de producao do estabelecimento"},
	{Code: "5102", Description: "Venda de mercadoria adquirida de terceiros"},
	{Code: "6101", Description: "Venda de producao do estabelecimento", Interstate: true},
	{Code: "6102", Description: "Venda de mercadoria adquirida de terceiros", Interstate: true},
}

var (
	ErrUnknownSaleCFOP    = errors.New("CFOP de venda fora da lista permitida")
	ErrCFOPStateMismatch  = errors.New("CFOP incompativel com as UFs do emitente e do destinatario")
	ErrCFOPMissingRegions = errors.New("UF do emitente e do destinatario sao necessarias para o CFOP")
)

// ResolveCFOP returns the code the record must carry after a recompute.
// Transfer mode ignores current entirely; sale mode keeps the caller's pick.
func ResolveCFOP(m Mode, issuerUF, recipientUF, current string) string {
	switch m {
	case ModeTransfer:
		return TransferCFOP(issuerUF, recipientUF)
	case ModeSale:
		return current
	default:
		return ""
	}
}

// TransferCFOP derives the transfer code; it is empty while either UF is unknown.
func TransferCFOP(issuerUF, recipientUF string) string {
	a, b := normalizeUF(issuerUF), normalizeUF(recipientUF)
	if a == "" || b == "" {
		return ""
	}
	if a == b {
		return CFOPTransferSameState
	}
	return CFOPTransferOtherState
}

// ValidateSaleCFOP checks membership in SaleCFOPs and, when both UFs are
// known, that the same-state/interstate prefix agrees with them.
func ValidateSaleCFOP(code, issuerUF, recipientUF string) error {
	var entry *SaleCFOP
	for i := range SaleCFOPs {
		if SaleCFOPs[i].Code == code {
			entry = &SaleCFOPs[i]
			break
		}
	}
	if entry == nil {
		return ErrUnknownSaleCFOP
	}
	a, b := normalizeUF(issuerUF), normalizeUF(recipientUF)
	if a == "" || b == "" {
		return nil
	}
	if entry.Interstate == (a == b) {
		return ErrCFOPStateMismatch
	}
	return nil
}

func normalizeUF(uf string) string {
	return strings.ToUpper(strings.TrimSpace(uf))
}
