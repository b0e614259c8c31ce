// Package fiscal holds the static fiscal rules of a loading record: the
// defaults of each shipment mode, the CFOP derivation, the lifecycle of the
// external NF-e and the Brazilian identifier formats (CNPJ, CPF, CEP, UF).
package fiscal

import (
	"errors"
	"fmt"
)

var ErrUnknownMode = errors.New("modo de carregamento desconhecido")

// Mode is fixed when the shipment is created.
// Mode: "interno" | "transferencia" | "venda"
type Mode string

const (
	ModeInternal Mode = "interno"
	ModeTransfer Mode = "transferencia"
	ModeSale     Mode = "venda"
)

// ParseMode accepts the three persisted values; an empty string defaults to internal.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeInternal, nil
	case ModeInternal, ModeTransfer, ModeSale:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// IsFiscal reports whether the mode produces an NF-e.
func (m Mode) IsFiscal() bool {
	return m == ModeTransfer || m == ModeSale
}

// Freight payer codes (modFrete).
const (
	FreightIssuer     = "0"
	FreightRecipient  = "1"
	FreightThirdParty = "2"
	FreightNone       = "9"
)

// PaymentNone is the "sem pagamento" payment code (tPag 90).
const PaymentNone = "90"

// Recipient state-registration indicator (indIEDest).
const (
	IndicatorContributor    = "1"
	IndicatorExempt         = "2"
	IndicatorNonContributor = "9"
)

const (
	NatureTransfer = "REMESSA PARA DEPOSITO EM ARMAZEM GERAL"
	NatureSale     = "VENDA DE PRODUCAO DO ESTABELECIMENTO"
)

// ModeDefaults is one row of the mode policy table.
type ModeDefaults struct {
	Nature            string
	FreightPayer      string
	PaymentCode       string
	CarrierSection    bool
	RecipientRequired bool
}

var modeTable = map[Mode]ModeDefaults{
	ModeInternal: {},
	ModeTransfer: {
		Nature:            NatureTransfer,
		FreightPayer:      FreightIssuer,
		PaymentCode:       PaymentNone,
		CarrierSection:    true,
		RecipientRequired: true,
	},
	ModeSale: {
		Nature:            NatureSale,
		FreightPayer:      FreightNone,
		CarrierSection:    true,
		RecipientRequired: true,
	},
}

// DefaultsFor returns the policy row of a mode. Unknown modes get the zero row.
func DefaultsFor(m Mode) ModeDefaults {
	return modeTable[m]
}

// ShowsCarrier reports whether the carrier block applies. The separate
// transport document flag only hides it in transfer mode.
func ShowsCarrier(m Mode, hasTransportDocument bool) bool {
	d := DefaultsFor(m)
	if !d.CarrierSection {
		return false
	}
	if m == ModeTransfer && hasTransportDocument {
		return false
	}
	return true
}

// ValidFreightPayer reports whether code is a known modFrete value.
func ValidFreightPayer(code string) bool {
	switch code {
	case FreightIssuer, FreightRecipient, FreightThirdParty, FreightNone:
		return true
	}
	return false
}

// ValidIndicator reports whether code is a known indIEDest value.
func ValidIndicator(code string) bool {
	switch code {
	case IndicatorContributor, IndicatorExempt, IndicatorNonContributor:
		return true
	}
	return false
}
