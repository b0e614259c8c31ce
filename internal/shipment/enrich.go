package shipment

import (
	"strings"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/access"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/enrichment"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
)

// ApplyLegalEntity overwrites the recipient's legal name and address with a
// CNPJ registry answer. It is ignored when the recipient section is locked,
// the recipient tax ID no longer matches or the answer has no legal name.
// Empty answer fields never clear what the record already holds.
func (r *Reducer) ApplyLegalEntity(e *enrichment.LegalEntity) bool {
	if !e.Complete() || !r.access[access.SectionFiscalRecipient] {
		return false
	}
	rcp := &r.rec.Fiscal.Recipient
	if e.TaxID != "" && fiscal.OnlyDigits(e.TaxID) != rcp.TaxID {
		return false
	}
	rcp.LegalName = strings.TrimSpace(e.LegalName)
	fill(&rcp.TradeName, e.TradeName)
	r.overwriteAddress(e.Address, true)
	r.run(trRegion)
	return true
}

// ApplyAddress overwrites street, district, city and UF from a CEP answer.
// Answers without city or UF are ignored.
func (r *Reducer) ApplyAddress(a *enrichment.Address) bool {
	if !a.Complete() || !r.access[access.SectionFiscalRecipient] {
		return false
	}
	if a.PostalCode != "" && fiscal.OnlyDigits(a.PostalCode) != r.rec.Fiscal.Recipient.PostalCode {
		return false
	}
	r.overwriteAddress(*a, false)
	r.run(trRegion)
	return true
}

func (r *Reducer) overwriteAddress(a enrichment.Address, full bool) {
	rcp := &r.rec.Fiscal.Recipient
	fill(&rcp.Street, a.Street)
	fill(&rcp.District, a.District)
	fill(&rcp.City, a.City)
	fill(&rcp.UF, strings.ToUpper(a.UF))
	if !full {
		return
	}
	fill(&rcp.Number, a.Number)
	fill(&rcp.Complement, a.Complement)
	fill(&rcp.PostalCode, fiscal.OnlyDigits(a.PostalCode))
}

// fill sets dst to the trimmed v unless v is blank.
func fill(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
