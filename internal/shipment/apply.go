package shipment

import (
	"strings"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/access"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/shopspring/decimal"
)

// applier copies patch values into the record one field at a time, checking
// the section of each field against the access matrix.
type applier struct {
	editable map[access.Section]bool
	out      Outcome
	fired    trigger
}

func (a *applier) deny(path string) {
	a.out.Denied = append(a.out.Denied, path)
}

func (a *applier) allowed(sec access.Section, path string) bool {
	if a.editable[sec] {
		return true
	}
	a.deny(path)
	return false
}

func (a *applier) str(sec access.Section, path string, dst *string, v *string, t trigger) {
	if v == nil || !a.allowed(sec, path) {
		return
	}
	val := strings.TrimSpace(*v)
	if *dst == val {
		return
	}
	*dst = val
	a.out.Changed = true
	a.fired |= t
}

func (a *applier) digits(sec access.Section, path string, dst *string, v *string, t trigger) {
	if v == nil {
		return
	}
	d := fiscal.OnlyDigits(*v)
	a.str(sec, path, dst, &d, t)
}

func (a *applier) upper(sec access.Section, path string, dst *string, v *string, t trigger) {
	if v == nil {
		return
	}
	u := strings.ToUpper(strings.TrimSpace(*v))
	a.str(sec, path, dst, &u, t)
}

func (a *applier) flag(sec access.Section, path string, dst *bool, v *bool, t trigger) {
	if v == nil || !a.allowed(sec, path) {
		return
	}
	if *dst == *v {
		return
	}
	*dst = *v
	a.out.Changed = true
	a.fired |= t
}

func (a *applier) dec(sec access.Section, path string, dst *decimal.Decimal, v *decimal.Decimal, t trigger) {
	if v == nil || !a.allowed(sec, path) {
		return
	}
	if dst.Equal(*v) {
		return
	}
	*dst = *v
	a.out.Changed = true
	a.fired |= t
}

func (a *applier) nullDec(sec access.Section, path string, dst *decimal.NullDecimal, v *decimal.Decimal, t trigger) {
	if v == nil || !a.allowed(sec, path) {
		return
	}
	if dst.Valid && dst.Decimal.Equal(*v) {
		return
	}
	*dst = decimal.NewNullDecimal(*v)
	a.out.Changed = true
	a.fired |= t
}

func (a *applier) when(sec access.Section, path string, dst *time.Time, v *time.Time) {
	if v == nil || !a.allowed(sec, path) {
		return
	}
	if dst.Equal(*v) {
		return
	}
	*dst = *v
	a.out.Changed = true
}

func (a *applier) apply(rec *model.Shipment, p Patch) {
	const id = access.SectionIdentification

	a.when(id, "agendado_em", &rec.ScheduledAt, p.ScheduledAt)
	a.upper(id, "placa", &rec.Plate, p.Plate, 0)
	a.str(id, "motorista", &rec.DriverName, p.DriverName, trDriver)
	a.digits(id, "documento_motorista", &rec.DriverDocument, p.DriverDocument, trDriver)
	a.str(id, "talhao", &rec.FieldName, p.FieldName, 0)
	a.str(id, "produto", &rec.Product, p.Product, 0)
	a.str(id, "variedade", &rec.Variety, p.Variety, 0)
	a.nullDec(id, "quantidade", &rec.Quantity, p.Quantity, 0)
	a.str(id, "unidade", &rec.Unit, p.Unit, 0)
	a.str(id, "destino", &rec.DestinationName, p.DestinationName, 0)
	a.str(id, "observacoes", &rec.Notes, p.Notes, 0)

	if w := p.Weighing; w != nil {
		a.applyWeighing(&rec.Weighing, w)
	}
	if f := p.Fiscal; f != nil {
		a.applyFiscal(&rec.Fiscal, f)
	}
}

func (a *applier) applyWeighing(dst *model.Weighing, w *WeighingPatch) {
	const (
		scale   = access.SectionWeighing
		quality = access.SectionQuality
		config  = access.SectionDiscountConfig
	)
	a.nullDec(scale, "pesagem.peso_bruto", &dst.Gross, w.Gross, trWeighing)
	a.nullDec(scale, "pesagem.tara", &dst.Tare, w.Tare, trWeighing)
	a.nullDec(scale, "pesagem.peso_final", &dst.FinalWeight, w.FinalWeight, 0)

	a.nullDec(quality, "pesagem.umidade", &dst.Moisture, w.Moisture, trWeighing)
	a.nullDec(quality, "pesagem.impureza", &dst.Impurities, w.Impurities, trWeighing)
	a.nullDec(quality, "pesagem.empresa_umidade", &dst.CompanyMoisture, w.CompanyMoisture, trWeighing)
	a.nullDec(quality, "pesagem.empresa_impureza", &dst.CompanyImpurities, w.CompanyImpurities, trWeighing)

	a.dec(config, "pesagem.umidade_referencia", &dst.RefMoisture, w.RefMoisture, trWeighing)
	a.dec(config, "pesagem.fator_quebra", &dst.ShrinkFactor, w.ShrinkFactor, trWeighing)
	a.dec(config, "pesagem.impureza_referencia", &dst.RefImpurities, w.RefImpurities, trWeighing)
	a.nullDec(config, "pesagem.empresa_umidade_referencia", &dst.CompanyRefMoisture, w.CompanyRefMoisture, trWeighing)
	a.nullDec(config, "pesagem.empresa_fator_quebra", &dst.CompanyShrinkFactor, w.CompanyShrinkFactor, trWeighing)
	a.nullDec(config, "pesagem.empresa_impureza_referencia", &dst.CompanyRefImpurities, w.CompanyRefImpurities, trWeighing)
}

func (a *applier) applyFiscal(dst *model.FiscalData, f *FiscalPatch) {
	const (
		op  = access.SectionFiscalOperation
		rcp = access.SectionFiscalRecipient
	)
	a.str(op, "fiscal.natureza_operacao", &dst.Nature, f.Nature, 0)
	a.digits(op, "fiscal.cfop", &dst.CFOP, f.CFOP, 0)
	a.str(op, "fiscal.modalidade_frete", &dst.FreightPayer, f.FreightPayer, 0)
	a.str(op, "fiscal.forma_pagamento", &dst.PaymentCode, f.PaymentCode, 0)

	a.flag(rcp, "fiscal.possui_cte", &dst.HasTransportDocument, f.HasTransportDocument, trFiscal)

	if rp := f.Recipient; rp != nil {
		d := &dst.Recipient
		a.digits(rcp, "fiscal.destinatario.cnpj", &d.TaxID, rp.TaxID, 0)
		a.str(rcp, "fiscal.destinatario.razao_social", &d.LegalName, rp.LegalName, 0)
		a.str(rcp, "fiscal.destinatario.nome_fantasia", &d.TradeName, rp.TradeName, 0)
		a.str(rcp, "fiscal.destinatario.inscricao_estadual", &d.StateRegistration, rp.StateRegistration, trFiscal)
		a.str(rcp, "fiscal.destinatario.logradouro", &d.Street, rp.Street, 0)
		a.str(rcp, "fiscal.destinatario.numero", &d.Number, rp.Number, 0)
		a.str(rcp, "fiscal.destinatario.complemento", &d.Complement, rp.Complement, 0)
		a.str(rcp, "fiscal.destinatario.bairro", &d.District, rp.District, 0)
		a.str(rcp, "fiscal.destinatario.municipio", &d.City, rp.City, 0)
		a.upper(rcp, "fiscal.destinatario.uf", &d.UF, rp.UF, trRegion)
		a.digits(rcp, "fiscal.destinatario.cep", &d.PostalCode, rp.PostalCode, 0)
		a.str(rcp, "fiscal.destinatario.indicador_ie", &d.IEIndicator, rp.IEIndicator, trFiscal)
		a.flag(rcp, "fiscal.destinatario.consumidor_final", &d.FinalConsumer, rp.FinalConsumer, trFiscal)
		a.str(rcp, "fiscal.destinatario.email", &d.Email, rp.Email, 0)
	}
	if cp := f.Carrier; cp != nil {
		c := &dst.Carrier
		a.str(rcp, "fiscal.transportador.nome", &c.Name, cp.Name, 0)
		a.digits(rcp, "fiscal.transportador.cnpj_cpf", &c.TaxID, cp.TaxID, 0)
		a.upper(rcp, "fiscal.transportador.placa", &c.Plate, cp.Plate, 0)
		a.upper(rcp, "fiscal.transportador.uf", &c.UF, cp.UF, 0)
	}
}
