package shipment

import (
	"errors"
	"regexp"
	"strings"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate = validator.New()
	// old format ABC1234 and Mercosul ABC1D23
	plateRe = regexp.MustCompile(`^[A-Z]{3}[0-9][A-Z0-9][0-9]{2}$`)
)

const (
	msgRequired = "campo obrigatorio"
	msgPercent  = "deve estar entre 0 e 100"
)

// Validate returns every field error of the working record, or nil.
func (r *Reducer) Validate() ValidationErrors {
	errs := ValidationErrors{}
	rec := &r.rec

	validateIdentification(rec, errs)
	if r.editing {
		validateWeighing(&rec.Weighing, errs)
	}
	if r.mode.IsFiscal() || rec.Fiscal.Nature != "" {
		r.validateFiscal(errs)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateIdentification(rec *model.Shipment, errs ValidationErrors) {
	if rec.ScheduledAt.IsZero() {
		errs.add("agendado_em", msgRequired)
	}
	if rec.Plate == "" {
		errs.add("placa", msgRequired)
	} else if !plateRe.MatchString(strings.ReplaceAll(rec.Plate, "-", "")) {
		errs.add("placa", "placa invalida")
	}
	if rec.DriverName == "" {
		errs.add("motorista", msgRequired)
	}
	if rec.DriverDocument != "" && !fiscal.ValidTaxID(rec.DriverDocument) {
		errs.add("documento_motorista", "CPF/CNPJ invalido")
	}
	if rec.FarmName == "" {
		errs.add("fazenda_id", msgRequired)
	}
	if rec.Product == "" {
		errs.add("produto", msgRequired)
	}
	if rec.DestinationName == "" {
		errs.add("destino", msgRequired)
	}
	if rec.Quantity.Valid && rec.Quantity.Decimal.IsNegative() {
		errs.add("quantidade", "nao pode ser negativa")
	}
}

func validateWeighing(w *model.Weighing, errs ValidationErrors) {
	nonNegative(errs, "pesagem.peso_bruto", w.Gross)
	nonNegative(errs, "pesagem.tara", w.Tare)
	nonNegative(errs, "pesagem.peso_final", w.FinalWeight)
	if w.Gross.Valid && w.Tare.Valid && w.Tare.Decimal.GreaterThan(w.Gross.Decimal) {
		errs.add("pesagem.tara", "tara maior que o peso bruto")
	}

	percent(errs, "pesagem.umidade", w.Moisture)
	percent(errs, "pesagem.impureza", w.Impurities)
	percent(errs, "pesagem.empresa_umidade", w.CompanyMoisture)
	percent(errs, "pesagem.empresa_impureza", w.CompanyImpurities)
	percent(errs, "pesagem.umidade_referencia", decimal.NewNullDecimal(w.RefMoisture))
	percent(errs, "pesagem.impureza_referencia", decimal.NewNullDecimal(w.RefImpurities))
	percent(errs, "pesagem.empresa_umidade_referencia", w.CompanyRefMoisture)
	percent(errs, "pesagem.empresa_impureza_referencia", w.CompanyRefImpurities)
	nonNegative(errs, "pesagem.fator_quebra", decimal.NewNullDecimal(w.ShrinkFactor))
	nonNegative(errs, "pesagem.empresa_fator_quebra", w.CompanyShrinkFactor)
}

func (r *Reducer) validateFiscal(errs ValidationErrors) {
	f := &r.rec.Fiscal

	if f.Issuer.TaxID == "" || f.Issuer.UF == "" {
		errs.add("fazenda_id", "selecione uma fazenda com cadastro fiscal completo")
	}

	rcp := &f.Recipient
	switch {
	case rcp.TaxID == "":
		errs.add("fiscal.destinatario.cnpj", msgRequired)
	case !fiscal.ValidTaxID(rcp.TaxID):
		errs.add("fiscal.destinatario.cnpj", fiscal.ErrInvalidTaxID.Error())
	}
	if rcp.LegalName == "" {
		errs.add("fiscal.destinatario.razao_social", msgRequired)
	}
	if rcp.City == "" {
		errs.add("fiscal.destinatario.municipio", msgRequired)
	}
	switch {
	case rcp.UF == "":
		errs.add("fiscal.destinatario.uf", msgRequired)
	case !fiscal.ValidUF(rcp.UF):
		errs.add("fiscal.destinatario.uf", fiscal.ErrInvalidUF.Error())
	}
	if rcp.PostalCode != "" && !fiscal.IsCEP(rcp.PostalCode) {
		errs.add("fiscal.destinatario.cep", fiscal.ErrInvalidPostalCode.Error())
	}
	switch {
	case rcp.IEIndicator == "":
		errs.add("fiscal.destinatario.indicador_ie", msgRequired)
	case !fiscal.ValidIndicator(rcp.IEIndicator):
		errs.add("fiscal.destinatario.indicador_ie", "indicador de IE invalido")
	case rcp.IEIndicator == fiscal.IndicatorContributor && rcp.StateRegistration == "":
		errs.add("fiscal.destinatario.inscricao_estadual", "obrigatoria para contribuinte do ICMS")
	}
	if rcp.Email != "" && validate.Var(rcp.Email, "email") != nil {
		errs.add("fiscal.destinatario.email", "e-mail invalido")
	}

	if f.Nature == "" {
		errs.add("fiscal.natureza_operacao", msgRequired)
	}
	switch r.mode {
	case fiscal.ModeTransfer:
		if f.CFOP == "" {
			errs.add("fiscal.cfop", fiscal.ErrCFOPMissingRegions.Error())
		}
	case fiscal.ModeSale:
		if f.CFOP == "" {
			errs.add("fiscal.cfop", msgRequired)
		} else if err := fiscal.ValidateSaleCFOP(f.CFOP, f.Issuer.UF, rcp.UF); err != nil {
			errs.add("fiscal.cfop", err.Error())
		}
	}
	if f.FreightPayer == "" {
		errs.add("fiscal.modalidade_frete", msgRequired)
	} else if !fiscal.ValidFreightPayer(f.FreightPayer) {
		errs.add("fiscal.modalidade_frete", "modalidade de frete invalida")
	}

	if fiscal.ShowsCarrier(r.mode, f.HasTransportDocument) {
		c := &f.Carrier
		if c.TaxID != "" && !fiscal.ValidTaxID(c.TaxID) {
			errs.add("fiscal.transportador.cnpj_cpf", fiscal.ErrInvalidTaxID.Error())
		}
		if c.UF != "" && !fiscal.ValidUF(c.UF) {
			errs.add("fiscal.transportador.uf", fiscal.ErrInvalidUF.Error())
		}
		if f.FreightPayer != fiscal.FreightNone && c.Name == "" {
			errs.add("fiscal.transportador.nome", msgRequired)
		}
	}
}

func nonNegative(errs ValidationErrors, field string, v decimal.NullDecimal) {
	if v.Valid && v.Decimal.IsNegative() {
		errs.add(field, "nao pode ser negativo")
	}
}

func percent(errs ValidationErrors, field string, v decimal.NullDecimal) {
	if !v.Valid {
		return
	}
	if v.Decimal.IsNegative() || v.Decimal.GreaterThan(decimal.NewFromInt(100)) {
		errs.add(field, msgPercent)
	}
}

// Submit validates the record and returns the payload to persist. Fiscal
// modes need an explicit confirmation; internal records go straight through.
func (r *Reducer) Submit(confirmed bool) (model.Shipment, error) {
	if r.Locked() {
		return model.Shipment{}, ErrRecordLocked
	}
	if errs := r.Validate(); errs != nil {
		return model.Shipment{}, errs
	}
	if r.mode.IsFiscal() && !confirmed {
		return model.Shipment{}, ErrConfirmationRequired
	}
	return r.rec, nil
}

// AsValidation unwraps a ValidationErrors from err.
func AsValidation(err error) (ValidationErrors, bool) {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
