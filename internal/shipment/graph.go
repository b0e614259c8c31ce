package shipment

import (
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/access"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/weighing"
	"github.com/shopspring/decimal"
)

// trigger marks which inputs changed during one Apply.
type trigger uint16

const (
	trFarm trigger = 1 << iota
	trWarehouse
	trDriver
	trFiscal
	trWeighing
	trRegion

	always = ^trigger(0)
)

type step struct {
	name string
	on   trigger
	fn   func(*Reducer)
}

// graph is evaluated top to bottom after every mutation. A step runs when
// any of its inputs fired, and then recomputes its outputs from scratch.
var graph = []step{
	{"espelho_fazenda", trFarm, (*Reducer).mirrorFarm},
	{"espelho_armazem", trWarehouse, (*Reducer).mirrorWarehouse},
	{"transportador", trDriver, (*Reducer).propagateCarrier},
	{"normalizacao_fiscal", trFiscal | trWarehouse, (*Reducer).normalizeFiscal},
	{"pesos", trWeighing | trWarehouse, (*Reducer).recomputeWeights},
	{"cfop", trFarm | trWarehouse | trRegion, (*Reducer).recomputeCFOP},
	{"acesso", always, (*Reducer).recomputeAccess},
}

func (r *Reducer) run(fired trigger) {
	locked := r.Locked()
	for _, s := range graph {
		if s.on&fired == 0 {
			continue
		}
		// a frozen record only refreshes its access matrix
		if locked && s.name != "acesso" {
			continue
		}
		s.fn(r)
	}
}

// mirrorFarm overwrites the issuer block with the selected farm.
func (r *Reducer) mirrorFarm() {
	f := r.farm
	if f == nil {
		return
	}
	id := f.ID
	r.rec.FarmID = &id
	r.rec.FarmName = f.Name
	r.rec.Fiscal.Issuer = f.Party
	if r.rec.Fiscal.Issuer.LegalName == "" {
		r.rec.Fiscal.Issuer.LegalName = f.Name
	}
}

// mirrorWarehouse always refreshes the discount triplet snapshot; the
// recipient block is only filled while creating, since on an existing
// record the persisted recipient is authoritative.
func (r *Reducer) mirrorWarehouse() {
	w := r.warehouse
	if w == nil {
		return
	}
	id := w.ID
	r.rec.WarehouseID = &id
	r.rec.Weighing.WarehouseRefMoisture = decimal.NewNullDecimal(w.RefMoisture)
	r.rec.Weighing.WarehouseShrinkFactor = decimal.NewNullDecimal(w.ShrinkFactor)
	r.rec.Weighing.WarehouseRefImpurities = decimal.NewNullDecimal(w.RefImpurities)

	if r.editing {
		return
	}
	r.rec.DestinationName = w.Name
	if !r.mode.IsFiscal() {
		return
	}
	rcp := &r.rec.Fiscal.Recipient
	rcp.Party = w.Party
	if rcp.LegalName == "" {
		rcp.LegalName = w.Name
	}
	rcp.Email = w.Email
	if w.StateRegistration != "" {
		rcp.IEIndicator = fiscal.IndicatorContributor
		rcp.FinalConsumer = false
	}
}

// propagateCarrier copies the driver identity into empty carrier fields. A
// carrier value still equal to the previous driver value counts as empty,
// so the copy follows the driver while it is being typed but never replaces
// something entered by hand.
func (r *Reducer) propagateCarrier() {
	if !r.mode.IsFiscal() {
		return
	}
	c := &r.rec.Fiscal.Carrier
	if c.Name == "" || c.Name == r.prevDriver[0] {
		c.Name = r.rec.DriverName
	}
	if c.TaxID == "" || c.TaxID == r.prevDriver[1] {
		c.TaxID = r.rec.DriverDocument
	}
}

// normalizeFiscal enforces the cross-field rules of the fiscal block.
func (r *Reducer) normalizeFiscal() {
	rcp := &r.rec.Fiscal.Recipient
	if rcp.IEIndicator == fiscal.IndicatorNonContributor {
		rcp.FinalConsumer = true
		rcp.StateRegistration = ""
	}
	if r.mode != fiscal.ModeTransfer {
		r.rec.Fiscal.HasTransportDocument = false
	}
	if r.mode == fiscal.ModeInternal {
		r.rec.Fiscal.CFOP = ""
	}
}

// recomputeWeights derives net and the three discounted weights from
// scratch. The comparison set only exists in transfer mode and is cleared
// elsewhere.
func (r *Reducer) recomputeWeights() {
	w := &r.rec.Weighing

	if r.mode != fiscal.ModeTransfer {
		w.CompanyMoisture = decimal.NullDecimal{}
		w.CompanyImpurities = decimal.NullDecimal{}
		w.CompanyRefMoisture = decimal.NullDecimal{}
		w.CompanyShrinkFactor = decimal.NullDecimal{}
		w.CompanyRefImpurities = decimal.NullDecimal{}
	}

	w.Net = decimal.NullDecimal{}
	w.FarmDiscounted = decimal.NullDecimal{}
	w.WarehouseDiscounted = decimal.NullDecimal{}
	w.CompanyDiscounted = decimal.NullDecimal{}

	if !w.Gross.Valid || !w.Tare.Valid {
		return
	}
	net := weighing.Net(w.Gross.Decimal, w.Tare.Decimal)
	w.Net = decimal.NewNullDecimal(net)

	m := weighing.Measurement{Moisture: orZero(w.Moisture), Impurities: orZero(w.Impurities)}

	farm := weighing.Policy{RefMoisture: w.RefMoisture, ShrinkFactor: w.ShrinkFactor, RefImpurities: w.RefImpurities}
	w.FarmDiscounted = decimal.NewNullDecimal(farm.Apply(net, m))

	if w.WarehouseRefMoisture.Valid && w.WarehouseShrinkFactor.Valid && w.WarehouseRefImpurities.Valid {
		wh := weighing.Policy{
			RefMoisture:   w.WarehouseRefMoisture.Decimal,
			ShrinkFactor:  w.WarehouseShrinkFactor.Decimal,
			RefImpurities: w.WarehouseRefImpurities.Decimal,
		}
		w.WarehouseDiscounted = decimal.NewNullDecimal(wh.Apply(net, m))
	}

	if r.mode == fiscal.ModeTransfer && w.CompanyRefMoisture.Valid && w.CompanyShrinkFactor.Valid && w.CompanyRefImpurities.Valid {
		cp := weighing.Policy{
			RefMoisture:   w.CompanyRefMoisture.Decimal,
			ShrinkFactor:  w.CompanyShrinkFactor.Decimal,
			RefImpurities: w.CompanyRefImpurities.Decimal,
		}
		cm := weighing.Measurement{Moisture: orZero(w.CompanyMoisture), Impurities: orZero(w.CompanyImpurities)}
		w.CompanyDiscounted = decimal.NewNullDecimal(cp.Apply(net, cm))
	}
}

// recomputeCFOP overwrites whatever the record carries in transfer mode.
func (r *Reducer) recomputeCFOP() {
	f := &r.rec.Fiscal
	f.CFOP = fiscal.ResolveCFOP(r.mode, f.Issuer.UF, f.Recipient.UF, f.CFOP)
}

func (r *Reducer) recomputeAccess() {
	r.access = access.Matrix(r.Context())
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if d.Valid {
		return d.Decimal
	}
	return decimal.Zero
}
