// Package weighing turns scale readings into the commercially significant
// weight of a load: net = gross - tare, then moisture and impurity discounts
// under a reference policy.
package weighing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Policy is a discount triplet: reference moisture %, shrink factor and
// reference impurities %.
type Policy struct {
	RefMoisture   decimal.Decimal `json:"umidade_referencia"`
	ShrinkFactor  decimal.Decimal `json:"fator_quebra"`
	RefImpurities decimal.Decimal `json:"impureza_referencia"`
}

// DefaultPolicy is the farm's own triplet for new shipments: 14% / 1.5 / 1%.
func DefaultPolicy() Policy {
	return Policy{
		RefMoisture:   decimal.NewFromInt(14),
		ShrinkFactor:  decimal.NewFromFloat(1.5),
		RefImpurities: decimal.NewFromInt(1),
	}
}

// Measurement is what the lab reported for a load.
type Measurement struct {
	Moisture   decimal.Decimal `json:"umidade"`
	Impurities decimal.Decimal `json:"impureza"`
}

// Net returns gross - tare. A negative result is kept; validation rejects it.
func Net(gross, tare decimal.Decimal) decimal.Decimal {
	return gross.Sub(tare)
}

// Apply runs Discount with the policy's references.
func (p Policy) Apply(net decimal.Decimal, m Measurement) decimal.Decimal {
	return Discount(net, m.Moisture, m.Impurities, p.RefMoisture, p.ShrinkFactor, p.RefImpurities)
}

// Discount returns the weight left after the moisture loss and then the
// impurity loss, the latter computed on the already reduced weight.
// Products are taken before dividing by 100 so no precision is lost in the
// intermediate terms.
func Discount(net, moisture, impurities, refMoisture, shrink, refImpurities decimal.Decimal) decimal.Decimal {
	if net.IsZero() {
		return decimal.Zero
	}
	w := net
	if moisture.GreaterThan(refMoisture) {
		loss := moisture.Sub(refMoisture).Mul(shrink).Mul(w).Div(hundred)
		w = w.Sub(loss)
	}
	if impurities.GreaterThan(refImpurities) {
		loss := impurities.Sub(refImpurities).Mul(w).Div(hundred)
		w = w.Sub(loss)
	}
	return w
}
