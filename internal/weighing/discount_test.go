package weighing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDiscount_ScenarioA(t *testing.T) {
	got := Discount(d("9000"), d("16"), d("2"), d("14"), d("1.5"), d("1"))
	assert.True(t, got.Equal(d("8642.7")), "got %s", got)
}

func TestDiscount_MoistureEqualReference(t *testing.T) {
	for _, shrink := range []string{"0", "1.5", "3", "10"} {
		got := Discount(d("9000"), d("14"), d("0"), d("14"), d(shrink), d("1"))
		assert.True(t, got.Equal(d("9000")), "shrink %s: got %s", shrink, got)
	}
}

func TestDiscount_ZeroNet(t *testing.T) {
	got := Discount(decimal.Zero, d("30"), d("10"), d("14"), d("1.5"), d("1"))
	assert.True(t, got.IsZero())
}

func TestDiscount_WithinToleranceIsNoOp(t *testing.T) {
	cases := []struct{ net, m, i string }{
		{"1", "0", "0"},
		{"12500.75", "13.9", "1"},
		{"40000", "14", "0.5"},
	}
	for _, c := range cases {
		got := Discount(d(c.net), d(c.m), d(c.i), d("14"), d("1.5"), d("1"))
		assert.True(t, got.Equal(d(c.net)), "net %s: got %s", c.net, got)
	}
}

func TestDiscount_MonotonicNonIncreasing(t *testing.T) {
	net := d("30000")
	prev := Discount(net, d("10"), d("1"), d("14"), d("1.5"), d("1"))
	for m := 11; m <= 30; m++ {
		cur := Discount(net, decimal.NewFromInt(int64(m)), d("1"), d("14"), d("1.5"), d("1"))
		assert.True(t, cur.LessThanOrEqual(prev), "moisture %d: %s > %s", m, cur, prev)
		prev = cur
	}

	prev = Discount(net, d("16"), d("0"), d("14"), d("1.5"), d("1"))
	for i := 1; i <= 20; i++ {
		cur := Discount(net, d("16"), decimal.NewFromInt(int64(i)), d("14"), d("1.5"), d("1"))
		assert.True(t, cur.LessThanOrEqual(prev), "impurities %d: %s > %s", i, cur, prev)
		prev = cur
	}
}

func TestDiscount_Idempotent(t *testing.T) {
	a := Discount(d("27345.5"), d("17.3"), d("2.4"), d("14"), d("1.5"), d("1"))
	b := Discount(d("27345.5"), d("17.3"), d("2.4"), d("14"), d("1.5"), d("1"))
	assert.True(t, a.Equal(b))
}

func TestDiscount_ImpurityOnReducedWeight(t *testing.T) {
	// 10000 -> moisture loss 2*1*10000/100 = 200 -> 9800 -> impurity loss 98 -> 9702
	got := Discount(d("10000"), d("16"), d("2"), d("14"), d("1"), d("1"))
	assert.True(t, got.Equal(d("9702")), "got %s", got)
}

func TestPolicyApply_UsesDefaults(t *testing.T) {
	p := DefaultPolicy()
	got := p.Apply(Net(d("24000"), d("15000")), Measurement{Moisture: d("16"), Impurities: d("2")})
	assert.True(t, got.Equal(d("8642.7")), "got %s", got)
}
