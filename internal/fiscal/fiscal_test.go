package fiscal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferCFOP_AllRegionPairs(t *testing.T) {
	for _, a := range UFs {
		for _, b := range UFs {
			want := CFOPTransferOtherState
			if a == b {
				want = CFOPTransferSameState
			}
			assert.Equal(t, want, ResolveCFOP(ModeTransfer, a, b, "5101"), "%s -> %s", a, b)
		}
	}
}

func TestResolveCFOP_ByMode(t *testing.T) {
	assert.Equal(t, "", ResolveCFOP(ModeInternal, "MT", "MT", "5905"))
	assert.Equal(t, "6102", ResolveCFOP(ModeSale, "MT", "MT", "6102"))
	assert.Equal(t, "", ResolveCFOP(ModeTransfer, "MT", "", "5905"))
	assert.Equal(t, CFOPTransferSameState, ResolveCFOP(ModeTransfer, "mt ", "MT", ""))
}

func TestValidateSaleCFOP(t *testing.T) {
	assert.NoError(t, ValidateSaleCFOP("5101", "MT", "MT"))
	assert.NoError(t, ValidateSaleCFOP("6102", "MT", "GO"))
	assert.NoError(t, ValidateSaleCFOP("6101", "", "GO"))
	assert.ErrorIs(t, ValidateSaleCFOP("5905", "MT", "MT"), ErrUnknownSaleCFOP)
	assert.ErrorIs(t, ValidateSaleCFOP("5101", "MT", "GO"), ErrCFOPStateMismatch)
	assert.ErrorIs(t, ValidateSaleCFOP("6101", "MT", "MT"), ErrCFOPStateMismatch)
}

func TestDefaultsFor(t *testing.T) {
	tr := DefaultsFor(ModeTransfer)
	assert.Equal(t, NatureTransfer, tr.Nature)
	assert.Equal(t, FreightIssuer, tr.FreightPayer)
	assert.Equal(t, PaymentNone, tr.PaymentCode)
	assert.True(t, tr.RecipientRequired)

	sale := DefaultsFor(ModeSale)
	assert.Equal(t, FreightNone, sale.FreightPayer)
	assert.Empty(t, sale.PaymentCode)

	assert.Equal(t, ModeDefaults{}, DefaultsFor(ModeInternal))
}

func TestShowsCarrier(t *testing.T) {
	assert.False(t, ShowsCarrier(ModeInternal, false))
	assert.True(t, ShowsCarrier(ModeTransfer, false))
	assert.False(t, ShowsCarrier(ModeTransfer, true))
	assert.True(t, ShowsCarrier(ModeSale, true))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeInternal, m)

	m, err = ParseMode("venda")
	require.NoError(t, err)
	assert.Equal(t, ModeSale, m)

	_, err = ParseMode("exportacao")
	assert.Error(t, err)
}

func TestParseExternalStatus(t *testing.T) {
	assert.Equal(t, StatusAuthorized, ParseExternalStatus("AUTORIZADO"))
	assert.Equal(t, StatusError, ParseExternalStatus("rejeitado"))
	assert.Equal(t, StatusPending, ParseExternalStatus("processando"))
	assert.Equal(t, StatusNone, ParseExternalStatus(" "))
}

func TestAdvance_AuthorizedIsTerminal(t *testing.T) {
	assert.Equal(t, StatusAuthorized, Advance(StatusAuthorized, StatusError))
	assert.Equal(t, StatusAuthorized, Advance(StatusAuthorized, StatusPending))
	assert.Equal(t, StatusPending, Advance(StatusError, StatusPending))
	assert.Equal(t, StatusError, Advance(StatusError, StatusNone))
	assert.Equal(t, StatusNone, Advance("", ""))
}

func TestValidTaxID(t *testing.T) {
	assert.True(t, ValidTaxID("11.222.333/0001-81"))
	assert.True(t, ValidTaxID("529.982.247-25"))
	assert.False(t, ValidTaxID("11.222.333/0001-82"))
	assert.False(t, ValidTaxID("00000000000000"))
	assert.False(t, ValidTaxID("1234"))
}

func TestDigitsHelpers(t *testing.T) {
	assert.Equal(t, "78000000", OnlyDigits("78000-000"))
	assert.True(t, IsCEP("78.000-000"))
	assert.True(t, IsCNPJ("11.222.333/0001-81"))
	assert.False(t, IsCNPJ("529.982.247-25"))
	assert.True(t, ValidUF("mt"))
	assert.False(t, ValidUF("XX"))
}
