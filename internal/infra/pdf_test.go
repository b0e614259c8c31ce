package infra

import (
	"os"
	"testing"
	"time"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRomaneioPDF(t *testing.T) {
	s := &model.Shipment{
		ID:          uuid.New(),
		ScheduledAt: time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC),
		Mode:        "venda",
		Plate:       "ABC1D23",
		DriverName:  "João da Silva",
		FarmName:    "Fazenda Imperial",
		Product:     "Soja",
	}
	s.Weighing.Gross = decimal.NewNullDecimal(decimal.NewFromInt(40000))
	s.Weighing.Tare = decimal.NewNullDecimal(decimal.NewFromInt(15000))
	s.Weighing.Net = decimal.NewNullDecimal(decimal.NewFromInt(25000))
	s.Fiscal.CFOP = "6101"
	s.Fiscal.Recipient.LegalName = "Cerealista Goiás SA"
	s.Document.Status = "autorizado"

	path, err := GenerateRomaneioPDF(s, t.TempDir())
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(500))
	assert.Contains(t, path, s.ID.String())
}
