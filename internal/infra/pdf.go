package infra

// pdf.go: loading ticket ("romaneio") generation using go-pdf/fpdf.
// One A5 page per shipment with:
//   - Farm and destination header
//   - Vehicle and driver
//   - Weighing table (gross, tare, net, quality, discounted weights)
//   - Fiscal summary when the shipment carries an NF-e
//
// The output file is saved to storagePath/romaneio_{id}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/fiscal"
	"github.com/DiogoPalharini/fazendaimperial-sub000/internal/model"
	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

var modeLabels = map[string]string{
	string(fiscal.ModeInternal): "Interno",
	string(fiscal.ModeTransfer): "Remessa para armazem",
	string(fiscal.ModeSale):     "Venda",
}

// GenerateRomaneioPDF renders the loading ticket of a persisted shipment.
// Returns the absolute path to the generated file.
func GenerateRomaneioPDF(s *model.Shipment, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("romaneio_%s.pdf", s.ID))

	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(8, 8, 8)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 16
	half := contentW / 2

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, "ROMANEIO DE CARREGAMENTO", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, tr(modeLabels[s.Mode]), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(contentW*0.35, 5, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(contentW*0.65, 5, tr(value), "", 1, "L", false, 0, "")
	}
	separator := func() {
		pdf.Ln(1)
		pdf.Line(8, pdf.GetY(), pageW-8, pdf.GetY())
		pdf.Ln(2)
	}

	row("Numero:", s.ID.String()[:8])
	row("Data:", s.ScheduledAt.Format("02/01/2006 15:04"))
	row("Fazenda:", s.FarmName)
	row("Talhao:", s.FieldName)
	row("Produto:", joinNonEmpty(s.Product, s.Variety))
	row("Destino:", s.DestinationName)
	separator()

	// ── Vehicle ──────────────────────────────────────────────────────────────
	row("Placa:", s.Plate)
	row("Motorista:", s.DriverName)
	if s.DriverDocument != "" {
		row("Documento:", s.DriverDocument)
	}
	separator()

	// ── Weighing ─────────────────────────────────────────────────────────────
	w := s.Weighing
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(half, 5, "Pesagem", "B", 0, "L", false, 0, "")
	pdf.CellFormat(half, 5, "kg / %", "B", 1, "R", false, 0, "")
	weigh := func(label string, v decimal.NullDecimal, places int32) {
		if !v.Valid {
			return
		}
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(half, 5, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(half, 5, v.Decimal.StringFixed(places), "", 1, "R", false, 0, "")
	}
	weigh("Peso bruto", w.Gross, 2)
	weigh("Tara", w.Tare, 2)
	weigh("Peso liquido", w.Net, 2)
	weigh("Umidade", w.Moisture, 2)
	weigh("Impureza", w.Impurities, 2)
	weigh("Descontado (fazenda)", w.FarmDiscounted, 2)
	weigh("Descontado (armazem)", w.WarehouseDiscounted, 2)
	weigh("Descontado (empresa)", w.CompanyDiscounted, 2)
	if w.FinalWeight.Valid {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(half, 6, "PESO FINAL", "", 0, "L", false, 0, "")
		pdf.CellFormat(half, 6, w.FinalWeight.Decimal.StringFixed(2), "", 1, "R", false, 0, "")
	}

	// ── Fiscal ───────────────────────────────────────────────────────────────
	if fiscal.Mode(s.Mode).IsFiscal() {
		separator()
		f := s.Fiscal
		row("Natureza:", f.Nature)
		row("CFOP:", f.CFOP)
		row("Destinatario:", f.Recipient.LegalName)
		row("CNPJ/CPF:", f.Recipient.TaxID)
		row("Municipio/UF:", joinNonEmpty(f.Recipient.City, f.Recipient.UF))
		if f.Carrier.Name != "" {
			row("Transportador:", f.Carrier.Name)
		}
		if s.Document.AccessKey != "" {
			row("Chave NF-e:", s.Document.AccessKey)
		}
		row("Situacao NF-e:", s.Document.Status)
	}

	// ── Footer ────────────────────────────────────────────────────────────────
	pdf.Ln(10)
	pdf.Line(8+half/4, pdf.GetY(), 8+half*1.75, pdf.GetY())
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "Assinatura do motorista", "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " / " + b
}
