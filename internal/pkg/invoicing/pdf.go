package invoicing

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/invisifeed/invisifeed/app/models"
)

// RenderData bundles everything the PDF layout needs.
type RenderData struct {
	BusinessName string
	Invoice      *models.Invoice
	FeedbackURL  string
	QRCodePNG    []byte
}

// PDFRenderer produces the invoice document. Tests substitute a stub.
type PDFRenderer interface {
	Render(data RenderData) ([]byte, error)
}

// FPDFRenderer renders invoices with a simple single-page A4 layout.
type FPDFRenderer struct{}

func (FPDFRenderer) Render(data RenderData) ([]byte, error) {
	inv := data.Invoice

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Invoice %s", inv.InvoiceNumber), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, data.BusinessName, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Invoice %s", inv.InvoiceNumber), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Issued %s", inv.CreatedAt.Format("02 Jan 2006")), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, "Billed to", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, inv.CustomerName, "", 1, "L", false, 0, "")
	if inv.CustomerEmail != "" {
		pdf.CellFormat(0, 7, inv.CustomerEmail, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, fmt.Sprintf("Amount due: %.2f %s", inv.AmountDue, inv.Currency), "", 1, "L", false, 0, "")

	if len(data.QRCodePNG) > 0 {
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("feedback-qr", opts, bytes.NewReader(data.QRCodePNG))
		pdf.ImageOptions("feedback-qr", 150, 20, 40, 40, false, opts, 0, "")
	}

	pdf.Ln(10)
	if inv.ThankYouNote != "" {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 6, inv.ThankYouNote, "", "L", false)
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 5, fmt.Sprintf("How did we do? Scan the QR code or visit %s to leave feedback. Responses can be anonymous.", data.FeedbackURL), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output failed: %w", err)
	}
	return buf.Bytes(), nil
}
