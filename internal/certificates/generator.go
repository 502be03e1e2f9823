// Package certificates renders CME attendance certificates as PDF.
package certificates

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Generator renders attendance certificates. Safe for concurrent use; each
// call builds its own document.
type Generator struct {
	issuer string
	now    func() time.Time
}

// NewGenerator creates a certificate generator. issuer is the organization
// name printed on the certificate.
func NewGenerator(issuer string) *Generator {
	return &Generator{issuer: issuer, now: time.Now}
}

// WithClock overrides the issue-date clock. Used by tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate renders a landscape A4 certificate for one attendee.
func (g *Generator) Generate(name, conferenceName string) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Certificate of Attendance", true)
	pdf.AddPage()

	w, h := pdf.GetPageSize()
	pdf.SetLineWidth(1.2)
	pdf.SetDrawColor(30, 60, 110)
	pdf.Rect(10, 10, w-20, h-20, "D")

	pdf.SetFont("Helvetica", "B", 30)
	pdf.SetTextColor(30, 60, 110)
	pdf.SetY(45)
	pdf.CellFormat(0, 14, "Certificate of Attendance", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 14)
	pdf.SetTextColor(60, 60, 60)
	pdf.Ln(10)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(20, 20, 20)
	pdf.Ln(4)
	pdf.CellFormat(0, 12, name, "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 14)
	pdf.SetTextColor(60, 60, 60)
	pdf.Ln(4)
	pdf.CellFormat(0, 8, "attended", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(30, 60, 110)
	pdf.Ln(2)
	pdf.CellFormat(0, 10, conferenceName, "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(100, 100, 100)
	pdf.SetY(h - 40)
	issued := fmt.Sprintf("Issued by %s on %s", g.issuer, g.now().UTC().Format("January 2, 2006"))
	pdf.CellFormat(0, 6, issued, "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
