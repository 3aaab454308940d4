package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// PDFDocument is the content rendered by PDF. Empty sections are skipped.
type PDFDocument struct {
	Title      string
	Subtitle   string
	Summary    string
	Transcript string
}

const (
	pdfMargin       = 48.0
	pdfTitleSize    = 20.0
	pdfSubtitleSize = 12.0
	pdfHeadingSize  = 14.0
	pdfBodySize     = 11.0
)

// PDF renders a summary document and returns it as a
// data:application/pdf;base64 URL. Pages are US Letter with automatic page
// breaks; long paragraphs wrap at the margins.
func PDF(doc PDFDocument) (string, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AddPage()

	width, _ := pdf.GetPageSize()
	usable := width - 2*pdfMargin

	title := doc.Title
	if title == "" {
		title = "Workflow Summary"
	}
	pdf.SetFont("Helvetica", "B", pdfTitleSize)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(usable, pdfTitleSize*1.3, title, "", "L", false)

	subtitle := doc.Subtitle
	if subtitle == "" {
		subtitle = time.Now().Format("January 2, 2006")
	}
	pdf.SetFont("Helvetica", "", pdfSubtitleSize)
	pdf.SetTextColor(120, 120, 120)
	pdf.MultiCell(usable, pdfSubtitleSize*1.4, subtitle, "", "L", false)
	pdf.Ln(pdfBodySize)

	writeSection := func(heading, body string) {
		if body == "" {
			return
		}
		pdf.SetFont("Helvetica", "B", pdfHeadingSize)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(usable, pdfHeadingSize*1.4, heading, "", "L", false)
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "", pdfBodySize)
		pdf.SetTextColor(40, 40, 40)
		pdf.MultiCell(usable, pdfBodySize*1.5, body, "", "L", false)
		pdf.Ln(pdfBodySize)
	}

	writeSection("Summary", doc.Summary)
	writeSection("Full Transcript", doc.Transcript)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return "", fmt.Errorf("render pdf: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	return "data:application/pdf;base64," + encoded, nil
}
