package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin      = 18.0
	pdfImageMaxW   = 152.4 // 6in
	pdfImageMaxH   = 114.3 // 4.5in
	imagesPerPage  = 2
	pdfLineHeight  = 6.0
	pdfLabelWidth  = 45.0
	pdfStatusWidth = 30.0
)

type PDFGenerator struct {
	media []Media
}

func NewPDFGenerator() *PDFGenerator {
	return &PDFGenerator{}
}

func (g *PDFGenerator) Generate(in Input, dir string) (string, error) {
	media := g.media
	if media == nil {
		media = PrepareMedia(in.Media, 0)
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*pdfMargin

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(0x77, 0xC2, 0x5E)
	pdf.CellFormat(contentW, 12, tr(in.title()), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	heading := func(text string) {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(contentW, 9, tr(text), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
	}

	heading("Session Information")
	for _, f := range in.sessionFields() {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(pdfLabelWidth, pdfLineHeight+1, tr(f.Label), "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(contentW-pdfLabelWidth, pdfLineHeight+1, tr(f.Value), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	if len(in.Checklist) > 0 {
		heading("Checklist Results")
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetFillColor(0xE0, 0xE0, 0xE0)
		pdf.CellFormat(contentW-pdfStatusWidth, pdfLineHeight+1, "Item", "1", 0, "L", true, 0, "")
		pdf.CellFormat(pdfStatusWidth, pdfLineHeight+1, "Status", "1", 1, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for _, item := range in.Checklist {
			pdf.CellFormat(contentW-pdfStatusWidth, pdfLineHeight+1, tr(item.Name), "1", 0, "L", false, 0, "")
			if item.Passed {
				pdf.SetTextColor(0x4C, 0xAF, 0x50)
				pdf.CellFormat(pdfStatusWidth, pdfLineHeight+1, "PASS", "1", 1, "C", false, 0, "")
			} else {
				pdf.SetTextColor(0xF4, 0x43, 0x36)
				pdf.CellFormat(pdfStatusWidth, pdfLineHeight+1, "FAIL", "1", 1, "C", false, 0, "")
			}
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.Ln(6)
	}

	heading(fmt.Sprintf("Captured Images (%d)", imageCount(media)))

	if len(media) == 0 {
		pdf.CellFormat(contentW, pdfLineHeight, "No images captured", "", 1, "L", false, 0, "")
	}

	placed := 0
	for _, m := range media {
		if m.Missing {
			continue
		}

		name := filepath.Base(m.Path)
		if m.Video {
			pdf.SetFont("Helvetica", "B", 11)
			pdf.MultiCell(contentW, pdfLineHeight, tr("Video: "+name), "", "L", false)
			pdf.SetFont("Helvetica", "I", 10)
			pdf.MultiCell(contentW, pdfLineHeight, "(Video file - not embedded in report)", "", "L", false)
			pdf.Ln(3)
			continue
		}

		if placed > 0 && placed%imagesPerPage == 0 {
			pdf.AddPage()
		}
		placed++

		pdf.SetFont("Helvetica", "B", 11)
		pdf.MultiCell(contentW, pdfLineHeight, tr(fmt.Sprintf("Image %d: %s", placed, name)), "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		for _, line := range details(m) {
			pdf.MultiCell(contentW, pdfLineHeight-1, tr(line), "", "L", false)
		}

		if !m.Embeddable() {
			pdf.SetTextColor(0xF4, 0x43, 0x36)
			pdf.MultiCell(contentW, pdfLineHeight, "Error loading image", "", "L", false)
			pdf.SetTextColor(0, 0, 0)
			pdf.Ln(3)
			continue
		}

		w, h := fit(m.Width, m.Height, pdfImageMaxW, pdfImageMaxH)
		opts := fpdf.ImageOptions{ImageType: strings.ToUpper(imageType(m.Format)), ReadDpi: false}
		pdf.ImageOptions(m.Path, pdfMargin+(contentW-w)/2, pdf.GetY()+2, w, h, true, opts, 0, "")
		pdf.Ln(6)
	}

	if err := pdf.Error(); err != nil {
		return "", fmt.Errorf("error rendering pdf report: %w", err)
	}

	path := outputPath(dir, in, "pdf")
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("error writing pdf report %s: %w", path, err)
	}
	return path, nil
}

func imageType(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

func details(m Media) []string {
	var lines []string
	if m.Camera != "" {
		lines = append(lines, "Camera: "+m.Camera)
	}
	if !m.Timestamp.IsZero() {
		lines = append(lines, "Captured: "+m.Timestamp.Format("2006-01-02 15:04:05"))
	}
	if s := stepInfo(m.Record); s != "" {
		lines = append(lines, s)
	}
	if strings.TrimSpace(m.Notes) != "" {
		lines = append(lines, "Notes: "+m.Notes)
	}
	for _, note := range markerNotes(m.Record) {
		lines = append(lines, "- "+note)
	}
	return lines
}
