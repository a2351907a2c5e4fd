package report

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"camqc-backend/internal/workflow"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/common/units"
	"github.com/gomutex/godocx/docx"
)

const (
	docxImageWidthIn    = 6.0
	docxCheckboxWidthIn = 4.0
	maxDescriptionRunes = 200

	colorTitle = "77C25E"
	colorPass  = "4CAF50"
	colorFail  = "F44336"

	docxTableStyle = "TableGrid"
)

type DOCXGenerator struct {
	media []Media
}

func NewDOCXGenerator() *DOCXGenerator {
	return &DOCXGenerator{}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func headingErr(_ *docx.Paragraph, err error) error {
	if err != nil {
		return fmt.Errorf("error adding heading: %w", err)
	}
	return nil
}

func labelled(doc *docx.RootDoc, label, value string) {
	p := doc.AddParagraph("")
	p.AddText(label + ": ").Bold(true)
	p.AddText(value)
}

// picture embeds the image at path scaled to widthIn inches wide.
func picture(doc *docx.RootDoc, path string, w, h int, widthIn float64) error {
	heightIn := widthIn
	if w > 0 && h > 0 {
		heightIn = widthIn * float64(h) / float64(w)
	}
	if _, err := doc.AddPicture(path, units.Inch(widthIn), units.Inch(heightIn)); err != nil {
		return fmt.Errorf("error embedding %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (g *DOCXGenerator) Generate(in Input, dir string) (string, error) {
	media := g.media
	if media == nil {
		media = PrepareMedia(in.Media, 0)
	}

	doc, err := godocx.NewDocument()
	if err != nil {
		return "", fmt.Errorf("error creating docx document: %w", err)
	}

	title := doc.AddParagraph("")
	title.Style("Title")
	title.AddText(in.title()).Bold(true).Color(colorTitle)

	if err := headingErr(doc.AddHeading("Session Information", 1)); err != nil {
		return "", err
	}
	table := doc.AddTable()
	table.Style(docxTableStyle)
	for _, f := range in.sessionFields() {
		row := table.AddRow()
		row.AddCell().AddParagraph("").AddText(f.Label).Bold(true)
		row.AddCell().AddParagraph(f.Value)
	}

	if len(in.Checklist) > 0 {
		if err := headingErr(doc.AddHeading("Checklist Results", 1)); err != nil {
			return "", err
		}
		if err := writeChecklist(doc, in.Checklist); err != nil {
			return "", err
		}
	}

	doc.AddPageBreak()
	if err := headingErr(doc.AddHeading(fmt.Sprintf("Captured Images (%d)", imageCount(media)), 1)); err != nil {
		return "", err
	}
	if len(media) == 0 {
		doc.AddParagraph("No images captured")
	}

	n := 0
	for _, m := range media {
		if m.Missing {
			continue
		}
		name := filepath.Base(m.Path)
		if m.Video {
			if err := headingErr(doc.AddHeading("Video: "+name, 2)); err != nil {
				return "", err
			}
			doc.AddParagraph("").AddText("(Video file - not embedded in report)").Italic(true)
			continue
		}

		n++
		if err := headingErr(doc.AddHeading(fmt.Sprintf("Image %d: %s", n, name), 2)); err != nil {
			return "", err
		}
		if m.Camera != "" {
			labelled(doc, "Camera", m.Camera)
		}
		if !m.Timestamp.IsZero() {
			labelled(doc, "Captured", m.Timestamp.Format("2006-01-02 15:04:05"))
		}
		if s := stepInfo(m.Record); s != "" {
			doc.AddParagraph(s)
		}
		if strings.TrimSpace(m.Notes) != "" {
			labelled(doc, "Notes", m.Notes)
		}
		if notes := markerNotes(m.Record); len(notes) > 0 {
			doc.AddParagraph("").AddText("Marker Notes:").Bold(true)
			for _, note := range notes {
				doc.AddParagraph("• " + note).Style("List Bullet")
			}
		}

		if !m.Embeddable() {
			doc.AddParagraph("").AddText("Error loading image").Color(colorFail)
			continue
		}
		if err := picture(doc, m.Path, m.Width, m.Height, docxImageWidthIn); err != nil {
			return "", err
		}
	}

	path := outputPath(dir, in, "docx")
	if err := doc.SaveTo(path); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("error writing docx report %s: %w", path, err)
	}
	return path, nil
}

// writeChecklist writes one status line per step, its description cut to
// maxDescriptionRunes, and the inspection point overlay when there is one.
func writeChecklist(doc *docx.RootDoc, items []workflow.ChecklistItem) error {
	for _, item := range items {
		p := doc.AddParagraph("")
		p.AddText(item.Name).Bold(true)
		if item.Passed {
			p.AddText(" - ✓ Pass").Bold(true).Color(colorPass)
		} else {
			p.AddText(" - ✗ Fail").Bold(true).Color(colorFail)
		}

		if desc := strings.TrimSpace(item.Description); desc != "" {
			doc.AddParagraph("").AddText(truncate(desc, maxDescriptionRunes)).Italic(true)
		}

		if item.CheckboxImage == "" {
			continue
		}
		w, h, err := imageInfo(item.CheckboxImage)
		if err != nil {
			doc.AddParagraph("").AddText("Error loading checkbox image: " + err.Error()).Italic(true)
			continue
		}
		if err := headingErr(doc.AddHeading(item.Name+" - Inspection Points", 2)); err != nil {
			return err
		}
		if err := picture(doc, item.CheckboxImage, w, h, docxCheckboxWidthIn); err != nil {
			return err
		}
	}
	return nil
}

func imageInfo(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	if format != "jpeg" && format != "png" {
		return 0, 0, fmt.Errorf("unsupported image format %s", format)
	}
	return cfg.Width, cfg.Height, nil
}
