package report_test

import (
	"archive/zip"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"camqc-backend/internal/capture"
	"camqc-backend/internal/report"
	"camqc-backend/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func writeImage(t *testing.T, dir, name string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, capture.SaveJPEG(path, solidImage(64, 48)))
	return path
}

func readZipEntry(t *testing.T, path, name string) string {
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(data)
		}
	}
	t.Fatalf("zip entry %s not found", name)
	return ""
}

func mediaCount(entries []string) int {
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e, "word/media/") {
			n++
		}
	}
	return n
}

func zipEntries(t *testing.T, path string) []string {
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestParseMode(t *testing.T) {
	for input, expected := range map[string]report.Mode{
		"1":           report.ModeGeneral,
		"2":           report.ModeQC,
		"QC":          report.ModeQC,
		"3":           report.ModeMaintenance,
		"maintenance": report.ModeMaintenance,
	} {
		mode, err := report.ParseMode(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, mode, input)
	}

	_, err := report.ParseMode("7")
	assert.Error(t, err)
	_, err = report.ParseMode("audit")
	assert.Error(t, err)
}

func TestTitleAndFilename(t *testing.T) {
	assert.Equal(t, "Emtech EOAT Report - QC", report.Title("", report.ModeQC))
	assert.Equal(t, "Acme - Maintenance/Repair", report.Title("Acme", report.ModeMaintenance))
	assert.Equal(t, "Acme - Inspection", report.Title("Acme", report.ModeGeneral))

	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "SN-1_20240309_140507.pdf", report.Filename("SN-1", ts, "pdf"))
	assert.Equal(t, "unknown_20240309_140507.docx", report.Filename("  ", ts, ".docx"))
}

func TestGenerateAll(t *testing.T) {
	dir := t.TempDir()
	img1 := writeImage(t, dir, "a.jpg")
	img2 := writeImage(t, dir, "b.jpg")
	img3 := writeImage(t, dir, "c.jpg")
	clip := filepath.Join(dir, "clip.avi")
	require.NoError(t, os.WriteFile(clip, []byte("RIFF"), 0644))

	in := report.Input{
		Serial:       "SN-42",
		Description:  strings.Repeat("x", 250),
		Technician:   "Pat",
		Mode:         report.ModeQC,
		WorkflowName: "EOAT QC",
		Media: []capture.Record{
			{Path: img1, Camera: "Camera 0", Notes: "scratch", Type: capture.TypeImage, Step: 1, StepTitle: "Inspect",
				Markers: []capture.Marker{{Label: "A", X: 10, Y: 10, Angle: 45, Note: "dent"}}},
			{Path: img2, Camera: "Camera 0", Type: capture.TypeImage},
			{Path: img3, Camera: "Camera 1", Type: capture.TypeImage},
			{Path: filepath.Join(dir, "gone.jpg"), Type: capture.TypeImage},
			{Path: clip, Type: capture.TypeVideo},
		},
		Checklist: []workflow.ChecklistItem{
			{Step: 1, Name: "Inspect", Passed: true, Description: "INSPECT-" + strings.Repeat("y", 250)},
			{Step: 2, Name: "Torque", Passed: false, Description: "Torque all bolts"},
		},
		GeneratedAt: time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC),
	}

	pdfPath, docxPath, err := report.GenerateAll(in, filepath.Join(dir, "reports"), report.Options{ImageJobs: 2})
	require.NoError(t, err)

	assert.Equal(t, "SN-42_20240309_140507.pdf", filepath.Base(pdfPath))
	assert.Equal(t, "SN-42_20240309_140507.docx", filepath.Base(docxPath))

	pdf, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))

	entries := zipEntries(t, docxPath)
	assert.Contains(t, entries, "[Content_Types].xml")
	assert.Contains(t, entries, "word/document.xml")
	assert.Contains(t, entries, "word/styles.xml")
	assert.Contains(t, entries, "word/_rels/document.xml.rels")
	assert.Equal(t, 3, mediaCount(entries))

	doc := readZipEntry(t, docxPath, "word/document.xml")
	assert.Contains(t, doc, "Emtech EOAT Report - QC")
	assert.Contains(t, doc, "✓ Pass")
	assert.Contains(t, doc, "✗ Fail")
	assert.Contains(t, doc, "Captured Images (3)")
	assert.Contains(t, doc, "A: dent")
	assert.Contains(t, doc, "Step 1: Inspect")
	assert.Contains(t, doc, "(Video file - not embedded in report)")
	// The session description is kept whole; step descriptions are cut at 200 characters.
	assert.Contains(t, doc, strings.Repeat("x", 250))
	assert.Contains(t, doc, "INSPECT-"+strings.Repeat("y", 192)+"...")
	assert.NotContains(t, doc, strings.Repeat("y", 193))
	assert.Contains(t, doc, "Torque all bolts")
	assert.NotContains(t, doc, "gone.jpg")

	// A second run in the same second must not overwrite the first report.
	pdfPath2, docxPath2, err := report.GenerateAll(in, filepath.Join(dir, "reports"), report.Options{})
	require.NoError(t, err)
	assert.Equal(t, "SN-42_20240309_140507_2.pdf", filepath.Base(pdfPath2))
	assert.Equal(t, "SN-42_20240309_140507_2.docx", filepath.Base(docxPath2))
}

func TestGenerateWithoutMedia(t *testing.T) {
	dir := t.TempDir()
	in := report.Input{Mode: report.ModeGeneral, GeneratedAt: time.Now()}

	docxPath, err := report.NewDOCXGenerator().Generate(in, dir)
	require.NoError(t, err)

	doc := readZipEntry(t, docxPath, "word/document.xml")
	assert.Contains(t, doc, "No images captured")
	assert.Contains(t, doc, "N/A")
	assert.NotContains(t, doc, "Checklist Results")

	pdfPath, err := report.NewPDFGenerator().Generate(in, dir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(pdfPath), "unknown_"))
}

func TestCheckboxImageInDocx(t *testing.T) {
	dir := t.TempDir()
	overlay := writeImage(t, dir, "points.jpg")

	in := report.Input{
		Serial:      "SN-1",
		Mode:        report.ModeQC,
		GeneratedAt: time.Now(),
		Checklist: []workflow.ChecklistItem{
			{Step: 1, Name: "Gripper", Passed: true, CheckboxImage: overlay},
		},
	}

	docxPath, err := report.NewDOCXGenerator().Generate(in, dir)
	require.NoError(t, err)

	assert.Equal(t, 1, mediaCount(zipEntries(t, docxPath)))
	doc := readZipEntry(t, docxPath, "word/document.xml")
	assert.Contains(t, doc, "Gripper - Inspection Points")
	// 4in wide at 914400 EMU per inch.
	assert.Contains(t, doc, `cx="3657600"`)
}

func TestPrepareMedia(t *testing.T) {
	dir := t.TempDir()
	img := writeImage(t, dir, "a.jpg")
	bad := filepath.Join(dir, "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))

	media := report.PrepareMedia([]capture.Record{
		{Path: img},
		{Path: bad},
		{Path: filepath.Join(dir, "missing.jpg")},
		{Path: filepath.Join(dir, "clip.avi")},
	}, 2)
	require.Len(t, media, 4)

	assert.True(t, media[0].Embeddable())
	assert.Equal(t, 64, media[0].Width)
	assert.Equal(t, 48, media[0].Height)

	assert.False(t, media[1].Embeddable())
	assert.Error(t, media[1].Err)

	assert.True(t, media[2].Missing)
	assert.True(t, media[3].Missing)
	assert.True(t, media[3].Video)
}
