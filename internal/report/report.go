package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"camqc-backend/internal/capture"
	"camqc-backend/internal/workflow"
)

type Mode int

const (
	ModeGeneral     Mode = 1
	ModeQC          Mode = 2
	ModeMaintenance Mode = 3

	DefaultTitlePrefix = "Emtech EOAT Report"
)

// ParseMode accepts the numeric mode or its name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "general", "capture", "inspection":
		return ModeGeneral, nil
	case "2", "qc":
		return ModeQC, nil
	case "3", "maintenance", "repair", "maintenance/repair":
		return ModeMaintenance, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return 0, fmt.Errorf("unknown mode %d", n)
	}
	return 0, fmt.Errorf("unknown mode '%s'", s)
}

func (m Mode) String() string {
	switch m {
	case ModeQC:
		return "QC"
	case ModeMaintenance:
		return "Maintenance/Repair"
	default:
		return "Inspection"
	}
}

func Title(prefix string, mode Mode) string {
	if prefix == "" {
		prefix = DefaultTitlePrefix
	}
	return prefix + " - " + mode.String()
}

// Filename is {serial}_{YYYYMMDD_HHMMSS}.{ext}, with "unknown" for a blank serial.
func Filename(serial string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", capture.SerialOrUnknown(serial), t.Format(capture.TimestampLayout), strings.TrimPrefix(ext, "."))
}

type Input struct {
	TitlePrefix  string
	Serial       string
	Description  string
	Technician   string
	Mode         Mode
	WorkflowName string
	Media        []capture.Record
	Checklist    []workflow.ChecklistItem
	GeneratedAt  time.Time
}

func (in Input) title() string {
	return Title(in.TitlePrefix, in.Mode)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

type sessionField struct {
	Label string
	Value string
}

func (in Input) sessionFields() []sessionField {
	fields := []sessionField{
		{"Serial Number", orNA(in.Serial)},
		{"Description", orNA(in.Description)},
		{"Mode", in.Mode.String()},
		{"Date/Time", in.GeneratedAt.Format("2006-01-02 15:04:05")},
	}
	if in.WorkflowName != "" {
		fields = append(fields, sessionField{"Workflow", in.WorkflowName})
	}
	if in.Technician != "" {
		fields = append(fields, sessionField{"Technician", in.Technician})
	}
	return fields
}

func markerNotes(rec capture.Record) []string {
	var notes []string
	for _, m := range rec.Markers {
		if strings.TrimSpace(m.Note) != "" {
			notes = append(notes, fmt.Sprintf("%s: %s", m.Label, m.Note))
		}
	}
	return notes
}

func stepInfo(rec capture.Record) string {
	if rec.Step <= 0 {
		return ""
	}
	if rec.StepTitle != "" {
		return fmt.Sprintf("Step %d: %s", rec.Step, rec.StepTitle)
	}
	return fmt.Sprintf("Step %d", rec.Step)
}

type Generator interface {
	Generate(in Input, dir string) (string, error)
}

type Options struct {
	// ImageJobs bounds the concurrent image decoding done before rendering.
	ImageJobs int
}

// GenerateAll writes the PDF and DOCX reports into dir.
func GenerateAll(in Input, dir string, opts Options) (pdfPath string, docxPath string, err error) {
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = time.Now()
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", "", fmt.Errorf("error creating report dir %s: %w", dir, err)
	}

	media := PrepareMedia(in.Media, opts.ImageJobs)

	pdfPath, err = (&PDFGenerator{media: media}).Generate(in, dir)
	if err != nil {
		return "", "", err
	}

	docxPath, err = (&DOCXGenerator{media: media}).Generate(in, dir)
	if err != nil {
		return pdfPath, "", err
	}

	return pdfPath, docxPath, nil
}

func outputPath(dir string, in Input, ext string) string {
	return capture.UniquePath(filepath.Join(dir, Filename(in.Serial, in.GeneratedAt, ext)))
}
