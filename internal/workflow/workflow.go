package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

var (
	ErrValidation  = errors.New("invalid workflow")
	ErrNotFound    = errors.New("workflow not found")
	ErrRequirement = errors.New("step requirement not met")
)

// Checkbox is an inspection point on a step's reference image, given as
// fractions of the image size. Values outside [0,1] are accepted as is.
type Checkbox struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

type Step struct {
	Title                string     `json:"title" yaml:"title"`
	Instructions         string     `json:"instructions" yaml:"instructions"`
	ReferenceImage       string     `json:"reference_image,omitempty" yaml:"reference_image,omitempty"`
	RequirePhoto         bool       `json:"require_photo" yaml:"require_photo"`
	RequireAnnotations   bool       `json:"require_annotations" yaml:"require_annotations"`
	RequirePassFail      bool       `json:"require_pass_fail" yaml:"require_pass_fail"`
	InspectionCheckboxes []Checkbox `json:"inspection_checkboxes,omitempty" yaml:"inspection_checkboxes,omitempty"`
}

type Workflow struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// rawWorkflow is used to tell a missing steps array apart from an empty one.
type rawWorkflow struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Steps       *[]Step `json:"steps" yaml:"steps"`
}

// Fallback is substituted whenever a workflow document cannot be loaded.
func Fallback() Workflow {
	return Workflow{Name: "Error", Steps: []Step{}}
}

func isYAML(ext string) bool {
	ext = strings.ToLower(ext)
	return ext == ".yaml" || ext == ".yml" || ext == "yaml" || ext == "yml"
}

// Parse decodes a workflow document. The format is picked from ext, JSON
// unless ext names a YAML file.
func Parse(data []byte, ext string) (Workflow, error) {
	var raw rawWorkflow
	var err error
	if isYAML(ext) {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return Workflow{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if raw.Steps == nil {
		return Workflow{}, fmt.Errorf("%w: missing steps array", ErrValidation)
	}

	return Workflow{Name: raw.Name, Description: raw.Description, Steps: *raw.Steps}, nil
}

// LoadFile reads a workflow from disk. On failure the error is logged and the
// fallback workflow is returned alongside it.
func LoadFile(path string) (Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("error reading workflow file", "path", path, "error", err)
		return Fallback(), fmt.Errorf("error reading workflow %s: %w", path, err)
	}

	wf, err := Parse(data, filepath.Ext(path))
	if err != nil {
		slog.Error("error parsing workflow file", "path", path, "error", err)
		return Fallback(), fmt.Errorf("error parsing workflow %s: %w", path, err)
	}

	return wf, nil
}

// Slug is the file stem used when a workflow is saved under its name.
func Slug(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

func Filename(name string) string {
	return Slug(name) + ".json"
}

func (wf *Workflow) Validate() error {
	if strings.TrimSpace(wf.Name) == "" {
		return fmt.Errorf("%w: workflow name is required", ErrValidation)
	}
	if len(wf.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", ErrValidation)
	}
	return nil
}

// Requirements lists the human readable requirements of a step.
func Requirements(step Step) []string {
	var reqs []string
	if step.RequirePhoto {
		reqs = append(reqs, "Photo required")
	}
	if step.RequireAnnotations {
		reqs = append(reqs, "Annotations required")
	}
	if step.RequirePassFail {
		reqs = append(reqs, "Pass/Fail required")
	}
	if n := len(step.InspectionCheckboxes); n > 0 {
		reqs = append(reqs, fmt.Sprintf("%d inspection points", n))
	}
	return reqs
}

type StepSummary struct {
	Title        string
	Requirements []string
}

type Summary struct {
	Name        string
	Description string
	Slug        string
	Path        string
	StepCount   int
	Steps       []StepSummary
}

func Summarize(wf Workflow, path string) Summary {
	s := Summary{
		Name:        wf.Name,
		Description: wf.Description,
		Slug:        strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:        path,
		StepCount:   len(wf.Steps),
	}
	for i, step := range wf.Steps {
		title := step.Title
		if title == "" {
			title = fmt.Sprintf("Step %d", i+1)
		}
		s.Steps = append(s.Steps, StepSummary{Title: title, Requirements: Requirements(step)})
	}
	return s
}
