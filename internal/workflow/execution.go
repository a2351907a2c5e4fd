package workflow

import (
	"fmt"
	"strings"

	"camqc-backend/internal/capture"
)

type ChecklistItem struct {
	Step          int    `json:"step"`
	Name          string `json:"name"`
	Passed        bool   `json:"passed"`
	Description   string `json:"description"`
	CheckboxImage string `json:"checkbox_image,omitempty"`
}

// State is the resumable part of an execution.
type State struct {
	CurrentStep    int
	Results        map[int]bool
	CheckboxStates map[int][]bool
	Captures       []capture.Record
}

// Execution tracks a technician's progress through a workflow. It is not safe
// for concurrent use; the owning session serializes access.
type Execution struct {
	workflow   Workflow
	path       string
	current    int
	captures   []capture.Record
	results    map[int]bool
	checkboxes map[int][]bool
	finished   bool
}

func NewExecution(wf Workflow, path string) (*Execution, error) {
	if len(wf.Steps) == 0 {
		return nil, fmt.Errorf("%w: workflow '%s' has no steps", ErrValidation, wf.Name)
	}

	e := &Execution{
		workflow:   wf,
		path:       path,
		results:    make(map[int]bool),
		checkboxes: make(map[int][]bool),
	}
	for i, step := range wf.Steps {
		if n := len(step.InspectionCheckboxes); n > 0 {
			e.checkboxes[i] = make([]bool, n)
		}
	}
	return e, nil
}

// Restore rebuilds an execution from saved state. Checkbox state is resized
// to the workflow's current checkbox counts and the step index is clamped.
func Restore(wf Workflow, path string, state State) (*Execution, error) {
	e, err := NewExecution(wf, path)
	if err != nil {
		return nil, err
	}

	e.current = max(0, min(state.CurrentStep, len(wf.Steps)-1))

	for step, pass := range state.Results {
		if step >= 0 && step < len(wf.Steps) {
			e.results[step] = pass
		}
	}

	for step, saved := range state.CheckboxStates {
		boxes, ok := e.checkboxes[step]
		if !ok {
			continue
		}
		copy(boxes, saved)
	}

	e.captures = append(e.captures, state.Captures...)

	return e, nil
}

func (e *Execution) State() State {
	state := State{
		CurrentStep:    e.current,
		Results:        make(map[int]bool, len(e.results)),
		CheckboxStates: make(map[int][]bool, len(e.checkboxes)),
		Captures:       append([]capture.Record(nil), e.captures...),
	}
	for k, v := range e.results {
		state.Results[k] = v
	}
	for k, v := range e.checkboxes {
		state.CheckboxStates[k] = append([]bool(nil), v...)
	}
	return state
}

func (e *Execution) Workflow() Workflow { return e.workflow }

func (e *Execution) Path() string { return e.path }

func (e *Execution) CurrentStep() int { return e.current }

func (e *Execution) StepCount() int { return len(e.workflow.Steps) }

func (e *Execution) Step() Step { return e.workflow.Steps[e.current] }

func (e *Execution) IsLast() bool { return e.current == len(e.workflow.Steps)-1 }

func (e *Execution) Finished() bool { return e.finished }

func (e *Execution) stepTitle(i int) string {
	if t := e.workflow.Steps[i].Title; t != "" {
		return t
	}
	return fmt.Sprintf("Step %d", i+1)
}

// AddCapture attaches a capture to the current step.
func (e *Execution) AddCapture(rec capture.Record) capture.Record {
	rec.Step = e.current + 1
	rec.StepTitle = e.workflow.Steps[e.current].Title
	e.captures = append(e.captures, rec)
	return rec
}

func (e *Execution) Captures() []capture.Record {
	return append([]capture.Record(nil), e.captures...)
}

// StepCaptures returns the captures of the zero based step index.
func (e *Execution) StepCaptures(step int) []capture.Record {
	var out []capture.Record
	for _, rec := range e.captures {
		if rec.Step == step+1 {
			out = append(out, rec)
		}
	}
	return out
}

func (e *Execution) findCapture(path string) int {
	for i, rec := range e.captures {
		if rec.Path == path {
			return i
		}
	}
	return -1
}

// UpdateCapture applies fn to the capture stored under path.
func (e *Execution) UpdateCapture(path string, fn func(*capture.Record)) (capture.Record, error) {
	i := e.findCapture(path)
	if i < 0 {
		return capture.Record{}, fmt.Errorf("capture %s is not part of this workflow", path)
	}
	fn(&e.captures[i])
	return e.captures[i], nil
}

// RemoveCapture drops a capture unless that would leave its step without the
// photo or annotated photo the step requires.
func (e *Execution) RemoveCapture(path string) (capture.Record, error) {
	i := e.findCapture(path)
	if i < 0 {
		return capture.Record{}, fmt.Errorf("capture %s is not part of this workflow", path)
	}

	rec := e.captures[i]
	if idx := rec.Step - 1; idx >= 0 && idx < len(e.workflow.Steps) {
		step := e.workflow.Steps[idx]

		var images, annotated int
		for j, other := range e.captures {
			if j == i || other.Step != rec.Step || capture.IsVideo(other) {
				continue
			}
			images++
			if len(other.Markers) > 0 {
				annotated++
			}
		}

		if step.RequirePhoto && images == 0 {
			return rec, fmt.Errorf("%w: step '%s' requires at least one photo", ErrRequirement, e.stepTitle(idx))
		}
		if step.RequireAnnotations && annotated == 0 {
			return rec, fmt.Errorf("%w: step '%s' requires at least one annotated photo", ErrRequirement, e.stepTitle(idx))
		}
	}

	e.captures = append(e.captures[:i], e.captures[i+1:]...)
	return rec, nil
}

func (e *Execution) checkStep(step int) error {
	if step < 0 || step >= len(e.workflow.Steps) {
		return fmt.Errorf("%w: step %d out of range", ErrValidation, step+1)
	}
	return nil
}

func (e *Execution) SetCheckbox(step, index int, checked bool) error {
	if err := e.checkStep(step); err != nil {
		return err
	}
	boxes := e.checkboxes[step]
	if index < 0 || index >= len(boxes) {
		return fmt.Errorf("%w: step %d has no inspection point %d", ErrValidation, step+1, index+1)
	}
	boxes[index] = checked
	return nil
}

func (e *Execution) Checkboxes(step int) []bool {
	return append([]bool(nil), e.checkboxes[step]...)
}

func (e *Execution) SetResult(step int, pass bool) error {
	if err := e.checkStep(step); err != nil {
		return err
	}
	e.results[step] = pass
	return nil
}

func (e *Execution) Result(step int) (pass bool, ok bool) {
	pass, ok = e.results[step]
	return pass, ok
}

// Validate checks that the current step's requirements are met.
func (e *Execution) Validate() error {
	step := e.workflow.Steps[e.current]
	captures := e.StepCaptures(e.current)

	var missing []string

	if step.RequirePhoto {
		found := false
		for _, rec := range captures {
			if !capture.IsVideo(rec) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, "a photo")
		}
	}

	if step.RequireAnnotations {
		found := false
		for _, rec := range captures {
			if len(rec.Markers) > 0 {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, "an annotated photo")
		}
	}

	if step.RequirePassFail {
		if _, ok := e.results[e.current]; !ok {
			missing = append(missing, "a pass/fail result")
		}
	}

	for _, checked := range e.checkboxes[e.current] {
		if !checked {
			missing = append(missing, "all inspection points checked")
			break
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: step '%s' needs %s", ErrRequirement, e.stepTitle(e.current), strings.Join(missing, ", "))
	}
	return nil
}

// Next validates the current step and moves to the following one. It is a
// no-op on the last step.
func (e *Execution) Next() error {
	if err := e.Validate(); err != nil {
		return err
	}
	if !e.IsLast() {
		e.current++
	}
	return nil
}

func (e *Execution) Previous() {
	if e.current > 0 {
		e.current--
	}
}

func (e *Execution) Finish() ([]ChecklistItem, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	e.finished = true
	return e.Checklist(), nil
}

// Checklist reports one item per step. An explicit pass/fail result wins,
// otherwise a step passes when it has at least one capture.
func (e *Execution) Checklist() []ChecklistItem {
	items := make([]ChecklistItem, 0, len(e.workflow.Steps))
	for i, step := range e.workflow.Steps {
		passed, ok := e.results[i]
		if !ok {
			passed = len(e.StepCaptures(i)) > 0
		}
		items = append(items, ChecklistItem{
			Step:        i + 1,
			Name:        e.stepTitle(i),
			Passed:      passed,
			Description: step.Instructions,
		})
	}
	return items
}

func (e *Execution) Status() string {
	return fmt.Sprintf("Step %d of %d: %s", e.current+1, len(e.workflow.Steps), e.stepTitle(e.current))
}
