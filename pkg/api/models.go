package api

import (
	"time"

	"github.com/google/uuid"
)

type Camera struct {
	Index  int
	Name   string
	Width  int
	Height int
	Open   bool
}

type Checkbox struct {
	X float64
	Y float64
}

type Step struct {
	Title                string
	Instructions         string
	ReferenceImage       string `json:"ReferenceImage,omitempty"`
	RequirePhoto         bool
	RequireAnnotations   bool
	RequirePassFail      bool
	InspectionCheckboxes []Checkbox `json:"InspectionCheckboxes,omitempty"`
}

type Workflow struct {
	Name        string
	Description string
	Steps       []Step
}

type StepSummary struct {
	Title        string
	Requirements []string
}

type WorkflowSummary struct {
	Slug        string
	Name        string
	Description string
	StepCount   int
	Steps       []StepSummary
}

type SaveWorkflowRequest struct {
	Workflow Workflow
	// KeepOld keeps the previous file when a rename changes the workflow's
	// file name. By default the old file is replaced.
	KeepOld bool
}

type SaveWorkflowResponse struct {
	Slug string
}

type ImportWorkflowRequest struct {
	// Format is "json" (default) or "yaml".
	Format   string
	Document string
}

type Marker struct {
	Label string
	X     float64
	Y     float64
	// Angle in degrees, 45 when omitted.
	Angle *float64 `json:"Angle,omitempty"`
	Note  string
}

type BarcodeScan struct {
	Text      string
	Format    string
	Timestamp time.Time
}

type Capture struct {
	Id           uuid.UUID
	Path         string
	Camera       string
	Notes        string
	Type         string
	Timestamp    time.Time
	Markers      []Marker
	Step         int
	StepTitle    string
	BarcodeScans []BarcodeScan `json:"BarcodeScans,omitempty"`
}

type CreateSessionRequest struct {
	// Mode is 1, 2, 3 or the mode name (General, QC, Maintenance).
	Mode        string
	Serial      string
	Description string
	Technician  string
	Workflow    string
	Camera      *int
}

type Detection struct {
	Text      string
	Format    string
	Timestamp time.Time
}

type ScanState struct {
	Running bool
	Count   int
	Latest  *Detection
}

type StepState struct {
	Index        int
	Count        int
	Step         Step
	Status       string
	Requirements []string
	Checkboxes   []bool
	Result       *bool
	IsLast       bool
}

type WorkflowState struct {
	Name        string
	Path        string
	Description string
	Current     StepState
}

type Session struct {
	Id           uuid.UUID
	Mode         int
	ModeName     string
	Serial       string
	Description  string
	Technician   string
	CameraIndex  int
	CameraName   string
	Recording    bool
	Scan         ScanState
	Workflow     *WorkflowState `json:"Workflow,omitempty"`
	CaptureCount int
	CreationTime time.Time
}

type SelectCameraRequest struct {
	Index int
}

type CaptureRequest struct {
	Notes   string
	Markers []Marker
	// Size of the preview the markers were placed on. Zero means the marker
	// coordinates are already in frame pixels.
	PreviewWidth  int
	PreviewHeight int
}

type UpdateCaptureRequest struct {
	Notes       *string
	MarkerNotes map[string]string
}

type ListCapturesParams struct {
	Query string `schema:"query"`
}

type StartRecordingResponse struct {
	Path string
}

type ApplyScanResponse struct {
	Serial string
}

type SetCheckboxRequest struct {
	Checked bool
}

type SetResultRequest struct {
	Pass bool
}

type FinishRequest struct {
	GenerateReport bool
}

type ChecklistItem struct {
	Step          int
	Name          string
	Passed        bool
	Description   string
	CheckboxImage string `json:"CheckboxImage,omitempty"`
}

type FinishResponse struct {
	ReportId  *uuid.UUID `json:"ReportId,omitempty"`
	Checklist []ChecklistItem
}

type Progress struct {
	Serial         string
	WorkflowPath   string
	CurrentStep    int
	Technician     string
	Description    string
	CapturedImages int
	RecordedVideos int
	SavedAt        time.Time
}

type ResumeRequest struct {
	Mode   string
	Camera *int
}

type Report struct {
	Id             uuid.UUID
	SessionId      uuid.UUID
	Serial         string
	Status         string
	PageCount      int
	Attempts       int
	Error          string `json:"Error,omitempty"`
	HasPdf         bool
	HasDocx        bool
	Checklist      []ChecklistItem
	CreationTime   time.Time
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`
}

type ListReportsParams struct {
	SessionId string `schema:"session_id"`
}

type PreviewParams struct {
	Page int     `schema:"page"`
	Dpi  float64 `schema:"dpi"`
}

type ArchiveObject struct {
	Key  string
	Size int64
}
