package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"camqc-backend/internal/camera"
	"camqc-backend/internal/capture"
	"camqc-backend/internal/core"
	"camqc-backend/internal/database"
	"camqc-backend/internal/messaging"
	"camqc-backend/internal/progress"
	"camqc-backend/internal/report"
	"camqc-backend/internal/scanner"
	"camqc-backend/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrNoCamera        = errors.New("no camera selected")
	ErrNoWorkflow      = errors.New("session has no workflow")
	ErrRecording       = errors.New("a recording is already in progress")
	ErrNotRecording    = errors.New("no recording in progress")
	ErrNoScan          = errors.New("no barcode has been detected")
	ErrCaptureNotFound = errors.New("capture not found")
	ErrClosed          = errors.New("session is closed")
)

// CameraPool hands out exclusive camera ownership.
type CameraPool interface {
	Acquire(index int) (camera.Device, error)
	Release(dev camera.Device)
	// IndexOf is the device's index in the current listing, which can move
	// when cameras are rediscovered.
	IndexOf(dev camera.Device) int
}

// sharedDevice serializes frame reads between the scanner, the recorder and
// still captures, which all pull from the same handle.
type sharedDevice struct {
	mu  sync.Mutex
	dev camera.Device
}

func (d *sharedDevice) CaptureFrame(ctx context.Context) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dev.CaptureFrame(ctx)
}

type CaptureRequest struct {
	Notes         string
	Markers       []capture.Marker
	PreviewWidth  int
	PreviewHeight int
}

// CaptureUpdate edits the text of a capture. Marker positions are burned into
// the image and cannot change; only their notes can.
type CaptureUpdate struct {
	Notes       *string
	MarkerNotes map[string]string
}

type Capture struct {
	Id uuid.UUID
	capture.Record
}

type ScanState struct {
	Running bool
	Count   int
	Latest  *scanner.Detection
}

type StepView struct {
	Index        int
	Count        int
	Step         workflow.Step
	Status       string
	Requirements []string
	Checkboxes   []bool
	Result       *bool
	IsLast       bool
}

type WorkflowView struct {
	Name        string
	Path        string
	Description string
	Current     StepView
}

type View struct {
	Id           uuid.UUID
	Mode         report.Mode
	Serial       string
	Description  string
	Technician   string
	CameraIndex  int
	CameraName   string
	Recording    bool
	Scan         ScanState
	Workflow     *WorkflowView
	CaptureCount int
	CreatedAt    time.Time
}

type FinishResult struct {
	ReportId  uuid.UUID
	Checklist []workflow.ChecklistItem
}

// Session is one technician's capture session. All methods are safe for
// concurrent use.
type Session struct {
	Id        uuid.UUID
	Mode      report.Mode
	CreatedAt time.Time

	deps *Deps

	mu          sync.Mutex
	serial      string
	description string
	technician  string
	cameraIndex int
	device      camera.Device
	source      *sharedDevice
	scanner     *scanner.Scanner
	recorder    *capture.Recorder
	exec        *workflow.Execution
	loose       []capture.Record
	ids         map[string]uuid.UUID
	lastCapture time.Time
	closed      bool
}

func newSession(deps *Deps, mode report.Mode, serial, description, technician string, exec *workflow.Execution) *Session {
	now := time.Now()
	return &Session{
		Id:          uuid.New(),
		Mode:        mode,
		CreatedAt:   now,
		deps:        deps,
		serial:      strings.TrimSpace(serial),
		description: description,
		technician:  technician,
		cameraIndex: -1,
		exec:        exec,
		ids:         make(map[string]uuid.UUID),
		lastCapture: now,
	}
}

func (s *Session) Serial() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serial
}

func (s *Session) checkOpen() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// stopRecordingLocked finalizes an active recording and keeps the partial
// video as a capture.
func (s *Session) stopRecordingLocked(ctx context.Context) (capture.Record, error) {
	if s.recorder == nil {
		return capture.Record{}, ErrNotRecording
	}
	rec, err := s.recorder.Stop()
	s.recorder = nil
	if err != nil {
		slog.Error("error stopping recording", "session_id", s.Id, "error", err)
		return rec, err
	}
	rec = s.addRecordLocked(ctx, rec)
	return rec, nil
}

// releaseHardwareLocked stops the scanner and any recording and hands the
// camera back to the pool.
func (s *Session) releaseHardwareLocked(ctx context.Context) {
	if s.scanner != nil {
		s.scanner.Stop()
		s.scanner = nil
	}
	if s.recorder != nil {
		_, _ = s.stopRecordingLocked(ctx)
	}
	if s.device != nil {
		s.deps.Cameras.Release(s.device)
		s.device = nil
		s.source = nil
	}
	s.cameraIndex = -1
}

// SelectCamera switches the session to another camera. The old camera is
// released before the new one is opened. On failure the session continues
// without a camera.
func (s *Session) SelectCamera(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	s.releaseHardwareLocked(context.Background())

	dev, err := s.deps.Cameras.Acquire(index)
	if err != nil {
		slog.Warn("camera unavailable, continuing without camera", "session_id", s.Id, "index", index, "error", err)
		return fmt.Errorf("%w: %w", ErrNoCamera, err)
	}

	s.device = dev
	s.source = &sharedDevice{dev: dev}
	s.cameraIndex = index
	s.scanner = scanner.New(s.source, s.deps.Decoder, s.deps.ScanInterval)
	if err := s.scanner.Start(); err != nil {
		slog.Warn("barcode scanner not started", "session_id", s.Id, "error", err)
	}

	slog.Info("camera selected", "session_id", s.Id, "index", index, "name", dev.Name())
	return nil
}

func (s *Session) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()

	if source == nil {
		return nil, ErrNoCamera
	}
	return source.CaptureFrame(ctx)
}

func (s *Session) ScanState() ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanner == nil {
		return ScanState{}
	}
	state := ScanState{Running: s.scanner.Running(), Count: s.scanner.Count()}
	if d, ok := s.scanner.Latest(); ok {
		state.Latest = &d
	}
	return state
}

// ApplyScanToSerial appends the latest scanned code to the serial number, or
// uses the code as the serial when none is set.
func (s *Session) ApplyScanToSerial(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return "", err
	}
	if s.scanner == nil {
		return "", ErrNoScan
	}
	d, ok := s.scanner.Latest()
	if !ok {
		return "", ErrNoScan
	}

	if s.serial != "" {
		s.serial = s.serial + "_" + d.Text
	} else {
		s.serial = d.Text
	}

	if s.deps.DB != nil {
		if err := s.deps.DB.WithContext(ctx).Model(&database.Session{Id: s.Id}).Update("serial_number", s.serial).Error; err != nil {
			slog.Error("error updating session serial", "session_id", s.Id, "error", err)
			return "", fmt.Errorf("error updating serial: %w", err)
		}
	}

	slog.Info("serial updated from scan", "session_id", s.Id, "serial", s.serial)
	return s.serial, nil
}

func (s *Session) outputDir() string {
	return capture.OutputDir(s.deps.MediaRoot, s.serial)
}

func (s *Session) stepTitleLocked() string {
	if s.exec == nil {
		return ""
	}
	if title := s.exec.Step().Title; title != "" {
		return title
	}
	return fmt.Sprintf("step%d", s.exec.CurrentStep()+1)
}

func (s *Session) scansSinceLocked(t time.Time) []capture.BarcodeScan {
	if s.scanner == nil {
		return nil
	}
	var scans []capture.BarcodeScan
	for _, d := range s.scanner.Since(t) {
		scans = append(scans, capture.BarcodeScan{Text: d.Text, Format: d.Format, Timestamp: d.Timestamp})
	}
	return scans
}

// addRecordLocked attaches a record to the workflow step or the loose capture
// list, writes its sidecar and catalogs it.
func (s *Session) addRecordLocked(ctx context.Context, rec capture.Record) capture.Record {
	if s.exec != nil {
		rec = s.exec.AddCapture(rec)
	} else {
		s.loose = append(s.loose, rec)
	}

	if err := capture.WriteSidecar(rec); err != nil {
		slog.Warn("error writing capture metadata", "path", rec.Path, "error", err)
	}

	id := uuid.New()
	s.ids[rec.Path] = id

	if s.deps.DB != nil {
		row, err := core.NewCaptureRow(s.Id, rec)
		if err != nil {
			slog.Error("error converting capture", "path", rec.Path, "error", err)
			return rec
		}
		row.Id = id
		if err := s.deps.DB.WithContext(ctx).Create(&row).Error; err != nil {
			slog.Error("error saving capture", "session_id", s.Id, "path", rec.Path, "error", err)
		}
	}
	return rec
}

func (s *Session) Capture(ctx context.Context, req CaptureRequest) (Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return Capture{}, err
	}
	if s.source == nil {
		return Capture{}, ErrNoCamera
	}

	frame, err := s.source.CaptureFrame(ctx)
	if err != nil {
		slog.Error("error capturing frame", "session_id", s.Id, "error", err)
		return Capture{}, fmt.Errorf("error capturing frame: %w", err)
	}

	markers := capture.NormalizeMarkers(req.Markers)
	if len(markers) > 0 {
		frame = capture.BurnMarkers(frame, markers, req.PreviewWidth, req.PreviewHeight)
	}

	now := time.Now()
	path := capture.UniquePath(filepath.Join(s.outputDir(), capture.ImageFilename(s.serial, s.stepTitleLocked(), now)))
	if err := capture.SaveJPEG(path, frame); err != nil {
		slog.Error("error saving capture", "session_id", s.Id, "error", err)
		return Capture{}, err
	}

	rec := capture.Record{
		Path:         path,
		Camera:       s.device.Name(),
		Notes:        req.Notes,
		Timestamp:    now,
		Type:         capture.TypeImage,
		Markers:      markers,
		BarcodeScans: s.scansSinceLocked(s.lastCapture),
	}
	s.lastCapture = now

	rec = s.addRecordLocked(ctx, rec)
	slog.Info("image captured", "session_id", s.Id, "path", path, "markers", len(markers))

	return Capture{Id: s.ids[rec.Path], Record: rec}, nil
}

func (s *Session) StartRecording() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return "", err
	}
	if s.source == nil {
		return "", ErrNoCamera
	}
	if s.recorder != nil {
		return "", ErrRecording
	}

	path := capture.UniquePath(filepath.Join(s.outputDir(), capture.VideoFilename(s.serial, time.Now())))
	rec, err := capture.StartRecorder(s.source, path, s.device.Name(), s.deps.VideoFPS)
	if err != nil {
		slog.Error("error starting recording", "session_id", s.Id, "error", err)
		return "", err
	}
	s.recorder = rec

	slog.Info("recording started", "session_id", s.Id, "path", path)
	return path, nil
}

func (s *Session) StopRecording(ctx context.Context) (Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.stopRecordingLocked(ctx)
	if err != nil {
		return Capture{}, err
	}
	return Capture{Id: s.ids[rec.Path], Record: rec}, nil
}

func (s *Session) recordsLocked() []capture.Record {
	if s.exec != nil {
		return s.exec.Captures()
	}
	return append([]capture.Record(nil), s.loose...)
}

// Captures lists the session's captures matching query. An empty query
// matches everything.
func (s *Session) Captures(query string) ([]Capture, error) {
	s.mu.Lock()
	records := s.recordsLocked()
	ids := make(map[string]uuid.UUID, len(s.ids))
	for k, v := range s.ids {
		ids[k] = v
	}
	s.mu.Unlock()

	matched, err := core.FilterCaptures(records, query)
	if err != nil {
		return nil, err
	}

	out := make([]Capture, 0, len(matched))
	for _, rec := range matched {
		out = append(out, Capture{Id: ids[rec.Path], Record: rec})
	}
	return out, nil
}

func (s *Session) pathOf(id uuid.UUID) (string, bool) {
	for path, cid := range s.ids {
		if cid == id {
			return path, true
		}
	}
	return "", false
}

func (s *Session) UpdateCapture(ctx context.Context, id uuid.UUID, update CaptureUpdate) (Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, ok := s.pathOf(id)
	if !ok {
		return Capture{}, ErrCaptureNotFound
	}

	apply := func(rec *capture.Record) {
		if update.Notes != nil {
			rec.Notes = *update.Notes
		}
		for i := range rec.Markers {
			if note, ok := update.MarkerNotes[rec.Markers[i].Label]; ok {
				rec.Markers[i].Note = note
			}
		}
	}

	var rec capture.Record
	if s.exec != nil {
		updated, err := s.exec.UpdateCapture(path, apply)
		if err != nil {
			return Capture{}, err
		}
		rec = updated
	} else {
		for i := range s.loose {
			if s.loose[i].Path == path {
				apply(&s.loose[i])
				rec = s.loose[i]
			}
		}
	}

	if err := capture.WriteSidecar(rec); err != nil {
		slog.Warn("error writing capture metadata", "path", rec.Path, "error", err)
	}

	if s.deps.DB != nil {
		markers, err := database.ToJSON(rec.Markers)
		if err != nil {
			return Capture{}, err
		}
		err = s.deps.DB.WithContext(ctx).Model(&database.Capture{Id: id}).Updates(map[string]any{
			"notes":   rec.Notes,
			"markers": markers,
		}).Error
		if err != nil {
			slog.Error("error updating capture", "capture_id", id, "error", err)
			return Capture{}, fmt.Errorf("error updating capture: %w", err)
		}
	}

	return Capture{Id: id, Record: rec}, nil
}

// RemoveCapture deletes a capture and its files. In a workflow, removal is
// refused when it would leave the step short of a required photo.
func (s *Session) RemoveCapture(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, ok := s.pathOf(id)
	if !ok {
		return ErrCaptureNotFound
	}

	if s.exec != nil {
		if _, err := s.exec.RemoveCapture(path); err != nil {
			return err
		}
	} else {
		for i := range s.loose {
			if s.loose[i].Path == path {
				s.loose = append(s.loose[:i], s.loose[i+1:]...)
				break
			}
		}
	}
	delete(s.ids, path)

	if err := capture.RemoveMedia(path); err != nil {
		slog.Warn("error removing capture files", "path", path, "error", err)
	}

	if s.deps.DB != nil {
		if err := s.deps.DB.WithContext(ctx).Delete(&database.Capture{Id: id}).Error; err != nil {
			slog.Error("error deleting capture", "capture_id", id, "error", err)
			return fmt.Errorf("error deleting capture: %w", err)
		}
	}
	return nil
}

func (s *Session) snapshotLocked() progress.Snapshot {
	state := s.exec.State()
	snap := progress.Snapshot{
		WorkflowPath:      s.exec.Path(),
		CurrentStep:       state.CurrentStep,
		StepResults:       state.Results,
		StepCheckboxState: state.CheckboxStates,
		SerialNumber:      s.serial,
		Technician:        s.technician,
		Description:       s.description,
	}
	for _, rec := range state.Captures {
		if capture.IsVideo(rec) {
			snap.RecordedVideos = append(snap.RecordedVideos, rec)
		} else {
			snap.CapturedImages = append(snap.CapturedImages, rec)
		}
	}
	return snap
}

func (s *Session) saveProgressLocked() {
	if s.deps.Progress == nil || s.exec == nil {
		return
	}
	if err := s.deps.Progress.Save(s.snapshotLocked()); err != nil {
		slog.Error("error saving workflow progress", "session_id", s.Id, "serial", s.serial, "error", err)
	}
}

func (s *Session) workflowLocked() (*workflow.Execution, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if s.exec == nil {
		return nil, ErrNoWorkflow
	}
	return s.exec, nil
}

// Next validates the current step and advances. Progress is saved after
// every advance.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, err := s.workflowLocked()
	if err != nil {
		return err
	}
	if err := exec.Next(); err != nil {
		return err
	}
	s.saveProgressLocked()
	return nil
}

func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, err := s.workflowLocked()
	if err != nil {
		return err
	}
	exec.Previous()
	return nil
}

func (s *Session) SetCheckbox(step, index int, checked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, err := s.workflowLocked()
	if err != nil {
		return err
	}
	return exec.SetCheckbox(step, index, checked)
}

func (s *Session) SetResult(step int, pass bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, err := s.workflowLocked()
	if err != nil {
		return err
	}
	return exec.SetResult(step, pass)
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Id:           s.Id,
		Mode:         s.Mode,
		Serial:       s.serial,
		Description:  s.description,
		Technician:   s.technician,
		CameraIndex:  s.cameraIndex,
		Recording:    s.recorder != nil,
		CaptureCount: len(s.recordsLocked()),
		CreatedAt:    s.CreatedAt,
	}
	if s.device != nil {
		v.CameraName = s.device.Name()
		v.CameraIndex = s.deps.Cameras.IndexOf(s.device)
	}
	if s.scanner != nil {
		v.Scan = ScanState{Running: s.scanner.Running(), Count: s.scanner.Count()}
		if d, ok := s.scanner.Latest(); ok {
			v.Scan.Latest = &d
		}
	}

	if s.exec != nil {
		wf := s.exec.Workflow()
		i := s.exec.CurrentStep()
		step := StepView{
			Index:        i,
			Count:        s.exec.StepCount(),
			Step:         s.exec.Step(),
			Status:       s.exec.Status(),
			Requirements: workflow.Requirements(s.exec.Step()),
			Checkboxes:   s.exec.Checkboxes(i),
			IsLast:       s.exec.IsLast(),
		}
		if pass, ok := s.exec.Result(i); ok {
			step.Result = &pass
		}
		v.Workflow = &WorkflowView{Name: wf.Name, Path: s.exec.Path(), Description: wf.Description, Current: step}
	}
	return v
}

// renderCheckboxImages draws the inspection points of every step that has
// them onto its reference image. Steps whose reference image cannot be
// loaded get no checkbox image.
func (s *Session) renderCheckboxImagesLocked(items []workflow.ChecklistItem) {
	wf := s.exec.Workflow()
	for i, step := range wf.Steps {
		if len(step.InspectionCheckboxes) == 0 || step.ReferenceImage == "" || i >= len(items) {
			continue
		}

		refPath := step.ReferenceImage
		if !filepath.IsAbs(refPath) {
			refPath = filepath.Join(filepath.Dir(s.exec.Path()), refPath)
		}
		ref, err := capture.LoadImage(refPath)
		if err != nil {
			slog.Warn("cannot load reference image for checkbox overlay", "step", i+1, "path", refPath, "error", err)
			continue
		}

		points := make([]capture.InspectionPoint, 0, len(step.InspectionCheckboxes))
		for _, cb := range step.InspectionCheckboxes {
			points = append(points, capture.InspectionPoint{X: cb.X, Y: cb.Y})
		}
		overlay := capture.RenderCheckboxes(ref, points, s.exec.Checkboxes(i))

		name := fmt.Sprintf("%s_step%d_checkboxes.jpg", capture.SerialOrUnknown(s.serial), i+1)
		path := capture.UniquePath(filepath.Join(s.outputDir(), name))
		if err := capture.SaveJPEG(path, overlay); err != nil {
			slog.Warn("error saving checkbox overlay", "step", i+1, "error", err)
			continue
		}
		items[i].CheckboxImage = path
	}
}

func (s *Session) finish(ctx context.Context, generate bool) (FinishResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return FinishResult{}, err
	}

	var result FinishResult
	if s.exec != nil {
		items, err := s.exec.Finish()
		if err != nil {
			return FinishResult{}, err
		}
		s.renderCheckboxImagesLocked(items)
		result.Checklist = items
	}

	s.releaseHardwareLocked(ctx)
	s.closed = true

	if s.deps.DB != nil {
		err := s.deps.DB.Transaction(func(txn *gorm.DB) error {
			if err := database.UpdateSessionStatus(ctx, txn, s.Id, database.SessionFinished); err != nil {
				return err
			}
			if !generate {
				return nil
			}

			checklist, err := database.ToJSON(result.Checklist)
			if err != nil {
				return err
			}
			rep := database.Report{
				Id:           uuid.New(),
				SessionId:    s.Id,
				Status:       database.ReportQueued,
				Checklist:    checklist,
				CreationTime: time.Now().UTC(),
			}
			if err := txn.WithContext(ctx).Create(&rep).Error; err != nil {
				slog.Error("error creating report", "session_id", s.Id, "error", err)
				return fmt.Errorf("error creating report: %w", err)
			}
			result.ReportId = rep.Id
			return nil
		})
		if err != nil {
			return FinishResult{}, err
		}
	}

	if result.ReportId != uuid.Nil && s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishReportTask(ctx, messaging.ReportTaskPayload{ReportId: result.ReportId}); err != nil {
			slog.Error("error queueing report task", "report_id", result.ReportId, "error", err)
			return result, fmt.Errorf("error queueing report: %w", err)
		}
	}

	if s.exec != nil && s.deps.Progress != nil {
		if err := s.deps.Progress.Delete(s.serial); err != nil {
			slog.Warn("error deleting workflow progress", "serial", s.serial, "error", err)
		}
	}

	slog.Info("session finished", "session_id", s.Id, "serial", s.serial, "report_id", result.ReportId)
	return result, nil
}

// close abandons the session. Progress is kept so the workflow can be resumed.
func (s *Session) close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.releaseHardwareLocked(ctx)
	s.closed = true

	if s.deps.DB != nil {
		if err := database.UpdateSessionStatus(ctx, s.deps.DB, s.Id, database.SessionAbandoned); err != nil {
			slog.Warn("error abandoning session", "session_id", s.Id, "error", err)
		}
	}
}

func mergeCaptures(snap progress.Snapshot) []capture.Record {
	all := append(append([]capture.Record(nil), snap.CapturedImages...), snap.RecordedVideos...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })
	return all
}
