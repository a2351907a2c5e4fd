package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"camqc-backend/internal/camera"
	"camqc-backend/internal/capture"
	"camqc-backend/internal/database"
	"camqc-backend/internal/progress"
	"camqc-backend/internal/report"
	"camqc-backend/internal/session"
	"camqc-backend/internal/storage"
	"camqc-backend/internal/workflow"
	"camqc-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	EditorPasswordHeader = "X-Editor-Password"
	scanStreamInterval   = 100 * time.Millisecond
)

// CameraDirectory lists the cameras sessions can select.
type CameraDirectory interface {
	List() []camera.Info
	Rediscover() []camera.Info
}

type Services struct {
	DB             *gorm.DB
	Storage        storage.ObjectStore
	Bucket         string
	Cameras        CameraDirectory
	Workflows      *workflow.Store
	Progress       *progress.Store
	Sessions       *session.Manager
	EditorPassword string
}

type BackendService struct {
	db         *gorm.DB
	storage    storage.ObjectStore
	bucket     string
	cameras    CameraDirectory
	workflows  *workflow.Store
	progress   *progress.Store
	sessions   *session.Manager
	editorHash []byte
}

// editorHash accepts either a bcrypt hash or a plain password, which is hashed
// so both are checked the same way.
func editorHash(password string) []byte {
	if _, err := bcrypt.Cost([]byte(password)); err == nil {
		return []byte(password)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		// only fails for passwords longer than 72 bytes
		slog.Error("error hashing editor password, workflow edits are disabled", "error", err)
		return nil
	}
	return hash
}

func NewBackendService(s Services) *BackendService {
	return &BackendService{
		db:         s.DB,
		storage:    s.Storage,
		bucket:     s.Bucket,
		cameras:    s.Cameras,
		workflows:  s.Workflows,
		progress:   s.Progress,
		sessions:   s.Sessions,
		editorHash: editorHash(s.EditorPassword),
	}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	r.Route("/cameras", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListCameras))
		r.Post("/discover", RestHandler(s.DiscoverCameras))
	})

	r.Route("/workflows", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListWorkflows))
		r.Get("/{slug}", RestHandler(s.GetWorkflow))
		r.Group(func(r chi.Router) {
			r.Use(s.requireEditor)
			r.Post("/", RestHandler(s.CreateWorkflow))
			r.Post("/import", RestHandler(s.ImportWorkflow))
			r.Put("/{slug}", RestHandler(s.UpdateWorkflow))
			r.Delete("/{slug}", RestHandler(s.DeleteWorkflow))
		})
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", RestHandler(s.CreateSession))
		r.Get("/", RestHandler(s.ListSessions))
		r.Route("/{session_id}", func(r chi.Router) {
			r.Get("/", RestHandler(s.GetSession))
			r.Delete("/", RestHandler(s.CloseSession))
			r.Post("/camera", RestHandler(s.SelectCamera))
			r.Get("/frame", BlobHandler(s.GetFrame))
			r.Get("/scan", RestHandler(s.GetScan))
			r.Get("/scan/stream", RestStreamHandler(s.StreamScan))
			r.Post("/scan/apply", RestHandler(s.ApplyScan))
			r.Post("/captures", RestHandler(s.Capture))
			r.Get("/captures", RestHandler(s.ListCaptures))
			r.Patch("/captures/{capture_id}", RestHandler(s.UpdateCapture))
			r.Delete("/captures/{capture_id}", RestHandler(s.DeleteCapture))
			r.Post("/recording", RestHandler(s.StartRecording))
			r.Delete("/recording", RestHandler(s.StopRecording))
			r.Post("/steps/next", RestHandler(s.NextStep))
			r.Post("/steps/previous", RestHandler(s.PreviousStep))
			r.Put("/steps/{step}/checkboxes/{index}", RestHandler(s.SetCheckbox))
			r.Put("/steps/{step}/result", RestHandler(s.SetResult))
			r.Post("/finish", RestHandler(s.FinishSession))
		})
	})

	r.Route("/progress/{serial}", func(r chi.Router) {
		r.Get("/", RestHandler(s.GetProgress))
		r.Post("/resume", RestHandler(s.ResumeProgress))
		r.Delete("/", RestHandler(s.DeleteProgress))
	})

	r.Route("/reports", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListReports))
		r.Route("/{report_id}", func(r chi.Router) {
			r.Get("/", RestHandler(s.GetReport))
			r.Get("/pdf", BlobHandler(s.GetReportPdf))
			r.Get("/docx", BlobHandler(s.GetReportDocx))
			r.Get("/preview", BlobHandler(s.GetReportPreview))
			r.Get("/archive", RestHandler(s.ListArchive))
		})
	})
}

// mapError assigns status codes to the domain errors handlers pass through.
func mapError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrCaptureNotFound),
		errors.Is(err, workflow.ErrNotFound),
		errors.Is(err, progress.ErrNoProgress),
		errors.Is(err, database.ErrNotFound),
		errors.Is(err, storage.ErrObjectNotFound):
		return CodedError(http.StatusNotFound, err)
	case errors.Is(err, session.ErrInvalidOptions),
		errors.Is(err, workflow.ErrValidation):
		return CodedError(http.StatusBadRequest, err)
	case errors.Is(err, workflow.ErrRequirement):
		return CodedError(http.StatusUnprocessableEntity, err)
	case errors.Is(err, workflow.ErrExists),
		errors.Is(err, session.ErrNoCamera),
		errors.Is(err, session.ErrNoWorkflow),
		errors.Is(err, session.ErrRecording),
		errors.Is(err, session.ErrNotRecording),
		errors.Is(err, session.ErrNoScan),
		errors.Is(err, session.ErrClosed):
		return CodedError(http.StatusConflict, err)
	default:
		return CodedError(http.StatusInternalServerError, err)
	}
}

func (s *BackendService) requireEditor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bcrypt.CompareHashAndPassword(s.editorHash, []byte(r.Header.Get(EditorPasswordHeader))) != nil {
			http.Error(w, "invalid editor password", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *BackendService) ListCameras(r *http.Request) (any, error) {
	return convertCameras(s.cameras.List()), nil
}

func (s *BackendService) DiscoverCameras(r *http.Request) (any, error) {
	infos := s.cameras.Rediscover()
	slog.Info("camera discovery finished", "found", len(infos))
	return convertCameras(infos), nil
}

func (s *BackendService) ListWorkflows(r *http.Request) (any, error) {
	summaries, err := s.workflows.List()
	if err != nil {
		return nil, mapError(err)
	}
	return convertSummaries(summaries), nil
}

func (s *BackendService) GetWorkflow(r *http.Request) (any, error) {
	wf, err := s.workflows.Get(chi.URLParam(r, "slug"))
	if err != nil {
		return nil, mapError(err)
	}
	return convertWorkflow(wf), nil
}

func (s *BackendService) CreateWorkflow(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SaveWorkflowRequest](r)
	if err != nil {
		return nil, err
	}

	slug, err := s.workflows.Create(toWorkflow(req.Workflow))
	if err != nil {
		return nil, mapError(err)
	}

	slog.Info("created workflow", "slug", slug)
	return api.SaveWorkflowResponse{Slug: slug}, nil
}

func (s *BackendService) UpdateWorkflow(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SaveWorkflowRequest](r)
	if err != nil {
		return nil, err
	}

	mode := workflow.RenameReplace
	if req.KeepOld {
		mode = workflow.RenameKeepBoth
	}

	slug, err := s.workflows.Update(chi.URLParam(r, "slug"), toWorkflow(req.Workflow), mode)
	if err != nil {
		return nil, mapError(err)
	}
	return api.SaveWorkflowResponse{Slug: slug}, nil
}

func (s *BackendService) DeleteWorkflow(r *http.Request) (any, error) {
	if err := s.workflows.Delete(chi.URLParam(r, "slug")); err != nil {
		return nil, mapError(err)
	}
	return nil, nil
}

func (s *BackendService) ImportWorkflow(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ImportWorkflowRequest](r)
	if err != nil {
		return nil, err
	}

	ext := ".json"
	switch req.Format {
	case "", "json":
	case "yaml", "yml":
		ext = ".yaml"
	default:
		return nil, CodedErrorf(http.StatusBadRequest, "unsupported workflow format '%s'", req.Format)
	}

	slug, err := s.workflows.Import([]byte(req.Document), ext)
	if err != nil {
		return nil, mapError(err)
	}
	return api.SaveWorkflowResponse{Slug: slug}, nil
}

func (s *BackendService) session(r *http.Request) (*session.Session, error) {
	id, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, mapError(err)
	}
	return sess, nil
}

func (s *BackendService) CreateSession(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateSessionRequest](r)
	if err != nil {
		return nil, err
	}

	mode, err := report.ParseMode(req.Mode)
	if err != nil {
		return nil, CodedError(http.StatusBadRequest, err)
	}

	sess, err := s.sessions.Create(r.Context(), session.Options{
		Mode:        mode,
		Serial:      req.Serial,
		Description: req.Description,
		Technician:  req.Technician,
		Workflow:    req.Workflow,
		Camera:      req.Camera,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return convertSession(sess.View()), nil
}

func (s *BackendService) ListSessions(r *http.Request) (any, error) {
	return convertSessions(s.sessions.List()), nil
}

func (s *BackendService) GetSession(r *http.Request) (any, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	return convertSession(sess.View()), nil
}

func (s *BackendService) CloseSession(r *http.Request) (any, error) {
	id, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Close(r.Context(), id); err != nil {
		return nil, mapError(err)
	}
	return nil, nil
}

func (s *BackendService) SelectCamera(r *http.Request) (any, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	req, err := ParseRequest[api.SelectCameraRequest](r)
	if err != nil {
		return nil, err
	}
	if err := sess.SelectCamera(req.Index); err != nil {
		return nil, mapError(err)
	}
	return convertSession(sess.View()), nil
}

func (s *BackendService) GetFrame(r *http.Request) (*Blob, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}

	frame, err := sess.Frame(r.Context())
	if err != nil {
		if errors.Is(err, session.ErrNoCamera) {
			return nil, mapError(err)
		}
		return nil, CodedError(http.StatusServiceUnavailable, fmt.Errorf("error reading frame: %w", err))
	}

	data, err := capture.EncodeJPEG(frame)
	if err != nil {
		return nil, CodedError(http.StatusInternalServerError, err)
	}
	return &Blob{ContentType: "image/jpeg", Size: int64(len(data)), Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (s *BackendService) GetScan(r *http.Request) (any, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	return convertScanState(sess.ScanState()), nil
}

// StreamScan pushes the scan state every time a new distinct code is read,
// until the client goes away or the session ends.
func (s *BackendService) StreamScan(r *http.Request) (StreamResponse, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()
	return func(yield func(any, error) bool) {
		ticker := time.NewTicker(scanStreamInterval)
		defer ticker.Stop()

		last := -1
		for {
			state := sess.ScanState()
			if state.Count != last {
				last = state.Count
				if !yield(convertScanState(state), nil) {
					return
				}
			}

			if _, err := s.sessions.Get(sess.Id); err != nil {
				yield(nil, CodedError(http.StatusGone, err))
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}, nil
}

func (s *BackendService) ApplyScan(r *http.Request) (any, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	serial, err := sess.ApplyScanToSerial(r.Context())
	if err != nil {
		return nil, mapError(err)
	}
	return api.ApplyScanResponse{Serial: serial}, nil
}

func (s *BackendService) Capture(r *http.Request) (any, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	req, err := ParseRequest[api.CaptureRequest](r)
	if err != nil {
		return nil, err
	}

	c, err := sess.Capture(r.Context(), session.CaptureRequest{
		Notes:         req.Notes,
		Markers:       toMarkers(req.Markers),
		PreviewWidth:  req.PreviewWidth,
		PreviewHeight: req.PreviewHeight,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return convertCapture(c), nil
}

func (s *BackendService) ListCaptures(r *http.Request) (any, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	params, err := ParseRequestQueryParams[api.ListCapturesParams](r)
	if err != nil {
		return nil, err
	}

	captures, err := sess.Captures(params.Query)
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "invalid capture query: %v", err)
	}
	return convertCaptures(captures), nil
}

func (s *BackendService) UpdateCapture(r *http.Request) (any, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	captureId, err := URLParamUUID(r, "capture_id")
	if err != nil {
		return nil, err
	}
	req, err := ParseRequest[api.UpdateCaptureRequest](r)
	if err != nil {
		return nil, err
	}

	c, err := sess.UpdateCapture(r.Context(), captureId, session.CaptureUpdate{Notes: req.Notes, MarkerNotes: req.MarkerNotes})
	if err != nil {
		return nil, mapError(err)
	}
	return convertCapture(c), nil
}

func (s *BackendService) DeleteCapture(r *http.Request) (any, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	captureId, err := URLParamUUID(r, "capture_id")
	if err != nil {
		return nil, err
	}
	if err := sess.RemoveCapture(r.Context(), captureId); err != nil {
		return nil, mapError(err)
	}
	return nil, nil
}

func (s *BackendService) StartRecording(r *http.Request) (any, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	path, err := sess.StartRecording()
	if err != nil {
		if errors.Is(err, session.ErrNoCamera) || errors.Is(err, session.ErrRecording) {
			return nil, mapError(err)
		}
		return nil, CodedError(http.StatusServiceUnavailable, err)
	}
	return api.StartRecordingResponse{Path: path}, nil
}

func (s *BackendService) StopRecording(r *http.Request) (any, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	c, err := sess.StopRecording(r.Context())
	if err != nil {
		return nil, mapError(err)
	}
	return convertCapture(c), nil
}

func (s *BackendService) NextStep(r *http.Request) (any, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	if err := sess.Next(); err != nil {
		return nil, mapError(err)
	}
	return convertSession(sess.View()), nil
}

func (s *BackendService) PreviousStep(r *http.Request) (any, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	if err := sess.Previous(); err != nil {
		return nil, mapError(err)
	}
	return convertSession(sess.View()), nil
}

// Step and checkbox numbers in URLs are 1-based like the step numbers shown
// to technicians.
func (s *BackendService) SetCheckbox(r *http.Request) (any, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	step, err := URLParamInt(r, "step")
	if err != nil {
		return nil, err
	}
	index, err := URLParamInt(r, "index")
	if err != nil {
		return nil, err
	}
	req, err := ParseRequest[api.SetCheckboxRequest](r)
	if err != nil {
		return nil, err
	}

	if err := sess.SetCheckbox(step-1, index-1, req.Checked); err != nil {
		return nil, mapError(err)
	}
	return convertSession(sess.View()), nil
}

func (s *BackendService) SetResult(r *http.Request) (any, error) {
	sess, err := s.session(r)
	if err != nil {
		return nil, err
	}
	step, err := URLParamInt(r, "step")
	if err != nil {
		return nil, err
	}
	req, err := ParseRequest[api.SetResultRequest](r)
	if err != nil {
		return nil, err
	}

	if err := sess.SetResult(step-1, req.Pass); err != nil {
		return nil, mapError(err)
	}
	return convertSession(sess.View()), nil
}

func (s *BackendService) FinishSession(r *http.Request) (any, error) {
	id, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	req, err := ParseRequest[api.FinishRequest](r)
	if err != nil {
		return nil, err
	}

	result, err := s.sessions.Finish(r.Context(), id, req.GenerateReport)
	if err != nil {
		return nil, mapError(err)
	}

	res := api.FinishResponse{Checklist: convertChecklist(result.Checklist)}
	if result.ReportId != uuid.Nil {
		res.ReportId = &result.ReportId
	}
	return res, nil
}

func (s *BackendService) GetProgress(r *http.Request) (any, error) {
	snap, err := s.progress.Load(chi.URLParam(r, "serial"))
	if err != nil {
		return nil, mapError(err)
	}
	return convertProgress(snap), nil
}

func (s *BackendService) ResumeProgress(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ResumeRequest](r)
	if err != nil {
		return nil, err
	}

	mode := report.ModeQC
	if req.Mode != "" {
		if mode, err = report.ParseMode(req.Mode); err != nil {
			return nil, CodedError(http.StatusBadRequest, err)
		}
	}

	sess, err := s.sessions.Resume(r.Context(), chi.URLParam(r, "serial"), session.Options{Mode: mode, Camera: req.Camera})
	if err != nil {
		return nil, mapError(err)
	}
	return convertSession(sess.View()), nil
}

func (s *BackendService) DeleteProgress(r *http.Request) (any, error) {
	if err := s.progress.Delete(chi.URLParam(r, "serial")); err != nil {
		return nil, mapError(err)
	}
	return nil, nil
}

func (s *BackendService) ListReports(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListReportsParams](r)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(r.Context()).Preload("Session").Order("creation_time DESC")
	if params.SessionId != "" {
		sessionId, err := uuid.Parse(params.SessionId)
		if err != nil {
			return nil, CodedErrorf(http.StatusBadRequest, "invalid session_id: %v", err)
		}
		query = query.Where("session_id = ?", sessionId)
	}

	var reports []database.Report
	if err := query.Find(&reports).Error; err != nil {
		slog.Error("error listing reports", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error listing reports")
	}

	out := make([]api.Report, 0, len(reports))
	for _, rep := range reports {
		converted, err := convertReport(rep)
		if err != nil {
			return nil, CodedError(http.StatusInternalServerError, err)
		}
		out = append(out, converted)
	}
	return out, nil
}

func (s *BackendService) report(r *http.Request) (*database.Report, error) {
	id, err := URLParamUUID(r, "report_id")
	if err != nil {
		return nil, err
	}
	rep, err := database.GetReport(r.Context(), s.db, id)
	if err != nil {
		return nil, mapError(err)
	}
	return rep, nil
}

func (s *BackendService) GetReport(r *http.Request) (any, error) {
	rep, err := s.report(r)
	if err != nil {
		return nil, err
	}
	out, err := convertReport(*rep)
	if err != nil {
		return nil, CodedError(http.StatusInternalServerError, err)
	}
	return out, nil
}

// openArtifact prefers the archived copy and falls back to the file the
// worker wrote locally.
func (s *BackendService) openArtifact(ctx context.Context, rep *database.Report, key, path string) (io.ReadCloser, error) {
	if rep.Status != database.ReportCompleted {
		return nil, CodedErrorf(http.StatusConflict, "report is %s", rep.Status)
	}

	if s.storage != nil && key != "" {
		body, err := s.storage.GetObject(ctx, s.bucket, key)
		if err == nil {
			return body, nil
		}
		if path == "" {
			return nil, mapError(err)
		}
		slog.Warn("archived report unavailable, using local copy", "report_id", rep.Id, "key", key, "error", err)
	}

	if path == "" {
		return nil, CodedErrorf(http.StatusNotFound, "report file not found")
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, CodedErrorf(http.StatusNotFound, "report file not found")
		}
		return nil, CodedError(http.StatusInternalServerError, err)
	}
	return f, nil
}

func artifactName(key, path string) string {
	if path != "" {
		return filepath.Base(path)
	}
	return filepath.Base(key)
}

func (s *BackendService) GetReportPdf(r *http.Request) (*Blob, error) {
	rep, err := s.report(r)
	if err != nil {
		return nil, err
	}
	body, err := s.openArtifact(r.Context(), rep, rep.PdfKey, rep.PdfPath)
	if err != nil {
		return nil, err
	}
	return &Blob{ContentType: "application/pdf", Filename: artifactName(rep.PdfKey, rep.PdfPath), Body: body}, nil
}

func (s *BackendService) GetReportDocx(r *http.Request) (*Blob, error) {
	rep, err := s.report(r)
	if err != nil {
		return nil, err
	}
	body, err := s.openArtifact(r.Context(), rep, rep.DocxKey, rep.DocxPath)
	if err != nil {
		return nil, err
	}
	return &Blob{
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Filename:    artifactName(rep.DocxKey, rep.DocxPath),
		Body:        body,
	}, nil
}

func (s *BackendService) GetReportPreview(r *http.Request) (*Blob, error) {
	rep, err := s.report(r)
	if err != nil {
		return nil, err
	}
	params, err := ParseRequestQueryParams[api.PreviewParams](r)
	if err != nil {
		return nil, err
	}

	body, err := s.openArtifact(r.Context(), rep, rep.PdfKey, rep.PdfPath)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	pdf, err := io.ReadAll(body)
	if err != nil {
		return nil, CodedError(http.StatusInternalServerError, err)
	}

	page := params.Page
	if page > 0 {
		page--
	}
	png, err := report.Preview(pdf, page, params.Dpi)
	if err != nil {
		return nil, CodedError(http.StatusBadRequest, err)
	}
	return &Blob{ContentType: "image/png", Size: int64(len(png)), Body: io.NopCloser(bytes.NewReader(png))}, nil
}

func (s *BackendService) ListArchive(r *http.Request) (any, error) {
	rep, err := s.report(r)
	if err != nil {
		return nil, err
	}
	if s.storage == nil {
		return []api.ArchiveObject{}, nil
	}

	objects, err := s.storage.ListObjects(r.Context(), s.bucket, rep.SessionId.String()+"/")
	if err != nil {
		return nil, CodedError(http.StatusInternalServerError, err)
	}

	res := make([]api.ArchiveObject, 0, len(objects))
	for _, obj := range objects {
		res = append(res, api.ArchiveObject{Key: obj.Name, Size: obj.Size})
	}
	return res, nil
}
