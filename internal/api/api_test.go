package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	backend "camqc-backend/internal/api"
	"camqc-backend/internal/camera"
	"camqc-backend/internal/core"
	"camqc-backend/internal/database"
	"camqc-backend/internal/messaging"
	"camqc-backend/internal/progress"
	"camqc-backend/internal/session"
	"camqc-backend/internal/storage"
	"camqc-backend/internal/workflow"
	"camqc-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	password = "secret"
	bucket   = "reports"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	return db
}

type testEnv struct {
	router   chi.Router
	db       *gorm.DB
	queue    *messaging.InMemoryQueue
	progress *progress.Store
	root     string
}

func setup(t *testing.T) *testEnv {
	root := t.TempDir()

	dev := camera.NewFakeDevice("Bench Camera", camera.SolidFrame(200, 150, color.RGBA{R: 40, G: 90, B: 160, A: 255}))
	cams := camera.NewManager(camera.FakeOpener(dev), 2)
	cams.Rediscover()
	t.Cleanup(cams.Close)

	workflows, err := workflow.NewStore(filepath.Join(root, "workflows"))
	require.NoError(t, err)
	require.NoError(t, workflows.SeedDefaults())
	_, err = workflows.Create(workflow.Workflow{
		Name:  "Single Step Check",
		Steps: []workflow.Step{{Title: "Overall", RequirePhoto: true, RequirePassFail: true}},
	})
	require.NoError(t, err)

	store, err := storage.NewLocalObjectStore(filepath.Join(root, "storage"))
	require.NoError(t, err)

	db := createDB(t)
	queue := messaging.NewInMemoryQueue()
	prog := progress.NewStore(root, 0)

	sessions := session.NewManager(session.Deps{
		Cameras:      cams,
		Workflows:    workflows,
		Progress:     prog,
		DB:           db,
		Publisher:    queue,
		MediaRoot:    root,
		ScanInterval: 10 * time.Millisecond,
	})
	t.Cleanup(sessions.Shutdown)

	processor := core.NewTaskProcessor(db, store, queue, queue, core.ReportOptions{
		OutputDir:   filepath.Join(root, "output"),
		TitlePrefix: "Bench",
		Bucket:      bucket,
		ImageJobs:   2,
	})
	go processor.Start()
	t.Cleanup(processor.Stop)

	service := backend.NewBackendService(backend.Services{
		DB:             db,
		Storage:        store,
		Bucket:         bucket,
		Cameras:        cams,
		Workflows:      workflows,
		Progress:       prog,
		Sessions:       sessions,
		EditorPassword: password,
	})
	router := chi.NewRouter()
	service.AddRoutes(router)

	return &testEnv{router: router, db: db, queue: queue, progress: prog, root: root}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndCameras(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/cameras", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cameras := decode[[]api.Camera](t, rec)
	require.Len(t, cameras, 1)
	assert.Equal(t, api.Camera{Index: 0, Name: "Bench Camera", Width: 200, Height: 150, Open: true}, cameras[0])

	rec = e.do(t, http.MethodPost, "/cameras/discover", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.Camera](t, rec), 1)
}

func TestWorkflowEditing(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.WorkflowSummary](t, rec), 3)

	wf := api.Workflow{
		Name: "Vacuum Cup Check",
		Steps: []api.Step{
			{Title: "Cups", Instructions: "Inspect every cup", RequirePhoto: true},
			{Title: "Hoses", InspectionCheckboxes: []api.Checkbox{{X: 0.1, Y: 0.2}}},
		},
	}

	rec = e.do(t, http.MethodPost, "/workflows", api.SaveWorkflowRequest{Workflow: wf})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/workflows", api.SaveWorkflowRequest{Workflow: wf}, backend.EditorPasswordHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/workflows", api.SaveWorkflowRequest{Workflow: wf}, backend.EditorPasswordHeader, password)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "vacuum_cup_check", decode[api.SaveWorkflowResponse](t, rec).Slug)

	rec = e.do(t, http.MethodPost, "/workflows", api.SaveWorkflowRequest{Workflow: wf}, backend.EditorPasswordHeader, password)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/workflows", api.SaveWorkflowRequest{Workflow: api.Workflow{Name: "Empty"}}, backend.EditorPasswordHeader, password)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/workflows/vacuum_cup_check", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wf, decode[api.Workflow](t, rec))

	rec = e.do(t, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	wf.Name = "Vacuum Cups"
	rec = e.do(t, http.MethodPut, "/workflows/vacuum_cup_check", api.SaveWorkflowRequest{Workflow: wf, KeepOld: true}, backend.EditorPasswordHeader, password)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "vacuum_cups", decode[api.SaveWorkflowResponse](t, rec).Slug)

	rec = e.do(t, http.MethodGet, "/workflows/vacuum_cup_check", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	wf.Name = "Vacuum"
	rec = e.do(t, http.MethodPut, "/workflows/vacuum_cups", api.SaveWorkflowRequest{Workflow: wf}, backend.EditorPasswordHeader, password)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, "/workflows/vacuum_cups", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	doc := "name: Imported\nsteps:\n  - title: Only step\n    require_pass_fail: true\n"
	rec = e.do(t, http.MethodPost, "/workflows/import", api.ImportWorkflowRequest{Format: "yaml", Document: doc}, backend.EditorPasswordHeader, password)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "imported", decode[api.SaveWorkflowResponse](t, rec).Slug)

	rec = e.do(t, http.MethodPost, "/workflows/import", api.ImportWorkflowRequest{Format: "xml", Document: doc}, backend.EditorPasswordHeader, password)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/workflows/import", api.ImportWorkflowRequest{Document: `{"name": "No steps"}`}, backend.EditorPasswordHeader, password)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodDelete, "/workflows/imported", nil, backend.EditorPasswordHeader, password)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodDelete, "/workflows/imported", nil, backend.EditorPasswordHeader, password)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.WorkflowSummary](t, rec), 5)
}

func createSession(t *testing.T, e *testEnv, req api.CreateSessionRequest) api.Session {
	rec := e.do(t, http.MethodPost, "/sessions", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[api.Session](t, rec)
}

func TestHashedEditorPassword(t *testing.T) {
	workflows, err := workflow.NewStore(t.TempDir())
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)

	router := chi.NewRouter()
	backend.NewBackendService(backend.Services{Workflows: workflows, EditorPassword: string(hash)}).AddRoutes(router)

	doc := "name: Hashed\nsteps:\n  - title: One\n"
	do := func(pw string) int {
		data, err := json.Marshal(api.ImportWorkflowRequest{Format: "yaml", Document: doc})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/workflows/import", bytes.NewReader(data))
		req.Header.Set(backend.EditorPasswordHeader, pw)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(string(hash)), "the hash itself is not the password")
	assert.Equal(t, http.StatusOK, do("letmein"))
}

func TestGeneralCaptureFlow(t *testing.T) {
	e := setup(t)
	camIndex := 0

	rec := e.do(t, http.MethodPost, "/sessions", api.CreateSessionRequest{Mode: "audit"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sess := createSession(t, e, api.CreateSessionRequest{Mode: "1", Serial: "SN-100", Camera: &camIndex})
	assert.Equal(t, "General", sess.ModeName)
	assert.Equal(t, "Bench Camera", sess.CameraName)
	base := "/sessions/" + sess.Id.String()

	rec = e.do(t, http.MethodGet, base+"/frame", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	frame, err := jpeg.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 200, frame.Bounds().Dx())

	angle := 90.0
	rec = e.do(t, http.MethodPost, base+"/captures", api.CaptureRequest{
		Notes:         "weld seam",
		Markers:       []api.Marker{{X: 50, Y: 40, Note: "crack"}, {X: 20, Y: 20, Angle: &angle}},
		PreviewWidth:  100,
		PreviewHeight: 75,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[api.Capture](t, rec)
	require.Len(t, first.Markers, 2)
	assert.Equal(t, "A", first.Markers[0].Label)
	assert.Equal(t, 45.0, *first.Markers[0].Angle)
	assert.Equal(t, 90.0, *first.Markers[1].Angle)

	rec = e.do(t, http.MethodPost, base+"/captures", api.CaptureRequest{Notes: "plain"})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[api.Capture](t, rec)

	rec = e.do(t, http.MethodGet, base+"/captures?query="+url.QueryEscape(`notes CONTAINS "WELD"`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	matched := decode[[]api.Capture](t, rec)
	require.Len(t, matched, 1)
	assert.Equal(t, first.Id, matched[0].Id)

	rec = e.do(t, http.MethodGet, base+"/captures?query="+url.QueryEscape(`notes ~ "x"`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	notes := "weld seam, left side"
	rec = e.do(t, http.MethodPatch, base+"/captures/"+first.Id.String(), api.UpdateCaptureRequest{Notes: &notes})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, notes, decode[api.Capture](t, rec).Notes)

	rec = e.do(t, http.MethodDelete, base+"/captures/"+second.Id.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodDelete, base+"/captures/"+second.Id.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, base+"/steps/next", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, base+"/scan/apply", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, base+"/recording", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasSuffix(decode[api.StartRecordingResponse](t, rec).Path, ".avi"))
	rec = e.do(t, http.MethodPost, base+"/recording", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	time.Sleep(100 * time.Millisecond)
	rec = e.do(t, http.MethodDelete, base+"/recording", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video", decode[api.Capture](t, rec).Type)

	rec = e.do(t, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decode[[]api.Session](t, rec)
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].CaptureCount)

	rec = e.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanStream(t *testing.T) {
	e := setup(t)
	camIndex := 0
	sess := createSession(t, e, api.CreateSessionRequest{Mode: "General", Camera: &camIndex})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+sess.Id.String()+"/scan/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var msg backend.StreamMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, http.StatusOK, msg.Code)
	assert.Empty(t, msg.Error)

	rec = e.do(t, http.MethodGet, "/sessions/"+sess.Id.String()+"/scan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[api.ScanState](t, rec)
	assert.True(t, state.Running)
	assert.Nil(t, state.Latest)
}

func TestWorkflowSessionAndReport(t *testing.T) {
	e := setup(t)
	camIndex := 0

	rec := e.do(t, http.MethodPost, "/sessions", api.CreateSessionRequest{Mode: "QC"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sess := createSession(t, e, api.CreateSessionRequest{
		Mode:       "2",
		Serial:     "EOAT-55",
		Technician: "Robin",
		Workflow:   "single_step_check",
		Camera:     &camIndex,
	})
	require.NotNil(t, sess.Workflow)
	base := "/sessions/" + sess.Id.String()

	rec = e.do(t, http.MethodPost, base+"/finish", api.FinishRequest{GenerateReport: true})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(t, http.MethodPost, base+"/captures", api.CaptureRequest{Notes: "overall"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPut, base+"/steps/1/result", api.SetResultRequest{Pass: true})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[api.Session](t, rec).Workflow.Current.Result
	require.NotNil(t, result)
	assert.True(t, *result)

	rec = e.do(t, http.MethodPut, base+"/steps/9/result", api.SetResultRequest{Pass: true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, base+"/finish", api.FinishRequest{GenerateReport: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	finished := decode[api.FinishResponse](t, rec)
	require.NotNil(t, finished.ReportId)
	require.Len(t, finished.Checklist, 1)
	assert.True(t, finished.Checklist[0].Passed)

	reportPath := "/reports/" + finished.ReportId.String()
	require.Eventually(t, func() bool {
		rec := e.do(t, http.MethodGet, reportPath, nil)
		return rec.Code == http.StatusOK && decode[api.Report](t, rec).Status == database.ReportCompleted
	}, 10*time.Second, 50*time.Millisecond)

	rec = e.do(t, http.MethodGet, reportPath, nil)
	rep := decode[api.Report](t, rec)
	assert.Equal(t, "EOAT-55", rep.Serial)
	assert.True(t, rep.HasPdf)
	assert.True(t, rep.HasDocx)
	assert.Positive(t, rep.PageCount)
	assert.NotNil(t, rep.CompletionTime)

	rec = e.do(t, http.MethodGet, reportPath+"/pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "EOAT-55_")

	rec = e.do(t, http.MethodGet, reportPath+"/docx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))

	rec = e.do(t, http.MethodGet, reportPath+"/preview?page=1&dpi=30", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = e.do(t, http.MethodGet, reportPath+"/preview?page=99", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, reportPath+"/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.ArchiveObject](t, rec), 2)

	rec = e.do(t, http.MethodGet, "/reports?session_id="+sess.Id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.Report](t, rec), 1)

	rec = e.do(t, http.MethodGet, "/reports?session_id=bad", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/reports/%s", sess.Id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressResume(t *testing.T) {
	e := setup(t)
	camIndex := 0

	rec := e.do(t, http.MethodGet, "/workflows/eoat_qc", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	wf := decode[api.Workflow](t, rec)
	require.NotEmpty(t, wf.Steps)

	sess := createSession(t, e, api.CreateSessionRequest{Mode: "QC", Serial: "EOAT-60", Workflow: "eoat_qc", Camera: &camIndex})
	base := "/sessions/" + sess.Id.String()

	rec = e.do(t, http.MethodPost, base+"/captures", api.CaptureRequest{
		Markers: []api.Marker{{X: 10, Y: 10, Note: "wear"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	step := wf.Steps[0]
	if step.RequirePassFail {
		rec = e.do(t, http.MethodPut, base+"/steps/1/result", api.SetResultRequest{Pass: true})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	for i := range step.InspectionCheckboxes {
		rec = e.do(t, http.MethodPut, fmt.Sprintf("%s/steps/1/checkboxes/%d", base, i+1), api.SetCheckboxRequest{Checked: true})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = e.do(t, http.MethodPost, base+"/steps/next", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[api.Session](t, rec).Workflow.Current.Index)

	rec = e.do(t, http.MethodGet, "/progress/EOAT-60", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	saved := decode[api.Progress](t, rec)
	assert.Equal(t, 1, saved.CurrentStep)
	assert.Equal(t, 1, saved.CapturedImages)

	rec = e.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/progress/EOAT-60/resume", api.ResumeRequest{Camera: &camIndex})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resumed := decode[api.Session](t, rec)
	assert.Equal(t, "EOAT-60", resumed.Serial)
	assert.Equal(t, 1, resumed.Workflow.Current.Index)
	assert.Equal(t, 1, resumed.CaptureCount)

	rec = e.do(t, http.MethodPost, "/sessions/"+resumed.Id.String()+"/steps/previous", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[api.Session](t, rec).Workflow.Current.Index)

	rec = e.do(t, http.MethodDelete, "/progress/EOAT-60", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, "/progress/EOAT-60", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodPost, "/progress/EOAT-60/resume", api.ResumeRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
