package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"camqc-backend/pkg/api"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const editorPasswordHeader = "X-Editor-Password"

// Error is returned for any non 2xx response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the /api/v1 routes of a camqc backend.
type Client struct {
	client *resty.Client
}

// New creates a client for the backend at baseURL, e.g. http://localhost:3001.
func New(baseURL string) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/") + "/api/v1").
			SetTimeout(2 * time.Minute),
	}
}

// WithEditorPassword sets the password sent with workflow edits.
func (c *Client) WithEditorPassword(password string) *Client {
	c.client.SetHeader(editorPasswordHeader, password)
	return c
}

func do[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var out T
	req := c.client.R().SetContext(ctx).SetResult(&out)
	if body != nil {
		req.SetBody(body)
	}

	res, err := req.Execute(method, path)
	if err != nil {
		return out, fmt.Errorf("error calling %s %s: %w", method, path, err)
	}
	if !res.IsSuccess() {
		return out, &Error{StatusCode: res.StatusCode(), Message: strings.TrimSpace(res.String())}
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) error {
	_, err := do[struct{}](ctx, c, http.MethodGet, "/health", nil)
	return err
}

func (c *Client) ListCameras(ctx context.Context) ([]api.Camera, error) {
	return do[[]api.Camera](ctx, c, http.MethodGet, "/cameras", nil)
}

func (c *Client) DiscoverCameras(ctx context.Context) ([]api.Camera, error) {
	return do[[]api.Camera](ctx, c, http.MethodPost, "/cameras/discover", nil)
}

func (c *Client) ListWorkflows(ctx context.Context) ([]api.WorkflowSummary, error) {
	return do[[]api.WorkflowSummary](ctx, c, http.MethodGet, "/workflows", nil)
}

func (c *Client) GetWorkflow(ctx context.Context, slug string) (api.Workflow, error) {
	return do[api.Workflow](ctx, c, http.MethodGet, "/workflows/"+slug, nil)
}

func (c *Client) CreateWorkflow(ctx context.Context, wf api.Workflow) (string, error) {
	res, err := do[api.SaveWorkflowResponse](ctx, c, http.MethodPost, "/workflows", api.SaveWorkflowRequest{Workflow: wf})
	return res.Slug, err
}

func (c *Client) UpdateWorkflow(ctx context.Context, slug string, req api.SaveWorkflowRequest) (string, error) {
	res, err := do[api.SaveWorkflowResponse](ctx, c, http.MethodPut, "/workflows/"+slug, req)
	return res.Slug, err
}

func (c *Client) ImportWorkflow(ctx context.Context, format string, document []byte) (string, error) {
	res, err := do[api.SaveWorkflowResponse](ctx, c, http.MethodPost, "/workflows/import", api.ImportWorkflowRequest{
		Format:   format,
		Document: string(document),
	})
	return res.Slug, err
}

func (c *Client) DeleteWorkflow(ctx context.Context, slug string) error {
	_, err := do[struct{}](ctx, c, http.MethodDelete, "/workflows/"+slug, nil)
	return err
}

func sessionPath(id uuid.UUID, parts ...string) string {
	return "/sessions/" + id.String() + strings.Join(parts, "")
}

func (c *Client) CreateSession(ctx context.Context, req api.CreateSessionRequest) (api.Session, error) {
	return do[api.Session](ctx, c, http.MethodPost, "/sessions", req)
}

func (c *Client) ListSessions(ctx context.Context) ([]api.Session, error) {
	return do[[]api.Session](ctx, c, http.MethodGet, "/sessions", nil)
}

func (c *Client) GetSession(ctx context.Context, id uuid.UUID) (api.Session, error) {
	return do[api.Session](ctx, c, http.MethodGet, sessionPath(id), nil)
}

func (c *Client) CloseSession(ctx context.Context, id uuid.UUID) error {
	_, err := do[struct{}](ctx, c, http.MethodDelete, sessionPath(id), nil)
	return err
}

func (c *Client) SelectCamera(ctx context.Context, id uuid.UUID, index int) (api.Session, error) {
	return do[api.Session](ctx, c, http.MethodPost, sessionPath(id, "/camera"), api.SelectCameraRequest{Index: index})
}

func (c *Client) Scan(ctx context.Context, id uuid.UUID) (api.ScanState, error) {
	return do[api.ScanState](ctx, c, http.MethodGet, sessionPath(id, "/scan"), nil)
}

func (c *Client) ApplyScan(ctx context.Context, id uuid.UUID) (string, error) {
	res, err := do[api.ApplyScanResponse](ctx, c, http.MethodPost, sessionPath(id, "/scan/apply"), nil)
	return res.Serial, err
}

func (c *Client) Capture(ctx context.Context, id uuid.UUID, req api.CaptureRequest) (api.Capture, error) {
	return do[api.Capture](ctx, c, http.MethodPost, sessionPath(id, "/captures"), req)
}

func (c *Client) ListCaptures(ctx context.Context, id uuid.UUID, query string) ([]api.Capture, error) {
	var out []api.Capture
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("query", query).
		SetResult(&out).
		Get(sessionPath(id, "/captures"))
	if err != nil {
		return nil, fmt.Errorf("error listing captures: %w", err)
	}
	if !res.IsSuccess() {
		return nil, &Error{StatusCode: res.StatusCode(), Message: strings.TrimSpace(res.String())}
	}
	return out, nil
}

func (c *Client) StartRecording(ctx context.Context, id uuid.UUID) (string, error) {
	res, err := do[api.StartRecordingResponse](ctx, c, http.MethodPost, sessionPath(id, "/recording"), nil)
	return res.Path, err
}

func (c *Client) StopRecording(ctx context.Context, id uuid.UUID) (api.Capture, error) {
	return do[api.Capture](ctx, c, http.MethodDelete, sessionPath(id, "/recording"), nil)
}

func (c *Client) NextStep(ctx context.Context, id uuid.UUID) (api.Session, error) {
	return do[api.Session](ctx, c, http.MethodPost, sessionPath(id, "/steps/next"), nil)
}

func (c *Client) PreviousStep(ctx context.Context, id uuid.UUID) (api.Session, error) {
	return do[api.Session](ctx, c, http.MethodPost, sessionPath(id, "/steps/previous"), nil)
}

// SetCheckbox and SetResult take 1-based step and checkbox numbers.
func (c *Client) SetCheckbox(ctx context.Context, id uuid.UUID, step, index int, checked bool) (api.Session, error) {
	path := sessionPath(id, "/steps/", strconv.Itoa(step), "/checkboxes/", strconv.Itoa(index))
	return do[api.Session](ctx, c, http.MethodPut, path, api.SetCheckboxRequest{Checked: checked})
}

func (c *Client) SetResult(ctx context.Context, id uuid.UUID, step int, pass bool) (api.Session, error) {
	path := sessionPath(id, "/steps/", strconv.Itoa(step), "/result")
	return do[api.Session](ctx, c, http.MethodPut, path, api.SetResultRequest{Pass: pass})
}

func (c *Client) FinishSession(ctx context.Context, id uuid.UUID, generateReport bool) (api.FinishResponse, error) {
	return do[api.FinishResponse](ctx, c, http.MethodPost, sessionPath(id, "/finish"), api.FinishRequest{GenerateReport: generateReport})
}

func (c *Client) GetProgress(ctx context.Context, serial string) (api.Progress, error) {
	return do[api.Progress](ctx, c, http.MethodGet, "/progress/"+serial, nil)
}

func (c *Client) ResumeProgress(ctx context.Context, serial string, req api.ResumeRequest) (api.Session, error) {
	return do[api.Session](ctx, c, http.MethodPost, "/progress/"+serial+"/resume", req)
}

func (c *Client) DeleteProgress(ctx context.Context, serial string) error {
	_, err := do[struct{}](ctx, c, http.MethodDelete, "/progress/"+serial, nil)
	return err
}

func (c *Client) ListReports(ctx context.Context) ([]api.Report, error) {
	return do[[]api.Report](ctx, c, http.MethodGet, "/reports", nil)
}

func (c *Client) GetReport(ctx context.Context, id uuid.UUID) (api.Report, error) {
	return do[api.Report](ctx, c, http.MethodGet, "/reports/"+id.String(), nil)
}

func (c *Client) ListArchive(ctx context.Context, id uuid.UUID) ([]api.ArchiveObject, error) {
	return do[[]api.ArchiveObject](ctx, c, http.MethodGet, "/reports/"+id.String()+"/archive", nil)
}

// WaitForReport polls until the report leaves the queued and in progress
// states or ctx is done.
func (c *Client) WaitForReport(ctx context.Context, id uuid.UUID, interval time.Duration) (api.Report, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		rep, err := c.GetReport(ctx, id)
		if err != nil {
			return rep, err
		}
		if rep.Status == "COMPLETED" || rep.Status == "FAILED" {
			return rep, nil
		}

		select {
		case <-ctx.Done():
			return rep, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Download is a streamed binary response. Size is -1 when the server did not
// send a length.
type Download struct {
	Filename string
	Size     int64
	Body     io.ReadCloser
}

// DownloadReport streams the "pdf" or "docx" artifact of a report.
func (c *Client) DownloadReport(ctx context.Context, id uuid.UUID, kind string) (*Download, error) {
	return c.download(ctx, "/reports/"+id.String()+"/"+kind, nil)
}

// Preview returns a PNG of one report page. page is 1-based.
func (c *Client) Preview(ctx context.Context, id uuid.UUID, page int, dpi float64) (*Download, error) {
	return c.download(ctx, "/reports/"+id.String()+"/preview", map[string]string{
		"page": strconv.Itoa(page),
		"dpi":  strconv.FormatFloat(dpi, 'f', -1, 64),
	})
}

// Frame returns the current JPEG frame of a session's camera.
func (c *Client) Frame(ctx context.Context, id uuid.UUID) (*Download, error) {
	return c.download(ctx, sessionPath(id, "/frame"), nil)
}

func (c *Client) download(ctx context.Context, path string, query map[string]string) (*Download, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetDoNotParseResponse(true).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("error downloading %s: %w", path, err)
	}

	raw := res.RawBody()
	if !res.IsSuccess() {
		defer raw.Close()
		msg, _ := io.ReadAll(raw)
		return nil, &Error{StatusCode: res.StatusCode(), Message: strings.TrimSpace(string(msg))}
	}

	return &Download{
		Filename: attachmentName(res.Header().Get("Content-Disposition")),
		Size:     res.RawResponse.ContentLength,
		Body:     raw,
	}, nil
}

func attachmentName(disposition string) string {
	_, name, ok := strings.Cut(disposition, "filename=")
	if !ok {
		return ""
	}
	if unquoted, err := strconv.Unquote(name); err == nil {
		return unquoted
	}
	return strings.Trim(name, `"`)
}
