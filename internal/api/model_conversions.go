package api

import (
	"camqc-backend/internal/camera"
	"camqc-backend/internal/capture"
	"camqc-backend/internal/database"
	"camqc-backend/internal/progress"
	"camqc-backend/internal/scanner"
	"camqc-backend/internal/session"
	"camqc-backend/internal/workflow"
	"camqc-backend/pkg/api"
)

func convertCameras(infos []camera.Info) []api.Camera {
	cameras := make([]api.Camera, 0, len(infos))
	for _, info := range infos {
		cameras = append(cameras, api.Camera{
			Index:  info.Index,
			Name:   info.Name,
			Width:  info.Width,
			Height: info.Height,
			Open:   info.Open,
		})
	}
	return cameras
}

func convertStep(s workflow.Step) api.Step {
	step := api.Step{
		Title:              s.Title,
		Instructions:       s.Instructions,
		ReferenceImage:     s.ReferenceImage,
		RequirePhoto:       s.RequirePhoto,
		RequireAnnotations: s.RequireAnnotations,
		RequirePassFail:    s.RequirePassFail,
	}
	for _, cb := range s.InspectionCheckboxes {
		step.InspectionCheckboxes = append(step.InspectionCheckboxes, api.Checkbox{X: cb.X, Y: cb.Y})
	}
	return step
}

func convertWorkflow(wf workflow.Workflow) api.Workflow {
	steps := make([]api.Step, 0, len(wf.Steps))
	for _, s := range wf.Steps {
		steps = append(steps, convertStep(s))
	}
	return api.Workflow{Name: wf.Name, Description: wf.Description, Steps: steps}
}

func toWorkflow(wf api.Workflow) workflow.Workflow {
	steps := make([]workflow.Step, 0, len(wf.Steps))
	for _, s := range wf.Steps {
		step := workflow.Step{
			Title:              s.Title,
			Instructions:       s.Instructions,
			ReferenceImage:     s.ReferenceImage,
			RequirePhoto:       s.RequirePhoto,
			RequireAnnotations: s.RequireAnnotations,
			RequirePassFail:    s.RequirePassFail,
		}
		for _, cb := range s.InspectionCheckboxes {
			step.InspectionCheckboxes = append(step.InspectionCheckboxes, workflow.Checkbox{X: cb.X, Y: cb.Y})
		}
		steps = append(steps, step)
	}
	return workflow.Workflow{Name: wf.Name, Description: wf.Description, Steps: steps}
}

func convertSummaries(summaries []workflow.Summary) []api.WorkflowSummary {
	out := make([]api.WorkflowSummary, 0, len(summaries))
	for _, s := range summaries {
		steps := make([]api.StepSummary, 0, len(s.Steps))
		for _, step := range s.Steps {
			steps = append(steps, api.StepSummary{Title: step.Title, Requirements: step.Requirements})
		}
		out = append(out, api.WorkflowSummary{
			Slug:        s.Slug,
			Name:        s.Name,
			Description: s.Description,
			StepCount:   s.StepCount,
			Steps:       steps,
		})
	}
	return out
}

func toMarkers(ms []api.Marker) []capture.Marker {
	markers := make([]capture.Marker, 0, len(ms))
	for _, m := range ms {
		angle := capture.DefaultMarkerAngle
		if m.Angle != nil {
			angle = *m.Angle
		}
		markers = append(markers, capture.Marker{Label: m.Label, X: m.X, Y: m.Y, Angle: angle, Note: m.Note})
	}
	return markers
}

func convertCapture(c session.Capture) api.Capture {
	out := api.Capture{
		Id:        c.Id,
		Path:      c.Path,
		Camera:    c.Camera,
		Notes:     c.Notes,
		Type:      c.Type,
		Timestamp: c.Timestamp,
		Markers:   make([]api.Marker, 0, len(c.Markers)),
		Step:      c.Step,
		StepTitle: c.StepTitle,
	}
	for _, m := range c.Markers {
		angle := m.Angle
		out.Markers = append(out.Markers, api.Marker{Label: m.Label, X: m.X, Y: m.Y, Angle: &angle, Note: m.Note})
	}
	for _, s := range c.BarcodeScans {
		out.BarcodeScans = append(out.BarcodeScans, api.BarcodeScan{Text: s.Text, Format: s.Format, Timestamp: s.Timestamp})
	}
	return out
}

func convertCaptures(cs []session.Capture) []api.Capture {
	captures := make([]api.Capture, 0, len(cs))
	for _, c := range cs {
		captures = append(captures, convertCapture(c))
	}
	return captures
}

func convertDetection(d *scanner.Detection) *api.Detection {
	if d == nil {
		return nil
	}
	return &api.Detection{Text: d.Text, Format: d.Format, Timestamp: d.Timestamp}
}

func convertScanState(s session.ScanState) api.ScanState {
	return api.ScanState{Running: s.Running, Count: s.Count, Latest: convertDetection(s.Latest)}
}

func convertSession(v session.View) api.Session {
	out := api.Session{
		Id:           v.Id,
		Mode:         int(v.Mode),
		ModeName:     v.Mode.String(),
		Serial:       v.Serial,
		Description:  v.Description,
		Technician:   v.Technician,
		CameraIndex:  v.CameraIndex,
		CameraName:   v.CameraName,
		Recording:    v.Recording,
		Scan:         convertScanState(v.Scan),
		CaptureCount: v.CaptureCount,
		CreationTime: v.CreatedAt,
	}
	if wf := v.Workflow; wf != nil {
		out.Workflow = &api.WorkflowState{
			Name:        wf.Name,
			Path:        wf.Path,
			Description: wf.Description,
			Current: api.StepState{
				Index:        wf.Current.Index,
				Count:        wf.Current.Count,
				Step:         convertStep(wf.Current.Step),
				Status:       wf.Current.Status,
				Requirements: wf.Current.Requirements,
				Checkboxes:   wf.Current.Checkboxes,
				Result:       wf.Current.Result,
				IsLast:       wf.Current.IsLast,
			},
		}
	}
	return out
}

func convertSessions(vs []session.View) []api.Session {
	sessions := make([]api.Session, 0, len(vs))
	for _, v := range vs {
		sessions = append(sessions, convertSession(v))
	}
	return sessions
}

func convertChecklist(items []workflow.ChecklistItem) []api.ChecklistItem {
	out := make([]api.ChecklistItem, 0, len(items))
	for _, item := range items {
		out = append(out, api.ChecklistItem{
			Step:          item.Step,
			Name:          item.Name,
			Passed:        item.Passed,
			Description:   item.Description,
			CheckboxImage: item.CheckboxImage,
		})
	}
	return out
}

func convertProgress(snap progress.Snapshot) api.Progress {
	return api.Progress{
		Serial:         snap.SerialNumber,
		WorkflowPath:   snap.WorkflowPath,
		CurrentStep:    snap.CurrentStep,
		Technician:     snap.Technician,
		Description:    snap.Description,
		CapturedImages: len(snap.CapturedImages),
		RecordedVideos: len(snap.RecordedVideos),
		SavedAt:        snap.SavedAt,
	}
}

func convertReport(r database.Report) (api.Report, error) {
	checklist, err := database.FromJSON[[]workflow.ChecklistItem](r.Checklist)
	if err != nil {
		return api.Report{}, err
	}

	report := api.Report{
		Id:           r.Id,
		SessionId:    r.SessionId,
		Status:       r.Status,
		PageCount:    r.PageCount,
		Attempts:     r.Attempts,
		Error:        r.Error,
		HasPdf:       r.PdfPath != "" || r.PdfKey != "",
		HasDocx:      r.DocxPath != "" || r.DocxKey != "",
		Checklist:    convertChecklist(checklist),
		CreationTime: r.CreationTime,
	}
	if r.Session != nil {
		report.Serial = r.Session.SerialNumber
	}
	if r.CompletionTime.Valid {
		t := r.CompletionTime.Time
		report.CompletionTime = &t
	}
	return report, nil
}
