package core

import (
	"fmt"

	"camqc-backend/internal/capture"
	"camqc-backend/internal/database"

	"github.com/google/uuid"
)

func NewCaptureRow(sessionId uuid.UUID, rec capture.Record) (database.Capture, error) {
	markers, err := database.ToJSON(rec.Markers)
	if err != nil {
		return database.Capture{}, err
	}
	scans, err := database.ToJSON(rec.BarcodeScans)
	if err != nil {
		return database.Capture{}, err
	}

	return database.Capture{
		Id:           uuid.New(),
		SessionId:    sessionId,
		Path:         rec.Path,
		Camera:       rec.Camera,
		Notes:        rec.Notes,
		Type:         rec.Type,
		Step:         rec.Step,
		StepTitle:    rec.StepTitle,
		Markers:      markers,
		BarcodeScans: scans,
		Timestamp:    rec.Timestamp,
	}, nil
}

func CaptureRecord(row database.Capture) (capture.Record, error) {
	markers, err := database.FromJSON[[]capture.Marker](row.Markers)
	if err != nil {
		return capture.Record{}, fmt.Errorf("capture %s: %w", row.Id, err)
	}
	scans, err := database.FromJSON[[]capture.BarcodeScan](row.BarcodeScans)
	if err != nil {
		return capture.Record{}, fmt.Errorf("capture %s: %w", row.Id, err)
	}

	return capture.Record{
		Path:         row.Path,
		Camera:       row.Camera,
		Notes:        row.Notes,
		Timestamp:    row.Timestamp,
		Type:         row.Type,
		Markers:      markers,
		Step:         row.Step,
		StepTitle:    row.StepTitle,
		BarcodeScans: scans,
	}, nil
}
