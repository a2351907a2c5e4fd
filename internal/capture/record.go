package capture

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	TypeImage = "image"
	TypeVideo = "video"

	DefaultMarkerAngle = 45.0
)

// Marker is an annotation arrow placed on a captured image. X and Y are in
// preview coordinates and mark the arrow tip. Angle is in degrees clockwise
// from +x; at 45 the label sits below and right of the tip.
type Marker struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
	Note  string  `json:"note,omitempty"`
}

type BarcodeScan struct {
	Text      string    `json:"text"`
	Format    string    `json:"format"`
	Timestamp time.Time `json:"timestamp"`
}

// Record describes one captured image or video. Step is 1-based and 0 when
// the capture was not taken inside a workflow.
type Record struct {
	Path         string        `json:"path"`
	Camera       string        `json:"camera"`
	Notes        string        `json:"notes"`
	Timestamp    time.Time     `json:"timestamp"`
	Type         string        `json:"type"`
	Markers      []Marker      `json:"markers"`
	Step         int           `json:"step,omitempty"`
	StepTitle    string        `json:"step_title,omitempty"`
	BarcodeScans []BarcodeScan `json:"barcode_scans,omitempty"`
}

var videoExts = map[string]bool{".avi": true, ".mp4": true, ".mov": true, ".mkv": true}

func IsVideo(rec Record) bool {
	return rec.Type == TypeVideo || videoExts[strings.ToLower(filepath.Ext(rec.Path))]
}

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Label returns the marker label for the n-th marker (0 based): A..Z, then
// AA, AB, ...
func Label(n int) string {
	if n < 0 {
		return ""
	}
	if n < 26 {
		return string(letters[n])
	}
	return string(letters[(n/26-1)%26]) + string(letters[n%26])
}

// NormalizeMarkers fills in missing labels.
func NormalizeMarkers(markers []Marker) []Marker {
	out := make([]Marker, len(markers))
	for i, m := range markers {
		if m.Label == "" {
			m.Label = Label(i)
		}
		out[i] = m
	}
	return out
}
