package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

func UpdateSessionStatus(ctx context.Context, txn *gorm.DB, sessionId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == SessionFinished || status == SessionAbandoned {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&Session{Id: sessionId}).Updates(updates).Error; err != nil {
		slog.Error("error updating session status", "session_id", sessionId, "status", status, "error", err)
		return err
	}
	return nil
}

func UpdateReportStatus(ctx context.Context, txn *gorm.DB, reportId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == ReportCompleted || status == ReportFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&Report{Id: reportId}).Updates(updates).Error; err != nil {
		slog.Error("error updating report status", "report_id", reportId, "status", status, "error", err)
		return err
	}
	return nil
}

// StartReportAttempt marks the report running and counts the attempt.
func StartReportAttempt(ctx context.Context, txn *gorm.DB, reportId uuid.UUID) error {
	updates := map[string]any{
		"status":   ReportRunning,
		"attempts": gorm.Expr("attempts + 1"),
	}
	if err := txn.WithContext(ctx).Model(&Report{Id: reportId}).Updates(updates).Error; err != nil {
		slog.Error("error starting report attempt", "report_id", reportId, "error", err)
		return err
	}
	return nil
}

// SaveReportError marks the report failed and records why.
func SaveReportError(ctx context.Context, txn *gorm.DB, reportId uuid.UUID, message string) {
	updates := map[string]any{
		"status":          ReportFailed,
		"error":           message,
		"completion_time": time.Now().UTC(),
	}
	if err := txn.WithContext(ctx).Model(&Report{Id: reportId}).Updates(updates).Error; err != nil {
		slog.Error("error saving report error", "report_id", reportId, "error", err)
	}
}

// RequeueReport puts a failed report back in the queue, keeping the last error
// so the failure stays visible while the retry is pending.
func RequeueReport(ctx context.Context, txn *gorm.DB, reportId uuid.UUID, message string) error {
	updates := map[string]any{
		"status": ReportQueued,
		"error":  message,
	}
	if err := txn.WithContext(ctx).Model(&Report{Id: reportId}).Updates(updates).Error; err != nil {
		slog.Error("error requeuing report", "report_id", reportId, "error", err)
		return err
	}
	return nil
}

// CompleteReport stores the generated artifacts and marks the report completed.
func CompleteReport(ctx context.Context, txn *gorm.DB, report *Report) error {
	report.Status = ReportCompleted
	report.CompletionTime.Time = time.Now().UTC()
	report.CompletionTime.Valid = true

	err := txn.WithContext(ctx).Model(&Report{Id: report.Id}).Updates(map[string]any{
		"status":          report.Status,
		"pdf_path":        report.PdfPath,
		"docx_path":       report.DocxPath,
		"pdf_key":         report.PdfKey,
		"docx_key":        report.DocxKey,
		"page_count":      report.PageCount,
		"error":           "",
		"completion_time": report.CompletionTime,
	}).Error
	if err != nil {
		slog.Error("error completing report", "report_id", report.Id, "error", err)
		return fmt.Errorf("error completing report: %w", err)
	}
	return nil
}

func GetSession(ctx context.Context, db *gorm.DB, sessionId uuid.UUID) (*Session, error) {
	var session Session
	if err := db.WithContext(ctx).First(&session, "id = ?", sessionId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error loading session %s: %w", sessionId, err)
	}
	return &session, nil
}

func GetReport(ctx context.Context, db *gorm.DB, reportId uuid.UUID) (*Report, error) {
	var report Report
	if err := db.WithContext(ctx).Preload("Session").First(&report, "id = ?", reportId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error loading report %s: %w", reportId, err)
	}
	return &report, nil
}

// ListCaptures returns the captures of a session in capture order.
func ListCaptures(ctx context.Context, db *gorm.DB, sessionId uuid.UUID) ([]Capture, error) {
	var captures []Capture
	if err := db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		Order("timestamp ASC").
		Find(&captures).Error; err != nil {
		return nil, fmt.Errorf("error listing captures for session %s: %w", sessionId, err)
	}
	return captures, nil
}

func QueuedReports(ctx context.Context, db *gorm.DB) ([]Report, error) {
	var reports []Report
	if err := db.WithContext(ctx).Where("status = ?", ReportQueued).Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("error listing queued reports: %w", err)
	}
	return reports, nil
}

func ToJSON(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("error encoding json column: %w", err)
	}
	return datatypes.JSON(data), nil
}

func FromJSON[T any](data datatypes.JSON) (T, error) {
	var out T
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("error decoding json column: %w", err)
	}
	return out, nil
}
