package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"camqc-backend/internal/capture"
	"camqc-backend/internal/database"
	"camqc-backend/internal/messaging"
	"camqc-backend/internal/report"
	"camqc-backend/internal/storage"
	"camqc-backend/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReportOptions struct {
	OutputDir   string
	TitlePrefix string
	Bucket      string
	ImageJobs   int

	// MaxAttempts bounds how often a failing report is rendered; values
	// below 1 mean a single attempt. RetryDelay spaces the attempts.
	MaxAttempts int
	RetryDelay  time.Duration
}

type TaskProcessor struct {
	db        *gorm.DB
	storage   storage.ObjectStore
	publisher messaging.Publisher
	reciever  messaging.Reciever

	opts ReportOptions

	stop     chan struct{}
	stopOnce sync.Once
}

func NewTaskProcessor(db *gorm.DB, storage storage.ObjectStore, publisher messaging.Publisher, reciever messaging.Reciever, opts ReportOptions) *TaskProcessor {
	return &TaskProcessor{
		db:        db,
		storage:   storage,
		publisher: publisher,
		reciever:  reciever,
		opts:      opts,
		stop:      make(chan struct{}),
	}
}

func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor")

	tasks := proc.reciever.Tasks()
	for {
		select {
		case task, ok := <-tasks:
			if !ok {
				return
			}
			proc.ProcessTask(task)
		case <-proc.stop:
			return
		}
	}
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.stopOnce.Do(func() { close(proc.stop) })

	proc.publisher.Close()
	proc.reciever.Close()
}

type redeliverable interface {
	Redelivered() bool
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	if task.Type() != messaging.ReportQueue {
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	payload, err := messaging.DecodeReportTask(task)
	if err != nil {
		slog.Error("error decoding report task", "error", err)
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if r, ok := task.(redeliverable); ok && r.Redelivered() {
		slog.Warn("report task redelivered", "report_id", payload.ReportId, "attempt", payload.Attempt)
	}

	ctx := context.Background()
	if err := proc.processReportTask(ctx, payload); err != nil {
		slog.Error("error processing report task", "report_id", payload.ReportId, "attempt", payload.Attempt, "error", err)

		// a retry is a new message, so this delivery is settled either way
		if proc.scheduleRetry(ctx, payload, err) {
			if err := task.Ack(); err != nil {
				slog.Error("error acknowledging message from queue", "error", err)
			}
			return
		}
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
		return
	}

	slog.Info("successfully processed task", "queue", task.Type(), "report_id", payload.ReportId)
	if err := task.Ack(); err != nil {
		slog.Error("error acknowledging message from queue", "error", err)
	}
}

// scheduleRetry requeues a failed report for another attempt. Missing reports
// and exhausted attempts are final: the report is marked failed instead.
func (proc *TaskProcessor) scheduleRetry(ctx context.Context, payload messaging.ReportTaskPayload, cause error) bool {
	if errors.Is(cause, database.ErrNotFound) {
		return false
	}

	next, ok := payload.Retry(proc.opts.MaxAttempts)
	if !ok || proc.publisher == nil {
		database.SaveReportError(ctx, proc.db, payload.ReportId, cause.Error())
		return false
	}

	if err := database.RequeueReport(ctx, proc.db, payload.ReportId, cause.Error()); err != nil {
		database.SaveReportError(ctx, proc.db, payload.ReportId, cause.Error())
		return false
	}

	slog.Info("retrying report", "report_id", payload.ReportId, "attempt", next.Attempt+1, "max_attempts", proc.opts.MaxAttempts, "delay", proc.opts.RetryDelay)
	time.AfterFunc(proc.opts.RetryDelay, func() {
		select {
		case <-proc.stop:
			// left QUEUED; RequeuePending picks it up on the next start
			return
		default:
		}
		if err := proc.publisher.PublishReportTask(context.Background(), next); err != nil {
			slog.Error("error publishing report retry", "report_id", next.ReportId, "error", err)
		}
	})
	return true
}

func (proc *TaskProcessor) processReportTask(ctx context.Context, payload messaging.ReportTaskPayload) error {
	rep, err := database.GetReport(ctx, proc.db, payload.ReportId)
	if err != nil {
		return fmt.Errorf("error loading report %s: %w", payload.ReportId, err)
	}

	if rep.Status == database.ReportCompleted {
		slog.Info("report already generated, skipping", "report_id", rep.Id)
		return nil
	}

	if err := database.StartReportAttempt(ctx, proc.db, rep.Id); err != nil {
		return fmt.Errorf("error marking report running: %w", err)
	}

	if err := proc.generateReport(ctx, rep); err != nil {
		return err
	}

	slog.Info("report generated", "report_id", rep.Id, "pdf", rep.PdfPath, "docx", rep.DocxPath, "pages", rep.PageCount)
	return nil
}

func (proc *TaskProcessor) reportInput(ctx context.Context, rep *database.Report) (report.Input, error) {
	if rep.Session == nil {
		return report.Input{}, fmt.Errorf("report %s has no session", rep.Id)
	}
	session := rep.Session

	rows, err := database.ListCaptures(ctx, proc.db, session.Id)
	if err != nil {
		return report.Input{}, err
	}

	media := make([]capture.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := CaptureRecord(row)
		if err != nil {
			slog.Warn("skipping capture with invalid metadata", "capture_id", row.Id, "error", err)
			continue
		}
		media = append(media, rec)
	}

	checklist, err := database.FromJSON[[]workflow.ChecklistItem](rep.Checklist)
	if err != nil {
		return report.Input{}, fmt.Errorf("error reading checklist for report %s: %w", rep.Id, err)
	}

	return report.Input{
		TitlePrefix:  proc.opts.TitlePrefix,
		Serial:       session.SerialNumber,
		Description:  session.Description,
		Technician:   session.Technician,
		Mode:         report.Mode(session.Mode),
		WorkflowName: session.WorkflowName,
		Media:        media,
		Checklist:    checklist,
		GeneratedAt:  rep.CreationTime,
	}, nil
}

func (proc *TaskProcessor) generateReport(ctx context.Context, rep *database.Report) error {
	in, err := proc.reportInput(ctx, rep)
	if err != nil {
		return err
	}

	pdfPath, docxPath, err := report.GenerateAll(in, proc.opts.OutputDir, report.Options{ImageJobs: proc.opts.ImageJobs})
	if err != nil {
		return fmt.Errorf("error generating report: %w", err)
	}
	rep.PdfPath, rep.DocxPath = pdfPath, docxPath

	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		return fmt.Errorf("error reading generated pdf: %w", err)
	}
	if rep.PageCount, err = report.PageCount(pdf); err != nil {
		// Page counts only feed previews; a failure here is not fatal.
		slog.Warn("unable to count report pages", "report_id", rep.Id, "error", err)
	}

	if proc.storage != nil {
		if rep.PdfKey, err = proc.archive(ctx, rep.SessionId, pdfPath, pdf); err != nil {
			return err
		}
		docx, err := os.ReadFile(docxPath)
		if err != nil {
			return fmt.Errorf("error reading generated docx: %w", err)
		}
		if rep.DocxKey, err = proc.archive(ctx, rep.SessionId, docxPath, docx); err != nil {
			return err
		}
	}

	return database.CompleteReport(ctx, proc.db, rep)
}

func ArchiveKey(sessionId uuid.UUID, path string) string {
	return sessionId.String() + "/" + filepath.Base(path)
}

func (proc *TaskProcessor) archive(ctx context.Context, sessionId uuid.UUID, path string, data []byte) (string, error) {
	key := ArchiveKey(sessionId, path)
	if err := proc.storage.PutObject(ctx, proc.opts.Bucket, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("error archiving %s: %w", filepath.Base(path), err)
	}
	return key, nil
}

// RequeuePending publishes a task for every report still marked queued. The
// in-memory queue does not survive restarts, so the local backend calls this
// on startup.
func RequeuePending(ctx context.Context, db *gorm.DB, publisher messaging.Publisher) error {
	reports, err := database.QueuedReports(ctx, db)
	if err != nil {
		return err
	}

	var errs []error
	for _, rep := range reports {
		if err := publisher.PublishReportTask(ctx, messaging.ReportTaskPayload{ReportId: rep.Id}); err != nil {
			errs = append(errs, fmt.Errorf("report %s: %w", rep.Id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("error requeuing reports: %w", errors.Join(errs...))
	}
	slog.Info("requeued pending reports", "count", len(reports))
	return nil
}
