package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

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

var ErrInvalidOptions = errors.New("invalid session options")

// Deps are the shared services sessions run against. DB, Publisher and
// Progress may be nil, in which case sessions are not cataloged, reports are
// not queued and progress is not saved.
type Deps struct {
	Cameras      CameraPool
	Workflows    *workflow.Store
	Progress     *progress.Store
	DB           *gorm.DB
	Publisher    messaging.Publisher
	MediaRoot    string
	ScanInterval time.Duration
	VideoFPS     int
	Decoder      scanner.Decoder
}

type Options struct {
	Mode        report.Mode
	Serial      string
	Description string
	Technician  string
	// Workflow is the slug of the workflow to run. Required for QC and
	// maintenance sessions.
	Workflow string
	// Camera is selected right away when set. A camera that cannot be opened
	// leaves the session without one.
	Camera *int
}

type Manager struct {
	deps *Deps

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewManager(deps Deps) *Manager {
	return &Manager{deps: &deps, sessions: make(map[uuid.UUID]*Session)}
}

func (m *Manager) register(ctx context.Context, s *Session, opts Options) error {
	if m.deps.DB != nil {
		row := database.Session{
			Id:           s.Id,
			Mode:         int(s.Mode),
			SerialNumber: s.serial,
			Description:  s.description,
			Technician:   s.technician,
			Status:       database.SessionActive,
			CreationTime: s.CreatedAt.UTC(),
		}
		if s.exec != nil {
			row.WorkflowPath = s.exec.Path()
			row.WorkflowName = s.exec.Workflow().Name
		}
		if err := m.deps.DB.WithContext(ctx).Create(&row).Error; err != nil {
			slog.Error("error creating session", "session_id", s.Id, "error", err)
			return fmt.Errorf("error creating session: %w", err)
		}
	}

	m.mu.Lock()
	m.sessions[s.Id] = s
	m.mu.Unlock()

	if opts.Camera != nil {
		// Degraded sessions are still usable, so the error is only logged.
		_ = s.SelectCamera(*opts.Camera)
	}

	slog.Info("session started", "session_id", s.Id, "mode", s.Mode.String(), "serial", s.serial)
	return nil
}

func (m *Manager) Create(ctx context.Context, opts Options) (*Session, error) {
	var exec *workflow.Execution

	switch opts.Mode {
	case report.ModeGeneral:
		if opts.Workflow != "" {
			return nil, fmt.Errorf("%w: general capture sessions do not run a workflow", ErrInvalidOptions)
		}
	case report.ModeQC, report.ModeMaintenance:
		if opts.Workflow == "" {
			return nil, fmt.Errorf("%w: %s sessions require a workflow", ErrInvalidOptions, opts.Mode)
		}
		wf, err := m.deps.Workflows.Get(opts.Workflow)
		if err != nil {
			return nil, err
		}
		exec, err = workflow.NewExecution(wf, m.deps.Workflows.Path(opts.Workflow))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidOptions, opts.Mode)
	}

	s := newSession(m.deps, opts.Mode, opts.Serial, opts.Description, opts.Technician, exec)
	if err := m.register(ctx, s, opts); err != nil {
		return nil, err
	}
	return s, nil
}

// Resume restores a workflow session from the progress saved for serial.
// The restored captures are cataloged under the new session.
func (m *Manager) Resume(ctx context.Context, serial string, opts Options) (*Session, error) {
	if m.deps.Progress == nil {
		return nil, progress.ErrNoProgress
	}
	snap, err := m.deps.Progress.Load(serial)
	if err != nil {
		return nil, err
	}

	wf, err := workflow.LoadFile(snap.WorkflowPath)
	if err != nil {
		return nil, fmt.Errorf("error loading workflow for saved progress: %w", err)
	}

	exec, err := workflow.Restore(wf, snap.WorkflowPath, workflow.State{
		CurrentStep:    snap.CurrentStep,
		Results:        snap.StepResults,
		CheckboxStates: snap.StepCheckboxState,
		Captures:       mergeCaptures(snap),
	})
	if err != nil {
		return nil, err
	}

	mode := opts.Mode
	if mode != report.ModeMaintenance {
		mode = report.ModeQC
	}

	s := newSession(m.deps, mode, snap.SerialNumber, snap.Description, snap.Technician, exec)
	if err := m.register(ctx, s, opts); err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, rec := range exec.Captures() {
		id := uuid.New()
		s.ids[rec.Path] = id
		if m.deps.DB == nil {
			continue
		}
		row, err := core.NewCaptureRow(s.Id, rec)
		if err != nil {
			slog.Warn("skipping restored capture", "path", rec.Path, "error", err)
			continue
		}
		row.Id = id
		if err := m.deps.DB.WithContext(ctx).Create(&row).Error; err != nil {
			slog.Error("error saving restored capture", "session_id", s.Id, "path", rec.Path, "error", err)
		}
	}
	s.mu.Unlock()

	slog.Info("workflow resumed", "session_id", s.Id, "serial", snap.SerialNumber, "step", snap.CurrentStep+1)
	return s, nil
}

func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

func (m *Manager) List() []View {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	views := make([]View, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, s.View())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.Before(views[j].CreatedAt) })
	return views
}

func (m *Manager) remove(id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Finish validates and closes the session, optionally queueing its report.
// A session that fails validation stays open.
func (m *Manager) Finish(ctx context.Context, id uuid.UUID, generate bool) (FinishResult, error) {
	s, err := m.Get(id)
	if err != nil {
		return FinishResult{}, err
	}

	result, err := s.finish(ctx, generate)
	if err != nil && !errors.Is(err, ErrClosed) && !s.isClosed() {
		return result, err
	}
	m.remove(id)
	return result, err
}

// Close abandons the session and releases its camera.
func (m *Manager) Close(ctx context.Context, id uuid.UUID) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.close(ctx)
	m.remove(id)
	slog.Info("session closed", "session_id", id)
	return nil
}

// Shutdown abandons every open session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close(context.Background())
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
