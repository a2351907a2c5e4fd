package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"camqc-backend/internal/capture"
	"camqc-backend/internal/core/utils"
)

const (
	Filename      = "workflow_progress.json"
	DefaultMaxAge = 30 * 24 * time.Hour
)

var ErrNoProgress = errors.New("no saved progress")

// Snapshot is written after every step advance so an interrupted workflow
// can be resumed.
type Snapshot struct {
	WorkflowPath      string           `json:"workflow_path"`
	CurrentStep       int              `json:"current_step"`
	StepResults       map[int]bool     `json:"step_results"`
	StepCheckboxState map[int][]bool   `json:"step_checkbox_states"`
	CapturedImages    []capture.Record `json:"captured_images"`
	RecordedVideos    []capture.Record `json:"recorded_videos"`
	SerialNumber      string           `json:"serial_number"`
	Technician        string           `json:"technician"`
	Description       string           `json:"description"`
	SavedAt           time.Time        `json:"saved_at"`
}

// Store keeps one snapshot per serial number in that serial's media dir.
type Store struct {
	root   string
	maxAge time.Duration
	locks  utils.MutexMap
	now    func() time.Time
}

func NewStore(root string, maxAge time.Duration) *Store {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Store{root: root, maxAge: maxAge, locks: utils.NewMutexMap(1024), now: time.Now}
}

func (s *Store) Path(serial string) string {
	return filepath.Join(capture.OutputDir(s.root, serial), Filename)
}

func (s *Store) lock(serial string) (func(), error) {
	key := capture.SerialOrUnknown(serial)
	if err := s.locks.Lock(key); err != nil {
		return nil, fmt.Errorf("error locking progress for %s: %w", key, err)
	}
	return func() {
		if err := s.locks.Unlock(key); err != nil {
			slog.Error("error unlocking progress", "serial", key, "error", err)
		}
	}, nil
}

func (s *Store) Save(snap Snapshot) error {
	unlock, err := s.lock(snap.SerialNumber)
	if err != nil {
		return err
	}
	defer unlock()

	snap.SavedAt = s.now().UTC()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding progress: %w", err)
	}

	path := s.Path(snap.SerialNumber)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("error creating progress dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("error writing progress %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("error writing progress %s: %w", path, err)
	}
	return nil
}

// Load returns the saved snapshot for serial. Expired and corrupted snapshots
// are deleted and reported as ErrNoProgress.
func (s *Store) Load(serial string) (Snapshot, error) {
	unlock, err := s.lock(serial)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()

	path := s.Path(serial)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, ErrNoProgress
	} else if err != nil {
		return Snapshot{}, fmt.Errorf("error reading progress %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("error reading progress %s: %w", path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Error("corrupted progress file, deleting", "path", path, "error", err)
		s.remove(path)
		return Snapshot{}, ErrNoProgress
	}

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = info.ModTime()
	}
	if s.now().Sub(savedAt) > s.maxAge {
		slog.Info("progress file expired, deleting", "path", path, "saved_at", savedAt)
		s.remove(path)
		return Snapshot{}, ErrNoProgress
	}

	return snap, nil
}

func (s *Store) Delete(serial string) error {
	unlock, err := s.lock(serial)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(s.Path(serial)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error deleting progress for %s: %w", serial, err)
	}
	return nil
}

func (s *Store) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("error deleting progress file", "path", path, "error", err)
	}
}
