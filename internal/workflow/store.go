package workflow

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var ErrExists = errors.New("workflow already exists")

// RenameMode decides what happens to the old file when an edited workflow
// is saved under a new name.
type RenameMode int

const (
	RenameReplace RenameMode = iota
	RenameKeepBoth
)

//go:embed defaults/*.yaml
var defaultWorkflows embed.FS

// Store keeps workflow documents as indented JSON files in a directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("error creating workflow dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Path(slug string) string {
	return filepath.Join(s.dir, slug+".json")
}

func validSlug(slug string) bool {
	return slug != "" && slug != "." && slug != ".." && !strings.ContainsAny(slug, `/\`)
}

// List returns summaries of all readable workflows sorted by file name.
// Unreadable documents are logged and skipped.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("error listing workflow dir %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	summaries := make([]Summary, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		wf, err := LoadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable workflow", "path", path, "error", err)
			continue
		}
		summaries = append(summaries, Summarize(wf, path))
	}
	return summaries, nil
}

func (s *Store) Get(slug string) (Workflow, error) {
	if !validSlug(slug) {
		return Workflow{}, fmt.Errorf("%w: invalid workflow id '%s'", ErrValidation, slug)
	}
	path := s.Path(slug)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Workflow{}, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return LoadFile(path)
}

// Create writes a new workflow and fails if one with the same file name exists.
func (s *Store) Create(wf Workflow) (string, error) {
	if err := wf.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slug := Slug(wf.Name)
	if !validSlug(slug) {
		return "", fmt.Errorf("%w: invalid workflow name '%s'", ErrValidation, wf.Name)
	}
	if _, err := os.Stat(s.Path(slug)); err == nil {
		return "", fmt.Errorf("%w: %s", ErrExists, slug)
	}
	return slug, s.write(slug, wf)
}

// Update saves an edited workflow that was loaded from previousSlug. When the
// name maps to a different file, mode decides whether the old file is removed.
func (s *Store) Update(previousSlug string, wf Workflow, mode RenameMode) (string, error) {
	if err := wf.Validate(); err != nil {
		return "", err
	}
	if !validSlug(previousSlug) {
		return "", fmt.Errorf("%w: invalid workflow id '%s'", ErrValidation, previousSlug)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.Path(previousSlug)); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, previousSlug)
	}

	slug := Slug(wf.Name)
	if !validSlug(slug) {
		return "", fmt.Errorf("%w: invalid workflow name '%s'", ErrValidation, wf.Name)
	}

	if err := s.write(slug, wf); err != nil {
		return "", err
	}

	if slug != previousSlug && mode == RenameReplace {
		if err := os.Remove(s.Path(previousSlug)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return slug, fmt.Errorf("error removing renamed workflow %s: %w", previousSlug, err)
		}
		slog.Info("renamed workflow", "from", previousSlug, "to", slug)
	}

	return slug, nil
}

func (s *Store) Delete(slug string) error {
	if !validSlug(slug) {
		return fmt.Errorf("%w: invalid workflow id '%s'", ErrValidation, slug)
	}
	if err := os.Remove(s.Path(slug)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, slug)
		}
		return fmt.Errorf("error deleting workflow %s: %w", slug, err)
	}
	return nil
}

// Import parses a JSON or YAML document and stores it as a new workflow.
func (s *Store) Import(data []byte, ext string) (string, error) {
	wf, err := Parse(data, ext)
	if err != nil {
		return "", err
	}
	return s.Create(wf)
}

// SeedDefaults writes the bundled starter workflows when the directory holds
// no workflow yet.
func (s *Store) SeedDefaults() error {
	existing, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	files, err := fs.Glob(defaultWorkflows, "defaults/*.yaml")
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := defaultWorkflows.ReadFile(file)
		if err != nil {
			return fmt.Errorf("error reading bundled workflow %s: %w", file, err)
		}
		if _, err := s.Import(data, filepath.Ext(file)); err != nil && !errors.Is(err, ErrExists) {
			return fmt.Errorf("error seeding workflow %s: %w", file, err)
		}
		slog.Info("seeded workflow", "file", file)
	}
	return nil
}

func (s *Store) write(slug string, wf Workflow) error {
	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding workflow: %w", err)
	}

	tmp := s.Path(slug) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("error writing workflow %s: %w", slug, err)
	}
	if err := os.Rename(tmp, s.Path(slug)); err != nil {
		return fmt.Errorf("error writing workflow %s: %w", slug, err)
	}
	return nil
}
