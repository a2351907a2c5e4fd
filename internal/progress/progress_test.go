package progress

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"camqc-backend/internal/capture"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(serial string) Snapshot {
	return Snapshot{
		WorkflowPath:      "/data/workflows/eoat_qc.json",
		CurrentStep:       2,
		StepResults:       map[int]bool{1: false},
		StepCheckboxState: map[int][]bool{1: {true, false}},
		CapturedImages:    []capture.Record{{Path: "a.jpg", Type: capture.TypeImage, Step: 1}},
		RecordedVideos:    []capture.Record{{Path: "b.avi", Type: capture.TypeVideo, Step: 2}},
		SerialNumber:      serial,
		Technician:        "Robin",
		Description:       "Rework",
	}
}

func TestSaveLoadDelete(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root, 0)

	_, err := store.Load("SN-1")
	assert.ErrorIs(t, err, ErrNoProgress)

	require.NoError(t, store.Save(snapshot("SN-1")))
	assert.Equal(t, filepath.Join(root, "captured_images", "SN-1", Filename), store.Path("SN-1"))
	assert.FileExists(t, store.Path("SN-1"))

	snap, err := store.Load("SN-1")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.CurrentStep)
	assert.Equal(t, map[int]bool{1: false}, snap.StepResults)
	assert.Equal(t, []bool{true, false}, snap.StepCheckboxState[1])
	assert.Len(t, snap.CapturedImages, 1)
	assert.Len(t, snap.RecordedVideos, 1)
	assert.False(t, snap.SavedAt.IsZero())

	require.NoError(t, store.Delete("SN-1"))
	require.NoError(t, store.Delete("SN-1"))
	_, err = store.Load("SN-1")
	assert.ErrorIs(t, err, ErrNoProgress)
}

func TestEmptySerialUsesUnknown(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root, 0)

	require.NoError(t, store.Save(snapshot("")))
	assert.FileExists(t, filepath.Join(root, "captured_images", "unknown", Filename))
}

func TestCorruptedProgressIsDeleted(t *testing.T) {
	store := NewStore(t.TempDir(), 0)

	path := store.Path("SN-2")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := store.Load("SN-2")
	assert.ErrorIs(t, err, ErrNoProgress)
	assert.NoFileExists(t, path)
}

func TestExpiredProgressIsDeleted(t *testing.T) {
	store := NewStore(t.TempDir(), 24*time.Hour)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	require.NoError(t, store.Save(snapshot("SN-3")))

	now = now.Add(23 * time.Hour)
	_, err := store.Load("SN-3")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = store.Load("SN-3")
	assert.ErrorIs(t, err, ErrNoProgress)
	assert.NoFileExists(t, store.Path("SN-3"))
}

func TestExpiryFallsBackToModTime(t *testing.T) {
	store := NewStore(t.TempDir(), time.Hour)

	path := store.Path("SN-4")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
	require.NoError(t, os.WriteFile(path, []byte(`{"serial_number": "SN-4", "current_step": 1}`), 0644))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	_, err := store.Load("SN-4")
	assert.ErrorIs(t, err, ErrNoProgress)
}
