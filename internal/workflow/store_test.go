package workflow_test

import (
	"os"
	"path/filepath"
	"testing"

	"camqc-backend/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *workflow.Store {
	store, err := workflow.NewStore(filepath.Join(t.TempDir(), "workflows"))
	require.NoError(t, err)
	return store
}

func sample(name string) workflow.Workflow {
	return workflow.Workflow{
		Name:        name,
		Description: "test workflow",
		Steps:       []workflow.Step{{Title: "Photo", RequirePhoto: true}},
	}
}

func TestStoreCreateGetDelete(t *testing.T) {
	store := newStore(t)

	slug, err := store.Create(sample("Gripper QC"))
	require.NoError(t, err)
	assert.Equal(t, "gripper_qc", slug)
	assert.FileExists(t, store.Path(slug))

	_, err = store.Create(sample("gripper qc"))
	assert.ErrorIs(t, err, workflow.ErrExists)

	wf, err := store.Get(slug)
	require.NoError(t, err)
	assert.Equal(t, "Gripper QC", wf.Name)

	_, err = store.Get("../escape")
	assert.ErrorIs(t, err, workflow.ErrValidation)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	require.NoError(t, store.Delete(slug))
	assert.ErrorIs(t, store.Delete(slug), workflow.ErrNotFound)
}

func TestStoreUpdateRename(t *testing.T) {
	store := newStore(t)

	slug, err := store.Create(sample("Old Name"))
	require.NoError(t, err)

	renamed, err := store.Update(slug, sample("New Name"), workflow.RenameKeepBoth)
	require.NoError(t, err)
	assert.Equal(t, "new_name", renamed)
	assert.FileExists(t, store.Path("old_name"))
	assert.FileExists(t, store.Path("new_name"))

	renamed, err = store.Update("new_name", sample("Final Name"), workflow.RenameReplace)
	require.NoError(t, err)
	assert.Equal(t, "final_name", renamed)
	assert.NoFileExists(t, store.Path("new_name"))

	_, err = store.Update("missing", sample("Whatever"), workflow.RenameReplace)
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	_, err = store.Update("final_name", workflow.Workflow{Name: "No Steps"}, workflow.RenameReplace)
	assert.ErrorIs(t, err, workflow.ErrValidation)
}

func TestStoreListSkipsCorrupted(t *testing.T) {
	store := newStore(t)

	_, err := store.Create(sample("Beta"))
	require.NoError(t, err)
	_, err = store.Create(sample("Alpha"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "broken.json"), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("ignored"), 0644))

	summaries, err := store.List()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "alpha", summaries[0].Slug)
	assert.Equal(t, "beta", summaries[1].Slug)
}

func TestStoreImportAndSeed(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.SeedDefaults())
	summaries, err := store.List()
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	slugs := []string{summaries[0].Slug, summaries[1].Slug}
	assert.Contains(t, slugs, "eoat_qc")

	// Seeding only happens into an empty directory.
	require.NoError(t, store.Delete("eoat_qc"))
	require.NoError(t, store.SeedDefaults())
	summaries, err = store.List()
	require.NoError(t, err)
	assert.Len(t, summaries, 1)

	slug, err := store.Import([]byte("name: Imported Check\nsteps:\n  - title: Look\n"), ".yaml")
	require.NoError(t, err)
	assert.Equal(t, "imported_check", slug)

	_, err = store.Import([]byte(`{"name": "Bad"}`), ".json")
	assert.ErrorIs(t, err, workflow.ErrValidation)
}
