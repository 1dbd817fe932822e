package cas_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/petal/internal/adapters/cas"
	"go.trai.ch/petal/internal/core/domain"
)

func sampleReport(id string) *domain.RunReport {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	return &domain.RunReport{
		ID:         id,
		Pipeline:   "pypetal",
		Event:      domain.Event{Kind: domain.EventPush, Branch: "main"},
		Revision:   domain.Revision{Commit: "0123abcd", Branch: "main"},
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		Status:     domain.RunFailed,
		FailedStep: "Test",
		Steps: []domain.StepResult{
			{Index: 0, ID: "checkout", Name: "Checkout", Status: domain.StepPassed, Duration: time.Second},
			{Index: 1, ID: "cache", Name: "Restore", Status: domain.StepTolerated, Outputs: map[string]string{"cache-hit": "false"}},
			{Index: 2, ID: "test", Name: "Test", Status: domain.StepFailed, ExitCode: 1, Error: "command failed"},
		},
	}
}

func TestStore_SaveLatest(t *testing.T) {
	root := t.TempDir()
	store := cas.NewStore()

	require.NoError(t, store.Save(root, sampleReport("run-1")))
	want := sampleReport("run-2")
	require.NoError(t, store.Save(root, want))

	got, err := store.Latest(root)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Latest mismatch (-want +got):\n%s", diff)
	}

	first, err := store.Get(root, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", first.ID)
}

func TestStore_LatestMissing(t *testing.T) {
	got, err := cas.NewStore().Latest(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_LatestCorrupt(t *testing.T) {
	root := t.TempDir()
	store := cas.NewStore()
	require.NoError(t, store.Save(root, sampleReport("run-1")))

	path := filepath.Join(root, domain.DefaultRunsPath(), "run-1.json")
	require.NoError(t, os.WriteFile(path, []byte("{ invalid json"), 0o600))

	_, err := store.Latest(root)
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrStoreUnmarshalFailed.Error())
}

func TestStore_LatestRejectsPathPointer(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, domain.DefaultRunsPath())
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.LatestRunFile), []byte("../../etc/passwd"), 0o600))

	_, err := cas.NewStore().Latest(root)
	assert.Error(t, err)
}

func TestStore_SaveWithoutID(t *testing.T) {
	err := cas.NewStore().Save(t.TempDir(), &domain.RunReport{})
	assert.Error(t, err)
}

func TestStore_Purge(t *testing.T) {
	root := t.TempDir()
	store := cas.NewStore()
	require.NoError(t, store.Save(root, sampleReport("run-1")))

	require.NoError(t, store.Purge(root))

	got, err := store.Latest(root)
	require.NoError(t, err)
	assert.Nil(t, got)
}
