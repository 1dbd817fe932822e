// Package cas implements the run report store kept in the workspace.
package cas

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/petal/internal/core/domain"
	"go.trai.ch/petal/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.RunStore = (*Store)(nil)

// Store implements ports.RunStore using a file-per-run strategy under
// .petal/runs, with a "latest" file naming the most recent run.
type Store struct{}

// NewStore creates a new Store.
func NewStore() *Store {
	return &Store{}
}

// Save writes the report and then repoints latest at it.
func (s *Store) Save(root string, report *domain.RunReport) error {
	if report.ID == "" {
		return zerr.With(domain.ErrStoreWriteFailed, "reason", "report has no id")
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreMarshalFailed.Error())
	}

	dir := filepath.Join(root, domain.DefaultRunsPath())
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreCreateFailed.Error())
	}

	if err := writeFileAtomic(dir, report.ID+".json", data); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "run", report.ID)
	}
	if err := writeFileAtomic(dir, domain.LatestRunFile, []byte(report.ID+"\n")); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "run", report.ID)
	}
	return nil
}

// Latest returns the most recent report, or nil, nil when no run was recorded.
func (s *Store) Latest(root string) (*domain.RunReport, error) {
	dir := filepath.Join(root, domain.DefaultRunsPath())

	//nolint:gosec // path is constructed from the workspace root
	pointer, err := os.ReadFile(filepath.Join(dir, domain.LatestRunFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}

	id := strings.TrimSpace(string(pointer))
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, zerr.With(domain.ErrStoreReadFailed, "latest", id)
	}
	return s.Get(root, id)
}

// Get returns the report with the given id.
func (s *Store) Get(root, id string) (*domain.RunReport, error) {
	//nolint:gosec // path is constructed from the workspace root and a run id
	data, err := os.ReadFile(filepath.Join(root, domain.DefaultRunsPath(), id+".json"))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "run", id)
	}

	var report domain.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreUnmarshalFailed.Error()), "run", id)
	}
	return &report, nil
}

// Purge removes every stored run.
func (s *Store) Purge(root string) error {
	if err := os.RemoveAll(filepath.Join(root, domain.DefaultRunsPath())); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	return nil
}

func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // removed only when the rename did not happen

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(domain.FilePerm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}
