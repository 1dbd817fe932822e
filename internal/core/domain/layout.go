package domain

import "path/filepath"

const (
	// PetalDirName is the name of the internal workspace directory.
	PetalDirName = ".petal"

	// RunsDirName is the name of the run report directory.
	RunsDirName = "runs"

	// CacheDirName is the name of the cache directory.
	CacheDirName = "cache"

	// PipelineFileName is the name of the pipeline configuration file.
	PipelineFileName = "petal.yaml"

	// LatestRunFile is the name of the file pointing at the most recent run report.
	LatestRunFile = "latest"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultPetalPath returns the default root directory for petal metadata.
func DefaultPetalPath() string {
	return PetalDirName
}

// DefaultRunsPath returns the default path for stored run reports.
// It joins .petal and runs.
func DefaultRunsPath() string {
	return filepath.Join(PetalDirName, RunsDirName)
}

// DefaultCachePath returns the workspace-local fallback path for the cache store.
// It joins .petal and cache.
func DefaultCachePath() string {
	return filepath.Join(PetalDirName, CacheDirName)
}
