package ports

import "go.trai.ch/petal/internal/core/domain"

// ConfigLoader defines the interface for loading pipeline definitions.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the pipeline for the workspace at cwd.
	// An empty path discovers petal.yaml upwards from cwd and falls back to the built-in pipeline.
	Load(cwd, path string) (*domain.Pipeline, error)
}
