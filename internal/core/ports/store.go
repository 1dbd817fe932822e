package ports

import "go.trai.ch/petal/internal/core/domain"

// RunStore records finished runs in the workspace.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type RunStore interface {
	// Save writes the report and marks it as the latest run.
	Save(root string, report *domain.RunReport) error

	// Latest returns the most recent report.
	// Returns nil, nil if no run was recorded.
	Latest(root string) (*domain.RunReport, error)

	// Purge removes every recorded run.
	Purge(root string) error
}
