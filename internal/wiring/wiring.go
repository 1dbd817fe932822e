// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/petal/internal/adapters/cache"
	_ "go.trai.ch/petal/internal/adapters/cas"
	_ "go.trai.ch/petal/internal/adapters/conda"
	_ "go.trai.ch/petal/internal/adapters/config"
	_ "go.trai.ch/petal/internal/adapters/fs"
	_ "go.trai.ch/petal/internal/adapters/git"
	_ "go.trai.ch/petal/internal/adapters/linear"
	_ "go.trai.ch/petal/internal/adapters/logger"
	_ "go.trai.ch/petal/internal/adapters/shell"
	_ "go.trai.ch/petal/internal/adapters/watcher"
	// Register app and engine nodes.
	_ "go.trai.ch/petal/internal/app"
	_ "go.trai.ch/petal/internal/engine/runner"
)
