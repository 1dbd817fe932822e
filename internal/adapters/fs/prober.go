package fs

import (
	"os"

	"go.trai.ch/petal/internal/core/ports"
)

var _ ports.PathProber = (*Prober)(nil)

// Prober answers existence checks against the host filesystem.
type Prober struct{}

// NewProber creates a new Prober.
func NewProber() *Prober {
	return &Prober{}
}

// DirExists reports whether path names an existing directory. Symlinks are followed.
func (p *Prober) DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
