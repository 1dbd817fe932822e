package ports

// Hasher defines the interface for computing content hashes.
//
//go:generate mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type Hasher interface {
	// HashFiles hashes the content of every file under root matching one of the patterns.
	// The result is stable for identical content regardless of discovery order.
	HashFiles(root string, patterns []string) (string, error)
}

// PathProber reports whether paths exist on the host.
type PathProber interface {
	DirExists(path string) bool
}
