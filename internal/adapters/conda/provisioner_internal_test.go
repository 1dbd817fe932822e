package conda

import (
	"testing"

	"github.com/hashicorp/go-version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallerURL(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         string
	}{
		{"linux", "amd64", "Miniforge3-Linux-x86_64.sh"},
		{"linux", "arm64", "Miniforge3-Linux-aarch64.sh"},
		{"darwin", "arm64", "Miniforge3-MacOSX-arm64.sh"},
		{"darwin", "amd64", "Miniforge3-MacOSX-x86_64.sh"},
	}
	for _, tt := range tests {
		url, err := installerURL(tt.goos, tt.goarch)
		require.NoError(t, err)
		assert.Contains(t, url, tt.want)
	}

	_, err := installerURL("windows", "amd64")
	assert.Error(t, err)
}

func TestPinConstraint(t *testing.T) {
	tests := []struct {
		pin     string
		version string
		want    bool
	}{
		{"3.11", "3.11.0", true},
		{"3.11", "3.11.12", true},
		{"3.11", "3.12.0", false},
		{"3.11", "3.10.9", false},
		{"3", "3.13.1", true},
		{"3", "4.0.0", false},
		{"3.11.4", "3.11.4", true},
		{"3.11.4", "3.11.5", false},
	}
	for _, tt := range tests {
		c, err := pinConstraint(tt.pin)
		require.NoError(t, err)
		assert.Equal(t, tt.want, c.Check(version.Must(version.NewVersion(tt.version))), "%s against %s", tt.version, tt.pin)
	}
}
