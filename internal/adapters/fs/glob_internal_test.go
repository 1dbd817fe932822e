package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileGlob(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"environment.yml", "environment.yml", true},
		{"./environment.yml", "environment.yml", true},
		{"environment.yml", "sub/environment.yml", false},
		{"**/environment.yml", "environment.yml", true},
		{"**/environment.yml", "a/b/environment.yml", true},
		{"*.yml", "environment.yml", true},
		{"*.yml", "conf/environment.yml", false},
		{"src/**", "src/pkg/mod.py", true},
		{"src/**/*.py", "src/mod.py", true},
		{"env?.yml", "env1.yml", true},
		{"env.yml", "envXyml", false},
		{"configs/données.yml", "configs/données.yml", true},
		{"configs/*é.yml", "configs/café.yml", true},
		{"env?.yml", "envé.yml", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.path, func(t *testing.T) {
			re, err := compileGlob(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, re.MatchString(tt.path))
		})
	}
}
