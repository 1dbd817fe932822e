package domain

import (
	"path/filepath"
	"regexp"
	"strings"

	"go.trai.ch/zerr"
)

var exprPattern = regexp.MustCompile(`\$\{\{\s*(.*?)\s*\}\}`)

// ExprContext resolves ${{ ... }} expressions embedded in step fields.
type ExprContext struct {
	OS    string
	Arch  string
	Event Event
	Env   map[string]string
	// Steps maps step ids to their outputs.
	Steps map[string]map[string]string
	// HashFiles hashes the files matching the patterns. Nil disables hashFiles().
	HashFiles func(patterns []string) (string, error)
}

// Expand replaces every expression in s with its value.
func (c *ExprContext) Expand(s string) (string, error) {
	var firstErr error
	out := exprPattern.ReplaceAllStringFunc(s, func(m string) string {
		if firstErr != nil {
			return m
		}
		expr := exprPattern.FindStringSubmatch(m)[1]
		v, err := c.eval(expr)
		if err != nil {
			firstErr = err
			return m
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// ExpandMap expands every value of m into a new map.
func (c *ExprContext) ExpandMap(m map[string]string) (map[string]string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		ev, err := c.Expand(v)
		if err != nil {
			return nil, zerr.With(err, "key", k)
		}
		out[k] = ev
	}
	return out, nil
}

func (c *ExprContext) eval(expr string) (string, error) {
	if expr == "" {
		return "", zerr.With(ErrInvalidExpression, "expression", expr)
	}

	if name, args, ok := parseCall(expr); ok {
		if name != "hashFiles" || c.HashFiles == nil {
			return "", zerr.With(ErrUnknownExpression, "expression", expr)
		}
		if len(args) == 0 {
			return "", zerr.With(ErrInvalidExpression, "expression", expr)
		}
		sum, err := c.HashFiles(args)
		if err != nil {
			return "", zerr.With(zerr.Wrap(err, ErrHashFilesFailed.Error()), "expression", expr)
		}
		return sum, nil
	}

	parts := strings.Split(expr, ".")
	switch {
	case len(parts) == 2 && parts[0] == "runner" && parts[1] == "os":
		return c.OS, nil
	case len(parts) == 2 && parts[0] == "runner" && parts[1] == "arch":
		return c.Arch, nil
	case len(parts) == 2 && parts[0] == "event" && parts[1] == "kind":
		return string(c.Event.Kind), nil
	case len(parts) == 2 && parts[0] == "event" && parts[1] == "branch":
		return c.Event.Branch, nil
	case len(parts) == 2 && parts[0] == "env":
		// Unset variables expand to the empty string.
		return c.Env[parts[1]], nil
	case len(parts) == 4 && parts[0] == "steps" && parts[2] == "outputs":
		outputs, ok := c.Steps[parts[1]]
		if !ok {
			return "", zerr.With(ErrUnknownExpression, "expression", expr)
		}
		return outputs[parts[3]], nil
	default:
		return "", zerr.With(ErrUnknownExpression, "expression", expr)
	}
}

// parseCall splits name('a', "b") into its name and unquoted arguments.
func parseCall(expr string) (string, []string, bool) {
	open := strings.IndexByte(expr, '(')
	if open <= 0 || !strings.HasSuffix(expr, ")") {
		return "", nil, false
	}
	name := strings.TrimSpace(expr[:open])
	inner := strings.TrimSpace(expr[open+1 : len(expr)-1])

	if inner == "" {
		return name, nil, true
	}
	return name, splitArgs(inner), true
}

// splitArgs splits on commas outside quotes and unquotes each argument.
func splitArgs(s string) []string {
	var (
		args  []string
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ',':
			args = append(args, unquote(s[start:i]))
			start = i + 1
		}
	}
	return append(args, unquote(s[start:]))
}

func unquote(raw string) string {
	arg := strings.TrimSpace(raw)
	if len(arg) >= 2 && (arg[0] == '\'' || arg[0] == '"') && arg[len(arg)-1] == arg[0] {
		return arg[1 : len(arg)-1]
	}
	return arg
}

// RunnerOS maps a GOOS value to the runner OS name used in cache keys.
func RunnerOS(goos string) string {
	switch goos {
	case "linux":
		return "Linux"
	case "darwin":
		return "macOS"
	case "windows":
		return "Windows"
	default:
		return goos
	}
}

// RunnerArch maps a GOARCH value to the runner architecture name.
func RunnerArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "X64"
	case "386":
		return "X86"
	case "arm64":
		return "ARM64"
	case "arm":
		return "ARM"
	default:
		return goarch
	}
}

// ExpandHome replaces a leading "~" with home.
func ExpandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
