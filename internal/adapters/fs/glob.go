package fs

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go.trai.ch/zerr"
)

// compileGlob turns a slash-separated path pattern into a regexp.
// '*' and '?' stay within one path segment, '**' spans segments and a
// leading or inner "**/" also matches zero directories.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	pattern = strings.TrimPrefix(pattern, "./")
	if pattern == "" {
		return nil, zerr.New("empty file pattern")
	}

	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; {
		case strings.HasPrefix(pattern[i:], "**/"):
			b.WriteString("(?:.*/)?")
			i += 2
		case strings.HasPrefix(pattern[i:], "**"):
			b.WriteString(".*")
			i++
		case c == '*':
			b.WriteString("[^/]*")
		case c == '?':
			b.WriteString("[^/]")
		default:
			r, size := utf8.DecodeRuneInString(pattern[i:])
			b.WriteString(regexp.QuoteMeta(string(r)))
			i += size - 1
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "invalid file pattern"), "pattern", pattern)
	}
	return re, nil
}
