package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go.trai.ch/zerr"
)

// EventKind is the kind of event that starts a run.
type EventKind string

const (
	// EventPush is a push to a branch.
	EventPush EventKind = "push"
	// EventPullRequest is a pull request targeting a branch.
	EventPullRequest EventKind = "pull_request"
)

// ParseEventKind validates an event kind name.
func ParseEventKind(s string) (EventKind, error) {
	switch EventKind(s) {
	case EventPush, EventPullRequest:
		return EventKind(s), nil
	default:
		return "", zerr.With(ErrInvalidTrigger, "event", s)
	}
}

// Event is the read-only trigger input of a run.
type Event struct {
	Kind   EventKind `json:"kind"`
	Branch string    `json:"branch"`
}

// Trigger maps event kinds to branch filter patterns.
// A kind with no patterns matches every branch.
type Trigger map[EventKind][]string

// Matches reports whether the event starts a run.
func (t Trigger) Matches(ev Event) bool {
	patterns, ok := t[ev.Kind]
	if !ok {
		return false
	}
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, err := MatchBranch(p, ev.Branch); err == nil && ok {
			return true
		}
	}
	return false
}

// MatchBranch matches a branch name against a filter pattern.
// '*' matches any run of characters except '/', '**' matches any run of
// characters and '?' matches a single character other than '/'.
func MatchBranch(pattern, branch string) (bool, error) {
	re, err := compileBranchPattern(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(branch), nil
}

// ValidateBranchPattern reports whether the pattern can be compiled.
func ValidateBranchPattern(pattern string) error {
	_, err := compileBranchPattern(pattern)
	return err
}

func compileBranchPattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, zerr.With(ErrInvalidBranchPattern, "pattern", pattern)
	}

	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
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
		return nil, zerr.With(zerr.Wrap(err, ErrInvalidBranchPattern.Error()), "pattern", pattern)
	}
	return re, nil
}
