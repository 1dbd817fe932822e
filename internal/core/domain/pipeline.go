package domain

import (
	"strconv"
	"time"
)

// Action names a built-in step implementation referenced with "uses".
type Action string

const (
	// ActionCheckout checks out the current commit into the workspace.
	ActionCheckout Action = "checkout"
	// ActionSetupConda provisions a conda installation pinned to a python version.
	ActionSetupConda Action = "setup-conda"
	// ActionCache restores a directory from the cache and saves it after a successful run.
	ActionCache Action = "cache"
)

// KnownAction reports whether a is a built-in action.
func KnownAction(a Action) bool {
	switch a {
	case ActionCheckout, ActionSetupConda, ActionCache:
		return true
	default:
		return false
	}
}

// StepKind classifies how a step is executed.
type StepKind int

const (
	// StepKindRun executes a shell script.
	StepKindRun StepKind = iota
	// StepKindAction executes a built-in action.
	StepKindAction
	// StepKindBranch executes one of two scripts depending on whether a directory exists.
	StepKindBranch
)

// DefaultShell is the shell used for run steps when neither the step nor the pipeline sets one.
// A login shell is required so that conda's shell hooks are sourced.
var DefaultShell = []string{"bash", "-el", "-c"}

// Pipeline is an ordered list of steps and the events that trigger it.
type Pipeline struct {
	Name       string
	On         Trigger
	Shell      []string
	WorkingDir string
	Env        map[string]string
	Steps      []Step
	// Source is the file the pipeline was loaded from, or empty for the built-in default.
	Source string
}

// Step is one ordered unit of work within a run.
type Step struct {
	ID              string
	Name            string
	Uses            Action
	Run             string
	Branch          *Branch
	With            map[string]string
	Env             map[string]string
	ContinueOnError bool
	Timeout         time.Duration
	WorkingDir      string
	Shell           []string
}

// Branch selects one of two scripts based on the presence of a directory.
type Branch struct {
	// Exists is the directory whose presence selects Then over Else.
	Exists string
	// Then runs when Exists is present.
	Then string
	// Else runs when Exists is absent.
	Else string
}

// Kind returns how the step is executed.
func (s *Step) Kind() StepKind {
	switch {
	case s.Uses != "":
		return StepKindAction
	case s.Branch != nil:
		return StepKindBranch
	default:
		return StepKindRun
	}
}

// Tolerated reports whether a failure of this step is absorbed instead of failing the run.
// Cache steps are always tolerated.
func (s *Step) Tolerated() bool {
	return s.ContinueOnError || s.Uses == ActionCache
}

// DisplayName returns the step name, falling back to its id, action or position.
func (s *Step) DisplayName(index int) string {
	switch {
	case s.Name != "":
		return s.Name
	case s.ID != "":
		return s.ID
	case s.Uses != "":
		return string(s.Uses)
	default:
		return "step " + strconv.Itoa(index+1)
	}
}

// ShellFor returns the shell argv used for the step.
func (p *Pipeline) ShellFor(s *Step) []string {
	switch {
	case len(s.Shell) > 0:
		return s.Shell
	case len(p.Shell) > 0:
		return p.Shell
	default:
		return DefaultShell
	}
}

// StepNames returns the display names of all steps in order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.Steps))
	for i := range p.Steps {
		names[i] = p.Steps[i].DisplayName(i)
	}
	return names
}
