package domain

// Invocation is a single process launched on behalf of a step.
type Invocation struct {
	// Name labels the invocation in errors, usually the step name.
	Name string
	// Command is the argv to execute.
	Command []string
	// Environment holds step-level variables that override everything else.
	Environment map[string]string
	// WorkingDir is the directory the command runs in.
	WorkingDir string
}
