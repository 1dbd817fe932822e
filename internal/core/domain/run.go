package domain

import "time"

// StepStatus is the outcome of a single step.
type StepStatus string

const (
	// StepPassed indicates the step completed successfully.
	StepPassed StepStatus = "passed"
	// StepFailed indicates a fatal step failure that ended the run.
	StepFailed StepStatus = "failed"
	// StepTolerated indicates the step failed but its failure was absorbed.
	StepTolerated StepStatus = "tolerated"
	// StepSkipped indicates the step did not run because an earlier step failed.
	StepSkipped StepStatus = "skipped"
)

// RunStatus is the aggregate outcome of a run.
type RunStatus string

const (
	// RunSucceeded indicates every fatal step passed.
	RunSucceeded RunStatus = "succeeded"
	// RunFailed indicates a fatal step failed or the run was interrupted.
	RunFailed RunStatus = "failed"
)

// BranchTaken records which side of a branch step ran.
type BranchTaken string

const (
	// BranchPresent indicates the directory existed and the "then" script ran.
	BranchPresent BranchTaken = "present"
	// BranchAbsent indicates the directory was missing and the "else" script ran.
	BranchAbsent BranchTaken = "absent"
)

// StepResult records the outcome of one step.
type StepResult struct {
	Index    int               `json:"index"`
	ID       string            `json:"id,omitzero"`
	Name     string            `json:"name"`
	Status   StepStatus        `json:"status"`
	Branch   BranchTaken       `json:"branch,omitzero"`
	Outputs  map[string]string `json:"outputs,omitzero"`
	ExitCode int               `json:"exit_code,omitzero"`
	Duration time.Duration     `json:"duration,omitzero"`
	Error    string            `json:"error,omitzero"`
}

// RunReport records the outcome of one run.
type RunReport struct {
	ID         string       `json:"id"`
	Pipeline   string       `json:"pipeline"`
	Event      Event        `json:"event"`
	Workspace  string       `json:"workspace,omitzero"`
	Revision   Revision     `json:"revision,omitzero"`
	StartedAt  time.Time    `json:"started_at,omitzero"`
	FinishedAt time.Time    `json:"finished_at,omitzero"`
	Status     RunStatus    `json:"status"`
	FailedStep string       `json:"failed_step,omitzero"`
	Steps      []StepResult `json:"steps"`
}

// Duration returns the wall-clock time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Count returns the number of steps with the given status.
func (r *RunReport) Count(status StepStatus) int {
	n := 0
	for i := range r.Steps {
		if r.Steps[i].Status == status {
			n++
		}
	}
	return n
}
