package domain

import "go.trai.ch/zerr"

var (
	// ErrNoSteps is returned when a pipeline defines no steps.
	ErrNoSteps = zerr.New("pipeline defines no steps")

	// ErrDuplicateStepID is returned when two steps share the same id.
	ErrDuplicateStepID = zerr.New("duplicate step id")

	// ErrInvalidStep is returned when a step does not define exactly one of uses, run or branch.
	ErrInvalidStep = zerr.New("step must define exactly one of 'uses', 'run' or 'branch'")

	// ErrUnknownAction is returned when a step uses an action that is not built in.
	ErrUnknownAction = zerr.New("unknown action")

	// ErrCheckoutNotFirst is returned when a checkout step is not the first step of the pipeline.
	ErrCheckoutNotFirst = zerr.New("checkout must be the first step")

	// ErrInvalidBranchStep is returned when a branch step is missing its path or one of its commands.
	ErrInvalidBranchStep = zerr.New("branch step requires 'exists', 'then' and 'else'")

	// ErrInvalidCacheStep is returned when a cache step lacks its path or key.
	ErrInvalidCacheStep = zerr.New("cache step requires 'path' and 'key'")

	// ErrInvalidTrigger is returned when the pipeline triggers on an unsupported event.
	ErrInvalidTrigger = zerr.New("invalid trigger event, expected 'push' or 'pull_request'")

	// ErrInvalidBranchPattern is returned when a branch filter pattern cannot be compiled.
	ErrInvalidBranchPattern = zerr.New("invalid branch pattern")

	// ErrUnknownStepReference is returned when an expression reads outputs of a step that does not run earlier.
	ErrUnknownStepReference = zerr.New("expression references a step that does not run earlier")

	// ErrInvalidTimeout is returned when a step timeout is negative.
	ErrInvalidTimeout = zerr.New("timeout-minutes must not be negative")

	// ErrConfigReadFailed is returned when the pipeline file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read pipeline file")

	// ErrConfigParseFailed is returned when the pipeline file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse pipeline file")

	// ErrUnknownExpression is returned when an expression references an unknown context.
	ErrUnknownExpression = zerr.New("unknown expression")

	// ErrInvalidExpression is returned when an expression is malformed.
	ErrInvalidExpression = zerr.New("invalid expression")

	// ErrHashFilesFailed is returned when hashing files for an expression fails.
	ErrHashFilesFailed = zerr.New("failed to hash files")

	// ErrRunFailed is returned when a pipeline run ends with a fatal step failure.
	ErrRunFailed = zerr.New("pipeline run failed")

	// ErrStepFailed is returned when a fatal step fails.
	ErrStepFailed = zerr.New("step failed")

	// ErrStepTimeout is returned when a step exceeds its timeout.
	ErrStepTimeout = zerr.New("step timed out")

	// ErrCommandFailed is returned when a step command exits unsuccessfully.
	ErrCommandFailed = zerr.New("command failed")

	// ErrCacheReadFailed is returned when a cache entry cannot be read.
	ErrCacheReadFailed = zerr.New("failed to read cache entry")

	// ErrCacheWriteFailed is returned when a cache entry cannot be written.
	ErrCacheWriteFailed = zerr.New("failed to write cache entry")

	// ErrCacheArchiveFailed is returned when a cached directory cannot be archived or extracted.
	ErrCacheArchiveFailed = zerr.New("failed to process cache archive")

	// ErrCachePathMissing is returned when the path to be cached does not exist.
	ErrCachePathMissing = zerr.New("cache path does not exist")

	// ErrInvalidCacheKey is returned when a cache key is empty or contains a comma.
	ErrInvalidCacheKey = zerr.New("invalid cache key")

	// ErrStoreCreateFailed is returned when the run store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create run store directory")

	// ErrStoreReadFailed is returned when a run report cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read run report")

	// ErrStoreUnmarshalFailed is returned when a run report cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal run report")

	// ErrStoreMarshalFailed is returned when a run report cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal run report")

	// ErrStoreWriteFailed is returned when a run report cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write run report")

	// ErrNoRuns is returned when no run report has been recorded yet.
	ErrNoRuns = zerr.New("no runs recorded")

	// ErrCheckoutFailed is returned when the source cannot be checked out.
	ErrCheckoutFailed = zerr.New("failed to check out source")

	// ErrNotARepository is returned when the workspace is not a git work tree.
	ErrNotARepository = zerr.New("not a git repository")

	// ErrBranchDetectionFailed is returned when the current branch cannot be determined.
	ErrBranchDetectionFailed = zerr.New("failed to detect current branch, pass --branch")

	// ErrCondaNotFound is returned when no conda installation can be located or installed.
	ErrCondaNotFound = zerr.New("conda installation not found")

	// ErrCondaInstallFailed is returned when installing conda fails.
	ErrCondaInstallFailed = zerr.New("failed to install conda")

	// ErrCondaUpdateFailed is returned when updating conda fails.
	ErrCondaUpdateFailed = zerr.New("failed to update conda")

	// ErrInvalidVersionPin is returned when a python version pin cannot be parsed.
	ErrInvalidVersionPin = zerr.New("invalid python version pin")

	// ErrPythonVersionMismatch is returned when the provisioned python does not satisfy the pin.
	ErrPythonVersionMismatch = zerr.New("provisioned python does not satisfy version pin")

	// ErrFailedToGetRoot is returned when the workspace path cannot be determined.
	ErrFailedToGetRoot = zerr.New("failed to get absolute path of workspace")
)
