package domain

// CheckoutRequest describes what to check out into the workspace.
type CheckoutRequest struct {
	// Workspace is the directory the source ends up in.
	Workspace string
	// Repository is a path or URL to clone from. Empty means the workspace already holds the source.
	Repository string
	// Ref is the commit, branch or tag to check out. Empty means the repository's HEAD.
	Ref string
}

// Revision identifies the commit a run operates on.
type Revision struct {
	Commit string `json:"commit"`
	Branch string `json:"branch,omitzero"`
}

// CondaRequest describes the base installer a run needs.
type CondaRequest struct {
	// PythonVersion pins the base interpreter, e.g. "3.11".
	PythonVersion string
	// AutoUpdate updates conda itself when an existing installation is reused.
	AutoUpdate bool
	// InstallerURL overrides the installer downloaded when no installation exists.
	InstallerURL string
	// Prefix is the installation directory used when installing.
	Prefix string
}

// CondaInstallation is a provisioned base installer.
type CondaInstallation struct {
	Prefix        string
	PythonVersion string
	// Env holds "KEY=VALUE" entries later steps need; PATH entries are prepended to the inherited PATH.
	Env []string
}
