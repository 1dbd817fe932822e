// Package git checks out pipeline sources with the git command line.
package git

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.trai.ch/petal/internal/core/domain"
	"go.trai.ch/petal/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.SourceControl = (*Client)(nil)

// branchEnvVars name the variables CI systems use to report the branch of a
// detached checkout, in lookup order. The pull request head ref comes first.
var branchEnvVars = []string{
	"GITHUB_HEAD_REF",
	"GITHUB_REF_NAME",
	"CI_COMMIT_REF_NAME",
	"BUILDKITE_BRANCH",
	"BRANCH_NAME",
	"GIT_BRANCH",
}

// Client implements ports.SourceControl by shelling out to git.
type Client struct {
	binary string
	getenv func(string) string
}

// NewClient creates a Client using the git found on PATH.
func NewClient() *Client {
	return &Client{binary: "git", getenv: os.Getenv}
}

// WithEnv overrides the environment lookup used for detached checkouts.
func (c *Client) WithEnv(getenv func(string) string) *Client {
	c.getenv = getenv
	return c
}

// WithBinary overrides the git executable.
func (c *Client) WithBinary(path string) *Client {
	c.binary = path
	return c
}

// Checkout materializes the requested revision in the workspace.
// With no repository the workspace must already be a work tree; it is
// switched to req.Ref when one is given.
func (c *Client) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Revision, error) {
	if req.Repository != "" && !hasGitDir(req.Workspace) {
		if err := os.MkdirAll(filepath.Dir(req.Workspace), domain.DirPerm); err != nil {
			return domain.Revision{}, zerr.Wrap(err, domain.ErrCheckoutFailed.Error())
		}
		if _, err := c.git(ctx, "", "clone", "--quiet", req.Repository, req.Workspace); err != nil {
			return domain.Revision{}, zerr.With(err, "repository", req.Repository)
		}
	}

	if _, err := c.git(ctx, req.Workspace, "rev-parse", "--is-inside-work-tree"); err != nil {
		return domain.Revision{}, zerr.With(domain.ErrNotARepository, "path", req.Workspace)
	}

	if req.Ref != "" {
		if req.Repository != "" {
			// Refs that only exist upstream need fetching first.
			_, _ = c.git(ctx, req.Workspace, "fetch", "--quiet", "origin", req.Ref)
		}
		if _, err := c.git(ctx, req.Workspace, "checkout", "--quiet", req.Ref); err != nil {
			return domain.Revision{}, zerr.With(err, "ref", req.Ref)
		}
	}

	commit, err := c.git(ctx, req.Workspace, "rev-parse", "HEAD")
	if err != nil {
		return domain.Revision{}, err
	}

	branch, err := c.CurrentBranch(ctx, req.Workspace)
	if err != nil {
		// The revision is still usable without a branch name.
		branch = ""
	}

	return domain.Revision{Commit: commit, Branch: branch}, nil
}

// CurrentBranch returns the branch checked out in dir. For a detached HEAD
// it falls back to the branch the CI environment reports, then to "".
func (c *Client) CurrentBranch(ctx context.Context, dir string) (string, error) {
	branch, err := c.git(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrBranchDetectionFailed.Error())
	}
	if branch == "HEAD" {
		return c.envBranch(), nil
	}
	return branch, nil
}

// envBranch returns the branch a CI system reports for a detached HEAD, or
// "" when none does.
func (c *Client) envBranch() string {
	for _, name := range branchEnvVars {
		if v := strings.TrimSpace(c.getenv(name)); v != "" {
			return strings.TrimPrefix(v, "refs/heads/")
		}
	}
	return ""
}

func (c *Client) git(ctx context.Context, dir string, args ...string) (string, error) {
	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}

	//nolint:gosec // arguments are built from the pipeline checkout request
	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		wrapped := zerr.Wrap(err, domain.ErrCheckoutFailed.Error())
		wrapped = zerr.With(wrapped, "command", "git "+strings.Join(args, " "))
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			wrapped = zerr.With(wrapped, "stderr", msg)
		}
		return "", wrapped
	}
	return strings.TrimSpace(string(out)), nil
}

func hasGitDir(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
