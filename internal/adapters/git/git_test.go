package git_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/petal/internal/adapters/git"
	"go.trai.ch/petal/internal/core/domain"
)

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=petal", "GIT_AUTHOR_EMAIL=petal@example.com",
		"GIT_COMMITTER_NAME=petal", "GIT_COMMITTER_EMAIL=petal@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return string(out)
}

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	run(t, dir, "init", "--quiet", "--initial-branch=main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.py"), []byte("print('hi')\n"), 0o600))
	run(t, dir, "add", ".")
	run(t, dir, "commit", "--quiet", "-m", "initial")
	return dir
}

func TestClient_CheckoutExistingWorkTree(t *testing.T) {
	dir := initRepo(t)

	rev, err := git.NewClient().Checkout(context.Background(), domain.CheckoutRequest{Workspace: dir})
	require.NoError(t, err)

	assert.Len(t, rev.Commit, 40)
	assert.Equal(t, "main", rev.Branch)
}

func TestClient_CheckoutClone(t *testing.T) {
	src := initRepo(t)
	run(t, src, "checkout", "--quiet", "-b", "feature/x")
	run(t, src, "commit", "--quiet", "--allow-empty", "-m", "feature")
	run(t, src, "checkout", "--quiet", "main")

	ws := filepath.Join(t.TempDir(), "ws")
	rev, err := git.NewClient().Checkout(context.Background(), domain.CheckoutRequest{
		Workspace:  ws,
		Repository: src,
		Ref:        "feature/x",
	})
	require.NoError(t, err)

	assert.Equal(t, "feature/x", rev.Branch)
	assert.FileExists(t, filepath.Join(ws, "setup.py"))
}

func TestClient_CheckoutNotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	_, err := git.NewClient().Checkout(context.Background(), domain.CheckoutRequest{Workspace: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrNotARepository.Error())
}

func TestClient_CurrentBranchDetached(t *testing.T) {
	dir := initRepo(t)
	run(t, dir, "checkout", "--quiet", "--detach", "HEAD")

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "no ci environment", env: nil, want: ""},
		{name: "ref name", env: map[string]string{"GITHUB_REF_NAME": "release/1.2"}, want: "release/1.2"},
		{
			name: "pull request head wins",
			env:  map[string]string{"GITHUB_HEAD_REF": "feature/login", "GITHUB_REF_NAME": "42/merge"},
			want: "feature/login",
		},
		{name: "full ref is trimmed", env: map[string]string{"GIT_BRANCH": "refs/heads/main"}, want: "main"},
		{name: "blank values are skipped", env: map[string]string{"GITHUB_HEAD_REF": "  ", "BRANCH_NAME": "dev"}, want: "dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := git.NewClient().WithEnv(func(k string) string { return tt.env[k] })

			branch, err := c.CurrentBranch(context.Background(), dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, branch)
		})
	}
}

func TestClient_CurrentBranchAttachedIgnoresEnv(t *testing.T) {
	dir := initRepo(t)
	run(t, dir, "checkout", "--quiet", "-b", "feature/x")

	c := git.NewClient().WithEnv(func(string) string { return "other" })
	branch, err := c.CurrentBranch(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "feature/x", branch)
}

func TestClient_MissingBinary(t *testing.T) {
	c := git.NewClient().WithBinary(filepath.Join(t.TempDir(), "no-git"))

	_, err := c.CurrentBranch(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrBranchDetectionFailed.Error())
}
