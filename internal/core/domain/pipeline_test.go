package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/petal/internal/core/domain"
)

func TestStep_Kind(t *testing.T) {
	assert.Equal(t, domain.StepKindAction, (&domain.Step{Uses: domain.ActionCheckout}).Kind())
	assert.Equal(t, domain.StepKindBranch, (&domain.Step{Branch: &domain.Branch{}}).Kind())
	assert.Equal(t, domain.StepKindRun, (&domain.Step{Run: "pytest"}).Kind())
}

func TestStep_Tolerated(t *testing.T) {
	assert.True(t, (&domain.Step{Uses: domain.ActionCache}).Tolerated(), "cache steps are always tolerated")
	assert.True(t, (&domain.Step{Run: "flaky", ContinueOnError: true}).Tolerated())
	assert.False(t, (&domain.Step{Run: "pytest"}).Tolerated())
	assert.False(t, (&domain.Step{Uses: domain.ActionCheckout}).Tolerated())
}

func TestStep_DisplayName(t *testing.T) {
	assert.Equal(t, "Test", (&domain.Step{Name: "Test", ID: "t"}).DisplayName(0))
	assert.Equal(t, "cache", (&domain.Step{ID: "cache", Uses: domain.ActionCache}).DisplayName(3))
	assert.Equal(t, "setup-conda", (&domain.Step{Uses: domain.ActionSetupConda}).DisplayName(1))
	assert.Equal(t, "step 3", (&domain.Step{Run: "true"}).DisplayName(2))
}

func TestPipeline_ShellFor(t *testing.T) {
	p := &domain.Pipeline{}
	assert.Equal(t, domain.DefaultShell, p.ShellFor(&domain.Step{}))

	p.Shell = []string{"sh", "-c"}
	assert.Equal(t, []string{"sh", "-c"}, p.ShellFor(&domain.Step{}))
	assert.Equal(t, []string{"zsh", "-c"}, p.ShellFor(&domain.Step{Shell: []string{"zsh", "-c"}}))
}

func TestKnownAction(t *testing.T) {
	assert.True(t, domain.KnownAction(domain.ActionCheckout))
	assert.True(t, domain.KnownAction(domain.ActionSetupConda))
	assert.True(t, domain.KnownAction(domain.ActionCache))
	assert.False(t, domain.KnownAction("upload-artifact"))
}

func TestRunReport_Counters(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &domain.RunReport{
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Steps: []domain.StepResult{
			{Status: domain.StepPassed},
			{Status: domain.StepTolerated},
			{Status: domain.StepFailed},
			{Status: domain.StepSkipped},
			{Status: domain.StepSkipped},
		},
	}

	assert.Equal(t, 90*time.Second, r.Duration())
	assert.Equal(t, 1, r.Count(domain.StepPassed))
	assert.Equal(t, 2, r.Count(domain.StepSkipped))
	assert.Zero(t, (&domain.RunReport{StartedAt: start}).Duration())
}

func TestParseRestoreKeys(t *testing.T) {
	got := domain.ParseRestoreKeys("Linux-mamba-\n\n  Linux-  \n")
	assert.Equal(t, []string{"Linux-mamba-", "Linux-"}, got)
	assert.Empty(t, domain.ParseRestoreKeys(""))
}

func TestValidateCacheKey(t *testing.T) {
	assert.NoError(t, domain.ValidateCacheKey("Linux-mamba-abc"))
	assert.Error(t, domain.ValidateCacheKey(""))
	assert.Error(t, domain.ValidateCacheKey("  "))
	assert.Error(t, domain.ValidateCacheKey("a,b"))
}

func TestCacheHit(t *testing.T) {
	assert.False(t, domain.CacheHit{}.Hit())
	assert.True(t, domain.CacheHit{MatchedKey: "k"}.Hit())
}
