package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"strconv"

	"go.trai.ch/petal/internal/core/domain"
	"go.trai.ch/petal/internal/core/ports"
	"go.trai.ch/zerr"
)

const defaultCondaPrefix = "~/miniforge3"

// pendingSave is a cache step whose path is saved after a successful run.
type pendingSave struct {
	step  string
	spec  domain.CacheSpec
	exact bool
}

type runState struct {
	r       *Runner
	p       *domain.Pipeline
	opts    Options
	report  *domain.RunReport
	outputs map[string]map[string]string
	// provisioned holds "KEY=VALUE" entries exported by setup steps.
	provisioned []string
	saves       []*pendingSave
	// current is the display name of the executing step.
	current string
}

func newRunState(r *Runner, p *domain.Pipeline, opts Options, report *domain.RunReport) *runState {
	return &runState{
		r:       r,
		p:       p,
		opts:    opts,
		report:  report,
		outputs: make(map[string]map[string]string),
	}
}

// execute runs one step inside its own span and classifies the outcome.
func (s *runState) execute(ctx context.Context, index int, step *domain.Step) (domain.StepResult, error) {
	name := step.DisplayName(index)
	s.current = name
	res := domain.StepResult{Index: index, ID: step.ID, Name: name}

	ctx, span := s.r.tracer.Start(ctx, name, ports.WithIndex(index))
	defer span.End()
	if step.Tolerated() {
		span.SetAttribute(ports.AttrTolerated, true)
	}

	stepCtx := ctx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	start := s.r.clock.Now()
	outputs, branch, err := s.dispatch(stepCtx, step, span)
	res.Duration = s.r.clock.Since(start)
	res.Branch = branch
	res.Outputs = outputs
	if step.ID != "" {
		s.outputs[step.ID] = outputs
	}

	if err != nil && step.Timeout > 0 && errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = zerr.With(zerr.Wrap(err, domain.ErrStepTimeout.Error()), "timeout", step.Timeout.String())
	}

	if err == nil {
		res.Status = domain.StepPassed
		return res, nil
	}

	span.RecordError(err)
	res.Error = err.Error()
	res.ExitCode = exitCode(err)

	if step.Tolerated() {
		res.Status = domain.StepTolerated
		s.r.logger.Warn(fmt.Sprintf("step %q failed, continuing: %v", name, err))
		return res, err
	}

	res.Status = domain.StepFailed
	return res, err
}

func (s *runState) dispatch(
	ctx context.Context,
	step *domain.Step,
	out io.Writer,
) (map[string]string, domain.BranchTaken, error) {
	switch step.Kind() {
	case domain.StepKindBranch:
		branch, err := s.runBranch(ctx, step, out)
		return nil, branch, err
	case domain.StepKindAction:
		switch step.Uses {
		case domain.ActionCheckout:
			outputs, err := s.checkout(ctx, step, out)
			return outputs, "", err
		case domain.ActionSetupConda:
			outputs, err := s.setupConda(ctx, step, out)
			return outputs, "", err
		case domain.ActionCache:
			outputs, err := s.restoreCache(ctx, step, out)
			return outputs, "", err
		default:
			return nil, "", zerr.With(domain.ErrUnknownAction, "uses", string(step.Uses))
		}
	default:
		return nil, "", s.runScript(ctx, step, step.Run, out)
	}
}

func (s *runState) expr(step *domain.Step) (*domain.ExprContext, map[string]string, error) {
	env := envMap(s.provisioned)
	ec := &domain.ExprContext{
		OS:    domain.RunnerOS(s.opts.OS),
		Arch:  domain.RunnerArch(s.opts.Arch),
		Event: s.opts.Event,
		Env:   env,
		Steps: s.outputs,
		HashFiles: func(patterns []string) (string, error) {
			return s.r.hasher.HashFiles(s.opts.Workspace, patterns)
		},
	}

	// Pipeline env may read provisioned variables, step env may read both.
	pipelineEnv, err := ec.ExpandMap(s.p.Env)
	if err != nil {
		return nil, nil, err
	}
	maps.Copy(env, pipelineEnv)

	stepEnv, err := ec.ExpandMap(step.Env)
	if err != nil {
		return nil, nil, err
	}
	maps.Copy(env, stepEnv)

	declared := make(map[string]string, len(pipelineEnv)+len(stepEnv)+1)
	maps.Copy(declared, pipelineEnv)
	maps.Copy(declared, stepEnv)
	declared["CI"] = "true"
	return ec, declared, nil
}

func (s *runState) workingDir(ec *domain.ExprContext, step *domain.Step) (string, error) {
	dir := step.WorkingDir
	if dir == "" {
		dir = s.p.WorkingDir
	}
	if dir == "" {
		return s.opts.Workspace, nil
	}

	expanded, err := ec.Expand(dir)
	if err != nil {
		return "", err
	}
	return s.resolve(expanded), nil
}

// resolve expands "~" and anchors relative paths at the workspace.
func (s *runState) resolve(path string) string {
	if path == "" {
		return ""
	}
	path = domain.ExpandHome(path, s.opts.HomeDir)
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.opts.Workspace, path)
	}
	return path
}

func (s *runState) runScript(ctx context.Context, step *domain.Step, script string, out io.Writer) error {
	ec, env, err := s.expr(step)
	if err != nil {
		return err
	}

	expanded, err := ec.Expand(script)
	if err != nil {
		return err
	}

	dir, err := s.workingDir(ec, step)
	if err != nil {
		return err
	}

	shell := s.p.ShellFor(step)
	command := make([]string, 0, len(shell)+1)
	command = append(command, shell...)
	command = append(command, expanded)

	return s.r.executor.Execute(ctx, &domain.Invocation{
		Name:        s.current,
		Command:     command,
		Environment: env,
		WorkingDir:  dir,
	}, s.provisioned, out, out)
}

// runBranch runs exactly one of the branch scripts depending on whether the
// directory exists.
func (s *runState) runBranch(ctx context.Context, step *domain.Step, out io.Writer) (domain.BranchTaken, error) {
	ec, _, err := s.expr(step)
	if err != nil {
		return "", err
	}

	path, err := ec.Expand(step.Branch.Exists)
	if err != nil {
		return "", err
	}
	path = s.resolve(path)

	if s.r.prober.DirExists(path) {
		_, _ = fmt.Fprintf(out, "%s exists, running 'then'\n", path)
		return domain.BranchPresent, s.runScript(ctx, step, step.Branch.Then, out)
	}
	_, _ = fmt.Fprintf(out, "%s does not exist, running 'else'\n", path)
	return domain.BranchAbsent, s.runScript(ctx, step, step.Branch.Else, out)
}

func (s *runState) checkout(ctx context.Context, step *domain.Step, out io.Writer) (map[string]string, error) {
	ec, _, err := s.expr(step)
	if err != nil {
		return nil, err
	}
	with, err := ec.ExpandMap(step.With)
	if err != nil {
		return nil, err
	}

	rev, err := s.r.scm.Checkout(ctx, domain.CheckoutRequest{
		Workspace:  s.opts.Workspace,
		Repository: with["repository"],
		Ref:        with["ref"],
	})
	if err != nil {
		return nil, err
	}
	s.report.Revision = rev

	_, _ = fmt.Fprintf(out, "checked out %s\n", rev.Commit)
	return map[string]string{"commit": rev.Commit, "branch": rev.Branch}, nil
}

func (s *runState) setupConda(ctx context.Context, step *domain.Step, out io.Writer) (map[string]string, error) {
	ec, _, err := s.expr(step)
	if err != nil {
		return nil, err
	}
	with, err := ec.ExpandMap(step.With)
	if err != nil {
		return nil, err
	}

	prefix := with["prefix"]
	if prefix == "" {
		prefix = defaultCondaPrefix
	}
	autoUpdate, _ := strconv.ParseBool(with["auto-update-conda"])

	inst, err := s.r.provisioner.Provision(ctx, domain.CondaRequest{
		PythonVersion: with["python-version"],
		AutoUpdate:    autoUpdate,
		InstallerURL:  with["installer-url"],
		Prefix:        domain.ExpandHome(prefix, s.opts.HomeDir),
	}, out, out)
	if err != nil {
		return nil, err
	}
	s.provisioned = inst.Env

	_, _ = fmt.Fprintf(out, "using conda at %s (python %s)\n", inst.Prefix, inst.PythonVersion)
	return map[string]string{"prefix": inst.Prefix, "python-version": inst.PythonVersion}, nil
}

func (s *runState) cacheSpec(step *domain.Step) (domain.CacheSpec, error) {
	ec, _, err := s.expr(step)
	if err != nil {
		return domain.CacheSpec{}, err
	}
	with, err := ec.ExpandMap(step.With)
	if err != nil {
		return domain.CacheSpec{}, err
	}

	spec := domain.CacheSpec{
		Path:        s.resolve(with["path"]),
		Key:         with["key"],
		RestoreKeys: domain.ParseRestoreKeys(with["restore-keys"]),
	}
	if spec.Path == "" || spec.Key == "" {
		return spec, domain.ErrInvalidCacheStep
	}
	if err := domain.ValidateCacheKey(spec.Key); err != nil {
		return spec, err
	}
	return spec, nil
}

// restoreCache restores the newest matching entry. Outputs are reported even
// when the restore fails so later steps can still read the key.
func (s *runState) restoreCache(ctx context.Context, step *domain.Step, out io.Writer) (map[string]string, error) {
	spec, err := s.cacheSpec(step)
	outputs := map[string]string{
		"key":            spec.Key,
		"restore-prefix": "",
		"cache-hit":      "false",
		"matched-key":    "",
	}
	if len(spec.RestoreKeys) > 0 {
		outputs["restore-prefix"] = spec.RestoreKeys[0]
	}
	if err != nil {
		return outputs, err
	}

	if s.opts.NoCache {
		_, _ = fmt.Fprintln(out, "cache disabled, skipping restore and save")
		return outputs, nil
	}

	// Registered before restoring so a failed restore still saves a fresh entry.
	pending := &pendingSave{step: s.current, spec: spec}
	s.saves = append(s.saves, pending)

	hit, err := s.r.cache.Restore(ctx, spec)
	if err != nil {
		return outputs, zerr.With(err, "key", spec.Key)
	}

	if !hit.Hit() {
		_, _ = fmt.Fprintf(out, "cache not found for key %s\n", spec.Key)
		return outputs, nil
	}

	pending.exact = hit.Exact
	outputs["cache-hit"] = strconv.FormatBool(hit.Exact)
	outputs["matched-key"] = hit.MatchedKey
	_, _ = fmt.Fprintf(out, "cache restored from key %s to %s\n", hit.MatchedKey, spec.Path)
	return outputs, nil
}

// saveCaches stores every cache path whose primary key did not hit exactly.
// Failures are warnings and never change the run status.
func (s *runState) saveCaches(ctx context.Context) {
	for _, pending := range s.saves {
		if pending.exact {
			continue
		}

		if !s.r.prober.DirExists(pending.spec.Path) {
			s.r.logger.Warn(fmt.Sprintf("%s: cache path %s does not exist, nothing saved for %s",
				pending.step, pending.spec.Path, pending.spec.Key))
			continue
		}

		if err := s.r.cache.Save(ctx, pending.spec.Key, pending.spec.Path); err != nil {
			s.r.logger.Warn(fmt.Sprintf("%s: failed to save cache %s: %v", pending.step, pending.spec.Key, err))
			continue
		}
		s.r.logger.Info(fmt.Sprintf("saved cache %s from %s", pending.spec.Key, pending.spec.Path))
	}
}
