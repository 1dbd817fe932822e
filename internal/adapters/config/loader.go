// Package config provides the pipeline loader for petal.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"go.trai.ch/petal/internal/core/domain"
	"go.trai.ch/petal/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// DefaultPipeline is the built-in pypetal workflow used when no petal.yaml exists.
//
//go:embed pipelines/pypetal.yaml
var DefaultPipeline []byte

var stepRefPattern = regexp.MustCompile(`steps\.([A-Za-z0-9_-]+)\.outputs\.`)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using YAML files.
type Loader struct {
	Logger ports.Logger
	fs     FileSystem
}

// NewLoader creates a new Loader reading from the host filesystem.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger, fs: NewOSFS()}
}

// WithFileSystem replaces the filesystem the loader reads from.
func (l *Loader) WithFileSystem(fsys FileSystem) *Loader {
	l.fs = fsys
	return l
}

// Load reads the pipeline at path, or discovers one from cwd when path is empty.
func (l *Loader) Load(cwd, path string) (*domain.Pipeline, error) {
	if path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(cwd, path)
		}
		return l.loadFile(path)
	}

	if found, ok := l.discover(cwd); ok {
		return l.loadFile(found)
	}

	return l.Parse(DefaultPipeline, "")
}

// DiscoverRoot returns the directory holding the nearest petal.yaml above cwd.
// Without one, cwd itself is the root.
func (l *Loader) DiscoverRoot(cwd string) string {
	if found, ok := l.discover(cwd); ok {
		return filepath.Dir(found)
	}
	return cwd
}

func (l *Loader) discover(cwd string) (string, bool) {
	current := cwd
	for {
		candidate := filepath.Join(current, domain.PipelineFileName)
		if info, err := l.fs.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

func (l *Loader) loadFile(path string) (*domain.Pipeline, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}
	return l.Parse(data, path)
}

// Parse decodes and validates a pipeline document. source names the file for diagnostics.
func (l *Loader) Parse(data []byte, source string) (*domain.Pipeline, error) {
	var file Pipelinefile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", sourceName(source))
	}

	p, err := buildPipeline(&file, source)
	if err != nil {
		return nil, zerr.With(err, "path", sourceName(source))
	}

	for _, w := range unmaterializedCachePaths(p) {
		l.Logger.Warn(w)
	}
	return p, nil
}

func sourceName(source string) string {
	if source == "" {
		return "builtin:pypetal"
	}
	return source
}

func buildPipeline(file *Pipelinefile, source string) (*domain.Pipeline, error) {
	trigger, err := buildTrigger(file.On)
	if err != nil {
		return nil, err
	}

	if len(file.Steps) == 0 {
		return nil, domain.ErrNoSteps
	}

	p := &domain.Pipeline{
		Name:       file.Name,
		On:         trigger,
		Shell:      file.Defaults.Shell,
		WorkingDir: file.Defaults.WorkingDirectory,
		Env:        file.Env,
		Steps:      make([]domain.Step, 0, len(file.Steps)),
		Source:     source,
	}

	seen := make(map[string]struct{}, len(file.Steps))
	for i, dto := range file.Steps {
		if dto == nil {
			return nil, zerr.With(domain.ErrInvalidStep, "step", i+1)
		}
		step, err := buildStep(i, dto)
		if err != nil {
			return nil, zerr.With(err, "step", step.DisplayName(i))
		}

		if err := validateStepRefs(&step, seen); err != nil {
			return nil, zerr.With(err, "step", step.DisplayName(i))
		}

		if step.ID != "" {
			if _, dup := seen[step.ID]; dup {
				return nil, zerr.With(domain.ErrDuplicateStepID, "id", step.ID)
			}
			seen[step.ID] = struct{}{}
		}

		if step.Uses == domain.ActionCheckout && i != 0 {
			return nil, zerr.With(domain.ErrCheckoutNotFirst, "step", step.DisplayName(i))
		}

		p.Steps = append(p.Steps, step)
	}

	return p, nil
}

func buildTrigger(on map[string]*TriggerDTO) (domain.Trigger, error) {
	trigger := make(domain.Trigger, len(on))
	for name, dto := range on {
		kind, err := domain.ParseEventKind(name)
		if err != nil {
			return nil, err
		}
		var branches []string
		if dto != nil {
			branches = dto.Branches
		}
		for _, pattern := range branches {
			if err := domain.ValidateBranchPattern(pattern); err != nil {
				return nil, zerr.With(err, "event", name)
			}
		}
		trigger[kind] = branches
	}
	return trigger, nil
}

func buildStep(index int, dto *StepDTO) (domain.Step, error) {
	step := domain.Step{
		ID:              dto.ID,
		Name:            dto.Name,
		Uses:            domain.Action(dto.Uses),
		Run:             dto.Run,
		With:            dto.With,
		Env:             dto.Env,
		ContinueOnError: dto.ContinueOnError,
		WorkingDir:      dto.WorkingDirectory,
		Shell:           dto.Shell,
	}

	defined := 0
	for _, set := range []bool{dto.Uses != "", dto.Run != "", dto.Branch != nil} {
		if set {
			defined++
		}
	}
	if defined != 1 {
		return step, zerr.With(domain.ErrInvalidStep, "index", index+1)
	}

	if step.Uses != "" && !domain.KnownAction(step.Uses) {
		return step, zerr.With(domain.ErrUnknownAction, "uses", dto.Uses)
	}

	if dto.Branch != nil {
		if dto.Branch.Exists == "" || dto.Branch.Then == "" || dto.Branch.Else == "" {
			return step, domain.ErrInvalidBranchStep
		}
		step.Branch = &domain.Branch{Exists: dto.Branch.Exists, Then: dto.Branch.Then, Else: dto.Branch.Else}
	}

	if step.Uses == domain.ActionCache {
		if step.With["path"] == "" || step.With["key"] == "" {
			return step, domain.ErrInvalidCacheStep
		}
	}

	if dto.TimeoutMinutes < 0 {
		return step, zerr.With(domain.ErrInvalidTimeout, "timeout-minutes", dto.TimeoutMinutes)
	}
	step.Timeout = time.Duration(dto.TimeoutMinutes * float64(time.Minute))

	return step, nil
}

// validateStepRefs checks that step output references name a step defined earlier.
func validateStepRefs(step *domain.Step, earlier map[string]struct{}) error {
	fields := []string{step.Run, step.WorkingDir}
	if step.Branch != nil {
		fields = append(fields, step.Branch.Exists, step.Branch.Then, step.Branch.Else)
	}
	for _, v := range step.With {
		fields = append(fields, v)
	}
	for _, v := range step.Env {
		fields = append(fields, v)
	}

	for _, f := range fields {
		for _, m := range stepRefPattern.FindAllStringSubmatch(f, -1) {
			if _, ok := earlier[m[1]]; !ok {
				return zerr.With(domain.ErrUnknownStepReference, "reference", m[1])
			}
		}
	}
	return nil
}

// unmaterializedCachePaths reports cache paths whose final element no branch
// step creates, which means the cache can never capture the environment.
func unmaterializedCachePaths(p *domain.Pipeline) []string {
	expr := &domain.ExprContext{Env: p.Env}
	base := func(s string) string {
		if v, err := expr.Expand(s); err == nil {
			s = v
		}
		return filepath.Base(filepath.Clean(s))
	}

	created := make(map[string]struct{})
	for i := range p.Steps {
		if b := p.Steps[i].Branch; b != nil {
			created[base(b.Exists)] = struct{}{}
		}
	}

	var warnings []string
	for i := range p.Steps {
		s := &p.Steps[i]
		if s.Uses != domain.ActionCache {
			continue
		}
		if _, ok := created[base(s.With["path"])]; !ok {
			warnings = append(warnings, fmt.Sprintf(
				"cache path %q of step %q is not created by any branch step; the cache will not capture the environment",
				s.With["path"], s.DisplayName(i)))
		}
	}
	return warnings
}
