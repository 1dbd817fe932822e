// Package shell provides a shell-based executor for pipeline steps.
package shell

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/creack/pty"
	"go.trai.ch/petal/internal/core/domain"
	"go.trai.ch/petal/internal/core/ports"
	"go.trai.ch/zerr"
)

// waitDelay bounds how long Wait blocks on output held open by orphaned children.
const waitDelay = 2 * time.Second

var _ ports.Executor = (*Executor)(nil)

// Process represents a running command.
type Process interface {
	Wait() error
	Resize(rows, cols int) error
}

type ptyProcess struct {
	cmd    *exec.Cmd
	ptmx   *os.File
	ioDone <-chan struct{}
}

func (p *ptyProcess) Wait() error {
	err := p.cmd.Wait()
	// The copy loop ends once the child side of the pty is closed.
	<-p.ioDone
	return err
}

func (p *ptyProcess) Resize(rows, cols int) error {
	if rows > math.MaxUint16 || cols > math.MaxUint16 || rows < 0 || cols < 0 {
		return errors.New("terminal size out of bounds")
	}

	return pty.Setsize(p.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

type pipeProcess struct {
	cmd *exec.Cmd
}

func (p *pipeProcess) Wait() error { return p.cmd.Wait() }

func (p *pipeProcess) Resize(_, _ int) error { return nil }

// Executor implements ports.Executor using os/exec.
// Commands run on a pty when one can be allocated so tools keep colored
// output; otherwise stdout and stderr are connected as pipes.
type Executor struct {
	disablePTY bool
}

// NewExecutor creates a new Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// WithoutPTY forces pipe mode, keeping stdout and stderr apart.
func (e *Executor) WithoutPTY() *Executor {
	e.disablePTY = true
	return e
}

// Start launches the invocation and returns a handle to wait on it.
// An empty command yields a nil Process.
func (e *Executor) Start(
	ctx context.Context,
	inv *domain.Invocation,
	env []string,
	stdout, stderr io.Writer,
) (Process, error) {
	if len(inv.Command) == 0 {
		return nil, nil
	}

	name := inv.Command[0]
	cmdEnv := resolveEnvironment(os.Environ(), env, inv.Environment)

	executable := name
	if !filepath.IsAbs(name) {
		if lp, err := lookPath(name, cmdEnv); err == nil {
			executable = lp
		}
	}

	newCmd := func() *exec.Cmd {
		cmd := exec.CommandContext(ctx, executable, inv.Command[1:]...) //nolint:gosec // pipeline provided command
		cmd.Args[0] = name
		cmd.Dir = inv.WorkingDir
		cmd.Env = cmdEnv
		cmd.WaitDelay = waitDelay
		return cmd
	}

	if !e.disablePTY {
		cmd := newCmd()
		if ptmx, err := pty.Start(cmd); err == nil {
			ioDone := make(chan struct{})
			go func() {
				defer close(ioDone)
				defer func() { _ = ptmx.Close() }()
				// A pty merges both streams onto one descriptor.
				_, _ = io.Copy(stdout, ptmx)
			}()
			return &ptyProcess{cmd: cmd, ptmx: ptmx, ioDone: ioDone}, nil
		}
	}

	cmd := newCmd()
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to start command"), "command", name)
	}
	return &pipeProcess{cmd: cmd}, nil
}

// Execute runs the invocation and waits for it to complete.
func (e *Executor) Execute(ctx context.Context, inv *domain.Invocation, env []string, stdout, stderr io.Writer) error {
	proc, err := e.Start(ctx, inv, env, stdout, stderr)
	if err != nil {
		return err
	}
	if proc == nil {
		return nil
	}

	if err := proc.Wait(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}
		return zerr.With(zerr.Wrap(err, domain.ErrCommandFailed.Error()), "exit_code", exitCode)
	}

	return nil
}

// resolveEnvironment layers the provisioned and step environment over the
// inherited one. Provisioned PATH entries are prepended; step values replace.
func resolveEnvironment(sysEnv, provisioned []string, stepEnv map[string]string) []string {
	envMap := make(map[string]string, len(sysEnv))
	order := make([]string, 0, len(sysEnv))
	set := func(k, v string) {
		if _, exists := envMap[k]; !exists {
			order = append(order, k)
		}
		envMap[k] = v
	}

	for _, entry := range sysEnv {
		if k, v, ok := strings.Cut(entry, "="); ok {
			set(k, v)
		}
	}

	for _, entry := range provisioned {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if k == "PATH" && envMap["PATH"] != "" {
			v = v + string(os.PathListSeparator) + envMap["PATH"]
		}
		set(k, v)
	}

	for k, v := range stepEnv {
		set(k, v)
	}

	result := make([]string, 0, len(order))
	for _, k := range order {
		result = append(result, k+"="+envMap[k])
	}
	return result
}

// lookPath resolves file against the PATH in env rather than the process PATH.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			path = strings.TrimPrefix(e, "PATH=")
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
