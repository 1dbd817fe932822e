// Package conda provisions the conda base installation pipelines build on.
package conda

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
	"go.trai.ch/petal/internal/core/domain"
	"go.trai.ch/petal/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	installerURLFormat = "https://github.com/conda-forge/miniforge/releases/latest/download/Miniforge3-%s-%s.sh"
	httpClientTimeout  = 10 * time.Minute
	defaultPrefixName  = "miniforge3"
	invocationName     = "setup-conda"
	pythonVersionProbe = "import platform; print(platform.python_version())"
)

var _ ports.Provisioner = (*Provisioner)(nil)

// Provisioner implements ports.Provisioner by reusing an installed conda or
// installing Miniforge into the requested prefix.
type Provisioner struct {
	executor   ports.Executor
	logger     ports.Logger
	httpClient *http.Client
	getenv     func(string) string
	lookPath   func(string) (string, error)
	goos       string
	goarch     string
}

// NewProvisioner creates a Provisioner that runs conda through executor.
func NewProvisioner(executor ports.Executor, logger ports.Logger) *Provisioner {
	return &Provisioner{
		executor:   executor,
		logger:     logger,
		httpClient: &http.Client{Timeout: httpClientTimeout},
		getenv:     os.Getenv,
		lookPath:   exec.LookPath,
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
	}
}

// WithHTTPClient sets the client used to download the installer.
func (p *Provisioner) WithHTTPClient(client *http.Client) *Provisioner {
	p.httpClient = client
	return p
}

// WithLookup replaces how an existing installation is discovered.
func (p *Provisioner) WithLookup(getenv func(string) string, lookPath func(string) (string, error)) *Provisioner {
	p.getenv = getenv
	p.lookPath = lookPath
	return p
}

// WithPlatform sets the platform used to pick the installer.
func (p *Provisioner) WithPlatform(goos, goarch string) *Provisioner {
	p.goos = goos
	p.goarch = goarch
	return p
}

// Provision locates or installs conda, optionally updates it, and makes sure
// the base python satisfies req.PythonVersion.
func (p *Provisioner) Provision(
	ctx context.Context,
	req domain.CondaRequest,
	stdout, stderr io.Writer,
) (domain.CondaInstallation, error) {
	constraint, err := pinConstraint(req.PythonVersion)
	if err != nil {
		return domain.CondaInstallation{}, err
	}

	prefix, err := p.resolvePrefix(req.Prefix)
	if err != nil {
		return domain.CondaInstallation{}, err
	}

	condaExe, found := p.locate(prefix)
	if found {
		prefix = prefixOf(condaExe)
		if req.AutoUpdate {
			if err := p.run(ctx, stdout, stderr, condaExe, "update", "-n", "base", "-y", "conda"); err != nil {
				// A stale conda still works; the update is opportunistic.
				p.logger.Warn(zerr.Wrap(err, domain.ErrCondaUpdateFailed.Error()).Error())
			}
		}
	} else {
		if err := p.install(ctx, req.InstallerURL, prefix, stdout, stderr); err != nil {
			return domain.CondaInstallation{}, err
		}
		condaExe = filepath.Join(prefix, "bin", "conda")
	}

	pyVersion, err := p.ensurePython(ctx, condaExe, prefix, req.PythonVersion, constraint, stdout, stderr)
	if err != nil {
		return domain.CondaInstallation{}, err
	}

	return domain.CondaInstallation{
		Prefix:        prefix,
		PythonVersion: pyVersion,
		Env: []string{
			"PATH=" + filepath.Join(prefix, "bin") + string(os.PathListSeparator) + filepath.Join(prefix, "condabin"),
			"CONDA_EXE=" + condaExe,
			"CONDA_PREFIX=" + prefix,
		},
	}, nil
}

func (p *Provisioner) resolvePrefix(prefix string) (string, error) {
	if prefix != "" {
		return filepath.Clean(prefix), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrCondaNotFound.Error())
	}
	return filepath.Join(home, defaultPrefixName), nil
}

// locate finds an existing conda executable, preferring CONDA_EXE, then PATH,
// then the requested prefix.
func (p *Provisioner) locate(prefix string) (string, bool) {
	if exe := p.getenv("CONDA_EXE"); exe != "" && isExecutable(exe) {
		return exe, true
	}
	if exe, err := p.lookPath("conda"); err == nil {
		return exe, true
	}
	if exe := filepath.Join(prefix, "bin", "conda"); isExecutable(exe) {
		return exe, true
	}
	return "", false
}

func (p *Provisioner) install(ctx context.Context, url, prefix string, stdout, stderr io.Writer) error {
	if url == "" {
		var err error
		if url, err = installerURL(p.goos, p.goarch); err != nil {
			return err
		}
	}

	installer, err := p.download(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(installer) }()

	if err := os.MkdirAll(filepath.Dir(prefix), domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrCondaInstallFailed.Error())
	}

	if err := p.run(ctx, stdout, stderr, "bash", installer, "-b", "-p", prefix); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCondaInstallFailed.Error()), "prefix", prefix)
	}
	return nil
}

func (p *Provisioner) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrCondaInstallFailed.Error()), "url", url)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrCondaInstallFailed.Error()), "url", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		statusErr := zerr.With(domain.ErrCondaInstallFailed, "status_code", resp.StatusCode)
		return "", zerr.With(statusErr, "url", url)
	}

	tmp, err := os.CreateTemp("", "petal-miniforge-*.sh")
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrCondaInstallFailed.Error())
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", zerr.With(zerr.Wrap(err, domain.ErrCondaInstallFailed.Error()), "url", url)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", zerr.Wrap(err, domain.ErrCondaInstallFailed.Error())
	}
	return tmp.Name(), nil
}

func (p *Provisioner) ensurePython(
	ctx context.Context,
	condaExe, prefix, pin string,
	constraint version.Constraints,
	stdout, stderr io.Writer,
) (string, error) {
	current, err := p.pythonVersion(ctx, prefix, stderr)
	if err == nil && constraint.Check(current) {
		return current.String(), nil
	}

	if err := p.run(ctx, stdout, stderr, condaExe, "install", "-n", "base", "-y", "python="+pin); err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrCondaInstallFailed.Error()), "python", pin)
	}

	current, err = p.pythonVersion(ctx, prefix, stderr)
	if err != nil {
		return "", err
	}
	if !constraint.Check(current) {
		mismatch := zerr.With(domain.ErrPythonVersionMismatch, "pin", pin)
		return "", zerr.With(mismatch, "found", current.String())
	}
	return current.String(), nil
}

func (p *Provisioner) pythonVersion(ctx context.Context, prefix string, stderr io.Writer) (*version.Version, error) {
	var out bytes.Buffer
	python := filepath.Join(prefix, "bin", "python")
	if err := p.run(ctx, &out, stderr, python, "-c", pythonVersionProbe); err != nil {
		return nil, err
	}

	lines := strings.Fields(out.String())
	if len(lines) == 0 {
		return nil, zerr.With(domain.ErrCondaNotFound, "reason", "python printed no version")
	}
	v, err := version.NewVersion(lines[len(lines)-1])
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCondaNotFound.Error()), "output", out.String())
	}
	return v, nil
}

func (p *Provisioner) run(ctx context.Context, stdout, stderr io.Writer, command ...string) error {
	return p.executor.Execute(ctx, &domain.Invocation{
		Name:    invocationName,
		Command: command,
	}, nil, stdout, stderr)
}

// pinConstraint turns a pin such as "3.11" into a constraint matching every
// release of that series. A fully specified pin matches exactly.
func pinConstraint(pin string) (version.Constraints, error) {
	v, err := version.NewVersion(pin)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrInvalidVersionPin.Error()), "pin", pin)
	}

	segments := v.Segments()
	var expr string
	switch strings.Count(pin, ".") {
	case 0:
		expr = fmt.Sprintf(">= %d, < %d", segments[0], segments[0]+1)
	case 1:
		expr = fmt.Sprintf(">= %d.%d, < %d.%d", segments[0], segments[1], segments[0], segments[1]+1)
	default:
		expr = "= " + v.String()
	}

	c, err := version.NewConstraint(expr)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrInvalidVersionPin.Error()), "pin", pin)
	}
	return c, nil
}

func installerURL(goos, goarch string) (string, error) {
	var osName, archName string
	switch goos {
	case "linux":
		osName = "Linux"
	case "darwin":
		osName = "MacOSX"
	default:
		return "", zerr.With(domain.ErrCondaNotFound, "os", goos)
	}

	switch {
	case goarch == "amd64":
		archName = "x86_64"
	case goarch == "arm64" && goos == "darwin":
		archName = "arm64"
	case goarch == "arm64":
		archName = "aarch64"
	case goarch == "ppc64le":
		archName = "ppc64le"
	default:
		return "", zerr.With(domain.ErrCondaNotFound, "arch", goarch)
	}

	return fmt.Sprintf(installerURLFormat, osName, archName), nil
}

// prefixOf returns the installation prefix of a conda executable living in
// <prefix>/bin or <prefix>/condabin.
func prefixOf(condaExe string) string {
	return filepath.Dir(filepath.Dir(condaExe))
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode()&0o111 != 0
}
