// Package deploy pushes a new revision of the stagehop backend to its
// host: pull the repository, make sure the virtualenv and dependencies
// are in place, restart the service unit and capture its status.
package deploy

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

const (
	defaultBranch      = "main"
	defaultTimeout     = 5 * time.Second
	defaultStatusLines = 10
)

// Target describes the host and service a deploy run operates on.
type Target struct {
	Host    string
	Port    int
	User    string
	Dir     string // remote repository directory
	Branch  string // remote branch to pull
	Service string // systemd unit name
}

// Validate checks that every required field is set.
func (t Target) Validate() error {
	switch {
	case t.Host == "":
		return fmt.Errorf("target host cannot be empty")
	case t.User == "":
		return fmt.Errorf("target user cannot be empty")
	case t.Dir == "":
		return fmt.Errorf("target dir cannot be empty")
	case t.Service == "":
		return fmt.Errorf("target service cannot be empty")
	}
	return nil
}

// Report is returned after attempting a deployment.
type Report struct {
	RunID     string `json:"run_id"`
	Address   string `json:"address"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	Message   string `json:"msg"`
	Success   bool   `json:"success"`
}

// Deployer owns a single target and performs the deploy sequence against
// it. The SSH connection is opened per run and closed when the run ends.
type Deployer struct {
	target      Target
	signer      ssh.Signer
	timeout     time.Duration
	statusLines int
	output      io.Writer
	log         *zap.Logger

	dial func(Target, ssh.Signer, time.Duration, io.Writer) (runnerCloser, error)
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithTimeout sets the SSH session timeout.
func WithTimeout(d time.Duration) Option {
	return func(dep *Deployer) { dep.timeout = d }
}

// WithStatusLines sets how many lines of service status end up in the report.
func WithStatusLines(n int) Option {
	return func(dep *Deployer) { dep.statusLines = n }
}

// WithOutput mirrors all remote command output to w as it arrives.
func WithOutput(w io.Writer) Option {
	return func(dep *Deployer) { dep.output = w }
}

// WithLogger sets the logger used for per-step progress.
func WithLogger(l *zap.Logger) Option {
	return func(dep *Deployer) { dep.log = l }
}

// New validates the target and builds a Deployer for it.
func New(target Target, signer ssh.Signer, opts ...Option) (*Deployer, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if target.Branch == "" {
		target.Branch = defaultBranch
	}

	d := &Deployer{
		target:      target,
		signer:      signer,
		timeout:     defaultTimeout,
		statusLines: defaultStatusLines,
		log:         zap.NewNop(),
		dial: func(t Target, s ssh.Signer, timeout time.Duration, out io.Writer) (runnerCloser, error) {
			return dialSSH(t, s, timeout, out)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// step is one remote command of the pipeline, tagged with the error kind
// its failure is classified as.
type step struct {
	name    string
	kind    error
	command string
}

// Deploy runs the pipeline: repo check, pull, venv, dependencies, service
// restart, status capture. Fail-fast; a failing step aborts the rest and
// nothing is rolled back.
func (d *Deployer) Deploy(ctx context.Context) (Report, error) {
	report := Report{
		RunID:     uuid.NewString(),
		Address:   d.target.Host,
		Service:   d.target.Service,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	d.log.Info("starting deploy",
		zap.String("host", d.target.Host),
		zap.String("service", d.target.Service),
	)

	runner, err := d.dial(d.target, d.signer, d.timeout, d.output)
	if err != nil {
		serr := stepErr("connect", ErrConnection, nil, err)
		report.Message = serr.Error()
		return report, serr
	}
	defer runner.Close()

	dir := d.target.Dir
	backend := path.Join(dir, "backend")
	venv := path.Join(backend, "venv")
	pip := path.Join(venv, "bin", "pip")
	requirements := path.Join(backend, "requirements.txt")

	head := []step{
		{"check-repo", ErrPath, "test -d " + quote(dir)},
		{"pull", ErrSourceSync, fmt.Sprintf("git -C %s pull --ff-only origin %s", quote(dir), quote(d.target.Branch))},
		{"check-backend", ErrPath, "test -d " + quote(backend)},
	}
	for _, s := range head {
		if err := d.run(ctx, runner, s); err != nil {
			report.Message = err.Error()
			return report, err
		}
	}

	// A venv directory that already exists is reused as-is; only when the
	// probe fails is one created.
	if _, err := runner.Run(ctx, "test -d "+quote(venv)); err != nil {
		if !isExitError(err) {
			serr := stepErr("check-venv", ErrConnection, nil, err)
			report.Message = serr.Error()
			return report, serr
		}

		create := step{"create-venv", ErrDependency, "python3 -m venv " + quote(venv)}
		if err := d.run(ctx, runner, create); err != nil {
			report.Message = err.Error()
			return report, err
		}
	} else {
		d.log.Debug("virtualenv already present, skipping creation", zap.String("venv", venv))
	}

	tail := []step{
		{"install-deps", ErrDependency, fmt.Sprintf("%s install -r %s", quote(pip), quote(requirements))},
		{"daemon-reload", ErrService, "sudo systemctl daemon-reload"},
		{"restart", ErrService, "sudo systemctl restart " + quote(d.target.Service)},
	}
	for _, s := range tail {
		if err := d.run(ctx, runner, s); err != nil {
			report.Message = err.Error()
			return report, err
		}
	}

	out, err := runner.Run(ctx, "sudo systemctl status "+quote(d.target.Service)+" --no-pager")
	if err != nil {
		kind := ErrService
		if !isExitError(err) {
			kind = ErrConnection
		}
		serr := stepErr("status", kind, out, err)
		report.Message = serr.Error()
		return report, serr
	}

	report.Status = firstLines(string(out), d.statusLines)
	report.Success = true
	report.Message = fmt.Sprintf("successfully deployed to %s", d.target.Host)

	d.log.Info("deploy finished", zap.String("host", d.target.Host), zap.String("run_id", report.RunID))
	return report, nil
}

func (d *Deployer) run(ctx context.Context, r Runner, s step) error {
	d.log.Debug("running step", zap.String("step", s.name), zap.String("command", s.command))

	out, err := r.Run(ctx, s.command)
	if err == nil {
		return nil
	}

	kind := s.kind
	if !isExitError(err) {
		kind = ErrConnection
	}
	return stepErr(s.name, kind, out, err)
}

// quote wraps s in single quotes for the remote shell.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
