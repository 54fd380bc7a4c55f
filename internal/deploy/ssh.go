package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

// Runner executes one self-contained command on the deploy target and
// returns its combined output. A non-zero exit surfaces as an error that
// matches isExitError; anything else is a transport problem.
type Runner interface {
	Run(ctx context.Context, command string) ([]byte, error)
}

type runnerCloser interface {
	Runner
	io.Closer
}

// sshRunner runs each command in its own session so no shell state leaks
// between steps.
type sshRunner struct {
	client *ssh.Client
	output io.Writer
}

func dialSSH(target Target, signer ssh.Signer, timeout time.Duration, output io.Writer) (*sshRunner, error) {
	config := &ssh.ClientConfig{
		User: target.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO verify against known_hosts
		Timeout:         timeout,
	}

	// Add port 22 if not specified.
	addr := target.Host
	if _, _, err := net.SplitHostPort(addr); err != nil {
		port := target.Port
		if port == 0 {
			port = 22
		}
		addr = net.JoinHostPort(addr, strconv.Itoa(port))
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection with %v: %w", addr, err)
	}

	return &sshRunner{client: client, output: output}, nil
}

func (r *sshRunner) Run(ctx context.Context, command string) ([]byte, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open a new session: %w", err)
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}

	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(command)
		done <- result{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return nil, ctx.Err()
	case res := <-done:
		if r.output != nil && len(res.out) > 0 {
			r.output.Write(res.out) // nolint:errcheck
		}
		return res.out, res.err
	}
}

func (r *sshRunner) Close() error {
	return r.client.Close()
}

// exitStatuser is satisfied by *ssh.ExitError.
type exitStatuser interface {
	ExitStatus() int
}

// isExitError reports whether the remote command ran to completion and
// exited non-zero, as opposed to the session or connection falling over.
func isExitError(err error) bool {
	var es exitStatuser
	return errors.As(err, &es)
}
