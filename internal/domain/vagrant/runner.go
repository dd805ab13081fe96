// Package vagrant executes the external vagrant CLI as a child process and
// resolves the project directories it runs in. It knows nothing about tools
// or transports; callers hand it a finished argument vector.
package vagrant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

var (
	// ErrStartFailed means the child process could not be launched at all
	// (binary missing, permission denied).
	ErrStartFailed = errors.New("vagrant could not be started")
	// ErrTimeout means the child process exceeded the configured timeout and
	// was terminated. The accompanying Result still carries partial output.
	ErrTimeout = errors.New("vagrant timed out")
)

// Result captures one finished (or terminated) vagrant invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// Runner executes one vagrant command to completion.
type Runner interface {
	Run(ctx context.Context, dir string, args []string) (*Result, error)
}

// ExecRunner runs the real vagrant binary. Each Run is independent; the
// struct holds configuration only, so concurrent invocations are safe.
type ExecRunner struct {
	Binary  string        // executable name or path, looked up on PATH
	Home    string        // exported as VAGRANT_HOME when non-empty
	Timeout time.Duration // hard cap per invocation
}

// DefaultTimeout bounds an invocation when no timeout is configured.
// Vagrant operations such as `up` routinely take minutes.
const DefaultTimeout = 5 * time.Minute

// killDelay is how long Wait allows output pipes to drain after the process
// group has been signalled.
const killDelay = 5 * time.Second

// CheckBinary verifies the configured binary is resolvable. Meant as a
// startup health check so a misconfigured server fails before serving.
func (r *ExecRunner) CheckBinary() error {
	if _, err := exec.LookPath(r.Binary); err != nil {
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	return nil
}

// Run executes the binary with args in dir and waits for completion.
// stdout and stderr are captured separately. On timeout the whole process
// group is killed so provider subprocesses do not outlive the call, and the
// partial Result is returned alongside ErrTimeout.
func (r *ExecRunner) Run(ctx context.Context, dir string, args []string) (*Result, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = dir
	cmd.Env = r.environment()
	// Own process group, so cancellation reaches vagrant's own children
	// (provider CLIs, ssh) and not just the leader.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = killDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	waitErr := cmd.Wait()

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
		return res, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			// Non-zero exit is a normal outcome; the caller decides what it means.
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("%w: %v", ErrStartFailed, waitErr)
	}
	return res, nil
}

// environment builds the minimal, explicit child environment: PATH and HOME
// from the parent plus the configured VAGRANT_HOME. Nothing else leaks in,
// which keeps invocations reproducible.
func (r *ExecRunner) environment() []string {
	var env []string
	if v := os.Getenv("PATH"); v != "" {
		env = append(env, "PATH="+v)
	}
	if v := os.Getenv("HOME"); v != "" {
		env = append(env, "HOME="+v)
	}
	if r.Home != "" {
		env = append(env, "VAGRANT_HOME="+r.Home)
	}
	return env
}
