package vagrant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// shRunner returns an ExecRunner that drives /bin/sh instead of vagrant so
// the subprocess contract can be exercised without a hypervisor.
func shRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Binary: "/bin/sh", Timeout: timeout}
}

func TestRun_SeparatesStdoutAndStderr(t *testing.T) {
	t.Parallel()

	r := shRunner(10 * time.Second)
	res, err := r.Run(context.Background(), t.TempDir(), []string{"-c", "echo out; echo err 1>&2"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit 0, got %d", res.ExitCode)
	}
	if res.Stdout != "out\n" {
		t.Errorf("expected stdout 'out\\n', got %q", res.Stdout)
	}
	if res.Stderr != "err\n" {
		t.Errorf("expected stderr 'err\\n', got %q", res.Stderr)
	}
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	t.Parallel()

	r := shRunner(10 * time.Second)
	res, err := r.Run(context.Background(), t.TempDir(), []string{"-c", "echo boom 1>&2; exit 3"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit 3, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "boom") {
		t.Errorf("expected stderr to carry diagnostics, got %q", res.Stderr)
	}
}

func TestRun_TimeoutKillsProcessAndSalvagesOutput(t *testing.T) {
	t.Parallel()

	r := shRunner(200 * time.Millisecond)
	start := time.Now()
	res, err := r.Run(context.Background(), t.TempDir(), []string{"-c", "echo started; sleep 30"})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if res == nil || !res.TimedOut {
		t.Fatalf("expected partial result tagged TimedOut, got %+v", res)
	}
	if res.Stdout != "started\n" {
		t.Errorf("expected salvaged stdout, got %q", res.Stdout)
	}
	// Well under the sleep: the process group was actually killed.
	if elapsed > 10*time.Second {
		t.Errorf("timeout did not terminate the child, took %s", elapsed)
	}
}

func TestRun_BinaryNotFound(t *testing.T) {
	t.Parallel()

	r := &ExecRunner{Binary: "/nonexistent/vagrant-definitely-missing", Timeout: time.Second}
	_, err := r.Run(context.Background(), t.TempDir(), []string{"status"})
	if !errors.Is(err, ErrStartFailed) {
		t.Fatalf("expected ErrStartFailed, got %v", err)
	}
}

func TestRun_ChildEnvironmentIsMinimal(t *testing.T) {
	t.Setenv("VAGRANTMCP_TEST_LEAK", "secret")

	r := shRunner(10 * time.Second)
	res, err := r.Run(context.Background(), t.TempDir(), []string{"-c", "printf '%s' \"$VAGRANTMCP_TEST_LEAK\""})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Stdout != "" {
		t.Errorf("parent env leaked into the child: %q", res.Stdout)
	}
}

func TestRun_ExportsVagrantHome(t *testing.T) {
	t.Parallel()

	r := shRunner(10 * time.Second)
	r.Home = "/var/lib/vagrant-home"
	res, err := r.Run(context.Background(), t.TempDir(), []string{"-c", "printf '%s' \"$VAGRANT_HOME\""})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Stdout != "/var/lib/vagrant-home" {
		t.Errorf("expected VAGRANT_HOME exported, got %q", res.Stdout)
	}
}

func TestCheckBinary(t *testing.T) {
	t.Parallel()

	ok := &ExecRunner{Binary: "/bin/sh"}
	if err := ok.CheckBinary(); err != nil {
		t.Errorf("expected /bin/sh to resolve, got %v", err)
	}

	missing := &ExecRunner{Binary: "vagrant-definitely-missing-binary"}
	if err := missing.CheckBinary(); !errors.Is(err, ErrStartFailed) {
		t.Errorf("expected ErrStartFailed, got %v", err)
	}
}
