package tool

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

var allToolNames = []string{
	"vagrant_status",
	"vagrant_up",
	"vagrant_halt",
	"vagrant_destroy",
	"vagrant_ssh",
	"vagrant_provision",
	"vagrant_reload",
	"vagrant_snapshot",
	"vagrant_global_status",
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	return c
}

func mustBuild(t *testing.T, c *Catalog, name, raw string) *Command {
	t.Helper()
	def, ok := c.Lookup(name)
	if !ok {
		t.Fatalf("tool %q not in catalog", name)
	}
	cmd, err := def.Build(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Build(%s, %s) returned error: %v", name, raw, err)
	}
	return cmd
}

func buildErr(t *testing.T, c *Catalog, name, raw string) error {
	t.Helper()
	def, ok := c.Lookup(name)
	if !ok {
		t.Fatalf("tool %q not in catalog", name)
	}
	_, err := def.Build(json.RawMessage(raw))
	if err == nil {
		t.Fatalf("Build(%s, %s): expected error", name, raw)
	}
	return err
}

func TestCatalog_AllToolsRegistered(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	for _, name := range allToolNames {
		if _, ok := c.Lookup(name); !ok {
			t.Errorf("expected %q in catalog", name)
		}
	}
	if got := len(c.Definitions()); got != len(allToolNames) {
		t.Errorf("expected %d definitions, got %d", len(allToolNames), got)
	}
}

func TestCatalog_LookupUnknown(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	if _, ok := c.Lookup("vagrant_teleport"); ok {
		t.Error("expected unknown tool to miss")
	}
}

func TestCatalog_RequiredFields(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)

	ssh, _ := c.Lookup("vagrant_ssh")
	if !reflect.DeepEqual(ssh.InputSchema.Required, []string{"machine", "command"}) {
		t.Errorf("ssh required fields = %v", ssh.InputSchema.Required)
	}

	destroy, _ := c.Lookup("vagrant_destroy")
	if !reflect.DeepEqual(destroy.InputSchema.Required, []string{"force"}) {
		t.Errorf("destroy required fields = %v", destroy.InputSchema.Required)
	}
}

func TestBuildStatus(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)

	cmd := mustBuild(t, c, "vagrant_status", `{}`)
	if !reflect.DeepEqual(cmd.Argv, []string{"status"}) {
		t.Errorf("argv = %v", cmd.Argv)
	}
	if cmd.Global {
		t.Error("status must require a Vagrantfile")
	}

	cmd = mustBuild(t, c, "vagrant_status", `{"machine":"web","directory":"proj"}`)
	if !reflect.DeepEqual(cmd.Argv, []string{"status", "web"}) {
		t.Errorf("argv = %v", cmd.Argv)
	}
	if cmd.Dir != "proj" {
		t.Errorf("dir = %q", cmd.Dir)
	}
}

func TestBuildUp(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)

	tests := []struct {
		raw  string
		want []string
	}{
		{`{}`, []string{"up"}},
		{`{"machine":"web"}`, []string{"up", "web"}},
		{`{"provider":"libvirt"}`, []string{"up", "--provider", "libvirt"}},
		{`{"provision":true}`, []string{"up"}},
		{`{"provision":false}`, []string{"up", "--no-provision"}},
		{`{"machine":"db","provider":"virtualbox","provision":false}`,
			[]string{"up", "db", "--provider", "virtualbox", "--no-provision"}},
	}
	for _, tt := range tests {
		cmd := mustBuild(t, c, "vagrant_up", tt.raw)
		if !reflect.DeepEqual(cmd.Argv, tt.want) {
			t.Errorf("Build(up, %s) argv = %v, want %v", tt.raw, cmd.Argv, tt.want)
		}
	}
}

func TestBuildHalt(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	cmd := mustBuild(t, c, "vagrant_halt", `{"machine":"web","force":true}`)
	if !reflect.DeepEqual(cmd.Argv, []string{"halt", "web", "--force"}) {
		t.Errorf("argv = %v", cmd.Argv)
	}
}

func TestBuildDestroy_FailsClosedWithoutForce(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)

	for _, raw := range []string{`{"machine":"web"}`, `{"machine":"web","force":false}`} {
		err := buildErr(t, c, "vagrant_destroy", raw)
		if !errors.Is(err, ErrInvalidParams) {
			t.Errorf("Build(destroy, %s): expected ErrInvalidParams, got %v", raw, err)
		}
		if !strings.Contains(err.Error(), "force") {
			t.Errorf("error should name the force field, got %q", err)
		}
	}

	cmd := mustBuild(t, c, "vagrant_destroy", `{"machine":"web","force":true}`)
	if !reflect.DeepEqual(cmd.Argv, []string{"destroy", "web", "--force"}) {
		t.Errorf("argv = %v", cmd.Argv)
	}
}

func TestBuildSSH_RequiresMachineAndCommand(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)

	err := buildErr(t, c, "vagrant_ssh", `{"command":"ls"}`)
	if !errors.Is(err, ErrInvalidParams) || !strings.Contains(err.Error(), "machine") {
		t.Errorf("expected machine validation error, got %v", err)
	}

	err = buildErr(t, c, "vagrant_ssh", `{"machine":"db"}`)
	if !errors.Is(err, ErrInvalidParams) || !strings.Contains(err.Error(), "command") {
		t.Errorf("expected command validation error, got %v", err)
	}

	cmd := mustBuild(t, c, "vagrant_ssh", `{"machine":"db","command":"uptime -p"}`)
	if !reflect.DeepEqual(cmd.Argv, []string{"ssh", "db", "-c", "uptime -p"}) {
		t.Errorf("argv = %v", cmd.Argv)
	}
}

func TestBuildProvision(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	cmd := mustBuild(t, c, "vagrant_provision", `{"machine":"web","provisioner":"shell"}`)
	if !reflect.DeepEqual(cmd.Argv, []string{"provision", "web", "--provision-with", "shell"}) {
		t.Errorf("argv = %v", cmd.Argv)
	}
}

func TestBuildReload(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)

	cmd := mustBuild(t, c, "vagrant_reload", `{}`)
	if !reflect.DeepEqual(cmd.Argv, []string{"reload"}) {
		t.Errorf("argv = %v", cmd.Argv)
	}

	cmd = mustBuild(t, c, "vagrant_reload", `{"machine":"web","provision":true}`)
	if !reflect.DeepEqual(cmd.Argv, []string{"reload", "web", "--provision"}) {
		t.Errorf("argv = %v", cmd.Argv)
	}
}

func TestBuildSnapshot(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)

	err := buildErr(t, c, "vagrant_snapshot", `{}`)
	if !errors.Is(err, ErrInvalidParams) || !strings.Contains(err.Error(), "action") {
		t.Errorf("expected action validation error, got %v", err)
	}

	err = buildErr(t, c, "vagrant_snapshot", `{"action":"clone"}`)
	if !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected enum validation error, got %v", err)
	}

	for _, action := range []string{"save", "restore", "delete"} {
		err := buildErr(t, c, "vagrant_snapshot", `{"action":"`+action+`"}`)
		if !errors.Is(err, ErrInvalidParams) || !strings.Contains(err.Error(), "name") {
			t.Errorf("snapshot %s without name: expected name validation error, got %v", action, err)
		}
	}

	cmd := mustBuild(t, c, "vagrant_snapshot", `{"action":"list"}`)
	if !reflect.DeepEqual(cmd.Argv, []string{"snapshot", "list"}) {
		t.Errorf("argv = %v", cmd.Argv)
	}

	cmd = mustBuild(t, c, "vagrant_snapshot", `{"action":"save","name":"before-upgrade","machine":"web"}`)
	if !reflect.DeepEqual(cmd.Argv, []string{"snapshot", "save", "before-upgrade", "web"}) {
		t.Errorf("argv = %v", cmd.Argv)
	}
}

func TestBuildGlobalStatus(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)

	cmd := mustBuild(t, c, "vagrant_global_status", `{}`)
	if !reflect.DeepEqual(cmd.Argv, []string{"global-status"}) {
		t.Errorf("argv = %v", cmd.Argv)
	}
	if !cmd.Global {
		t.Error("global-status must not require a Vagrantfile")
	}

	cmd = mustBuild(t, c, "vagrant_global_status", `{"prune":true}`)
	if !reflect.DeepEqual(cmd.Argv, []string{"global-status", "--prune"}) {
		t.Errorf("argv = %v", cmd.Argv)
	}
}

func TestBuild_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	err := buildErr(t, c, "vagrant_status", `{"machin":"web"}`)
	if !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams for unknown field, got %v", err)
	}
}

func TestBuild_EmptyArgsTreatedAsEmptyObject(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	def, _ := c.Lookup("vagrant_status")
	cmd, err := def.Build(nil)
	if err != nil {
		t.Fatalf("Build(nil) returned error: %v", err)
	}
	if !reflect.DeepEqual(cmd.Argv, []string{"status"}) {
		t.Errorf("argv = %v", cmd.Argv)
	}
}
