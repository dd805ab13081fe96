// Package tool holds the static catalog of vagrant operations and the
// dispatcher that turns invocation requests into subprocess runs.
package tool

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Command is the validated, normalized output of a tool's argument builder:
// the vagrant argument vector (binary excluded) plus the requested project
// directory, still relative to the projects root.
type Command struct {
	Argv   []string
	Dir    string // "" means the projects root itself
	Global bool   // true for commands that need no Vagrantfile
}

// Definition is one entry of the static tool catalog.
type Definition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	// Build validates raw params and produces the argument vector. It is
	// pure: on validation failure it returns ErrInvalidParams naming the
	// field, and nothing is executed.
	Build func(raw json.RawMessage) (*Command, error)
}

// Catalog is the immutable set of supported operations, created once at
// process start.
type Catalog struct {
	defs  map[string]*Definition
	order []string
}

// NewCatalog builds the catalog and verifies every entry is complete.
// An entry without a schema or builder is a programming error and fails fast.
func NewCatalog() (*Catalog, error) {
	c := &Catalog{defs: make(map[string]*Definition)}
	for _, def := range definitions() {
		if def.Name == "" || def.InputSchema == nil || def.Build == nil {
			return nil, fmt.Errorf("catalog entry %q is incomplete", def.Name)
		}
		if _, exists := c.defs[def.Name]; exists {
			return nil, fmt.Errorf("catalog entry %q registered twice", def.Name)
		}
		c.defs[def.Name] = def
		c.order = append(c.order, def.Name)
	}
	return c, nil
}

// Lookup returns the definition for name.
func (c *Catalog) Lookup(name string) (*Definition, bool) {
	def, ok := c.defs[name]
	return def, ok
}

// Definitions returns all entries in registration order.
func (c *Catalog) Definitions() []*Definition {
	out := make([]*Definition, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.defs[name])
	}
	return out
}

// decodeParams strictly decodes raw into dst; unknown fields are rejected so
// a typo'd parameter fails loudly instead of being silently ignored.
func decodeParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// --- schema helpers ---

func objectSchema(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func stringSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func boolSchema(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: desc}
}

func directorySchema() *jsonschema.Schema {
	return stringSchema("Project directory, relative to the projects root")
}

// --- per-tool parameters and builders ---

type statusParams struct {
	Machine   string `json:"machine,omitempty"`
	Directory string `json:"directory,omitempty"`
}

type upParams struct {
	Machine   string `json:"machine,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Provision *bool  `json:"provision,omitempty"`
	Directory string `json:"directory,omitempty"`
}

type haltParams struct {
	Machine   string `json:"machine,omitempty"`
	Force     bool   `json:"force,omitempty"`
	Directory string `json:"directory,omitempty"`
}

type destroyParams struct {
	Machine   string `json:"machine,omitempty"`
	Force     *bool  `json:"force,omitempty"`
	Directory string `json:"directory,omitempty"`
}

type sshParams struct {
	Machine   string `json:"machine"`
	Command   string `json:"command"`
	Directory string `json:"directory,omitempty"`
}

type provisionParams struct {
	Machine     string `json:"machine,omitempty"`
	Provisioner string `json:"provisioner,omitempty"`
	Directory   string `json:"directory,omitempty"`
}

type reloadParams struct {
	Machine   string `json:"machine,omitempty"`
	Provision bool   `json:"provision,omitempty"`
	Directory string `json:"directory,omitempty"`
}

type snapshotParams struct {
	Action    string `json:"action"`
	Name      string `json:"name,omitempty"`
	Machine   string `json:"machine,omitempty"`
	Directory string `json:"directory,omitempty"`
}

type globalStatusParams struct {
	Prune bool `json:"prune,omitempty"`
}

func buildStatus(raw json.RawMessage) (*Command, error) {
	var p statusParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	argv := []string{"status"}
	if p.Machine != "" {
		argv = append(argv, p.Machine)
	}
	return &Command{Argv: argv, Dir: p.Directory}, nil
}

func buildUp(raw json.RawMessage) (*Command, error) {
	var p upParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	argv := []string{"up"}
	if p.Machine != "" {
		argv = append(argv, p.Machine)
	}
	if p.Provider != "" {
		argv = append(argv, "--provider", p.Provider)
	}
	// Provisioning defaults to on; only an explicit false suppresses it.
	if p.Provision != nil && !*p.Provision {
		argv = append(argv, "--no-provision")
	}
	return &Command{Argv: argv, Dir: p.Directory}, nil
}

func buildHalt(raw json.RawMessage) (*Command, error) {
	var p haltParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	argv := []string{"halt"}
	if p.Machine != "" {
		argv = append(argv, p.Machine)
	}
	if p.Force {
		argv = append(argv, "--force")
	}
	return &Command{Argv: argv, Dir: p.Directory}, nil
}

func buildDestroy(raw json.RawMessage) (*Command, error) {
	var p destroyParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	// Fail closed: destruction needs an explicit force=true, never an
	// implied confirmation.
	if p.Force == nil || !*p.Force {
		return nil, fmt.Errorf("%w: destroy requires force=true", ErrInvalidParams)
	}
	argv := []string{"destroy"}
	if p.Machine != "" {
		argv = append(argv, p.Machine)
	}
	argv = append(argv, "--force")
	return &Command{Argv: argv, Dir: p.Directory}, nil
}

func buildSSH(raw json.RawMessage) (*Command, error) {
	var p sshParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Machine == "" {
		return nil, fmt.Errorf("%w: machine is required", ErrInvalidParams)
	}
	if p.Command == "" {
		return nil, fmt.Errorf("%w: command is required", ErrInvalidParams)
	}
	return &Command{
		Argv: []string{"ssh", p.Machine, "-c", p.Command},
		Dir:  p.Directory,
	}, nil
}

func buildProvision(raw json.RawMessage) (*Command, error) {
	var p provisionParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	argv := []string{"provision"}
	if p.Machine != "" {
		argv = append(argv, p.Machine)
	}
	if p.Provisioner != "" {
		argv = append(argv, "--provision-with", p.Provisioner)
	}
	return &Command{Argv: argv, Dir: p.Directory}, nil
}

func buildReload(raw json.RawMessage) (*Command, error) {
	var p reloadParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	argv := []string{"reload"}
	if p.Machine != "" {
		argv = append(argv, p.Machine)
	}
	if p.Provision {
		argv = append(argv, "--provision")
	}
	return &Command{Argv: argv, Dir: p.Directory}, nil
}

var snapshotActions = map[string]bool{
	"save":    true,
	"restore": true,
	"list":    true,
	"delete":  true,
}

// snapshot actions that address a named snapshot.
var snapshotNeedsName = map[string]bool{
	"save":    true,
	"restore": true,
	"delete":  true,
}

func buildSnapshot(raw json.RawMessage) (*Command, error) {
	var p snapshotParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Action == "" {
		return nil, fmt.Errorf("%w: action is required", ErrInvalidParams)
	}
	if !snapshotActions[p.Action] {
		return nil, fmt.Errorf("%w: unknown action %q (want save, restore, list or delete)",
			ErrInvalidParams, p.Action)
	}
	if snapshotNeedsName[p.Action] && p.Name == "" {
		return nil, fmt.Errorf("%w: name is required for %s", ErrInvalidParams, p.Action)
	}
	argv := []string{"snapshot", p.Action}
	if p.Name != "" {
		argv = append(argv, p.Name)
	}
	if p.Machine != "" {
		argv = append(argv, p.Machine)
	}
	return &Command{Argv: argv, Dir: p.Directory}, nil
}

func buildGlobalStatus(raw json.RawMessage) (*Command, error) {
	var p globalStatusParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	argv := []string{"global-status"}
	if p.Prune {
		argv = append(argv, "--prune")
	}
	return &Command{Argv: argv, Global: true}, nil
}

// definitions is the static tool table. Names and argument vectors match the
// vagrant CLI one to one.
func definitions() []*Definition {
	machine := stringSchema("Name of the target machine")
	return []*Definition{
		{
			Name:        "vagrant_status",
			Description: "Report the state of the Vagrant machines in a project directory",
			InputSchema: objectSchema(nil, map[string]*jsonschema.Schema{
				"machine":   machine,
				"directory": directorySchema(),
			}),
			Build: buildStatus,
		},
		{
			Name:        "vagrant_up",
			Description: "Start and provision Vagrant machines",
			InputSchema: objectSchema(nil, map[string]*jsonschema.Schema{
				"machine":   machine,
				"provider":  stringSchema("Vagrant provider to use (e.g. virtualbox, libvirt)"),
				"provision": boolSchema("Run provisioners on boot (default true)"),
				"directory": directorySchema(),
			}),
			Build: buildUp,
		},
		{
			Name:        "vagrant_halt",
			Description: "Stop Vagrant machines gracefully",
			InputSchema: objectSchema(nil, map[string]*jsonschema.Schema{
				"machine":   machine,
				"force":     boolSchema("Force the halt instead of a graceful shutdown"),
				"directory": directorySchema(),
			}),
			Build: buildHalt,
		},
		{
			Name:        "vagrant_destroy",
			Description: "Destroy Vagrant machines and remove all traces; requires force=true",
			InputSchema: objectSchema([]string{"force"}, map[string]*jsonschema.Schema{
				"machine":   machine,
				"force":     boolSchema("Must be true; destruction is refused otherwise"),
				"directory": directorySchema(),
			}),
			Build: buildDestroy,
		},
		{
			Name:        "vagrant_ssh",
			Description: "Execute a command inside a machine over vagrant ssh",
			InputSchema: objectSchema([]string{"machine", "command"}, map[string]*jsonschema.Schema{
				"machine":   machine,
				"command":   stringSchema("Command to execute inside the guest"),
				"directory": directorySchema(),
			}),
			Build: buildSSH,
		},
		{
			Name:        "vagrant_provision",
			Description: "Re-run the configured provisioners",
			InputSchema: objectSchema(nil, map[string]*jsonschema.Schema{
				"machine":     machine,
				"provisioner": stringSchema("Run only this provisioner"),
				"directory":   directorySchema(),
			}),
			Build: buildProvision,
		},
		{
			Name:        "vagrant_reload",
			Description: "Restart machines and re-apply the Vagrantfile",
			InputSchema: objectSchema(nil, map[string]*jsonschema.Schema{
				"machine":   machine,
				"provision": boolSchema("Run provisioners after the reload (default false)"),
				"directory": directorySchema(),
			}),
			Build: buildReload,
		},
		{
			Name:        "vagrant_snapshot",
			Description: "Manage machine snapshots (save, restore, list, delete)",
			InputSchema: objectSchema([]string{"action"}, map[string]*jsonschema.Schema{
				"action": {
					Type:        "string",
					Enum:        []any{"save", "restore", "list", "delete"},
					Description: "Snapshot action to perform",
				},
				"name":      stringSchema("Snapshot name (required for save, restore and delete)"),
				"machine":   machine,
				"directory": directorySchema(),
			}),
			Build: buildSnapshot,
		},
		{
			Name:        "vagrant_global_status",
			Description: "Report the state of all Vagrant environments on this host",
			InputSchema: objectSchema(nil, map[string]*jsonschema.Schema{
				"prune": boolSchema("Prune invalid entries from the result"),
			}),
			Build: buildGlobalStatus,
		},
	}
}
