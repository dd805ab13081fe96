package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vmbridge/vagrantmcp/internal/domain/audit"
	"github.com/vmbridge/vagrantmcp/internal/domain/vagrant"
	"github.com/vmbridge/vagrantmcp/internal/infra/eventbus"
)

// Request is one incoming tool invocation: a name plus raw JSON parameters.
// Consumed once; nothing outlives the dispatch cycle.
type Request struct {
	Tool string
	Args json.RawMessage
}

// Response is the terminal artifact of one dispatch cycle.
type Response struct {
	Success bool
	Content string // primary output (stdout) on success
	Err     string // diagnostic detail on failure
}

// Dispatcher maps invocation requests onto subprocess runs. It holds no
// mutable state, so concurrent Handle calls are independent.
type Dispatcher struct {
	catalog *Catalog
	runner  vagrant.Runner
	dirs    *vagrant.DirResolver
	bus     eventbus.EventBus // optional; nil disables audit events
	log     *slog.Logger
}

// NewDispatcher wires the catalog to a runner and directory resolver.
// bus may be nil when auditing is disabled.
func NewDispatcher(catalog *Catalog, runner vagrant.Runner, dirs *vagrant.DirResolver, bus eventbus.EventBus, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{catalog: catalog, runner: runner, dirs: dirs, bus: bus, log: log}
}

// Handle performs one dispatch: lookup, validate, resolve the working
// directory, execute, and normalize the outcome. Every failure mode becomes
// a well-formed Response; Handle never panics or returns an error, because
// the transport expects exactly one response per request.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	def, ok := d.catalog.Lookup(req.Tool)
	if !ok {
		return d.failure(req.Tool, fmt.Sprintf("%v: %q", ErrToolNotFound, req.Tool))
	}

	cmd, err := def.Build(req.Args)
	if err != nil {
		return d.failure(req.Tool, err.Error())
	}

	dir, err := d.dirs.Resolve(cmd.Dir)
	if err != nil {
		return d.failure(req.Tool, err.Error())
	}
	if !cmd.Global {
		if err := d.dirs.RequireVagrantfile(dir); err != nil {
			return d.failure(req.Tool, err.Error())
		}
	}

	res, runErr := d.runner.Run(ctx, dir, cmd.Argv)
	d.publish(req.Tool, cmd.Argv, dir, res, runErr)
	return d.respond(req.Tool, cmd.Argv, dir, res, runErr)
}

func (d *Dispatcher) respond(tool string, argv []string, dir string, res *vagrant.Result, runErr error) Response {
	switch {
	case errors.Is(runErr, vagrant.ErrTimeout):
		detail := runErr.Error()
		if partial := partialOutput(res); partial != "" {
			detail += "\n\npartial output:\n" + partial
		}
		d.log.Warn("tool timed out", "tool", tool, "dir", dir)
		return Response{Err: detail}

	case runErr != nil:
		d.log.Error("tool execution failed", "tool", tool, "dir", dir, "error", runErr)
		return Response{Err: runErr.Error()}

	case res.ExitCode != 0:
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(res.Stdout)
		}
		d.log.Warn("tool exited non-zero",
			"tool", tool, "dir", dir, "exit", res.ExitCode, "duration", res.Duration)
		return Response{Err: fmt.Sprintf("vagrant %s exited with code %d: %s", argv[0], res.ExitCode, detail)}

	default:
		d.log.Info("tool succeeded", "tool", tool, "dir", dir, "duration", res.Duration)
		return Response{Success: true, Content: res.Stdout}
	}
}

// publish emits one audit event per executed invocation. Best-effort: a nil
// bus or a full buffer never affects the response.
func (d *Dispatcher) publish(tool string, argv []string, dir string, res *vagrant.Result, runErr error) {
	if d.bus == nil {
		return
	}

	inv := audit.Invocation{
		Tool:      tool,
		Argv:      argv,
		Directory: dir,
		CreatedAt: time.Now().UTC(),
	}
	switch {
	case errors.Is(runErr, vagrant.ErrTimeout):
		inv.Outcome = audit.OutcomeTimeout
		inv.TimedOut = true
		inv.ExitCode = -1
		inv.Detail = runErr.Error()
	case runErr != nil:
		inv.Outcome = audit.OutcomeError
		inv.ExitCode = -1
		inv.Detail = runErr.Error()
	case res.ExitCode != 0:
		inv.Outcome = audit.OutcomeError
		inv.ExitCode = res.ExitCode
		inv.Detail = strings.TrimSpace(res.Stderr)
	default:
		inv.Outcome = audit.OutcomeSuccess
	}
	if res != nil {
		inv.Duration = res.Duration
	}

	d.bus.Publish(audit.TopicInvocation, inv)
}

func (d *Dispatcher) failure(tool, detail string) Response {
	d.log.Warn("tool rejected", "tool", tool, "error", detail)
	return Response{Err: detail}
}

func partialOutput(res *vagrant.Result) string {
	if res == nil {
		return ""
	}
	out := strings.TrimSpace(res.Stdout)
	if errOut := strings.TrimSpace(res.Stderr); errOut != "" {
		if out != "" {
			out += "\n"
		}
		out += errOut
	}
	return out
}
