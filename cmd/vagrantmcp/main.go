// vagrantmcp - MCP server bridging AI clients to the Vagrant CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vmbridge/vagrantmcp/internal/domain/audit"
	"github.com/vmbridge/vagrantmcp/internal/domain/tool"
	"github.com/vmbridge/vagrantmcp/internal/domain/vagrant"
	"github.com/vmbridge/vagrantmcp/internal/infra/config"
	"github.com/vmbridge/vagrantmcp/internal/infra/eventbus"
	"github.com/vmbridge/vagrantmcp/internal/infra/sqlite"
	"github.com/vmbridge/vagrantmcp/internal/server"
	"github.com/vmbridge/vagrantmcp/internal/version"
	pkgauth "github.com/vmbridge/vagrantmcp/pkg/auth"
)

const envKeyJWTSecret = "JWT_SECRET"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is the testable entry point. Diagnostics go to errOut because in stdio
// mode stdout carries MCP protocol framing and must stay clean.
func run(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("vagrantmcp", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		printHelp(errOut)
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}
	if *showHelp {
		printHelp(out)
		return 0
	}

	if rest := fs.Args(); len(rest) > 0 && rest[0] == "token" {
		return runToken(rest[1:], out, errOut)
	}

	return serve(out, errOut)
}

// runToken mints a bearer token for the HTTP transport.
func runToken(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("vagrantmcp token", flag.ContinueOnError)
	fs.SetOutput(errOut)

	clientID := fs.String("client", "local", "Client identifier embedded in the token")
	ttlHours := fs.Int("ttl", 24, "Token lifetime in hours")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	secret := os.Getenv(envKeyJWTSecret)
	if secret == "" {
		fmt.Fprintf(errOut, "error: %s must be set to mint tokens\n", envKeyJWTSecret) //nolint:errcheck
		return 1
	}

	token, err := pkgauth.GenerateToken([]byte(secret), *clientID, time.Duration(*ttlHours)*time.Hour)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err) //nolint:errcheck
		return 1
	}
	fmt.Fprintln(out, token) //nolint:errcheck
	return 0
}

func serve(out, errOut io.Writer) int {
	log := slog.New(slog.NewTextHandler(errOut, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	runner := &vagrant.ExecRunner{
		Binary:  cfg.Binary,
		Home:    cfg.VagrantHome,
		Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
	}
	if err := runner.CheckBinary(); err != nil {
		log.Error("vagrant binary not usable", "binary", cfg.Binary, "error", err)
		return 1
	}

	dirs, err := vagrant.NewDirResolver(cfg.ProjectsDir)
	if err != nil {
		log.Error("invalid projects directory", "dir", cfg.ProjectsDir, "error", err)
		return 1
	}

	catalog, err := tool.NewCatalog()
	if err != nil {
		log.Error("catalog init failed", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audit log is opt-in; without a database path the bus stays nil and
	// the dispatcher publishes nothing.
	var bus eventbus.EventBus
	if cfg.AuditDB != "" {
		db, dbErr := sqlite.NewDB(cfg.AuditDB)
		if dbErr != nil {
			log.Error("open audit database", "path", cfg.AuditDB, "error", dbErr)
			return 1
		}
		defer db.Close() //nolint:errcheck
		if migErr := sqlite.MigrateUp(db); migErr != nil {
			log.Error("migrate audit database", "error", migErr)
			return 1
		}

		b := eventbus.New()
		recorder := audit.NewRecorder(db, log)
		go recorder.Consume(ctx, b.Subscribe(audit.TopicInvocation))
		bus = b
		log.Info("audit log enabled", "path", cfg.AuditDB)
	}

	dispatcher := tool.NewDispatcher(catalog, runner, dirs, bus, log)

	var jwtSecret []byte
	if secret := os.Getenv(envKeyJWTSecret); secret != "" {
		jwtSecret = []byte(secret)
	}
	if cfg.Transport == config.TransportHTTP && jwtSecret == nil {
		log.Warn("http transport without JWT_SECRET, endpoint is unauthenticated")
	}

	srv := server.New(cfg, dispatcher, catalog, jwtSecret, log)
	log.Info("starting",
		"version", version.Version,
		"transport", cfg.Transport,
		"projects_dir", dirs.Root(),
		"timeout_seconds", cfg.TimeoutSec)

	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", "error", err)
		return 1
	}
	return 0
}

func printHelp(out io.Writer) {
	helpText := `vagrantmcp - MCP server for Vagrant VM lifecycle management

Usage:
  vagrantmcp [options]
  vagrantmcp token [-client id] [-ttl hours]

Options:
  --version    Show version information
  --help       Show this help message

Commands:
  token        Mint a bearer token for the HTTP transport (requires JWT_SECRET)

Environment:
  VAGRANT_PROJECTS_DIR   Root directory for Vagrant projects (default /vagrant-projects)
  VAGRANT_HOME           Passed through to the vagrant subprocess
  VAGRANTMCP_BINARY      Vagrant executable (default vagrant)
  VAGRANTMCP_TIMEOUT     Per-command timeout in seconds (default 300)
  VAGRANTMCP_TRANSPORT   stdio or http (default stdio)
  VAGRANTMCP_HTTP_ADDR   Listen address for http transport (default 127.0.0.1:8700)
  VAGRANTMCP_AUDIT_DB    SQLite path enabling the invocation audit log
  VAGRANTMCP_CONFIG      Optional YAML config file
  JWT_SECRET             Enables bearer auth on the http transport

Examples:
  vagrantmcp --version
  VAGRANT_PROJECTS_DIR=$HOME/vms vagrantmcp
  VAGRANTMCP_TRANSPORT=http JWT_SECRET=s3cret vagrantmcp`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
