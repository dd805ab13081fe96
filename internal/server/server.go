// Package server exposes the tool dispatcher over the Model Context
// Protocol, on stdio by default or over streamable HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vmbridge/vagrantmcp/internal/api"
	"github.com/vmbridge/vagrantmcp/internal/domain/tool"
	"github.com/vmbridge/vagrantmcp/internal/infra/config"
	"github.com/vmbridge/vagrantmcp/internal/version"
)

const serverName = "vagrantmcp"

// Server binds the tool catalog and dispatcher to an MCP transport.
type Server struct {
	cfg        config.Config
	dispatcher *tool.Dispatcher
	mcpServer  *mcp.Server
	log        *slog.Logger
	jwtSecret  []byte
}

// New registers every catalog tool on a fresh MCP server. jwtSecret guards
// the HTTP transport only; stdio trusts its parent process.
func New(cfg config.Config, dispatcher *tool.Dispatcher, catalog *tool.Catalog, jwtSecret []byte, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: version.Version,
	}, nil)

	s := &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		mcpServer:  mcpServer,
		log:        log,
		jwtSecret:  jwtSecret,
	}

	for _, def := range catalog.Definitions() {
		mcpServer.AddTool(&mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, s.handlerFor(def.Name))
	}
	return s
}

// handlerFor adapts one catalog tool to the MCP tool handler signature.
// Dispatch failures surface as tool results with IsError set, never as
// protocol errors, so clients always get a well-formed response.
func (s *Server) handlerFor(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp := s.dispatcher.Handle(ctx, tool.Request{
			Tool: name,
			Args: req.Params.Arguments,
		})
		return toCallToolResult(resp), nil
	}
}

func toCallToolResult(resp tool.Response) *mcp.CallToolResult {
	text := resp.Content
	if !resp.Success {
		text = resp.Err
	}
	return &mcp.CallToolResult{
		IsError: !resp.Success,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// Run serves until ctx is cancelled. Transport selection comes from config:
// stdio speaks MCP framing on stdin/stdout, http mounts the streamable
// handler behind the chi router.
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Transport {
	case config.TransportStdio:
		s.log.Info("serving MCP on stdio")
		return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
	case config.TransportHTTP:
		return s.runHTTP(ctx)
	default:
		return fmt.Errorf("unknown transport %q", s.cfg.Transport)
	}
}

func (s *Server) runHTTP(ctx context.Context) error {
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)

	httpServer := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           api.NewRouter(mcpHandler, s.jwtSecret, s.log),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: streamable sessions hold the response open.
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving MCP over HTTP", "addr", s.cfg.HTTPAddr, "auth", len(s.jwtSecret) > 0)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}
