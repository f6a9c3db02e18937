// Package mcp exposes the bridge commands as MCP tools so an assistant can
// drive the host application.
package mcp

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
)

// Bridge sends one command to the host. client.Manager satisfies it.
type Bridge interface {
	Send(ctx context.Context, name string, params map[string]any) (map[string]any, error)
}

type MCPServer struct {
	Server *server.MCPServer
	bridge Bridge
}

func NewMCPServer(bridge Bridge, version string) *MCPServer {
	s := &MCPServer{
		Server: server.NewMCPServer("hostbridge", version,
			server.WithToolCapabilities(true),
			server.WithPromptCapabilities(true),
		),
		bridge: bridge,
	}
	s.registerSceneTools()
	s.registerObjectTools()
	s.registerPrompts()
	return s
}

// Run serves MCP over stdin/stdout until ctx is done or stdin closes.
func (s *MCPServer) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

func (s *MCPServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	slog.Info("Started stdio MCP server")
	defer func() {
		slog.Info("Shut down stdio MCP server")
	}()
	return server.NewStdioServer(s.Server).Listen(ctx, in, out)
}
