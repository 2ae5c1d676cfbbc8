// Package mcp exposes the call gate as Model Context Protocol tools, so an assistant can
// inspect progress and drive calls while a writer playtests.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/callgate"
	"github.com/aretw0/callgate/internal/compiler"
	"github.com/aretw0/callgate/internal/presentation/graph"
	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Driver runs functions on the engine goroutine. *runner.Runner implements it.
type Driver interface {
	Do(ctx context.Context, fn runner.Func) error
}

// Server wraps a driven engine and exposes it as an MCP Server.
type Server struct {
	driver    Driver
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(driver Driver) *Server {
	s := &Server{
		driver:    driver,
		mcpServer: server.NewMCPServer("callgate-mcp", strings.TrimSpace(callgate.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for in-process clients.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_status",
		mcp.WithDescription("Show every stage, which condition groups hold, and the call in progress."),
	), s.handleStatus)

	s.mcpServer.AddTool(mcp.NewTool("get_flags",
		mcp.WithDescription("List every flag of the save."),
	), s.handleGetFlags)

	s.mcpServer.AddTool(mcp.NewTool("set_flag",
		mcp.WithDescription("Write a flag and re-evaluate the stages. Values true/false become booleans; anything else is a string."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Flag key, e.g. app.chat.unlocked")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Flag value")),
	), s.handleSetFlag)

	s.mcpServer.AddTool(mcp.NewTool("trigger_stage",
		mcp.WithDescription("Place a stage's call regardless of its conditions. It still waits for the desktop to go idle."),
		mcp.WithNumber("stage", mcp.Required(), mcp.Description("Stage ordinal (1 or 2)")),
	), s.handleTrigger)

	s.mcpServer.AddTool(mcp.NewTool("send_signal",
		mcp.WithDescription("Send a player signal to the call in progress."),
		mcp.WithString("signal", mcp.Required(), mcp.Enum("continue", "media_finished", "hang_up", "reset"), mcp.Description("Signal name")),
		mcp.WithString("node_id", mcp.Description("Node whose media finished (media_finished only)")),
	), s.handleSignal)

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get a dialogue graph as an authoring document or a Mermaid flowchart."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Graph id, e.g. bugcall.stage1")),
		mcp.WithString("format", mcp.Enum("json", "mermaid"), mcp.Description("Output format (default json)")),
	), s.handleGetGraph)
}

func (s *Server) do(ctx context.Context, fn runner.Func) *mcp.CallToolResult {
	if err := s.driver.Do(ctx, fn); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var st callgate.Status
	if res := s.do(ctx, func(ctx context.Context, e *callgate.Engine) error {
		st = e.Status(ctx)
		return nil
	}); res != nil {
		return res, nil
	}
	return jsonResult(st)
}

func (s *Server) handleGetFlags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var snap domain.Snapshot
	if res := s.do(ctx, func(ctx context.Context, e *callgate.Engine) (err error) {
		snap, err = e.Store().Snapshot(ctx)
		return err
	}); res != nil {
		return res, nil
	}
	return jsonResult(snap)
}

func (s *Server) handleSetFlag(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := request.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	clean, err := runner.SanitizeLine(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("value rejected: %v", err)), nil
	}

	v := domain.ParseValue(clean)
	if res := s.do(ctx, func(ctx context.Context, e *callgate.Engine) error {
		if err := e.Store().Set(ctx, key, v); err != nil {
			return err
		}
		e.Recheck(ctx)
		return nil
	}); res != nil {
		return res, nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s = %s", key, v)), nil
}

func (s *Server) handleTrigger(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := request.RequireInt("stage")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if res := s.do(ctx, func(ctx context.Context, e *callgate.Engine) error {
		return e.RequestCallStage(ctx, n)
	}); res != nil {
		return res, nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("stage %d requested", n)), nil
}

func (s *Server) handleSignal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	signal, err := request.RequireString("signal")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nodeID := request.GetString("node_id", "")

	var fn runner.Func
	switch signal {
	case "continue":
		fn = func(ctx context.Context, e *callgate.Engine) error { return e.Continue(ctx) }
	case "media_finished":
		fn = func(ctx context.Context, e *callgate.Engine) error {
			node := nodeID
			if node == "" {
				if run := e.Status(ctx).Run; run != nil {
					node = run.NodeID
				}
			}
			return e.MediaFinished(ctx, node)
		}
	case "hang_up":
		fn = func(ctx context.Context, e *callgate.Engine) error { return e.HangUp(ctx) }
	case "reset":
		fn = func(ctx context.Context, e *callgate.Engine) error {
			e.Reset(ctx)
			return nil
		}
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown signal %q", signal)), nil
	}

	if res := s.do(ctx, fn); res != nil {
		return res, nil
	}
	return mcp.NewToolResultText("ok"), nil
}

func (s *Server) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var (
		g       *domain.Graph
		current string
	)
	if res := s.do(ctx, func(ctx context.Context, e *callgate.Engine) (err error) {
		g, err = e.Graph(ctx, id)
		if run := e.Status(ctx).Run; run != nil && run.GraphID == id {
			current = run.NodeID
		}
		return err
	}); res != nil {
		return res, nil
	}

	if request.GetString("format", "json") == "mermaid" {
		return mcp.NewToolResultText(graph.GenerateMermaid(g, graph.OverlayFor(g, current))), nil
	}
	return jsonResult(compiler.Decompile(g))
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("callgate://status", "Call gate status",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		var st callgate.Status
		err := s.driver.Do(ctx, func(ctx context.Context, e *callgate.Engine) error {
			st = e.Status(ctx)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read status: %w", err)
		}
		data, err := json.Marshal(st)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "callgate://status",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
