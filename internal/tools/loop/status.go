package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/loopdash/internal/markdown"
	"github.com/jaakkos/loopdash/internal/status"
)

// loopStatus is the loop_status payload. Raw activities are left out to
// keep the result small; per-agent stats summarize them.
type loopStatus struct {
	Timestamp  string                       `json:"timestamp"`
	Engine     status.EngineInfo            `json:"engine"`
	Loop       status.LoopInfo              `json:"loop"`
	Progress   map[string]any               `json:"progress"`
	Consensus  string                       `json:"consensus"`
	AgentStats map[string]*status.AgentStat `json:"agentStats"`
	LogStats   status.LogStats              `json:"logStats"`
	Flags      status.Flags                 `json:"flags"`
}

func registerLoopStatus(s *server.MCPServer, reader *status.Reader, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("loop_status",
			mcp.WithDescription(
				"Get the current state of the autonomous agent loop: active engine, running state, "+
					"cycle and error counts, stop/pause flags, consensus notes, per-agent activity "+
					"and structured log statistics."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			snap := reader.Gather()
			out := loopStatus{
				Timestamp:  snap.Timestamp,
				Engine:     snap.Engine,
				Loop:       snap.Loop,
				Progress:   snap.Progress,
				Consensus:  snap.Consensus,
				AgentStats: snap.AgentStats,
				LogStats:   snap.LogStats,
				Flags:      snap.Flags,
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshal status: %w", err)
			}
			logger.Printf("loop_status: engine=%s state=%s", snap.Engine.Active, snap.Loop.State)
			return mcp.NewToolResultText(string(data)), nil
		},
	)
}

// filePreview is the preview_file payload.
type filePreview struct {
	*status.FileContent
	HTML string `json:"html,omitempty"`
}

func registerPreviewFile(s *server.MCPServer, reader *status.Reader, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("preview_file",
			mcp.WithDescription(
				"Read a file under the loop repository (docs, projects, logs, ...). Markdown files "+
					"are also returned rendered to HTML. Paths are relative to the repo root; "+
					"absolute paths and '..' are rejected."),
			mcp.WithString("path", mcp.Required(), mcp.Description("File path relative to the repo root, e.g. docs/plan.md")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			path, err := requireString(req.GetArguments(), "path")
			if err != nil {
				return nil, err
			}
			fc, err := reader.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("preview %s: %w", path, err)
			}
			out := filePreview{FileContent: fc}
			if fc.Type == "markdown" {
				out.HTML = markdown.Render(fc.Content)
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshal file: %w", err)
			}
			logger.Printf("preview_file: %s (%s, %d bytes)", fc.Path, fc.Type, fc.Size)
			return mcp.NewToolResultText(string(data)), nil
		},
	)
}
