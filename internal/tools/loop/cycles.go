package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/loopdash/internal/history"
	"github.com/jaakkos/loopdash/internal/status"
)

func registerListCycles(s *server.MCPServer, reader *status.Reader, store *history.Store, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("list_cycles",
			mcp.WithDescription(
				"List per-cycle loop logs, newest first. With the history index enabled, cycles "+
					"whose log files were rotated away are included."),
			mcp.WithString("engine", mcp.Description("Only list cycles of this engine (e.g. qwen, opencode, codex)")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of cycles (default: 20, max: 200)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			engine := optionalString(args, "engine")
			limit := limitArg(args, "limit", 20, 200)

			var out any
			count := 0
			if store != nil {
				entries, err := store.List(engine, limit)
				if err != nil {
					return nil, fmt.Errorf("list indexed cycles: %w", err)
				}
				out, count = entries, len(entries)
			} else {
				cycles, err := reader.Cycles(engine)
				if err != nil {
					return nil, fmt.Errorf("list cycles: %w", err)
				}
				if len(cycles) > limit {
					cycles = cycles[:limit]
				}
				out, count = cycles, len(cycles)
			}

			if count == 0 {
				return mcp.NewToolResultText("No cycle logs found"), nil
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshal cycles: %w", err)
			}
			logger.Printf("list_cycles: engine=%q returned %d", engine, count)
			return mcp.NewToolResultText(string(data)), nil
		},
	)
}

func registerReadCycle(s *server.MCPServer, reader *status.Reader, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("read_cycle",
			mcp.WithDescription("Read the full log of one cycle by file name (as returned by list_cycles)."),
			mcp.WithString("filename", mcp.Required(), mcp.Description("Cycle log file name, e.g. cycle-qwen-12-20250101-120000.log")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, err := requireString(req.GetArguments(), "filename")
			if err != nil {
				return nil, err
			}
			content, err := reader.ReadCycle(name)
			if err != nil {
				return nil, err
			}
			logger.Printf("read_cycle: %s", name)
			return mcp.NewToolResultText(content), nil
		},
	)
}

func registerSearchCycles(s *server.MCPServer, store *history.Store, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("search_cycles",
			mcp.WithDescription(
				"Full-text search over past cycle logs. Returns ranked matches with snippets; "+
					"matched terms are wrapped in **."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search terms, e.g. 'deploy timeout'")),
			mcp.WithString("engine", mcp.Description("Only search cycles of this engine")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default: 10, max: 50)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			query, err := requireString(args, "query")
			if err != nil {
				return nil, err
			}
			engine := optionalString(args, "engine")

			results, err := store.Search(query, engine, limitArg(args, "limit", 10, 50))
			if err != nil {
				logger.Printf("search_cycles error: %v", err)
				return nil, fmt.Errorf("cycle search failed: %w", err)
			}
			if len(results) == 0 {
				return mcp.NewToolResultText("No results found for: " + query), nil
			}

			data, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshal results: %w", err)
			}
			logger.Printf("search_cycles: %q returned %d results", query, len(results))
			return mcp.NewToolResultText(string(data)), nil
		},
	)
}
