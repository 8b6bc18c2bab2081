package loop

import (
	"context"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/loopdash/internal/markdown"
)

func registerRenderMarkdown(s *server.MCPServer, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("render_markdown",
			mcp.WithDescription(
				"Render markdown to safe HTML using the dashboard renderer. Supports headings, "+
					"paragraphs, bullet lists, task checkboxes, fenced code, pipe tables, links, "+
					"inline code, bold and italic. All input text is escaped."),
			mcp.WithString("markdown", mcp.Required(), mcp.Description("Markdown source text")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			// Empty input is valid and renders to nothing.
			src, ok := args["markdown"].(string)
			if !ok {
				return nil, errMissing("markdown")
			}
			html := markdown.Render(src)
			logger.Printf("render_markdown: %d bytes -> %d bytes", len(src), len(html))
			return mcp.NewToolResultText(html), nil
		},
	)
}
