package loop

import (
	"context"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/loopdash/internal/markdown"
	"github.com/jaakkos/loopdash/internal/status"
)

const (
	consensusURI     = "loopdash://consensus"
	consensusHTMLURI = "loopdash://consensus.html"
	cyclePrefix      = "loopdash://cycles/"
)

// registerResources exposes the consensus notes (raw and rendered) and
// individual cycle logs as MCP resources.
func registerResources(s *server.MCPServer, reader *status.Reader, logger *log.Logger) {
	s.AddResource(
		mcp.NewResource(
			consensusURI,
			"Consensus notes",
			mcp.WithResourceDescription("The loop's shared consensus notes as written by the agents."),
			mcp.WithMIMEType("text/markdown"),
		),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			logger.Println("Resource read: consensus")
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      req.Params.URI,
					MIMEType: "text/markdown",
					Text:     reader.Consensus(""),
				},
			}, nil
		},
	)

	s.AddResource(
		mcp.NewResource(
			consensusHTMLURI,
			"Consensus notes (HTML)",
			mcp.WithResourceDescription("The consensus notes rendered to HTML."),
			mcp.WithMIMEType("text/html"),
		),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			logger.Println("Resource read: consensus.html")
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      req.Params.URI,
					MIMEType: "text/html",
					Text:     markdown.Render(reader.Consensus("")),
				},
			}, nil
		},
	)

	s.AddResourceTemplate(
		mcp.NewResourceTemplate(
			cyclePrefix+"{filename}",
			"Cycle log",
			mcp.WithTemplateDescription("Full log of one loop cycle."),
			mcp.WithTemplateMIMEType("text/plain"),
		),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			name := strings.TrimPrefix(req.Params.URI, cyclePrefix)
			logger.Printf("Resource template read: cycles/%s", name)
			content, err := reader.ReadCycle(name)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      req.Params.URI,
					MIMEType: "text/plain",
					Text:     content,
				},
			}, nil
		},
	)
}
