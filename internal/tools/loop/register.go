// Package loop exposes the loop dashboard over MCP: markdown rendering,
// loop status, cycle history and file previews as tools, and the consensus
// notes and cycle logs as resources.
package loop

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/loopdash/internal/history"
	"github.com/jaakkos/loopdash/internal/status"
)

// RegisterOption configures optional dependencies for tool registration.
type RegisterOption func(*registerOpts)

type registerOpts struct {
	history *history.Store
}

// WithHistory enables the search_cycles tool and indexed listings.
func WithHistory(store *history.Store) RegisterOption {
	return func(o *registerOpts) { o.history = store }
}

// Register registers the loop tools and resources with the mcp-go server.
func Register(s *server.MCPServer, reader *status.Reader, logger *log.Logger, opts ...RegisterOption) {
	var o registerOpts
	for _, opt := range opts {
		opt(&o)
	}

	registerRenderMarkdown(s, logger)
	registerLoopStatus(s, reader, logger)
	registerPreviewFile(s, reader, logger)
	registerListCycles(s, reader, o.history, logger)
	registerReadCycle(s, reader, logger)
	if o.history != nil {
		registerSearchCycles(s, o.history, logger)
	}

	registerResources(s, reader, logger)
}
