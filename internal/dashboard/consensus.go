package dashboard

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jaakkos/loopdash/internal/markdown"
	"github.com/jaakkos/loopdash/internal/status"
)

// consensusCache holds the consensus notes and their rendered HTML.
// Entries are only kept while a watcher can invalidate them.
type consensusCache struct {
	path     string
	mu       sync.Mutex
	watching bool
	valid    bool
	content  string
	html     string
}

func newConsensusCache(path string) *consensusCache {
	return &consensusCache{path: filepath.Clean(path)}
}

func (c *consensusCache) get() (content, html string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid {
		return c.content, c.html
	}
	content = status.ReadText(c.path, "")
	html = markdown.Render(content)
	if c.watching {
		c.content, c.html, c.valid = content, html, true
	}
	return content, html
}

func (c *consensusCache) invalidate() {
	c.mu.Lock()
	c.valid = false
	c.content, c.html = "", ""
	c.mu.Unlock()
}

func (c *consensusCache) setWatching(on bool) {
	c.mu.Lock()
	c.watching = on
	if !on {
		c.valid = false
	}
	c.mu.Unlock()
}

// WatchConsensus caches the rendered consensus notes and drops the cache
// whenever the file changes. It returns once the watcher is running; the
// watcher stops with ctx.
func (h *Handler) WatchConsensus(ctx context.Context) error {
	c := h.consensus
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	c.setWatching(true)

	go func() {
		defer func() {
			c.setWatching(false)
			w.Close()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) == c.path {
					c.invalidate()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				h.logger.Printf("Dashboard: consensus watcher error: %v", err)
				c.invalidate()
			}
		}
	}()
	return nil
}
