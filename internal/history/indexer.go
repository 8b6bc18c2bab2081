package history

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jaakkos/loopdash/internal/status"
)

const debounceWindow = 2 * time.Second

// IndexerConfig controls how the logs directory is followed.
type IndexerConfig struct {
	WatchEnabled bool
	SyncInterval time.Duration // periodic full rescan (default 5m)
}

// Indexer keeps the store in sync with the cycle logs on disk: a full scan
// at start, fsnotify events while running and a periodic rescan to catch
// anything the watcher missed.
type Indexer struct {
	store   *Store
	reader  *status.Reader
	config  IndexerConfig
	logger  *log.Logger
	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewIndexer creates an Indexer reading cycle logs through reader.
func NewIndexer(store *Store, reader *status.Reader, config IndexerConfig, logger *log.Logger) *Indexer {
	return &Indexer{
		store:   store,
		reader:  reader,
		config:  config,
		logger:  logger,
		pending: make(map[string]*time.Timer),
	}
}

// Start performs a full scan, then watches the logs directory.
// Blocks until ctx is cancelled.
func (idx *Indexer) Start(ctx context.Context) {
	idx.logger.Println("History indexer: starting full scan...")
	start := time.Now()
	indexed, removed := idx.FullScan()
	idx.logger.Printf("History indexer: full scan done in %s (indexed=%d, removed=%d)", time.Since(start).Round(time.Millisecond), indexed, removed)

	if idx.config.WatchEnabled {
		if err := idx.startWatcher(ctx); err != nil {
			idx.logger.Printf("History indexer: file watcher failed: %v (periodic rescan only)", err)
		}
	}

	interval := idx.config.SyncInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			idx.stopWatcher()
			idx.logger.Println("History indexer: stopped")
			return
		case <-ticker.C:
			if indexed, removed := idx.FullScan(); indexed+removed > 0 {
				idx.logger.Printf("History indexer: resync (indexed=%d, removed=%d)", indexed, removed)
			}
		}
	}
}

// RunOnce performs a one-shot full scan without watching.
func (idx *Indexer) RunOnce() (indexed, removed int) {
	return idx.FullScan()
}

// FullScan indexes new and changed cycle logs and drops vanished ones.
func (idx *Indexer) FullScan() (indexed, removed int) {
	existingNames, err := idx.store.Filenames()
	if err != nil {
		idx.logger.Printf("History indexer: list indexed: %v", err)
	}

	cycles, err := idx.reader.Cycles("")
	if err != nil {
		idx.logger.Printf("History indexer: list cycles: %v", err)
		return 0, 0
	}

	seen := make(map[string]bool, len(cycles))
	for _, cf := range cycles {
		seen[cf.Filename] = true
		changed, err := idx.indexCycle(cf)
		if err != nil {
			idx.logger.Printf("History indexer: index error %s: %v", cf.Filename, err)
			continue
		}
		if changed {
			indexed++
		}
	}

	for _, name := range existingNames {
		if seen[name] {
			continue
		}
		if err := idx.store.Remove(name); err != nil {
			idx.logger.Printf("History indexer: remove error %s: %v", name, err)
			continue
		}
		removed++
	}
	return indexed, removed
}

func (idx *Indexer) indexCycle(cf status.CycleFile) (bool, error) {
	content, err := idx.reader.ReadCycle(cf.Filename)
	if err != nil {
		return false, err
	}
	return idx.store.IndexIfChanged(Record{
		Filename: cf.Filename,
		Engine:   cf.Engine,
		Cycle:    cf.Cycle,
		Size:     cf.Size,
		Mtime:    cf.Mtime,
		Content:  content,
	})
}

// indexFile re-indexes a single cycle log by name after a write event.
func (idx *Indexer) indexFile(path string) (bool, error) {
	name := filepath.Base(path)
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	return idx.indexCycle(status.CycleFile{
		Filename: name,
		Engine:   idx.reader.CycleEngine(name),
		Cycle:    status.CycleNumber(name),
		Size:     info.Size(),
		Mtime:    info.ModTime().UTC().Format(time.RFC3339),
	})
}

func (idx *Indexer) startWatcher(ctx context.Context) error {
	logsDir := idx.reader.Policy().LogsDir()
	if info, err := os.Stat(logsDir); err != nil || !info.IsDir() {
		return fmt.Errorf("logs directory %s does not exist", logsDir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(logsDir); err != nil {
		w.Close()
		return err
	}
	idx.watcher = w

	go idx.watchLoop(ctx)
	return nil
}

// watchLoop processes fsnotify events. Writes are debounced per file.
func (idx *Indexer) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-idx.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			name := filepath.Base(event.Name)
			if idx.reader.CycleEngine(name) == "" {
				continue
			}

			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				idx.cancelPending(name)
				if err := idx.store.Remove(name); err != nil {
					idx.logger.Printf("History indexer: remove on delete %s: %v", name, err)
				}
				continue
			}

			idx.schedule(event.Name)

		case err, ok := <-idx.watcher.Errors:
			if !ok {
				return
			}
			idx.logger.Printf("History indexer: watcher error: %v", err)
		}
	}
}

// schedule indexes path once no further events arrived for debounceWindow.
func (idx *Indexer) schedule(path string) {
	name := filepath.Base(path)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if t, ok := idx.pending[name]; ok {
		t.Reset(debounceWindow)
		return
	}
	idx.pending[name] = time.AfterFunc(debounceWindow, func() {
		idx.mu.Lock()
		delete(idx.pending, name)
		idx.mu.Unlock()

		if changed, err := idx.indexFile(path); err != nil {
			idx.logger.Printf("History indexer: re-index %s: %v", name, err)
		} else if changed {
			idx.logger.Printf("History indexer: re-indexed %s", name)
		}
	})
}

func (idx *Indexer) cancelPending(name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if t, ok := idx.pending[name]; ok {
		t.Stop()
		delete(idx.pending, name)
	}
}

func (idx *Indexer) stopWatcher() {
	idx.mu.Lock()
	for name, t := range idx.pending {
		t.Stop()
		delete(idx.pending, name)
	}
	idx.mu.Unlock()
	if idx.watcher != nil {
		idx.watcher.Close()
	}
}
