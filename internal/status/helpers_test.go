package status

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaakkos/loopdash/internal/policy"
)

// newTestReader returns a reader rooted at a temp dir. No pid is alive
// unless listed in alive.
func newTestReader(t *testing.T, alive ...int) (*Reader, string) {
	t.Helper()
	root := t.TempDir()
	cfg := policy.DefaultConfig()
	cfg.RepoRoot = root
	r := NewReader(policy.New(cfg))
	r.running = func(pid int) bool {
		for _, p := range alive {
			if p == pid {
				return true
			}
		}
		return false
	}
	r.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return r, root
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}
