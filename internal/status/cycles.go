package status

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jaakkos/loopdash/internal/policy"
)

var cycleNumberRe = regexp.MustCompile(`cycle-\w*-(\d+)-`)

// CycleFile describes one per-cycle log file.
type CycleFile struct {
	Filename string `json:"filename"`
	Path     string `json:"path"` // relative to the repo root
	Cycle    int    `json:"cycle"`
	Engine   string `json:"engine"`
	Size     int64  `json:"size"`
	Mtime    string `json:"mtime"`
}

// CycleNumber extracts N from names like cycle-qwen-N-20250101.log.
// Returns 0 when the name carries no number.
func CycleNumber(name string) int {
	m := cycleNumberRe.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// CycleEngine returns the first engine (in configured order) whose cycle
// glob matches name, or "" when none does.
func (r *Reader) CycleEngine(name string) string {
	for _, e := range r.pol.Engines() {
		if e.CycleGlob == "" {
			continue
		}
		if ok, _ := filepath.Match(e.CycleGlob, name); ok {
			return e.Name
		}
	}
	return ""
}

// Cycles lists cycle logs, newest first. With engine set, only that engine's
// glob is consulted.
func (r *Reader) Cycles(engine string) ([]CycleFile, error) {
	logsDir := r.pol.LogsDir()
	if _, err := os.Stat(logsDir); err != nil {
		return []CycleFile{}, nil
	}

	var globs []string
	for _, e := range r.pol.Engines() {
		if e.CycleGlob == "" || (engine != "" && e.Name != engine) {
			continue
		}
		globs = append(globs, e.CycleGlob)
	}

	seen := map[string]bool{}
	cycles := []CycleFile{}
	for _, g := range globs {
		matches, err := filepath.Glob(filepath.Join(logsDir, g))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", g, err)
		}
		for _, path := range matches {
			name := filepath.Base(path)
			if seen[name] {
				continue
			}
			seen[name] = true

			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(r.pol.RepoRoot(), path)
			if err != nil {
				rel = path
			}
			cycles = append(cycles, CycleFile{
				Filename: name,
				Path:     filepath.ToSlash(rel),
				Cycle:    CycleNumber(name),
				Engine:   r.CycleEngine(name),
				Size:     info.Size(),
				Mtime:    info.ModTime().UTC().Format(time.RFC3339),
			})
		}
	}

	sort.SliceStable(cycles, func(i, j int) bool { return cycles[i].Mtime > cycles[j].Mtime })
	return cycles, nil
}

// ReadCycle returns the content of a cycle log by file name.
func (r *Reader) ReadCycle(filename string) (string, error) {
	if filename == "" || strings.ContainsAny(filename, `/\`) || filename == "." || filename == ".." {
		return "", fmt.Errorf("%w: cycle log name %q", policy.ErrInvalidPath, filename)
	}
	path := filepath.Join(r.pol.LogsDir(), filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("cycle log %s: %w", filename, ErrNotFound)
	}
	return ReadText(path, ""), nil
}
