// Package policy holds the dashboard configuration and the guards applied to
// paths and credentials supplied by HTTP and MCP clients.
package policy

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidPath is returned for absolute paths and paths with ".." segments.
	ErrInvalidPath = errors.New("invalid path")
	// ErrOutsideRoot is returned when a path resolves outside the repo root.
	ErrOutsideRoot = errors.New("path is outside repo root")
	// ErrNotBrowsable is returned when a path is not inside one of the browse dirs.
	ErrNotBrowsable = errors.New("path is outside the browsable directories")
)

// EngineConfig describes where one loop engine keeps its files, relative to the repo root.
type EngineConfig struct {
	Name      string `yaml:"name"`       // e.g. "qwen", "opencode", "codex"
	PIDFile   string `yaml:"pid_file"`   // e.g. ".auto-loop-qwen.pid"
	StateFile string `yaml:"state_file"` // KEY=VALUE state file
	LogFile   string `yaml:"log_file"`   // plain text loop log
	JSONLFile string `yaml:"jsonl_file"` // structured log, one JSON object per line
	CycleGlob string `yaml:"cycle_glob"` // cycle log pattern inside logs/
	// Fallback names an engine whose log files are used when this engine has none yet.
	Fallback string `yaml:"fallback,omitempty"`
}

// HistoryConfig controls the SQLite cycle-log index.
type HistoryConfig struct {
	Enabled             bool   `yaml:"enabled"`
	DBPath              string `yaml:"db_path"`               // default <repo_root>/.loopdash/history.sqlite
	Watch               bool   `yaml:"watch"`                 // follow logs/ with fsnotify
	SyncIntervalSeconds int    `yaml:"sync_interval_seconds"` // full rescan interval (default 300)
}

// AuthConfig configures the optional dashboard token.
type AuthConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}

// Config holds dashboard configuration.
type Config struct {
	RepoRoot string `yaml:"repo_root"`
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`
	LogFile  string `yaml:"log_file"`

	BrowseDirs        []string `yaml:"browse_dirs"`
	LogsDir           string   `yaml:"logs_dir"`
	ConsensusFile     string   `yaml:"consensus_file"`
	ConsensusMaxChars int      `yaml:"consensus_max_chars"`
	ProgressFile      string   `yaml:"progress_file"`
	ActivitiesFile    string   `yaml:"activities_file"`
	StopFlag          string   `yaml:"stop_flag"`
	PauseFlag         string   `yaml:"pause_flag"`

	Engines []EngineConfig `yaml:"engines"`
	History *HistoryConfig `yaml:"history"`
	Auth    *AuthConfig    `yaml:"auth"`
}

// DefaultConfig returns the layout written by the auto-loop scripts.
func DefaultConfig() *Config {
	return &Config{
		Host:              "0.0.0.0",
		HTTPPort:          8787,
		BrowseDirs:        []string{"docs", "projects", "logs"},
		LogsDir:           "logs",
		ConsensusFile:     "memories/consensus.md",
		ConsensusMaxChars: 5000,
		ProgressFile:      ".progress.json",
		ActivitiesFile:    "logs/activities.jsonl",
		StopFlag:          ".auto-loop-stop",
		PauseFlag:         ".auto-loop-paused",
		Engines:           DefaultEngines(),
		History: &HistoryConfig{
			Enabled:             true,
			Watch:               true,
			SyncIntervalSeconds: 300,
		},
	}
}

// DefaultEngines returns the engines in resolution order.
func DefaultEngines() []EngineConfig {
	return []EngineConfig{
		{
			Name:      "qwen",
			PIDFile:   ".auto-loop-qwen.pid",
			StateFile: ".auto-loop-qwen-state",
			LogFile:   "logs/auto-loop-qwen.log",
			JSONLFile: "logs/auto-loop-qwen.jsonl",
			CycleGlob: "cycle-qwen-*.log",
		},
		{
			Name:      "opencode",
			PIDFile:   ".auto-loop-opencode.pid",
			StateFile: ".auto-loop-opencode-state",
			LogFile:   "logs/auto-loop-opencode.log",
			JSONLFile: "logs/auto-loop-opencode.jsonl",
			CycleGlob: "cycle-opencode-*.log",
			Fallback:  "codex",
		},
		{
			Name:      "codex",
			PIDFile:   ".auto-loop.pid",
			StateFile: ".auto-loop-state",
			LogFile:   "logs/auto-loop.log",
			JSONLFile: "logs/auto-loop.jsonl",
			CycleGlob: "cycle-*.log",
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Engines) == 0 {
		cfg.Engines = DefaultEngines()
	}
	if cfg.ConsensusMaxChars <= 0 {
		cfg.ConsensusMaxChars = 5000
	}
	if cfg.LogsDir == "" {
		cfg.LogsDir = "logs"
	}
	return cfg, nil
}

// Policy gives read access to the configuration and validates client input.
type Policy struct {
	config *Config
	mu     sync.RWMutex
}

// New creates a policy for cfg.
func New(cfg *Config) *Policy {
	return &Policy{config: cfg}
}

// RepoRoot returns the absolute loop repository root.
func (p *Policy) RepoRoot() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.RepoRoot
}

// Addr returns the HTTP listen address.
func (p *Policy) Addr() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return net.JoinHostPort(p.config.Host, strconv.Itoa(p.config.HTTPPort))
}

// Resolve joins a configured relative path onto the repo root.
// Absolute paths are returned unchanged.
func (p *Policy) Resolve(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.RepoRoot(), rel)
}

// ValidatePath checks a client supplied relative path and returns its
// absolute form inside the repo root.
func (p *Policy) ValidatePath(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", fmt.Errorf("%w: %s is absolute", ErrInvalidPath, rel)
	}
	for _, seg := range strings.FieldsFunc(rel, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s", ErrInvalidPath, rel)
		}
	}

	root := p.RepoRoot()
	absPath, err := filepath.Abs(filepath.Join(root, rel))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	relPath, err := filepath.Rel(root, absPath)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return absPath, nil
}

// ValidateBrowsePath is ValidatePath restricted to the browse dirs: the first
// segment of the cleaned path must name one of them.
func (p *Policy) ValidateBrowsePath(rel string) (string, error) {
	absPath, err := p.ValidatePath(rel)
	if err != nil {
		return "", err
	}
	relPath, err := filepath.Rel(p.RepoRoot(), absPath)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	top, _, _ := strings.Cut(filepath.ToSlash(relPath), "/")
	if !p.IsBrowseDir(top) {
		return "", fmt.Errorf("%w: %s", ErrNotBrowsable, rel)
	}
	return absPath, nil
}

// BrowseDirs returns the top-level directories the file browser may list.
func (p *Policy) BrowseDirs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.config.BrowseDirs...)
}

// IsBrowseDir reports whether name is one of the browsable directories.
func (p *Policy) IsBrowseDir(name string) bool {
	for _, d := range p.BrowseDirs() {
		if d == name {
			return true
		}
	}
	return false
}

// Engines returns the configured engines in resolution order.
func (p *Policy) Engines() []EngineConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]EngineConfig(nil), p.config.Engines...)
}

// Engine returns the engine named name.
func (p *Policy) Engine(name string) (EngineConfig, bool) {
	for _, e := range p.Engines() {
		if e.Name == name {
			return e, true
		}
	}
	return EngineConfig{}, false
}

// LogsDir returns the absolute logs directory.
func (p *Policy) LogsDir() string {
	p.mu.RLock()
	dir := p.config.LogsDir
	p.mu.RUnlock()
	return p.Resolve(dir)
}

// ConsensusFile returns the absolute consensus file path.
func (p *Policy) ConsensusFile() string {
	p.mu.RLock()
	f := p.config.ConsensusFile
	p.mu.RUnlock()
	return p.Resolve(f)
}

// ConsensusMaxChars returns how many characters of consensus the status snapshot carries.
func (p *Policy) ConsensusMaxChars() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.ConsensusMaxChars
}

// ProgressFile returns the absolute progress JSON path.
func (p *Policy) ProgressFile() string {
	p.mu.RLock()
	f := p.config.ProgressFile
	p.mu.RUnlock()
	return p.Resolve(f)
}

// ActivitiesFile returns the absolute activities JSONL path.
func (p *Policy) ActivitiesFile() string {
	p.mu.RLock()
	f := p.config.ActivitiesFile
	p.mu.RUnlock()
	return p.Resolve(f)
}

// StopFlag returns the absolute stop flag path.
func (p *Policy) StopFlag() string {
	p.mu.RLock()
	f := p.config.StopFlag
	p.mu.RUnlock()
	return p.Resolve(f)
}

// PauseFlag returns the absolute pause flag path.
func (p *Policy) PauseFlag() string {
	p.mu.RLock()
	f := p.config.PauseFlag
	p.mu.RUnlock()
	return p.Resolve(f)
}

// LogFile returns the server log file path.
// If unset, defaults to <repo_root>/logs/loopdash.log.
// Set to "none" or "off" to disable file logging entirely.
func (p *Policy) LogFile() string {
	p.mu.RLock()
	lf := p.config.LogFile
	p.mu.RUnlock()

	if lf == "" {
		return filepath.Join(p.LogsDir(), "loopdash.log")
	}
	return lf
}

// HistoryConfig returns the history index configuration.
// Returns nil if not configured (feature disabled).
func (p *Policy) HistoryConfig() *HistoryConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config.History
}

// HistoryDBPath returns the SQLite path for the cycle history index.
func (p *Policy) HistoryDBPath() string {
	if h := p.HistoryConfig(); h != nil && h.DBPath != "" {
		return p.Resolve(h.DBPath)
	}
	return filepath.Join(p.RepoRoot(), ".loopdash", "history.sqlite")
}

// TokenFilePath returns where the dashboard token file lives.
func (p *Policy) TokenFilePath() string {
	p.mu.RLock()
	auth := p.config.Auth
	p.mu.RUnlock()
	if auth != nil && auth.TokenFile != "" {
		return p.Resolve(auth.TokenFile)
	}
	return filepath.Join(p.RepoRoot(), ".dashboard-token")
}

// Token returns the dashboard token, or "" when authentication is disabled.
// Priority: DASHBOARD_TOKEN, DASHBOARD_TOKEN_FILE, auth.token, then the token file.
func (p *Policy) Token() string {
	if tok := strings.TrimSpace(os.Getenv("DASHBOARD_TOKEN")); tok != "" {
		return tok
	}
	if path := os.Getenv("DASHBOARD_TOKEN_FILE"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if tok := strings.TrimSpace(string(data)); tok != "" {
				return tok
			}
		}
	}
	p.mu.RLock()
	auth := p.config.Auth
	p.mu.RUnlock()
	if auth != nil && strings.TrimSpace(auth.Token) != "" {
		return strings.TrimSpace(auth.Token)
	}
	if data, err := os.ReadFile(p.TokenFilePath()); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}

// AuthEnabled reports whether a dashboard token is configured.
func (p *Policy) AuthEnabled() bool {
	return p.Token() != ""
}
