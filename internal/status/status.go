// Package status reads the on-disk state of the autonomous agent loop:
// engine pid and state files, progress, activities, structured logs,
// consensus notes, cycle logs and the browsable project directories.
package status

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jaakkos/loopdash/internal/policy"
)

var (
	// ErrNotFound is returned when a requested file or directory does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotDirectory is returned when a listing is requested for a file.
	ErrNotDirectory = errors.New("not a directory")
	// ErrIsDirectory is returned when file content is requested for a directory.
	ErrIsDirectory = errors.New("is a directory")
)

// EngineInfo reports the active engine and which engines have left files behind.
type EngineInfo struct {
	Active    string          `json:"active"`
	Available map[string]bool `json:"available"`
}

// LoopInfo describes the loop process of the active engine.
type LoopInfo struct {
	State         string `json:"state"` // "running" or "stopped"
	PID           int    `json:"pid,omitempty"`
	Running       bool   `json:"running"`
	StopRequested bool   `json:"stopRequested"`
	Paused        bool   `json:"paused"`
	LoopCount     string `json:"loopCount"`
	ErrorCount    string `json:"errorCount"`
	LastRun       string `json:"lastRun"`
	Model         string `json:"model"`
	Status        string `json:"status"`
}

// Flags mirrors the stop and pause flag files.
type Flags struct {
	Stop  bool `json:"stop"`
	Pause bool `json:"pause"`
}

// Snapshot is the full status payload polled by the dashboard.
type Snapshot struct {
	Timestamp  string                `json:"timestamp"`
	Engine     EngineInfo            `json:"engine"`
	Loop       LoopInfo              `json:"loop"`
	State      map[string]string     `json:"state"`
	Progress   map[string]any        `json:"progress"`
	Consensus  string                `json:"consensus"`
	Activities []Entry               `json:"activities"`
	AgentStats map[string]*AgentStat `json:"agentStats"`
	LogStats   LogStats              `json:"logStats"`
	Flags      Flags                 `json:"flags"`
}

// Reader gathers loop state from the files named by the policy.
type Reader struct {
	pol *policy.Policy
	// running reports whether pid is alive. Replaced in tests.
	running func(pid int) bool
	now     func() time.Time
}

// NewReader creates a Reader for pol.
func NewReader(pol *policy.Policy) *Reader {
	return &Reader{pol: pol, running: processRunning, now: time.Now}
}

// Policy returns the policy the reader resolves paths with.
func (r *Reader) Policy() *policy.Policy {
	return r.pol
}

type engineState struct {
	cfg     policy.EngineConfig
	pid     int
	running bool
	state   map[string]string
}

// Gather collects a full status snapshot.
func (r *Reader) Gather() Snapshot {
	engines := r.pol.Engines()
	states := make([]engineState, 0, len(engines))
	available := make(map[string]bool, len(engines))
	for _, e := range engines {
		es := engineState{cfg: e, state: ParseStateFile(r.pol.Resolve(e.StateFile))}
		if pid, ok := readPID(r.pol.Resolve(e.PIDFile)); ok {
			es.pid = pid
			es.running = r.running(pid)
		}
		available[e.Name] = fileExists(r.pol.Resolve(e.PIDFile)) || fileExists(r.pol.Resolve(e.StateFile))
		states = append(states, es)
	}

	active := r.pickActive(states)
	jsonlPath := r.logPath(active.cfg, func(e policy.EngineConfig) string { return e.JSONLFile })
	structured := ReadJSONL(jsonlPath, 500)
	activities := ReadJSONL(r.pol.ActivitiesFile(), 100)
	stop := fileExists(r.pol.StopFlag())
	pause := fileExists(r.pol.PauseFlag())

	loopState := "stopped"
	if active.running {
		loopState = "running"
	}

	return Snapshot{
		Timestamp: r.now().UTC().Format(time.RFC3339),
		Engine:    EngineInfo{Active: active.cfg.Name, Available: available},
		Loop: LoopInfo{
			State:         loopState,
			PID:           active.pid,
			Running:       active.running,
			StopRequested: stop,
			Paused:        pause,
			LoopCount:     valueOr(active.state, "LOOP_COUNT", "0"),
			ErrorCount:    valueOr(active.state, "ERROR_COUNT", "0"),
			LastRun:       valueOr(active.state, "LAST_RUN", ""),
			Model:         valueOr(active.state, "MODEL", "default"),
			Status:        valueOr(active.state, "STATUS", "unknown"),
		},
		State:      active.state,
		Progress:   ReadJSON(r.pol.ProgressFile()),
		Consensus:  truncateRunes(r.Consensus("(no consensus file)"), r.pol.ConsensusMaxChars()),
		Activities: activities,
		AgentStats: ComputeAgentStats(activities),
		LogStats:   ComputeLogStats(structured),
		Flags:      Flags{Stop: stop, Pause: pause},
	}
}

// pickActive returns the first running engine. With none running it prefers
// the engine recorded in a state file, then the first engine with any state.
func (r *Reader) pickActive(states []engineState) engineState {
	if len(states) == 0 {
		return engineState{state: map[string]string{}}
	}
	for _, es := range states {
		if es.running {
			return es
		}
	}

	active := states[0]
	for _, es := range states {
		if len(es.state) > 0 {
			active = es
			break
		}
	}
	for _, es := range states {
		name := es.state["ENGINE"]
		if name == "" {
			continue
		}
		for _, cand := range states {
			if cand.cfg.Name == name {
				active.cfg = cand.cfg
			}
		}
		break
	}
	if active.pid == 0 {
		for _, es := range states {
			if es.pid != 0 {
				active.pid = es.pid
				break
			}
		}
	}
	return active
}

// Consensus returns the full consensus notes, or fallback when absent.
func (r *Reader) Consensus(fallback string) string {
	return ReadText(r.pol.ConsensusFile(), fallback)
}

// Activities returns up to limit activities, newest first, with per-agent stats.
func (r *Reader) Activities(limit int) ([]Entry, map[string]*AgentStat) {
	acts := ReadJSONL(r.pol.ActivitiesFile(), limit)
	return acts, ComputeAgentStats(acts)
}

// LogTail returns the last lines of an engine's main log. An empty engine
// picks the first engine that has a log file.
func (r *Reader) LogTail(engine string, lines int) string {
	return ReadTail(r.enginePath(engine, func(e policy.EngineConfig) string { return e.LogFile }), lines)
}

// StructuredLogs returns up to limit structured log entries, newest first, and their stats.
func (r *Reader) StructuredLogs(engine string, limit int) ([]Entry, LogStats) {
	logs := ReadJSONL(r.enginePath(engine, func(e policy.EngineConfig) string { return e.JSONLFile }), limit)
	return logs, ComputeLogStats(logs)
}

func (r *Reader) enginePath(engine string, pick func(policy.EngineConfig) string) string {
	if engine != "" {
		if cfg, ok := r.pol.Engine(engine); ok {
			return r.logPath(cfg, pick)
		}
	}
	engines := r.pol.Engines()
	for _, e := range engines {
		if p := r.pol.Resolve(pick(e)); fileExists(p) {
			return p
		}
	}
	if len(engines) == 0 {
		return ""
	}
	return r.pol.Resolve(pick(engines[0]))
}

// logPath resolves an engine's log file, using its fallback engine's file
// when the engine has not written one yet.
func (r *Reader) logPath(cfg policy.EngineConfig, pick func(policy.EngineConfig) string) string {
	p := r.pol.Resolve(pick(cfg))
	if fileExists(p) || cfg.Fallback == "" {
		return p
	}
	if fb, ok := r.pol.Engine(cfg.Fallback); ok {
		if fp := r.pol.Resolve(pick(fb)); fileExists(fp) {
			return fp
		}
	}
	return p
}

func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func processRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func valueOr(m map[string]string, key, fallback string) string {
	if v := m[key]; v != "" {
		return v
	}
	return fallback
}
