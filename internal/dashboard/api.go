// Package dashboard serves the loop dashboard page and its JSON API.
// Free-text fields (consensus notes, markdown file previews, search
// snippets) are rendered to HTML server-side through the markdown package.
package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jaakkos/loopdash/internal/history"
	"github.com/jaakkos/loopdash/internal/markdown"
	"github.com/jaakkos/loopdash/internal/policy"
	"github.com/jaakkos/loopdash/internal/status"
)

const maxRenderBody = 1 << 20

// Handler holds dependencies for dashboard HTTP handlers.
type Handler struct {
	reader    *status.Reader
	pol       *policy.Policy
	history   *history.Store // nil when the history index is disabled
	logger    *log.Logger
	consensus *consensusCache
	now       func() time.Time
}

// HandlerOption configures optional dependencies for the dashboard handler.
type HandlerOption func(*Handler)

// WithHistory enables the cycle history endpoints.
func WithHistory(store *history.Store) HandlerOption {
	return func(h *Handler) { h.history = store }
}

// NewHandler creates a dashboard handler.
func NewHandler(reader *status.Reader, logger *log.Logger, opts ...HandlerOption) *Handler {
	pol := reader.Policy()
	h := &Handler{
		reader:    reader,
		pol:       pol,
		logger:    logger,
		consensus: newConsensusCache(pol.ConsensusFile()),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes adds dashboard routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/status", h.handleAuthStatus)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("GET /login", h.handleLoginPage)
	mux.HandleFunc("GET /login.html", h.handleLoginPage)
	mux.HandleFunc("GET /health", h.handleHealth)

	mux.Handle("GET /{$}", h.requirePage(h.handleDashboard))
	mux.Handle("GET /dashboard", h.requirePage(h.handleDashboard))

	api := map[string]http.HandlerFunc{
		"GET /api/status":            h.handleStatus,
		"GET /api/consensus":         h.handleConsensus,
		"GET /api/activities":        h.handleActivities,
		"GET /api/cycles":            h.handleCycles,
		"GET /api/cycle/{filename}":  h.handleCycle,
		"GET /api/log":               h.handleLog,
		"GET /api/logs/json":         h.handleStructuredLogs,
		"GET /api/files":             h.handleFiles,
		"GET /api/files/{sub...}":    h.handleFilesSub,
		"GET /api/file/{sub...}":     h.handleFile,
		"GET /api/download/{sub...}": h.handleDownload,
		"GET /api/history":           h.handleHistoryList,
		"GET /api/history/search":    h.handleHistorySearch,
		"POST /api/render":           h.handleRender,
		"POST /api/action/refresh":   h.handleRefresh,
		"GET /metrics":               h.handleMetrics,
	}
	for pattern, fn := range api {
		mux.Handle(pattern, h.requireAPI(fn))
	}
}

// statusResponse is the /api/status payload: the snapshot plus its
// consensus notes rendered to HTML.
type statusResponse struct {
	status.Snapshot
	ConsensusHTML string `json:"consensusHtml"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := h.reader.Gather()
	writeJSON(w, http.StatusOK, statusResponse{Snapshot: snap, ConsensusHTML: h.consensusHTML(snap.Consensus)})
}

// consensusHTML renders the (possibly truncated) consensus of a snapshot,
// reusing the cached rendering when the snapshot carries the whole file.
func (h *Handler) consensusHTML(text string) string {
	content, html := h.consensus.get()
	if content == text {
		return html
	}
	return markdown.Render(text)
}

func (h *Handler) handleConsensus(w http.ResponseWriter, r *http.Request) {
	content, html := h.consensus.get()
	writeJSON(w, http.StatusOK, h.stamp(map[string]any{
		"content": content,
		"html":    html,
	}))
}

func (h *Handler) handleActivities(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 100)
	acts, stats := h.reader.Activities(limit)
	writeJSON(w, http.StatusOK, h.stamp(map[string]any{
		"activities": acts,
		"agentStats": stats,
	}))
}

func (h *Handler) handleCycles(w http.ResponseWriter, r *http.Request) {
	engine := r.URL.Query().Get("engine")
	cycles, err := h.reader.Cycles(engine)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stamp(map[string]any{
		"engine": engine,
		"cycles": cycles,
		"total":  len(cycles),
	}))
}

func (h *Handler) handleCycle(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	content, err := h.reader.ReadCycle(filename)
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "Cycle log not found: " + filename})
			return
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stamp(map[string]any{
		"filename": filename,
		"content":  content,
	}))
}

func (h *Handler) handleLog(w http.ResponseWriter, r *http.Request) {
	lines := intParam(r, "lines", 200)
	engine := r.URL.Query().Get("engine")
	writeJSON(w, http.StatusOK, h.stamp(map[string]any{
		"lines":   lines,
		"logTail": h.reader.LogTail(engine, lines),
	}))
}

func (h *Handler) handleStructuredLogs(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 500)
	engine := r.URL.Query().Get("engine")
	logs, stats := h.reader.StructuredLogs(engine, limit)
	if engine == "" {
		if engines := h.pol.Engines(); len(engines) > 0 {
			engine = engines[0].Name
		}
	}
	writeJSON(w, http.StatusOK, h.stamp(map[string]any{
		"engine": engine,
		"logs":   logs,
		"stats":  stats,
	}))
}

func (h *Handler) handleFiles(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		dir = "docs"
	}
	if !h.pol.IsBrowseDir(dir) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": fmt.Sprintf("Invalid directory: %s. Allowed: %s", dir, strings.Join(h.pol.BrowseDirs(), ", ")),
		})
		return
	}
	listing, err := h.reader.Browse(dir)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stamp(map[string]any{
		"dir":   dir,
		"path":  listing.Path,
		"files": listing.Files,
		"dirs":  listing.Dirs,
	}))
}

func (h *Handler) handleFilesSub(w http.ResponseWriter, r *http.Request) {
	listing, err := h.reader.Browse(r.PathValue("sub"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stamp(map[string]any{
		"path":  listing.Path,
		"files": listing.Files,
		"dirs":  listing.Dirs,
	}))
}

func (h *Handler) handleFile(w http.ResponseWriter, r *http.Request) {
	fc, err := h.reader.ReadFile(r.PathValue("sub"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := h.stamp(map[string]any{
		"path":    fc.Path,
		"name":    fc.Name,
		"type":    fc.Type,
		"size":    fc.Size,
		"content": fc.Content,
	})
	if fc.Type == "markdown" {
		resp["html"] = markdown.Render(fc.Content)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	abs, err := h.reader.FilePath(r.PathValue("sub"))
	if err != nil {
		http.Error(w, err.Error(), errorCode(err))
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(abs)))
	http.ServeFile(w, r, abs)
}

func (h *Handler) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "history index is disabled"})
		return
	}
	engine := r.URL.Query().Get("engine")
	entries, err := h.history.List(engine, intParam(r, "limit", 50))
	if err != nil {
		h.writeError(w, err)
		return
	}
	total, byEngine, err := h.history.Stats()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stamp(map[string]any{
		"engine":   engine,
		"cycles":   entries,
		"total":    total,
		"byEngine": byEngine,
	}))
}

// searchHit is a history search result with its snippet rendered inline.
type searchHit struct {
	history.Result
	SnippetHTML string `json:"snippetHtml"`
}

func (h *Handler) handleHistorySearch(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "history index is disabled"})
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "q parameter is required"})
		return
	}
	engine := r.URL.Query().Get("engine")
	results, err := h.history.Search(q, engine, intParam(r, "limit", 20))
	if err != nil {
		h.writeError(w, err)
		return
	}
	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchHit{Result: res, SnippetHTML: markdown.RenderInline(res.Snippet)})
	}
	writeJSON(w, http.StatusOK, h.stamp(map[string]any{
		"query":   q,
		"engine":  engine,
		"results": hits,
		"total":   len(hits),
	}))
}

func (h *Handler) handleRender(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Markdown string `json:"markdown"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRenderBody)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request body"})
		return
	}
	writeJSON(w, http.StatusOK, h.stamp(map[string]any{
		"html": markdown.Render(body.Markdown),
	}))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	h.consensus.invalidate()
	writeJSON(w, http.StatusOK, h.stamp(map[string]any{
		"action": "refresh",
		"ok":     true,
		"status": h.reader.Gather(),
	}))
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(status.FormatMetrics(h.reader.Gather())))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stamp(map[string]any{"status": "ok"}))
}

func (h *Handler) stamp(m map[string]any) map[string]any {
	m["timestamp"] = h.now().UTC().Format(time.RFC3339)
	return m
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := errorCode(err)
	if code == http.StatusInternalServerError {
		h.logger.Printf("Dashboard: %v", err)
	}
	writeJSON(w, code, map[string]any{"error": err.Error()})
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, policy.ErrInvalidPath), errors.Is(err, policy.ErrOutsideRoot),
		errors.Is(err, status.ErrNotDirectory), errors.Is(err, status.ErrIsDirectory):
		return http.StatusBadRequest
	case errors.Is(err, policy.ErrNotBrowsable):
		return http.StatusForbidden
	case errors.Is(err, status.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func intParam(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
