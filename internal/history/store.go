// Package history keeps a full-text index of per-cycle loop logs so past
// cycles can be listed and searched after the log files scroll away.
//
// The index lives in its own SQLite database with an FTS5 table. Updates are
// incremental: a cycle log is re-indexed only when its checksum changes.
package history

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one cycle log to index.
type Record struct {
	Filename string
	Engine   string
	Cycle    int
	Size     int64
	Mtime    string
	Content  string
}

// Entry is an indexed cycle log without its content.
type Entry struct {
	Filename  string `json:"filename"`
	Engine    string `json:"engine"`
	Cycle     int    `json:"cycle"`
	Size      int64  `json:"size"`
	Mtime     string `json:"mtime"`
	IndexedAt string `json:"indexedAt"`
}

// Result is a search hit. Matched terms in Snippet are wrapped in "**".
type Result struct {
	Filename string  `json:"filename"`
	Engine   string  `json:"engine"`
	Cycle    int     `json:"cycle"`
	Mtime    string  `json:"mtime"`
	Snippet  string  `json:"snippet"`
	Rank     float64 `json:"rank"`
}

const historySchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS cycles USING fts5(
	filename UNINDEXED,
	engine UNINDEXED,
	content,
	tokenize='porter unicode61'
);

CREATE TABLE IF NOT EXISTS cycle_meta (
	filename TEXT PRIMARY KEY,
	engine TEXT,
	cycle INTEGER,
	size INTEGER,
	mtime TEXT,
	checksum TEXT,
	indexed_at TEXT
);
`

// Store wraps the SQLite history database.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// NewStore opens (or creates) a history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Index inserts or replaces a cycle log.
func (s *Store) Index(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cycles WHERE filename = ?`, rec.Filename); err != nil {
		return fmt.Errorf("delete old cycle: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO cycles (filename, engine, content) VALUES (?, ?, ?)`,
		rec.Filename, rec.Engine, rec.Content,
	); err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO cycle_meta (filename, engine, cycle, size, mtime, checksum, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Filename, rec.Engine, rec.Cycle, rec.Size, rec.Mtime, checksumString(rec.Content), now,
	); err != nil {
		return fmt.Errorf("upsert cycle_meta: %w", err)
	}

	return tx.Commit()
}

// IndexIfChanged indexes rec only if its content checksum differs from the
// stored one. Returns true when the log was (re)indexed.
func (s *Store) IndexIfChanged(rec Record) (bool, error) {
	sum := checksumString(rec.Content)

	s.mu.RLock()
	var existing string
	err := s.db.QueryRow(`SELECT checksum FROM cycle_meta WHERE filename = ?`, rec.Filename).Scan(&existing)
	s.mu.RUnlock()

	if err == nil && existing == sum {
		return false, nil
	}
	if err := s.Index(rec); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes a cycle log from the index.
func (s *Store) Remove(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cycles WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("delete from fts: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM cycle_meta WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("delete from meta: %w", err)
	}
	return tx.Commit()
}

// List returns indexed cycles, newest first. Empty engine lists all.
func (s *Store) List(engine string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT filename, engine, cycle, size, mtime, indexed_at
		FROM cycle_meta
		WHERE ? = '' OR engine = ?
		ORDER BY mtime DESC, filename DESC
		LIMIT ?
	`, engine, engine, limit)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Filename, &e.Engine, &e.Cycle, &e.Size, &e.Mtime, &e.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Search runs a full-text query over cycle logs, best match first.
func (s *Store) Search(query, engine string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	ftsQuery := sanitizeFTSQuery(query)
	if ftsQuery == "" {
		return []Result{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT cycles.filename, cycles.engine, cycle_meta.cycle, cycle_meta.mtime,
		       snippet(cycles, 2, '**', '**', '...', 24), cycles.rank
		FROM cycles
		JOIN cycle_meta ON cycle_meta.filename = cycles.filename
		WHERE cycles MATCH ?
		AND (? = '' OR cycles.engine = ?)
		ORDER BY cycles.rank
		LIMIT ?
	`, ftsQuery, engine, engine, limit)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Filename, &r.Engine, &r.Cycle, &r.Mtime, &r.Snippet, &r.Rank); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Filenames returns every indexed cycle log name.
func (s *Store) Filenames() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT filename FROM cycle_meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Stats returns the number of indexed cycles in total and per engine.
func (s *Store) Stats() (total int, byEngine map[string]int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byEngine = make(map[string]int)
	rows, err := s.db.Query(`SELECT engine, COUNT(*) FROM cycle_meta GROUP BY engine`)
	if err != nil {
		return 0, nil, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var engine string
		var count int
		if err := rows.Scan(&engine, &count); err != nil {
			return 0, nil, fmt.Errorf("scan stats: %w", err)
		}
		byEngine[engine] = count
		total += count
	}
	return total, byEngine, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

var ftsSpecials = strings.NewReplacer(
	`"`, " ", "'", " ", "(", " ", ")", " ", "*", " ",
	":", " ", "^", " ", "{", " ", "}", " ", "+", " ",
)

// sanitizeFTSQuery turns free text into an FTS5 query of quoted terms
// joined by implicit AND. Operators are dropped.
func sanitizeFTSQuery(q string) string {
	var tokens []string
	for _, w := range strings.Fields(ftsSpecials.Replace(q)) {
		switch w {
		case "AND", "OR", "NOT", "NEAR":
			continue
		}
		tokens = append(tokens, `"`+w+`"`)
	}
	return strings.Join(tokens, " ")
}

func checksumString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
