package status

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// Entry is one decoded JSONL record (activity or structured log line).
type Entry = map[string]any

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadText reads a text file, returning fallback when it does not exist.
// UTF-8 (with or without BOM) is tried first, then GB18030, then Latin-1.
func ReadText(path, fallback string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fallback
		}
		return fmt.Sprintf("(read error: %v)", err)
	}
	return decodeText(raw)
}

func decodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return string(raw)
	}
	if s, err := simplifiedchinese.GB18030.NewDecoder().Bytes(raw); err == nil && utf8.Valid(s) && !bytes.ContainsRune(s, utf8.RuneError) {
		return string(s)
	}
	if s, err := charmap.ISO8859_1.NewDecoder().Bytes(raw); err == nil {
		return string(s)
	}
	return strings.ToValidUTF8(string(raw), "\uFFFD")
}

// ReadTail returns the last n lines of a text file.
func ReadTail(path string, n int) string {
	if n <= 0 {
		return ""
	}
	text := ReadText(path, "")
	if text == "" {
		return ""
	}
	rows := splitLines(text)
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return strings.Join(rows, "\n")
}

// splitLines splits on \n or \r\n. A final line terminator does not add an
// empty row. Lines of any length are kept whole.
func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	rows := strings.Split(text, "\n")
	for i, row := range rows {
		rows[i] = strings.TrimSuffix(row, "\r")
	}
	return rows
}

// ReadJSON decodes a JSON object file. Missing or malformed files yield an empty map.
func ReadJSON(path string) map[string]any {
	out := map[string]any{}
	data, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// ReadJSONL decodes the last limit lines of a JSONL file, newest first.
// Lines that are not JSON objects are skipped.
func ReadJSONL(path string, limit int) []Entry {
	entries := []Entry{}
	data, err := os.ReadFile(path)
	if err != nil || limit <= 0 {
		return entries
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil || e == nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// ParseStateFile parses KEY=VALUE lines. Lines without '=' are ignored.
func ParseStateFile(path string) map[string]string {
	result := map[string]string{}
	for _, line := range splitLines(ReadText(path, "")) {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		result[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return result
}

// FileType classifies a file name by extension for the file browser.
// Unknown extensions map to fallback.
func FileType(name, fallback string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return "markdown"
	case ".json", ".jsonl":
		return "json"
	case ".py", ".js", ".ts", ".sh", ".bash", ".go":
		return "code"
	case ".log":
		return "log"
	default:
		return fallback
	}
}

// truncateRunes cuts s to at most max runes.
func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
