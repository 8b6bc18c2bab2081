package status

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadText(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"utf8", []byte("héllo"), "héllo"},
		{"bom", []byte("\xEF\xBB\xBF# Title"), "# Title"},
		{"gb18030", []byte{0xD6, 0xD0, 0xCE, 0xC4}, "中文"},
		{"latin1", []byte("caf\xe9"), "café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".txt")
			if err := os.WriteFile(path, tt.raw, 0o644); err != nil {
				t.Fatal(err)
			}
			if got := ReadText(path, "fallback"); got != tt.want {
				t.Errorf("ReadText = %q, want %q", got, tt.want)
			}
		})
	}

	if got := ReadText(filepath.Join(dir, "missing"), "(none)"); got != "(none)" {
		t.Errorf("missing file: got %q", got)
	}
	if got := ReadText(dir, ""); !strings.HasPrefix(got, "(read error:") {
		t.Errorf("directory: got %q", got)
	}
}

func TestReadTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loop.log")
	if err := os.WriteFile(path, []byte("one\r\ntwo\nthree\nfour\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := ReadTail(path, 2); got != "three\nfour" {
		t.Errorf("tail 2 = %q", got)
	}
	if got := ReadTail(path, 10); got != "one\ntwo\nthree\nfour" {
		t.Errorf("tail 10 = %q", got)
	}
	if got := ReadTail(path, 0); got != "" {
		t.Errorf("tail 0 = %q", got)
	}
	if got := ReadTail(filepath.Join(dir, "nope"), 5); got != "" {
		t.Errorf("missing = %q", got)
	}
}

func TestReadTail_LongLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.log")
	long := strings.Repeat("x", 5*1024*1024)
	if err := os.WriteFile(path, []byte("first\n"+long+"\nlast line\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := ReadTail(path, 1); got != "last line" {
		t.Errorf("tail 1 = %.40q", got)
	}
	if got := ReadTail(path, 2); len(got) != len(long)+len("\nlast line") {
		t.Errorf("tail 2 length = %d, want the long line kept whole", len(got))
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"\n", nil},
		{"a", []string{"a"}},
		{"a\r\nb\n", []string{"a", "b"}},
		{"a\n\nb", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		got := splitLines(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("splitLines(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadJSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jsonl")
	content := `{"n":1}
not json
{"n":2}

[1,2]
{"n":3}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	all := ReadJSONL(path, 100)
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d: %v", len(all), all)
	}
	if all[0]["n"] != float64(3) || all[2]["n"] != float64(1) {
		t.Errorf("expected newest first, got %v", all)
	}

	last := ReadJSONL(path, 2)
	if len(last) != 1 || last[0]["n"] != float64(3) {
		t.Errorf("limit 2 should read the last two lines only, got %v", last)
	}

	if got := ReadJSONL(filepath.Join(dir, "missing"), 10); got == nil || len(got) != 0 {
		t.Errorf("missing file should give empty slice, got %#v", got)
	}
}

func TestReadJSON(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(good, []byte(`{"phase":"build","done":4}`), 0o644)
	os.WriteFile(bad, []byte(`{"phase":`), 0o644)

	if got := ReadJSON(good); got["phase"] != "build" {
		t.Errorf("good = %v", got)
	}
	if got := ReadJSON(bad); len(got) != 0 {
		t.Errorf("bad = %v", got)
	}
}

func TestParseStateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state")
	content := "LOOP_COUNT=12\n# comment\nMODEL = qwen-max \nURL=http://x?a=b\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got := ParseStateFile(path)
	want := map[string]string{"LOOP_COUNT": "12", "MODEL": "qwen-max", "URL": "http://x?a=b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestFileType(t *testing.T) {
	tests := map[string]string{
		"README.md":      "markdown",
		"notes.MARKDOWN": "markdown",
		"data.jsonl":     "json",
		"run.sh":         "code",
		"main.go":        "code",
		"loop.log":       "log",
		"image.png":      "file",
		"Makefile":       "file",
	}
	for name, want := range tests {
		if got := FileType(name, "file"); got != want {
			t.Errorf("FileType(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("中文字符", 2); got != "中文" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
}
