package markdown

import (
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
)

// assertHTML fails with a tag-per-line unified diff when got differs from want.
func assertHTML(t *testing.T, input, want, got string) {
	t.Helper()
	if got == want {
		return
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(splitTags(want)),
		B:        difflib.SplitLines(splitTags(got)),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	})
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	t.Errorf("Render(%q) mismatch\n%s", input, diff)
}

func splitTags(s string) string {
	return strings.ReplaceAll(s, "><", ">\n<") + "\n"
}
