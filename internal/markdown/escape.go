package markdown

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Escape replaces the five HTML-significant characters with entities.
// It is not idempotent: escaping its own output encodes the ampersands again,
// so every piece of source text must pass through it exactly once.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}
