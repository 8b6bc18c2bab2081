// Package markdown renders the small markdown dialect used in agent loop
// status fields and documentation previews into an HTML fragment.
//
// Every piece of source text is escaped before any tag is written, so the
// output never carries markup other than the fixed set the renderer emits:
// headings, paragraphs, unordered and checkbox lists, fenced code blocks,
// pipe tables, http(s) links, code spans, bold and italic.
//
// Rendering keeps no state between calls and is safe for concurrent use.
package markdown

import "strings"

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Render converts text to HTML. Any newline convention is accepted.
// Unterminated code fences and tables are closed at the end of input.
func Render(text string) string {
	lines := strings.Split(newlines.Replace(text), "\n")

	var p blockParser
	p.out.Grow(len(text) + len(text)/2)
	for _, line := range lines {
		p.line(line)
	}
	p.closeBlock()
	return p.out.String()
}

// RenderBytes is Render for file contents.
func RenderBytes(src []byte) []byte {
	return []byte(Render(string(src)))
}
