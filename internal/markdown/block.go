package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

const fence = "```"

var (
	headingRe   = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	checkboxRe  = regexp.MustCompile(`^\s*-\s+\[([ xX])\]\s+(.+)$`)
	listItemRe  = regexp.MustCompile(`^\s*[-*]\s+(.+)$`)
	separatorRe = regexp.MustCompile(`^[-:]+$`)
)

// blockState is the single open block. Exactly one value is active at a time.
type blockState int

const (
	stateNone blockState = iota
	stateParagraph
	stateList
	stateCode
	// stateTableHead is a table whose header was just emitted; the next row
	// may still be an alignment separator.
	stateTableHead
	// stateTableBody is a table past its header (and separator, if any).
	stateTableBody
)

func (s blockState) String() string {
	switch s {
	case stateNone:
		return "none"
	case stateParagraph:
		return "paragraph"
	case stateList:
		return "list"
	case stateCode:
		return "code"
	case stateTableHead, stateTableBody:
		return "table"
	default:
		return "unknown"
	}
}

// blockParser classifies one line at a time and writes HTML as it goes.
// It lives for a single render call.
type blockParser struct {
	out     strings.Builder
	state   blockState
	columns int
}

// closeBlock emits the closing markup of the open block, if any.
func (p *blockParser) closeBlock() {
	switch p.state {
	case stateParagraph:
		p.out.WriteString("</p>")
	case stateList:
		p.out.WriteString("</ul>")
	case stateCode:
		p.out.WriteString("</code></pre>")
	case stateTableHead, stateTableBody:
		p.out.WriteString("</tbody></table>")
	}
	p.state = stateNone
	p.columns = 0
}

// line applies the first matching rule to one input line.
func (p *blockParser) line(line string) {
	if strings.HasPrefix(line, fence) {
		if p.state == stateCode {
			p.closeBlock()
			return
		}
		p.closeBlock()
		p.out.WriteString("<pre><code>")
		p.state = stateCode
		return
	}

	if p.state == stateCode {
		p.out.WriteString(Escape(line))
		p.out.WriteByte('\n')
		return
	}

	trimmed := strings.TrimSpace(line)

	if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") {
		p.tableRow(splitCells(trimmed))
		return
	}

	if trimmed == "" {
		p.closeBlock()
		return
	}

	if m := headingRe.FindStringSubmatch(line); m != nil {
		p.closeBlock()
		level := strconv.Itoa(len(m[1]))
		p.out.WriteString("<h" + level + ">")
		p.out.WriteString(RenderInline(strings.TrimSpace(m[2])))
		p.out.WriteString("</h" + level + ">")
		return
	}

	if m := checkboxRe.FindStringSubmatch(line); m != nil {
		box := `<input type="checkbox" disabled> `
		if strings.EqualFold(m[1], "x") {
			box = `<input type="checkbox" checked disabled> `
		}
		p.listItem(box + RenderInline(strings.TrimSpace(m[2])))
		return
	}

	if m := listItemRe.FindStringSubmatch(line); m != nil {
		p.listItem(RenderInline(strings.TrimSpace(m[1])))
		return
	}

	p.text(trimmed)
}

func (p *blockParser) listItem(content string) {
	if p.state != stateList {
		p.closeBlock()
		p.out.WriteString("<ul>")
		p.state = stateList
	}
	p.out.WriteString("<li>")
	p.out.WriteString(content)
	p.out.WriteString("</li>")
}

// text appends a line to the open paragraph, or opens one. Consecutive lines
// are joined with an explicit break.
func (p *blockParser) text(trimmed string) {
	if p.state == stateParagraph {
		p.out.WriteString("<br />")
	} else {
		p.closeBlock()
		p.out.WriteString("<p>")
		p.state = stateParagraph
	}
	p.out.WriteString(RenderInline(trimmed))
}

// tableRow opens a table with cells as its header, drops an alignment row
// directly after the header, and emits every other row as a body row.
// The first qualifying row is always the header, whatever it contains.
func (p *blockParser) tableRow(cells []string) {
	switch p.state {
	case stateTableHead:
		p.state = stateTableBody
		if isSeparatorRow(cells) {
			return
		}
		p.bodyRow(cells)
	case stateTableBody:
		p.bodyRow(cells)
	default:
		p.closeBlock()
		p.out.WriteString("<table><thead><tr>")
		for _, cell := range cells {
			p.out.WriteString("<th>")
			p.out.WriteString(RenderInline(cell))
			p.out.WriteString("</th>")
		}
		p.out.WriteString("</tr></thead><tbody>")
		p.state = stateTableHead
		p.columns = len(cells)
	}
}

// bodyRow emits cells fitted to the header's column count.
func (p *blockParser) bodyRow(cells []string) {
	p.out.WriteString("<tr>")
	for i := 0; i < p.columns; i++ {
		p.out.WriteString("<td>")
		if i < len(cells) {
			p.out.WriteString(RenderInline(cells[i]))
		}
		p.out.WriteString("</td>")
	}
	p.out.WriteString("</tr>")
}

// splitCells splits a trimmed |a|b| row into its trimmed cells.
func splitCells(row string) []string {
	inner := ""
	if len(row) >= 2 {
		inner = row[1 : len(row)-1]
	}
	cells := strings.Split(inner, "|")
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if !separatorRe.MatchString(c) {
			return false
		}
	}
	return true
}
