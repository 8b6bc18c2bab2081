package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	linkRe        = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\s)]+)\)`)
	codeSpanRe    = regexp.MustCompile("`([^`]+)`")
	strongRe      = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	emRe          = regexp.MustCompile(`\*([^*]+)\*`)
	placeholderRe = regexp.MustCompile(`<@(\d+)>`)
)

// heldText stores text that later passes must not rewrite: link targets and
// code span contents. Each piece is replaced by a <@N> placeholder, which
// escaped input can never contain, and put back after the last pass.
type heldText struct {
	saved []string
}

func (h *heldText) hold(s string) string {
	h.saved = append(h.saved, h.restore(s))
	return "<@" + strconv.Itoa(len(h.saved)-1) + ">"
}

func (h *heldText) restore(s string) string {
	if len(h.saved) == 0 {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		i, err := strconv.Atoi(m[2 : len(m)-1])
		if err != nil || i >= len(h.saved) {
			return m
		}
		return h.saved[i]
	})
}

// inlinePass rewrites one line. Each pass sees the previous pass's output,
// generated tags included.
type inlinePass func(h *heldText, s string) string

// inlinePasses run in this order.
var inlinePasses = []inlinePass{
	linkPass,
	codeSpanPass,
	strongPass,
	emphasisPass,
}

// FormatInline applies the link, code span, bold and italic substitutions to
// text that has already been escaped with Escape.
func FormatInline(escaped string) string {
	var h heldText
	s := escaped
	for _, pass := range inlinePasses {
		s = pass(&h, s)
	}
	return h.restore(s)
}

// RenderInline escapes raw text and formats its inline spans.
func RenderInline(raw string) string {
	return FormatInline(Escape(raw))
}

// linkPass turns [label](http://target) into an anchor. Any other scheme
// never matches and stays literal text. The label stays open to later passes.
func linkPass(h *heldText, s string) string {
	return substitute(s, linkRe, func(m []string) string {
		return `<a href="` + h.hold(m[2]) + `" target="_blank" rel="noopener">` + m[1] + "</a>"
	})
}

// codeSpanPass wraps backtick spans; the content is held so bold and italic
// markers inside it survive as typed.
func codeSpanPass(h *heldText, s string) string {
	return substitute(s, codeSpanRe, func(m []string) string {
		return "<code>" + h.hold(m[1]) + "</code>"
	})
}

func strongPass(_ *heldText, s string) string {
	return substitute(s, strongRe, func(m []string) string {
		return "<strong>" + m[1] + "</strong>"
	})
}

func emphasisPass(_ *heldText, s string) string {
	return substitute(s, emRe, func(m []string) string {
		return "<em>" + m[1] + "</em>"
	})
}

// substitute replaces every non-overlapping match of re with build's result.
// build receives the full match followed by its groups.
func substitute(s string, re *regexp.Regexp, build func(m []string) string) string {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 16*len(matches))
	last := 0
	for _, loc := range matches {
		b.WriteString(s[last:loc[0]])
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = s[loc[2*i]:loc[2*i+1]]
			}
		}
		b.WriteString(build(groups))
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}
