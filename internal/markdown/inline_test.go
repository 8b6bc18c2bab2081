package markdown

import "testing"

func TestRenderInline(t *testing.T) {
	const anchor = `" target="_blank" rel="noopener">`
	tests := []struct {
		name, in, want string
	}{
		{"plain", "hello", "hello"},
		{"bold", "**b**", "<strong>b</strong>"},
		{"italic", "*i*", "<em>i</em>"},
		{"bold then italic", "**b** and *i*", "<strong>b</strong> and <em>i</em>"},
		{"code", "run `go test`", "run <code>go test</code>"},
		{"code content is literal", "`**x** *y*`", "<code>**x** *y*</code>"},
		{"http link", "[site](http://example.com)", `<a href="http://example.com` + anchor + `site</a>`},
		{"https link with query", "[q](https://example.com/a?b=1&c=2)", `<a href="https://example.com/a?b=1&amp;c=2` + anchor + `q</a>`},
		{"javascript scheme stays literal", "[x](javascript:alert(1))", "[x](javascript:alert(1))"},
		{"ftp scheme stays literal", "[x](ftp://host/file)", "[x](ftp://host/file)"},
		{"bold label", "[**b**](https://x.io)", `<a href="https://x.io` + anchor + `<strong>b</strong></a>`},
		{"code label", "[`c`](https://x.io)", `<a href="https://x.io` + anchor + `<code>c</code></a>`},
		{"href is not reformatted", "[a](https://x.io/*y*)", `<a href="https://x.io/*y*` + anchor + `a</a>`},
		{"quote in target is escaped", `[a](https://x.io/"onclick=1)`, `<a href="https://x.io/&quot;onclick=1` + anchor + `a</a>`},
		{"bold around link", "**[a](http://e.com)**", `<strong><a href="http://e.com` + anchor + `a</a></strong>`},
		{"italic around link", "*see [x](http://e.com) now*", `<em>see <a href="http://e.com` + anchor + `x</a> now</em>`},
		{"bold around code", "**a `b` c**", "<strong>a <code>b</code> c</strong>"},
		{"italic around code with markers", "*run `a*b` now*", "<em>run <code>a*b</code> now</em>"},
		{"code inside link label keeps href", "[`*c*`](https://x.io/*y*)", `<a href="https://x.io/*y*` + anchor + `<code>*c*</code></a>`},
		{"placeholder lookalike stays literal", "<@0> `x`", "&lt;@0&gt; <code>x</code>"},
		{"tags escaped", "<b>hi</b>", "&lt;b&gt;hi&lt;/b&gt;"},
		{"tags inside bold", "**<i>**", "<strong>&lt;i&gt;</strong>"},
		{"unbalanced markers", "a ** b", "a ** b"},
		{"stray markers pair up", "a ** b * c", "a *<em> b </em> c"},
		{"unclosed code", "`open", "`open"},
		{"apostrophe", "it's", "it&#39;s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderInline(tt.in); got != tt.want {
				t.Errorf("RenderInline(%q)\n got: %s\nwant: %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatInline_ExpectsEscapedInput(t *testing.T) {
	// FormatInline does not escape; the caller owns that step.
	if got := FormatInline("&lt;x&gt; **y**"); got != "&lt;x&gt; <strong>y</strong>" {
		t.Errorf("FormatInline = %q", got)
	}
}
