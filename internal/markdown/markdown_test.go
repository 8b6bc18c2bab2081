package markdown

import (
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"testing"
)

func TestRender(t *testing.T) {
	const (
		boxOn  = `<input type="checkbox" checked disabled> `
		boxOff = `<input type="checkbox" disabled> `
	)
	tests := []struct {
		name, in, want string
	}{
		{"empty", "", ""},
		{"blank lines only", "\n  \n\t\n", ""},
		{"headings", "# a\n## b\n###### c", "<h1>a</h1><h2>b</h2><h6>c</h6>"},
		{"heading inline", "## **Status**: `ok`", "<h2><strong>Status</strong>: <code>ok</code></h2>"},
		{"seven hashes is text", "####### seven", "<p>####### seven</p>"},
		{"hash without space is text", "#tag", "<p>#tag</p>"},
		{"indented hash is text", "  # nope", "<p># nope</p>"},
		{"paragraph soft breaks", "one\ntwo\nthree", "<p>one<br />two<br />three</p>"},
		{"paragraphs", "one\n\ntwo", "<p>one</p><p>two</p>"},
		{"trims text lines", "   padded   ", "<p>padded</p>"},
		{"crlf and cr", "a\r\nb\rc", "<p>a<br />b<br />c</p>"},
		{"list", "- a\n* b\n  - c", "<ul><li>a</li><li>b</li><li>c</li></ul>"},
		{"list closes paragraph", "text\n- item", "<p>text</p><ul><li>item</li></ul>"},
		{"text closes list", "- item\ntext", "<ul><li>item</li></ul><p>text</p>"},
		{"blank line splits lists", "- a\n\n- b", "<ul><li>a</li></ul><ul><li>b</li></ul>"},
		{"checkboxes", "- [x] done\n- [ ] todo", "<ul><li>" + boxOn + "done</li><li>" + boxOff + "todo</li></ul>"},
		{"upper X checks", "- [X] done", "<ul><li>" + boxOn + "done</li></ul>"},
		{"checkbox and plain items share a list", "- [ ] a\n- b", "<ul><li>" + boxOff + "a</li><li>b</li></ul>"},
		{"star checkbox is a plain item", "* [x] a", "<ul><li>[x] a</li></ul>"},
		{"bold line is not a list", "**bold** line", "<p><strong>bold</strong> line</p>"},
		{"code block", "```\n**bold**\n```", "<pre><code>**bold**\n</code></pre>"},
		{"code block escapes", "```html\n<b>&</b>\n```", "<pre><code>&lt;b&gt;&amp;&lt;/b&gt;\n</code></pre>"},
		{"code keeps blank lines and indentation", "```\n  a\n\n# b\n```", "<pre><code>  a\n\n# b\n</code></pre>"},
		{"unterminated code", "```\nunterminated", "<pre><code>unterminated\n</code></pre>"},
		{"code closes paragraph", "text\n```\nx\n```\nafter", "<p>text</p><pre><code>x\n</code></pre><p>after</p>"},
		{"indented fence is text", " ```", "<p>```</p>"},
		{
			"table",
			"|a|b|\n|-|-|\n|1|2|",
			"<table><thead><tr><th>a</th><th>b</th></tr></thead><tbody><tr><td>1</td><td>2</td></tr></tbody></table>",
		},
		{
			"table with alignment and spaces",
			"| Name | Role |\n| :--- | ---: |\n| **cto** | lead |",
			"<table><thead><tr><th>Name</th><th>Role</th></tr></thead><tbody><tr><td><strong>cto</strong></td><td>lead</td></tr></tbody></table>",
		},
		{
			"table without separator",
			"|a|\n|b|",
			"<table><thead><tr><th>a</th></tr></thead><tbody><tr><td>b</td></tr></tbody></table>",
		},
		{
			"separator only dropped after header",
			"|a|\n|b|\n|-|",
			"<table><thead><tr><th>a</th></tr></thead><tbody><tr><td>b</td></tr><tr><td>-</td></tr></tbody></table>",
		},
		{
			"separator looking first row is the header",
			"|-|-|\n|1|2|",
			"<table><thead><tr><th>-</th><th>-</th></tr></thead><tbody><tr><td>1</td><td>2</td></tr></tbody></table>",
		},
		{
			"rows fit header arity",
			"|a|b|\n|1|\n|1|2|3|",
			"<table><thead><tr><th>a</th><th>b</th></tr></thead><tbody><tr><td>1</td><td></td></tr><tr><td>1</td><td>2</td></tr></tbody></table>",
		},
		{
			"header only table",
			"|a|",
			"<table><thead><tr><th>a</th></tr></thead><tbody></tbody></table>",
		},
		{
			"table closed by text",
			"|a|\n|-|\n|1|\nafter",
			"<table><thead><tr><th>a</th></tr></thead><tbody><tr><td>1</td></tr></tbody></table><p>after</p>",
		},
		{
			"table closed by heading",
			"|a|\n# h",
			"<table><thead><tr><th>a</th></tr></thead><tbody></tbody></table><h1>h</h1>",
		},
		{
			"table closes paragraph",
			"intro\n|a|",
			"<p>intro</p><table><thead><tr><th>a</th></tr></thead><tbody></tbody></table>",
		},
		{
			"blank line starts a new table",
			"|a|\n\n|b|",
			"<table><thead><tr><th>a</th></tr></thead><tbody></tbody></table><table><thead><tr><th>b</th></tr></thead><tbody></tbody></table>",
		},
		{"single pipe is a one cell table", "|", "<table><thead><tr><th></th></tr></thead><tbody></tbody></table>"},
		{"unsafe link stays literal", "[x](javascript:alert(1))", "<p>[x](javascript:alert(1))</p>"},
		{"script is escaped", "<script>alert('x')</script>", "<p>&lt;script&gt;alert(&#39;x&#39;)&lt;/script&gt;</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertHTML(t, tt.in, tt.want, Render(tt.in))
		})
	}
}

func TestRender_ConsensusDocument(t *testing.T) {
	in := "# Auto Company Consensus\r\n" +
		"\r\n" +
		"## Current Phase\r\n" +
		"Building the **landing page** for `emailguard`.\r\n" +
		"See [docs](https://example.com/docs).\r\n" +
		"\r\n" +
		"## Next Action\r\n" +
		"- [x] ship validator\r\n" +
		"- [ ] write *tests*\r\n" +
		"\r\n" +
		"| Agent | Status |\r\n" +
		"|-------|:------:|\r\n" +
		"| cto-vogels | active |\r\n" +
		"\r\n" +
		"```bash\r\n" +
		"make test && echo <ok>\r\n" +
		"```\r\n"

	want := "<h1>Auto Company Consensus</h1>" +
		"<h2>Current Phase</h2>" +
		"<p>Building the <strong>landing page</strong> for <code>emailguard</code>." +
		`<br />See <a href="https://example.com/docs" target="_blank" rel="noopener">docs</a>.</p>` +
		"<h2>Next Action</h2>" +
		`<ul><li><input type="checkbox" checked disabled> ship validator</li>` +
		`<li><input type="checkbox" disabled> write <em>tests</em></li></ul>` +
		"<table><thead><tr><th>Agent</th><th>Status</th></tr></thead>" +
		"<tbody><tr><td>cto-vogels</td><td>active</td></tr></tbody></table>" +
		"<pre><code>make test &amp;&amp; echo &lt;ok&gt;\n</code></pre>"

	assertHTML(t, in, want, Render(in))
}

func TestRenderBytes(t *testing.T) {
	if got := string(RenderBytes([]byte("# x"))); got != "<h1>x</h1>" {
		t.Errorf("RenderBytes = %q", got)
	}
}

// generatedTag matches every tag the renderer is allowed to produce.
var generatedTag = regexp.MustCompile(
	`</?(?:p|ul|li|h[1-6]|pre|code|table|thead|tbody|tr|th|td|strong|em|a)>` +
		`|<br />` +
		`|<input type="checkbox" (?:checked )?disabled>` +
		`|<a href="https?://[^"<>\s]*" target="_blank" rel="noopener">`)

var entity = regexp.MustCompile(`&(?:amp|lt|gt|quot|#39);`)

// assertSafe checks that no literal <, > or bare & survives outside the
// renderer's own tags.
func assertSafe(t *testing.T, in, out string) {
	t.Helper()
	rest := generatedTag.ReplaceAllString(out, "")
	if strings.ContainsAny(rest, "<>") {
		t.Errorf("Render(%q) leaked markup: %q", in, out)
	}
	if strings.Contains(entity.ReplaceAllString(rest, ""), "&") {
		t.Errorf("Render(%q) leaked a bare ampersand: %q", in, out)
	}
}

func TestRender_Hostile(t *testing.T) {
	inputs := []string{
		`<script>alert(1)</script>`,
		`<img src=x onerror="alert(1)">`,
		`[click](javascript:alert(1))`,
		`[click](JAVASCRIPT://alert(1))`,
		`[x](data:text/html,<script>alert(1)</script>)`,
		`[<b>](https://x.io/"onmouseover="alert(1))`,
		`[a](https://x.io/'><script>)`,
		"**<svg onload=alert(1)>**",
		"`</code><script>`",
		"# <h1>",
		"- [x] <iframe>",
		"| <td> | & |\n|---|---|\n| <tr> | &amp; |",
		"```\n</code></pre><script>\n```",
		"&lt; already escaped &amp;",
	}
	for _, in := range inputs {
		assertSafe(t, in, Render(in))
	}
}

func TestRender_RandomInputsStaySafe(t *testing.T) {
	pieces := []string{
		"#", "## ", "- ", "* ", "- [x] ", "- [ ] ", "|", "```", "`", "**", "*",
		"[", "]", "(", ")", "https://", "http://", "javascript:", "<", ">", "&",
		`"`, "'", " ", "\n", "\r\n", "\r", "\t", "a", "b", "-", ":", "é",
	}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		var b strings.Builder
		n := 1 + rng.Intn(40)
		for j := 0; j < n; j++ {
			b.WriteString(pieces[rng.Intn(len(pieces))])
		}
		in := b.String()
		out := Render(in)
		assertSafe(t, in, out)
		if again := Render(in); again != out {
			t.Fatalf("Render(%q) is not deterministic", in)
		}
	}
}

func TestRender_Concurrent(t *testing.T) {
	docs := []string{"# a\n- b", "|x|\n|-|\n|1|", "```\ncode", "plain *text*"}
	want := make([]string, len(docs))
	for i, d := range docs {
		want[i] = Render(d)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				d := i % len(docs)
				if got := Render(docs[d]); got != want[d] {
					t.Errorf("concurrent Render(%q) = %q, want %q", docs[d], got, want[d])
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestBlockState_String(t *testing.T) {
	if stateTableHead.String() != "table" || stateTableBody.String() != "table" {
		t.Error("both table phases should report as table")
	}
	if stateCode.String() != "code" {
		t.Errorf("stateCode = %s", stateCode)
	}
}
