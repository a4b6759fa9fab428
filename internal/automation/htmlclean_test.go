package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanHTMLStripsScriptsAndStyles(t *testing.T) {
	raw := `<html><head><meta charset="utf-8"><link rel="stylesheet" href="x.css"></head>
<body><script>alert(1)</script><style>.a{}</style><form><input id="q"></form></body></html>`

	out := CleanHTML(raw)
	assert.NotContains(t, out, "alert(1)")
	assert.NotContains(t, out, ".a{}")
	assert.NotContains(t, out, "meta charset")
	assert.NotContains(t, out, "stylesheet")
	assert.Contains(t, out, `<input id="q">`)
}

func TestCleanHTMLReducesToBody(t *testing.T) {
	raw := `<html><head><title>Page</title></head><body class="x"><p>hello</p></body></html>`
	out := CleanHTML(raw)
	assert.NotContains(t, out, "<title>")
	assert.Contains(t, out, "<p>hello</p>")
}

func TestCleanHTMLStripsCommentsAndAds(t *testing.T) {
	raw := `<body><!-- tracking --><div id="google_ads_frame1"><a>buy</a></div><form></form></body>`
	out := CleanHTML(raw)
	assert.NotContains(t, out, "tracking")
	assert.NotContains(t, out, "buy")
	assert.Contains(t, out, "<form>")
}

func TestCleanHTMLCollapsesWhitespace(t *testing.T) {
	out := CleanHTML("<body><p>a    b\t\tc</p></body>")
	assert.Equal(t, "<p>a b c</p>", out)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "abcdef", Truncate("abcdef", 10))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
}
