package automation

import "regexp"

// Non-content nodes are stripped with compiled regexps before the HTML is
// handed to the planner; no pack-blessed DOM library exists for this and
// token cost is the only concern, so best-effort removal is fine.
var (
	blockTagRe = regexp.MustCompile(`(?is)<(script|style|noscript|iframe|svg)\b[^>]*>.*?</(script|style|noscript|iframe|svg)>`)
	voidTagRe  = regexp.MustCompile(`(?i)<(meta|link)\b[^>]*/?>`)
	commentRe  = regexp.MustCompile(`(?s)<!--.*?-->`)

	// Known ad containers. Nested markup defeats non-greedy matching but
	// the common single-level ad slots are caught.
	adDivRe = regexp.MustCompile(`(?is)<(div|ins|aside)\b[^>]*(?:id="[^"]*google_ads[^"]*"|class="[^"]*\b(?:ad|ads)(?:-[^"]*)?")[^>]*>.*?</(?:div|ins|aside)>`)

	bodyRe = regexp.MustCompile(`(?is)<body\b[^>]*>(.*)</body>`)
	wsRe   = regexp.MustCompile(`[ \t]{2,}`)
)

// CleanHTML strips scripts, styles, nested iframes, svgs, meta/link tags,
// comments and known ad slots, and reduces the document to its body so the
// planner input stays small.
func CleanHTML(raw string) string {
	s := raw
	if m := bodyRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = blockTagRe.ReplaceAllString(s, "")
	s = voidTagRe.ReplaceAllString(s, "")
	s = commentRe.ReplaceAllString(s, "")
	s = adDivRe.ReplaceAllString(s, "")
	s = wsRe.ReplaceAllString(s, " ")
	return s
}

// Truncate hard-caps s at limit bytes.
func Truncate(s string, limit int) string {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
