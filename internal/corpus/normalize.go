package corpus

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
)

var (
	// Keep word characters, whitespace, Hangul syllables and basic
	// punctuation. Everything else is noise from the export.
	disallowed   = regexp.MustCompile(`[^\w\s가-힣.,!?]`)
	spaces       = regexp.MustCompile(`\s+`)
	markdownHint = regexp.MustCompile("[#*`\\[]")
)

// Normalize cleans corpus text. Queries go through the same path so
// lookups match what was indexed.
func Normalize(s string) string {
	if markdownHint.MatchString(s) {
		s = flattenMarkdown(s)
	}
	s = disallowed.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// flattenMarkdown strips markdown structure from an answer, keeping
// the visible text. Link labels survive, URLs and fences do not.
func flattenMarkdown(s string) string {
	src := []byte(s)
	md := goldmark.New()
	doc := md.Parser().Parse(gtext.NewReader(src))
	var sb strings.Builder
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := node.(*ast.Text); ok {
				sb.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					sb.WriteByte(' ')
				}
			}
			return ast.WalkContinue, nil
		}
		if node.Type() == ast.TypeBlock {
			sb.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
