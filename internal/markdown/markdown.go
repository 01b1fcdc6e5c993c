// Package markdown renders ticket and comment bodies (stored as Markdown)
// down to a plain-text preview, for API responses and generated prompts
// that should not carry raw Markdown syntax.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MaxPreviewRunes caps the length of a generated preview.
const MaxPreviewRunes = 280

// Preview walks the parsed Markdown AST and extracts its plain text,
// collapsing block structure to single spaces, then truncates it to
// MaxPreviewRunes.
func Preview(source string) string {
	plain := PlainText(source)
	runes := []rune(plain)
	if len(runes) <= MaxPreviewRunes {
		return plain
	}
	return strings.TrimSpace(string(runes[:MaxPreviewRunes])) + "…"
}

// PlainText strips all Markdown formatting, returning the text content only.
func PlainText(source string) string {
	src := []byte(source)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindText:
			t := n.(*ast.Text)
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case ast.KindString:
			s := n.(*ast.String)
			buf.Write(s.Value)
		case ast.KindCodeBlock, ast.KindFencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		}
		if n.Type() == ast.TypeBlock {
			buf.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(strings.Fields(buf.String()), " ")
}
