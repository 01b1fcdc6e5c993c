package markdown

import (
	"strings"
	"testing"
)

func TestPlainTextStripsFormatting(t *testing.T) {
	in := "# Title\n\nThis is **bold** and _italic_ text with a [link](https://example.com)."
	out := PlainText(in)
	if strings.Contains(out, "*") || strings.Contains(out, "_") || strings.Contains(out, "#") {
		t.Errorf("expected formatting stripped, got %q", out)
	}
	if !strings.Contains(out, "Title") || !strings.Contains(out, "bold") || !strings.Contains(out, "link") {
		t.Errorf("expected text content preserved, got %q", out)
	}
}

func TestPlainTextIncludesCodeBlockContent(t *testing.T) {
	in := "before\n\n```go\nfmt.Println(\"hi\")\n```\n\nafter"
	out := PlainText(in)
	if !strings.Contains(out, "fmt.Println") {
		t.Errorf("expected fenced code content in plain text, got %q", out)
	}
}

func TestPreviewTruncatesLongInput(t *testing.T) {
	in := strings.Repeat("word ", 200)
	out := Preview(in)
	if len([]rune(out)) > MaxPreviewRunes+1 {
		t.Errorf("expected preview capped near %d runes, got %d", MaxPreviewRunes, len([]rune(out)))
	}
	if !strings.HasSuffix(out, "…") {
		t.Errorf("expected truncated preview to end with ellipsis, got %q", out)
	}
}

func TestPreviewShortInputUnchanged(t *testing.T) {
	in := "short description"
	if got := Preview(in); got != in {
		t.Errorf("expected short input unchanged, got %q", got)
	}
}
