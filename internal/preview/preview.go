// ABOUTME: Rendering helpers for public share previews
// ABOUTME: Markdown to HTML via goldmark, plus rune-aware truncation for listings

package preview

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
)

// Render converts story text to HTML. Stories may carry light markdown;
// goldmark's default renderer drops raw HTML, so untrusted story text
// cannot smuggle markup into a share page.
func Render(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// Truncate shortens s to at most max runes, appending an ellipsis when
// anything was cut
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return strings.TrimRight(string(runes[:max-1]), " \t\n") + "…"
}
