// ABOUTME: Tests for share preview rendering and truncation

package preview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Markdown(t *testing.T) {
	html, err := Render("Once there was a **brave** fox.")
	require.NoError(t, err)
	assert.Contains(t, string(html), "<strong>brave</strong>")
	assert.Contains(t, string(html), "<p>")
}

func TestRender_DropsRawHTML(t *testing.T) {
	html, err := Render(`A story with <script>alert("boo")</script> inside.`)
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<script>")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"shorter than max", "short", 10, "short"},
		{"exactly max", "exact", 5, "exact"},
		{"cut with ellipsis", "a longer story text", 10, "a longer…"},
		{"trailing space trimmed before ellipsis", "word and more", 6, "word…"},
		{"multibyte runes", "日本語のおはなし", 4, "日本語…"},
		{"max one", "anything", 1, "…"},
		{"max zero", "anything", 0, ""},
		{"empty input", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.max))
		})
	}
}

func TestTruncate_NeverExceedsMax(t *testing.T) {
	long := strings.Repeat("word ", 50)
	for max := 1; max < 30; max++ {
		got := Truncate(long, max)
		assert.LessOrEqual(t, len([]rune(got)), max)
	}
}
