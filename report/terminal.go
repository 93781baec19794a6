// ABOUTME: TerminalRenderer styles report Markdown for the terminal with glamour.
// ABOUTME: Narratives embedding raw HTML are normalised to pure Markdown first via html-to-markdown.
package report

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/charmbracelet/glamour"
)

var (
	htmlTagRe        = regexp.MustCompile(`(?i)</?(details|summary|div|span|br|p|table|tr|td|th|ul|ol|li|b|strong|em|i|h[1-6])\b[^>]*>`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
)

// ContainsHTML reports whether markdown embeds HTML tags that glamour would
// print literally.
func ContainsHTML(markdown string) bool {
	return htmlTagRe.MatchString(markdown)
}

// NormalizeMarkdown rewrites markdown that embeds HTML as pure Markdown by
// rendering it to HTML and converting back. Plain markdown is returned as is.
func NormalizeMarkdown(markdown string) (string, error) {
	if !ContainsHTML(markdown) {
		return markdown, nil
	}
	h, err := MarkdownToHTML(markdown)
	if err != nil {
		return "", err
	}
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	out, err := conv.ConvertString(h)
	if err != nil {
		return "", fmt.Errorf("convert html to markdown: %w", err)
	}
	out = excessiveLinesRe.ReplaceAllString(out, "\n\n\n")
	return strings.TrimSpace(out) + "\n", nil
}

// TerminalRenderer renders Markdown with a glamour style, caching one glamour
// renderer per wrap width. Safe for concurrent use.
type TerminalRenderer struct {
	style string

	mu    sync.Mutex
	cache map[int]*glamour.TermRenderer
}

// NewTerminalRenderer returns a renderer for a glamour standard style such as
// "dark", "light" or "notty". Empty means "dark".
func NewTerminalRenderer(style string) *TerminalRenderer {
	if style == "" {
		style = "dark"
	}
	return &TerminalRenderer{style: style, cache: make(map[int]*glamour.TermRenderer)}
}

// Render styles markdown wrapped at width. On any failure the raw markdown
// is returned so the report is always visible.
func (t *TerminalRenderer) Render(markdown string, width int) string {
	if width <= 0 {
		width = 80
	}
	normalized, err := NormalizeMarkdown(markdown)
	if err != nil {
		log.Printf("report event=normalize_failed err=%q", err)
		return markdown
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	r, err := t.renderer(width)
	if err != nil {
		log.Printf("report event=glamour_init_failed style=%s err=%q", t.style, err)
		return normalized
	}
	out, err := r.Render(normalized)
	if err != nil {
		log.Printf("report event=glamour_render_failed err=%q", err)
		return normalized
	}
	return out
}

// renderer must be called with t.mu held.
func (t *TerminalRenderer) renderer(width int) (*glamour.TermRenderer, error) {
	if r, ok := t.cache[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(t.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	t.cache[width] = r
	return r, nil
}
