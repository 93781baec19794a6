// ABOUTME: Converts report Markdown into a standalone HTML document with goldmark.
// ABOUTME: GFM tables are enabled and raw HTML passes through so backend <details> blocks survive.
package report

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

const htmlStyle = `body{font-family:-apple-system,Helvetica,Arial,sans-serif;max-width:960px;margin:2em auto;padding:0 1em;line-height:1.5}
table{border-collapse:collapse}th,td{border:1px solid #ccc;padding:4px 8px}
blockquote{border-left:4px solid #FFC107;margin:0;padding:0 1em;background:#FFF8E1}
pre,code{background:#f5f5f5}`

func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
}

// MarkdownToHTML converts markdown to an HTML fragment.
func MarkdownToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := newMarkdown().Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}

// ToHTML wraps the converted markdown in a complete HTML page titled title.
func ToHTML(title, markdown string) (string, error) {
	body, err := MarkdownToHTML(markdown)
	if err != nil {
		return "", err
	}
	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	fmt.Fprintf(&b, "<style>%s</style>\n", htmlStyle)
	b.WriteString("</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}
