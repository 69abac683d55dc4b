package web

import (
	"bytes"
	"html/template"
	"log/slog"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Raw HTML in turns is dropped by goldmark's default renderer, so the
// output is safe to mark as template.HTML.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// markdownToHTML renders a turn's Markdown text for display.
func markdownToHTML(logger *slog.Logger, text string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		logger.Warn("markdown conversion failed", "error", err)
		return template.HTML("<p>" + template.HTMLEscapeString(text) + "</p>")
	}
	return template.HTML(buf.String())
}
