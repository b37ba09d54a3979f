package handlers

import (
	"bytes"
	"html/template"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

// MarkdownRenderer turns assistant replies into HTML. Raw HTML inside a reply
// is dropped by goldmark's default renderer, so the output is safe to embed.
type MarkdownRenderer struct {
	md goldmark.Markdown
}

func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (m *MarkdownRenderer) Render(source string) template.HTML {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(source), &buf); err != nil {
		logger.Error("Failed to render markdown", zap.Error(err))
		return template.HTML("<p>" + template.HTMLEscapeString(source) + "</p>")
	}
	return template.HTML(buf.String())
}
