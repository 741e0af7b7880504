// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/pkg/errors"

	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page. Fenced code
// blocks are highlighted with chroma; everything else is escaped text.
type HTMLExporter struct {
	options   *Options
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	style := chromaStyles.Get(opts.CodeStyle)
	if style == nil {
		style = chromaStyles.Fallback
	}
	return &HTMLExporter{
		options:   opts,
		style:     style,
		formatter: chromahtml.New(chromahtml.WithClasses(true)),
	}
}

type htmlMessage struct {
	Role      string
	Class     string
	Timestamp string
	Body      template.HTML
}

type htmlPage struct {
	Title    string
	ID       string
	Context  [][2]string
	Messages []htmlMessage
	CodeCSS  template.CSS
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<meta name="generator" content="sagechat">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; color: #1f2a24; background: #f7f9f6; }
header { border-bottom: 1px solid #c9d6cc; margin-bottom: 1.5rem; }
header .id { color: #6b7d71; font-size: 0.85rem; }
dl.context { display: grid; grid-template-columns: max-content 1fr; gap: 0.25rem 1rem; }
dl.context dt { color: #6b7d71; }
.message { margin: 1rem 0; padding: 0.75rem 1rem; border-radius: 6px; }
.message.user { background: #e8eef9; }
.message.assistant { background: #e6f2ea; }
.role { font-weight: 600; }
.time { color: #6b7d71; font-size: 0.8rem; margin-left: 0.5rem; }
pre { padding: 0.75rem; border-radius: 4px; overflow-x: auto; }
{{.CodeCSS}}
</style>
</head>
<body>
<header>
<h1>{{.Title}}</h1>
<div class="id">#{{.ID}}</div>
{{- if .Context}}
<dl class="context">
{{- range .Context}}
<dt>{{index . 0}}</dt><dd>{{index . 1}}</dd>
{{- end}}
</dl>
{{- end}}
</header>
{{- range .Messages}}
<section class="message {{.Class}}">
<div><span class="role">{{.Role}}</span>{{if .Timestamp}}<span class="time">{{.Timestamp}}</span>{{end}}</div>
{{.Body}}
</section>
{{- end}}
</body>
</html>
`))

// Export converts a conversation to HTML format.
func (e *HTMLExporter) Export(conv *model.Conversation) ([]byte, error) {
	if err := checkConversation(conv); err != nil {
		return nil, err
	}

	var css bytes.Buffer
	if err := e.formatter.WriteCSS(&css, e.style); err != nil {
		return nil, errors.Wrap(err, "code style")
	}

	page := htmlPage{
		Title:   title(conv),
		ID:      conv.ID.String(),
		CodeCSS: template.CSS(css.String()),
	}
	if e.options.IncludeContext {
		page.Context = contextPairs(conv)
	}
	for _, msg := range conv.Messages {
		body, err := e.formatContent(msg.Content)
		if err != nil {
			return nil, err
		}
		hm := htmlMessage{
			Role:  msg.Role.DisplayName(),
			Class: string(msg.Role),
			Body:  body,
		}
		if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
			hm.Timestamp = formatTimestamp(msg)
		}
		page.Messages = append(page.Messages, hm)
	}

	var out bytes.Buffer
	if err := pageTemplate.Execute(&out, page); err != nil {
		return nil, errors.Wrap(err, "render page")
	}
	return out.Bytes(), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

var codeFence = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[^\n]*\n(.*?)```")

// formatContent escapes prose into paragraphs and highlights fenced code.
func (e *HTMLExporter) formatContent(content string) (template.HTML, error) {
	content = transcript.Escape(content)

	var sb strings.Builder
	last := 0
	for _, m := range codeFence.FindAllStringSubmatchIndex(content, -1) {
		writeParagraphs(&sb, content[last:m[0]])
		if err := e.highlight(&sb, content[m[2]:m[3]], content[m[4]:m[5]]); err != nil {
			return "", err
		}
		last = m[1]
	}
	writeParagraphs(&sb, content[last:])
	return template.HTML(sb.String()), nil
}

// highlight writes code as a chroma-classed <pre>. Unknown languages are
// guessed from the code, then rendered unhighlighted.
func (e *HTMLExporter) highlight(sb *strings.Builder, lang, code string) error {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return errors.Wrap(err, "tokenise code block")
	}
	if err := e.formatter.Format(sb, e.style, it); err != nil {
		return errors.Wrap(err, "format code block")
	}
	return nil
}

// writeParagraphs splits text on blank lines; single newlines become <br>.
func writeParagraphs(sb *strings.Builder, text string) {
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(strings.ReplaceAll(html.EscapeString(p), "\n", "<br>"))
		sb.WriteString("</p>\n")
	}
}
