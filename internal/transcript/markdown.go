// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
	"github.com/pkg/errors"
)

// MarkdownFunc renders assistant content for the terminal.
type MarkdownFunc func(content string) (string, error)

// PlainMarkdown returns content unchanged apart from escaping. Used in tests
// and when no renderer could be built.
func PlainMarkdown(content string) (string, error) {
	return Escape(content), nil
}

// NewGlamour builds a markdown function wrapping at width. An empty style
// selects glamour's automatic light/dark detection.
func NewGlamour(width int, style string) (MarkdownFunc, error) {
	if width < 20 {
		width = 20
	}
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create markdown renderer")
	}
	return func(content string) (string, error) {
		out, err := r.Render(content)
		if err != nil {
			return "", errors.Wrap(err, "render markdown")
		}
		return strings.Trim(out, "\n"), nil
	}, nil
}

// controlChars matches C0 and C1 control characters other than tab and
// newline.
var controlChars = regexp.MustCompile(`[\x00-\x08\x0b-\x1f\x7f\x{80}-\x{9f}]`)

// Escape makes user-supplied text safe to print: terminal escape sequences
// are removed and CRLF/CR line endings become newlines.
func Escape(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = ansi.Strip(s)
	return controlChars.ReplaceAllString(s, "")
}

// PlainText strips styling from a rendered body.
func PlainText(body string) string {
	return ansi.Strip(body)
}
