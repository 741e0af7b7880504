// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a conversation to Markdown format.
func (e *MarkdownExporter) Export(conv *model.Conversation) ([]byte, error) {
	if err := checkConversation(conv); err != nil {
		return nil, err
	}

	var sb strings.Builder

	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "title: %s\n", escapeYAML(title(conv)))
	fmt.Fprintf(&sb, "id: %s\n", escapeYAML(conv.ID.String()))
	fmt.Fprintf(&sb, "messages: %d\n", len(conv.Messages))
	sb.WriteString("generator: sagechat\n")
	sb.WriteString("---\n\n")

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(title(conv)))

	if pairs := contextPairs(conv); e.options.IncludeContext && len(pairs) > 0 {
		for _, p := range pairs {
			fmt.Fprintf(&sb, "- **%s**: %s\n", p[0], escapeMarkdown(p[1]))
		}
		sb.WriteString("\n---\n\n")
	}

	for i, msg := range conv.Messages {
		if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", msg.Role.DisplayName(), formatTimestamp(msg))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", msg.Role.DisplayName())
		}
		sb.WriteString(strings.TrimSpace(transcript.Escape(msg.Content)))
		sb.WriteString("\n\n")
		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// contextPairs returns the setup context with the known keys first, in
// display order, then any others sorted by key.
func contextPairs(conv *model.Conversation) [][2]string {
	var pairs [][2]string
	seen := make(map[string]bool, len(conv.Context))
	for _, k := range model.ContextKeys {
		seen[k] = true
		if v := strings.TrimSpace(conv.Context[k]); v != "" {
			pairs = append(pairs, [2]string{k, v})
		}
	}
	var extra []string
	for k := range conv.Context {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		if v := strings.TrimSpace(conv.Context[k]); v != "" {
			pairs = append(pairs, [2]string{k, v})
		}
	}
	return pairs
}

func formatTimestamp(m model.Message) string {
	return m.Timestamp.Local().Format("2006-01-02 15:04")
}

// escapeMarkdown escapes characters that would break a heading or list item.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		"#", "\\#",
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
		"\n", " ",
	)
	return r.Replace(s)
}

// escapeYAML quotes values that would otherwise change the frontmatter's
// structure.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		r := strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\n", "\r", "\\r")
		return "\"" + r.Replace(s) + "\""
	}
	return s
}
