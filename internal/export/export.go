// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"

	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a conversation to one output format.
type Exporter interface {
	Export(conv *model.Conversation) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string

	MimeType() string
}

// Format names an output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
)

// Formats lists the accepted format names.
var Formats = []Format{FormatMarkdown, FormatJSON, FormatHTML}

// ErrEmpty is returned for a conversation without messages.
var ErrEmpty = errors.New("conversation has no messages")

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "markdown", "md", "":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", errors.Errorf("unsupported export format %q", s)
	}
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// IncludeContext adds the conversation's setup context.
	IncludeContext bool

	// IncludeTimestamps adds per-message times where the server sent them.
	IncludeTimestamps bool

	// CodeStyle is the chroma style used for HTML code blocks.
	// Default: "monokai"
	CodeStyle string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeContext:    true,
		IncludeTimestamps: true,
		CodeStyle:         "monokai",
	}
}

// New returns the exporter for format.
func New(format Format, opts *Options) (Exporter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	switch format {
	case FormatMarkdown:
		return NewMarkdownExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(), nil
	case FormatHTML:
		return NewHTMLExporter(opts), nil
	default:
		return nil, errors.Errorf("unsupported export format %q", format)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile exports conv into dir under a name derived from its title and id,
// and returns the written path.
func ToFile(conv *model.Conversation, exp Exporter, dir string) (string, error) {
	content, err := exp.Export(conv)
	if err != nil {
		return "", errors.Wrap(err, "export failed")
	}
	if dir == "" {
		dir = "."
	}
	name := fmt.Sprintf("%s_%s%s", sanitizeFilename(conv.Title), sanitizeFilename(conv.ID.String()), exp.FileExtension())
	path := filepath.Join(dir, name)
	if err := util.WriteFileAtomic(path, content, 0644); err != nil {
		return "", errors.Wrap(err, "write export")
	}
	return path, nil
}

// Open hands path to the desktop's default application.
func Open(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", `""`, path)
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", path)
	default:
		return errors.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func checkConversation(conv *model.Conversation) error {
	if conv == nil {
		return errors.New("conversation is nil")
	}
	if len(conv.Messages) == 0 {
		return ErrEmpty
	}
	return nil
}

// title falls back to the placeholder used in the sidebar.
func title(conv *model.Conversation) string {
	if t := strings.TrimSpace(conv.Title); t != "" {
		return t
	}
	return "Untitled"
}

// sanitizeFilename replaces characters that are invalid in file names on
// any platform and limits the length.
func sanitizeFilename(s string) string {
	s = util.TruncateRunes(strings.TrimSpace(s), 50)
	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "conversation"
	}
	return b.String()
}
