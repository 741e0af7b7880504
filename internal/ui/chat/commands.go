// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/sagechat-tui/internal/model"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// Command is a slash command typed into the input line.
type Command struct {
	Name  string
	Args  string
	Usage string
	run   func(m Model, args string) (Model, tea.Cmd)
}

const (
	usageRename  = "/rename <title>"
	usageContext = "/context key=value ...  edit the story context (key= clears a key)"
)

var commands = map[string]Command{
	"new": {
		Usage: "/new [goal=... genre_tone=... game_system=... key_details=...]",
		run:   cmdNew,
	},
	"rename": {
		Usage: usageRename,
		run:   cmdRename,
	},
	"context": {
		Usage: usageContext,
		run:   cmdContext,
	},
	"delete": {
		Usage: "/delete  delete the current conversation",
		run:   cmdDelete,
	},
	"credits": {
		Usage: "/credits  refresh the credit balance",
		run:   cmdCredits,
	},
	"sidebar": {
		Usage: "/sidebar  toggle fullscreen with the conversation list",
		run: func(m Model, _ string) (Model, tea.Cmd) {
			next, cmd := m.toggleFullscreen()
			return next.(Model), cmd
		},
	},
	"help": {
		Usage: "/help",
		run: func(m Model, _ string) (Model, tea.Cmd) {
			m.showHelp = true
			return m, nil
		},
	},
	"quit": {
		Usage: "/quit",
		run: func(m Model, _ string) (Model, tea.Cmd) {
			m.ctrl.Cancel()
			m.quitting = true
			return m, tea.Quit
		},
	},
}

// CommandUsage lists every command's usage line, sorted by name.
func CommandUsage() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, commands[n].Usage)
	}
	return out
}

// ParseCommand splits "/name args" into its parts. ok is false when text is
// not a slash command.
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{}, false
	}
	name, args, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	return Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}, true
}

// ParseContext parses "key=value" pairs for /new. A value runs until the
// next known key, so values may contain spaces. Unknown keys are returned
// in bad.
func ParseContext(args string) (ctx model.ConversationContext, bad []string) {
	return parseContext(args, false)
}

// ParseContextUpdate is ParseContext for /context, where "key=" with no
// value is kept as "" so the key is cleared.
func ParseContextUpdate(args string) (ctx model.ConversationContext, bad []string) {
	return parseContext(args, true)
}

func parseContext(args string, keepEmpty bool) (ctx model.ConversationContext, bad []string) {
	known := make(map[string]bool, len(model.ContextKeys))
	for _, k := range model.ContextKeys {
		known[k] = true
	}

	ctx = model.ConversationContext{}
	var current string
	for _, word := range strings.Fields(args) {
		if k, v, found := strings.Cut(word, "="); found {
			k = strings.ToLower(k)
			if known[k] {
				current = k
				ctx[k] = v
				continue
			}
			if current == "" {
				bad = append(bad, k)
				continue
			}
		}
		if current == "" {
			bad = append(bad, word)
			continue
		}
		if ctx[current] == "" {
			ctx[current] = word
		} else {
			ctx[current] += " " + word
		}
	}
	for k, v := range ctx {
		if v = strings.TrimSpace(v); v == "" && !keepEmpty {
			delete(ctx, k)
		} else {
			ctx[k] = v
		}
	}
	return ctx, bad
}

func (m Model) runCommand(text string) (tea.Model, tea.Cmd) {
	parsed, _ := ParseCommand(text)
	c, ok := commands[parsed.Name]
	if !ok {
		m.bridge.Notify("Unknown command /" + parsed.Name + ". Try /help.")
		return m, nil
	}
	next, cmd := c.run(m, parsed.Args)
	return next, cmd
}

func cmdNew(m Model, args string) (Model, tea.Cmd) {
	setup, bad := ParseContext(args)
	if len(bad) > 0 {
		m.bridge.Notify("Unknown context: " + strings.Join(bad, ", ") + ". Use " + strings.Join(model.ContextKeys, ", ") + ".")
		return m, nil
	}
	return m, m.call("new", func(ctx context.Context, c Controller) error {
		return c.StartNewConversation(ctx, setup)
	})
}

func cmdRename(m Model, args string) (Model, tea.Cmd) {
	id := m.ctrl.ConversationID()
	if id.IsZero() {
		m.bridge.Notify("Nothing to rename yet. Send a message first.")
		return m, nil
	}
	if args == "" {
		m.bridge.Notify("Usage: " + usageRename)
		return m, nil
	}
	return m, m.call("rename", func(ctx context.Context, c Controller) error {
		return c.RenameConversation(ctx, id, args)
	})
}

func cmdContext(m Model, args string) (Model, tea.Cmd) {
	if m.ctrl.ConversationID().IsZero() {
		m.bridge.Notify("No conversation is open. Send a message or use /new first.")
		return m, nil
	}
	updates, bad := ParseContextUpdate(args)
	if len(bad) > 0 {
		m.bridge.Notify("Unknown context: " + strings.Join(bad, ", ") + ". Use " + strings.Join(model.ContextKeys, ", ") + ".")
		return m, nil
	}
	if len(updates) == 0 {
		m.bridge.Notify("Usage: " + usageContext)
		return m, nil
	}
	return m, m.call("context", func(ctx context.Context, c Controller) error {
		return c.UpdateContext(ctx, updates)
	})
}

func cmdDelete(m Model, _ string) (Model, tea.Cmd) {
	id := m.ctrl.ConversationID()
	if id.IsZero() {
		m.bridge.Notify("No conversation is open.")
		return m, nil
	}
	return m, m.call("delete", func(ctx context.Context, c Controller) error {
		return c.DeleteConversation(ctx, id)
	})
}

func cmdCredits(m Model, _ string) (Model, tea.Cmd) {
	return m, m.call("credits", func(ctx context.Context, c Controller) error {
		c.FetchAndUpdateCredits(ctx)
		return nil
	})
}

// call runs fn against the controller off the Update goroutine.
func (m Model) call(op string, fn func(ctx context.Context, c Controller) error) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx, ctrl)}
	}
}
