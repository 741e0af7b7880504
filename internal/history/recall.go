// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

// Recall walks a list of prompts for Up/Down navigation in an input box.
// Position -1 is the draft the user was typing before navigating.
type Recall struct {
	items []string // newest first
	pos   int
	draft string
}

// NewRecall creates a cursor over items, newest first.
func NewRecall(items []string) *Recall {
	return &Recall{items: items, pos: -1}
}

// Push records a newly submitted prompt and resets the cursor.
func (r *Recall) Push(prompt string) {
	if prompt == "" {
		return
	}
	if len(r.items) == 0 || r.items[0] != prompt {
		r.items = append([]string{prompt}, r.items...)
	}
	r.Reset()
}

// Reset returns to the draft position.
func (r *Recall) Reset() {
	r.pos = -1
	r.draft = ""
}

// Prev moves to an older prompt. current is the input's text, saved as the
// draft when leaving it. ok is false at the oldest entry.
func (r *Recall) Prev(current string) (string, bool) {
	if r.pos+1 >= len(r.items) {
		return current, false
	}
	if r.pos == -1 {
		r.draft = current
	}
	r.pos++
	return r.items[r.pos], true
}

// Next moves to a newer prompt, ending at the saved draft.
func (r *Recall) Next() (string, bool) {
	if r.pos < 0 {
		return "", false
	}
	r.pos--
	if r.pos == -1 {
		return r.draft, true
	}
	return r.items[r.pos], true
}

// Len returns the number of prompts.
func (r *Recall) Len() int {
	return len(r.items)
}

// Texts extracts the prompt texts from entries.
func Texts(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}
