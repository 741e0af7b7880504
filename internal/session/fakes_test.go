// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/sagechat-tui/internal/api"
	"github.com/jeranaias/sagechat-tui/internal/auth"
	"github.com/jeranaias/sagechat-tui/internal/logging"
	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
)

// fakeRepo records every call. Zero-value fields give empty successes.
type fakeRepo struct {
	mu sync.Mutex

	convs    []model.ConversationSummary
	listErr  error
	byID     map[model.ID]*model.Conversation
	getErr   error
	created  *model.Conversation
	profile  *model.Profile
	delErr   error
	sendErr  error
	sendFunc func(r api.SendRequest) (*api.StreamResponse, error)
	reply    string

	calls    []string
	sends    []api.SendRequest
	deletes  []model.ID
	delConvs []model.ID
	renames  []string
	saved    []model.ConversationContext
	saveErr  error
	profiles int
}

func (f *fakeRepo) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeRepo) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRepo) sent() []api.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.SendRequest(nil), f.sends...)
}

func (f *fakeRepo) ListConversations(ctx context.Context, token string) ([]model.ConversationSummary, error) {
	f.record("list")
	return f.convs, f.listErr
}

func (f *fakeRepo) GetConversation(ctx context.Context, id model.ID, token string) (*model.Conversation, error) {
	f.record("get")
	if f.getErr != nil {
		return nil, f.getErr
	}
	if conv, ok := f.byID[id]; ok {
		return conv, nil
	}
	return nil, &api.RequestError{Op: "get_conversation", Status: 404}
}

func (f *fakeRepo) CreateConversation(ctx context.Context, token string, setup model.ConversationContext) (*model.Conversation, error) {
	f.record("create")
	return f.created, nil
}

func (f *fakeRepo) RenameConversation(ctx context.Context, id model.ID, title, token string) error {
	f.record("rename")
	f.mu.Lock()
	f.renames = append(f.renames, id.String()+":"+title)
	f.mu.Unlock()
	return nil
}

func (f *fakeRepo) SaveContext(ctx context.Context, id model.ID, setup model.ConversationContext, token string) error {
	f.record("save_context")
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	f.saved = append(f.saved, setup)
	if conv := f.byID[id]; conv != nil {
		conv.Context = setup
	}
	f.mu.Unlock()
	return nil
}

func (f *fakeRepo) DeleteConversation(ctx context.Context, id model.ID, token string) error {
	f.record("delete_conversation")
	return f.delErr
}

func (f *fakeRepo) DeleteMessage(ctx context.Context, conversationID, messageID model.ID, token string) error {
	f.record("delete_message")
	f.mu.Lock()
	f.deletes = append(f.deletes, messageID)
	f.delConvs = append(f.delConvs, conversationID)
	f.mu.Unlock()
	return f.delErr
}

func (f *fakeRepo) SendMessage(ctx context.Context, r api.SendRequest) (*api.StreamResponse, error) {
	f.record("send")
	f.mu.Lock()
	f.sends = append(f.sends, r)
	fn := f.sendFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(r)
	}
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &api.StreamResponse{Body: io.NopCloser(strings.NewReader(f.reply))}, nil
}

func (f *fakeRepo) GetProfile(ctx context.Context, token string) (*model.Profile, error) {
	f.record("profile")
	f.mu.Lock()
	f.profiles++
	f.mu.Unlock()
	if f.profile == nil {
		return nil, &api.RequestError{Op: "get_profile", Status: 500}
	}
	return f.profile, nil
}

// fakeView records what the controller showed.
type fakeView struct {
	mu      sync.Mutex
	enabled bool
	toggles []bool
	cleared int
	credits []int
	titles  []string
	notices []string
}

func (v *fakeView) SetInputEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enabled = enabled
	v.toggles = append(v.toggles, enabled)
}

func (v *fakeView) ClearInput() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cleared++
}

func (v *fakeView) SetCredits(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.credits = append(v.credits, n)
}

func (v *fakeView) SetTitle(title string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.titles = append(v.titles, title)
}

func (v *fakeView) Notify(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, msg)
}

func (v *fakeView) inputEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enabled
}

func (v *fakeView) lastNotice() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.notices) == 0 {
		return ""
	}
	return v.notices[len(v.notices)-1]
}

func newTestController(repo *fakeRepo, token string) (*Controller, *fakeView, *transcript.Transcript) {
	view := &fakeView{}
	tr := transcript.New()
	var src auth.TokenSource = auth.StaticToken(token)
	c := New(repo, src, view, tr, WithLogger(logging.Discard()))
	return c, view, tr
}

func payload(user, ai int) string {
	return fmt.Sprintf("\n<!-- FINAL_PAYLOAD:{\"userMessageId\":%d,\"aiMessageId\":%d} -->", user, ai)
}

func texts(tr *transcript.Transcript) []string {
	var out []string
	for _, e := range tr.Snapshot() {
		out = append(out, e.Content)
	}
	return out
}

func seededConversation() *model.Conversation {
	return &model.Conversation{
		ID:    "c1",
		Title: "Heist",
		Messages: []model.Message{
			{ID: "1", Role: model.RoleUser, Content: "u1"},
			{ID: "2", Role: model.RoleAssistant, Content: "a1"},
			{ID: "3", Role: model.RoleUser, Content: "u2"},
			{ID: "4", Role: model.RoleAssistant, Content: "a2"},
		},
	}
}

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}

func staticToken(tok string) auth.TokenSource {
	return auth.StaticToken(tok)
}

func indexOf(calls []string, name string) int {
	for i, c := range calls {
		if c == name {
			return i
		}
	}
	return len(calls)
}
