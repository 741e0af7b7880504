// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sagechat-tui/internal/api"
	"github.com/jeranaias/sagechat-tui/internal/auth"
	"github.com/jeranaias/sagechat-tui/internal/config"
	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

type backend struct {
	t *testing.T

	mu       sync.Mutex
	credits  int
	convs    []model.ConversationSummary
	prompts  []string
	sentConv []string
	renamed  map[string]string
	deleted  []string
	created  []model.ConversationContext
	saved    []map[string][]string
	payments bool
	// override answers every request when set.
	override http.HandlerFunc
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	b := &backend{
		t:        t,
		credits:  5,
		payments: true,
		renamed:  map[string]string{},
		convs: []model.ConversationSummary{
			{ID: "c2", Title: "Lighthouse"},
			{ID: "c1", Title: ""},
		},
	}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.override != nil {
		b.override(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, api.APIPrefix)
	if path == "/config" {
		writeJSON(w, model.AppConfig{
			AIModelName:        "sage-1",
			StripeConfigured:   b.payments,
			CreditsPerPurchase: 50,
			AuthURL:            "https://auth.example.com",
		})
		return
	}
	if r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail": "Not authenticated"}`)
		return
	}

	switch {
	case path == "/user/me":
		writeJSON(w, model.Profile{UserID: "u1", Email: "ada@example.com", Credits: b.credits})

	case path == "/conversations" && r.Method == http.MethodGet:
		writeJSON(w, b.convs)

	case path == "/conversations" && r.Method == http.MethodPost:
		var body struct {
			Context model.ConversationContext `json:"context"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.created = append(b.created, body.Context)
		writeJSON(w, map[string]any{"id": "c9", "title": "", "messages": []any{}})

	case path == "/chat/message":
		require.NoError(b.t, r.ParseForm())
		b.prompts = append(b.prompts, r.PostForm.Get("prompt"))
		b.sentConv = append(b.sentConv, r.PostForm.Get("conversation_id"))
		b.credits--
		w.Header().Set(api.HeaderConversationID, "c7")
		w.Header().Set(api.HeaderConversationTitle, "Story time")
		w.Header().Set(api.HeaderUserCredits, fmt.Sprint(b.credits))
		_, _ = io.WriteString(w, "Once upon a time")
		_, _ = io.WriteString(w, `<!-- PAYLOAD:{"userMessageId":"m1","aiMessageId":"m2","conversationId":"c7"} -->`)

	case path == "/chat/setup/save" && r.Method == http.MethodPost:
		require.NoError(b.t, r.ParseForm())
		if r.PostForm.Get("conversation_id") != "c2" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail": "Conversation not found for update."}`)
			return
		}
		b.saved = append(b.saved, r.PostForm)
		w.WriteHeader(http.StatusNoContent)

	case path == "/payments/create-checkout-session":
		writeJSON(w, map[string]string{"checkout_url": "https://pay.example.com/session"})

	case strings.HasPrefix(path, "/conversations/"):
		id := strings.TrimPrefix(path, "/conversations/")
		switch r.Method {
		case http.MethodGet:
			if id != "c2" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"detail": "Conversation not found"}`)
				return
			}
			writeJSON(w, map[string]any{
				"id":      "c2",
				"title":   "Lighthouse",
				"context": map[string]string{"goal": "a ghost story"},
				"messages": []map[string]string{
					{"id": "m1", "role": "user", "content": "Describe the lighthouse"},
					{"id": "m2", "role": "assistant", "content": "It leans into the wind."},
				},
			})
		case http.MethodPut:
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			b.renamed[id] = body["title"]
			writeJSON(w, map[string]string{"status": "ok"})
		case http.MethodDelete:
			b.deleted = append(b.deleted, id)
			w.WriteHeader(http.StatusNoContent)
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// HARNESS
// =============================================================================

type result struct {
	out string
	err string
}

// setupEnv points sagechat at srv with an isolated home directory.
func setupEnv(t *testing.T, srv *httptest.Server, token string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("SAGECHAT_HOME", home)
	t.Setenv("SAGECHAT_SERVER_URL", srv.URL)
	t.Setenv("SAGECHAT_TOKEN", token)
	t.Setenv("SAGECHAT_RATE_LIMIT", "0")
	t.Cleanup(config.ResetGlobalForTesting)
	return home
}

func execute(t *testing.T, stdin string, args ...string) (result, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(BuildInfo{Version: "test", Commit: "abc", Date: "today"}, nil)
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())
	return result{out: out.String(), err: errOut.String()}, err
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_RawStreamsReply(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "", "ask", "--raw", "Tell", "me", "a", "story")
	require.NoError(t, err)

	assert.Equal(t, "Once upon a time\n", res.out)
	assert.Contains(t, res.err, "conversation c7 (Story time)")
	assert.Contains(t, res.err, "credits 4")
	assert.Equal(t, []string{"Tell me a story"}, b.prompts)
	assert.Equal(t, []string{""}, b.sentConv, "a fresh ask starts a new conversation")
}

func TestAsk_PromptFromStdin(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "  Name three guilds \n", "ask", "--raw", "-")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Once upon a time")
	assert.Equal(t, []string{"Name three guilds"}, b.prompts)
}

func TestAsk_ContinueUsesLatestConversation(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	_, err := execute(t, "", "ask", "--raw", "--continue", "and then?")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, b.sentConv)
}

func TestAsk_RenderedOutputHasNoMarker(t *testing.T) {
	_, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "", "ask", "hello")
	require.NoError(t, err)
	plain := ansi.Strip(res.out)
	assert.Contains(t, plain, "Once upon a time")
	assert.NotContains(t, plain, "PAYLOAD")
}

func TestAsk_LoggedOut(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "")

	res, err := execute(t, "", "ask", "hello")
	require.Error(t, err)
	assert.Empty(t, ErrorMessage(err), "the login notice was already printed")
	assert.Contains(t, res.err, "log in")
	assert.Empty(t, b.prompts)
}

func TestAsk_OutOfCredits(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "tok")
	b.override = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"detail": "Payment Required: Insufficient credits."}`)
	}

	_, err := execute(t, "", "ask", "hello")
	require.Error(t, err)
	assert.Contains(t, ErrorMessage(err), "out of credits")
}

func TestReadPrompt(t *testing.T) {
	p, err := readPrompt(strings.NewReader("ignored"), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "a b", p)

	p, err = readPrompt(strings.NewReader(" piped\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "piped", p)

	_, err = readPrompt(strings.NewReader("   "), []string{"-"})
	require.Error(t, err)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestConversations_List(t *testing.T) {
	_, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "", "conversations", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(res.out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "TITLE")
	assert.Contains(t, lines[1], "c2")
	assert.Contains(t, lines[1], "Lighthouse")
	assert.Contains(t, lines[2], "Untitled")
}

func TestConversations_ListLoggedOut(t *testing.T) {
	_, srv := newBackend(t)
	setupEnv(t, srv, "")

	_, err := execute(t, "", "conversations", "list")
	require.ErrorIs(t, err, auth.ErrNoToken)
	assert.Contains(t, ErrorMessage(err), "log in")
}

func TestConversations_Show(t *testing.T) {
	_, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "", "conversations", "show", "--raw", "c2")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Lighthouse")
	assert.Contains(t, res.out, "a ghost story")
	assert.Contains(t, res.out, "Describe the lighthouse")
	assert.Contains(t, res.out, "It leans into the wind.")
}

func TestConversations_ExportToStdout(t *testing.T) {
	_, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "", "conversations", "export", "c2", "-f", "json", "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, res.out, `"id": "c2"`)
	assert.Contains(t, res.out, "It leans into the wind.")
}

func TestConversations_ExportToFile(t *testing.T) {
	_, srv := newBackend(t)
	setupEnv(t, srv, "tok")
	dir := t.TempDir()

	res, err := execute(t, "", "conversations", "export", "c2", "--output", dir)
	require.NoError(t, err)
	assert.Contains(t, res.out, "Exported to")

	data, err := os.ReadFile(filepath.Join(dir, "Lighthouse_c2.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Lighthouse")

	_, err = execute(t, "", "conversations", "export", "c2", "-f", "pdf")
	require.Error(t, err)
}

func TestConversations_ShowMissing(t *testing.T) {
	_, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	_, err := execute(t, "", "conversations", "show", "nope")
	require.ErrorIs(t, err, api.ErrNotFound)
}

func TestConversations_NewWithContext(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "", "conversations", "new", "--goal", "heist", "--game-system", "Blades")
	require.NoError(t, err)
	assert.Contains(t, res.out, "c9")
	require.Len(t, b.created, 1)
	assert.Equal(t, model.ConversationContext{"goal": "heist", "game_system": "Blades"}, b.created[0])
}

func TestConversations_ContextShow(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "", "conversations", "context", "c2")
	require.NoError(t, err)
	out := ansi.Strip(res.out)
	assert.Contains(t, out, "goal")
	assert.Contains(t, out, "a ghost story")
	assert.Empty(t, b.saved, "showing context must not save")
}

func TestConversations_ContextMergesFlags(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "", "conversations", "context", "c2", "--genre-tone", "gothic", "--key-details", "the keeper drowned")
	require.NoError(t, err)
	assert.Contains(t, ansi.Strip(res.out), "Context saved.")

	require.Len(t, b.saved, 1)
	form := b.saved[0]
	assert.Equal(t, []string{"a ghost story"}, form["goal"], "unchanged keys are kept")
	assert.Equal(t, []string{"gothic"}, form["genre_tone"])
	assert.Equal(t, []string{"the keeper drowned"}, form["key_details"])
	assert.NotContains(t, form, "game_system")
}

func TestConversations_ContextClearsKeys(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	_, err := execute(t, "", "conversations", "context", "c2", "--goal", "")
	require.NoError(t, err)
	require.Len(t, b.saved, 1)
	assert.NotContains(t, b.saved[0], "goal")

	_, err = execute(t, "", "conversations", "context", "c2", "--clear", "--game-system", "Mothership")
	require.NoError(t, err)
	require.Len(t, b.saved, 2)
	assert.NotContains(t, b.saved[1], "goal")
	assert.Equal(t, []string{"Mothership"}, b.saved[1]["game_system"])
}

func TestConversations_ContextMissing(t *testing.T) {
	_, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	_, err := execute(t, "", "conversations", "context", "nope", "--goal", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestConversations_Rename(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	_, err := execute(t, "", "conversations", "rename", "c2", "The", "Drowned", "Light")
	require.NoError(t, err)
	assert.Equal(t, "The Drowned Light", b.renamed["c2"])
}

func TestConversations_DeleteConfirm(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "n\n", "conversations", "delete", "c2")
	require.NoError(t, err)
	assert.Contains(t, res.err, "cancelled")
	assert.Empty(t, b.deleted)

	_, err = execute(t, "y\n", "conversations", "delete", "c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, b.deleted)

	_, err = execute(t, "", "conversations", "rm", "--yes", "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c1"}, b.deleted)
}

// =============================================================================
// ACCOUNT
// =============================================================================

func TestCredits(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "", "credits")
	require.NoError(t, err)
	assert.Contains(t, res.out, "5")

	b.mu.Lock()
	b.credits = 0
	b.mu.Unlock()
	res, err = execute(t, "", "credits")
	require.NoError(t, err)
	assert.Contains(t, res.out, "out of credits")
}

func TestBuy(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "", "buy")
	require.NoError(t, err)
	assert.Contains(t, res.out, "https://pay.example.com/session")
	assert.Contains(t, res.out, "50 credits")

	b.mu.Lock()
	b.payments = false
	b.mu.Unlock()
	_, err = execute(t, "", "buy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available")
}

func TestLoginAndLogout(t *testing.T) {
	_, srv := newBackend(t)
	home := setupEnv(t, srv, "")
	tokenFile := filepath.Join(home, "token")

	_, err := execute(t, "", "login", "--token", "bad")
	require.Error(t, err)
	assert.NoFileExists(t, tokenFile)

	res, err := execute(t, "tok\n", "login")
	require.NoError(t, err)
	assert.Contains(t, res.err, "https://auth.example.com/login")
	assert.Contains(t, res.out, "ada@example.com")
	data, err := os.ReadFile(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "tok\n", string(data))

	res, err = execute(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, res.out, "u1")

	res, err = execute(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, res.out, "https://auth.example.com/logout")
	assert.NoFileExists(t, tokenFile)
}

// =============================================================================
// CONFIG AND HISTORY
// =============================================================================

func TestConfig_SetGetPath(t *testing.T) {
	_, srv := newBackend(t)
	home := setupEnv(t, srv, "tok")

	res, err := execute(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.toml"), strings.TrimSpace(res.out))

	_, err = execute(t, "", "config", "set", "ui.theme", "light")
	require.NoError(t, err)
	res, err = execute(t, "", "config", "get", "ui.theme")
	require.NoError(t, err)
	assert.Equal(t, "light", strings.TrimSpace(res.out))

	// The server URL came from the environment and must not be persisted.
	data, err := os.ReadFile(filepath.Join(home, "config.toml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), srv.URL)

	_, err = execute(t, "", "config", "set", "ui.theme", "neon")
	require.Error(t, err)
}

func TestConfig_ShowRedactsToken(t *testing.T) {
	_, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, res.out, "base_url")
	assert.NotContains(t, res.out, "tok\"")
}

func TestFlagsOverrideConfig(t *testing.T) {
	_, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "", "--theme", "dark", "config", "get", "ui.theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", strings.TrimSpace(res.out))

	_, err = execute(t, "", "--server", "not a url", "credits")
	require.Error(t, err)
}

func TestHistory_RecordsAskPrompts(t *testing.T) {
	_, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	_, err := execute(t, "", "ask", "--raw", "the lighthouse keeper")
	require.NoError(t, err)
	_, err = execute(t, "", "ask", "--raw", "a smugglers cove")
	require.NoError(t, err)

	res, err := execute(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, res.out, "the lighthouse keeper")
	assert.Contains(t, res.out, "a smugglers cove")

	res, err = execute(t, "", "history", "lighthouse")
	require.NoError(t, err)
	assert.Contains(t, res.out, "the lighthouse keeper")
	assert.NotContains(t, res.out, "smugglers")

	res, err = execute(t, "", "history", "clear")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Cleared 2")
}

// =============================================================================
// REPL
// =============================================================================

func TestChat_REPL(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	script := strings.Join([]string{
		"/list",
		"first line",
		"/rename Night Shift",
		"/context genre_tone=gothic",
		"/credits",
		"/bogus",
		"/quit",
	}, "\n") + "\n"
	res, err := execute(t, script, "chat")
	require.NoError(t, err)

	// Opens the latest conversation, then sends into it.
	assert.Contains(t, res.out, "It leans into the wind.")
	assert.Contains(t, res.out, "Once upon a time")
	assert.Equal(t, []string{"first line"}, b.prompts)
	assert.Equal(t, []string{"c2"}, b.sentConv)
	assert.Equal(t, "Night Shift", b.renamed["c2"])
	assert.Contains(t, res.err, "Renamed to Night Shift")
	require.Len(t, b.saved, 1)
	assert.Equal(t, []string{"a ghost story"}, b.saved[0]["goal"])
	assert.Equal(t, []string{"gothic"}, b.saved[0]["genre_tone"])
	assert.Contains(t, res.err, "Context saved: goal=a ghost story, genre_tone=gothic")
	assert.Contains(t, res.out, "Credits")
	assert.Contains(t, res.err, "unknown command /bogus")
	assert.Contains(t, res.err, "1 turns")
}

func TestChat_REPLNewWithContextAndEOF(t *testing.T) {
	b, srv := newBackend(t)
	setupEnv(t, srv, "tok")

	res, err := execute(t, "/new goal=find the map genre_tone=noir\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Started a new conversation.")
	require.Len(t, b.created, 1)
	assert.Equal(t, "find the map", b.created[0]["goal"])
	assert.Equal(t, "noir", b.created[0]["genre_tone"])
}

func TestChat_REPLLoggedOut(t *testing.T) {
	_, srv := newBackend(t)
	setupEnv(t, srv, "")

	res, err := execute(t, "hello\n", "chat")
	require.Error(t, err)
	assert.Empty(t, ErrorMessage(err))
	assert.Contains(t, res.err, "log in")
}

// =============================================================================
// PRINTERS
// =============================================================================

func TestStreamPrinter_PrintsOnlyNewText(t *testing.T) {
	var out bytes.Buffer
	p := newStreamPrinter(&out)
	tr := transcript.New(transcript.WithOnChange(p.OnChange))
	p.Attach(tr)

	tr.RenderMessage(model.RoleAssistant, "old reply", "a0", nil, -1)
	p.Begin()
	tr.RenderMessage(model.RoleUser, "question", model.NoID, nil, -1)
	e := tr.RenderPlaceholder()
	e.SetContent("Hel")
	e.SetContent("Hello")
	e.SetContent("Hello, world")
	assert.True(t, p.End())

	assert.Equal(t, "Hello, world\n", out.String())

	// Nothing prints once ended.
	e.SetContent("Hello, world!")
	assert.Equal(t, "Hello, world\n", out.String())
}

func TestConsoleView_DropsRepeatedNotices(t *testing.T) {
	var out bytes.Buffer
	v := newConsoleView(&out)
	v.Notify("one")
	v.Notify("one")
	v.Notify("two")
	assert.Equal(t, "one\ntwo\n", out.String())

	v.SetCredits(3)
	n, ok := v.Credits()
	assert.True(t, ok)
	assert.Equal(t, 3, n)
}

func TestReverse(t *testing.T) {
	assert.Equal(t, []string{"c", "b", "a"}, reverse([]string{"a", "b", "c"}))
	assert.Empty(t, reverse(nil))
}
