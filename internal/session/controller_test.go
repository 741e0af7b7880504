// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sagechat-tui/internal/api"
	"github.com/jeranaias/sagechat-tui/internal/auth"
	"github.com/jeranaias/sagechat-tui/internal/logging"
	"github.com/jeranaias/sagechat-tui/internal/model"
	"github.com/jeranaias/sagechat-tui/internal/telemetry"
	"github.com/jeranaias/sagechat-tui/internal/transcript"
)

// =============================================================================
// AUTH
// =============================================================================

func TestSubmit_NoTokenMakesNoRequest(t *testing.T) {
	repo := &fakeRepo{}
	c, view, tr := newTestController(repo, "")

	err := c.Submit(context.Background(), "hi")

	assert.ErrorIs(t, err, api.ErrUnauthenticated)
	assert.Equal(t, 0, repo.callCount())
	assert.Equal(t, MsgLogin, view.lastNotice())
	assert.Equal(t, 0, tr.Len())
}

func TestSubmit_EmptyPromptIgnored(t *testing.T) {
	repo := &fakeRepo{}
	c, _, _ := newTestController(repo, "tok")

	assert.ErrorIs(t, c.Submit(context.Background(), "  \n\t"), ErrEmptyPrompt)
	assert.Equal(t, 0, repo.callCount())
}

// =============================================================================
// LOADING
// =============================================================================

func TestLoadLatest_EmptyListShowsPlaceholder(t *testing.T) {
	repo := &fakeRepo{convs: []model.ConversationSummary{}}
	c, _, tr := newTestController(repo, "tok")

	require.NoError(t, c.LoadLatestConversation(context.Background()))

	assert.True(t, c.ConversationID().IsZero())
	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, transcript.KindNotice, snap[0].Kind)
	assert.Equal(t, MsgStart, snap[0].Content)
	assert.Equal(t, Idle, c.State())
}

func TestLoadLatest_LoadsNewest(t *testing.T) {
	repo := &fakeRepo{
		convs: []model.ConversationSummary{{ID: "c1", Title: "Heist"}, {ID: "c0", Title: "Old"}},
		byID:  map[model.ID]*model.Conversation{"c1": seededConversation()},
	}
	c, view, tr := newTestController(repo, "tok")

	require.NoError(t, c.LoadLatestConversation(context.Background()))

	assert.Equal(t, model.ID("c1"), c.ConversationID())
	assert.Equal(t, "Heist", c.Title())
	assert.Equal(t, []string{"u1", "a1", "u2", "a2"}, texts(tr))
	assert.Contains(t, view.titles, "Heist")

	for i, e := range tr.Snapshot() {
		assert.True(t, e.Deletable(), "entry %d has no delete affordance", i)
		assert.Equal(t, i, e.Index)
	}
}

func TestLoadLatest_ListFailureRendersError(t *testing.T) {
	repo := &fakeRepo{listErr: &api.RequestError{Op: "list_conversations", Status: 500, Detail: "boom"}}
	c, _, tr := newTestController(repo, "tok")

	require.Error(t, c.LoadLatestConversation(context.Background()))

	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, transcript.KindError, snap[0].Kind)
	assert.Contains(t, snap[0].Content, "boom")
}

func TestLoadAndDisplay_NotFoundFallsBackToPlaceholder(t *testing.T) {
	repo := &fakeRepo{byID: map[model.ID]*model.Conversation{}}
	c, _, tr := newTestController(repo, "tok")
	c.bind("gone", "Gone")

	require.NoError(t, c.LoadAndDisplayConversation(context.Background(), "gone"))

	assert.True(t, c.ConversationID().IsZero())
	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, transcript.KindNotice, snap[0].Kind)
}

func TestLoadAndDisplay_NilResets(t *testing.T) {
	repo := &fakeRepo{byID: map[model.ID]*model.Conversation{"c1": seededConversation()}}
	c, _, tr := newTestController(repo, "tok")
	require.NoError(t, c.LoadAndDisplayConversation(context.Background(), "c1"))

	require.NoError(t, c.LoadAndDisplayConversation(context.Background(), model.NoID))

	assert.True(t, c.ConversationID().IsZero())
	assert.False(t, tr.HasMessages())
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_StreamsAndBindsIDs(t *testing.T) {
	repo := &fakeRepo{
		reply:   "Hello world" + payload(11, 12),
		profile: &model.Profile{Credits: 9},
	}
	c, view, tr := newTestController(repo, "tok")
	c.bind("c1", "Heist")

	require.NoError(t, c.Submit(context.Background(), "  tell me  "))

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "tell me", snap[0].Content)
	assert.Equal(t, model.ID("11"), snap[0].ID)
	assert.Equal(t, "Hello world", snap[1].Content)
	assert.Equal(t, model.ID("12"), snap[1].ID)
	assert.True(t, snap[0].Deletable())
	assert.True(t, snap[1].Deletable())

	sends := repo.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, model.ID("c1"), sends[0].ConversationID)

	assert.Equal(t, 1, view.cleared)
	assert.Equal(t, []int{9}, view.credits)
	assert.True(t, view.inputEnabled())
	assert.Equal(t, []bool{false, true}, view.toggles)
}

func TestSubmit_WithoutPayloadKeepsProvisionalIDs(t *testing.T) {
	repo := &fakeRepo{reply: "just text"}
	c, _, tr := newTestController(repo, "tok")
	c.bind("c1", "")

	require.NoError(t, c.Submit(context.Background(), "hi"))

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.True(t, snap[0].ID.IsZero())
	assert.True(t, snap[1].ID.IsZero())
	assert.Equal(t, "just text", snap[1].Content)
}

func TestSubmit_NewConversationFromPayload(t *testing.T) {
	repo := &fakeRepo{sendFunc: func(r api.SendRequest) (*api.StreamResponse, error) {
		body := "Hi" + "<!--PAYLOAD:{\"userMessageId\":1,\"aiMessageId\":2,\"conversationId\":77}-->"
		return &api.StreamResponse{Body: io.NopCloser(stringsReader(body)), ConversationID: "99"}, nil
	}}
	c, _, _ := newTestController(repo, "tok")

	require.NoError(t, c.Submit(context.Background(), "Start the adventure in a tavern"))

	assert.Equal(t, model.ID("77"), c.ConversationID())
	assert.Equal(t, "Start the adventure in a tavern", c.Title())
	assert.True(t, repo.sent()[0].ConversationID.IsZero())
}

func TestSubmit_NewConversationFromHeader(t *testing.T) {
	repo := &fakeRepo{sendFunc: func(r api.SendRequest) (*api.StreamResponse, error) {
		return &api.StreamResponse{
			Body:              io.NopCloser(stringsReader("Hi" + payload(1, 2))),
			ConversationID:    "99",
			ConversationTitle: "Tavern",
		}, nil
	}}
	c, _, _ := newTestController(repo, "tok")

	require.NoError(t, c.Submit(context.Background(), "hello"))

	assert.Equal(t, model.ID("99"), c.ConversationID())
	assert.Equal(t, "Tavern", c.Title())
}

func TestSubmit_CreditsFromHeader(t *testing.T) {
	credits := 3
	repo := &fakeRepo{sendFunc: func(r api.SendRequest) (*api.StreamResponse, error) {
		return &api.StreamResponse{Body: io.NopCloser(stringsReader("ok" + payload(1, 2))), Credits: &credits}, nil
	}}
	c, view, _ := newTestController(repo, "tok")
	c.bind("c1", "")

	require.NoError(t, c.Submit(context.Background(), "hi"))

	assert.Equal(t, []int{3}, view.credits)
	assert.Equal(t, 0, repo.profiles)
	n, ok := c.Credits()
	assert.True(t, ok)
	assert.Equal(t, 3, n)
}

func TestSubmit_PaymentRequiredShownInPlaceholder(t *testing.T) {
	repo := &fakeRepo{sendErr: &api.RequestError{Op: "send_message", Status: 402, Detail: "Payment Required"}}
	c, view, tr := newTestController(repo, "tok")

	err := c.Submit(context.Background(), "hi")
	require.Error(t, err)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, MsgNoCredits, snap[1].Err)
	assert.False(t, snap[1].Pending)
	assert.True(t, view.inputEnabled())
	assert.Equal(t, 0, view.cleared)
	assert.Equal(t, Idle, c.State())
}

func TestSubmit_SecondSubmitWhileStreamingIsNoop(t *testing.T) {
	pr, pw := io.Pipe()
	repo := &fakeRepo{sendFunc: func(r api.SendRequest) (*api.StreamResponse, error) {
		return &api.StreamResponse{Body: pr}, nil
	}}
	c, view, _ := newTestController(repo, "tok")
	c.bind("c1", "")

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "first") }()
	require.Eventually(t, func() bool { return c.State() == Streaming }, time.Second, time.Millisecond)
	assert.False(t, view.inputEnabled())

	assert.ErrorIs(t, c.Submit(context.Background(), "second"), ErrBusy)
	assert.ErrorIs(t, c.DeleteFromIndex(context.Background(), 0), ErrProvisional)
	assert.Len(t, repo.sent(), 1)

	_, _ = pw.Write([]byte("reply" + payload(5, 6)))
	_ = pw.Close()
	require.NoError(t, <-done)
	assert.True(t, view.inputEnabled())
}

func TestSubmit_CancelKeepsPartialText(t *testing.T) {
	pr, pw := io.Pipe()
	repo := &fakeRepo{sendFunc: func(r api.SendRequest) (*api.StreamResponse, error) {
		return &api.StreamResponse{Body: pr}, nil
	}}
	c, view, tr := newTestController(repo, "tok")
	c.bind("c1", "")

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "go") }()
	require.Eventually(t, func() bool { return c.State() == Streaming }, time.Second, time.Millisecond)

	_, _ = pw.Write([]byte("partial"))
	require.Eventually(t, func() bool {
		e, _ := tr.At(1)
		return e.Content == "partial"
	}, time.Second, time.Millisecond)

	assert.True(t, c.Cancel())
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	e, _ := tr.At(1)
	assert.Equal(t, "partial", e.Content)
	assert.Equal(t, MsgCancelled, e.Err)
	assert.True(t, view.inputEnabled())
	assert.False(t, c.Cancel())
}

func TestSubmit_IdleTimeout(t *testing.T) {
	pr, _ := io.Pipe()
	repo := &fakeRepo{sendFunc: func(r api.SendRequest) (*api.StreamResponse, error) {
		return &api.StreamResponse{Body: pr}, nil
	}}
	view := &fakeView{}
	tr := transcript.New()
	c := New(repo, staticToken("tok"), view, tr, WithLogger(logging.Discard()), WithIdleTimeout(20*time.Millisecond))
	c.bind("c1", "")

	err := c.Submit(context.Background(), "hello")
	require.Error(t, err)

	e, _ := tr.At(1)
	assert.Equal(t, MsgStalled, e.Err)
	assert.Equal(t, Idle, c.State())
}

func TestSubmit_RecordsTelemetry(t *testing.T) {
	metrics := telemetry.NewMetrics()
	usage := telemetry.NewUsageTracker()
	repo := &fakeRepo{reply: "abc" + payload(1, 2)}
	c := New(repo, staticToken("tok"), &fakeView{}, transcript.New(),
		WithLogger(logging.Discard()), WithMetrics(metrics), WithUsage(usage))
	c.bind("c1", "")

	require.NoError(t, c.Submit(context.Background(), "hi"))

	s := usage.Summary()
	assert.Equal(t, 1, s.Turns)
	assert.Equal(t, 3, s.ReplyRunes)
}

type recordingHistory struct{ prompts []string }

func (h *recordingHistory) Add(ctx context.Context, prompt string) error {
	h.prompts = append(h.prompts, prompt)
	return nil
}

func TestSubmit_RecordsPromptHistory(t *testing.T) {
	hist := &recordingHistory{}
	repo := &fakeRepo{reply: "ok"}
	c := New(repo, staticToken("tok"), &fakeView{}, transcript.New(),
		WithLogger(logging.Discard()), WithHistory(hist))

	require.NoError(t, c.Submit(context.Background(), "remember me"))
	assert.Equal(t, []string{"remember me"}, hist.prompts)
}

// =============================================================================
// DELETE
// =============================================================================

func loadSeeded(t *testing.T, repo *fakeRepo) (*Controller, *fakeView, *transcript.Transcript) {
	t.Helper()
	repo.byID = map[model.ID]*model.Conversation{"c1": seededConversation()}
	c, view, tr := newTestController(repo, "tok")
	require.NoError(t, c.LoadAndDisplayConversation(context.Background(), "c1"))
	return c, view, tr
}

func TestDeleteFromIndex_UserMessageRemovesSuffix(t *testing.T) {
	repo := &fakeRepo{}
	c, _, tr := loadSeeded(t, repo)

	require.NoError(t, c.DeleteFromIndex(context.Background(), 2))

	assert.Equal(t, []string{"u1", "a1"}, texts(tr))
	assert.Equal(t, []model.ID{"3"}, repo.deletes)
	assert.Empty(t, repo.sent(), "deleting a prompt must not regenerate")
}

func TestDeleteFromIndex_AssistantRegenerates(t *testing.T) {
	repo := &fakeRepo{reply: "fresh" + payload(21, 22)}
	c, view, tr := loadSeeded(t, repo)

	require.NoError(t, c.DeleteFromIndex(context.Background(), 1))

	assert.Equal(t, []model.ID{"2"}, repo.deletes)
	sends := repo.sent()
	require.Len(t, sends, 1)
	assert.Equal(t, "u1", sends[0].Prompt)
	assert.Equal(t, model.ID("c1"), sends[0].ConversationID)

	// a1, u2 and a2 are gone; the regenerated turn follows u1.
	assert.Equal(t, []string{"u1", "u1", "fresh"}, texts(tr))
	assert.True(t, view.inputEnabled())
	assert.Equal(t, Idle, c.State())

	callsBeforeSend := repo.calls[:indexOf(repo.calls, "send")]
	assert.Contains(t, callsBeforeSend, "delete_message")
}

func TestDeleteFromIndex_AssistantWithoutPromptDoesNotRegenerate(t *testing.T) {
	conv := &model.Conversation{ID: "c2", Messages: []model.Message{
		{ID: "1", Role: model.RoleAssistant, Content: "Welcome, traveller."},
		{ID: "2", Role: model.RoleUser, Content: "hi"},
	}}
	repo := &fakeRepo{byID: map[model.ID]*model.Conversation{"c2": conv}}
	c, _, tr := newTestController(repo, "tok")
	require.NoError(t, c.LoadAndDisplayConversation(context.Background(), "c2"))

	require.NoError(t, c.DeleteFromIndex(context.Background(), 0))

	assert.Empty(t, repo.sent())
	assert.False(t, tr.HasMessages())
}

func TestDeleteFromIndex_FailureLeavesViewUnchanged(t *testing.T) {
	repo := &fakeRepo{delErr: &api.RequestError{Op: "delete_message", Status: 500, Detail: "db down"}}
	c, view, tr := loadSeeded(t, repo)

	err := c.DeleteFromIndex(context.Background(), 1)
	require.Error(t, err)

	assert.Equal(t, []string{"u1", "a1", "u2", "a2"}, texts(tr))
	assert.Empty(t, repo.sent(), "failed delete must not regenerate")
	assert.Contains(t, view.lastNotice(), "db down")
	assert.True(t, view.inputEnabled())
}

func TestDeleteFromIndex_ProvisionalRefused(t *testing.T) {
	repo := &fakeRepo{}
	c, view, tr := newTestController(repo, "tok")
	tr.RenderMessage(model.RoleUser, "pending", model.NoID, nil, -1)

	assert.ErrorIs(t, c.DeleteFromIndex(context.Background(), 0), ErrProvisional)
	assert.Equal(t, MsgWait, view.lastNotice())
	assert.Equal(t, 0, repo.callCount())
}

func TestDeleteFromIndex_ReadsTargetOnceDeleting(t *testing.T) {
	repo := &fakeRepo{}
	view := &fakeView{}
	tr := transcript.New()
	var c *Controller
	swapped := false
	src := auth.TokenSourceFunc(func() (string, bool) {
		if !swapped {
			swapped = true
			// Another conversation lands in the transcript at this point.
			tr.Clear()
			tr.RenderMessage(model.RoleUser, "other", "9", nil, -1)
			c.bind("c9", "Other")
		}
		return "tok", true
	})
	c = New(repo, src, view, tr, WithLogger(logging.Discard()))
	tr.RenderMessage(model.RoleUser, "u1", "1", nil, -1)
	c.bind("c1", "Heist")

	require.NoError(t, c.DeleteFromIndex(context.Background(), 0))

	assert.Equal(t, []model.ID{"9"}, repo.deletes)
	assert.Equal(t, []model.ID{"c9"}, repo.delConvs)
	assert.Equal(t, Idle, c.State())
}

func TestDeleteFromIndex_BusyRefusedBeforeReading(t *testing.T) {
	repo := &fakeRepo{}
	c, view, tr := newTestController(repo, "tok")
	tr.RenderMessage(model.RoleUser, "pending", model.NoID, nil, -1)
	require.True(t, c.begin(Submitting))

	assert.ErrorIs(t, c.DeleteFromIndex(context.Background(), 0), ErrBusy)
	assert.Equal(t, MsgBusy, view.lastNotice())
	c.finish()
}

func TestDeleteViaTranscriptConfirmation(t *testing.T) {
	repo := &fakeRepo{}
	c, _, tr := loadSeeded(t, repo)

	require.NoError(t, tr.RequestDelete(2))
	require.True(t, tr.ConfirmDelete())
	c.Wait()

	assert.Equal(t, []string{"u1", "a1"}, texts(tr))
	assert.Equal(t, []model.ID{"3"}, repo.deletes)
	assert.Empty(t, repo.sent())
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestStartNewConversation(t *testing.T) {
	repo := &fakeRepo{created: &model.Conversation{ID: "n1", Title: "New Chat"}}
	c, _, tr := newTestController(repo, "tok")

	require.NoError(t, c.StartNewConversation(context.Background(), model.ConversationContext{model.ContextGoal: "escape"}))
	assert.Equal(t, model.ID("n1"), c.ConversationID())
	assert.False(t, tr.HasMessages())

	require.NoError(t, c.StartNewConversation(context.Background(), nil))
	assert.True(t, c.ConversationID().IsZero())
}

func TestRenameConversation_UpdatesActiveTitle(t *testing.T) {
	repo := &fakeRepo{}
	c, view, _ := newTestController(repo, "tok")
	c.bind("c1", "Old")

	require.NoError(t, c.RenameConversation(context.Background(), "c1", " New name "))
	assert.Equal(t, "New name", c.Title())
	assert.Equal(t, []string{"c1:New name"}, repo.renames)
	assert.Contains(t, view.lastNotice(), "New name")
}

func TestDeleteConversation_ActiveLoadsLatest(t *testing.T) {
	repo := &fakeRepo{convs: []model.ConversationSummary{}}
	c, _, tr := newTestController(repo, "tok")
	c.bind("c1", "Heist")

	require.NoError(t, c.DeleteConversation(context.Background(), "c1"))
	assert.True(t, c.ConversationID().IsZero())
	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, MsgStart, snap[0].Content)
}

func TestSidebarHandlers_ReturnWhileReplyStreams(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	repo := &fakeRepo{
		byID: map[model.ID]*model.Conversation{"c1": seededConversation()},
		sendFunc: func(api.SendRequest) (*api.StreamResponse, error) {
			return &api.StreamResponse{Body: pr}, nil
		},
	}
	c, _, _ := newTestController(repo, "tok")
	c.Go(func(ctx context.Context) { _ = c.Submit(ctx, "slow story") })
	require.Eventually(t, func() bool { return c.State() == Streaming }, 2*time.Second, 5*time.Millisecond)

	h := c.SidebarHandlers()
	done := make(chan struct{})
	go func() {
		h.Rename(context.Background(), "c1", "Renamed")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rename waited for the streaming reply")
	}
	assert.Equal(t, []string{"c1:Renamed"}, repo.renames)

	c.Cancel()
	c.Wait()
}

func TestUpdateContext_MergesIntoStored(t *testing.T) {
	conv := seededConversation()
	conv.Context = model.ConversationContext{model.ContextGoal: "heist", model.ContextGenreTone: "noir"}
	repo := &fakeRepo{byID: map[model.ID]*model.Conversation{"c1": conv}}
	c, view, _ := newTestController(repo, "tok")
	c.bind("c1", "Heist")

	err := c.UpdateContext(context.Background(), model.ConversationContext{
		model.ContextGenreTone:  "",
		model.ContextGameSystem: "Blades",
	})
	require.NoError(t, err)

	require.Len(t, repo.saved, 1)
	assert.Equal(t, model.ConversationContext{model.ContextGoal: "heist", model.ContextGameSystem: "Blades"}, repo.saved[0])
	assert.Equal(t, "Context saved: goal=heist, game_system=Blades", view.lastNotice())
}

func TestUpdateContext_NeedsConversation(t *testing.T) {
	repo := &fakeRepo{}
	c, view, _ := newTestController(repo, "tok")

	err := c.UpdateContext(context.Background(), model.ConversationContext{model.ContextGoal: "x"})
	assert.ErrorIs(t, err, ErrNoConversation)
	assert.Equal(t, MsgNoContext, view.lastNotice())
	assert.Equal(t, 0, repo.callCount())
}

func TestUpdateContext_SaveFailureNotifies(t *testing.T) {
	repo := &fakeRepo{
		byID:    map[model.ID]*model.Conversation{"c1": seededConversation()},
		saveErr: &api.RequestError{Op: "save_context", Status: 404, Detail: "Conversation not found for update."},
	}
	c, view, _ := newTestController(repo, "tok")
	c.bind("c1", "")

	err := c.UpdateContext(context.Background(), model.ConversationContext{model.ContextGoal: "x"})
	require.Error(t, err)
	assert.Contains(t, view.lastNotice(), "Could not save context")
	assert.Empty(t, repo.saved)
}

func TestDescribeContext(t *testing.T) {
	assert.Equal(t, "Context cleared.", DescribeContext(nil))
	assert.Equal(t, "Context saved: goal=a, key_details=b",
		DescribeContext(model.ConversationContext{model.ContextKeyDetails: "b", model.ContextGoal: "a"}))
}

func TestListSidebar(t *testing.T) {
	repo := &fakeRepo{convs: []model.ConversationSummary{{ID: "c1", Title: "Heist"}, {ID: "c2"}}}
	c, _, _ := newTestController(repo, "tok")
	c.bind("c2", "")

	items := c.ListSidebar(context.Background())
	require.Len(t, items, 2)
	assert.False(t, items[0].Active)
	assert.True(t, items[1].Active)
	assert.Equal(t, MsgUntitled, items[1].Title)

	repo.listErr = errors.New("offline")
	items = c.ListSidebar(context.Background())
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Err, "offline")
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestStop_ReplyEndingAfterStopDoesNotBind(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	repo := &fakeRepo{
		convs: []model.ConversationSummary{},
		sendFunc: func(api.SendRequest) (*api.StreamResponse, error) {
			return &api.StreamResponse{Body: pr, ConversationID: "c7", ConversationTitle: "Vault"}, nil
		},
	}
	c, view, _ := newTestController(repo, "tok")
	c.Start(context.Background())
	c.Wait()

	done := make(chan struct{})
	go func() {
		_ = c.Submit(context.Background(), "open the vault")
		close(done)
	}()
	require.Eventually(t, func() bool { return c.State() == Streaming }, 2*time.Second, 5*time.Millisecond)

	c.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reply did not end after Stop")
	}

	assert.True(t, c.ConversationID().IsZero(), "stopped session re-bound a conversation")
	assert.Empty(t, c.Title())
	assert.NotContains(t, view.titles, "Vault")
}

func TestCancel_ReplyStillBindsNewConversation(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	repo := &fakeRepo{
		sendFunc: func(api.SendRequest) (*api.StreamResponse, error) {
			return &api.StreamResponse{Body: pr, ConversationID: "c7", ConversationTitle: "Vault"}, nil
		},
	}
	c, _, _ := newTestController(repo, "tok")

	done := make(chan struct{})
	go func() {
		_ = c.Submit(context.Background(), "open the vault")
		close(done)
	}()
	require.Eventually(t, func() bool { return c.State() == Streaming }, 2*time.Second, 5*time.Millisecond)

	c.Cancel()
	<-done
	assert.Equal(t, model.ID("c7"), c.ConversationID())
	assert.Equal(t, "Vault", c.Title())
}

func TestStartStop(t *testing.T) {
	repo := &fakeRepo{convs: []model.ConversationSummary{}, profile: &model.Profile{Credits: 5}}
	c, view, tr := newTestController(repo, "tok")

	c.Start(context.Background())
	c.Start(context.Background())
	c.Wait()

	assert.True(t, c.Started())
	assert.Equal(t, 1, repo.profiles, "second Start must be a no-op")
	assert.Equal(t, []int{5}, view.credits)

	c.Stop()
	c.Stop()
	assert.False(t, c.Started())
	assert.False(t, view.inputEnabled())
	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, MsgLogin, snap[0].Content)
}

func TestFetchAndUpdateCredits_FailureIgnored(t *testing.T) {
	repo := &fakeRepo{}
	c, view, _ := newTestController(repo, "tok")

	c.FetchAndUpdateCredits(context.Background())

	assert.Empty(t, view.credits)
	_, ok := c.Credits()
	assert.False(t, ok)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unauthenticated", api.ErrUnauthenticated, MsgLogin},
		{"payment", &api.RequestError{Status: 402}, MsgNoCredits},
		{"expired", &api.RequestError{Status: 401}, MsgExpired},
		{"detail", &api.RequestError{Status: 400, Detail: "bad prompt"}, "bad prompt"},
		{"cancelled", context.Canceled, MsgCancelled},
		{"network", &api.NetworkError{Op: "x", Err: errors.New("refused")}, "Network error: refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.err))
		})
	}
}
