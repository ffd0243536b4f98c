package editor

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/deckhand/internal/card"
	"github.com/rumor-ml/deckhand/internal/session"
	"github.com/rumor-ml/deckhand/internal/store"
)

// drain executes a command tree synchronously and flattens the messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, c := range batch {
			msgs = append(msgs, drain(c)...)
		}
		return msgs
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func findMsg[T tea.Msg](msgs []tea.Msg) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func signedIn() *session.Identity {
	return &session.Identity{UID: "u1", Email: "u1@example.com"}
}

func validDraft() card.Draft {
	return card.Draft{Title: "Goblin Raider", CardType: "creature", Subtype: "goblin"}
}

// settle routes save results back into the coordinator until no command
// remains, returning every emitted message.
func settle(c Coordinator, cmd tea.Cmd) (Coordinator, []tea.Msg) {
	var all []tea.Msg
	pending := drain(cmd)
	for len(pending) > 0 {
		msg := pending[0]
		pending = pending[1:]
		all = append(all, msg)
		if _, ok := msg.(SaveResultMsg); ok {
			var next tea.Cmd
			c, next = c.Update(msg)
			pending = append(pending, drain(next)...)
		}
	}
	return c, all
}

func TestSubmit_ValidationFailureNeverCallsStore(t *testing.T) {
	st := store.NewMemoryStore()
	c := NewCoordinator(st, signedIn, "cards", "")

	c, cmd := c.Submit(card.Draft{Title: "   ", CardType: "creature", Subtype: "goblin"})
	msgs := drain(cmd)

	fe, ok := findMsg[FieldErrorsMsg](msgs)
	require.True(t, ok, "expected FieldErrorsMsg")
	require.Equal(t, card.FieldTitle, fe.Focus, "first invalid field gets focus")
	require.Equal(t, StateIdle, c.State(), "editor stays editable")

	creates, updates := st.Writes()
	require.Zero(t, creates)
	require.Zero(t, updates)
}

func TestSubmit_WithoutSessionSurfacesBanner(t *testing.T) {
	st := store.NewMemoryStore()
	c := NewCoordinator(st, func() *session.Identity { return nil }, "cards", "")

	c, cmd := c.Submit(validDraft())
	msgs := drain(cmd)

	banner, ok := findMsg[BannerMsg](msgs)
	require.True(t, ok)
	require.Contains(t, banner.Message, "Sign in")
	require.Equal(t, StateFailure, c.State())

	enabledMsg, ok := findMsg[SubmitEnabledMsg](msgs)
	require.True(t, ok)
	require.True(t, enabledMsg.Enabled, "resubmit stays possible")

	creates, _ := st.Writes()
	require.Zero(t, creates, "no store call without a session")
}

func TestSubmit_CreateSuccessClosesEditor(t *testing.T) {
	st := store.NewMemoryStore()
	c := NewCoordinator(st, signedIn, "cards", "")

	c, cmd := c.Submit(validDraft())
	require.Equal(t, StateSaving, c.State())

	c, msgs := settle(c, cmd)
	require.Equal(t, StateIdle, c.State())
	require.NotEmpty(t, c.CardID(), "server-assigned ID recorded")

	_, closed := findMsg[CloseMsg](msgs)
	require.True(t, closed, "editor closes on success")

	banner, ok := findMsg[BannerMsg](msgs)
	require.True(t, ok)
	require.Empty(t, banner.Message, "banner cleared on success")

	creates, updates := st.Writes()
	require.Equal(t, 1, creates)
	require.Zero(t, updates)

	doc, found := st.Get("cards", c.CardID())
	require.True(t, found)
	require.Equal(t, "Goblin Raider", doc.Fields[card.FieldTitle])
}

func TestSubmit_UpdateExistingCard(t *testing.T) {
	st := store.NewMemoryStore()
	ctxDraft := validDraft()

	// Seed an existing card.
	first := NewCoordinator(st, signedIn, "cards", "")
	first, cmd := first.Submit(ctxDraft)
	first, _ = settle(first, cmd)
	id := first.CardID()
	require.NotEmpty(t, id)

	c := NewCoordinator(st, signedIn, "cards", id)
	ctxDraft.Title = "Goblin Chief"
	c, cmd = c.Submit(ctxDraft)
	c, msgs := settle(c, cmd)

	require.Equal(t, StateIdle, c.State())
	_, closed := findMsg[CloseMsg](msgs)
	require.True(t, closed)

	creates, updates := st.Writes()
	require.Equal(t, 1, creates)
	require.Equal(t, 1, updates)

	doc, _ := st.Get("cards", id)
	require.Equal(t, "Goblin Chief", doc.Fields[card.FieldTitle])
}

func TestSubmit_SingleFlightDropsConcurrentSubmits(t *testing.T) {
	st := store.NewMemoryStore()
	c := NewCoordinator(st, signedIn, "cards", "")

	c, cmd := c.Submit(validDraft())
	require.Equal(t, StateSaving, c.State())

	// N further submits while saving are dropped entirely.
	for i := 0; i < 5; i++ {
		var dropped tea.Cmd
		c, dropped = c.Submit(validDraft())
		require.Nil(t, dropped, "submit while saving produces no work")
	}

	c, _ = settle(c, cmd)
	creates, _ := st.Writes()
	require.Equal(t, 1, creates, "exactly one write for N concurrent submits")
}

func TestSubmit_TransientFailureRetriedOnce(t *testing.T) {
	st := store.NewMemoryStore()
	st.FailNext = &store.Error{Kind: store.KindUnavailable}
	c := NewCoordinator(st, signedIn, "cards", "")

	c, cmd := c.Submit(validDraft())
	c, msgs := settle(c, cmd)

	require.Equal(t, StateIdle, c.State(), "automatic retry succeeded")
	_, closed := findMsg[CloseMsg](msgs)
	require.True(t, closed)

	creates, _ := st.Writes()
	require.Equal(t, 1, creates)
}

func TestSubmit_PermissionDeniedFailsImmediately(t *testing.T) {
	st := store.NewMemoryStore()
	st.FailNext = &store.Error{Kind: store.KindPermissionDenied}
	c := NewCoordinator(st, signedIn, "cards", "")

	c, cmd := c.Submit(validDraft())
	c, msgs := settle(c, cmd)

	require.Equal(t, StateFailure, c.State())
	banner, ok := findMsg[BannerMsg](msgs)
	require.True(t, ok)
	require.Contains(t, strings.ToLower(banner.Message), "permission")

	creates, _ := st.Writes()
	require.Zero(t, creates, "no automatic retry for permission failures")

	enabledMsg, ok := findMsg[SubmitEnabledMsg](msgs)
	require.True(t, ok)
	require.True(t, enabledMsg.Enabled, "single-flight cleared for resubmit")
}

func TestSubmit_TimeoutThenSuccessfulRetry(t *testing.T) {
	st := store.NewMemoryStore()
	st.Delay = 200 * time.Millisecond
	c := NewCoordinator(st, signedIn, "cards", "").WithTimeout(20 * time.Millisecond)

	c, cmd := c.Submit(validDraft())
	c, msgs := settle(c, cmd)

	require.Equal(t, StateFailure, c.State(), "timeout surfaces as Failure")
	banner, ok := findMsg[BannerMsg](msgs)
	require.True(t, ok)
	require.Contains(t, banner.Message, "timed out")

	// The store recovers; resubmitting the preserved draft succeeds.
	st.Delay = 0
	c, cmd = c.Submit(validDraft())
	c, msgs = settle(c, cmd)

	require.Equal(t, StateIdle, c.State())
	_, closed := findMsg[CloseMsg](msgs)
	require.True(t, closed, "successful retry closes the editor")
}

func TestUpdate_StaleGenerationIgnored(t *testing.T) {
	st := store.NewMemoryStore()
	c := NewCoordinator(st, signedIn, "cards", "")

	c, _ = c.Submit(validDraft())
	require.Equal(t, StateSaving, c.State())

	// A result from a superseded attempt must never flip UI state.
	stale := SaveResultMsg{gen: 0, err: nil, id: "ghost"}
	c, cmd := c.Update(stale)
	require.Nil(t, cmd)
	require.Equal(t, StateSaving, c.State())
	require.Empty(t, c.CardID())
}

func TestUpdate_IgnoresForeignMessages(t *testing.T) {
	c := NewCoordinator(store.NewMemoryStore(), signedIn, "cards", "")
	c2, cmd := c.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
	require.Equal(t, c.State(), c2.State())
}
