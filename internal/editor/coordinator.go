// Package editor coordinates saving a card draft to the remote store.
//
// The coordinator is a tagged state machine (Idle, Validating, Saving,
// Failure) driven through Bubble Tea messages. Saving is single-flight: a
// submit while one is in flight is dropped, never queued. Store results
// carry a generation token so a result that arrives after a timeout already
// resolved the attempt can never flip the UI.
package editor

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rumor-ml/deckhand/internal/card"
	"github.com/rumor-ml/deckhand/internal/log"
	"github.com/rumor-ml/deckhand/internal/session"
	"github.com/rumor-ml/deckhand/internal/store"
)

// State is the coordinator's current phase.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSaving
	StateFailure
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSaving:
		return "saving"
	case StateFailure:
		return "failure"
	}
	return "unknown"
}

// DefaultSaveTimeout bounds how long one store write may take.
const DefaultSaveTimeout = 10 * time.Second

// Signals consumed by the hosting editor view.

// CloseMsg asks the host to close the editor after a successful save.
type CloseMsg struct{}

// FieldErrorsMsg carries per-field validation errors. Focus names the first
// invalid field, which should receive input focus.
type FieldErrorsMsg struct {
	Errors []card.FieldError
	Focus  string
}

// BannerMsg sets the save-level banner. An empty message clears it; each
// attempt's outcome replaces the previous banner rather than stacking.
type BannerMsg struct {
	Message string
}

// SubmitEnabledMsg toggles the host's submit affordance.
type SubmitEnabledMsg struct {
	Enabled bool
}

// SaveResultMsg is the outcome of one store write attempt. Hosts route it
// back into Coordinator.Update; they never act on it directly.
type SaveResultMsg struct {
	gen     uint64
	id      string
	err     error
	retried bool
	saved   map[string]any // the payload, kept for the automatic retry
}

// SnapshotFunc returns the current session identity, or nil when signed out.
type SnapshotFunc func() *session.Identity

// Coordinator owns one card draft's save lifecycle.
type Coordinator struct {
	store      store.Store
	snapshot   SnapshotFunc
	collection string
	timeout    time.Duration

	state  State
	gen    uint64
	cardID string // empty until the first successful create
}

// NewCoordinator creates an idle coordinator. cardID is empty for a new
// card, or the existing document ID when editing.
func NewCoordinator(s store.Store, snapshot SnapshotFunc, collection, cardID string) Coordinator {
	return Coordinator{
		store:      s,
		snapshot:   snapshot,
		collection: collection,
		timeout:    DefaultSaveTimeout,
		state:      StateIdle,
		cardID:     cardID,
	}
}

// WithTimeout overrides the save timeout bound.
func (c Coordinator) WithTimeout(d time.Duration) Coordinator {
	c.timeout = d
	return c
}

// State returns the current phase.
func (c Coordinator) State() State { return c.state }

// CardID returns the persisted document ID, or empty before first save.
func (c Coordinator) CardID() string { return c.cardID }

// Submit runs validation and, if the draft is clean and a session exists,
// starts the single in-flight store write. A call while Saving is dropped.
func (c Coordinator) Submit(draft card.Draft) (Coordinator, tea.Cmd) {
	if c.state == StateSaving {
		log.Debug(log.CatEditor, "submit dropped, save in flight")
		return c, nil
	}

	c.state = StateValidating
	if errs := card.Validate(draft); len(errs) > 0 {
		c.state = StateIdle
		focus := errs[0].Field
		log.Debug(log.CatEditor, "validation failed", "fields", len(errs), "focus", focus)
		return c, func() tea.Msg {
			return FieldErrorsMsg{Errors: errs, Focus: focus}
		}
	}

	if c.snapshot() == nil {
		c.state = StateFailure
		log.Info(log.CatEditor, "submit without session")
		return c, tea.Batch(
			banner("Sign in to save cards."),
			enabled(true),
		)
	}

	c.state = StateSaving
	c.gen++
	fields := draft.Fields()
	log.Info(log.CatEditor, "saving card", "collection", c.collection, "update", c.cardID != "")

	return c, tea.Batch(
		enabled(false),
		c.writeCmd(fields, false),
	)
}

// Update consumes save results. Results from a superseded generation are
// ignored entirely.
func (c Coordinator) Update(msg tea.Msg) (Coordinator, tea.Cmd) {
	result, ok := msg.(SaveResultMsg)
	if !ok {
		return c, nil
	}
	if result.gen != c.gen {
		log.Debug(log.CatEditor, "stale save result ignored", "gen", result.gen, "current", c.gen)
		return c, nil
	}

	if result.err == nil {
		if result.id != "" {
			c.cardID = result.id
		}
		c.state = StateIdle
		log.Info(log.CatEditor, "save succeeded", "id", c.cardID)
		return c, tea.Batch(
			banner(""),
			enabled(true),
			func() tea.Msg { return CloseMsg{} },
		)
	}

	if store.Retryable(result.err) && !result.retried {
		log.Warn(log.CatEditor, "transient save failure, retrying", "kind", store.Kind(result.err))
		return c, c.writeCmd(result.saved, true)
	}

	c.state = StateFailure
	log.Error(log.CatEditor, "save failed", "kind", store.Kind(result.err), "error", result.err)
	return c, tea.Batch(
		banner(failureMessage(result.err)),
		enabled(true),
	)
}

// writeCmd performs one bounded store write. The store call races the
// timeout; whichever settles first produces the result, and the loser's
// late resolution is discarded.
func (c Coordinator) writeCmd(fields map[string]any, retried bool) tea.Cmd {
	gen := c.gen
	st := c.store
	collection := c.collection
	cardID := c.cardID
	timeout := c.timeout

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		type outcome struct {
			id  string
			err error
		}
		done := make(chan outcome, 1)
		go func() {
			if cardID == "" {
				id, err := st.Create(ctx, collection, fields)
				done <- outcome{id: id, err: err}
				return
			}
			done <- outcome{id: cardID, err: st.Update(ctx, collection, cardID, fields)}
		}()

		select {
		case out := <-done:
			return SaveResultMsg{gen: gen, id: out.id, err: out.err, retried: retried, saved: fields}
		case <-ctx.Done():
			return SaveResultMsg{gen: gen, err: ctx.Err(), retried: retried, saved: fields}
		}
	}
}

// failureMessage maps a failure class to its banner text.
func failureMessage(err error) string {
	switch store.Kind(err) {
	case store.KindUnavailable:
		return "The server is unavailable. Check your connection and try again."
	case store.KindTimeout:
		return "Saving timed out. Try again."
	case store.KindPermissionDenied:
		return "You don't have permission to save this card."
	default:
		return "Something went wrong while saving. Try again."
	}
}

func banner(msg string) tea.Cmd {
	return func() tea.Msg { return BannerMsg{Message: msg} }
}

func enabled(v bool) tea.Cmd {
	return func() tea.Msg { return SubmitEnabledMsg{Enabled: v} }
}
