// Package cardeditor hosts the card editing form: plain text fields, two
// linked comboboxes (type and subtype), and the save coordinator.
package cardeditor

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rumor-ml/deckhand/internal/card"
	"github.com/rumor-ml/deckhand/internal/draftcache"
	"github.com/rumor-ml/deckhand/internal/editor"
	"github.com/rumor-ml/deckhand/internal/keys"
	"github.com/rumor-ml/deckhand/internal/log"
	"github.com/rumor-ml/deckhand/internal/pubsub"
	"github.com/rumor-ml/deckhand/internal/session"
	"github.com/rumor-ml/deckhand/internal/store"
	"github.com/rumor-ml/deckhand/internal/ui/combobox"
	"github.com/rumor-ml/deckhand/internal/ui/styles"
)

// Focus order through the form.
const (
	focusTitle = iota
	focusType
	focusSubtype
	focusDescription
	focusTags
	focusStats
	focusCount
)

// queryTimeout bounds option-source store queries. Option lookups are not
// on the write path; a slow query degrades the combobox, not the form.
const queryTimeout = 3 * time.Second

// sessionEventMsg wraps a session broker event for the editor.
type sessionEventMsg struct {
	event pubsub.Event[session.Event]
	ok    bool
}

// Config assembles the editor's collaborators.
type Config struct {
	Store      store.Store
	Sessions   *session.Manager
	Drafts     *draftcache.Cache // optional
	Collection string
	CardID     string // empty for a new card
	Timeout    time.Duration
}

// Model is the card editor state.
type Model struct {
	cfg         Config
	coordinator editor.Coordinator

	title       textinput.Model
	description textinput.Model
	tags        textinput.Model
	stats       textinput.Model
	typeBox     combobox.Model
	subtypeBox  combobox.Model

	// typeFilter backs the subtype option source. Updated on every type
	// commit so the dependent option set follows the parent field.
	typeFilter *string

	focus         int
	fieldErrors   map[string]string
	banner        string
	bannerWarn    bool
	submitEnabled bool
	signedInAs    string
	done          bool

	sessionEvents <-chan pubsub.Event[session.Event]
	stopSession   context.CancelFunc
	width, height int
}

// New creates the editor, restoring a cached draft when one exists.
func New(cfg Config) Model {
	m := Model{
		cfg:           cfg,
		fieldErrors:   make(map[string]string),
		submitEnabled: true,
		typeFilter:    new(string),
	}

	coordinator := editor.NewCoordinator(cfg.Store, cfg.Sessions.Snapshot, cfg.Collection, cfg.CardID)
	if cfg.Timeout > 0 {
		coordinator = coordinator.WithTimeout(cfg.Timeout)
	}
	m.coordinator = coordinator

	// The subscription is established here, not in Init, so the event loop
	// can re-arm no matter which message arrives first.
	ctx, cancel := context.WithCancel(context.Background())
	m.sessionEvents = cfg.Sessions.Broker().Subscribe(ctx)
	m.stopSession = cancel

	m.title = newInput("Card title", card.MaxTitleLen)
	m.description = newInput("Description (optional)", card.MaxDescriptionLen)
	m.tags = newInput("tag1, tag2, ...", 0)
	m.stats = newInput("power=2, cost=1", 0)

	m.typeBox = combobox.New(card.FieldType, "Card type", m.typeSource())
	m.subtypeBox = combobox.New(card.FieldSubtype, "Subtype", m.subtypeSource())

	if cfg.Drafts != nil {
		if draft, ok := cfg.Drafts.Get(m.draftKey()); ok {
			m = m.applyDraft(draft)
			log.Info(log.CatEditor, "restored cached draft", "key", m.draftKey())
		}
	}

	m.title.Focus()
	return m
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""
	ti.Width = 48
	ti.Cursor.SetMode(cursor.CursorStatic)
	if limit > 0 {
		ti.CharLimit = limit
	}
	return ti
}

// typeSource lists the distinct type values across the collection, fresh
// per call.
func (m Model) typeSource() combobox.OptionSource {
	st := m.cfg.Store
	collection := m.cfg.Collection
	return func() ([]string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		docs, err := st.Query(ctx, collection, "", nil)
		if err != nil {
			return nil, err
		}
		return distinctField(docs, card.FieldType), nil
	}
}

// subtypeSource lists subtype values among cards of the committed type.
func (m Model) subtypeSource() combobox.OptionSource {
	st := m.cfg.Store
	collection := m.cfg.Collection
	filter := m.typeFilter
	return func() ([]string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		docs, err := st.Query(ctx, collection, card.FieldType, *filter)
		if err != nil {
			return nil, err
		}
		return distinctField(docs, card.FieldSubtype), nil
	}
}

func distinctField(docs []store.Document, field string) []string {
	seen := make(map[string]struct{})
	var values []string
	for _, doc := range docs {
		v, _ := doc.Fields[field].(string)
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

func (m Model) draftKey() string {
	if m.cfg.CardID == "" {
		return draftcache.NewCardKey
	}
	return m.cfg.CardID
}

func (m Model) applyDraft(d card.Draft) Model {
	m.title.SetValue(d.Title)
	m.description.SetValue(d.Description)
	m.tags.SetValue(strings.Join(d.Tags, ", "))
	m.stats.SetValue(card.FormatStats(d.Stats))
	m.typeBox = m.typeBox.SetCommitted(d.CardType)
	m.subtypeBox = m.subtypeBox.SetCommitted(d.Subtype)
	*m.typeFilter = d.CardType
	return m
}

// Draft assembles the current form contents.
func (m Model) Draft() card.Draft {
	return card.Draft{
		Title:       m.title.Value(),
		CardType:    m.typeBox.Value(),
		Subtype:     m.subtypeBox.Value(),
		Description: m.description.Value(),
		Tags:        card.ParseTags(m.tags.Value()),
		Stats:       card.ParseStats(m.stats.Value()),
	}
}

// Done reports whether the editor finished (saved or dismissed).
func (m Model) Done() bool { return m.done }

// Init starts listening for session change events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listenSession(m.sessionEvents))
}

func listenSession(ch <-chan pubsub.Event[session.Event]) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		return sessionEventMsg{event: evt, ok: ok}
	}
}

// Update handles all editor messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case sessionEventMsg:
		return m.handleSessionEvent(msg)

	case editor.FieldErrorsMsg:
		m.fieldErrors = make(map[string]string)
		for _, fe := range msg.Errors {
			m.fieldErrors[fe.Field] = fe.Message
		}
		return m.focusField(msg.Focus)

	case editor.BannerMsg:
		m.banner = msg.Message
		m.bannerWarn = false
		return m, nil

	case editor.SubmitEnabledMsg:
		m.submitEnabled = msg.Enabled
		return m, nil

	case editor.CloseMsg:
		m.done = true
		m.stopSession()
		if m.cfg.Drafts != nil {
			if err := m.cfg.Drafts.Delete(m.draftKey()); err != nil {
				log.Warn(log.CatEditor, "draft cache delete failed", "error", err)
			}
		}
		return m, tea.Quit

	case editor.SaveResultMsg:
		var cmd tea.Cmd
		m.coordinator, cmd = m.coordinator.Update(msg)
		return m, cmd

	case combobox.CommitMsg:
		return m.handleCommit(msg)

	case combobox.OpenedMsg, combobox.ClosedMsg, combobox.OptionsChangedMsg:
		// State notifications; nothing to do beyond re-render.
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.routeToFocused(msg)
}

func (m Model) handleSessionEvent(msg sessionEventMsg) (Model, tea.Cmd) {
	if !msg.ok {
		return m, nil
	}

	switch msg.event.Type {
	case session.EventChanged:
		if id := msg.event.Payload.Identity; id != nil {
			m.signedInAs = id.Email
			if m.signedInAs == "" {
				m.signedInAs = id.UID
			}
		} else {
			m.signedInAs = ""
		}
	case session.EventWarning:
		m.banner = msg.event.Payload.Message
		m.bannerWarn = true
	}

	return m, listenSession(m.sessionEvents)
}

// handleCommit reacts to combobox commits. Committing a new type clears the
// subtype's committed value; its options recompute on the next open.
func (m Model) handleCommit(msg combobox.CommitMsg) (Model, tea.Cmd) {
	delete(m.fieldErrors, msg.Field)

	if msg.Field == card.FieldType {
		if msg.Value != *m.typeFilter {
			m.subtypeBox = m.subtypeBox.SetCommitted("")
		}
		*m.typeFilter = msg.Value
		log.Debug(log.CatUI, "type committed", "value", msg.Value, "new", msg.IsNew)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Common.Quit):
		return m.dismiss()

	case key.Matches(msg, keys.Editor.Submit):
		if !m.submitEnabled {
			return m, nil
		}
		var cmd tea.Cmd
		m.coordinator, cmd = m.coordinator.Submit(m.Draft())
		return m, cmd

	case key.Matches(msg, keys.Editor.Toggle):
		switch m.focus {
		case focusType:
			var cmd tea.Cmd
			m.typeBox, cmd = m.typeBox.Toggle()
			return m, cmd
		case focusSubtype:
			var cmd tea.Cmd
			m.subtypeBox, cmd = m.subtypeBox.Toggle()
			return m, cmd
		}
		return m, nil

	case key.Matches(msg, keys.Editor.NextField):
		return m.moveFocus(1)

	case key.Matches(msg, keys.Editor.PrevField):
		return m.moveFocus(-1)

	case key.Matches(msg, keys.Common.Escape):
		// An open popup consumes Escape; a second Escape dismisses the editor.
		if m.focusedComboOpen() {
			return m.routeToFocused(msg)
		}
		return m.dismiss()
	}

	m2, cmd := m.routeToFocused(msg)
	return m2.clearFocusedError(), cmd
}

// dismiss stashes the draft and closes the editor without saving.
func (m Model) dismiss() (Model, tea.Cmd) {
	if m.cfg.Drafts != nil {
		if err := m.cfg.Drafts.Put(m.draftKey(), m.Draft()); err != nil {
			log.Warn(log.CatEditor, "draft cache write failed", "error", err)
		}
	}
	m.done = true
	m.stopSession()
	return m, tea.Quit
}

func (m Model) focusedComboOpen() bool {
	switch m.focus {
	case focusType:
		return m.typeBox.IsOpen()
	case focusSubtype:
		return m.subtypeBox.IsOpen()
	}
	return false
}

// clearFocusedError clears the inline error of the field being edited.
func (m Model) clearFocusedError() Model {
	delete(m.fieldErrors, m.focusName())
	return m
}

func (m Model) focusName() string {
	switch m.focus {
	case focusTitle:
		return card.FieldTitle
	case focusType:
		return card.FieldType
	case focusSubtype:
		return card.FieldSubtype
	case focusDescription:
		return card.FieldDescription
	case focusTags:
		return card.FieldTags
	case focusStats:
		return card.FieldStats
	}
	return ""
}

func (m Model) moveFocus(delta int) (Model, tea.Cmd) {
	next := (m.focus + delta + focusCount) % focusCount
	return m.setFocus(next)
}

func (m Model) focusField(field string) (Model, tea.Cmd) {
	target := focusTitle
	switch field {
	case card.FieldType:
		target = focusType
	case card.FieldSubtype:
		target = focusSubtype
	case card.FieldDescription:
		target = focusDescription
	case card.FieldTags:
		target = focusTags
	}
	return m.setFocus(target)
}

func (m Model) setFocus(next int) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	// Moving focus away from a combobox blurs it; a selection click queued
	// before the blur still wins because blur handling is deferred.
	switch m.focus {
	case focusTitle:
		m.title.Blur()
	case focusDescription:
		m.description.Blur()
	case focusTags:
		m.tags.Blur()
	case focusStats:
		m.stats.Blur()
	case focusType:
		var cmd tea.Cmd
		m.typeBox, cmd = m.typeBox.Blur()
		cmds = append(cmds, cmd)
	case focusSubtype:
		var cmd tea.Cmd
		m.subtypeBox, cmd = m.subtypeBox.Blur()
		cmds = append(cmds, cmd)
	}

	m.focus = next
	switch next {
	case focusTitle:
		cmds = append(cmds, m.title.Focus())
	case focusDescription:
		cmds = append(cmds, m.description.Focus())
	case focusTags:
		cmds = append(cmds, m.tags.Focus())
	case focusStats:
		cmds = append(cmds, m.stats.Focus())
	case focusType:
		var cmd tea.Cmd
		m.typeBox, cmd = m.typeBox.Focus()
		cmds = append(cmds, cmd)
	case focusSubtype:
		var cmd tea.Cmd
		m.subtypeBox, cmd = m.subtypeBox.Focus()
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) routeToFocused(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusTitle:
		m.title, cmd = m.title.Update(msg)
	case focusType:
		m.typeBox, cmd = m.typeBox.Update(msg)
	case focusSubtype:
		m.subtypeBox, cmd = m.subtypeBox.Update(msg)
	case focusDescription:
		m.description, cmd = m.description.Update(msg)
	case focusTags:
		m.tags, cmd = m.tags.Update(msg)
	case focusStats:
		m.stats, cmd = m.stats.Update(msg)
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	var b strings.Builder

	title := "New Card"
	if m.cfg.CardID != "" {
		title = "Edit Card"
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(styles.OverlayTitleColor).Render(title))
	if m.signedInAs != "" {
		b.WriteString(styles.HintStyle.Render("  (" + m.signedInAs + ")"))
	}
	b.WriteString("\n\n")

	m.renderField(&b, "Title", card.FieldTitle, m.title.View())
	m.renderField(&b, "Type", card.FieldType, m.typeBox.View())
	m.renderField(&b, "Subtype", card.FieldSubtype, m.subtypeBox.View())
	m.renderField(&b, "Description", card.FieldDescription, m.description.View())
	m.renderField(&b, "Tags", card.FieldTags, m.tags.View())
	m.renderField(&b, "Stats", card.FieldStats, m.stats.View())

	if m.banner != "" {
		b.WriteByte('\n')
		if m.bannerWarn {
			b.WriteString(styles.BannerWarnStyle.Render(m.banner))
		} else {
			b.WriteString(styles.BannerErrorStyle.Render(m.banner))
		}
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	hint := "tab: next field • ctrl+o: options • ctrl+s: save • esc: close"
	if m.coordinator.State() == editor.StateSaving {
		hint = "saving..."
	}
	b.WriteString(styles.HintStyle.Render(hint))

	return b.String()
}

func (m Model) renderField(b *strings.Builder, label, field, view string) {
	b.WriteString(styles.FieldLabelStyle.Render(label))
	b.WriteByte('\n')
	b.WriteString(view)
	b.WriteByte('\n')
	if msg, ok := m.fieldErrors[field]; ok {
		b.WriteString(styles.FieldErrorStyle.Render("  " + msg))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
}
