// Package combobox provides a text input paired with a filtered option
// popup that also accepts values outside the list.
//
// The popup is driven by an option source callback that is consulted fresh
// on every open and on every text change, so values created elsewhere in
// the session appear immediately. A failing source degrades the field to
// free-text entry instead of blocking it.
//
// Open/closed is one authoritative boolean flipped exactly once per
// intent-bearing event: N Toggle calls produce exactly N alternating
// OpenedMsg/ClosedMsg notifications, never two transitions for one call.
package combobox

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rumor-ml/deckhand/internal/keys"
	"github.com/rumor-ml/deckhand/internal/log"
	"github.com/rumor-ml/deckhand/internal/ui/styles"
)

// OptionSource returns the current option values for the field. Called on
// every open and text change; never cached across calls.
type OptionSource func() ([]string, error)

// OpenedMsg is sent when the popup opens.
type OpenedMsg struct{ Field string }

// ClosedMsg is sent when the popup closes.
type ClosedMsg struct{ Field string }

// OptionsChangedMsg is sent after each option recompute.
type OptionsChangedMsg struct{ Field string }

// CommitMsg is sent when a value is committed, either an existing option or
// a newly minted custom value.
type CommitMsg struct {
	Field string
	Value string
	IsNew bool
}

// blurMsg defers blur handling one event so a selection click queued before
// the blur is processed first and wins the race.
type blurMsg struct{ field string }

// Model is the combobox state for one bound field. Methods return a new
// Model rather than modifying the receiver.
type Model struct {
	field  string
	input  textinput.Model
	source OptionSource

	open       bool
	options    []string // filtered, recomputed per open/text change
	highlight  int      // index into options, -1 = none
	errorState bool

	committed   string
	pendingBlur bool
	width       int
}

// New creates a closed combobox bound to the named field.
func New(field, placeholder string, source OptionSource) Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""
	ti.Width = 36
	ti.Cursor.SetMode(cursor.CursorStatic)
	return Model{
		field:     field,
		input:     ti,
		source:    source,
		highlight: -1,
	}
}

// Field returns the bound field name.
func (m Model) Field() string { return m.field }

// IsOpen reports whether the popup is open.
func (m Model) IsOpen() bool { return m.open }

// Value returns the current input text.
func (m Model) Value() string { return m.input.Value() }

// Committed returns the last committed value.
func (m Model) Committed() string { return m.committed }

// HasError reports whether the last option recompute failed.
func (m Model) HasError() bool { return m.errorState }

// Options returns the current filtered option list.
func (m Model) Options() []string { return m.options }

// Highlighted returns the highlighted option index, -1 for none.
func (m Model) Highlighted() int { return m.highlight }

// SetValue replaces the input text without opening the popup.
func (m Model) SetValue(v string) Model {
	m.input.SetValue(v)
	return m
}

// SetCommitted replaces the committed value. Used by linked fields: when
// the parent field commits a new value, the dependent field's commitment is
// cleared. Options are never cached, so the next open recomputes anyway.
func (m Model) SetCommitted(v string) Model {
	m.committed = v
	m.input.SetValue(v)
	return m
}

// SetWidth sets the input and popup width.
func (m Model) SetWidth(w int) Model {
	m.width = w
	m.input.Width = w - 2
	return m
}

// Focus gives the text input focus.
func (m Model) Focus() (Model, tea.Cmd) {
	return m, m.input.Focus()
}

// Update handles key input for the bound field.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case blurMsg:
		if msg.field != m.field {
			return m, nil
		}
		return m.finishBlur()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Common.Down):
			return m.arrowDown()
		case key.Matches(msg, keys.Common.Up):
			return m.arrowUp()
		case key.Matches(msg, keys.Common.Enter):
			return m.enter()
		case key.Matches(msg, keys.Common.Escape):
			return m.escape()
		}

		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if m.input.Value() != before {
			m2, changed := m.textChanged()
			return m2, tea.Batch(cmd, changed)
		}
		return m, cmd
	}

	return m, nil
}

// Toggle flips the popup: closed opens and recomputes options, open closes
// and discards them. Exactly one transition per call.
func (m Model) Toggle() (Model, tea.Cmd) {
	if m.open {
		return m.close()
	}
	return m.openPopup()
}

// Blur queues deferred blur handling. If a selection click arrives before
// the deferred message is processed, the click wins and the blur is a no-op.
func (m Model) Blur() (Model, tea.Cmd) {
	if !m.open {
		m.input.Blur()
		return m, nil
	}
	m.pendingBlur = true
	field := m.field
	return m, func() tea.Msg { return blurMsg{field: field} }
}

// Click commits the option at the given index. A click is a non-blurring
// selection trigger: it cancels any pending blur.
func (m Model) Click(index int) (Model, tea.Cmd) {
	m.pendingBlur = false
	if !m.open || index < 0 || index >= len(m.options) {
		return m, nil
	}
	return m.commit(m.options[index], false)
}

// OutsideActivate closes the popup without committing, e.g. when another
// widget is activated.
func (m Model) OutsideActivate() (Model, tea.Cmd) {
	m.pendingBlur = false
	if !m.open {
		return m, nil
	}
	return m.close()
}

func (m Model) finishBlur() (Model, tea.Cmd) {
	if !m.pendingBlur {
		// A click consumed the blur.
		return m, nil
	}
	m.pendingBlur = false
	m.input.Blur()
	if !m.open {
		return m, nil
	}
	return m.close()
}

func (m Model) arrowDown() (Model, tea.Cmd) {
	if !m.open {
		return m.openHighlightFirst()
	}
	if m.highlight < len(m.options)-1 {
		m.highlight++
	}
	return m, nil
}

func (m Model) arrowUp() (Model, tea.Cmd) {
	if !m.open {
		return m.openHighlightFirst()
	}
	if m.highlight > 0 {
		m.highlight--
	}
	return m, nil
}

func (m Model) enter() (Model, tea.Cmd) {
	if m.open && m.highlight >= 0 && m.highlight < len(m.options) {
		return m.commit(m.options[m.highlight], false)
	}

	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if i := m.exactMatch(text); i >= 0 {
		return m.commit(m.options[i], false)
	}
	// With the popup closed there is no recomputed option set; ask the
	// source directly so text matching an existing value is not minted anew.
	if !m.open {
		if match, ok := m.sourceMatch(text); ok {
			return m.commit(match, false)
		}
	}
	return m.commit(text, true)
}

// sourceMatch looks for an existing option equal to text, case-insensitively.
// A failing source yields no match, so the commit degrades to a custom value.
func (m Model) sourceMatch(text string) (string, bool) {
	values, err := m.callSource()
	if err != nil {
		return "", false
	}
	for _, v := range values {
		if strings.EqualFold(v, text) {
			return v, true
		}
	}
	return "", false
}

// escape closes without committing. The just-typed text is kept; the prior
// committed value is not restored.
func (m Model) escape() (Model, tea.Cmd) {
	if !m.open {
		return m, nil
	}
	return m.close()
}

func (m Model) commit(value string, isNew bool) (Model, tea.Cmd) {
	m.committed = value
	m.input.SetValue(value)
	field := m.field
	commitCmd := func() tea.Msg { return CommitMsg{Field: field, Value: value, IsNew: isNew} }

	if !m.open {
		return m, commitCmd
	}
	closed, closeCmd := m.close()
	return closed, tea.Batch(commitCmd, closeCmd)
}

func (m Model) openPopup() (Model, tea.Cmd) {
	m.open = true
	m, changed := m.recompute()
	m.highlight = -1
	field := m.field
	return m, tea.Batch(
		func() tea.Msg { return OpenedMsg{Field: field} },
		changed,
	)
}

func (m Model) openHighlightFirst() (Model, tea.Cmd) {
	m, cmd := m.openPopup()
	if len(m.options) > 0 {
		m.highlight = 0
	}
	return m, cmd
}

func (m Model) close() (Model, tea.Cmd) {
	m.open = false
	m.options = nil
	m.highlight = -1
	field := m.field
	return m, func() tea.Msg { return ClosedMsg{Field: field} }
}

func (m Model) textChanged() (Model, tea.Cmd) {
	if !m.open {
		return m, nil
	}
	m, changed := m.recompute()
	m.highlight = -1
	return m, changed
}

// recompute asks the option source for fresh values and filters them by the
// current input text. A source failure sets the error state and empties the
// list; the input stays editable and custom values still commit. The next
// successful recompute clears the error.
func (m Model) recompute() (Model, tea.Cmd) {
	values, err := m.callSource()
	if err != nil {
		log.Warn(log.CatUI, "option source failed", "field", m.field, "error", err)
		m.errorState = true
		m.options = nil
	} else {
		m.errorState = false
		m.options = filter(values, m.input.Value())
	}

	field := m.field
	return m, func() tea.Msg { return OptionsChangedMsg{Field: field} }
}

// callSource invokes the option source, containing panics so a broken
// source degrades the combobox instead of crashing the host.
func (m Model) callSource() (values []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &sourcePanicError{value: r}
		}
	}()
	if m.source == nil {
		return nil, nil
	}
	return m.source()
}

type sourcePanicError struct{ value any }

func (e *sourcePanicError) Error() string { return "option source panicked" }

func (m Model) exactMatch(text string) int {
	for i, opt := range m.options {
		if strings.EqualFold(opt, text) {
			return i
		}
	}
	return -1
}

// filter keeps distinct values containing the input text, preserving order.
func filter(values []string, text string) []string {
	needle := strings.ToLower(strings.TrimSpace(text))
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if needle == "" || strings.Contains(strings.ToLower(v), needle) {
			out = append(out, v)
		}
	}
	return out
}

// View renders the input and, when open, the option popup.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.input.View())

	if !m.open {
		return b.String()
	}

	b.WriteByte('\n')

	if m.errorState {
		b.WriteString(styles.FieldErrorStyle.Render("  options unavailable, type a value"))
		return b.String()
	}

	for i, opt := range m.options {
		b.WriteByte('\n')
		if i == m.highlight {
			b.WriteString(styles.SelectionIndicatorStyle.String() + styles.OptionHighlightStyle.Render(opt))
		} else {
			b.WriteString(styles.OptionStyle.Render(opt))
		}
	}

	text := strings.TrimSpace(m.input.Value())
	if text != "" && m.exactMatch(text) < 0 {
		b.WriteByte('\n')
		b.WriteString(styles.NewValueStyle.Render("  + create " + quote(text)))
	}

	width := m.width
	if width == 0 {
		width = 38
	}
	return lipgloss.NewStyle().Width(width).Render(b.String())
}

func quote(s string) string { return "\"" + s + "\"" }
