// ABOUTME: PromptModel is a one-line input dialog for choosing a case file to upload or a run id to watch.
// ABOUTME: Renders a styled dialog with a bubbles text input; Enter yields the value, Esc cancels.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// PromptKind says what the entered value is for.
type PromptKind int

const (
	PromptNone PromptKind = iota
	PromptCaseFile
	PromptRunID
)

// PromptModel collects one value from the user.
type PromptModel struct {
	textInput textinput.Model
	kind      PromptKind
	question  string
	err       string
}

// NewPromptModel creates an inactive prompt.
func NewPromptModel() PromptModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 512
	return PromptModel{textInput: ti}
}

// Open activates the dialog for kind.
func (m *PromptModel) Open(kind PromptKind) {
	m.kind = kind
	m.err = ""
	m.textInput.Reset()
	switch kind {
	case PromptCaseFile:
		m.question = "Patient case file (JSON)"
		m.textInput.Placeholder = "cases/patient.json"
	case PromptRunID:
		m.question = "Run ID to watch"
		m.textInput.Placeholder = "run id"
	}
	m.textInput.Focus()
}

// Close deactivates the dialog and clears the input.
func (m *PromptModel) Close() {
	m.kind = PromptNone
	m.question = ""
	m.err = ""
	m.textInput.Reset()
	m.textInput.Blur()
}

// Submit returns the trimmed value and what it is for, then closes the dialog.
// An empty value keeps the dialog open and returns PromptNone.
func (m *PromptModel) Submit() (PromptKind, string) {
	value := strings.TrimSpace(m.textInput.Value())
	if value == "" {
		m.err = "a value is required"
		return PromptNone, ""
	}
	kind := m.kind
	m.Close()
	return kind, value
}

// IsActive returns whether the dialog is visible.
func (m PromptModel) IsActive() bool {
	return m.kind != PromptNone
}

// Kind returns what the dialog is collecting.
func (m PromptModel) Kind() PromptKind {
	return m.kind
}

// SetValue replaces the input text.
func (m *PromptModel) SetValue(v string) {
	m.textInput.SetValue(v)
}

// Update forwards key events to the embedded text input.
func (m PromptModel) Update(msg tea.Msg) PromptModel {
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	_ = cmd // cursor blink cmds are not needed in the sub-model
	return m
}

// View renders the dialog. Returns an empty string when inactive.
func (m PromptModel) View() string {
	if !m.IsActive() {
		return ""
	}

	var b strings.Builder
	b.WriteString("[?] " + m.question + "\n\n")
	b.WriteString(m.textInput.View())
	if m.err != "" {
		b.WriteString("\n" + LogErrorStyle.Render(m.err))
	}
	b.WriteString("\n" + HelpStyle.Render("enter: confirm  esc: cancel"))

	return PromptStyle.Render(b.String())
}
