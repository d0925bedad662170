// Package chat provides the interactive terminal interface for quorum.
// It is a pure reader of the pipeline runner's turn log: the runner pushes
// change notifications through a channel, and the view re-renders from a
// log snapshot on every wake-up.
//
//   - model.go: types, construction, Init
//   - update.go: the Update loop
//   - view.go: rendering
//   - styles.go: lipgloss styles
package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"quorum/internal/council"
)

// logUpdatedMsg signals that the runner changed the turn log or its state.
type logUpdatedMsg struct{}

// Model is the bubbletea model for the chat interface.
type Model struct {
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   Styles
	renderer *glamour.TermRenderer

	runner  *council.Runner
	updates <-chan struct{}

	width  int
	height int
	ready  bool

	// Last submission rejection, shown inline until the next keypress.
	submitErr error
}

// New creates the chat model over a pipeline runner. The updates channel
// must be the one the runner's Notify callback feeds.
func New(runner *council.Runner, updates <-chan struct{}) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask the council anything…"
	ta.Focus()
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)

	return Model{
		textarea: ta,
		spinner:  sp,
		styles:   DefaultStyles(),
		renderer: renderer,
		runner:   runner,
		updates:  updates,
	}
}

// waitForUpdate blocks until the runner signals a change.
func waitForUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return logUpdatedMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, waitForUpdate(m.updates))
}
