package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		taCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.submitErr = nil

		switch msg.Type {
		case tea.KeyCtrlC:
			m.runner.Cancel()
			return m, tea.Quit

		case tea.KeyCtrlX:
			// Stop the in-flight run; the runner surfaces the
			// cancellation as an error turn.
			if m.runner.Busy() {
				m.runner.Cancel()
			}
			return m, nil

		case tea.KeyEnter:
			if msg.Alt {
				break // Alt+Enter inserts a newline via the textarea
			}
			text := strings.TrimSpace(m.textarea.Value())
			if err := m.runner.Submit(context.Background(), text, nil); err != nil {
				m.submitErr = err
				return m, nil
			}
			m.textarea.Reset()
			m.refreshViewport()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 3
		inputHeight := 5
		if !m.ready {
			m.viewport = viewport.New(msg.Width-2, msg.Height-headerHeight-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 2
			m.viewport.Height = msg.Height - headerHeight - inputHeight
		}
		m.refreshViewport()

	case logUpdatedMsg:
		m.refreshViewport()
		return m, tea.Batch(waitForUpdate(m.updates), m.spinner.Tick)

	case spinner.TickMsg:
		m.spinner, spCmd = m.spinner.Update(msg)
		if m.runner.Busy() {
			// Keep ticking so the header spinner and elapsed time move.
			return m, spCmd
		}
		return m, nil
	}

	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(taCmd, vpCmd)
}

// refreshViewport re-renders the turn log into the viewport and follows the
// tail, so the streaming answer stays in view.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderHistory(m.runner.Log().Snapshot()))
	m.viewport.GotoBottom()
}
