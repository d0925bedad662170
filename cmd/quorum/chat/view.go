package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"quorum/internal/council"
	"quorum/internal/model"
)

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()
	content := m.styles.Content.Render(m.viewport.View())

	input := m.styles.Input.Render(m.textarea.View())
	if m.submitErr != nil {
		input = lipgloss.JoinVertical(lipgloss.Left,
			input,
			m.styles.Error.Render("  "+m.submitErr.Error()))
	}

	footer := m.styles.Muted.Render("Enter: send | Alt+Enter: newline | Ctrl+X: stop | Ctrl+C: quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, content, input, footer)
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" quorum ")

	var status string
	if m.runner.Busy() {
		msg := m.runner.Status()
		if msg == "" {
			msg = "Synthesizing…"
		}
		elapsed := m.runner.Elapsed().Round(100 * time.Millisecond)
		status = lipgloss.JoinHorizontal(lipgloss.Center,
			m.spinner.View(), " ",
			m.styles.Badge.Render(msg), " ",
			m.styles.Muted.Render(fmt.Sprintf("(%s)", elapsed)))
	} else {
		status = m.styles.Success.Render("Ready")
	}

	line := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", status)
	divider := m.styles.Muted.Render(strings.Repeat("─", max(m.width, 1)))
	return lipgloss.JoinVertical(lipgloss.Left, line, divider)
}

func (m Model) renderHistory(turns []council.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		switch {
		case t.Role == model.RoleUser:
			sb.WriteString(m.styles.UserLabel.Render("You") + "\n")
			sb.WriteString(m.styles.UserText.Render(t.Text()))
			if t.Image != nil {
				sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("\n  [attachment: %s, %d bytes]", t.Image.MIMEType, len(t.Image.Data))))
			}
			sb.WriteString("\n")

		case t.IsError:
			sb.WriteString(m.styles.Model.Render("quorum") + "\n")
			sb.WriteString(m.styles.Error.Render(t.Text()))
			sb.WriteString("\n")

		default:
			sb.WriteString(m.styles.Model.Render("quorum") + "\n")
			if t.Final {
				sb.WriteString(m.safeRenderMarkdown(t.Text()))
				sb.WriteString(m.renderSources(t.Sources))
				sb.WriteString(m.renderWork(t.Work))
			} else {
				// Streaming draft: plain text, markdown once finalized.
				sb.WriteString(t.Text())
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

func (m Model) renderSources(sources []council.Source) string {
	if len(sources) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(m.styles.Muted.Render("Sources:") + "\n")
	for i, s := range sources {
		title := s.Title
		if title == "" {
			title = s.URI
		}
		sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("  %d. %s (%s)", i+1, title, s.URI)) + "\n")
	}
	return sb.String()
}

func (m Model) renderWork(work *council.WorkTrace) string {
	if work == nil {
		return ""
	}
	return m.styles.Muted.Render(fmt.Sprintf(
		"Deliberation: %d initial answers, %d refined answers",
		len(work.Initial), len(work.Refined))) + "\n"
}

// safeRenderMarkdown renders markdown with panic recovery; glamour can choke
// on pathological input and the chat must never crash over formatting.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content + "\n"
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content + "\n"
}
