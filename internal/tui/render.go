package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"pdf-chat/internal/models"
)

type styles struct {
	Title  lipgloss.Style
	User   lipgloss.Style
	Bot    lipgloss.Style
	Status lipgloss.Style
	Error  lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1),
		User:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Bot:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Status: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// historyRenderer draws the conversation, answers as markdown.
type historyRenderer struct {
	markdown *glamour.TermRenderer
	styles   styles
}

func newHistoryRenderer(width int, s styles) *historyRenderer {
	md, _ := glamour.NewTermRenderer(
		glamour.WithStylePath("dracula"),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	return &historyRenderer{markdown: md, styles: s}
}

func (r *historyRenderer) Render(turns []models.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(r.styles.User.Render("You:"))
		b.WriteString(" ")
		b.WriteString(t.Question)
		b.WriteString("\n")
		b.WriteString(r.styles.Bot.Render("Assistant:"))
		b.WriteString("\n")
		b.WriteString(r.renderMarkdown(t.Answer))
	}
	return b.String()
}

func (r *historyRenderer) renderMarkdown(content string) string {
	if r.markdown == nil {
		return content
	}
	rendered, err := r.markdown.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}
