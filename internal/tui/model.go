// Package tui is a terminal chat over one loaded document.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"document-qa/internal/models"
)

const (
	themeDark  = "dark"
	themeLight = "light"
)

// Chat is the part of a session the TUI drives. History is read once at
// start; later turns are tracked by the model so that Update never waits on
// an ask in flight.
type Chat interface {
	Ask(ctx context.Context, query string) (*models.PromptResponse, error)
	History() []models.ChatTurn
}

type answerMsg struct {
	resp *models.PromptResponse
	err  error
	at   time.Time
}

// Model is the Bubble Tea model for the chat.
type Model struct {
	ctx      context.Context
	chat     Chat
	input    textinput.Model
	viewport viewport.Model
	document string
	turns    []models.ChatTurn
	status   string
	theme    string
	busy     bool
	ready    bool
}

func New(ctx context.Context, chat Chat, document string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Enter your question about the document..."
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		chat:     chat,
		input:    ti,
		viewport: vp,
		document: document,
		turns:    chat.History(),
		theme:    themeDark,
		status:   "Document processed successfully! Ask your questions below.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, document, status, input
		vh := msg.Height - reserved - th
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = vh
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.turns = append(m.turns, models.ChatTurn{Query: msg.resp.Query, Answer: msg.resp.Content, Timestamp: msg.at})
			m.status = fmt.Sprintf("Answered from %d chunk(s).", len(msg.resp.Chunks))
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			m.status = "Analyzing document..."
			return m, m.ask(q)
		case "ctrl+t":
			if m.theme == themeDark {
				m.theme = themeLight
			} else {
				m.theme = themeDark
			}
			m.refresh()
			return m, nil
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.chat.Ask(m.ctx, q)
		return answerMsg{resp: resp, err: err, at: time.Now()}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	accent := accentColor(m.theme)
	header := lipgloss.NewStyle().Bold(true).Foreground(accent).Render("Document Assistant Bot")
	doc := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("Current Document: " + m.document)
	transcript := transcriptBoxStyle.BorderForeground(accent).Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + doc + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderTranscript(m.turns, m.theme))
	m.viewport.GotoBottom()
}

func renderTranscript(turns []models.ChatTurn, theme string) string {
	if len(turns) == 0 {
		return "No questions yet."
	}
	label := lipgloss.NewStyle().Bold(true).Foreground(accentColor(theme))
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		ts := t.Timestamp.Format("15:04:05")
		fmt.Fprintf(&sb, "%s %s %s\n", ts, label.Render("You:"), t.Query)
		fmt.Fprintf(&sb, "%s %s %s\n", ts, label.Render("Assistant:"), t.Answer)
	}
	return sb.String()
}

func accentColor(theme string) lipgloss.Color {
	if theme == themeLight {
		return lipgloss.Color("#007BFF")
	}
	return lipgloss.Color("#00FFAA")
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
