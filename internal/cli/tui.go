package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// gameListModel is the bubbletea model of the library browser. Typing
// narrows the list to titles containing the query.
type gameListModel struct {
	All      []gameRow
	Visible  []gameRow
	Query    string
	Cursor   int
	Offset   int
	Height   int
	Selected *gameRow
}

func newGameListModel(rows []gameRow) gameListModel {
	return gameListModel{All: rows, Visible: rows, Height: 15}
}

func (m gameListModel) Init() tea.Cmd {
	return nil
}

func (m gameListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case tea.KeyDown:
			if m.Cursor < len(m.Visible)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case tea.KeyEnter:
			if len(m.Visible) == 0 {
				return m, nil
			}
			row := m.Visible[m.Cursor]
			m.Selected = &row
			return m, tea.Quit
		case tea.KeyBackspace:
			if m.Query != "" {
				r := []rune(m.Query)
				m = m.filter(string(r[:len(r)-1]))
			}
		case tea.KeyRunes, tea.KeySpace:
			m = m.filter(m.Query + string(msg.Runes))
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

// filter shows the rows whose title contains q, ignoring case.
func (m gameListModel) filter(q string) gameListModel {
	m.Query = q
	m.Cursor, m.Offset = 0, 0
	if q == "" {
		m.Visible = m.All
		return m
	}
	needle := strings.ToLower(q)
	m.Visible = nil
	for _, r := range m.All {
		if strings.Contains(strings.ToLower(r.Title), needle) {
			m.Visible = append(m.Visible, r)
		}
	}
	return m
}

func (m gameListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Humble Library"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ install  type to filter  esc quit"))
	b.WriteString("\n")
	if m.Query != "" {
		b.WriteString(listSelectedStyle.Render("filter: ") + listNormalStyle.Render(m.Query))
	}
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Visible))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Visible[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, r.Title, r.OS, r.Tags, r.License})
	}

	t := newTable([]string{"", "Title", "OS", "Tags", "License"}, rows, func(row, col int) lipgloss.Style {
		if m.Offset+row == m.Cursor {
			return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
		}
		if col >= 2 {
			return listDimStyle
		}
		return listNormalStyle
	})
	b.WriteString(t.Render())
	b.WriteString("\n\n")
	if len(m.Visible) == 0 {
		b.WriteString(listDimStyle.Render("  no matching games"))
	} else {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Visible))))
	}
	return b.String()
}
