package tui

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"contacts/internal/contact/models"
	"contacts/internal/tui/state"
)

const (
	nameWidth  = 24
	emailWidth = 30
	phoneWidth = 16
)

func (m Model) View() tea.View {
	var view tea.View
	view.AltScreen = true
	view.Content = m.render()
	return view
}

func (m Model) render() string {
	sections := []string{
		titleStyle.Render("Contacts") + "  " + mutedStyle.Render(m.machine.Phase().String()),
		m.panel(focusSearch, m.search.View()),
		m.panel(focusTable, m.renderTable()),
		m.panel(focusName, m.renderForm()),
	}
	if line := m.renderStatus(); line != "" {
		sections = append(sections, line)
	}
	if m.showHelp {
		sections = append(sections, m.help)
	} else {
		sections = append(sections, mutedStyle.Render("? help • q quit"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// panel borders a section, highlighted when it holds focus. The form counts
// as focused when any of its inputs is.
func (m Model) panel(f focus, content string) string {
	focused := m.focus == f || (f == focusName && m.focus >= focusName)
	if focused {
		return focusedPanelStyle.Render(content)
	}
	return panelStyle.Render(content)
}

func (m Model) renderTable() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(row("Name", "Email", "Phone")))
	b.WriteByte('\n')

	contacts := m.machine.Contacts()
	if len(contacts) == 0 {
		b.WriteString(mutedStyle.Render("No contacts"))
		b.WriteByte('\n')
	}
	for i, c := range contacts {
		line := contactRow(c)
		if i == m.machine.Selected() && m.focus == focusTable {
			line = selectedRowStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteString(mutedStyle.Render(fmt.Sprintf("page %d of %d • %d contacts",
		m.machine.Page(), m.machine.Pages(), m.machine.Total())))
	return b.String()
}

func (m Model) renderForm() string {
	title := "New contact"
	if m.machine.EditID() != "" {
		title = "Edit contact"
	}
	lines := []string{headerStyle.Render(title)}
	for _, in := range m.inputs {
		lines = append(lines, in.View())
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStatus() string {
	if name, pending := m.machine.ConfirmingDelete(); pending {
		return statusStyles[state.StatusWarning].Render(fmt.Sprintf("Delete %s? (y/n)", name))
	}
	st := m.machine.Status()
	if st.Text == "" {
		return ""
	}
	return statusStyles[st.Level].Render(st.Text)
}

func contactRow(c *models.Contact) string {
	return row(c.Name, c.Email, c.Phone)
}

func row(name, email, phone string) string {
	return pad(name, nameWidth) + " " + pad(email, emailWidth) + " " + pad(phone, phoneWidth)
}

// pad truncates or right-pads s to width cells.
func pad(s string, width int) string {
	w := lipgloss.Width(s)
	if w > width {
		r := []rune(s)
		for lipgloss.Width(string(r)) > width-1 && len(r) > 0 {
			r = r[:len(r)-1]
		}
		return string(r) + "…"
	}
	return s + strings.Repeat(" ", width-w)
}
