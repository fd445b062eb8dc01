package tui

import (
	tea "charm.land/bubbletea/v2"

	"contacts/internal/tui/state"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.showHelp {
			m.help = renderHelp(m.width)
		}
		return m, nil

	case pageLoadedMsg:
		return m, m.run(m.machine.FetchDone(msg.seq, msg.page, msg.err))

	case mutationDoneMsg:
		cmd := m.run(m.machine.MutationDone(msg.kind, msg.err))
		if msg.err == nil && msg.kind != state.MutationDelete {
			m.syncInputs()
			m.setFocus(focusTable)
		}
		return m, cmd

	case searchTickMsg:
		return m, m.run(m.machine.SearchTick(msg.seq))

	case statusTickMsg:
		m.machine.StatusTick(msg.seq)
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if _, pending := m.machine.ConfirmingDelete(); pending {
		switch key {
		case "y", "Y":
			return m, m.run(m.machine.Confirm(true))
		case "n", "N", "esc":
			return m, m.run(m.machine.Confirm(false))
		}
		return m, nil
	}

	switch key {
	case "tab":
		cmd := m.setFocus((m.focus + 1) % focusCount)
		return m, cmd
	case "shift+tab":
		cmd := m.setFocus((m.focus + focusCount - 1) % focusCount)
		return m, cmd
	}

	switch m.focus {
	case focusSearch:
		return m.handleSearchKey(msg)
	case focusName, focusEmail, focusPhone:
		return m.handleFormKey(msg)
	default:
		return m.handleTableKey(key)
	}
}

func (m Model) handleTableKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		if m.showHelp {
			m.help = renderHelp(m.width)
		}
	case "up", "k":
		m.machine.MoveSelection(-1)
	case "down", "j":
		m.machine.MoveSelection(1)
	case "right", "l", "pgdown":
		return m, m.run(m.machine.NextPage())
	case "left", "h", "pgup":
		return m, m.run(m.machine.PrevPage())
	case "r":
		return m, m.run(m.machine.Refresh())
	case "/":
		cmd := m.setFocus(focusSearch)
		return m, cmd
	case "a":
		m.machine.CancelEdit()
		m.syncInputs()
		cmd := m.setFocus(focusName)
		return m, cmd
	case "e", "enter":
		if m.machine.EditSelected() {
			m.syncInputs()
			cmd := m.setFocus(focusName)
			return m, cmd
		}
	case "d":
		return m, m.run(m.machine.RequestDelete())
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		cmd := m.setFocus(focusTable)
		return m, cmd
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, tea.Batch(cmd, m.run(m.machine.SetSearch(m.search.Value())))
}

func (m Model) handleFormKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.machine.CancelEdit()
		m.syncInputs()
		cmd := m.setFocus(focusTable)
		return m, cmd
	case "enter":
		m.machine.SetForm(m.formValues())
		return m, m.run(m.machine.Submit())
	}
	i := int(m.focus - focusName)
	var cmd tea.Cmd
	m.inputs[i], cmd = m.inputs[i].Update(msg)
	m.machine.SetForm(m.formValues())
	return m, cmd
}

// setFocus moves keyboard focus and focuses the matching text input.
func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	m.search.Blur()
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	switch f {
	case focusSearch:
		return m.search.Focus()
	case focusName, focusEmail, focusPhone:
		return m.inputs[f-focusName].Focus()
	}
	return nil
}

func (m Model) formValues() state.Form {
	return state.Form{
		Name:  m.inputs[0].Value(),
		Email: m.inputs[1].Value(),
		Phone: m.inputs[2].Value(),
	}
}

// syncInputs copies the machine's form into the text inputs.
func (m *Model) syncInputs() {
	f := m.machine.Form()
	m.inputs[0].SetValue(f.Name)
	m.inputs[1].SetValue(f.Email)
	m.inputs[2].SetValue(f.Phone)
}
