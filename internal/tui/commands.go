package tui

import (
	"context"

	tea "charm.land/bubbletea/v2"

	"contacts/internal/contact/models"
	"contacts/internal/tui/state"
)

type pageLoadedMsg struct {
	seq  int
	page *models.ContactPage
	err  error
}

type mutationDoneMsg struct {
	kind state.Mutation
	err  error
}

type searchTickMsg struct{ seq int }

type statusTickMsg struct{ seq int }

// run turns state effects into commands.
func (m Model) run(effects []state.Effect) tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(effects))
	for _, e := range effects {
		cmds = append(cmds, m.command(e))
	}
	return tea.Batch(cmds...)
}

func (m Model) command(e state.Effect) tea.Cmd {
	api, timeout := m.api, m.cfg.RequestTimeout
	withTimeout := func() (context.Context, context.CancelFunc) {
		if timeout <= 0 {
			return context.WithCancel(context.Background())
		}
		return context.WithTimeout(context.Background(), timeout)
	}

	switch e.Kind {
	case state.EffectFetch:
		return func() tea.Msg {
			ctx, cancel := withTimeout()
			defer cancel()
			page, err := api.List(ctx, e.Query)
			return pageLoadedMsg{seq: e.Seq, page: page, err: err}
		}
	case state.EffectCreate:
		return func() tea.Msg {
			ctx, cancel := withTimeout()
			defer cancel()
			_, err := api.Create(ctx, models.CreateContactRequest{
				Name:  e.Form.Name,
				Email: e.Form.Email,
				Phone: e.Form.Phone,
			})
			return mutationDoneMsg{kind: state.MutationCreate, err: err}
		}
	case state.EffectUpdate:
		return func() tea.Msg {
			ctx, cancel := withTimeout()
			defer cancel()
			_, err := api.Update(ctx, e.ID, models.UpdateContactRequest{
				Name:  &e.Form.Name,
				Email: &e.Form.Email,
				Phone: &e.Form.Phone,
			})
			return mutationDoneMsg{kind: state.MutationUpdate, err: err}
		}
	case state.EffectDelete:
		return func() tea.Msg {
			ctx, cancel := withTimeout()
			defer cancel()
			_, err := api.Delete(ctx, e.ID)
			return mutationDoneMsg{kind: state.MutationDelete, err: err}
		}
	case state.EffectSearchTimer:
		return m.after(m.cfg.SearchDebounce, searchTickMsg{seq: e.Seq})
	case state.EffectStatusTimer:
		return m.after(m.cfg.StatusTimeout, statusTickMsg{seq: e.Seq})
	}
	return nil
}
