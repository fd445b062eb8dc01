// Package tui is the terminal client for the contacts API. View state lives
// in the state package; this package maps keys to state transitions and
// state effects to API calls and timers.
package tui

import (
	"context"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"contacts/internal/contact/models"
	"contacts/internal/platform/config"
	"contacts/internal/tui/state"
)

// API is the subset of the contacts client the TUI calls.
type API interface {
	List(ctx context.Context, q models.ListQuery) (*models.ContactPage, error)
	Create(ctx context.Context, req models.CreateContactRequest) (*models.Contact, error)
	Update(ctx context.Context, contactID string, req models.UpdateContactRequest) (*models.Contact, error)
	Delete(ctx context.Context, contactID string) (*models.DeleteResult, error)
}

type focus int

const (
	focusTable focus = iota
	focusSearch
	focusName
	focusEmail
	focusPhone
)

const focusCount = 5

// Model implements tea.Model.
type Model struct {
	api     API
	cfg     config.Client
	machine *state.Machine
	after   func(d time.Duration, msg tea.Msg) tea.Cmd

	search textinput.Model
	inputs [3]textinput.Model
	focus  focus

	showHelp bool
	help     string
	width    int
	height   int
}

type Option func(*Model)

// WithTimer replaces tea.Tick for debounce and status timers, for tests.
func WithTimer(after func(d time.Duration, msg tea.Msg) tea.Cmd) Option {
	return func(m *Model) { m.after = after }
}

func New(api API, cfg config.Client, opts ...Option) Model {
	search := textinput.New()
	search.Prompt = "Search: "
	search.Placeholder = "name"

	var inputs [3]textinput.Model
	for i, label := range []string{"Name", "Email", "Phone"} {
		in := textinput.New()
		in.Prompt = label + ": "
		in.Placeholder = label
		inputs[i] = in
	}

	m := Model{
		api:     api,
		cfg:     cfg,
		machine: state.New(cfg.PageSize),
		after: func(d time.Duration, msg tea.Msg) tea.Cmd {
			return tea.Tick(d, func(time.Time) tea.Msg { return msg })
		},
		search: search,
		inputs: inputs,
		focus:  focusTable,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return m.run(m.machine.Start())
}

// Machine exposes the view state, for tests.
func (m Model) Machine() *state.Machine {
	return m.machine
}
