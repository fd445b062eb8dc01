// Package state holds the contacts TUI view state as a pure state machine.
// Methods never perform I/O; they return Effects the caller turns into
// requests and timers, and the results are fed back through the *Done and
// *Tick methods.
package state

import (
	"strings"

	"contacts/internal/contact/models"
)

// Phase is the coarse view state shown to the user.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseEditing
	PhaseErrorDisplay
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseEditing:
		return "editing"
	case PhaseErrorDisplay:
		return "error"
	default:
		return "idle"
	}
}

// StatusLevel colours the status line.
type StatusLevel int

const (
	StatusInfo StatusLevel = iota
	StatusSuccess
	StatusWarning
	StatusError
)

// Status is a transient message. Seq identifies it so a dismissal timer for
// an older message cannot clear a newer one.
type Status struct {
	Level StatusLevel
	Text  string
	Seq   int
}

// Form is the create/edit form content.
type Form struct {
	Name  string
	Email string
	Phone string
}

func (f Form) trimmed() Form {
	return Form{
		Name:  strings.TrimSpace(f.Name),
		Email: strings.TrimSpace(f.Email),
		Phone: strings.TrimSpace(f.Phone),
	}
}

func (f Form) complete() bool {
	return f.Name != "" && f.Email != "" && f.Phone != ""
}

// Mutation names a write request.
type Mutation int

const (
	MutationCreate Mutation = iota
	MutationUpdate
	MutationDelete
)

// EffectKind says what the caller must do.
type EffectKind int

const (
	// EffectFetch loads Query; the result goes to FetchDone with Seq.
	EffectFetch EffectKind = iota
	// EffectCreate posts Form; the result goes to MutationDone.
	EffectCreate
	// EffectUpdate puts Form to ID; the result goes to MutationDone.
	EffectUpdate
	// EffectDelete deletes ID; the result goes to MutationDone.
	EffectDelete
	// EffectSearchTimer calls SearchTick(Seq) after the debounce delay.
	EffectSearchTimer
	// EffectStatusTimer calls StatusTick(Seq) after the status timeout.
	EffectStatusTimer
)

type Effect struct {
	Kind  EffectKind
	Query models.ListQuery
	ID    string
	Form  Form
	Seq   int
}

// Machine is the TUI view state. The zero value is not usable; call New.
type Machine struct {
	limit int

	page     int
	pages    int
	total    int
	search   string
	contacts []*models.Contact
	selected int

	editID string
	form   Form

	fetching    bool
	mutating    bool
	fetchSeq    int
	searchSeq   int
	confirmID   string
	confirmName string

	status    Status
	statusSeq int
}

// New creates a machine showing limit contacts per page.
func New(limit int) *Machine {
	if limit < 1 {
		limit = 5
	}
	return &Machine{limit: limit, page: 1, pages: 1}
}

// Phase derives the coarse view state. Loading wins over an error status so
// the user sees progress first.
func (m *Machine) Phase() Phase {
	switch {
	case m.fetching || m.mutating:
		return PhaseLoading
	case m.status.Text != "" && m.status.Level == StatusError:
		return PhaseErrorDisplay
	case m.editID != "":
		return PhaseEditing
	default:
		return PhaseIdle
	}
}

func (m *Machine) Page() int                   { return m.page }
func (m *Machine) Pages() int                  { return m.pages }
func (m *Machine) Total() int                  { return m.total }
func (m *Machine) Search() string              { return m.search }
func (m *Machine) Contacts() []*models.Contact { return m.contacts }
func (m *Machine) Selected() int               { return m.selected }
func (m *Machine) Form() Form                  { return m.form }
func (m *Machine) EditID() string              { return m.editID }
func (m *Machine) Status() Status              { return m.status }
func (m *Machine) Busy() bool                  { return m.mutating }
func (m *Machine) ConfirmingDelete() (string, bool) {
	return m.confirmName, m.confirmID != ""
}

// SelectedContact returns the highlighted row, or nil on an empty page.
func (m *Machine) SelectedContact() *models.Contact {
	if m.selected < 0 || m.selected >= len(m.contacts) {
		return nil
	}
	return m.contacts[m.selected]
}

// Start loads the first page.
func (m *Machine) Start() []Effect {
	return []Effect{m.fetch()}
}

// Refresh reloads the current page.
func (m *Machine) Refresh() []Effect {
	return []Effect{m.fetch()}
}

func (m *Machine) fetch() Effect {
	m.fetchSeq++
	m.fetching = true
	return Effect{
		Kind:  EffectFetch,
		Query: models.ListQuery{Page: m.page, Limit: m.limit, Search: m.search},
		Seq:   m.fetchSeq,
	}
}

// FetchDone applies a page result. Results of superseded fetches are
// dropped. An empty page past the first steps back one page and refetches.
func (m *Machine) FetchDone(seq int, page *models.ContactPage, err error) []Effect {
	if seq != m.fetchSeq {
		return nil
	}
	m.fetching = false
	if err != nil {
		return m.setStatus(StatusError, err.Error())
	}
	if len(page.Contacts) == 0 && m.page > 1 {
		m.page--
		return []Effect{m.fetch()}
	}

	m.contacts = page.Contacts
	m.total = page.Total
	m.pages = max(page.Pages, 1)
	if page.Page > 0 {
		m.page = page.Page
	}
	if m.selected >= len(m.contacts) {
		m.selected = max(len(m.contacts)-1, 0)
	}
	return nil
}

// SetSearch records new search text, resets to page 1 and starts the
// debounce timer. Unchanged text does nothing.
func (m *Machine) SetSearch(text string) []Effect {
	if text == m.search {
		return nil
	}
	m.search = text
	m.page = 1
	m.selected = 0
	m.searchSeq++
	return []Effect{{Kind: EffectSearchTimer, Seq: m.searchSeq}}
}

// SearchTick fires the fetch for the latest search text only.
func (m *Machine) SearchTick(seq int) []Effect {
	if seq != m.searchSeq {
		return nil
	}
	return []Effect{m.fetch()}
}

func (m *Machine) NextPage() []Effect {
	if m.page >= m.pages {
		return nil
	}
	m.page++
	m.selected = 0
	return []Effect{m.fetch()}
}

func (m *Machine) PrevPage() []Effect {
	if m.page <= 1 {
		return nil
	}
	m.page--
	m.selected = 0
	return []Effect{m.fetch()}
}

func (m *Machine) MoveSelection(delta int) {
	if len(m.contacts) == 0 {
		m.selected = 0
		return
	}
	m.selected = min(max(m.selected+delta, 0), len(m.contacts)-1)
}

// SetForm mirrors the form inputs.
func (m *Machine) SetForm(f Form) {
	m.form = f
}

// EditSelected loads the highlighted contact into the form.
func (m *Machine) EditSelected() bool {
	c := m.SelectedContact()
	if c == nil {
		return false
	}
	m.editID = c.ID.String()
	m.form = Form{Name: c.Name, Email: c.Email, Phone: c.Phone}
	return true
}

// CancelEdit leaves editing mode and clears the form.
func (m *Machine) CancelEdit() {
	m.editID = ""
	m.form = Form{}
}

// Submit creates, or updates the contact being edited. It is ignored while
// a mutation is in flight. Creating requires all three fields.
func (m *Machine) Submit() []Effect {
	if m.mutating {
		return nil
	}
	form := m.form.trimmed()
	if m.editID == "" {
		if !form.complete() {
			return m.setStatus(StatusWarning, "name, email and phone are required")
		}
		m.mutating = true
		return []Effect{{Kind: EffectCreate, Form: form}}
	}
	m.mutating = true
	return []Effect{{Kind: EffectUpdate, ID: m.editID, Form: form}}
}

// RequestDelete asks for confirmation before deleting the highlighted row.
func (m *Machine) RequestDelete() []Effect {
	if m.mutating {
		return nil
	}
	c := m.SelectedContact()
	if c == nil {
		return nil
	}
	m.confirmID = c.ID.String()
	m.confirmName = c.Name
	return nil
}

// Confirm answers the pending delete prompt.
func (m *Machine) Confirm(yes bool) []Effect {
	contactID := m.confirmID
	m.confirmID, m.confirmName = "", ""
	if !yes || contactID == "" || m.mutating {
		return nil
	}
	m.mutating = true
	return []Effect{{Kind: EffectDelete, ID: contactID}}
}

// MutationDone applies a write result. Failures leave the form and table as
// they were; successes clear the form and refetch the current page.
func (m *Machine) MutationDone(kind Mutation, err error) []Effect {
	m.mutating = false
	if err != nil {
		return m.setStatus(StatusError, err.Error())
	}

	var text string
	switch kind {
	case MutationCreate:
		text = "Contact added"
		m.form = Form{}
	case MutationUpdate:
		text = "Contact updated"
		m.CancelEdit()
	case MutationDelete:
		text = "Contact deleted"
	}
	return append(m.setStatus(StatusSuccess, text), m.fetch())
}

// StatusTick dismisses the status it was scheduled for.
func (m *Machine) StatusTick(seq int) {
	if seq == m.status.Seq {
		m.status = Status{}
	}
}

func (m *Machine) setStatus(level StatusLevel, text string) []Effect {
	m.statusSeq++
	m.status = Status{Level: level, Text: text, Seq: m.statusSeq}
	return []Effect{{Kind: EffectStatusTimer, Seq: m.statusSeq}}
}
