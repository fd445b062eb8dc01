package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contacts/internal/contact/models"
	"contacts/internal/platform/config"
	"contacts/internal/tui/state"
	id "contacts/pkg/domain"
)

// fakeAPI is an in-memory stand-in for the contacts client.
type fakeAPI struct {
	mu       sync.Mutex
	contacts []*models.Contact
	queries  []models.ListQuery
	created  []models.CreateContactRequest
	updated  map[string]models.UpdateContactRequest
	deleted  []string
	err      error
}

func newFakeAPI(t *testing.T, n int) *fakeAPI {
	t.Helper()
	api := &fakeAPI{updated: map[string]models.UpdateContactRequest{}}
	for i := 1; i <= n; i++ {
		api.add(t, fmt.Sprintf("Person %02d", i), fmt.Sprintf("p%02d@example.com", i), "555-0100")
	}
	return api
}

func (f *fakeAPI) add(t *testing.T, name, email, phone string) *models.Contact {
	t.Helper()
	contactID, err := id.NewContactID()
	require.NoError(t, err)
	c, err := models.NewContact(contactID, name, email, phone, time.Now())
	require.NoError(t, err)
	f.contacts = append(f.contacts, c)
	return c
}

func (f *fakeAPI) List(_ context.Context, q models.ListQuery) (*models.ContactPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	var matched []*models.Contact
	for _, c := range f.contacts {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(q.Search)) {
			matched = append(matched, c)
		}
	}
	start := min((q.Page-1)*q.Limit, len(matched))
	end := min(start+q.Limit, len(matched))
	return &models.ContactPage{
		Total:    len(matched),
		Page:     q.Page,
		Pages:    models.PageCount(len(matched), q.Limit),
		Contacts: matched[start:end],
	}, nil
}

func (f *fakeAPI) Create(_ context.Context, req models.CreateContactRequest) (*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, req)
	return &models.Contact{Name: req.Name, Email: req.Email, Phone: req.Phone}, nil
}

func (f *fakeAPI) Update(_ context.Context, contactID string, req models.UpdateContactRequest) (*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.updated[contactID] = req
	return &models.Contact{}, nil
}

func (f *fakeAPI) Delete(_ context.Context, contactID string) (*models.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, contactID)
	return &models.DeleteResult{Message: models.DeletedMessage}, nil
}

type timerCall struct {
	d   time.Duration
	msg tea.Msg
}

// timers records debounce and status timers instead of sleeping.
type timers struct {
	calls []timerCall
}

func (r *timers) after(d time.Duration, msg tea.Msg) tea.Cmd {
	r.calls = append(r.calls, timerCall{d: d, msg: msg})
	return nil
}

func (r *timers) last() timerCall {
	return r.calls[len(r.calls)-1]
}

func testConfig() config.Client {
	cfg := config.ClientDefaults()
	cfg.PageSize = 5
	return cfg
}

func newTestModel(t *testing.T, api *fakeAPI) (Model, *timers) {
	t.Helper()
	rec := &timers{}
	m := New(api, testConfig(), WithTimer(rec.after))
	m = feed(t, m, m.Init())
	return m, rec
}

func press(s string) tea.KeyPressMsg {
	r := []rune(s)[0]
	return tea.KeyPressMsg(tea.Key{Text: s, Code: r})
}

func special(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg(tea.Key{Code: code})
}

// collect runs cmd and returns the messages this package produces. Commands
// that do not answer promptly, such as cursor blinks, are abandoned.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	select {
	case msg := <-ch:
		if batch, ok := msg.(tea.BatchMsg); ok {
			var out []tea.Msg
			for _, c := range batch {
				out = append(out, collect(c)...)
			}
			return out
		}
		switch msg.(type) {
		case pageLoadedMsg, mutationDoneMsg, searchTickMsg, statusTickMsg:
			return []tea.Msg{msg}
		}
		return nil
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// feed runs cmd and feeds its results back into the model until it settles.
func feed(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		require.Less(t, i, 20, "model did not settle")
		var cmds []tea.Cmd
		for _, msg := range collect(cmd) {
			next, c := m.Update(msg)
			m = next.(Model)
			cmds = append(cmds, c)
		}
		cmd = tea.Batch(cmds...)
	}
	return m
}

// send delivers msg and settles the resulting commands.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	return feed(t, next.(Model), cmd)
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m = send(t, m, press(string(r)))
	}
	return m
}

func TestInitLoadsFirstPage(t *testing.T) {
	api := newFakeAPI(t, 7)
	m, _ := newTestModel(t, api)

	require.Len(t, api.queries, 1)
	assert.Equal(t, models.ListQuery{Page: 1, Limit: 5}, api.queries[0])
	assert.Equal(t, 7, m.Machine().Total())
	assert.Equal(t, 2, m.Machine().Pages())
	assert.Len(t, m.Machine().Contacts(), 5)
	assert.Equal(t, state.PhaseIdle, m.Machine().Phase())

	content := m.View().Content
	assert.Contains(t, content, "page 1 of 2")
	assert.Contains(t, content, "Person 01")
	assert.NotContains(t, content, "Person 06")
}

func TestPagingKeys(t *testing.T) {
	api := newFakeAPI(t, 7)
	m, _ := newTestModel(t, api)

	m = send(t, m, special(tea.KeyRight))
	assert.Equal(t, 2, m.Machine().Page())
	assert.Len(t, m.Machine().Contacts(), 2)
	assert.Contains(t, m.View().Content, "page 2 of 2")

	m = send(t, m, special(tea.KeyRight))
	assert.Equal(t, 2, m.Machine().Page(), "no page past the last")
	assert.Len(t, api.queries, 2)

	m = send(t, m, press("h"))
	assert.Equal(t, 1, m.Machine().Page())
}

func TestSelectionKeys(t *testing.T) {
	m, _ := newTestModel(t, newFakeAPI(t, 3))

	m = send(t, m, press("j"))
	m = send(t, m, special(tea.KeyDown))
	m = send(t, m, special(tea.KeyDown))
	assert.Equal(t, 2, m.Machine().Selected())

	m = send(t, m, press("k"))
	assert.Equal(t, 1, m.Machine().Selected())
}

func TestSearchIsDebounced(t *testing.T) {
	api := newFakeAPI(t, 7)
	api.add(t, "Zed Alpha", "zed@example.com", "555-0199")
	m, rec := newTestModel(t, api)

	m = send(t, m, press("/"))
	require.Equal(t, focusSearch, m.focus)

	m = typeText(t, m, "ze")
	assert.Equal(t, "ze", m.Machine().Search())
	assert.Len(t, api.queries, 1, "typing alone does not fetch")
	require.Len(t, rec.calls, 2)
	assert.Equal(t, testConfig().SearchDebounce, rec.last().d)

	// The first keystroke's timer is stale.
	m = send(t, m, rec.calls[0].msg)
	assert.Len(t, api.queries, 1)

	m = send(t, m, rec.last().msg)
	require.Len(t, api.queries, 2)
	assert.Equal(t, "ze", api.queries[1].Search)
	assert.Equal(t, 1, m.Machine().Total())
	assert.Contains(t, m.View().Content, "Zed Alpha")

	m = send(t, m, special(tea.KeyEnter))
	assert.Equal(t, focusTable, m.focus)
}

func TestCreateRequiresAllFields(t *testing.T) {
	api := newFakeAPI(t, 1)
	m, rec := newTestModel(t, api)

	m = send(t, m, press("a"))
	require.Equal(t, focusName, m.focus)
	m = typeText(t, m, "Ada")
	m = send(t, m, special(tea.KeyEnter))

	assert.Empty(t, api.created)
	assert.Equal(t, state.StatusWarning, m.Machine().Status().Level)
	assert.Contains(t, m.View().Content, "required")

	m = send(t, m, rec.last().msg)
	assert.Empty(t, m.Machine().Status().Text)
}

func TestCreateContact(t *testing.T) {
	api := newFakeAPI(t, 1)
	m, _ := newTestModel(t, api)

	m = send(t, m, press("a"))
	m = typeText(t, m, "Ada Lovelace")
	m = send(t, m, special(tea.KeyTab))
	m = typeText(t, m, "ada@example.com")
	m = send(t, m, special(tea.KeyTab))
	m = typeText(t, m, "555-0101")
	m = send(t, m, special(tea.KeyEnter))

	require.Len(t, api.created, 1)
	assert.Equal(t, models.CreateContactRequest{
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
		Phone: "555-0101",
	}, api.created[0])
	assert.Len(t, api.queries, 2, "a successful create refetches")
	assert.Equal(t, "Contact added", m.Machine().Status().Text)
	assert.Equal(t, focusTable, m.focus)
	assert.Equal(t, state.Form{}, m.Machine().Form())
	assert.Empty(t, m.inputs[0].Value())
}

func TestEditContact(t *testing.T) {
	api := newFakeAPI(t, 2)
	m, _ := newTestModel(t, api)
	target := api.contacts[1]

	m = send(t, m, press("j"))
	m = send(t, m, press("e"))
	require.Equal(t, focusName, m.focus)
	assert.Equal(t, target.ID.String(), m.Machine().EditID())
	assert.Equal(t, target.Name, m.inputs[0].Value())
	assert.Equal(t, state.PhaseEditing, m.Machine().Phase())

	m = typeText(t, m, " Jr")
	m = send(t, m, special(tea.KeyEnter))

	req, ok := api.updated[target.ID.String()]
	require.True(t, ok)
	require.NotNil(t, req.Name)
	assert.Equal(t, target.Name+" Jr", *req.Name)
	assert.Equal(t, target.Email, *req.Email)
	assert.Equal(t, "Contact updated", m.Machine().Status().Text)
	assert.Empty(t, m.Machine().EditID())
}

func TestEscapeCancelsEdit(t *testing.T) {
	m, _ := newTestModel(t, newFakeAPI(t, 1))

	m = send(t, m, press("e"))
	require.NotEmpty(t, m.Machine().EditID())

	m = send(t, m, special(tea.KeyEscape))
	assert.Empty(t, m.Machine().EditID())
	assert.Equal(t, focusTable, m.focus)
	assert.Empty(t, m.inputs[0].Value())
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	api := newFakeAPI(t, 2)
	m, _ := newTestModel(t, api)
	first := api.contacts[0]

	m = send(t, m, press("d"))
	assert.Contains(t, m.View().Content, "Delete "+first.Name+"? (y/n)")

	m = send(t, m, press("n"))
	assert.Empty(t, api.deleted)
	_, pending := m.Machine().ConfirmingDelete()
	assert.False(t, pending)

	m = send(t, m, press("d"))
	m = send(t, m, press("y"))
	assert.Equal(t, []string{first.ID.String()}, api.deleted)
	assert.Equal(t, "Contact deleted", m.Machine().Status().Text)
	assert.Len(t, api.queries, 2)
}

func TestFetchErrorIsShown(t *testing.T) {
	api := newFakeAPI(t, 0)
	api.err = errors.New("connection refused")
	m, rec := newTestModel(t, api)

	assert.Equal(t, state.PhaseErrorDisplay, m.Machine().Phase())
	assert.Contains(t, m.View().Content, "connection refused")
	assert.Equal(t, testConfig().StatusTimeout, rec.last().d)

	api.err = nil
	m = send(t, m, press("r"))
	assert.Equal(t, state.PhaseErrorDisplay, m.Machine().Phase(), "status stays until dismissed")
	assert.Contains(t, m.View().Content, "No contacts")
}

func TestTabCyclesFocus(t *testing.T) {
	m, _ := newTestModel(t, newFakeAPI(t, 0))

	want := []focus{focusSearch, focusName, focusEmail, focusPhone, focusTable}
	for _, f := range want {
		m = send(t, m, special(tea.KeyTab))
		assert.Equal(t, f, m.focus)
	}

	m = send(t, m, tea.KeyPressMsg(tea.Key{Code: tea.KeyTab, Mod: tea.ModShift}))
	assert.Equal(t, focusPhone, m.focus)
}

func TestHelpAndQuit(t *testing.T) {
	m, _ := newTestModel(t, newFakeAPI(t, 0))

	m = send(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m = send(t, m, press("?"))
	assert.True(t, m.showHelp)
	assert.NotEmpty(t, m.help)

	_, cmd := m.Update(press("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = m.Update(tea.KeyPressMsg(tea.Key{Code: 'c', Mod: tea.ModCtrl}))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestPadTruncates(t *testing.T) {
	assert.Equal(t, "abc  ", pad("abc", 5))
	assert.Equal(t, "abcd…", pad("abcdefgh", 5))
}
