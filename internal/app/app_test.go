package app

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/citas/internal/auth"
	"github.com/nhle/citas/internal/model"
	"github.com/nhle/citas/internal/reminder"
	"github.com/nhle/citas/internal/store"
	appsync "github.com/nhle/citas/internal/sync"
	"github.com/nhle/citas/internal/ui/login"
	"github.com/nhle/citas/tests/testutil"
)

func newApp(t *testing.T) (Model, *store.SQLiteStore) {
	t.Helper()
	s := testutil.NewTestStore(t)
	clock := testutil.NewFixedClock(time.Date(2024, 6, 9, 10, 0, 0, 0, time.UTC))
	rem := reminder.New(s, s, reminder.WithClock(clock.Now), reminder.WithLocation(time.UTC))

	m := New(Services{
		Store:     s,
		Auth:      auth.NewService(s, auth.WithHashCost(bcrypt.MinCost)),
		Reminders: rem,
		Poller:    appsync.New(rem, 15*time.Minute),
		Location:  time.UTC,
	})
	return update(m, tea.WindowSizeMsg{Width: 100, Height: 30}), s
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func updateCmd(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// loginAs drives the model through a login for user n and the welcome
// seeding that follows it.
func loginAs(t *testing.T, m Model, s *store.SQLiteStore, n int) (Model, *model.User) {
	t.Helper()
	id := testutil.CreatePatient(t, s, n)
	u, err := s.GetUserByID(context.Background(), id)
	require.NoError(t, err)

	m = update(m, login.LoggedInMsg{User: u})
	m = update(m, m.seedWelcome(u.ID)())

	m, cmd := updateCmd(m, m.notifications.Reload()())
	require.NotNil(t, cmd)
	m = update(m, cmd())
	return m, u
}

func TestLogin_SeedsWelcomeAndShowsBadge(t *testing.T) {
	m, s := newApp(t)
	assert.Equal(t, ViewLogin, m.CurrentView())
	assert.Contains(t, m.View(), "Citas médicas")

	m, u := loginAs(t, m, s, 2)

	assert.Equal(t, ViewNotifications, m.CurrentView())
	assert.Equal(t, u.ID, m.User().ID)
	assert.Equal(t, 1, m.unreadCount)
	assert.True(t, m.syncing)

	view := m.View()
	assert.Contains(t, view, "Usuario C")
	assert.Contains(t, view, "1 sin leer")
	assert.Contains(t, view, reminder.WelcomeMessage)

	count, err := s.CountNotifications(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReminderResult(t *testing.T) {
	m, s := newApp(t)
	m, u := loginAs(t, m, s, 1)

	m, cmd := updateCmd(m, appsync.ReminderResultMsg{
		UserID:  u.ID,
		Created: []model.Notification{{UserID: u.ID, Message: "x"}, {UserID: u.ID, Message: "y"}},
	})
	require.NotNil(t, cmd)
	assert.False(t, m.syncing)
	assert.Equal(t, "2 recordatorios nuevos", m.statusMsg)
	assert.Contains(t, m.keyHints(), "2 recordatorios nuevos")

	m = update(m, appsync.ReminderResultMsg{UserID: u.ID, DeliveryError: assert.AnError})
	assert.Equal(t, "No se pudo enviar el correo de recordatorio", m.statusMsg)

	// Results for another session are ignored.
	m = update(m, appsync.ReminderResultMsg{UserID: u.ID + 100, Error: assert.AnError})
	assert.Equal(t, "No se pudo enviar el correo de recordatorio", m.statusMsg)
}

func TestNavigation(t *testing.T) {
	m, s := newApp(t)
	m, _ = loginAs(t, m, s, 1)

	m = update(m, keyMsg("tab"))
	assert.Equal(t, ViewAppointments, m.CurrentView())

	m = update(m, keyMsg("?"))
	assert.Equal(t, ViewHelp, m.CurrentView())
	assert.Contains(t, m.View(), "Atajos de teclado")

	m = update(m, keyMsg("j"))
	assert.Equal(t, ViewHelp, m.CurrentView())

	m = update(m, keyMsg("esc"))
	assert.Equal(t, ViewAppointments, m.CurrentView())

	m = update(m, keyMsg("tab"))
	assert.Equal(t, ViewNotifications, m.CurrentView())
}

func TestLogout(t *testing.T) {
	m, s := newApp(t)
	m, _ = loginAs(t, m, s, 1)

	m = update(m, keyMsg("L"))
	assert.Equal(t, ViewLogin, m.CurrentView())
	assert.Nil(t, m.User())
	assert.Equal(t, 0, m.unreadCount)
	assert.Contains(t, m.View(), "Sesión cerrada.")
	assert.NotContains(t, m.View(), "sin leer")
	assert.Empty(t, m.notifications.Items())
}

func TestLogout_NextUserDoesNotSeePreviousList(t *testing.T) {
	m, s := newApp(t)
	m, first := loginAs(t, m, s, 1)
	_, err := s.CreateNotification(context.Background(), model.Notification{
		UserID: first.ID, Message: "solo para el primero",
	})
	require.NoError(t, err)
	m, cmd := updateCmd(m, m.notifications.Reload()())
	m = update(m, cmd())
	require.Contains(t, m.View(), "solo para el primero")
	stale := m.notifications.Reload()

	m = update(m, keyMsg("L"))

	id := testutil.CreatePatient(t, s, 2)
	second, err := s.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	m = update(m, login.LoggedInMsg{User: second})
	assert.Equal(t, ViewNotifications, m.CurrentView())
	assert.NotContains(t, m.View(), "solo para el primero")

	m = update(m, stale())
	assert.NotContains(t, m.View(), "solo para el primero")
	assert.Empty(t, m.notifications.Items())
}

func TestKeysIgnoredWithoutSession(t *testing.T) {
	m, _ := newApp(t)

	m = update(m, keyMsg("tab"))
	assert.Equal(t, ViewLogin, m.CurrentView())

	m = update(m, keyMsg("?"))
	assert.Equal(t, ViewLogin, m.CurrentView())
}

func TestQuit(t *testing.T) {
	m, _ := newApp(t)
	_, cmd := updateCmd(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
