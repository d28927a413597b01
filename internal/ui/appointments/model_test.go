package appointments

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/citas/internal/keys"
	"github.com/nhle/citas/internal/model"
	"github.com/nhle/citas/internal/store"
	"github.com/nhle/citas/tests/testutil"
)

func run(m Model, cmd tea.Cmd) (Model, []tea.Msg) {
	var msgs []tea.Msg
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		msgs = append(msgs, msg)
		var next tea.Cmd
		m, next = m.Update(msg)
		queue = append(queue, next)
	}
	return m, msgs
}

func press(m Model, k string) (Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
}

func book(t *testing.T, s *store.SQLiteStore, patient, provider int64, date, hour string) int64 {
	t.Helper()
	id, err := s.CreateAppointment(context.Background(), model.NewAppointment{
		PatientID: patient, ProviderID: provider, Specialty: "Odontología", Date: date, Time: hour,
	})
	require.NoError(t, err)
	return id
}

func TestListAndCancel(t *testing.T) {
	s := testutil.NewTestStore(t)
	patient := testutil.CreatePatient(t, s, 1)
	provider := testutil.CreateProvider(t, s, 2, "Odontología")
	book(t, s, patient, provider, "2024-06-11", "09:00")
	first := book(t, s, patient, provider, "2024-06-10", "10:00")

	m := New(s, keys.DefaultKeyMap(), 80, 24)
	m, _ = run(m, m.SetUser(patient))

	require.Len(t, m.Items(), 2)
	assert.Equal(t, first, m.Items()[0].ID)
	assert.Contains(t, m.View(), "2024-06-10 10:00")

	m, _ = press(m, "x")
	assert.True(t, m.Confirming())

	m.mode = modeList
	m, msgs := run(m, m.cancel(first))
	assert.Contains(t, msgs, tea.Msg(ChangedMsg{}))
	require.Len(t, m.Items(), 1)
	assert.Equal(t, "2024-06-11", m.Items()[0].Date)
	assert.Contains(t, m.View(), "Cita cancelada")
}

func TestBookKeyRequestsForm(t *testing.T) {
	s := testutil.NewTestStore(t)
	m := New(s, keys.DefaultKeyMap(), 80, 24)
	m, _ = run(m, m.SetUser(testutil.CreatePatient(t, s, 1)))

	assert.Contains(t, m.View(), "No tienes citas agendadas")

	_, cmd := press(m, "n")
	require.NotNil(t, cmd)
	assert.Equal(t, BookRequestMsg{}, cmd())

	m, cmd = press(m, "x")
	assert.Nil(t, cmd)
	assert.False(t, m.Confirming())
}

func TestCancelMissingAppointment(t *testing.T) {
	s := testutil.NewTestStore(t)
	m := New(s, keys.DefaultKeyMap(), 80, 24)
	m, _ = run(m, m.SetUser(1))

	m, _ = run(m, m.cancel(999))
	assert.Contains(t, m.View(), "Error")
}
