package appointments

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/nhle/citas/internal/keys"
	"github.com/nhle/citas/internal/model"
	"github.com/nhle/citas/internal/theme"
	"github.com/nhle/citas/internal/ui"
)

// Store is the persistence the appointment list needs.
type Store interface {
	GetAppointments(ctx context.Context, userID int64) ([]model.Appointment, error)
	CancelAppointment(ctx context.Context, id int64) error
}

// BookRequestMsg asks the parent to open the booking form.
type BookRequestMsg struct{}

// ChangedMsg signals that an appointment was cancelled.
type ChangedMsg struct{}

type viewMode int

const (
	modeList viewMode = iota
	modeConfirmCancel
)

type formBindings struct {
	confirm bool
}

type loadedMsg struct {
	items []model.Appointment
	err   error
}

type cancelledMsg struct{ err error }

// Model is the Bubble Tea model of the patient's scheduled appointments.
type Model struct {
	mode        viewMode
	store       Store
	keys        *keys.KeyMap
	userID      int64
	items       []model.Appointment
	selectedIdx int
	confirmForm *huh.Form
	fb          *formBindings
	statusMsg   string
	width       int
	height      int
}

// New creates an appointment list model.
func New(s Store, k *keys.KeyMap, width, height int) Model {
	return Model{
		mode:   modeList,
		store:  s,
		keys:   k,
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// SetUser switches the list to userID and loads its appointments.
func (m *Model) SetUser(userID int64) tea.Cmd {
	m.userID = userID
	m.items = nil
	m.selectedIdx = 0
	m.statusMsg = ""
	m.mode = modeList
	return m.Reload()
}

// SetStatus shows msg below the list.
func (m *Model) SetStatus(msg string) {
	m.statusMsg = msg
}

// Reload fetches the appointments of the current user.
func (m Model) Reload() tea.Cmd {
	s := m.store
	userID := m.userID
	return func() tea.Msg {
		items, err := s.GetAppointments(context.Background(), userID)
		return loadedMsg{items: items, err: err}
	}
}

// Items returns the loaded appointments in chronological order.
func (m Model) Items() []model.Appointment {
	return m.items
}

// Confirming reports whether the cancel confirmation is open.
func (m Model) Confirming() bool {
	return m.mode == modeConfirmCancel
}

// Owns reports whether msg is the result of a load or change started by
// this screen.
func Owns(msg tea.Msg) bool {
	switch msg.(type) {
	case loadedMsg, cancelledMsg:
		return true
	}
	return false
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			log.Error().Err(msg.err).Int64("user_id", m.userID).Msg("loading appointments")
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		m.items = msg.items
		if m.selectedIdx >= len(m.items) {
			m.selectedIdx = max(len(m.items)-1, 0)
		}
		return m, nil

	case cancelledMsg:
		m.mode = modeList
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
			return m, m.Reload()
		}
		m.statusMsg = "Cita cancelada"
		return m, tea.Batch(m.Reload(), func() tea.Msg { return ChangedMsg{} })

	case tea.KeyMsg:
		if m.mode == modeConfirmCancel {
			return m.updateConfirm(msg)
		}
		return m.handleListKey(msg)
	}

	if m.mode == modeConfirmCancel {
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if len(m.items) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.items)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.items) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.items) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Book):
		return m, func() tea.Msg { return BookRequestMsg{} }

	case key.Matches(msg, m.keys.Cancel):
		if m.selectedIdx >= len(m.items) {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmCancel
		return m, m.confirmForm.Init()
	}
	return m, nil
}

func (m Model) buildConfirmForm() *huh.Form {
	a := m.items[m.selectedIdx]
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("¿Cancelar la cita?").
				Description(describe(a)).
				Affirmative("Sí, cancelar").
				Negative("No").
				Value(&m.fb.confirm),
		),
	).WithWidth(ui.FormWidth(m.width)).WithHeight(ui.FormHeight(m.height))
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		m.mode = modeList
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}
	switch m.confirmForm.State {
	case huh.StateCompleted:
		m.mode = modeList
		if m.fb.confirm && m.selectedIdx < len(m.items) {
			return m, m.cancel(m.items[m.selectedIdx].ID)
		}
		return m, nil
	case huh.StateAborted:
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

// View renders the appointment list.
func (m Model) View() string {
	if m.mode == modeConfirmCancel && m.confirmForm != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.confirmForm.View())
	}

	var b strings.Builder

	b.WriteString(theme.TitleStyle.Render("Mis citas"))
	b.WriteString("\n\n")

	if len(m.items) == 0 {
		b.WriteString(theme.EmptyStyle.Render("No tienes citas agendadas. Presiona 'n' para agendar una."))
	} else {
		for i, a := range m.items {
			line := describe(a)
			if i == m.selectedIdx {
				b.WriteString(theme.SelectedItemStyle.Render(line))
			} else {
				b.WriteString(theme.ListItemStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(theme.StatusMsgStyle.Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(theme.HelpStyle.Render("n agendar | x cancelar | tab notificaciones"))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Render(b.String())
}

func describe(a model.Appointment) string {
	return fmt.Sprintf("%s %s  %s  %s", a.Date, a.Time, a.Specialty, a.ProviderName)
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) cancel(id int64) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		return cancelledMsg{err: s.CancelAppointment(context.Background(), id)}
	}
}
