package notifications

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

// Store is the persistence the notifications screen needs.
type Store interface {
	ListNotifications(ctx context.Context, userID int64) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID int64) (int, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) error
	DeleteNotification(ctx context.Context, id int64) error
}

// UnreadCountMsg reports the unread total after the list was reloaded.
type UnreadCountMsg struct {
	Count int
}

type viewMode int

const (
	modeList viewMode = iota
	modeConfirmDelete
)

type formBindings struct {
	confirm bool
}

type loadedMsg struct {
	userID int64
	items  []model.Notification
	unread int
	err    error
}

type changedMsg struct {
	status string
	err    error
}

// Model is the Bubble Tea model of the notification list.
type Model struct {
	mode        viewMode
	store       Store
	keys        *keys.KeyMap
	userID      int64
	items       []model.Notification
	unread      int
	selectedIdx int
	confirmForm *huh.Form
	fb          *formBindings
	statusMsg   string
	width       int
	height      int
}

// New creates a notification list model.
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

// SetUser switches the list to userID and loads its notifications.
func (m *Model) SetUser(userID int64) tea.Cmd {
	m.Clear()
	m.userID = userID
	return m.Reload()
}

// Clear forgets the current user and its notifications. Loads still in
// flight for that user are dropped when they arrive.
func (m *Model) Clear() {
	m.userID = 0
	m.items = nil
	m.unread = 0
	m.selectedIdx = 0
	m.statusMsg = ""
	m.confirmForm = nil
	m.mode = modeList
}

// Reload fetches the notifications of the current user.
func (m Model) Reload() tea.Cmd {
	s := m.store
	userID := m.userID
	return func() tea.Msg {
		ctx := context.Background()
		items, err := s.ListNotifications(ctx, userID)
		if err != nil {
			return loadedMsg{userID: userID, err: err}
		}
		unread, err := s.CountUnreadNotifications(ctx, userID)
		return loadedMsg{userID: userID, items: items, unread: unread, err: err}
	}
}

// Items returns the loaded notifications, newest first.
func (m Model) Items() []model.Notification {
	return m.items
}

// Unread returns the unread count from the last load.
func (m Model) Unread() int {
	return m.unread
}

// Confirming reports whether the delete confirmation is open.
func (m Model) Confirming() bool {
	return m.mode == modeConfirmDelete
}

// Owns reports whether msg is the result of a load or change started by
// this screen.
func Owns(msg tea.Msg) bool {
	switch msg.(type) {
	case loadedMsg, changedMsg:
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
		if msg.userID != m.userID {
			return m, nil
		}
		if msg.err != nil {
			log.Error().Err(msg.err).Int64("user_id", m.userID).Msg("loading notifications")
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		m.items = msg.items
		m.unread = msg.unread
		if m.selectedIdx >= len(m.items) {
			m.selectedIdx = max(len(m.items)-1, 0)
		}
		count := msg.unread
		return m, func() tea.Msg { return UnreadCountMsg{Count: count} }

	case changedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %v", msg.err)
		} else {
			m.statusMsg = msg.status
		}
		m.mode = modeList
		return m, m.Reload()

	case tea.KeyMsg:
		if m.mode == modeConfirmDelete {
			return m.updateConfirm(msg)
		}
		return m.handleListKey(msg)
	}

	if m.mode == modeConfirmDelete {
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

	case key.Matches(msg, m.keys.MarkRead), key.Matches(msg, m.keys.Select):
		n, ok := m.selected()
		if !ok || n.Read {
			return m, nil
		}
		return m, m.markRead(n.ID)

	case key.Matches(msg, m.keys.MarkAllRead):
		if m.unread == 0 {
			return m, nil
		}
		return m, m.markAllRead()

	case key.Matches(msg, m.keys.Delete):
		if _, ok := m.selected(); !ok {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmDelete
		return m, m.confirmForm.Init()
	}
	return m, nil
}

func (m Model) selected() (model.Notification, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.items) {
		return model.Notification{}, false
	}
	return m.items[m.selectedIdx], true
}

func (m Model) buildConfirmForm() *huh.Form {
	msg := ""
	if n, ok := m.selected(); ok {
		msg = n.Message
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("¿Eliminar notificación?").
				Description(msg).
				Affirmative("Sí, eliminar").
				Negative("Cancelar").
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
		if m.fb.confirm {
			return m, m.deleteSelected()
		}
		return m, nil
	case huh.StateAborted:
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

// View renders the notification list.
func (m Model) View() string {
	if m.mode == modeConfirmDelete && m.confirmForm != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.confirmForm.View())
	}

	var b strings.Builder

	b.WriteString(theme.TitleStyle.Render("Notificaciones"))
	b.WriteString("\n\n")

	if len(m.items) == 0 {
		b.WriteString(theme.EmptyStyle.Render("No tienes notificaciones."))
	} else {
		for i, n := range m.items {
			line := renderLine(n)
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
	b.WriteString(theme.HelpStyle.Render("r marcar leída | R marcar todas | d eliminar | tab citas"))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Render(b.String())
}

func renderLine(n model.Notification) string {
	marker := "●"
	if n.Read {
		marker = " "
	}
	label := "Aviso"
	if n.IsReminder() {
		label = "Recordatorio"
	}
	return fmt.Sprintf("%s %s %s  %s",
		marker,
		theme.KindLabelStyle(n.IsReminder()).Render(label),
		theme.ReadStyle(n.Read).Render(n.Message),
		theme.HelpStyle.Render(n.CreatedAt.Local().Format("02/01/2006 15:04")),
	)
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) markRead(id int64) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		err := s.MarkNotificationRead(context.Background(), id)
		return changedMsg{status: "Notificación marcada como leída", err: err}
	}
}

func (m Model) markAllRead() tea.Cmd {
	s := m.store
	userID := m.userID
	return func() tea.Msg {
		err := s.MarkAllNotificationsRead(context.Background(), userID)
		return changedMsg{status: "Todas las notificaciones marcadas como leídas", err: err}
	}
}

func (m Model) deleteSelected() tea.Cmd {
	n, ok := m.selected()
	if !ok {
		return nil
	}
	s := m.store
	return func() tea.Msg {
		err := s.DeleteNotification(context.Background(), n.ID)
		return changedMsg{status: "Notificación eliminada", err: err}
	}
}
