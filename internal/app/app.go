package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/nhle/citas/internal/auth"
	"github.com/nhle/citas/internal/keys"
	"github.com/nhle/citas/internal/model"
	"github.com/nhle/citas/internal/reminder"
	"github.com/nhle/citas/internal/store"
	appsync "github.com/nhle/citas/internal/sync"
	"github.com/nhle/citas/internal/ui"
	"github.com/nhle/citas/internal/ui/appointments"
	"github.com/nhle/citas/internal/ui/booking"
	helpview "github.com/nhle/citas/internal/ui/help"
	"github.com/nhle/citas/internal/ui/login"
	"github.com/nhle/citas/internal/ui/notifications"
	"github.com/nhle/citas/internal/ui/recovery"
	"github.com/nhle/citas/internal/ui/register"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewRegister
	ViewRecovery
	ViewNotifications
	ViewAppointments
	ViewBooking
	ViewHelp
)

// Services are the backends the UI drives.
type Services struct {
	Store     store.Store
	Auth      *auth.Service
	Reminders *reminder.Service
	Poller    *appsync.Poller
	Location  *time.Location
}

// welcomeSeededMsg is sent once the welcome notification check finished
// for a freshly logged-in user.
type welcomeSeededMsg struct {
	userID int64
	err    error
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and the logged-in session.
type Model struct {
	currentView   ViewState
	previousView  ViewState
	layout        ui.Layout
	svc           Services
	keys          *keys.KeyMap
	user          *model.User
	unreadCount   int
	statusMsg     string
	syncing       bool
	spinner       spinner.Model
	login         login.Model
	register      register.Model
	recovery      recovery.Model
	notifications notifications.Model
	appointments  appointments.Model
	booking       booking.Model
	helpView      helpview.Model
	ready         bool
}

// New creates the root application model.
func New(svc Services) Model {
	k := keys.DefaultKeyMap()
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		currentView:   ViewLogin,
		svc:           svc,
		keys:          k,
		spinner:       sp,
		login:         login.New(svc.Auth, 80, 24),
		register:      register.New(svc.Auth, 80, 24),
		recovery:      recovery.New(svc.Auth, 80, 24),
		notifications: notifications.New(svc.Store, k, 80, 24),
		appointments:  appointments.New(svc.Store, k, 80, 24),
		booking:       booking.New(svc.Store, svc.Location, 80, 24),
		helpView:      helpview.New(k, 80, 24),
	}
}

// Init shows the login form and starts the reminder poller.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.login.Init(),
		m.svc.Poller.Start(),
	)
}

// User returns the logged-in user, or nil.
func (m Model) User() *model.User {
	return m.user
}

// CurrentView returns the active view.
func (m Model) CurrentView() ViewState {
	return m.currentView
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.login.SetSize(w, h)
		m.register.SetSize(w, h)
		m.recovery.SetSize(w, h)
		m.notifications.SetSize(w, h)
		m.appointments.SetSize(w, h)
		m.booking.SetSize(w, h)
		m.helpView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(tea.WindowSizeMsg{Width: w, Height: h})

	case login.LoggedInMsg:
		m.user = msg.User
		m.statusMsg = ""
		m.currentView = ViewNotifications
		log.Info().Int64("user_id", msg.User.ID).Msg("user logged in")
		return m, tea.Batch(
			m.seedWelcome(msg.User.ID),
			m.appointments.SetUser(msg.User.ID),
		)

	case welcomeSeededMsg:
		if m.user == nil || m.user.ID != msg.userID {
			return m, nil
		}
		if msg.err != nil {
			log.Error().Err(msg.err).Int64("user_id", msg.userID).Msg("seeding welcome notification")
		}
		m.syncing = true
		return m, tea.Batch(
			m.notifications.SetUser(msg.userID),
			m.svc.Poller.Watch(msg.userID),
			m.spinner.Tick,
		)

	case appsync.ReminderResultMsg:
		wait := m.svc.Poller.WaitForNextResult()
		if m.user == nil || msg.UserID != m.user.ID {
			return m, wait
		}
		m.syncing = false
		switch {
		case msg.Error != nil:
			m.statusMsg = "No se pudieron generar los recordatorios"
		case msg.DeliveryError != nil:
			m.statusMsg = "No se pudo enviar el correo de recordatorio"
		case len(msg.Created) == 1:
			m.statusMsg = "1 recordatorio nuevo"
		case len(msg.Created) > 1:
			m.statusMsg = fmt.Sprintf("%d recordatorios nuevos", len(msg.Created))
		}
		return m, tea.Batch(wait, m.notifications.Reload())

	case notifications.UnreadCountMsg:
		m.unreadCount = msg.Count
		return m, nil

	case spinner.TickMsg:
		if !m.syncing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case login.RegisterRequestMsg:
		m.currentView = ViewRegister
		return m, m.register.Start()

	case login.RecoverRequestMsg:
		m.currentView = ViewRecovery
		return m, m.recovery.Start()

	case login.QuitMsg:
		return m.quit()

	case register.RegisteredMsg:
		m.currentView = ViewLogin
		info := "Cuenta creada. Ya puedes iniciar sesión."
		if msg.PhotoSummary != "" {
			info += "\n" + msg.PhotoSummary
		}
		return m, m.login.Reset(info)

	case register.BackMsg, recovery.BackMsg:
		m.currentView = ViewLogin
		return m, m.login.Reset("")

	case recovery.RecoveredMsg:
		m.currentView = ViewLogin
		return m, m.login.Reset("Contraseña actualizada. Ya puedes iniciar sesión.")

	case appointments.BookRequestMsg:
		if m.user == nil {
			return m, nil
		}
		m.currentView = ViewBooking
		return m, m.booking.Start(m.user.ID)

	case booking.BookedMsg:
		m.currentView = ViewAppointments
		m.appointments.SetStatus("Cita agendada")
		m.syncing = true
		return m, tea.Batch(
			m.appointments.Reload(),
			m.svc.Poller.Refresh(),
			m.spinner.Tick,
		)

	case booking.CancelMsg:
		m.currentView = ViewAppointments
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.inListView() || m.currentView == ViewHelp {
			if handled, next, cmd := m.handleGlobalKey(msg); handled {
				return next, cmd
			}
		}
	}

	return m.updateActiveView(msg)
}

// inListView reports whether a logged-in list screen is active and owns
// plain key presses.
func (m Model) inListView() bool {
	if m.user == nil {
		return false
	}
	if m.currentView == ViewNotifications && m.notifications.Confirming() {
		return false
	}
	if m.currentView == ViewAppointments && m.appointments.Confirming() {
		return false
	}
	return m.currentView == ViewNotifications || m.currentView == ViewAppointments
}

func (m Model) handleGlobalKey(msg tea.KeyMsg) (bool, Model, tea.Cmd) {
	if m.currentView == ViewHelp {
		if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return true, m, nil
		}
		return true, m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		next, cmd := m.quit()
		return true, next.(Model), cmd

	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return true, m, nil

	case key.Matches(msg, m.keys.NextScreen):
		if m.currentView == ViewNotifications {
			m.currentView = ViewAppointments
			return true, m, m.appointments.Reload()
		}
		m.currentView = ViewNotifications
		return true, m, m.notifications.Reload()

	case key.Matches(msg, m.keys.Refresh):
		m.syncing = true
		return true, m, tea.Batch(m.svc.Poller.Refresh(), m.spinner.Tick)

	case key.Matches(msg, m.keys.Logout):
		return true, m, m.logout()
	}
	return false, m, nil
}

// logout forgets the session and returns to the login form.
func (m *Model) logout() tea.Cmd {
	if m.user != nil {
		log.Info().Int64("user_id", m.user.ID).Msg("user logged out")
	}
	m.user = nil
	m.unreadCount = 0
	m.statusMsg = ""
	m.syncing = false
	m.currentView = ViewLogin
	m.notifications.Clear()
	return tea.Batch(
		m.svc.Poller.Watch(0),
		m.login.Reset("Sesión cerrada."),
	)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.svc.Poller.Stop()
	return m, tea.Quit
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.login, cmd = m.login.Update(msg)
	case ViewRegister:
		m.register, cmd = m.register.Update(msg)
	case ViewRecovery:
		m.recovery, cmd = m.recovery.Update(msg)
	case ViewNotifications:
		m.notifications, cmd = m.notifications.Update(msg)
	case ViewAppointments:
		m.appointments, cmd = m.appointments.Update(msg)
	case ViewBooking:
		m.booking, cmd = m.booking.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	// Results of background loads must reach the list screens even when
	// another view is active.
	if m.currentView != ViewNotifications && notifications.Owns(msg) {
		var extra tea.Cmd
		m.notifications, extra = m.notifications.Update(msg)
		cmd = tea.Batch(cmd, extra)
	}
	if m.currentView != ViewAppointments && appointments.Owns(msg) {
		var extra tea.Cmd
		m.appointments, extra = m.appointments.Update(msg)
		cmd = tea.Batch(cmd, extra)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Cargando..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), ui.Badge(m.unreadCount), m.syncStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

func (m Model) headerTitle() string {
	if m.user == nil {
		return "Citas médicas"
	}
	return "Citas médicas · " + m.user.FullName()
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.login.View()
	case ViewRegister:
		return m.register.View()
	case ViewRecovery:
		return m.recovery.View()
	case ViewNotifications:
		return m.notifications.View()
	case ViewAppointments:
		return m.appointments.View()
	case ViewBooking:
		return m.booking.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the reminder poller.
func (m Model) syncStatus() string {
	if m.user == nil {
		return ""
	}
	if m.syncing {
		return m.spinner.View() + " buscando recordatorios"
	}
	st := m.svc.Poller.Status()
	switch {
	case st.State == appsync.SyncError:
		return "⚠ recordatorios sin actualizar"
	case st.LastRun.IsZero():
		return ""
	default:
		return "recordatorios " + st.LastRun.Format("15:04")
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.statusMsg != "" && m.inListView() {
		return m.statusMsg + " | ? ayuda"
	}

	switch m.currentView {
	case ViewLogin:
		return "enter continuar | esc salir"
	case ViewRegister, ViewRecovery, ViewBooking:
		return "enter siguiente | shift+tab anterior | esc cancelar"
	case ViewHelp:
		return "? cerrar ayuda | esc volver"
	case ViewAppointments:
		return "q salir | ? ayuda | tab notificaciones | n agendar | x cancelar | L cerrar sesión"
	default:
		return "q salir | ? ayuda | tab citas | r leída | R todas | d eliminar | L cerrar sesión"
	}
}

// seedWelcome inserts the welcome notification when the user has none.
func (m Model) seedWelcome(userID int64) tea.Cmd {
	r := m.svc.Reminders
	return func() tea.Msg {
		_, err := r.SeedWelcome(context.Background(), userID)
		return welcomeSeededMsg{userID: userID, err: err}
	}
}
