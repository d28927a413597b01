package login

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/citas/internal/model"
	"github.com/nhle/citas/internal/theme"
	"github.com/nhle/citas/internal/ui"
)

// Authenticator checks credentials.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (*model.User, error)
}

// LoggedInMsg is sent after a successful login.
type LoggedInMsg struct {
	User *model.User
}

// RegisterRequestMsg asks the parent to open the registration form.
type RegisterRequestMsg struct{}

// RecoverRequestMsg asks the parent to open password recovery.
type RecoverRequestMsg struct{}

// QuitMsg is sent when the user leaves the login form.
type QuitMsg struct{}

// Menu actions.
const (
	ActionLogin    = "ingresar"
	ActionRegister = "registrarse"
	ActionRecover  = "recuperar"
)

type formBindings struct {
	action     string
	identifier string
	password   string
}

type resultMsg struct {
	user *model.User
	err  error
}

// Model is the login screen.
type Model struct {
	auth    Authenticator
	form    *huh.Form
	fb      *formBindings
	errMsg  string
	info    string
	pending bool
	width   int
	height  int
}

// New creates the login screen.
func New(a Authenticator, width, height int) Model {
	m := Model{
		auth:   a,
		fb:     &formBindings{action: ActionLogin},
		width:  width,
		height: height,
	}
	m.form = m.buildForm()
	return m
}

// Reset clears the form and shows info above it.
func (m *Model) Reset(info string) tea.Cmd {
	m.fb = &formBindings{action: ActionLogin}
	m.errMsg = ""
	m.info = info
	m.pending = false
	m.form = m.buildForm()
	return m.form.Init()
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case resultMsg:
		m.pending = false
		if msg.err != nil {
			m.errMsg = ui.ErrorText(msg.err)
			m.info = ""
			m.fb.password = ""
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		user := msg.user
		return m, func() tea.Msg { return LoggedInMsg{User: user} }
	}

	if m.form == nil || m.pending {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		return m, func() tea.Msg { return QuitMsg{} }
	case huh.StateCompleted:
		return m.submit()
	}
	return m, cmd
}

func (m Model) submit() (Model, tea.Cmd) {
	switch m.fb.action {
	case ActionRegister:
		return m, func() tea.Msg { return RegisterRequestMsg{} }
	case ActionRecover:
		return m, func() tea.Msg { return RecoverRequestMsg{} }
	}
	m.pending = true
	return m, m.login(m.fb.identifier, m.fb.password)
}

func (m Model) buildForm() *huh.Form {
	fb := m.fb
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("¿Qué deseas hacer?").
				Options(
					huh.NewOption("Iniciar sesión", ActionLogin),
					huh.NewOption("Crear una cuenta", ActionRegister),
					huh.NewOption("Olvidé mi contraseña", ActionRecover),
				).
				Value(&fb.action),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Correo o cédula").
				Value(&fb.identifier).
				Validate(ui.Required),
			huh.NewInput().
				Title("Contraseña").
				EchoMode(huh.EchoModePassword).
				Value(&fb.password).
				Validate(ui.Required),
		).WithHideFunc(func() bool { return fb.action != ActionLogin }),
	).WithWidth(ui.FormWidth(m.width)).WithHeight(ui.FormHeight(m.height))
}

// View renders the login screen.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("Citas médicas"))
	b.WriteString("\n")
	if m.info != "" {
		b.WriteString(theme.StatusMsgStyle.Render(m.info))
		b.WriteString("\n")
	}
	if m.errMsg != "" {
		b.WriteString(theme.ErrorStyle.Render(m.errMsg))
		b.WriteString("\n")
	}
	if m.pending {
		b.WriteString(theme.HelpStyle.Render("Verificando..."))
	} else if m.form != nil {
		b.WriteString(m.form.View())
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) login(identifier, password string) tea.Cmd {
	a := m.auth
	return func() tea.Msg {
		u, err := a.Login(context.Background(), identifier, password)
		return resultMsg{user: u, err: err}
	}
}
