package recovery

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/citas/internal/auth"
	"github.com/nhle/citas/internal/model"
	"github.com/nhle/citas/internal/theme"
	"github.com/nhle/citas/internal/ui"
)

// Recoverer resets forgotten passwords.
type Recoverer interface {
	RecoverPassword(ctx context.Context, r auth.Recovery) error
}

// RecoveredMsg is sent after the password was replaced.
type RecoveredMsg struct{}

// BackMsg is sent when the user leaves the form.
type BackMsg struct{}

type formBindings struct {
	cedula    string
	email     string
	questions [3]string
	answers   [3]string
	password  string
	confirm   string
}

func newBindings() *formBindings {
	fb := &formBindings{}
	for i := range fb.questions {
		fb.questions[i] = model.SecurityQuestions[i]
	}
	return fb
}

func (fb *formBindings) recovery() auth.Recovery {
	r := auth.Recovery{
		Cedula:      fb.cedula,
		Email:       fb.email,
		NewPassword: fb.password,
		Confirm:     fb.confirm,
	}
	for i := range fb.questions {
		r.Questions[i] = auth.SecurityAnswer{Question: fb.questions[i], Answer: fb.answers[i]}
	}
	return r
}

type resultMsg struct{ err error }

// Model is the password recovery screen.
type Model struct {
	recoverer Recoverer
	form      *huh.Form
	fb        *formBindings
	errMsg    string
	pending   bool
	width     int
	height    int
}

// New creates the recovery screen.
func New(r Recoverer, width, height int) Model {
	return Model{
		recoverer: r,
		fb:        newBindings(),
		width:     width,
		height:    height,
	}
}

// Start clears the form.
func (m *Model) Start() tea.Cmd {
	m.fb = newBindings()
	m.errMsg = ""
	m.pending = false
	m.form = m.buildForm()
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
			m.fb.password, m.fb.confirm = "", ""
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		return m, func() tea.Msg { return RecoveredMsg{} }
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
		return m, func() tea.Msg { return BackMsg{} }
	case huh.StateCompleted:
		m.pending = true
		return m, m.submit()
	}
	return m, cmd
}

func (m Model) buildForm() *huh.Form {
	fb := m.fb
	groups := []*huh.Group{
		huh.NewGroup(
			huh.NewInput().Title("Cédula").Value(&fb.cedula).Validate(ui.Required),
			huh.NewInput().Title("Correo").Value(&fb.email).Validate(ui.Required),
		),
	}
	for i := range fb.questions {
		groups = append(groups, huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Pregunta de seguridad %d", i+1)).
				Options(huh.NewOptions(model.SecurityQuestions...)...).
				Value(&fb.questions[i]),
			huh.NewInput().
				Title("Respuesta").
				Value(&fb.answers[i]).
				Validate(ui.Required),
		))
	}
	groups = append(groups, huh.NewGroup(
		huh.NewInput().
			Title("Nueva contraseña").
			EchoMode(huh.EchoModePassword).
			Description(fmt.Sprintf("Mínimo %d caracteres, una mayúscula, un número y un carácter especial (%s)",
				auth.MinPasswordLength, auth.SpecialChars)).
			Value(&fb.password),
		huh.NewInput().
			Title("Confirmar contraseña").
			EchoMode(huh.EchoModePassword).
			Value(&fb.confirm),
	))

	return huh.NewForm(groups...).
		WithWidth(ui.FormWidth(m.width)).
		WithHeight(ui.FormHeight(m.height))
}

func (m Model) submit() tea.Cmd {
	r := m.fb.recovery()
	rec := m.recoverer
	return func() tea.Msg {
		return resultMsg{err: rec.RecoverPassword(context.Background(), r)}
	}
}

// View renders the recovery screen.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("Recuperar contraseña"))
	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString(theme.ErrorStyle.Render(m.errMsg))
		b.WriteString("\n")
	}
	if m.pending {
		b.WriteString(theme.HelpStyle.Render("Verificando respuestas..."))
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
