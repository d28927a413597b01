// Package register is the account creation form for patients and providers.
package register

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/citas/internal/auth"
	"github.com/nhle/citas/internal/model"
	"github.com/nhle/citas/internal/photo"
	"github.com/nhle/citas/internal/theme"
	"github.com/nhle/citas/internal/ui"
)

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, r auth.Registration) (int64, error)
}

// RegisteredMsg is sent after the account was created.
type RegisteredMsg struct {
	UserID       int64
	PhotoSummary string
}

// BackMsg is sent when the user leaves the form.
type BackMsg struct{}

type formBindings struct {
	userType       string
	specialty      string
	firstName      string
	secondName     string
	lastName       string
	secondLastName string
	email          string
	phone          string
	cedula         string
	password       string
	confirm        string
	questions      [3]string
	answers        [3]string
	photoPath      string
}

func newBindings() *formBindings {
	fb := &formBindings{
		userType:  string(model.UserTypePatient),
		specialty: model.Specialties[0],
	}
	for i := range fb.questions {
		fb.questions[i] = model.SecurityQuestions[i]
	}
	return fb
}

type resultMsg struct {
	id      int64
	summary string
	err     error
}

// Model is the registration screen.
type Model struct {
	registrar Registrar
	form      *huh.Form
	fb        *formBindings
	errMsg    string
	pending   bool
	width     int
	height    int
}

// New creates the registration screen.
func New(r Registrar, width, height int) Model {
	return Model{
		registrar: r,
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
			// Bindings survive the rebuild.
			m.errMsg = ui.ErrorText(msg.err)
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		done := RegisteredMsg{UserID: msg.id, PhotoSummary: msg.summary}
		return m, func() tea.Msg { return done }
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
	isPatient := func() bool { return fb.userType != string(model.UserTypeProvider) }

	groups := []*huh.Group{
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Tipo de usuario").
				Options(
					huh.NewOption("Paciente", string(model.UserTypePatient)),
					huh.NewOption("Médico (Administrador)", string(model.UserTypeProvider)),
				).
				Value(&fb.userType),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Especialidad").
				Options(huh.NewOptions(model.Specialties...)...).
				Value(&fb.specialty),
		).WithHideFunc(isPatient),
		huh.NewGroup(
			huh.NewInput().Title("Primer nombre *").Value(&fb.firstName).Validate(ui.Required),
			huh.NewInput().Title("Segundo nombre").Value(&fb.secondName),
			huh.NewInput().Title("Primer apellido *").Value(&fb.lastName).Validate(ui.Required),
			huh.NewInput().Title("Segundo apellido").Value(&fb.secondLastName),
		),
		huh.NewGroup(
			huh.NewInput().Title("Correo *").Value(&fb.email).Validate(ui.Required),
			huh.NewInput().Title("Teléfono *").Placeholder("0991234567").CharLimit(10).Value(&fb.phone),
			huh.NewInput().Title("Cédula *").Placeholder("1712345678").CharLimit(10).Value(&fb.cedula),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Contraseña *").
				EchoMode(huh.EchoModePassword).
				DescriptionFunc(func() string { return requirementsText(fb.password) }, &fb.password).
				Value(&fb.password),
			huh.NewInput().
				Title("Confirmar contraseña *").
				EchoMode(huh.EchoModePassword).
				Value(&fb.confirm),
		),
	}

	for i := range fb.questions {
		groups = append(groups, huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Pregunta de seguridad %d", i+1)).
				Options(huh.NewOptions(model.SecurityQuestions...)...).
				Value(&fb.questions[i]),
			huh.NewInput().
				Title("Respuesta *").
				Value(&fb.answers[i]),
		))
	}

	groups = append(groups, huh.NewGroup(
		huh.NewInput().
			Title("Foto de perfil").
			Description("Ruta a una imagen PNG, JPG o WebP (opcional, máximo 10 MB)").
			Value(&fb.photoPath),
	))

	return huh.NewForm(groups...).
		WithWidth(ui.FormWidth(m.width)).
		WithHeight(ui.FormHeight(m.height))
}

// requirementsText renders the password rules with a check for each one
// already met.
func requirementsText(pwd string) string {
	var b strings.Builder
	for i, r := range auth.PasswordRequirements(pwd) {
		if i > 0 {
			b.WriteString("\n")
		}
		if r.Met {
			b.WriteString("✓ ")
		} else {
			b.WriteString("✗ ")
		}
		b.WriteString(r.Label)
	}
	return b.String()
}

func (fb *formBindings) registration() auth.Registration {
	r := auth.Registration{
		Type:           model.UserType(fb.userType),
		FirstName:      fb.firstName,
		SecondName:     fb.secondName,
		LastName:       fb.lastName,
		SecondLastName: fb.secondLastName,
		Email:          fb.email,
		Phone:          fb.phone,
		Cedula:         fb.cedula,
		Password:       fb.password,
		Confirm:        fb.confirm,
		Specialty:      fb.specialty,
	}
	for i := range fb.questions {
		r.Questions[i] = auth.SecurityAnswer{Question: fb.questions[i], Answer: fb.answers[i]}
	}
	return r
}

func (m Model) submit() tea.Cmd {
	reg := m.fb.registration()
	path := strings.TrimSpace(m.fb.photoPath)
	r := m.registrar
	return func() tea.Msg {
		summary := ""
		if path != "" {
			p, err := photo.Prepare(path)
			if err != nil {
				return resultMsg{err: err}
			}
			reg.Photo = p.Base64
			summary = p.Summary()
		}
		id, err := r.Register(context.Background(), reg)
		return resultMsg{id: id, summary: summary, err: err}
	}
}

// View renders the registration screen.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("Crear cuenta"))
	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString(theme.ErrorStyle.Render(m.errMsg))
		b.WriteString("\n")
	}
	if m.pending {
		b.WriteString(theme.HelpStyle.Render("Registrando..."))
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
