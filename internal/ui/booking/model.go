// Package booking is the form a patient uses to schedule an appointment:
// a specialty first, then one of its providers, a date and a time.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/nhle/citas/internal/model"
	"github.com/nhle/citas/internal/theme"
	"github.com/nhle/citas/internal/ui"
)

// Store is the persistence the booking form needs.
type Store interface {
	ListProviders(ctx context.Context, specialty string) ([]model.Provider, error)
	CreateAppointment(ctx context.Context, a model.NewAppointment) (int64, error)
}

// BookedMsg is sent when an appointment was created.
type BookedMsg struct {
	ID          int64
	Appointment model.NewAppointment
}

// CancelMsg is sent when the user leaves the form without booking.
type CancelMsg struct{}

type step int

const (
	stepSpecialty step = iota
	stepDetails
	stepSaving
)

type formBindings struct {
	specialty  string
	providerID int64
	date       string
	time       string
}

type providersLoadedMsg struct {
	providers []model.Provider
	err       error
}

type savedMsg struct {
	id   int64
	appt model.NewAppointment
	err  error
}

// Model is the Bubble Tea model of the booking form.
type Model struct {
	step      step
	store     Store
	patientID int64
	form      *huh.Form
	fb        *formBindings
	providers []model.Provider
	errMsg    string
	now       func() time.Time
	loc       *time.Location
	width     int
	height    int
}

// New creates a booking form. Dates and times are interpreted in loc.
func New(s Store, loc *time.Location, width, height int) Model {
	if loc == nil {
		loc = time.Local
	}
	return Model{
		store:  s,
		fb:     &formBindings{},
		now:    time.Now,
		loc:    loc,
		width:  width,
		height: height,
	}
}

// SetClock replaces the clock used to reject past dates.
func (m *Model) SetClock(now func() time.Time) {
	m.now = now
}

// Start resets the form for patientID.
func (m *Model) Start(patientID int64) tea.Cmd {
	m.patientID = patientID
	m.fb = &formBindings{}
	m.providers = nil
	m.errMsg = ""
	m.step = stepSpecialty
	m.form = m.buildSpecialtyForm()
	return m.form.Init()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case providersLoadedMsg:
		if msg.err != nil {
			log.Error().Err(msg.err).Str("specialty", m.fb.specialty).Msg("loading providers")
			m.errMsg = fmt.Sprintf("Error: %v", msg.err)
			return m.restart(stepSpecialty)
		}
		if len(msg.providers) == 0 {
			m.errMsg = fmt.Sprintf("No hay médicos disponibles para %s.", m.fb.specialty)
			return m.restart(stepSpecialty)
		}
		m.providers = msg.providers
		m.fb.providerID = msg.providers[0].ID
		m.errMsg = ""
		return m.restart(stepDetails)

	case savedMsg:
		if msg.err != nil {
			m.errMsg = saveError(msg.err)
			return m.restart(stepDetails)
		}
		log.Info().
			Int64("user_id", msg.appt.PatientID).
			Int64("appointment_id", msg.id).
			Msg("appointment booked")
		id, appt := msg.id, msg.appt
		return m, func() tea.Msg { return BookedMsg{ID: id, Appointment: appt} }
	}

	return m.updateForm(msg)
}

func (m Model) restart(s step) (Model, tea.Cmd) {
	m.step = s
	if s == stepSpecialty {
		m.form = m.buildSpecialtyForm()
	} else {
		m.form = m.buildDetailsForm()
	}
	return m, m.form.Init()
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.step == stepSaving {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	case huh.StateCompleted:
		if m.step == stepSpecialty {
			return m, m.loadProviders(m.fb.specialty)
		}
		appt, err := m.appointment()
		if err != nil {
			m.errMsg = err.Error()
			return m.restart(stepDetails)
		}
		m.step = stepSaving
		return m, m.save(appt)
	}
	return m, cmd
}

func (m Model) buildSpecialtyForm() *huh.Form {
	if m.fb.specialty == "" {
		m.fb.specialty = model.Specialties[0]
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Especialidad").
				Options(huh.NewOptions(model.Specialties...)...).
				Value(&m.fb.specialty),
		),
	).WithWidth(ui.FormWidth(m.width)).WithHeight(ui.FormHeight(m.height))
}

func (m Model) buildDetailsForm() *huh.Form {
	opts := make([]huh.Option[int64], 0, len(m.providers))
	for _, p := range m.providers {
		opts = append(opts, huh.NewOption(p.Name, p.ID))
	}
	today := m.now().In(m.loc)

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int64]().
				Title("Médico").
				Description(m.fb.specialty).
				Options(opts...).
				Value(&m.fb.providerID),
			huh.NewInput().
				Title("Fecha").
				Placeholder(today.Format(model.DateLayout)).
				Value(&m.fb.date).
				Validate(func(s string) error { return validateDate(s, today) }),
			huh.NewInput().
				Title("Hora").
				Placeholder("09:30").
				Value(&m.fb.time).
				Validate(validateTime),
		),
	).WithWidth(ui.FormWidth(m.width)).WithHeight(ui.FormHeight(m.height))
}

// appointment builds the booking from the form values and rejects
// instants that have already passed.
func (m Model) appointment() (model.NewAppointment, error) {
	date := strings.TrimSpace(m.fb.date)
	hour := strings.TrimSpace(m.fb.time)
	at, err := time.ParseInLocation(model.AppointmentLayout, date+" "+hour, m.loc)
	if err != nil {
		return model.NewAppointment{}, errors.New("Fecha u hora inválida")
	}
	if !at.After(m.now()) {
		return model.NewAppointment{}, errors.New("La cita debe ser en el futuro")
	}
	return model.NewAppointment{
		PatientID:  m.patientID,
		ProviderID: m.fb.providerID,
		Specialty:  m.fb.specialty,
		Date:       at.Format(model.DateLayout),
		Time:       at.Format(model.TimeLayout),
	}, nil
}

func validateDate(s string, today time.Time) error {
	d, err := time.ParseInLocation(model.DateLayout, strings.TrimSpace(s), today.Location())
	if err != nil {
		return errors.New("Use el formato AAAA-MM-DD")
	}
	y, mo, day := today.Date()
	if d.Before(time.Date(y, mo, day, 0, 0, 0, 0, today.Location())) {
		return errors.New("La fecha no puede estar en el pasado")
	}
	return nil
}

func validateTime(s string) error {
	if _, err := time.Parse(model.TimeLayout, strings.TrimSpace(s)); err != nil {
		return errors.New("Use el formato HH:MM")
	}
	return nil
}

func saveError(err error) string {
	if errors.Is(err, model.ErrNotFound) {
		return "El médico seleccionado no atiende esa especialidad"
	}
	return fmt.Sprintf("Error: %v", err)
}

// View renders the form.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(theme.TitleStyle.Render("Agendar cita"))
	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString(theme.ErrorStyle.Render(m.errMsg))
		b.WriteString("\n")
	}
	if m.step == stepSaving {
		b.WriteString(theme.HelpStyle.Render("Guardando..."))
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

func (m Model) loadProviders(specialty string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		providers, err := s.ListProviders(context.Background(), specialty)
		return providersLoadedMsg{providers: providers, err: err}
	}
}

func (m Model) save(a model.NewAppointment) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		id, err := s.CreateAppointment(context.Background(), a)
		return savedMsg{id: id, appt: a, err: err}
	}
}
