package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/citas/internal/model"
	"github.com/nhle/citas/tests/testutil"
)

var quito = time.FixedZone("ECT", -5*60*60)

func newModel(t *testing.T) Model {
	t.Helper()
	s := testutil.NewTestStore(t)
	m := New(s, quito, 80, 24)
	m.SetClock(testutil.NewFixedClock(time.Date(2024, 6, 9, 10, 0, 0, 0, quito)).Now)
	return m
}

func TestValidateDate(t *testing.T) {
	today := time.Date(2024, 6, 9, 23, 0, 0, 0, quito)

	assert.NoError(t, validateDate("2024-06-09", today))
	assert.NoError(t, validateDate(" 2024-12-31 ", today))
	assert.EqualError(t, validateDate("2024-06-08", today), "La fecha no puede estar en el pasado")
	assert.EqualError(t, validateDate("09/06/2024", today), "Use el formato AAAA-MM-DD")
	assert.Error(t, validateDate("", today))
}

func TestValidateTime(t *testing.T) {
	assert.NoError(t, validateTime("09:30"))
	assert.NoError(t, validateTime("23:59"))
	assert.Error(t, validateTime("9:30am"))
	assert.Error(t, validateTime("24:00"))
}

func TestAppointment_RejectsPastInstant(t *testing.T) {
	m := newModel(t)
	m.Start(1)
	m.fb.providerID = 5
	m.fb.specialty = "Odontología"

	m.fb.date, m.fb.time = "2024-06-09", "09:59"
	_, err := m.appointment()
	assert.EqualError(t, err, "La cita debe ser en el futuro")

	m.fb.date, m.fb.time = "2024-06-09", "10:30"
	a, err := m.appointment()
	require.NoError(t, err)
	assert.Equal(t, model.NewAppointment{
		PatientID: 1, ProviderID: 5, Specialty: "Odontología", Date: "2024-06-09", Time: "10:30",
	}, a)
}

func TestAppointment_NormalizesTime(t *testing.T) {
	m := newModel(t)
	m.Start(1)
	m.fb.providerID = 5
	m.fb.specialty = "Odontología"

	m.fb.date, m.fb.time = " 2024-06-10 ", "9:30"
	a, err := m.appointment()
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", a.Date)
	assert.Equal(t, "09:30", a.Time)
}

func TestSave_SingleDigitHourSortsFirst(t *testing.T) {
	st := testutil.NewTestStore(t)
	patient := testutil.CreatePatient(t, st, 1)
	provider := testutil.CreateProvider(t, st, 2, "Odontología")

	m := New(st, quito, 80, 24)
	m.SetClock(testutil.NewFixedClock(time.Date(2024, 6, 9, 10, 0, 0, 0, quito)).Now)
	m.Start(patient)
	m.fb.specialty = "Odontología"
	m.fb.providerID = provider

	for _, hour := range []string{"10:00", "9:30"} {
		m.fb.date, m.fb.time = "2024-06-10", hour
		a, err := m.appointment()
		require.NoError(t, err)
		_, err = st.CreateAppointment(context.Background(), a)
		require.NoError(t, err)
	}

	list, err := st.GetAppointments(context.Background(), patient)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "09:30", list[0].Time)
	assert.Equal(t, "10:00", list[1].Time)
}

func TestProvidersLoaded(t *testing.T) {
	m := newModel(t)
	m.Start(1)

	m, _ = m.Update(providersLoadedMsg{})
	assert.Equal(t, stepSpecialty, m.step)
	assert.Contains(t, m.View(), "No hay médicos disponibles para Medicina General.")

	m, _ = m.Update(providersLoadedMsg{providers: []model.Provider{
		{ID: 8, Name: "Usuario C", Specialty: "Medicina General"},
		{ID: 9, Name: "Usuario D", Specialty: "Medicina General"},
	}})
	assert.Equal(t, stepDetails, m.step)
	assert.Equal(t, int64(8), m.fb.providerID)
	assert.Empty(t, m.errMsg)
}

func TestLoadProvidersAndSave(t *testing.T) {
	st := testutil.NewTestStore(t)
	patient := testutil.CreatePatient(t, st, 1)
	provider := testutil.CreateProvider(t, st, 2, "Obstetricia")
	testutil.CreateProvider(t, st, 3, "Odontología")

	m := New(st, quito, 80, 24)
	m.SetClock(testutil.NewFixedClock(time.Date(2024, 6, 9, 10, 0, 0, 0, quito)).Now)
	m.Start(patient)
	m.fb.specialty = "Obstetricia"

	msg := m.loadProviders("Obstetricia")()
	m, _ = m.Update(msg)
	require.Len(t, m.providers, 1)
	assert.Equal(t, provider, m.fb.providerID)

	m.fb.date, m.fb.time = "2024-06-10", "10:00"
	a, err := m.appointment()
	require.NoError(t, err)

	m, cmd := m.Update(m.save(a)())
	require.NotNil(t, cmd)
	booked, ok := cmd().(BookedMsg)
	require.True(t, ok)
	assert.NotZero(t, booked.ID)

	list, err := st.GetAppointments(context.Background(), patient)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Obstetricia", list[0].Specialty)
	assert.Equal(t, "2024-06-10", list[0].Date)
}

func TestSave_ProviderWithoutSpecialty(t *testing.T) {
	st := testutil.NewTestStore(t)
	patient := testutil.CreatePatient(t, st, 1)
	provider := testutil.CreateProvider(t, st, 2, "Obstetricia")

	m := New(st, quito, 80, 24)
	m.Start(patient)
	m.fb.specialty = "Odontología"

	m, _ = m.Update(m.save(model.NewAppointment{
		PatientID: patient, ProviderID: provider, Specialty: "Odontología", Date: "2030-01-01", Time: "08:00",
	})())
	assert.Equal(t, stepDetails, m.step)
	assert.Equal(t, "El médico seleccionado no atiende esa especialidad", m.errMsg)
}
