package model

import "time"

// Date and time layouts used by stored appointments.
const (
	DateLayout        = "2006-01-02"
	TimeLayout        = "15:04"
	AppointmentLayout = DateLayout + " " + TimeLayout
)

// Appointment status values.
const (
	AppointmentScheduled = "agendada"
	AppointmentCancelled = "cancelada"
)

// Appointment is a scheduled visit of a patient with a provider.
// Date and Time are kept as the strings stored in the database so that
// malformed records can be detected by callers instead of failing the scan.
type Appointment struct {
	ID           int64  `json:"id" db:"id"`
	Date         string `json:"fecha" db:"fecha"`
	Specialty    string `json:"especialidad" db:"especialidad"`
	ProviderName string `json:"medico" db:"medico"`
	Time         string `json:"hora" db:"hora"`
	ProviderID   int64  `json:"medico_id" db:"medico_id"`
}

// At combines Date and Time into a single instant in loc.
func (a Appointment) At(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(AppointmentLayout, a.Date+" "+a.Time, loc)
}

// NewAppointment is the input for booking an appointment.
type NewAppointment struct {
	PatientID  int64
	ProviderID int64
	Specialty  string
	Date       string
	Time       string
}

// Provider is a user of type Administrador offering a specialty.
type Provider struct {
	ID        int64  `json:"id" db:"id"`
	Name      string `json:"nombre" db:"nombre"`
	Specialty string `json:"especialidad" db:"especialidad"`
}
