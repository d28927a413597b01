package model

import "time"

// Notification is a message surfaced to a user inside the application,
// either a generic one (welcome) or a reminder tied to an appointment.
type Notification struct {
	// ID is the surrogate key assigned by the database on insert.
	ID int64 `json:"id" db:"id"`

	// UserID is the owner of the notification.
	UserID int64 `json:"usuario_id" db:"usuario_id"`

	// AppointmentID references the appointment a reminder was created for.
	// It is nil for generic notifications.
	AppointmentID *int64 `json:"appointment_id,omitempty" db:"appointment_id"`

	// Message is the human-readable notification text.
	Message string `json:"message" db:"message"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read" db:"read"`

	// CreatedAt is when this notification was inserted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsReminder reports whether the notification references an appointment.
func (n Notification) IsReminder() bool {
	return n.AppointmentID != nil
}
