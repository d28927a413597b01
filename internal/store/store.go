package store

import (
	"context"
	"time"

	"github.com/nhle/citas/internal/model"
)

// NotificationStore persists user notifications.
type NotificationStore interface {
	// CreateNotification inserts n and returns its assigned id.
	CreateNotification(ctx context.Context, n model.Notification) (int64, error)

	// InsertFirstNotification inserts n only when its user has no
	// notifications at all. It reports whether a row was inserted.
	InsertFirstNotification(ctx context.Context, n model.Notification) (bool, error)

	// InsertReminder inserts a reminder unless one already exists for
	// (n.UserID, *n.AppointmentID). It reports whether a row was inserted;
	// on insert the returned notification carries its id.
	InsertReminder(ctx context.Context, n model.Notification) (*model.Notification, bool, error)

	ListNotifications(ctx context.Context, userID int64) ([]model.Notification, error)
	CountNotifications(ctx context.Context, userID int64) (int, error)
	CountUnreadNotifications(ctx context.Context, userID int64) (int, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) error
	DeleteNotification(ctx context.Context, id int64) error
}

// AppointmentStore persists appointments between patients and providers.
type AppointmentStore interface {
	// GetAppointments returns the scheduled appointments of a patient.
	GetAppointments(ctx context.Context, userID int64) ([]model.Appointment, error)
	CreateAppointment(ctx context.Context, a model.NewAppointment) (int64, error)
	CancelAppointment(ctx context.Context, id int64) error
	ListProviders(ctx context.Context, specialty string) ([]model.Provider, error)
}

// UserStore persists registered users.
type UserStore interface {
	CreateUser(ctx context.Context, u model.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByCedula(ctx context.Context, cedula string) (*model.User, error)
	GetUserByCedulaAndEmail(ctx context.Context, cedula, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

// Store is the full persistence interface of the application.
type Store interface {
	NotificationStore
	AppointmentStore
	UserStore
	Close() error
}

// dbTime normalizes t for storage so that text ordering matches time order.
func dbTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC()
}
