// Package reminder seeds the welcome notification and generates 24-hour
// appointment reminders.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nhle/citas/internal/model"
)

// WelcomeMessage is the text of the notification a user receives on first
// access.
const WelcomeMessage = "Bienvenido a la aplicación de citas médicas."

// An appointment is due for a reminder when it starts between WindowMin and
// WindowMax from now, both ends included.
const (
	WindowMin = 23*time.Hour + 30*time.Minute
	WindowMax = 24*time.Hour + 30*time.Minute
)

// AppointmentSource provides the appointments of a user.
type AppointmentSource interface {
	GetAppointments(ctx context.Context, userID int64) ([]model.Appointment, error)
}

// NotificationWriter is the part of the notification store the service
// writes through.
type NotificationWriter interface {
	InsertFirstNotification(ctx context.Context, n model.Notification) (bool, error)
	InsertReminder(ctx context.Context, n model.Notification) (*model.Notification, bool, error)
}

// Service generates notifications for users.
type Service struct {
	source AppointmentSource
	store  NotificationWriter
	now    func() time.Time
	loc    *time.Location

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone appointment dates and times are read in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New creates a Service reading appointments from source and writing
// notifications to store.
func New(source AppointmentSource, store NotificationWriter, opts ...Option) *Service {
	s := &Service{
		source: source,
		store:  store,
		now:    time.Now,
		loc:    time.Local,
		locks:  make(map[int64]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SeedWelcome inserts the welcome notification when the user has no
// notification at all, read or unread. It reports whether one was inserted.
// A user who deleted every notification is seeded again.
func (s *Service) SeedWelcome(ctx context.Context, userID int64) (bool, error) {
	inserted, err := s.store.InsertFirstNotification(ctx, model.Notification{
		UserID:    userID,
		Message:   WelcomeMessage,
		CreatedAt: s.now(),
	})
	if err != nil {
		return false, fmt.Errorf("seeding welcome notification for user %d: %w", userID, err)
	}
	if inserted {
		log.Debug().Int64("user_id", userID).Msg("welcome notification created")
	}
	return inserted, nil
}

// GenerateAppointmentReminders creates a reminder for every appointment of
// the user that starts inside the reminder window and has none yet. It
// returns the reminders created by this call. Appointments whose date or
// time cannot be parsed are skipped.
func (s *Service) GenerateAppointmentReminders(
	ctx context.Context,
	userID int64,
) ([]model.Notification, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	appointments, err := s.source.GetAppointments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching appointments of user %d: %w", userID, err)
	}

	now := s.now()
	var created []model.Notification
	for _, a := range appointments {
		at, err := a.At(s.loc)
		if err != nil {
			log.Debug().Err(err).
				Int64("appointment_id", a.ID).
				Str("fecha", a.Date).
				Str("hora", a.Time).
				Msg("skipping appointment with invalid date")
			continue
		}
		if !InWindow(at.Sub(now)) {
			continue
		}

		appointmentID := a.ID
		n, inserted, err := s.store.InsertReminder(ctx, model.Notification{
			UserID:        userID,
			AppointmentID: &appointmentID,
			Message:       ReminderMessage(a),
			CreatedAt:     now,
		})
		if err != nil {
			return created, fmt.Errorf("creating reminder for appointment %d: %w", a.ID, err)
		}
		if inserted {
			log.Info().
				Int64("user_id", userID).
				Int64("appointment_id", a.ID).
				Msg("appointment reminder created")
			created = append(created, *n)
		}
	}

	return created, nil
}

// InWindow reports whether an appointment diff away from now is due for
// its 24-hour reminder.
func InWindow(diff time.Duration) bool {
	return diff >= WindowMin && diff <= WindowMax
}

// ReminderMessage returns the reminder text for a.
func ReminderMessage(a model.Appointment) string {
	return fmt.Sprintf("Tienes una cita agendada para el %s a las %s en 24 horas.", a.Date, a.Time)
}

// lockUser serializes generation runs for the same user.
func (s *Service) lockUser(userID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
