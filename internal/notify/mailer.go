// Package notify delivers appointment reminders by email.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nhle/citas/internal/model"
)

// ReminderSubject is the subject line of reminder emails.
const ReminderSubject = "Recordatorio de cita"

// UserLookup resolves the recipient of a reminder.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// Mailer sends reminders over SMTP and files a copy in the sent mailbox
// over IMAP.
type Mailer struct {
	cfg      model.MailConfig
	password string
	users    UserLookup
	now      func() time.Time

	send  func(ctx context.Context, from, to string, msg []byte) error
	store func(ctx context.Context, msg []byte) error
}

// New creates a Mailer for cfg. The password is the account password of
// cfg.Username.
func New(cfg model.MailConfig, password string, users UserLookup) *Mailer {
	m := &Mailer{
		cfg:      cfg,
		password: password,
		users:    users,
		now:      time.Now,
	}
	m.send = m.sendSMTP
	m.store = m.appendSent
	return m
}

// Deliver emails each reminder to the user. The copy in the sent mailbox
// is best effort and never fails the delivery.
func (m *Mailer) Deliver(ctx context.Context, userID int64, reminders []model.Notification) error {
	if len(reminders) == 0 {
		return nil
	}

	user, err := m.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("looking up recipient %d: %w", userID, err)
	}

	var errs []error
	for _, n := range reminders {
		msg, err := m.Compose(*user, n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := m.send(ctx, m.from(), user.Email, msg); err != nil {
			errs = append(errs, fmt.Errorf("sending reminder %d: %w", n.ID, err))
			continue
		}
		log.Info().Int64("notification_id", n.ID).Str("to", user.Email).Msg("reminder emailed")

		if m.cfg.IMAPHost == "" {
			continue
		}
		if err := m.store(ctx, msg); err != nil {
			log.Warn().Err(err).Int64("notification_id", n.ID).Msg("storing sent reminder")
		}
	}

	return errors.Join(errs...)
}

// Compose builds the RFC 5322 message for reminder n addressed to user.
func (m *Mailer) Compose(user model.User, n model.Notification) ([]byte, error) {
	var h mail.Header
	h.SetDate(m.now())
	h.SetSubject(ReminderSubject)
	h.SetAddressList("From", []*mail.Address{{Name: "Citas Médicas", Address: m.from()}})
	h.SetAddressList("To", []*mail.Address{{Name: user.FullName(), Address: user.Email}})
	h.SetMessageID(uuid.NewString() + "@" + m.domain())
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if n.AppointmentID != nil {
		h.Set("X-Citas-Appointment", fmt.Sprint(*n.AppointmentID))
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, n.Message+"\r\n"); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}

	return buf.Bytes(), nil
}

func (m *Mailer) from() string {
	if m.cfg.From != "" {
		return m.cfg.From
	}
	return m.cfg.Username
}

func (m *Mailer) domain() string {
	if i := strings.LastIndex(m.from(), "@"); i >= 0 {
		return m.from()[i+1:]
	}
	return "citas.local"
}
