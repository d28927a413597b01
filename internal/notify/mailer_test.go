package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/citas/internal/model"
)

type stubUsers map[int64]*model.User

func (s stubUsers) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return u, nil
}

var testUser = &model.User{
	ID: 42, FirstNames: "Ana", LastNames: "Pérez", Email: "ana@example.com",
}

func newTestMailer(t *testing.T) *Mailer {
	t.Helper()
	m := New(model.MailConfig{
		SMTPHost: "smtp.example.com",
		SMTPPort: "465",
		Username: "citas@example.com",
		TLS:      true,
	}, "secret", stubUsers{42: testUser})
	m.now = func() time.Time { return time.Date(2024, 6, 9, 14, 5, 0, 0, time.UTC) }
	return m
}

func reminderFor(appointmentID int64) model.Notification {
	return model.Notification{
		ID:            1,
		UserID:        42,
		AppointmentID: &appointmentID,
		Message:       "Tienes una cita agendada para el 2024-06-10 a las 14:00 en 24 horas.",
	}
}

func TestCompose(t *testing.T) {
	m := newTestMailer(t)

	raw, err := m.Compose(*testUser, reminderFor(7))
	require.NoError(t, err)

	r, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer r.Close()

	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, ReminderSubject, subject)

	to, err := r.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "ana@example.com", to[0].Address)
	assert.Equal(t, "Ana Pérez", to[0].Name)

	from, err := r.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "citas@example.com", from[0].Address)

	id, err := r.Header.MessageID()
	require.NoError(t, err)
	assert.Contains(t, id, "@example.com")
	assert.Equal(t, "7", r.Header.Get("X-Citas-Appointment"))

	date, err := r.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(m.now()))

	part, err := r.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "2024-06-10 a las 14:00")
}

func TestDeliver(t *testing.T) {
	m := newTestMailer(t)

	var sent []string
	m.send = func(_ context.Context, from, to string, msg []byte) error {
		assert.Equal(t, "citas@example.com", from)
		sent = append(sent, to)
		return nil
	}
	stored := 0
	m.store = func(context.Context, []byte) error {
		stored++
		return nil
	}

	err := m.Deliver(context.Background(), 42, []model.Notification{reminderFor(7), reminderFor(8)})
	require.NoError(t, err)
	assert.Equal(t, []string{"ana@example.com", "ana@example.com"}, sent)
	// No IMAP host configured, nothing is filed.
	assert.Zero(t, stored)
}

func TestDeliver_StoresCopyWhenIMAPConfigured(t *testing.T) {
	m := newTestMailer(t)
	m.cfg.IMAPHost = "imap.example.com"
	m.send = func(context.Context, string, string, []byte) error { return nil }

	stored := 0
	m.store = func(context.Context, []byte) error {
		stored++
		return errors.New("mailbox full")
	}

	err := m.Deliver(context.Background(), 42, []model.Notification{reminderFor(7)})
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
}

func TestDeliver_Errors(t *testing.T) {
	m := newTestMailer(t)

	err := m.Deliver(context.Background(), 99, []model.Notification{reminderFor(7)})
	assert.ErrorIs(t, err, model.ErrNotFound)

	boom := errors.New("connection refused")
	m.send = func(context.Context, string, string, []byte) error { return boom }
	err = m.Deliver(context.Background(), 42, []model.Notification{reminderFor(7)})
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, m.Deliver(context.Background(), 42, nil))
}

func TestFromFallsBackToUsername(t *testing.T) {
	m := newTestMailer(t)
	assert.Equal(t, "citas@example.com", m.from())

	m.cfg.From = "avisos@clinica.ec"
	assert.Equal(t, "avisos@clinica.ec", m.from())
	assert.Equal(t, "clinica.ec", m.domain())
	assert.Equal(t, "Sent", m.sentMailbox())
}
