package reminder_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nhle/citas/internal/model"
	"github.com/nhle/citas/internal/reminder"
	"github.com/nhle/citas/tests/testutil"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) GetAppointments(ctx context.Context, userID int64) ([]model.Appointment, error) {
	args := m.Called(ctx, userID)
	appointments, _ := args.Get(0).([]model.Appointment)
	return appointments, args.Error(1)
}

func appointmentAt(id int64, at time.Time) model.Appointment {
	return model.Appointment{
		ID:           id,
		Date:         at.Format(model.DateLayout),
		Time:         at.Format(model.TimeLayout),
		Specialty:    "Medicina General",
		ProviderName: "Dra. López",
		ProviderID:   2,
	}
}

func TestGenerateAppointmentReminders_Scenario(t *testing.T) {
	s := testutil.NewTestStore(t)
	clock := testutil.NewFixedClock(time.Date(2024, 6, 9, 14, 5, 0, 0, time.UTC))

	src := &mockSource{}
	src.On("GetAppointments", mock.Anything, int64(42)).Return([]model.Appointment{{
		ID: 7, Date: "2024-06-10", Time: "14:00", Specialty: "Odontología",
		ProviderName: "Dr. Ruiz", ProviderID: 3,
	}}, nil)

	svc := reminder.New(src, s, reminder.WithClock(clock.Now), reminder.WithLocation(time.UTC))
	ctx := context.Background()

	created, err := svc.GenerateAppointmentReminders(ctx, 42)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, int64(42), created[0].UserID)
	require.NotNil(t, created[0].AppointmentID)
	assert.Equal(t, int64(7), *created[0].AppointmentID)
	assert.Contains(t, created[0].Message, "2024-06-10")
	assert.Contains(t, created[0].Message, "14:00")
	assert.False(t, created[0].Read)

	clock.Set(time.Date(2024, 6, 9, 14, 10, 0, 0, time.UTC))
	created, err = svc.GenerateAppointmentReminders(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, created)

	list, err := s.ListNotifications(ctx, 42)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t,
		"Tienes una cita agendada para el 2024-06-10 a las 14:00 en 24 horas.",
		list[0].Message)

	src.AssertNumberOfCalls(t, "GetAppointments", 2)
}

func TestGenerateAppointmentReminders_Window(t *testing.T) {
	now := time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"23h is too early", 23 * time.Hour, false},
		{"lower bound", reminder.WindowMin, true},
		{"exactly 24h", 24 * time.Hour, true},
		{"upper bound", reminder.WindowMax, true},
		{"25h is too late", 25 * time.Hour, false},
		{"past appointment", -time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testutil.NewTestStore(t)
			src := &mockSource{}
			src.On("GetAppointments", mock.Anything, int64(1)).
				Return([]model.Appointment{appointmentAt(10, now.Add(tt.offset))}, nil)

			svc := reminder.New(src, s,
				reminder.WithClock(func() time.Time { return now }),
				reminder.WithLocation(time.UTC))

			created, err := svc.GenerateAppointmentReminders(context.Background(), 1)
			require.NoError(t, err)
			if tt.want {
				assert.Len(t, created, 1)
			} else {
				assert.Empty(t, created)
			}

			count, err := s.CountNotifications(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, len(created), count)
		})
	}
}

func TestInWindow(t *testing.T) {
	assert.False(t, reminder.InWindow(reminder.WindowMin-time.Second))
	assert.True(t, reminder.InWindow(reminder.WindowMin))
	assert.True(t, reminder.InWindow(reminder.WindowMax))
	assert.False(t, reminder.InWindow(reminder.WindowMax+time.Second))
}

func TestGenerateAppointmentReminders_SkipsMalformed(t *testing.T) {
	s := testutil.NewTestStore(t)
	now := time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC)

	src := &mockSource{}
	src.On("GetAppointments", mock.Anything, int64(1)).Return([]model.Appointment{
		{ID: 1, Date: "10/06/2024", Time: "08:00"},
		{ID: 2, Date: "2024-06-10", Time: "8 am"},
		{ID: 3, Date: "", Time: ""},
		appointmentAt(4, now.Add(24*time.Hour)),
	}, nil)

	svc := reminder.New(src, s,
		reminder.WithClock(func() time.Time { return now }),
		reminder.WithLocation(time.UTC))

	created, err := svc.GenerateAppointmentReminders(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, int64(4), *created[0].AppointmentID)
}

func TestGenerateAppointmentReminders_UsesLocation(t *testing.T) {
	s := testutil.NewTestStore(t)
	zone := time.FixedZone("ECT", -5*3600)
	now := time.Date(2024, 6, 9, 14, 0, 0, 0, time.UTC)

	// 14:00 local is 19:00 UTC, 29h away: outside the window.
	src := &mockSource{}
	src.On("GetAppointments", mock.Anything, int64(1)).Return([]model.Appointment{
		{ID: 1, Date: "2024-06-10", Time: "14:00"},
	}, nil)

	svc := reminder.New(src, s,
		reminder.WithClock(func() time.Time { return now }),
		reminder.WithLocation(zone))

	created, err := svc.GenerateAppointmentReminders(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestGenerateAppointmentReminders_SourceError(t *testing.T) {
	s := testutil.NewTestStore(t)
	boom := errors.New("boom")

	src := &mockSource{}
	src.On("GetAppointments", mock.Anything, int64(1)).Return(nil, boom)

	svc := reminder.New(src, s)
	_, err := svc.GenerateAppointmentReminders(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestGenerateAppointmentReminders_StaleRemindersKept(t *testing.T) {
	s := testutil.NewTestStore(t)
	clock := testutil.NewFixedClock(time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC))

	src := &mockSource{}
	src.On("GetAppointments", mock.Anything, int64(1)).
		Return([]model.Appointment{appointmentAt(5, clock.Now().Add(24*time.Hour))}, nil).Once()
	src.On("GetAppointments", mock.Anything, int64(1)).
		Return([]model.Appointment{}, nil)

	svc := reminder.New(src, s, reminder.WithClock(clock.Now), reminder.WithLocation(time.UTC))
	ctx := context.Background()

	_, err := svc.GenerateAppointmentReminders(ctx, 1)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = svc.GenerateAppointmentReminders(ctx, 1)
	require.NoError(t, err)

	count, err := s.CountNotifications(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGenerateAppointmentReminders_ConcurrentCallers(t *testing.T) {
	s := testutil.NewTestStore(t)
	now := time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC)

	src := &mockSource{}
	src.On("GetAppointments", mock.Anything, int64(1)).
		Return([]model.Appointment{appointmentAt(5, now.Add(24*time.Hour))}, nil)

	svc := reminder.New(src, s,
		reminder.WithClock(func() time.Time { return now }),
		reminder.WithLocation(time.UTC))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GenerateAppointmentReminders(context.Background(), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := s.CountNotifications(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSeedWelcome(t *testing.T) {
	s := testutil.NewTestStore(t)
	svc := reminder.New(&mockSource{}, s)
	ctx := context.Background()

	inserted, err := svc.SeedWelcome(ctx, 9)
	require.NoError(t, err)
	assert.True(t, inserted)

	list, err := s.ListNotifications(ctx, 9)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, reminder.WelcomeMessage, list[0].Message)
	assert.Nil(t, list[0].AppointmentID)
	assert.False(t, list[0].Read)

	// Reading the welcome does not make the user eligible again.
	require.NoError(t, s.MarkNotificationRead(ctx, list[0].ID))
	inserted, err = svc.SeedWelcome(ctx, 9)
	require.NoError(t, err)
	assert.False(t, inserted)

	// Deleting everything does.
	require.NoError(t, s.DeleteNotification(ctx, list[0].ID))
	inserted, err = svc.SeedWelcome(ctx, 9)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestSeedWelcome_SkipsUserWithReminders(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id := int64(3)
	_, _, err := s.InsertReminder(ctx, model.Notification{
		UserID: 9, AppointmentID: &id, Message: "recordatorio",
	})
	require.NoError(t, err)

	svc := reminder.New(&mockSource{}, s)
	inserted, err := svc.SeedWelcome(ctx, 9)
	require.NoError(t, err)
	assert.False(t, inserted)
}
