package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nhle/citas/internal/model"
	"github.com/nhle/citas/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// CreatePatient registers a patient with a unique email and cedula derived
// from n and returns its id.
func CreatePatient(t *testing.T, s store.UserStore, n int) int64 {
	t.Helper()
	return createUser(t, s, n, model.UserTypePatient, nil)
}

// CreateProvider registers a provider offering specialty and returns its id.
func CreateProvider(t *testing.T, s store.UserStore, n int, specialty string) int64 {
	t.Helper()
	return createUser(t, s, n, model.UserTypeProvider, &specialty)
}

func createUser(t *testing.T, s store.UserStore, n int, typ model.UserType, specialty *string) int64 {
	t.Helper()

	id, err := s.CreateUser(context.Background(), model.User{
		Type:         typ,
		FirstNames:   "Usuario",
		LastNames:    string(rune('A' + n%26)),
		Email:        "usuario" + digits(n) + "@example.com",
		Phone:        "09" + digits(n)[2:],
		Cedula:       "17" + digits(n)[2:],
		PasswordHash: "hash",
		Specialty:    specialty,
		SecurityQ1:   model.SecurityQuestions[0],
		SecurityA1:   "x",
		SecurityQ2:   model.SecurityQuestions[1],
		SecurityA2:   "x",
		SecurityQ3:   model.SecurityQuestions[2],
		SecurityA3:   "x",
	})
	if err != nil {
		t.Fatalf("creating user %d: %v", n, err)
	}
	return id
}

// digits renders n as a zero-padded ten digit string.
func digits(n int) string {
	b := []byte("0000000000")
	for i := len(b) - 1; i >= 0 && n > 0; i-- {
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b)
}

// FixedClock is a settable clock for time-dependent tests.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock returns a clock stopped at now.
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

// Now returns the current fixed time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to now.
func (c *FixedClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
