package login

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nhle/citas/internal/model"
)

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) Login(ctx context.Context, identifier, password string) (*model.User, error) {
	args := m.Called(ctx, identifier, password)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func TestSubmit_Login(t *testing.T) {
	a := new(mockAuth)
	user := &model.User{ID: 42, FirstNames: "Ana"}
	a.On("Login", mock.Anything, "ana@example.com", "Secreta1!").Return(user, nil)

	m := New(a, 80, 24)
	m.fb.identifier = "ana@example.com"
	m.fb.password = "Secreta1!"

	m, cmd := m.submit()
	require.NotNil(t, cmd)
	assert.True(t, m.pending)
	assert.Contains(t, m.View(), "Verificando...")

	m, cmd = m.Update(cmd())
	require.NotNil(t, cmd)
	assert.Equal(t, LoggedInMsg{User: user}, cmd())
	assert.False(t, m.pending)
	a.AssertExpectations(t)
}

func TestSubmit_BadCredentials(t *testing.T) {
	a := new(mockAuth)
	a.On("Login", mock.Anything, "1712345678", "mala").Return(nil, model.ErrInvalidCredentials)

	m := New(a, 80, 24)
	m.fb.identifier = "1712345678"
	m.fb.password = "mala"

	m, cmd := m.submit()
	m, _ = m.Update(cmd())

	assert.Equal(t, "Credenciales incorrectas", m.errMsg)
	assert.Empty(t, m.fb.password)
	assert.Equal(t, "1712345678", m.fb.identifier)
	assert.Contains(t, m.View(), "Credenciales incorrectas")
}

func TestSubmit_OtherActions(t *testing.T) {
	m := New(new(mockAuth), 80, 24)

	m.fb.action = ActionRegister
	_, cmd := m.submit()
	assert.Equal(t, RegisterRequestMsg{}, cmd())

	m.fb.action = ActionRecover
	_, cmd = m.submit()
	assert.Equal(t, RecoverRequestMsg{}, cmd())
}

func TestReset(t *testing.T) {
	m := New(new(mockAuth), 80, 24)
	m.errMsg = "viejo"
	m.Reset("Cuenta creada. Ya puedes iniciar sesión.")

	assert.Empty(t, m.errMsg)
	assert.Equal(t, ActionLogin, m.fb.action)
	assert.Contains(t, m.View(), "Cuenta creada")
}
