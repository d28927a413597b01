package ui

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/citas/internal/model"
)

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"credentials", model.ErrInvalidCredentials, "Credenciales incorrectas"},
		{"wrapped conflict", fmt.Errorf("registering user: %w", model.ErrConflict), "Ya existe un usuario con esa cédula o correo"},
		{"not found", fmt.Errorf("recovering password: %w", model.ErrNotFound), "Usuario no encontrado"},
		{"mismatch", model.ErrSecurityMismatch, "Las respuestas de seguridad no coinciden"},
		{"other", errors.New("disk full"), "Error: disk full"},
		{
			"fields",
			model.ValidationErrors{
				{Field: "email", Message: "Correo inválido"},
				{Field: "cedula", Message: "Debe tener 10 dígitos"},
			},
			"• email: Correo inválido\n• cedula: Debe tener 10 dígitos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorText(tt.err))
		})
	}
}

func TestBadgeAndLayout(t *testing.T) {
	assert.Empty(t, Badge(0))
	assert.Contains(t, Badge(3), "3 sin leer")

	l := NewLayout(80, 24)
	assert.Equal(t, 22, l.ContentHeight())
	assert.Equal(t, 0, NewLayout(80, 1).ContentHeight())
	assert.Equal(t, 40, FormWidth(10))
	assert.Equal(t, 100, FormWidth(300))
	assert.Equal(t, 10, FormHeight(5))
}
