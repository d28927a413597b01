package ui

import (
	"errors"
	"strings"

	"github.com/nhle/citas/internal/model"
)

// ErrorText turns a service error into the message shown to the user.
// Field errors are listed one per line.
func ErrorText(err error) string {
	var verrs model.ValidationErrors
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verrs):
		lines := make([]string, 0, len(verrs))
		for _, e := range verrs {
			lines = append(lines, "• "+e.Field+": "+e.Message)
		}
		return strings.Join(lines, "\n")
	case errors.Is(err, model.ErrInvalidCredentials):
		return "Credenciales incorrectas"
	case errors.Is(err, model.ErrConflict):
		return "Ya existe un usuario con esa cédula o correo"
	case errors.Is(err, model.ErrNotFound):
		return "Usuario no encontrado"
	case errors.Is(err, model.ErrSecurityMismatch):
		return "Las respuestas de seguridad no coinciden"
	default:
		return "Error: " + err.Error()
	}
}

// Required is a huh validator rejecting blank input.
func Required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("Este campo es obligatorio")
	}
	return nil
}
