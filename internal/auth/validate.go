package auth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/nhle/citas/internal/model"
)

// SpecialChars are the characters that satisfy the special character rule
// of a password.
const SpecialChars = "@$!%*?&"

// MinPasswordLength is the minimum number of characters of a password.
const MinPasswordLength = 8

// messages maps a validation tag to the text shown next to the field.
var messages = map[string]string{
	"required":  "Este campo es obligatorio",
	"email":     "Correo inválido",
	"digits10":  "Debe tener 10 dígitos",
	"strongpwd": "La contraseña no cumple los requisitos",
	"eqfield":   "Las contraseñas no coinciden",
	"securityq": "Seleccione una pregunta",
	"specialty": "Seleccione una especialidad",
	"distinct":  "Las preguntas de seguridad deben ser diferentes",
	"oneof":     "Seleccione un tipo de usuario",
}

// Validator wraps go-playground/validator with the registration rules.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the custom tags registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	// Registration can only fail if a tag is registered twice.
	_ = v.RegisterValidation("digits10", func(fl validator.FieldLevel) bool {
		return isDigits(fl.Field().String(), 10)
	})
	_ = v.RegisterValidation("strongpwd", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("securityq", func(fl validator.FieldLevel) bool {
		return model.IsSecurityQuestion(fl.Field().String())
	})

	v.RegisterStructValidation(registrationRules, Registration{})
	v.RegisterStructValidation(recoveryRules, Recovery{})

	return &Validator{validate: v}
}

// Validate checks s and returns every failing field as
// model.ValidationErrors.
func (v *Validator) Validate(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}

	out := make(model.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, &model.ValidationError{
			Field:   fieldPath(fe),
			Message: message(fe.Tag()),
		})
	}
	return out
}

func registrationRules(sl validator.StructLevel) {
	r := sl.Current().Interface().(Registration)

	if r.Type == model.UserTypeProvider {
		switch {
		case r.Specialty == "":
			sl.ReportError(r.Specialty, "especialidad", "Specialty", "required", "")
		case !model.IsSpecialty(r.Specialty):
			sl.ReportError(r.Specialty, "especialidad", "Specialty", "specialty", "")
		}
	}
	checkDistinct(sl, r.Questions)
}

func recoveryRules(sl validator.StructLevel) {
	checkDistinct(sl, sl.Current().Interface().(Recovery).Questions)
}

// checkDistinct reports a single error when two selected questions repeat.
func checkDistinct(sl validator.StructLevel, qs [3]SecurityAnswer) {
	seen := make(map[string]bool, len(qs))
	for _, q := range qs {
		if q.Question == "" {
			continue
		}
		if seen[q.Question] {
			sl.ReportError(qs, "preguntas", "Questions", "distinct", "")
			return
		}
		seen[q.Question] = true
	}
}

// fieldPath drops the root struct name from the namespace, so that nested
// fields read like "preguntas[1].respuesta".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(tag string) string {
	if m, ok := messages[tag]; ok {
		return m
	}
	return "Valor inválido"
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Requirement is one password rule and whether a candidate meets it.
type Requirement struct {
	Label string
	Met   bool
}

// PasswordRequirements evaluates pwd against each password rule, in the
// order they are shown to the user.
func PasswordRequirements(pwd string) []Requirement {
	var upper, digit, special bool
	for _, r := range pwd {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(SpecialChars, r):
			special = true
		}
	}
	return []Requirement{
		{Label: fmt.Sprintf("Mínimo %d caracteres", MinPasswordLength), Met: utf8.RuneCountInString(pwd) >= MinPasswordLength},
		{Label: "Al menos una letra mayúscula", Met: upper},
		{Label: "Al menos un número", Met: digit},
		{Label: "Al menos un carácter especial (" + SpecialChars + ")", Met: special},
	}
}

// IsStrongPassword reports whether pwd meets every password rule.
func IsStrongPassword(pwd string) bool {
	for _, req := range PasswordRequirements(pwd) {
		if !req.Met {
			return false
		}
	}
	return true
}
