package model

import (
	"strings"
	"time"
)

// UserType distinguishes patients from providers.
type UserType string

const (
	UserTypePatient  UserType = "Paciente"
	UserTypeProvider UserType = "Administrador"
)

// SecurityQuestions is the fixed set of questions offered at registration
// and asked back during password recovery.
var SecurityQuestions = []string{
	"¿Cuál es el nombre de tu primera mascota?",
	"¿Cuál es el apellido de soltera de tu madre?",
	"¿En qué ciudad naciste?",
	"¿Cuál es tu comida favorita?",
	"¿Cuál es el nombre de tu escuela secundaria?",
}

// Specialties offered by providers.
var Specialties = []string{
	"Medicina General",
	"Medicina Familiar",
	"Odontología",
	"Obstetricia",
	"Ginecología",
}

// User is a registered account. PasswordHash and the security answer
// hashes never leave the auth and store packages.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Type         UserType  `json:"tipo" db:"tipo"`
	FirstNames   string    `json:"nombres" db:"nombres"`
	LastNames    string    `json:"apellidos" db:"apellidos"`
	Email        string    `json:"email" db:"email"`
	Phone        string    `json:"telefono" db:"telefono"`
	Cedula       string    `json:"cedula" db:"cedula"`
	PasswordHash string    `json:"-" db:"password"`
	Specialty    *string   `json:"especialidad,omitempty" db:"especialidad"`
	SecurityQ1   string    `json:"-" db:"security_q1"`
	SecurityA1   string    `json:"-" db:"security_a1"`
	SecurityQ2   string    `json:"-" db:"security_q2"`
	SecurityA2   string    `json:"-" db:"security_a2"`
	SecurityQ3   string    `json:"-" db:"security_q3"`
	SecurityA3   string    `json:"-" db:"security_a3"`
	Photo        *string   `json:"photo,omitempty" db:"photo"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// FullName returns the first and last names joined.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstNames + " " + u.LastNames)
}

// IsProvider reports whether the user registered as a provider.
func (u User) IsProvider() bool {
	return u.Type == UserTypeProvider
}

// Questions returns the three stored security questions in slot order.
func (u User) Questions() [3]string {
	return [3]string{u.SecurityQ1, u.SecurityQ2, u.SecurityQ3}
}

// AnswerHashes returns the three stored answer hashes in slot order.
func (u User) AnswerHashes() [3]string {
	return [3]string{u.SecurityA1, u.SecurityA2, u.SecurityA3}
}

// IsSecurityQuestion reports whether q is one of SecurityQuestions.
func IsSecurityQuestion(q string) bool {
	for _, s := range SecurityQuestions {
		if s == q {
			return true
		}
	}
	return false
}

// IsSpecialty reports whether s is one of Specialties.
func IsSpecialty(s string) bool {
	for _, sp := range Specialties {
		if sp == s {
			return true
		}
	}
	return false
}
