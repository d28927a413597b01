// Package auth registers users, checks their credentials and recovers
// forgotten passwords through security questions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/citas/internal/model"
)

// SecurityAnswer is a chosen security question and its answer.
type SecurityAnswer struct {
	Question string `form:"pregunta" validate:"required,securityq"`
	Answer   string `form:"respuesta" validate:"required"`
}

// Registration is the input of Register.
type Registration struct {
	Type           model.UserType    `form:"tipo" validate:"required,oneof=Paciente Administrador"`
	FirstName      string            `form:"primer_nombre" validate:"required"`
	SecondName     string            `form:"segundo_nombre"`
	LastName       string            `form:"primer_apellido" validate:"required"`
	SecondLastName string            `form:"segundo_apellido"`
	Email          string            `form:"email" validate:"required,email"`
	Phone          string            `form:"telefono" validate:"required,digits10"`
	Cedula         string            `form:"cedula" validate:"required,digits10"`
	Password       string            `form:"password" validate:"required,strongpwd"`
	Confirm        string            `form:"confirmar" validate:"required,eqfield=Password"`
	Specialty      string            `form:"especialidad"`
	Questions      [3]SecurityAnswer `form:"preguntas" validate:"dive"`
	Photo          string            `form:"foto"`
}

// Recovery is the input of RecoverPassword.
type Recovery struct {
	Cedula      string            `form:"cedula" validate:"required"`
	Email       string            `form:"email" validate:"required"`
	Questions   [3]SecurityAnswer `form:"preguntas" validate:"dive"`
	NewPassword string            `form:"password" validate:"required,strongpwd"`
	Confirm     string            `form:"confirmar" validate:"required,eqfield=NewPassword"`
}

// UserStore is the persistence the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u model.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByCedula(ctx context.Context, cedula string) (*model.User, error)
	GetUserByCedulaAndEmail(ctx context.Context, cedula, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

// Service implements registration, login and password recovery.
type Service struct {
	users     UserStore
	validator *Validator
	cost      int
}

// Option configures a Service.
type Option func(*Service)

// WithHashCost sets the bcrypt cost used for passwords and answers.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// NewService creates a Service storing users in users.
func NewService(users UserStore, opts ...Option) *Service {
	s := &Service{
		users:     users,
		validator: NewValidator(),
		cost:      bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validator returns the validator used by the service, so forms can check
// input before submitting it.
func (s *Service) Validator() *Validator {
	return s.validator
}

// Register validates r, stores the new user and returns its id. Field
// problems are returned together as model.ValidationErrors; a taken email
// or cedula yields model.ErrConflict.
func (s *Service) Register(ctx context.Context, r Registration) (int64, error) {
	r = r.normalized()
	if err := s.validator.Validate(r); err != nil {
		return 0, err
	}

	pwHash, err := s.hash(r.Password)
	if err != nil {
		return 0, err
	}

	u := model.User{
		Type:         r.Type,
		FirstNames:   joinNames(r.FirstName, r.SecondName),
		LastNames:    joinNames(r.LastName, r.SecondLastName),
		Email:        r.Email,
		Phone:        r.Phone,
		Cedula:       r.Cedula,
		PasswordHash: pwHash,
	}
	if r.Type == model.UserTypeProvider {
		specialty := r.Specialty
		u.Specialty = &specialty
	}
	if r.Photo != "" {
		photo := r.Photo
		u.Photo = &photo
	}

	answers := [3]*string{&u.SecurityA1, &u.SecurityA2, &u.SecurityA3}
	questions := [3]*string{&u.SecurityQ1, &u.SecurityQ2, &u.SecurityQ3}
	for i, qa := range r.Questions {
		*questions[i] = qa.Question
		if *answers[i], err = s.hash(normalizeAnswer(qa.Answer)); err != nil {
			return 0, err
		}
	}

	id, err := s.users.CreateUser(ctx, u)
	if err != nil {
		return 0, fmt.Errorf("registering user: %w", err)
	}

	log.Info().Int64("user_id", id).Str("tipo", string(u.Type)).Msg("user registered")
	return id, nil
}

// Login returns the user identified by an email or a cedula when password
// matches. Any mismatch yields model.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, identifier, password string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, model.ErrInvalidCredentials
	}

	var u *model.User
	var err error
	if strings.Contains(identifier, "@") {
		u, err = s.users.GetUserByEmail(ctx, strings.ToLower(identifier))
	} else {
		u, err = s.users.GetUserByCedula(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		log.Debug().Int64("user_id", u.ID).Msg("password mismatch")
		return nil, model.ErrInvalidCredentials
	}

	return u, nil
}

// RecoverPassword replaces the password of the user identified by cedula
// and email when the three security questions and answers match the ones
// given at registration, slot by slot.
func (s *Service) RecoverPassword(ctx context.Context, r Recovery) error {
	r = r.normalized()
	if err := s.validator.Validate(r); err != nil {
		return err
	}

	u, err := s.users.GetUserByCedulaAndEmail(ctx, r.Cedula, r.Email)
	if err != nil {
		return fmt.Errorf("recovering password: %w", err)
	}

	questions := u.Questions()
	hashes := u.AnswerHashes()
	for i, qa := range r.Questions {
		if qa.Question != questions[i] {
			return model.ErrSecurityMismatch
		}
		err := bcrypt.CompareHashAndPassword([]byte(hashes[i]), []byte(normalizeAnswer(qa.Answer)))
		if err != nil {
			return model.ErrSecurityMismatch
		}
	}

	pwHash, err := s.hash(r.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, pwHash); err != nil {
		return fmt.Errorf("recovering password: %w", err)
	}

	log.Info().Int64("user_id", u.ID).Msg("password recovered")
	return nil
}

func (s *Service) hash(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing secret: %w", err)
	}
	return string(h), nil
}

func (r Registration) normalized() Registration {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.SecondName = strings.TrimSpace(r.SecondName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.SecondLastName = strings.TrimSpace(r.SecondLastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Cedula = strings.TrimSpace(r.Cedula)
	if r.Type != model.UserTypeProvider {
		r.Specialty = ""
	}
	for i := range r.Questions {
		r.Questions[i].Answer = strings.TrimSpace(r.Questions[i].Answer)
	}
	return r
}

func (r Recovery) normalized() Recovery {
	r.Cedula = strings.TrimSpace(r.Cedula)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.NewPassword = strings.TrimSpace(r.NewPassword)
	r.Confirm = strings.TrimSpace(r.Confirm)
	for i := range r.Questions {
		r.Questions[i].Answer = strings.TrimSpace(r.Questions[i].Answer)
	}
	return r
}

// normalizeAnswer makes answer comparison ignore case and surrounding space.
func normalizeAnswer(a string) string {
	return strings.ToLower(strings.TrimSpace(a))
}

func joinNames(first, second string) string {
	if second == "" {
		return first
	}
	return first + " " + second
}
