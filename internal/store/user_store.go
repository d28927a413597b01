package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/citas/internal/model"
)

const userColumns = `id, tipo, nombres, apellidos, email, telefono, cedula, password,
	especialidad, security_q1, security_a1, security_q2, security_a2,
	security_q3, security_a3, photo, created_at`

// CreateUser inserts a new user and returns its id. A duplicate email or
// cedula yields model.ErrConflict.
func (s *SQLiteStore) CreateUser(ctx context.Context, u model.User) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO Usuarios (
			tipo, nombres, apellidos, email, telefono, cedula, password,
			especialidad, security_q1, security_a1, security_q2, security_a2,
			security_q3, security_a3, photo, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(u.Type), u.FirstNames, u.LastNames, strings.ToLower(u.Email), u.Phone, u.Cedula,
		u.PasswordHash, u.Specialty,
		u.SecurityQ1, u.SecurityA1, u.SecurityQ2, u.SecurityA2, u.SecurityQ3, u.SecurityA3,
		u.Photo, dbTime(u.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("creating user %s: %w", u.Email, model.ErrConflict)
		}
		return 0, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading user id: %w", err)
	}
	return id, nil
}

// GetUserByID returns the user with the given id.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByEmail returns the user with the given email, compared
// case-insensitively.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, "email = ?", strings.TrimSpace(email))
}

// GetUserByCedula returns the user with the given cedula.
func (s *SQLiteStore) GetUserByCedula(ctx context.Context, cedula string) (*model.User, error) {
	return s.getUser(ctx, "cedula = ?", strings.TrimSpace(cedula))
}

// GetUserByCedulaAndEmail returns the user matching both identifiers.
func (s *SQLiteStore) GetUserByCedulaAndEmail(
	ctx context.Context,
	cedula, email string,
) (*model.User, error) {
	return s.getUser(ctx, "cedula = ? AND email = ?",
		strings.TrimSpace(cedula), strings.TrimSpace(email))
}

// UpdatePassword replaces the stored password hash of a user.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE Usuarios SET password = ? WHERE id = ?", hash, id,
	)
	if err != nil {
		return fmt.Errorf("updating password of user %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, args ...any) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM Usuarios WHERE "+where, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}
