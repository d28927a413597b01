package store

import (
	"context"
	"fmt"

	"github.com/nhle/citas/internal/model"
)

// GetAppointments returns the scheduled appointments of a patient ordered by
// date and time. Date and time are returned exactly as stored.
func (s *SQLiteStore) GetAppointments(
	ctx context.Context,
	userID int64,
) ([]model.Appointment, error) {
	var appointments []model.Appointment
	err := s.db.SelectContext(ctx, &appointments, `
		SELECT c.id, c.fecha, c.especialidad, c.hora, c.medico_id,
		       TRIM(u.nombres || ' ' || u.apellidos) AS medico
		FROM Citas c
		JOIN Usuarios u ON u.id = c.medico_id
		WHERE c.paciente_id = ? AND c.estado = ?
		ORDER BY c.fecha, c.hora, c.id`,
		userID, model.AppointmentScheduled,
	)
	if err != nil {
		return nil, fmt.Errorf("querying appointments of user %d: %w", userID, err)
	}
	return appointments, nil
}

// CreateAppointment books an appointment and returns its id. The provider
// must exist and offer the requested specialty.
func (s *SQLiteStore) CreateAppointment(
	ctx context.Context,
	a model.NewAppointment,
) (int64, error) {
	var offered int
	err := s.db.GetContext(ctx, &offered, `
		SELECT COUNT(*) FROM Usuarios
		WHERE id = ? AND tipo = ? AND especialidad = ?`,
		a.ProviderID, string(model.UserTypeProvider), a.Specialty,
	)
	if err != nil {
		return 0, fmt.Errorf("checking provider %d: %w", a.ProviderID, err)
	}
	if offered == 0 {
		return 0, fmt.Errorf("provider %d with specialty %q: %w",
			a.ProviderID, a.Specialty, model.ErrNotFound)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO Citas (paciente_id, medico_id, especialidad, fecha, hora, estado)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.PatientID, a.ProviderID, a.Specialty, a.Date, a.Time, model.AppointmentScheduled,
	)
	if err != nil {
		return 0, fmt.Errorf("creating appointment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading appointment id: %w", err)
	}
	return id, nil
}

// CancelAppointment marks an appointment as cancelled. Reminders already
// generated for it are kept.
func (s *SQLiteStore) CancelAppointment(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE Citas SET estado = ? WHERE id = ?", model.AppointmentCancelled, id,
	)
	if err != nil {
		return fmt.Errorf("cancelling appointment %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appointment %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// ListProviders returns the providers offering specialty, or every provider
// when specialty is empty.
func (s *SQLiteStore) ListProviders(
	ctx context.Context,
	specialty string,
) ([]model.Provider, error) {
	query := `
		SELECT id, TRIM(nombres || ' ' || apellidos) AS nombre,
		       COALESCE(especialidad, '') AS especialidad
		FROM Usuarios
		WHERE tipo = ?`
	args := []any{string(model.UserTypeProvider)}
	if specialty != "" {
		query += " AND especialidad = ?"
		args = append(args, specialty)
	}
	query += " ORDER BY nombres, apellidos, id"

	var providers []model.Provider
	if err := s.db.SelectContext(ctx, &providers, query, args...); err != nil {
		return nil, fmt.Errorf("querying providers: %w", err)
	}
	return providers, nil
}
