package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migration holds a single schema migration with its target version.
// sql runs first, then apply when set.
type migration struct {
	version int
	sql     string
	apply   func(ctx context.Context, q querier) error
}

// querier is satisfied by *sqlx.Conn, *sqlx.Tx and *sqlx.DB.
type querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS Usuarios (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	tipo         TEXT NOT NULL CHECK(tipo IN ('Paciente', 'Administrador')),
	nombres      TEXT NOT NULL,
	apellidos    TEXT NOT NULL,
	email        TEXT NOT NULL UNIQUE COLLATE NOCASE,
	telefono     TEXT NOT NULL,
	cedula       TEXT NOT NULL UNIQUE,
	password     TEXT NOT NULL,
	especialidad TEXT,
	security_q1  TEXT NOT NULL,
	security_a1  TEXT NOT NULL,
	security_q2  TEXT NOT NULL,
	security_a2  TEXT NOT NULL,
	security_q3  TEXT NOT NULL,
	security_a3  TEXT NOT NULL,
	photo        TEXT,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS Citas (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	paciente_id  INTEGER NOT NULL REFERENCES Usuarios(id) ON DELETE CASCADE,
	medico_id    INTEGER NOT NULL REFERENCES Usuarios(id) ON DELETE CASCADE,
	especialidad TEXT NOT NULL,
	fecha        TEXT NOT NULL,
	hora         TEXT NOT NULL,
	estado       TEXT NOT NULL DEFAULT 'agendada' CHECK(estado IN ('agendada', 'cancelada')),
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_citas_paciente ON Citas(paciente_id, estado);
CREATE INDEX IF NOT EXISTS idx_citas_medico ON Citas(medico_id);

CREATE TABLE IF NOT EXISTS Notificaciones (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	usuario_id INTEGER NOT NULL,
	message    TEXT NOT NULL,
	read       INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notificaciones_usuario
	ON Notificaciones(usuario_id, created_at);
`,
	},
	{
		version: 2,
		apply:   addAppointmentColumn,
	},
	{
		version: 3,
		sql: `
DELETE FROM Notificaciones
WHERE appointment_id IS NOT NULL
  AND id NOT IN (
	SELECT MIN(id) FROM Notificaciones
	WHERE appointment_id IS NOT NULL
	GROUP BY usuario_id, appointment_id
  );

CREATE UNIQUE INDEX IF NOT EXISTS ux_notificaciones_usuario_cita
	ON Notificaciones(usuario_id, appointment_id)
	WHERE appointment_id IS NOT NULL;
`,
	},
}

// addAppointmentColumn adds Notificaciones.appointment_id when the table
// predates it. Databases created by an older build may already have been
// upgraded by hand, so the existing columns are inspected first.
func addAppointmentColumn(ctx context.Context, q querier) error {
	cols, err := tableColumns(ctx, q, "Notificaciones")
	if err != nil {
		return err
	}
	if cols["appointment_id"] {
		return nil
	}
	if _, err := q.ExecContext(ctx,
		"ALTER TABLE Notificaciones ADD COLUMN appointment_id INTEGER",
	); err != nil {
		return fmt.Errorf("adding appointment_id column: %w", err)
	}
	return nil
}

// tableColumns returns the set of column names of table.
func tableColumns(ctx context.Context, q querier, table string) (map[string]bool, error) {
	rows, err := q.QueryxContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("inspecting columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning column of %s: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
