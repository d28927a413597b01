package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode and foreign keys, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	inMemory := strings.HasPrefix(dbPath, ":memory:") || strings.Contains(dbPath, "mode=memory")

	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Pragmas go in the DSN so that every pooled connection gets them.
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	dsn := dbPath + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !inMemory {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Each connection to :memory: is a separate database.
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order. The whole run holds the database write
// lock, so processes starting at the same time apply each migration once.
func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	return s.withImmediateTx(ctx, func(q querier) error {
		currentVersion := 0

		var tableCount int
		err := sqlx.GetContext(ctx, q, &tableCount,
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
		)
		if err != nil {
			return fmt.Errorf("checking schema_version table: %w", err)
		}

		if tableCount > 0 {
			err = sqlx.GetContext(ctx, q, &currentVersion,
				"SELECT COALESCE(MAX(version), 0) FROM schema_version")
			if err != nil {
				return fmt.Errorf("reading schema version: %w", err)
			}
		}

		for _, m := range migrations {
			if m.version <= currentVersion {
				continue
			}
			if m.sql != "" {
				if _, err := q.ExecContext(ctx, m.sql); err != nil {
					return fmt.Errorf("applying migration v%d: %w", m.version, err)
				}
			}
			if m.apply != nil {
				if err := m.apply(ctx, q); err != nil {
					return fmt.Errorf("applying migration v%d: %w", m.version, err)
				}
			}
			if _, err := q.ExecContext(ctx,
				"INSERT INTO schema_version (version) VALUES (?)", m.version,
			); err != nil {
				return fmt.Errorf("recording migration v%d: %w", m.version, err)
			}
			log.Debug().Int("version", m.version).Msg("applied schema migration")
		}

		return nil
	})
}

// withImmediateTx runs fn inside a BEGIN IMMEDIATE transaction on a
// dedicated connection. IMMEDIATE takes the write lock up front, so a
// read-then-write sequence in fn cannot interleave with another writer.
func (s *SQLiteStore) withImmediateTx(
	ctx context.Context,
	fn func(q querier) error,
) (err error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if _, rbErr := conn.ExecContext(context.Background(), "ROLLBACK"); rbErr != nil {
				log.Error().Err(rbErr).Msg("rolling back transaction")
			}
		}
	}()

	if err = fn(conn); err != nil {
		return err
	}

	if _, err = conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err comes from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
