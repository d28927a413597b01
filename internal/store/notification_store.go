package store

import (
	"context"
	"fmt"

	"github.com/nhle/citas/internal/model"
)

const notificationColumns = "id, usuario_id, appointment_id, message, read, created_at"

// CreateNotification inserts a new notification record and returns its id.
func (s *SQLiteStore) CreateNotification(
	ctx context.Context,
	n model.Notification,
) (int64, error) {
	return insertNotification(ctx, s.db, n)
}

// InsertFirstNotification inserts n only if the user owns no notification.
// The count and the insert share one write transaction.
func (s *SQLiteStore) InsertFirstNotification(
	ctx context.Context,
	n model.Notification,
) (bool, error) {
	inserted := false
	err := s.withImmediateTx(ctx, func(q querier) error {
		count, err := countNotifications(ctx, q, n.UserID)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		if _, err := insertNotification(ctx, q, n); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// InsertReminder inserts an appointment reminder. The partial unique index
// on (usuario_id, appointment_id) turns a duplicate into a no-op.
func (s *SQLiteStore) InsertReminder(
	ctx context.Context,
	n model.Notification,
) (*model.Notification, bool, error) {
	if n.AppointmentID == nil {
		return nil, false, fmt.Errorf("inserting reminder: %w: missing appointment id", model.ErrInvalidInput)
	}
	n.CreatedAt = dbTime(n.CreatedAt)

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO Notificaciones (usuario_id, appointment_id, message, read, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		n.UserID, *n.AppointmentID, n.Message, boolToInt(n.Read), n.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf(
			"inserting reminder for appointment %d: %w", *n.AppointmentID, err,
		)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("reading affected rows: %w", err)
	}
	if rows == 0 {
		return nil, false, nil
	}

	n.ID, err = result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("reading reminder id: %w", err)
	}
	return &n, true, nil
}

// ListNotifications returns every notification of the user, newest first.
func (s *SQLiteStore) ListNotifications(
	ctx context.Context,
	userID int64,
) ([]model.Notification, error) {
	var notifications []model.Notification
	err := s.db.SelectContext(ctx, &notifications,
		"SELECT "+notificationColumns+` FROM Notificaciones
		WHERE usuario_id = ?
		ORDER BY created_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notifications of user %d: %w", userID, err)
	}
	return notifications, nil
}

// CountNotifications returns how many notifications the user owns.
func (s *SQLiteStore) CountNotifications(ctx context.Context, userID int64) (int, error) {
	return countNotifications(ctx, s.db, userID)
}

// CountUnreadNotifications returns how many notifications of the user
// have not been read.
func (s *SQLiteStore) CountUnreadNotifications(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM Notificaciones WHERE usuario_id = ? AND read = 0", userID,
	)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications of user %d: %w", userID, err)
	}
	return count, nil
}

// MarkNotificationRead marks a single notification as read. An unknown id
// is not an error.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE Notificaciones SET read = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %d as read: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead marks every notification of the user as read.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE Notificaciones SET read = 1 WHERE usuario_id = ? AND read = 0", userID,
	)
	if err != nil {
		return fmt.Errorf("marking notifications of user %d as read: %w", userID, err)
	}
	return nil
}

// DeleteNotification removes a notification. An unknown id is not an error.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM Notificaciones WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting notification %d: %w", id, err)
	}
	return nil
}

func insertNotification(ctx context.Context, q querier, n model.Notification) (int64, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO Notificaciones (usuario_id, appointment_id, message, read, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.UserID, n.AppointmentID, n.Message, boolToInt(n.Read), dbTime(n.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("creating notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading notification id: %w", err)
	}
	return id, nil
}

func countNotifications(ctx context.Context, q querier, userID int64) (int, error) {
	var count int
	rows, err := q.QueryxContext(ctx,
		"SELECT COUNT(*) FROM Notificaciones WHERE usuario_id = ?", userID,
	)
	if err != nil {
		return 0, fmt.Errorf("counting notifications of user %d: %w", userID, err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("scanning notification count: %w", err)
		}
	}
	return count, rows.Err()
}
