package database

import (
	"context"
	"database/sql"
	"fmt"

	"ghouse/pkg/types"
)

// CreateNotification persists one user-directed message and returns it with
// its assigned id.
func (m *Manager) CreateNotification(ctx context.Context, n *types.Notification) (*types.Notification, error) {
	if !types.IsValidNotificationType(n.Type) {
		return nil, types.ErrInvalidNotification
	}
	var id int64
	err := m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			INSERT INTO notifications (user_id, type, title, message, source)
			VALUES (?, ?, ?, ?, ?)
		`, n.UserID, n.Type, n.Title, n.Message, n.Source)
		if err != nil {
			return fmt.Errorf("failed to insert notification: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return m.getNotification(ctx, id)
}

// ListNotifications returns a user's notifications, newest first.
func (m *Manager) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*types.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, is_read, COALESCE(source, ''), created_at
		FROM notifications WHERE user_id = ?
	`
	if unreadOnly {
		query += " AND is_read = 0"
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"

	rows, err := m.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notifications []*types.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// CountUnreadNotifications returns how many unread messages a user has.
func (m *Manager) CountUnreadNotifications(ctx context.Context, userID int64) (int, error) {
	var count int
	err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0", userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead marks one of the user's notifications as read.
func (m *Manager) MarkNotificationRead(ctx context.Context, userID, notificationID int64) error {
	return m.executeWrite(func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?
		`, notificationID, userID)
		if err != nil {
			return fmt.Errorf("failed to mark notification read: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// MarkAllNotificationsRead marks every unread notification of a user as read.
func (m *Manager) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0
		`, userID)
		if err != nil {
			return fmt.Errorf("failed to mark notifications read: %w", err)
		}
		return nil
	})
}

// GetNotificationSettings returns a user's delivery preferences, falling back
// to defaults when none were saved yet.
func (m *Manager) GetNotificationSettings(ctx context.Context, userID int64) (*types.NotificationSettings, error) {
	var s types.NotificationSettings
	var chatID sql.NullString
	err := m.db.QueryRowContext(ctx, `
		SELECT user_id, telegram_enabled, telegram_chat_id, notify_critical, notify_warning, notify_info
		FROM notification_settings WHERE user_id = ?
	`, userID).Scan(&s.UserID, &s.TelegramEnabled, &chatID, &s.NotifyCritical, &s.NotifyWarning, &s.NotifyInfo)
	if err != nil {
		if err == sql.ErrNoRows {
			return &types.NotificationSettings{
				UserID:         userID,
				NotifyCritical: true,
				NotifyWarning:  true,
			}, nil
		}
		return nil, fmt.Errorf("failed to scan notification settings: %w", err)
	}
	if chatID.Valid {
		s.TelegramChatID = chatID.String
	}
	return &s, nil
}

// UpdateNotificationSettings upserts a user's delivery preferences.
func (m *Manager) UpdateNotificationSettings(ctx context.Context, s *types.NotificationSettings) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO notification_settings (user_id, telegram_enabled, telegram_chat_id, notify_critical, notify_warning, notify_info)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				telegram_enabled = excluded.telegram_enabled,
				telegram_chat_id = excluded.telegram_chat_id,
				notify_critical  = excluded.notify_critical,
				notify_warning   = excluded.notify_warning,
				notify_info      = excluded.notify_info
		`, s.UserID, s.TelegramEnabled, s.TelegramChatID, s.NotifyCritical, s.NotifyWarning, s.NotifyInfo)
		if err != nil {
			return fmt.Errorf("failed to update notification settings: %w", err)
		}
		return nil
	})
}

// LogTelegramMessage records one outbound Telegram delivery attempt.
func (m *Manager) LogTelegramMessage(ctx context.Context, chatID, message, status, sendError string) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO telegram_logs (chat_id, message, status, error)
			VALUES (?, ?, ?, NULLIF(?, ''))
		`, chatID, message, status, sendError)
		if err != nil {
			return fmt.Errorf("failed to log telegram message: %w", err)
		}
		return nil
	})
}

// ListTelegramLogs returns the most recent delivery attempts, newest first.
func (m *Manager) ListTelegramLogs(ctx context.Context, limit int) ([]*types.TelegramLog, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, chat_id, message, status, COALESCE(error, ''), sent_at
		FROM telegram_logs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query telegram logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []*types.TelegramLog
	for rows.Next() {
		var l types.TelegramLog
		if err := rows.Scan(&l.ID, &l.ChatID, &l.Message, &l.Status, &l.Error, &l.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan telegram log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func (m *Manager) getNotification(ctx context.Context, id int64) (*types.Notification, error) {
	return scanNotification(m.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, title, message, is_read, COALESCE(source, ''), created_at
		FROM notifications WHERE id = ?
	`, id))
}

func scanNotification(row rowScanner) (*types.Notification, error) {
	var n types.Notification
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Type,
		&n.Title,
		&n.Message,
		&n.IsRead,
		&n.Source,
		&n.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}
	return &n, nil
}
