package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rejectly/rejectly/internal/domain"
)

// ─── Notifications ──────────────────────────────────────────────────────────

// InsertNotification records n. When n.DedupKey is already present the
// insert is skipped and inserted is false.
func (d *DB) InsertNotification(ctx context.Context, n domain.Notification) (inserted bool, err error) {
	data := []byte("{}")
	if len(n.Data) > 0 {
		if data, err = json.Marshal(n.Data); err != nil {
			return false, fmt.Errorf("encode notification data: %w", err)
		}
	}

	result, err := d.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, sender_id, type, title, message, data, dedup_key, read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(dedup_key) DO NOTHING`,
		n.ID, n.UserID, n.SenderID, string(n.Type), n.Title, n.Message, string(data),
		nullableString(n.DedupKey), n.Read, millis(n.CreatedAt),
	)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

// ListNotifications returns a user's notifications, newest first.
func (d *DB) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, sender_id, type, title, message, data, dedup_key, read, created_at
		 FROM notifications WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var typ, data string
		var dedup sql.NullString
		var created int64
		err := rows.Scan(&n.ID, &n.UserID, &n.SenderID, &typ, &n.Title, &n.Message,
			&data, &dedup, &n.Read, &created)
		if err != nil {
			return nil, err
		}
		n.Type = domain.NotificationType(typ)
		n.DedupKey = dedup.String
		n.CreatedAt = fromMillis(created)
		if data != "" && data != "{}" {
			if err := json.Unmarshal([]byte(data), &n.Data); err != nil {
				return nil, fmt.Errorf("decode notification %s data: %w", n.ID, err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountNotifications counts a user's notifications of one type.
func (d *DB) CountNotifications(ctx context.Context, userID string, typ domain.NotificationType) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND type = ?`, userID, string(typ),
	).Scan(&n)
	return n, err
}

// MarkNotificationRead flags a user's notification as read.
func (d *DB) MarkNotificationRead(ctx context.Context, userID, id string) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	return err
}

// ─── Preferences ────────────────────────────────────────────────────────────

// SetPreference enables or disables one notification type for a user.
func (d *DB) SetPreference(ctx context.Context, userID string, typ domain.NotificationType, enabled bool) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO notification_preferences (user_id, type, enabled) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, type) DO UPDATE SET enabled = excluded.enabled`,
		userID, string(typ), enabled,
	)
	return err
}

// Preferences returns the explicitly stored preferences of a user. Types
// without a row are enabled.
func (d *DB) Preferences(ctx context.Context, userID string) (map[domain.NotificationType]bool, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT type, enabled FROM notification_preferences WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prefs := make(map[domain.NotificationType]bool)
	for rows.Next() {
		var typ string
		var enabled bool
		if err := rows.Scan(&typ, &enabled); err != nil {
			return nil, err
		}
		prefs[domain.NotificationType(typ)] = enabled
	}
	return prefs, rows.Err()
}

// ─── Device Tokens ──────────────────────────────────────────────────────────

// RegisterDevice stores a push token. A token re-registered by another user
// moves to that user.
func (d *DB) RegisterDevice(ctx context.Context, dt domain.DeviceToken) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO device_tokens (token, user_id, platform, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(token) DO UPDATE SET user_id = excluded.user_id, platform = excluded.platform`,
		dt.Token, dt.UserID, dt.Platform, millis(dt.CreatedAt),
	)
	return err
}

// ListDevices returns a user's push tokens.
func (d *DB) ListDevices(ctx context.Context, userID string) ([]domain.DeviceToken, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT token, user_id, platform, created_at FROM device_tokens
		 WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DeviceToken
	for rows.Next() {
		var dt domain.DeviceToken
		var created int64
		if err := rows.Scan(&dt.Token, &dt.UserID, &dt.Platform, &created); err != nil {
			return nil, err
		}
		dt.CreatedAt = fromMillis(created)
		out = append(out, dt)
	}
	return out, rows.Err()
}

// RemoveDevice deletes a push token.
func (d *DB) RemoveDevice(ctx context.Context, token string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = ?`, token)
	return err
}
