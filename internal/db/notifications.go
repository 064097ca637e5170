package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Notification is one logged alert delivery attempt.
type Notification struct {
	ID         int64     `json:"id"`
	ObjectID   string    `json:"object_id"`
	NotifyType string    `json:"notify_type"`
	Message    string    `json:"message"`
	SentAt     time.Time `json:"sent_at"`
	Success    bool      `json:"success"`
}

// LastNotifiedAt returns when the object was last successfully notified,
// or nil if never.
func (db *DB) LastNotifiedAt(objectID string) (*time.Time, error) {
	var n sql.NullInt64
	err := db.QueryRow(`
		SELECT last_notified_unix_nanos FROM tracked_objects WHERE id = ?`,
		objectID).Scan(&n)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last notified for %s: %w", objectID, err)
	}
	if !n.Valid {
		return nil, nil
	}
	t := time.Unix(0, n.Int64)
	return &t, nil
}

// RecordNotification logs a delivery attempt; on success it also bumps the
// object's notify count and resend-window timestamp.
func (db *DB) RecordNotification(n Notification) error {
	success := 0
	if n.Success {
		success = 1
	}
	if _, err := db.Exec(`
		INSERT INTO notifications (object_id, notify_type, message, sent_unix_nanos, success)
		VALUES (?, ?, ?, ?, ?)`,
		n.ObjectID, n.NotifyType, n.Message, n.SentAt.UnixNano(), success,
	); err != nil {
		return fmt.Errorf("log notification for %s: %w", n.ObjectID, err)
	}
	if !n.Success {
		return nil
	}
	if _, err := db.Exec(`
		UPDATE tracked_objects
		SET notify_count = notify_count + 1,
		    last_notified_unix_nanos = ?
		WHERE id = ?`,
		n.SentAt.UnixNano(), n.ObjectID,
	); err != nil {
		return fmt.Errorf("bump notify count for %s: %w", n.ObjectID, err)
	}
	return nil
}

// NotificationsForObject lists the delivery log for one object, newest
// first.
func (db *DB) NotificationsForObject(objectID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, object_id, notify_type, message, sent_unix_nanos, success
		FROM notifications
		WHERE object_id = ?
		ORDER BY sent_unix_nanos DESC
		LIMIT ?`, objectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var sent int64
		var success int
		if err := rows.Scan(&n.ID, &n.ObjectID, &n.NotifyType, &n.Message, &sent, &success); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.SentAt = time.Unix(0, sent)
		n.Success = success != 0
		out = append(out, n)
	}
	return out, rows.Err()
}
