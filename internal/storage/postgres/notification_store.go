package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/orbital/passwatch/internal/alert"
)

// NotificationStore implements alert.NotificationLog using PostgreSQL.
type NotificationStore struct {
	pool *Pool
}

// NewNotificationStore creates a new NotificationStore.
func NewNotificationStore(pool *Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// Compile-time interface check.
var _ alert.NotificationLog = (*NotificationStore)(nil)

// RecentExists reports whether a record exists for the subscriber and
// satellite with a pass time within ±window of passTime.
func (s *NotificationStore) RecentExists(ctx context.Context, subscriberID, satelliteName string, passTime time.Time, window time.Duration) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notification_log
			WHERE subscriber_id = $1
			  AND satellite_name = $2
			  AND pass_time BETWEEN $3 AND $4
		)
	`

	var exists bool
	err := s.pool.QueryRow(ctx, query,
		subscriberID,
		satelliteName,
		passTime.Add(-window),
		passTime.Add(window),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check recent notification: %w", err)
	}
	return exists, nil
}

// Insert appends a notification record. The unique index on
// (subscriber_id, satellite_name, hour bucket of pass_time) makes this a
// conditional insert: a losing concurrent writer gets ErrDuplicateRecord.
func (s *NotificationStore) Insert(ctx context.Context, rec alert.NotificationRecord) error {
	query := `
		INSERT INTO notification_log (subscriber_id, satellite_name, pass_time, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		rec.SubscriberID,
		rec.SatelliteName,
		rec.PassTime,
		rec.Status,
		rec.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return alert.ErrDuplicateRecord
		}
		return fmt.Errorf("insert notification record: %w", err)
	}
	return nil
}
