package postgres

import (
	"context"
	"fmt"

	"github.com/orbital/passwatch/internal/alert"
)

// SubscriberStore implements alert.SubscriberSource using PostgreSQL.
// Subscriber rows are owned by the external subscription service; this
// store only reads them.
type SubscriberStore struct {
	pool *Pool
}

// NewSubscriberStore creates a new SubscriberStore.
func NewSubscriberStore(pool *Pool) *SubscriberStore {
	return &SubscriberStore{pool: pool}
}

// Compile-time interface check.
var _ alert.SubscriberSource = (*SubscriberStore)(nil)

// ListActive returns all active subscribers, oldest first. The result is
// the point-in-time snapshot one scheduling cycle works from.
func (s *SubscriberStore) ListActive(ctx context.Context) ([]alert.Subscriber, error) {
	query := `
		SELECT id, email, latitude, longitude, COALESCE(location_name, ''), unsubscribe_token
		FROM subscribers
		WHERE active = TRUE
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", err)
	}
	defer rows.Close()

	var subs []alert.Subscriber
	for rows.Next() {
		var sub alert.Subscriber
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.Latitude, &sub.Longitude, &sub.LocationName, &sub.UnsubscribeToken); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		sub.Active = true
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}

	return subs, nil
}
