// Package alert orchestrates the notification pipeline: for each active
// subscriber and each satellite of interest it fetches predicted passes,
// classifies them against the lead-time band, consults the notification
// history, and requests delivery at most once per qualifying pass.
package alert

import (
	"context"
	"errors"
	"time"

	"github.com/orbital/passwatch/internal/passes"
)

// ErrDuplicateRecord is returned by NotificationLog.Insert when the store's
// uniqueness guard already holds a record for the same subscriber, satellite,
// and pass-time bucket. The scheduler treats it as a dedup, not a failure.
var ErrDuplicateRecord = errors.New("notification record already exists")

// Subscriber is a ground observer read from the external subscriber store.
// The core treats it as read-only input; the unsubscribe token is opaque.
type Subscriber struct {
	ID               string
	Email            string
	Latitude         float64
	Longitude        float64
	LocationName     string
	Active           bool
	UnsubscribeToken string
}

// NotificationRecord is the history entry written for every delivery
// attempt. Records are append-only: the core never updates or deletes them.
type NotificationRecord struct {
	SubscriberID  string
	SatelliteName string
	PassTime      time.Time
	Status        string // "sent" or "failed"
	CreatedAt     time.Time
}

// Notification is the delivery request handed to the transport.
type Notification struct {
	Subscriber Subscriber
	Window     passes.Window
}

// SubscriberSource provides a point-in-time snapshot of active subscribers
// for one scheduling cycle.
type SubscriberSource interface {
	ListActive(ctx context.Context) ([]Subscriber, error)
}

// NotificationLog is the notification history store. Insert must be a
// conditional insert: two concurrent cycles may both pass RecentExists, and
// only one may win the write.
type NotificationLog interface {
	// RecentExists reports whether a record exists for the subscriber and
	// satellite whose pass time lies within ±window of passTime.
	RecentExists(ctx context.Context, subscriberID, satelliteName string, passTime time.Time, window time.Duration) (bool, error)
	Insert(ctx context.Context, rec NotificationRecord) error
}

// Transport delivers one notification. The scheduler only interprets the
// result as success or failure for status recording.
type Transport interface {
	Send(ctx context.Context, n Notification) error
}

// PassProvider is the external pass-prediction service.
type PassProvider interface {
	VisualPasses(ctx context.Context, noradID int, lat, lon, altKm float64, days, minVisibility int) (*passes.Forecast, error)
}
