package tle

import "time"

// Satellite is a single object's validated two-line element set.
type Satellite struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// Dataset is a complete element-set snapshot from one feed refresh.
// Immutable after creation; a later refresh supersedes it wholesale.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	ExpiresAt  time.Time
	Satellites []Satellite
}

// Expired reports whether the dataset is past its expiry timestamp.
func (d *Dataset) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}
