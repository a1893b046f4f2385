package propagation

import "time"

// Sample is one satellite's geodetic state at a single instant.
// Altitude is kilometers above the WGS-84 ellipsoid; Speed is the magnitude
// of the inertial velocity vector in km/s.
type Sample struct {
	NORADID   int       `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Altitude  float64   `json:"alt_km"`
	Speed     float64   `json:"speed_kms"`
	At        time.Time `json:"at"`
}

// Snapshot is the result of one complete propagation pass over a batch.
// Records that failed to propagate this pass are simply absent.
type Snapshot struct {
	At      time.Time `json:"at"`
	Samples []Sample  `json:"satellites"`
}
