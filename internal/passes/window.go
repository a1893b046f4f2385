// Package passes models predicted visibility windows and decides when a
// window is close enough to alert on. The pass math itself lives upstream:
// a prediction provider computes windows per (satellite, observer) pair and
// this package only consumes, classifies, and represents them.
package passes

import "time"

// Window is one predicted visible pass of a satellite over a ground
// location, as supplied by the prediction provider. The core never mutates
// a Window.
type Window struct {
	NORADID      int
	SatName      string
	Start        time.Time
	End          time.Time
	Duration     time.Duration
	MaxElevation float64

	// Azimuths in degrees with the provider's compass labels.
	StartAzimuth float64
	StartCompass string
	MaxAzimuth   float64
	MaxCompass   string
	EndAzimuth   float64
	EndCompass   string
}

// Forecast is the provider's answer for one (satellite, observer) query.
type Forecast struct {
	NORADID int
	SatName string
	Windows []Window
}
