package propagation

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/orbital/passwatch/internal/tle"
	"github.com/orbital/passwatch/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite.
// Pure Go, battle-tested, explicit TEME output. Propagate() takes Satellite
// by value so SGP4 error codes are not visible to the caller; failures are
// detected by checking output for NaN/Inf and implausible magnitudes.

// Record is a propagatable satellite: its identity, raw element lines, and
// the initialized SGP4 state. Records are immutable; a new element-set
// refresh builds new records rather than mutating existing ones.
type Record struct {
	NORADID int
	Name    string
	Line1   string
	Line2   string

	sat satellite.Satellite
}

// NewRecord initializes SGP4 state for one validated element set.
// Returns an error if the model fails to initialize; such inputs are
// dropped, never kept as partially-valid records.
func NewRecord(s tle.Satellite) (*Record, error) {
	sat := satellite.TLEToSat(s.Line1, s.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for catalog %d: code=%d %s", s.NORADID, sat.Error, sat.ErrorStr)
	}
	return &Record{
		NORADID: s.NORADID,
		Name:    s.Name,
		Line1:   s.Line1,
		Line2:   s.Line2,
		sat:     sat,
	}, nil
}

// BuildRecords bulk-constructs records from a dataset snapshot, dropping
// entries whose SGP4 state cannot be initialized.
func BuildRecords(sats []tle.Satellite, logger *slog.Logger) []*Record {
	records := make([]*Record, 0, len(sats))
	var skipped int
	for _, s := range sats {
		rec, err := NewRecord(s)
		if err != nil {
			logger.Warn("dropping unpropagatable element set", "catalog", s.NORADID, "error", err)
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		logger.Info("record build complete", "built", len(records), "dropped", skipped)
	}
	return records
}

// Sample propagates the record to the given instant and projects the result
// to geodetic coordinates. A model failure (decayed orbit, divergence)
// returns an error meaning "no position right now"; callers treat it as
// temporarily unavailable, not as removal of the object.
func (r *Record) Sample(at time.Time) (Sample, error) {
	return r.sampleAt(at, transform.GMST(at))
}

// sampleAt is Sample with a precomputed GMST angle, so batch passes compute
// sidereal time once per instant.
func (r *Record) sampleAt(at time.Time, gmst float64) (Sample, error) {
	t := at.UTC()
	pos, vel := satellite.Propagate(r.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if hasNaNOrInf(pos.X, pos.Y, pos.Z, vel.X, vel.Y, vel.Z) {
		return Sample{}, fmt.Errorf("propagation failed for catalog %d: output is NaN/Inf", r.NORADID)
	}

	// Plausibility band for Earth orbits: ~6200 km (decaying LEO) to
	// ~50000 km (beyond GEO).
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return Sample{}, fmt.Errorf("propagation failed for catalog %d: position magnitude %.1f km", r.NORADID, mag)
	}

	geo := transform.TEMEToGeodetic(pos.X, pos.Y, pos.Z, gmst)
	speed := math.Sqrt(vel.X*vel.X + vel.Y*vel.Y + vel.Z*vel.Z)

	return Sample{
		NORADID:   r.NORADID,
		Name:      r.Name,
		Latitude:  geo.LatDeg,
		Longitude: geo.LonDeg,
		Altitude:  geo.AltKm,
		Speed:     speed,
		At:        at,
	}, nil
}

func hasNaNOrInf(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
