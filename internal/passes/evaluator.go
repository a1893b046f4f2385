package passes

import "time"

// Default acceptance band: alert when a pass starts between 45 and 75
// minutes from now. Tight enough to be actionable, wide enough to tolerate
// the provider's polling cadence. The bounds are hand-picked policy values;
// they are configuration, not derived quantities.
const (
	DefaultMinLead = 45 * time.Minute
	DefaultMaxLead = 75 * time.Minute
)

// Evaluator classifies pass windows against a closed lead-time acceptance
// band. It is stateless and idempotent per call: a pass outside the band now
// may become eligible on a later evaluation as time advances.
type Evaluator struct {
	MinLead time.Duration
	MaxLead time.Duration
}

// NewEvaluator returns an Evaluator with the given band, falling back to the
// defaults for non-positive bounds.
func NewEvaluator(minLead, maxLead time.Duration) Evaluator {
	if minLead <= 0 {
		minLead = DefaultMinLead
	}
	if maxLead <= 0 {
		maxLead = DefaultMaxLead
	}
	return Evaluator{MinLead: minLead, MaxLead: maxLead}
}

// LeadTime returns how far in the future the window starts.
func (e Evaluator) LeadTime(w Window, now time.Time) time.Duration {
	return w.Start.Sub(now)
}

// Eligible reports whether the window's lead time falls inside the
// acceptance band. Both bounds are inclusive.
func (e Evaluator) Eligible(w Window, now time.Time) bool {
	lead := e.LeadTime(w, now)
	return lead >= e.MinLead && lead <= e.MaxLead
}
