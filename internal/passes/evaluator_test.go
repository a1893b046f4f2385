package passes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func windowStartingIn(now time.Time, lead time.Duration) Window {
	return Window{
		NORADID: 44235,
		SatName: "STARLINK-24",
		Start:   now.Add(lead),
		End:     now.Add(lead + 6*time.Minute),
	}
}

// TestEligibleBand exercises the closed 45-75 minute acceptance band,
// including both boundaries.
func TestEligibleBand(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	eval := NewEvaluator(0, 0)

	tests := []struct {
		name string
		lead time.Duration
		want bool
	}{
		{"well before band", 10 * time.Minute, false},
		{"just below lower bound", 45*time.Minute - time.Second, false},
		{"lower bound inclusive", 45 * time.Minute, true},
		{"inside band", 60 * time.Minute, true},
		{"upper bound inclusive", 75 * time.Minute, true},
		{"just above upper bound", 75*time.Minute + time.Second, false},
		{"far future", 3 * time.Hour, false},
		{"already started", -5 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := windowStartingIn(now, tt.lead)
			assert.Equal(t, tt.want, eval.Eligible(w, now))
		})
	}
}

// TestLeadTime verifies the lead-time computation is a plain difference.
func TestLeadTime(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	eval := NewEvaluator(0, 0)

	w := windowStartingIn(now, 50*time.Minute)
	assert.Equal(t, 50*time.Minute, eval.LeadTime(w, now))
}

// TestEligibilityAdvancesWithTime verifies a window outside the band becomes
// eligible as the clock moves forward; evaluation is stateless.
func TestEligibilityAdvancesWithTime(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	eval := NewEvaluator(0, 0)
	w := windowStartingIn(now, 2*time.Hour)

	assert.False(t, eval.Eligible(w, now))
	assert.True(t, eval.Eligible(w, now.Add(time.Hour)))
	assert.False(t, eval.Eligible(w, now.Add(115*time.Minute)))
}

// TestCustomBand verifies configured bounds replace the defaults.
func TestCustomBand(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	eval := NewEvaluator(10*time.Minute, 20*time.Minute)

	assert.True(t, eval.Eligible(windowStartingIn(now, 15*time.Minute), now))
	assert.False(t, eval.Eligible(windowStartingIn(now, 60*time.Minute), now))
}

// TestDefaultsApplied verifies non-positive bounds fall back to 45/75.
func TestDefaultsApplied(t *testing.T) {
	eval := NewEvaluator(0, -time.Minute)
	assert.Equal(t, DefaultMinLead, eval.MinLead)
	assert.Equal(t, DefaultMaxLead, eval.MaxLead)
}
