package research

// State tags the insight variant.
type State string

const (
	// StateAvailable means the research backend returned a narrative.
	StateAvailable State = "available"
	// StateUnavailable means the backend failed or timed out.
	StateUnavailable State = "unavailable"
)

// Trend is the optional direction tag extracted from the narrative.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
	TrendUnknown Trend = ""
)

// Insight is the free-text market signal for a vehicle.
type Insight struct {
	State     State  `json:"state"`
	Narrative string `json:"narrative,omitempty"`
	Trend     Trend  `json:"trend,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Unavailable builds the degraded-source sentinel.
func Unavailable(reason string) Insight {
	return Insight{State: StateUnavailable, Reason: reason}
}

// Usable reports whether the insight carries a real signal.
func (i Insight) Usable() bool {
	return i.State == StateAvailable && i.Narrative != ""
}
