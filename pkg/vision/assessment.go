package vision

// State tags the assessment variant so consumers can switch exhaustively
// instead of null-checking individual fields.
type State string

const (
	// StateAvailable means the provider returned a structured assessment.
	StateAvailable State = "available"
	// StateUnavailable means the provider failed or timed out.
	StateUnavailable State = "unavailable"
	// StateNoImages means the lot had no images, so no call was made.
	StateNoImages State = "no_images"
)

// Assessment is the condition/value signal derived from lot images.
type Assessment struct {
	State          State    `json:"state"`
	HasImages      bool     `json:"has_images"`
	ImageCount     int      `json:"image_count,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	DamageAreas    []string `json:"damage_areas,omitempty"`
	RepairCostLow  float64  `json:"repair_cost_low,omitempty"`
	RepairCostHigh float64  `json:"repair_cost_high,omitempty"`
	Confidence     float64  `json:"confidence,omitempty"`
	Reason         string   `json:"reason,omitempty"`
}

// Unavailable builds the degraded-source sentinel.
func Unavailable(reason string) Assessment {
	return Assessment{State: StateUnavailable, HasImages: true, Reason: reason}
}

// NoImages builds the sentinel for lots with an empty image list.
func NoImages() Assessment {
	return Assessment{State: StateNoImages, HasImages: false}
}

// Usable reports whether the assessment carries a real signal.
func (a Assessment) Usable() bool {
	return a.State == StateAvailable
}
