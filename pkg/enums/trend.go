package enums

// Trend describes how a risk score moved between two weekly snapshots.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// IsValid reports whether the value matches the canonical trend enum.
func (t Trend) IsValid() bool {
	switch t {
	case TrendRising, TrendFalling, TrendStable:
		return true
	}
	return false
}
