package enums

// RiskLevel buckets a default probability for display and alerting.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelModerate RiskLevel = "moderate"
	RiskLevelHigh     RiskLevel = "high"
)

// Probability cutoffs for classification. Scores are stored in [0, 1].
const (
	RiskThresholdLow  = 0.10
	RiskThresholdHigh = 0.20
)

// RiskLevelForScore classifies a default probability.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score < RiskThresholdLow:
		return RiskLevelLow
	case score < RiskThresholdHigh:
		return RiskLevelModerate
	default:
		return RiskLevelHigh
	}
}
