package domain

// Risk tolerance is entered by users as a level on a 1–10 scale and used by
// the optimizer as level/10.
const (
	MinRiskLevel = 1
	MaxRiskLevel = 10
	// DefaultRiskLevel applies when a request leaves the level out.
	DefaultRiskLevel = 5
)

// RiskToleranceFromLevel converts a user risk level into the optimizer's
// (0, 1] risk tolerance.
func RiskToleranceFromLevel(level float64) (float64, error) {
	if level == 0 {
		level = DefaultRiskLevel
	}
	if !(level >= MinRiskLevel && level <= MaxRiskLevel) {
		return 0, InvalidInputf("risk level must be between %d and %d, got %v", MinRiskLevel, MaxRiskLevel, level)
	}
	return level / MaxRiskLevel, nil
}
