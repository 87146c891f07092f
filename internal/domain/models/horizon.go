package models

// Horizon is a named future time span mapped to a fixed trading-day count.
type Horizon string

const (
	Horizon1Mo Horizon = "1mo"
	Horizon6Mo Horizon = "6mo"
	Horizon1Yr Horizon = "1yr"
	Horizon2Yr Horizon = "2yr"
	Horizon3Yr Horizon = "3yr"
	Horizon4Yr Horizon = "4yr"
	Horizon5Yr Horizon = "5yr"
)

// MonteCarloThresholdDays is the horizon length, in trading days, at and
// beyond which a Monte Carlo fan chart is attached to the result (3 years).
const MonteCarloThresholdDays = 756

// horizonDays maps each supported horizon to its trading-day count.
var horizonDays = map[Horizon]int{
	Horizon1Mo: 21,
	Horizon6Mo: 126,
	Horizon1Yr: 252,
	Horizon2Yr: 504,
	Horizon3Yr: 756,
	Horizon4Yr: 1008,
	Horizon5Yr: 1260,
}

// horizonWeights is the ensemble weight schedule. The learned residual
// correction is trusted near-term and fades toward the decomposition model at
// long horizons.
var horizonWeights = map[Horizon]float64{
	Horizon1Mo: 0.6,
	Horizon6Mo: 0.5,
	Horizon1Yr: 0.4,
	Horizon2Yr: 0.3,
	Horizon3Yr: 0.2,
	Horizon4Yr: 0.15,
	Horizon5Yr: 0.1,
}

// AllHorizons lists the supported horizons from shortest to longest.
var AllHorizons = []Horizon{
	Horizon1Mo, Horizon6Mo, Horizon1Yr, Horizon2Yr, Horizon3Yr, Horizon4Yr, Horizon5Yr,
}

// Days resolves a horizon to its trading-day count. Unknown labels default
// to one year (252 days).
func (h Horizon) Days() int {
	if d, ok := horizonDays[h]; ok {
		return d
	}
	return 252
}

// Weight resolves a horizon to its ensemble weight. Unknown labels default
// to 0.3.
func (h Horizon) Weight() float64 {
	if w, ok := horizonWeights[h]; ok {
		return w
	}
	return 0.3
}

// IsValidHorizon returns true if h is a supported horizon label.
func IsValidHorizon(h Horizon) bool {
	_, ok := horizonDays[h]
	return ok
}

// NormalizeHorizons converts raw labels to horizons, dropping duplicates but
// keeping order. Unknown labels are kept as-is since Days and Weight carry
// documented defaults for them.
func NormalizeHorizons(raw []string) []Horizon {
	seen := make(map[Horizon]bool, len(raw))
	out := make([]Horizon, 0, len(raw))
	for _, s := range raw {
		h := Horizon(s)
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}
