package backtest

import "math"

// Zone is a Basel-style traffic-light classification of exception counts.
type Zone string

const (
	ZoneGreen     Zone = "green"
	ZoneYellow    Zone = "yellow"
	ZoneRed       Zone = "red"
	ZoneUndefined Zone = "undefined"
)

// minClassifyObs is the smallest sample for which a zone is reported;
// below it the scaled thresholds are too coarse to mean anything.
const minClassifyObs = 80

// Thresholds99 returns the (greenMax, yellowMax) exception-count thresholds
// for 99% VaR over n observations. The official Basel counts (4 and 9) are
// defined for 250 days; for other n they are scaled linearly and rounded,
// which is a heuristic rather than a regulatory-exact mapping. ok is false
// when n is too small to classify.
func Thresholds99(n int) (greenMax, yellowMax int, ok bool) {
	if n < minClassifyObs {
		return 0, 0, false
	}
	greenMax = int(math.Round(4.0 * float64(n) / 250.0))
	yellowMax = int(math.Round(9.0 * float64(n) / 250.0))
	if greenMax < 0 {
		greenMax = 0
	}
	if yellowMax < greenMax {
		yellowMax = greenMax
	}
	return greenMax, yellowMax, true
}

// TrafficLight99 classifies an exception count for a 99% VaR backtest.
func TrafficLight99(n, exceptions int) Zone {
	greenMax, yellowMax, ok := Thresholds99(n)
	if !ok {
		return ZoneUndefined
	}
	switch {
	case exceptions <= greenMax:
		return ZoneGreen
	case exceptions <= yellowMax:
		return ZoneYellow
	default:
		return ZoneRed
	}
}
