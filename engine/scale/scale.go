package scale

import "math"

func clamp(t, min, max float64) float64 {
	min, max = math.Min(min, max), math.Max(min, max)
	return math.Max(math.Min(t, max), min)
}

// Linear returns a function that maps a number from the interval [rMin,rMax] onto [tMin,tMax]. Values
// outside the source interval are extrapolated.
func Linear(rMin, rMax, tMin, tMax float64) func(m float64) float64 {
	return func(m float64) float64 {
		if rMax == rMin {
			return tMin
		}
		return (m-rMin)/(rMax-rMin)*(tMax-tMin) + tMin
	}
}

// Clamp is Linear with the result clamped to [tMin,tMax].
func Clamp(rMin, rMax, tMin, tMax float64) func(m float64) float64 {
	linear := Linear(rMin, rMax, tMin, tMax)
	return func(m float64) float64 {
		return clamp(linear(m), tMin, tMax)
	}
}

// ToUnitClamp returns a function that scales a number from the interval [rMin,rMax]
// to the unit interval ([0,1]), if the result falls outside [0,1], it is clamped
// to 0 or 1.
func ToUnitClamp(rMin, rMax float64) func(m float64) float64 {
	return Clamp(rMin, rMax, 0, 1)
}
