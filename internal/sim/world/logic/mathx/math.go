package mathx

import "math"

func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Clamp100 bounds trust, connection and emotion values.
func Clamp100(x float64) float64 { return Clamp(x, 0, 100) }

func Clamp01(x float64) float64 { return Clamp(x, 0, 1) }

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// StepSeed derives a per-step RNG seed so replays of the same step draw the same numbers.
func StepSeed(seed int64, now int64) int64 {
	return int64(mix64(uint64(seed) ^ (uint64(now) * 0x9e3779b97f4a7c15)))
}

func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
