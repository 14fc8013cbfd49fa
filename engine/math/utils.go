package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Percent returns floor(part / total * 100) clamped to [0, 100].
// An empty total counts as done.
func Percent[T constraints.Integer](part, total T) int {
	if total <= 0 {
		return 100
	}
	return Clamp(int(int64(part)*100/int64(total)), 0, 100)
}
