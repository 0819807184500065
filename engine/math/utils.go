package math

import "golang.org/x/exp/constraints"

// Clamp bounds f to [low, high]. Extent selection uses it to fit a requested
// window size into what the surface allows.
func Clamp[T constraints.Ordered](f, low, high T) T {
	switch {
	case f < low:
		return low
	case f > high:
		return high
	}
	return f
}
