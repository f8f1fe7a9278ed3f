package camera

import (
	"math"

	"github.com/olablt/gio-geoview/projection"
)

// Easing maps linear progress in [0,1] to eased progress.
type Easing func(t float64) float64

func Linear(t float64) float64 { return t }

func InQuad(t float64) float64  { return t * t }
func OutQuad(t float64) float64 { return 1 - InQuad(1-t) }

func InOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

func InCubic(t float64) float64  { return t * t * t }
func OutCubic(t float64) float64 { return 1 - InCubic(1-t) }

func InOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func InQuint(t float64) float64  { return t * t * t * t * t }
func OutQuint(t float64) float64 { return 1 - InQuint(1-t) }

func InOutQuint(t float64) float64 {
	if t < 0.5 {
		return 16 * t * t * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 5)/2
}

// InterpolateScale interpolates in log2 space so the visual zoom speed is
// constant.
func InterpolateScale(from, to, t float64) float64 {
	if FuzzyEqual(from, to) {
		return from
	}
	a, b := math.Log2(from), math.Log2(to)
	return math.Exp2(a + (b-a)*t)
}

// InterpolateAzimuth turns along the shorter arc.
func InterpolateAzimuth(from, to, t float64) float64 {
	if FuzzyEqual(from, to) {
		return from
	}
	delta := math.Mod(to-from, 360)
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	return from + delta*t
}

func InterpolatePos(from, to projection.Point, t float64) projection.Point {
	if from == to {
		return from
	}
	return from.Add(to.Sub(from).Mul(t))
}
