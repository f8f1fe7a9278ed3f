// Package camera describes what part of the projected plane is shown and
// how the view moves between two such descriptions.
package camera

import (
	"fmt"
	"math"

	"github.com/olablt/gio-geoview/projection"
)

// State is a snapshot of the camera. It is a value: a controller builds a
// fresh one on every request.
type State struct {
	proj      projection.Projection
	azimuth   float64
	scale     float64
	projRect  projection.Rect
	animation bool
}

func NewState(proj projection.Projection, azimuth, scale float64, projRect projection.Rect, animation bool) State {
	return State{
		proj:      proj,
		azimuth:   azimuth,
		scale:     scale,
		projRect:  projRect,
		animation: animation,
	}
}

// Projection panics when the state was built without one.
func (s State) Projection() projection.Projection {
	if s.proj == nil {
		panic("camera: state has no projection")
	}
	return s.proj
}

func (s State) Azimuth() float64 { return s.azimuth }
func (s State) Scale() float64   { return s.scale }
func (s State) Animation() bool  { return s.animation }

// ProjRect is the bounding box of the visible area in projected units.
func (s State) ProjRect() projection.Rect { return s.projRect }

func (s State) ProjCenter() projection.Point { return s.projRect.Center() }

// Equal compares scale and azimuth fuzzily and the rest exactly.
func (s State) Equal(o State) bool {
	return s.proj == o.proj &&
		FuzzyEqual(s.scale, o.scale) &&
		FuzzyEqual(s.azimuth, o.azimuth) &&
		s.projRect == o.projRect &&
		s.animation == o.animation
}

func (s State) String() string {
	return fmt.Sprintf("camera(scale=%g azimuth=%g center=%v animation=%v)",
		s.scale, s.azimuth, s.ProjCenter(), s.animation)
}

// FuzzyEqual reports whether a and b are equal to about 12 significant
// digits. Zero only equals zero.
func FuzzyEqual(a, b float64) bool {
	return math.Abs(a-b)*1e12 <= math.Min(math.Abs(a), math.Abs(b))
}
