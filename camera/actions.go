package camera

import (
	"math"

	"github.com/olablt/gio-geoview/geo"
	"github.com/olablt/gio-geoview/projection"
)

// Actions accumulates a target camera relative to an origin state.
// Every method returns a modified copy so calls chain:
//
//	camera.NewActions(m.Camera()).ScaleBy(2).MoveToGeo(pos)
type Actions struct {
	origin  State
	scale   float64
	azimuth float64
	center  projection.Point
}

// NewActions starts from origin with no change applied.
func NewActions(origin State) Actions {
	return Actions{}.ResetTo(origin)
}

func (a Actions) Origin() State { return a.origin }

// Rebase swaps the origin and keeps the accumulated target.
func (a Actions) Rebase(origin State) Actions {
	a.origin = origin
	return a
}

// Reset drops the accumulated target.
func (a Actions) Reset() Actions {
	return a.ResetTo(a.origin)
}

func (a Actions) ResetTo(origin State) Actions {
	a.origin = origin
	a.scale = origin.Scale()
	a.azimuth = origin.Azimuth()
	a.center = origin.ProjCenter()
	return a
}

// ScaleBy multiplies the origin scale.
func (a Actions) ScaleBy(factor float64) Actions {
	return a.ScaleTo(a.origin.Scale() * factor)
}

func (a Actions) ScaleTo(scale float64) Actions {
	a.scale = scale
	return a
}

// ScaleToRect fits r into the origin view and centers on it.
func (a Actions) ScaleToRect(r projection.Rect) Actions {
	old := a.origin.ProjRect()
	factor := math.Min(math.Abs(old.Width()/r.Width()), math.Abs(old.Height()/r.Height()))
	a.scale = a.origin.Scale() * factor
	a.center = r.Center()
	return a
}

func (a Actions) ScaleToGeoRect(r geo.Rect) Actions {
	return a.ScaleToRect(a.origin.Projection().GeoRectToProj(r))
}

// RotateBy adds angle degrees to the origin azimuth.
func (a Actions) RotateBy(angle float64) Actions {
	return a.RotateTo(a.origin.Azimuth() + angle)
}

func (a Actions) RotateTo(azimuth float64) Actions {
	a.azimuth = azimuth
	return a
}

func (a Actions) MoveTo(center projection.Point) Actions {
	a.center = center
	return a
}

func (a Actions) MoveToGeo(pos geo.Pos) Actions {
	return a.MoveTo(a.origin.Projection().GeoToProj(pos))
}

func (a Actions) Scale() float64               { return a.scale }
func (a Actions) Azimuth() float64             { return a.azimuth }
func (a Actions) ProjCenter() projection.Point { return a.center }
