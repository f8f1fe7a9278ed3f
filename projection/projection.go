// Package projection maps geographical positions onto a planar coordinate
// system. Projected y grows to the south so it lines up with screen space.
package projection

import (
	"math"

	"github.com/olablt/gio-geoview/geo"
)

// Point is a projected coordinate in meters.
type Point struct {
	X, Y float64
}

func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Add(o Point) Point   { return Point{p.X + o.X, p.Y + o.Y} }
func (p Point) Sub(o Point) Point   { return Point{p.X - o.X, p.Y - o.Y} }
func (p Point) Mul(k float64) Point { return Point{p.X * k, p.Y * k} }
func (p Point) Len() float64        { return math.Hypot(p.X, p.Y) }

func (p Point) Near(o Point, eps float64) bool {
	return math.Abs(p.X-o.X) <= eps && math.Abs(p.Y-o.Y) <= eps
}

// Rect is an axis aligned projected rectangle. Min is the top-left corner.
type Rect struct {
	Min, Max Point
}

// RectFromPoints normalizes two arbitrary corners.
func RectFromPoints(a, b Point) Rect {
	return Rect{
		Min: Point{math.Min(a.X, b.X), math.Min(a.Y, b.Y)},
		Max: Point{math.Max(a.X, b.X), math.Max(a.Y, b.Y)},
	}
}

// RectAround returns a rect of the given size centered on c.
func RectAround(c Point, w, h float64) Rect {
	return Rect{
		Min: Point{c.X - w/2, c.Y - h/2},
		Max: Point{c.X + w/2, c.Y + h/2},
	}
}

func (r Rect) Width() float64  { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

func (r Rect) Center() Point {
	return Point{(r.Min.X + r.Max.X) / 2, (r.Min.Y + r.Max.Y) / 2}
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return !(r.Min.X < r.Max.X && r.Min.Y < r.Max.Y)
}

func (r Rect) Contains(p Point) bool {
	return r.Min.X <= p.X && p.X <= r.Max.X && r.Min.Y <= p.Y && p.Y <= r.Max.Y
}

func (r Rect) ContainsRect(o Rect) bool {
	return r.Contains(o.Min) && r.Contains(o.Max)
}

// Intersect returns the overlap of two rects. The result may be empty.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		Min: Point{math.Max(r.Min.X, o.Min.X), math.Max(r.Min.Y, o.Min.Y)},
		Max: Point{math.Min(r.Max.X, o.Max.X), math.Min(r.Max.Y, o.Max.Y)},
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

func (r Rect) Intersects(o Rect) bool {
	return !r.Intersect(o).Empty()
}

// Union returns the smallest rect containing both.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Rect{
		Min: Point{math.Min(r.Min.X, o.Min.X), math.Min(r.Min.Y, o.Min.Y)},
		Max: Point{math.Max(r.Max.X, o.Max.X), math.Max(r.Max.Y, o.Max.Y)},
	}
}

// Projection converts between geographical and projected coordinates.
type Projection interface {
	ID() string
	Name() string
	Description() string

	GeoToProj(pos geo.Pos) Point
	ProjToGeo(p Point) geo.Pos
	GeoRectToProj(r geo.Rect) Rect
	ProjRectToGeo(r Rect) geo.Rect

	BoundaryGeoRect() geo.Rect
	BoundaryProjRect() Rect

	// GeodesicMeters is the great circle distance between two projected
	// points.
	GeodesicMeters(a, b Point) float64
}
