package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Rect is a geographical bounding box. The longitude interval is
// [LonLeft, LonRight); boxes crossing the dateline are not supported.
type Rect struct {
	topLeft     Pos
	bottomRight Pos
}

// NewRect builds a rect from two arbitrary corners.
func NewRect(p1, p2 Pos) Rect {
	return Rect{
		topLeft:     NewPos(math.Max(p1.Lat(), p2.Lat()), math.Min(p1.Lon(), p2.Lon())),
		bottomRight: NewPos(math.Min(p1.Lat(), p2.Lat()), math.Max(p1.Lon(), p2.Lon())),
	}
}

// RectFromLatLon builds a rect from two corners given as raw degrees.
func RectFromLatLon(lat1, lon1, lat2, lon2 float64) Rect {
	return NewRect(NewPos(lat1, lon1), NewPos(lat2, lon2))
}

// RectFromBound converts an orb bound to a rect.
func RectFromBound(b orb.Bound) Rect {
	return RectFromLatLon(b.Top(), b.Left(), b.Bottom(), b.Right())
}

func (r Rect) IsEmpty() bool {
	return r.topLeft.IsEmpty() || r.bottomRight.IsEmpty()
}

func (r Rect) TopLeft() Pos     { return r.topLeft }
func (r Rect) BottomRight() Pos { return r.bottomRight }

func (r Rect) TopRight() Pos {
	return NewPos(r.topLeft.Lat(), r.bottomRight.Lon())
}

func (r Rect) BottomLeft() Pos {
	return NewPos(r.bottomRight.Lat(), r.topLeft.Lon())
}

func (r Rect) LonLeft() float64   { return r.topLeft.Lon() }
func (r Rect) LonRight() float64  { return r.bottomRight.Lon() }
func (r Rect) LatTop() float64    { return r.topLeft.Lat() }
func (r Rect) LatBottom() float64 { return r.bottomRight.Lat() }

// Center returns the arithmetic center of the box.
func (r Rect) Center() Pos {
	return NewPos((r.LatTop()+r.LatBottom())/2, (r.LonLeft()+r.LonRight())/2)
}

// Contains reports whether pos lies in [LonLeft, LonRight) x (LatBottom, LatTop].
func (r Rect) Contains(pos Pos) bool {
	return r.LonLeft() <= pos.Lon() && pos.Lon() < r.LonRight() &&
		r.LatBottom() < pos.Lat() && pos.Lat() <= r.LatTop()
}

// ContainsRect reports whether o lies completely inside r.
func (r Rect) ContainsRect(o Rect) bool {
	return r.LonLeft() <= o.LonLeft() && o.LonRight() <= r.LonRight() &&
		r.LatBottom() <= o.LatBottom() && o.LatTop() <= r.LatTop()
}

// Intersects reports whether the two boxes overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.LonLeft() < o.LonRight() && o.LonLeft() < r.LonRight() &&
		r.LatBottom() < o.LatTop() && o.LatBottom() < r.LatTop()
}

// Bound returns the rect as an orb bound.
func (r Rect) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.LonLeft(), r.LatBottom()},
		Max: orb.Point{r.LonRight(), r.LatTop()},
	}
}

func (r Rect) Equal(o Rect) bool {
	return r.topLeft.Equal(o.topLeft) && r.bottomRight.Equal(o.bottomRight)
}

func (r Rect) String() string {
	return fmt.Sprintf("rect(%v,%v)", r.topLeft, r.bottomRight)
}
