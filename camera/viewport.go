package camera

import (
	"image"
	"math"

	"gioui.org/f32"
	"github.com/olablt/gio-geoview/projection"
)

// Viewport maps projected coordinates to screen pixels. The view is
// rotated clockwise by Azimuth degrees around its center.
type Viewport struct {
	Center  projection.Point
	Scale   float64
	Azimuth float64
	Size    image.Point
}

func (v Viewport) half() projection.Point {
	return projection.Pt(float64(v.Size.X)/2, float64(v.Size.Y)/2)
}

func (v Viewport) rad() float64 {
	return v.Azimuth * math.Pi / 180
}

// ProjToScreen returns the screen position of p.
func (v Viewport) ProjToScreen(p projection.Point) f32.Point {
	s := v.projToScreen(p)
	return f32.Pt(float32(s.X), float32(s.Y))
}

func (v Viewport) projToScreen(p projection.Point) projection.Point {
	sin, cos := math.Sincos(v.rad())
	d := p.Sub(v.Center).Mul(v.Scale)
	h := v.half()
	return projection.Pt(cos*d.X-sin*d.Y+h.X, sin*d.X+cos*d.Y+h.Y)
}

// ScreenToProj is the inverse of ProjToScreen.
func (v Viewport) ScreenToProj(pt f32.Point) projection.Point {
	return v.screenToProj(projection.Pt(float64(pt.X), float64(pt.Y)))
}

func (v Viewport) screenToProj(s projection.Point) projection.Point {
	if v.Scale == 0 {
		return v.Center
	}
	sin, cos := math.Sincos(v.rad())
	d := s.Sub(v.half())
	x := cos*d.X + sin*d.Y
	y := -sin*d.X + cos*d.Y
	return v.Center.Add(projection.Pt(x, y).Mul(1 / v.Scale))
}

// ProjRect returns the bounding box of the rotated view in projected units.
func (v Viewport) ProjRect() projection.Rect {
	w, h := float64(v.Size.X), float64(v.Size.Y)
	return v.ScreenRectToProj(projection.Rect{Max: projection.Pt(w, h)})
}

// ScreenRectToProj returns the projected bounding box of a screen rect.
func (v Viewport) ScreenRectToProj(r projection.Rect) projection.Rect {
	corners := [4]projection.Point{
		r.Min,
		projection.Pt(r.Max.X, r.Min.Y),
		r.Max,
		projection.Pt(r.Min.X, r.Max.Y),
	}
	out := projection.Rect{Min: v.screenToProj(corners[0]), Max: v.screenToProj(corners[0])}
	for _, c := range corners[1:] {
		p := v.screenToProj(c)
		out.Min.X = math.Min(out.Min.X, p.X)
		out.Min.Y = math.Min(out.Min.Y, p.Y)
		out.Max.X = math.Max(out.Max.X, p.X)
		out.Max.Y = math.Max(out.Max.Y, p.Y)
	}
	return out
}

// Transform returns the affine transform drawing local coordinates anchored
// at origin. One local unit covers unit projected units. The arithmetic is
// done in float64 relative to origin so large projected values do not lose
// precision in the float32 matrix.
func (v Viewport) Transform(origin projection.Point, unit float64) f32.Affine2D {
	k := float32(v.Scale * unit)
	return f32.Affine2D{}.
		Scale(f32.Point{}, f32.Pt(k, k)).
		Rotate(f32.Point{}, float32(v.rad())).
		Offset(v.ProjToScreen(origin))
}

// State builds a camera snapshot of the viewport.
func (v Viewport) State(proj projection.Projection, animation bool) State {
	return NewState(proj, v.Azimuth, v.Scale, v.ProjRect(), animation)
}
