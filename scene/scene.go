// Package scene holds the contracts between the map and what it draws:
// layers attached to a host, and drawable items kept in an arena.
package scene

import (
	"math"

	"gioui.org/f32"
	"gioui.org/op"
	"github.com/olablt/gio-geoview/camera"
	"github.com/olablt/gio-geoview/projection"
)

// Host is the map a layer is attached to. All methods must be called from
// the owner loop except Post and Invalidate.
type Host interface {
	Projection() projection.Projection
	Camera() camera.State
	// Post queues fn to run on the owner loop.
	Post(fn func())
	// Invalidate requests a new frame.
	Invalidate()
}

// Layer is a stack entry of the map.
type Layer interface {
	Attach(h Host)
	Detach()
	OnCamera(oldState, newState camera.State)
	// Refresh reprocesses the current camera.
	Refresh()
	Paint(ops *op.Ops, vp camera.Viewport)
}

// Flags control how the map treats an item.
type Flags uint32

const (
	IgnoreScale Flags = 1 << iota
	IgnoreAzimuth
	Highlightable
	Highlighted
	Clickable
	Movable
	Selectable
)

func (f Flags) Has(flag Flags) bool { return f&flag == flag }

func (f Flags) With(flag Flags, on bool) Flags {
	if on {
		return f | flag
	}
	return f &^ flag
}

// PaintContext is handed to a drawable when it paints.
type PaintContext struct {
	Ops      *op.Ops
	Viewport camera.Viewport
	Flags    Flags
	Selected bool
}

// Scale is the number of pixels per projected unit, or 1 for items that
// ignore scale.
func (pc PaintContext) Scale() float64 {
	if pc.Flags.Has(IgnoreScale) {
		return 1
	}
	return pc.Viewport.Scale
}

// Transform places pixel coordinates at the projected origin, following
// the view rotation unless the item ignores it.
func (pc PaintContext) Transform(origin projection.Point) f32.Affine2D {
	t := f32.Affine2D{}
	if !pc.Flags.Has(IgnoreAzimuth) {
		t = t.Rotate(f32.Point{}, float32(pc.Viewport.Azimuth*math.Pi/180))
	}
	return t.Offset(pc.Viewport.ProjToScreen(origin))
}

// Drawable is the minimal item capability.
type Drawable interface {
	// ProjShape is the bounding box used for hit testing.
	ProjShape() projection.Rect
	Paint(pc PaintContext)
}

// Tooltipper items show text when hovered.
type Tooltipper interface {
	Tooltip(p projection.Point) string
}

// Clicker items receive clicks when flagged Clickable.
type Clicker interface {
	Click(p projection.Point)
	DoubleClick(p projection.Point)
}

// Mover items can be dragged when flagged Movable.
type Mover interface {
	StartMove(p projection.Point)
	MoveTo(p projection.Point)
	StopMove(p projection.Point)
}

// Transformer items apply an extra transform on top of the one painting
// them, in pixels around their shape origin.
type Transformer interface {
	PaintTransform(pc PaintContext) f32.Affine2D
}
