package scene

import (
	"image"
	"image/color"
	"math"

	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"github.com/olablt/gio-geoview/geo"
	"github.com/olablt/gio-geoview/projection"
)

var (
	DefaultBoxFill     = color.NRGBA{R: 0x30, G: 0x80, B: 0xd0, A: 0x60}
	DefaultBoxBorder   = color.NRGBA{R: 0x20, G: 0x50, B: 0x90, A: 0xff}
	DefaultBoxSelected = color.NRGBA{R: 0xe0, G: 0x40, B: 0x20, A: 0xff}
)

// Box is a filled rectangle in projected space.
type Box struct {
	Rect     projection.Rect
	Fill     color.NRGBA
	Border   color.NRGBA
	Selected color.NRGBA
	Label    string

	OnClick       func(p projection.Point)
	OnDoubleClick func(p projection.Point)

	moveAnchor projection.Point
}

func NewBox(r projection.Rect) *Box {
	return &Box{
		Rect:     r,
		Fill:     DefaultBoxFill,
		Border:   DefaultBoxBorder,
		Selected: DefaultBoxSelected,
	}
}

// NewGeoBox projects r and returns a box covering it.
func NewGeoBox(proj projection.Projection, r geo.Rect) *Box {
	return NewBox(proj.GeoRectToProj(r))
}

func (b *Box) ProjShape() projection.Rect { return b.Rect }

func (b *Box) Paint(pc PaintContext) {
	s := pc.Scale()
	size := image.Pt(int(math.Round(b.Rect.Width()*s)), int(math.Round(b.Rect.Height()*s)))
	defer op.Affine(pc.Transform(b.Rect.Min)).Push(pc.Ops).Pop()

	r := clip.Rect{Max: size}
	paint.FillShape(pc.Ops, b.Fill, r.Op())
	border := b.Border
	if pc.Selected {
		border = b.Selected
	}
	paint.FillShape(pc.Ops, border, clip.Stroke{Path: r.Path(), Width: 2}.Op())
}

func (b *Box) Tooltip(projection.Point) string { return b.Label }

func (b *Box) Click(p projection.Point) {
	if b.OnClick != nil {
		b.OnClick(p)
	}
}

func (b *Box) DoubleClick(p projection.Point) {
	if b.OnDoubleClick != nil {
		b.OnDoubleClick(p)
	}
}

func (b *Box) StartMove(p projection.Point) {
	b.moveAnchor = p
}

func (b *Box) MoveTo(p projection.Point) {
	d := p.Sub(b.moveAnchor)
	b.Rect = projection.Rect{Min: b.Rect.Min.Add(d), Max: b.Rect.Max.Add(d)}
	b.moveAnchor = p
}

func (b *Box) StopMove(p projection.Point) {
	b.MoveTo(p)
}
