package tiles

import (
	"image"
	"image/color"

	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"github.com/olablt/gio-geoview/camera"
	"github.com/olablt/gio-geoview/geo"
	"github.com/olablt/gio-geoview/projection"
)

var debugBorder = color.NRGBA{R: 0xff, A: 0xc0}

// Tile is a resident raster tile. The image op is built once and reused
// every frame.
type Tile struct {
	Pos   geo.TilePos
	Image image.Image

	imgOp    paint.ImageOp
	projRect projection.Rect
}

func newTile(pos geo.TilePos, img image.Image, proj projection.Projection) *Tile {
	return &Tile{
		Pos:      pos,
		Image:    img,
		imgOp:    paint.NewImageOp(img),
		projRect: proj.GeoRectToProj(pos.ToGeoRect()),
	}
}

// ProjRect is the projected area covered by the tile.
func (t *Tile) ProjRect() projection.Rect { return t.projRect }

// Paint stretches the image over the tile's projected area.
func (t *Tile) Paint(ops *op.Ops, vp camera.Viewport, debug bool) {
	if t.Image == nil {
		return
	}
	size := t.Image.Bounds().Size()
	if size.X == 0 || size.Y == 0 {
		return
	}
	unit := t.projRect.Width() / float64(size.X)
	defer op.Affine(vp.Transform(t.projRect.Min, unit)).Push(ops).Pop()

	r := clip.Rect{Max: size}
	stack := r.Push(ops)
	t.imgOp.Add(ops)
	paint.PaintOp{}.Add(ops)
	stack.Pop()

	if debug {
		paint.FillShape(ops, debugBorder, clip.Stroke{Path: r.Path(), Width: 1}.Op())
	}
}

func (t *Tile) release() {
	t.Image = nil
	t.imgOp = paint.ImageOp{}
}
