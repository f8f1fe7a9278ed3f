package tiles

import (
	"context"
	"image"
	"image/color"
	"image/draw"

	"github.com/olablt/gio-geoview/geo"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	debugBackground = color.RGBA{200, 220, 255, 255}
	debugGrid       = color.RGBA{100, 100, 100, 255}
	debugLabel      = color.RGBA{255, 255, 255, 220}
)

// DebugSource generates tiles showing their own address.
type DebugSource struct {
	minZoom, maxZoom int
	flights          *flights
}

func NewDebugSource(minZoom, maxZoom int) *DebugSource {
	return &DebugSource{minZoom: minZoom, maxZoom: maxZoom, flights: newFlights()}
}

func (s *DebugSource) Name() string { return "debug" }
func (s *DebugSource) MinZoom() int { return s.minZoom }
func (s *DebugSource) MaxZoom() int { return s.maxZoom }

func (s *DebugSource) Request(pos geo.TilePos, reply func(Reply)) {
	f := s.flights.start(context.Background(), pos, reply)
	if f == nil {
		return
	}
	go func() {
		if f.ctx.Err() != nil {
			return
		}
		s.flights.finish(f, Reply{Pos: pos, Image: RenderDebugTile(pos)})
	}()
}

func (s *DebugSource) Cancel(pos geo.TilePos) { s.flights.cancel(pos) }

func (s *DebugSource) Close() error {
	s.flights.close()
	return nil
}

// RenderDebugTile draws a bordered tile labelled z/x/y.
func RenderDebugTile(pos geo.TilePos) *image.RGBA {
	const size = geo.TileSize
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{debugBackground}, image.Point{}, draw.Src)

	borders := []image.Rectangle{
		image.Rect(0, 0, size, 1),
		image.Rect(0, size-1, size, size),
		image.Rect(0, 0, 1, size),
		image.Rect(size-1, 0, size, size),
	}
	for _, r := range borders {
		draw.Draw(img, r, &image.Uniform{debugGrid}, image.Point{}, draw.Src)
	}
	drawLabel(img, pos.String())
	return img
}

func drawLabel(img *image.RGBA, text string) {
	const size = geo.TileSize
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	w := d.MeasureString(text).Round()
	h := face.Metrics().Height.Round()

	padding := 10
	mid := size / 2
	bg := image.Rect((size-w)/2-padding, mid-h/2-padding, (size+w)/2+padding, mid+h/2+padding)
	draw.Draw(img, bg, &image.Uniform{debugLabel}, image.Point{}, draw.Over)

	d.Dot = fixed.Point26_6{X: fixed.I((size - w) / 2), Y: fixed.I(mid + h/2)}
	d.DrawString(text)
}
