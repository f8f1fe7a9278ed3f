package geo

import (
	"cmp"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// TileSize is the edge of a raster tile in pixels.
const TileSize = 256

// TilePos is a quad-tree tile address: 2^Zoom tiles per axis.
type TilePos struct {
	Zoom, X, Y int
}

// NewTilePos creates a tile address.
func NewTilePos(zoom, x, y int) TilePos {
	return TilePos{Zoom: zoom, X: x, Y: y}
}

// TileFromMaptile converts an orb maptile to a tile address.
func TileFromMaptile(t maptile.Tile) TilePos {
	return TilePos{Zoom: int(t.Z), X: int(t.X), Y: int(t.Y)}
}

// TileAt returns the tile containing pos at the given zoom.
func TileAt(zoom int, pos Pos) TilePos {
	n := math.Exp2(float64(zoom))
	latRad := pos.Lat() * math.Pi / 180
	x := math.Floor((pos.Lon() + 180) / 360 * n)
	y := math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n)
	return TilePos{Zoom: zoom, X: int(x), Y: int(y)}
}

// Valid reports whether the address lies inside the world grid.
func (t TilePos) Valid() bool {
	if t.Zoom < 0 || t.Zoom > 30 {
		return false
	}
	n := 1 << t.Zoom
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

// Point returns the tile index as an image point.
func (t TilePos) Point() image.Point {
	return image.Pt(t.X, t.Y)
}

// Compare orders tiles by zoom, then x, then y.
func (t TilePos) Compare(o TilePos) int {
	if c := cmp.Compare(t.Zoom, o.Zoom); c != 0 {
		return c
	}
	if c := cmp.Compare(t.X, o.X); c != 0 {
		return c
	}
	return cmp.Compare(t.Y, o.Y)
}

func (t TilePos) Less(o TilePos) bool {
	return t.Compare(o) < 0
}

// Parent returns the ancestor of t at zoom. ok is false when zoom is not
// coarser than t.
func (t TilePos) Parent(zoom int) (parent TilePos, ok bool) {
	if zoom >= t.Zoom || zoom < 0 {
		return TilePos{}, false
	}
	shift := uint(t.Zoom - zoom)
	return TilePos{Zoom: zoom, X: t.X >> shift, Y: t.Y >> shift}, true
}

// Contains reports whether o is a descendant of t.
func (t TilePos) Contains(o TilePos) bool {
	parent, ok := o.Parent(t.Zoom)
	if !ok {
		return false
	}
	return parent.X == t.X && parent.Y == t.Y
}

// Span returns the index rectangle covered by t's descendants at zoom.
// The rectangle is empty when zoom is coarser than t.
func (t TilePos) Span(zoom int) image.Rectangle {
	if zoom < t.Zoom {
		return image.Rectangle{}
	}
	shift := uint(zoom - t.Zoom)
	min := image.Pt(t.X<<shift, t.Y<<shift)
	return image.Rectangle{Min: min, Max: min.Add(image.Pt(1<<shift, 1<<shift))}
}

// ToGeoRect returns the geographical box of the tile.
func (t TilePos) ToGeoRect() Rect {
	return NewRect(tileCorner(t.Zoom, t.X, t.Y), tileCorner(t.Zoom, t.X+1, t.Y+1))
}

// tileCorner converts the top-left corner of a tile to a position
func tileCorner(zoom, x, y int) Pos {
	n := math.Exp2(float64(zoom))
	lon := float64(x)/n*360 - 180
	m := math.Pi - 2*math.Pi*float64(y)/n
	lat := 180 / math.Pi * math.Atan(math.Sinh(m))
	return NewPos(lat, lon)
}

// QuadKey encodes the tile as a base-4 string, one digit per zoom level.
func (t TilePos) QuadKey() string {
	var b strings.Builder
	b.Grow(t.Zoom)
	for i := t.Zoom; i > 0; i-- {
		digit := byte('0')
		mask := 1 << (i - 1)
		if t.X&mask != 0 {
			digit++
		}
		if t.Y&mask != 0 {
			digit += 2
		}
		b.WriteByte(digit)
	}
	return b.String()
}

// Maptile returns the address as an orb maptile.
func (t TilePos) Maptile() maptile.Tile {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Zoom))
}

func (t TilePos) String() string {
	return fmt.Sprintf("tile(%d,%d,%d)", t.Zoom, t.X, t.Y)
}
