package tiles

import (
	"errors"
	"image"

	"github.com/olablt/gio-geoview/geo"
)

var (
	ErrCanceled  = errors.New("tile request canceled")
	ErrNotFound  = errors.New("tile not found")
	ErrQueueFull = errors.New("tile queue full")
	ErrClosed    = errors.New("tile source closed")
)

// Reply is the outcome of one tile request. Exactly one of Image and Err
// is set.
type Reply struct {
	Pos   geo.TilePos
	Image image.Image
	Err   error
}

// Source produces tile images.
//
// Request is fire-and-forget: reply is called exactly once, from any
// goroutine, with the image, an error, or ErrCanceled. A request for an
// address already in flight is ignored. Cancel is best effort and a no-op
// when nothing is in flight for pos.
type Source interface {
	Name() string
	MinZoom() int
	MaxZoom() int
	Request(pos geo.TilePos, reply func(Reply))
	Cancel(pos geo.TilePos)
	Close() error
}
