package tiles

import (
	"context"
	"sync"

	"github.com/olablt/gio-geoview/geo"
)

type flight struct {
	ctx    context.Context
	cancel context.CancelFunc
	reply  func(Reply)
}

// flights tracks at most one request per address for a source. Whoever
// removes a flight from the set owns its single reply.
type flights struct {
	mu     sync.Mutex
	m      map[geo.TilePos]*flight
	closed bool
}

func newFlights() *flights {
	return &flights{m: make(map[geo.TilePos]*flight)}
}

// start registers a request. It returns nil when pos is already in flight
// or the set is closed; in the latter case reply gets ErrClosed.
func (fs *flights) start(parent context.Context, pos geo.TilePos, reply func(Reply)) *flight {
	fs.mu.Lock()
	if fs.closed {
		fs.mu.Unlock()
		reply(Reply{Pos: pos, Err: ErrClosed})
		return nil
	}
	if _, ok := fs.m[pos]; ok {
		fs.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(parent)
	f := &flight{ctx: ctx, cancel: cancel, reply: reply}
	fs.m[pos] = f
	fs.mu.Unlock()
	return f
}

// finish delivers r unless f was cancelled in the meantime.
func (fs *flights) finish(f *flight, r Reply) {
	fs.mu.Lock()
	if fs.m[r.Pos] != f {
		fs.mu.Unlock()
		return
	}
	delete(fs.m, r.Pos)
	fs.mu.Unlock()
	f.cancel()
	f.reply(r)
}

func (fs *flights) cancel(pos geo.TilePos) {
	fs.mu.Lock()
	f, ok := fs.m[pos]
	delete(fs.m, pos)
	fs.mu.Unlock()
	if !ok {
		return
	}
	f.cancel()
	f.reply(Reply{Pos: pos, Err: ErrCanceled})
}

// close cancels everything in flight and refuses new requests.
func (fs *flights) close() {
	fs.mu.Lock()
	fs.closed = true
	pending := fs.m
	fs.m = make(map[geo.TilePos]*flight)
	fs.mu.Unlock()
	for pos, f := range pending {
		f.cancel()
		f.reply(Reply{Pos: pos, Err: ErrCanceled})
	}
}

func (fs *flights) len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.m)
}
