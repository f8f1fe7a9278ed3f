package tiles

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/olablt/gio-geoview/env"
	"github.com/olablt/gio-geoview/geo"
)

// FallbackSource asks primary first and fallback when primary fails or
// does not cover the zoom.
type FallbackSource struct {
	primary  Source
	fallback Source
	log      *slog.Logger

	mu     sync.Mutex
	active map[geo.TilePos]*fallbackRequest
}

// fallbackRequest is one request for an address. Cancel detaches it from
// active, so replies arriving for it afterwards are answered with
// ErrCanceled and never reach a newer request for the same address.
type fallbackRequest struct {
	src Source
}

func NewFallbackSource(primary, fallback Source, e *env.Env) *FallbackSource {
	return &FallbackSource{
		primary:  primary,
		fallback: fallback,
		log:      e.Logger.With("component", "fallback_source", "primary", primary.Name(), "fallback", fallback.Name()),
		active:   make(map[geo.TilePos]*fallbackRequest),
	}
}

func (s *FallbackSource) Name() string { return s.primary.Name() + "+" + s.fallback.Name() }
func (s *FallbackSource) MinZoom() int { return min(s.primary.MinZoom(), s.fallback.MinZoom()) }
func (s *FallbackSource) MaxZoom() int { return max(s.primary.MaxZoom(), s.fallback.MaxZoom()) }

func (s *FallbackSource) covers(src Source, zoom int) bool {
	return zoom >= src.MinZoom() && zoom <= src.MaxZoom()
}

func (s *FallbackSource) Request(pos geo.TilePos, reply func(Reply)) {
	s.mu.Lock()
	if _, ok := s.active[pos]; ok {
		s.mu.Unlock()
		return
	}
	first := s.primary
	if !s.covers(first, pos.Zoom) {
		first = s.fallback
	}
	req := &fallbackRequest{src: first}
	s.active[pos] = req
	s.mu.Unlock()

	first.Request(pos, func(r Reply) {
		if r.Err == nil || errors.Is(r.Err, ErrCanceled) || first == s.fallback || !s.covers(s.fallback, pos.Zoom) {
			s.done(pos, req, r, reply)
			return
		}
		s.mu.Lock()
		if s.active[pos] != req {
			s.mu.Unlock()
			reply(Reply{Pos: pos, Err: ErrCanceled})
			return
		}
		req.src = s.fallback
		s.mu.Unlock()
		s.log.Debug("primary failed, using fallback", "tile", pos, "err", r.Err)
		s.fallback.Request(pos, func(r Reply) { s.done(pos, req, r, reply) })
	})
}

func (s *FallbackSource) done(pos geo.TilePos, req *fallbackRequest, r Reply, reply func(Reply)) {
	s.mu.Lock()
	if s.active[pos] != req {
		s.mu.Unlock()
		reply(Reply{Pos: pos, Err: ErrCanceled})
		return
	}
	delete(s.active, pos)
	s.mu.Unlock()
	reply(r)
}

func (s *FallbackSource) Cancel(pos geo.TilePos) {
	s.mu.Lock()
	req, ok := s.active[pos]
	delete(s.active, pos)
	var src Source
	if ok {
		src = req.src
	}
	s.mu.Unlock()
	if ok {
		src.Cancel(pos)
	}
}

func (s *FallbackSource) Close() error {
	return errors.Join(s.primary.Close(), s.fallback.Close())
}
