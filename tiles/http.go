package tiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/olablt/gio-geoview/env"
	"github.com/olablt/gio-geoview/geo"
	"github.com/olablt/gio-geoview/internal/metrics"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/semaphore"
)

const DefaultConcurrency = 6

// HTTPSource fetches tiles over HTTP from a URL template.
type HTTPSource struct {
	name    string
	tpl     *Template
	minZoom int
	maxZoom int
	client  *http.Client
	ua      string
	header  http.Header
	cache   *Cache
	sem     *semaphore.Weighted
	log     *slog.Logger
	metrics *metrics.Metrics

	ctx     context.Context
	stop    context.CancelFunc
	flights *flights
	wg      sync.WaitGroup
}

type HTTPOption func(*HTTPSource)

func WithZoomRange(minZoom, maxZoom int) HTTPOption {
	return func(s *HTTPSource) { s.minZoom, s.maxZoom = minZoom, maxZoom }
}

// WithConcurrency bounds the number of simultaneous fetches.
func WithConcurrency(n int) HTTPOption {
	return func(s *HTTPSource) { s.sem = semaphore.NewWeighted(int64(max(1, n))) }
}

// WithCache shares a response cache between sources.
func WithCache(c *Cache) HTTPOption {
	return func(s *HTTPSource) { s.cache = c }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(s *HTTPSource) { s.header.Add(key, value) }
}

func NewHTTPSource(name string, tpl *Template, e *env.Env, opts ...HTTPOption) (*HTTPSource, error) {
	ctx, stop := context.WithCancel(context.Background())
	s := &HTTPSource{
		name:    name,
		tpl:     tpl,
		minZoom: 0,
		maxZoom: 19,
		client:  e.Client,
		ua:      e.UserAgent,
		header:  make(http.Header),
		sem:     semaphore.NewWeighted(DefaultConcurrency),
		log:     e.Logger.With("component", "http_source", "source", name),
		metrics: e.Metrics,
		ctx:     ctx,
		stop:    stop,
		flights: newFlights(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		c, err := NewCache(DefaultCacheSize)
		if err != nil {
			stop()
			return nil, fmt.Errorf("create response cache: %w", err)
		}
		s.cache = c
	}
	return s, nil
}

// NewOSMSource is an HTTP source for the OpenStreetMap standard tiles.
func NewOSMSource(e *env.Env, opts ...HTTPOption) (*HTTPSource, error) {
	opts = append([]HTTPOption{
		WithZoomRange(0, 19),
		WithHeader("Referer", "https://www.openstreetmap.org/"),
	}, opts...)
	return NewHTTPSource("osm", MustTemplate(OSMTemplate), e, opts...)
}

func (s *HTTPSource) Name() string  { return s.name }
func (s *HTTPSource) MinZoom() int  { return s.minZoom }
func (s *HTTPSource) MaxZoom() int  { return s.maxZoom }
func (s *HTTPSource) Cache() *Cache { return s.cache }

func (s *HTTPSource) Request(pos geo.TilePos, reply func(Reply)) {
	f := s.flights.start(s.ctx, pos, reply)
	if f == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		img, err := s.fetch(f.ctx, pos)
		s.flights.finish(f, Reply{Pos: pos, Image: img, Err: err})
	}()
}

func (s *HTTPSource) Cancel(pos geo.TilePos) {
	s.flights.cancel(pos)
}

// Close cancels all requests and waits for their goroutines.
func (s *HTTPSource) Close() error {
	s.flights.close()
	s.stop()
	s.wg.Wait()
	return nil
}

func (s *HTTPSource) fetch(ctx context.Context, pos geo.TilePos) (image.Image, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, ErrCanceled
	}
	defer s.sem.Release(1)

	body, err := s.get(ctx, pos)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCanceled
		}
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		s.cache.Remove(s.tpl.URL(pos))
		return nil, fmt.Errorf("decode %v: %w", pos, err)
	}
	return img, nil
}

func (s *HTTPSource) get(ctx context.Context, pos geo.TilePos) ([]byte, error) {
	url := s.tpl.URL(pos)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %v: %w", pos, err)
	}
	for k, vs := range s.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", s.ua)
	req.Header.Set("Accept", "image/webp,image/png,image/jpeg,*/*")

	cached, haveCached := s.cache.Get(url)
	if haveCached {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %v: %w", pos, err)
	}
	defer resp.Body.Close()
	s.metrics.FetchDurationMs.WithLabelValues(s.name).Observe(float64(time.Since(start).Milliseconds()))
	s.log.Debug("fetched tile", "tile", pos, "url", url, "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotModified && haveCached:
		s.metrics.CacheHits.WithLabelValues(s.name).Inc()
		return cached.Body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("fetch %v: %w", pos, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %v: unexpected status code: %d", pos, resp.StatusCode)
	}

	s.metrics.CacheMisses.WithLabelValues(s.name).Inc()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %v: %w", pos, err)
	}
	etag, lastModified := resp.Header.Get("ETag"), resp.Header.Get("Last-Modified")
	if etag != "" || lastModified != "" {
		s.cache.Set(url, CachedResponse{Body: body, ETag: etag, LastModified: lastModified})
	}
	return body, nil
}

// IsNotFound reports whether err means the source has no such tile.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
