package tiles

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/olablt/gio-geoview/env"
	"github.com/olablt/gio-geoview/geo"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func encodePNG(t *testing.T, size int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, size, size))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func collect() (func(Reply), chan Reply) {
	ch := make(chan Reply, 8)
	return func(r Reply) { ch <- r }, ch
}

func wait(t *testing.T, ch chan Reply) Reply {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
		return Reply{}
	}
}

func TestTemplate(t *testing.T) {
	tests := []struct {
		name string
		tpl  string
		pos  geo.TilePos
		want string
	}{
		{"osm", OSMTemplate, geo.NewTilePos(5, 10, 11), "https://tile.openstreetmap.org/5/10/11.png"},
		{"bing", BingTemplate, geo.NewTilePos(3, 3, 5), "https://ecn.t0.tiles.virtualearth.net/tiles/a213.jpeg?g=1&mkt=en-US"},
		{"server rotation", "http://${s}.example/${z}", geo.NewTilePos(1, 1, 0), "http://1.example/1"},
		{"unknown tag kept", "/${z}/${foo}", geo.NewTilePos(2, 0, 0), "/2/${foo}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MustTemplate(tt.tpl).URL(tt.pos); got != tt.want {
				t.Errorf("URL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheEviction(t *testing.T) {
	c, err := NewCache(2)
	if err != nil {
		t.Fatal(err)
	}
	a, b, d := "/1/0/0.png", "/1/1/0.png", "/1/0/1.png"
	c.Set(a, CachedResponse{ETag: "a"})
	c.Set(b, CachedResponse{ETag: "b"})
	c.Get(a)
	c.Set(d, CachedResponse{ETag: "d"})
	if _, ok := c.Get(b); ok {
		t.Error("least recently used entry kept")
	}
	if r, ok := c.Get(a); !ok || r.ETag != "a" {
		t.Errorf("Get(a) = %v, %v", r, ok)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
}

type tileServer struct {
	*httptest.Server
	hits    atomic.Int32
	release chan struct{}
}

func newTileServer(t *testing.T, body []byte) *tileServer {
	ts := &tileServer{release: make(chan struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("/5/10/10.png", func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "no user agent", http.StatusForbidden)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write(body)
	})
	mux.HandleFunc("/5/0/0.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	})
	mux.HandleFunc("/6/1/1.png", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-ts.release:
		}
	})
	ts.Server = httptest.NewServer(mux)
	t.Cleanup(func() {
		close(ts.release)
		ts.Close()
	})
	return ts
}

func newTestHTTPSource(t *testing.T, ts *tileServer) (*HTTPSource, *env.Env) {
	t.Helper()
	e := env.Discard()
	s, err := NewHTTPSource("test", MustTemplate(ts.URL+"/${z}/${x}/${y}.png"), e)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, e
}

func TestHTTPSourceFetchAndRevalidate(t *testing.T) {
	ts := newTileServer(t, encodePNG(t, geo.TileSize))
	s, e := newTestHTTPSource(t, ts)
	pos := geo.NewTilePos(5, 10, 10)

	reply, ch := collect()
	s.Request(pos, reply)
	r := wait(t, ch)
	if r.Err != nil || r.Image.Bounds().Dx() != geo.TileSize || r.Pos != pos {
		t.Fatalf("reply = %+v", r)
	}
	if _, ok := s.Cache().Get(ts.URL + "/5/10/10.png"); !ok {
		t.Fatal("response not cached")
	}

	s.Request(pos, reply)
	if r := wait(t, ch); r.Err != nil || r.Image == nil {
		t.Fatalf("revalidated reply = %+v", r)
	}
	if ts.hits.Load() != 2 {
		t.Errorf("server hits = %d", ts.hits.Load())
	}
	if got := testutil.ToFloat64(e.Metrics.CacheHits.WithLabelValues("test")); got != 1 {
		t.Errorf("cache hits = %v", got)
	}
	if got := testutil.ToFloat64(e.Metrics.CacheMisses.WithLabelValues("test")); got != 1 {
		t.Errorf("cache misses = %v", got)
	}

	// cancel after completion is a no-op
	s.Cancel(pos)
	select {
	case r := <-ch:
		t.Errorf("extra reply %+v", r)
	default:
	}
}

func TestHTTPSourceErrors(t *testing.T) {
	ts := newTileServer(t, nil)
	s, _ := newTestHTTPSource(t, ts)

	reply, ch := collect()
	s.Request(geo.NewTilePos(7, 0, 0), reply)
	if r := wait(t, ch); !errors.Is(r.Err, ErrNotFound) || !IsNotFound(r.Err) {
		t.Errorf("missing tile err = %v", r.Err)
	}
	s.Request(geo.NewTilePos(5, 0, 0), reply)
	if r := wait(t, ch); r.Err == nil || errors.Is(r.Err, ErrNotFound) {
		t.Errorf("undecodable tile err = %v", r.Err)
	}
}

func TestHTTPSourceCancelAndDuplicates(t *testing.T) {
	ts := newTileServer(t, nil)
	s, _ := newTestHTTPSource(t, ts)
	slow := geo.NewTilePos(6, 1, 1)

	first, ch1 := collect()
	second, ch2 := collect()
	s.Request(slow, first)
	s.Request(slow, second)
	s.Cancel(slow)

	if r := wait(t, ch1); !errors.Is(r.Err, ErrCanceled) {
		t.Errorf("cancelled reply = %+v", r)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if len(ch1) != 0 || len(ch2) != 0 {
		t.Errorf("unexpected replies: %d first, %d duplicate", len(ch1), len(ch2))
	}

	late, ch := collect()
	s.Request(slow, late)
	if r := wait(t, ch); !errors.Is(r.Err, ErrClosed) {
		t.Errorf("request after Close = %+v", r)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	pos := geo.NewTilePos(3, 1, 2)
	if err := os.MkdirAll(filepath.Join(dir, "3", "1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "3", "1", "2.png"), encodePNG(t, 64), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewFileSource("files", dir, "", 0, 5, 8, env.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := s.Path(pos), filepath.Join(dir, "3", "1", "2.png"); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}

	reply, ch := collect()
	s.Request(pos, reply)
	if r := wait(t, ch); r.Err != nil || r.Image.Bounds().Dx() != 64 {
		t.Fatalf("reply = %+v", r)
	}
	s.Request(geo.NewTilePos(3, 0, 0), reply)
	if r := wait(t, ch); !errors.Is(r.Err, ErrNotFound) {
		t.Errorf("missing file err = %v", r.Err)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	s.Request(pos, reply)
	if r := wait(t, ch); !errors.Is(r.Err, ErrClosed) {
		t.Errorf("request after Close = %+v", r)
	}

	if _, err := NewFileSource("bad", filepath.Join(dir, "3", "1", "2.png"), "", 0, 5, 8, env.Discard()); err == nil {
		t.Error("file accepted as tile directory")
	}
}

func TestDebugSource(t *testing.T) {
	img := RenderDebugTile(geo.NewTilePos(4, 2, 3))
	if img.Bounds() != image.Rect(0, 0, geo.TileSize, geo.TileSize) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if img.RGBAAt(0, 0) != debugGrid || img.RGBAAt(128, 5) != debugBackground {
		t.Errorf("unexpected pixels %v %v", img.RGBAAt(0, 0), img.RGBAAt(128, 5))
	}

	s := NewDebugSource(0, 20)
	reply, ch := collect()
	s.Request(geo.NewTilePos(4, 2, 3), reply)
	if r := wait(t, ch); r.Err != nil || r.Image == nil {
		t.Errorf("reply = %+v", r)
	}
	s.Close()
}

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, geo.TileSize, geo.TileSize))
	for y := 0; y < geo.TileSize; y++ {
		for x := 0; x < geo.TileSize; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestHTTPSourcesShareCache(t *testing.T) {
	red, blue := color.RGBA{R: 255, A: 255}, color.RGBA{B: 255, A: 255}
	bodies := map[string][]byte{
		"/street/3/1/1.png": solidPNG(t, red),
		"/sat/3/1/1.png":    solidPNG(t, blue),
	}
	modified := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "tile.png", modified, bytes.NewReader(body))
	}))
	t.Cleanup(srv.Close)

	cache, err := NewCache(16)
	if err != nil {
		t.Fatal(err)
	}
	e := env.Discard()
	newSource := func(name string) *HTTPSource {
		s, err := NewHTTPSource(name, MustTemplate(srv.URL+"/"+name+"/${z}/${x}/${y}.png"), e, WithCache(cache))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}
	street, sat := newSource("street"), newSource("sat")
	pos := geo.NewTilePos(3, 1, 1)

	fetch := func(s *HTTPSource) color.Color {
		t.Helper()
		reply, ch := collect()
		s.Request(pos, reply)
		r := wait(t, ch)
		if r.Err != nil {
			t.Fatalf("%s: %v", s.Name(), r.Err)
		}
		return r.Image.At(0, 0)
	}
	for i := 0; i < 2; i++ {
		if got := color.RGBAModel.Convert(fetch(street)); got != red {
			t.Errorf("street pixel = %v, want %v", got, red)
		}
		if got := color.RGBAModel.Convert(fetch(sat)); got != blue {
			t.Errorf("sat pixel = %v, want %v", got, blue)
		}
	}
	if cache.Len() != 2 {
		t.Errorf("cache entries = %d, want 2", cache.Len())
	}
	if got := testutil.ToFloat64(e.Metrics.CacheHits.WithLabelValues("sat")); got != 1 {
		t.Errorf("sat cache hits = %v, want 1", got)
	}
}

func TestFallbackSource(t *testing.T) {
	primary := newFakeSource(0, 5)
	fallback := NewDebugSource(0, 10)
	s := NewFallbackSource(primary, fallback, env.Discard())
	if s.MinZoom() != 0 || s.MaxZoom() != 10 || s.Name() != "fake+debug" {
		t.Errorf("source = %s [%d, %d]", s.Name(), s.MinZoom(), s.MaxZoom())
	}
	reply, ch := collect()

	ok := geo.NewTilePos(3, 1, 1)
	s.Request(ok, reply)
	primary.complete(t, ok)
	if r := wait(t, ch); r.Err != nil || r.Image.Bounds().Dx() != geo.TileSize {
		t.Errorf("primary reply = %+v", r)
	}

	failing := geo.NewTilePos(3, 2, 2)
	s.Request(failing, reply)
	primary.fail(t, failing, errors.New("offline"))
	if r := wait(t, ch); r.Err != nil || r.Image == nil {
		t.Errorf("fallback reply = %+v", r)
	}

	deep := geo.NewTilePos(8, 1, 1)
	s.Request(deep, reply)
	if r := wait(t, ch); r.Err != nil || r.Pos != deep {
		t.Errorf("reply beyond primary zoom = %+v", r)
	}
	if primary.requests[deep] != 0 {
		t.Error("primary asked for a zoom it does not serve")
	}

	canceled := geo.NewTilePos(2, 1, 1)
	s.Request(canceled, reply)
	s.Cancel(canceled)
	if r := wait(t, ch); !errors.Is(r.Err, ErrCanceled) {
		t.Errorf("cancelled reply = %+v", r)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFallbackSourceReRequestAfterCancel(t *testing.T) {
	primary := newFakeSource(0, 5)
	primary.ignoreCancel = true
	s := NewFallbackSource(primary, NewDebugSource(0, 10), env.Discard())
	pos := geo.NewTilePos(4, 3, 3)

	first, ch1 := collect()
	second, ch2 := collect()
	s.Request(pos, first)
	s.Cancel(pos)
	s.Request(pos, second)
	if primary.requests[pos] != 2 {
		t.Fatalf("primary requests for %v = %d, want 2", pos, primary.requests[pos])
	}

	// the reply to the cancelled request was already on its way
	primary.orphans[pos](Reply{Pos: pos, Err: errors.New("offline")})
	if r := wait(t, ch1); !errors.Is(r.Err, ErrCanceled) {
		t.Errorf("cancelled request reply = %+v", r)
	}
	if len(ch2) != 0 {
		t.Fatal("late reply reached the new request")
	}

	primary.fail(t, pos, errors.New("offline"))
	if r := wait(t, ch2); r.Err != nil || r.Image == nil {
		t.Errorf("new request reply = %+v", r)
	}
	if len(ch1) != 0 {
		t.Errorf("cancelled request got %d more replies", len(ch1))
	}
}
