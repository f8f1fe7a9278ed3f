package tiles

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/olablt/gio-geoview/env"
	"github.com/olablt/gio-geoview/geo"
	"github.com/olablt/gio-geoview/tiles/worker"
)

// DefaultFileLayout is the slippy map directory layout.
const DefaultFileLayout = "${z}/${x}/${y}.png"

// DefaultFileQueueSize bounds the reads waiting for the file worker.
const DefaultFileQueueSize = 256

// FileSource loads tiles from a directory on one dedicated worker.
type FileSource struct {
	name    string
	root    string
	layout  *Template
	minZoom int
	maxZoom int
	log     *slog.Logger
	queue   *worker.Queue
	flights *flights
}

// NewFileSource reads tiles below root. layout is a template relative to
// root using the URL placeholders; empty means DefaultFileLayout. A
// queueSize of zero means DefaultFileQueueSize.
func NewFileSource(name, root, layout string, minZoom, maxZoom, queueSize int, e *env.Env) (*FileSource, error) {
	if layout == "" {
		layout = DefaultFileLayout
	}
	if queueSize <= 0 {
		queueSize = DefaultFileQueueSize
	}
	tpl, err := NewTemplate(layout)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open tile directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open tile directory: %s is not a directory", root)
	}
	return &FileSource{
		name:    name,
		root:    root,
		layout:  tpl,
		minZoom: minZoom,
		maxZoom: maxZoom,
		log:     e.Logger.With("component", "file_source", "source", name),
		queue:   worker.New(queueSize),
		flights: newFlights(),
	}, nil
}

func (s *FileSource) Name() string { return s.name }
func (s *FileSource) MinZoom() int { return s.minZoom }
func (s *FileSource) MaxZoom() int { return s.maxZoom }

// Path returns the file holding pos.
func (s *FileSource) Path(pos geo.TilePos) string {
	return filepath.Join(s.root, filepath.FromSlash(s.layout.URL(pos)))
}

func (s *FileSource) Request(pos geo.TilePos, reply func(Reply)) {
	f := s.flights.start(context.Background(), pos, reply)
	if f == nil {
		return
	}
	err := s.queue.Submit(worker.Task{Ctx: f.ctx, Work: func(ctx context.Context) {
		img, err := s.load(pos)
		s.flights.finish(f, Reply{Pos: pos, Image: img, Err: err})
	}})
	switch {
	case errors.Is(err, worker.ErrFull):
		s.flights.finish(f, Reply{Pos: pos, Err: fmt.Errorf("load %v: %w", pos, ErrQueueFull)})
	case err != nil:
		s.flights.finish(f, Reply{Pos: pos, Err: ErrClosed})
	}
}

func (s *FileSource) Cancel(pos geo.TilePos) {
	s.flights.cancel(pos)
}

// Close cancels queued loads and joins the worker.
func (s *FileSource) Close() error {
	s.flights.close()
	s.queue.Close()
	return nil
}

func (s *FileSource) load(pos geo.TilePos) (image.Image, error) {
	path := s.Path(pos)
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %v: %w", pos, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %v: %w", pos, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	s.log.Debug("loaded tile", "tile", pos, "path", path)
	return img, nil
}
