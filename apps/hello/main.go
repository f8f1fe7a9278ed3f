package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"gioui.org/app"
	"gioui.org/font/gofont"
	"gioui.org/op"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget/material"
	"github.com/olablt/gio-geoview/camera"
	"github.com/olablt/gio-geoview/config"
	"github.com/olablt/gio-geoview/env"
	"github.com/olablt/gio-geoview/geo"
	"github.com/olablt/gio-geoview/internal/logger"
	"github.com/olablt/gio-geoview/internal/metrics"
	"github.com/olablt/gio-geoview/mapview"
	"github.com/olablt/gio-geoview/projection"
	"github.com/olablt/gio-geoview/scene"
	"github.com/olablt/gio-geoview/tiles"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	log := logger.Setup()
	cfg, err := config.Load(".env")
	if err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	e := env.New(
		env.WithLogger(log),
		env.WithRegisterer(reg),
		env.WithUserAgent(cfg.UserAgent),
		env.WithDrawDebug(cfg.DrawDebug),
	)
	if cfg.MetricsAddr != "" {
		go func() {
			log.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, metrics.Handler(reg)); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", "err", err)
			}
		}()
	}

	src, err := newSource(cfg, e)
	if err != nil {
		log.Error("tile source", "err", err)
		os.Exit(1)
	}

	m := mapview.New(projection.NewEPSG3857(), e)
	m.AddLayer(tiles.NewLayer(src, e, tiles.WithName("base"), tiles.WithProfile(cfg.Profile())))
	addLandmarks(m, log)
	m.Subscribe(func(ev mapview.Event) {
		switch ev := ev.(type) {
		case mapview.ItemClicked:
			log.Info("item clicked", "id", ev.ID, "pos", m.Projection().ProjToGeo(ev.Pos))
		case mapview.ContextMenu:
			log.Info("context menu", "pos", m.Projection().ProjToGeo(ev.Pos))
		case mapview.SelectionChanged:
			log.Info("selection", "items", ev.Selected)
		}
	})
	m.FlyTo(camera.NewActions(m.Camera()).
		ScaleTo(tiles.ZoomToScale(cfg.Zoom)).
		MoveToGeo(geo.NewPos(cfg.CenterLat, cfg.CenterLon)))

	go func() {
		w := new(app.Window)
		w.Option(app.Title("gio-geoview"), app.Size(unit.Dp(1024), unit.Dp(768)))
		m.SetInvalidate(w.Invalidate)
		err := run(w, m)
		m.Close()
		if cerr := src.Close(); cerr != nil {
			log.Warn("close source", "err", cerr)
		}
		if err != nil {
			log.Error("window", "err", err)
			os.Exit(1)
		}
		os.Exit(0)
	}()
	app.Main()
}

func run(w *app.Window, m *mapview.Map) error {
	th := material.NewTheme()
	th.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))
	mv := mapview.NewMapView(m, th)

	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			mv.Layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

// newSource builds the tile source described by cfg: a directory of tiles
// or an HTTP server, backed by generated tiles when Fallback is set.
func newSource(cfg *config.Settings, e *env.Env) (tiles.Source, error) {
	var src tiles.Source
	if cfg.TileDir != "" {
		fs, err := tiles.NewFileSource("files", cfg.TileDir, cfg.TileLayout, cfg.MinZoom, cfg.MaxZoom, 0, e)
		if err != nil {
			return nil, err
		}
		src = fs
	} else {
		tpl, err := tiles.NewTemplate(cfg.TileURL)
		if err != nil {
			return nil, err
		}
		cache, err := tiles.NewCache(cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		hs, err := tiles.NewHTTPSource("http", tpl, e,
			tiles.WithZoomRange(cfg.MinZoom, cfg.MaxZoom),
			tiles.WithConcurrency(cfg.Concurrency),
			tiles.WithCache(cache),
		)
		if err != nil {
			return nil, err
		}
		src = hs
	}
	if cfg.Fallback {
		src = tiles.NewFallbackSource(src, tiles.NewDebugSource(0, 22), e)
	}
	return src, nil
}

func addLandmarks(m *mapview.Map, log *slog.Logger) {
	proj := m.Projection()
	landmarks := []struct {
		name string
		rect geo.Rect
	}{
		{"Gediminas Tower", geo.RectFromLatLon(54.6872, 25.2890, 54.6862, 25.2910)},
		{"Cathedral Square", geo.RectFromLatLon(54.6860, 25.2855, 54.6848, 25.2885)},
		{"Town Hall", geo.RectFromLatLon(54.6780, 25.2860, 54.6770, 25.2880)},
	}
	for _, lm := range landmarks {
		box := scene.NewGeoBox(proj, lm.rect)
		box.Label = lm.name
		box.OnDoubleClick = func(p projection.Point) {
			log.Info("zoom to landmark", "name", lm.name)
			m.FlyTo(camera.NewActions(m.Camera()).ScaleToRect(box.Rect))
		}
		m.Items().Add(scene.Root, box, scene.Clickable|scene.Selectable|scene.Movable)
	}
}
