// Package config loads the settings of a map application from a .env file
// and GEOVIEW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/olablt/gio-geoview/env"
	"github.com/olablt/gio-geoview/tiles"
)

const Prefix = "GEOVIEW_"

// Settings describe the tile source, the layer profile and the process
// wide switches of a map application.
type Settings struct {
	// TileURL is a URL template for the HTTP source, see tiles.Template.
	TileURL string
	// TileDir switches to a file source rooted there when set.
	TileDir    string
	TileLayout string
	MinZoom    int
	MaxZoom    int

	CacheSize   int
	Concurrency int
	UserAgent   string

	// Fallback fills zoom levels and failures of the main source with
	// generated debug tiles.
	Fallback bool

	MarginWithZoomChange         int
	MarginNoZoomChange           int
	AnimationUpdateDelay         time.Duration
	VisibleZoomLevelsBelow       int
	VisibleZoomLevelsAbove       int
	CameraUpdatesDuringAnimation bool

	CenterLat float64
	CenterLon float64
	Zoom      int

	MetricsAddr string
	DrawDebug   bool
}

// DefaultSettings returns OSM tiles over Vilnius with the default layer
// profile.
func DefaultSettings() *Settings {
	p := tiles.DefaultProfile()
	return &Settings{
		TileURL:                      tiles.OSMTemplate,
		TileLayout:                   tiles.DefaultFileLayout,
		MinZoom:                      0,
		MaxZoom:                      19,
		CacheSize:                    tiles.DefaultCacheSize,
		Concurrency:                  6,
		UserAgent:                    env.DefaultUserAgent,
		Fallback:                     true,
		MarginWithZoomChange:         p.MarginWithZoomChange,
		MarginNoZoomChange:           p.MarginNoZoomChange,
		AnimationUpdateDelay:         p.AnimationUpdateDelay,
		VisibleZoomLevelsBelow:       p.VisibleZoomLevelsBelow,
		VisibleZoomLevelsAbove:       p.VisibleZoomLevelsAbove,
		CameraUpdatesDuringAnimation: p.CameraUpdatesDuringAnimation,
		CenterLat:                    54.6872,
		CenterLon:                    25.2797,
		Zoom:                         12,
	}
}

// Load reads envFile, when it exists, into the environment and returns
// the defaults overridden by GEOVIEW_* variables. Variables already set in
// the environment win over the file.
func Load(envFile string) (*Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv applies the variables returned by lookup to the defaults.
func FromEnv(lookup func(string) (string, bool)) (*Settings, error) {
	s := DefaultSettings()
	r := reader{lookup: lookup}

	r.stringVar("TILE_URL", &s.TileURL)
	r.stringVar("TILE_DIR", &s.TileDir)
	r.stringVar("TILE_LAYOUT", &s.TileLayout)
	r.intVar("MIN_ZOOM", &s.MinZoom)
	r.intVar("MAX_ZOOM", &s.MaxZoom)
	r.intVar("CACHE_SIZE", &s.CacheSize)
	r.intVar("CONCURRENCY", &s.Concurrency)
	r.stringVar("USER_AGENT", &s.UserAgent)
	r.boolVar("FALLBACK", &s.Fallback)
	r.intVar("MARGIN_ZOOM_CHANGE", &s.MarginWithZoomChange)
	r.intVar("MARGIN_NO_ZOOM_CHANGE", &s.MarginNoZoomChange)
	r.durationVar("ANIMATION_UPDATE_DELAY", &s.AnimationUpdateDelay)
	r.intVar("ZOOM_LEVELS_BELOW", &s.VisibleZoomLevelsBelow)
	r.intVar("ZOOM_LEVELS_ABOVE", &s.VisibleZoomLevelsAbove)
	r.boolVar("CAMERA_UPDATES_DURING_ANIMATION", &s.CameraUpdatesDuringAnimation)
	r.floatVar("CENTER_LAT", &s.CenterLat)
	r.floatVar("CENTER_LON", &s.CenterLon)
	r.intVar("ZOOM", &s.Zoom)
	r.stringVar("METRICS_ADDR", &s.MetricsAddr)
	r.boolVar("DEBUG", &s.DrawDebug)

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate reports settings no source or layer could work with.
func (s *Settings) Validate() error {
	var errs []error
	if s.MinZoom < 0 || s.MaxZoom > 30 || s.MinZoom > s.MaxZoom {
		errs = append(errs, fmt.Errorf("zoom range %d..%d is invalid", s.MinZoom, s.MaxZoom))
	}
	if s.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency %d must be positive", s.Concurrency))
	}
	if s.MarginWithZoomChange < 0 || s.MarginNoZoomChange < 0 {
		errs = append(errs, errors.New("margins must not be negative"))
	}
	if s.VisibleZoomLevelsBelow < 0 || s.VisibleZoomLevelsAbove < 0 {
		errs = append(errs, errors.New("visible zoom levels must not be negative"))
	}
	if s.TileDir == "" {
		if _, err := tiles.NewTemplate(s.TileURL); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Profile returns the layer profile described by s.
func (s *Settings) Profile() tiles.Profile {
	return tiles.Profile{
		MarginWithZoomChange:         s.MarginWithZoomChange,
		MarginNoZoomChange:           s.MarginNoZoomChange,
		AnimationUpdateDelay:         s.AnimationUpdateDelay,
		VisibleZoomLevelsBelow:       s.VisibleZoomLevelsBelow,
		VisibleZoomLevelsAbove:       s.VisibleZoomLevelsAbove,
		CameraUpdatesDuringAnimation: s.CameraUpdatesDuringAnimation,
	}
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) get(key string) (string, bool) {
	v, ok := r.lookup(Prefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) fail(key, v string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s%s=%q: %w", Prefix, key, v, err))
}

func (r *reader) stringVar(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *reader) intVar(key string, dst *int) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = n
}

func (r *reader) floatVar(key string, dst *float64) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = f
}

func (r *reader) boolVar(key string, dst *bool) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = b
}

// durationVar accepts Go durations and plain milliseconds.
func (r *reader) durationVar(key string, dst *time.Duration) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	if ms, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = d
}
