// Package env carries the process wide collaborators of a map: logger,
// HTTP client, metrics and debug switches. The value is built once by
// whoever assembles the map and passed down to every component.
package env

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/olablt/gio-geoview/internal/logger"
	"github.com/olablt/gio-geoview/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultUserAgent = "gio-geoview/1.0 (+https://github.com/olablt/gio-geoview)"

type Env struct {
	Logger    *slog.Logger
	Client    *http.Client
	Metrics   *metrics.Metrics
	UserAgent string
	// DrawDebug makes layers paint tile borders and addresses.
	DrawDebug bool
}

type Option func(*Env)

func WithLogger(l *slog.Logger) Option {
	return func(e *Env) { e.Logger = l }
}

func WithClient(c *http.Client) Option {
	return func(e *Env) { e.Client = c }
}

// WithRegisterer registers the map metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Env) { e.Metrics = metrics.New(reg) }
}

func WithUserAgent(ua string) Option {
	return func(e *Env) { e.UserAgent = ua }
}

func WithDrawDebug(on bool) Option {
	return func(e *Env) { e.DrawDebug = on }
}

// New returns an environment with the process logger, a client with a 30s
// timeout and unregistered metrics unless overridden by opts.
func New(opts ...Option) *Env {
	e := &Env{}
	for _, opt := range opts {
		opt(e)
	}
	if e.Logger == nil {
		e.Logger = logger.L()
	}
	if e.Client == nil {
		e.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if e.Metrics == nil {
		e.Metrics = metrics.New(nil)
	}
	if e.UserAgent == "" {
		e.UserAgent = DefaultUserAgent
	}
	return e
}

// Discard returns an environment that logs nothing. Tests use it.
func Discard() *Env {
	return New(WithLogger(logger.Discard()))
}
