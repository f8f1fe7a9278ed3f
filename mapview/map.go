// Package mapview holds the map controller and its Gio widget. The
// controller owns the camera, the interaction state machine, the layer
// stack and the item arena; it runs on one owner loop, normally the Gio
// frame loop.
package mapview

import (
	"image"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"gioui.org/f32"
	"gioui.org/op"
	"github.com/olablt/gio-geoview/camera"
	"github.com/olablt/gio-geoview/env"
	"github.com/olablt/gio-geoview/geo"
	"github.com/olablt/gio-geoview/internal/metrics"
	"github.com/olablt/gio-geoview/projection"
	"github.com/olablt/gio-geoview/scene"
	"github.com/samber/lo"
)

const (
	DefaultMinScale = 1e-8
	DefaultMaxScale = 16.0

	// ZoomAreaDuration is the length of the animation zooming to a
	// selection rectangle.
	ZoomAreaDuration = 1500 * time.Millisecond
)

// Map is the camera and interaction controller of a map surface.
type Map struct {
	env     *env.Env
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	proj      projection.Projection
	vp        camera.Viewport
	minScale  float64
	maxScale  float64
	sceneRect projection.Rect
	state     State
	blocked   int
	actions   MouseAction

	layers []scene.Layer
	items  *scene.Items
	anim   *camera.Animation
	events bus

	mu           sync.Mutex
	runq         []func()
	onInvalidate func()

	gesture
}

var (
	_ scene.Host        = (*Map)(nil)
	_ camera.Controller = (*Map)(nil)
)

type Option func(*Map)

// WithClock replaces time.Now for animations.
func WithClock(now func() time.Time) Option {
	return func(m *Map) { m.now = now }
}

func WithMouseActions(a MouseAction) Option {
	return func(m *Map) { m.actions = a }
}

// WithSize sets the initial viewport size in pixels.
func WithSize(size image.Point) Option {
	return func(m *Map) { m.vp.Size = size }
}

// WithInvalidate sets the function requesting a new frame. It may be
// called from any goroutine.
func WithInvalidate(fn func()) Option {
	return func(m *Map) { m.onInvalidate = fn }
}

// New returns a map showing the whole projection boundary.
func New(proj projection.Projection, e *env.Env, opts ...Option) *Map {
	if proj == nil {
		panic("mapview: nil projection")
	}
	m := &Map{
		env:      e,
		log:      e.Logger.With("component", "map"),
		metrics:  e.Metrics,
		now:      time.Now,
		proj:     proj,
		vp:       camera.Viewport{Scale: 1, Size: image.Pt(refViewWidth, refViewHeight)},
		minScale: DefaultMinScale,
		maxScale: DefaultMaxScale,
		actions:  ActionAll,
		items:    scene.NewItems(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.resetGesture()
	m.vp.Center = proj.BoundaryProjRect().Center()
	m.refreshProjection()
	m.items.Attach(m)
	return m
}

const (
	refViewWidth  = 640
	refViewHeight = 480
)

// refreshProjection derives the scale limits and the area the camera
// center may move in from the projection boundary.
func (m *Map) refreshProjection() {
	b := m.proj.BoundaryProjRect()
	minScale := min(1, math.Abs(refViewWidth/b.Width()), math.Abs(refViewHeight/b.Height()))
	m.sceneRect = projection.Rect{
		Min: b.Min.Sub(projection.Pt(b.Width(), b.Height())),
		Max: b.Max.Add(projection.Pt(b.Width(), b.Height())),
	}
	m.SetScaleLimits(minScale, DefaultMaxScale)
}

func (m *Map) Projection() projection.Projection { return m.proj }

// Camera returns a snapshot of the current camera.
func (m *Map) Camera() camera.State {
	return m.vp.State(m.proj, m.state == Animation)
}

func (m *Map) Viewport() camera.Viewport { return m.vp }
func (m *Map) State() State              { return m.state }
func (m *Map) Items() *scene.Items       { return m.items }

func (m *Map) ScaleLimits() (minScale, maxScale float64) {
	return m.minScale, m.maxScale
}

// SetScaleLimits bounds the camera scale and re-clamps the current one.
func (m *Map) SetScaleLimits(minScale, maxScale float64) {
	m.minScale, m.maxScale = minScale, maxScale
	m.cameraScale(m.vp.Scale)
}

func (m *Map) MouseActions() MouseAction { return m.actions }

func (m *Map) SetMouseActions(a MouseAction) { m.actions = a }

func (m *Map) SetMouseAction(a MouseAction, enabled bool) {
	if enabled {
		m.actions |= a
	} else {
		m.actions &^= a
	}
}

// SetSize resizes the viewport.
func (m *Map) SetSize(size image.Point) {
	if m.vp.Size == size {
		return
	}
	old := m.Camera()
	m.vp.Size = size
	m.applyCameraUpdate(old)
}

// Subscribe registers fn for map events and returns a function removing
// it. Events are delivered on the owner loop in the order they happen.
func (m *Map) Subscribe(fn func(Event)) (unsubscribe func()) {
	return m.events.subscribe(fn)
}

// Post queues fn to run on the owner loop during the next Update. It is
// safe for concurrent use.
func (m *Map) Post(fn func()) {
	m.mu.Lock()
	m.runq = append(m.runq, fn)
	m.mu.Unlock()
	m.Invalidate()
}

// Invalidate requests a new frame. It is safe for concurrent use.
func (m *Map) Invalidate() {
	m.mu.Lock()
	fn := m.onInvalidate
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// SetInvalidate replaces the function requesting a new frame.
func (m *Map) SetInvalidate(fn func()) {
	m.mu.Lock()
	m.onInvalidate = fn
	m.mu.Unlock()
}

// Update runs posted work and advances the running animation. It reports
// whether an animation still needs frames.
func (m *Map) Update(now time.Time) bool {
	m.mu.Lock()
	queue := m.runq
	m.runq = nil
	m.mu.Unlock()
	for _, fn := range queue {
		fn()
	}

	if anim := m.anim; anim != nil && !anim.Tick(now) && m.anim == anim {
		m.anim = nil
	}
	return m.anim != nil
}

// Animating reports whether an animation is running.
func (m *Map) Animating() bool { return m.anim != nil }

// CameraTo moves the camera at once. animation marks the move as a step
// of an animation; a false value ends any animation in progress.
func (m *Map) CameraTo(a camera.Actions, animation bool) {
	old := m.Camera()
	m.blockCameraUpdate()
	if animation {
		m.changeState(Animation)
	} else {
		m.changeState(Idle)
	}
	m.cameraScale(a.Scale())
	m.cameraMove(a.ProjCenter())
	m.cameraRotate(a.Azimuth())
	m.unblockCameraUpdate()
	m.applyCameraUpdate(old)
}

// FlyTo starts a fly animation to a, replacing any running animation.
func (m *Map) FlyTo(a camera.Actions) {
	m.changeState(Idle)
	m.startAnimation(camera.NewFly(m, a), "fly")
}

// AnimateTo starts a simple animation to a. A zero duration means
// camera.DefaultSimpleDuration and a nil easing is linear.
func (m *Map) AnimateTo(a camera.Actions, d time.Duration, easing camera.Easing) {
	m.changeState(Idle)
	anim := camera.NewSimple(m, a, easing)
	if d > 0 {
		anim.SetDuration(d)
	}
	m.startAnimation(anim, "simple")
}

func (m *Map) startAnimation(anim *camera.Animation, kind string) {
	now := m.now()
	m.metrics.Animations.WithLabelValues(kind).Inc()
	m.anim = anim
	anim.Start(now)
	m.log.Debug("animation started", "kind", kind, "duration", anim.Duration(), "target", anim.Actions().ProjCenter())
	if !anim.Tick(now) && m.anim == anim {
		m.anim = nil
	}
	m.Invalidate()
}

// StopAnimation returns the map to idle if it is animating.
func (m *Map) StopAnimation() {
	if m.state == Animation {
		m.changeState(Idle)
	}
}

func (m *Map) changeState(state State) {
	if m.state == state {
		return
	}
	prev := m.state
	if prev == Animation {
		cam := m.Camera()
		m.state = state
		if m.anim != nil {
			m.anim.Stop()
			m.anim = nil
		}
		m.applyCameraUpdate(cam)
	} else {
		m.state = state
	}
	if state == Idle {
		m.resetGesture()
	}
	m.log.Debug("state changed", "from", prev, "to", state)
	m.events.emit(StateChanged{Old: prev, New: state})
}

func (m *Map) cameraScale(scale float64) {
	old := m.Camera()
	scale = lo.Clamp(scale, m.minScale, m.maxScale)
	if camera.FuzzyEqual(m.vp.Scale, scale) {
		return
	}
	m.vp.Scale = scale
	m.applyCameraUpdate(old)
}

func (m *Map) cameraRotate(azimuth float64) {
	old := m.Camera()
	azimuth = normalizeAzimuth(azimuth)
	if camera.FuzzyEqual(m.vp.Azimuth, azimuth) {
		return
	}
	m.vp.Azimuth = azimuth
	m.applyCameraUpdate(old)
}

func (m *Map) cameraMove(center projection.Point) {
	old := m.Camera()
	center.X = lo.Clamp(center.X, m.sceneRect.Min.X, m.sceneRect.Max.X)
	center.Y = lo.Clamp(center.Y, m.sceneRect.Min.Y, m.sceneRect.Max.Y)
	if m.vp.Center == center {
		return
	}
	m.vp.Center = center
	m.applyCameraUpdate(old)
}

// normalizeAzimuth maps a into [0, 360).
func normalizeAzimuth(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}

func (m *Map) blockCameraUpdate() { m.blocked++ }

func (m *Map) unblockCameraUpdate() {
	if m.blocked > 0 {
		m.blocked--
	}
}

func (m *Map) applyCameraUpdate(old camera.State) {
	if m.blocked > 0 {
		return
	}
	cur := m.Camera()
	if old.Equal(cur) {
		return
	}
	m.metrics.CameraUpdates.Inc()
	for _, l := range m.layers {
		l.OnCamera(old, cur)
	}
	m.items.OnCamera(old, cur)
	m.events.emit(CameraChanged{Old: old, New: cur})
	m.Invalidate()
}

// AddLayer attaches l on top of the layer stack. Items always paint above
// every layer.
func (m *Map) AddLayer(l scene.Layer) {
	if slices.Contains(m.layers, l) {
		return
	}
	m.layers = append(m.layers, l)
	l.Attach(m)
	m.Invalidate()
}

// RemoveLayer detaches l, cancelling whatever it has in flight.
func (m *Map) RemoveLayer(l scene.Layer) {
	i := slices.Index(m.layers, l)
	if i < 0 {
		return
	}
	m.layers = slices.Delete(m.layers, i, i+1)
	l.Detach()
	m.Invalidate()
}

func (m *Map) Layers() []scene.Layer { return slices.Clone(m.layers) }

// Refresh makes every layer reprocess the camera.
func (m *Map) Refresh() {
	for _, l := range m.layers {
		l.Refresh()
	}
	m.items.Refresh()
}

// Close stops the animation and detaches all layers.
func (m *Map) Close() {
	m.StopAnimation()
	for _, l := range m.layers {
		l.Detach()
	}
	m.layers = nil
	m.items.Detach()
}

// Paint draws the layers, then the items.
func (m *Map) Paint(ops *op.Ops) {
	for _, l := range m.layers {
		l.Paint(ops, m.vp)
	}
	m.items.Paint(ops, m.vp)
}

func (m *Map) ScreenToProj(p f32.Point) projection.Point { return m.vp.ScreenToProj(p) }
func (m *Map) ProjToScreen(p projection.Point) f32.Point { return m.vp.ProjToScreen(p) }
func (m *Map) ScreenToGeo(p f32.Point) geo.Pos           { return m.proj.ProjToGeo(m.vp.ScreenToProj(p)) }
func (m *Map) GeoToScreen(pos geo.Pos) f32.Point         { return m.vp.ProjToScreen(m.proj.GeoToProj(pos)) }

// Search returns the items under a screen point, top-most first.
func (m *Map) Search(p f32.Point) []scene.ItemID {
	return m.items.Search(m.ScreenToProj(p))
}

func (m *Map) Select(id scene.ItemID) {
	m.withSelection(func() { m.items.Select(id) })
}

func (m *Map) Unselect(id scene.ItemID) {
	m.withSelection(func() { m.items.Unselect(id) })
}

func (m *Map) UnselectAll() {
	m.withSelection(m.items.UnselectAll)
}

func (m *Map) Selected() []scene.ItemID { return m.items.Selected() }

// withSelection runs fn and reports a selection change if it made one.
func (m *Map) withSelection(fn func()) {
	before := m.items.Selected()
	fn()
	after := m.items.Selected()
	if !slices.Equal(before, after) {
		m.events.emit(SelectionChanged{Selected: after})
	}
}
