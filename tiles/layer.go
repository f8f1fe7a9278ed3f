package tiles

import (
	"cmp"
	"errors"
	"image"
	"log/slog"
	"math"
	"slices"
	"time"

	"gioui.org/op"
	"gioui.org/op/paint"
	"github.com/olablt/gio-geoview/camera"
	"github.com/olablt/gio-geoview/env"
	"github.com/olablt/gio-geoview/geo"
	"github.com/olablt/gio-geoview/internal/metrics"
	"github.com/olablt/gio-geoview/scene"
	"github.com/samber/lo"
)

// TileState is the index state of a tile address.
type TileState int

const (
	Absent TileState = iota
	Pending
	Resident
)

func (s TileState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resident:
		return "resident"
	default:
		return "absent"
	}
}

// entry is pending while tile is nil. ticket identifies the request that
// created it.
type entry struct {
	tile   *Tile
	ticket uint64
}

// Layer keeps a pyramid of tiles from one source in step with the camera
// of the map it is attached to. All methods run on the map's owner loop.
type Layer struct {
	name    string
	src     Source
	env     *env.Env
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	host    scene.Host
	profile Profile
	visible bool
	opacity float32

	curZoom  int
	curRect  image.Rectangle
	index    map[int]map[geo.TilePos]*entry
	lastAnim time.Time
	ticket   uint64
	resident int
	pending  int
}

var _ scene.Layer = (*Layer)(nil)

type LayerOption func(*Layer)

func WithProfile(p Profile) LayerOption {
	return func(l *Layer) { l.profile = p }
}

// WithClock replaces time.Now for the animation throttle.
func WithClock(now func() time.Time) LayerOption {
	return func(l *Layer) { l.now = now }
}

// WithName overrides the layer name used in logs and metrics. It defaults
// to the source name. Layers sharing a name get a #N suffix so their
// gauges stay apart.
func WithName(name string) LayerOption {
	return func(l *Layer) { l.name = name }
}

func NewLayer(src Source, e *env.Env, opts ...LayerOption) *Layer {
	l := &Layer{
		name:    src.Name(),
		src:     src,
		env:     e,
		metrics: e.Metrics,
		now:     time.Now,
		profile: DefaultProfile(),
		visible: true,
		opacity: 1,
		curZoom: -1,
		index:   make(map[int]map[geo.TilePos]*entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.name = l.metrics.LayerLabel(l.name)
	l.log = e.Logger.With("component", "tiles", "layer", l.name)
	return l
}

func (l *Layer) Name() string     { return l.name }
func (l *Layer) Source() Source   { return l.src }
func (l *Layer) Profile() Profile { return l.profile }

// SetProfile replaces the tunables and evicts tiles outside the new zoom
// window right away.
func (l *Layer) SetProfile(p Profile) {
	l.profile = p
	l.log.Debug("profile changed",
		"margin_zoom_change", p.MarginWithZoomChange,
		"margin_no_zoom_change", p.MarginNoZoomChange,
		"animation_delay", p.AnimationUpdateDelay,
		"levels_below", p.VisibleZoomLevelsBelow,
		"levels_above", p.VisibleZoomLevelsAbove,
		"updates_during_animation", p.CameraUpdatesDuringAnimation,
	)
	if l.curZoom < 0 {
		return
	}
	for _, z := range l.zooms() {
		for _, pos := range l.positions(z) {
			l.removeForPerformance(pos)
		}
	}
}

func (l *Layer) Visible() bool { return l.visible }

// SetVisible hides or shows the layer. A hidden layer ignores the camera
// and keeps its tiles.
func (l *Layer) SetVisible(visible bool) {
	if l.visible == visible {
		return
	}
	l.visible = visible
	if visible {
		l.processCamera(false)
	}
	l.invalidate()
}

func (l *Layer) Opacity() float32 { return l.opacity }

func (l *Layer) SetOpacity(o float32) {
	l.opacity = max(0, min(1, o))
	l.invalidate()
}

func (l *Layer) Attach(h scene.Host) {
	l.host = h
	l.processCamera(false)
}

// Detach cancels every pending request, releases every resident tile and
// resets the layer.
func (l *Layer) Detach() {
	l.clean()
	l.host = nil
}

func (l *Layer) clean() {
	for _, z := range l.zooms() {
		for _, pos := range l.positions(z) {
			l.removeTile(pos)
		}
	}
	l.curZoom = -1
	l.curRect = image.Rectangle{}
	l.index = make(map[int]map[geo.TilePos]*entry)
	l.lastAnim = time.Time{}
}

func (l *Layer) OnCamera(oldState, newState camera.State) {
	if oldState.Equal(newState) {
		return
	}
	if newState.Animation() {
		if !l.profile.CameraUpdatesDuringAnimation {
			return
		}
		now := l.now()
		switch {
		case l.lastAnim.IsZero():
			l.lastAnim = now
		case now.Sub(l.lastAnim) < l.profile.AnimationUpdateDelay:
			return
		default:
			l.lastAnim = now
		}
	} else {
		l.lastAnim = time.Time{}
	}
	l.processCamera(false)
}

// Refresh reprocesses the camera and requests tiles missing from the
// active rect, such as ones whose fetch failed.
func (l *Layer) Refresh() {
	l.processCamera(true)
}

// ScaleToZoom returns the tile zoom level matching a camera scale. Scale 1
// is one projected meter per pixel, zoom 17.
func ScaleToZoom(scale float64) int {
	return int(math.Round(17 - math.Log2(1/scale)))
}

// ZoomToScale is the camera scale at which tiles of zoom are shown at
// their native size.
func ZoomToScale(zoom int) float64 {
	return math.Exp2(float64(zoom - 17))
}

func (l *Layer) processCamera(force bool) {
	if l.host == nil || !l.visible {
		return
	}
	proj := l.host.Projection()
	cam := l.host.Camera()
	area := cam.ProjRect().Intersect(proj.BoundaryProjRect())
	if area.Empty() {
		return
	}
	geoArea := proj.ProjRectToGeo(area)

	ideal := ScaleToZoom(cam.Scale())
	zoom := lo.Clamp(ideal, l.src.MinZoom(), l.src.MaxZoom())
	if zoom != ideal {
		return
	}

	zoomChanged := l.curZoom != zoom
	l.curZoom = zoom

	margin := l.profile.MarginNoZoomChange
	if zoomChanged {
		margin = l.profile.MarginWithZoomChange
	}
	n := 1 << zoom
	tl := geo.TileAt(zoom, geoArea.TopLeft()).Point()
	br := geo.TileAt(zoom, geoArea.BottomRight()).Point()
	active := image.Rectangle{Min: tl, Max: br.Add(image.Pt(1, 1))}.
		Inset(-margin).
		Intersect(image.Rect(0, 0, n, n))
	rectChanged := !zoomChanged && l.curRect != active
	l.curRect = active

	if !zoomChanged && !rectChanged {
		if force {
			l.fill()
		}
		return
	}

	if zoomChanged {
		l.log.Debug("new active zoom", "zoom", zoom)
		for _, z := range l.zooms() {
			if z == zoom {
				for _, pos := range l.positions(z) {
					l.removeAllAbove(pos)
				}
				continue
			}
			for _, pos := range l.positions(z) {
				if l.State(pos) == Pending {
					l.log.Debug("cancel non-finished", "tile", pos)
					l.removeTile(pos)
					continue
				}
				if z < zoom {
					l.removeWhenCovered(pos)
				}
				l.removeForPerformance(pos)
			}
		}
	}

	if rectChanged {
		l.log.Debug("new active rect", "rect", active)
		for _, pos := range l.positions(zoom) {
			if !pos.Point().In(active) {
				l.log.Debug("delete out of view", "tile", pos)
				l.removeTile(pos)
			}
		}
	}

	l.fill()
}

// fill requests the missing tiles of the active rect, closest to its
// center first.
func (l *Layer) fill() {
	type candidate struct {
		pos  geo.TilePos
		dist float64
	}
	r := l.curRect
	cx := float64(r.Min.X+r.Max.X-1) / 2
	cy := float64(r.Min.Y+r.Max.Y-1) / 2
	var missing []candidate
	for x := r.Min.X; x < r.Max.X; x++ {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			pos := geo.NewTilePos(l.curZoom, x, y)
			if l.State(pos) != Absent {
				continue
			}
			missing = append(missing, candidate{pos, math.Hypot(float64(x)-cx, float64(y)-cy)})
		}
	}
	slices.SortFunc(missing, func(a, b candidate) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return a.pos.Compare(b.pos)
	})
	for _, c := range missing {
		l.request(c.pos)
	}
}

func (l *Layer) request(pos geo.TilePos) {
	l.ticket++
	ticket := l.ticket
	l.zoomIndex(pos.Zoom)[pos] = &entry{ticket: ticket}
	l.pending++
	l.syncGauges()
	l.metrics.TileRequests.WithLabelValues(l.name).Inc()
	l.log.Debug("request tile", "tile", pos)

	host := l.host
	l.src.Request(pos, func(r Reply) {
		host.Post(func() { l.onReply(ticket, r) })
	})
}

// onReply handles a source reply on the owner loop.
func (l *Layer) onReply(ticket uint64, r Reply) {
	e, ok := l.index[r.Pos.Zoom][r.Pos]
	if !ok || e.ticket != ticket || e.tile != nil {
		if r.Err == nil {
			l.metrics.TileStale.WithLabelValues(l.name).Inc()
		}
		return
	}
	if r.Err != nil {
		l.dropEntry(r.Pos)
		if errors.Is(r.Err, ErrCanceled) {
			l.log.Debug("tile canceled", "tile", r.Pos)
			return
		}
		l.metrics.TileFailed.WithLabelValues(l.name).Inc()
		l.log.Error("tile fetch failed", "tile", r.Pos, "err", r.Err)
		return
	}
	if r.Pos.Zoom != l.curZoom || !r.Pos.Point().In(l.curRect) {
		l.dropEntry(r.Pos)
		l.metrics.TileStale.WithLabelValues(l.name).Inc()
		return
	}

	l.log.Debug("add tile", "tile", r.Pos)
	e.tile = newTile(r.Pos, r.Image, l.host.Projection())
	l.pending--
	l.resident++
	l.syncGauges()
	l.metrics.TileLoaded.WithLabelValues(l.name).Inc()
	l.invalidate()

	l.removeAllAbove(r.Pos)
	for z := l.src.MinZoom(); z < r.Pos.Zoom; z++ {
		if parent, ok := r.Pos.Parent(z); ok && l.State(parent) != Absent {
			l.removeWhenCovered(parent)
		}
	}
}

// removeAllAbove removes every finer tile inside pos.
func (l *Layer) removeAllAbove(pos geo.TilePos) {
	for _, z := range l.zooms() {
		if z <= pos.Zoom {
			continue
		}
		for _, target := range l.positions(z) {
			if pos.Contains(target) {
				l.log.Debug("remove above", "tile", target, "below", pos)
				l.removeTile(target)
			}
		}
	}
}

// removeWhenCovered removes the coarser tile pos once all of its
// descendants at the current zoom are resident.
func (l *Layer) removeWhenCovered(pos geo.TilePos) {
	if pos.Zoom >= l.curZoom {
		return
	}
	needed := 1 << (2 * (l.curZoom - pos.Zoom))
	span := pos.Span(l.curZoom)
	count := 0
	for p, e := range l.index[l.curZoom] {
		if e.tile != nil && p.Point().In(span) {
			count++
		}
	}
	if count == needed {
		l.log.Debug("deleted by full coverage", "tile", pos)
		l.removeTile(pos)
		return
	}
	l.log.Debug("partially covered", "tile", pos, "covered", count, "needed", needed)
}

// removeForPerformance evicts pos when its zoom is outside the window
// kept around the current zoom.
func (l *Layer) removeForPerformance(pos geo.TilePos) {
	minZoom := l.curZoom - l.profile.VisibleZoomLevelsBelow
	maxZoom := l.curZoom + l.profile.VisibleZoomLevelsAbove
	if pos.Zoom < minZoom || pos.Zoom > maxZoom {
		l.log.Debug("delete for performance", "tile", pos, "min", minZoom, "max", maxZoom)
		l.removeTile(pos)
	}
}

// removeTile drops pos from the index, cancelling it when pending.
func (l *Layer) removeTile(pos geo.TilePos) {
	e, ok := l.index[pos.Zoom][pos]
	if !ok {
		return
	}
	l.dropEntry(pos)
	if e.tile == nil {
		l.log.Debug("cancel tile", "tile", pos)
		l.metrics.TileCanceled.WithLabelValues(l.name).Inc()
		l.src.Cancel(pos)
		return
	}
	l.log.Debug("remove tile", "tile", pos)
	l.metrics.TileEvicted.WithLabelValues(l.name).Inc()
	e.tile.release()
	l.invalidate()
}

func (l *Layer) dropEntry(pos geo.TilePos) {
	zi := l.index[pos.Zoom]
	e, ok := zi[pos]
	if !ok {
		return
	}
	delete(zi, pos)
	if len(zi) == 0 {
		delete(l.index, pos.Zoom)
	}
	if e.tile == nil {
		l.pending--
	} else {
		l.resident--
	}
	l.syncGauges()
}

func (l *Layer) zoomIndex(zoom int) map[geo.TilePos]*entry {
	zi, ok := l.index[zoom]
	if !ok {
		zi = make(map[geo.TilePos]*entry)
		l.index[zoom] = zi
	}
	return zi
}

// zooms returns the zoom levels present in the index, ascending.
func (l *Layer) zooms() []int {
	zs := lo.Keys(l.index)
	slices.Sort(zs)
	return zs
}

// positions returns a sorted snapshot of the addresses at zoom.
func (l *Layer) positions(zoom int) []geo.TilePos {
	ps := lo.Keys(l.index[zoom])
	slices.SortFunc(ps, geo.TilePos.Compare)
	return ps
}

func (l *Layer) syncGauges() {
	l.metrics.TilesResident.WithLabelValues(l.name).Set(float64(l.resident))
	l.metrics.TilesPending.WithLabelValues(l.name).Set(float64(l.pending))
}

func (l *Layer) invalidate() {
	if l.host != nil {
		l.host.Invalidate()
	}
}

// CurrentZoom is -1 until the first camera has been processed.
func (l *Layer) CurrentZoom() int { return l.curZoom }

// CurrentRect is the active tile index rectangle at CurrentZoom.
func (l *Layer) CurrentRect() image.Rectangle { return l.curRect }

func (l *Layer) State(pos geo.TilePos) TileState {
	e, ok := l.index[pos.Zoom][pos]
	switch {
	case !ok:
		return Absent
	case e.tile == nil:
		return Pending
	default:
		return Resident
	}
}

// Tiles returns the indexed addresses at zoom, sorted.
func (l *Layer) Tiles(zoom int) []geo.TilePos {
	return l.positions(zoom)
}

// Zooms returns the zoom levels holding tiles, ascending.
func (l *Layer) Zooms() []int {
	return l.zooms()
}

// Len returns the number of resident and pending tiles.
func (l *Layer) Len() (resident, pending int) {
	return l.resident, l.pending
}

// Paint draws resident tiles, coarse levels first.
func (l *Layer) Paint(ops *op.Ops, vp camera.Viewport) {
	if !l.visible || l.opacity == 0 {
		return
	}
	if l.opacity < 1 {
		defer paint.PushOpacity(ops, l.opacity).Pop()
	}
	view := vp.ProjRect()
	for _, z := range l.zooms() {
		for _, e := range l.index[z] {
			if e.tile == nil || !e.tile.ProjRect().Intersects(view) {
				continue
			}
			e.tile.Paint(ops, vp, l.env.DrawDebug)
		}
	}
}
