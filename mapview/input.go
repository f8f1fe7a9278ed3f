package mapview

import (
	"image"
	"math"

	"gioui.org/f32"
	"gioui.org/io/key"
	"gioui.org/io/pointer"
	"github.com/olablt/gio-geoview/camera"
	"github.com/olablt/gio-geoview/projection"
	"github.com/olablt/gio-geoview/scene"
)

const (
	wheelAreaMargin = 10
	// WheelUnit is the wheel delta of one notch.
	WheelUnit = 120.0
	// MinSelection is the size a selection rectangle must exceed on both
	// axes to count as a selection rather than a click.
	MinSelection = 5
)

var (
	wheelZoomIn  = math.Pow(2, 1/2.0)
	wheelZoomOut = math.Pow(2, 1/1.5)
)

// gesture is the per gesture state of a map, reset whenever it becomes
// idle.
type gesture struct {
	wheelArea   image.Rectangle
	wheelAnchor projection.Point
	wheelBest   float64
	moveAnchor  projection.Point
	moving      scene.ItemID
	selStart    f32.Point
	selEnd      f32.Point
	tooltip     string
	hoverPos    f32.Point
}

func (m *Map) resetGesture() {
	m.gesture = gesture{wheelBest: m.minScale, tooltip: m.tooltip, hoverPos: m.hoverPos}
}

func screenPoint(p f32.Point) image.Point {
	return image.Pt(int(math.Round(float64(p.X))), int(math.Round(float64(p.Y))))
}

// SelectionRect returns the rubber band in screen pixels while a
// selection is being dragged.
func (m *Map) SelectionRect() (image.Rectangle, bool) {
	if m.state != SelectionRect {
		return image.Rectangle{}, false
	}
	r := image.Rectangle{Min: screenPoint(m.selStart), Max: screenPoint(m.selEnd)}.Canon()
	return r, isSelection(r)
}

func isSelection(r image.Rectangle) bool {
	return r.Dx() > MinSelection && r.Dy() > MinSelection
}

// Wheel zooms around pos. delta is in WheelUnit steps per notch, positive
// zooming in.
func (m *Map) Wheel(pos f32.Point, delta float64) {
	if !m.actions.Has(ActionZoomWheel) {
		m.changeState(Idle)
		return
	}
	p := screenPoint(pos)
	if m.state == WheelZoom && !p.In(m.wheelArea) {
		m.changeState(Idle)
	}
	if m.state != WheelZoom {
		m.changeState(WheelZoom)
		m.wheelArea = image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))}.Inset(-wheelAreaMargin)
		m.wheelAnchor = m.ScreenToProj(pos)
		m.wheelBest = m.vp.Scale
	} else if m.wheelBest < m.vp.Scale {
		m.wheelAnchor = m.ScreenToProj(pos)
		m.wheelBest = m.vp.Scale
	}

	old := m.Camera()
	m.blockCameraUpdate()
	scale := m.vp.Scale
	switch {
	case delta > 0:
		scale *= math.Pow(wheelZoomIn, delta/WheelUnit)
	case delta < 0:
		scale /= math.Pow(wheelZoomOut, -delta/WheelUnit)
	}
	m.cameraScale(scale)

	d := m.ScreenToProj(pos).Sub(m.wheelAnchor)
	if math.Abs(d.X) > 1e-12 || math.Abs(d.Y) > 1e-12 {
		m.cameraMove(m.vp.Center.Sub(d))
	}
	m.unblockCameraUpdate()
	m.applyCameraUpdate(old)
}

// Press handles a button press. The primary button drags the map, or an
// item with Alt held; the secondary button starts a selection rectangle.
func (m *Map) Press(pos f32.Point, btn pointer.Buttons, mods key.Modifiers) {
	m.objectClick(pos, btn, mods)
	switch {
	case btn == pointer.ButtonPrimary && mods == key.ModAlt:
		m.startMovingObject(pos)
	case btn == pointer.ButtonPrimary && mods == 0:
		m.startMoving(pos)
	case btn == pointer.ButtonSecondary:
		m.startSelectionRect(pos)
	}
}

// Move handles cursor motion, with or without a button held.
func (m *Map) Move(pos f32.Point) {
	switch m.state {
	case WheelZoom:
		m.moveForWheel(pos)
	case MovingMap:
		m.moveMap(pos)
	case MovingObjects:
		m.moveObject(pos)
	case SelectionRect:
		m.moveForRect(pos)
	case Idle:
		m.hover(pos)
	}
}

// Release ends the current gesture.
func (m *Map) Release(pos f32.Point, mods key.Modifiers) {
	switch m.state {
	case MovingObjects:
		m.stopMovingObject(pos)
	case SelectionRect:
		if r, ok := m.SelectionRect(); ok {
			m.stopSelectionRect(r, mods)
		} else {
			m.showMenu(pos)
		}
	default:
		m.changeState(Idle)
	}
}

// DoubleClick clears the selection and double clicks the item under pos.
func (m *Map) DoubleClick(pos f32.Point, btn pointer.Buttons, mods key.Modifiers) {
	m.unselectAllGesture()
	m.objectDoubleClick(pos, btn)
}

// Cancel abandons the current gesture. Animations keep running.
func (m *Map) Cancel() {
	if m.state != Animation {
		m.changeState(Idle)
	}
}

func (m *Map) startMoving(pos f32.Point) {
	if !m.actions.Has(ActionMove) {
		m.changeState(Idle)
		return
	}
	m.changeState(MovingMap)
	m.moveAnchor = m.ScreenToProj(pos)
}

func (m *Map) moveMap(pos f32.Point) {
	if !m.actions.Has(ActionMove) {
		m.changeState(Idle)
		return
	}
	d := m.moveAnchor.Sub(m.ScreenToProj(pos))
	m.cameraMove(m.vp.Center.Add(d))
}

func (m *Map) moveForWheel(pos f32.Point) {
	if !m.actions.Has(ActionZoomWheel) || !screenPoint(pos).In(m.wheelArea) {
		m.changeState(Idle)
	}
}

func (m *Map) startMovingObject(pos f32.Point) {
	if !m.actions.Has(ActionMoveObjects) {
		m.changeState(Idle)
		return
	}
	p := m.ScreenToProj(pos)
	hits := m.items.Search(p)
	if len(hits) == 0 {
		return
	}
	id := hits[0]
	d, _ := m.items.Get(id)
	mover, ok := d.(scene.Mover)
	if !ok || !m.items.Flags(id).Has(scene.Movable) {
		m.changeState(Idle)
		return
	}
	m.changeState(MovingObjects)
	m.moving = id
	mover.StartMove(p)
}

func (m *Map) mover() (scene.Mover, bool) {
	d, ok := m.items.Get(m.moving)
	if !ok {
		return nil, false
	}
	mover, ok := d.(scene.Mover)
	return mover, ok
}

func (m *Map) moveObject(pos f32.Point) {
	mover, ok := m.mover()
	if !m.actions.Has(ActionMoveObjects) || !ok {
		m.changeState(Idle)
		return
	}
	mover.MoveTo(m.ScreenToProj(pos))
	m.Invalidate()
}

func (m *Map) stopMovingObject(pos f32.Point) {
	if mover, ok := m.mover(); ok {
		mover.StopMove(m.ScreenToProj(pos))
		m.Invalidate()
	}
	m.changeState(Idle)
}

func (m *Map) startSelectionRect(pos f32.Point) {
	if !m.actions.Has(ActionSelection) && !m.actions.Has(ActionZoomRect) {
		m.changeState(Idle)
		return
	}
	m.changeState(SelectionRect)
	m.selStart, m.selEnd = pos, pos
}

func (m *Map) moveForRect(pos f32.Point) {
	if !m.actions.Has(ActionSelection) && !m.actions.Has(ActionZoomRect) {
		m.changeState(Idle)
		return
	}
	m.selEnd = pos
	m.Invalidate()
}

func (m *Map) stopSelectionRect(r image.Rectangle, mods key.Modifiers) {
	m.changeState(Idle)
	switch mods {
	case 0:
		m.zoomArea(r)
	case key.ModCtrl, key.ModShift:
		m.selectByRect(r, mods)
	}
}

// zoomArea animates the camera so that the screen rect r fills the view.
func (m *Map) zoomArea(r image.Rectangle) {
	if !m.actions.Has(ActionZoomRect) {
		m.changeState(Idle)
		return
	}
	target := m.vp.ScreenRectToProj(rectF(r))
	cam := m.Camera()
	cur := cam.ProjRect()
	k := min(math.Abs(cur.Width()/target.Width()), math.Abs(cur.Height()/target.Height()))
	anim := camera.NewSimple(m, camera.NewActions(cam).ScaleBy(k).MoveTo(target.Center()), nil)
	anim.SetDuration(ZoomAreaDuration)
	m.startAnimation(anim, "zoom_area")
}

func (m *Map) selectByRect(r image.Rectangle, mods key.Modifiers) {
	if !m.actions.Has(ActionSelection) {
		m.changeState(Idle)
		return
	}
	m.withSelection(func() {
		if mods == key.ModShift {
			m.items.UnselectAll()
		}
		for _, id := range m.items.SearchRect(m.vp.ScreenRectToProj(rectF(r))) {
			m.items.SetSelected(id, !m.items.IsSelected(id))
		}
	})
}

func (m *Map) objectClick(pos f32.Point, btn pointer.Buttons, mods key.Modifiers) {
	if btn != pointer.ButtonPrimary {
		return
	}
	p := m.ScreenToProj(pos)
	hits := m.items.Search(p)
	if len(hits) == 0 {
		return
	}
	id := hits[0]
	flags := m.items.Flags(id)
	if m.actions.Has(ActionSelection) && flags.Has(scene.Selectable) {
		was := m.items.IsSelected(id)
		m.withSelection(func() {
			switch mods {
			case 0:
				m.items.UnselectAll()
				m.items.SetSelected(id, !was)
			case key.ModCtrl, key.ModShift:
				m.items.SetSelected(id, !was)
			}
		})
	}
	if flags.Has(scene.Clickable) {
		if d, ok := m.items.Get(id); ok {
			if c, ok := d.(scene.Clicker); ok {
				c.Click(p)
			}
		}
		m.events.emit(ItemClicked{ID: id, Pos: p})
	}
}

func (m *Map) objectDoubleClick(pos f32.Point, btn pointer.Buttons) {
	if btn != pointer.ButtonPrimary {
		return
	}
	p := m.ScreenToProj(pos)
	hits := m.items.Search(p)
	if len(hits) == 0 {
		return
	}
	id := hits[0]
	if !m.items.Flags(id).Has(scene.Clickable) {
		return
	}
	if d, ok := m.items.Get(id); ok {
		if c, ok := d.(scene.Clicker); ok {
			c.DoubleClick(p)
		}
	}
	m.events.emit(ItemDoubleClicked{ID: id, Pos: p})
}

func (m *Map) unselectAllGesture() {
	if !m.actions.Has(ActionSelection) {
		m.changeState(Idle)
		return
	}
	m.UnselectAll()
	m.changeState(Idle)
}

func (m *Map) showMenu(pos f32.Point) {
	if !m.actions.Has(ActionContextMenu) {
		m.changeState(Idle)
		return
	}
	m.changeState(Idle)
	m.events.emit(ContextMenu{Screen: pos, Pos: m.ScreenToProj(pos)})
}

// hover reports the tooltip of the top-most item under pos.
func (m *Map) hover(pos f32.Point) {
	if !m.actions.Has(ActionTooltip) {
		return
	}
	m.hoverPos = pos
	p := m.ScreenToProj(pos)
	text := ""
	if hits := m.items.Search(p); len(hits) > 0 {
		d, _ := m.items.Get(hits[0])
		if t, ok := d.(scene.Tooltipper); ok {
			text = t.Tooltip(p)
		}
	}
	if text == m.tooltip {
		return
	}
	m.tooltip = text
	m.events.emit(Tooltip{Screen: pos, Text: text})
}

// Tooltip returns the text of the last hovered item.
func (m *Map) Tooltip() string { return m.tooltip }

func rectF(r image.Rectangle) projection.Rect {
	return projection.Rect{
		Min: projection.Pt(float64(r.Min.X), float64(r.Min.Y)),
		Max: projection.Pt(float64(r.Max.X), float64(r.Max.Y)),
	}
}
