package mapview

import (
	"image"
	"image/color"
	"time"

	"gioui.org/f32"
	"gioui.org/io/event"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget/material"
)

var (
	defaultBackground = color.NRGBA{R: 0xd3, G: 0xd3, B: 0xd3, A: 0xff}
	rubberFill        = color.NRGBA{R: 0x33, G: 0x66, B: 0xcc, A: 0x40}
	rubberBorder      = color.NRGBA{R: 0x33, G: 0x66, B: 0xcc, A: 0xc0}
	tooltipBackground = color.NRGBA{R: 0xff, G: 0xff, B: 0xe1, A: 0xf0}
)

// MapView is the Gio widget showing a Map and feeding it pointer input.
type MapView struct {
	Map *Map
	// Theme is used for tooltips. Tooltips are not drawn without one.
	Theme      *material.Theme
	Background color.NRGBA
	// ScrollStep is the scroll distance Gio reports for one wheel notch.
	ScrollStep float32
	// DoubleClick is the longest interval between two presses of a
	// double click.
	DoubleClick time.Duration

	lastPress    time.Duration
	lastPressPos f32.Point
	lastButtons  pointer.Buttons
}

// NewMapView returns a widget over m with default look and feel.
func NewMapView(m *Map, th *material.Theme) *MapView {
	return &MapView{
		Map:         m,
		Theme:       th,
		Background:  defaultBackground,
		ScrollStep:  10,
		DoubleClick: 400 * time.Millisecond,
	}
}

func (mv *MapView) Layout(gtx layout.Context) layout.Dimensions {
	m := mv.Map
	size := gtx.Constraints.Max
	m.SetSize(size)
	mv.processEvents(gtx)
	if m.Update(gtx.Now) {
		gtx.Execute(op.InvalidateCmd{})
	}

	defer clip.Rect{Max: size}.Push(gtx.Ops).Pop()
	paint.Fill(gtx.Ops, mv.Background)
	event.Op(gtx.Ops, mv)
	switch m.State() {
	case MovingMap, MovingObjects:
		pointer.CursorGrabbing.Add(gtx.Ops)
	case SelectionRect:
		pointer.CursorCrosshair.Add(gtx.Ops)
	}

	m.Paint(gtx.Ops)
	mv.paintRubberBand(gtx)
	mv.paintTooltip(gtx)

	return layout.Dimensions{Size: size}
}

func (mv *MapView) processEvents(gtx layout.Context) {
	m := mv.Map
	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target:  mv,
			Kinds:   pointer.Scroll | pointer.Drag | pointer.Move | pointer.Press | pointer.Release | pointer.Cancel,
			ScrollY: pointer.ScrollRange{Min: -1e6, Max: 1e6},
		})
		if !ok {
			break
		}
		e, ok := ev.(pointer.Event)
		if !ok {
			continue
		}
		switch e.Kind {
		case pointer.Press:
			btn := pressedButton(e.Buttons)
			if mv.isDoubleClick(e, btn) {
				mv.lastPress = 0
				m.DoubleClick(e.Position, btn, e.Modifiers)
				continue
			}
			mv.lastPress, mv.lastPressPos, mv.lastButtons = e.Time, e.Position, btn
			m.Press(e.Position, btn, e.Modifiers)
		case pointer.Drag, pointer.Move:
			m.Move(e.Position)
		case pointer.Release:
			m.Release(e.Position, e.Modifiers)
		case pointer.Scroll:
			if e.Scroll.Y != 0 && mv.ScrollStep > 0 {
				m.Wheel(e.Position, -float64(e.Scroll.Y/mv.ScrollStep)*WheelUnit)
			}
		case pointer.Cancel:
			m.Cancel()
		}
	}
}

func pressedButton(b pointer.Buttons) pointer.Buttons {
	switch {
	case b.Contain(pointer.ButtonPrimary):
		return pointer.ButtonPrimary
	case b.Contain(pointer.ButtonSecondary):
		return pointer.ButtonSecondary
	default:
		return b
	}
}

func (mv *MapView) isDoubleClick(e pointer.Event, btn pointer.Buttons) bool {
	if mv.lastPress == 0 || btn != mv.lastButtons {
		return false
	}
	d := e.Position.Sub(mv.lastPressPos)
	return e.Time-mv.lastPress <= mv.DoubleClick && d.X*d.X+d.Y*d.Y <= 16
}

func (mv *MapView) paintRubberBand(gtx layout.Context) {
	r, ok := mv.Map.SelectionRect()
	if !ok {
		return
	}
	rect := clip.Rect(r)
	paint.FillShape(gtx.Ops, rubberFill, rect.Op())
	paint.FillShape(gtx.Ops, rubberBorder, clip.Stroke{Path: rect.Path(), Width: 1}.Op())
}

func (mv *MapView) paintTooltip(gtx layout.Context) {
	text := mv.Map.Tooltip()
	if text == "" || mv.Theme == nil || mv.Map.State() != Idle {
		return
	}
	pos := mv.Map.hoverPos
	defer op.Offset(image.Pt(int(pos.X)+12, int(pos.Y)+16)).Push(gtx.Ops).Pop()

	gtx.Constraints.Min = image.Point{}
	macro := op.Record(gtx.Ops)
	dims := layout.UniformInset(unit.Dp(4)).Layout(gtx, material.Caption(mv.Theme, text).Layout)
	call := macro.Stop()
	paint.FillShape(gtx.Ops, tooltipBackground, clip.Rect{Max: dims.Size}.Op())
	call.Add(gtx.Ops)
}
