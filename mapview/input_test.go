package mapview

import (
	"image"
	"math"
	"testing"

	"gioui.org/f32"
	"gioui.org/io/key"
	"gioui.org/io/pointer"
	"github.com/olablt/gio-geoview/projection"
	"github.com/olablt/gio-geoview/scene"
)

func screenBox(m *Map, x0, y0, x1, y1 float32) *scene.Box {
	return scene.NewBox(projection.RectFromPoints(
		m.ScreenToProj(f32.Pt(x0, y0)),
		m.ScreenToProj(f32.Pt(x1, y1)),
	))
}

func TestWheelKeepsAnchor(t *testing.T) {
	m, _ := newTestMap(t)
	pos := f32.Pt(100, 120)
	anchor := m.ScreenToProj(pos)
	scale := m.Camera().Scale()

	m.Wheel(pos, WheelUnit)
	if m.State() != WheelZoom {
		t.Fatalf("state = %v, want wheel", m.State())
	}
	if got, want := m.Camera().Scale(), scale*math.Sqrt2; math.Abs(got-want) > 1e-12 {
		t.Errorf("scale = %v, want %v", got, want)
	}
	if got := m.ScreenToProj(pos); !near(got, anchor, 1e-6) {
		t.Errorf("anchor moved: %v -> %v", anchor, got)
	}

	m.Wheel(pos, -WheelUnit)
	if got, want := m.Camera().Scale(), scale*math.Sqrt2/math.Pow(2, 1/1.5); math.Abs(got-want) > 1e-12 {
		t.Errorf("scale = %v, want %v", got, want)
	}
	if got := m.ScreenToProj(pos); !near(got, anchor, 1e-6) {
		t.Errorf("anchor moved: %v -> %v", anchor, got)
	}
}

func TestWheelDeadZone(t *testing.T) {
	m, _ := newTestMap(t)
	m.Wheel(f32.Pt(100, 100), WheelUnit)

	m.Move(f32.Pt(108, 95))
	if m.State() != WheelZoom {
		t.Fatalf("state = %v after small move, want wheel", m.State())
	}
	m.Move(f32.Pt(140, 100))
	if m.State() != Idle {
		t.Fatalf("state = %v after leaving the dead zone, want idle", m.State())
	}

	m.Wheel(f32.Pt(100, 100), WheelUnit)
	pos := f32.Pt(400, 300)
	anchor := m.ScreenToProj(pos)
	// a notch outside the zone starts a new gesture anchored there
	m.Wheel(pos, WheelUnit)
	if got := m.ScreenToProj(pos); !near(got, anchor, 1e-6) {
		t.Errorf("new anchor moved: %v -> %v", anchor, got)
	}
}

func TestWheelClampedAtMaxScale(t *testing.T) {
	m, _ := newTestMap(t)
	for i := 0; i < 40; i++ {
		m.Wheel(f32.Pt(320, 240), WheelUnit)
	}
	if got := m.Camera().Scale(); got != DefaultMaxScale {
		t.Errorf("scale = %v, want %v", got, DefaultMaxScale)
	}
}

func TestDragPans(t *testing.T) {
	m, _ := newTestMap(t)
	start := f32.Pt(100, 100)
	anchor := m.ScreenToProj(start)

	m.Press(start, pointer.ButtonPrimary, 0)
	if m.State() != MovingMap {
		t.Fatalf("state = %v, want moving_map", m.State())
	}
	for _, p := range []f32.Point{{X: 120, Y: 110}, {X: 150, Y: 130}, {X: 180, Y: 90}} {
		m.Move(p)
		if got := m.ScreenToProj(p); !near(got, anchor, 1e-6) {
			t.Fatalf("point under cursor = %v, want %v", got, anchor)
		}
	}
	m.Release(f32.Pt(180, 90), 0)
	if m.State() != Idle {
		t.Errorf("state = %v, want idle", m.State())
	}
}

func TestSelectionRectZooms(t *testing.T) {
	m, clock := newTestMap(t)
	scale := m.Camera().Scale()

	m.Press(f32.Pt(100, 100), pointer.ButtonSecondary, 0)
	m.Move(f32.Pt(300, 250))
	r, ok := m.SelectionRect()
	if !ok || r != image.Rect(100, 100, 300, 250) {
		t.Fatalf("selection rect = %v, %v", r, ok)
	}
	target := m.ScreenToProj(f32.Pt(200, 175))

	m.Release(f32.Pt(300, 250), 0)
	if m.State() != Animation {
		t.Fatalf("state = %v, want animation", m.State())
	}
	if m.Update(clock.advance(ZoomAreaDuration)) {
		t.Fatal("zoom animation still running")
	}
	cam := m.Camera()
	if got := cam.Scale(); math.Abs(got-scale*3.2) > 1e-9 {
		t.Errorf("scale = %v, want %v", got, scale*3.2)
	}
	if !near(cam.ProjCenter(), target, 1e-6) {
		t.Errorf("center = %v, want %v", cam.ProjCenter(), target)
	}
}

func TestSmallSelectionOpensMenu(t *testing.T) {
	m, _ := newTestMap(t)
	rec := record(m)

	m.Press(f32.Pt(100, 100), pointer.ButtonSecondary, 0)
	m.Move(f32.Pt(103, 120))
	if _, ok := m.SelectionRect(); ok {
		t.Fatal("narrow rect counted as a selection")
	}
	m.Release(f32.Pt(103, 120), 0)

	menus := eventsOf[ContextMenu](rec)
	if len(menus) != 1 || menus[0].Screen != f32.Pt(103, 120) {
		t.Fatalf("menu events = %v", menus)
	}
	if m.State() != Idle {
		t.Errorf("state = %v, want idle", m.State())
	}

	m.SetMouseAction(ActionContextMenu, false)
	m.Press(f32.Pt(100, 100), pointer.ButtonSecondary, 0)
	m.Release(f32.Pt(100, 100), 0)
	if n := len(eventsOf[ContextMenu](rec)); n != 1 {
		t.Errorf("menu events = %d with the action disabled, want 1", n)
	}
}

func TestSelectByRect(t *testing.T) {
	m, _ := newTestMap(t)
	a := m.Items().Add(scene.Root, screenBox(m, 110, 110, 130, 130), scene.Selectable)
	b := m.Items().Add(scene.Root, screenBox(m, 210, 210, 230, 230), scene.Selectable)
	fixed := m.Items().Add(scene.Root, screenBox(m, 150, 150, 160, 160), 0)
	rec := record(m)

	drag := func(from, to f32.Point, mods key.Modifiers) {
		m.Press(from, pointer.ButtonSecondary, 0)
		m.Move(to)
		m.Release(to, mods)
	}

	drag(f32.Pt(100, 100), f32.Pt(200, 200), key.ModCtrl)
	if got := m.Selected(); len(got) != 1 || got[0] != a {
		t.Fatalf("selected = %v, want [%d]", got, a)
	}
	if m.Items().IsSelected(fixed) {
		t.Error("non selectable item selected")
	}

	drag(f32.Pt(100, 100), f32.Pt(250, 250), key.ModCtrl)
	if got := m.Selected(); len(got) != 1 || got[0] != b {
		t.Fatalf("ctrl toggle selected = %v, want [%d]", got, b)
	}

	drag(f32.Pt(100, 100), f32.Pt(200, 200), key.ModShift)
	if got := m.Selected(); len(got) != 1 || got[0] != a {
		t.Fatalf("shift selected = %v, want [%d]", got, a)
	}

	if n := len(eventsOf[SelectionChanged](rec)); n != 3 {
		t.Errorf("selection events = %d, want 3", n)
	}
	if m.State() != Idle {
		t.Errorf("state = %v, want idle", m.State())
	}
}

func TestItemClicks(t *testing.T) {
	m, _ := newTestMap(t)
	box := screenBox(m, 100, 100, 200, 200)
	var clicks, doubles int
	box.OnClick = func(projection.Point) { clicks++ }
	box.OnDoubleClick = func(projection.Point) { doubles++ }
	id := m.Items().Add(scene.Root, box, scene.Clickable|scene.Selectable)
	rec := record(m)

	pos := f32.Pt(150, 150)
	m.Press(pos, pointer.ButtonPrimary, 0)
	m.Release(pos, 0)
	if clicks != 1 {
		t.Errorf("clicks = %d, want 1", clicks)
	}
	if got := m.Selected(); len(got) != 1 || got[0] != id {
		t.Errorf("selected = %v", got)
	}
	if ev := eventsOf[ItemClicked](rec); len(ev) != 1 || ev[0].ID != id {
		t.Errorf("click events = %v", ev)
	}

	m.DoubleClick(pos, pointer.ButtonPrimary, 0)
	if doubles != 1 {
		t.Errorf("double clicks = %d, want 1", doubles)
	}
	if got := m.Selected(); len(got) != 0 {
		t.Errorf("double click kept selection %v", got)
	}
	if ev := eventsOf[ItemDoubleClicked](rec); len(ev) != 1 || ev[0].ID != id {
		t.Errorf("double click events = %v", ev)
	}

	m.Press(f32.Pt(400, 400), pointer.ButtonPrimary, 0)
	m.Release(f32.Pt(400, 400), 0)
	if clicks != 1 {
		t.Errorf("click outside the item reached it")
	}
}

func TestCtrlClickToggles(t *testing.T) {
	m, _ := newTestMap(t)
	a := m.Items().Add(scene.Root, screenBox(m, 100, 100, 150, 150), scene.Selectable)
	b := m.Items().Add(scene.Root, screenBox(m, 200, 200, 250, 250), scene.Selectable)

	click := func(p f32.Point, mods key.Modifiers) {
		m.Press(p, pointer.ButtonPrimary, mods)
		m.Release(p, mods)
	}
	click(f32.Pt(120, 120), 0)
	click(f32.Pt(220, 220), key.ModCtrl)
	if got := m.Selected(); len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("selected = %v, want [%d %d]", got, a, b)
	}
	click(f32.Pt(120, 120), key.ModCtrl)
	if got := m.Selected(); len(got) != 1 || got[0] != b {
		t.Fatalf("selected = %v, want [%d]", got, b)
	}
	click(f32.Pt(120, 120), 0)
	if got := m.Selected(); len(got) != 1 || got[0] != a {
		t.Fatalf("selected = %v, want [%d]", got, a)
	}
}

func TestMoveItem(t *testing.T) {
	m, _ := newTestMap(t)
	box := screenBox(m, 100, 100, 200, 200)
	m.Items().Add(scene.Root, box, scene.Movable)
	before := box.Rect
	center := m.Camera().ProjCenter()

	m.Press(f32.Pt(150, 150), pointer.ButtonPrimary, key.ModAlt)
	if m.State() != MovingObjects {
		t.Fatalf("state = %v, want moving_objects", m.State())
	}
	m.Move(f32.Pt(180, 150))
	m.Release(f32.Pt(200, 150), 0)
	if m.State() != Idle {
		t.Errorf("state = %v, want idle", m.State())
	}

	dx := 50 / m.Camera().Scale()
	if got := box.Rect.Min.X - before.Min.X; math.Abs(got-dx) > 1e-6 {
		t.Errorf("box moved %v, want %v", got, dx)
	}
	if box.Rect.Min.Y != before.Min.Y {
		t.Errorf("box moved vertically")
	}
	if m.Camera().ProjCenter() != center {
		t.Errorf("camera moved while dragging an item")
	}
}

func TestAltPressOnFixedItem(t *testing.T) {
	m, _ := newTestMap(t)
	m.Items().Add(scene.Root, screenBox(m, 100, 100, 200, 200), 0)
	m.Press(f32.Pt(150, 150), pointer.ButtonPrimary, key.ModAlt)
	if m.State() != Idle {
		t.Errorf("state = %v, want idle", m.State())
	}
}

func TestTooltip(t *testing.T) {
	m, _ := newTestMap(t)
	box := screenBox(m, 100, 100, 200, 200)
	box.Label = "warehouse"
	m.Items().Add(scene.Root, box, 0)
	rec := record(m)

	m.Move(f32.Pt(150, 150))
	m.Move(f32.Pt(160, 150))
	if m.Tooltip() != "warehouse" {
		t.Errorf("tooltip = %q", m.Tooltip())
	}
	m.Move(f32.Pt(300, 300))
	if m.Tooltip() != "" {
		t.Errorf("tooltip = %q after leaving", m.Tooltip())
	}
	tips := eventsOf[Tooltip](rec)
	if len(tips) != 2 || tips[0].Text != "warehouse" || tips[1].Text != "" {
		t.Errorf("tooltip events = %v", tips)
	}
}

func TestDisabledActions(t *testing.T) {
	m, _ := newTestMap(t, WithMouseActions(ActionNone))
	cam := m.Camera()

	m.Wheel(f32.Pt(100, 100), WheelUnit)
	m.Press(f32.Pt(100, 100), pointer.ButtonPrimary, 0)
	m.Move(f32.Pt(200, 200))
	m.Release(f32.Pt(200, 200), 0)
	m.Press(f32.Pt(100, 100), pointer.ButtonSecondary, 0)
	if m.State() != Idle {
		t.Errorf("state = %v, want idle", m.State())
	}
	if !m.Camera().Equal(cam) {
		t.Errorf("camera changed with every action disabled")
	}
	if got := m.MouseActions().String(); got != "none" {
		t.Errorf("actions = %q", got)
	}

	m.SetMouseAction(ActionMove, true)
	m.SetMouseAction(ActionZoomWheel, true)
	if got := m.MouseActions().String(); got != "move|zoom_wheel" {
		t.Errorf("actions = %q", got)
	}
}

func TestCancelEndsGesture(t *testing.T) {
	m, _ := newTestMap(t)
	m.Press(f32.Pt(100, 100), pointer.ButtonSecondary, 0)
	m.Move(f32.Pt(200, 200))
	m.Cancel()
	if _, ok := m.SelectionRect(); ok || m.State() != Idle {
		t.Errorf("state = %v after cancel", m.State())
	}
}
