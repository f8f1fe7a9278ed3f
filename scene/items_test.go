package scene

import (
	"image"
	"slices"
	"testing"

	"gioui.org/f32"
	"gioui.org/op"
	"github.com/olablt/gio-geoview/camera"
	"github.com/olablt/gio-geoview/projection"
)

type countingHost struct {
	invalidated int
}

func (h *countingHost) Projection() projection.Projection { return projection.NewEPSG3857() }
func (h *countingHost) Camera() camera.State              { return camera.State{} }
func (h *countingHost) Post(fn func())                    { fn() }
func (h *countingHost) Invalidate()                       { h.invalidated++ }

func box(x0, y0, x1, y1 float64) *Box {
	return NewBox(projection.RectFromPoints(projection.Pt(x0, y0), projection.Pt(x1, y1)))
}

func TestItemsTree(t *testing.T) {
	items := NewItems()
	host := &countingHost{}
	items.Attach(host)

	a := items.Add(Root, box(0, 0, 10, 10), Selectable)
	b := items.Add(a, box(1, 1, 2, 2), Selectable)
	c := items.Add(b, box(1, 1, 2, 2), 0)
	d := items.Add(Root, box(20, 20, 30, 30), 0)

	if items.Len() != 4 {
		t.Fatalf("Len = %d", items.Len())
	}
	if items.Parent(c) != b || !slices.Equal(items.Children(a), []ItemID{b}) {
		t.Errorf("tree broken: parent(c)=%v children(a)=%v", items.Parent(c), items.Children(a))
	}
	if host.invalidated == 0 {
		t.Error("adding items did not invalidate the host")
	}

	items.Select(b)
	items.Remove(a)
	if items.Len() != 1 {
		t.Errorf("Len after removing subtree = %d, want 1", items.Len())
	}
	for _, id := range []ItemID{a, b, c} {
		if _, ok := items.Get(id); ok {
			t.Errorf("%v still alive", id)
		}
	}
	if items.IsSelected(b) {
		t.Error("removed item still selected")
	}
	if _, ok := items.Get(d); !ok {
		t.Error("sibling removed")
	}

	// ids are not reused
	e := items.Add(Root, box(0, 0, 1, 1), 0)
	if e == a || e == b || e == c {
		t.Errorf("id %v reused", e)
	}
	items.Clear()
	if items.Len() != 0 {
		t.Errorf("Len after Clear = %d", items.Len())
	}
}

func TestItemsAddUnknownParent(t *testing.T) {
	items := NewItems()
	id := items.Add(ItemID(42), box(0, 0, 1, 1), 0)
	if items.Parent(id) != Root {
		t.Errorf("parent = %v, want root", items.Parent(id))
	}
}

func TestItemsSearch(t *testing.T) {
	items := NewItems()
	low := items.Add(Root, box(0, 0, 10, 10), 0)
	high := items.Add(Root, box(5, 5, 15, 15), 0)
	items.SetZ(low, 1)

	got := items.Search(projection.Pt(7, 7))
	if !slices.Equal(got, []ItemID{low, high}) {
		t.Errorf("Search = %v, want %v", got, []ItemID{low, high})
	}
	if got := items.Search(projection.Pt(100, 100)); len(got) != 0 {
		t.Errorf("Search outside = %v", got)
	}
	got = items.SearchRect(projection.RectFromPoints(projection.Pt(-1, -1), projection.Pt(11, 11)))
	if !slices.Equal(got, []ItemID{low}) {
		t.Errorf("SearchRect = %v", got)
	}

	items.SetVisible(low, false)
	if got := items.Search(projection.Pt(7, 7)); !slices.Equal(got, []ItemID{high}) {
		t.Errorf("hidden item found: %v", got)
	}
}

func TestItemsSelection(t *testing.T) {
	items := NewItems()
	a := items.Add(Root, box(0, 0, 1, 1), Selectable)
	b := items.Add(Root, box(0, 0, 1, 1), 0)
	c := items.Add(Root, box(0, 0, 1, 1), Selectable|Clickable)

	items.Select(a)
	items.Select(b)
	items.SetSelected(c, true)
	if got := items.Selected(); !slices.Equal(got, []ItemID{a, c}) {
		t.Errorf("Selected = %v", got)
	}
	items.Unselect(a)
	if items.IsSelected(a) {
		t.Error("a still selected")
	}
	items.UnselectAll()
	if len(items.Selected()) != 0 {
		t.Error("UnselectAll left a selection")
	}
}

func TestFlags(t *testing.T) {
	f := Selectable | Movable
	if !f.Has(Movable) || f.Has(Clickable) {
		t.Errorf("Has broken for %b", f)
	}
	f = f.With(Movable, false).With(Clickable, true)
	if f != Selectable|Clickable {
		t.Errorf("With = %b", f)
	}
}

type spinner struct {
	*Box
	transforms int
}

func (s *spinner) PaintTransform(pc PaintContext) f32.Affine2D {
	s.transforms++
	return f32.Affine2D{}
}

func TestItemsPaint(t *testing.T) {
	items := NewItems()
	sp := &spinner{Box: box(0, 0, 100, 100)}
	items.Add(Root, sp, IgnoreAzimuth)
	items.Add(Root, box(0, 0, 10, 10), IgnoreScale)

	var ops op.Ops
	vp := camera.Viewport{Scale: 1, Azimuth: 30, Size: image.Pt(200, 200)}
	items.Paint(&ops, vp)
	if sp.transforms != 1 {
		t.Errorf("PaintTransform called %d times", sp.transforms)
	}
}

func TestPaintContext(t *testing.T) {
	vp := camera.Viewport{Scale: 4, Size: image.Pt(100, 100)}
	pc := PaintContext{Viewport: vp}
	if pc.Scale() != 4 {
		t.Errorf("Scale = %v", pc.Scale())
	}
	pc.Flags = IgnoreScale
	if pc.Scale() != 1 {
		t.Errorf("Scale with IgnoreScale = %v", pc.Scale())
	}
	if got := pc.Transform(projection.Pt(0, 0)).Transform(f32.Pt(0, 0)); got != f32.Pt(50, 50) {
		t.Errorf("origin maps to %v", got)
	}
}

func TestBoxMove(t *testing.T) {
	b := box(0, 0, 10, 10)
	b.StartMove(projection.Pt(5, 5))
	b.MoveTo(projection.Pt(7, 5))
	b.StopMove(projection.Pt(8, 6))
	want := projection.RectFromPoints(projection.Pt(3, 1), projection.Pt(13, 11))
	if b.Rect != want {
		t.Errorf("Rect = %v, want %v", b.Rect, want)
	}
	clicked := 0
	b.OnClick = func(projection.Point) { clicked++ }
	b.Click(projection.Pt(0, 0))
	b.DoubleClick(projection.Pt(0, 0))
	if clicked != 1 {
		t.Errorf("clicked = %d", clicked)
	}
}
