package scene

import (
	"slices"

	"gioui.org/op"
	"github.com/olablt/gio-geoview/camera"
	"github.com/olablt/gio-geoview/projection"
	"github.com/samber/lo"
)

// ItemID addresses an item in the arena. Zero is the root and never
// refers to a drawable.
type ItemID int

const Root ItemID = 0

type item struct {
	d        Drawable
	parent   ItemID
	children []ItemID
	flags    Flags
	z        int
	visible  bool
	alive    bool
}

// Items is an arena of drawables forming a tree under Root. Ids are never
// reused. Items is itself a layer so the map paints it with the others.
type Items struct {
	host     Host
	items    []item
	count    int
	selected map[ItemID]struct{}
}

var _ Layer = (*Items)(nil)

func NewItems() *Items {
	return &Items{
		items:    []item{{alive: true, visible: true}},
		selected: make(map[ItemID]struct{}),
	}
}

func (s *Items) Attach(h Host)              { s.host = h }
func (s *Items) Detach()                    { s.host = nil }
func (s *Items) OnCamera(_, _ camera.State) {}
func (s *Items) Refresh()                   { s.invalidate() }

func (s *Items) invalidate() {
	if s.host != nil {
		s.host.Invalidate()
	}
}

func (s *Items) get(id ItemID) *item {
	if id < 0 || int(id) >= len(s.items) || !s.items[id].alive {
		return nil
	}
	return &s.items[id]
}

// Add puts d under parent and returns its id. An unknown parent is
// treated as Root.
func (s *Items) Add(parent ItemID, d Drawable, flags Flags) ItemID {
	if s.get(parent) == nil {
		parent = Root
	}
	id := ItemID(len(s.items))
	s.items = append(s.items, item{
		d:       d,
		parent:  parent,
		flags:   flags,
		visible: true,
		alive:   true,
	})
	s.items[parent].children = append(s.items[parent].children, id)
	s.count++
	s.invalidate()
	return id
}

// Remove deletes id and its whole subtree.
func (s *Items) Remove(id ItemID) {
	it := s.get(id)
	if it == nil || id == Root {
		return
	}
	p := &s.items[it.parent]
	p.children = slices.DeleteFunc(p.children, func(c ItemID) bool { return c == id })
	s.remove(id)
	s.invalidate()
}

func (s *Items) remove(id ItemID) {
	it := &s.items[id]
	for _, c := range it.children {
		s.remove(c)
	}
	delete(s.selected, id)
	*it = item{}
	s.count--
}

// Clear removes every item.
func (s *Items) Clear() {
	for _, c := range slices.Clone(s.items[Root].children) {
		s.Remove(c)
	}
}

// Len is the number of live items.
func (s *Items) Len() int { return s.count }

func (s *Items) Get(id ItemID) (Drawable, bool) {
	it := s.get(id)
	if it == nil || id == Root {
		return nil, false
	}
	return it.d, true
}

func (s *Items) Parent(id ItemID) ItemID {
	if it := s.get(id); it != nil {
		return it.parent
	}
	return Root
}

func (s *Items) Children(id ItemID) []ItemID {
	if it := s.get(id); it != nil {
		return slices.Clone(it.children)
	}
	return nil
}

func (s *Items) Flags(id ItemID) Flags {
	if it := s.get(id); it != nil {
		return it.flags
	}
	return 0
}

func (s *Items) SetFlags(id ItemID, flags Flags) {
	if it := s.get(id); it != nil && id != Root {
		it.flags = flags
		s.invalidate()
	}
}

// SetZ sets the paint order among siblings. Higher paints later.
func (s *Items) SetZ(id ItemID, z int) {
	if it := s.get(id); it != nil {
		it.z = z
		s.invalidate()
	}
}

func (s *Items) SetVisible(id ItemID, visible bool) {
	if it := s.get(id); it != nil {
		it.visible = visible
		s.invalidate()
	}
}

// order returns the visible items in paint order.
func (s *Items) order() []ItemID {
	var out []ItemID
	var walk func(id ItemID)
	walk = func(id ItemID) {
		children := slices.Clone(s.items[id].children)
		slices.SortStableFunc(children, func(a, b ItemID) int {
			return s.items[a].z - s.items[b].z
		})
		for _, c := range children {
			if !s.items[c].visible {
				continue
			}
			out = append(out, c)
			walk(c)
		}
	}
	walk(Root)
	return out
}

// Search returns the items whose shape contains p, top-most first.
func (s *Items) Search(p projection.Point) []ItemID {
	order := s.order()
	slices.Reverse(order)
	return lo.Filter(order, func(id ItemID, _ int) bool {
		return s.items[id].d.ProjShape().Contains(p)
	})
}

// SearchRect returns the items whose shape lies inside r, top-most first.
func (s *Items) SearchRect(r projection.Rect) []ItemID {
	order := s.order()
	slices.Reverse(order)
	return lo.Filter(order, func(id ItemID, _ int) bool {
		return r.ContainsRect(s.items[id].d.ProjShape())
	})
}

// Select marks id as selected. Items without the Selectable flag are
// ignored.
func (s *Items) Select(id ItemID) {
	if !s.Flags(id).Has(Selectable) {
		return
	}
	s.selected[id] = struct{}{}
	s.invalidate()
}

func (s *Items) Unselect(id ItemID) {
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		s.invalidate()
	}
}

func (s *Items) SetSelected(id ItemID, on bool) {
	if on {
		s.Select(id)
	} else {
		s.Unselect(id)
	}
}

func (s *Items) IsSelected(id ItemID) bool {
	_, ok := s.selected[id]
	return ok
}

func (s *Items) UnselectAll() {
	if len(s.selected) == 0 {
		return
	}
	clear(s.selected)
	s.invalidate()
}

// Selected returns the selected ids in ascending order.
func (s *Items) Selected() []ItemID {
	ids := lo.Keys(s.selected)
	slices.Sort(ids)
	return ids
}

func (s *Items) Paint(ops *op.Ops, vp camera.Viewport) {
	for _, id := range s.order() {
		it := &s.items[id]
		pc := PaintContext{
			Ops:      ops,
			Viewport: vp,
			Flags:    it.flags,
			Selected: s.IsSelected(id),
		}
		if t, ok := it.d.(Transformer); ok {
			stack := op.Affine(t.PaintTransform(pc)).Push(ops)
			it.d.Paint(pc)
			stack.Pop()
			continue
		}
		it.d.Paint(pc)
	}
}
