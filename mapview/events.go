package mapview

import (
	"gioui.org/f32"
	"github.com/olablt/gio-geoview/camera"
	"github.com/olablt/gio-geoview/projection"
	"github.com/olablt/gio-geoview/scene"
)

// Event is delivered to map subscribers.
type Event interface {
	isEvent()
}

type CameraChanged struct {
	Old, New camera.State
}

type StateChanged struct {
	Old, New State
}

type SelectionChanged struct {
	Selected []scene.ItemID
}

type ItemClicked struct {
	ID  scene.ItemID
	Pos projection.Point
}

type ItemDoubleClicked struct {
	ID  scene.ItemID
	Pos projection.Point
}

// ContextMenu asks the application to show its menu at Screen.
type ContextMenu struct {
	Screen f32.Point
	Pos    projection.Point
}

// Tooltip carries the text of the item under the cursor. Text is empty
// when the tooltip should be hidden.
type Tooltip struct {
	Screen f32.Point
	Text   string
}

func (CameraChanged) isEvent()     {}
func (StateChanged) isEvent()      {}
func (SelectionChanged) isEvent()  {}
func (ItemClicked) isEvent()       {}
func (ItemDoubleClicked) isEvent() {}
func (ContextMenu) isEvent()       {}
func (Tooltip) isEvent()           {}

// bus delivers events in order. An event raised by a subscriber is queued
// until the current delivery returns.
type bus struct {
	subs       map[int]func(Event)
	next       int
	queue      []Event
	delivering bool
}

func (b *bus) subscribe(fn func(Event)) func() {
	if b.subs == nil {
		b.subs = make(map[int]func(Event))
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() { delete(b.subs, id) }
}

func (b *bus) emit(ev Event) {
	b.queue = append(b.queue, ev)
	if b.delivering {
		return
	}
	b.delivering = true
	defer func() { b.delivering = false }()
	for len(b.queue) > 0 {
		ev := b.queue[0]
		b.queue = b.queue[1:]
		for id := 0; id < b.next; id++ {
			if fn, ok := b.subs[id]; ok {
				fn(ev)
			}
		}
	}
}
