package mapview

import "strings"

// State is the interaction state of a map.
type State int

const (
	Idle State = iota
	Animation
	WheelZoom
	MovingMap
	MovingObjects
	SelectionRect
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Animation:
		return "animation"
	case WheelZoom:
		return "wheel"
	case MovingMap:
		return "moving_map"
	case MovingObjects:
		return "moving_objects"
	case SelectionRect:
		return "selection_rect"
	default:
		return "unknown"
	}
}

// MouseAction enables a class of mouse interaction.
type MouseAction uint32

const (
	ActionMove MouseAction = 1 << iota
	ActionZoomWheel
	ActionZoomRect
	ActionSelection
	ActionTooltip
	ActionContextMenu
	ActionMoveObjects

	ActionNone MouseAction = 0
	ActionAll  MouseAction = ActionMove | ActionZoomWheel | ActionZoomRect | ActionSelection |
		ActionTooltip | ActionContextMenu | ActionMoveObjects
)

func (a MouseAction) Has(action MouseAction) bool { return a&action == action }

func (a MouseAction) String() string {
	if a == ActionNone {
		return "none"
	}
	names := []struct {
		a    MouseAction
		name string
	}{
		{ActionMove, "move"},
		{ActionZoomWheel, "zoom_wheel"},
		{ActionZoomRect, "zoom_rect"},
		{ActionSelection, "selection"},
		{ActionTooltip, "tooltip"},
		{ActionContextMenu, "context_menu"},
		{ActionMoveObjects, "move_objects"},
	}
	var parts []string
	for _, n := range names {
		if a.Has(n.a) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
