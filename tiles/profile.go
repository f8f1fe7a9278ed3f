package tiles

import "time"

// Profile tunes how eagerly a layer prefetches and how long it keeps tiles
// of other zoom levels.
type Profile struct {
	// MarginWithZoomChange is the prefetch margin in tiles right after a
	// zoom change.
	MarginWithZoomChange int
	// MarginNoZoomChange is the margin while panning or rotating.
	MarginNoZoomChange int
	// AnimationUpdateDelay throttles camera processing during animations.
	AnimationUpdateDelay time.Duration
	// VisibleZoomLevelsBelow and VisibleZoomLevelsAbove bound the zoom
	// levels kept around the current one.
	VisibleZoomLevelsBelow int
	VisibleZoomLevelsAbove int
	// CameraUpdatesDuringAnimation enables processing while animating.
	CameraUpdatesDuringAnimation bool
}

func DefaultProfile() Profile {
	return Profile{
		MarginWithZoomChange:         1,
		MarginNoZoomChange:           3,
		AnimationUpdateDelay:         200 * time.Millisecond,
		VisibleZoomLevelsBelow:       10,
		VisibleZoomLevelsAbove:       10,
		CameraUpdatesDuringAnimation: true,
	}
}
