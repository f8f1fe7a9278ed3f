package camera

import (
	"math"
	"time"

	"github.com/olablt/gio-geoview/projection"
)

const (
	DefaultSimpleDuration = time.Second
	DefaultFlyDuration    = 3 * time.Second

	// FlySpeed is the screen speed in pixels per second a fly animation
	// aims for.
	FlySpeed = 300.0
)

// Controller is whatever owns the camera an animation drives.
type Controller interface {
	Camera() State
	CameraTo(target Actions, animation bool)
}

type curve interface {
	start(a *Animation)
	progress(a *Animation, t float64, target Actions) Actions
}

// Animation moves a controller's camera towards the target actions over
// time. It does not own a timer: the controller calls Tick once per frame.
type Animation struct {
	ctrl     Controller
	actions  Actions
	curve    curve
	duration time.Duration
	started  time.Time
	running  bool
}

// NewSimple returns an animation interpolating scale, azimuth and position
// along easing. A nil easing is linear.
func NewSimple(ctrl Controller, target Actions, easing Easing) *Animation {
	if easing == nil {
		easing = Linear
	}
	return &Animation{
		ctrl:     ctrl,
		actions:  target,
		curve:    simple{easing: easing},
		duration: DefaultSimpleDuration,
	}
}

// NewFly returns a zoom out, travel, zoom in animation. Its duration is
// adjusted when it starts.
func NewFly(ctrl Controller, target Actions) *Animation {
	return &Animation{
		ctrl:     ctrl,
		actions:  target,
		curve:    &fly{},
		duration: DefaultFlyDuration,
	}
}

func (a *Animation) SetDuration(d time.Duration) { a.duration = d }
func (a *Animation) Duration() time.Duration     { return a.duration }
func (a *Animation) Actions() Actions            { return a.actions }
func (a *Animation) Running() bool               { return a.running }

// Start rebases the target onto the live camera and begins at now.
func (a *Animation) Start(now time.Time) {
	a.actions = a.actions.Rebase(a.ctrl.Camera())
	a.curve.start(a)
	a.started = now
	a.running = true
}

// Tick moves the camera to the position for now. When the duration has
// elapsed the exact target is applied with animation off and Tick reports
// false.
func (a *Animation) Tick(now time.Time) bool {
	if !a.running {
		return false
	}
	t := 1.0
	if a.duration > 0 {
		t = float64(now.Sub(a.started)) / float64(a.duration)
		t = math.Max(0, math.Min(1, t))
	}
	target := a.curve.progress(a, t, a.actions.Reset())
	a.ctrl.CameraTo(target, true)
	if !a.running {
		// stopped from inside CameraTo
		return false
	}
	if t < 1 {
		return true
	}
	a.running = false
	a.ctrl.CameraTo(a.actions, false)
	return false
}

// Stop ends the animation where it is.
func (a *Animation) Stop() {
	a.running = false
}

type simple struct {
	easing Easing
}

func (simple) start(*Animation) {}

func (s simple) progress(a *Animation, t float64, target Actions) Actions {
	t = s.easing(t)
	origin := a.actions.Origin()
	return target.
		ScaleTo(InterpolateScale(origin.Scale(), a.actions.Scale(), t)).
		RotateTo(InterpolateAzimuth(origin.Azimuth(), a.actions.Azimuth(), t)).
		MoveTo(InterpolatePos(origin.ProjCenter(), a.actions.ProjCenter(), t))
}

type fly struct {
	scale  float64
	anchor projection.Point
}

func (f *fly) start(a *Animation) {
	origin := a.actions.Origin()
	dist := a.actions.ProjCenter().Sub(origin.ProjCenter()).Len()
	originDist := dist * origin.Scale()
	targetDist := dist * a.actions.Scale()

	secs := a.duration.Seconds()
	projSpeed := dist / secs
	originSpeed := originDist / secs
	targetSpeed := targetDist / secs

	if dist == 0 {
		a.duration = time.Second
	} else if originSpeed < FlySpeed && targetSpeed < FlySpeed {
		ms := 1000 * math.Max(originDist, targetDist) / FlySpeed
		a.duration = time.Duration(ms) * time.Millisecond
	}
	f.scale = math.Min(a.actions.Scale(), FlySpeed/projSpeed)
	f.anchor = InterpolatePos(origin.ProjCenter(), a.actions.ProjCenter(), 0.5)
}

func (f *fly) progress(a *Animation, t float64, target Actions) Actions {
	const split = 0.5
	origin := a.actions.Origin()
	if t <= split {
		k := t / split
		target = target.
			ScaleTo(InterpolateScale(origin.Scale(), f.scale, k)).
			MoveTo(InterpolatePos(origin.ProjCenter(), f.anchor, InQuint(k)))
	} else {
		k := (t - split) / (1 - split)
		target = target.
			ScaleTo(InterpolateScale(f.scale, a.actions.Scale(), k)).
			MoveTo(InterpolatePos(f.anchor, a.actions.ProjCenter(), 1-InQuint(1-k)))
	}
	return target.RotateTo(InterpolateAzimuth(origin.Azimuth(), a.actions.Azimuth(), t))
}
