// Package movement predicts the local player's motion from held directional
// input and decides when the server may correct it.
package movement

import (
	"math"
	"time"

	"avatarworld/world"
)

// Direction is one of the four directional inputs.
type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right
	numDirections
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "none"
}

// Directions lists every direction in a fixed order.
var Directions = [...]Direction{Up, Down, Left, Right}

const (
	DefaultSpeed = 200.0 // pixels per second
	DefaultGrace = 100 * time.Millisecond
)

// Predictor advances the local entity every tick. It is driven from the
// update loop only.
type Predictor struct {
	// Speed is the movement speed in pixels per second.
	Speed float64
	// Grace is how long input must have been released before a server
	// position may overwrite the predicted one.
	Grace time.Duration
	// Now returns the current time. Tests replace it.
	Now func() time.Time

	width, height float64
	held          [numDirections]bool
	lastRelease   time.Time
}

// NewPredictor returns a predictor for a world of the given size.
func NewPredictor(width, height, speed float64, grace time.Duration) *Predictor {
	if speed <= 0 {
		speed = DefaultSpeed
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Predictor{
		Speed:  speed,
		Grace:  grace,
		Now:    time.Now,
		width:  width,
		height: height,
	}
}

// Press marks d held. It reports whether d was not already held, in which
// case the caller sends a move intent.
func (p *Predictor) Press(d Direction) bool {
	if d >= numDirections || p.held[d] {
		return false
	}
	p.held[d] = true
	return true
}

// Release clears d. It reports whether this release left nothing held, in
// which case the caller sends a stop intent.
func (p *Predictor) Release(d Direction) bool {
	if d >= numDirections || !p.held[d] {
		return false
	}
	p.held[d] = false
	if p.Moving() {
		return false
	}
	p.lastRelease = p.Now()
	return true
}

// ReleaseAll drops every held direction, as on focus loss. It reports
// whether anything was held.
func (p *Predictor) ReleaseAll() bool {
	if !p.Moving() {
		return false
	}
	p.held = [numDirections]bool{}
	p.lastRelease = p.Now()
	return true
}

// Moving reports whether any direction is held.
func (p *Predictor) Moving() bool {
	for _, h := range p.held {
		if h {
			return true
		}
	}
	return false
}

// Held reports whether d is currently held.
func (p *Predictor) Held(d Direction) bool {
	return d < numDirections && p.held[d]
}

// Vector returns the per-axis input sum. Opposite directions cancel.
func (p *Predictor) Vector() (int, int) {
	dx, dy := 0, 0
	if p.held[Left] {
		dx--
	}
	if p.held[Right] {
		dx++
	}
	if p.held[Up] {
		dy--
	}
	if p.held[Down] {
		dy++
	}
	return dx, dy
}

// Displacement returns the movement for a tick of length dt. Diagonals are
// normalized so they are no faster than axial movement.
func (p *Predictor) Displacement(dt time.Duration) (float64, float64) {
	ix, iy := p.Vector()
	if ix == 0 && iy == 0 {
		return 0, 0
	}
	step := p.Speed * dt.Seconds()
	x, y := float64(ix), float64(iy)
	if ix != 0 && iy != 0 {
		l := math.Hypot(x, y)
		x, y = x/l, y/l
	}
	return x * step, y * step
}

// Step applies one tick of input to e. It reports whether e changed.
func (p *Predictor) Step(e *world.Entity, dt time.Duration) bool {
	if e == nil || !p.Moving() {
		return false
	}
	ix, iy := p.Vector()
	switch {
	case ix < 0:
		e.Facing = world.West
	case ix > 0:
		e.Facing = world.East
	case iy < 0:
		e.Facing = world.North
	case iy > 0:
		e.Facing = world.South
	}
	e.AdvanceFrame()

	dx, dy := p.Displacement(dt)
	e.X = clamp(e.X+dx, 0, p.width)
	e.Y = clamp(e.Y+dy, 0, p.height)
	return true
}

// AcceptServerPosition reports whether a server reported position for the
// local entity may replace the predicted one.
func (p *Predictor) AcceptServerPosition() bool {
	if p.Moving() {
		return false
	}
	if p.lastRelease.IsZero() {
		return true
	}
	return p.Now().Sub(p.lastRelease) >= p.Grace
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
