package world

import "strings"

// Facing is the direction an entity is looking.
type Facing uint8

const (
	South Facing = iota
	North
	East
	West
)

// FrameCycle is the number of animation frames in a walk cycle.
const FrameCycle = 3

func (f Facing) String() string {
	switch f {
	case North:
		return "north"
	case East:
		return "east"
	case West:
		return "west"
	default:
		return "south"
	}
}

// ParseFacing maps a wire name to a Facing. Unknown names report false.
func ParseFacing(s string) (Facing, bool) {
	switch strings.ToLower(s) {
	case "north", "up":
		return North, true
	case "south", "down":
		return South, true
	case "east", "right":
		return East, true
	case "west", "left":
		return West, true
	}
	return South, false
}

// Entity is a player known to the client, either the local player or a
// remote one.
type Entity struct {
	ID       string
	Username string
	X, Y     float64
	Facing   Facing
	Frame    int
	Avatar   string

	// SpriteURL is the frame currently displayed. Empty until resolved.
	SpriteURL string

	// Width and Height force a draw size. Zero means natural image size.
	Width, Height float64

	Local bool
}

// The methods below let the avatar resolver treat local and remote
// entities the same way.

func (e *Entity) AvatarName() string { return e.Avatar }
func (e *Entity) Heading() Facing { return e.Facing }
func (e *Entity) FrameIndex() int { return e.Frame }
func (e *Entity) IsLocal() bool { return e.Local }
func (e *Entity) DisplayedURL() string { return e.SpriteURL }
func (e *Entity) SetDisplayedURL(u string) { e.SpriteURL = u }
func (e *Entity) Position() (float64, float64) { return e.X, e.Y }

// AdvanceFrame moves to the next frame of the walk cycle. A frame outside
// the cycle, as the server may send, restarts it.
func (e *Entity) AdvanceFrame() {
	if e.Frame < 0 || e.Frame >= FrameCycle {
		e.Frame = 0
		return
	}
	e.Frame = (e.Frame + 1) % FrameCycle
}

// SetFrame stores a server supplied frame as sent. The resolver falls back
// to the first frame when the avatar has no frame at that index.
func (e *Entity) SetFrame(f int) { e.Frame = f }
