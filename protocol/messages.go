// Package protocol decodes the server's world messages into the entity store
// and avatar catalog and encodes the client's movement intents.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"avatarworld/avatar"
	"avatarworld/movement"
	"avatarworld/world"
)

// Message actions.
const (
	ActionJoinGame     = "join_game"
	ActionPlayersMoved = "players_moved"
	ActionPlayerJoined = "player_joined"
	ActionPlayerLeft   = "player_left"
	ActionMove         = "move"
	ActionStop         = "stop"
)

// envelope is the part of every message needed to route it.
type envelope struct {
	Action string `json:"action"`
}

// PlayerID is a server assigned player id. Servers send it either as a
// string or as a number; both decode to the same text.
type PlayerID string

func (id *PlayerID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = PlayerID(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("player id: %w", err)
	}
	*id = PlayerID(n.String())
	return nil
}

// PlayerRecord is a full player description.
type PlayerRecord struct {
	ID             PlayerID `json:"id"`
	Username       string   `json:"username"`
	X              float64  `json:"x"`
	Y              float64  `json:"y"`
	Facing         string   `json:"facing"`
	AnimationFrame int      `json:"animationFrame"`
	Avatar         string   `json:"avatar"`
	Width          float64  `json:"width,omitempty"`
	Height         float64  `json:"height,omitempty"`
}

// Entity converts r into an entity. key is the id the record was filed
// under and is used when the record carries no id of its own.
func (r PlayerRecord) Entity(key string) *world.Entity {
	id := string(r.ID)
	if id == "" {
		id = key
	}
	facing, _ := world.ParseFacing(r.Facing)
	e := &world.Entity{
		ID:       id,
		Username: r.Username,
		X:        r.X,
		Y:        r.Y,
		Facing:   facing,
		Avatar:   r.Avatar,
		Width:    r.Width,
		Height:   r.Height,
	}
	e.SetFrame(r.AnimationFrame)
	return e
}

// PartialPlayerRecord carries only the fields that changed. Nil fields are
// left untouched.
type PartialPlayerRecord struct {
	X              *float64 `json:"x"`
	Y              *float64 `json:"y"`
	Facing         *string  `json:"facing"`
	AnimationFrame *int     `json:"animationFrame"`
}

// HasPosition reports whether the record moves the player.
func (p PartialPlayerRecord) HasPosition() bool { return p.X != nil || p.Y != nil }

// AvatarDef is an avatar's frame table as sent by the server. Both
// {"name":"cat","frames":{"south":[...]}} and the bare facing map
// {"south":[...],"east":[...]} are accepted.
type AvatarDef struct {
	Name   string
	Frames map[string][]string
}

func (d *AvatarDef) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("avatar definition: %w", err)
	}
	d.Frames = make(map[string][]string)
	if raw, ok := fields["name"]; ok {
		if err := json.Unmarshal(raw, &d.Name); err != nil {
			return fmt.Errorf("avatar name: %w", err)
		}
	}
	if raw, ok := fields["frames"]; ok {
		if err := json.Unmarshal(raw, &d.Frames); err != nil {
			return fmt.Errorf("avatar frames: %w", err)
		}
		return nil
	}
	for k, raw := range fields {
		if _, ok := world.ParseFacing(k); !ok {
			continue
		}
		var frames []string
		if err := json.Unmarshal(raw, &frames); err != nil {
			return fmt.Errorf("avatar frames %q: %w", k, err)
		}
		d.Frames[k] = frames
	}
	return nil
}

// Definition converts d into a catalog entry. name overrides the name
// carried inside d when set. Unknown facing keys are dropped.
func (d *AvatarDef) Definition(name string) *avatar.Definition {
	if name == "" {
		name = d.Name
	}
	def := &avatar.Definition{Name: name, Frames: make(map[world.Facing][]string)}
	for k, frames := range d.Frames {
		f, ok := world.ParseFacing(k)
		if !ok || len(frames) == 0 {
			continue
		}
		def.Frames[f] = frames
	}
	return def
}

// JoinGame answers the client's join request.
type JoinGame struct {
	Success  bool                    `json:"success"`
	PlayerID PlayerID                `json:"playerId"`
	Players  map[string]PlayerRecord `json:"players"`
	Avatars  map[string]AvatarDef    `json:"avatars"`
	Error    string                  `json:"error,omitempty"`
}

// PlayersMoved is a batch of partial updates keyed by player id.
type PlayersMoved struct {
	Players map[string]PartialPlayerRecord `json:"players"`
}

// PlayerJoined announces one new player and its avatar.
type PlayerJoined struct {
	Player PlayerRecord `json:"player"`
	Avatar *AvatarDef   `json:"avatar"`
}

// PlayerLeft announces a departure.
type PlayerLeft struct {
	PlayerID PlayerID `json:"playerId"`
}

// JoinRequest is sent once after connecting.
type JoinRequest struct {
	Action   string `json:"action"`
	Username string `json:"username"`
}

// MoveRequest is sent for each newly pressed direction.
type MoveRequest struct {
	Action    string `json:"action"`
	Direction string `json:"direction"`
}

// StopRequest is sent when no direction is held any more.
type StopRequest struct {
	Action string `json:"action"`
}

func NewJoinRequest(username string) JoinRequest {
	return JoinRequest{Action: ActionJoinGame, Username: username}
}

func NewMoveRequest(d movement.Direction) MoveRequest {
	return MoveRequest{Action: ActionMove, Direction: d.String()}
}

func NewStopRequest() StopRequest {
	return StopRequest{Action: ActionStop}
}
