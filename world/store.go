package world

import "sort"

// DefaultSize is the edge length of the square world in pixels. The server
// uses the same constant.
const DefaultSize = 2048

// Store holds every entity the client knows about. It is owned by the
// update loop and is not safe for concurrent use.
type Store struct {
	width, height float64

	local   *Entity
	remotes map[string]*Entity
	offline bool
}

// NewStore returns an empty store for a world of the given size.
func NewStore(width, height float64) *Store {
	if width <= 0 {
		width = DefaultSize
	}
	if height <= 0 {
		height = DefaultSize
	}
	return &Store{
		width:   width,
		height:  height,
		remotes: make(map[string]*Entity),
	}
}

// Bounds returns the world width and height.
func (s *Store) Bounds() (float64, float64) { return s.width, s.height }

// Clamp keeps the entity inside the world.
func (s *Store) Clamp(e *Entity) {
	e.X = clamp(e.X, 0, s.width)
	e.Y = clamp(e.Y, 0, s.height)
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

// Local returns the local player, or nil before join.
func (s *Store) Local() *Entity { return s.local }

// SetLocal installs the local player. The record is clamped and marked local.
func (s *Store) SetLocal(e *Entity) {
	e.Local = true
	s.Clamp(e)
	delete(s.remotes, e.ID)
	s.local = e
}

// Offline reports whether the local entity is the synthetic offline one.
func (s *Store) Offline() bool { return s.offline }

// SetOffline replaces the local player with a synthetic entity standing in
// the middle of the world.
func (s *Store) SetOffline(username, avatar string) *Entity {
	e := &Entity{
		ID:       "offline",
		Username: username,
		X:        s.width / 2,
		Y:        s.height / 2,
		Facing:   South,
		Avatar:   avatar,
	}
	s.SetLocal(e)
	s.offline = true
	return e
}

// Detach keeps the current local player but marks the store offline and
// forgets the remote players, which will no longer be updated.
func (s *Store) Detach() {
	s.offline = true
	s.remotes = make(map[string]*Entity)
}

// Upsert adds a remote entity or overwrites the record with the same id.
func (s *Store) Upsert(e *Entity) {
	if s.local != nil && e.ID == s.local.ID {
		return
	}
	e.Local = false
	s.Clamp(e)
	if old, ok := s.remotes[e.ID]; ok {
		*old = *e
		return
	}
	s.remotes[e.ID] = e
}

// Remote returns the remote entity with the given id.
func (s *Store) Remote(id string) (*Entity, bool) {
	e, ok := s.remotes[id]
	return e, ok
}

// Lookup finds an entity by id, local or remote.
func (s *Store) Lookup(id string) (*Entity, bool) {
	if s.local != nil && s.local.ID == id {
		return s.local, true
	}
	return s.Remote(id)
}

// Remove drops a remote entity. Unknown ids are ignored.
func (s *Store) Remove(id string) bool {
	if _, ok := s.remotes[id]; !ok {
		return false
	}
	delete(s.remotes, id)
	return true
}

// Len returns the number of remote entities.
func (s *Store) Len() int { return len(s.remotes) }

// Remotes returns the remote entities ordered by id so draw order is stable
// between frames.
func (s *Store) Remotes() []*Entity {
	out := make([]*Entity, 0, len(s.remotes))
	for _, e := range s.remotes {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns the remote entities followed by the local one.
func (s *Store) All() []*Entity {
	out := s.Remotes()
	if s.local != nil {
		out = append(out, s.local)
	}
	return out
}

// Reset forgets every entity.
func (s *Store) Reset() {
	s.local = nil
	s.offline = false
	s.remotes = make(map[string]*Entity)
}
