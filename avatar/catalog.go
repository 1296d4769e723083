// Package avatar holds avatar definitions and resolves which sprite frame an
// entity should display.
package avatar

import (
	"sort"

	"avatarworld/world"
)

// DefaultName is the avatar used when an entity references an unknown one.
const DefaultName = "default"

// Definition maps each facing to its ordered frame URLs. West is normally
// absent and drawn by mirroring East.
type Definition struct {
	Name   string
	Frames map[world.Facing][]string
}

// FramesFor returns the frames stored for f.
func (d *Definition) FramesFor(f world.Facing) []string {
	if d == nil {
		return nil
	}
	return d.Frames[f]
}

// Catalog is the set of avatar definitions received from the server.
type Catalog struct {
	defs map[string]*Definition
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]*Definition)}
}

// Put stores d, replacing any definition with the same name.
func (c *Catalog) Put(d *Definition) {
	if d == nil || d.Name == "" {
		return
	}
	if d.Frames == nil {
		d.Frames = make(map[world.Facing][]string)
	}
	c.defs[d.Name] = d
}

// Get returns the definition named name.
func (c *Catalog) Get(name string) (*Definition, bool) {
	d, ok := c.defs[name]
	return d, ok
}

// Any returns some definition, choosing the lexicographically first name so
// the choice is stable.
func (c *Catalog) Any() (*Definition, bool) {
	names := c.Names()
	if len(names) == 0 {
		return nil, false
	}
	return c.defs[names[0]], true
}

// Names returns the sorted avatar names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for n := range c.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of definitions.
func (c *Catalog) Len() int { return len(c.defs) }
