// Package render draws the world and its entities from the local player's
// point of view.
package render

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	text "github.com/hajimehoshi/ebiten/v2/text/v2"

	"avatarworld/avatar"
	"avatarworld/sprite"
	"avatarworld/world"
)

// State is the pipeline's readiness.
type State uint8

const (
	Loading State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "loading"
}

// Resolver picks the sprite frame for an entity.
type Resolver interface {
	ResolveFrame(e avatar.Animated) (avatar.Frame, bool)
}

// Surfaces provides drawable images. Surface returns nil for images that
// are not decoded yet.
type Surfaces interface {
	Surface(url string, w, h float64, flip bool) *ebiten.Image
	Label(name string) *ebiten.Image
	Ready(url string) bool
}

// Config holds the drawing parameters.
type Config struct {
	ViewWidth, ViewHeight int

	// AvatarSize is the cull margin around the viewport.
	AvatarSize float64

	// LabelGap is the space between a sprite's top edge and its label.
	LabelGap float64

	Background color.Color
	Foreground color.Color
}

// Placement is an entity that survived culling with its sprite resolved.
type Placement struct {
	Entity *world.Entity
	URL    string
	Flip   bool

	// X and Y are the entity's screen coordinates.
	X, Y float64
}

// Pipeline paints the scene when something changed since the last paint.
type Pipeline struct {
	cfg      Config
	store    *world.Store
	resolver Resolver
	surfaces Surfaces
	worldURL string

	state State
	dirty bool
}

// NewPipeline returns a pipeline in the Loading state with a pending paint.
func NewPipeline(cfg Config, store *world.Store, resolver Resolver, surfaces Surfaces, worldURL string) *Pipeline {
	if cfg.Background == nil {
		cfg.Background = color.RGBA{0x20, 0x22, 0x28, 0xff}
	}
	if cfg.Foreground == nil {
		cfg.Foreground = color.White
	}
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		surfaces: surfaces,
		worldURL: worldURL,
		dirty:    true,
	}
}

// State returns the current state.
func (p *Pipeline) State() State { return p.state }

// MarkDirty schedules a repaint.
func (p *Pipeline) MarkDirty() { p.dirty = true }

// Dirty reports whether a repaint is pending.
func (p *Pipeline) Dirty() bool { return p.dirty }

// SetViewport changes the view size.
func (p *Pipeline) SetViewport(w, h int) {
	if w == p.cfg.ViewWidth && h == p.cfg.ViewHeight {
		return
	}
	p.cfg.ViewWidth, p.cfg.ViewHeight = w, h
	p.dirty = true
}

// SetWorld switches the background image, for example to a generated one
// when the configured image cannot be loaded.
func (p *Pipeline) SetWorld(url string) {
	if url == p.worldURL {
		return
	}
	p.worldURL = url
	p.dirty = true
}

// World returns the background image URL.
func (p *Pipeline) World() string { return p.worldURL }

// Viewport returns the view size.
func (p *Pipeline) Viewport() (int, int) { return p.cfg.ViewWidth, p.cfg.ViewHeight }

// Update moves to Ready once the world image is decoded, the local player
// exists and there are avatars to draw (or the client runs offline).
func (p *Pipeline) Update(avatars int) State {
	next := Loading
	if p.surfaces.Ready(p.worldURL) && p.store.Local() != nil && (avatars > 0 || p.store.Offline()) {
		next = Ready
	}
	if next != p.state {
		p.state = next
		p.dirty = true
	}
	return p.state
}

// Camera returns the current view origin in world coordinates.
func (p *Pipeline) Camera() (float64, float64) {
	local := p.store.Local()
	if local == nil {
		return 0, 0
	}
	ww, wh := p.store.Bounds()
	return Camera(local.X, local.Y, float64(p.cfg.ViewWidth), float64(p.cfg.ViewHeight), ww, wh)
}

// Plan returns the entities to draw this frame: every entity whose screen
// position is within one avatar size of the viewport and whose sprite
// resolves. Remote entities come first, the local player last.
func (p *Pipeline) Plan() []Placement {
	if p.store.Local() == nil {
		return nil
	}
	camX, camY := p.Camera()
	vw, vh := float64(p.cfg.ViewWidth), float64(p.cfg.ViewHeight)
	all := p.store.All()
	out := make([]Placement, 0, len(all))
	for _, e := range all {
		sx, sy := e.X-camX, e.Y-camY
		if !Visible(sx, sy, vw, vh, p.cfg.AvatarSize) {
			continue
		}
		f, ok := p.resolver.ResolveFrame(e)
		if !ok {
			continue
		}
		out = append(out, Placement{Entity: e, URL: f.URL, Flip: f.Mirror, X: sx, Y: sy})
	}
	return out
}

// Draw paints screen if a repaint is pending and reports whether it did.
// While loading only the loading indicator is drawn.
func (p *Pipeline) Draw(screen *ebiten.Image) bool {
	if !p.dirty {
		return false
	}
	screen.Fill(p.cfg.Background)
	if p.state != Ready {
		p.drawLoading(screen)
	} else {
		p.drawWorld(screen)
		p.drawEntities(screen)
	}
	p.dirty = false
	return true
}

func (p *Pipeline) drawLoading(screen *ebiten.Image) {
	const msg = "Loading..."
	face := sprite.Face(20)
	w, h := text.Measure(msg, face, 0)
	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	op := &text.DrawOptions{}
	op.GeoM.Translate((float64(sw)-w)/2, (float64(sh)-h)/2)
	op.ColorScale.ScaleWithColor(p.cfg.Foreground)
	text.Draw(screen, msg, face, op)
}

// drawWorld copies the part of the world image under the viewport. Parts
// of the viewport past the image keep the background fill.
func (p *Pipeline) drawWorld(screen *ebiten.Image) {
	img := p.surfaces.Surface(p.worldURL, 0, 0, false)
	if img == nil {
		return
	}
	camX, camY := p.Camera()
	r, x, y := WorldSource(camX, camY, p.cfg.ViewWidth, p.cfg.ViewHeight, img.Bounds())
	if r.Empty() {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(x, y)
	screen.DrawImage(img.SubImage(r).(*ebiten.Image), op)
}

// WorldSource returns the part of a world image with bounds b that lies
// under a viewW×viewH view at (camX, camY), and where it lands on screen.
func WorldSource(camX, camY float64, viewW, viewH int, b image.Rectangle) (image.Rectangle, float64, float64) {
	view := image.Rect(int(camX), int(camY), int(camX)+viewW, int(camY)+viewH)
	r := view.Intersect(b)
	return r, float64(r.Min.X) - camX, float64(r.Min.Y) - camY
}

// SpriteOrigin returns the top-left corner of a w×h sprite centred on (x, y).
func SpriteOrigin(x, y, w, h float64) (float64, float64) {
	return x - w/2, y - h/2
}

// LabelOrigin returns the top-left corner of a lw×lh label centred above a
// sprite of height spriteH at (x, y), gap pixels above its top edge.
func LabelOrigin(x, y, spriteH, lw, lh, gap float64) (float64, float64) {
	return x - lw/2, y - spriteH/2 - gap - lh
}

func (p *Pipeline) drawEntities(screen *ebiten.Image) {
	for _, pl := range p.Plan() {
		s := p.surfaces.Surface(pl.URL, pl.Entity.Width, pl.Entity.Height, pl.Flip)
		if s == nil {
			continue
		}
		w, h := float64(s.Bounds().Dx()), float64(s.Bounds().Dy())
		op := &ebiten.DrawImageOptions{}
		op.GeoM.Translate(SpriteOrigin(pl.X, pl.Y, w, h))
		screen.DrawImage(s, op)

		lbl := p.surfaces.Label(pl.Entity.Username)
		if lbl == nil {
			continue
		}
		lw, lh := float64(lbl.Bounds().Dx()), float64(lbl.Bounds().Dy())
		lop := &ebiten.DrawImageOptions{}
		lop.GeoM.Translate(LabelOrigin(pl.X, pl.Y, h, lw, lh, p.cfg.LabelGap))
		screen.DrawImage(lbl, lop)
	}
}
