package avatar

import (
	"strings"

	"go.uber.org/zap"

	"avatarworld/world"
)

// MinPayloadBytes is the shortest embedded image payload treated as plausible.
// Anything shorter is assumed to have been cut off in transit.
const MinPayloadBytes = 100

// Animated is what the resolver needs to know about an entity.
type Animated interface {
	AvatarName() string
	Heading() world.Facing
	FrameIndex() int
	IsLocal() bool
	DisplayedURL() string
	SetDisplayedURL(string)
}

// ImageSource starts decodes and reports decode failures.
type ImageSource interface {
	Request(url string)
	Failed(url string) bool
}

// Resolver picks the sprite URL for an entity's current facing and frame.
type Resolver struct {
	catalog    *Catalog
	images     ImageSource
	minPayload int
	log        *zap.SugaredLogger
}

// NewResolver returns a resolver reading from catalog and decoding through
// images. images may be nil.
func NewResolver(catalog *Catalog, images ImageSource, log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{
		catalog:    catalog,
		images:     images,
		minPayload: MinPayloadBytes,
		log:        log,
	}
}

// Frame is a resolved sprite. Mirror is set when the image comes from the
// east sequence and is drawn flipped for a west-facing entity.
type Frame struct {
	URL    string
	Mirror bool
}

// Resolve returns the sprite URL e should display. See ResolveFrame.
func (r *Resolver) Resolve(e Animated) (string, bool) {
	f, ok := r.ResolveFrame(e)
	return f.URL, ok
}

// ResolveFrame returns the frame e should display. When the URL differs from
// the one e currently shows, e is updated and a decode is requested. ok is
// false when nothing can be drawn for e this tick.
func (r *Resolver) ResolveFrame(e Animated) (Frame, bool) {
	f, ok := r.primary(e)
	if ok && r.unusable(e, f.URL) {
		alt, altOK := r.fallback(e)
		if !altOK || alt.URL == f.URL || r.unusable(e, alt.URL) {
			ok = false
		} else {
			r.log.Debugw("sprite fallback", "avatar", e.AvatarName(), "facing", e.Heading().String(), "from", shortURL(f.URL))
			f = alt
		}
	}
	if !ok {
		e.SetDisplayedURL("")
		return Frame{}, false
	}
	if f.URL != e.DisplayedURL() {
		e.SetDisplayedURL(f.URL)
		if r.images != nil {
			r.images.Request(f.URL)
		}
	}
	return f, true
}

func (r *Resolver) primary(e Animated) (Frame, bool) {
	def, ok := r.catalog.Get(e.AvatarName())
	if !ok {
		def, ok = r.catalog.Get(DefaultName)
	}
	if !ok && !e.IsLocal() {
		def, ok = r.catalog.Any()
	}
	if !ok {
		return Frame{}, false
	}
	return pickFacing(def, e.Heading(), e.FrameIndex())
}

// fallback resolves against the default avatar, trying the entity's facing
// first and then south.
func (r *Resolver) fallback(e Animated) (Frame, bool) {
	def, ok := r.catalog.Get(DefaultName)
	if !ok {
		return Frame{}, false
	}
	if f, ok := pickFacing(def, e.Heading(), e.FrameIndex()); ok {
		return f, true
	}
	return pickFacing(def, world.South, e.FrameIndex())
}

// unusable reports a URL that is known bad: a truncated embedded payload on
// a remote entity, or a URL whose decode already failed.
func (r *Resolver) unusable(e Animated, url string) bool {
	if !e.IsLocal() && Truncated(url, r.minPayload) {
		return true
	}
	return r.images != nil && r.images.Failed(url)
}

func sourceFacing(f world.Facing) world.Facing {
	if f == world.West {
		return world.East
	}
	return f
}

// pickFacing selects frame idx of the sequence for f. West reads the east
// sequence and is marked for mirroring.
func pickFacing(def *Definition, f world.Facing, idx int) (Frame, bool) {
	u, ok := pick(def.FramesFor(sourceFacing(f)), idx)
	if !ok {
		return Frame{}, false
	}
	return Frame{URL: u, Mirror: f == world.West}, true
}

func pick(frames []string, idx int) (string, bool) {
	if len(frames) == 0 {
		return "", false
	}
	if idx >= 0 && idx < len(frames) && frames[idx] != "" {
		return frames[idx], true
	}
	if frames[0] == "" {
		return "", false
	}
	return frames[0], true
}

// Truncated reports whether url is an embedded data URL whose payload is
// shorter than min bytes. Other URLs are never considered truncated.
func Truncated(url string, min int) bool {
	if !strings.HasPrefix(url, "data:") {
		return false
	}
	i := strings.IndexByte(url, ',')
	if i < 0 {
		return true
	}
	return len(url)-i-1 < min
}

func shortURL(u string) string {
	if len(u) > 48 {
		return u[:48] + "..."
	}
	return u
}
