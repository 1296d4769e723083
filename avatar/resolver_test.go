package avatar

import (
	"strings"
	"testing"

	"avatarworld/world"
)

type fakeImages struct {
	requested []string
	failed    map[string]bool
}

func (f *fakeImages) Request(url string) { f.requested = append(f.requested, url) }
func (f *fakeImages) Failed(url string) bool { return f.failed[url] }

func dataURL(n int) string {
	return "data:image/png;base64," + strings.Repeat("A", n)
}

func newCatalog(defs ...*Definition) *Catalog {
	c := NewCatalog()
	for _, d := range defs {
		c.Put(d)
	}
	return c
}

func knight() *Definition {
	return &Definition{Name: "knight", Frames: map[world.Facing][]string{
		world.South: {"k-s0.png", "k-s1.png", "k-s2.png"},
		world.North: {"k-n0.png"},
		world.East:  {"k-e0.png", "k-e1.png", "k-e2.png"},
	}}
}

func defaultAvatar() *Definition {
	return &Definition{Name: DefaultName, Frames: map[world.Facing][]string{
		world.South: {"d-s0.png", "d-s1.png"},
		world.East:  {"d-e0.png"},
	}}
}

func TestResolveWestUsesEastFrame(t *testing.T) {
	imgs := &fakeImages{}
	r := NewResolver(newCatalog(knight()), imgs, nil)
	e := &world.Entity{Avatar: "knight", Facing: world.West, Frame: 2}
	f, ok := r.ResolveFrame(e)
	if !ok || f.URL != "k-e2.png" {
		t.Fatalf("got %q,%v want k-e2.png", f.URL, ok)
	}
	if !f.Mirror {
		t.Fatalf("west must be drawn mirrored")
	}
	e.Facing = world.East
	if f, _ := r.ResolveFrame(e); f.Mirror {
		t.Fatalf("east must not be mirrored")
	}
}

func TestResolveServerFrameIndex(t *testing.T) {
	walker := &Definition{Name: "walker", Frames: map[world.Facing][]string{
		world.South: {"f0", "f1", "f2", "f3"},
	}}
	r := NewResolver(newCatalog(walker), &fakeImages{}, nil)
	cases := []struct {
		frame int
		want  string
	}{
		{3, "f3"},
		{-1, "f0"},
		{7, "f0"},
	}
	for _, tt := range cases {
		e := &world.Entity{Avatar: "walker"}
		e.SetFrame(tt.frame)
		if url, ok := r.Resolve(e); !ok || url != tt.want {
			t.Errorf("frame %d: got %q,%v want %s", tt.frame, url, ok, tt.want)
		}
	}
}

func TestResolveUnknownAvatarUsesDefault(t *testing.T) {
	r := NewResolver(newCatalog(defaultAvatar()), &fakeImages{}, nil)
	e := &world.Entity{Avatar: "ghost", Facing: world.South, Frame: 1}
	url, ok := r.Resolve(e)
	if !ok || url != "d-s1.png" {
		t.Fatalf("got %q,%v want d-s1.png", url, ok)
	}
}

func TestResolveRemoteFallsBackToAnyAvatar(t *testing.T) {
	r := NewResolver(newCatalog(knight()), &fakeImages{}, nil)
	remote := &world.Entity{Avatar: "ghost", Facing: world.North}
	if url, ok := r.Resolve(remote); !ok || url != "k-n0.png" {
		t.Fatalf("remote: got %q,%v want k-n0.png", url, ok)
	}

	local := &world.Entity{Avatar: "ghost", Facing: world.North, Local: true}
	if url, ok := r.Resolve(local); ok {
		t.Fatalf("local entity must not borrow an arbitrary avatar, got %q", url)
	}
}

func TestResolveMissingFrameUsesFirst(t *testing.T) {
	r := NewResolver(newCatalog(knight()), &fakeImages{}, nil)
	e := &world.Entity{Avatar: "knight", Facing: world.North, Frame: 2}
	if url, ok := r.Resolve(e); !ok || url != "k-n0.png" {
		t.Fatalf("got %q,%v want k-n0.png", url, ok)
	}
}

func TestResolveMissingFacingFails(t *testing.T) {
	d := &Definition{Name: "blob", Frames: map[world.Facing][]string{world.South: {"b.png"}}}
	r := NewResolver(newCatalog(d), &fakeImages{}, nil)
	e := &world.Entity{Avatar: "blob", Facing: world.North, SpriteURL: "old.png"}
	if url, ok := r.Resolve(e); ok {
		t.Fatalf("expected failure, got %q", url)
	}
	if e.SpriteURL != "" {
		t.Fatalf("displayed URL not cleared: %q", e.SpriteURL)
	}
}

func TestResolveEmptyCatalogFails(t *testing.T) {
	r := NewResolver(NewCatalog(), &fakeImages{}, nil)
	if _, ok := r.Resolve(&world.Entity{Avatar: "knight"}); ok {
		t.Fatalf("expected failure with empty catalog")
	}
}

func TestResolveRequestsDecodeOnChange(t *testing.T) {
	imgs := &fakeImages{}
	r := NewResolver(newCatalog(knight()), imgs, nil)
	e := &world.Entity{Avatar: "knight", Facing: world.South}
	r.Resolve(e)
	r.Resolve(e)
	if len(imgs.requested) != 1 || imgs.requested[0] != "k-s0.png" {
		t.Fatalf("unexpected requests %v", imgs.requested)
	}
	if e.SpriteURL != "k-s0.png" {
		t.Fatalf("displayed URL not stored: %q", e.SpriteURL)
	}
	e.Frame = 1
	r.Resolve(e)
	if len(imgs.requested) != 2 || imgs.requested[1] != "k-s1.png" {
		t.Fatalf("frame change not requested: %v", imgs.requested)
	}
}

func TestResolveTruncatedRemotePayload(t *testing.T) {
	bad := &Definition{Name: "broken", Frames: map[world.Facing][]string{
		world.North: {dataURL(10)},
	}}
	def := &Definition{Name: DefaultName, Frames: map[world.Facing][]string{
		world.South: {dataURL(200)},
	}}
	r := NewResolver(newCatalog(bad, def), &fakeImages{}, nil)

	remote := &world.Entity{Avatar: "broken", Facing: world.North}
	url, ok := r.Resolve(remote)
	if !ok || url != dataURL(200) {
		t.Fatalf("remote truncated payload not replaced by default south frame")
	}

	local := &world.Entity{Avatar: "broken", Facing: world.North, Local: true}
	url, ok = r.Resolve(local)
	if !ok || url != dataURL(10) {
		t.Fatalf("local entity must keep its own frame")
	}
}

func TestResolveTruncatedUsesDefaultSameFacing(t *testing.T) {
	bad := &Definition{Name: "broken", Frames: map[world.Facing][]string{
		world.East: {dataURL(3)},
	}}
	r := NewResolver(newCatalog(bad, defaultAvatar()), &fakeImages{}, nil)
	e := &world.Entity{Avatar: "broken", Facing: world.West}
	f, ok := r.ResolveFrame(e)
	if !ok || f.URL != "d-e0.png" || !f.Mirror {
		t.Fatalf("got %+v,%v want mirrored d-e0.png", f, ok)
	}
}

func TestResolveSouthFallbackNotMirrored(t *testing.T) {
	bad := &Definition{Name: "broken", Frames: map[world.Facing][]string{
		world.East: {dataURL(3)},
	}}
	def := &Definition{Name: DefaultName, Frames: map[world.Facing][]string{
		world.South: {"d-s0.png"},
	}}
	r := NewResolver(newCatalog(bad, def), &fakeImages{}, nil)
	e := &world.Entity{Avatar: "broken", Facing: world.West}
	f, ok := r.ResolveFrame(e)
	if !ok || f.URL != "d-s0.png" {
		t.Fatalf("got %+v,%v want d-s0.png", f, ok)
	}
	if f.Mirror {
		t.Fatalf("south frame drawn mirrored")
	}
}

func TestResolveDecodeFailureFallsBackOnce(t *testing.T) {
	imgs := &fakeImages{failed: map[string]bool{"k-n0.png": true}}
	r := NewResolver(newCatalog(knight(), defaultAvatar()), imgs, nil)
	e := &world.Entity{Avatar: "knight", Facing: world.North}
	if url, ok := r.Resolve(e); !ok || url != "d-s0.png" {
		t.Fatalf("got %q,%v want d-s0.png", url, ok)
	}

	imgs.failed["d-s0.png"] = true
	if url, ok := r.Resolve(e); ok {
		t.Fatalf("expected no sprite when the fallback also failed, got %q", url)
	}
}

func TestTruncated(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"http://example.com/a.png", false},
		{"data:image/png;base64", true},
		{dataURL(99), true},
		{dataURL(100), false},
	}
	for _, tt := range cases {
		if got := Truncated(tt.url, MinPayloadBytes); got != tt.want {
			t.Errorf("%.40q: got %v want %v", tt.url, got, tt.want)
		}
	}
}

func TestCatalogRedefinitionOverwrites(t *testing.T) {
	c := newCatalog(knight())
	c.Put(&Definition{Name: "knight", Frames: map[world.Facing][]string{world.South: {"new.png"}}})
	d, _ := c.Get("knight")
	if got := d.FramesFor(world.South); len(got) != 1 || got[0] != "new.png" {
		t.Fatalf("redefinition not applied: %v", got)
	}
	if c.Len() != 1 {
		t.Fatalf("expected one definition, got %d", c.Len())
	}
}
