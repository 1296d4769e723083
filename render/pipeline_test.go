package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"

	"avatarworld/avatar"
	"avatarworld/world"
)

type fakeResolver struct {
	urls     map[string]string
	resolved []string
}

func (f *fakeResolver) ResolveFrame(e avatar.Animated) (avatar.Frame, bool) {
	ent := e.(*world.Entity)
	f.resolved = append(f.resolved, ent.ID)
	u, ok := f.urls[ent.ID]
	return avatar.Frame{URL: u, Mirror: ent.Facing == world.West}, ok
}

type fakeSurfaces struct {
	ready  map[string]bool
	images map[string]*ebiten.Image
	labels map[string]*ebiten.Image
}

func (f *fakeSurfaces) Surface(u string, _, _ float64, _ bool) *ebiten.Image { return f.images[u] }
func (f *fakeSurfaces) Label(name string) *ebiten.Image { return f.labels[name] }
func (f *fakeSurfaces) Ready(u string) bool { return f.ready[u] }

func TestCameraCentersAwayFromEdges(t *testing.T) {
	x, y := Camera(1000, 900, 400, 300, 2048, 2048)
	if x != 800 || y != 750 {
		t.Fatalf("got (%v,%v) want (800,750)", x, y)
	}
}

func TestCameraClampsAtEdges(t *testing.T) {
	cases := []struct {
		name         string
		px, py       float64
		wantX, wantY float64
	}{
		{"TopLeft", 10, 20, 0, 0},
		{"BottomRight", 2040, 2047, 2048 - 400, 2048 - 300},
		{"Left", 100, 1000, 0, 850},
	}
	for _, tt := range cases {
		x, y := Camera(tt.px, tt.py, 400, 300, 2048, 2048)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("%v: got (%v,%v) want (%v,%v)", tt.name, x, y, tt.wantX, tt.wantY)
		}
	}
}

func TestCameraViewLargerThanWorld(t *testing.T) {
	x, y := Camera(50, 50, 400, 300, 100, 100)
	if x != 0 || y != 0 {
		t.Fatalf("got (%v,%v) want origin", x, y)
	}
}

func TestVisibleUsesMargin(t *testing.T) {
	cases := []struct {
		sx, sy float64
		want   bool
	}{
		{0, 0, true},
		{-63, 10, true},
		{-65, 10, false},
		{400 + 64, 300, true},
		{400 + 65, 300, false},
		{200, 300 + 70, false},
	}
	for _, tt := range cases {
		if got := Visible(tt.sx, tt.sy, 400, 300, 64); got != tt.want {
			t.Errorf("(%v,%v): got %v want %v", tt.sx, tt.sy, got, tt.want)
		}
	}
}

func newTestPipeline(res *fakeResolver, surf *fakeSurfaces) (*Pipeline, *world.Store) {
	store := world.NewStore(2048, 2048)
	cfg := Config{ViewWidth: 400, ViewHeight: 300, AvatarSize: 64, LabelGap: 4}
	return NewPipeline(cfg, store, res, surf, "world.png"), store
}

func TestPlanCullsAndSkipsUnresolved(t *testing.T) {
	res := &fakeResolver{urls: map[string]string{
		"me":   "me.png",
		"near": "near.png",
		"far":  "far.png",
	}}
	p, store := newTestPipeline(res, &fakeSurfaces{})
	store.SetLocal(&world.Entity{ID: "me", X: 1000, Y: 1000})
	store.Upsert(&world.Entity{ID: "near", X: 1100, Y: 1000, Facing: world.West})
	store.Upsert(&world.Entity{ID: "far", X: 1800, Y: 1000})
	store.Upsert(&world.Entity{ID: "nourl", X: 1000, Y: 1050})

	plan := p.Plan()
	if len(plan) != 2 {
		t.Fatalf("expected 2 placements, got %d", len(plan))
	}
	if plan[0].Entity.ID != "near" || plan[1].Entity.ID != "me" {
		t.Fatalf("unexpected placements %v %v", plan[0].Entity.ID, plan[1].Entity.ID)
	}
	if !plan[0].Flip || plan[1].Flip {
		t.Fatalf("flip flags wrong: %v %v", plan[0].Flip, plan[1].Flip)
	}
	if plan[1].X != 200 || plan[1].Y != 150 {
		t.Fatalf("local screen position (%v,%v) want (200,150)", plan[1].X, plan[1].Y)
	}
	for _, id := range res.resolved {
		if id == "far" {
			t.Fatalf("culled entity was resolved")
		}
	}
}

func TestPlanEmptyWithoutLocal(t *testing.T) {
	p, store := newTestPipeline(&fakeResolver{}, &fakeSurfaces{})
	store.Upsert(&world.Entity{ID: "a"})
	if plan := p.Plan(); plan != nil {
		t.Fatalf("expected no plan before join, got %v", plan)
	}
}

func TestUpdateStateTransitions(t *testing.T) {
	surf := &fakeSurfaces{ready: map[string]bool{}}
	p, store := newTestPipeline(&fakeResolver{}, surf)
	if p.Update(1) != Loading {
		t.Fatalf("ready without prerequisites")
	}

	store.SetLocal(&world.Entity{ID: "me"})
	if p.Update(1) != Loading {
		t.Fatalf("ready before world image decoded")
	}

	surf.ready["world.png"] = true
	if p.Update(0) != Loading {
		t.Fatalf("ready with no avatars while online")
	}

	p.Draw(ebiten.NewImage(16, 16))
	if p.Dirty() {
		t.Fatalf("draw did not clear the dirty flag")
	}
	if p.Update(3) != Ready {
		t.Fatalf("expected ready")
	}
	if !p.Dirty() {
		t.Fatalf("state change did not schedule a repaint")
	}
}

func TestUpdateReadyOffline(t *testing.T) {
	surf := &fakeSurfaces{ready: map[string]bool{"world.png": true}}
	p, store := newTestPipeline(&fakeResolver{}, surf)
	store.SetOffline("guest", avatar.DefaultName)
	if p.Update(0) != Ready {
		t.Fatalf("offline client should not wait for avatars")
	}
}

func TestDrawOnlyWhenDirty(t *testing.T) {
	p, _ := newTestPipeline(&fakeResolver{}, &fakeSurfaces{})
	screen := ebiten.NewImage(32, 32)
	if !p.Draw(screen) {
		t.Fatalf("first draw skipped")
	}
	if p.Draw(screen) {
		t.Fatalf("redrew without changes")
	}
	p.MarkDirty()
	if !p.Draw(screen) {
		t.Fatalf("dirty frame not drawn")
	}
	p.SetViewport(400, 300)
	if p.Dirty() {
		t.Fatalf("unchanged viewport marked dirty")
	}
	p.SetViewport(800, 600)
	if !p.Dirty() {
		t.Fatalf("resize did not mark dirty")
	}
}

func TestSetWorldSwitchesReadinessSource(t *testing.T) {
	surf := &fakeSurfaces{ready: map[string]bool{"generated:world": true}}
	p, store := newTestPipeline(&fakeResolver{}, surf)
	store.SetOffline("guest", avatar.DefaultName)
	if p.Update(0) != Loading {
		t.Fatalf("ready with undecoded world image")
	}
	p.SetWorld("generated:world")
	if p.World() != "generated:world" || p.Update(0) != Ready {
		t.Fatalf("replacement world image not used")
	}
}

func TestPlacementMath(t *testing.T) {
	if x, y := SpriteOrigin(100, 80, 32, 48); x != 84 || y != 56 {
		t.Fatalf("sprite origin (%v,%v) want (84,56)", x, y)
	}
	if x, y := LabelOrigin(100, 80, 48, 40, 12, 4); x != 80 || y != 40 {
		t.Fatalf("label origin (%v,%v) want (80,40)", x, y)
	}

	bounds := image.Rect(0, 0, 1000, 1000)
	cases := []struct {
		name       string
		camX, camY float64
		want       image.Rectangle
		x, y       float64
	}{
		{"Inside", 600, 700, image.Rect(600, 700, 1000, 1000), 0, 0},
		{"PastRightEdge", 800, 0, image.Rect(800, 0, 1000, 300), 0, 0},
		{"BeforeOrigin", -100, -50, image.Rect(0, 0, 300, 250), 100, 50},
		{"Outside", 2000, 2000, image.Rectangle{}, 0, 0},
	}
	for _, tt := range cases {
		r, x, y := WorldSource(tt.camX, tt.camY, 400, 300, bounds)
		if r.Empty() && tt.want.Empty() {
			continue
		}
		if r != tt.want || x != tt.x || y != tt.y {
			t.Errorf("%v: got %v at (%v,%v) want %v at (%v,%v)", tt.name, r, x, y, tt.want, tt.x, tt.y)
		}
	}
}

func filled(w, h int, c color.Color) *ebiten.Image {
	img := ebiten.NewImage(w, h)
	img.Fill(c)
	return img
}

func pixel(img *ebiten.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

var (
	testBackground = color.RGBA{0x01, 0x02, 0x03, 0xff}
	red            = color.RGBA{0xff, 0, 0, 0xff}
	blue           = color.RGBA{0, 0, 0xff, 0xff}
	green          = color.RGBA{0, 0xff, 0, 0xff}
	yellow         = color.RGBA{0xff, 0xff, 0, 0xff}
)

func readyPipeline(t *testing.T, w, h float64, surf *fakeSurfaces, local *world.Entity) *Pipeline {
	t.Helper()
	store := world.NewStore(w, h)
	store.SetLocal(local)
	cfg := Config{ViewWidth: 400, ViewHeight: 300, AvatarSize: 64, LabelGap: 4, Background: testBackground}
	res := &fakeResolver{urls: map[string]string{local.ID: "me.png"}}
	p := NewPipeline(cfg, store, res, surf, "world.png")
	if p.Update(1) != Ready {
		t.Fatalf("pipeline not ready")
	}
	return p
}

func TestDrawSpriteLabelAndWorldEdge(t *testing.T) {
	surf := &fakeSurfaces{
		ready:  map[string]bool{"world.png": true},
		images: map[string]*ebiten.Image{"world.png": filled(300, 200, red), "me.png": filled(10, 10, blue)},
		labels: map[string]*ebiten.Image{"alice": filled(20, 6, green)},
	}
	p := readyPipeline(t, 300, 200, surf, &world.Entity{ID: "me", Username: "alice", X: 50, Y: 50})
	screen := ebiten.NewImage(400, 300)
	if !p.Draw(screen) {
		t.Fatalf("nothing drawn")
	}
	cases := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"SpriteCentre", 50, 50, blue},
		{"SpriteTopLeft", 45, 45, blue},
		{"LeftOfSprite", 44, 50, red},
		{"Label", 50, 37, green},
		{"LabelLeftEdge", 40, 35, green},
		{"Gap", 50, 42, red},
		{"World", 250, 150, red},
		{"PastWorldRight", 310, 50, testBackground},
		{"PastWorldCorner", 350, 250, testBackground},
	}
	for _, tt := range cases {
		if got := pixel(screen, tt.x, tt.y); got != tt.want {
			t.Errorf("%v (%d,%d): got %v want %v", tt.name, tt.x, tt.y, got, tt.want)
		}
	}
}

func TestDrawWorldUnderCamera(t *testing.T) {
	bg := filled(1000, 1000, red)
	bg.SubImage(image.Rect(600, 700, 610, 710)).(*ebiten.Image).Fill(yellow)
	surf := &fakeSurfaces{
		ready:  map[string]bool{"world.png": true},
		images: map[string]*ebiten.Image{"world.png": bg},
	}
	p := readyPipeline(t, 1000, 1000, surf, &world.Entity{ID: "me", X: 900, Y: 900})
	screen := ebiten.NewImage(400, 300)
	p.Draw(screen)
	if got := pixel(screen, 2, 2); got != yellow {
		t.Fatalf("camera corner got %v want yellow", got)
	}
	if got := pixel(screen, 20, 20); got != red {
		t.Fatalf("got %v want red", got)
	}
}
