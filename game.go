package main

import (
	"context"
	"image/color"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	dark "github.com/thiagokokada/dark-mode-go"

	"avatarworld/avatar"
	"avatarworld/movement"
	"avatarworld/netclient"
	"avatarworld/protocol"
	"avatarworld/render"
	"avatarworld/sprite"
	"avatarworld/world"
)

// maxInboundPerTick keeps a burst of server messages from stalling a frame.
const maxInboundPerTick = 512

var directionKeys = map[movement.Direction][]ebiten.Key{
	movement.Up:    {ebiten.KeyArrowUp, ebiten.KeyW},
	movement.Down:  {ebiten.KeyArrowDown, ebiten.KeyS},
	movement.Left:  {ebiten.KeyArrowLeft, ebiten.KeyA},
	movement.Right: {ebiten.KeyArrowRight, ebiten.KeyD},
}

// inputState is what one tick needs from the keyboard and window.
type inputState interface {
	Focused() bool
	Down(d movement.Direction) bool
	ToggleStats() bool
}

type ebitenInput struct{}

func (ebitenInput) Focused() bool { return ebiten.IsFocused() }

func (ebitenInput) Down(d movement.Direction) bool {
	for _, k := range directionKeys[d] {
		if ebiten.IsKeyPressed(k) {
			return true
		}
	}
	return false
}

func (ebitenInput) ToggleStats() bool { return inpututil.IsKeyJustPressed(ebiten.KeyF3) }

type connResult struct {
	conn *netclient.Client
	err  error
}

type Game struct {
	cfg Settings
	ctx context.Context
	now func() time.Time

	store    *world.Store
	catalog  *avatar.Catalog
	pred     *movement.Predictor
	handler  *protocol.Handler
	resolver *avatar.Resolver
	cache    *sprite.Cache
	pipe     *render.Pipeline

	conn   *netclient.Client
	dialed chan connResult

	started      time.Time
	joinDeadline time.Time
	tickDur      time.Duration
	generated    bool
	builtin      bool
	showStats    bool
}

func newGame(ctx context.Context, cfg Settings, loader sprite.Loader) *Game {
	cfg.applyDefaults()
	size := cfg.WorldSize
	g := &Game{
		cfg:       cfg,
		ctx:       ctx,
		now:       time.Now,
		dialed:    make(chan connResult, 1),
		tickDur:   time.Second / time.Duration(cfg.TPS),
		showStats: cfg.ShowStats,
	}
	g.store = world.NewStore(size, size)
	g.catalog = avatar.NewCatalog()
	g.pred = movement.NewPredictor(size, size, cfg.Speed, cfg.ReconcileGrace())
	g.cache = sprite.NewCache(loader, cfg.DecodeWorkers, logger.Named("sprite"))
	g.resolver = avatar.NewResolver(g.catalog, g.cache, logger.Named("avatar"))
	g.handler = protocol.NewHandler(g.store, g.catalog, g.pred, nil, logger.Named("protocol"))

	bg, fg := themeColors(cfg.Theme)
	g.pipe = render.NewPipeline(render.Config{
		ViewWidth:  cfg.ViewWidth,
		ViewHeight: cfg.ViewHeight,
		AvatarSize: cfg.AvatarSize,
		LabelGap:   cfg.LabelGap,
		Background: bg,
		Foreground: fg,
	}, g.store, g.resolver, g.cache, cfg.WorldImage)
	g.handler.OnChange = g.pipe.MarkDirty

	g.started = g.now()
	g.joinDeadline = g.started.Add(cfg.JoinTimeout())
	g.cache.Request(cfg.WorldImage)
	return g
}

// connect dials the server in the background; the result is picked up by
// the next tick.
func (g *Game) connect() {
	go func() {
		c, err := netclient.Dial(g.ctx, g.cfg.Server, netclient.Options{Log: logger.Named("net")})
		g.dialed <- connResult{conn: c, err: err}
	}()
}

func (g *Game) Update() error {
	select {
	case <-g.ctx.Done():
		return ebiten.Termination
	default:
	}
	g.tick(ebitenInput{})
	return nil
}

// tick runs one step of the client: network, input, prediction, decodes,
// timeouts and readiness, in that order.
func (g *Game) tick(in inputState) {
	g.pollDial()
	g.drainInbound()
	g.checkConnection()

	if in.ToggleStats() {
		g.showStats = !g.showStats
		g.pipe.MarkDirty()
	}
	g.pollInput(in)

	if local := g.store.Local(); local != nil && g.pred.Step(local, g.tickDur) {
		g.pipe.MarkDirty()
	}
	if g.cache.Poll() > 0 {
		g.pipe.MarkDirty()
	}
	g.checkWorldImage()
	g.checkJoinTimeout()
	g.checkOfflineAvatar()
	g.pipe.Update(g.catalog.Len())
	if g.showStats {
		g.pipe.MarkDirty()
	}
}

func (g *Game) pollDial() {
	if g.conn != nil {
		return
	}
	select {
	case r := <-g.dialed:
		if r.err != nil {
			g.handler.GoOffline(r.err.Error())
			return
		}
		if g.handler.Offline() {
			r.conn.Close()
			return
		}
		g.conn = r.conn
		g.handler.SetSender(r.conn)
		if err := g.handler.Join(g.cfg.Username); err != nil {
			logWarn("join request: %v", err)
		}
	default:
	}
}

func (g *Game) drainInbound() {
	if g.conn == nil {
		return
	}
	for i := 0; i < maxInboundPerTick; i++ {
		select {
		case msg := <-g.conn.Inbound():
			g.handler.Handle(msg)
		default:
			return
		}
	}
}

func (g *Game) checkConnection() {
	if g.conn == nil || g.handler.Offline() {
		return
	}
	select {
	case <-g.conn.Done():
		g.handler.GoOffline("connection lost: " + errString(g.conn.Err()))
	default:
	}
}

func (g *Game) pollInput(in inputState) {
	if !in.Focused() {
		if g.pred.ReleaseAll() {
			g.sendStop()
		}
		return
	}
	for _, d := range movement.Directions {
		down := in.Down(d)
		switch {
		case down && !g.pred.Held(d):
			if g.pred.Press(d) {
				if err := g.handler.Move(d); err != nil {
					logDebug("move %v: %v", d, err)
				}
			}
		case !down && g.pred.Held(d):
			if g.pred.Release(d) {
				g.sendStop()
			}
		}
	}
}

func (g *Game) sendStop() {
	if err := g.handler.Stop(); err != nil {
		logDebug("stop: %v", err)
	}
}

// checkWorldImage swaps in a generated background when the configured one
// cannot be loaded.
func (g *Game) checkWorldImage() {
	if g.generated || !g.cache.Failed(g.cfg.WorldImage) {
		return
	}
	size := int(g.cfg.WorldSize)
	g.cache.Put(generatedWorldURL, generateWorld(size, size))
	g.pipe.SetWorld(generatedWorldURL)
	g.generated = true
	logWarn("world image %q unavailable, using generated background", g.cfg.WorldImage)
}

func (g *Game) checkJoinTimeout() {
	if g.handler.Joined() || g.handler.Offline() {
		return
	}
	if g.now().Before(g.joinDeadline) {
		return
	}
	g.handler.GoOffline("join timed out")
	if g.conn != nil {
		g.conn.Close()
	}
}

// checkOfflineAvatar gives an offline client a drawable default avatar when
// the server never sent one.
func (g *Game) checkOfflineAvatar() {
	if g.builtin || !g.handler.Offline() {
		return
	}
	g.builtin = true
	if _, ok := g.catalog.Get(avatar.DefaultName); ok {
		return
	}
	def := &avatar.Definition{Name: avatar.DefaultName, Frames: make(map[world.Facing][]string)}
	for _, f := range []world.Facing{world.South, world.North, world.East} {
		u := generatedAvatarURL + f.String()
		g.cache.Put(u, generateAvatar(int(g.cfg.AvatarSize), f))
		def.Frames[f] = []string{u}
	}
	g.catalog.Put(def)
	g.pipe.MarkDirty()
}

func (g *Game) Draw(screen *ebiten.Image) {
	if !g.pipe.Draw(screen) {
		return
	}
	if g.showStats {
		g.drawStats(screen)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.pipe.SetViewport(outsideWidth, outsideHeight)
	return outsideWidth, outsideHeight
}

func (g *Game) close() {
	if g.conn != nil {
		g.conn.Close()
	}
	g.cache.Close()
}

func runGame(ctx context.Context, cfg Settings) error {
	cfg.applyDefaults()
	ebiten.SetWindowTitle("Avatar World")
	ebiten.SetWindowSize(cfg.ViewWidth, cfg.ViewHeight)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(cfg.TPS)
	// Frames are only repainted when something changed.
	ebiten.SetScreenClearedEveryFrame(false)

	assetDir := cfg.AssetDir
	if !filepath.IsAbs(assetDir) {
		assetDir = filepath.Join(baseDir, assetDir)
	}
	g := newGame(ctx, cfg, sprite.NewURLLoader(assetDir))
	defer g.close()
	g.connect()
	logger.Infow("starting", "server", cfg.Server, "username", cfg.Username, "tps", cfg.TPS)
	return ebiten.RunGame(g)
}

// themeColors picks background and text colors. An empty theme follows
// the OS dark mode setting.
func themeColors(theme string) (color.Color, color.Color) {
	darkMode := true
	switch strings.ToLower(theme) {
	case "light":
		darkMode = false
	case "dark":
	default:
		if d, err := dark.IsDarkMode(); err == nil {
			darkMode = d
		}
	}
	if darkMode {
		return color.RGBA{0x20, 0x22, 0x28, 0xff}, color.White
	}
	return color.RGBA{0xe6, 0xe4, 0xdc, 0xff}, color.Black
}

func errString(err error) string {
	if err == nil {
		return "closed"
	}
	return err.Error()
}
