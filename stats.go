package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hako/durafmt"

	"avatarworld/protocol"
	"avatarworld/sprite"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

// statsSnapshot is everything shown by the F3 overlay.
type statsSnapshot struct {
	FPS, TPS float64
	State    string
	Offline  bool
	Players  int
	Uptime   time.Duration
	Joined   time.Duration
	Messages protocol.Counters
	Cache    sprite.Stats
}

func formatStats(s statsSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FPS %.0f  TPS %.0f\n", s.FPS, s.TPS)
	mode := "online"
	if s.Offline {
		mode = "offline"
	}
	fmt.Fprintf(&b, "%s, %s, %d players\n", s.State, mode, s.Players)
	fmt.Fprintf(&b, "up %s", durafmt.Parse(s.Uptime.Truncate(time.Second)).LimitFirstN(2).Format(shortUnits))
	if s.Joined > 0 {
		fmt.Fprintf(&b, ", joined %s ago", durafmt.Parse(s.Joined.Truncate(time.Second)).LimitFirstN(2).Format(shortUnits))
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "msgs %d ok, %d dropped, %d waiting\n", s.Messages.Handled, s.Messages.Discarded, s.Messages.Buffered)
	c := s.Cache
	fmt.Fprintf(&b, "images %d (%s), %d failed, %d pending\n", c.Images, humanize.Bytes(uint64(c.ImageBytes)), c.Failed, c.Pending)
	fmt.Fprintf(&b, "surfaces %d (%s), labels %d (%s)", c.Surfaces, humanize.Bytes(uint64(c.SurfaceBytes)), c.Labels, humanize.Bytes(uint64(c.LabelBytes)))
	return b.String()
}

func (g *Game) snapshot() statsSnapshot {
	now := g.now()
	s := statsSnapshot{
		FPS:      ebiten.ActualFPS(),
		TPS:      ebiten.ActualTPS(),
		State:    g.pipe.State().String(),
		Offline:  g.handler.Offline(),
		Players:  g.store.Len(),
		Uptime:   now.Sub(g.started),
		Messages: g.handler.Counters(),
		Cache:    g.cache.Stats(),
	}
	if g.store.Local() != nil {
		s.Players++
	}
	if g.handler.Joined() {
		s.Joined = now.Sub(g.handler.JoinedAt())
	}
	return s
}

func (g *Game) drawStats(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, formatStats(g.snapshot()), 8, 8)
}
