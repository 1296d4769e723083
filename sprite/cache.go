// Package sprite decodes avatar and world images in the background and
// memoizes the scaled surfaces and name labels drawn from them.
package sprite

import (
	"context"
	"image"
	"math"
	"runtime"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/remeh/sizedwaitgroup"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
)

// SurfaceKey identifies a pre-rendered surface.
type SurfaceKey struct {
	URL  string
	W, H int
	Flip bool
}

type entry struct {
	img image.Image
	err error
}

type result struct {
	url string
	img image.Image
	err error
}

// Cache owns decoded images, surfaces and labels. Decodes run on worker
// goroutines; everything else happens on the update loop, which collects
// finished decodes with Poll.
type Cache struct {
	loader Loader
	log    *zap.SugaredLogger

	images   map[string]entry
	pending  map[string]struct{}
	surfaces map[SurfaceKey]*ebiten.Image
	labels   map[string]*ebiten.Image

	results chan result
	wg      sizedwaitgroup.SizedWaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	// upload turns a CPU image into a drawable surface.
	upload func(image.Image) *ebiten.Image
}

// NewCache returns a cache decoding through loader with at most workers
// concurrent decodes. workers <= 0 uses the number of CPUs.
func NewCache(loader Loader, workers int, log *zap.SugaredLogger) *Cache {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		loader:   loader,
		log:      log,
		images:   make(map[string]entry),
		pending:  make(map[string]struct{}),
		surfaces: make(map[SurfaceKey]*ebiten.Image),
		labels:   make(map[string]*ebiten.Image),
		results:  make(chan result, 256),
		wg:       sizedwaitgroup.New(workers),
		ctx:      ctx,
		cancel:   cancel,
		upload:   ebiten.NewImageFromImage,
	}
}

// Request starts decoding u unless it is already decoded or in flight. It
// never blocks.
func (c *Cache) Request(u string) {
	if u == "" {
		return
	}
	if _, ok := c.images[u]; ok {
		return
	}
	if _, ok := c.pending[u]; ok {
		return
	}
	c.pending[u] = struct{}{}
	go func() {
		if err := c.wg.AddWithContext(c.ctx); err != nil {
			return
		}
		defer c.wg.Done()
		img, err := c.loader.Load(c.ctx, u)
		select {
		case c.results <- result{url: u, img: img, err: err}:
		case <-c.ctx.Done():
		}
	}()
}

// Poll stores every finished decode and returns how many arrived.
func (c *Cache) Poll() int {
	n := 0
	for {
		select {
		case r := <-c.results:
			delete(c.pending, r.url)
			if _, ok := c.images[r.url]; ok {
				continue
			}
			if r.err != nil {
				c.log.Warnw("image decode failed", "url", shortURL(r.url), "err", r.err)
			}
			c.images[r.url] = entry{img: r.img, err: r.err}
			n++
		default:
			return n
		}
	}
}

// Put stores an already decoded image under u.
func (c *Cache) Put(u string, img image.Image) {
	if _, ok := c.images[u]; ok {
		return
	}
	c.images[u] = entry{img: img}
}

// Ready reports whether u decoded successfully.
func (c *Cache) Ready(u string) bool {
	e, ok := c.images[u]
	return ok && e.img != nil
}

// Failed reports whether decoding u failed.
func (c *Cache) Failed(u string) bool {
	e, ok := c.images[u]
	return ok && e.err != nil
}

// Pending returns the number of decodes in flight.
func (c *Cache) Pending() int { return len(c.pending) }

// Image returns the decoded image for u.
func (c *Cache) Image(u string) (image.Image, bool) {
	e, ok := c.images[u]
	if !ok || e.img == nil {
		return nil, false
	}
	return e.img, true
}

// Surface returns u scaled to w×h and mirrored when flip is set. A zero w
// or h keeps the aspect ratio; both zero keeps the natural size. It returns
// nil while u has not finished decoding; callers skip drawing for now.
func (c *Cache) Surface(u string, w, h float64, flip bool) *ebiten.Image {
	key := SurfaceKey{URL: u, W: int(math.Round(w)), H: int(math.Round(h)), Flip: flip}
	if s, ok := c.surfaces[key]; ok {
		return s
	}
	img, ok := c.Image(u)
	if !ok {
		return nil
	}
	b := img.Bounds()
	dw, dh := DrawSize(b.Dx(), b.Dy(), w, h)
	s := c.upload(Render(img, dw, dh, flip))
	c.surfaces[key] = s
	return s
}

// DrawSize computes the draw size for an image of natural size nw×nh.
func DrawSize(nw, nh int, w, h float64) (int, int) {
	switch {
	case w > 0 && h > 0:
		return atLeastOne(w), atLeastOne(h)
	case w > 0 && nw > 0:
		return atLeastOne(w), atLeastOne(float64(nh) * w / float64(nw))
	case h > 0 && nh > 0:
		return atLeastOne(float64(nw) * h / float64(nh)), atLeastOne(h)
	}
	return nw, nh
}

func atLeastOne(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}

// Render returns img resampled to w×h, mirrored horizontally when flip is
// set.
func Render(img image.Image, w, h int, flip bool) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	}
	if flip {
		mirror(dst)
	}
	return dst
}

func mirror(img *image.RGBA) {
	w := img.Bounds().Dx()
	for y := 0; y < img.Bounds().Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for l, r := 0, w-1; l < r; l, r = l+1, r-1 {
			for k := 0; k < 4; k++ {
				row[l*4+k], row[r*4+k] = row[r*4+k], row[l*4+k]
			}
		}
	}
}

// Stats summarizes cache contents. Byte counts assume 4 bytes per pixel.
type Stats struct {
	Images, Failed, Pending int
	Surfaces, Labels        int
	ImageBytes              int
	SurfaceBytes            int
	LabelBytes              int
}

// Stats reports the current cache sizes.
func (c *Cache) Stats() Stats {
	var s Stats
	for _, e := range c.images {
		if e.img == nil {
			s.Failed++
			continue
		}
		s.Images++
		b := e.img.Bounds()
		s.ImageBytes += b.Dx() * b.Dy() * 4
	}
	s.Pending = len(c.pending)
	for _, img := range c.surfaces {
		s.Surfaces++
		b := img.Bounds()
		s.SurfaceBytes += b.Dx() * b.Dy() * 4
	}
	for _, img := range c.labels {
		s.Labels++
		b := img.Bounds()
		s.LabelBytes += b.Dx() * b.Dy() * 4
	}
	return s
}

// Close stops outstanding decodes and waits for the workers to exit.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

func shortURL(u string) string {
	if len(u) > 64 {
		return u[:64] + "..."
	}
	return u
}
