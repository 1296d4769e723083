package main

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"avatarworld/world"
)

// generatedWorldURL is the cache key of the generated background.
const generatedWorldURL = "generated:world"

// generatedAvatarURL prefixes the cache keys of the built-in avatar frames.
const generatedAvatarURL = "generated:avatar:"

const worldTile = 128

var (
	grassLight = color.RGBA{0x5d, 0x8a, 0x4a, 0xff}
	grassDark  = color.RGBA{0x52, 0x7c, 0x41, 0xff}
	gridLine   = color.RGBA{0x44, 0x66, 0x36, 0xff}
	worldEdge  = color.RGBA{0x2e, 0x3b, 0x29, 0xff}
	avatarBody = color.RGBA{0xd9, 0x8c, 0x3f, 0xff}
	avatarEye  = color.RGBA{0x1c, 0x1c, 0x1c, 0xff}
)

// generateWorld draws a checkered field with a grid every tile and a dark
// border, so movement and the world edge stay visible without art assets.
func generateWorld(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for ty := 0; ty*worldTile < h; ty++ {
		for tx := 0; tx*worldTile < w; tx++ {
			c := grassLight
			if (tx+ty)%2 == 1 {
				c = grassDark
			}
			r := image.Rect(tx*worldTile, ty*worldTile, (tx+1)*worldTile, (ty+1)*worldTile).Intersect(img.Bounds())
			xdraw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, xdraw.Src)
		}
	}
	line := &image.Uniform{C: gridLine}
	for x := 0; x < w; x += worldTile {
		xdraw.Draw(img, image.Rect(x, 0, x+1, h), line, image.Point{}, xdraw.Src)
	}
	for y := 0; y < h; y += worldTile {
		xdraw.Draw(img, image.Rect(0, y, w, y+1), line, image.Point{}, xdraw.Src)
	}
	edge := &image.Uniform{C: worldEdge}
	const border = 4
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, w, border),
		image.Rect(0, h-border, w, h),
		image.Rect(0, 0, border, h),
		image.Rect(w-border, 0, w, h),
	} {
		xdraw.Draw(img, r.Intersect(img.Bounds()), edge, image.Point{}, xdraw.Src)
	}
	return img
}

// disc is an alpha mask for a filled circle.
type disc struct {
	c image.Point
	r int
}

func (d disc) ColorModel() color.Model { return color.AlphaModel }

func (d disc) Bounds() image.Rectangle {
	return image.Rect(d.c.X-d.r, d.c.Y-d.r, d.c.X+d.r, d.c.Y+d.r)
}

func (d disc) At(x, y int) color.Color {
	dx, dy := x-d.c.X, y-d.c.Y
	if dx*dx+dy*dy < d.r*d.r {
		return color.Alpha{A: 0xff}
	}
	return color.Alpha{}
}

// generateAvatar draws a round token with a dot on the side it faces. West
// is drawn by mirroring the east frame.
func generateAvatar(size int, f world.Facing) *image.RGBA {
	if size < 8 {
		size = 8
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := image.Pt(size/2, size/2)
	r := size/2 - 1
	xdraw.DrawMask(img, img.Bounds(), &image.Uniform{C: avatarBody}, image.Point{}, disc{c, r}, image.Point{}, xdraw.Over)

	eye := c
	switch f {
	case world.North:
		eye.Y -= r / 2
	case world.East, world.West:
		eye.X += r / 2
	default:
		eye.Y += r / 2
	}
	xdraw.DrawMask(img, img.Bounds(), &image.Uniform{C: avatarEye}, image.Point{}, disc{eye, max(r/5, 1)}, image.Point{}, xdraw.Over)
	return img
}
