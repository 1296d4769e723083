package sprite

import (
	"bytes"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	text "github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	labelFontSize = 12
	labelPadX     = 4
	labelPadY     = 2
)

var (
	labelBg = color.NRGBA{0x00, 0x00, 0x00, 0xa0}
	labelFg = color.NRGBA{0xff, 0xff, 0xff, 0xff}

	faceSource *text.GoTextFaceSource
)

// Face returns the UI font at the given size.
func Face(size float64) text.Face {
	if faceSource == nil {
		src, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
		if err != nil {
			panic(err)
		}
		faceSource = src
	}
	return &text.GoTextFace{Source: faceSource, Size: size}
}

// Label returns the name chip for name: a translucent background with the
// text on top. Labels are cached by the literal name. An empty name has no
// label.
func (c *Cache) Label(name string) *ebiten.Image {
	if name == "" {
		return nil
	}
	if img, ok := c.labels[name]; ok {
		return img
	}
	face := Face(labelFontSize)
	w, h := text.Measure(name, face, 0)
	iw := int(math.Ceil(w)) + 2*labelPadX
	ih := int(math.Ceil(h)) + 2*labelPadY

	img := ebiten.NewImage(iw, ih)
	vector.DrawFilledRect(img, 0, 0, float32(iw), float32(ih), labelBg, false)
	op := &text.DrawOptions{}
	op.GeoM.Translate(labelPadX, labelPadY)
	op.ColorScale.ScaleWithColor(labelFg)
	text.Draw(img, name, face, op)

	c.labels[name] = img
	return img
}
