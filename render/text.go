package render

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

type align int

const (
	alignLeft align = iota
	alignCenter
	alignRight
)

// textWidth is the width in pixels of s at the given scale.
func textWidth(s string, scale int) int {
	d := &font.Drawer{Face: basicfont.Face7x13}
	return d.MeasureString(s).Ceil() * scale
}

// drawText draws s with its baseline at y. The bitmap face is rendered at
// native size and scaled up with nearest neighbour so larger text stays crisp.
func drawText(dst draw.Image, s string, x, y, scale int, col color.Color, a align) {
	if s == "" || scale < 1 {
		return
	}
	face := basicfont.Face7x13
	ascent := face.Metrics().Ascent.Ceil()
	descent := face.Metrics().Descent.Ceil()

	w := textWidth(s, 1)
	h := ascent + descent
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  src,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(ascent)},
	}
	d.DrawString(s)

	sw, sh := w*scale, h*scale
	switch a {
	case alignCenter:
		x -= sw / 2
	case alignRight:
		x -= sw
	}
	top := y - ascent*scale
	xdraw.NearestNeighbor.Scale(dst, image.Rect(x, top, x+sw, top+sh), src, src.Bounds(), draw.Over, nil)
}

func fill(dst draw.Image, r image.Rectangle, col color.Color) {
	draw.Draw(dst, r, image.NewUniform(col), image.Point{}, draw.Src)
}

// frame draws a one pixel border just inside r.
func frame(dst draw.Image, r image.Rectangle, col color.Color) {
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), col)
	fill(dst, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), col)
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), col)
	fill(dst, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), col)
}
