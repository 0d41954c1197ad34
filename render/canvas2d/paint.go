package canvas2d

import (
	"image"
	"image/color"
	"sync"

	"github.com/hajimehoshi/bitmapfont/v4"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

var (
	face = text.NewGoXFace(bitmapfont.Face)

	whiteOnce     sync.Once
	whiteSubImage *ebiten.Image
)

func white() *ebiten.Image {
	whiteOnce.Do(func() {
		img := ebiten.NewImage(3, 3)
		img.Fill(color.White)
		whiteSubImage = img.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
	})
	return whiteSubImage
}

// straight reads palette values as non-premultiplied colour
func straight(c color.RGBA) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// Paint draws a display list onto screen
func Paint(screen *ebiten.Image, d DisplayList) {
	for _, op := range d {
		switch op.Kind {
		case OpFill:
			fillPolygon(screen, op)
		case OpLine:
			if len(op.Points) < 2 {
				continue
			}
			a, b := op.Points[0], op.Points[1]
			vector.StrokeLine(screen, float32(a.X), float32(a.Y), float32(b.X), float32(b.Y), float32(op.Width), straight(op.Color), true)
		case OpCircle:
			if len(op.Points) == 0 {
				continue
			}
			c := op.Points[0]
			if op.Width == 0 {
				vector.DrawFilledCircle(screen, float32(c.X), float32(c.Y), float32(op.Radius), straight(op.Color), true)
			} else {
				vector.StrokeCircle(screen, float32(c.X), float32(c.Y), float32(op.Radius), float32(op.Width), straight(op.Color), true)
			}
		case OpText:
			if len(op.Points) == 0 || op.Text == "" {
				continue
			}
			opts := &text.DrawOptions{}
			opts.GeoM.Translate(op.Points[0].X, op.Points[0].Y)
			opts.ColorScale.ScaleWithColor(straight(op.Color))
			opts.PrimaryAlign = text.AlignCenter
			opts.SecondaryAlign = text.AlignCenter
			text.Draw(screen, op.Text, face, opts)
		}
	}
}

func fillPolygon(screen *ebiten.Image, op Op) {
	if len(op.Points) < 3 {
		return
	}
	var path vector.Path
	path.MoveTo(float32(op.Points[0].X), float32(op.Points[0].Y))
	for _, p := range op.Points[1:] {
		path.LineTo(float32(p.X), float32(p.Y))
	}
	path.Close()

	vs, is := path.AppendVerticesAndIndicesForFilling(nil, nil)
	c := op.Color
	for i := range vs {
		vs[i].SrcX = 1
		vs[i].SrcY = 1
		vs[i].ColorR = float32(c.R) / 0xff
		vs[i].ColorG = float32(c.G) / 0xff
		vs[i].ColorB = float32(c.B) / 0xff
		vs[i].ColorA = float32(c.A) / 0xff
	}
	// Vertex colours default to straight alpha
	screen.DrawTriangles(vs, is, white(), &ebiten.DrawTrianglesOptions{})
}
