package canvas2d

import (
	"fmt"
	"image/color"
	"math"

	"github.com/wricardo/circuit-challenge/game/engine"
	"github.com/wricardo/circuit-challenge/game/overlay"
	"github.com/wricardo/circuit-challenge/render"
	"github.com/wricardo/circuit-challenge/render/scene3d"
)

// OpKind is the primitive an Op draws
type OpKind int

const (
	OpFill OpKind = iota
	OpLine
	OpCircle
	OpText
)

// Op is one drawing primitive. Fill uses Points as a closed polygon; Line
// uses the first two Points; Circle uses Points[0] and Radius and is
// filled when Width is zero; Text is drawn centred on Points[0].
type Op struct {
	Kind   OpKind
	Points []render.Point
	Radius float64
	Width  float64
	Color  color.RGBA
	Text   string
}

// DisplayList is a frame's ops in painting order
type DisplayList []Op

func (d *DisplayList) fill(c color.RGBA, pts ...render.Point) {
	*d = append(*d, Op{Kind: OpFill, Points: pts, Color: c})
}

func (d *DisplayList) line(a, b render.Point, width float64, c color.RGBA) {
	*d = append(*d, Op{Kind: OpLine, Points: []render.Point{a, b}, Width: width, Color: c})
}

func (d *DisplayList) circle(at render.Point, r, width float64, c color.RGBA) {
	*d = append(*d, Op{Kind: OpCircle, Points: []render.Point{at}, Radius: r, Width: width, Color: c})
}

func (d *DisplayList) text(at render.Point, s string, c color.RGBA) {
	*d = append(*d, Op{Kind: OpText, Points: []render.Point{at}, Text: s, Color: c})
}

func (d *DisplayList) rect(r render.Rect, cx, cy, angle float64, c color.RGBA) {
	corners := r.Corners(cx, cy, angle)
	d.fill(c, corners[:]...)
}

// Count returns how many ops of a kind the list holds
func (d DisplayList) Count(kind OpKind) int {
	n := 0
	for _, op := range d {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Texts returns the strings of the list's text ops in order
func (d DisplayList) Texts() []string {
	var out []string
	for _, op := range d {
		if op.Kind == OpText {
			out = append(out, op.Text)
		}
	}
	return out
}

const (
	edgeWidth       = 4.0
	ringWidth       = 2.0
	glowWidth       = 3.0
	nameOffset      = 30.0
	telemetryOffset = 15.0
	shadowOffset    = 2.0
)

// Plan lays out one top-down frame: backdrop, track, start marker,
// numbered checkpoints and vehicles
func Plan(world engine.WorldState, vp engine.Viewport) DisplayList {
	var d DisplayList
	w, h := float64(vp.Width), float64(vp.Height)
	d.fill(render.Background, render.Point{}, render.Point{X: w}, render.Point{X: w, Y: h}, render.Point{Y: h})

	if t := world.Track; t != nil && len(t.Path) > 1 {
		planTrack(&d, t)
		if at, angle, ok := render.StartLine(t); ok {
			d.rect(render.CheckerBoard, at.X, at.Y, angle, render.CheckerDark)
			for _, sq := range render.CheckerSquares() {
				d.rect(sq, at.X, at.Y, angle, render.CheckerLight)
			}
		}
		for i, cp := range t.Checkpoints {
			at := render.Point{X: cp.Position.X, Y: cp.Position.Y}
			d.circle(at, cp.TriggerRadius, 0, render.CheckpointFill)
			d.circle(at, cp.TriggerRadius, ringWidth, render.CheckpointRing)
			d.text(at, fmt.Sprint(i+1), render.CheckpointRing)
		}
	}

	for i, v := range world.Vehicles {
		planVehicle(&d, v, i, world.MaxSpeed)
	}
	return d
}

func planTrack(d *DisplayList, t *engine.TrackGeometry) {
	pts := make([]render.Point, len(t.Path))
	for i, p := range t.Path {
		pts[i] = render.Point{X: p.X, Y: p.Y}
	}
	if t.Width > 0 {
		// Corridor tracks are painted as a wide road along the centreline
		for i := range pts {
			d.line(pts[i], pts[(i+1)%len(pts)], t.Width, render.TrackSurface)
		}
	} else {
		d.fill(render.TrackSurface, pts...)
	}
	for i := range pts {
		d.line(pts[i], pts[(i+1)%len(pts)], edgeWidth, render.TrackEdge)
	}
}

func planVehicle(d *DisplayList, v engine.Vehicle, index int, maxSpeed float64) {
	x, y, a := v.Position.X, v.Position.Y, v.Heading
	d.rect(render.ShadowRect, x+shadowOffset, y+shadowOffset, a, render.Shadow)
	d.rect(render.BodyRect, x, y, a, render.VehicleColor(v, index))
	d.rect(render.WindowRect, x, y, a, render.Window)
	d.rect(render.NoseRect, x, y, a, render.CheckerLight)
	if alpha, ok := render.GlowAlpha(v.Velocity, maxSpeed); ok {
		c := render.Glow
		c.A = uint8(math.Round(alpha * 255))
		d.circle(render.Point{X: x, Y: y}, render.GlowRadius, glowWidth, c)
	}
	d.text(render.Point{X: x, Y: y - nameOffset}, v.DisplayName, render.Label)
	d.text(render.Point{X: x, Y: y - telemetryOffset}, render.Telemetry(v), render.TelemetryText)
}

// Colours of the projected 3D view
var (
	Sky    = color.RGBA{0x0f, 0x17, 0x2a, 0xff}
	Marker = color.RGBA{0xff, 0xff, 0x00, 0xff}
)

const minSpriteRadius = 2.0

// PlanScene lays out a projected 3D frame. Sprites arrive sorted far to
// near, so painting them in order gives correct occlusion.
func PlanScene(f scene3d.Frame) DisplayList {
	var d DisplayList
	w, h := float64(f.Viewport.Width), float64(f.Viewport.Height)
	d.fill(Sky, render.Point{}, render.Point{X: w}, render.Point{X: w, Y: h}, render.Point{Y: h})

	for _, s := range f.Road {
		d.line(render.Point{X: s.A.X, Y: s.A.Y}, render.Point{X: s.B.X, Y: s.B.Y}, edgeWidth, render.TrackEdge)
	}

	for _, s := range f.Sprites {
		at := render.Point{X: s.At.X, Y: s.At.Y}
		r := math.Max(s.Radius, minSpriteRadius)
		switch s.Kind {
		case scene3d.KindMarker:
			// Spin shows as a ring that narrows and widens
			d.circle(at, r*math.Max(math.Abs(math.Cos(s.Rotation)), 0.2), ringWidth, s.Color)
		case scene3d.KindVehicle:
			k := r / (render.BodyRect.W / 2)
			d.rect(scaleRect(render.BodyRect, k), at.X, at.Y, s.Rotation, s.Color)
			d.rect(scaleRect(render.WindowRect, k), at.X, at.Y, s.Rotation, render.Window)
			d.text(render.Point{X: at.X, Y: at.Y - r - nameOffset/2}, s.Label, render.Label)
			d.text(render.Point{X: at.X, Y: at.Y - r - telemetryOffset/3}, s.Telemetry, render.TelemetryText)
		}
	}
	return d
}

func scaleRect(r render.Rect, k float64) render.Rect {
	return render.Rect{X: r.X * k, Y: r.Y * k, W: r.W * k, H: r.H * k}
}

// Prompt panel layout
const (
	panelMargin = 40.0
	panelHeight = 150.0
	lineHeight  = 20.0
)

var (
	PanelBackground = color.RGBA{0x0f, 0x17, 0x2a, 0xe6}
	PanelBorder     = render.CheckpointRing
)

// PlanPrompt lays out the question panel along the bottom of the view.
// remaining is in seconds.
func PlanPrompt(p overlay.Prompt, remaining float64, vp engine.Viewport) DisplayList {
	var d DisplayList
	w, h := float64(vp.Width), float64(vp.Height)
	top := h - panelHeight - panelMargin/2
	left, right := panelMargin, w-panelMargin
	bottom := top + panelHeight
	d.fill(PanelBackground,
		render.Point{X: left, Y: top}, render.Point{X: right, Y: top},
		render.Point{X: right, Y: bottom}, render.Point{X: left, Y: bottom})
	d.line(render.Point{X: left, Y: top}, render.Point{X: right, Y: top}, ringWidth, PanelBorder)

	cx := w / 2
	y := top + lineHeight
	d.text(render.Point{X: cx, Y: y}, fmt.Sprintf("%s (%.0fs)", p.Text, math.Ceil(remaining)), render.Label)
	for i, opt := range p.Options {
		y += lineHeight
		d.text(render.Point{X: cx, Y: y}, fmt.Sprintf("%d) %s", i+1, opt), render.TelemetryText)
	}
	d.text(render.Point{X: cx, Y: bottom - lineHeight/2}, "Press 1-4 to answer, Tab to skip", render.TelemetryText)
	return d
}
