// Package render holds the presentation helpers shared by the render
// backends: palette and colour parsing, telemetry labels, the start-line
// checker board and oriented shapes. Nothing here draws; canvas2d and
// scene3d turn these values into pixels.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/wricardo/circuit-challenge/game/engine"
)

// Colours of the 2D canvas
var (
	Background     = color.RGBA{0x0a, 0x0e, 0x27, 0xff}
	TrackEdge      = color.RGBA{0x64, 0x74, 0x8b, 0xff}
	TrackSurface   = color.RGBA{0x1e, 0x29, 0x3b, 0xff}
	CheckpointRing = color.RGBA{0xf5, 0x9e, 0x0b, 0xff}
	CheckpointFill = color.RGBA{0xf5, 0x9e, 0x0b, 0x1a}
	Window         = color.RGBA{0x93, 0xc5, 0xfd, 0xff}
	Shadow         = color.RGBA{0, 0, 0, 0x4d}
	Label          = color.RGBA{0xff, 0xff, 0xff, 0xff}
	TelemetryText  = color.RGBA{0x94, 0xa3, 0xb8, 0xff}
	Glow           = color.RGBA{0x22, 0xc5, 0x5e, 0xff}
	CheckerDark    = color.RGBA{0, 0, 0, 0xff}
	CheckerLight   = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

// Palette is handed out to vehicles that join without a colour
var Palette = []color.RGBA{
	{0x3b, 0x82, 0xf6, 0xff}, // blue
	{0xef, 0x44, 0x44, 0xff}, // red
	{0x22, 0xc5, 0x5e, 0xff}, // green
	{0xea, 0xb3, 0x08, 0xff}, // yellow
	{0xa8, 0x55, 0xf7, 0xff}, // purple
	{0xec, 0x48, 0x99, 0xff}, // pink
	{0x14, 0xb8, 0xa6, 0xff}, // teal
	{0xf9, 0x73, 0x16, 0xff}, // orange
}

var ErrBadColor = errors.New("unrecognised colour")

var named = map[string]color.RGBA{
	"black":  {0, 0, 0, 0xff},
	"white":  {0xff, 0xff, 0xff, 0xff},
	"red":    Palette[1],
	"green":  Palette[2],
	"blue":   Palette[0],
	"yellow": Palette[3],
	"purple": Palette[4],
	"pink":   Palette[5],
	"teal":   Palette[6],
	"orange": Palette[7],
}

// ParseColor reads #rgb, #rrggbb, #rrggbbaa or a basic colour name
func ParseColor(s string) (color.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := named[s]; ok {
		return c, nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	return color.RGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
}

// VehicleColor resolves a vehicle's colour, falling back to the palette
// entry for its position in the race
func VehicleColor(v engine.Vehicle, index int) color.RGBA {
	if c, err := ParseColor(v.Color); err == nil {
		return c
	}
	if index < 0 {
		index = -index
	}
	return Palette[index%len(Palette)]
}

// Telemetry is the label drawn under a vehicle's name
func Telemetry(v engine.Vehicle) string {
	return fmt.Sprintf("Lap %d/%d | %d km/h", v.CurrentLap, v.TotalLaps, int(math.Round(v.Velocity)))
}

// GlowAlpha returns the opacity of the speed ring. Vehicles at or below a
// third of top speed show no ring.
func GlowAlpha(velocity, maxSpeed float64) (float64, bool) {
	if maxSpeed <= 0 || velocity <= maxSpeed/3 {
		return 0, false
	}
	return math.Min(velocity/maxSpeed, 1), true
}

// SpeedPercent is a speed as a 0-100 share of top speed, for HUD bars
func SpeedPercent(speed, maxSpeed float64) float64 {
	if maxSpeed <= 0 || speed <= 0 {
		return 0
	}
	return math.Min(speed/maxSpeed*100, 100)
}

// Point is a position in canvas space
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in a shape's local space
type Rect struct {
	X, Y, W, H float64
}

// Corners places r at (cx, cy) rotated by angle and returns its corners in
// drawing order
func (r Rect) Corners(cx, cy, angle float64) [4]Point {
	local := [4]Point{
		{r.X, r.Y},
		{r.X + r.W, r.Y},
		{r.X + r.W, r.Y + r.H},
		{r.X, r.Y + r.H},
	}
	sin, cos := math.Sincos(angle)
	var out [4]Point
	for i, p := range local {
		out[i] = Point{
			X: cx + p.X*cos - p.Y*sin,
			Y: cy + p.X*sin + p.Y*cos,
		}
	}
	return out
}

// Vehicle body parts in vehicle space, nose along +X
var (
	ShadowRect = Rect{-13, -8, 26, 16}
	BodyRect   = Rect{-15, -10, 30, 20}
	WindowRect = Rect{-10, -6, 18, 12}
	NoseRect   = Rect{10, -3, 5, 6}
)

// GlowRadius is the radius of the speed ring around a vehicle
const GlowRadius = 22.0

// Checker board on the start line, in start-line space
const (
	checkerSquare = 20.0
	checkerCols   = 4
	checkerRows   = 2
)

// CheckerBoard is the dark backing of the start marker
var CheckerBoard = Rect{-40, -20, checkerCols * checkerSquare, checkerRows * checkerSquare}

// CheckerSquares returns the light squares of the start marker
func CheckerSquares() []Rect {
	squares := make([]Rect, 0, checkerCols*checkerRows/2)
	for i := 0; i < checkerCols; i++ {
		for j := 0; j < checkerRows; j++ {
			if (i+j)%2 == 0 {
				squares = append(squares, Rect{
					X: CheckerBoard.X + float64(i)*checkerSquare,
					Y: CheckerBoard.Y + float64(j)*checkerSquare,
					W: checkerSquare,
					H: checkerSquare,
				})
			}
		}
	}
	return squares
}

// StartLine returns where the start marker sits and its angle along the
// initial tangent of the track
func StartLine(track *engine.TrackGeometry) (Point, float64, bool) {
	if track == nil || len(track.Path) < 2 {
		return Point{}, 0, false
	}
	start, next := track.Path[0], track.Path[1]
	return Point{start.X, start.Y}, math.Atan2(next.Y-start.Y, next.X-start.X), true
}
