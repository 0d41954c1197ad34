package render

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/wricardo/circuit-challenge/game/engine"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
		err  bool
	}{
		{"#3b82f6", color.RGBA{0x3b, 0x82, 0xf6, 0xff}, false},
		{"#FFF", color.RGBA{0xff, 0xff, 0xff, 0xff}, false},
		{"#00000080", color.RGBA{0, 0, 0, 0x80}, false},
		{" Red ", Palette[1], false},
		{"3b82f6", color.RGBA{}, true},
		{"#12345", color.RGBA{}, true},
		{"#gggggg", color.RGBA{}, true},
		{"", color.RGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.err {
				if !errors.Is(err, ErrBadColor) {
					t.Errorf("Expected ErrBadColor, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseColor(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestVehicleColor(t *testing.T) {
	if got := VehicleColor(engine.Vehicle{Color: "#ff0000"}, 3); got != (color.RGBA{0xff, 0, 0, 0xff}) {
		t.Errorf("Expected the vehicle's own colour, got %v", got)
	}
	if got := VehicleColor(engine.Vehicle{}, len(Palette)+2); got != Palette[2] {
		t.Errorf("Expected palette wrap-around, got %v", got)
	}
}

func TestTelemetry(t *testing.T) {
	v := engine.Vehicle{CurrentLap: 1, TotalLaps: 3, Velocity: 149.6}
	if got := Telemetry(v); got != "Lap 1/3 | 150 km/h" {
		t.Errorf("Unexpected telemetry %q", got)
	}
}

func TestGlowAlpha(t *testing.T) {
	tests := []struct {
		velocity float64
		alpha    float64
		ok       bool
	}{
		{0, 0, false},
		{100, 0, false},
		{150, 0.5, true},
		{300, 1, true},
		{450, 1, true},
	}

	for _, tt := range tests {
		alpha, ok := GlowAlpha(tt.velocity, 300)
		if ok != tt.ok || math.Abs(alpha-tt.alpha) > 1e-9 {
			t.Errorf("GlowAlpha(%v) = %v, %v; want %v, %v", tt.velocity, alpha, ok, tt.alpha, tt.ok)
		}
	}
	if _, ok := GlowAlpha(10, 0); ok {
		t.Error("Expected no glow without a top speed")
	}
}

func TestSpeedPercent(t *testing.T) {
	if got := SpeedPercent(150, 300); got != 50 {
		t.Errorf("Expected 50, got %v", got)
	}
	if got := SpeedPercent(600, 300); got != 100 {
		t.Errorf("Expected the bar to cap at 100, got %v", got)
	}
}

func TestCorners(t *testing.T) {
	r := Rect{-1, -1, 2, 2}

	got := r.Corners(10, 20, 0)
	want := [4]Point{{9, 19}, {11, 19}, {11, 21}, {9, 21}}
	if got != want {
		t.Errorf("Unrotated corners = %v, want %v", got, want)
	}

	// A quarter turn maps local +X onto screen +Y
	got = Rect{0, 0, 1, 0}.Corners(0, 0, math.Pi/2)
	if math.Abs(got[1].X) > 1e-9 || math.Abs(got[1].Y-1) > 1e-9 {
		t.Errorf("Expected (1,0) to rotate to (0,1), got %v", got[1])
	}
}

func TestCheckerSquares(t *testing.T) {
	squares := CheckerSquares()
	if len(squares) != 4 {
		t.Fatalf("Expected 4 light squares, got %d", len(squares))
	}
	if squares[0] != (Rect{-40, -20, 20, 20}) {
		t.Errorf("Expected the first light square in the top-left corner, got %v", squares[0])
	}
	for _, sq := range squares {
		if sq.X < CheckerBoard.X || sq.X+sq.W > CheckerBoard.X+CheckerBoard.W ||
			sq.Y < CheckerBoard.Y || sq.Y+sq.H > CheckerBoard.Y+CheckerBoard.H {
			t.Errorf("Square %v lies outside the board", sq)
		}
	}
}

func TestStartLine(t *testing.T) {
	track := &engine.TrackGeometry{Path: []engine.Vec3{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}}}

	at, angle, ok := StartLine(track)
	if !ok {
		t.Fatal("Expected a start line")
	}
	if at != (Point{0, 0}) || math.Abs(angle-math.Pi/2) > 1e-9 {
		t.Errorf("Unexpected start line at %v angle %v", at, angle)
	}

	if _, _, ok := StartLine(&engine.TrackGeometry{Path: []engine.Vec3{{}}}); ok {
		t.Error("Expected no start line for a one-point path")
	}
}
