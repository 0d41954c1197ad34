package canvas2d

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/wricardo/circuit-challenge/game/engine"
)

// Keyboard samples the arrow keys or WASD for one vehicle; space brakes.
// It implements engine.InputSampler.
type Keyboard struct {
	VehicleID string
	pressed   func(ebiten.Key) bool
}

// NewKeyboard creates a sampler for the player's vehicle
func NewKeyboard(vehicleID string) *Keyboard {
	return &Keyboard{VehicleID: vehicleID, pressed: ebiten.IsKeyPressed}
}

func (k *Keyboard) down(keys ...ebiten.Key) bool {
	for _, key := range keys {
		if k.pressed(key) {
			return true
		}
	}
	return false
}

// Sample implements engine.InputSampler
func (k *Keyboard) Sample(vehicleID string) (engine.ControlInput, bool) {
	if vehicleID != k.VehicleID {
		return engine.ControlInput{}, false
	}
	return engine.ControlInput{
		Accelerate: k.down(ebiten.KeyArrowUp, ebiten.KeyW),
		Brake:      k.down(ebiten.KeyArrowDown, ebiten.KeyS, ebiten.KeySpace),
		Left:       k.down(ebiten.KeyArrowLeft, ebiten.KeyA),
		Right:      k.down(ebiten.KeyArrowRight, ebiten.KeyD),
	}, true
}

// AnswerKeys maps the number row to option indexes
var AnswerKeys = []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4}

// AnswerPressed returns the option chosen this frame, if any
func AnswerPressed() (int, bool) {
	for i, key := range AnswerKeys {
		if inpututil.IsKeyJustPressed(key) {
			return i, true
		}
	}
	return 0, false
}

// SkipKey closes the open question without answering. It must not be bound
// to driving, or braking would skip questions.
const SkipKey = ebiten.KeyTab

// SkipPressed reports whether the skip key went down this frame
func SkipPressed() bool {
	return inpututil.IsKeyJustPressed(SkipKey)
}
