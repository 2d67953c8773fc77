// Package macro defines per-key macro actions and the interpreter that plays them.
package macro

import (
	"fmt"
	"time"
)

// NumKeys is the number of macro keys on the pad.
const NumKeys = 12

// Color is a 24-bit RGB value (0xRRGGBB).
type Color uint32

// MaxColor is the largest valid Color.
const MaxColor Color = 0xFFFFFF

// RGB returns the red, green and blue components.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// String formats the color as 0xRRGGBB.
func (c Color) String() string {
	return fmt.Sprintf("0x%06X", uint32(c))
}

// Wheel maps a position 0-255 onto a red-green-blue-red color wheel.
func Wheel(pos uint8) Color {
	p := int(pos)
	switch {
	case p < 85:
		return rgb(255-p*3, p*3, 0)
	case p < 170:
		p -= 85
		return rgb(0, 255-p*3, p*3)
	default:
		p -= 170
		return rgb(p*3, 0, 255-p*3)
	}
}

func rgb(r, g, b int) Color {
	return Color(r)<<16 | Color(g)<<8 | Color(b)
}

// StepKind identifies which variant a Step holds.
type StepKind uint8

const (
	// StepKeyDown presses and holds a key
	StepKeyDown StepKind = iota + 1
	// StepKeyUp releases a key
	StepKeyUp
	// StepText types literal text
	StepText
	// StepDelay pauses the running sequence
	StepDelay
)

func (k StepKind) String() string {
	switch k {
	case StepKeyDown:
		return "down"
	case StepKeyUp:
		return "up"
	case StepText:
		return "type"
	case StepDelay:
		return "delay"
	default:
		return "invalid"
	}
}

// Step is one atomic action of a macro. Only the field matching Kind is meaningful;
// build steps with KeyDown, KeyUp, TypeText and Delay.
type Step struct {
	Kind  StepKind
	Code  Keycode
	Text  string
	Delay time.Duration
}

// KeyDown returns a step pressing code.
func KeyDown(code Keycode) Step { return Step{Kind: StepKeyDown, Code: code} }

// KeyUp returns a step releasing code.
func KeyUp(code Keycode) Step { return Step{Kind: StepKeyUp, Code: code} }

// TypeText returns a step typing text.
func TypeText(text string) Step { return Step{Kind: StepText, Text: text} }

// Delay returns a step pausing for d.
func Delay(d time.Duration) Step { return Step{Kind: StepDelay, Delay: d} }

func (s Step) String() string {
	switch s.Kind {
	case StepKeyDown, StepKeyUp:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Code)
	case StepText:
		return fmt.Sprintf("type(%q)", s.Text)
	case StepDelay:
		return fmt.Sprintf("delay(%s)", s.Delay)
	default:
		return "invalid"
	}
}

// Sequence is the ordered list of steps bound to a key.
type Sequence []Step

// Action is what a single key does: its LED color, display label and sequence.
type Action struct {
	Color    Color
	Label    string
	Sequence Sequence
}

// Blank is the no-op action used when no profile provides a slot.
var Blank = Action{}

// Phase selects which part of a sequence runs.
type Phase int

const (
	// Pressed runs the full sequence
	Pressed Phase = iota
	// Released lifts held keys only
	Released
)

func (p Phase) String() string {
	if p == Released {
		return "released"
	}
	return "pressed"
}
