// Package input provides the key events read from the pad and the key output sent to the host.
package input

import "macropad/internal/macro"

// KeyEvent is a physical key transition on the pad.
type KeyEvent struct {
	Index   int  `json:"index"`
	Pressed bool `json:"pressed"`
}

// Output is everything a running macro or the encoder can send to the host.
type Output interface {
	macro.Keyboard
	macro.ConsumerControl
}
