//go:build !linux

package input

import (
	"macropad/internal/macro"
)

// Stub implementation for platforms without uinput

// Injector represents a stub key injector
type Injector struct{}

// NewInjector reports that key injection is unavailable
func NewInjector() (*Injector, error) {
	return nil, ErrUnsupportedPlatform
}

// EmitKeyDown presses a key (stub)
func (i *Injector) EmitKeyDown(k macro.Keycode) error {
	return ErrUnsupportedPlatform
}

// EmitKeyUp releases a key (stub)
func (i *Injector) EmitKeyUp(k macro.Keycode) error {
	return ErrUnsupportedPlatform
}

// EmitText types text (stub)
func (i *Injector) EmitText(text string) error {
	return ErrUnsupportedPlatform
}

// EmitConsumerControl sends a volume command (stub)
func (i *Injector) EmitConsumerControl(c macro.ConsumerCode) error {
	return ErrUnsupportedPlatform
}

// Close releases nothing (stub)
func (i *Injector) Close() error {
	return nil
}
