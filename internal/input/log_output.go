package input

import (
	"log"

	"macropad/internal/macro"
)

// LogOutput writes key output to the log instead of the host. It is used when no
// injector is available and by the terminal simulator.
type LogOutput struct{}

// EmitKeyDown logs a key press
func (LogOutput) EmitKeyDown(k macro.Keycode) error {
	log.Printf("Output: down %s", k)
	return nil
}

// EmitKeyUp logs a key release
func (LogOutput) EmitKeyUp(k macro.Keycode) error {
	log.Printf("Output: up %s", k)
	return nil
}

// EmitText logs typed text
func (LogOutput) EmitText(text string) error {
	log.Printf("Output: type %q", text)
	return nil
}

// EmitConsumerControl logs a volume command
func (LogOutput) EmitConsumerControl(c macro.ConsumerCode) error {
	log.Printf("Output: %s", c)
	return nil
}
