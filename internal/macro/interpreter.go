package macro

import (
	"context"
	"log"
	"time"
)

// Keyboard receives the key output of a running macro.
type Keyboard interface {
	EmitKeyDown(code Keycode) error
	EmitKeyUp(code Keycode) error
	EmitText(text string) error
}

// ConsumerCode is a consumer-control command sent for encoder rotation.
type ConsumerCode int

const (
	// VolumeIncrement raises the host volume one step
	VolumeIncrement ConsumerCode = iota + 1
	// VolumeDecrement lowers the host volume one step
	VolumeDecrement
)

func (c ConsumerCode) String() string {
	switch c {
	case VolumeIncrement:
		return "volume+"
	case VolumeDecrement:
		return "volume-"
	default:
		return "unknown"
	}
}

// ConsumerControl receives media/volume commands.
type ConsumerControl interface {
	EmitConsumerControl(code ConsumerCode) error
}

// Interpreter plays macro sequences against a Keyboard.
// A single Interpreter may be shared by many goroutines; it holds no per-run state.
type Interpreter struct {
	out   Keyboard
	sleep func(ctx context.Context, d time.Duration) error
}

// NewInterpreter creates an interpreter writing to out.
func NewInterpreter(out Keyboard) *Interpreter {
	return &Interpreter{out: out, sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute runs seq for the given phase. Pressed plays every step in order, sleeping
// on Delay steps. Released only lifts keys: the KeyUp steps in order, followed by any
// KeyDown code the sequence never releases. Output errors are logged and do not stop
// the sequence; cancelling ctx does.
func (in *Interpreter) Execute(ctx context.Context, seq Sequence, phase Phase) {
	if len(seq) == 0 {
		return
	}
	if phase == Released {
		in.release(ctx, seq)
		return
	}

	for _, step := range seq {
		if ctx.Err() != nil {
			return
		}
		var err error
		switch step.Kind {
		case StepKeyDown:
			err = in.out.EmitKeyDown(step.Code)
		case StepKeyUp:
			err = in.out.EmitKeyUp(step.Code)
		case StepText:
			err = in.out.EmitText(step.Text)
		case StepDelay:
			if in.sleep(ctx, step.Delay) != nil {
				return
			}
		}
		if err != nil {
			log.Printf("Macro: %s failed: %v", step, err)
		}
	}
}

func (in *Interpreter) release(ctx context.Context, seq Sequence) {
	for _, code := range ReleaseCodes(seq) {
		if ctx.Err() != nil {
			return
		}
		if err := in.out.EmitKeyUp(code); err != nil {
			log.Printf("Macro: release %s failed: %v", code, err)
		}
	}
}

// ReleaseCodes lists the key-ups the Released phase emits for seq.
func ReleaseCodes(seq Sequence) []Keycode {
	var codes []Keycode
	released := make(map[Keycode]bool)
	for _, step := range seq {
		if step.Kind == StepKeyUp {
			codes = append(codes, step.Code)
			released[step.Code] = true
		}
	}
	for _, step := range seq {
		if step.Kind == StepKeyDown && !released[step.Code] {
			codes = append(codes, step.Code)
			released[step.Code] = true
		}
	}
	return codes
}
