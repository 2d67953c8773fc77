package switcher

import (
	"log"

	"macropad/internal/input"
	"macropad/internal/macro"
)

// pollInput drains pending key events, then the encoder.
func (s *Switcher) pollInput() {
	for {
		ev, ok := s.hw.PollKeyEvent()
		if !ok {
			break
		}
		s.HandleKeyEvent(ev)
	}
	s.HandleEncoder(s.hw.PollEncoderDelta())
	if s.hw.PollEncoderButton() {
		s.HandleButton()
	}
}

// HandleKeyEvent applies a key press or release. Macros only start in Hotkey
// mode; a release always pairs with the press that started one.
func (s *Switcher) HandleKeyEvent(ev input.KeyEvent) {
	i := ev.Index
	if i < 0 || i >= macro.NumKeys {
		log.Printf("Switcher: Ignoring event for key %d", i)
		return
	}

	s.mu.Lock()
	var job *keyJob
	st := &s.state
	if ev.Pressed {
		if st.Pressed[i] {
			s.mu.Unlock()
			return
		}
		st.Pressed[i] = true
		s.hw.SetKeyColor(i, PressedColor)

		switch st.CurrentMode {
		case ModeHotkey:
			action := s.currentSlot(i)
			s.armed[i] = &action
			job = &keyJob{seq: action.Sequence, phase: macro.Pressed}
		case ModeIdle:
			st.TargetMode = ModeHotkey
		case ModeSwitch:
			switch i {
			case 0:
				s.browse(-1)
			case 2:
				s.browse(1)
			}
		}
	} else {
		if !st.Pressed[i] {
			s.mu.Unlock()
			return
		}
		s.hw.SetKeyColor(i, st.IdleColors[i])
		if action := s.armed[i]; action != nil {
			job = &keyJob{seq: action.Sequence, phase: macro.Released}
			s.armed[i] = nil
		}
		st.Pressed[i] = false
	}
	s.mu.Unlock()

	if job != nil && len(job.seq) > 0 {
		s.enqueue(i, *job)
	}
}

func (s *Switcher) enqueue(i int, job keyJob) {
	select {
	case s.jobs[i] <- job:
	default:
		log.Printf("Switcher: Key %d queue full, dropping %s", i, job.phase)
	}
}

// HandleEncoder applies a rotation: volume outside Switch mode, browsing inside it.
func (s *Switcher) HandleEncoder(delta int) {
	if delta == 0 {
		return
	}

	s.mu.Lock()
	if s.state.CurrentMode == ModeSwitch {
		s.browse(delta)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	code := macro.VolumeIncrement
	if delta < 0 {
		code = macro.VolumeDecrement
	}
	if err := s.out.EmitConsumerControl(code); err != nil {
		log.Printf("Switcher: %s failed: %v", code, err)
	}
}

// HandleButton toggles between Switch mode and Hotkey mode.
func (s *Switcher) HandleButton() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentMode != ModeSwitch {
		s.state.TargetMode = ModeSwitch
	} else {
		s.state.TargetMode = ModeHotkey
	}
}

// browse moves the browse selection by delta, wrapping both ways, and restarts
// the Switch timeout. Caller holds mu.
func (s *Switcher) browse(delta int) {
	st := &s.state
	n := len(s.reg.Browse())
	base := st.TargetBrowseIndex
	if base < 0 {
		base = st.BrowseIndex
	}
	if base < 0 {
		base = 0
	}
	st.TargetBrowseIndex = ((base+delta)%n + n) % n
	st.SwitchEnteredAt = s.now()
}

// currentSlot resolves key i of the loaded app. Caller holds mu.
func (s *Switcher) currentSlot(i int) macro.Action {
	if s.state.CurrentApp == nil {
		return macro.Blank
	}
	p, ok := s.reg.Resolve(*s.state.CurrentApp)
	if !ok {
		return macro.Blank
	}
	return s.reg.MacroSlot(p, i)
}

// Animate advances the rainbow shown in Idle and Switch mode. Held keys keep
// their pressed color.
func (s *Switcher) Animate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	if st.CurrentMode != ModeIdle && st.CurrentMode != ModeSwitch {
		return
	}
	for pin := 0; pin < macro.NumKeys; pin++ {
		c := macro.Wheel(wheelPosition(st.ColorIndex, pin))
		st.IdleColors[pin] = c
		if !st.Pressed[pin] {
			s.hw.SetKeyColor(pin, c)
		}
	}
	st.ColorIndex++
}

// wheelPosition staggers the rainbow so it sweeps diagonally across the grid.
func wheelPosition(index uint8, pin int) uint8 {
	offset := (pin/4 + pin%3) * 6
	return uint8(int(index) - offset)
}
