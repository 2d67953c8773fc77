package switcher

import (
	"log"
	"time"

	"macropad/internal/macro"
	"macropad/internal/profile"
)

// Tick runs one reconciliation step under the lock: focus, mode, browse label and
// app load, in that order. Callbacks fire after the lock is released.
func (s *Switcher) Tick() {
	s.mu.Lock()
	now := s.now()
	var notify []func()

	s.reconcileFocus()
	notify = s.reconcileMode(now, notify)
	s.refreshBrowseLabel()
	notify = s.loadApp(notify)
	s.mu.Unlock()

	for _, fn := range notify {
		fn()
	}
}

// reconcileFocus adopts an unconsumed focus report while auto-switch is on.
func (s *Switcher) reconcileFocus() {
	st := &s.state
	if !st.AutoSwitch || !st.Focus.Updated {
		return
	}
	st.Focus.Updated = false
	st.TargetApp = st.Focus.Key()
	log.Printf("Switcher: Auto switching to %s", st.TargetApp)
}

// reconcileMode applies a pending mode change with its entry and exit effects.
func (s *Switcher) reconcileMode(now time.Time, notify []func()) []func() {
	st := &s.state

	// An explicit target set since the last step takes precedence over the timeout.
	if st.CurrentMode == ModeSwitch && st.TargetMode == ModeSwitch &&
		now.Sub(st.SwitchEnteredAt) > s.opts.SwitchTimeout {
		log.Printf("Switcher: Switch mode timed out")
		st.TargetMode = ModeHotkey
	}
	if st.TargetMode == st.CurrentMode {
		return notify
	}

	from, to := st.CurrentMode, st.TargetMode
	if from == ModeSwitch {
		s.exitSwitch()
	}

	switch to {
	case ModeSwitch:
		s.enterSwitch(now)
	case ModeIdle:
		s.hw.SetDisplayText(HeaderSlot, idleHeader)
	case ModeHotkey:
		st.CurrentApp = nil
	}
	st.CurrentMode = to
	log.Printf("Switcher: Mode %s -> %s", from, to)

	if cb := s.onModeChange; cb != nil {
		notify = append(notify, func() { cb(from, to) })
	}
	return notify
}

func (s *Switcher) exitSwitch() {
	st := &s.state
	browse := s.reg.Browse()
	i := st.TargetBrowseIndex
	if i < 0 {
		i = st.BrowseIndex
	}

	if i <= 0 || i >= len(browse) {
		st.AutoSwitch = true
		log.Printf("Switcher: Auto switch enabled")
	} else {
		st.TargetApp = browse[i].Key
		log.Printf("Switcher: Selected %s", st.TargetApp)
	}
	st.TargetBrowseIndex = noBrowse
	st.BrowseIndex = noBrowse
	st.SwitchEnteredAt = time.Time{}
}

func (s *Switcher) enterSwitch(now time.Time) {
	st := &s.state
	s.hw.SetDisplayText(HeaderSlot, switchHeader)
	for i := 0; i < macro.NumKeys; i++ {
		switch i {
		case 0:
			s.hw.SetDisplayText(i, "<")
		case 2:
			s.hw.SetDisplayText(i, ">")
		default:
			s.hw.SetDisplayText(i, "")
		}
	}

	index := 0
	if !st.AutoSwitch && st.CurrentApp != nil {
		index = s.reg.BrowseIndex(*st.CurrentApp)
	}
	st.TargetBrowseIndex = index
	st.BrowseIndex = noBrowse
	st.AutoSwitch = false
	st.SwitchEnteredAt = now
}

// refreshBrowseLabel shows the browse selection while in Switch mode.
func (s *Switcher) refreshBrowseLabel() {
	st := &s.state
	if st.CurrentMode != ModeSwitch || st.TargetBrowseIndex == st.BrowseIndex {
		return
	}
	browse := s.reg.Browse()
	if st.TargetBrowseIndex < 0 || st.TargetBrowseIndex >= len(browse) {
		st.TargetBrowseIndex = 0
	}
	st.BrowseIndex = st.TargetBrowseIndex
	s.hw.SetDisplayText(BrowseSlot, s.reg.BrowseLabel(browse[st.BrowseIndex]))
}

// loadApp pushes the target app's colors and labels when it differs from the
// loaded one. It only runs in Hotkey mode; Switch and Idle own the display.
func (s *Switcher) loadApp(notify []func()) []func() {
	st := &s.state
	if st.CurrentMode != ModeHotkey {
		return notify
	}
	if st.CurrentApp != nil && *st.CurrentApp == st.TargetApp {
		return notify
	}

	target := st.TargetApp
	p, ok := s.reg.Resolve(target)
	label := ""
	if ok {
		label = p.Name
	} else {
		p = s.fallbackFor(target)
		label = target.App + "*"
		st.TargetApp = p.Key
	}

	key := p.Key
	st.CurrentApp = &key
	st.AppLabel = label
	s.hw.SetDisplayText(HeaderSlot, label)

	load := AppLoad{Key: key, Label: label, Fallback: !ok}
	for i := 0; i < macro.NumKeys; i++ {
		action := s.reg.MacroSlot(p, i)
		st.IdleColors[i] = action.Color
		if !st.Pressed[i] {
			s.hw.SetKeyColor(i, action.Color)
		}
		s.hw.SetDisplayText(i, action.Label)
		load.Labels[i] = action.Label
	}
	log.Printf("Switcher: Load app %s (%s)", key, label)

	if cb := s.onAppLoad; cb != nil {
		notify = append(notify, func() { cb(load) })
	}
	return notify
}

// fallbackFor resolves an unknown app: the platform default, then the configured
// default, then the built-in idle profile.
func (s *Switcher) fallbackFor(target profile.Key) *profile.Profile {
	for _, k := range []profile.Key{s.reg.DefaultKeyFor(target), s.opts.DefaultApp} {
		if p, ok := s.reg.Resolve(k); ok {
			log.Printf("Switcher: Unknown app %s, using %s", target, k)
			return p
		}
	}
	log.Printf("Switcher: Unknown app %s and no default profile, using %s", target, profile.IdleKey)
	p, _ := s.reg.Resolve(profile.IdleKey)
	return p
}
