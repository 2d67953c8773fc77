package switcher

import (
	"time"

	"macropad/internal/macro"
	"macropad/internal/profile"
	"macropad/internal/protocol"
)

// Mode is the device mode.
type Mode int

const (
	// ModeHotkey runs the loaded app's macros
	ModeHotkey Mode = iota
	// ModeIdle shows the sleep animation while the host is asleep
	ModeIdle
	// ModeSwitch lets the user browse and pin an app
	ModeSwitch
	// ModeMeeting is reserved; nothing transitions into it yet
	ModeMeeting
)

func (m Mode) String() string {
	switch m {
	case ModeHotkey:
		return "hotkey"
	case ModeIdle:
		return "idle"
	case ModeSwitch:
		return "switch"
	case ModeMeeting:
		return "meeting"
	default:
		return "unknown"
	}
}

// Display slots: 0-11 are key labels, BrowseSlot shows the browse selection in
// Switch mode and HeaderSlot is the title bar.
const (
	BrowseSlot = 1
	HeaderSlot = macro.NumKeys
)

// PressedColor lights a key while it is held.
const PressedColor macro.Color = 0xAAAAAA

// Display texts.
const (
	switchHeader = "Switch Mode"
	idleHeader   = "Sleeping..."
)

// noBrowse marks an unset browse index.
const noBrowse = -1

// State is the device state shared by every task. All fields are guarded by
// Switcher.mu; each field group has one writer:
// the dispatcher owns Pressed and TargetBrowseIndex,
// the mode machine owns CurrentMode and AutoSwitch,
// the loader owns CurrentApp and IdleColors outside the animation.
type State struct {
	Pressed    [macro.NumKeys]bool
	IdleColors [macro.NumKeys]macro.Color
	ColorIndex uint8

	CurrentMode Mode
	TargetMode  Mode
	AutoSwitch  bool

	// CurrentApp is nil until the loader runs after entering Hotkey.
	CurrentApp *profile.Key
	TargetApp  profile.Key
	AppLabel   string

	BrowseIndex       int
	TargetBrowseIndex int
	SwitchEnteredAt   time.Time

	Focus protocol.FocusReport
}

// Snapshot is a copy of State safe to use outside the lock.
type Snapshot struct {
	State
	Browse []profile.BrowseEntry
}

// PressedKeys lists the held key indices in ascending order.
func (s State) PressedKeys() []int {
	var keys []int
	for i, down := range s.Pressed {
		if down {
			keys = append(keys, i)
		}
	}
	return keys
}

// AppLoad describes a profile pushed to the keys.
type AppLoad struct {
	Key      profile.Key
	Label    string
	Fallback bool
	Labels   [macro.NumKeys]string
}
