package input

import (
	"fmt"

	"macropad/internal/macro"
)

// Linux input event codes (linux/input-event-codes.h).
const (
	evdevVolumeDown uint16 = 114
	evdevVolumeUp   uint16 = 115
)

// hidToEvdev maps HID usage IDs to Linux key codes, following the kernel's
// hid-input keyboard table.
var hidToEvdev = map[macro.Keycode]uint16{
	macro.KeyA: 30, macro.KeyB: 48, macro.KeyC: 46, macro.KeyD: 32, macro.KeyE: 18,
	macro.KeyF: 33, macro.KeyG: 34, macro.KeyH: 35, macro.KeyI: 23, macro.KeyJ: 36,
	macro.KeyK: 37, macro.KeyL: 38, macro.KeyM: 50, macro.KeyN: 49, macro.KeyO: 24,
	macro.KeyP: 25, macro.KeyQ: 16, macro.KeyR: 19, macro.KeyS: 31, macro.KeyT: 20,
	macro.KeyU: 22, macro.KeyV: 47, macro.KeyW: 17, macro.KeyX: 45, macro.KeyY: 21,
	macro.KeyZ: 44,

	macro.KeyOne: 2, macro.KeyTwo: 3, macro.KeyThree: 4, macro.KeyFour: 5, macro.KeyFive: 6,
	macro.KeySix: 7, macro.KeySeven: 8, macro.KeyEight: 9, macro.KeyNine: 10, macro.KeyZero: 11,

	macro.KeyEnter:        28,
	macro.KeyEscape:       1,
	macro.KeyBackspace:    14,
	macro.KeyTab:          15,
	macro.KeySpace:        57,
	macro.KeyMinus:        12,
	macro.KeyEquals:       13,
	macro.KeyLeftBracket:  26,
	macro.KeyRightBracket: 27,
	macro.KeyBackslash:    43,
	macro.KeyPound:        43,
	macro.KeySemicolon:    39,
	macro.KeyQuote:        40,
	macro.KeyGraveAccent:  41,
	macro.KeyComma:        51,
	macro.KeyPeriod:       52,
	macro.KeyForwardSlash: 53,
	macro.KeyCapsLock:     58,

	macro.KeyF1: 59, macro.KeyF2: 60, macro.KeyF3: 61, macro.KeyF4: 62, macro.KeyF5: 63,
	macro.KeyF6: 64, macro.KeyF7: 65, macro.KeyF8: 66, macro.KeyF9: 67, macro.KeyF10: 68,
	macro.KeyF11: 87, macro.KeyF12: 88,

	macro.KeyPrintScreen: 99,
	macro.KeyScrollLock:  70,
	macro.KeyPause:       119,
	macro.KeyInsert:      110,
	macro.KeyHome:        102,
	macro.KeyPageUp:      104,
	macro.KeyDelete:      111,
	macro.KeyEnd:         107,
	macro.KeyPageDown:    109,
	macro.KeyRightArrow:  106,
	macro.KeyLeftArrow:   105,
	macro.KeyDownArrow:   108,
	macro.KeyUpArrow:     103,

	macro.KeyLeftControl:  29,
	macro.KeyLeftShift:    42,
	macro.KeyLeftAlt:      56,
	macro.KeyLeftGUI:      125,
	macro.KeyRightControl: 97,
	macro.KeyRightShift:   54,
	macro.KeyRightAlt:     100,
	macro.KeyRightGUI:     126,
}

// EvdevCode returns the Linux key code for a HID usage ID.
func EvdevCode(k macro.Keycode) (uint16, bool) {
	code, ok := hidToEvdev[k]
	return code, ok
}

// Keystroke is the key and shift state that produces one character.
type Keystroke struct {
	Code  macro.Keycode
	Shift bool
}

var shiftedDigits = []rune{')', '!', '@', '#', '$', '%', '^', '&', '*', '('}

var symbolStrokes = map[rune]Keystroke{
	' ':  {macro.KeySpace, false},
	'\n': {macro.KeyEnter, false},
	'\t': {macro.KeyTab, false},
	'-':  {macro.KeyMinus, false},
	'_':  {macro.KeyMinus, true},
	'=':  {macro.KeyEquals, false},
	'+':  {macro.KeyEquals, true},
	'[':  {macro.KeyLeftBracket, false},
	'{':  {macro.KeyLeftBracket, true},
	']':  {macro.KeyRightBracket, false},
	'}':  {macro.KeyRightBracket, true},
	'\\': {macro.KeyBackslash, false},
	'|':  {macro.KeyBackslash, true},
	';':  {macro.KeySemicolon, false},
	':':  {macro.KeySemicolon, true},
	'\'': {macro.KeyQuote, false},
	'"':  {macro.KeyQuote, true},
	'`':  {macro.KeyGraveAccent, false},
	'~':  {macro.KeyGraveAccent, true},
	',':  {macro.KeyComma, false},
	'<':  {macro.KeyComma, true},
	'.':  {macro.KeyPeriod, false},
	'>':  {macro.KeyPeriod, true},
	'/':  {macro.KeyForwardSlash, false},
	'?':  {macro.KeyForwardSlash, true},
}

// KeystrokeFor maps a character to a key on a US layout.
func KeystrokeFor(r rune) (Keystroke, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return Keystroke{Code: macro.KeyA + macro.Keycode(r-'a')}, true
	case r >= 'A' && r <= 'Z':
		return Keystroke{Code: macro.KeyA + macro.Keycode(r-'A'), Shift: true}, true
	case r == '0':
		return Keystroke{Code: macro.KeyZero}, true
	case r >= '1' && r <= '9':
		return Keystroke{Code: macro.KeyOne + macro.Keycode(r-'1')}, true
	}
	for i, s := range shiftedDigits {
		if s == r {
			if i == 0 {
				return Keystroke{Code: macro.KeyZero, Shift: true}, true
			}
			return Keystroke{Code: macro.KeyOne + macro.Keycode(i-1), Shift: true}, true
		}
	}
	ks, ok := symbolStrokes[r]
	return ks, ok
}

type keyEmitter interface {
	EmitKeyDown(code macro.Keycode) error
	EmitKeyUp(code macro.Keycode) error
}

// typeText types text one keystroke at a time. Characters without a US layout
// key are skipped and reported in the returned error.
func typeText(k keyEmitter, text string) error {
	var skipped []rune
	for _, r := range text {
		ks, ok := KeystrokeFor(r)
		if !ok {
			skipped = append(skipped, r)
			continue
		}
		if ks.Shift {
			if err := k.EmitKeyDown(macro.KeyLeftShift); err != nil {
				return err
			}
		}
		if err := k.EmitKeyDown(ks.Code); err != nil {
			return err
		}
		if err := k.EmitKeyUp(ks.Code); err != nil {
			return err
		}
		if ks.Shift {
			if err := k.EmitKeyUp(macro.KeyLeftShift); err != nil {
				return err
			}
		}
	}
	if len(skipped) > 0 {
		return fmt.Errorf("%w: cannot type %q", ErrUnmappedKey, string(skipped))
	}
	return nil
}
