package macro

import (
	"fmt"
	"strings"
)

// Keycode is a USB HID keyboard usage ID.
type Keycode uint8

// HID usage IDs for the keys profiles may name.
const (
	KeyA Keycode = 0x04 + iota
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
	KeyOne
	KeyTwo
	KeyThree
	KeyFour
	KeyFive
	KeySix
	KeySeven
	KeyEight
	KeyNine
	KeyZero
	KeyEnter
	KeyEscape
	KeyBackspace
	KeyTab
	KeySpace
	KeyMinus
	KeyEquals
	KeyLeftBracket
	KeyRightBracket
	KeyBackslash
	KeyPound
	KeySemicolon
	KeyQuote
	KeyGraveAccent
	KeyComma
	KeyPeriod
	KeyForwardSlash
	KeyCapsLock
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyPrintScreen
	KeyScrollLock
	KeyPause
	KeyInsert
	KeyHome
	KeyPageUp
	KeyDelete
	KeyEnd
	KeyPageDown
	KeyRightArrow
	KeyLeftArrow
	KeyDownArrow
	KeyUpArrow
)

// Modifier usage IDs.
const (
	KeyLeftControl  Keycode = 0xE0
	KeyLeftShift    Keycode = 0xE1
	KeyLeftAlt      Keycode = 0xE2
	KeyLeftGUI      Keycode = 0xE3
	KeyRightControl Keycode = 0xE4
	KeyRightShift   Keycode = 0xE5
	KeyRightAlt     Keycode = 0xE6
	KeyRightGUI     Keycode = 0xE7
)

var keyNames = map[string]Keycode{
	"ENTER":          KeyEnter,
	"RETURN":         KeyEnter,
	"ESCAPE":         KeyEscape,
	"BACKSPACE":      KeyBackspace,
	"TAB":            KeyTab,
	"SPACE":          KeySpace,
	"SPACEBAR":       KeySpace,
	"MINUS":          KeyMinus,
	"EQUALS":         KeyEquals,
	"LEFT_BRACKET":   KeyLeftBracket,
	"RIGHT_BRACKET":  KeyRightBracket,
	"BACKSLASH":      KeyBackslash,
	"POUND":          KeyPound,
	"SEMICOLON":      KeySemicolon,
	"QUOTE":          KeyQuote,
	"GRAVE_ACCENT":   KeyGraveAccent,
	"COMMA":          KeyComma,
	"PERIOD":         KeyPeriod,
	"FORWARD_SLASH":  KeyForwardSlash,
	"CAPS_LOCK":      KeyCapsLock,
	"PRINT_SCREEN":   KeyPrintScreen,
	"SCROLL_LOCK":    KeyScrollLock,
	"PAUSE":          KeyPause,
	"INSERT":         KeyInsert,
	"HOME":           KeyHome,
	"PAGE_UP":        KeyPageUp,
	"DELETE":         KeyDelete,
	"END":            KeyEnd,
	"PAGE_DOWN":      KeyPageDown,
	"RIGHT_ARROW":    KeyRightArrow,
	"LEFT_ARROW":     KeyLeftArrow,
	"DOWN_ARROW":     KeyDownArrow,
	"UP_ARROW":       KeyUpArrow,
	"CONTROL":        KeyLeftControl,
	"LEFT_CONTROL":   KeyLeftControl,
	"SHIFT":          KeyLeftShift,
	"LEFT_SHIFT":     KeyLeftShift,
	"ALT":            KeyLeftAlt,
	"OPTION":         KeyLeftAlt,
	"LEFT_ALT":       KeyLeftAlt,
	"GUI":            KeyLeftGUI,
	"COMMAND":        KeyLeftGUI,
	"WINDOWS":        KeyLeftGUI,
	"LEFT_GUI":       KeyLeftGUI,
	"RIGHT_CONTROL":  KeyRightControl,
	"RIGHT_SHIFT":    KeyRightShift,
	"RIGHT_ALT":      KeyRightAlt,
	"RIGHT_GUI":      KeyRightGUI,
	"ONE":            KeyOne,
	"TWO":            KeyTwo,
	"THREE":          KeyThree,
	"FOUR":           KeyFour,
	"FIVE":           KeyFive,
	"SIX":            KeySix,
	"SEVEN":          KeySeven,
	"EIGHT":          KeyEight,
	"NINE":           KeyNine,
	"ZERO":           KeyZero,
}

var keycodeNames map[Keycode]string

func init() {
	for i := 0; i < 26; i++ {
		keyNames[string(rune('A'+i))] = KeyA + Keycode(i)
	}
	for i := 1; i <= 12; i++ {
		keyNames[fmt.Sprintf("F%d", i)] = KeyF1 + Keycode(i-1)
	}

	keycodeNames = make(map[Keycode]string, len(keyNames))
	for name, code := range keyNames {
		// prefer the shortest alias, then alphabetical, so names are stable
		if cur, ok := keycodeNames[code]; !ok || len(name) < len(cur) || (len(name) == len(cur) && name < cur) {
			keycodeNames[code] = name
		}
	}
}

// ParseKeycode resolves a key name such as "COMMAND", "f5" or "left_arrow".
func ParseKeycode(name string) (Keycode, error) {
	code, ok := keyNames[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown key name %q", name)
	}
	return code, nil
}

func (k Keycode) String() string {
	if name, ok := keycodeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", uint8(k))
}
