// Package profile holds per-application macro profiles and the registry used to look them up.
package profile

import (
	"fmt"
	"strings"

	"macropad/internal/macro"
)

// Platform is the host operating system a profile targets.
type Platform string

const (
	Mac     Platform = "mac"
	Windows Platform = "windows"
	Linux   Platform = "linux"
	// NoPlatform is used only by the built-in idle profile
	NoPlatform Platform = "none"
)

// ParsePlatform validates a host platform name. "none" is not accepted.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(s); p {
	case Mac, Windows, Linux:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
	}
}

// DefaultApp is the app name of a platform's fallback profile.
const DefaultApp = "Default"

// Key identifies a profile by platform and process name.
type Key struct {
	Platform Platform
	App      string
}

// IdleKey is the key of the built-in blank profile.
var IdleKey = Key{Platform: NoPlatform, App: "Idle"}

// String renders the key as "platform-App".
func (k Key) String() string {
	return string(k.Platform) + "-" + k.App
}

// Default returns the key of the platform's fallback profile.
func (k Key) Default() Key {
	return Key{Platform: k.Platform, App: DefaultApp}
}

// IsDefault reports whether k names a platform fallback profile.
func (k Key) IsDefault() bool {
	return k.App == DefaultApp
}

// ParseKey parses "platform-App". Only the first '-' separates the two parts, so app
// names may contain dashes.
func ParseKey(s string) (Key, error) {
	platform, app, ok := strings.Cut(s, "-")
	if !ok || app == "" {
		return Key{}, fmt.Errorf("invalid app key %q", s)
	}
	if Platform(platform) == NoPlatform {
		return Key{Platform: NoPlatform, App: app}, nil
	}
	p, err := ParsePlatform(platform)
	if err != nil {
		return Key{}, err
	}
	return Key{Platform: p, App: app}, nil
}

// Profile is an immutable set of 12 macros bound to one application.
// A nil slot inherits from the platform's default profile.
type Profile struct {
	Name   string
	Key    Key
	Macros [macro.NumKeys]*macro.Action
}

// MissingSlots lists the slots that inherit from the default profile.
func (p *Profile) MissingSlots() []int {
	var missing []int
	for i, m := range p.Macros {
		if m == nil {
			missing = append(missing, i)
		}
	}
	return missing
}

// Idle returns the built-in profile shown when nothing else resolves.
func Idle() *Profile {
	return &Profile{Name: "MacroPad", Key: IdleKey}
}
