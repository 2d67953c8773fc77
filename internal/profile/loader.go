package profile

import (
	"bytes"
	"fmt"
	"io/fs"
	"log"
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"macropad/internal/macro"
)

// maxDelaySeconds is the longest delay a time.Duration can hold.
const maxDelaySeconds = float64(math.MaxInt64) / float64(time.Second)

// rawProfile mirrors a profile file. Both YAML and TOML use the same field names.
type rawProfile struct {
	Name     string      `yaml:"name" toml:"name"`
	App      string      `yaml:"app" toml:"app"`
	Platform string      `yaml:"platform" toml:"platform"`
	Macros   []*rawMacro `yaml:"macros" toml:"macros"`
}

// rawMacro is one key. A null or empty entry inherits from the default profile.
type rawMacro struct {
	Color    *int64    `yaml:"color" toml:"color"`
	Label    *string   `yaml:"label" toml:"label"`
	Sequence []rawStep `yaml:"sequence" toml:"sequence"`
}

// rawStep must set exactly one field. down/up take a key name or a HID code,
// delay is in seconds.
type rawStep struct {
	Down  any     `yaml:"down" toml:"down"`
	Up    any     `yaml:"up" toml:"up"`
	Type  *string `yaml:"type" toml:"type"`
	Delay any     `yaml:"delay" toml:"delay"`
}

// Load registers every profile file in the root of fsys in lexical order.
// Malformed files are logged and skipped. It returns the number of profiles loaded.
func Load(fsys fs.FS, reg *Registry) (int, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return 0, fmt.Errorf("failed to read profile directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	loaded := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !IsProfileFile(name) {
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			log.Printf("Profiles: skipping %s: %v", name, err)
			continue
		}
		p, err := Parse(name, data)
		if err != nil {
			log.Printf("Profiles: skipping %s: %v", name, err)
			continue
		}
		if p.Key.IsDefault() {
			if missing := p.MissingSlots(); len(missing) > 0 {
				log.Printf("Profiles: %s leaves slots %v empty, they will be blank", name, missing)
			}
		}
		if _, exists := reg.Resolve(p.Key); exists {
			log.Printf("Profiles: %s overrides %s", name, p.Key)
		}
		reg.Register(p)
		loaded++
	}
	return loaded, nil
}

// IsProfileFile reports whether name has a profile file extension.
func IsProfileFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

// Parse decodes a profile file, choosing the format from the file extension.
func Parse(name string, data []byte) (*Profile, error) {
	var raw rawProfile
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: unknown field %s", ErrMalformed, undecoded[0])
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	return raw.build()
}

func (raw *rawProfile) build() (*Profile, error) {
	if raw.App == "" {
		return nil, fmt.Errorf("%w: missing app", ErrMalformed)
	}
	platform, err := ParsePlatform(raw.Platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw.Macros) != macro.NumKeys {
		return nil, fmt.Errorf("%w: expected %d macros, got %d", ErrMalformed, macro.NumKeys, len(raw.Macros))
	}

	p := &Profile{Name: raw.Name, Key: Key{Platform: platform, App: raw.App}}
	if p.Name == "" {
		p.Name = raw.App
	}
	for i, rm := range raw.Macros {
		if rm.absent() {
			continue
		}
		action, err := rm.build()
		if err != nil {
			return nil, fmt.Errorf("%w: macro %d: %v", ErrMalformed, i, err)
		}
		p.Macros[i] = action
	}
	return p, nil
}

func (rm *rawMacro) absent() bool {
	return rm == nil || (rm.Color == nil && rm.Label == nil && len(rm.Sequence) == 0)
}

func (rm *rawMacro) build() (*macro.Action, error) {
	action := &macro.Action{}
	if rm.Color != nil {
		if *rm.Color < 0 || *rm.Color > int64(macro.MaxColor) {
			return nil, fmt.Errorf("color 0x%X out of range", *rm.Color)
		}
		action.Color = macro.Color(*rm.Color)
	}
	if rm.Label != nil {
		action.Label = *rm.Label
	}
	for j, rs := range rm.Sequence {
		step, err := rs.build()
		if err != nil {
			return nil, fmt.Errorf("step %d: %v", j, err)
		}
		action.Sequence = append(action.Sequence, step)
	}
	return action, nil
}

func (rs rawStep) build() (macro.Step, error) {
	set := 0
	for _, present := range []bool{rs.Down != nil, rs.Up != nil, rs.Type != nil, rs.Delay != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return macro.Step{}, fmt.Errorf("a step needs exactly one of down, up, type, delay")
	}

	switch {
	case rs.Down != nil:
		code, err := keyRef(rs.Down)
		if err != nil {
			return macro.Step{}, err
		}
		return macro.KeyDown(code), nil
	case rs.Up != nil:
		code, err := keyRef(rs.Up)
		if err != nil {
			return macro.Step{}, err
		}
		return macro.KeyUp(code), nil
	case rs.Type != nil:
		return macro.TypeText(*rs.Type), nil
	default:
		secs, ok := number(rs.Delay)
		if !ok || secs < 0 || secs >= maxDelaySeconds || math.IsNaN(secs) {
			return macro.Step{}, fmt.Errorf("invalid delay %v", rs.Delay)
		}
		return macro.Delay(time.Duration(secs * float64(time.Second))), nil
	}
}

// keyRef accepts a key name or an integer HID usage ID.
func keyRef(v any) (macro.Keycode, error) {
	if name, ok := v.(string); ok {
		return macro.ParseKeycode(name)
	}
	n, ok := number(v)
	if !ok || n != math.Trunc(n) || n < 0 || n > 255 {
		return 0, fmt.Errorf("invalid key code %v", v)
	}
	return macro.Keycode(n), nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
