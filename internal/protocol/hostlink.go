// Package protocol defines the serial host-link messages and the status-stream envelope.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tidwall/gjson"

	"macropad/internal/profile"
)

// MessagingVersion is sent with every host-link message.
const MessagingVersion = "1"

// SilenceReset is how long the receive buffer may sit idle before it is discarded.
const SilenceReset = 500 * time.Millisecond

// maxBuffer bounds the receive buffer; no valid message comes close.
const maxBuffer = 4096

// FocusReport names the application focused on the host.
// Updated marks a report nobody has consumed yet.
type FocusReport struct {
	ProcessName string
	Platform    profile.Platform
	Updated     bool
}

// Key returns the profile key the report refers to.
func (r FocusReport) Key() profile.Key {
	return profile.Key{Platform: r.Platform, App: r.ProcessName}
}

// Command is a host power-state notification.
type Command string

const (
	CommandSleep Command = "sleep"
	CommandWake  Command = "wake"
)

// Kind tells which field of Inbound is set.
type Kind int

const (
	KindFocus Kind = iota + 1
	KindCommand
	KindUpdateRequest
)

// Inbound is one decoded host-link message.
type Inbound struct {
	Kind    Kind
	Focus   FocusReport
	Command Command
	Version string
}

type focusWire struct {
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Version  string `json:"version"`
}

type commandWire struct {
	Command string `json:"command"`
	Version string `json:"version"`
}

type updateWire struct {
	UpdateRequested bool   `json:"updateRequested"`
	Version         string `json:"version"`
}

// EncodeFocusReport builds the host → device focus message.
func EncodeFocusReport(name string, platform profile.Platform) ([]byte, error) {
	return json.Marshal(focusWire{Name: name, Platform: string(platform), Version: MessagingVersion})
}

// EncodeCommand builds the host → device sleep/wake message.
func EncodeCommand(cmd Command) ([]byte, error) {
	return json.Marshal(commandWire{Command: string(cmd), Version: MessagingVersion})
}

// EncodeUpdateRequest builds the device → host request to re-announce focus.
// It ends in a newline so the host can read it line by line.
func EncodeUpdateRequest() []byte {
	data, _ := json.Marshal(updateWire{UpdateRequested: true, Version: MessagingVersion})
	return append(data, '\n')
}

// Decode parses one complete message. It returns ErrIncomplete while buf is not yet
// valid JSON and ErrMalformed for valid JSON that is not a known message.
func Decode(buf []byte) (Inbound, error) {
	if !gjson.ValidBytes(buf) {
		return Inbound{}, ErrIncomplete
	}
	doc := gjson.ParseBytes(buf)
	if !doc.IsObject() {
		return Inbound{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	version := doc.Get("version")
	if version.Type != gjson.String || version.Str == "" {
		return Inbound{}, fmt.Errorf("%w: missing version", ErrMalformed)
	}
	msg := Inbound{Version: version.Str}

	if upd := doc.Get("updateRequested"); upd.Exists() {
		if upd.Type != gjson.True && upd.Type != gjson.False {
			return Inbound{}, fmt.Errorf("%w: updateRequested is not a bool", ErrMalformed)
		}
		if upd.Type == gjson.False {
			return Inbound{}, fmt.Errorf("%w: updateRequested is false", ErrMalformed)
		}
		msg.Kind = KindUpdateRequest
		return msg, nil
	}

	if cmd := doc.Get("command"); cmd.Exists() {
		c := Command(cmd.Str)
		if cmd.Type != gjson.String || (c != CommandSleep && c != CommandWake) {
			return Inbound{}, fmt.Errorf("%w: unknown command %s", ErrMalformed, cmd.Raw)
		}
		msg.Kind = KindCommand
		msg.Command = c
		return msg, nil
	}

	name := doc.Get("name")
	if name.Type != gjson.String || name.Str == "" {
		return Inbound{}, fmt.Errorf("%w: missing name", ErrMalformed)
	}
	plat := doc.Get("platform")
	if plat.Type != gjson.String {
		return Inbound{}, fmt.Errorf("%w: missing platform", ErrMalformed)
	}
	platform, err := profile.ParsePlatform(plat.Str)
	if err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	msg.Kind = KindFocus
	msg.Focus = FocusReport{ProcessName: name.Str, Platform: platform, Updated: true}
	return msg, nil
}

// Receiver reassembles messages from arbitrary read chunks. It tries to decode after
// every chunk and drops its buffer after a decode, a malformed message or SilenceReset
// without data.
type Receiver struct {
	buf  []byte
	last time.Time
}

// NewReceiver creates an empty receiver.
func NewReceiver() *Receiver {
	return &Receiver{}
}

// Feed appends chunk and returns a message if the buffer now holds one.
func (r *Receiver) Feed(chunk []byte, now time.Time) (Inbound, bool) {
	r.Expire(now)
	if len(chunk) == 0 {
		return Inbound{}, false
	}
	r.buf = append(r.buf, chunk...)
	r.last = now

	msg, err := Decode(r.buf)
	switch {
	case err == nil:
		r.buf = r.buf[:0]
		return msg, true
	case errors.Is(err, ErrIncomplete):
		if len(r.buf) > maxBuffer {
			log.Printf("Protocol: dropping %d byte buffer without a message", len(r.buf))
			r.buf = r.buf[:0]
		}
	default:
		r.buf = r.buf[:0]
	}
	return Inbound{}, false
}

// Expire drops a partial message that has been silent longer than SilenceReset.
func (r *Receiver) Expire(now time.Time) {
	if len(r.buf) > 0 && now.Sub(r.last) > SilenceReset {
		r.buf = r.buf[:0]
	}
}

// Pending returns the number of buffered bytes.
func (r *Receiver) Pending() int {
	return len(r.buf)
}
