package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"macropad/internal/profile"
)

func TestFocusReportRoundTrip(t *testing.T) {
	data, err := EncodeFocusReport("Firefox", profile.Mac)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(data) != `{"name":"Firefox","platform":"mac","version":"1"}` {
		t.Errorf("Unexpected wire form %s", data)
	}

	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.Kind != KindFocus {
		t.Fatalf("Expected focus message, got kind %d", msg.Kind)
	}
	want := FocusReport{ProcessName: "Firefox", Platform: profile.Mac, Updated: true}
	if msg.Focus != want {
		t.Errorf("Expected %+v, got %+v", want, msg.Focus)
	}
	if msg.Focus.Key().String() != "mac-Firefox" {
		t.Errorf("Expected key mac-Firefox, got %s", msg.Focus.Key())
	}
}

func TestUpdateRequestAndCommands(t *testing.T) {
	req := EncodeUpdateRequest()
	if req[len(req)-1] != '\n' {
		t.Error("Expected update request to end in a newline")
	}
	var wire map[string]interface{}
	if err := json.Unmarshal(req, &wire); err != nil {
		t.Fatalf("Update request is not JSON: %v", err)
	}
	if wire["updateRequested"] != true || wire["version"] != MessagingVersion {
		t.Errorf("Unexpected update request %v", wire)
	}
	msg, err := Decode(req)
	if err != nil || msg.Kind != KindUpdateRequest {
		t.Errorf("Expected update request, got %+v, %v", msg, err)
	}

	for _, cmd := range []Command{CommandSleep, CommandWake} {
		data, err := EncodeCommand(cmd)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		msg, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if msg.Kind != KindCommand || msg.Command != cmd {
			t.Errorf("Expected command %s, got %+v", cmd, msg)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"partial", `{"name":"Fire`, ErrIncomplete},
		{"empty", ``, ErrIncomplete},
		{"not an object", `[1,2]`, ErrMalformed},
		{"missing version", `{"name":"Firefox","platform":"mac"}`, ErrMalformed},
		{"numeric version", `{"name":"Firefox","platform":"mac","version":1}`, ErrMalformed},
		{"missing name", `{"platform":"mac","version":"1"}`, ErrMalformed},
		{"unknown platform", `{"name":"Firefox","platform":"beos","version":"1"}`, ErrMalformed},
		{"numeric name", `{"name":3,"platform":"mac","version":"1"}`, ErrMalformed},
		{"unknown command", `{"command":"reboot","version":"1"}`, ErrMalformed},
		{"false update", `{"updateRequested":false,"version":"1"}`, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.in))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReceiverChunks(t *testing.T) {
	r := NewReceiver()
	now := time.Unix(1000, 0)
	chunks := []string{`{"name":"Co`, `de","platform"`, `:"mac","version":"1"}`}

	for i, c := range chunks {
		msg, ok := r.Feed([]byte(c), now.Add(time.Duration(i)*100*time.Millisecond))
		if i < len(chunks)-1 {
			if ok {
				t.Fatalf("Chunk %d: unexpected message %+v", i, msg)
			}
			continue
		}
		if !ok {
			t.Fatal("Expected a message after the last chunk")
		}
		if msg.Focus.ProcessName != "Code" {
			t.Errorf("Expected Code, got %s", msg.Focus.ProcessName)
		}
	}
	if r.Pending() != 0 {
		t.Errorf("Expected empty buffer after a message, got %d bytes", r.Pending())
	}
}

func TestReceiverSilenceReset(t *testing.T) {
	r := NewReceiver()
	now := time.Unix(1000, 0)

	r.Feed([]byte(`{"name":"Stale`), now)
	msg, ok := r.Feed([]byte(`{"name":"Firefox","platform":"mac","version":"1"}`), now.Add(600*time.Millisecond))
	if !ok {
		t.Fatal("Expected the stale prefix to be dropped")
	}
	if msg.Focus.ProcessName != "Firefox" {
		t.Errorf("Expected Firefox, got %s", msg.Focus.ProcessName)
	}

	r.Feed([]byte(`{"na`), now)
	r.Expire(now.Add(400 * time.Millisecond))
	if r.Pending() == 0 {
		t.Error("Expected partial buffer to survive a short gap")
	}
	r.Expire(now.Add(501 * time.Millisecond))
	if r.Pending() != 0 {
		t.Error("Expected partial buffer to expire")
	}
}

func TestReceiverDropsMalformed(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	r := NewReceiver()
	now := time.Unix(1000, 0)

	if _, ok := r.Feed([]byte(`{"name":"Firefox","platform":"mac"}`), now); ok {
		t.Fatal("Expected message without version to be rejected")
	}
	if r.Pending() != 0 {
		t.Errorf("Expected malformed message to be discarded, got %d bytes", r.Pending())
	}
	if logs.Len() != 0 {
		t.Errorf("Expected malformed message to be dropped silently, got %q", logs.String())
	}
	if _, ok := r.Feed([]byte(`{"name":"Firefox","platform":"mac","version":"1"}`), now); !ok {
		t.Error("Expected the next message to decode")
	}
}
