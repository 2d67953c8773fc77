package switcher

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"macropad/internal/input"
	"macropad/internal/macro"
	"macropad/internal/profile"
	"macropad/internal/protocol"
)

type fakeHardware struct {
	mu         sync.Mutex
	events     []input.KeyEvent
	delta      int
	button     bool
	colors     [macro.NumKeys]macro.Color
	text       map[int]string
	colorCalls int
}

func newFakeHardware() *fakeHardware {
	return &fakeHardware{text: make(map[int]string)}
}

func (h *fakeHardware) PollKeyEvent() (input.KeyEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		return input.KeyEvent{}, false
	}
	ev := h.events[0]
	h.events = h.events[1:]
	return ev, true
}

func (h *fakeHardware) PollEncoderDelta() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	d := h.delta
	h.delta = 0
	return d
}

func (h *fakeHardware) PollEncoderButton() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := h.button
	h.button = false
	return b
}

func (h *fakeHardware) SetKeyColor(index int, c macro.Color) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.colors[index] = c
	h.colorCalls++
}

func (h *fakeHardware) SetDisplayText(slot int, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.text[slot] = text
}

func (h *fakeHardware) label(slot int) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.text[slot]
}

type fakeOutput struct {
	mu     sync.Mutex
	events []string
}

func (o *fakeOutput) record(ev string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
	return nil
}

func (o *fakeOutput) EmitKeyDown(code macro.Keycode) error { return o.record("down " + code.String()) }
func (o *fakeOutput) EmitKeyUp(code macro.Keycode) error   { return o.record("up " + code.String()) }
func (o *fakeOutput) EmitText(text string) error           { return o.record("text " + text) }
func (o *fakeOutput) EmitConsumerControl(code macro.ConsumerCode) error {
	return o.record(code.String())
}

func (o *fakeOutput) take() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ev := o.events
	o.events = nil
	return ev
}

type fakeUpdater struct {
	calls int
	fail  bool
}

func (u *fakeUpdater) RequestUpdate() error {
	u.calls++
	if u.fail {
		return errors.New("port closed")
	}
	return nil
}

var (
	macDefault = profile.Key{Platform: profile.Mac, App: "Default"}
	macFirefox = profile.Key{Platform: profile.Mac, App: "Firefox"}
)

func chordSequence() macro.Sequence {
	return macro.Sequence{
		macro.KeyDown(macro.KeyLeftControl),
		macro.KeyDown(macro.KeyLeftAlt),
		macro.TypeText("1"),
		macro.Delay(0),
		macro.KeyUp(macro.KeyLeftAlt),
		macro.KeyUp(macro.KeyLeftControl),
	}
}

func testRegistry() *profile.Registry {
	reg := profile.NewRegistry()
	def := &profile.Profile{Name: "Mac", Key: macDefault}
	for i := range def.Macros {
		def.Macros[i] = &macro.Action{Color: macro.Color(0x100 + i), Label: fmt.Sprintf("d%d", i)}
	}
	def.Macros[5] = &macro.Action{Color: 0x00FF00, Label: "Chord", Sequence: chordSequence()}
	reg.Register(def)

	ff := &profile.Profile{Name: "Firefox", Key: macFirefox}
	ff.Macros[6] = &macro.Action{Color: 0xA000A0, Label: "Priv",
		Sequence: macro.Sequence{macro.KeyDown(macro.KeyLeftGUI), macro.KeyDown(macro.KeyLeftShift), macro.KeyDown(macro.KeyP)}}
	reg.Register(ff)
	return reg
}

type harness struct {
	s   *Switcher
	hw  *fakeHardware
	out *fakeOutput
	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{hw: newFakeHardware(), out: &fakeOutput{}, now: time.Unix(1000, 0)}
	h.s = New(testRegistry(), h.hw, h.out, DefaultOptions())
	h.s.now = func() time.Time { return h.now }
	h.s.Tick()
	return h
}

// runJobs executes queued key jobs in order, as the key workers would.
func (h *harness) runJobs() {
	for i := range h.s.jobs {
		for {
			select {
			case job := <-h.s.jobs[i]:
				h.s.interp.Execute(context.Background(), job.seq, job.phase)
				continue
			default:
			}
			break
		}
	}
}

func (h *harness) press(i int) {
	h.s.HandleKeyEvent(input.KeyEvent{Index: i, Pressed: true})
	h.runJobs()
}

func (h *harness) release(i int) {
	h.s.HandleKeyEvent(input.KeyEvent{Index: i, Pressed: false})
	h.runJobs()
}

func (h *harness) enterSwitch(t *testing.T) {
	t.Helper()
	h.s.HandleButton()
	h.s.Tick()
	if m := h.s.Snapshot().CurrentMode; m != ModeSwitch {
		t.Fatalf("Expected switch mode, got %s", m)
	}
}

func TestInitialLoad(t *testing.T) {
	h := newHarness(t)
	snap := h.s.Snapshot()
	if snap.CurrentMode != ModeHotkey || !snap.AutoSwitch {
		t.Errorf("Expected hotkey mode with auto switch, got %s auto=%v", snap.CurrentMode, snap.AutoSwitch)
	}
	if snap.CurrentApp == nil || *snap.CurrentApp != macDefault {
		t.Fatalf("Expected mac-Default loaded, got %v", snap.CurrentApp)
	}
	if h.hw.label(HeaderSlot) != "Mac" {
		t.Errorf("Expected header Mac, got %q", h.hw.label(HeaderSlot))
	}
	if h.hw.colors[5] != 0x00FF00 || h.hw.label(5) != "Chord" {
		t.Errorf("Expected key 5 to show Chord, got %s %q", h.hw.colors[5], h.hw.label(5))
	}
}

func TestUnknownAppFallsBackToDefault(t *testing.T) {
	h := newHarness(t)
	h.s.mu.Lock()
	h.s.state.TargetApp = profile.Key{Platform: profile.Mac, App: "Slack"}
	h.s.mu.Unlock()
	h.s.Tick()

	snap := h.s.Snapshot()
	if snap.CurrentApp == nil || *snap.CurrentApp != macDefault {
		t.Fatalf("Expected mac-Default, got %v", snap.CurrentApp)
	}
	if snap.TargetApp != macDefault {
		t.Errorf("Expected target redirected to mac-Default, got %s", snap.TargetApp)
	}
	if h.hw.label(HeaderSlot) != "Slack*" {
		t.Errorf("Expected label Slack*, got %q", h.hw.label(HeaderSlot))
	}
}

func TestUnknownPlatformUsesConfiguredDefaultThenIdle(t *testing.T) {
	h := newHarness(t)
	h.s.mu.Lock()
	h.s.state.TargetApp = profile.Key{Platform: profile.Linux, App: "vim"}
	h.s.mu.Unlock()
	h.s.Tick()
	if app := h.s.Snapshot().CurrentApp; app == nil || *app != macDefault {
		t.Errorf("Expected configured default, got %v", app)
	}

	hw := newFakeHardware()
	s := New(profile.NewRegistry(), hw, &fakeOutput{}, DefaultOptions())
	s.Tick()
	if app := s.Snapshot().CurrentApp; app == nil || *app != profile.IdleKey {
		t.Errorf("Expected idle profile with an empty registry, got %v", app)
	}
	if hw.label(HeaderSlot) != "Default*" {
		t.Errorf("Expected Default*, got %q", hw.label(HeaderSlot))
	}
}

func TestFocusReportDrivesTarget(t *testing.T) {
	h := newHarness(t)
	var focused []string
	h.s.SetOnFocus(func(r protocol.FocusReport) { focused = append(focused, r.ProcessName) })

	h.s.ReportFocus(protocol.FocusReport{ProcessName: "Firefox", Platform: profile.Mac})
	h.s.Tick()
	snap := h.s.Snapshot()
	if *snap.CurrentApp != macFirefox || h.hw.label(HeaderSlot) != "Firefox" {
		t.Errorf("Expected Firefox loaded, got %v %q", snap.CurrentApp, h.hw.label(HeaderSlot))
	}
	if snap.Focus.Updated {
		t.Error("Expected focus report to be consumed")
	}
	if h.hw.label(6) != "Priv" || h.hw.label(0) != "d0" {
		t.Errorf("Expected own slot 6 and inherited slot 0, got %q %q", h.hw.label(6), h.hw.label(0))
	}

	h.s.ReportFocus(protocol.FocusReport{ProcessName: "Code", Platform: profile.Mac})
	h.s.Tick()
	if snap := h.s.Snapshot(); *snap.CurrentApp != macDefault || h.hw.label(HeaderSlot) != "Code*" {
		t.Errorf("Expected Code to fall back to mac-Default, got %v %q", snap.CurrentApp, h.hw.label(HeaderSlot))
	}
	if len(focused) != 2 {
		t.Errorf("Expected 2 focus callbacks, got %d", len(focused))
	}
}

func TestFocusIgnoredWhileAutoSwitchOff(t *testing.T) {
	h := newHarness(t)
	if err := h.s.PinApp(macFirefox); err != nil {
		t.Fatalf("PinApp failed: %v", err)
	}
	h.s.ReportFocus(protocol.FocusReport{ProcessName: "Code", Platform: profile.Mac})
	h.s.Tick()

	snap := h.s.Snapshot()
	if *snap.CurrentApp != macFirefox {
		t.Errorf("Expected pinned Firefox, got %v", snap.CurrentApp)
	}
	if !snap.Focus.Updated {
		t.Error("Expected report to stay unconsumed")
	}

	h.s.EnableAutoSwitch()
	h.s.Tick()
	if snap := h.s.Snapshot(); *snap.CurrentApp != macDefault {
		t.Errorf("Expected pending report to apply once auto switch is back, got %v", snap.CurrentApp)
	}

	if err := h.s.PinApp(profile.Key{Platform: profile.Mac, App: "Slack"}); !errors.Is(err, ErrUnknownApp) {
		t.Errorf("Expected ErrUnknownApp, got %v", err)
	}
}

func TestKeyMacroPressAndRelease(t *testing.T) {
	h := newHarness(t)

	h.press(5)
	want := []string{"down CONTROL", "down ALT", "text 1", "up ALT", "up CONTROL"}
	if got := h.out.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("Press: expected %v, got %v", want, got)
	}
	if h.hw.colors[5] != PressedColor {
		t.Errorf("Expected pressed color, got %s", h.hw.colors[5])
	}

	h.release(5)
	want = []string{"up ALT", "up CONTROL"}
	if got := h.out.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("Release: expected %v, got %v", want, got)
	}
	if h.hw.colors[5] != 0x00FF00 {
		t.Errorf("Expected idle color restored, got %s", h.hw.colors[5])
	}
}

func TestHeldChordReleasedAfterModeChange(t *testing.T) {
	h := newHarness(t)
	h.s.ReportFocus(protocol.FocusReport{ProcessName: "Firefox", Platform: profile.Mac})
	h.s.Tick()

	h.press(6)
	h.out.take()
	h.enterSwitch(t)
	h.release(6)

	want := []string{"up GUI", "up SHIFT", "up P"}
	if got := h.out.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected held keys released, got %v", got)
	}
}

func TestPressReleasePairingAllKeys(t *testing.T) {
	for _, mode := range []Mode{ModeHotkey, ModeSwitch, ModeIdle} {
		h := newHarness(t)
		switch mode {
		case ModeSwitch:
			h.enterSwitch(t)
		case ModeIdle:
			h.s.HostCommand(protocol.CommandSleep)
			h.s.Tick()
		}
		for i := 0; i < macro.NumKeys; i++ {
			before := h.s.Snapshot().Pressed
			h.press(i)
			if !h.s.Snapshot().Pressed[i] {
				t.Errorf("%s: key %d not marked pressed", mode, i)
			}
			h.release(i)
			if after := h.s.Snapshot().Pressed; after != before {
				t.Errorf("%s: key %d pressed set changed: %v -> %v", mode, i, before, after)
			}
		}
	}
}

func TestKeysGatedOutsideHotkey(t *testing.T) {
	h := newHarness(t)
	h.enterSwitch(t)
	h.press(5)
	h.release(5)
	if got := h.out.take(); len(got) != 0 {
		t.Errorf("Expected no key output in switch mode, got %v", got)
	}

	h.s.HostCommand(protocol.CommandSleep)
	h.s.Tick()
	h.press(5)
	if got := h.out.take(); len(got) != 0 {
		t.Errorf("Expected no key output in idle mode, got %v", got)
	}
	h.release(5)
	h.s.Tick()
	if m := h.s.Snapshot().CurrentMode; m != ModeHotkey {
		t.Errorf("Expected key press to wake the pad, got %s", m)
	}
	if got := h.out.take(); len(got) != 0 {
		t.Errorf("Expected the waking key to emit nothing, got %v", got)
	}
}

func TestSwitchModeEntryAndExit(t *testing.T) {
	h := newHarness(t)
	var changes []string
	h.s.SetOnModeChange(func(from, to Mode) { changes = append(changes, from.String()+">"+to.String()) })

	h.enterSwitch(t)
	snap := h.s.Snapshot()
	if snap.AutoSwitch {
		t.Error("Expected auto switch off in switch mode")
	}
	if snap.TargetBrowseIndex != 0 {
		t.Errorf("Expected browse index 0, got %d", snap.TargetBrowseIndex)
	}
	if h.hw.label(HeaderSlot) != "Switch Mode" || h.hw.label(0) != "<" || h.hw.label(2) != ">" {
		t.Errorf("Unexpected switch display %v", h.hw.text)
	}
	if h.hw.label(BrowseSlot) != profile.AutoLabel {
		t.Errorf("Expected browse label %q, got %q", profile.AutoLabel, h.hw.label(BrowseSlot))
	}

	// browse list: auto, mac-Default, mac-Firefox
	h.s.HandleEncoder(2)
	h.s.Tick()
	if h.hw.label(BrowseSlot) != "Firefox (mac)" {
		t.Errorf("Expected Firefox (mac), got %q", h.hw.label(BrowseSlot))
	}

	h.s.HandleButton()
	h.s.Tick()
	snap = h.s.Snapshot()
	if snap.CurrentMode != ModeHotkey || snap.AutoSwitch {
		t.Errorf("Expected hotkey mode with Firefox pinned, got %s auto=%v", snap.CurrentMode, snap.AutoSwitch)
	}
	if snap.CurrentApp == nil || *snap.CurrentApp != macFirefox {
		t.Errorf("Expected Firefox loaded in the same step, got %v", snap.CurrentApp)
	}
	if snap.TargetBrowseIndex != noBrowse || snap.BrowseIndex != noBrowse {
		t.Errorf("Expected browse bookkeeping cleared, got %d/%d", snap.BrowseIndex, snap.TargetBrowseIndex)
	}

	// Re-entering starts on the pinned app.
	h.enterSwitch(t)
	if idx := h.s.Snapshot().TargetBrowseIndex; idx != 2 {
		t.Errorf("Expected browse index 2, got %d", idx)
	}
	h.s.HandleEncoder(1)
	h.s.HandleButton()
	h.s.Tick()
	if !h.s.Snapshot().AutoSwitch {
		t.Error("Expected auto switch re-enabled after selecting auto")
	}

	want := []string{"hotkey>switch", "switch>hotkey", "hotkey>switch", "switch>hotkey"}
	if !reflect.DeepEqual(changes, want) {
		t.Errorf("Expected %v, got %v", want, changes)
	}
}

func TestBrowseWrapsBothWays(t *testing.T) {
	h := newHarness(t)
	h.enterSwitch(t)

	h.s.HandleEncoder(-1)
	if idx := h.s.Snapshot().TargetBrowseIndex; idx != 2 {
		t.Errorf("Expected wrap to 2, got %d", idx)
	}
	h.s.HandleEncoder(1)
	if idx := h.s.Snapshot().TargetBrowseIndex; idx != 0 {
		t.Errorf("Expected wrap to 0, got %d", idx)
	}
	h.press(0)
	h.release(0)
	if idx := h.s.Snapshot().TargetBrowseIndex; idx != 2 {
		t.Errorf("Expected '<' key to browse back to 2, got %d", idx)
	}
	h.press(2)
	h.release(2)
	if idx := h.s.Snapshot().TargetBrowseIndex; idx != 0 {
		t.Errorf("Expected '>' key to browse forward to 0, got %d", idx)
	}
	if got := h.out.take(); len(got) != 0 {
		t.Errorf("Expected no volume output while browsing, got %v", got)
	}
}

func TestSwitchTimeout(t *testing.T) {
	h := newHarness(t)
	h.enterSwitch(t)

	h.now = h.now.Add(59 * time.Second)
	h.s.HandleEncoder(2) // refreshes the timeout
	h.now = h.now.Add(59 * time.Second)
	h.s.Tick()
	if m := h.s.Snapshot().CurrentMode; m != ModeSwitch {
		t.Fatalf("Expected encoder to extend the timeout, got %s", m)
	}

	h.now = h.now.Add(2 * time.Second)
	h.s.Tick()
	snap := h.s.Snapshot()
	if snap.CurrentMode != ModeHotkey {
		t.Fatalf("Expected timeout back to hotkey, got %s", snap.CurrentMode)
	}
	if *snap.CurrentApp != macFirefox {
		t.Errorf("Expected browsed app to be applied on timeout, got %v", snap.CurrentApp)
	}
}

func TestExplicitActionBeatsTimeout(t *testing.T) {
	h := newHarness(t)
	h.enterSwitch(t)
	h.now = h.now.Add(2 * time.Minute)

	var changes int
	h.s.SetOnModeChange(func(from, to Mode) { changes++ })
	h.s.HostCommand(protocol.CommandSleep)
	h.s.Tick()
	if m := h.s.Snapshot().CurrentMode; m != ModeIdle {
		t.Errorf("Expected the explicit sleep to win over the timeout, got %s", m)
	}
	if changes != 1 {
		t.Errorf("Expected exactly one transition, got %d", changes)
	}
}

func TestIdleModeAndWake(t *testing.T) {
	h := newHarness(t)
	h.s.HostCommand(protocol.CommandWake)
	h.s.Tick()
	if m := h.s.Snapshot().CurrentMode; m != ModeHotkey {
		t.Errorf("Expected wake to be ignored outside idle, got %s", m)
	}

	h.s.HostCommand(protocol.CommandSleep)
	h.s.Tick()
	if m := h.s.Snapshot().CurrentMode; m != ModeIdle {
		t.Fatalf("Expected idle, got %s", m)
	}
	if h.hw.label(HeaderSlot) != "Sleeping..." {
		t.Errorf("Expected sleep header, got %q", h.hw.label(HeaderSlot))
	}

	h.s.ReportFocus(protocol.FocusReport{ProcessName: "Firefox", Platform: profile.Mac})
	h.s.Tick()
	if *h.s.Snapshot().CurrentApp != macDefault {
		t.Error("Expected the loader to stay idle outside hotkey mode")
	}

	h.s.HostCommand(protocol.CommandWake)
	h.s.Tick()
	snap := h.s.Snapshot()
	if snap.CurrentMode != ModeHotkey || *snap.CurrentApp != macFirefox {
		t.Errorf("Expected wake to hotkey with Firefox, got %s %v", snap.CurrentMode, snap.CurrentApp)
	}
}

func TestLoaderIdempotent(t *testing.T) {
	h := newHarness(t)
	loads := 0
	h.s.SetOnAppLoad(func(AppLoad) { loads++ })

	calls := h.hw.colorCalls
	h.s.Tick()
	h.s.Tick()
	if h.hw.colorCalls != calls || loads != 0 {
		t.Errorf("Expected no pushes for an unchanged app, got %d calls and %d loads", h.hw.colorCalls-calls, loads)
	}

	h.s.ReportFocus(protocol.FocusReport{ProcessName: "Slack", Platform: profile.Mac})
	h.s.Tick()
	h.s.Tick()
	if loads != 1 {
		t.Errorf("Expected one load after a fallback, got %d", loads)
	}
}

func TestEncoderVolume(t *testing.T) {
	h := newHarness(t)
	h.s.HandleEncoder(3)
	h.s.HandleEncoder(0)
	h.s.HandleEncoder(-1)
	want := []string{"volume+", "volume-"}
	if got := h.out.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestAnimateSkipsPressedKeys(t *testing.T) {
	h := newHarness(t)
	h.s.Animate()
	if h.hw.colors[0] != 0x100 {
		t.Errorf("Expected no animation in hotkey mode, got %s", h.hw.colors[0])
	}

	h.s.HostCommand(protocol.CommandSleep)
	h.s.Tick()
	h.press(4)
	h.s.Animate()
	if h.hw.colors[0] != macro.Wheel(0) {
		t.Errorf("Expected key 0 at wheel(0), got %s", h.hw.colors[0])
	}
	if h.hw.colors[4] != PressedColor {
		t.Errorf("Expected held key to stay lit, got %s", h.hw.colors[4])
	}
	if idx := h.s.Snapshot().ColorIndex; idx != 1 {
		t.Errorf("Expected color index 1, got %d", idx)
	}
}

func TestWheelPosition(t *testing.T) {
	tests := []struct {
		index uint8
		pin   int
		want  uint8
	}{
		{0, 0, 0},
		{0, 1, 250},
		{10, 2, 254},
		{100, 4, 88},
		{100, 11, 76},
	}
	for _, tt := range tests {
		if got := wheelPosition(tt.index, tt.pin); got != tt.want {
			t.Errorf("wheelPosition(%d, %d): got %d, want %d", tt.index, tt.pin, got, tt.want)
		}
	}
}

func TestRequestUpdateOnToggle(t *testing.T) {
	h := newHarness(t)
	u := &fakeUpdater{}
	h.s.SetUpdateRequester(u)

	h.s.RequestUpdateIfNeeded()
	h.s.RequestUpdateIfNeeded()
	if u.calls != 1 {
		t.Errorf("Expected one start-up request, got %d", u.calls)
	}

	h.enterSwitch(t)
	h.s.RequestUpdateIfNeeded()
	if u.calls != 2 {
		t.Errorf("Expected a request when auto switch turned off, got %d", u.calls)
	}

	u.fail = true
	h.s.HandleButton()
	h.s.Tick()
	h.s.RequestUpdateIfNeeded()
	u.fail = false
	h.s.RequestUpdateIfNeeded()
	if u.calls != 4 {
		t.Errorf("Expected a retry after a failed request, got %d", u.calls)
	}
	h.s.RequestUpdateIfNeeded()
	if u.calls != 4 {
		t.Errorf("Expected no request without a toggle, got %d", u.calls)
	}

	h.s.SetUpdateRequester(nil)
	h.s.RequestUpdateIfNeeded()
	reopened := &fakeUpdater{}
	h.s.SetUpdateRequester(reopened)
	h.s.RequestUpdateIfNeeded()
	if u.calls != 4 || reopened.calls != 1 {
		t.Errorf("Expected one request on the new link, got %d then %d", u.calls, reopened.calls)
	}
}

func TestRunProcessesHardware(t *testing.T) {
	hw := newFakeHardware()
	out := &fakeOutput{}
	opts := DefaultOptions()
	opts.PollInterval = time.Millisecond
	s := New(testRegistry(), hw, out, opts)

	hw.mu.Lock()
	hw.events = []input.KeyEvent{{Index: 5, Pressed: true}, {Index: 5, Pressed: false}}
	hw.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		out.mu.Lock()
		n := len(out.events)
		out.mu.Unlock()
		if n >= 7 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	want := []string{"down CONTROL", "down ALT", "text 1", "up ALT", "up CONTROL", "up ALT", "up CONTROL"}
	if got := out.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func (o *fakeOutput) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDelayBlocksOnlyItsKey(t *testing.T) {
	reg := testRegistry()
	def, _ := reg.Resolve(macDefault)
	def.Macros[3] = &macro.Action{Label: "Slow", Sequence: macro.Sequence{
		macro.KeyDown(macro.KeyA),
		macro.Delay(time.Second),
		macro.KeyUp(macro.KeyA),
	}}

	hw := newFakeHardware()
	out := &fakeOutput{}
	opts := DefaultOptions()
	opts.PollInterval = time.Millisecond
	s := New(reg, hw, out, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	hw.mu.Lock()
	hw.events = []input.KeyEvent{{Index: 3, Pressed: true}}
	hw.mu.Unlock()
	waitUntil(t, "key down", func() bool { return len(out.snapshot()) == 1 })

	// The key's worker is now sleeping; the other tasks must keep going.
	hw.mu.Lock()
	hw.delta = 1
	hw.mu.Unlock()
	s.ReportFocus(protocol.FocusReport{ProcessName: "Firefox", Platform: profile.Mac})

	waitUntil(t, "volume and app load", func() bool {
		app := s.Snapshot().CurrentApp
		return len(out.snapshot()) >= 2 && app != nil && *app == macFirefox
	})
	want := []string{"down A", "volume+"}
	if got := out.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v during the delay, got %v", want, got)
	}

	waitUntil(t, "delayed key up", func() bool { return len(out.snapshot()) == 3 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	want = []string{"down A", "volume+", "up A"}
	if got := out.take(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
