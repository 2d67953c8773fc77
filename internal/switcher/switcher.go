// Package switcher provides the core macropad logic: mode switching, app selection and
// key dispatch.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"macropad/internal/input"
	"macropad/internal/macro"
	"macropad/internal/profile"
	"macropad/internal/protocol"
)

// ErrUnknownApp is returned when pinning an app that is not registered.
var ErrUnknownApp = errors.New("unknown app")

// Hardware is the pad: keys, rotary encoder, key LEDs and the display.
// Implementations must not call back into the Switcher.
type Hardware interface {
	PollKeyEvent() (input.KeyEvent, bool)
	PollEncoderDelta() int
	PollEncoderButton() bool
	SetKeyColor(index int, c macro.Color)
	SetDisplayText(slot int, text string)
}

// UpdateRequester asks the host to re-announce the focused app.
type UpdateRequester interface {
	RequestUpdate() error
}

// Options tunes timing and fallbacks.
type Options struct {
	SwitchTimeout     time.Duration
	PollInterval      time.Duration
	AnimationInterval time.Duration
	UpdateInterval    time.Duration
	DefaultApp        profile.Key
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		SwitchTimeout:     60 * time.Second,
		PollInterval:      5 * time.Millisecond,
		AnimationInterval: 50 * time.Millisecond,
		UpdateInterval:    200 * time.Millisecond,
		DefaultApp:        profile.Key{Platform: profile.Mac, App: profile.DefaultApp},
	}
}

const keyQueueSize = 32

type keyJob struct {
	seq   macro.Sequence
	phase macro.Phase
}

// Switcher owns the device state and coordinates every task touching it.
type Switcher struct {
	mu      sync.Mutex
	state   State
	reg     *profile.Registry
	hw      Hardware
	out     input.Output
	interp  *macro.Interpreter
	updater UpdateRequester
	opts    Options
	now     func() time.Time

	// armed holds the macro captured at press time for keys whose press ran
	armed [macro.NumKeys]*macro.Action
	jobs  [macro.NumKeys]chan keyJob

	// last auto-switch value announced to the host; nil until the first request
	announced *bool

	// Callbacks for status notifications
	onModeChange func(from, to Mode)
	onAppLoad    func(AppLoad)
	onFocus      func(protocol.FocusReport)
}

// New creates a Switcher in Hotkey mode with auto-switch on, targeting the
// configured default app.
func New(reg *profile.Registry, hw Hardware, out input.Output, opts Options) *Switcher {
	if opts.SwitchTimeout <= 0 {
		opts.SwitchTimeout = DefaultOptions().SwitchTimeout
	}
	s := &Switcher{
		reg:    reg,
		hw:     hw,
		out:    out,
		interp: macro.NewInterpreter(out),
		opts:   opts,
		now:    time.Now,
	}
	s.state = State{
		CurrentMode:       ModeHotkey,
		TargetMode:        ModeHotkey,
		AutoSwitch:        true,
		TargetApp:         opts.DefaultApp,
		BrowseIndex:       noBrowse,
		TargetBrowseIndex: noBrowse,
	}
	for i := range s.jobs {
		s.jobs[i] = make(chan keyJob, keyQueueSize)
	}
	return s
}

// SetUpdateRequester sets the host link used to request focus updates. A new
// link gets a fresh request; nil detaches the link.
func (s *Switcher) SetUpdateRequester(u UpdateRequester) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updater = u
	s.announced = nil
}

// SetOnModeChange sets the callback for mode changes
func (s *Switcher) SetOnModeChange(callback func(from, to Mode)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onModeChange = callback
}

// SetOnAppLoad sets the callback for app loads
func (s *Switcher) SetOnAppLoad(callback func(AppLoad)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAppLoad = callback
}

// SetOnFocus sets the callback for host focus reports
func (s *Switcher) SetOnFocus(callback func(protocol.FocusReport)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFocus = callback
}

// Registry returns the profile registry the switcher loads from.
func (s *Switcher) Registry() *profile.Registry {
	return s.reg
}

// Snapshot returns a copy of the current state.
func (s *Switcher) Snapshot() Snapshot {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()

	if st.CurrentApp != nil {
		k := *st.CurrentApp
		st.CurrentApp = &k
	}
	return Snapshot{State: st, Browse: s.reg.Browse()}
}

// ReportFocus records a focus report from the host. It is consumed by the next
// reconciliation if auto-switch is on.
func (s *Switcher) ReportFocus(r protocol.FocusReport) {
	r.Updated = true
	s.mu.Lock()
	s.state.Focus = r
	cb := s.onFocus
	s.mu.Unlock()

	log.Printf("Switcher: Host focus %s", r.Key())
	if cb != nil {
		cb(r)
	}
}

// HostCommand applies a sleep or wake notification from the host.
func (s *Switcher) HostCommand(cmd protocol.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd {
	case protocol.CommandSleep:
		s.state.TargetMode = ModeIdle
	case protocol.CommandWake:
		if s.state.CurrentMode == ModeIdle {
			s.state.TargetMode = ModeHotkey
		}
	default:
		log.Printf("Switcher: Ignoring unknown host command %q", cmd)
	}
}

// HandleInbound routes a decoded host-link message.
func (s *Switcher) HandleInbound(msg protocol.Inbound) {
	switch msg.Kind {
	case protocol.KindFocus:
		s.ReportFocus(msg.Focus)
	case protocol.KindCommand:
		s.HostCommand(msg.Command)
	default:
		log.Printf("Switcher: Ignoring host message kind %d", msg.Kind)
	}
}

// PinApp turns auto-switch off and targets key. It has no effect on the mode.
func (s *Switcher) PinApp(key profile.Key) error {
	if _, ok := s.reg.Resolve(key); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownApp, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AutoSwitch = false
	s.state.TargetApp = key
	log.Printf("Switcher: Pinned %s", key)
	return nil
}

// EnableAutoSwitch lets host focus reports drive the app again.
func (s *Switcher) EnableAutoSwitch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AutoSwitch = true
}

// Run starts the device tasks and blocks until ctx is cancelled.
func (s *Switcher) Run(ctx context.Context) error {
	s.Tick()

	var wg sync.WaitGroup
	for i := range s.jobs {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			s.keyWorker(ctx, index)
		}(i)
	}

	loops := []struct {
		interval time.Duration
		fn       func()
	}{
		{s.opts.PollInterval, s.pollInput},
		{s.opts.PollInterval, s.Tick},
		{s.opts.AnimationInterval, s.Animate},
		{s.opts.UpdateInterval, s.RequestUpdateIfNeeded},
	}
	for _, l := range loops {
		interval := l.interval
		if interval <= 0 {
			interval = DefaultOptions().PollInterval
		}
		wg.Add(1)
		go func(interval time.Duration, fn func()) {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					fn()
				}
			}
		}(interval, l.fn)
	}

	log.Printf("Switcher: Running")
	wg.Wait()
	return ctx.Err()
}

// RequestUpdateIfNeeded asks the host for a fresh focus report whenever the
// auto-switch flag differs from the last value announced. Failed writes are
// retried on the next call.
func (s *Switcher) RequestUpdateIfNeeded() {
	s.mu.Lock()
	auto := s.state.AutoSwitch
	need := s.announced == nil || *s.announced != auto
	updater := s.updater
	s.mu.Unlock()

	if !need || updater == nil {
		return
	}
	if err := updater.RequestUpdate(); err != nil {
		log.Printf("Switcher: Update request failed: %v", err)
		return
	}
	log.Printf("Switcher: Requested focus update (auto switch %v)", auto)

	s.mu.Lock()
	s.announced = &auto
	s.mu.Unlock()
}

func (s *Switcher) keyWorker(ctx context.Context, index int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs[index]:
			s.interp.Execute(ctx, job.seq, job.phase)
		}
	}
}
