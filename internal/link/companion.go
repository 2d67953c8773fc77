package link

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"macropad/internal/osutils"
	"macropad/internal/profile"
	"macropad/internal/protocol"
)

// companionReadTimeout bounds a serial read so the reader notices cancellation.
const companionReadTimeout = 100 * time.Millisecond

// CompanionOptions configures the host companion
type CompanionOptions struct {
	// PortName is a fixed port; empty means detect by PortPrefix
	PortName          string
	PortPrefix        string
	BaudRate          int
	PollInterval      time.Duration
	ReconnectInterval time.Duration
	// IdleAfter sends sleep after this much host inactivity; 0 disables it
	IdleAfter time.Duration
}

// Status is the companion's connection state
type Status struct {
	Connected bool   `json:"connected"`
	Port      string `json:"port,omitempty"`
	App       string `json:"app,omitempty"`
	Sleeping  bool   `json:"sleeping"`
}

// Companion runs on the host. It reports the focused application to the pad and
// resends it whenever the pad asks.
type Companion struct {
	opts     CompanionOptions
	platform profile.Platform

	// Host hooks, replaced in tests
	detect    func(prefix string) (string, error)
	open      func(name string, baud int, readTimeout time.Duration) (Port, error)
	activeApp func() (string, error)
	idle      func() (time.Duration, error)

	mu       sync.Mutex
	port     Port
	portName string
	lastApp  string
	sent     bool
	sleeping bool
	appErr   string
	onStatus func(Status)
}

// NewCompanion creates a companion using the real serial ports and OS queries
func NewCompanion(opts CompanionOptions) *Companion {
	if opts.BaudRate == 0 {
		opts.BaudRate = 9600
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 300 * time.Millisecond
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = 2 * time.Second
	}
	return &Companion{
		opts:      opts,
		platform:  HostPlatform(),
		detect:    DetectPort,
		open:      OpenPort,
		activeApp: osutils.ActiveApp,
		idle:      osutils.IdleDuration,
	}
}

// SetOnStatus registers a callback for connection and focus changes
func (c *Companion) SetOnStatus(callback func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = callback
}

// Status returns the current state
func (c *Companion) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Companion) statusLocked() Status {
	return Status{Connected: c.port != nil, Port: c.portName, App: c.lastApp, Sleeping: c.sleeping}
}

func (c *Companion) notify() {
	c.mu.Lock()
	cb := c.onStatus
	st := c.statusLocked()
	c.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

// ResendFocus makes the next poll report the focused application again
func (c *Companion) ResendFocus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = false
}

// Run connects to the pad and serves it, reconnecting until ctx is cancelled
func (c *Companion) Run(ctx context.Context) error {
	for {
		if err := c.connect(); err != nil {
			log.Printf("Companion: %v", err)
		} else {
			err := c.serve(ctx)
			c.disconnect()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("Companion: Disconnected: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.ReconnectInterval):
		}
	}
}

func (c *Companion) connect() error {
	name := c.opts.PortName
	if name == "" {
		var err error
		name, err = c.detect(c.opts.PortPrefix)
		if err != nil {
			return err
		}
	}
	port, err := c.open(name, c.opts.BaudRate, companionReadTimeout)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.port = port
	c.portName = name
	c.sent = false
	c.mu.Unlock()
	log.Printf("Companion: Connected to MacroPad on %s", name)
	c.notify()
	return nil
}

func (c *Companion) disconnect() {
	c.mu.Lock()
	port := c.port
	c.port = nil
	c.mu.Unlock()
	if port != nil {
		port.Close()
	}
	c.notify()
}

// serve runs the reader and the focus poller on the open port until either fails.
func (c *Companion) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	port := c.port
	c.mu.Unlock()

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readLoop(ctx, port)
	}()

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for {
		if err := c.poll(port); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			<-readErr
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-ticker.C:
		}
	}
}

// readLoop handles newline-terminated messages from the pad.
func (c *Companion) readLoop(ctx context.Context, port Port) error {
	buf := make([]byte, 256)
	var line []byte
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := port.Read(buf)
		if err != nil {
			return fmt.Errorf("serial read failed: %w", err)
		}
		line = append(line, buf[:n]...)
		for {
			i := bytes.IndexByte(line, '\n')
			if i < 0 {
				break
			}
			c.handleLine(bytes.TrimSpace(line[:i]))
			line = line[i+1:]
		}
		if len(line) > 4096 {
			line = line[:0]
		}
	}
}

func (c *Companion) handleLine(data []byte) {
	if len(data) == 0 {
		return
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		log.Printf("Companion: Ignoring message %q: %v", data, err)
		return
	}
	if msg.Kind == protocol.KindUpdateRequest {
		log.Println("Companion: Update requested")
		c.ResendFocus()
	}
}

// poll sends at most one message per tick so the pad never sees two JSON
// documents in one read.
func (c *Companion) poll(port Port) error {
	if cmd, ok := c.idleTransition(); ok {
		data, err := protocol.EncodeCommand(cmd)
		if err != nil {
			return err
		}
		log.Printf("Companion: Sending %s", cmd)
		if err := c.write(port, data); err != nil {
			return err
		}
		c.notify()
		return nil
	}

	name, err := c.activeApp()
	if err != nil {
		c.mu.Lock()
		first := c.appErr != err.Error()
		c.appErr = err.Error()
		c.mu.Unlock()
		if first && !errors.Is(err, osutils.ErrNoActiveApp) {
			log.Printf("Companion: Failed to read active application: %v", err)
		}
		return nil
	}

	c.mu.Lock()
	c.appErr = ""
	changed := !c.sent || name != c.lastApp
	c.mu.Unlock()
	if !changed {
		return nil
	}

	data, err := protocol.EncodeFocusReport(name, c.platform)
	if err != nil {
		return err
	}
	if err := c.write(port, data); err != nil {
		return err
	}
	log.Printf("Companion: Focus %s (%s)", name, c.platform)
	c.mu.Lock()
	c.lastApp = name
	c.sent = true
	c.mu.Unlock()
	c.notify()
	return nil
}

// idleTransition reports a pending sleep or wake command from host idle time.
func (c *Companion) idleTransition() (protocol.Command, bool) {
	if c.opts.IdleAfter <= 0 || c.idle == nil {
		return "", false
	}
	idle, err := c.idle()
	if err != nil {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case idle >= c.opts.IdleAfter && !c.sleeping:
		c.sleeping = true
		return protocol.CommandSleep, true
	case idle < c.opts.IdleAfter && c.sleeping:
		c.sleeping = false
		return protocol.CommandWake, true
	}
	return "", false
}

func (c *Companion) write(port Port, data []byte) error {
	if port == nil {
		return ErrNotConnected
	}
	if _, err := port.Write(data); err != nil {
		return fmt.Errorf("serial write failed: %w", err)
	}
	return nil
}
