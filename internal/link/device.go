package link

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"macropad/internal/protocol"
)

// DeviceLink is the pad's end of the host link. It reassembles host messages
// from the serial port and writes update requests back.
type DeviceLink struct {
	port    Port
	handler func(protocol.Inbound)
	recv    *protocol.Receiver
	now     func() time.Time

	writeMu sync.Mutex
}

// NewDeviceLink wraps an open port. handler receives every decoded message.
func NewDeviceLink(port Port, handler func(protocol.Inbound)) *DeviceLink {
	return &DeviceLink{
		port:    port,
		handler: handler,
		recv:    protocol.NewReceiver(),
		now:     time.Now,
	}
}

// RequestUpdate asks the host to re-announce the focused application
func (l *DeviceLink) RequestUpdate() error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if _, err := l.port.Write(protocol.EncodeUpdateRequest()); err != nil {
		return fmt.Errorf("failed to write update request: %w", err)
	}
	return nil
}

// Run reads the port until ctx is cancelled or the port fails. The port should
// have a read timeout so a silent host still lets partial messages expire.
func (l *DeviceLink) Run(ctx context.Context) error {
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := l.port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("serial read failed: %w", err)
		}
		now := l.now()
		if n == 0 {
			l.recv.Expire(now)
			continue
		}
		if msg, ok := l.recv.Feed(buf[:n], now); ok {
			l.handler(msg)
		}
	}
}

// ServeDevice keeps a DeviceLink running on the port returned by open and
// reopens it after a failure. attach receives each live link, then nil once it
// stops. It returns when ctx is cancelled.
func ServeDevice(ctx context.Context, open func() (Port, error), handler func(protocol.Inbound), attach func(*DeviceLink), retry time.Duration) error {
	for {
		port, err := open()
		if err != nil {
			log.Printf("Link: Failed to open device port: %v", err)
		} else {
			l := NewDeviceLink(port, handler)
			attach(l)
			err = l.Run(ctx)
			attach(nil)
			l.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("Link: Device link stopped: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
			log.Println("Link: Reopening device port...")
		}
	}
}

// Close closes the port
func (l *DeviceLink) Close() error {
	log.Println("Link: Closing device port")
	return l.port.Close()
}
