//go:build linux

package input

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"macropad/internal/macro"
)

// uinput ioctls and event types (linux/uinput.h, linux/input.h)
const (
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502

	evSyn     = 0x00
	evKey     = 0x01
	synReport = 0

	busUSB = 0x03
)

const uinputPath = "/dev/uinput"

type uinputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputUserDev is struct uinput_user_dev.
type uinputUserDev struct {
	Name         [80]byte
	ID           uinputID
	FFEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

// inputEvent is struct input_event.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// Injector is a virtual USB keyboard backed by /dev/uinput.
type Injector struct {
	mu   sync.Mutex
	file *os.File
}

// NewInjector creates the virtual keyboard. The caller needs write access to
// /dev/uinput.
func NewInjector() (*Injector, error) {
	f, err := os.OpenFile(uinputPath, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", uinputPath, err)
	}
	inj := &Injector{file: f}
	if err := inj.setup(); err != nil {
		f.Close()
		return nil, err
	}
	// Give the desktop a moment to pick up the new device before the first key.
	time.Sleep(100 * time.Millisecond)
	log.Printf("Input: Virtual keyboard created")
	return inj, nil
}

func (i *Injector) setup() error {
	fd := int(i.file.Fd())
	if err := unix.IoctlSetInt(fd, uiSetEvBit, evKey); err != nil {
		return fmt.Errorf("failed to enable key events: %w", err)
	}
	codes := []uint16{evdevVolumeUp, evdevVolumeDown}
	for _, code := range hidToEvdev {
		codes = append(codes, code)
	}
	for _, code := range codes {
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, int(code)); err != nil {
			return fmt.Errorf("failed to enable key %d: %w", code, err)
		}
	}

	dev := uinputUserDev{ID: uinputID{Bustype: busUSB, Vendor: 0x239A, Product: 0x8108, Version: 1}}
	copy(dev.Name[:], "macropad virtual keyboard")
	if err := binary.Write(i.file, binary.NativeEndian, &dev); err != nil {
		return fmt.Errorf("failed to write device description: %w", err)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (i *Injector) emit(code uint16, value int32) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	var tv unix.Timeval
	if err := unix.Gettimeofday(&tv); err != nil {
		return err
	}
	events := []inputEvent{
		{Time: tv, Type: evKey, Code: code, Value: value},
		{Time: tv, Type: evSyn, Code: synReport},
	}
	for _, ev := range events {
		if err := binary.Write(i.file, binary.NativeEndian, &ev); err != nil {
			return fmt.Errorf("failed to write input event: %w", err)
		}
	}
	return nil
}

func (i *Injector) key(k macro.Keycode, value int32) error {
	code, ok := EvdevCode(k)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnmappedKey, k)
	}
	return i.emit(code, value)
}

// EmitKeyDown presses a key
func (i *Injector) EmitKeyDown(k macro.Keycode) error {
	return i.key(k, 1)
}

// EmitKeyUp releases a key
func (i *Injector) EmitKeyUp(k macro.Keycode) error {
	return i.key(k, 0)
}

// EmitText types text using a US layout
func (i *Injector) EmitText(text string) error {
	return typeText(i, text)
}

// EmitConsumerControl taps a volume key
func (i *Injector) EmitConsumerControl(c macro.ConsumerCode) error {
	var code uint16
	switch c {
	case macro.VolumeIncrement:
		code = evdevVolumeUp
	case macro.VolumeDecrement:
		code = evdevVolumeDown
	default:
		return fmt.Errorf("%w: consumer code %d", ErrUnmappedKey, c)
	}
	if err := i.emit(code, 1); err != nil {
		return err
	}
	return i.emit(code, 0)
}

// Close destroys the virtual keyboard
func (i *Injector) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := unix.IoctlSetInt(int(i.file.Fd()), uiDevDestroy, 0); err != nil {
		log.Printf("Input: Failed to destroy virtual keyboard: %v", err)
	}
	return i.file.Close()
}
