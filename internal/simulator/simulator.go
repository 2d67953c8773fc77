// Package simulator renders a MacroPad in the terminal and feeds its keys and
// encoder to the switcher.
package simulator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"macropad/internal/input"
	"macropad/internal/macro"
)

// keyRows maps terminal keys onto the 4x3 grid, top row first.
var keyRows = [4]string{"123", "qwe", "asd", "zxc"}

// DefaultHold is how long a simulated key stays down. Terminals report no key-up,
// so every press is released automatically.
const DefaultHold = 150 * time.Millisecond

const (
	cellWidth  = 8
	cellHeight = 2
	gap        = 1
	gridTop    = 2
)

// Pad is a terminal MacroPad. It implements the switcher's Hardware interface.
type Pad struct {
	screen tcell.Screen
	hold   time.Duration
	now    func() time.Time

	mu      sync.Mutex
	events  []input.KeyEvent
	held    map[int]time.Time
	delta   int
	button  bool
	colors  [macro.NumKeys]macro.Color
	text    [macro.NumKeys + 1]string
	dirty   bool
	closing bool
}

// New wraps an initialised screen.
func New(screen tcell.Screen) *Pad {
	return &Pad{
		screen: screen,
		hold:   DefaultHold,
		now:    time.Now,
		held:   make(map[int]time.Time),
		dirty:  true,
	}
}

// NewTerminal opens the controlling terminal.
func NewTerminal() (*Pad, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.HideCursor()
	return New(screen), nil
}

// KeyIndex returns the pad key bound to a terminal character.
func KeyIndex(r rune) (int, bool) {
	r = []rune(strings.ToLower(string(r)))[0]
	for row, keys := range keyRows {
		if col := strings.IndexRune(keys, r); col >= 0 {
			return row*3 + col, true
		}
	}
	return 0, false
}

// PollKeyEvent returns the next key event, including automatic releases.
func (p *Pad) PollKeyEvent() (input.KeyEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for i := 0; i < macro.NumKeys; i++ {
		if at, ok := p.held[i]; ok && now.Sub(at) >= p.hold {
			delete(p.held, i)
			p.events = append(p.events, input.KeyEvent{Index: i, Pressed: false})
		}
	}
	if len(p.events) == 0 {
		return input.KeyEvent{}, false
	}
	ev := p.events[0]
	p.events = p.events[1:]
	return ev, true
}

// PollEncoderDelta returns the rotation since the last call.
func (p *Pad) PollEncoderDelta() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.delta
	p.delta = 0
	return d
}

// PollEncoderButton reports whether the encoder was pressed since the last call.
func (p *Pad) PollEncoderButton() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := p.button
	p.button = false
	return b
}

// SetKeyColor sets a key LED.
func (p *Pad) SetKeyColor(index int, c macro.Color) {
	if index < 0 || index >= macro.NumKeys {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.colors[index] != c {
		p.colors[index] = c
		p.dirty = true
	}
}

// SetDisplayText sets a key label or, for the last slot, the header.
func (p *Pad) SetDisplayText(slot int, text string) {
	if slot < 0 || slot >= len(p.text) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.text[slot] != text {
		p.text[slot] = text
		p.dirty = true
	}
}

// HandleEvent applies one terminal event. It returns false when the user quits.
func (p *Pad) HandleEvent(ev tcell.Event) bool {
	switch e := ev.(type) {
	case *tcell.EventKey:
		return p.handleKey(e)
	case *tcell.EventResize:
		p.mu.Lock()
		p.dirty = true
		p.mu.Unlock()
		p.screen.Sync()
	}
	return true
}

func (p *Pad) handleKey(e *tcell.EventKey) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyLeft:
		p.delta--
	case tcell.KeyRight:
		p.delta++
	case tcell.KeyEnter:
		p.button = true
	case tcell.KeyRune:
		switch r := e.Rune(); r {
		case '[':
			p.delta--
		case ']':
			p.delta++
		case ' ':
			p.button = true
		default:
			i, ok := KeyIndex(r)
			if !ok {
				break
			}
			if _, down := p.held[i]; !down {
				p.events = append(p.events, input.KeyEvent{Index: i, Pressed: true})
			}
			p.held[i] = p.now()
		}
	}
	return true
}

// Run reads terminal events until the user quits or ctx is cancelled, redrawing
// every interval.
func (p *Pad) Run(ctx context.Context, interval time.Duration) error {
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := p.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	p.Draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok || !p.HandleEvent(ev) {
				return nil
			}
		case <-ticker.C:
			p.Draw()
		}
	}
}

// Draw repaints the pad if anything changed.
func (p *Pad) Draw() {
	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return
	}
	p.dirty = false
	colors := p.colors
	text := p.text
	p.mu.Unlock()

	width := 3*cellWidth + 2*gap
	p.screen.Clear()

	header := tcell.StyleDefault.Background(tcell.ColorWhite).Foreground(tcell.ColorBlack)
	fill(p.screen, 0, 0, width, 1, header)
	drawCentered(p.screen, 0, 0, width, text[macro.NumKeys], header)

	for i := 0; i < macro.NumKeys; i++ {
		x := (i % 3) * (cellWidth + gap)
		y := gridTop + (i/3)*(cellHeight+gap)
		style := keyStyle(colors[i])
		fill(p.screen, x, y, cellWidth, cellHeight, style)
		drawCentered(p.screen, x, y, cellWidth, text[i], style)
	}

	help := "keys 123/qwe/asd/zxc  encoder [ ] or arrows  button enter  quit esc"
	drawText(p.screen, 0, gridTop+4*(cellHeight+gap), help, tcell.StyleDefault)
	p.screen.Show()
}

// Close restores the terminal.
func (p *Pad) Close() {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return
	}
	p.closing = true
	p.mu.Unlock()
	p.screen.Fini()
}

func keyStyle(c macro.Color) tcell.Style {
	r, g, b := c.RGB()
	bg := tcell.NewRGBColor(int32(r), int32(g), int32(b))
	fg := tcell.ColorWhite
	// Rec. 601 luma
	if 299*int(r)+587*int(g)+114*int(b) > 128000 {
		fg = tcell.ColorBlack
	}
	return tcell.StyleDefault.Background(bg).Foreground(fg)
}

func fill(s tcell.Screen, x, y, w, h int, style tcell.Style) {
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			s.SetContent(col, row, ' ', nil, style)
		}
	}
}

func drawCentered(s tcell.Screen, x, y, w int, text string, style tcell.Style) {
	runes := []rune(text)
	if len(runes) > w {
		runes = runes[:w]
	}
	drawText(s, x+(w-len(runes))/2, y, string(runes), style)
}

func drawText(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, style)
	}
}
