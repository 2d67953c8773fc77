// Package tray provides the companion's system tray icon using getlantern/systray.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"macropad/internal/link"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Disabled bool
	Callback func()
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	mu      sync.Mutex
	title   string
	tooltip string
	items   []*MenuItem
	ready   bool
	quitCh  chan struct{}
}

// New creates a new system tray
func New(title, tooltip string) *Tray {
	return &Tray{
		title:   title,
		tooltip: tooltip,
		quitCh:  make(chan struct{}),
	}
}

// AddMenuItem adds a clickable menu item and returns its id
func (t *Tray) AddMenuItem(title string, callback func()) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := len(t.items)
	t.items = append(t.items, &MenuItem{ID: id, Title: title, Callback: callback})
	return id
}

// AddStatusItem adds a disabled item used to show text
func (t *Tray) AddStatusItem(title string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := len(t.items)
	t.items = append(t.items, &MenuItem{ID: id, Title: title, Disabled: true})
	return id
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil) // nil indicates separator
}

// SetItemTitle changes the text of a menu item
func (t *Tray) SetItemTitle(id int, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.items) || t.items[id] == nil {
		return
	}
	t.items[id].Title = title
	if t.ready && t.items[id].item != nil {
		t.items[id].item.SetTitle(title)
	}
}

// SetTooltip changes the icon tooltip
func (t *Tray) SetTooltip(tooltip string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tooltip = tooltip
	if t.ready {
		systray.SetTooltip(tooltip)
	}
}

// Run starts the tray event loop and blocks until Stop
func (t *Tray) Run() {
	systray.Run(t.setupMenu, func() { close(t.quitCh) })
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	t.mu.Lock()
	defer t.mu.Unlock()

	systray.SetIcon(icon())
	systray.SetTitle(t.title)
	systray.SetTooltip(t.tooltip)

	for _, menuItem := range t.items {
		if menuItem == nil {
			systray.AddSeparator()
			continue
		}
		item := systray.AddMenuItem(menuItem.Title, "")
		menuItem.item = item
		if menuItem.Disabled {
			item.Disable()
		}

		// Handle clicks in goroutine
		if menuItem.Callback != nil {
			go func(mi *MenuItem) {
				for {
					select {
					case <-mi.item.ClickedCh:
						mi.Callback()
					case <-t.quitCh:
						return
					}
				}
			}(menuItem)
		}
	}
	t.ready = true
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// StatusLine describes the companion state for the tray menu
func StatusLine(st link.Status) string {
	if !st.Connected {
		return "MacroPad: not connected"
	}
	line := fmt.Sprintf("MacroPad on %s", st.Port)
	if st.App != "" {
		line += fmt.Sprintf(": %s", st.App)
	}
	if st.Sleeping {
		line += " (sleeping)"
	}
	return line
}
