// Package tray shows the keychord daemon in the system tray using getlantern/systray.
package tray

import (
	"encoding/binary"
	"sync"

	"github.com/getlantern/systray"
)

type menuEntry struct {
	title     string
	tooltip   string
	checkable bool
	checked   bool
	onClick   func(checked bool)
	item      *systray.MenuItem
}

// Tray manages the tray icon and its menu. Entries must be added before Run.
type Tray struct {
	title   string
	tooltip string

	mu      sync.Mutex
	entries []*menuEntry
	quitCh  chan struct{}
	onExit  func()
}

// New creates a tray with the given title and tooltip
func New(title, tooltip string) *Tray {
	return &Tray{
		title:   title,
		tooltip: tooltip,
		quitCh:  make(chan struct{}),
	}
}

// AddItem adds a clickable entry and returns its index
func (t *Tray) AddItem(title, tooltip string, onClick func()) int {
	return t.add(&menuEntry{
		title:   title,
		tooltip: tooltip,
		onClick: func(bool) {
			if onClick != nil {
				onClick()
			}
		},
	})
}

// AddCheckbox adds an entry that toggles a check mark on each click. onToggle
// receives the new state.
func (t *Tray) AddCheckbox(title, tooltip string, checked bool, onToggle func(checked bool)) int {
	return t.add(&menuEntry{
		title:     title,
		tooltip:   tooltip,
		checkable: true,
		checked:   checked,
		onClick:   onToggle,
	})
}

// AddSeparator adds a separator line
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, nil)
}

func (t *Tray) add(e *menuEntry) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
	return len(t.entries) - 1
}

// SetChecked updates a checkbox entry, e.g. when its state changed elsewhere
func (t *Tray) SetChecked(index int, checked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.entries) || t.entries[index] == nil || !t.entries[index].checkable {
		return
	}
	e := t.entries[index]
	e.checked = checked
	if e.item == nil {
		return
	}
	if checked {
		e.item.Check()
	} else {
		e.item.Uncheck()
	}
}

// OnExit sets a function called after the tray loop ends
func (t *Tray) OnExit(fn func()) {
	t.onExit = fn
}

// Run starts the tray event loop. It blocks until Stop and must be called
// from the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.setup, func() {
		close(t.quitCh)
		if t.onExit != nil {
			t.onExit()
		}
	})
}

func (t *Tray) setup() {
	systray.SetTitle(t.title)
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(icon())

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e == nil {
			systray.AddSeparator()
			continue
		}
		if e.checkable {
			e.item = systray.AddMenuItemCheckbox(e.title, e.tooltip, e.checked)
		} else {
			e.item = systray.AddMenuItem(e.title, e.tooltip)
		}
		go t.watch(e)
	}
}

func (t *Tray) watch(e *menuEntry) {
	for {
		select {
		case <-e.item.ClickedCh:
			checked := false
			if e.checkable {
				t.mu.Lock()
				e.checked = !e.checked
				checked = e.checked
				t.mu.Unlock()
				if checked {
					e.item.Check()
				} else {
					e.item.Uncheck()
				}
			}
			if e.onClick != nil {
				e.onClick(checked)
			}
		case <-t.quitCh:
			return
		}
	}
}

// Stop ends the tray loop
func (t *Tray) Stop() {
	systray.Quit()
}

const iconSize = 16

// icon returns a 16x16 32-bit ICO showing a key cap outline
func icon() []byte {
	const (
		headerLen = 6 + 16
		dibLen    = 40
		pixelLen  = iconSize * iconSize * 4
		maskLen   = iconSize * 4 // 1bpp rows padded to 32 bits
	)
	buf := make([]byte, headerLen+dibLen+pixelLen+maskLen)

	// ICONDIR + ICONDIRENTRY
	binary.LittleEndian.PutUint16(buf[2:], 1)
	binary.LittleEndian.PutUint16(buf[4:], 1)
	buf[6] = iconSize
	buf[7] = iconSize
	binary.LittleEndian.PutUint16(buf[10:], 1)
	binary.LittleEndian.PutUint16(buf[12:], 32)
	binary.LittleEndian.PutUint32(buf[14:], dibLen+pixelLen+maskLen)
	binary.LittleEndian.PutUint32(buf[18:], headerLen)

	// BITMAPINFOHEADER, height doubled for the AND mask
	dib := buf[headerLen:]
	binary.LittleEndian.PutUint32(dib[0:], dibLen)
	binary.LittleEndian.PutUint32(dib[4:], iconSize)
	binary.LittleEndian.PutUint32(dib[8:], iconSize*2)
	binary.LittleEndian.PutUint16(dib[12:], 1)
	binary.LittleEndian.PutUint16(dib[14:], 32)
	binary.LittleEndian.PutUint32(dib[20:], pixelLen+maskLen)

	// BGRA pixels, bottom-up
	pixels := buf[headerLen+dibLen:]
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			edge := x == 1 || x == iconSize-2 || y == 2 || y == iconSize-2
			inside := x > 0 && x < iconSize-1 && y > 1 && y < iconSize-1
			if !inside {
				continue
			}
			p := pixels[(y*iconSize+x)*4:]
			if edge {
				p[0], p[1], p[2] = 0x30, 0x30, 0x30
			} else {
				p[0], p[1], p[2] = 0xf0, 0xf0, 0xf0
			}
			p[3] = 0xff
		}
	}
	return buf
}
