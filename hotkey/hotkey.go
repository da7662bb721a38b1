// Package hotkey captures global keyboard events for the agent.
package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	hook "github.com/robotn/gohook"
)

// Modifiers is a snapshot of the modifier keys held at the time of an event.
type Modifiers struct {
	Shift bool
	Ctrl  bool
}

// Event is a single key transition together with the modifier state
// observed when it happened.
type Event struct {
	Code    uint16
	Pressed bool
	Mods    Modifiers
	When    time.Time
}

// LookupKey resolves a key name such as "f9" to its hook keycode.
func LookupKey(name string) (uint16, error) {
	code, ok := hook.Keycode[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown key %q", name)
	}
	return code, nil
}

// modState tracks which modifier keys are currently held. Left and right
// variants are tracked separately so releasing one does not clear the other.
type modState struct {
	shiftCodes map[uint16]bool
	ctrlCodes  map[uint16]bool
	held       map[uint16]bool
}

func newModState() *modState {
	return &modState{
		shiftCodes: codeSet("shift", "rshift"),
		ctrlCodes:  codeSet("ctrl", "rctrl"),
		held:       make(map[uint16]bool),
	}
}

func codeSet(names ...string) map[uint16]bool {
	set := make(map[uint16]bool, len(names))
	for _, name := range names {
		if code, ok := hook.Keycode[name]; ok {
			set[code] = true
		}
	}
	return set
}

func (m *modState) apply(code uint16, pressed bool) {
	if !m.shiftCodes[code] && !m.ctrlCodes[code] {
		return
	}
	if pressed {
		m.held[code] = true
	} else {
		delete(m.held, code)
	}
}

func (m *modState) snapshot() Modifiers {
	var mods Modifiers
	for code := range m.held {
		switch {
		case m.shiftCodes[code]:
			mods.Shift = true
		case m.ctrlCodes[code]:
			mods.Ctrl = true
		}
	}
	return mods
}

// Listener installs a system-wide keyboard hook and republishes key
// transitions on a channel.
type Listener struct {
	log  *slog.Logger
	mods *modState
	out  chan Event
}

func NewListener(log *slog.Logger) *Listener {
	return &Listener{
		log:  log,
		mods: newModState(),
		out:  make(chan Event, 64),
	}
}

// Start installs the hook and returns the event stream. The stream is
// closed once ctx is cancelled and the hook has been removed.
func (l *Listener) Start(ctx context.Context) <-chan Event {
	raw := hook.Start()
	go func() {
		defer close(l.out)
		defer hook.End()
		for {
			select {
			case <-ctx.Done():
				return
			case rawEv, ok := <-raw:
				if !ok {
					return
				}
				ev, ok := l.translate(rawEv)
				if !ok {
					continue
				}
				select {
				case l.out <- ev:
				default:
					l.log.Warn("dropping key event, consumer too slow")
				}
			}
		}
	}()
	return l.out
}

// translate converts a raw hook event into a key transition, updating the
// modifier state along the way. Hold (repeat) events map to pressed so the
// consumer can suppress them by edge detection. Mouse events are skipped.
func (l *Listener) translate(raw hook.Event) (Event, bool) {
	var pressed bool
	switch raw.Kind {
	case hook.KeyDown, hook.KeyHold:
		pressed = true
	case hook.KeyUp:
		pressed = false
	default:
		return Event{}, false
	}

	l.mods.apply(raw.Keycode, pressed)

	when := raw.When
	if when.IsZero() {
		when = time.Now()
	}
	return Event{
		Code:    raw.Keycode,
		Pressed: pressed,
		Mods:    l.mods.snapshot(),
		When:    when,
	}, true
}
