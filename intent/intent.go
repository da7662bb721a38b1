// Package intent maps trigger-key transitions to agent actions.
package intent

import "voxd/hotkey"

// Intent is an action requested through the trigger key.
type Intent uint8

const (
	None Intent = iota
	ToggleCapture
	CycleMode
	CycleModel
)

func (i Intent) String() string {
	switch i {
	case ToggleCapture:
		return "toggle-capture"
	case CycleMode:
		return "cycle-mode"
	case CycleModel:
		return "cycle-model"
	default:
		return "none"
	}
}

// Classifier turns key events into intents. Only the first down transition
// after a release produces an intent, so OS key repeat while the trigger is
// held yields nothing.
type Classifier struct {
	trigger uint16
	held    bool
}

func NewClassifier(trigger uint16) *Classifier {
	return &Classifier{trigger: trigger}
}

// Classify consumes one key event and reports the intent it represents.
// Modifier state is read at the moment of the down transition. Ctrl takes
// precedence over Shift when both are held.
func (c *Classifier) Classify(ev hotkey.Event) Intent {
	if ev.Code != c.trigger {
		return None
	}
	if !ev.Pressed {
		c.held = false
		return None
	}
	if c.held {
		return None
	}
	c.held = true

	switch {
	case ev.Mods.Ctrl:
		return CycleModel
	case ev.Mods.Shift:
		return CycleMode
	default:
		return ToggleCapture
	}
}
