// Package notify shows desktop notifications.
package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Notifier shows desktop notifications. Delivery failures are logged, not
// returned.
type Notifier struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Notifier {
	beeep.AppName = "voxd"
	return &Notifier{log: log}
}

// Send shows an informational notification.
func (n *Notifier) Send(title, body string) {
	if err := beeep.Notify(title, body, ""); err != nil {
		n.log.Warn("notification failed", "title", title, "error", err)
	}
}

// Alert shows an error notification.
func (n *Notifier) Alert(title, body string) {
	if err := beeep.Alert(title, body, ""); err != nil {
		n.log.Warn("alert failed", "title", title, "error", err)
	}
}
