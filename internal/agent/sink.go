package agent

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"voxd/internal/types"
)

// Notifier shows desktop notifications.
type Notifier interface {
	Send(title, body string)
	Alert(title, body string)
}

// ClipboardWriter replaces the clipboard contents.
type ClipboardWriter interface {
	Write(text string) error
}

// Sink is the single delivery point for agent output. A mutex serializes
// deliveries so concurrently completing jobs cannot interleave their
// clipboard writes and notifications.
type Sink struct {
	mu    sync.Mutex
	log   *slog.Logger
	notif Notifier
	clip  ClipboardWriter
}

func NewSink(log *slog.Logger, notif Notifier, clip ClipboardWriter) *Sink {
	return &Sink{log: log, notif: notif, clip: clip}
}

// Announce shows a status notification.
func (s *Sink) Announce(title, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notif.Send(title, body)
}

// DeliverResult copies text to the clipboard and confirms with a preview
// notification. When the clipboard write fails the text still reaches the
// user through the notification body.
func (s *Sink) DeliverResult(sessionID uint64, text string, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.clip.Write(text); err != nil {
		s.log.Error("clipboard write failed", "session", sessionID, "error", err)
		s.notif.Alert("Copy failed", preview(text))
		return
	}
	s.log.Info("result delivered", "session", sessionID, "chars", len(text))
	s.notif.Send(fmt.Sprintf("Done in %.1fs", elapsed.Seconds()), preview(text))
}

// DeliverError reports a failed session.
func (s *Sink) DeliverError(sessionID uint64, kind types.ErrorKind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Warn("error delivered", "session", sessionID, "kind", kind, "message", message)
	s.notif.Alert(kind.Title(), message)
}

// preview truncates text to a length a notification body can show.
func preview(text string) string {
	const max = 120
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
