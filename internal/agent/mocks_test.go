package agent

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"voxd/audiocapture"
	"voxd/history"
	"voxd/hotkey"
	"voxd/llm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// mockRecorder implements Recorder for testing. It tracks how many captures
// ran at once so tests can assert the single-recording invariant.
type mockRecorder struct {
	mu          sync.Mutex
	beginErr    error
	finalizeErr error
	recording   *audiocapture.Recording

	begun     int
	active    int
	maxActive int
	last      *mockHandle
}

func (r *mockRecorder) Begin(_ context.Context) (CaptureHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.beginErr != nil {
		return nil, r.beginErr
	}
	r.begun++
	r.active++
	if r.active > r.maxActive {
		r.maxActive = r.active
	}

	rec := r.recording
	if rec == nil {
		rec = &audiocapture.Recording{
			Path:       "/tmp/rec_test.wav",
			WAV:        []byte("RIFFtestdata"),
			SampleRate: 44100,
			Channels:   1,
			Samples:    44100,
			Duration:   time.Second,
		}
	}
	h := &mockHandle{r: r, rec: rec, err: r.finalizeErr}
	r.last = h
	return h, nil
}

func (r *mockRecorder) begunCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.begun
}

func (r *mockRecorder) lastAborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last != nil && r.last.aborted
}

// mockHandle implements CaptureHandle for testing.
type mockHandle struct {
	r         *mockRecorder
	rec       *audiocapture.Recording
	err       error
	finalized bool
	aborted   bool
}

func (h *mockHandle) Finalize() (*audiocapture.Recording, error) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	h.finalized = true
	h.r.active--
	if h.err != nil {
		return nil, h.err
	}
	return h.rec, nil
}

func (h *mockHandle) Abort() {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	h.aborted = true
	h.r.active--
}

// mockSubmitter implements Submitter for testing.
type mockSubmitter struct {
	jobs []Job
}

func (s *mockSubmitter) Submit(job Job) {
	s.jobs = append(s.jobs, job)
}

type note struct {
	title string
	body  string
	alert bool
}

// mockNotifier implements Notifier for testing.
type mockNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (n *mockNotifier) Send(title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note{title: title, body: body})
}

func (n *mockNotifier) Alert(title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note{title: title, body: body, alert: true})
}

func (n *mockNotifier) all() []note {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]note(nil), n.notes...)
}

func (n *mockNotifier) has(title string) bool {
	for _, nt := range n.all() {
		if nt.title == title {
			return true
		}
	}
	return false
}

func (n *mockNotifier) lastNote() (note, bool) {
	notes := n.all()
	if len(notes) == 0 {
		return note{}, false
	}
	return notes[len(notes)-1], true
}

// mockClipboard implements ClipboardWriter for testing.
type mockClipboard struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (c *mockClipboard) Write(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.texts = append(c.texts, text)
	return nil
}

func (c *mockClipboard) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

// mockGenerator implements llm.Generator for testing.
type mockGenerator struct {
	mu      sync.Mutex
	calls   []llm.Request
	respond func(ctx context.Context, req llm.Request) (llm.Response, error)
}

func (g *mockGenerator) Name() string { return "mock" }

func (g *mockGenerator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if g.respond == nil {
		return llm.Response{Text: "ok"}, nil
	}
	return g.respond(ctx, req)
}

func (g *mockGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// mockKeys implements KeySource for testing.
type mockKeys struct {
	ch chan hotkey.Event
}

func newMockKeys() *mockKeys {
	return &mockKeys{ch: make(chan hotkey.Event, 16)}
}

func (k *mockKeys) Start(_ context.Context) <-chan hotkey.Event { return k.ch }

func (k *mockKeys) press(code uint16, mods hotkey.Modifiers) {
	k.ch <- hotkey.Event{Code: code, Pressed: true, Mods: mods, When: time.Now()}
}

func (k *mockKeys) release(code uint16) {
	k.ch <- hotkey.Event{Code: code, Pressed: false, When: time.Now()}
}

// mockHistory implements History for testing.
type mockHistory struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (h *mockHistory) Append(e history.Entry) (history.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e.ID = "test-id"
	h.entries = append(h.entries, e)
	return e, nil
}

func (h *mockHistory) all() []history.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]history.Entry(nil), h.entries...)
}
