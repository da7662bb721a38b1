package agent

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voxd/hotkey"
	"voxd/intent"
	"voxd/internal/types"
	"voxd/llm"
)

const testTrigger uint16 = 67

type agentRig struct {
	keys  *mockKeys
	rec   *mockRecorder
	gen   *mockGenerator
	notif *mockNotifier
	clip  *mockClipboard
	hist  *mockHistory

	cancel   context.CancelFunc
	done     chan error
	stopOnce sync.Once
}

func startAgent(t *testing.T, rec *mockRecorder, gen *mockGenerator) *agentRig {
	t.Helper()

	log := testLogger()
	keys := newMockKeys()
	notif := &mockNotifier{}
	clip := &mockClipboard{}
	hist := &mockHistory{}
	sink := NewSink(log, notif, clip)
	pipe := NewPipeline(log, gen, testPipelineConfig())
	ctl := NewController(log, rec, pipe, sink, types.ModeAssistant, types.ModelFast)

	a := New(Deps{
		Log:        log,
		Keys:       keys,
		Classifier: intent.NewClassifier(testTrigger),
		Controller: ctl,
		Pipeline:   pipe,
		Sink:       sink,
		History:    hist,
		RunID:      "run-test",
		TriggerKey: "f9",
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	rig := &agentRig{
		keys:   keys,
		rec:    rec,
		gen:    gen,
		notif:  notif,
		clip:   clip,
		hist:   hist,
		cancel: cancel,
		done:   done,
	}
	t.Cleanup(func() { rig.stop(t) })
	return rig
}

func (r *agentRig) stop(t *testing.T) {
	t.Helper()
	r.stopOnce.Do(func() {
		r.cancel()
		select {
		case err := <-r.done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Error("agent did not shut down")
		}
	})
}

func (r *agentRig) toggle() {
	r.keys.press(testTrigger, hotkey.Modifiers{})
	r.keys.release(testTrigger)
}

func TestAgentRecordAndDeliverResult(t *testing.T) {
	gen := &mockGenerator{
		respond: func(_ context.Context, _ llm.Request) (llm.Response, error) {
			return llm.Response{Text: "42", Usage: types.Usage{TotalTokens: 9}}, nil
		},
	}
	rig := startAgent(t, &mockRecorder{}, gen)

	rig.toggle() // start recording
	rig.toggle() // stop and submit

	waitFor(t, 2*time.Second, "result on clipboard", func() bool {
		texts := rig.clip.all()
		return len(texts) == 1 && texts[0] == "42"
	})
	waitFor(t, 2*time.Second, "history entry", func() bool {
		return len(rig.hist.all()) == 1
	})

	entry := rig.hist.all()[0]
	if entry.SessionID != 1 || entry.Text != "42" {
		t.Errorf("entry = session %d text %q, want session 1 text 42", entry.SessionID, entry.Text)
	}
	if entry.Mode != types.ModeAssistant {
		t.Errorf("entry mode = %s, want assistant", entry.Mode)
	}
	if entry.Model != "gemini-2.5-flash" {
		t.Errorf("entry model = %s, want gemini-2.5-flash", entry.Model)
	}
	if entry.RunID != "run-test" {
		t.Errorf("entry run id = %q, want run-test", entry.RunID)
	}

	if !rig.notif.has("voxd running") {
		t.Error("no startup notification")
	}
	var confirmed bool
	for _, nt := range rig.notif.all() {
		if strings.HasPrefix(nt.title, "Done in") {
			confirmed = true
		}
	}
	if !confirmed {
		t.Error("no completion notification")
	}
}

func TestAgentIgnoresHeldKeyRepeats(t *testing.T) {
	rig := startAgent(t, &mockRecorder{}, &mockGenerator{})

	rig.keys.press(testTrigger, hotkey.Modifiers{})
	rig.keys.press(testTrigger, hotkey.Modifiers{}) // OS key repeat
	rig.keys.press(testTrigger, hotkey.Modifiers{})
	rig.keys.release(testTrigger)

	waitFor(t, 2*time.Second, "recording to start", func() bool {
		return rig.rec.begunCount() == 1
	})
	time.Sleep(50 * time.Millisecond)

	if got := rig.rec.begunCount(); got != 1 {
		t.Errorf("captures begun = %d, want 1", got)
	}
	if rig.gen.callCount() != 0 {
		t.Error("job submitted while recording should still be live")
	}
}

func TestAgentCyclesViaModifiers(t *testing.T) {
	rig := startAgent(t, &mockRecorder{}, &mockGenerator{})

	rig.keys.press(testTrigger, hotkey.Modifiers{Shift: true})
	rig.keys.release(testTrigger)
	waitFor(t, 2*time.Second, "mode notification", func() bool {
		return rig.notif.has("Mode changed")
	})

	// Ctrl wins when both modifiers are held.
	rig.keys.press(testTrigger, hotkey.Modifiers{Shift: true, Ctrl: true})
	rig.keys.release(testTrigger)
	waitFor(t, 2*time.Second, "model notification", func() bool {
		return rig.notif.has("Model changed")
	})

	if rig.rec.begunCount() != 0 {
		t.Error("modifier press started a recording")
	}
}

func TestAgentStaysResponsiveAfterQuotaError(t *testing.T) {
	var calls int32
	gen := &mockGenerator{
		respond: func(_ context.Context, _ llm.Request) (llm.Response, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return llm.Response{}, &types.RemoteError{
					Kind:    types.KindRemoteQuotaExceeded,
					Message: "request limit reached, try again later",
				}
			}
			return llm.Response{Text: "second answer"}, nil
		},
	}
	rig := startAgent(t, &mockRecorder{}, gen)

	rig.toggle()
	rig.toggle()
	waitFor(t, 2*time.Second, "quota notification", func() bool {
		return rig.notif.has("Quota exceeded")
	})

	rig.toggle()
	rig.toggle()
	waitFor(t, 2*time.Second, "second result on clipboard", func() bool {
		texts := rig.clip.all()
		return len(texts) == 1 && texts[0] == "second answer"
	})

	entries := rig.hist.all()
	if len(entries) != 2 {
		t.Fatalf("history has %d entries, want 2", len(entries))
	}
	if !entries[0].Failed() || entries[0].ErrKind != string(types.KindRemoteQuotaExceeded) {
		t.Errorf("first entry = %+v, want quota failure", entries[0])
	}
	if entries[1].Text != "second answer" {
		t.Errorf("second entry text = %q, want second answer", entries[1].Text)
	}
}

func TestAgentShutdownAbortsLiveRecording(t *testing.T) {
	rig := startAgent(t, &mockRecorder{}, &mockGenerator{})

	rig.keys.press(testTrigger, hotkey.Modifiers{})
	waitFor(t, 2*time.Second, "recording to start", func() bool {
		return rig.rec.begunCount() == 1
	})

	rig.stop(t)

	if !rig.rec.lastAborted() {
		t.Error("live recording was not aborted on shutdown")
	}
	if rig.gen.callCount() != 0 {
		t.Error("aborted recording was submitted")
	}
	if !rig.notif.has("voxd stopped") {
		t.Error("no shutdown notification")
	}
}
