// Package agent wires the key listener, capture controller, processing
// pipeline and output sink into the long-running background process.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"voxd/history"
	"voxd/hotkey"
	"voxd/intent"
)

// shutdownGrace bounds how long a shutdown waits for in-flight jobs.
const shutdownGrace = 5 * time.Second

// KeySource produces the global key event stream.
type KeySource interface {
	Start(ctx context.Context) <-chan hotkey.Event
}

// History records delivered outcomes.
type History interface {
	Append(e history.Entry) (history.Entry, error)
}

// Deps carries everything Run needs. History may be nil.
type Deps struct {
	Log        *slog.Logger
	Keys       KeySource
	Classifier *intent.Classifier
	Controller *Controller
	Pipeline   *Pipeline
	Sink       *Sink
	History    History
	RunID      string
	TriggerKey string // display name for the startup notification
}

// Agent is the long-running background process.
type Agent struct {
	log   *slog.Logger
	keys  KeySource
	class *intent.Classifier
	ctl   *Controller
	pipe  *Pipeline
	sink  *Sink
	hist  History
	runID string
	trig  string
}

func New(d Deps) *Agent {
	return &Agent{
		log:   d.Log,
		keys:  d.Keys,
		class: d.Classifier,
		ctl:   d.Controller,
		pipe:  d.Pipeline,
		sink:  d.Sink,
		hist:  d.History,
		runID: d.RunID,
		trig:  d.TriggerKey,
	}
}

// Run processes key events until ctx is cancelled, then aborts any live
// recording, drains in-flight jobs and returns.
func (a *Agent) Run(ctx context.Context) error {
	events := a.keys.Start(ctx)

	dispDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.dispatch(dispDone)
	}()

	key := strings.ToUpper(a.trig)
	a.log.Info("agent running",
		"run_id", a.runID,
		"trigger", a.trig,
		"mode", a.ctl.Mode(),
		"model", a.ctl.Model())
	a.sink.Announce("voxd running",
		fmt.Sprintf("%s records, Shift+%s cycles mode, Ctrl+%s cycles model", key, key, key))

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			in := a.class.Classify(ev)
			if in == intent.None {
				continue
			}
			a.log.Debug("intent", "intent", in)
			a.ctl.Handle(ctx, in)
		}
	}

	a.log.Info("shutting down")
	a.ctl.AbortCapture()
	a.pipe.Shutdown(shutdownGrace)
	close(dispDone)
	wg.Wait()
	a.sink.Announce("voxd stopped", "Agent shut down.")
	return nil
}

// dispatch delivers outcomes until told to stop, then drains whatever the
// pipeline already buffered.
func (a *Agent) dispatch(done <-chan struct{}) {
	outcomes := a.pipe.Outcomes()
	for {
		select {
		case o := <-outcomes:
			a.deliver(o)
		case <-done:
			for {
				select {
				case o := <-outcomes:
					a.deliver(o)
				default:
					return
				}
			}
		}
	}
}

// deliver routes one outcome to the sink and the history store.
func (a *Agent) deliver(o Outcome) {
	if o.Failed() {
		a.log.Warn("session failed",
			"session", o.SessionID,
			"state", StateFailed,
			"kind", o.Err.Kind,
			"elapsed", o.Elapsed,
			"error", o.Err)
		a.sink.DeliverError(o.SessionID, o.Err.Kind, o.Err.Message)
	} else {
		a.log.Info("session completed",
			"session", o.SessionID,
			"state", StateCompleted,
			"elapsed", o.Elapsed,
			"prompt_tokens", o.Usage.PromptTokens,
			"completion_tokens", o.Usage.CompletionTokens)
		a.sink.DeliverResult(o.SessionID, o.Text, o.Elapsed)
	}
	a.record(o)
}

func (a *Agent) record(o Outcome) {
	if a.hist == nil {
		return
	}

	entry := history.Entry{
		RunID:     a.runID,
		SessionID: o.SessionID,
		Mode:      o.Mode,
		Model:     o.Model,
		ElapsedMS: o.Elapsed.Milliseconds(),
		AudioPath: o.AudioPath,
	}
	if o.Failed() {
		entry.ErrKind = string(o.Err.Kind)
		entry.ErrMessage = o.Err.Message
	} else {
		entry.Text = o.Text
	}

	if _, err := a.hist.Append(entry); err != nil {
		a.log.Warn("history append failed", "session", o.SessionID, "error", err)
	}
}
