package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"voxd/audiocapture"
	"voxd/intent"
	"voxd/internal/types"
)

// Recorder opens capture sessions against the input device.
type Recorder interface {
	Begin(ctx context.Context) (CaptureHandle, error)
}

// CaptureHandle is one in-progress capture.
type CaptureHandle interface {
	Finalize() (*audiocapture.Recording, error)
	Abort()
}

// Submitter hands finalized captures to the processing pipeline.
type Submitter interface {
	Submit(job Job)
}

// Controller owns the capture state machine: the selected mode and model,
// and the at-most-one recording in flight. Handle is called from a single
// goroutine, so the state needs no locking.
type Controller struct {
	log  *slog.Logger
	rec  Recorder
	pipe Submitter
	sink *Sink

	mode  types.Mode
	model types.ModelChoice

	active *session
	lastID uint64
}

func NewController(log *slog.Logger, rec Recorder, pipe Submitter, sink *Sink, mode types.Mode, model types.ModelChoice) *Controller {
	return &Controller{
		log:   log,
		rec:   rec,
		pipe:  pipe,
		sink:  sink,
		mode:  mode,
		model: model,
	}
}

// Handle applies one intent. Mode and model cycle freely, including while
// a recording is running; the values in effect when the recording stops
// are the ones that travel with the job.
func (c *Controller) Handle(ctx context.Context, in intent.Intent) {
	switch in {
	case intent.ToggleCapture:
		if c.active == nil {
			c.startCapture(ctx)
		} else {
			c.stopCapture()
		}
	case intent.CycleMode:
		c.mode = c.mode.Cycle()
		c.log.Info("mode changed", "mode", c.mode)
		c.sink.Announce("Mode changed", c.mode.Title())
	case intent.CycleModel:
		c.model = c.model.Cycle()
		c.log.Info("model changed", "model", c.model)
		c.sink.Announce("Model changed", c.model.Title())
	}
}

func (c *Controller) startCapture(ctx context.Context) {
	handle, err := c.rec.Begin(ctx)
	if err != nil {
		c.log.Error("capture start failed", "error", err)
		c.sink.DeliverError(0, types.KindDeviceUnavailable, "could not open the input device")
		return
	}

	c.lastID++
	c.active = &session{id: c.lastID, state: StateRecording, handle: handle}
	c.log.Info("recording started", "session", c.active.id, "mode", c.mode, "model", c.model)
	c.sink.Announce("Recording started", "Speak now. Press again to stop.")
}

func (c *Controller) stopCapture() {
	s := c.active
	c.active = nil

	rec, err := s.handle.Finalize()
	if err != nil {
		s.state = StateFailed
		if errors.Is(err, audiocapture.ErrEmptyRecording) {
			c.log.Warn("empty recording", "session", s.id)
			c.sink.DeliverError(s.id, types.KindEmptyRecording, "nothing was recorded")
			return
		}
		c.log.Error("capture finalize failed", "session", s.id, "error", err)
		c.sink.DeliverError(s.id, types.KindDeviceUnavailable, "recording failed")
		return
	}
	s.state = StateStopped

	c.pipe.Submit(Job{
		SessionID:   s.id,
		Audio:       rec.WAV,
		AudioPath:   rec.Path,
		Mode:        c.mode,
		Model:       c.model,
		SubmittedAt: time.Now(),
	})
	s.state = StateSubmitted

	c.log.Info("session submitted",
		"session", s.id,
		"mode", c.mode,
		"model", c.model,
		"audio", rec.Path,
		"duration", rec.Duration)
	c.sink.Announce("Processing", fmt.Sprintf("%.1fs recorded, sent to the model", rec.Duration.Seconds()))
}

// AbortCapture discards an in-flight recording, if any. Used on shutdown.
func (c *Controller) AbortCapture() {
	if c.active == nil {
		return
	}
	c.log.Info("aborting recording", "session", c.active.id)
	c.active.handle.Abort()
	c.active = nil
}

// Recording reports whether a capture is active.
func (c *Controller) Recording() bool { return c.active != nil }

// Mode returns the currently selected mode.
func (c *Controller) Mode() types.Mode { return c.mode }

// Model returns the currently selected model choice.
func (c *Controller) Model() types.ModelChoice { return c.model }
