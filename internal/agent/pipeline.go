package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"voxd/internal/types"
	"voxd/llm"
)

// Job is an immutable unit of processing: one finalized capture plus the
// mode and model selected at the moment it was submitted.
type Job struct {
	SessionID   uint64
	Audio       []byte // complete WAV container
	AudioPath   string
	Mode        types.Mode
	Model       types.ModelChoice
	SubmittedAt time.Time
}

// Outcome is the terminal result of one job. Err is nil on success.
type Outcome struct {
	SessionID uint64
	Mode      types.Mode
	Model     string // resolved model name
	AudioPath string
	Text      string
	Elapsed   time.Duration
	Usage     types.Usage
	Err       *types.RemoteError
}

// Failed reports whether the job ended in an error.
func (o Outcome) Failed() bool { return o.Err != nil }

// PipelineConfig fixes what every job needs from the configuration.
type PipelineConfig struct {
	Models       map[types.ModelChoice]string
	Instructions map[types.Mode]string
	Timeout      time.Duration
}

// Pipeline runs jobs concurrently against the model provider. Each job gets
// its own goroutine and an independent deadline. Failed jobs are never
// retried; their error travels to the sink like any other outcome.
type Pipeline struct {
	log *slog.Logger
	gen llm.Generator
	cfg PipelineConfig

	out  chan Outcome
	quit chan struct{}
	wg   sync.WaitGroup

	mu       sync.Mutex
	inflight int
}

func NewPipeline(log *slog.Logger, gen llm.Generator, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		log:  log,
		gen:  gen,
		cfg:  cfg,
		out:  make(chan Outcome, 16),
		quit: make(chan struct{}),
	}
}

// Outcomes delivers one Outcome per submitted job, in completion order.
func (p *Pipeline) Outcomes() <-chan Outcome { return p.out }

// Submit schedules a job without blocking the caller.
func (p *Pipeline) Submit(job Job) {
	p.mu.Lock()
	p.inflight++
	p.mu.Unlock()

	p.wg.Add(1)
	go p.process(job)
}

// InFlight returns the number of jobs not yet finished.
func (p *Pipeline) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight
}

func (p *Pipeline) process(job Job) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		p.inflight--
		p.mu.Unlock()
	}()

	model := p.cfg.Models[job.Model]
	outcome := Outcome{
		SessionID: job.SessionID,
		Mode:      job.Mode,
		Model:     model,
		AudioPath: job.AudioPath,
	}

	// A shutdown request does not cancel running jobs; only their own
	// deadline stops them.
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	resp, err := p.gen.Generate(ctx, llm.Request{
		Model:       model,
		Instruction: p.cfg.Instructions[job.Mode],
		Audio:       job.Audio,
		MIMEType:    "audio/wav",
	})
	outcome.Elapsed = time.Since(job.SubmittedAt)

	if err != nil {
		outcome.Err = asRemoteError(err)
	} else {
		outcome.Text = resp.Text
		outcome.Usage = resp.Usage
	}

	select {
	case p.out <- outcome:
	case <-p.quit:
		p.log.Warn("dropping outcome, pipeline shut down", "session", job.SessionID)
	}
}

// Shutdown waits up to grace for in-flight jobs, then abandons them. After
// Shutdown returns, no further outcomes are delivered.
func (p *Pipeline) Shutdown(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		p.log.Warn("shutdown grace expired, abandoning jobs", "inflight", p.InFlight())
	}
	close(p.quit)
}

// asRemoteError keeps the provider's classification when present and wraps
// anything else so every failure still carries a kind.
func asRemoteError(err error) *types.RemoteError {
	var rerr *types.RemoteError
	if errors.As(err, &rerr) {
		return rerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &types.RemoteError{Kind: types.KindRemoteTimeout, Message: "no reply within the time limit", Err: err}
	}
	return &types.RemoteError{Kind: types.KindRemoteTransport, Message: "request failed", Err: err}
}
