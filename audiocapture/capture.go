// Package audiocapture records microphone audio through PortAudio.
package audiocapture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

// ErrDeviceUnavailable wraps failures to open, start or read the input device.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// ErrEmptyRecording is returned by Finalize when no samples were captured.
var ErrEmptyRecording = errors.New("empty recording")

// ErrNotRecording is returned when a session is finalized or aborted twice.
var ErrNotRecording = errors.New("not recording")

const framesPerBuffer = 1024

// Config holds the fixed capture parameters.
type Config struct {
	SampleRate int
	Channels   int
	Dir        string // directory finalized WAV files are written to
}

// Recording is a finalized capture, written to disk before it is returned.
type Recording struct {
	Path       string
	WAV        []byte // complete WAV container, as written to Path
	SampleRate int
	Channels   int
	Samples    int
	Duration   time.Duration
}

// Recorder owns the PortAudio runtime and opens capture sessions against
// the default input device.
type Recorder struct {
	cfg Config
}

// NewRecorder initializes PortAudio and prepares the recording directory.
func NewRecorder(cfg Config) (*Recorder, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &Recorder{cfg: cfg}, nil
}

// Close releases the PortAudio runtime.
func (r *Recorder) Close() error {
	return portaudio.Terminate()
}

// Begin opens and starts an input stream and spawns the collection loop.
// Open or start failures are reported as ErrDeviceUnavailable.
func (r *Recorder) Begin(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in := make([]int16, framesPerBuffer*r.cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(r.cfg.Channels, 0, float64(r.cfg.SampleRate), framesPerBuffer, in)
	if err != nil {
		return nil, fmt.Errorf("%w: open input stream: %v", ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: start input stream: %v", ErrDeviceUnavailable, err)
	}

	s := &Session{
		cfg:    r.cfg,
		stream: stream,
		in:     in,
		stop:   make(chan struct{}),
		done:   make(chan captureResult, 1),
	}
	go s.collect()
	return s, nil
}

type captureResult struct {
	pcm []int16
	err error
}

// Session is one in-progress capture. Samples accumulate in memory until
// Finalize writes them out or Abort discards them.
type Session struct {
	cfg    Config
	stream *portaudio.Stream
	in     []int16

	stop chan struct{}
	done chan captureResult

	mu    sync.Mutex
	ended bool
}

// collect pulls buffers off the stream until stopped. The collector owns
// the stream: Stop and Close happen here so they never race a Read.
func (s *Session) collect() {
	var pcm []int16
	var readErr error

loop:
	for {
		select {
		case <-s.stop:
			break loop
		default:
		}
		if err := s.stream.Read(); err != nil {
			readErr = err
			<-s.stop
			break loop
		}
		pcm = append(pcm, s.in...)
	}

	_ = s.stream.Stop()
	_ = s.stream.Close()
	s.done <- captureResult{pcm: pcm, err: readErr}
}

// Finalize stops collection and writes the capture as a timestamped WAV
// file. The file is synced to disk before Finalize returns. A capture with
// no samples yields ErrEmptyRecording and leaves no file behind.
func (s *Session) Finalize() (*Recording, error) {
	res, err := s.end()
	if err != nil {
		return nil, err
	}
	if res.err != nil {
		return nil, fmt.Errorf("%w: read input stream: %v", ErrDeviceUnavailable, res.err)
	}
	if len(res.pcm) == 0 {
		return nil, ErrEmptyRecording
	}

	path := recordingPath(s.cfg.Dir, time.Now())
	if err := writeWAV(path, res.pcm, s.cfg.SampleRate, s.cfg.Channels); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read back wav: %w", err)
	}

	frames := len(res.pcm) / s.cfg.Channels
	return &Recording{
		Path:       path,
		WAV:        data,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		Samples:    len(res.pcm),
		Duration:   time.Duration(frames) * time.Second / time.Duration(s.cfg.SampleRate),
	}, nil
}

// Abort stops collection and discards whatever was captured.
func (s *Session) Abort() {
	_, _ = s.end()
}

// end signals the collector and waits for it to hand over the samples.
func (s *Session) end() (captureResult, error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return captureResult{}, ErrNotRecording
	}
	s.ended = true
	s.mu.Unlock()

	close(s.stop)
	return <-s.done, nil
}

func recordingPath(dir string, t time.Time) string {
	name := fmt.Sprintf("rec_%s_%03d.wav", t.Format("20060102_150405"), t.Nanosecond()/1e6)
	return filepath.Join(dir, name)
}

// writeWAV encodes pcm as 16-bit WAV at path and syncs it to disk. The
// encoder finalizes the header on Close, so Sync must come after.
func writeWAV(path string, pcm []int16, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	data := make([]int, len(pcm))
	for i, v := range pcm {
		data[i] = int(v)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("close wav encoder: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync wav: %w", err)
	}
	return f.Close()
}
