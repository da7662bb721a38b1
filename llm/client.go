// Package llm sends captured audio to a hosted model and returns its reply.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	"voxd/internal/types"
)

// Request is one generation call: an instruction and the audio it applies to.
type Request struct {
	Model       string
	Instruction string
	Audio       []byte // complete WAV container
	MIMEType    string // e.g. "audio/wav"
}

// Response is the model's reply.
type Response struct {
	Text  string
	Usage types.Usage
}

// Generator produces text from an instruction and an audio clip.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// Config selects and configures a provider backend.
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
}

// New returns the Generator for the configured provider.
func New(cfg Config) (Generator, error) {
	httpClient := newHTTPClient()

	switch cfg.Provider {
	case "gemini":
		return &geminiGenerator{
			apiKey:  cfg.APIKey,
			baseURL: cfg.BaseURL,
			http:    httpClient,
		}, nil
	case "openai":
		return newOpenAIGenerator(cfg, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// newHTTPClient builds the shared HTTP client. Deadlines are owned by the
// per-request context, so the client itself carries no timeout.
func newHTTPClient() *http.Client {
	tr := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	_ = http2.ConfigureTransport(tr)
	return &http.Client{Transport: tr}
}
