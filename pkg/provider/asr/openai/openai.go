// Package openai provides an [asr.Backend] backed by the OpenAI audio
// transcription API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/attestra/pkg/provider/asr"
)

const defaultModel = oai.AudioModelWhisper1

// Backend implements asr.Backend using the OpenAI audio transcriptions
// endpoint. Diarization is not supported by the API; the flag is ignored.
type Backend struct {
	client oai.Client
	model  oai.AudioModel
}

// Compile-time interface check.
var _ asr.Backend = (*Backend)(nil)

// config holds optional configuration for the backend.
type config struct {
	baseURL string
	model   string
	timeout time.Duration
}

// Option is a functional option for Backend.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Useful for pointing
// at an OpenAI-compatible whisper server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel selects the transcription model. Default: whisper-1.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs an OpenAI transcription Backend.
func New(apiKey string, opts ...Option) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	model := oai.AudioModel(cfg.model)
	if model == "" {
		model = defaultModel
	}

	return &Backend{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Name identifies the backend in logs.
func (b *Backend) Name() string { return "openai" }

// Transcribe implements asr.Backend. It uploads the audio file and returns
// the transcription text. The request Language is forwarded when set.
func (b *Backend) Transcribe(ctx context.Context, req asr.Request) (asr.Transcript, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return asr.Transcript{}, fmt.Errorf("openai: open audio %q: %w", req.AudioPath, err)
	}
	defer f.Close()

	params := oai.AudioTranscriptionNewParams{
		File:  f,
		Model: b.model,
	}
	if req.Language != "" {
		// The API expects an ISO-639-1 code; strip any region subtag.
		params.Language = oai.String(baseLanguage(req.Language))
	}

	resp, err := b.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return asr.Transcript{}, fmt.Errorf("openai: transcribe %q: %w", req.AudioPath, err)
	}

	return asr.Transcript{
		Text:      resp.Text,
		AudioPath: req.AudioPath,
	}, nil
}

// baseLanguage reduces a BCP-47 tag to its primary subtag ("ta-IN" → "ta").
func baseLanguage(tag string) string {
	for i := range len(tag) {
		if tag[i] == '-' || tag[i] == '_' {
			return tag[:i]
		}
	}
	return tag
}
