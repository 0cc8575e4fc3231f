package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/attestra/pkg/provider/asr"
	"github.com/MrWong99/attestra/pkg/provider/refasr"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps backend names to their constructor functions. It is safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	asr        map[string]func(PipelineConfig) (asr.Backend, error)
	recognizer map[string]func(ReferenceASRConfig) (refasr.Recognizer, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		asr:        make(map[string]func(PipelineConfig) (asr.Backend, error)),
		recognizer: make(map[string]func(ReferenceASRConfig) (refasr.Recognizer, error)),
	}
}

// RegisterASR registers a transcription backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterASR(name string, factory func(PipelineConfig) (asr.Backend, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[name] = factory
}

// RegisterRecognizer registers a reference recognizer factory under name.
func (r *Registry) RegisterRecognizer(name string, factory func(ReferenceASRConfig) (refasr.Recognizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizer[name] = factory
}

// CreateASR instantiates a transcription backend using the factory
// registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateASR(entry PipelineConfig) (asr.Backend, error) {
	r.mu.RLock()
	factory, ok := r.asr[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateRecognizer instantiates a reference recognizer using the factory
// registered under name.
func (r *Registry) CreateRecognizer(name string, cfg ReferenceASRConfig) (refasr.Recognizer, error) {
	r.mu.RLock()
	factory, ok := r.recognizer[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recognizer/%q", ErrProviderNotRegistered, name)
	}
	return factory(cfg)
}
