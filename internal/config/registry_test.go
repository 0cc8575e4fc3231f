package config

import (
	"errors"
	"testing"

	"github.com/MrWong99/attestra/pkg/provider/asr"
	asrmock "github.com/MrWong99/attestra/pkg/provider/asr/mock"
	"github.com/MrWong99/attestra/pkg/provider/refasr"
	refasrmock "github.com/MrWong99/attestra/pkg/provider/refasr/mock"
)

func TestRegistryCreateASR(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.RegisterASR("mock", func(cfg PipelineConfig) (asr.Backend, error) {
		return &asrmock.Backend{Transcript: asr.Transcript{Text: cfg.Model}}, nil
	})

	b, err := r.CreateASR(PipelineConfig{Name: "mock", Model: "test-model"})
	if err != nil {
		t.Fatalf("CreateASR: %v", err)
	}
	if b == nil {
		t.Fatal("CreateASR returned nil backend")
	}

	_, err = r.CreateASR(PipelineConfig{Name: "unknown"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateASR unknown name = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistryCreateRecognizer(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.RegisterRecognizer("mock", func(cfg ReferenceASRConfig) (refasr.Recognizer, error) {
		return &refasrmock.Recognizer{Text: "decoded"}, nil
	})

	rec, err := r.CreateRecognizer("mock", ReferenceASRConfig{})
	if err != nil {
		t.Fatalf("CreateRecognizer: %v", err)
	}
	if rec == nil {
		t.Fatal("CreateRecognizer returned nil recognizer")
	}

	if _, err := r.CreateRecognizer("unknown", ReferenceASRConfig{}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateRecognizer unknown name = %v, want ErrProviderNotRegistered", err)
	}
}
