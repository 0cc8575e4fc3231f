package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidBackendNames lists known transcription backend names.
// Used by [Validate] to warn about unrecognised names.
var ValidBackendNames = []string{"openai", "mock"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Pipelines — backend name warnings only; a missing name falls back to
	// the registry default at wiring time.
	validateBackendName("pipelines.a", cfg.Pipelines.A.Name)
	validateBackendName("pipelines.b", cfg.Pipelines.B.Name)
	if cfg.Pipelines.A.Name == "" && cfg.Pipelines.B.Name == "" {
		slog.Warn("no transcription backends configured; runs will produce empty transcripts")
	}

	// Reference ASR
	if cfg.ReferenceASR.ModelPath == "" {
		slog.Warn("reference_asr.model_path is empty; audio cross-validation will use heuristic scoring")
	}

	// QC store
	if cfg.QC.Store != "" && !cfg.QC.Store.IsValid() {
		errs = append(errs, fmt.Errorf("qc.store %q is invalid; valid values: file, postgres", cfg.QC.Store))
	}
	if cfg.QC.Store == StorePostgres && cfg.QC.PostgresDSN == "" {
		errs = append(errs, errors.New("qc.postgres_dsn is required when qc.store is postgres"))
	}

	// Merger substitutions
	for i, rule := range cfg.Merger.Substitutions {
		if rule.From == "" {
			errs = append(errs, fmt.Errorf("merger.substitutions[%d].from is required", i))
		}
	}

	// Timeouts
	if cfg.Timeouts.Transcription < 0 {
		errs = append(errs, errors.New("timeouts.transcription must not be negative"))
	}
	if cfg.Timeouts.ReferenceDecode < 0 {
		errs = append(errs, errors.New("timeouts.reference_decode must not be negative"))
	}

	return errors.Join(errs...)
}

// validateBackendName logs a warning if name is non-empty and not found in
// [ValidBackendNames].
func validateBackendName(key, name string) {
	if name == "" || slices.Contains(ValidBackendNames, name) {
		return
	}
	slog.Warn("unknown backend name — may be a typo or third-party backend",
		"key", key,
		"name", name,
		"known", ValidBackendNames,
	)
}
