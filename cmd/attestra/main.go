// Command attestra reconciles dual-pipeline speech transcripts and manages
// the QC review queue.
//
// Usage:
//
//	attestra [-config config.yaml] run <audiofile>
//	attestra [-config config.yaml] assess <reference> <hypothesis>
//	attestra [-config config.yaml] qc list
//	attestra [-config config.yaml] qc show <id>
//	attestra [-config config.yaml] qc validate <id>
//	attestra [-config config.yaml] qc decide <id> -decision <d> [-notes <n>] [-reviewer <r>]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/attestra/internal/accuracy"
	"github.com/MrWong99/attestra/internal/config"
	"github.com/MrWong99/attestra/internal/crossval"
	"github.com/MrWong99/attestra/internal/health"
	"github.com/MrWong99/attestra/internal/merge"
	"github.com/MrWong99/attestra/internal/observe"
	"github.com/MrWong99/attestra/internal/pipeline"
	"github.com/MrWong99/attestra/internal/qc"
	"github.com/MrWong99/attestra/pkg/audio"
	"github.com/MrWong99/attestra/pkg/provider/asr"
	asrmock "github.com/MrWong99/attestra/pkg/provider/asr/mock"
	oaiasr "github.com/MrWong99/attestra/pkg/provider/asr/openai"
	"github.com/MrWong99/attestra/pkg/provider/refasr"
	whisperasr "github.com/MrWong99/attestra/pkg/provider/refasr/whisper"
)

const defaultQCDir = "qc_queue"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "attestra: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "attestra: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── QC store and queue ────────────────────────────────────────────────────
	store, closeStore, err := buildStore(ctx, cfg.QC)
	if err != nil {
		slog.Error("failed to open qc store", "err", err)
		return 1
	}
	defer closeStore()

	queue, err := qc.NewQueue(store)
	if err != nil {
		slog.Error("failed to create qc queue", "err", err)
		return 1
	}

	if cfg.Server.MetricsAddr != "" {
		go serveMetrics(cfg.Server.MetricsAddr, queue)
	}

	// ── Transcription backends ────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinBackends(reg)

	backendA, err := reg.CreateASR(cfg.Pipelines.A)
	if err != nil {
		slog.Error("failed to build pipeline A backend", "err", err)
		return 1
	}
	backendB, err := reg.CreateASR(cfg.Pipelines.B)
	if err != nil {
		slog.Error("failed to build pipeline B backend", "err", err)
		return 1
	}

	// ── Audio cross-validation ────────────────────────────────────────────────
	// A recognizer load failure degrades to heuristic scoring, never aborts.
	var recognizer refasr.Recognizer
	if cfg.ReferenceASR.ModelPath != "" {
		rec, err := reg.CreateRecognizer("whisper", cfg.ReferenceASR)
		if err != nil {
			slog.Warn("reference recognizer unavailable, cross-validation will use heuristic scoring", "err", err)
		} else {
			recognizer = rec
			if closer, ok := rec.(interface{ Close() error }); ok {
				defer closer.Close()
			}
		}
	}

	validatorOpts := []crossval.Option{crossval.WithRecognizer(recognizer)}
	if d := cfg.Timeouts.ReferenceDecode.Std(); d > 0 {
		validatorOpts = append(validatorOpts, crossval.WithDecodeTimeout(d))
	}
	validator, err := crossval.NewValidator(audio.NewWAVDecoder(), validatorOpts...)
	if err != nil {
		slog.Error("failed to create cross-validator", "err", err)
		return 1
	}

	// ── Coordinator ───────────────────────────────────────────────────────────
	rules := make([]merge.Rule, 0, len(cfg.Merger.Substitutions))
	for _, s := range cfg.Merger.Substitutions {
		rules = append(rules, merge.Rule{From: s.From, To: s.To})
	}

	coordinatorOpts := []pipeline.Option{
		pipeline.WithValidator(validator),
		pipeline.WithMerger(merge.New(rules)),
	}
	if d := cfg.Timeouts.Transcription.Std(); d > 0 {
		coordinatorOpts = append(coordinatorOpts, pipeline.WithTranscriptionTimeout(d))
	}

	coordinator, err := pipeline.New(
		pipeline.Pipeline{
			Name:        "a",
			Backend:     backendA,
			Language:    cfg.Pipelines.A.Language,
			Diarization: cfg.Pipelines.A.Diarization,
		},
		pipeline.Pipeline{
			Name:        "b",
			Backend:     backendB,
			Language:    cfg.Pipelines.B.Language,
			Diarization: cfg.Pipelines.B.Diarization,
		},
		queue,
		coordinatorOpts...,
	)
	if err != nil {
		slog.Error("failed to create coordinator", "err", err)
		return 1
	}

	// ── Dispatch ──────────────────────────────────────────────────────────────
	if err := dispatch(ctx, coordinator, args); err != nil {
		if errors.Is(err, errUsage) {
			usage()
			return 2
		}
		slog.Error("command failed", "err", err)
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

// dispatch routes the positional arguments to a coordinator operation.
func dispatch(ctx context.Context, c *pipeline.Coordinator, args []string) error {
	switch args[0] {
	case "run":
		if len(args) != 2 {
			return errUsage
		}
		res, err := c.RunDualPipeline(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(res)

	case "assess":
		if len(args) != 3 {
			return errUsage
		}
		return printJSON(accuracy.Assess(args[1], args[2]))

	case "qc":
		if len(args) < 2 {
			return errUsage
		}
		return dispatchQC(ctx, c, args[1:])

	default:
		return errUsage
	}
}

func dispatchQC(ctx context.Context, c *pipeline.Coordinator, args []string) error {
	switch args[0] {
	case "list":
		view, err := c.ListQCQueue(ctx)
		if err != nil {
			return err
		}
		return printJSON(view)

	case "show":
		if len(args) != 2 {
			return errUsage
		}
		stored, err := c.GetQCCase(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(stored)

	case "validate":
		if len(args) != 2 {
			return errUsage
		}
		view, err := c.RunAudioCrossValidation(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(view)

	case "decide":
		if len(args) < 2 {
			return errUsage
		}
		fs := flag.NewFlagSet("qc decide", flag.ContinueOnError)
		decision := fs.String("decision", "", "reviewer decision (e.g., approve, reject)")
		notes := fs.String("notes", "", "free-text reviewer notes")
		reviewer := fs.String("reviewer", "", "reviewer identifier")
		if err := fs.Parse(args[2:]); err != nil {
			return errUsage
		}
		if *decision == "" {
			fmt.Fprintln(os.Stderr, "attestra: -decision is required")
			return errUsage
		}
		if err := c.RecordQCDecision(ctx, args[1], *notes, *decision, *reviewer); err != nil {
			return err
		}
		fmt.Printf("case %s completed\n", args[1])
		return nil

	default:
		return errUsage
	}
}

// ── Backend wiring ────────────────────────────────────────────────────────────

// registerBuiltinBackends wires the backend factories that ship with
// Attestra into reg.
func registerBuiltinBackends(reg *config.Registry) {
	reg.RegisterASR("openai", func(entry config.PipelineConfig) (asr.Backend, error) {
		var opts []oaiasr.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaiasr.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, oaiasr.WithModel(entry.Model))
		}
		return oaiasr.New(entry.APIKey, opts...)
	})

	// mock returns empty transcripts; useful for exercising the flow
	// without credentials.
	reg.RegisterASR("mock", func(entry config.PipelineConfig) (asr.Backend, error) {
		return &asrmock.Backend{}, nil
	})

	reg.RegisterRecognizer("whisper", func(cfg config.ReferenceASRConfig) (refasr.Recognizer, error) {
		var opts []whisperasr.Option
		if cfg.Language != "" {
			opts = append(opts, whisperasr.WithLanguage(cfg.Language))
		}
		return whisperasr.New(cfg.ModelPath, opts...)
	})
}

// buildStore opens the configured QC case store. The returned close function
// is a no-op for the file store.
func buildStore(ctx context.Context, cfg config.QCConfig) (qc.CaseStore, func(), error) {
	if cfg.Store == config.StorePostgres {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		store := qc.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	}

	dir := cfg.Dir
	if dir == "" {
		dir = defaultQCDir
	}
	store, err := qc.NewFileStore(dir)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

// serveMetrics exposes the Prometheus scrape endpoint.
func serveMetrics(addr string, queue *qc.Queue) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(health.Checker{
		Name: "qc_store",
		Check: func(ctx context.Context) error {
			_, err := queue.Stats(ctx)
			return err
		},
	}).WithDetail("qc", func(ctx context.Context) (any, error) {
		return queue.Stats(ctx)
	}).Register(mux)
	slog.Info("metrics listener started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics listener stopped", "err", err)
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: attestra [-config config.yaml] <command>

commands:
  run <audiofile>                           run the dual pipeline on a recording
  assess <reference> <hypothesis>           score a transcript against a reference
  qc list                                   list open qc cases
  qc show <id>                              print one qc case
  qc validate <id>                          re-run audio cross-validation for a case
  qc decide <id> -decision <d> [-notes <n>] [-reviewer <r>]
                                            record a reviewer decision`)
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
