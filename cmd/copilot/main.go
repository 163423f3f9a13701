// Package main is the entry point for the retail analytics copilot.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/datadesk/retail-copilot/internal/batch"
	"github.com/datadesk/retail-copilot/internal/config"
	"github.com/datadesk/retail-copilot/internal/pipeline"
	"github.com/datadesk/retail-copilot/internal/retrieval"
	"github.com/datadesk/retail-copilot/internal/store"
	"github.com/datadesk/retail-copilot/internal/trace"
	"github.com/datadesk/retail-copilot/internal/vocab"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to configuration JSON file")
	batchPath := flag.String("batch", "", "JSONL questions file (default stdin)")
	outPath := flag.String("out", "", "JSONL answers file (default stdout)")
	workers := flag.Int("workers", 0, "concurrent questions (overrides config)")
	verbose := flag.Bool("verbose", false, "log at debug level")
	flag.Parse()

	if *showVersion {
		fmt.Printf("copilot %s (commit=%s, built=%s)\n", version, commit, date)
		os.Exit(0)
	}

	// Resolve config path: --config flag > COPILOT_CONFIG env > auto-discover.
	path := *configPath
	if path == "" {
		path = os.Getenv("COPILOT_CONFIG")
	}
	if path == "" {
		path = discoverConfig()
	}
	if path == "" {
		fatal("no config found. Place config.json next to the exe, use --config <path>, or set COPILOT_CONFIG.")
	}

	cfg, err := config.Load(path)
	if err != nil {
		fatal(fmt.Sprintf("load config: %v", err))
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *batchPath, *outPath, logger); err != nil {
		fatal(err.Error())
	}
}

func run(ctx context.Context, cfg *config.Config, batchPath, outPath string, logger *slog.Logger) error {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer s.Close()

	if err := s.EnsureViews(ctx); err != nil {
		return fmt.Errorf("prepare dataset views: %w", err)
	}
	schema, err := s.Schema(ctx)
	if err != nil {
		return fmt.Errorf("inspect dataset schema: %w", err)
	}

	retriever, err := retrieval.NewFromDir(cfg.DocsDir, retrieval.Options{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})
	if err != nil {
		return fmt.Errorf("index document corpus: %w", err)
	}

	v, err := vocab.Load(cfg.VocabPath)
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}

	runID := uuid.NewString()
	sink, err := buildSink(cfg, s, runID)
	if err != nil {
		return err
	}

	pipe := pipeline.New(s, retriever, v, pipeline.Options{
		RetrievalK: cfg.RetrievalK,
		MaxRepairs: cfg.MaxRepairs,
		TopN:       cfg.TopN,
		CostRatio:  cfg.CostRatio,
		Confidence: cfg.Confidence,
	}, logger)

	runner := batch.NewRunner(pipe, sink, batch.Options{
		Workers:         cfg.Workers,
		FloorConfidence: cfg.Confidence.Base,
	}, logger)

	in := io.Reader(os.Stdin)
	if batchPath != "" {
		f, err := os.Open(batchPath)
		if err != nil {
			return fmt.Errorf("open batch file: %w", err)
		}
		defer f.Close()
		in = f
	}

	out := io.Writer(os.Stdout)
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	logger.Info("batch starting",
		"run_id", runID,
		"workers", cfg.Workers,
		"tables", len(schema),
		"corpus_chunks", retriever.Len(),
	)
	return runner.Run(ctx, in, out)
}

// buildSink assembles the configured trace sinks. With neither a trace
// directory nor a trace database configured, traces stay in memory only.
func buildSink(cfg *config.Config, s *store.Store, runID string) (trace.Sink, error) {
	var sinks []trace.Sink

	if cfg.TraceDBPath != "" {
		db := s.DB()
		if cfg.TraceDBPath != cfg.DBPath {
			ts, err := store.Open(cfg.TraceDBPath)
			if err != nil {
				return nil, fmt.Errorf("open trace database: %w", err)
			}
			db = ts.DB()
		}
		ss, err := trace.NewStoreSink(db, runID)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ss)
	}

	if cfg.TraceDir != "" {
		fs, err := trace.NewFileSink(cfg.TraceDir)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
	}

	if len(sinks) == 0 {
		return nil, nil
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return trace.NewMultiSink(sinks...), nil
}

// discoverConfig looks for config.json next to the executable, then in the cwd.
func discoverConfig() string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}
	return ""
}

func fatal(msg string) {
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", msg)
	os.Exit(1)
}
