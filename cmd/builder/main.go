// Command builder runs the offline pipeline that turns a document dump
// into the frozen artifact set the inference service loads: vocabulary,
// bag-of-words corpus, tf-idf model, topic model, and optionally a
// topic-space similarity corpus.
//
// Usage:
//
//	builder [-config configs/development.yaml] DUMP_PATH OUTPUT_PREFIX [VOCAB_SIZE]
//
// DUMP_PATH is a plain, gzip, or bzip2 compressed file with one document
// per line ("title<TAB>text"). OUTPUT_PREFIX is the path prefix every
// artifact file name is derived from; its directory must already exist.
// VOCAB_SIZE optionally overrides the configured vocabulary cap.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/wikitopics/topic-platform/internal/pipeline"
	"github.com/wikitopics/topic-platform/pkg/config"
	"github.com/wikitopics/topic-platform/pkg/logger"
	"github.com/wikitopics/topic-platform/pkg/metrics"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-config FILE] DUMP_PATH OUTPUT_PREFIX [VOCAB_SIZE]\n", filepath.Base(os.Args[0]))
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 || len(args) > 3 {
		usage()
		os.Exit(1)
	}
	dumpPath, outputPrefix := args[0], args[1]

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if len(args) == 3 {
		keepN, err := strconv.Atoi(args[2])
		if err != nil || keepN < 1 {
			fmt.Fprintf(os.Stderr, "VOCAB_SIZE must be a positive integer\n")
			usage()
			os.Exit(1)
		}
		cfg.Builder.KeepN = keepN
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	// Fail before the expensive passes, not at the first artifact write.
	outDir := filepath.Dir(outputPrefix)
	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "output directory %s does not exist\n", outDir)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	src, err := pipeline.OpenFile(dumpPath)
	if err != nil {
		slog.Error("failed to open dump", "path", dumpPath, "error", err)
		os.Exit(1)
	}
	defer src.Close()

	slog.Info("starting build",
		"dump", dumpPath,
		"output_prefix", outputPrefix,
		"keep_n", cfg.Builder.KeepN,
		"num_topics", cfg.Builder.NumTopics,
		"passes", cfg.Builder.Passes,
	)

	p := pipeline.New(cfg.Builder, m)
	if err := p.Run(ctx, src, pipeline.Paths{Prefix: outputPrefix}); err != nil {
		slog.Error("build failed", "error", err)
		os.Exit(1)
	}

	if metricsShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := metricsShutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown error", "error", err)
		}
	}
	slog.Info("build complete", "output_prefix", outputPrefix)
}
