// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kraklabs/rie/internal/errors"
	"github.com/kraklabs/rie/internal/ui"
	"github.com/kraklabs/rie/pkg/ingestion"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// runRun executes the 'run' CLI command, ingesting the configured
// sources into the recursive JSON index and vector store.
//
// It parses the filing export, extracts PDF pages, loads tabular data,
// decomposes entities into leaf documents, embeds everything, and runs
// the statistical analysis stage. Runs are resumable: fully processed
// PDFs recorded in the checkpoint are skipped on the next run.
//
// Flags:
//   - --full: Ignore the checkpoint and process everything from scratch
//   - --page-workers: Number of parallel PDF page workers (default: auto)
//   - --debug: Enable debug logging (default: false)
//   - -q: Suppress progress output
//   - --no-color: Disable colored output
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
//
// Examples:
//
//	rie run                    Incremental run (skip completed PDFs)
//	rie run --full             Reprocess everything from scratch
//	rie run --page-workers 8   Use 8 parallel workers for PDF pages
func runRun(args []string, configPath string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	full := fs.Bool("full", false, "Ignore checkpoint and process everything from scratch")
	pageWorkers := fs.Int("page-workers", 0, "Number of parallel PDF page workers (0 = auto)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	quiet := fs.Bool("q", false, "Suppress progress output")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rie run [options]

Ingests the sources configured in .rie/project.yaml. Output is written
to the configured output directory; checkpoints to .rie/checkpoints/.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ui.InitColors(*noColor)

	// Load configuration
	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load configuration",
			err.Error(),
			"Run 'rie init' to create .rie/project.yaml",
			err,
		), false)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Start Prometheus metrics endpoint (optional)
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}

	// Ensure checkpoint directory exists
	checkpointDir := filepath.Join(ConfigDir(cwd), "checkpoints")
	if err := os.MkdirAll(checkpointDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create checkpoint directory: %v\n", err)
		os.Exit(1)
	}

	// Drop the checkpoint when a full run is requested
	if *full {
		cm := ingestion.NewCheckpointManager(checkpointDir)
		if err := cm.ClearCheckpoint(cfg.ProjectID); err != nil {
			logger.Warn("checkpoint.clear.failed", "err", err)
		} else {
			logger.Info("checkpoint.cleared", "project_id", cfg.ProjectID)
		}
	}

	embedder := ingestion.NewEmbedder(func() (ingestion.EmbeddingProvider, error) {
		return ingestion.CreateEmbeddingProvider(
			cfg.Embedding.Provider,
			cfg.Embedding.BaseURL,
			cfg.Embedding.Model,
			cfg.Embedding.APIKey,
			logger,
		)
	}, logger)

	workers := cfg.Ingest.PageWorkers
	if *pageWorkers > 0 {
		workers = *pageWorkers
	}

	pipeline, err := ingestion.NewPipeline(ingestion.PipelineConfig{
		ProjectID:     cfg.ProjectID,
		FilingExport:  cfg.Sources.FilingExport,
		PDFs:          cfg.Sources.PDFs,
		Tabular:       cfg.Sources.Tabular,
		OutputDir:     cfg.Output.Dir,
		CheckpointDir: checkpointDir,
		PageWorkers:   workers,
	}, embedder, logger)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot create ingestion pipeline",
			err.Error(),
			"Check the sources and output sections of .rie/project.yaml",
			err,
		), false)
	}

	logger.Info("run.starting",
		"project_id", cfg.ProjectID,
		"output_dir", cfg.Output.Dir,
		"embedding_provider", cfg.Embedding.Provider,
	)

	// Spinner is nil when quiet, debug, or stderr is not a TTY.
	progressCfg := NewProgressConfig(GlobalFlags{Quiet: *quiet || *debug, NoColor: *noColor})
	spinner := NewSpinner(progressCfg, phaseDescription("ingesting"))
	spinnerDone := make(chan struct{})
	if spinner != nil {
		go func() {
			ticker := time.NewTicker(120 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-spinnerDone:
					return
				case <-ticker.C:
					_ = spinner.Add(1)
				}
			}
		}()
	}

	result, err := pipeline.Run(ctx)
	close(spinnerDone)
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		errors.FatalError(errors.NewInternalError(
			"Ingestion failed",
			err.Error(),
			"Re-run with --debug for detailed logs; completed PDFs are checkpointed and will be skipped",
			err,
		), false)
	}

	printRunSummary(result)
}

// printRunSummary prints the ingestion result summary to stdout.
//
// Displays statistics about entities, documents, embeddings, and overall
// execution time. Used to provide user feedback after a run completes.
func printRunSummary(result *ingestion.RunSummary) {
	fmt.Println()
	ui.Header("Ingestion Complete")
	fmt.Printf("%s %s\n", ui.Label("Project ID:"), result.ProjectID)
	fmt.Println()

	ui.SubHeader("Sources:")
	fmt.Printf("  Entities:     %s\n", ui.CountText(result.Entities))
	fmt.Printf("  PDFs:         %s\n", ui.CountText(result.PDFs))
	fmt.Printf("  Pages:        %s\n", ui.CountText(result.Pages))

	ui.SubHeader("Output:")
	fmt.Printf("  Children:     %s\n", ui.CountText(result.Children))
	fmt.Printf("  Violations:   %s\n", ui.CountText(result.Violations))
	fmt.Printf("  Anomalies:    %s\n", ui.CountText(result.Anomalies))

	ui.SubHeader("Embeddings:")
	fmt.Printf("  Computed:     %s\n", ui.CountText(result.EmbeddingsComputed))
	fmt.Printf("  Reused:       %s\n", ui.CountText(result.EmbeddingsReused))

	if result.PageErrors > 0 {
		fmt.Println()
		ui.Warningf("%d pages failed extraction (see logs)", result.PageErrors)
	}

	fmt.Println()
	fmt.Printf("Duration: %s\n", result.Duration.Round(time.Millisecond))
}
