// Package main provides the command-line entry point for avchunk.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/five82/avchunk/internal/chunk"
	"github.com/five82/avchunk/internal/config"
	"github.com/five82/avchunk/internal/discovery"
	"github.com/five82/avchunk/internal/logging"
	"github.com/five82/avchunk/internal/mediatool"
	"github.com/five82/avchunk/internal/pipeline"
	"github.com/five82/avchunk/internal/reporter"
	"github.com/five82/avchunk/internal/util"
)

const appVersion = "0.1.0"

// requiredBinaries must be on PATH before any work begins; their absence
// is a precondition failure, fatal before any chunk store I/O occurs.
var requiredBinaries = []string{"ffmpeg", "ffprobe"}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "avchunk",
		Short:         "Chunked video re-encoding pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       appVersion,
	}
	root.AddCommand(newEncodeCmd())
	root.AddCommand(newHistoryCmd())
	return root
}

func newEncodeCmd() *cobra.Command {
	cfg := config.Defaults()
	var (
		configPath string
		jsonOutput bool
		logDir     string
		historyDB  string
	)

	cmd := &cobra.Command{
		Use:   "encode <input>",
		Short: "Re-encode one or more video files chunk by chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Input = args[0]
			return runEncode(cmd, cfg, configPath, logDir, historyDB, jsonOutput)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.OutputPath, "output", "o", "", "output file or directory (required)")
	flags.StringVar(&cfg.TempDir, "temp-dir", cfg.TempDir, "scratch directory for chunks and the resume journal")
	flags.StringVar(&cfg.Encoder, "encoder", cfg.Encoder, "encoder: aom, vpx, rav1e, svt-av1")
	flags.IntVar(&cfg.Passes, "passes", cfg.Passes, "encode passes (1 or 2; only validated: aom and vpx always run two passes, rav1e and svt-av1 one)")
	flags.StringVar(&cfg.VideoParams, "video-params", cfg.VideoParams, "extra encoder parameters, split on whitespace (appended for svt-av1 only; other encoders ignore them)")
	flags.StringVar(&cfg.FFmpegParams, "ffmpeg-params", cfg.FFmpegParams, "extra ffmpeg parameters (kept in the config file; not applied to any command)")
	flags.StringVar(&cfg.AudioParams, "audio-params", cfg.AudioParams, "audio parameters (kept in the config file; audio is always stream-copied)")
	flags.StringVar(&cfg.SplitMethod, "split-method", cfg.SplitMethod, "pyscene, keyframe, or skip")
	flags.IntVar(&cfg.Threshold, "threshold", cfg.Threshold, "scene-change detection threshold")
	flags.IntVar(&cfg.MaxChunkLen, "max-chunk-len", cfg.MaxChunkLen, "maximum chunk length in seconds (0 disables densification)")
	flags.StringVar(&cfg.ScenesFile, "scenes-file", cfg.ScenesFile, "operator-supplied comma-separated cut list, overriding detection")
	flags.StringVar(&cfg.PixelFormat, "pixel-format", cfg.PixelFormat, "output pixel format")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "parallel chunk workers (0 auto-detects)")
	flags.BoolVar(&cfg.TargetQuality, "vmaf", cfg.TargetQuality, "enable target-quality search")
	flags.BoolVar(&cfg.VMAFPlots, "vmaf-plots", cfg.VMAFPlots, "accepted for compatibility; no probe plots are written")
	flags.Float64Var(&cfg.VMAFTarget, "vmaf-target", cfg.VMAFTarget, "target perceptual score for target-quality search")
	flags.Float64Var(&cfg.QPMin, "qp-min", cfg.QPMin, "minimum quantizer for target-quality search")
	flags.Float64Var(&cfg.QPMax, "qp-max", cfg.QPMax, "maximum quantizer for target-quality search")
	flags.IntVar(&cfg.Steps, "steps", cfg.Steps, "target-quality candidate count (>= 4)")
	flags.BoolVar(&cfg.Resume, "resume", cfg.Resume, "resume an interrupted run from its temp directory")
	flags.BoolVar(&cfg.KeepTemp, "keep-temp", cfg.KeepTemp, "keep the temp directory after a successful run")
	flags.BoolVar(&cfg.NoCheck, "no-check", cfg.NoCheck, "skip post-encode frame-count verification")
	flags.BoolVar(&cfg.Boost, "boost", cfg.Boost, "enable brightness-boost quantizer adjustment")
	flags.IntVar(&cfg.BoostLimit, "boost-limit", cfg.BoostLimit, "maximum quantizer reduction applied by brightness boost")
	flags.IntVar(&cfg.BoostRange, "boost-range", cfg.BoostRange, "brightness range brightness boost scales across")
	flags.StringVar(&configPath, "config", "", "JSON or YAML config file (read if present, written if absent)")
	flags.StringVar(&logDir, "log-dir", "", "accepted for compatibility; no log file is written (logs go to stderr)")
	flags.StringVar(&historyDB, "history-db", "", "optional sqlite run-history database path")
	flags.BoolVar(&jsonOutput, "json", false, "emit NDJSON progress events instead of terminal output")

	return cmd
}

func runEncode(cmd *cobra.Command, cfg config.JobConfig, configPath, logDir, historyDB string, jsonOutput bool) error {
	if cfg.OutputPath == "" {
		return fmt.Errorf("--output is required")
	}
	if err := checkRequiredBinaries(); err != nil {
		return err
	}

	// Config precedence: every key present in an existing config file
	// overrides the command-line value for that key, flags included; input,
	// output, temp dir and the boolean switches always come from the command
	// line. An absent config file is written from the command-line settings.
	if configPath != "" {
		merged, err := config.Load(configPath, cfg)
		if err != nil {
			return err
		}
		merged.Input, merged.OutputPath, merged.TempDir = cfg.Input, cfg.OutputPath, cfg.TempDir
		merged.Resume, merged.KeepTemp, merged.NoCheck = cfg.Resume, cfg.KeepTemp, cfg.NoCheck
		merged.TargetQuality, merged.VMAF, merged.VMAFPlots, merged.Boost = cfg.TargetQuality, cfg.VMAF, cfg.VMAFPlots, cfg.Boost
		cfg = merged
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	inputs, err := discovery.ExpandInputs([]string{cfg.Input})
	if err != nil {
		return err
	}

	logger := logging.New(logging.DefaultConfig())

	var rep reporter.Reporter
	if jsonOutput {
		rep = reporter.NewJSONReporter()
	} else {
		rep = reporter.NewTerminalReporter()
	}

	var history *chunk.History
	if historyDB != "" {
		history, err = chunk.OpenHistory(historyDB)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer history.Close()
	}

	sysInfo := util.GetSystemInfo()
	rep.Hardware(reporter.HardwareSummary{Hostname: sysInfo.Hostname, Cores: sysInfo.NumCPU, Workers: cfg.Workers})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		rep.Warning("interrupt received, cancelling in-flight work")
		cancel()
	}()

	for i, input := range inputs {
		jobCfg := cfg
		jobCfg.Input = input
		jobCfg.OutputPath = outputPathFor(cfg.OutputPath, input, len(inputs))
		jobCfg.TempDir = tempDirFor(cfg.TempDir, input, len(inputs))

		if len(inputs) > 1 {
			rep.FileProgress(reporter.FileProgressContext{CurrentFile: i + 1, TotalFiles: len(inputs)})
		}

		runID := chunk.NewRunID()
		startedAt := time.Now()
		driver := pipeline.NewDriver(jobCfg, rep, mediatool.Score)
		err := driver.Run(ctx)

		if history != nil {
			outcome := chunk.OutcomeOK
			if err != nil {
				outcome = chunk.OutcomeFailed
				if ctx.Err() != nil {
					outcome = chunk.OutcomeInterrupted
				}
			}
			_ = history.Record(chunk.HistoryRecord{
				ID:         runID,
				InputPath:  input,
				Encoder:    jobCfg.Encoder,
				Outcome:    outcome,
				StartedAt:  startedAt,
				FinishedAt: time.Now(),
			})
		}

		if err != nil {
			rep.Error(reporter.ReporterError{Title: "encode failed", Message: err.Error(), Context: input})
			return err
		}
	}

	logger.Info("encode complete", "inputs", len(inputs))
	rep.OperationComplete("all inputs encoded")
	return nil
}

func outputPathFor(output, input string, total int) string {
	if total <= 1 {
		return output
	}
	return filepath.Join(output, filepath.Base(input))
}

func tempDirFor(tempDir, input string, total int) string {
	if total <= 1 {
		return tempDir
	}
	return filepath.Join(tempDir, filepath.Base(input))
}

func checkRequiredBinaries() error {
	for _, bin := range requiredBinaries {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("required executable %q not found on PATH", bin)
		}
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	var dbPath string
	var n int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent run history from a history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			h, err := chunk.OpenHistory(dbPath)
			if err != nil {
				return err
			}
			defer h.Close()

			records, err := h.Recent(n)
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%s (%s)\t%s\t%s\t%s\n",
					r.StartedAt.Format("2006-01-02 15:04:05"), humanize.Time(r.StartedAt),
					r.InputPath, r.Encoder, r.Outcome)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the history database")
	cmd.Flags().IntVar(&n, "n", 20, "number of runs to show")
	return cmd
}
