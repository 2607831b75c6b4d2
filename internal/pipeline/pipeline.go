// Package pipeline drives one source file through the full chunked
// re-encode lifecycle: New, Setup, Split, Audio, Queue, Encode, Concat,
// Done. A Resume run re-enters at Queue, skipping Setup/Split/Audio
// since the chunk store's on-disk layout and resume journal already
// describe them.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/five82/avchunk/internal/chunk"
	"github.com/five82/avchunk/internal/config"
	"github.com/five82/avchunk/internal/encoder"
	coreerrors "github.com/five82/avchunk/internal/errors"
	"github.com/five82/avchunk/internal/mediatool"
	"github.com/five82/avchunk/internal/reporter"
	"github.com/five82/avchunk/internal/splitter"
	"github.com/five82/avchunk/internal/tq"
	"github.com/five82/avchunk/internal/worker"
)

// Stage is one step of the driver's state machine.
type Stage int

const (
	StageNew Stage = iota
	StageSetup
	StageSplit
	StageAudio
	StageQueue
	StageEncode
	StageConcat
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageNew:
		return "new"
	case StageSetup:
		return "setup"
	case StageSplit:
		return "split"
	case StageAudio:
		return "audio"
	case StageQueue:
		return "queue"
	case StageEncode:
		return "encode"
	case StageConcat:
		return "concat"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// mediaAnalyzer adapts mediatool's package-level functions to
// validation.MediaAnalyzer and worker.MediaAnalyzer.
type mediaAnalyzer struct{}

func (mediaAnalyzer) FrameCount(path string) (uint64, error)    { return mediatool.FrameCount(path) }
func (mediaAnalyzer) DurationSecs(path string) (float64, error) { return mediatool.DurationSecs(path) }

// Driver runs one source job through the full pipeline.
type Driver struct {
	Cfg      config.JobConfig
	Reporter reporter.Reporter
	Score    worker.ScoreFunc // nil disables target-quality search regardless of Cfg.TargetQuality

	stage Stage
	store *chunk.Store
}

// NewDriver builds a Driver for one job. rep may be nil, in which case a
// NullReporter is used.
func NewDriver(cfg config.JobConfig, rep reporter.Reporter, score worker.ScoreFunc) *Driver {
	if rep == nil {
		rep = reporter.NullReporter{}
	}
	return &Driver{Cfg: cfg, Reporter: rep, Score: score, stage: StageNew}
}

// Run executes the driver's state machine to completion. If cfg.Resume is
// set, Setup/Split/Audio are skipped and execution re-enters at Queue
// using the chunk store's existing on-disk layout and resume journal.
func (d *Driver) Run(ctx context.Context) error {
	mode := chunk.Fresh
	if d.Cfg.Resume {
		mode = chunk.Resume
	}

	store, err := chunk.Open(d.Cfg.TempDir, mode)
	if err != nil {
		return coreerrors.NewIOError("failed to open chunk store", err)
	}
	d.store = store
	started := time.Now()

	if !d.Cfg.Resume {
		d.stage = StageSetup
		if err := d.runSetup(ctx); err != nil {
			return err
		}

		d.stage = StageSplit
		if err := d.runSplit(ctx); err != nil {
			return err
		}

		d.stage = StageAudio
		if err := d.runAudio(ctx); err != nil {
			return err
		}
	}

	d.stage = StageQueue
	jobs, initial, err := d.runQueue()
	if err != nil {
		return err
	}

	d.stage = StageEncode
	if err := d.runEncode(ctx, jobs, initial); err != nil {
		return err
	}

	d.stage = StageConcat
	if err := d.runConcat(ctx); err != nil {
		return err
	}

	d.stage = StageDone
	d.reportOutcome(started)
	d.report(StageDone, 100, "done")
	return nil
}

// reportOutcome gathers the final input/output sizes, chunk count, and
// elapsed wall time and hands them to the reporter's EncodingComplete.
// Size stats are best-effort: a stat failure leaves the corresponding
// field at zero rather than failing an otherwise-successful run.
func (d *Driver) reportOutcome(started time.Time) {
	var originalSize, encodedSize uint64
	if info, err := os.Stat(d.Cfg.Input); err == nil {
		originalSize = uint64(info.Size())
	}
	if info, err := os.Stat(d.Cfg.OutputPath); err == nil {
		encodedSize = uint64(info.Size())
	}

	chunkCount := 0
	if chunks, err := d.store.EnumerateChunks(); err == nil {
		chunkCount = len(chunks)
	}

	elapsed := time.Since(started)
	var avgSpeed float32
	if duration, err := mediatool.DurationSecs(d.Cfg.Input); err == nil && elapsed.Seconds() > 0 {
		avgSpeed = float32(duration / elapsed.Seconds())
	}

	d.Reporter.EncodingComplete(reporter.EncodingOutcome{
		InputFile:    d.Cfg.Input,
		OutputFile:   filepath.Base(d.Cfg.OutputPath),
		OriginalSize: originalSize,
		EncodedSize:  encodedSize,
		ChunkCount:   chunkCount,
		TotalTime:    elapsed,
		AverageSpeed: avgSpeed,
		OutputPath:   d.Cfg.OutputPath,
	})
}

func (d *Driver) report(s Stage, percent float32, message string) {
	d.Reporter.StageProgress(reporter.StageProgress{Stage: s.String(), Percent: percent, Message: message})
}

func (d *Driver) runSetup(ctx context.Context) error {
	d.report(StageSetup, 0, "probing source")

	total, err := mediatool.FastFrameCount(d.Cfg.Input)
	if err != nil {
		total, err = mediatool.FrameCount(d.Cfg.Input)
		if err != nil {
			return coreerrors.NewVideoInfoError(fmt.Sprintf("failed to determine frame count: %v", err))
		}
	}
	if err := d.store.SetTotal(total); err != nil {
		return coreerrors.NewIOError("failed to record total frame count", err)
	}

	duration, _ := mediatool.DurationSecs(d.Cfg.Input)
	d.Reporter.Initialization(reporter.InitializationSummary{
		InputFile:   d.Cfg.Input,
		OutputFile:  d.Cfg.OutputPath,
		Duration:    time.Duration(duration * float64(time.Second)).String(),
		TotalFrames: total,
	})

	return nil
}

func (d *Driver) runSplit(ctx context.Context) error {
	d.report(StageSplit, 0, "planning cuts")

	method, err := parseSplitMethod(d.Cfg.SplitMethod)
	if err != nil {
		return coreerrors.NewSplitError("invalid split method", err)
	}

	fpsNum, fpsDen, err := mediatool.FrameRate(d.Cfg.Input)
	if err != nil {
		return coreerrors.NewSplitError("failed to determine frame rate", err)
	}

	total, _ := d.store.LoadProgress()

	var plan *splitter.Plan
	if d.Cfg.ScenesFile != "" {
		plan, err = loadExplicitScenes(d.Cfg.ScenesFile, int(total))
	} else {
		plan, err = splitter.LoadOrDetect(d.store.Root, method, d.Cfg.Input, int(total), fpsNum, fpsDen, float64(d.Cfg.MaxChunkLen), d.Cfg.Threshold)
	}
	if err != nil {
		return coreerrors.NewSplitError("failed to plan cut points", err)
	}

	fps := float64(fpsNum) / float64(fpsDen)
	for i, start := range plan.Cuts {
		end := plan.TotalFrames
		if i+1 < len(plan.Cuts) {
			end = plan.Cuts[i+1]
		}
		name := chunkName(i)
		dest := d.store.SplitPath(name)
		if err := mediatool.SplitChunk(ctx, d.Cfg.Input, dest, start, end, fps); err != nil {
			return coreerrors.NewSplitError(fmt.Sprintf("failed to split %s", name), err)
		}
	}

	return nil
}

func (d *Driver) runAudio(ctx context.Context) error {
	hasAudio, err := mediatool.HasAudio(d.Cfg.Input)
	if err != nil || !hasAudio {
		return nil
	}

	d.report(StageAudio, 0, "extracting audio")
	audioPath := filepath.Join(d.store.Root, "audio.mkv")
	if err := mediatool.ExtractAudio(ctx, d.Cfg.Input, audioPath); err != nil {
		return coreerrors.NewOperationFailedError("failed to extract audio", err)
	}
	return nil
}

func (d *Driver) runQueue() ([]worker.ChunkJob, worker.Progress, error) {
	d.report(StageQueue, 0, "enumerating chunks")

	chunks, err := d.store.EnumerateChunks()
	if err != nil {
		return nil, worker.Progress{}, coreerrors.NewIOError("failed to enumerate chunks", err)
	}

	total, initialFrames := d.store.LoadProgress()
	initial := worker.Progress{
		ChunksTotal: len(chunks),
		FramesTotal: int(total),
		FramesComplete: int(initialFrames),
	}

	var jobs []worker.ChunkJob
	for _, c := range chunks {
		if c.State == chunk.Verified {
			initial.ChunksComplete++
			continue
		}
		jobs = append(jobs, worker.ChunkJob{
			Name:         c.Name,
			SplitPath:    c.SplitPath,
			EncodedPath:  c.EncodedPath,
			SourceFrames: c.SourceFrames,
		})
	}

	return jobs, initial, nil
}

func (d *Driver) runEncode(ctx context.Context, jobs []worker.ChunkJob, initial worker.Progress) error {
	if len(jobs) == 0 {
		return nil
	}

	id, err := encoder.ParseIdentity(d.Cfg.Encoder)
	if err != nil {
		return coreerrors.NewConfigError(err.Error())
	}

	workers := d.Cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var tqCfg *tq.Config
	if d.Cfg.TargetQuality && d.Score != nil {
		tqCfg = &tq.Config{Target: d.Cfg.VMAFTarget, QPMin: d.Cfg.QPMin, QPMax: d.Cfg.QPMax, Steps: d.Cfg.Steps}
	}

	var pool *worker.Pool
	var stepsMu sync.Mutex
	var steps []reporter.ValidationStep

	pool = worker.NewPool(worker.PoolConfig{
		Workers:     workers,
		Encoder:     id,
		Threads:     runtimeThreadsFor(id, workers),
		ExtraArgs:   strings.Fields(d.Cfg.VideoParams),
		PixelFormat: d.Cfg.PixelFormat,
		Quantizer:   d.Cfg.QPMax,
		TQ:          tqCfg,
		Boost:       d.Cfg.Boost,
		BoostLimit:  d.Cfg.BoostLimit,
		BoostRange:  d.Cfg.BoostRange,
		Score:       d.Score,
		NoVerify:    d.Cfg.NoCheck,
		Analyzer:    mediaAnalyzer{},
		Store:       d.store,
		OnChunkDone: func(name string, result worker.EncodeResult) {
			stepsMu.Lock()
			steps = append(steps, reporter.ValidationStep{Name: name, Passed: result.VerifyPassed, Details: result.VerifyDetail})
			stepsMu.Unlock()

			if result.Error == nil {
				cumulative := pool.Counter.Snapshot().FramesComplete + result.Frames
				d.Reporter.EncodingProgress(reporter.ProgressSnapshot{
					CurrentFrame: uint64(cumulative),
					TotalFrames:  uint64(initial.FramesTotal),
				})
			}
		},
	}, initial)

	d.Reporter.EncodingStarted(uint64(initial.FramesTotal))
	err = pool.Run(ctx, jobs)

	passed := err == nil
	d.Reporter.ValidationComplete(reporter.ValidationSummary{Passed: passed, Steps: steps})
	return err
}

func (d *Driver) runConcat(ctx context.Context) error {
	d.report(StageConcat, 0, "muxing output")

	chunks, err := d.store.EnumerateChunks()
	if err != nil {
		return coreerrors.NewConcatError("failed to enumerate chunks for concat", err)
	}

	encoded := make([]string, len(chunks))
	for i, c := range chunks {
		encoded[i] = c.EncodedPath
	}
	// EnumerateChunks returns largest-first; zero-padded chunk names sort
	// back into cut order.
	sort.Strings(encoded)

	audioPath := filepath.Join(d.store.Root, "audio.mkv")
	if _, err := os.Stat(audioPath); err != nil {
		audioPath = ""
	}

	if err := mediatool.Concat(ctx, encoded, audioPath, d.Cfg.OutputPath, d.store.Root); err != nil {
		return coreerrors.NewConcatError("concat failed", err)
	}

	if !d.Cfg.KeepTemp {
		_ = os.RemoveAll(d.store.Root)
	}

	return nil
}

func parseSplitMethod(s string) (splitter.Method, error) {
	switch s {
	case "pyscene", "scene", "scene-detect":
		return splitter.SceneDetect, nil
	case "keyframe", "keyframe-aligned":
		return splitter.KeyframeAligned, nil
	case "skip", "none":
		return splitter.Skip, nil
	default:
		return 0, fmt.Errorf("unknown split method %q", s)
	}
}

func chunkName(idx int) string {
	return fmt.Sprintf("chunk-%05d", idx)
}

// runtimeThreadsFor divides the logical CPUs evenly among workers, giving
// each worker at least 1 and at most 8 threads, rather than letting every
// worker request all cores. When workers exceeds the CPU count, each still
// gets 1 thread.
func runtimeThreadsFor(id encoder.Identity, workers int) int {
	cores := runtime.NumCPU()
	if workers <= 0 {
		workers = 1
	}
	per := cores / workers
	if per < 1 {
		per = 1
	}
	return int(math.Min(float64(per), 8))
}

func loadExplicitScenes(path string, totalFrames int) (*splitter.Plan, error) {
	cuts, err := splitter.ReadScenesFileForPlan(path)
	if err != nil {
		return nil, err
	}
	// Keep the Plan invariant: sorted, deduplicated, starting at frame 0,
	// every cut inside the source.
	sort.Ints(cuts)
	plan := &splitter.Plan{Cuts: []int{0}, TotalFrames: totalFrames}
	for _, c := range cuts {
		if c > plan.Cuts[len(plan.Cuts)-1] && c < totalFrames {
			plan.Cuts = append(plan.Cuts, c)
		}
	}
	return plan, nil
}
