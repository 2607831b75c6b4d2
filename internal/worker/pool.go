package worker

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/five82/avchunk/internal/chunk"
	"github.com/five82/avchunk/internal/encoder"
	coreerrors "github.com/five82/avchunk/internal/errors"
	"github.com/five82/avchunk/internal/mediatool"
	"github.com/five82/avchunk/internal/tq"
	"github.com/five82/avchunk/internal/validation"
)

// Counter is a mutex-guarded live progress tally the pool updates as
// chunks complete, safe to read from a separate reporting goroutine while
// workers are still running.
type Counter struct {
	mu    sync.Mutex
	value Progress
}

// NewCounter seeds a Counter with a job's totals, used on resume to start
// from the frames already verified rather than from zero.
func NewCounter(total Progress) *Counter {
	return &Counter{value: total}
}

func (c *Counter) addChunk(frames int, bytes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value.ChunksComplete++
	c.value.FramesComplete += frames
	c.value.BytesComplete += bytes
}

// Snapshot returns the current progress value.
func (c *Counter) Snapshot() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// ChunkJob is everything a worker needs to process one chunk end to end.
type ChunkJob struct {
	Name        string
	SplitPath   string
	EncodedPath string
	SourceFrames uint64
}

// MediaAnalyzer is the probing surface the pool needs: frame counting for
// target-quality scoring and post-encode verification.
type MediaAnalyzer interface {
	validation.MediaAnalyzer
}

// ScoreFunc computes a perceptual quality score for an encoded probe
// output, used by the target-quality search. Implementations typically
// run a reference-comparison tool (e.g. an SSIMULACRA2 or VMAF binary)
// between the split source and the probe's encoded output.
type ScoreFunc func(ctx context.Context, sourcePath, probePath string) (float64, error)

// PoolConfig bundles everything a Pool needs to run one job's chunks.
type PoolConfig struct {
	Workers      int
	Encoder      encoder.Identity
	Threads      int
	ExtraArgs    []string
	PixelFormat  string
	TQ           *tq.Config // nil disables target-quality search, using Quantizer as a fixed value
	Quantizer    float64
	Boost        bool // enable brightness-boost quantizer adjustment
	BoostLimit   int
	BoostRange   int
	NoVerify     bool
	Analyzer     MediaAnalyzer
	Score        ScoreFunc
	Store        *chunk.Store
	OnChunkDone  func(name string, result EncodeResult)
}

// Pool drives bounded-parallel chunk encoding. Run dispatches jobs
// largest-first (the caller is expected to have already sorted jobs that
// way, per the chunk store's enumeration order), up to cfg.Workers
// concurrent chunks, and stops dispatching new work as soon as the
// context is cancelled or any chunk fails.
type Pool struct {
	cfg     PoolConfig
	Counter *Counter
}

// NewPool builds a Pool seeded with initial progress (e.g. frames already
// verified on resume).
func NewPool(cfg PoolConfig, initial Progress) *Pool {
	return &Pool{cfg: cfg, Counter: NewCounter(initial)}
}

// Run processes every job in jobs, returning the first error encountered
// (if any). On error or context cancellation, in-flight child process
// groups are killed and no further chunks are dispatched; the chunk
// store's journal is left exactly as it stood at the last successful
// MarkVerified call, so a subsequent Resume run picks up cleanly.
func (p *Pool) Run(ctx context.Context, jobs []ChunkJob) error {
	g, gctx := errgroup.WithContext(ctx)
	sem := NewSemaphore(p.cfg.Workers)

	for _, job := range jobs {
		job := job
		select {
		case <-sem.Chan():
		case <-gctx.Done():
			return g.Wait()
		}

		g.Go(func() error {
			defer sem.Release()
			result := p.processChunk(gctx, job)
			if p.cfg.OnChunkDone != nil {
				p.cfg.OnChunkDone(job.Name, result)
			}
			if result.Error != nil {
				return result.Error
			}
			p.Counter.addChunk(result.Frames, result.Size)
			return nil
		})
	}

	return g.Wait()
}

func (p *Pool) processChunk(ctx context.Context, job ChunkJob) EncodeResult {
	quantizer := p.cfg.Quantizer
	var probes []tq.Probe

	if p.cfg.TQ != nil {
		q, ps, err := tq.Search(p.cfg.TQ, func(candidate float64) (float64, error) {
			return p.probeScore(ctx, job, candidate)
		})
		if err != nil {
			return EncodeResult{Error: coreerrors.NewEncodeError(job.Name, err)}
		}
		quantizer = q
		probes = ps
	}
	_ = probes

	if p.cfg.Boost {
		brightness, err := mediatool.AverageBrightness(job.SplitPath)
		if err != nil {
			return EncodeResult{Error: coreerrors.NewEncodeError(job.Name, err)}
		}
		quantizer = encoder.BoostQuantizer(quantizer, brightness, p.cfg.BoostLimit, p.cfg.BoostRange)
	}

	cfg := &encoder.Config{
		Identity:     p.cfg.Encoder,
		Source:       job.SplitPath,
		Output:       job.EncodedPath,
		PixelFormat:  p.cfg.PixelFormat,
		Quantizer:    quantizer,
		Threads:      p.cfg.Threads,
		ExtraArgs:    p.cfg.ExtraArgs,
		FirstPassLog: job.EncodedPath + ".stats",
	}

	stages, err := encoder.BuildStages(cfg)
	if err != nil {
		return EncodeResult{Error: coreerrors.NewEncodeError(job.Name, err)}
	}

	if err := runStages(ctx, stages); err != nil {
		return EncodeResult{Error: err}
	}

	// Chunks not yet in the journal carry no source frame count; count the
	// split file so verification and the journal use the real value.
	sourceFrames := job.SourceFrames
	if sourceFrames == 0 {
		n, err := p.cfg.Analyzer.FrameCount(job.SplitPath)
		if err != nil {
			return EncodeResult{Error: coreerrors.NewVerifyError(job.Name, err.Error())}
		}
		sourceFrames = n
	}

	result, err := validation.VerifyChunk(p.cfg.Analyzer, job.Name, job.SplitPath, job.EncodedPath, sourceFrames, p.cfg.NoVerify)
	if err != nil {
		return EncodeResult{Error: coreerrors.NewVerifyError(job.Name, err.Error())}
	}
	if !result.Passed() {
		return EncodeResult{VerifyDetail: result.Message, Error: coreerrors.NewVerifyError(job.Name, result.Message)}
	}

	if err := p.cfg.Store.MarkVerified(job.Name, result.EncodedFrames); err != nil {
		return EncodeResult{Error: coreerrors.NewIOError("failed to update resume journal", err)}
	}

	return EncodeResult{Frames: int(result.EncodedFrames), VerifyPassed: true, VerifyDetail: result.Message}
}

// probeScore encodes job at candidate quantizer into a scratch file and
// scores it, used by the target-quality search's probe callback.
func (p *Pool) probeScore(ctx context.Context, job ChunkJob, candidate float64) (float64, error) {
	probePath := job.EncodedPath + ".probe"

	cfg := &encoder.Config{
		Identity:     p.cfg.Encoder,
		Source:       job.SplitPath,
		Output:       probePath,
		PixelFormat:  p.cfg.PixelFormat,
		Quantizer:    candidate,
		Threads:      p.cfg.Threads,
		ExtraArgs:    p.cfg.ExtraArgs,
		FirstPassLog: probePath + ".stats",
	}

	stages, err := encoder.BuildStages(cfg)
	if err != nil {
		return 0, err
	}
	if err := runStages(ctx, stages); err != nil {
		return 0, err
	}
	return p.cfg.Score(ctx, job.SplitPath, probePath)
}

// runStages executes stages in order, each in its own process group so
// cancellation can kill the whole tree (an encoder may spawn helper
// processes) rather than leaving orphans behind.
func runStages(ctx context.Context, stages []encoder.Stage) error {
	for _, stage := range stages {
		if err := runStage(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}

// runStage runs one stage as two processes: the decode half's stdout is
// piped directly into the encode half's stdin, mirroring the shell pipe
// ("ffmpeg ... | aomenc ...") the command line represents. Each half gets
// its own process group so a cancellation can kill both trees even if one
// of them spawns helpers of its own.
func runStage(ctx context.Context, stage encoder.Stage) error {
	decodeCmd := stage.DecodeCmd()
	encodeCmd := stage.EncodeCmd()
	decodeCmd.SysProcAttr = setsid()
	encodeCmd.SysProcAttr = setsid()

	pipe, err := decodeCmd.StdoutPipe()
	if err != nil {
		return coreerrors.NewCommandStartError(stage.DecodeArgv[0], err)
	}
	encodeCmd.Stdin = pipe

	var decodeStderr, encodeStderr strings.Builder
	decodeCmd.Stderr = &decodeStderr
	encodeCmd.Stderr = &encodeStderr

	if err := decodeCmd.Start(); err != nil {
		return coreerrors.NewCommandStartError(stage.DecodeArgv[0], err)
	}
	if err := encodeCmd.Start(); err != nil {
		killProcessGroup(decodeCmd.Process.Pid)
		_ = decodeCmd.Wait()
		return coreerrors.NewCommandStartError(stage.EncodeArgv[0], err)
	}

	done := make(chan error, 1)
	go func() {
		decodeErr := decodeCmd.Wait()
		encodeErr := encodeCmd.Wait()
		if encodeErr != nil {
			done <- encodeErr
			return
		}
		done <- decodeErr
	}()

	select {
	case <-ctx.Done():
		killProcessGroup(decodeCmd.Process.Pid)
		killProcessGroup(encodeCmd.Process.Pid)
		<-done
		return coreerrors.NewInterruptError()
	case err := <-done:
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				return coreerrors.NewCommandFailedError(stage.EncodeArgv[0], exitErr.ExitCode(), encodeStderr.String())
			}
			return coreerrors.NewCommandWaitError(stage.EncodeArgv[0], err)
		}
		return nil
	}
}

// killProcessGroup sends SIGKILL to an entire process group, so a stage
// that forked helper processes (as some encoders do) doesn't leave them
// running after cancellation.
func killProcessGroup(pid int) {
	_ = unix.Kill(-pid, unix.SIGKILL)
}

// setsid puts each stage in its own process group (leader = the stage's
// own pid) so killProcessGroup can signal the whole tree instead of just
// the direct child.
func setsid() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
