package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/five82/avchunk/internal/util"
)

// JSONReporter outputs NDJSON events for machine consumption.
type JSONReporter struct {
	writer             io.Writer
	mu                 sync.Mutex
	lastProgressBucket int
	lastProgressTime   time.Time
}

// NewJSONReporter creates a new JSON reporter that writes to stdout.
func NewJSONReporter() *JSONReporter {
	return &JSONReporter{
		writer:             os.Stdout,
		lastProgressBucket: -1,
	}
}

// NewJSONReporterWithWriter creates a JSON reporter with a custom writer.
func NewJSONReporterWithWriter(w io.Writer) *JSONReporter {
	return &JSONReporter{
		writer:             w,
		lastProgressBucket: -1,
	}
}

func (r *JSONReporter) timestamp() int64 {
	return time.Now().Unix()
}

func (r *JSONReporter) write(v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(r.writer, string(data))
}

func (r *JSONReporter) Hardware(summary HardwareSummary) {
	r.write(map[string]interface{}{
		"type":      "hardware",
		"hostname":  summary.Hostname,
		"cores":     summary.Cores,
		"workers":   summary.Workers,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) Initialization(summary InitializationSummary) {
	r.write(map[string]interface{}{
		"type":              "initialization",
		"input_file":        summary.InputFile,
		"output_file":       summary.OutputFile,
		"duration":          summary.Duration,
		"resolution":        summary.Resolution,
		"total_frames":      summary.TotalFrames,
		"audio_description": summary.AudioDescription,
		"timestamp":         r.timestamp(),
	})
}

func (r *JSONReporter) StageProgress(update StageProgress) {
	event := map[string]interface{}{
		"type":      "stage_progress",
		"stage":     update.Stage,
		"percent":   update.Percent,
		"message":   update.Message,
		"timestamp": r.timestamp(),
	}
	if update.ETA != nil {
		event["eta_seconds"] = int64(update.ETA.Seconds())
	}
	r.write(event)
}

func (r *JSONReporter) EncodingConfig(summary EncodingConfigSummary) {
	r.write(map[string]interface{}{
		"type":           "encoding_config",
		"encoder":        summary.Encoder,
		"passes":         summary.Passes,
		"split_method":   summary.SplitMethod,
		"threshold":      summary.Threshold,
		"pixel_format":   summary.PixelFormat,
		"audio_params":   summary.AudioParams,
		"target_quality": summary.TargetQuality,
		"workers":        summary.Workers,
		"timestamp":      r.timestamp(),
	})
}

func (r *JSONReporter) EncodingStarted(totalFrames uint64) {
	r.mu.Lock()
	r.lastProgressBucket = -1
	r.lastProgressTime = time.Time{}
	r.mu.Unlock()

	r.write(map[string]interface{}{
		"type":         "encoding_started",
		"total_frames": totalFrames,
		"timestamp":    r.timestamp(),
	})
}

func (r *JSONReporter) EncodingProgress(progress ProgressSnapshot) {
	const progressBucketSize = 1
	const minInterval = 5 * time.Second

	bucket := int(progress.Percent) / progressBucketSize
	now := time.Now()

	r.mu.Lock()
	intervalElapsed := r.lastProgressTime.IsZero() || now.Sub(r.lastProgressTime) >= minInterval
	shouldEmit := bucket > r.lastProgressBucket || intervalElapsed || progress.Percent >= 99.0

	if !shouldEmit {
		r.mu.Unlock()
		return
	}

	if bucket > r.lastProgressBucket {
		r.lastProgressBucket = bucket
	}
	r.lastProgressTime = now
	r.mu.Unlock()

	r.write(map[string]interface{}{
		"type":            "encoding_progress",
		"current_frame":   progress.CurrentFrame,
		"total_frames":    progress.TotalFrames,
		"percent":         progress.Percent,
		"speed":           progress.Speed,
		"fps":             progress.FPS,
		"eta_seconds":     int64(progress.ETA.Seconds()),
		"chunks_complete": progress.ChunksComplete,
		"chunks_total":    progress.ChunksTotal,
		"timestamp":       r.timestamp(),
	})
}

func (r *JSONReporter) ValidationComplete(summary ValidationSummary) {
	steps := make([]map[string]interface{}, len(summary.Steps))
	for i, step := range summary.Steps {
		steps[i] = map[string]interface{}{
			"step":    step.Name,
			"passed":  step.Passed,
			"details": step.Details,
		}
	}

	r.write(map[string]interface{}{
		"type":              "validation_complete",
		"validation_passed": summary.Passed,
		"validation_steps":  steps,
		"timestamp":         r.timestamp(),
	})
}

func (r *JSONReporter) EncodingComplete(summary EncodingOutcome) {
	reduction := util.CalculateSizeReduction(summary.OriginalSize, summary.EncodedSize)

	r.write(map[string]interface{}{
		"type":                   "encoding_complete",
		"input_file":             summary.InputFile,
		"output_file":            summary.OutputFile,
		"original_size":          summary.OriginalSize,
		"encoded_size":           summary.EncodedSize,
		"chunk_count":            summary.ChunkCount,
		"average_speed":          summary.AverageSpeed,
		"output_path":            summary.OutputPath,
		"duration_seconds":       int64(summary.TotalTime.Seconds()),
		"size_reduction_percent": reduction,
		"timestamp":              r.timestamp(),
	})
}

func (r *JSONReporter) Warning(message string) {
	r.write(map[string]interface{}{
		"type":      "warning",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) Error(err ReporterError) {
	r.write(map[string]interface{}{
		"type":       "error",
		"title":      err.Title,
		"message":    err.Message,
		"context":    err.Context,
		"suggestion": err.Suggestion,
		"timestamp":  r.timestamp(),
	})
}

func (r *JSONReporter) OperationComplete(message string) {
	r.write(map[string]interface{}{
		"type":      "operation_complete",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) BatchStarted(info BatchStartInfo) {
	r.write(map[string]interface{}{
		"type":        "batch_started",
		"total_files": info.TotalFiles,
		"file_list":   info.FileList,
		"output_dir":  info.OutputDir,
		"timestamp":   r.timestamp(),
	})
}

func (r *JSONReporter) FileProgress(context FileProgressContext) {
	r.write(map[string]interface{}{
		"type":         "file_progress",
		"current_file": context.CurrentFile,
		"total_files":  context.TotalFiles,
		"timestamp":    r.timestamp(),
	})
}

func (r *JSONReporter) BatchComplete(summary BatchSummary) {
	reduction := util.CalculateSizeReduction(summary.TotalOriginalSize, summary.TotalEncodedSize)

	r.write(map[string]interface{}{
		"type":                         "batch_complete",
		"successful_count":             summary.SuccessfulCount,
		"total_files":                  summary.TotalFiles,
		"total_original_size":          summary.TotalOriginalSize,
		"total_encoded_size":           summary.TotalEncodedSize,
		"total_duration_seconds":       int64(summary.TotalDuration.Seconds()),
		"total_size_reduction_percent": reduction,
		"timestamp":                    r.timestamp(),
	})
}

func (r *JSONReporter) Verbose(message string) {
	r.write(map[string]interface{}{
		"type":      "verbose",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}
