// Package reporter provides progress reporting interfaces and implementations.
package reporter

import "time"

// HardwareSummary contains hardware information.
type HardwareSummary struct {
	Hostname string
	Cores    int
	Workers  int
}

// InitializationSummary describes the current source job before encoding.
type InitializationSummary struct {
	InputFile  string
	OutputFile string
	Duration   string
	Resolution string
	TotalFrames uint64
	AudioDescription string
}

// EncodingConfigSummary contains encoding configuration.
type EncodingConfigSummary struct {
	Encoder      string
	Passes       int
	SplitMethod  string
	Threshold    int
	PixelFormat  string
	AudioParams  string
	TargetQuality string
	Workers      int
}

// ProgressSnapshot contains worker-pool progress information.
type ProgressSnapshot struct {
	CurrentFrame   uint64
	TotalFrames    uint64
	Percent        float32
	Speed          float32
	FPS            float32
	ETA            time.Duration
	ChunksComplete int
	ChunksTotal    int
}

// ValidationSummary contains the per-chunk frame-count verification results.
type ValidationSummary struct {
	Passed bool
	Steps  []ValidationStep
}

// ValidationStep represents a single chunk's verification outcome.
type ValidationStep struct {
	Name    string
	Passed  bool
	Details string
}

// EncodingOutcome contains final job results.
type EncodingOutcome struct {
	InputFile    string
	OutputFile   string
	OriginalSize uint64
	EncodedSize  uint64
	ChunkCount   int
	TotalTime    time.Duration
	AverageSpeed float32
	OutputPath   string
}

// ReporterError contains error information.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// BatchStartInfo contains batch start metadata for multi-input runs.
type BatchStartInfo struct {
	TotalFiles int
	FileList   []string
	OutputDir  string
}

// FileProgressContext contains the current file index within a batch.
type FileProgressContext struct {
	CurrentFile int
	TotalFiles  int
}

// BatchSummary contains batch completion information.
type BatchSummary struct {
	SuccessfulCount   int
	TotalFiles        int
	TotalOriginalSize uint64
	TotalEncodedSize  uint64
	TotalDuration     time.Duration
	AverageSpeed      float32
	FileResults       []FileResult
}

// FileResult contains a per-file encoding result.
type FileResult struct {
	Filename  string
	Reduction float64
}

// StageProgress represents a pipeline driver stage transition or update.
type StageProgress struct {
	Stage   string
	Percent float32
	Message string
	ETA     *time.Duration
}
