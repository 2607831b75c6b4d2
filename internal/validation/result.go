package validation

// Result is the outcome of verifying one encoded chunk against its source.
type Result struct {
	ChunkName      string
	SourceFrames   uint64
	EncodedFrames  uint64
	FramesMatch    bool
	DurationOK     bool
	SourceDuration float64
	EncodedDuration float64
	Message        string
}

// durationToleranceSecs is the maximum allowed duration drift between the
// split source chunk and its encoded counterpart.
const durationToleranceSecs = 1.0

// Passed reports whether the chunk verifies cleanly.
func (r *Result) Passed() bool {
	return r.FramesMatch && r.DurationOK
}
