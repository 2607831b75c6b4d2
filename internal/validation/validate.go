package validation

import (
	"fmt"
	"math"
)

// VerifyChunk compares a split chunk's authoritative source frame count
// against its encoded output. When noCheck is true, the frame comparison is
// skipped and the chunk is considered verified on source frames alone, per
// the operator-supplied no_check switch.
func VerifyChunk(analyzer MediaAnalyzer, name, splitPath, encodedPath string, sourceFrames uint64, noCheck bool) (*Result, error) {
	result := &Result{
		ChunkName:    name,
		SourceFrames: sourceFrames,
	}

	if noCheck {
		result.EncodedFrames = sourceFrames
		result.FramesMatch = true
		result.DurationOK = true
		result.Message = "frame check skipped (no_check)"
		return result, nil
	}

	encodedFrames, err := analyzer.FrameCount(encodedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to count frames in %s: %w", encodedPath, err)
	}
	result.EncodedFrames = encodedFrames
	result.FramesMatch = encodedFrames == sourceFrames

	srcDur, srcErr := analyzer.DurationSecs(splitPath)
	encDur, encErr := analyzer.DurationSecs(encodedPath)
	if srcErr == nil && encErr == nil {
		result.SourceDuration = srcDur
		result.EncodedDuration = encDur
		result.DurationOK = math.Abs(srcDur-encDur) <= durationToleranceSecs
	} else {
		// Duration probing is best-effort; frame count is authoritative.
		result.DurationOK = true
	}

	if result.FramesMatch {
		result.Message = fmt.Sprintf("%d frames match", sourceFrames)
	} else {
		result.Message = fmt.Sprintf("frame mismatch: source %d, encoded %d", sourceFrames, encodedFrames)
	}

	return result, nil
}
