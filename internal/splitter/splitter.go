// Package splitter turns one source file into an ordered list of cut
// points: frame numbers at which the chunk store cuts the source into
// independently encodable pieces.
package splitter

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Method selects how cut points are produced.
type Method int

const (
	SceneDetect Method = iota
	KeyframeAligned
	Skip
)

func (m Method) String() string {
	switch m {
	case SceneDetect:
		return "scene-detect"
	case KeyframeAligned:
		return "keyframe-aligned"
	case Skip:
		return "skip"
	default:
		return "unknown"
	}
}

// scdBinaryName is the external scene-change-detection helper this
// pipeline shells out to. It is never bundled: if it's missing, splitting
// fails rather than silently falling back to an empty cut list.
const scdBinaryName = "av-scd"

// maxCuts is the platform cap on cut points a downstream chunk-naming and
// dispatch scheme can comfortably handle; beyond it, coalescing merges
// the smallest gaps first while never discarding a cut next to a larger
// gap than its neighbor.
const maxCuts = 600

// Plan is the finished cut-point list for a source, always sorted and
// deduplicated, beginning with an implicit cut at frame 0.
type Plan struct {
	Cuts        []int
	TotalFrames int
}

// DetectCuts runs method's detection strategy, then densifies the result
// so no gap between consecutive cuts exceeds maxChunkSecs, and finally
// coalesces down to at most maxCuts entries if the detector over-produced.
// workDir receives keyframes.log when method is KeyframeAligned; it is
// ignored otherwise and may be empty.
func DetectCuts(method Method, sourcePath, workDir string, totalFrames int, fpsNum, fpsDen uint32, maxChunkSecs float64, sceneThreshold int) (*Plan, error) {
	var cuts []int
	var err error

	switch method {
	case SceneDetect:
		cuts, err = detectSceneCuts(sourcePath, totalFrames, fpsNum, fpsDen, sceneThreshold)
	case KeyframeAligned:
		cuts, err = detectKeyframeCuts(sourcePath, workDir, totalFrames, fpsNum, fpsDen)
	case Skip:
		cuts = []int{0}
	default:
		return nil, fmt.Errorf("unknown split method %v", method)
	}
	if err != nil {
		return nil, err
	}

	cuts = normalize(cuts, totalFrames)
	cuts = densify(cuts, totalFrames, fpsNum, fpsDen, maxChunkSecs)
	if len(cuts) > maxCuts {
		cuts = coalesce(cuts, totalFrames, maxCuts)
	}

	return &Plan{Cuts: cuts, TotalFrames: totalFrames}, nil
}

func detectSceneCuts(sourcePath string, totalFrames int, fpsNum, fpsDen uint32, threshold int) ([]int, error) {
	scdPath, err := exec.LookPath(scdBinaryName)
	if err != nil {
		return nil, fmt.Errorf("%s not found in PATH: %w", scdBinaryName, err)
	}

	tmp, err := os.CreateTemp("", "scenes-*.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to create scene-detect output file: %w", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	args := []string{
		"--input", sourcePath,
		"--output", tmp.Name(),
		"--fps-num", strconv.Itoa(int(fpsNum)),
		"--fps-den", strconv.Itoa(int(fpsDen)),
		"--total-frames", strconv.Itoa(totalFrames),
		"--threshold", strconv.Itoa(threshold),
	}

	cmd := exec.Command(scdPath, args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("scene detection failed: %w", err)
	}

	cuts, err := readScenesFile(tmp.Name())
	if err != nil {
		return nil, err
	}
	if len(normalize(cuts, totalFrames)) < 2 {
		return nil, fmt.Errorf("scene detection produced no cut points for %s", sourcePath)
	}
	return cuts, nil
}

// detectKeyframeCuts delegates to ffprobe's packet-flag stream to find the
// source's actual keyframe (IDR) positions, writes them to keyframes.log in
// workDir, and returns them as candidate cut points. If the probe finds too
// few keyframes to produce usable chunks (a source encoded with a very long
// GOP), it falls back to fixed-duration spacing instead.
func detectKeyframeCuts(sourcePath, workDir string, totalFrames int, fpsNum, fpsDen uint32) ([]int, error) {
	cuts, err := probeKeyframes(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("keyframe probe failed: %w", err)
	}

	if workDir != "" {
		if err := writeKeyframesLog(filepath.Join(workDir, "keyframes.log"), cuts); err != nil {
			return nil, err
		}
	}

	if len(cuts) < 2 {
		return keyframeCuts(totalFrames, fpsNum, fpsDen, chunkDurationForResolution(totalFrames)), nil
	}
	return cuts, nil
}

// probeKeyframes asks ffprobe for every packet's flags in decode order and
// records the index of each one flagged 'K' (a keyframe/IDR packet).
func probeKeyframes(sourcePath string) ([]int, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "packet=flags",
		"-of", "csv=p=0",
		sourcePath,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe keyframe probe failed on %s: %w", sourcePath, err)
	}

	var cuts []int
	for i, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if strings.Contains(line, "K") {
			cuts = append(cuts, i)
		}
	}
	if len(cuts) == 0 {
		cuts = []int{0}
	}
	return cuts, nil
}

// writeKeyframesLog persists the probed keyframe positions this pipeline's
// on-disk layout carries alongside the chunk store when the keyframe-aligned
// split method is used, one frame number per line.
func writeKeyframesLog(path string, frames []int) error {
	var b strings.Builder
	for _, f := range frames {
		fmt.Fprintf(&b, "%d\n", f)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// chunkDurationForResolution is retained for the keyframe-aligned method's
// fallback spacing when the probe yields too few keyframes to be useful;
// callers that know the source resolution should prefer computing their
// own interval.
func chunkDurationForResolution(totalFrames int) float64 {
	return 30.0
}

func keyframeCuts(totalFrames int, fpsNum, fpsDen uint32, chunkDurationSecs float64) []int {
	if fpsDen == 0 || totalFrames <= 0 {
		return []int{0}
	}

	fps := float64(fpsNum) / float64(fpsDen)
	framesPerChunk := int(fps * chunkDurationSecs)
	if framesPerChunk < 1 {
		framesPerChunk = 1
	}

	var cuts []int
	for frame := 0; frame < totalFrames; frame += framesPerChunk {
		cuts = append(cuts, frame)
	}
	if len(cuts) == 0 {
		cuts = []int{0}
	}
	return cuts
}

// densify inserts additional cuts so that no gap between consecutive
// cuts (including the final gap to totalFrames) exceeds maxChunkSecs,
// while never removing an original cut.
func densify(cuts []int, totalFrames int, fpsNum, fpsDen uint32, maxChunkSecs float64) []int {
	if fpsDen == 0 || maxChunkSecs <= 0 {
		return cuts
	}
	fps := float64(fpsNum) / float64(fpsDen)
	maxGapFrames := int(fps * maxChunkSecs)
	if maxGapFrames < 1 {
		return cuts
	}

	out := make([]int, 0, len(cuts))
	for i, c := range cuts {
		out = append(out, c)

		next := totalFrames
		if i+1 < len(cuts) {
			next = cuts[i+1]
		}
		gap := next - c
		if gap <= maxGapFrames {
			continue
		}

		segments := (gap + maxGapFrames - 1) / maxGapFrames
		step := gap / segments
		for s := 1; s < segments; s++ {
			out = append(out, c+s*step)
		}
	}
	return normalize(out, totalFrames)
}

// coalesce reduces cuts to at most target entries by repeatedly merging
// the cut whose removal widens its neighboring gap the least, preserving
// the cuts adjacent to the largest remaining gaps.
func coalesce(cuts []int, totalFrames, target int) []int {
	if len(cuts) <= target {
		return cuts
	}

	working := append([]int(nil), cuts...)
	for len(working) > target {
		removeIdx := 1
		smallestCost := -1
		for i := 1; i < len(working); i++ {
			prev := working[i-1]
			var next int
			if i+1 < len(working) {
				next = working[i+1]
			} else {
				next = totalFrames
			}
			cost := next - prev
			if smallestCost == -1 || cost < smallestCost {
				smallestCost = cost
				removeIdx = i
			}
		}
		if removeIdx == 0 {
			break
		}
		working = append(working[:removeIdx], working[removeIdx+1:]...)
	}
	return working
}

func normalize(cuts []int, totalFrames int) []int {
	if len(cuts) == 0 {
		return []int{0}
	}
	sort.Ints(cuts)
	out := make([]int, 0, len(cuts))
	for _, c := range cuts {
		if c < 0 || c >= totalFrames {
			continue
		}
		if len(out) == 0 || c != out[len(out)-1] {
			out = append(out, c)
		}
	}
	if len(out) == 0 || out[0] != 0 {
		out = append([]int{0}, out...)
	}
	return out
}

// ScenesFilePath returns the cache path a plan's cut list is persisted to
// within workDir.
func ScenesFilePath(workDir string) string {
	return filepath.Join(workDir, "scenes.txt")
}

// WriteScenesFile persists cuts as a single comma-separated line of
// decimal frame numbers.
func WriteScenesFile(path string, cuts []int) error {
	parts := make([]string, len(cuts))
	for i, c := range cuts {
		parts[i] = strconv.Itoa(c)
	}
	return os.WriteFile(path, []byte(strings.Join(parts, ",")+"\n"), 0644)
}

// readScenesFile parses a comma-separated decimal cut list.
func readScenesFile(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenes file %s: %w", path, err)
	}

	line := strings.TrimSpace(string(data))
	if line == "" {
		return []int{0}, nil
	}

	fields := strings.Split(line, ",")
	cuts := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("malformed scenes file %s: %w", path, err)
		}
		cuts = append(cuts, n)
	}
	return cuts, nil
}

// ReadScenesFileForPlan parses an operator-supplied scenes file (the same
// comma-separated decimal format LoadOrDetect caches to disk), for the
// case where an explicit scenes file overrides detection entirely.
func ReadScenesFileForPlan(path string) ([]int, error) {
	return readScenesFile(path)
}

// LoadOrDetect returns the cached cut list at ScenesFilePath(workDir) if
// present, otherwise runs DetectCuts and writes the cache.
func LoadOrDetect(workDir string, method Method, sourcePath string, totalFrames int, fpsNum, fpsDen uint32, maxChunkSecs float64, sceneThreshold int) (*Plan, error) {
	path := ScenesFilePath(workDir)
	if cuts, err := readScenesFile(path); err == nil {
		return &Plan{Cuts: normalize(cuts, totalFrames), TotalFrames: totalFrames}, nil
	}

	plan, err := DetectCuts(method, sourcePath, workDir, totalFrames, fpsNum, fpsDen, maxChunkSecs, sceneThreshold)
	if err != nil {
		return nil, err
	}
	if err := WriteScenesFile(path, plan.Cuts); err != nil {
		return nil, fmt.Errorf("failed to cache scenes file: %w", err)
	}
	return plan, nil
}
