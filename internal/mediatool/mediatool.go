// Package mediatool wraps the external ffprobe/ffmpeg binaries this pipeline
// relies on for every concern that isn't orchestration: frame counting,
// splitting a source into chunk files, extracting its audio track, and
// muxing encoded chunks back into one output. No pixel data ever crosses
// into this process; everything here shells out.
package mediatool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// probeOutput mirrors the subset of ffprobe's JSON output this package
// reads.
type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	NbFrames  string `json:"nb_frames"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	Index     int    `json:"index"`
}

func runProbe(path string, extraArgs ...string) (*probeOutput, error) {
	args := append([]string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
	}, extraArgs...)
	args = append(args, path)

	cmd := exec.Command("ffprobe", args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed on %s: %w", path, err)
	}

	var result probeOutput
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output for %s: %w", path, err)
	}
	return &result, nil
}

func videoStream(p *probeOutput) (*probeStream, error) {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "video" {
			return &p.Streams[i], nil
		}
	}
	return nil, fmt.Errorf("no video stream found")
}

// FrameCount returns the authoritative frame count for a file by counting
// its video packets (nb_read_packets), the slow but exact path used when a
// container's metadata frame count can't be trusted.
func FrameCount(path string) (uint64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "csv=p=0",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("frame count probe failed on %s: %w", path, err)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse frame count for %s: %w", path, err)
	}
	return n, nil
}

// FastFrameCount returns the container-reported frame count (nb_frames),
// a metadata read with no decode pass — used where an approximate count is
// good enough (e.g. densification planning) and FrameCount's exactness
// isn't needed.
func FastFrameCount(path string) (uint64, error) {
	p, err := runProbe(path)
	if err != nil {
		return 0, err
	}
	vs, err := videoStream(p)
	if err != nil {
		return 0, err
	}
	if vs.NbFrames == "" {
		return 0, fmt.Errorf("no nb_frames metadata in %s", path)
	}
	return strconv.ParseUint(vs.NbFrames, 10, 64)
}

// DurationSecs returns the container duration in seconds.
func DurationSecs(path string) (float64, error) {
	p, err := runProbe(path)
	if err != nil {
		return 0, err
	}
	if p.Format.Duration == "" {
		return 0, fmt.Errorf("no duration metadata in %s", path)
	}
	return strconv.ParseFloat(p.Format.Duration, 64)
}

// FrameRate returns the video stream's frame rate as a reduced fraction.
func FrameRate(path string) (num, den uint32, err error) {
	p, err := runProbe(path)
	if err != nil {
		return 0, 0, err
	}
	vs, err := videoStream(p)
	if err != nil {
		return 0, 0, err
	}
	rate := vs.AvgFrameRate
	if rate == "" || rate == "0/0" {
		rate = vs.RFrameRate
	}
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected frame rate format %q in %s", rate, path)
	}
	n, err1 := strconv.ParseUint(parts[0], 10, 32)
	d, err2 := strconv.ParseUint(parts[1], 10, 32)
	if err1 != nil || err2 != nil || d == 0 {
		return 0, 0, fmt.Errorf("unparseable frame rate %q in %s", rate, path)
	}
	return uint32(n), uint32(d), nil
}

// AverageBrightness samples the decoded luma plane and returns its mean
// value over 0-255, used by brightness-boost quantizer adjustment.
func AverageBrightness(path string) (float64, error) {
	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-vf", "signalstats",
		"-f", "null",
		"-",
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("brightness probe failed on %s: %w", path, err)
	}

	re := regexp.MustCompile(`YAVG:([0-9.]+)`)
	matches := re.FindAllStringSubmatch(stderr.String(), -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("no YAVG samples found for %s", path)
	}
	last := matches[len(matches)-1]
	return strconv.ParseFloat(last[1], 64)
}

// Score computes a VMAF perceptual-quality score between a chunk's source
// and an encoded probe output, for the target-quality search's ScoreFunc
// callback. It runs ffmpeg's libvmaf filter comparing the two decoded
// streams and parses the score out of ffmpeg's stderr/stdout log.
func Score(ctx context.Context, sourcePath, probePath string) (float64, error) {
	filter := "[0:v]format=yuv420p[dist];[1:v]format=yuv420p[ref];" +
		"[dist][ref]libvmaf=log_fmt=json:log_path=/dev/stdout"

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", probePath,
		"-i", sourcePath,
		"-filter_complex", filter,
		"-f", "null", "-",
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("vmaf scoring failed comparing %s against %s: %w (%s)", probePath, sourcePath, err, lastLines(string(output), 5))
	}
	return parseVMAFScore(string(output))
}

var vmafPatterns = []string{
	`VMAF score:\s*([\d.]+)`,
	`"vmaf"[^}]*"mean":\s*([\d.]+)`,
	`vmaf_v.*mean:\s*([\d.]+)`,
}

func parseVMAFScore(output string) (float64, error) {
	for _, pattern := range vmafPatterns {
		re := regexp.MustCompile(pattern)
		matches := re.FindStringSubmatch(output)
		if len(matches) >= 2 {
			if score, err := strconv.ParseFloat(strings.TrimSpace(matches[1]), 64); err == nil {
				return score, nil
			}
		}
	}
	return 0, fmt.Errorf("could not parse vmaf score from ffmpeg output")
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// SplitChunk cuts [startFrame, endFrame) out of source into destPath using
// stream copy, re-muxing rather than re-encoding so the split is lossless
// and fast.
func SplitChunk(ctx context.Context, source, destPath string, startFrame, endFrame int, fps float64) error {
	startSecs := float64(startFrame) / fps
	durSecs := float64(endFrame-startFrame) / fps

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.6f", startSecs),
		"-i", source,
		"-t", fmt.Sprintf("%.6f", durSecs),
		"-an",
		"-c:v", "copy",
		"-avoid_negative_ts", "make_zero",
		destPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to split chunk %s: %w: %s", destPath, err, stderr.String())
	}
	return nil
}

// ExtractAudio pulls every audio stream out of source into destPath,
// re-encoded to nothing (stream copy) so the original audio is preserved
// bit-for-bit.
func ExtractAudio(ctx context.Context, source, destPath string) error {
	args := []string{
		"-y",
		"-i", source,
		"-vn",
		"-c:a", "copy",
		destPath,
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to extract audio from %s: %w: %s", source, err, stderr.String())
	}
	return nil
}

// HasAudio reports whether source has at least one audio stream.
func HasAudio(path string) (bool, error) {
	p, err := runProbe(path)
	if err != nil {
		return false, err
	}
	for _, s := range p.Streams {
		if s.CodecType == "audio" {
			return true, nil
		}
	}
	return false, nil
}

// Concat muxes encodedChunks (in cut order) and, if audioPath is non-empty,
// audioPath's audio track into outputPath, using ffmpeg's concat demuxer for
// the video chunks. No re-encoding occurs.
func Concat(ctx context.Context, encodedChunks []string, audioPath, outputPath string, workDir string) error {
	listPath := filepath.Join(workDir, "concat.txt")
	if err := writeConcatList(listPath, encodedChunks); err != nil {
		return err
	}
	defer os.Remove(listPath)

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
	}
	if audioPath != "" {
		args = append(args, "-i", audioPath, "-map", "0:v", "-map", "1:a", "-c:a", "copy")
	}
	args = append(args, "-c:v", "copy", outputPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("concat failed: %w: %s", err, stderr.String())
	}
	return nil
}

func writeConcatList(path string, files []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	defer f.Close()

	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(f, "file '%s'\n", abs); err != nil {
			return err
		}
	}
	return nil
}

// ProgressLine is one parsed sample from an encoder's stderr (or ffmpeg's)
// progress output.
type ProgressLine struct {
	Frame   uint64
	FPS     float32
	Speed   float32
	Elapsed time.Duration
}

var (
	frameRe = regexp.MustCompile(`frame=\s*(\d+)`)
	fpsRe   = regexp.MustCompile(`fps=\s*([\d.]+)`)
	speedRe = regexp.MustCompile(`speed=\s*([\d.]+)x`)
	timeRe  = regexp.MustCompile(`time=(\d{2}):(\d{2}):(\d{2})\.(\d+)`)
)

// ScanProgress reads r line-by-line (lines may be terminated by \r, as
// ffmpeg/aomenc progress output is), calling onLine for each line that
// looks like a progress update.
func ScanProgress(r io.Reader, onLine func(ProgressLine)) error {
	reader := bufio.NewReader(r)
	var line strings.Builder

	flush := func() {
		s := line.String()
		line.Reset()
		if !strings.Contains(s, "frame=") && !strings.Contains(s, "frame ") {
			return
		}
		onLine(parseProgressLine(s))
	}

	for {
		b, err := reader.ReadByte()
		if err != nil {
			if line.Len() > 0 {
				flush()
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		if b == '\r' || b == '\n' {
			flush()
			continue
		}
		line.WriteByte(b)
	}
}

func parseProgressLine(s string) ProgressLine {
	var p ProgressLine
	if m := frameRe.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			p.Frame = v
		}
	}
	if m := fpsRe.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 32); err == nil {
			p.FPS = float32(v)
		}
	}
	if m := speedRe.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 32); err == nil {
			p.Speed = float32(v)
		}
	}
	if m := timeRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		se, _ := strconv.Atoi(m[3])
		p.Elapsed = time.Duration(h)*time.Hour + time.Duration(mi)*time.Minute + time.Duration(se)*time.Second
	}
	return p
}
