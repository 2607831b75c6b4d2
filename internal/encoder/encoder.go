// Package encoder builds the external encoder command lines this pipeline
// drives as subprocesses that read raw video from an ffmpeg decode process
// on stdin and write an output file. Every supported encoder is a
// closed set (Identity below); adding one means adding a case here, not
// opening the set to arbitrary strings.
package encoder

import (
	"fmt"
	"os/exec"
	"strconv"
)

// Identity names a supported encoder binary.
type Identity int

const (
	Aom Identity = iota
	Vpx
	Rav1e
	SvtAv1
)

func (id Identity) String() string {
	switch id {
	case Aom:
		return "aom"
	case Vpx:
		return "vpx"
	case Rav1e:
		return "rav1e"
	case SvtAv1:
		return "svt-av1"
	default:
		return "unknown"
	}
}

// ParseIdentity resolves an operator-facing encoder name to its Identity.
func ParseIdentity(s string) (Identity, error) {
	switch s {
	case "aom", "libaom", "aomenc":
		return Aom, nil
	case "vpx", "vp9", "vpxenc":
		return Vpx, nil
	case "rav1e":
		return Rav1e, nil
	case "svt-av1", "svtav1", "SvtAv1":
		return SvtAv1, nil
	default:
		return 0, fmt.Errorf("unknown encoder %q", s)
	}
}

// TwoPass reports whether this encoder runs a first analysis pass before
// the real encode. Only AOM and VPX support it in this pipeline; rav1e and
// SvtAv1 are one-pass only.
func (id Identity) TwoPass() bool {
	return id == Aom || id == Vpx
}

// Config holds every parameter a chunk's command line is built from. Not
// every field applies to every Identity; unused fields are ignored by that
// encoder's builder.
type Config struct {
	Identity     Identity
	Source       string // input chunk file
	Output       string // encoded output file
	PixelFormat  string // passed to the decode side's -pix_fmt
	Quantizer    float64
	Threads      int
	ExtraArgs    []string // operator-supplied args; appended by the SvtAv1 builder only (required there), ignored by the others
	FirstPassLog string   // scratch path for two-pass stats
}

// Stage is one process pair in a chunk's command sequence: a source-decode
// half (ffmpeg, emitting raw yuv4mpegpipe video on stdout) piped into an
// encoder half that reads that raw video from stdin. None of the supported
// encoder binaries decode arbitrary containers themselves, so every stage
// needs its own decode process — a two-pass encoder re-decodes once per
// pass, matching how ffmpeg_pipe is re-issued per pass upstream.
type Stage struct {
	Name       string
	DecodeArgv []string
	EncodeArgv []string
}

// Shell renders a Stage as the "<decode> | <encode>" string form this
// pipeline logs and displays, even though it is actually run as two
// processes joined by an OS pipe rather than a shell pipeline.
func (s Stage) Shell() string {
	return joinArgv(s.DecodeArgv) + " | " + joinArgv(s.EncodeArgv)
}

func joinArgv(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

// DecodeCmd builds the *exec.Cmd for this stage's decode half.
func (s Stage) DecodeCmd() *exec.Cmd {
	return exec.Command(s.DecodeArgv[0], s.DecodeArgv[1:]...)
}

// EncodeCmd builds the *exec.Cmd for this stage's encode half. Its Stdin
// is left for the caller to wire to the decode half's Stdout.
func (s Stage) EncodeCmd() *exec.Cmd {
	return exec.Command(s.EncodeArgv[0], s.EncodeArgv[1:]...)
}

// decodeArgv builds the ffmpeg command that decodes source to raw
// yuv4mpegpipe video on stdout at the configured pixel format, the Go
// equivalent of av1an's `ffmpeg_pipe` string
// (`ffmpeg ... -strict -1 -pix_fmt <fmt> -f yuv4mpegpipe -`).
func decodeArgv(source, pixelFormat string) []string {
	return []string{
		"ffmpeg", "-y", "-hide_banner", "-loglevel", "error",
		"-i", source,
		"-strict", "-1",
		"-pix_fmt", pixelFormat,
		"-f", "yuv4mpegpipe", "-",
	}
}

// BuildStages returns the ordered command stages for cfg. Two-pass
// encoders return (firstPass, secondPass); one-pass encoders return just
// (encodePass).
func BuildStages(cfg *Config) ([]Stage, error) {
	switch cfg.Identity {
	case Aom:
		return aomStages(cfg), nil
	case Vpx:
		return vpxStages(cfg), nil
	case Rav1e:
		return rav1eStages(cfg), nil
	case SvtAv1:
		return svtAv1Stages(cfg)
	default:
		return nil, fmt.Errorf("unsupported encoder identity %v", cfg.Identity)
	}
}

func quantizerTokens(id Identity, q float64) []string {
	level := strconv.Itoa(int(q))
	switch id {
	case Aom:
		return []string{"--cq-level=" + level, "--end-usage=q"}
	case Vpx:
		return []string{"--cq-level=" + level, "--end-usage=q"}
	case Rav1e:
		return []string{"--quantizer", level}
	case SvtAv1:
		return []string{"--qp", level}
	default:
		return nil
	}
}

func threadTokens(id Identity, threads int) []string {
	if threads <= 0 {
		return nil
	}
	n := strconv.Itoa(threads)
	switch id {
	case Aom, Vpx:
		return []string{"--threads=" + n}
	case Rav1e:
		return []string{"--threads", n}
	case SvtAv1:
		return []string{"--lp", n}
	default:
		return nil
	}
}

func aomStages(cfg *Config) []Stage {
	decode := decodeArgv(cfg.Source, cfg.PixelFormat)

	base := []string{"aomenc", "--passes=2", "-o", cfg.Output, "-"}
	base = append(base, quantizerTokens(Aom, cfg.Quantizer)...)
	base = append(base, threadTokens(Aom, cfg.Threads)...)

	statsArg := "--fpf=" + cfg.FirstPassLog
	first := append(append([]string{}, base...), statsArg, "--pass=1")
	second := append(append([]string{}, base...), statsArg, "--pass=2")

	return []Stage{
		{Name: "aom-pass1", DecodeArgv: decode, EncodeArgv: first},
		{Name: "aom-pass2", DecodeArgv: decode, EncodeArgv: second},
	}
}

func vpxStages(cfg *Config) []Stage {
	decode := decodeArgv(cfg.Source, cfg.PixelFormat)

	base := []string{"vpxenc", "--codec=vp9", "-o", cfg.Output, "-"}
	base = append(base, quantizerTokens(Vpx, cfg.Quantizer)...)
	base = append(base, threadTokens(Vpx, cfg.Threads)...)

	statsArg := "--fpf=" + cfg.FirstPassLog
	first := append(append([]string{}, base...), statsArg, "--pass=1")
	second := append(append([]string{}, base...), statsArg, "--pass=2")

	return []Stage{
		{Name: "vpx-pass1", DecodeArgv: decode, EncodeArgv: first},
		{Name: "vpx-pass2", DecodeArgv: decode, EncodeArgv: second},
	}
}

func rav1eStages(cfg *Config) []Stage {
	argv := []string{"rav1e", "-", "-o", cfg.Output}
	argv = append(argv, quantizerTokens(Rav1e, cfg.Quantizer)...)
	argv = append(argv, threadTokens(Rav1e, cfg.Threads)...)

	return []Stage{{Name: "rav1e", DecodeArgv: decodeArgv(cfg.Source, cfg.PixelFormat), EncodeArgv: argv}}
}

func svtAv1Stages(cfg *Config) ([]Stage, error) {
	if len(cfg.ExtraArgs) == 0 {
		return nil, fmt.Errorf("SvtAv1 requires operator-supplied encoder parameters")
	}

	argv := []string{"SvtAv1EncApp", "-i", "stdin", "-b", cfg.Output}
	argv = append(argv, quantizerTokens(SvtAv1, cfg.Quantizer)...)
	argv = append(argv, threadTokens(SvtAv1, cfg.Threads)...)
	argv = append(argv, cfg.ExtraArgs...)

	return []Stage{{Name: "svt-av1", DecodeArgv: decodeArgv(cfg.Source, cfg.PixelFormat), EncodeArgv: argv}}, nil
}

// RewriteQuantizer returns a copy of stages with every quantizer token
// replaced to reflect a new quantizer, leaving every other argument as
// built. Only the encode half carries quantizer tokens; the decode half is
// untouched. The worker pool does not call it: target-quality probes and
// brightness boost rebuild their stages with BuildStages instead.
func RewriteQuantizer(id Identity, stages []Stage, q float64) []Stage {
	newTokens := quantizerTokens(id, q)
	out := make([]Stage, len(stages))
	for i, s := range stages {
		out[i] = Stage{Name: s.Name, DecodeArgv: s.DecodeArgv, EncodeArgv: rewriteTokens(s.EncodeArgv, id, newTokens)}
	}
	return out
}

// BoostQuantizer reduces a quantizer for darker chunks, reflecting that
// low-brightness content bands more readily under heavy quantization.
// brightness is the chunk's average luma sample over 0-255 (see
// mediatool.AverageBrightness); boostRange is how many brightness units
// below the midpoint map to one unit of reduction, and limit caps the
// total reduction applied.
func BoostQuantizer(q, brightness float64, limit, boostRange int) float64 {
	const midpoint = 128.0
	if boostRange <= 0 || brightness >= midpoint {
		return q
	}
	reduction := (midpoint - brightness) / float64(boostRange)
	if reduction > float64(limit) {
		reduction = float64(limit)
	}
	adjusted := q - reduction
	if adjusted < 0 {
		adjusted = 0
	}
	return adjusted
}

func rewriteTokens(argv []string, id Identity, newTokens []string) []string {
	oldPrefixes := quantizerPrefixes(id)
	result := make([]string, 0, len(argv))
	skipNext := false
	for i, a := range argv {
		if skipNext {
			skipNext = false
			continue
		}
		if matchesAnyPrefix(a, oldPrefixes) {
			if !hasEquals(a) && i+1 < len(argv) {
				skipNext = true
			}
			continue
		}
		result = append(result, a)
	}
	return append(result, newTokens...)
}

func quantizerPrefixes(id Identity) []string {
	switch id {
	case Aom, Vpx:
		return []string{"--cq-level=", "--end-usage="}
	case Rav1e:
		return []string{"--quantizer"}
	case SvtAv1:
		return []string{"--qp"}
	default:
		return nil
	}
}

func matchesAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
		if s == p {
			return true
		}
	}
	return false
}

func hasEquals(s string) bool {
	for _, r := range s {
		if r == '=' {
			return true
		}
	}
	return false
}
