package tq

import (
	"fmt"
	"math"
	"sort"
)

// ProbeFunc runs one quantizer probe (encode a low-fps proxy at q, score it
// perceptually) and returns the measured score.
type ProbeFunc func(q float64) (float64, error)

// Search runs the canonical target-quality probe sequence for one chunk:
// Qmax first, Qmin second (each with an early-exit check), then the
// remaining interior candidates, followed by a monotone interpolation fit
// to pick the quantizer whose interpolated score lands on cfg.Target.
//
// Returns the chosen quantizer and the ordered list of probes actually run.
func Search(cfg *Config, probe ProbeFunc) (float64, []Probe, error) {
	candidates := CandidateQuantizers(cfg.QPMin, cfg.QPMax, cfg.Steps)
	probes := make([]Probe, 0, len(candidates))

	run := func(q float64) (float64, error) {
		score, err := probe(q)
		if err != nil {
			return 0, fmt.Errorf("probe at q=%v failed: %w", q, err)
		}
		probes = append(probes, Probe{Q: q, Score: score})
		return score, nil
	}

	if len(candidates) == 1 {
		if _, err := run(candidates[0]); err != nil {
			return 0, probes, err
		}
		return candidates[0], probes, nil
	}

	qmax, qmin := candidates[0], candidates[1]

	scoreMax, err := run(qmax)
	if err != nil {
		return 0, probes, err
	}
	if roundScore(scoreMax) > cfg.Target {
		return qmax, probes, nil
	}

	scoreMin, err := run(qmin)
	if err != nil {
		return 0, probes, err
	}
	if roundScore(scoreMin) < cfg.Target {
		return qmin, probes, nil
	}

	for _, q := range candidates[2:] {
		if _, err := run(q); err != nil {
			return 0, probes, err
		}
	}

	if q := InterpolateByCount(probes, cfg.Target); q != nil {
		return clampQ(*q, cfg.QPMin, cfg.QPMax), probes, nil
	}
	return bestProbeQ(probes, cfg.Target), probes, nil
}

// bestProbeQ falls back to the probe whose score is closest to target when
// interpolation can't be fit (e.g. duplicate or non-monotone scores). Ties
// are broken toward the larger quantizer, which yields the smaller file.
func bestProbeQ(probes []Probe, target float64) float64 {
	if len(probes) == 0 {
		return 0
	}
	best := probes[0]
	bestDiff := math.Abs(best.Score - target)
	for _, p := range probes[1:] {
		diff := math.Abs(p.Score - target)
		if diff < bestDiff || (diff == bestDiff && p.Q > best.Q) {
			best = p
			bestDiff = diff
		}
	}
	return best.Q
}

// InterpolateByCount fits the monotone interpolation appropriate to the
// number of collected probes (Lerp at 2, Fritsch-Carlson at 3, PCHIP at
// exactly 4, Akima at 5+) and evaluates it at the target score to recover
// the corresponding quantizer.
func InterpolateByCount(probes []Probe, target float64) *float64 {
	sorted := make([]Probe, len(probes))
	copy(sorted, probes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Score < sorted[j].Score
	})

	n := len(sorted)
	x := make([]float64, n)
	y := make([]float64, n)
	for i, p := range sorted {
		x[i] = p.Score
		y[i] = p.Q
	}

	var result *float64
	switch {
	case n < 2:
		return nil
	case n == 2:
		result = Lerp([2]float64{x[0], x[1]}, [2]float64{y[0], y[1]}, target)
	case n == 3:
		result = FritschCarlson(x, y, target)
	case n == 4:
		result = PCHIP([4]float64{x[0], x[1], x[2], x[3]}, [4]float64{y[0], y[1], y[2], y[3]}, target)
	default:
		result = Akima(x, y, target)
	}

	if result == nil {
		return nil
	}
	rounded := roundCRF(*result)
	return &rounded
}

func roundScore(score float64) float64 {
	return math.Round(score)
}

func floorQ(q float64) float64 {
	return math.Floor(q)
}

func clampQ(v, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
