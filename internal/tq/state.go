package tq

// Probe is one evaluated (quantizer, score) pair from a target-quality
// search.
type Probe struct {
	Q     float64
	Score float64
}

// CandidateQuantizers returns the canonical probe order for a search:
// Qmax first, Qmin second, then steps-2 interior points evenly spaced
// between them. Interior points are floored to land on integer quantizer
// tokens. A degenerate range (qpMin == qpMax) returns a single candidate.
func CandidateQuantizers(qpMin, qpMax float64, steps int) []float64 {
	if qpMax < qpMin {
		qpMin, qpMax = qpMax, qpMin
	}
	if steps < 4 {
		steps = 4
	}
	if qpMax == qpMin {
		return []float64{qpMax}
	}

	candidates := make([]float64, 0, steps)
	candidates = append(candidates, qpMax, qpMin)

	interiorCount := steps - 2
	step := (qpMax - qpMin) / float64(steps-1)
	for i := 1; i <= interiorCount; i++ {
		candidates = append(candidates, floorQ(qpMin+float64(i)*step))
	}
	return candidates
}
