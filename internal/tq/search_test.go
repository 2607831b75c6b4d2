package tq

import "testing"

func TestCandidateQuantizers(t *testing.T) {
	got := CandidateQuantizers(25, 50, 4)
	want := []float64{50, 25, 33, 41}
	if len(got) != len(want) {
		t.Fatalf("CandidateQuantizers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CandidateQuantizers()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCandidateQuantizersDegenerate(t *testing.T) {
	got := CandidateQuantizers(30, 30, 4)
	if len(got) != 1 || got[0] != 30 {
		t.Errorf("CandidateQuantizers(degenerate) = %v, want [30]", got)
	}
}

func TestSearchEarlyExitHigh(t *testing.T) {
	cfg := &Config{Target: 90, QPMin: 25, QPMax: 50, Steps: 4}

	scores := map[float64]float64{50: 93}
	probeCount := 0
	q, probes, err := Search(cfg, func(qv float64) (float64, error) {
		probeCount++
		return scores[qv], nil
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if q != 50 {
		t.Errorf("Search() = %v, want 50", q)
	}
	if len(probes) != 1 {
		t.Errorf("Search() ran %d probes, want 1", len(probes))
	}
	if probeCount != 1 {
		t.Errorf("probe function called %d times, want 1", probeCount)
	}
}

func TestSearchEarlyExitLow(t *testing.T) {
	cfg := &Config{Target: 90, QPMin: 25, QPMax: 50, Steps: 4}

	// Qmax probe (50) scores low, Qmin probe (25) scores below target too.
	scores := map[float64]float64{50: 70, 25: 85}
	q, probes, err := Search(cfg, func(qv float64) (float64, error) {
		return scores[qv], nil
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if q != 25 {
		t.Errorf("Search() = %v, want 25", q)
	}
	if len(probes) != 2 {
		t.Errorf("Search() ran %d probes, want 2", len(probes))
	}
}

func TestSearchInterpolates(t *testing.T) {
	cfg := &Config{Target: 90, QPMin: 25, QPMax: 50, Steps: 4}

	scores := map[float64]float64{50: 85, 25: 96, 33: 93, 41: 89}
	q, probes, err := Search(cfg, func(qv float64) (float64, error) {
		return scores[qv], nil
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(probes) != 4 {
		t.Errorf("Search() ran %d probes, want 4", len(probes))
	}
	if q < 35 || q > 45 {
		t.Errorf("Search() = %v, want a value near 40", q)
	}
}

func TestSearchDegenerateRange(t *testing.T) {
	cfg := &Config{Target: 90, QPMin: 30, QPMax: 30, Steps: 4}

	calls := 0
	q, probes, err := Search(cfg, func(qv float64) (float64, error) {
		calls++
		return 91, nil
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if q != 30 {
		t.Errorf("Search() = %v, want 30", q)
	}
	if calls != 1 || len(probes) != 1 {
		t.Errorf("Search() on degenerate range ran %d probes, want 1", len(probes))
	}
}

func TestSearchPropagatesProbeError(t *testing.T) {
	cfg := &Config{Target: 90, QPMin: 25, QPMax: 50, Steps: 4}

	wantErr := "boom"
	_, _, err := Search(cfg, func(qv float64) (float64, error) {
		return 0, errString(wantErr)
	})
	if err == nil {
		t.Fatal("Search() error = nil, want non-nil")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
