package splitter

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeyframeCuts(t *testing.T) {
	cuts := keyframeCuts(300, 30, 1, 5.0)
	if cuts[0] != 0 {
		t.Errorf("first cut should be 0, got %d", cuts[0])
	}
	if len(cuts) != 2 {
		t.Fatalf("expected 2 cuts for 300 frames at 30fps/5s chunks, got %v", cuts)
	}
	if cuts[1] != 150 {
		t.Errorf("second cut should be 150, got %d", cuts[1])
	}
}

func TestDensifyInsertsForLargeGap(t *testing.T) {
	cuts := []int{0, 900}
	out := densify(cuts, 900, 30, 1, 10.0) // max gap = 300 frames
	if len(out) < 3 {
		t.Fatalf("expected densify to insert cuts into a 900-frame gap, got %v", out)
	}
	for i := 1; i < len(out); i++ {
		gap := out[i] - out[i-1]
		if gap > 300 {
			t.Errorf("gap %d exceeds max allowed 300: cuts=%v", gap, out)
		}
	}
}

func TestDensifyPreservesOriginalCuts(t *testing.T) {
	cuts := []int{0, 500, 1000}
	out := densify(cuts, 1500, 30, 1, 100.0) // max gap = 3000 frames, no densification needed
	if len(out) != 3 || out[1] != 500 {
		t.Errorf("densify should not alter cuts within max gap, got %v", out)
	}
}

func TestCoalesceReducesToTarget(t *testing.T) {
	cuts := make([]int, 0, 1000)
	for i := 0; i < 1000; i++ {
		cuts = append(cuts, i*10)
	}
	out := coalesce(cuts, 10000, 600)
	if len(out) != 600 {
		t.Fatalf("expected coalesce to reduce to 600 cuts, got %d", len(out))
	}
	if out[0] != 0 {
		t.Errorf("first cut must remain 0, got %d", out[0])
	}
}

func TestNormalizeDedupesAndSorts(t *testing.T) {
	out := normalize([]int{50, 0, 50, 10, -5, 1000}, 100)
	want := []int{0, 10, 50}
	if len(out) != len(want) {
		t.Fatalf("normalize() = %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("normalize()[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestWriteAndReadScenesFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenes.txt")
	cuts := []int{0, 150, 300, 450}

	if err := WriteScenesFile(path, cuts); err != nil {
		t.Fatalf("WriteScenesFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read back scenes file: %v", err)
	}
	if got := string(data); got != "0,150,300,450\n" {
		t.Errorf("scenes file format = %q, want comma-separated decimal list", got)
	}

	read, err := readScenesFile(path)
	if err != nil {
		t.Fatalf("readScenesFile failed: %v", err)
	}
	if len(read) != len(cuts) {
		t.Fatalf("round trip length mismatch: got %v, want %v", read, cuts)
	}
	for i := range cuts {
		if read[i] != cuts[i] {
			t.Errorf("round trip[%d] = %d, want %d", i, read[i], cuts[i])
		}
	}
}

func TestWriteKeyframesLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyframes.log")
	if err := writeKeyframesLog(path, []int{0, 48, 96}); err != nil {
		t.Fatalf("writeKeyframesLog failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read back keyframes.log: %v", err)
	}
	if got := string(data); got != "0\n48\n96\n" {
		t.Errorf("keyframes.log format = %q, want one frame number per line", got)
	}
}

func TestDetectCutsSkip(t *testing.T) {
	plan, err := DetectCuts(Skip, "unused.mkv", "", 1000, 30, 1, 0, 50) // maxChunkSecs 0 disables densification
	if err != nil {
		t.Fatalf("DetectCuts(Skip) failed: %v", err)
	}
	if len(plan.Cuts) != 1 || plan.Cuts[0] != 0 {
		t.Errorf("Skip method should produce a single cut at 0, got %v", plan.Cuts)
	}
}
