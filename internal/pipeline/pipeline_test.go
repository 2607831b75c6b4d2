package pipeline

import "testing"

func TestParseSplitMethod(t *testing.T) {
	cases := map[string]bool{
		"pyscene":  true,
		"scene":    true,
		"keyframe": true,
		"skip":     true,
		"bogus":    false,
	}
	for in, wantOK := range cases {
		_, err := parseSplitMethod(in)
		if (err == nil) != wantOK {
			t.Errorf("parseSplitMethod(%q) err=%v, wantOK=%v", in, err, wantOK)
		}
	}
}

func TestChunkName(t *testing.T) {
	if got := chunkName(0); got != "chunk-00000" {
		t.Errorf("chunkName(0) = %q, want chunk-00000", got)
	}
	if got := chunkName(42); got != "chunk-00042" {
		t.Errorf("chunkName(42) = %q, want chunk-00042", got)
	}
}

func TestRuntimeThreadsForNeverBelowOne(t *testing.T) {
	if got := runtimeThreadsFor(0, 1000); got < 1 {
		t.Errorf("runtimeThreadsFor should never return below 1, got %d", got)
	}
}

func TestStageString(t *testing.T) {
	if StageDone.String() != "done" {
		t.Errorf("StageDone.String() = %q, want done", StageDone.String())
	}
}
