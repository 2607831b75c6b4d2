package worker

import "testing"

func TestCounterAddChunk(t *testing.T) {
	c := NewCounter(Progress{ChunksTotal: 3, FramesTotal: 300})
	c.addChunk(100, 1024)
	c.addChunk(100, 2048)

	snap := c.Snapshot()
	if snap.ChunksComplete != 2 {
		t.Errorf("ChunksComplete = %d, want 2", snap.ChunksComplete)
	}
	if snap.FramesComplete != 200 {
		t.Errorf("FramesComplete = %d, want 200", snap.FramesComplete)
	}
	if snap.BytesComplete != 3072 {
		t.Errorf("BytesComplete = %d, want 3072", snap.BytesComplete)
	}
	if snap.ChunksTotal != 3 || snap.FramesTotal != 300 {
		t.Errorf("seeded totals should be preserved, got %+v", snap)
	}
}

func TestCounterSeededFromResume(t *testing.T) {
	c := NewCounter(Progress{ChunksComplete: 5, FramesComplete: 500, ChunksTotal: 10, FramesTotal: 1000})
	c.addChunk(100, 0)

	snap := c.Snapshot()
	if snap.ChunksComplete != 6 || snap.FramesComplete != 600 {
		t.Errorf("counter should accumulate on top of seeded resume progress, got %+v", snap)
	}
}
