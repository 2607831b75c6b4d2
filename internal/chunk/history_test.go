package chunk

import (
	"path/filepath"
	"testing"
	"time"
)

func TestHistoryRecordAndRecent(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")

	h, err := OpenHistory(dbPath)
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	defer h.Close()

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := HistoryRecord{
		ID:          NewRunID(),
		InputPath:   "/media/source.mkv",
		Encoder:     "aom",
		TotalFrames: 48000,
		ChunkCount:  12,
		Outcome:     OutcomeOK,
		StartedAt:   start,
		FinishedAt:  start.Add(10 * time.Minute),
	}

	if err := h.Record(rec); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	recent, err := h.Recent(5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 run, got %d", len(recent))
	}
	if recent[0].ID != rec.ID || recent[0].Encoder != "aom" || recent[0].Outcome != OutcomeOK {
		t.Errorf("unexpected record: %+v", recent[0])
	}
	if recent[0].TotalFrames != 48000 || recent[0].ChunkCount != 12 {
		t.Errorf("unexpected counts: %+v", recent[0])
	}
}

func TestHistoryRecentOrdering(t *testing.T) {
	dir := t.TempDir()
	h, err := OpenHistory(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	defer h.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, outcome := range []Outcome{OutcomeFailed, OutcomeOK, OutcomeInterrupted} {
		rec := HistoryRecord{
			ID:         NewRunID(),
			InputPath:  "/media/source.mkv",
			Encoder:    "vpx",
			Outcome:    outcome,
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
		}
		if err := h.Record(rec); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	recent, err := h.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(recent))
	}
	if recent[0].Outcome != OutcomeInterrupted || recent[1].Outcome != OutcomeOK {
		t.Errorf("expected newest-first ordering, got %+v, %+v", recent[0], recent[1])
	}
}
