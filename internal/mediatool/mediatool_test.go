package mediatool

import "testing"

func TestParseVMAFScoreLine(t *testing.T) {
	output := `frame=100 fps=30
[Parsed_libvmaf_2 @ 0x1234] VMAF score: 95.123456
`
	score, err := parseVMAFScore(output)
	if err != nil {
		t.Fatalf("parseVMAFScore failed: %v", err)
	}
	if score != 95.123456 {
		t.Errorf("score = %v, want 95.123456", score)
	}
}

func TestParseVMAFScoreMeanField(t *testing.T) {
	output := `{"frames": [], "pooled_metrics": {"vmaf": {"min": 80.0, "max": 99.0, "mean": 88.75}}}`
	score, err := parseVMAFScore(output)
	if err != nil {
		t.Fatalf("parseVMAFScore failed: %v", err)
	}
	if score != 88.75 {
		t.Errorf("score = %v, want 88.75", score)
	}
}

func TestParseVMAFScoreNoMatch(t *testing.T) {
	if _, err := parseVMAFScore("nothing useful here"); err == nil {
		t.Error("expected an error when no vmaf score is present")
	}
}

func TestLastLines(t *testing.T) {
	out := lastLines("a\nb\nc\nd\ne\n", 2)
	if out != "d\ne" {
		t.Errorf("lastLines = %q, want %q", out, "d\\ne")
	}
	if got := lastLines("a\nb", 5); got != "a\nb" {
		t.Errorf("lastLines should return input unchanged when under limit, got %q", got)
	}
}
