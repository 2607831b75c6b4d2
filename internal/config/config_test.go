package config

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.Encoder != "aom" {
		t.Errorf("expected default encoder aom, got %s", d.Encoder)
	}
	if d.Passes != 2 {
		t.Errorf("expected default passes 2, got %d", d.Passes)
	}
	if d.Steps != 4 {
		t.Errorf("expected default steps 4, got %d", d.Steps)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*JobConfig)
		wantErr error
	}{
		{"missing input", func(c *JobConfig) { c.Input = "" }, ErrMissingInput},
		{"bad encoder", func(c *JobConfig) { c.Input = "x.mkv"; c.Encoder = "nope" }, ErrInvalidEncoder},
		{"bad passes", func(c *JobConfig) { c.Input = "x.mkv"; c.Passes = 3 }, ErrInvalidPasses},
		{"negative workers", func(c *JobConfig) { c.Input = "x.mkv"; c.Workers = -1 }, ErrInvalidWorkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.mutate(&c)
			err := c.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTargetQualitySteps(t *testing.T) {
	c := Defaults()
	c.Input = "x.mkv"
	c.TargetQuality = true
	c.Steps = 3

	if err := c.Validate(); !errors.Is(err, ErrInvalidSteps) {
		t.Errorf("Validate() = %v, want ErrInvalidSteps", err)
	}
}

func TestValidateDegenerateQPRange(t *testing.T) {
	c := Defaults()
	c.Input = "x.mkv"
	c.TargetQuality = true
	c.QPMin = 30
	c.QPMax = 30

	if err := c.Validate(); err != nil {
		t.Errorf("min == max should be accepted as a degenerate single-probe case, got %v", err)
	}
}

func TestSaveAndLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	base := Defaults()
	base.Encoder = "rav1e"

	loaded, err := Load(path, base)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Encoder != "rav1e" {
		t.Errorf("expected rav1e written and returned, got %s", loaded.Encoder)
	}

	// Second load reads the file back.
	second, err := Load(path, Defaults())
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if second.Encoder != "rav1e" {
		t.Errorf("expected rav1e read back from file, got %s", second.Encoder)
	}
}

func TestSaveAndLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	base := Defaults()
	base.Threshold = 42

	if _, err := Load(path, base); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	loaded, err := Load(path, Defaults())
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if loaded.Threshold != 42 {
		t.Errorf("expected threshold 42 read back, got %d", loaded.Threshold)
	}
}
