package discovery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckInputsExist(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "a.mkv")
	if err := os.WriteFile(present, []byte("x"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	missingOne := filepath.Join(dir, "missing1.mkv")
	missingTwo := filepath.Join(dir, "missing2.mkv")

	if err := CheckInputsExist([]string{present}); err != nil {
		t.Errorf("CheckInputsExist with existing path returned error: %v", err)
	}

	err := CheckInputsExist([]string{present, missingOne, missingTwo})
	if err == nil {
		t.Fatal("CheckInputsExist should report missing paths")
	}
	msg := err.Error()
	if !strings.Contains(msg, missingOne) || !strings.Contains(msg, missingTwo) {
		t.Errorf("error should list all missing paths, got: %s", msg)
	}
}

func TestExpandInputsMixedFilesAndDirs(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "batch")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	for _, name := range []string{"b.mkv", "a.mp4"} {
		if err := os.WriteFile(filepath.Join(sub, name), []byte("x"), 0644); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	explicit := filepath.Join(dir, "explicit.mkv")
	if err := os.WriteFile(explicit, []byte("x"), 0644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	files, err := ExpandInputs([]string{explicit, sub})
	if err != nil {
		t.Fatalf("ExpandInputs failed: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d: %v", len(files), files)
	}
}

func TestExpandInputsMissingPath(t *testing.T) {
	dir := t.TempDir()
	_, err := ExpandInputs([]string{filepath.Join(dir, "nope.mkv")})
	if err == nil {
		t.Fatal("ExpandInputs should fail for a missing path")
	}
}
