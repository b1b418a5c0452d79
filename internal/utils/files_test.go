package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/vizqa/internal/utils"
)

func TestSafeWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chart-1.png")

	if err := utils.SafeWriteFile(path, []byte("first")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := utils.SafeWriteFile(path, []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "second" {
		t.Fatalf("got %q, %v", b, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}

	if err := utils.SafeWriteFile(filepath.Join(dir, "missing", "x.csv"), nil); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
