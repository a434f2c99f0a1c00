package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.wav")
	dst := filepath.Join(dir, "b.wav")

	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}
	if FileExists(src) {
		t.Error("source still exists after move")
	}
	if !FileExists(dst) {
		t.Error("destination missing after move")
	}
}

func TestMoveFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := MoveFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Error("expected error moving a missing file")
	}
}

func TestDeleteFileMissingIsNotError(t *testing.T) {
	if err := DeleteFile(filepath.Join(t.TempDir(), "missing.wav")); err != nil {
		t.Errorf("DeleteFile on missing file: %v", err)
	}
}

func TestMakeDirNested(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := MakeDir(dir); err != nil {
		t.Fatalf("MakeDir: %v", err)
	}
	if !FileExists(dir) {
		t.Error("nested directory not created")
	}
	if err := MakeDir(""); err != nil {
		t.Errorf("MakeDir(\"\") = %v, want nil", err)
	}
}
