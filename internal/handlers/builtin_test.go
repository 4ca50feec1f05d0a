package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestChecksumHandlerWithoutTracker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatalf("failed to write fixture file: %v", err)
	}

	if err := checksumHandler(context.Background(), path, Options{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestChecksumHandlerMissingFile(t *testing.T) {
	err := checksumHandler(context.Background(), "/nonexistent/path.csv", Options{})
	if err == nil {
		t.Error("expected an error for a missing input file")
	}
}
