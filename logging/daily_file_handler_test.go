package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDailyFileHandlerWritesAndRotates(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer

	h, err := newDailyFileHandler(dir, "policybot", &stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	if err != nil {
		t.Fatalf("Failed to create handler: %v", err)
	}
	defer h.Close()

	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h.file.mutex.Lock()
	h.file.now = func() time.Time { return day }
	h.file.mutex.Unlock()

	logger := slog.New(h).With(slog.String("corpus", "policy"))
	logger.Info("Index loaded", slog.Int("entries", 42))

	day = day.Add(24 * time.Hour)
	logger.WithGroup("batch").Debug("Embedding batch", slog.Int("n", 3))

	first, err := os.ReadFile(filepath.Join(dir, "policybot-2026-03-01.log"))
	if err != nil {
		t.Fatalf("Expected first day log file: %v", err)
	}
	if !strings.Contains(string(first), "Index loaded corpus=policy entries=42") {
		t.Errorf("Unexpected first day content: %q", first)
	}

	second, err := os.ReadFile(filepath.Join(dir, "policybot-2026-03-02.log"))
	if err != nil {
		t.Fatalf("Expected rotated log file: %v", err)
	}
	if !strings.Contains(string(second), "batch.n=3") {
		t.Errorf("Expected grouped attribute in rotated file, got %q", second)
	}

	if !strings.Contains(stdout.String(), "Index loaded") {
		t.Errorf("Expected records mirrored to stdout, got %q", stdout.String())
	}
}
