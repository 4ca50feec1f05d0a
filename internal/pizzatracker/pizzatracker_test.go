package pizzatracker

import (
	"context"
	"os"
	"testing"
	"time"
)

// fakeProducer records every call so tests can assert exact sequences
// without a real message bus.
type fakeProducer struct {
	tasks      []string
	progress   []float64
	committed  []int
}

func (f *fakeProducer) JobCreated(context.Context, string, string, string, string) error { return nil }
func (f *fakeProducer) JobTask(_ context.Context, _ string, taskName string) error {
	f.tasks = append(f.tasks, taskName)
	return nil
}
func (f *fakeProducer) JobProgress(_ context.Context, _ string, progress float64) error {
	f.progress = append(f.progress, progress)
	return nil
}
func (f *fakeProducer) JobCommitted(_ context.Context, _ string, count int) error {
	f.committed = append(f.committed, count)
	return nil
}
func (f *fakeProducer) JobStatus(context.Context, string, bool) error { return nil }

func TestParseProgressDecimal(t *testing.T) {
	v, ok := parseProgress("0.5")
	if !ok || v != 0.5 {
		t.Errorf("parseProgress(0.5) = %v, %v", v, ok)
	}
}

func TestParseProgressFraction(t *testing.T) {
	v, ok := parseProgress("3/4")
	if !ok || v != 0.75 {
		t.Errorf("parseProgress(3/4) = %v, %v", v, ok)
	}
}

func TestParseProgressOutOfRange(t *testing.T) {
	if _, ok := parseProgress("1.5"); ok {
		t.Error("expected out-of-range progress to be rejected")
	}
	if _, ok := parseProgress("-0.1"); ok {
		t.Error("expected negative progress to be rejected")
	}
}

func TestParseProgressDivisionByZero(t *testing.T) {
	if _, ok := parseProgress("1/0"); ok {
		t.Error("expected division by zero to be rejected")
	}
}

func TestParseProgressMalformed(t *testing.T) {
	if _, ok := parseProgress("not-a-number"); ok {
		t.Error("expected malformed progress to be rejected")
	}
	if _, ok := parseProgress("1/2/3"); ok {
		t.Error("expected malformed fraction to be rejected")
	}
}

func TestHandleLineTask(t *testing.T) {
	p := &fakeProducer{}
	handleLine(context.Background(), "task loading rows", p, "job-1")
	if len(p.tasks) != 1 || p.tasks[0] != "loading rows" {
		t.Errorf("unexpected tasks: %v", p.tasks)
	}
}

func TestHandleLineCaseInsensitiveCommand(t *testing.T) {
	p := &fakeProducer{}
	handleLine(context.Background(), "TASK loading rows", p, "job-1")
	if len(p.tasks) != 1 {
		t.Errorf("expected case-insensitive command to still be recognized, got %v", p.tasks)
	}
}

func TestHandleLineCommitted(t *testing.T) {
	p := &fakeProducer{}
	handleLine(context.Background(), "committed 42", p, "job-1")
	if len(p.committed) != 1 || p.committed[0] != 42 {
		t.Errorf("unexpected committed: %v", p.committed)
	}
}

func TestHandleLineProgress(t *testing.T) {
	p := &fakeProducer{}
	handleLine(context.Background(), "progress 1/2", p, "job-1")
	if len(p.progress) != 1 || p.progress[0] != 0.5 {
		t.Errorf("unexpected progress: %v", p.progress)
	}
}

func TestHandleLineMalformedCommittedSilentlyDropped(t *testing.T) {
	p := &fakeProducer{}
	handleLine(context.Background(), "committed not-a-number", p, "job-1")
	if len(p.committed) != 0 {
		t.Errorf("expected malformed committed line to be dropped, got %v", p.committed)
	}
}

func TestHandleLineUnknownCommandSilentlyDropped(t *testing.T) {
	p := &fakeProducer{}
	handleLine(context.Background(), "frobnicate 99", p, "job-1")
	if len(p.tasks)+len(p.progress)+len(p.committed) != 0 {
		t.Error("expected unknown command to produce no calls")
	}
}

func TestHandleLineBlankLineIgnored(t *testing.T) {
	p := &fakeProducer{}
	handleLine(context.Background(), "   ", p, "job-1")
	if len(p.tasks)+len(p.progress)+len(p.committed) != 0 {
		t.Error("expected blank line to produce no calls")
	}
}

func TestDrainReadsPartialThenCompleteLine(t *testing.T) {
	dir := t.TempDir()
	tracker, err := New(dir, "job-drain")
	if err != nil {
		t.Fatalf("failed to create tracker: %v", err)
	}
	defer tracker.Close()

	writer, err := os.OpenFile(tracker.Path(), os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("failed to open fifo for writing: %v", err)
	}
	defer writer.Close()

	p := &fakeProducer{}

	if _, err := writer.WriteString("task step one\nprogress 0."); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	tracker.Drain(context.Background(), p, "job-drain")
	if len(p.tasks) != 1 || p.tasks[0] != "step one" {
		t.Fatalf("expected the complete line to be parsed, got tasks=%v", p.tasks)
	}
	if len(p.progress) != 0 {
		t.Fatalf("expected the incomplete progress line to stay buffered, got %v", p.progress)
	}

	if _, err := writer.WriteString("25\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	// give the FIFO a moment to become readable under the non-blocking fd.
	time.Sleep(20 * time.Millisecond)
	tracker.Drain(context.Background(), p, "job-drain")
	if len(p.progress) != 1 || p.progress[0] != 0.25 {
		t.Fatalf("expected the completed progress line to be parsed, got %v", p.progress)
	}
}
