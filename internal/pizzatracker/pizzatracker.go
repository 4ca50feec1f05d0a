// Package pizzatracker implements the progress-pipe reader (component
// 4.F): a non-blocking, line-oriented consumer of a named pipe the
// external job writes structured progress into.
package pizzatracker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/castiron-io/etlworker/internal/producer"
)

// Tracker owns one FIFO for the lifetime of a single job's execute phase.
// It is created, polled repeatedly, and closed unconditionally on scope
// exit, per spec.md's scoped-resources design note.
type Tracker struct {
	path string
	file *os.File

	mu      sync.Mutex
	partial strings.Builder
}

// New creates the FIFO at <dir>/pizza-tracker-<jobID> and opens its read
// end non-blocking. The caller must call Close to unlink it.
func New(dir, jobID string) (*Tracker, error) {
	path := filepath.Join(dir, fmt.Sprintf("pizza-tracker-%s", jobID))

	if err := syscall.Mkfifo(path, 0600); err != nil {
		return nil, fmt.Errorf("failed to create progress fifo: %w", err)
	}

	fd, err := syscall.Open(path, syscall.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to open progress fifo: %w", err)
	}

	file := os.NewFile(uintptr(fd), path)
	return &Tracker{path: path, file: file}, nil
}

// Path returns the filesystem path the child process should be told to
// write to (handed to it via the PIZZA_TRACKER environment variable).
func (t *Tracker) Path() string {
	return t.path
}

// Drain performs one non-blocking read of whatever is currently available
// in the pipe, parses complete lines, and emits the corresponding
// producer calls for jobID. An empty read (nothing currently buffered) is
// not an error; callers poll again later.
func (t *Tracker) Drain(ctx context.Context, p producer.MessageProducer, jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := make([]byte, 4096)
	// The read end is managed by Go's poller, so a Read on an empty pipe
	// whose writer is still open would wait for data; the short deadline
	// keeps each drain pass from blocking.
	t.file.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	for {
		n, err := t.file.Read(buf)
		if n > 0 {
			t.partial.Write(buf[:n])
		}
		if err != nil {
			// deadline reached (no data currently available) or EOF (no
			// writer): stop this drain pass; caller will poll again.
			break
		}
		if n == 0 {
			break
		}
	}

	lines := t.extractLines()
	for _, line := range lines {
		handleLine(ctx, line, p, jobID)
	}
}

// extractLines splits any complete newline-terminated lines out of the
// accumulated partial buffer, leaving a trailing incomplete line (if any)
// for the next Drain call.
func (t *Tracker) extractLines() []string {
	data := t.partial.String()
	if data == "" {
		return nil
	}

	var lines []string
	for {
		idx := strings.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, data[:idx])
		data = data[idx+1:]
	}
	t.partial.Reset()
	t.partial.WriteString(data)
	return lines
}

// Close unlinks the FIFO and releases the read end. Safe to call once,
// unconditionally, regardless of job success or failure.
func (t *Tracker) Close() error {
	var err error
	if t.file != nil {
		err = t.file.Close()
	}
	if rmErr := os.Remove(t.path); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

func handleLine(ctx context.Context, line string, p producer.MessageProducer, jobID string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	parts := strings.SplitN(line, " ", 2)
	cmd := strings.ToLower(parts[0])
	var args string
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "task":
		if args == "" {
			return
		}
		p.JobTask(ctx, jobID, args)
	case "committed":
		n, err := strconv.Atoi(args)
		if err != nil {
			return
		}
		p.JobCommitted(ctx, jobID, n)
	case "progress":
		value, ok := parseProgress(args)
		if !ok {
			return
		}
		p.JobProgress(ctx, jobID, value)
	default:
		// unknown commands are silently dropped
	}
}

// parseProgress resolves a decimal or "num/den" argument, reporting ok=false
// if unparseable or outside [0,1].
func parseProgress(arg string) (float64, bool) {
	var value float64

	if strings.Contains(arg, "/") {
		parts := strings.SplitN(arg, "/", 2)
		if len(parts) != 2 {
			return 0, false
		}
		num, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		den, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil || den == 0 {
			return 0, false
		}
		value = num / den
	} else {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return 0, false
		}
		value = v
	}

	if value < 0 || value > 1 {
		return 0, false
	}
	return value, true
}
