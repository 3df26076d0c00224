package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrorLogName is the file that receives the run's error entries.
const ErrorLogName = "errors.txt"

// ContainerLevel marks an Entry that concerns a whole container.
const ContainerLevel = -1

// Entry is one recorded failure, either for a container or for one message in it.
type Entry struct {
	Container    string
	MessageIndex int
	Err          error
}

func (e Entry) String() string {
	name := filepath.Base(e.Container)
	if e.MessageIndex == ContainerLevel {
		return fmt.Sprintf("Error processing file %s: %v", name, e.Err)
	}
	return fmt.Sprintf("Error processing email %d in %s: %v", e.MessageIndex, name, e.Err)
}

// Report accumulates the outcome of one run.
type Report struct {
	RunID      string
	Root       string
	OutputDir  string
	Format     string
	Containers int
	Scanned    int
	Matches    int
	Started    time.Time
	Elapsed    time.Duration
	Errors     []Entry
	TermHits   map[string]int
}

// New starts a report for a run over root.
func New(root, format string, started time.Time) *Report {
	return &Report{
		RunID:   uuid.NewString(),
		Root:    root,
		Format:  format,
		Started: started,
	}
}

// AddContainerError records a failure that affected a whole container.
func (r *Report) AddContainerError(container string, err error) {
	r.Errors = append(r.Errors, Entry{Container: container, MessageIndex: ContainerLevel, Err: err})
}

// AddMessageError records a failure for one message of a container.
func (r *Report) AddMessageError(container string, index int, err error) {
	r.Errors = append(r.Errors, Entry{Container: container, MessageIndex: index, Err: err})
}

// Finish stamps the elapsed time.
func (r *Report) Finish(now time.Time) {
	r.Elapsed = now.Sub(r.Started)
}

// LogAttrs returns the report summary as slog key/value pairs.
func (r *Report) LogAttrs() []any {
	return []any{
		"runID", r.RunID,
		"output", r.OutputDir,
		"format", r.Format,
		"containers", r.Containers,
		"scanned", r.Scanned,
		"matches", r.Matches,
		"errors", len(r.Errors),
		"elapsed", r.Elapsed,
	}
}

// WriteErrorLog writes one line per entry to dir/errors.txt. Nothing is
// written when the report holds no errors. It returns the file path, or ""
// when no file was created.
func (r *Report) WriteErrorLog(dir string) (string, error) {
	if len(r.Errors) == 0 {
		return "", nil
	}

	path := filepath.Join(dir, ErrorLogName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("open error log: %w", err)
	}

	writer := bufio.NewWriterSize(file, 64*1024)
	for i, entry := range r.Errors {
		if i > 0 {
			if err := writer.WriteByte('\n'); err != nil {
				file.Close()
				return "", fmt.Errorf("write newline: %w", err)
			}
		}
		if _, err := writer.WriteString(entry.String()); err != nil {
			file.Close()
			return "", fmt.Errorf("write error entry: %w", err)
		}
	}

	var firstErr error
	if err := writer.Flush(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("flush error log: %w", err)
	}
	if err := file.Sync(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("sync error log: %w", err)
	}
	if err := file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close error log: %w", err)
	}
	if firstErr != nil {
		return "", firstErr
	}

	return path, nil
}
