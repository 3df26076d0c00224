package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEntry_String(t *testing.T) {
	container := Entry{Container: "/data/a.mbox", MessageIndex: ContainerLevel, Err: errors.New("boom")}
	if got, want := container.String(), "Error processing file a.mbox: boom"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	msg := Entry{Container: "/data/a.mbox", MessageIndex: 4, Err: errors.New("bad header")}
	if got, want := msg.String(), "Error processing email 4 in a.mbox: bad header"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestWriteErrorLog_Empty(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, "text", time.Now())

	path, err := r.WriteErrorLog(dir)
	if err != nil {
		t.Fatalf("WriteErrorLog() error = %v", err)
	}
	if path != "" {
		t.Errorf("WriteErrorLog() path = %q, want empty", path)
	}
	if _, err := os.Stat(filepath.Join(dir, ErrorLogName)); !os.IsNotExist(err) {
		t.Errorf("errors.txt exists for an empty report")
	}
}

func TestWriteErrorLog_Ordered(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, "original", time.Now())
	r.AddContainerError("/x/broken.mbox", errors.New("invalid mbox format"))
	r.AddMessageError("/x/good.mbox", 2, errors.New("malformed header"))

	path, err := r.WriteErrorLog(dir)
	if err != nil {
		t.Fatalf("WriteErrorLog() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], "broken.mbox") || !strings.Contains(lines[1], "email 2 in good.mbox") {
		t.Errorf("unexpected error log: %q", data)
	}
}

func TestNew_RunID(t *testing.T) {
	a := New("/r", "pdf", time.Now())
	b := New("/r", "pdf", time.Now())
	if a.RunID == "" || a.RunID == b.RunID {
		t.Errorf("run ids %q and %q should be unique and non-empty", a.RunID, b.RunID)
	}
}

func TestFinish(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	r := New("/r", "pdf", start)
	r.Finish(start.Add(1500 * time.Millisecond))
	if r.Elapsed != 1500*time.Millisecond {
		t.Errorf("Elapsed = %v", r.Elapsed)
	}
}
