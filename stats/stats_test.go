package stats

import (
	"context"
	"errors"
	"testing"
)

func TestCollector_Run(t *testing.T) {
	events := make(chan Event, 8)
	events <- Event{Stage: StageLocate, Type: EventTypeContainer, Container: "a.mbox"}
	events <- Event{Stage: StageMbox, Type: EventTypeScanned}
	events <- Event{Stage: StageMbox, Type: EventTypeScanned}
	events <- Event{Stage: StageMatch, Type: EventTypeMatched}
	events <- Event{Stage: StageExport, Type: EventTypeExported, ArtifactIndex: 1}
	events <- Event{Stage: StageMbox, Type: EventTypeError, Err: errors.New("first")}
	events <- Event{Stage: StageExport, Type: EventTypeError, Err: errors.New("last")}
	close(events)

	c := NewCollector()
	c.Run(context.Background(), events)

	s := c.Snapshot()
	if s.Containers != 1 || s.Scanned != 2 || s.Matched != 1 || s.Exported != 1 || s.Errors != 2 {
		t.Fatalf("Snapshot() = %+v", s)
	}
	if s.LastError == nil || s.LastError.Error() != "last" {
		t.Errorf("LastError = %v, want last", s.LastError)
	}
}

func TestTop(t *testing.T) {
	m := map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}

	got := Top(m, 3)
	want := []Pair{{"c", 5}, {"a", 2}, {"b", 2}}
	if len(got) != len(want) {
		t.Fatalf("Top() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Top()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
