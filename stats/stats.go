package stats

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type Stage string

const (
	StageLocate Stage = "locate"
	StageMbox   Stage = "mbox"
	StageMatch  Stage = "match"
	StageExport Stage = "export"
)

type EventType string

const (
	EventTypeContainer EventType = "container"
	EventTypeScanned   EventType = "scanned"
	EventTypeMatched   EventType = "matched"
	EventTypeExported  EventType = "exported"
	EventTypeError     EventType = "error"
)

type Event struct {
	Stage         Stage
	Type          EventType
	Container     string
	MessageIndex  int
	ArtifactIndex int
	Err           error
	Detail        string
}

type Summary struct {
	Containers int
	Scanned    int
	Matched    int
	Exported   int
	Errors     int
	LastError  error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"containers", s.Containers,
		"scanned", s.Scanned,
		"matched", s.Matched,
		"exported", s.Exported,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.Apply(evt)
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

func (c *Collector) Apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeContainer:
		c.summary.Containers++
	case EventTypeScanned:
		c.summary.Scanned++
	case EventTypeMatched:
		c.summary.Matched++
	case EventTypeExported:
		c.summary.Exported++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
	if ctx.Err() != nil {
		if r.logger != nil {
			r.logger.Debug("stats collection stopped", append(attrs, "err", ctx.Err())...)
		}
		return ctx.Err()
	}
	if r.logger != nil {
		r.logger.Info("stats summary", attrs...)
	}
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}

// Pair is one counted value.
type Pair struct {
	Key   string
	Value int
}

// Top returns up to limit entries of m ordered by count, then key.
func Top(m map[string]int, limit int) []Pair {
	pairs := make([]Pair, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, Pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Value != pairs[j].Value {
			return pairs[i].Value > pairs[j].Value
		}
		return pairs[i].Key < pairs[j].Key
	})

	if limit >= 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}
