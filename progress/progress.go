package progress

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/dhcgn/mbox-ediscovery/stats"
)

// Bar manages a progress bar over the containers of a run.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	current string
	mu      sync.Mutex
	enabled bool
}

// New creates a new progress bar; a disabled bar ignores all updates.
func New(total int, enabled bool) *Bar {
	bar := &Bar{
		total:   total,
		enabled: enabled && total > 0,
	}

	if bar.enabled {
		pterm.Info.Printf("Containers to search: %d\n", total)
		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Searching containers").
			Start()
		bar.pb = pb
	}

	return bar
}

// Update advances the bar based on the event type.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeContainer:
		if b.current != "" {
			b.pb.Increment()
		}
		b.current = evt.Container
		b.pb.UpdateTitle("Searching " + truncate(filepath.Base(evt.Container), 40))
	case stats.EventTypeError:
		// Show error messages above the progress bar
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
	}
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}

	_, _ = b.pb.Stop()
}

// ProgressReporter combines the progress bar with a final pterm summary.
type ProgressReporter struct {
	bar       *Bar
	collector *stats.Collector
	started   time.Time
}

// NewProgressReporter subscribes the bar and its summary to the stream when
// the bar is enabled.
func NewProgressReporter(stream stats.EventStream, bar *Bar) *ProgressReporter {
	reporter := &ProgressReporter{
		bar:       bar,
		collector: stats.NewCollector(),
		started:   time.Now(),
	}

	if bar != nil && bar.enabled {
		stream.SubscribeStats("progress", reporter.consume)
	}

	return reporter
}

func (pr *ProgressReporter) consume(ctx context.Context, events <-chan stats.Event) error {
	defer pr.bar.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				pr.printSummary()
				return nil
			}
			pr.collector.Apply(evt)
			pr.bar.Update(evt)
		}
	}
}

func (pr *ProgressReporter) printSummary() {
	pr.bar.Stop()

	summary := pr.collector.Snapshot()
	pterm.Println()
	pterm.DefaultSection.Println("Summary")
	pterm.Info.Printf("Duration: %v\n", time.Since(pr.started).Round(time.Millisecond))
	pterm.Info.Printf("Containers: %d\n", summary.Containers)
	pterm.Info.Printf("Messages scanned: %d\n", summary.Scanned)
	pterm.Info.Printf("Matched: %d\n", summary.Matched)
	pterm.Info.Printf("Exported: %d\n", summary.Exported)
	pterm.Info.Printf("Errors: %d\n", summary.Errors)
	if summary.LastError != nil {
		pterm.Error.Printf("Last error: %v\n", summary.LastError)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
