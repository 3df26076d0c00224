package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dhcgn/mbox-ediscovery/config"
	"github.com/dhcgn/mbox-ediscovery/export"
	"github.com/dhcgn/mbox-ediscovery/extract"
	"github.com/dhcgn/mbox-ediscovery/locate"
	"github.com/dhcgn/mbox-ediscovery/matcher"
	"github.com/dhcgn/mbox-ediscovery/mbox"
	"github.com/dhcgn/mbox-ediscovery/report"
	"github.com/dhcgn/mbox-ediscovery/stats"
)

// OutputDirPrefix starts the name of every run's output directory.
const OutputDirPrefix = "ediscovery_output_"

const outputDirTimeLayout = "20060102_150405"

var ErrAlreadyStarted = errors.New("runner already started")

// State is the lifecycle position of a Runner.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Runner struct {
	cfg     config.Config
	format  export.Format
	matcher *matcher.Matcher
	logger  *slog.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	subscribers []chan stats.Event
	statsWG     sync.WaitGroup

	errMu sync.Mutex
	err   error

	stateMu sync.Mutex
	state   State

	closeEventsOnce sync.Once
}

// New validates cfg and prepares a run. It does not touch the filesystem.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runner, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	format, err := export.ParseFormat(cfg.Format)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "format", Reason: err.Error()}
	}
	m, err := matcher.New(matcher.Options{Terms: cfg.Terms})
	if err != nil {
		return nil, &config.ConfigurationError{Field: "term", Reason: err.Error()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Runner{
		cfg:     cfg,
		format:  format,
		matcher: m,
		logger:  logger,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) Context() context.Context {
	return r.ctx
}

// SetClock replaces the time source used for the output directory name and
// elapsed time.
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.stateMu.Lock()
	r.state = s
	r.stateMu.Unlock()
}

// EmitEvent delivers evt to every subscriber.
func (r *Runner) EmitEvent(evt stats.Event) {
	for _, ch := range r.subscribers {
		select {
		case <-r.ctx.Done():
			return
		case ch <- evt:
		}
	}
}

// SubscribeStats registers a consumer of run events. Each subscriber receives
// every event on its own channel, which is closed when the run ends.
// Subscribers must be registered before Start.
func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	ch := make(chan stats.Event, 128)
	r.subscribers = append(r.subscribers, ch)

	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

// Cancel stops the run between two messages.
func (r *Runner) Cancel() {
	r.cancel()
}

// Start executes the pipeline on the calling goroutine and returns once the
// run has finished and every subscriber has drained its events.
func (r *Runner) Start() (report.Report, error) {
	r.stateMu.Lock()
	if r.state != StateIdle {
		r.stateMu.Unlock()
		return report.Report{}, ErrAlreadyStarted
	}
	r.state = StateRunning
	r.stateMu.Unlock()

	rep, err := r.run(r.ctx)

	r.closeEvents()
	r.statsWG.Wait()
	r.cancel()

	if err == nil {
		r.errMu.Lock()
		err = r.err
		r.errMu.Unlock()
	}

	if err != nil {
		r.setState(StateFailed)
		r.logger.Error("pipeline failed", append(rep.LogAttrs(), "err", err)...)
		return *rep, err
	}

	r.setState(StateCompleted)
	r.logger.Info("pipeline completed", rep.LogAttrs()...)
	return *rep, nil
}

func (r *Runner) run(ctx context.Context) (*report.Report, error) {
	started := r.now()
	rep := report.New(r.cfg.Root, r.format.String(), started)
	defer func() {
		rep.TermHits = r.matcher.GetStats().Hits
		rep.Finish(r.now())
	}()

	if err := locate.CheckRoot(r.cfg.Root); err != nil {
		return rep, err
	}

	outDir, err := createOutputDir(r.cfg.Root, started)
	if err != nil {
		return rep, fmt.Errorf("create output directory: %w", err)
	}
	rep.OutputDir = outDir
	r.logger.Info("run started", "runID", rep.RunID, "root", r.cfg.Root, "output", outDir, "format", r.format, "terms", r.matcher.Terms())

	exporter := export.New(outDir, r.format)

	for path, err := range locate.Containers(r.cfg.Root) {
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			rep.AddContainerError(path, err)
			r.EmitEvent(stats.Event{Stage: stats.StageLocate, Type: stats.EventTypeError, Container: path, MessageIndex: report.ContainerLevel, Err: err})
			r.logger.Warn("directory skipped", "path", path, "err", err)
			continue
		}
		r.processContainer(ctx, path, exporter, rep)
	}

	if logPath, err := rep.WriteErrorLog(outDir); err != nil {
		r.logger.Error("write error log", "dir", outDir, "err", err)
	} else if logPath != "" {
		r.logger.Warn("errors recorded", "count", len(rep.Errors), "file", logPath)
	}

	return rep, ctx.Err()
}

func (r *Runner) processContainer(ctx context.Context, path string, exporter *export.Exporter, rep *report.Report) {
	r.EmitEvent(stats.Event{Stage: stats.StageLocate, Type: stats.EventTypeContainer, Container: path})
	r.logger.Info("processing container", "path", path)

	reader, err := mbox.Open(path, r.logger)
	if err != nil {
		r.containerError(rep, path, err)
		return
	}
	defer reader.Close()
	rep.Containers++

	for env := range reader.Messages(ctx) {
		msg := env.Message
		if env.Err != nil {
			rep.AddMessageError(path, msg.Index, env.Err)
			r.EmitEvent(stats.Event{Stage: stats.StageMbox, Type: stats.EventTypeError, Container: path, MessageIndex: msg.Index, Err: env.Err})
			continue
		}

		rep.Scanned++
		r.EmitEvent(stats.Event{Stage: stats.StageMbox, Type: stats.EventTypeScanned, Container: path, MessageIndex: msg.Index})

		fields := extract.Extract(msg, r.logger)
		if !r.matcher.Match(fields.Corpus()) {
			continue
		}

		rep.Matches++
		index := rep.Matches
		r.EmitEvent(stats.Event{Stage: stats.StageMatch, Type: stats.EventTypeMatched, Container: path, MessageIndex: msg.Index, ArtifactIndex: index})

		artifact, err := exporter.Export(index, fields.Original)
		if err != nil {
			rep.AddMessageError(path, msg.Index, err)
			r.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeError, Container: path, MessageIndex: msg.Index, ArtifactIndex: index, Err: err})
			r.logger.Warn("export failed", "path", path, "index", msg.Index, "err", err)
			continue
		}
		r.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeExported, Container: path, MessageIndex: msg.Index, ArtifactIndex: index, Detail: artifact})
		r.logger.Debug("message exported", "path", path, "index", msg.Index, "artifact", artifact)
	}

	if err := reader.Err(); err != nil && ctx.Err() == nil {
		r.containerError(rep, path, err)
	}
}

func (r *Runner) containerError(rep *report.Report, path string, err error) {
	rep.AddContainerError(path, err)
	r.EmitEvent(stats.Event{Stage: stats.StageMbox, Type: stats.EventTypeError, Container: path, MessageIndex: report.ContainerLevel, Err: err})
	r.logger.Warn("container skipped", "path", path, "err", err)
}

// createOutputDir makes <root>/ediscovery_output_<timestamp>. A numeric
// suffix is added when a directory with that name already exists.
func createOutputDir(root string, ts time.Time) (string, error) {
	base := filepath.Join(root, OutputDirPrefix+ts.Format(outputDirTimeLayout))
	dir := base
	for i := 2; ; i++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) || i > 100 {
			return "", err
		}
		dir = fmt.Sprintf("%s_%d", base, i)
	}
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		for _, ch := range r.subscribers {
			close(ch)
		}
	})
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.errMu.Unlock()
}
