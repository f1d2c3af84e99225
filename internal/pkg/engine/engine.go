// Package engine drives rescans: one full scan at startup, then a debounced incremental
// scan after each burst of configuration change notifications.
package engine

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/anicoll/iio-sensors/internal/pkg/configuration"
	"github.com/anicoll/iio-sensors/internal/pkg/debounce"
	"github.com/anicoll/iio-sensors/internal/pkg/metrics"
	"github.com/anicoll/iio-sensors/internal/pkg/model"
	"github.com/anicoll/iio-sensors/internal/pkg/reconciler"
)

const (
	resultOK         = "ok"
	resultEmpty      = "empty"
	resultError      = "error"
	resultFetchError = "fetch_error"
)

type rescanner interface {
	Rescan(snapshot model.Snapshot, mode reconciler.ScanMode) (reconciler.Result, error)
}

type closer interface {
	CloseAll()
}

type recorder interface {
	RescanCompleted(mode, result string)
	NotificationReceived()
}

type fetchResult struct {
	snapshot model.Snapshot
	full     bool
	err      error
}

type Engine struct {
	source     configuration.Source
	reconciler rescanner
	table      closer
	debouncer  *debounce.Debouncer
	types      []string
	metrics    recorder
	logger     *zap.Logger

	mu     sync.Mutex
	queued []string
}

func New(source configuration.Source, r rescanner, table closer, d *debounce.Debouncer, opts ...func(*Engine)) *Engine {
	e := &Engine{
		source:     source,
		reconciler: r,
		table:      table,
		debouncer:  d,
		types:      configuration.SupportedTypes,
		metrics:    (*metrics.Metrics)(nil),
		logger:     zap.L(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// WithTypes sets the configuration type tags fetched for each rescan.
func WithTypes(types []string) func(*Engine) {
	return func(e *Engine) {
		e.types = types
	}
}

func WithMetrics(m recorder) func(*Engine) {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithLogger(l *zap.Logger) func(*Engine) {
	return func(e *Engine) {
		e.logger = l
	}
}

// Notify records a changed configuration path and restarts the quiet period. Safe to call
// from any goroutine, including before Run starts.
func (e *Engine) Notify(path string) {
	e.mu.Lock()
	e.queued = append(e.queued, path)
	e.mu.Unlock()
	e.metrics.NotificationReceived()
	e.debouncer.Trigger()
}

func (e *Engine) drain(changed *reconciler.ChangedSet) {
	e.mu.Lock()
	queued := e.queued
	e.queued = nil
	e.mu.Unlock()
	for _, p := range queued {
		changed.Add(p)
	}
}

// Run performs the startup full scan and then serves debounced rescans until ctx is done.
// At most one configuration fetch is in flight; a quiet period that ends during a fetch
// schedules exactly one more pass. Paths notified during a fetch are held back for the pass
// after it, which runs against the newer configuration. Every sensor is released on return.
func (e *Engine) Run(ctx context.Context) error {
	defer e.table.CloseAll()
	defer e.debouncer.Stop()

	var (
		changed  = reconciler.NewChangedSet()
		results  = make(chan fetchResult, 1)
		inFlight bool
		pending  bool
		needFull = true
	)
	start := func(full bool) {
		inFlight = true
		e.drain(changed)
		go func() {
			snapshot, err := e.source.GetConfiguration(ctx, e.types)
			results <- fetchResult{snapshot: snapshot, full: full, err: err}
		}()
	}

	e.logger.Info("starting full scan")
	start(true)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("context done")
			return nil
		case <-e.debouncer.C():
			if inFlight {
				e.logger.Debug("rescan requested while fetch in flight")
				pending = true
				continue
			}
			start(needFull)
		case res := <-results:
			inFlight = false
			e.complete(ctx, res, changed, &needFull)
			if pending {
				pending = false
				start(needFull)
			}
		}
	}
}

func (e *Engine) complete(ctx context.Context, res fetchResult, changed *reconciler.ChangedSet, needFull *bool) {
	mode := reconciler.IncrementalScan(changed)
	if res.full {
		mode = reconciler.FullScan()
	}
	if res.err != nil {
		if ctx.Err() != nil {
			return
		}
		e.logger.Error("error getting sensor configuration", zap.Stringer("scan_mode", mode), zap.Error(res.err))
		e.metrics.RescanCompleted(mode.String(), resultFetchError)
		return
	}

	result, err := e.reconciler.Rescan(res.snapshot, mode)
	switch {
	case errors.Is(err, reconciler.ErrEmptyScan):
		e.metrics.RescanCompleted(mode.String(), resultEmpty)
	case err != nil:
		e.logger.Error("rescan failed", zap.Stringer("scan_mode", mode), zap.Error(err))
		e.metrics.RescanCompleted(mode.String(), resultError)
		return
	default:
		e.metrics.RescanCompleted(mode.String(), resultOK)
	}
	if res.full {
		*needFull = false
	}
	e.logger.Info("rescan complete",
		zap.Stringer("scan_mode", mode),
		zap.Int("devices", result.Devices),
		zap.Int("constructed", result.Constructed),
		zap.Int("skipped", result.Skipped),
		zap.Int("unconsumed_changes", changed.Len()),
	)
}
