package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/anicoll/iio-sensors/internal/pkg/configuration"
	"github.com/anicoll/iio-sensors/internal/pkg/debounce"
	"github.com/anicoll/iio-sensors/internal/pkg/model"
	"github.com/anicoll/iio-sensors/internal/pkg/reconciler"
)

type fakeSource struct {
	mu        sync.Mutex
	types     [][]string
	responses map[int]func() (model.Snapshot, error)
	called    chan int
}

func newFakeSource() *fakeSource {
	return &fakeSource{responses: map[int]func() (model.Snapshot, error){}, called: make(chan int, 16)}
}

func (f *fakeSource) GetConfiguration(_ context.Context, types []string) (model.Snapshot, error) {
	f.mu.Lock()
	n := len(f.types)
	f.types = append(f.types, types)
	respond := f.responses[n]
	f.mu.Unlock()
	f.called <- n
	if respond != nil {
		return respond()
	}
	return model.Snapshot{{Path: "/inventory/A"}}, nil
}

type rescanCall struct {
	mode     string
	paths    []string
	snapshot model.Snapshot
}

type fakeRescanner struct {
	calls chan rescanCall
	err   error
}

func (f *fakeRescanner) Rescan(snapshot model.Snapshot, mode reconciler.ScanMode) (reconciler.Result, error) {
	var paths []string
	if !mode.IsFull() {
		paths = mode.Changed().Paths()
		// consume everything, as a reconciler with one sensor per changed path would
		for _, p := range paths {
			mode.Changed().TakeSuffix(p)
		}
	}
	f.calls <- rescanCall{mode: mode.String(), paths: paths, snapshot: snapshot}
	return reconciler.Result{Devices: 1}, f.err
}

type fakeTable struct {
	closed chan struct{}
}

func (f *fakeTable) CloseAll() { close(f.closed) }

type fakeRecorder struct {
	mu      sync.Mutex
	results []string
	notes   int
}

func (f *fakeRecorder) RescanCompleted(mode, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, mode+"/"+result)
}

func (f *fakeRecorder) NotificationReceived() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes++
}

func (f *fakeRecorder) snapshot() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.results...), f.notes
}

type harness struct {
	engine    *Engine
	clock     *clock.Mock
	source    *fakeSource
	rescanner *fakeRescanner
	table     *fakeTable
	metrics   *fakeRecorder
	logs      *observer.ObservedLogs
	cancel    context.CancelFunc
	done      chan error
	stopOnce  sync.Once
	stopErr   error
}

func newHarness(t *testing.T, source *fakeSource) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	mock := clock.NewMock()
	h := &harness{
		clock:     mock,
		source:    source,
		rescanner: &fakeRescanner{calls: make(chan rescanCall, 16)},
		table:     &fakeTable{closed: make(chan struct{})},
		metrics:   &fakeRecorder{},
		logs:      logs,
		done:      make(chan error, 1),
	}
	h.engine = New(source, h.rescanner, h.table, debounce.New(time.Second, debounce.WithClock(mock)),
		WithMetrics(h.metrics), WithLogger(zap.New(core)))
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.engine.Run(ctx) }()
	t.Cleanup(func() { h.stop(t) })
}

func (h *harness) stop(t *testing.T) error {
	h.stopOnce.Do(func() {
		h.cancel()
		select {
		case h.stopErr = <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("engine did not stop")
		}
	})
	return h.stopErr
}

func (h *harness) waitResults(t *testing.T, want ...string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		results, _ := h.metrics.snapshot()
		return assert.ObjectsAreEqual(want, results)
	}, 2*time.Second, 10*time.Millisecond)
}

func waitRescan(t *testing.T, h *harness) rescanCall {
	t.Helper()
	select {
	case c := <-h.rescanner.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rescan")
		return rescanCall{}
	}
}

func waitFetch(t *testing.T, h *harness) int {
	t.Helper()
	select {
	case n := <-h.source.called:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for configuration fetch")
		return -1
	}
}

func assertNoRescan(t *testing.T, h *harness) {
	t.Helper()
	select {
	case c := <-h.rescanner.calls:
		t.Fatalf("unexpected rescan %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngine_StartupFullScan(t *testing.T) {
	h := newHarness(t, newFakeSource())
	h.start(t)

	assert.Equal(t, 0, waitFetch(t, h))
	call := waitRescan(t, h)
	assert.Equal(t, "full", call.mode)
	assert.Empty(t, call.paths)

	h.source.mu.Lock()
	assert.Equal(t, configuration.SupportedTypes, h.source.types[0])
	h.source.mu.Unlock()

	assert.NoError(t, h.stop(t))
	select {
	case <-h.table.closed:
	default:
		t.Fatal("sensors not released on shutdown")
	}
}

func TestEngine_BurstCoalescesIntoOneIncrementalScan(t *testing.T) {
	h := newHarness(t, newFakeSource())
	h.start(t)
	waitRescan(t, h)

	paths := []string{"/inventory/A", "/inventory/B", "/inventory/C", "/inventory/A", "/inventory/D"}
	for _, p := range paths {
		h.engine.Notify(p)
		h.clock.Add(40 * time.Millisecond)
	}
	assertNoRescan(t, h)

	h.clock.Add(time.Second)
	call := waitRescan(t, h)
	assert.Equal(t, "incremental", call.mode)
	assert.Equal(t, []string{"/inventory/A", "/inventory/B", "/inventory/C", "/inventory/D"}, call.paths)
	assertNoRescan(t, h)

	h.waitResults(t, "full/ok", "incremental/ok")
	_, notes := h.metrics.snapshot()
	assert.Equal(t, 5, notes)
}

func TestEngine_FetchErrorPreservesChanges(t *testing.T) {
	source := newFakeSource()
	source.responses[1] = func() (model.Snapshot, error) { return nil, errors.New("bus unavailable") }
	h := newHarness(t, source)
	h.start(t)
	waitFetch(t, h)
	waitRescan(t, h)

	h.engine.Notify("/inventory/A")
	h.clock.Add(time.Second)
	assert.Equal(t, 1, waitFetch(t, h))
	assertNoRescan(t, h)
	require.Eventually(t, func() bool {
		return h.logs.FilterMessage("error getting sensor configuration").Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.engine.Notify("/inventory/B")
	h.clock.Add(time.Second)
	call := waitRescan(t, h)
	assert.Equal(t, "incremental", call.mode)
	assert.Equal(t, []string{"/inventory/A", "/inventory/B"}, call.paths)

	h.waitResults(t, "full/ok", "incremental/fetch_error", "incremental/ok")
}

func TestEngine_QuietPeriodDuringFetchSchedulesOneMorePass(t *testing.T) {
	gate := make(chan struct{})
	source := newFakeSource()
	stale := model.Snapshot{{Path: "/inventory/A", Data: model.SensorData{"PollRate": {"value": 2}}}}
	fresh := model.Snapshot{{Path: "/inventory/A", Data: model.SensorData{"PollRate": {"value": 3}}}}
	source.responses[1] = func() (model.Snapshot, error) {
		<-gate
		return stale, nil
	}
	source.responses[2] = func() (model.Snapshot, error) { return fresh, nil }
	h := newHarness(t, source)
	h.start(t)
	waitFetch(t, h)
	waitRescan(t, h)

	h.engine.Notify("/inventory/A")
	h.clock.Add(time.Second)
	assert.Equal(t, 1, waitFetch(t, h))

	// A changes again while the first fetch is still outstanding
	for i, p := range []string{"/inventory/A", "/inventory/B"} {
		h.engine.Notify(p)
		h.clock.Add(time.Second)
		require.Eventually(t, func() bool {
			return h.logs.FilterMessage("rescan requested while fetch in flight").Len() == i+1
		}, 2*time.Second, 10*time.Millisecond)
	}
	close(gate)

	first := waitRescan(t, h)
	assert.Equal(t, []string{"/inventory/A"}, first.paths)
	assert.Equal(t, stale, first.snapshot)

	assert.Equal(t, 2, waitFetch(t, h))
	second := waitRescan(t, h)
	assert.Equal(t, "incremental", second.mode)
	assert.Equal(t, []string{"/inventory/A", "/inventory/B"}, second.paths)
	assert.Equal(t, fresh, second.snapshot)
	assertNoRescan(t, h)
}

func TestEngine_NotificationDuringFetchWaitsForItsOwnQuietPeriod(t *testing.T) {
	gate := make(chan struct{})
	source := newFakeSource()
	source.responses[1] = func() (model.Snapshot, error) {
		<-gate
		return nil, nil
	}
	h := newHarness(t, source)
	h.start(t)
	waitFetch(t, h)
	waitRescan(t, h)

	h.engine.Notify("/inventory/A")
	h.clock.Add(time.Second)
	assert.Equal(t, 1, waitFetch(t, h))

	h.engine.Notify("/inventory/B")
	close(gate)
	first := waitRescan(t, h)
	assert.Equal(t, []string{"/inventory/A"}, first.paths)
	assertNoRescan(t, h)

	h.clock.Add(time.Second)
	assert.Equal(t, 2, waitFetch(t, h))
	assert.Equal(t, []string{"/inventory/B"}, waitRescan(t, h).paths)
}

func TestEngine_FailedStartupFetchRetriesFullScan(t *testing.T) {
	source := newFakeSource()
	source.responses[0] = func() (model.Snapshot, error) { return nil, errors.New("bus unavailable") }
	h := newHarness(t, source)
	h.start(t)
	waitFetch(t, h)
	assertNoRescan(t, h)

	h.engine.Notify("/inventory/A")
	h.clock.Add(time.Second)
	assert.Equal(t, "full", waitRescan(t, h).mode)

	h.engine.Notify("/inventory/B")
	h.clock.Add(time.Second)
	assert.Equal(t, "incremental", waitRescan(t, h).mode)
}

func TestEngine_EmptyScanIsRecorded(t *testing.T) {
	h := newHarness(t, newFakeSource())
	h.rescanner.err = reconciler.ErrEmptyScan
	h.start(t)
	waitRescan(t, h)

	h.waitResults(t, "full/empty")
}
