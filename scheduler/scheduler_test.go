package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mwangi/occlusion/config"
	"github.com/mwangi/occlusion/id"
	"github.com/mwangi/occlusion/index"
	"github.com/mwangi/occlusion/loader"
	"github.com/mwangi/occlusion/store"
	"go.akshayshah.org/attest"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedLoader replays a fixed sequence of (Result, error) pairs, one per
// call. A call past the end of the script repeats the last entry.
type scriptedLoader struct {
	script []loaderOutcome
	calls  int
}

type loaderOutcome struct {
	result loader.Result
	err    error
}

func (l *scriptedLoader) Load(_ context.Context, _ loader.DataSource, _ loader.SourceMetadata) (loader.Result, error) {
	i := l.calls
	if i >= len(l.script) {
		i = len(l.script) - 1
	}
	l.calls++
	o := l.script[i]
	return o.result, o.err
}

// recordingSleeper records every requested duration. It cancels ctx in the
// call that records the stopAfter-th duration, so the loop under test returns
// right after that sleep instead of running forever.
type recordingSleeper struct {
	durations []time.Duration
	stopAfter int
	cancel    context.CancelFunc
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) {
	r.durations = append(r.durations, d)
	if r.stopAfter > 0 && len(r.durations) >= r.stopAfter && r.cancel != nil {
		r.cancel()
	}
}

func okResult(n int) loader.Result {
	entries := make([]index.Entry, n)
	for i := range entries {
		entries[i] = index.Entry{UUID: id.NewUUID(), Level: 0}
	}
	idx, err := index.Build(index.VariantMap, entries)
	if err != nil {
		panic(err)
	}
	return loader.Result{Changed: true, Index: idx, Metadata: loader.SourceMetadata{ETag: fmt.Sprintf("v%d", n)}}
}

func newEmptyStore(t *testing.T) *store.SwappableStore {
	t.Helper()
	idx, err := index.Build(index.VariantMap, nil)
	attest.Ok(t, err)
	return store.New(idx)
}

// TestBackoffSequenceAndRecovery verifies that three consecutive failures
// with max_failures unlimited observe backoffs 5s, 10s, 20s; a success on
// the fourth attempt installs the new index and resets the backoff; the
// very next failure backs off 5s again.
func TestBackoffSequenceAndRecovery(t *testing.T) {
	t.Parallel()

	failErr := fmt.Errorf("source unavailable")
	fakeLoader := &scriptedLoader{script: []loaderOutcome{
		{err: failErr},
		{err: failErr},
		{err: failErr},
		{result: okResult(1)},
		{err: failErr},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sleeper := &recordingSleeper{stopAfter: 6, cancel: cancel}

	s := New(fakeLoader, newEmptyStore(t), loader.SourceMetadata{}, Config{
		Interval: time.Minute,
		Variant:  index.VariantMap,
		Logger:   slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Sleep:    sleeper.sleep,
	})

	err := s.Run(ctx)
	attest.Ok(t, err)

	attest.Equal(t, len(sleeper.durations), 6)
	attest.Equal(t, sleeper.durations[0], time.Minute) // initial interval wait
	attest.Equal(t, sleeper.durations[1], 5*time.Second)
	attest.Equal(t, sleeper.durations[2], 10*time.Second)
	attest.Equal(t, sleeper.durations[3], 20*time.Second)
	attest.Equal(t, sleeper.durations[4], time.Minute) // reset after success
	attest.Equal(t, sleeper.durations[5], 5*time.Second) // next failure backs off from k=1
}

func TestBackoffFor(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		k    int
		want time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, 80 * time.Second},
		{6, 160 * time.Second},
		{7, 300 * time.Second},
		{100, 300 * time.Second},
	} {
		attest.Equal(t, backoffFor(tt.k), tt.want)
	}
}

// TestClearPolicy verifies that with max_failures=N and on_max_failures
// Clear, the N-th failure triggers an empty-index swap and resets the
// counter; the next failure restarts backoff from k=1.
func TestClearPolicy(t *testing.T) {
	t.Parallel()

	failErr := fmt.Errorf("source unavailable")
	fakeLoader := &scriptedLoader{script: []loaderOutcome{
		{err: failErr},
		{err: failErr}, // 2nd failure hits max_failures=2, triggers Clear
		{err: failErr}, // backoff restarts at k=1 after the clear
	}}

	s0 := okResult(3).Index
	st := store.New(s0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := &recordingSleeper{stopAfter: 4, cancel: cancel}

	sched := New(fakeLoader, st, loader.SourceMetadata{}, Config{
		Interval:      time.Minute,
		Variant:       index.VariantMap,
		MaxFailures:   2,
		OnMaxFailures: config.OnMaxFailuresClear,
		Logger:        slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Sleep:         sleeper.sleep,
	})

	err := sched.Run(ctx)
	attest.Ok(t, err)

	attest.True(t, st.IsEmpty())
	attest.Equal(t, sleeper.durations[2], time.Minute)     // reset to base interval right after the clear
	attest.Equal(t, sleeper.durations[3], 5*time.Second) // backoff restarts at k=1
}

// TestShutdownPolicy verifies that the shutdown terminal policy returns
// ErrShutdown without first clearing the store.
func TestShutdownPolicy(t *testing.T) {
	t.Parallel()

	failErr := fmt.Errorf("source unavailable")
	fakeLoader := &scriptedLoader{script: []loaderOutcome{
		{err: failErr},
		{err: failErr},
	}}

	original := okResult(7).Index
	st := store.New(original)

	sched := New(fakeLoader, st, loader.SourceMetadata{}, Config{
		Interval:      time.Minute,
		Variant:       index.VariantMap,
		MaxFailures:   2,
		OnMaxFailures: config.OnMaxFailuresShutdown,
		Logger:        slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Sleep:         func(context.Context, time.Duration) {},
	})

	err := sched.Run(context.Background())
	attest.Error(t, err)
	attest.Equal(t, err, ErrShutdown)

	// Shutdown must not first install an empty index.
	attest.Equal(t, st.Len(), 7)
}

func TestSuccessfulReloadResetsFailures(t *testing.T) {
	t.Parallel()

	failErr := fmt.Errorf("boom")
	fakeLoader := &scriptedLoader{script: []loaderOutcome{
		{err: failErr},
		{result: okResult(2)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := &recordingSleeper{stopAfter: 3, cancel: cancel}

	s := New(fakeLoader, newEmptyStore(t), loader.SourceMetadata{}, Config{
		Interval: time.Minute,
		Variant:  index.VariantMap,
		Logger:   slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Sleep:    sleeper.sleep,
	})

	attest.Ok(t, s.Run(ctx))
	attest.Equal(t, s.failures, 0)
}

func TestReloadStatusTracksOutcomes(t *testing.T) {
	t.Parallel()

	failErr := fmt.Errorf("boom")
	fakeLoader := &scriptedLoader{script: []loaderOutcome{
		{err: failErr},
		{result: okResult(2)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := &recordingSleeper{stopAfter: 3, cancel: cancel}

	s := New(fakeLoader, newEmptyStore(t), loader.SourceMetadata{}, Config{
		Interval: time.Minute,
		Variant:  index.VariantMap,
		Logger:   slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Sleep:    sleeper.sleep,
	})

	attest.Ok(t, s.Run(ctx))

	lastSuccess, lastChanged, lastError, failures := s.ReloadStatus()
	attest.True(t, lastChanged)
	attest.Equal(t, lastError, "")
	attest.Equal(t, failures, 0)
	attest.False(t, lastSuccess.IsZero())
}

func TestZeroIntervalDisablesScheduler(t *testing.T) {
	t.Parallel()

	fakeLoader := &scriptedLoader{script: []loaderOutcome{{err: fmt.Errorf("never called")}}}
	s := New(fakeLoader, newEmptyStore(t), loader.SourceMetadata{}, Config{Interval: 0})

	attest.Ok(t, s.Run(context.Background()))
	attest.Equal(t, fakeLoader.calls, 0)
}

func TestUnchangedResetsFailuresWithoutSwap(t *testing.T) {
	t.Parallel()

	fakeLoader := &scriptedLoader{script: []loaderOutcome{
		{result: loader.Result{Changed: false}},
	}}

	st := newEmptyStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sleeper := &recordingSleeper{stopAfter: 2, cancel: cancel}

	s := New(fakeLoader, st, loader.SourceMetadata{}, Config{
		Interval: time.Minute,
		Variant:  index.VariantMap,
		Logger:   slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Sleep:    sleeper.sleep,
	})

	attest.Ok(t, s.Run(ctx))
	attest.Equal(t, fakeLoader.calls, 1)
	attest.True(t, st.IsEmpty())
}
