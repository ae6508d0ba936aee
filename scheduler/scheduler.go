// Package scheduler implements the periodic reload control loop: fetch the
// configured source, swap a changed Index into the store, and track
// consecutive failures with exponential backoff and a configurable terminal
// policy.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mwangi/occlusion/config"
	occerrors "github.com/mwangi/occlusion/errors"
	"github.com/mwangi/occlusion/index"
	"github.com/mwangi/occlusion/internal/conc"
	"github.com/mwangi/occlusion/loader"
	"github.com/mwangi/occlusion/store"
	"github.com/mwangi/occlusion/xcontext"
)

// Status is a snapshot of the scheduler's last reload attempt, read by
// diagnostic HTTP handlers while Run's loop keeps updating it in the
// background.
type Status struct {
	LastSuccess         time.Time
	LastChanged         bool
	LastError           string
	ConsecutiveFailures int
}

// ErrShutdown is returned by [Scheduler.Run] when consecutive failures
// reached the configured max and the terminal policy is
// [config.OnMaxFailuresShutdown]. The caller (cmd/occlusiond's main) is
// expected to exit the process with a non-zero status in response.
var ErrShutdown = errors.New("scheduler: max consecutive failures reached, shutdown policy in effect")

// Loader is the subset of [loader.Loader] the scheduler depends on. Tests
// inject a fake satisfying this interface to script failure sequences
// without real network or filesystem access.
type Loader interface {
	Load(ctx context.Context, src loader.DataSource, old loader.SourceMetadata) (loader.Result, error)
}

// Config holds everything a Scheduler needs to run one source's reload loop.
type Config struct {
	Source  loader.DataSource
	Variant index.Variant

	// Interval is the base period between checks. Zero disables the
	// scheduler entirely: Run returns immediately.
	Interval time.Duration
	// MaxFailures is the consecutive-failure threshold. Zero means
	// unlimited: the terminal policy never fires.
	MaxFailures   int
	OnMaxFailures config.OnMaxFailures

	Logger *slog.Logger

	// Clock stamps LastSuccess in the reload status and times each reload
	// check for its log line; tests can inject a fixed clock. Defaults to
	// time.Now.
	Clock func() time.Time
	// Sleep is called with the duration the loop should wait before its
	// next check. It must respect ctx cancellation. Defaults to a
	// context-aware real sleep. Tests inject a fake that records the
	// requested durations without blocking.
	Sleep func(ctx context.Context, d time.Duration)
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = realSleep
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func realSleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Scheduler owns the reload loop for one SwappableStore. It is not safe for
// concurrent use of Run from multiple goroutines; a single Scheduler drives
// a single loop.
type Scheduler struct {
	cfg    Config
	loader Loader
	store  *store.SwappableStore

	meta     loader.SourceMetadata
	failures int

	// status is read from a diagnostic HTTP handler on a different goroutine
	// than Run's loop, which is the rare-write/occasional-read case
	// [conc.Lockable] is for.
	status *conc.Lockable[Status]
}

// New builds a Scheduler that reloads src through l and swaps changed
// indexes into s. meta is the SourceMetadata already associated with
// whatever Index s currently holds (empty if unknown).
func New(l Loader, s *store.SwappableStore, meta loader.SourceMetadata, cfg Config) *Scheduler {
	return &Scheduler{
		cfg:    cfg.withDefaults(),
		loader: l,
		store:  s,
		meta:   meta,
		status: conc.NewLockable(Status{}),
	}
}

// ReloadStatus reports the outcome of the most recent reload attempt, for
// handlers that expose scheduler health without depending on this package's
// types directly.
func (s *Scheduler) ReloadStatus() (lastSuccess time.Time, lastChanged bool, lastError string, consecutiveFailures int) {
	st := s.status.Get()
	return st.LastSuccess, st.LastChanged, st.LastError, st.ConsecutiveFailures
}

// Run executes the reload loop until ctx is cancelled, in which case it
// returns nil, or until the terminal shutdown policy fires, in which case
// it returns [ErrShutdown]. A zero Interval disables the loop; Run returns
// nil immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return nil
	}

	nextSleep := s.cfg.Interval
	for {
		if ctx.Err() != nil {
			return nil
		}

		s.cfg.Sleep(ctx, nextSleep)

		if ctx.Err() != nil {
			return nil
		}

		changed, err := s.reloadOnce(ctx)
		if err != nil {
			s.failures++
			s.status.Set(Status{ConsecutiveFailures: s.failures, LastError: err.Error()})
			s.cfg.Logger.ErrorContext(xcontext.Detach(ctx), "scheduler: reload failed",
				"err", err, "kind", occerrors.GetKind(err).String(), "consecutive_failures", s.failures)

			if s.cfg.MaxFailures > 0 && s.failures >= s.cfg.MaxFailures {
				if s.cfg.OnMaxFailures == config.OnMaxFailuresClear {
					s.clear(ctx)
					nextSleep = s.cfg.Interval
					continue
				}
				return ErrShutdown
			}

			nextSleep = backoffFor(s.failures)
			continue
		}

		if changed {
			s.cfg.Logger.InfoContext(ctx, "scheduler: installed new index", "len", s.store.Len())
		} else {
			s.cfg.Logger.InfoContext(ctx, "scheduler: source unchanged")
		}
		s.failures = 0
		s.status.Set(Status{LastSuccess: s.cfg.Clock(), LastChanged: changed})
		nextSleep = s.cfg.Interval
	}
}

func (s *Scheduler) reloadOnce(ctx context.Context) (changed bool, err error) {
	start := s.cfg.Clock()
	res, err := s.loader.Load(ctx, s.cfg.Source, s.meta)
	durationMS := s.cfg.Clock().Sub(start).Milliseconds()
	if err != nil {
		return false, err
	}
	s.cfg.Logger.InfoContext(ctx, "scheduler: reload check completed", "durationMS", durationMS, "changed", res.Changed)
	if !res.Changed {
		return false, nil
	}
	s.store.Swap(res.Index)
	s.meta = res.Metadata
	return true, nil
}

// clear installs a fresh, fully valid empty Index of the configured variant
// and resets the failure counter, per [config.OnMaxFailuresClear].
func (s *Scheduler) clear(ctx context.Context) {
	empty, err := index.Build(s.cfg.Variant, nil)
	if err != nil {
		// Build(variant, nil) only fails for an unrecognized variant, which
		// would already have failed at startup load. Nothing sensible to
		// do here except leave the previous index in place.
		s.cfg.Logger.ErrorContext(ctx, "scheduler: could not build empty index for clear policy", "err", err)
		return
	}
	s.store.Swap(empty)
	s.meta = loader.SourceMetadata{}
	s.failures = 0
	s.status.Set(Status{LastSuccess: s.cfg.Clock()})
	s.cfg.Logger.WarnContext(ctx, "scheduler: cleared store after exceeding max consecutive failures")
}

// backoffFor returns the retry delay after k consecutive failures:
// min(5*2^(k-1), 300) seconds. k is clamped before shifting so an
// unbounded failure count (max_failures=0 is "unlimited") never overflows.
func backoffFor(k int) time.Duration {
	if k <= 0 {
		k = 1
	}
	if k >= 7 { // 5*2^6 = 320, already past the 300s cap.
		return 300 * time.Second
	}
	secs := 5 * (1 << (k - 1))
	if secs > 300 {
		secs = 300
	}
	return time.Duration(secs) * time.Second
}
