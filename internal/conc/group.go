// Package conc provides bounded-concurrency helpers used to keep CPU-bound
// work (CSV parsing, index building) off the goroutine that is driving I/O,
// and to guard small pieces of mutable state shared between the reload
// scheduler and query handlers.
package conc

import (
	"context"
	"runtime"
	"sync"

	occerrors "github.com/mwangi/occlusion/errors"
)

// Group waits for a collection of goroutines to finish, limiting how many of
// them run at once. A zero value is not valid; use [New].
type Group struct {
	mu sync.Mutex
	wg sync.WaitGroup
	sem chan struct{}

	errMu         sync.Mutex
	collectedErrs []error
	panicked      any // PanicError or PanicValue
}

// New returns a [Group] bounded to at most n concurrently running goroutines.
// If n <= 0, the limit is [runtime.NumCPU].
func New(n int) *Group {
	limit := runtime.NumCPU()
	if n > 0 {
		limit = n
	}
	return &Group{sem: make(chan struct{}, limit)}
}

// Go runs each of funcs in its own goroutine, admitting at most the group's
// concurrency limit at a time, and blocks until all of them return.
//
// Non-nil errors returned by funcs are joined together and returned. A panic
// inside any func is recovered, captured with its stack trace, and re-raised
// from Go once every goroutine has finished.
//
// Calling Go concurrently on the same Group blocks until the prior call
// returns.
func (g *Group) Go(ctx context.Context, funcs ...func() error) error {
	if len(funcs) == 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	remaining := funcs
	for len(remaining) > 0 {
		batch := remaining[:min(cap(g.sem), len(remaining))]
		remaining = remaining[len(batch):]

		g.wg.Add(len(batch))
		for _, f := range batch {
			select {
			case g.sem <- struct{}{}:
			case <-ctx.Done():
				g.wg.Done()
				continue
			}

			go func(f func() error) {
				defer g.release()
				if err := f(); err != nil {
					g.errMu.Lock()
					g.collectedErrs = append(g.collectedErrs, err)
					g.errMu.Unlock()
				}
			}(f)
		}
		g.wg.Wait()
	}

	if g.panicked != nil {
		panic(g.panicked)
	}
	return occerrors.Join(g.collectedErrs...)
}

func (g *Group) release() {
	if v := recover(); v != nil {
		g.panicked = addStack(v)
	}
	<-g.sem
	g.wg.Done()
}
