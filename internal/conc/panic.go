package conc

import (
	"bytes"
	"fmt"
	"runtime"
)

// PanicError wraps an error recovered from an unhandled panic inside a
// function passed to [Group.Go].
type PanicError struct {
	Recovered error
	Stack     []byte
}

func (p PanicError) Error() string {
	if len(p.Stack) > 0 {
		return fmt.Sprintf("recovered from conc group: %v\n%s", p.Recovered, p.Stack)
	}
	return fmt.Sprintf("recovered from conc group: %v", p.Recovered)
}

func (p PanicError) Unwrap() error { return p.Recovered }

// PanicValue wraps a non-error value recovered from an unhandled panic inside
// a function passed to [Group.Go].
type PanicValue struct {
	Recovered any
	Stack     []byte
}

func (p PanicValue) String() string {
	if len(p.Stack) > 0 {
		return fmt.Sprintf("recovered from conc group: %v\n%s", p.Recovered, p.Stack)
	}
	return fmt.Sprintf("recovered from conc group: %v", p.Recovered)
}

// addStack returns a PanicError or PanicValue that wraps v with a stack trace
// of the panicking goroutine.
//
// Taken from https://go-review.googlesource.com/c/sync/+/416555
func addStack(v any) any {
	stack := make([]byte, 2<<10)
	n := runtime.Stack(stack, false)
	for n == len(stack) {
		stack = make([]byte, len(stack)*2)
		n = runtime.Stack(stack, false)
	}
	stack = stack[:n]

	// The first line is "goroutine N [status]:" but by the time the panic
	// reaches the caller, the goroutine no longer exists. Trim it out.
	if bytes.HasPrefix(stack, []byte("goroutine ")) {
		if line := bytes.IndexByte(stack, '\n'); line >= 0 {
			stack = stack[line+1:]
		}
	}

	if err, ok := v.(error); ok {
		return PanicError{Recovered: err, Stack: stack}
	}
	return PanicValue{Recovered: v, Stack: stack}
}
