package pool

import (
	"fmt"
	"runtime"
)

// PanicError wraps a value recovered from a panicking job together with the
// worker goroutine's stack trace captured at the point of the panic. Close
// returns the captured panics of all workers, joined.
type PanicError struct {
	// Value is the original value passed to panic().
	Value any

	// Stack is the goroutine stack trace at the point of panic.
	Stack string
}

// Error returns a human-readable representation of the panic, including the
// value and the full stack trace.
func (e *PanicError) Error() string {
	return fmt.Sprintf("conc: job panic: %v\n\n%s", e.Value, e.Stack)
}

func newPanicError(v any) *PanicError {
	// 8 KiB is enough for most stack traces. runtime.Stack truncates
	// gracefully if the buffer is too small.
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{
		Value: v,
		Stack: string(buf[:n]),
	}
}
