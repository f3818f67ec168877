package relay

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrChannelClosed is returned by proxies whose request could not be
	// serviced because the channel was torn down. Errors matching it may also
	// wrap the close cause.
	ErrChannelClosed = errors.New("relay: channel closed")

	// ErrReentrantCall is returned when a proxy call is made from the
	// dispatcher goroutine itself. Such a call can never be serviced, so it
	// indicates a wiring defect rather than a runtime condition.
	ErrReentrantCall = errors.New("relay: host call issued from the dispatcher goroutine")

	// ErrExecutionReused is returned by Run for an Execution that was
	// already started.
	ErrExecutionReused = errors.New("relay: execution already started")

	// ErrDispatcherRunning is returned by Dispatcher.Run when the loop is
	// already running on another goroutine.
	ErrDispatcherRunning = errors.New("relay: dispatcher already running")

	// errCompleted is the close cause of a channel whose execution finished
	// successfully.
	errCompleted = errors.New("execution completed")
)

// HostCallError reports that host logic failed while servicing a request.
type HostCallError struct {
	Func    string
	Request uuid.UUID
	Err     error
}

func (e *HostCallError) Error() string {
	return fmt.Sprintf("relay: host call %q failed: %v", e.Func, e.Err)
}

func (e *HostCallError) Unwrap() error { return e.Err }

// StackTracer is implemented by host errors that carry the host language's
// stack. The dispatcher logs it alongside failed calls.
type StackTracer interface {
	StackTrace() string
}

// closedError matches ErrChannelClosed and unwraps to the close cause.
type closedError struct {
	cause error
}

func (e *closedError) Error() string {
	if e.cause == nil {
		return ErrChannelClosed.Error()
	}
	return ErrChannelClosed.Error() + ": " + e.cause.Error()
}

func (e *closedError) Is(target error) bool { return target == ErrChannelClosed }

func (e *closedError) Unwrap() error { return e.cause }
