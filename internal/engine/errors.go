package engine

import "errors"

var (
	// ErrColumnNotFound is returned when an expression or accessor names a
	// column the frame does not have.
	ErrColumnNotFound = errors.New("column not found")

	// ErrShapeMismatch is returned when columns or results disagree on length.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrDuplicateColumn is returned when two output columns share a name.
	ErrDuplicateColumn = errors.New("duplicate column name")

	// ErrTypeMismatch is returned when values cannot share a column or an
	// operator is applied to incompatible types.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrNoHost is returned when an expression needs the host runtime but the
	// session has none.
	ErrNoHost = errors.New("expression requires a host runtime but none is configured")

	// ErrPoolBusy is returned by Pool.Resize while executions are in flight.
	ErrPoolBusy = errors.New("pool is busy: cannot resize during an execution")

	// ErrPoolClosed is returned when submitting to a released pool.
	ErrPoolClosed = errors.New("pool is closed")
)
