package simulator

import (
	"errors"
	"fmt"
	"strings"
)

// SimError is a custom error type for simulation errors
type SimError struct {
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("simulation error: %s", e.Message)
}

// ErrInvalidConfig creates an error for invalid configuration
func ErrInvalidConfig(msg string) error {
	return SimError{Message: fmt.Sprintf("invalid config: %s", msg)}
}

var (
	// ErrInvalidProcess is returned when a submitted process descriptor is malformed.
	ErrInvalidProcess = errors.New("invalid process")

	// ErrUnknownProcess is returned when an operation names a process id the
	// simulator does not know about.
	ErrUnknownProcess = errors.New("unknown process")

	// ErrInvalidTransition is returned by Start/Pause/Resume when the run state
	// does not allow the requested control signal.
	ErrInvalidTransition = errors.New("invalid run state transition")
)

// AddressConflictError reports that an explicit placement request does not fit
// entirely inside a single hole.
type AddressConflictError struct {
	Address int
	Size    int
}

func (e *AddressConflictError) Error() string {
	return fmt.Sprintf("address conflict: [%d, %d) is not inside a free hole",
		e.Address, e.Address+e.Size)
}

// ImportError is returned by ImportWorkload when the batch fails validation.
// Nothing in the simulator has been touched when it is returned.
type ImportError struct {
	Problems []string
}

func (e *ImportError) Error() string {
	return "import rejected: " + strings.Join(e.Problems, "; ")
}
