package resolution

import "errors"

var (
	// ErrConfiguration indicates a missing or unusable resolver configuration.
	ErrConfiguration = errors.New("resolution: configuration error")
	// ErrNotFound indicates an unresolvable reason, material or resolver.
	ErrNotFound = errors.New("resolution: not found")
	// ErrBadResultType indicates a script result of the wrong shape for the
	// resolver type.
	ErrBadResultType = errors.New("resolution: bad script result type")
	// ErrScript indicates a failed or timed-out script evaluation.
	ErrScript = errors.New("resolution: script execution failed")
)
