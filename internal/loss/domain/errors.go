package loss

import "errors"

var (
	// ErrNoWindow indicates a loss aggregate with no observed records.
	ErrNoWindow = errors.New("loss: no observed window")
	// ErrNoDesignSpeed indicates a missing or non-positive design run rate.
	ErrNoDesignSpeed = errors.New("loss: design speed not set")
)
