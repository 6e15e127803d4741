package plant

import "errors"

var (
	// ErrNotFound indicates a missing catalog entry (material, reason, equipment).
	ErrNotFound = errors.New("plant: not found")
	// ErrNoSchedule indicates equipment without an assigned work schedule.
	ErrNoSchedule = errors.New("plant: no work schedule assigned")
	// ErrNoRunRate indicates an equipment/material pair without a design run rate.
	ErrNoRunRate = errors.New("plant: design run rate not defined")
)
