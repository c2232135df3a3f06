package engine

import "errors"

// Sentinel errors for command rejection. Apply-time validation returns these;
// the engine reports them through command_rejected events and metrics.
var (
	ErrInsufficientResources = errors.New("insufficient resources")
	ErrPrerequisiteNotMet    = errors.New("prerequisite not met")
	ErrFleetCapacityExceeded = errors.New("fleet capacity exceeded")
	ErrQueueFull             = errors.New("command queue full")
	ErrInvalidCoordinates    = errors.New("invalid coordinates")
	ErrNotFound              = errors.New("not found")
	ErrAlreadyActive         = errors.New("already active")
	ErrInvalidCommand        = errors.New("invalid command")
)
