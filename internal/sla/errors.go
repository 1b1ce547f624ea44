package sla

import "errors"

// State machine errors.
var (
	ErrInvalidTransition      = errors.New("invalid sla transition")
	ErrTerminalState          = errors.New("sla is in a terminal state")
	ErrConcurrentModification = errors.New("sla was modified concurrently")
	ErrClockInput             = errors.New("invalid clock input")
	ErrUnknownStatus          = errors.New("unknown sla status")
	ErrInvariantViolation     = errors.New("sla invariant violated")
	ErrInvalidPriority        = errors.New("invalid priority")
)

// Repository errors.
var (
	ErrSLANotFound      = errors.New("sla not found")
	ErrSLAAlreadyExists = errors.New("sla already exists for incident")
	ErrVersionConflict  = errors.New("sla version conflict")
)

// Scanner errors.
var (
	ErrScanInProgress = errors.New("scan already in progress")
)
