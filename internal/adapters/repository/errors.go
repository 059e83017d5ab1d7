package repository

import "errors"

// Sentinel kinds for plan store errors.
var (
	ErrNotFound     = errors.New("plan not found")
	ErrInvalidLimit = errors.New("invalid plan list limit")
	ErrInvalidPlan  = errors.New("invalid plan")
	ErrClosed       = errors.New("plan store closed")
)
