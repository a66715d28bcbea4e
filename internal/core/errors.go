// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors, wrapped with fmt.Errorf("...: %w", err) by callers.
var (
	// Metric snapshot errors
	ErrMetricsNotInitialized = errors.New("pulse: metrics system not initialized")
	ErrCaptureFailed         = errors.New("pulse: metric capture failed")

	// Subscription errors
	ErrIntervalOutOfRange = errors.New("pulse: interval out of range")
	ErrUnknownQuery       = errors.New("pulse: unknown query")

	// Component errors
	ErrComponentNotFound = errors.New("pulse: component not found")
	ErrComponentExists   = errors.New("pulse: component already exists")
	ErrUnknownRole       = errors.New("pulse: unknown component role")

	// Tap errors
	ErrNoInputs = errors.New("pulse: tap requires at least one input")

	// Configuration errors
	ErrConfigInvalid = errors.New("pulse: invalid configuration")

	// Daemon errors
	ErrDaemonNotRunning = errors.New("pulse: daemon not running")
)
