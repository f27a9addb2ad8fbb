// Package herr defines the error taxonomy of the Helix control plane,
// from most-local (retried in place) to most-global (fatal, process exit).
package herr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy. Wrap with fmt.Errorf("...: %w", ErrX)
// so callers can errors.Is against these while keeping context.
var (
	// ErrTransientSwitch covers barrier timeouts and temporary disconnects.
	// Nothing in this module retries such an error or escalates it to
	// link-down; it reaches the caller of the failed switch operation.
	ErrTransientSwitch = errors.New("transient switch error")

	// ErrStatsGap covers a non-monotone counter or a missed poll; the sample
	// is dropped and no TE action is taken for the affected ports this cycle.
	ErrStatsGap = errors.New("stats gap")

	// ErrPathNotFound means no path exists for a candidate; it is parked in
	// no-path state and retried on every topology change.
	ErrPathNotFound = errors.New("path not found")

	// ErrTEInfeasible means a TE pass ended with residual congestion.
	ErrTEInfeasible = errors.New("TE infeasible: residual congestion")

	// ErrBusPartition covers a detected bus partition; the local controller
	// keeps serving its area and relies on epoch comparison to reconcile.
	ErrBusPartition = errors.New("bus partition")

	// ErrConfig is fatal at startup (exit code 1).
	ErrConfig = errors.New("configuration error")

	// ErrInvariantViolation is fatal (exit code 3): a dangling group
	// reference, a non-monotone epoch from the same sender, or similar.
	ErrInvariantViolation = errors.New("invariant violation")
)

// ExitCode maps an error from this taxonomy to the process exit code in
// spec §6. Unrecognized errors map to 1 (configuration/generic failure).
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvariantViolation):
		return 3
	case errors.Is(err, ErrBusPartition):
		return 2
	case errors.Is(err, ErrConfig):
		return 1
	default:
		return 1
	}
}

// Invariant wraps a violated-invariant message into ErrInvariantViolation.
func Invariant(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvariantViolation)
}
