// Package errs holds sentinel errors shared between layers.
package errs

import "errors"

var (
	// ErrBadRequest marks malformed or missing report fields, bad JSON, or rejected values.
	ErrBadRequest = errors.New("bad request")
	// ErrMachineNotFound is returned when no machine is registered under the given id.
	ErrMachineNotFound = errors.New("machine not found")
	// ErrUnauthorized is returned when the report signature does not verify.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnknownMetric is returned for metric names outside the active allow-list.
	ErrUnknownMetric = errors.New("unknown metric")
	// ErrNoEntries is returned by stores when a series holds no entries.
	ErrNoEntries = errors.New("series has no entries")
	// ErrStructuralFault is returned when a stored value cannot be evaluated at all.
	ErrStructuralFault = errors.New("structural fault")
)
