package health

import (
	"fmt"
	"time"

	"github.com/and161185/fleet-status/model"
)

// OutcomeKind tags the result of examining one series.
type OutcomeKind int

const (
	// OutcomePending means the series was never examined.
	OutcomePending OutcomeKind = iota
	OutcomeEmpty
	OutcomeStale
	OutcomeStructuralFault
	OutcomeEvaluated
	// OutcomeError means the store could not be read.
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeEmpty:
		return "empty"
	case OutcomeStale:
		return "stale"
	case OutcomeStructuralFault:
		return "structural fault"
	case OutcomeEvaluated:
		return "evaluated"
	case OutcomeError:
		return "error"
	default:
		return "pending"
	}
}

// Outcome is what examining one series produced.
type Outcome struct {
	Kind    OutcomeKind
	Key     model.SeriesKey
	Healthy bool
	Age     time.Duration
	Err     error
}

// ShortCircuit reports whether this outcome alone makes the fleet a fault.
func (o Outcome) ShortCircuit() bool {
	switch o.Kind {
	case OutcomeEmpty, OutcomeStale, OutcomeStructuralFault:
		return true
	}
	return false
}

func (o Outcome) String() string {
	s := fmt.Sprintf("%s/%s: %s", o.Key.MachineID, o.Key.Name, o.Kind)
	switch o.Kind {
	case OutcomeStale:
		s += " (" + FormatSince(o.Age) + ")"
	case OutcomeStructuralFault, OutcomeError:
		if o.Err != nil {
			s += ": " + o.Err.Error()
		}
	}
	return s
}
