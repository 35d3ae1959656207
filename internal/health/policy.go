package health

import (
	"fmt"
	"strings"
)

// Policy decides the fleet status from the health of every fresh, evaluable
// series. It is only consulted when no series short-circuited the scan.
type Policy func(healthy []bool) bool

const (
	PolicyAny = "any"
	PolicyAll = "all"
)

// AnyHealthy reports ok when at least one series anywhere in the fleet is
// healthy. Unhealthy series elsewhere do not turn the result into a fault.
func AnyHealthy(healthy []bool) bool {
	for _, h := range healthy {
		if h {
			return true
		}
	}
	return false
}

// AllHealthy reports ok only when every series is healthy.
func AllHealthy(healthy []bool) bool {
	if len(healthy) == 0 {
		return false
	}
	for _, h := range healthy {
		if !h {
			return false
		}
	}
	return true
}

// PolicyByName resolves "any" (the default when empty) or "all".
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyAny:
		return AnyHealthy, nil
	case PolicyAll:
		return AllHealthy, nil
	default:
		return nil, fmt.Errorf("unknown health policy %q", name)
	}
}
