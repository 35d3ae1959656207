// Package validator decides which metric values are accepted at ingestion and
// which stored values count as healthy during aggregation.
//
// Rules are grouped into naming schemes. The structured scheme reports memory and
// disk as {total, used, free} mappings; the flat scheme used by older agents
// reports max_ram, ram_used and ram_free as separate numeric series. A registry
// may enable several schemes at once while agents migrate.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/and161185/fleet-status/internal/errs"
	"github.com/and161185/fleet-status/model"
)

// Rule validates one metric name.
type Rule interface {
	// Accept checks the value shape at ingestion time.
	Accept(v model.Value) error
	// Healthy evaluates a stored value. A non-nil error wraps errs.ErrStructuralFault.
	Healthy(v model.Value) (bool, error)
}

// Scheme is a named set of metric rules.
type Scheme struct {
	Name  string
	Rules map[string]Rule
}

const (
	SchemeStructured = "structured"
	SchemeFlat       = "flat"
)

// Structured returns the current naming scheme: service, cpu_percent, memory, disk.
func Structured() Scheme {
	return Scheme{
		Name: SchemeStructured,
		Rules: map[string]Rule{
			"service":     serviceRule{},
			"cpu_percent": cpuRule{},
			"memory":      usageRule{},
			"disk":        usageRule{},
		},
	}
}

// Flat returns the older naming scheme: service, max_ram, ram_used, ram_free.
func Flat() Scheme {
	return Scheme{
		Name: SchemeFlat,
		Rules: map[string]Rule{
			"service":  serviceRule{},
			"max_ram":  numberRule{min: 0, exclusive: true},
			"ram_used": numberRule{min: 0},
			"ram_free": numberRule{min: 0},
		},
	}
}

// SchemeByName resolves a scheme by its configured name.
func SchemeByName(name string) (Scheme, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case SchemeStructured:
		return Structured(), nil
	case SchemeFlat:
		return Flat(), nil
	default:
		return Scheme{}, fmt.Errorf("unknown metric scheme %q", name)
	}
}

// Registry is the merged allow-list of all enabled schemes.
type Registry struct {
	rules   map[string]Rule
	schemes []string
}

// NewRegistry merges the given schemes. A metric name defined by more than one
// scheme must use the same rule in each, otherwise the first scheme wins.
func NewRegistry(schemes ...Scheme) *Registry {
	r := &Registry{rules: make(map[string]Rule)}
	for _, s := range schemes {
		r.schemes = append(r.schemes, s.Name)
		for name, rule := range s.Rules {
			if _, ok := r.rules[name]; !ok {
				r.rules[name] = rule
			}
		}
	}
	return r
}

// RegistryFromNames builds a registry from scheme names like "structured,flat".
func RegistryFromNames(names []string) (*Registry, error) {
	if len(names) == 0 {
		return NewRegistry(Structured()), nil
	}
	schemes := make([]Scheme, 0, len(names))
	for _, n := range names {
		s, err := SchemeByName(n)
		if err != nil {
			return nil, err
		}
		schemes = append(schemes, s)
	}
	return NewRegistry(schemes...), nil
}

// Names returns the allow-listed metric names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.rules))
	for n := range r.rules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Schemes returns the enabled scheme names.
func (r *Registry) Schemes() []string { return r.schemes }

// Known reports whether name is on the allow-list.
func (r *Registry) Known(name string) bool {
	_, ok := r.rules[name]
	return ok
}

// Accept checks a sample at ingestion time. Errors wrap errs.ErrBadRequest.
func (r *Registry) Accept(name string, v model.Value) error {
	rule, ok := r.rules[name]
	if !ok {
		return fmt.Errorf("%w: %w %q", errs.ErrBadRequest, errs.ErrUnknownMetric, name)
	}
	if !v.IsValid() {
		return fmt.Errorf("%w: metric %q: %w", errs.ErrBadRequest, name, model.ErrUnsupportedValue)
	}
	if err := rule.Accept(v); err != nil {
		return fmt.Errorf("%w: metric %q: %w", errs.ErrBadRequest, name, err)
	}
	return nil
}

// Healthy evaluates the latest stored value of a series. Unknown names return
// errs.ErrUnknownMetric so the caller can decide how to treat them.
func (r *Registry) Healthy(name string, v model.Value) (bool, error) {
	rule, ok := r.rules[name]
	if !ok {
		return false, fmt.Errorf("%w %q", errs.ErrUnknownMetric, name)
	}
	return rule.Healthy(v)
}
