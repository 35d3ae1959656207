package validator

import (
	"errors"
	"fmt"

	"github.com/and161185/fleet-status/internal/errs"
	"github.com/and161185/fleet-status/model"
)

var (
	ErrWantString   = errors.New("value must be a string")
	ErrWantNumber   = errors.New("value must be a number")
	ErrWantSequence = errors.New("value must be a sequence of numbers")
	ErrWantUsage    = errors.New("value must be a mapping with numeric total, used and free")
)

const activeService = "active"

var usageFields = [...]string{"total", "used", "free"}

type serviceRule struct{}

func (serviceRule) Accept(v model.Value) error {
	if _, ok := v.AsString(); !ok {
		return ErrWantString
	}
	return nil
}

func (serviceRule) Healthy(v model.Value) (bool, error) {
	s, ok := v.AsString()
	return ok && s == activeService, nil
}

type cpuRule struct{}

func (cpuRule) Accept(v model.Value) error {
	items, ok := v.AsSequence()
	if !ok {
		return ErrWantSequence
	}
	for _, item := range items {
		if _, ok := item.AsNumber(); !ok {
			return ErrWantSequence
		}
	}
	return nil
}

func (cpuRule) Healthy(v model.Value) (bool, error) {
	items, ok := v.AsSequence()
	if !ok {
		return false, nil
	}
	for _, item := range items {
		pct, ok := item.AsNumber()
		if !ok || pct < 0 || pct > 100 {
			return false, nil
		}
	}
	return true, nil
}

// usageRule covers memory and disk.
type usageRule struct{}

func (usageRule) Accept(v model.Value) error {
	if v.Kind() != model.KindMapping {
		return ErrWantUsage
	}
	for _, name := range usageFields {
		f, ok := v.Field(name)
		if !ok {
			return fmt.Errorf("%w: missing %q", ErrWantUsage, name)
		}
		if _, ok := f.AsNumber(); !ok {
			return fmt.Errorf("%w: %q is %s", ErrWantUsage, name, f.Kind())
		}
	}
	return nil
}

func (usageRule) Healthy(v model.Value) (bool, error) {
	var vals [len(usageFields)]int64
	for i, name := range usageFields {
		f, ok := v.Field(name)
		if !ok {
			return false, fmt.Errorf("%w: field %q missing", errs.ErrStructuralFault, name)
		}
		n, ok := f.AsInteger()
		if !ok {
			return false, fmt.Errorf("%w: field %q is not an integer", errs.ErrStructuralFault, name)
		}
		vals[i] = n
	}
	total, used, free := vals[0], vals[1], vals[2]
	return used >= 0 && used < total && free > 0 && free <= total, nil
}

// numberRule is a flat-scheme numeric series with a lower bound.
type numberRule struct {
	min       float64
	exclusive bool
}

func (numberRule) Accept(v model.Value) error {
	if _, ok := v.AsNumber(); !ok {
		return ErrWantNumber
	}
	return nil
}

func (r numberRule) Healthy(v model.Value) (bool, error) {
	n, ok := v.AsNumber()
	if !ok {
		return false, fmt.Errorf("%w: %s is not a number", errs.ErrStructuralFault, v.Kind())
	}
	if r.exclusive {
		return n > r.min, nil
	}
	return n >= r.min, nil
}
