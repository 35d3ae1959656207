package config

import (
	"strconv"
	"strings"
	"time"
)

// Flag values remember whether they were set so JSON config only fills the gaps.

type strFlag struct {
	v   string
	set bool
}

func (f *strFlag) String() string     { return f.v }
func (f *strFlag) Set(s string) error { f.v, f.set = s, true; return nil }

type intFlag struct {
	v   int
	set bool
}

func (f *intFlag) String() string { return "" }
func (f *intFlag) Set(s string) error {
	i, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	f.v, f.set = i, true
	return nil
}

type boolFlag struct {
	v   bool
	set bool
}

func (f *boolFlag) String() string   { return "" }
func (f *boolFlag) IsBoolFlag() bool { return true }
func (f *boolFlag) Set(s string) error {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	f.v, f.set = b, true
	return nil
}

type durFlag struct {
	v   time.Duration
	set bool
}

func (f *durFlag) String() string { return "" }
func (f *durFlag) Set(s string) error {
	d, err := parseDuration(s)
	if err != nil {
		return err
	}
	f.v, f.set = d, true
	return nil
}

type listFlag struct {
	v   []string
	set bool
}

func (f *listFlag) String() string { return strings.Join(f.v, ",") }
func (f *listFlag) Set(s string) error {
	f.v, f.set = splitList(s), true
	return nil
}

// parseDuration accepts Go durations ("25m") and bare seconds ("1500").
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
