package health

import (
	clock "time"
)

type aggregator struct {
	now func() clock.Time
}

func newAggregator() *aggregator {
	return &aggregator{now: clock.Now}
}

func (a *aggregator) age(t clock.Time) clock.Duration {
	return a.now().Sub(t)
}

func bad(t clock.Time) clock.Duration {
	_ = clock.Now()     // want `time.Now reads the wall clock; use the injected clock`
	return clock.Since(t) // want `time.Since reads the wall clock; use the injected clock`
}

func fine(t clock.Time) bool {
	return t.After(clock.Unix(0, 0))
}
