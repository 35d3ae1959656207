// Package health collapses the latest sample of every series in the fleet into
// one status and the age of the freshest sample.
package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/and161185/fleet-status/internal/errs"
	"github.com/and161185/fleet-status/internal/telemetry"
	"github.com/and161185/fleet-status/internal/validator"
	"github.com/and161185/fleet-status/model"
	"github.com/and161185/fleet-status/storage"
	"go.uber.org/zap"
)

const (
	DefaultStaleAfter = 25 * time.Minute
	DefaultWorkers    = 8
)

// Result is the fleet status. Since is set only when HasSince is true, which
// never happens for a short-circuited fault.
type Result struct {
	Status   model.Status
	Since    time.Duration
	HasSince bool
	// Cause names the series that decided a fault, if any.
	Cause string
}

type Aggregator struct {
	store      storage.Store
	registry   *validator.Registry
	policy     Policy
	staleAfter time.Duration
	workers    int
	timeout    time.Duration
	now        func() time.Time
	logger     *zap.SugaredLogger
	metrics    *telemetry.Metrics
}

type Option func(*Aggregator)

func WithPolicy(p Policy) Option { return func(a *Aggregator) { a.policy = p } }

// WithStaleAfter sets the age above which a series is stale.
func WithStaleAfter(d time.Duration) Option { return func(a *Aggregator) { a.staleAfter = d } }

func WithWorkers(n int) Option { return func(a *Aggregator) { a.workers = n } }

func WithStoreTimeout(d time.Duration) Option { return func(a *Aggregator) { a.timeout = d } }

func WithClock(now func() time.Time) Option { return func(a *Aggregator) { a.now = now } }

func WithLogger(l *zap.SugaredLogger) Option { return func(a *Aggregator) { a.logger = l } }

func WithMetrics(m *telemetry.Metrics) Option { return func(a *Aggregator) { a.metrics = m } }

func NewAggregator(store storage.Store, registry *validator.Registry, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:      store,
		registry:   registry,
		policy:     AnyHealthy,
		staleAfter: DefaultStaleAfter,
		workers:    DefaultWorkers,
		now:        time.Now,
		logger:     zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.workers < 1 {
		a.workers = 1
	}
	return a
}

func (a *Aggregator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// Compute scans every series of every machine. A fault is a normal result; the
// error is non-nil only when the store could not be read and no series had
// already decided a fault.
func (a *Aggregator) Compute(ctx context.Context) (Result, error) {
	start := a.now()

	res, err := a.compute(ctx, start)
	if err != nil {
		a.logger.Errorw("fleet health computation failed", "error", err)
		return Result{}, err
	}

	a.metrics.ObserveHealth(string(res.Status), a.now().Sub(start))
	if res.Cause != "" {
		a.logger.Debugw("fleet reported fault", "cause", res.Cause)
	}
	return res, nil
}

func (a *Aggregator) compute(ctx context.Context, now time.Time) (Result, error) {
	keys, err := a.seriesKeys(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(keys) == 0 {
		return Result{Status: model.StatusFault, Cause: "no series recorded"}, nil
	}

	outcomes := make([]Outcome, len(keys))
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.parallel(scanCtx, len(keys), func(ctx context.Context, i int) {
		o := a.examine(ctx, keys[i], now)
		outcomes[i] = o
		if o.ShortCircuit() {
			cancel()
		}
	})

	return a.fold(ctx, keys, outcomes)
}

// fold resolves outcomes in scan order so the result never depends on which
// worker finished first.
func (a *Aggregator) fold(ctx context.Context, keys []model.SeriesKey, outcomes []Outcome) (Result, error) {
	for _, o := range outcomes {
		if o.ShortCircuit() {
			return Result{Status: model.StatusFault, Cause: o.String()}, nil
		}
	}

	var (
		healthy []bool
		minAge  time.Duration
	)
	for i, o := range outcomes {
		switch o.Kind {
		case OutcomeError:
			return Result{}, fmt.Errorf("read latest %s/%s: %w", o.Key.MachineID, o.Key.Name, o.Err)
		case OutcomePending:
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			return Result{}, fmt.Errorf("series %s/%s was not examined", keys[i].MachineID, keys[i].Name)
		case OutcomeEvaluated:
			if len(healthy) == 0 || o.Age < minAge {
				minAge = o.Age
			}
			healthy = append(healthy, o.Healthy)
		}
	}

	res := Result{Status: model.StatusFault, Since: minAge, HasSince: true}
	if a.policy(healthy) {
		res.Status = model.StatusOK
	} else {
		res.Cause = "no healthy series"
	}
	return res, nil
}

func (a *Aggregator) seriesKeys(ctx context.Context) ([]model.SeriesKey, error) {
	listCtx, cancel := a.storeCtx(ctx)
	machines, err := a.store.ListMachines(listCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}

	names := make([][]string, len(machines))
	errList := make([]error, len(machines))
	a.parallel(ctx, len(machines), func(ctx context.Context, i int) {
		sctx, cancel := a.storeCtx(ctx)
		defer cancel()
		names[i], errList[i] = a.store.ListSeries(sctx, machines[i].ID)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []model.SeriesKey
	for i, m := range machines {
		if errList[i] != nil {
			return nil, fmt.Errorf("list series of %s: %w", m.ID, errList[i])
		}
		for _, name := range names[i] {
			keys = append(keys, model.SeriesKey{MachineID: m.ID, Name: name})
		}
	}
	return keys, nil
}

func (a *Aggregator) examine(ctx context.Context, key model.SeriesKey, now time.Time) Outcome {
	rctx, cancel := a.storeCtx(ctx)
	defer cancel()

	entry, err := a.store.Latest(rctx, key)
	if errors.Is(err, errs.ErrNoEntries) {
		return Outcome{Kind: OutcomeEmpty, Key: key}
	}
	if err != nil {
		return Outcome{Kind: OutcomeError, Key: key, Err: err}
	}

	age := now.Sub(entry.Timestamp)
	if age > a.staleAfter {
		return Outcome{Kind: OutcomeStale, Key: key, Age: age}
	}

	healthy, err := a.registry.Healthy(key.Name, entry.Value)
	switch {
	case errors.Is(err, errs.ErrUnknownMetric):
		// Series from a scheme that is no longer enabled count as unhealthy.
		healthy = false
	case err != nil:
		return Outcome{Kind: OutcomeStructuralFault, Key: key, Age: age, Err: err}
	}
	return Outcome{Kind: OutcomeEvaluated, Key: key, Healthy: healthy, Age: age}
}

// parallel runs fn for indexes [0, n) on at most a.workers goroutines and stops
// dispatching once ctx is done.
func (a *Aggregator) parallel(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	if n == 0 {
		return
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(a.workers, n); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(ctx, i)
			}
		}()
	}

dispatch:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
}
