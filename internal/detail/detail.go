// Package detail reads the recent history of every series for the admin view.
package detail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/and161185/fleet-status/model"
	"github.com/and161185/fleet-status/storage"
)

// DefaultLimit is how many entries per series the admin view shows.
const DefaultLimit = 50

// Point is one [value, timestamp] pair, encoded as a two-element JSON array.
type Point struct {
	Value     model.Value
	Timestamp time.Time
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Value, p.Timestamp.UTC().Format(time.RFC3339)})
}

type Machine struct {
	ID      string             `json:"id"`
	Metrics map[string][]Point `json:"metrics"`
}

type Reader struct {
	store   storage.Store
	limit   int
	timeout time.Duration
}

func NewReader(store storage.Store, limit int, timeout time.Duration) *Reader {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Reader{store: store, limit: limit, timeout: timeout}
}

func (r *Reader) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Collect returns every machine with up to limit most recent entries per
// series, oldest first.
func (r *Reader) Collect(ctx context.Context) ([]Machine, error) {
	lctx, cancel := r.storeCtx(ctx)
	machines, err := r.store.ListMachines(lctx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}

	result := make([]Machine, 0, len(machines))
	for _, m := range machines {
		md, err := r.machine(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, md)
	}
	return result, nil
}

func (r *Reader) machine(ctx context.Context, id string) (Machine, error) {
	sctx, cancel := r.storeCtx(ctx)
	names, err := r.store.ListSeries(sctx, id)
	cancel()
	if err != nil {
		return Machine{}, fmt.Errorf("list series of %s: %w", id, err)
	}

	md := Machine{ID: id, Metrics: make(map[string][]Point, len(names))}
	for _, name := range names {
		ectx, cancel := r.storeCtx(ctx)
		entries, err := r.store.RecentN(ectx, model.SeriesKey{MachineID: id, Name: name}, r.limit)
		cancel()
		if err != nil {
			return Machine{}, fmt.Errorf("read %s/%s: %w", id, name, err)
		}
		points := make([]Point, len(entries))
		for i, e := range entries {
			points[i] = Point{Value: e.Value, Timestamp: e.Timestamp}
		}
		md.Metrics[name] = points
	}
	return md, nil
}
