package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/and161185/fleet-status/internal/errs"
	"github.com/and161185/fleet-status/model"
)

type series struct {
	entries []model.Entry
}

type MemStorage struct {
	machines map[string]model.Machine
	series   map[model.SeriesKey]*series
	now      func() time.Time
	mu       sync.RWMutex
}

// Option configures a MemStorage.
type Option func(*MemStorage)

// WithClock overrides the clock used to stamp appended entries.
func WithClock(now func() time.Time) Option {
	return func(s *MemStorage) { s.now = now }
}

func NewMemStorage(opts ...Option) *MemStorage {
	s := &MemStorage{
		machines: make(map[string]model.Machine),
		series:   make(map[model.SeriesKey]*series),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (store *MemStorage) PutMachine(ctx context.Context, m model.Machine) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.machines[m.ID] = m
	return nil
}

func (store *MemStorage) GetMachine(ctx context.Context, id string) (model.Machine, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	m, ok := store.machines[id]
	if !ok {
		return model.Machine{}, errs.ErrMachineNotFound
	}
	return m, nil
}

func (store *MemStorage) ListMachines(ctx context.Context) ([]model.Machine, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	result := make([]model.Machine, 0, len(store.machines))
	for _, m := range store.machines {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (store *MemStorage) ListSeries(ctx context.Context, machineID string) ([]string, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var names []string
	for key := range store.series {
		if key.MachineID == machineID {
			names = append(names, key.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (store *MemStorage) Append(ctx context.Context, machineID string, samples []model.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.machines[machineID]; !ok {
		return errs.ErrMachineNotFound
	}

	now := store.now().UTC()
	for _, smp := range samples {
		key := model.SeriesKey{MachineID: machineID, Name: smp.Name}
		s, ok := store.series[key]
		if !ok {
			s = &series{}
			store.series[key] = s
		}
		ts := now
		if n := len(s.entries); n > 0 && ts.Before(s.entries[n-1].Timestamp) {
			ts = s.entries[n-1].Timestamp
		}
		s.entries = append(s.entries, model.Entry{Name: smp.Name, Value: smp.Value, Timestamp: ts})
	}
	return nil
}

func (store *MemStorage) Latest(ctx context.Context, key model.SeriesKey) (model.Entry, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	s, ok := store.series[key]
	if !ok || len(s.entries) == 0 {
		return model.Entry{}, errs.ErrNoEntries
	}
	return s.entries[len(s.entries)-1], nil
}

func (store *MemStorage) RecentN(ctx context.Context, key model.SeriesKey, n int) ([]model.Entry, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	s, ok := store.series[key]
	if !ok || n <= 0 {
		return nil, nil
	}
	start := len(s.entries) - n
	if start < 0 {
		start = 0
	}
	result := make([]model.Entry, len(s.entries)-start)
	copy(result, s.entries[start:])
	return result, nil
}

func (store *MemStorage) Ping(ctx context.Context) error {
	return nil
}

func (store *MemStorage) Close() error {
	return nil
}

type snapshotSeries struct {
	MachineID string        `json:"machine_id"`
	Name      string        `json:"name"`
	Entries   []model.Entry `json:"entries"`
}

type snapshot struct {
	Machines []model.Machine `json:"machines"`
	Series   []snapshotSeries `json:"series"`
}

func (store *MemStorage) SaveToFile(ctx context.Context, filePath string) error {
	store.mu.RLock()
	snap := snapshot{Machines: make([]model.Machine, 0, len(store.machines))}
	for _, m := range store.machines {
		snap.Machines = append(snap.Machines, m)
	}
	for key, s := range store.series {
		entries := make([]model.Entry, len(s.entries))
		copy(entries, s.entries)
		snap.Series = append(snap.Series, snapshotSeries{MachineID: key.MachineID, Name: key.Name, Entries: entries})
	}
	store.mu.RUnlock()

	if len(snap.Machines) == 0 {
		return nil
	}

	sort.Slice(snap.Machines, func(i, j int) bool { return snap.Machines[i].ID < snap.Machines[j].ID })
	sort.Slice(snap.Series, func(i, j int) bool {
		if snap.Series[i].MachineID != snap.Series[j].MachineID {
			return snap.Series[i].MachineID < snap.Series[j].MachineID
		}
		return snap.Series[i].Name < snap.Series[j].Name
	})

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

func (store *MemStorage) LoadFromFile(ctx context.Context, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	for _, m := range snap.Machines {
		store.machines[m.ID] = m
	}
	for _, s := range snap.Series {
		key := model.SeriesKey{MachineID: s.MachineID, Name: s.Name}
		sort.SliceStable(s.Entries, func(i, j int) bool { return s.Entries[i].Timestamp.Before(s.Entries[j].Timestamp) })
		store.series[key] = &series{entries: s.Entries}
	}
	return nil
}
