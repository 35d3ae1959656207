package badger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/and161185/fleet-status/internal/errs"
	"github.com/and161185/fleet-status/model"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newStore(t *testing.T, clock *fakeClock) *BadgerStorage {
	t.Helper()
	st, err := NewInMemoryBadgerStorage(WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.PutMachine(context.Background(), model.Machine{ID: "b-01", PublicKey: "pem"}))
	return st
}

func TestBadgerStorage_Machines(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, &fakeClock{t: time.Now()})

	require.NoError(t, st.PutMachine(ctx, model.Machine{ID: "a-00", PublicKey: "other"}))

	m, err := st.GetMachine(ctx, "b-01")
	require.NoError(t, err)
	require.Equal(t, "pem", m.PublicKey)

	_, err = st.GetMachine(ctx, "ghost")
	require.ErrorIs(t, err, errs.ErrMachineNotFound)

	ms, err := st.ListMachines(ctx)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	require.Equal(t, "a-00", ms[0].ID)
}

func TestBadgerStorage_AppendAndLatest(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	st := newStore(t, clock)

	require.NoError(t, st.Append(ctx, "b-01", []model.Sample{
		{Name: "service", Value: model.String("active")},
		{Name: "disk", Value: model.Mapping(map[string]model.Value{
			"total": model.Number(10), "used": model.Number(2), "free": model.Number(8),
		})},
	}))
	clock.Add(time.Minute)
	require.NoError(t, st.Append(ctx, "b-01", []model.Sample{{Name: "service", Value: model.String("failed")}}))

	latest, err := st.Latest(ctx, model.SeriesKey{MachineID: "b-01", Name: "service"})
	require.NoError(t, err)
	s, ok := latest.Value.AsString()
	require.True(t, ok)
	require.Equal(t, "failed", s)
	require.True(t, clock.Now().Equal(latest.Timestamp))

	disk, err := st.Latest(ctx, model.SeriesKey{MachineID: "b-01", Name: "disk"})
	require.NoError(t, err)
	require.Equal(t, model.KindMapping, disk.Value.Kind())

	names, err := st.ListSeries(ctx, "b-01")
	require.NoError(t, err)
	require.Equal(t, []string{"disk", "service"}, names)

	_, err = st.Latest(ctx, model.SeriesKey{MachineID: "b-01", Name: "cpu_percent"})
	require.ErrorIs(t, err, errs.ErrNoEntries)
}

func TestBadgerStorage_AppendUnknownMachine(t *testing.T) {
	st := newStore(t, &fakeClock{t: time.Now()})
	err := st.Append(context.Background(), "ghost", []model.Sample{{Name: "service", Value: model.String("active")}})
	require.ErrorIs(t, err, errs.ErrMachineNotFound)

	names, err := st.ListSeries(context.Background(), "ghost")
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestBadgerStorage_RecentNOrderAndMonotonic(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	st := newStore(t, clock)
	key := model.SeriesKey{MachineID: "b-01", Name: "ram_used"}

	for i := 0; i < 5; i++ {
		require.NoError(t, st.Append(ctx, "b-01", []model.Sample{{Name: "ram_used", Value: model.Number(float64(i))}}))
	}
	clock.Add(-time.Hour)
	require.NoError(t, st.Append(ctx, "b-01", []model.Sample{{Name: "ram_used", Value: model.Number(5)}}))

	entries, err := st.RecentN(ctx, key, 4)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, e := range entries {
		n, _ := e.Value.AsNumber()
		require.Equal(t, float64(i+2), n)
		if i > 0 {
			require.True(t, e.Timestamp.After(entries[i-1].Timestamp))
		}
	}

	latest, err := st.Latest(ctx, key)
	require.NoError(t, err)
	n, _ := latest.Value.AsNumber()
	require.Equal(t, float64(5), n)
}

func TestBadgerStorage_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.Append(ctx, "b-01", []model.Sample{{Name: "service", Value: model.String("active")}})
		}()
	}
	wg.Wait()

	entries, err := st.RecentN(ctx, model.SeriesKey{MachineID: "b-01", Name: "service"}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestBadgerStorage_OnDiskReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st, err := NewBadgerStorage(dir)
	require.NoError(t, err)
	require.NoError(t, st.PutMachine(ctx, model.Machine{ID: "b-01"}))
	require.NoError(t, st.Append(ctx, "b-01", []model.Sample{{Name: "service", Value: model.String("active")}}))
	require.NoError(t, st.Ping(ctx))
	require.NoError(t, st.Close())
	require.ErrorIs(t, st.Ping(ctx), ErrClosed)

	st, err = NewBadgerStorage(dir)
	require.NoError(t, err)
	defer st.Close()
	_, err = st.Latest(ctx, model.SeriesKey{MachineID: "b-01", Name: "service"})
	require.NoError(t, err)
}
