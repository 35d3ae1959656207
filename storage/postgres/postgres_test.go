package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/and161185/fleet-status/internal/errs"
	"github.com/and161185/fleet-status/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *PostgresStorage {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := NewPostgresStorage(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPostgresStorage_RoundTrip(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	id := "pg-" + uuid.NewString()

	require.NoError(t, st.PutMachine(ctx, model.Machine{ID: id, PublicKey: "pem"}))
	m, err := st.GetMachine(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "pem", m.PublicKey)

	_, err = st.GetMachine(ctx, "missing-"+uuid.NewString())
	require.ErrorIs(t, err, errs.ErrMachineNotFound)

	for i := 0; i < 3; i++ {
		require.NoError(t, st.Append(ctx, id, []model.Sample{
			{Name: "service", Value: model.String("active")},
			{Name: "cpu_percent", Value: model.Numbers(float64(i), 50)},
		}))
	}

	names, err := st.ListSeries(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []string{"cpu_percent", "service"}, names)

	entries, err := st.RecentN(ctx, model.SeriesKey{MachineID: id, Name: "cpu_percent"}, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.False(t, entries[1].Timestamp.Before(entries[0].Timestamp))
	first, _ := entries[0].Value.AsSequence()
	n, _ := first[0].AsNumber()
	require.Equal(t, float64(1), n)

	latest, err := st.Latest(ctx, model.SeriesKey{MachineID: id, Name: "cpu_percent"})
	require.NoError(t, err)
	require.True(t, latest.Value.Equal(entries[1].Value))

	_, err = st.Latest(ctx, model.SeriesKey{MachineID: id, Name: "disk"})
	require.ErrorIs(t, err, errs.ErrNoEntries)
}

func TestPostgresStorage_AppendUnknownMachine(t *testing.T) {
	st := newStore(t)
	err := st.Append(context.Background(), "ghost-"+uuid.NewString(), []model.Sample{{Name: "service", Value: model.String("active")}})
	require.ErrorIs(t, err, errs.ErrMachineNotFound)
}
