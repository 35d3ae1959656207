package inmemory

import (
	"context"
	"strconv"
	"testing"

	"github.com/and161185/fleet-status/model"
)

func BenchmarkAppend(b *testing.B) {
	ctx := context.Background()
	st := NewMemStorage()
	_ = st.PutMachine(ctx, model.Machine{ID: "b-01"})
	samples := []model.Sample{
		{Name: "service", Value: model.String("active")},
		{Name: "cpu_percent", Value: model.Numbers(10, 20, 30, 40)},
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = st.Append(ctx, "b-01", samples)
	}
}

func BenchmarkLatest(b *testing.B) {
	ctx := context.Background()
	st := NewMemStorage()
	for i := 0; i < 100; i++ {
		id := "machine-" + strconv.Itoa(i)
		_ = st.PutMachine(ctx, model.Machine{ID: id})
		_ = st.Append(ctx, id, []model.Sample{{Name: "service", Value: model.String("active")}})
	}
	key := model.SeriesKey{MachineID: "machine-42", Name: "service"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = st.Latest(ctx, key)
	}
}
