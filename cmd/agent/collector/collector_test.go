package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/fleet-status/internal/validator"
	"github.com/and161185/fleet-status/model"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/require"
)

func fixed(opts ...Option) []Option {
	base := []Option{
		WithServiceProbe(func(context.Context, string) string { return "active" }),
		WithCPUProbe(func(context.Context) ([]float64, error) { return []float64{12.5, 40}, nil }),
		WithMemoryProbe(func(context.Context) (Usage, error) { return Usage{Total: 100, Used: 40, Free: 60}, nil }),
		WithDiskProbe(func(context.Context, string) (Usage, error) { return Usage{Total: 1000, Used: 100, Free: 900}, nil }),
	}
	return append(base, opts...)
}

func byName(samples []model.Sample) map[string]model.Value {
	out := make(map[string]model.Value, len(samples))
	for _, s := range samples {
		out[s.Name] = s.Value
	}
	return out
}

func TestCollect_Structured(t *testing.T) {
	c, err := New("fleet-backend", "/", "structured", fixed()...)
	require.NoError(t, err)

	samples, err := c.Collect(context.Background())
	require.NoError(t, err)

	got := byName(samples)
	require.Len(t, got, 4)
	s, _ := got["service"].AsString()
	require.Equal(t, "active", s)

	registry := validator.NewRegistry(validator.Structured())
	for _, smp := range samples {
		require.NoError(t, registry.Accept(smp.Name, smp.Value), smp.Name)
		healthy, err := registry.Healthy(smp.Name, smp.Value)
		require.NoError(t, err)
		require.True(t, healthy, smp.Name)
	}
}

func TestCollect_Flat(t *testing.T) {
	c, err := New("fleet-backend", "/", "flat", fixed()...)
	require.NoError(t, err)

	samples, err := c.Collect(context.Background())
	require.NoError(t, err)

	got := byName(samples)
	require.Len(t, got, 4)
	n, _ := got["max_ram"].AsNumber()
	require.Equal(t, float64(100), n)

	registry := validator.NewRegistry(validator.Flat())
	for _, smp := range samples {
		require.NoError(t, registry.Accept(smp.Name, smp.Value), smp.Name)
	}
}

func TestCollect_ProbeFailureDropsMetric(t *testing.T) {
	c, err := New("fleet-backend", "/data", "structured", fixed(
		WithDiskProbe(func(context.Context, string) (Usage, error) { return Usage{}, errors.New("no such mount") }),
	)...)
	require.NoError(t, err)

	samples, err := c.Collect(context.Background())
	require.ErrorContains(t, err, "disk /data")

	got := byName(samples)
	_, hasDisk := got["disk"]
	require.False(t, hasDisk)
	require.Contains(t, got, "service")
	require.Contains(t, got, "memory")
}

func TestNew_UnknownScheme(t *testing.T) {
	_, err := New("u", "/", "columnar")
	require.Error(t, err)
}

func TestSystemctlState_Failure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, ServiceError, SystemctlState(ctx, "fleet-backend"))
}

func TestUnitState_Unreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, ServiceError, UnitState(ctx, "fleet-backend"))
}

func TestUnitName(t *testing.T) {
	require.Equal(t, "fleet-backend.service", unitName("fleet-backend"))
	require.Equal(t, "fleet-backend.service", unitName("fleet-backend.service"))
	require.Equal(t, "backup.timer", unitName("backup.timer"))
}

func TestIsActiveOutput(t *testing.T) {
	cases := []struct {
		out  string
		want string
	}{
		{"active\n", "active"},
		// systemctl exits 3 for these but still prints the state
		{"inactive\n", "inactive"},
		{"failed\n", "failed"},
		{"", ServiceError},
		{"  \n", ServiceError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, isActiveOutput([]byte(tc.out)), "output %q", tc.out)
	}
}

func TestMemoryUsage_ReportsFreeNotAvailable(t *testing.T) {
	u := memoryUsage(&mem.VirtualMemoryStat{Total: 1000, Used: 600, Free: 100, Available: 350})
	require.Equal(t, Usage{Total: 1000, Used: 600, Free: 100}, u)
}

func TestCollect_Smoke(t *testing.T) {
	c, err := New("fleet-backend", "/", "structured",
		WithServiceProbe(func(context.Context, string) string { return "inactive" }))
	require.NoError(t, err)

	samples, _ := c.Collect(context.Background())
	require.NotEmpty(t, samples)
	require.Equal(t, "service", samples[0].Name)
}
