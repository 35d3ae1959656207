package validator

import (
	"testing"

	"github.com/and161185/fleet-status/internal/errs"
	"github.com/and161185/fleet-status/model"
	"github.com/stretchr/testify/require"
)

func usage(total, used, free model.Value) model.Value {
	return model.Mapping(map[string]model.Value{"total": total, "used": used, "free": free})
}

func TestRegistryAccept(t *testing.T) {
	reg := NewRegistry(Structured())

	tests := []struct {
		name   string
		metric string
		value  model.Value
		ok     bool
	}{
		{"service_string", "service", model.String("active"), true},
		{"service_number", "service", model.Number(1), false},
		{"cpu_numbers", "cpu_percent", model.Numbers(10, 20.5), true},
		{"cpu_empty", "cpu_percent", model.Numbers(), true},
		{"cpu_mixed", "cpu_percent", model.Sequence(model.Number(1), model.String("x")), false},
		{"cpu_scalar", "cpu_percent", model.Number(5), false},
		{"memory_ok", "memory", usage(model.Number(100), model.Number(40), model.Number(60)), true},
		{"disk_float_fields", "disk", usage(model.Number(100.5), model.Number(40), model.Number(60)), true},
		{"memory_missing", "memory", model.Mapping(map[string]model.Value{"total": model.Number(1)}), false},
		{"memory_string_field", "memory", usage(model.Number(100), model.String("oops"), model.Number(10)), false},
		{"disk_not_mapping", "disk", model.Numbers(1, 2, 3), false},
		{"invalid_value", "service", model.Value{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := reg.Accept(tc.metric, tc.value)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errs.ErrBadRequest)
		})
	}
}

func TestRegistryAccept_UnknownMetricAnyShape(t *testing.T) {
	reg := NewRegistry(Structured())
	values := []model.Value{
		model.String("active"),
		model.Number(1),
		model.Bool(true),
		model.Numbers(1, 2),
		usage(model.Number(100), model.Number(1), model.Number(99)),
	}
	for _, v := range values {
		err := reg.Accept("gpu_temp", v)
		require.ErrorIs(t, err, errs.ErrBadRequest)
		require.ErrorIs(t, err, errs.ErrUnknownMetric)
	}

	// flat names are unknown until the flat scheme is enabled
	require.ErrorIs(t, reg.Accept("ram_used", model.Number(1)), errs.ErrUnknownMetric)
}

func TestRegistryHealthy(t *testing.T) {
	reg := NewRegistry(Structured(), Flat())

	tests := []struct {
		name    string
		metric  string
		value   model.Value
		healthy bool
	}{
		{"service_active", "service", model.String("active"), true},
		{"service_inactive", "service", model.String("inactive"), false},
		{"service_not_string", "service", model.Bool(true), false},
		{"cpu_bounds", "cpu_percent", model.Numbers(0, 100, 55.5), true},
		{"cpu_over", "cpu_percent", model.Numbers(10, 150), false},
		{"cpu_negative", "cpu_percent", model.Numbers(-0.1), false},
		{"cpu_vacuous", "cpu_percent", model.Numbers(), true},
		{"memory_ok", "memory", usage(model.Number(100), model.Number(40), model.Number(60)), true},
		{"memory_used_eq_total", "memory", usage(model.Number(100), model.Number(100), model.Number(1)), false},
		{"memory_used_zero", "memory", usage(model.Number(100), model.Number(0), model.Number(100)), true},
		{"memory_free_zero", "memory", usage(model.Number(100), model.Number(99), model.Number(0)), false},
		{"disk_free_over_total", "disk", usage(model.Number(100), model.Number(1), model.Number(101)), false},
		{"max_ram_positive", "max_ram", model.Number(1024), true},
		{"max_ram_zero", "max_ram", model.Number(0), false},
		{"ram_used_zero", "ram_used", model.Number(0), true},
		{"ram_free_negative", "ram_free", model.Number(-1), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := reg.Healthy(tc.metric, tc.value)
			require.NoError(t, err)
			require.Equal(t, tc.healthy, ok)
		})
	}
}

func TestRegistryHealthy_StructuralFault(t *testing.T) {
	reg := NewRegistry(Structured(), Flat())

	faults := []struct {
		name   string
		metric string
		value  model.Value
	}{
		{"used_string", "memory", usage(model.Number(100), model.String("oops"), model.Number(10))},
		{"total_fraction", "disk", usage(model.Number(100.5), model.Number(1), model.Number(10))},
		{"free_missing", "memory", model.Mapping(map[string]model.Value{"total": model.Number(100), "used": model.Number(1)})},
		{"not_mapping", "disk", model.String("full")},
		{"flat_not_number", "ram_free", model.String("12")},
	}
	for _, tc := range faults {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Healthy(tc.metric, tc.value)
			require.ErrorIs(t, err, errs.ErrStructuralFault)
		})
	}
}

func TestRegistryHealthy_Unknown(t *testing.T) {
	reg := NewRegistry(Structured())
	_, err := reg.Healthy("max_ram", model.Number(1))
	require.ErrorIs(t, err, errs.ErrUnknownMetric)
}

func TestRegistryFromNames(t *testing.T) {
	reg, err := RegistryFromNames([]string{"structured", " FLAT "})
	require.NoError(t, err)
	require.Equal(t, []string{"cpu_percent", "disk", "max_ram", "memory", "ram_free", "ram_used", "service"}, reg.Names())
	require.Equal(t, []string{SchemeStructured, SchemeFlat}, reg.Schemes())

	reg, err = RegistryFromNames(nil)
	require.NoError(t, err)
	require.True(t, reg.Known("memory"))
	require.False(t, reg.Known("ram_used"))

	_, err = RegistryFromNames([]string{"v0"})
	require.Error(t, err)
}
