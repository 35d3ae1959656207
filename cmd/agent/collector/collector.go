// Package collector samples the host for the agent report.
package collector

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/and161185/fleet-status/internal/validator"
	"github.com/and161185/fleet-status/model"
	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// ServiceError is reported when the unit state cannot be read at all.
const ServiceError = "error"

// Usage is a total/used/free triple in bytes. For memory, Free is the kernel's
// free memory, not the larger "available" figure that counts reclaimable cache.
type Usage struct {
	Total uint64
	Used  uint64
	Free  uint64
}

func (u Usage) value() model.Value {
	return model.Mapping(map[string]model.Value{
		"total": model.Number(float64(u.Total)),
		"used":  model.Number(float64(u.Used)),
		"free":  model.Number(float64(u.Free)),
	})
}

// Collector gathers one report worth of samples. Each probe can be replaced.
type Collector struct {
	unit     string
	diskPath string
	scheme   string

	serviceState func(ctx context.Context, unit string) string
	cpuPercent   func(ctx context.Context) ([]float64, error)
	memory       func(ctx context.Context) (Usage, error)
	diskUsage    func(ctx context.Context, path string) (Usage, error)
}

type Option func(*Collector)

func WithServiceProbe(f func(ctx context.Context, unit string) string) Option {
	return func(c *Collector) { c.serviceState = f }
}

func WithCPUProbe(f func(ctx context.Context) ([]float64, error)) Option {
	return func(c *Collector) { c.cpuPercent = f }
}

func WithMemoryProbe(f func(ctx context.Context) (Usage, error)) Option {
	return func(c *Collector) { c.memory = f }
}

func WithDiskProbe(f func(ctx context.Context, path string) (Usage, error)) Option {
	return func(c *Collector) { c.diskUsage = f }
}

// New returns a collector for the systemd unit, disk mount point and metric
// scheme ("structured" or "flat").
func New(unit, diskPath, scheme string, opts ...Option) (*Collector, error) {
	if _, err := validator.SchemeByName(scheme); err != nil {
		return nil, err
	}
	c := &Collector{
		unit:         unit,
		diskPath:     diskPath,
		scheme:       strings.ToLower(strings.TrimSpace(scheme)),
		serviceState: UnitState,
		cpuPercent:   cpuPercent,
		memory:       virtualMemory,
		diskUsage:    diskUsage,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Collect returns the samples of one report. Probe failures drop the
// affected metric and are joined into the returned error; the service state
// is always present.
func (c *Collector) Collect(ctx context.Context) ([]model.Sample, error) {
	samples := []model.Sample{{Name: "service", Value: model.String(c.serviceState(ctx, c.unit))}}

	var errs []error
	ram, memErr := c.memory(ctx)
	if memErr != nil {
		errs = append(errs, fmt.Errorf("memory: %w", memErr))
	}

	switch c.scheme {
	case validator.SchemeFlat:
		if memErr == nil {
			samples = append(samples,
				model.Sample{Name: "max_ram", Value: model.Number(float64(ram.Total))},
				model.Sample{Name: "ram_used", Value: model.Number(float64(ram.Used))},
				model.Sample{Name: "ram_free", Value: model.Number(float64(ram.Free))},
			)
		}
	default:
		if pct, err := c.cpuPercent(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cpu: %w", err))
		} else {
			samples = append(samples, model.Sample{Name: "cpu_percent", Value: model.Numbers(pct...)})
		}
		if memErr == nil {
			samples = append(samples, model.Sample{Name: "memory", Value: ram.value()})
		}
		if d, err := c.diskUsage(ctx, c.diskPath); err != nil {
			errs = append(errs, fmt.Errorf("disk %s: %w", c.diskPath, err))
		} else {
			samples = append(samples, model.Sample{Name: "disk", Value: d.value()})
		}
	}
	return samples, errors.Join(errs...)
}

// UnitState reads the ActiveState of the systemd unit over D-Bus ("active",
// "inactive", "failed", ...). Without a system bus it falls back to
// SystemctlState.
func UnitState(ctx context.Context, unit string) string {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return SystemctlState(ctx, unit)
	}
	defer conn.Close()

	prop, err := conn.GetUnitPropertyContext(ctx, unitName(unit), "ActiveState")
	if err != nil {
		return ServiceError
	}
	state, ok := prop.Value.Value().(string)
	if !ok || state == "" {
		return ServiceError
	}
	return state
}

// unitName adds the .service suffix to bare unit names.
func unitName(unit string) string {
	if strings.Contains(unit, ".") {
		return unit
	}
	return unit + ".service"
}

// SystemctlState runs `systemctl is-active unit`. The command exits non-zero
// for every state but active, so the printed state wins over the exit code.
func SystemctlState(ctx context.Context, unit string) string {
	out, _ := exec.CommandContext(ctx, "systemctl", "is-active", unit).Output()
	return isActiveOutput(out)
}

func isActiveOutput(out []byte) string {
	if state := strings.TrimSpace(string(out)); state != "" {
		return state
	}
	return ServiceError
}

func cpuPercent(ctx context.Context) ([]float64, error) {
	return cpu.PercentWithContext(ctx, 0, true)
}

func virtualMemory(ctx context.Context) (Usage, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Usage{}, err
	}
	return memoryUsage(v), nil
}

func memoryUsage(v *mem.VirtualMemoryStat) Usage {
	return Usage{Total: v.Total, Used: v.Used, Free: v.Free}
}

func diskUsage(ctx context.Context, path string) (Usage, error) {
	d, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Total: d.Total, Used: d.Used, Free: d.Free}, nil
}
