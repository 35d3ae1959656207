// Package storage defines the telemetry store contract and picks a backend.
package storage

import (
	"context"
	"fmt"

	"github.com/and161185/fleet-status/model"
	"github.com/and161185/fleet-status/storage/badger"
	"github.com/and161185/fleet-status/storage/inmemory"
	"github.com/and161185/fleet-status/storage/postgres"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/and161185/fleet-status/storage Store

// Store keeps machines and their append-only metric series.
//
// Entries are never mutated or deleted. Timestamps are assigned by the store on
// Append and never decrease within a series.
type Store interface {
	PutMachine(ctx context.Context, m model.Machine) error
	// GetMachine returns errs.ErrMachineNotFound for unknown ids.
	GetMachine(ctx context.Context, id string) (model.Machine, error)
	// ListMachines returns all machines ordered by id.
	ListMachines(ctx context.Context) ([]model.Machine, error)
	// ListSeries returns the metric names recorded for a machine, sorted.
	ListSeries(ctx context.Context, machineID string) ([]string, error)
	// Append stores all samples or none of them.
	Append(ctx context.Context, machineID string, samples []model.Sample) error
	// Latest returns errs.ErrNoEntries when the series is empty.
	Latest(ctx context.Context, key model.SeriesKey) (model.Entry, error)
	// RecentN returns up to n most recent entries, oldest first.
	RecentN(ctx context.Context, key model.SeriesKey, n int) ([]model.Entry, error)
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	DatabaseDsn     string // postgres when set
	BadgerPath      string // embedded badger when set and no DSN
	FileStoragePath string // in-memory snapshot file
	Restore         bool   // load the snapshot on start
}

// Open picks postgres, then badger, then the in-memory store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch {
	case opts.DatabaseDsn != "":
		st, err := postgres.NewPostgresStorage(ctx, opts.DatabaseDsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return st, nil
	case opts.BadgerPath != "":
		st, err := badger.NewBadgerStorage(opts.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		return st, nil
	default:
		st := inmemory.NewMemStorage()
		if opts.Restore && opts.FileStoragePath != "" {
			if err := st.LoadFromFile(ctx, opts.FileStoragePath); err != nil {
				return nil, fmt.Errorf("restore snapshot: %w", err)
			}
		}
		return st, nil
	}
}

// Snapshotter is implemented by stores that can persist themselves to a file.
type Snapshotter interface {
	SaveToFile(ctx context.Context, filePath string) error
}
