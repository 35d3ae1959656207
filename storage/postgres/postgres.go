// Package postgres keeps machines and metric series in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/and161185/fleet-status/internal/errs"
	"github.com/and161185/fleet-status/internal/utils"
	"github.com/and161185/fleet-status/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS machines (
	id         TEXT PRIMARY KEY,
	public_key TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS metric_entries (
	id         BIGSERIAL PRIMARY KEY,
	machine_id TEXT NOT NULL REFERENCES machines(id),
	name       TEXT NOT NULL,
	value      JSONB NOT NULL,
	ts         TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);
CREATE INDEX IF NOT EXISTS metric_entries_series_idx
	ON metric_entries (machine_id, name, ts DESC, id DESC);
`

// Inserted timestamps never go below the latest one already in the series.
const insertEntry = `
INSERT INTO metric_entries (machine_id, name, value, ts)
SELECT $1, $2, $3, GREATEST(clock_timestamp(), COALESCE(MAX(ts), '-infinity'::timestamptz))
FROM metric_entries WHERE machine_id = $1 AND name = $2`

type PostgresStorage struct {
	db *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, databaseDsn string) (*PostgresStorage, error) {
	db, err := pgxpool.New(ctx, databaseDsn)
	if err != nil {
		return nil, err
	}
	store := &PostgresStorage{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (store *PostgresStorage) migrate(ctx context.Context) error {
	return utils.WithRetry(ctx, func() error {
		if _, err := store.db.Exec(ctx, schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	})
}

func (store *PostgresStorage) PutMachine(ctx context.Context, m model.Machine) error {
	return utils.WithRetry(ctx, func() error {
		_, err := store.db.Exec(ctx, `
			INSERT INTO machines (id, public_key) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET public_key = EXCLUDED.public_key`, m.ID, m.PublicKey)
		return err
	})
}

func (store *PostgresStorage) GetMachine(ctx context.Context, id string) (model.Machine, error) {
	var m model.Machine
	err := utils.WithRetry(ctx, func() error {
		return store.db.QueryRow(ctx, `SELECT id, public_key FROM machines WHERE id = $1`, id).
			Scan(&m.ID, &m.PublicKey)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Machine{}, errs.ErrMachineNotFound
	}
	if err != nil {
		return model.Machine{}, err
	}
	return m, nil
}

func (store *PostgresStorage) ListMachines(ctx context.Context) ([]model.Machine, error) {
	var result []model.Machine
	err := utils.WithRetry(ctx, func() error {
		rows, err := store.db.Query(ctx, `SELECT id, public_key FROM machines ORDER BY id`)
		if err != nil {
			return err
		}
		result, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Machine, error) {
			var m model.Machine
			err := row.Scan(&m.ID, &m.PublicKey)
			return m, err
		})
		return err
	})
	return result, err
}

func (store *PostgresStorage) ListSeries(ctx context.Context, machineID string) ([]string, error) {
	var names []string
	err := utils.WithRetry(ctx, func() error {
		rows, err := store.db.Query(ctx,
			`SELECT DISTINCT name FROM metric_entries WHERE machine_id = $1 ORDER BY name`, machineID)
		if err != nil {
			return err
		}
		names, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	return names, err
}

func (store *PostgresStorage) Append(ctx context.Context, machineID string, samples []model.Sample) error {
	values := make([][]byte, len(samples))
	for i, smp := range samples {
		data, err := json.Marshal(smp.Value)
		if err != nil {
			return fmt.Errorf("failed to marshal %q: %w", smp.Name, err)
		}
		values[i] = data
	}

	return utils.WithRetry(ctx, func() error {
		tx, err := store.db.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM machines WHERE id = $1)`, machineID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return errs.ErrMachineNotFound
		}

		batch := &pgx.Batch{}
		for i, smp := range samples {
			batch.Queue(insertEntry, machineID, smp.Name, values[i])
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

func scanEntry(row pgx.CollectableRow) (model.Entry, error) {
	var (
		e   model.Entry
		raw []byte
	)
	if err := row.Scan(&e.Name, &raw, &e.Timestamp); err != nil {
		return model.Entry{}, err
	}
	if err := json.Unmarshal(raw, &e.Value); err != nil {
		return model.Entry{}, fmt.Errorf("failed to decode stored value: %w", err)
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}

func (store *PostgresStorage) Latest(ctx context.Context, key model.SeriesKey) (model.Entry, error) {
	entries, err := store.RecentN(ctx, key, 1)
	if err != nil {
		return model.Entry{}, err
	}
	if len(entries) == 0 {
		return model.Entry{}, errs.ErrNoEntries
	}
	return entries[0], nil
}

func (store *PostgresStorage) RecentN(ctx context.Context, key model.SeriesKey, n int) ([]model.Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	var entries []model.Entry
	err := utils.WithRetry(ctx, func() error {
		rows, err := store.db.Query(ctx, `
			SELECT name, value, ts FROM (
				SELECT id, name, value, ts FROM metric_entries
				WHERE machine_id = $1 AND name = $2
				ORDER BY ts DESC, id DESC
				LIMIT $3
			) recent ORDER BY ts, id`, key.MachineID, key.Name, n)
		if err != nil {
			return err
		}
		entries, err = pgx.CollectRows(rows, scanEntry)
		return err
	})
	return entries, err
}

func (store *PostgresStorage) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

func (store *PostgresStorage) Close() error {
	store.db.Close()
	return nil
}
