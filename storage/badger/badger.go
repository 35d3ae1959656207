// Package badger keeps machines and metric series in an embedded Badger database.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/and161185/fleet-status/internal/errs"
	"github.com/and161185/fleet-status/model"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	machinePrefix = "m\x00"
	indexPrefix   = "i\x00"
	entryPrefix   = "s\x00"
	sep           = 0x00

	conflictRetries = 5
)

var ErrClosed = errors.New("badger store is closed")

type BadgerStorage struct {
	db  *badger.DB
	now func() time.Time
}

// Option configures a BadgerStorage.
type Option func(*BadgerStorage)

// WithClock overrides the clock used to stamp appended entries.
func WithClock(now func() time.Time) Option {
	return func(s *BadgerStorage) { s.now = now }
}

// NewInMemoryBadgerStorage opens a Badger database that never touches disk.
func NewInMemoryBadgerStorage(opts ...Option) (*BadgerStorage, error) {
	bo := badger.DefaultOptions("").WithInMemory(true)
	bo.Logger = nil
	return open(bo, opts...)
}

func NewBadgerStorage(path string, opts ...Option) (*BadgerStorage, error) {
	bo := badger.DefaultOptions(filepath.Clean(path))
	bo.Logger = nil
	bo = bo.WithValueLogFileSize(1 << 24)
	return open(bo, opts...)
}

func open(bo badger.Options, opts ...Option) (*BadgerStorage, error) {
	db, err := badger.Open(bo)
	if err != nil {
		return nil, err
	}
	s := &BadgerStorage{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func machineKey(id string) []byte {
	return []byte(machinePrefix + id)
}

func seriesPrefix(machineID string) []byte {
	b := make([]byte, 0, len(indexPrefix)+len(machineID)+1)
	b = append(b, indexPrefix...)
	b = append(b, machineID...)
	return append(b, sep)
}

func indexKey(key model.SeriesKey) []byte {
	return append(seriesPrefix(key.MachineID), key.Name...)
}

func entriesPrefix(key model.SeriesKey) []byte {
	b := make([]byte, 0, len(entryPrefix)+len(key.MachineID)+len(key.Name)+2)
	b = append(b, entryPrefix...)
	b = append(b, key.MachineID...)
	b = append(b, sep)
	b = append(b, key.Name...)
	return append(b, sep)
}

func entryKey(key model.SeriesKey, ts time.Time) []byte {
	b := entriesPrefix(key)
	b = binary.BigEndian.AppendUint64(b, uint64(ts.UnixNano()))
	id := uuid.New()
	return append(b, id[:]...)
}

func (store *BadgerStorage) PutMachine(ctx context.Context, m model.Machine) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal machine: %w", err)
	}
	return store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(machineKey(m.ID), data)
	})
}

func (store *BadgerStorage) GetMachine(ctx context.Context, id string) (model.Machine, error) {
	var out model.Machine
	err := store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(machineKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return errs.ErrMachineNotFound
			}
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &out)
		})
	})
	if err != nil {
		return model.Machine{}, err
	}
	return out, nil
}

func (store *BadgerStorage) ListMachines(ctx context.Context) ([]model.Machine, error) {
	var result []model.Machine
	err := store.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(machinePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var m model.Machine
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &m) }); err != nil {
				return err
			}
			result = append(result, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (store *BadgerStorage) ListSeries(ctx context.Context, machineID string) ([]string, error) {
	var names []string
	err := store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := seriesPrefix(machineID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, string(bytes.TrimPrefix(it.Item().Key(), prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (store *BadgerStorage) Append(ctx context.Context, machineID string, samples []model.Sample) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = store.db.Update(func(txn *badger.Txn) error {
			return store.appendTxn(txn, machineID, samples)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (store *BadgerStorage) appendTxn(txn *badger.Txn, machineID string, samples []model.Sample) error {
	if _, err := txn.Get(machineKey(machineID)); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errs.ErrMachineNotFound
		}
		return err
	}

	now := store.now().UTC()
	for _, smp := range samples {
		key := model.SeriesKey{MachineID: machineID, Name: smp.Name}
		ts := now

		item, err := txn.Get(indexKey(key))
		switch {
		case err == nil:
			err = item.Value(func(v []byte) error {
				if len(v) == 8 {
					last := time.Unix(0, int64(binary.BigEndian.Uint64(v))).UTC()
					if !ts.After(last) {
						ts = last.Add(time.Nanosecond)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		data, err := json.Marshal(model.Entry{Name: smp.Name, Value: smp.Value, Timestamp: ts})
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		if err := txn.Set(entryKey(key, ts), data); err != nil {
			return err
		}
		if err := txn.Set(indexKey(key), binary.BigEndian.AppendUint64(nil, uint64(ts.UnixNano()))); err != nil {
			return err
		}
	}
	return nil
}

// scanBack walks a series newest first until fn returns false. Entry keys sort by
// timestamp, which strictly increases within a series.
func (store *BadgerStorage) scanBack(ctx context.Context, key model.SeriesKey, fn func(model.Entry) bool) error {
	return store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := entriesPrefix(key)
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e model.Entry
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &e) }); err != nil {
				return err
			}
			if !fn(e) {
				return nil
			}
		}
		return nil
	})
}

func (store *BadgerStorage) Latest(ctx context.Context, key model.SeriesKey) (model.Entry, error) {
	var (
		out   model.Entry
		found bool
	)
	err := store.scanBack(ctx, key, func(e model.Entry) bool {
		out, found = e, true
		return false
	})
	if err != nil {
		return model.Entry{}, err
	}
	if !found {
		return model.Entry{}, errs.ErrNoEntries
	}
	return out, nil
}

func (store *BadgerStorage) RecentN(ctx context.Context, key model.SeriesKey, n int) ([]model.Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	result := make([]model.Entry, 0, n)
	err := store.scanBack(ctx, key, func(e model.Entry) bool {
		result = append(result, e)
		return len(result) < n
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

func (store *BadgerStorage) Ping(ctx context.Context) error {
	if store.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

func (store *BadgerStorage) Close() error {
	return store.db.Close()
}
