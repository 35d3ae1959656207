package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/fleet-status/internal/buildinfo"
	"github.com/and161185/fleet-status/storage"
	"github.com/spf13/cobra"
)

// storeFlags selects the store the machine commands work on. The priority is
// the same as the server's: DSN, then badger, then the snapshot file.
type storeFlags struct {
	dsn        string
	badgerPath string
	file       string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&f.dsn, "dsn", "d", "", "PostgreSQL connection string")
	cmd.PersistentFlags().StringVarP(&f.badgerPath, "badger", "b", "", "Badger data directory")
	cmd.PersistentFlags().StringVarP(&f.file, "file", "f", "", "In-memory snapshot file")
}

func (f *storeFlags) options() storage.Options {
	return storage.Options{
		DatabaseDsn:     f.dsn,
		BadgerPath:      f.badgerPath,
		FileStoragePath: f.file,
		Restore:         true,
	}
}

// open returns the store and a closer that saves the snapshot first when the
// store is the in-memory one.
func (f *storeFlags) open(ctx context.Context) (storage.Store, func() error, error) {
	if f.dsn == "" && f.badgerPath == "" && f.file == "" {
		return nil, nil, errors.New("one of --dsn, --badger or --file is required")
	}
	st, err := storage.Open(ctx, f.options())
	if err != nil {
		return nil, nil, err
	}
	closer := func() error {
		var saveErr error
		if snap, ok := st.(storage.Snapshotter); ok && f.file != "" {
			if err := snap.SaveToFile(ctx, f.file); err != nil {
				saveErr = fmt.Errorf("save snapshot: %w", err)
			}
		}
		return errors.Join(saveErr, st.Close())
	}
	return st, closer, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "statusctl",
		Short:         "Operate the fleet status collector",
		Version:       buildinfo.Current().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newKeygenCmd(),
		newMachineCmd(),
		newHashPasswordCmd(),
		newSignCmd(),
	)
	return root
}
