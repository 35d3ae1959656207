package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/and161185/fleet-status/internal/provision"
	"github.com/and161185/fleet-status/model"
	"github.com/spf13/cobra"
)

func newMachineCmd() *cobra.Command {
	var flags storeFlags

	cmd := &cobra.Command{
		Use:   "machine",
		Short: "Manage registered machines",
	}
	flags.register(cmd)

	cmd.AddCommand(
		newMachineAddCmd(&flags),
		newMachineListCmd(&flags),
		newMachineImportCmd(&flags),
	)
	return cmd
}

func newMachineAddCmd(flags *storeFlags) *cobra.Command {
	var keyPath string

	cmd := &cobra.Command{
		Use:   "add <machine-id>",
		Short: "Register a machine or replace its key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			pem, err := os.ReadFile(keyPath)
			if err != nil {
				return fmt.Errorf("read public key: %w", err)
			}
			m := model.Machine{ID: strings.TrimSpace(args[0]), PublicKey: string(pem)}
			if err = provision.Validate(m); err != nil {
				return err
			}

			st, closeStore, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeStore(); err == nil {
					err = cerr
				}
			}()

			if err = provision.Register(cmd.Context(), st, []model.Machine{m}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", m.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyPath, "public-key", "k", "", "Path to the machine's public key PEM")
	_ = cmd.MarkFlagRequired("public-key")
	return cmd
}

func newMachineListCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print registered machines in the seed file format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			st, closeStore, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeStore(); err == nil {
					err = cerr
				}
			}()

			machines, err := st.ListMachines(cmd.Context())
			if err != nil {
				return fmt.Errorf("list machines: %w", err)
			}
			out, err := provision.Marshal(machines)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newMachineImportCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <machines.yaml>",
		Short: "Register every machine of a seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			machines, err := provision.LoadFile(args[0])
			if err != nil {
				return err
			}

			st, closeStore, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeStore(); err == nil {
					err = cerr
				}
			}()

			if err = provision.Register(cmd.Context(), st, machines); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d machines\n", len(machines))
			return nil
		},
	}
}
