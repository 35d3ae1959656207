package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/and161185/fleet-status/internal/auth"
	"github.com/spf13/cobra"
)

func newHashPasswordCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the bcrypt hash for ADMIN_PASSWORD_HASH",
		Long:  "Reads the password from --password or, when it is not set, from the first line of stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Password to hash")
	return cmd
}
