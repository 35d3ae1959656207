package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/and161185/fleet-status/internal/crypto"
	"github.com/and161185/fleet-status/internal/ingest"
	"github.com/spf13/cobra"
)

func newSignCmd() *cobra.Command {
	var (
		machineID string
		keyPath   string
		legacy    string
	)

	cmd := &cobra.Command{
		Use:   "sign [logs.json]",
		Short: "Print a signed /log request body",
		Long: "Signs a logs array read from the file argument or stdin, e.g.\n" +
			`  [["service","active"],["cpu_percent",[3,4]]]` + "\n" +
			"With --legacy key=value a single-metric body is produced instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := crypto.LoadPrivateKey(keyPath)
			if err != nil {
				return err
			}

			var body any
			if legacy != "" {
				key, value, ok := strings.Cut(legacy, "=")
				if !ok || key == "" {
					return errors.New("--legacy expects key=value")
				}
				body = map[string]string{
					"id":        machineID,
					"signature": crypto.Sign(priv, crypto.LegacyMessage(key, value)),
					"key":       key,
					"value":     value,
				}
			} else {
				raw, err := readInput(cmd, args)
				if err != nil {
					return err
				}
				samples, err := ingest.ParseLogs(string(raw))
				if err != nil {
					return err
				}
				logs, err := ingest.EncodeLogs(samples)
				if err != nil {
					return err
				}
				body = map[string]string{
					"id":        machineID,
					"signature": crypto.Sign(priv, crypto.CanonicalMessage(machineID, logs)),
					"logs":      logs,
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			return enc.Encode(body)
		},
	}

	cmd.Flags().StringVarP(&machineID, "id", "i", "", "Machine id")
	cmd.Flags().StringVarP(&keyPath, "key", "k", "", "Path to the machine's private key")
	cmd.Flags().StringVar(&legacy, "legacy", "", "Sign a single key=value metric")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read logs: %w", err)
	}
	return data, nil
}
