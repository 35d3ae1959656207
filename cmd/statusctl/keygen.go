package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/and161185/fleet-status/internal/crypto"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "keygen <machine-id>",
		Short: "Generate an Ed25519 key pair for a machine",
		Long: "Writes <machine-id>.key (PKCS#8 PEM, mode 0600) for the agent and " +
			"<machine-id>.pub (PKIX PEM) for registration.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			privPEM, err := crypto.EncodePrivateKey(priv)
			if err != nil {
				return err
			}
			pubPEM, err := crypto.EncodePublicKey(pub)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			keyPath := filepath.Join(outDir, args[0]+".key")
			pubPath := filepath.Join(outDir, args[0]+".pub")
			if err := os.WriteFile(keyPath, privPEM, 0o600); err != nil {
				return fmt.Errorf("write private key: %w", err)
			}
			if err := os.WriteFile(pubPath, []byte(pubPEM), 0o644); err != nil {
				return fmt.Errorf("write public key: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "private key: %s\npublic key: %s\n", keyPath, pubPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	return cmd
}
