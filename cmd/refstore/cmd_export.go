package main

import (
	"fmt"
	"os"

	"github.com/odvcencio/refstore/pkg/repo"
	"github.com/odvcencio/refstore/pkg/snapshot"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var sign bool
	var keyPath string

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write every reference to a compressed snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			var opts []snapshot.Option
			if sign || keyPath != "" {
				signer, path, err := loadSigner(keyPath)
				if err != nil {
					return err
				}
				opts = append(opts, snapshot.WithSigner(signer))
				fmt.Fprintf(cmd.ErrOrStderr(), "signing with %s (%s)\n", path, snapshot.Fingerprint(signer))
			}

			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			n, err := snapshot.Export(f, r.Refs, opts...)
			if err != nil {
				f.Close()
				os.Remove(args[0])
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d ref(s) to %s\n", n, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&sign, "sign", false, "sign the snapshot with an SSH key")
	cmd.Flags().StringVar(&keyPath, "key", "", "SSH private key used with --sign (default ~/.ssh/id_ed25519, id_ecdsa, id_rsa)")
	return cmd
}
