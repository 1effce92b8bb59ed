package main

import (
	"fmt"
	"os"

	"github.com/odvcencio/refstore/pkg/repo"
	"github.com/odvcencio/refstore/pkg/snapshot"
	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var force bool
	var trustedKey string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Apply a snapshot written by export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			opts := []snapshot.Option{snapshot.WithForce(force)}
			if trustedKey != "" {
				pub, err := loadTrustedKey(trustedKey)
				if err != nil {
					return err
				}
				opts = append(opts, snapshot.WithTrustedKey(pub))
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			defer f.Close()

			res, err := snapshot.Import(f, r.Refs, r.LockMode(), opts...)
			if err != nil {
				return err
			}
			printImportResult(cmd, res)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite references that exist with a different value")
	cmd.Flags().StringVar(&trustedKey, "trusted-key", "", "require a signature by this SSH public key")
	return cmd
}

func printImportResult(cmd *cobra.Command, res *snapshot.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "imported %d packed and %d loose ref(s)\n", res.Packed, res.Loose)
	for _, name := range res.Shadowed {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s is shadowed by a loose file\n", name)
	}
}
