package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/repo"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var hash string

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty got repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			kind, err := object.ParseKind(hash)
			if err != nil {
				return err
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			r, err := repo.Init(abs, repo.WithHashKind(kind))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty got repository in %s\n", r.GotDir+string(filepath.Separator))
			return nil
		},
	}
	cmd.Flags().StringVar(&hash, "hash", "sha256", "object id kind: sha1 or sha256")
	return cmd
}
