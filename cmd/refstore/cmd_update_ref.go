package main

import (
	"fmt"

	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/repo"
	"github.com/spf13/cobra"
)

func newUpdateRefCmd() *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "update-ref <name> <new-oid> [old-oid]",
		Short: "Point a reference at an object id",
		Long: `Write <new-oid> to the loose reference <name>. With [old-oid] the update
only happens if the reference currently holds that id; with --create it
only happens if the reference does not exist yet.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if create && len(args) == 3 {
				return fmt.Errorf("update-ref: --create and old-oid are mutually exclusive")
			}
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			name, next := args[0], object.Hash(args[1])
			switch {
			case create:
				return r.UpdateRefCAS(name, next, "")
			case len(args) == 3:
				old, err := object.ParseHash(args[2])
				if err != nil {
					return fmt.Errorf("update-ref: old-oid: %w", err)
				}
				return r.UpdateRefCAS(name, next, old)
			default:
				return r.UpdateRef(name, next)
			}
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "fail if the reference already exists")
	return cmd
}
