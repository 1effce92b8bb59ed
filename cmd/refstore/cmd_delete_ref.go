package main

import (
	"fmt"

	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/repo"
	"github.com/spf13/cobra"
)

func newDeleteRefCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-ref <name> [old-oid]",
		Short: "Delete a reference from the loose tree and the packed table",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			if len(args) == 2 {
				old, err := object.ParseHash(args[1])
				if err != nil {
					return fmt.Errorf("delete-ref: old-oid: %w", err)
				}
				return r.DeleteRef(args[0], old)
			}
			return r.DeleteRef(args[0])
		},
	}
}
