package main

import (
	"fmt"

	"github.com/odvcencio/refstore/pkg/repo"
	"github.com/spf13/cobra"
)

func newPackRefsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pack-refs",
		Short: "Move loose references into the packed table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			summary, err := r.PackRefs()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if summary.Packed == 0 && summary.Pruned == 0 {
				fmt.Fprintln(out, "nothing to pack")
				return nil
			}
			fmt.Fprintf(out, "packed %d ref(s), pruned %d loose file(s)\n", summary.Packed, summary.Pruned)
			return nil
		},
	}
}
