package main

import (
	"fmt"

	"github.com/odvcencio/refstore/pkg/object"
	"github.com/odvcencio/refstore/pkg/repo"
	"github.com/spf13/cobra"
)

func newHeadCmd() *cobra.Command {
	var setRef string
	var detach string

	cmd := &cobra.Command{
		Use:   "head",
		Short: "Show or change what HEAD points at",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if setRef != "" && detach != "" {
				return fmt.Errorf("head: --set and --detach are mutually exclusive")
			}
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			switch {
			case setRef != "":
				return r.SetHead(setRef)
			case detach != "":
				return r.DetachHead(object.Hash(detach))
			}

			head, err := r.Head()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch head.Kind {
			case repo.HeadDetached:
				fmt.Fprintf(out, "detached at %s\n", head.Target)
			case repo.HeadUnborn:
				fmt.Fprintf(out, "unborn %s\n", head.Referent)
			default:
				id, _ := head.ID()
				fmt.Fprintf(out, "%s %s\n", head.Referent, id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&setRef, "set", "", "point HEAD at the given full reference name")
	cmd.Flags().StringVar(&detach, "detach", "", "point HEAD directly at the given object id")
	return cmd
}
