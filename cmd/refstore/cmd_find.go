package main

import (
	"fmt"

	"github.com/odvcencio/refstore/pkg/repo"
	"github.com/spf13/cobra"
)

func newFindCmd() *cobra.Command {
	var mustExist bool

	cmd := &cobra.Command{
		Use:   "find <name>",
		Short: "Look up a possibly abbreviated reference name",
		Long: `Look up a reference the way the store does: special names such as HEAD
first, then refs/<name>, refs/tags/<name>, refs/heads/<name>,
refs/remotes/<name> and refs/remotes/<name>/HEAD. Each candidate is read
as a loose file before the packed table.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			buf, err := r.Refs.Packed()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if mustExist {
				ref, err := r.Refs.FindExisting(args[0], buf)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s\n", ref.Target, ref.Name)
				return nil
			}

			ref, ok, err := r.Refs.Find(args[0], buf)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(out, "%s: not found\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "%s %s\n", ref.Target, ref.Name)
			if ref.Peeled != "" {
				fmt.Fprintf(out, "^%s\n", ref.Peeled)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&mustExist, "must-exist", false, "fail if the reference does not exist")
	return cmd
}
