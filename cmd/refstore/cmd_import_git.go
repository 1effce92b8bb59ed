package main

import (
	"fmt"
	"log/slog"

	gogit "github.com/go-git/go-git/v5"

	"github.com/odvcencio/refstore/pkg/gitimport"
	"github.com/odvcencio/refstore/pkg/repo"
	"github.com/spf13/cobra"
)

func newImportGitCmd() *cobra.Command {
	var force bool
	var gitDir bool

	cmd := &cobra.Command{
		Use:   "import-git <path>",
		Short: "Copy the references of a git repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			var src *gogit.Repository
			if gitDir {
				src, err = gitimport.OpenGitDir(args[0])
			} else {
				src, err = gitimport.Open(args[0])
			}
			if err != nil {
				return err
			}

			res, err := gitimport.Import(src, r.Refs, r.LockMode(), force, slog.Default())
			if err != nil {
				return err
			}
			printImportResult(cmd, &res.Result)
			if len(res.Skipped) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped %d ref(s) with unsupported names\n", len(res.Skipped))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite references that exist with a different value")
	cmd.Flags().BoolVar(&gitDir, "git-dir", false, "treat <path> as a git directory (bare repository or .git)")
	return cmd
}
