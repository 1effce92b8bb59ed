package main

import (
	"fmt"
	"sort"

	"github.com/odvcencio/refstore/pkg/refname"
	"github.com/odvcencio/refstore/pkg/repo"
	"github.com/spf13/cobra"
)

func newRemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage repository remotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			cfg, err := r.ReadConfig()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(cfg.Remotes))
			for name := range cfg.Remotes {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, cfg.Remotes[name])
			}
			return nil
		},
	}

	setRemote := func(verb string) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if _, err := refname.ParseFull(refname.PrefixRemotes + args[0] + "/HEAD"); err != nil {
				return fmt.Errorf("invalid remote name %q: %w", args[0], err)
			}
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			if err := r.SetRemote(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s remote %q -> %s\n", verb, args[0], args[1])
			return nil
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> <url>",
		Short: "Add a named remote",
		Args:  cobra.ExactArgs(2),
		RunE:  setRemote("added"),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-url <name> <url>",
		Short: "Update a named remote URL",
		Args:  cobra.ExactArgs(2),
		RunE:  setRemote("updated"),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show a remote's URL and its remote-tracking references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			url, err := r.RemoteURL(args[0])
			if err != nil {
				return err
			}
			tracking, err := r.ListRefs(refname.PrefixRemotes + args[0] + "/")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "remote %s\n  url: %s\n", args[0], url)
			for _, ref := range tracking {
				fmt.Fprintf(out, "  %s %s\n", ref.Target, ref.Name)
			}
			return nil
		},
	})

	return cmd
}
