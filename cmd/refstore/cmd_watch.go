package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odvcencio/refstore/pkg/repo"
	"github.com/odvcencio/refstore/pkg/watch"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print reference changes as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
			defer stop()

			w, err := watch.New(r.Refs, slog.Default())
			if err != nil {
				return err
			}
			defer w.Close()

			out := cmd.OutOrStdout()
			err = w.Run(ctx, func(changes []watch.Change) {
				for _, c := range changes {
					fmt.Fprintln(out, c)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
