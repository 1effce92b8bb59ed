package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/odvcencio/refstore/pkg/repo"
	"github.com/spf13/cobra"
)

const version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "refstore",
		Short:         "Inspect and edit the references of a got repository",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logLevel
			if !cmd.Flags().Changed("log-level") {
				if configured := configuredLogLevel(); configured != "" {
					level = configured
				}
			}
			logger, err := newLogger(level)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newFindCmd())
	root.AddCommand(newShowRefCmd())
	root.AddCommand(newUpdateRefCmd())
	root.AddCommand(newDeleteRefCmd())
	root.AddCommand(newPackRefsCmd())
	root.AddCommand(newHeadCmd())
	root.AddCommand(newBranchCmd())
	root.AddCommand(newTagCmd())
	root.AddCommand(newReflogCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newImportGitCmd())
	root.AddCommand(newRemoteCmd())
	root.AddCommand(newWatchCmd())
	return root
}

// configuredLogLevel returns the log level of the repository containing the
// working directory, or "" outside a repository.
func configuredLogLevel() string {
	r, err := repo.Open(".")
	if err != nil {
		return ""
	}
	return r.Config.Log.Level
}

// newLogger builds the stderr logger: tint formatting, colors only when
// stderr is a terminal.
func newLogger(level string) (*slog.Logger, error) {
	ll := &slog.LevelVar{}
	switch level {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
		ll.Set(slog.LevelInfo)
	case "warn", "":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return nil, fmt.Errorf("unknown log level: %q", level)
	}
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "refstore %s\n", version)
		},
	}
}
