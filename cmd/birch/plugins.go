package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/birch/internal/plugin"
	"github.com/dshills/birch/internal/plugin/api"
	"github.com/dshills/birch/internal/shell"
)

// newPluginsCommand creates the plugins command group.
func newPluginsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Discover, load, and watch plugins",
		Example: `  # List plugins found in the search paths
  birch plugins list

  # Activate every plugin and report the result
  birch plugins load

  # Activate one plugin from a specific directory
  birch plugins load hello -p ./plugins

  # Search the command table
  birch plugins commands save

  # Keep plugins loaded and reload them when their files change
  birch plugins watch`,
	}

	cmd.AddCommand(newPluginsListCommand(opts))
	cmd.AddCommand(newPluginsLoadCommand(opts))
	cmd.AddCommand(newPluginsCommandsCommand(opts))
	cmd.AddCommand(newPluginsExecCommand(opts))
	cmd.AddCommand(newPluginsWatchCommand(opts))

	return cmd
}

func newPluginsListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List plugins found in the search paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := opts.newShell(cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			infos, discoverErr := s.Loader().Discover()
			cfg := s.Config()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVERSION\tSTATUS\tPATH")
			for _, info := range infos {
				version := "-"
				if info.Manifest != nil {
					version = info.Manifest.Version
				}
				status := "ok"
				switch {
				case info.Err != nil:
					status = "error: " + info.Err.Error()
				case cfg.IsDisabled(info.ID):
					status = "disabled"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.ID, version, status, info.Path)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if len(infos) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No plugins found in %v\n", s.Loader().Paths())
			}
			return discoverErr
		},
	}
}

func newPluginsLoadCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load [plugin-id...]",
		Short: "Activate plugins and report their state",
		Long: `Activate every plugin in the search paths, or only the named ones, print the
resulting registry state and notifications, then unload everything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			s, _, err := opts.newShell(out, false)
			if err != nil {
				return err
			}

			loadErr := loadPlugins(cmd, s, args)

			printEntries(out, s.Registry().List())
			if commands := s.Surface().Commands.All(); len(commands) > 0 {
				fmt.Fprintln(out)
				printCommands(out, commands)
			}
			for _, n := range s.Surface().Notifications.Pending() {
				printNotification(out, n)
			}

			return errors.Join(loadErr, s.Close(ctx))
		},
	}
}

func newPluginsCommandsCommand(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "commands [query]",
		Short: "Load plugins and search the command table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			s, logger, err := opts.newShell(out, false)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			if err := s.LoadAll(cmd.Context()); err != nil {
				logger.Warn("some plugins failed to load", "error", err)
			}

			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			matches := s.Surface().Commands.Match(query, limit)
			commands := make([]api.Command, len(matches))
			for i, m := range matches {
				commands[i] = m.Command
			}
			printCommands(out, commands)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results (0 for all)")
	return cmd
}

func newPluginsExecCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command-id>",
		Short: "Load plugins and run a command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			s, logger, err := opts.newShell(out, true)
			if err != nil {
				return err
			}

			if err := s.LoadAll(ctx); err != nil {
				logger.Warn("some plugins failed to load", "error", err)
			}
			runErr := s.Surface().Commands.Execute(args[0])
			return errors.Join(runErr, s.Close(ctx))
		},
	}
}

func newPluginsWatchCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Load plugins and reload them when their files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, logger, err := opts.newShell(cmd.OutOrStdout(), true)
			if err != nil {
				return err
			}

			if err := s.LoadAll(ctx); err != nil {
				logger.Warn("some plugins failed to load", "error", err)
			}
			if err := s.Watch(); err != nil {
				return errors.Join(err, s.Close(ctx))
			}

			logger.Info("watching plugin paths", "paths", s.Loader().Paths(), "active", len(s.Registry().ListActive()))
			<-ctx.Done()

			logger.Info("shutting down")
			// The signal context is done; unload with a fresh one.
			return s.Close(context.WithoutCancel(ctx))
		},
	}
}

// loadPlugins loads the named plugins, or all plugins when ids is empty.
func loadPlugins(cmd *cobra.Command, s *shell.Shell, ids []string) error {
	ctx := cmd.Context()
	if len(ids) == 0 {
		return s.LoadAll(ctx)
	}

	var errs []error
	for _, id := range ids {
		if err := s.LoadPlugin(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func printEntries(out io.Writer, entries []plugin.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tSTATE\tLOAD ID\tERROR")
	for _, e := range entries {
		errText := ""
		if e.Err != nil {
			errText = e.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID(), e.Descriptor.Version, e.State, e.LoadID, errText)
	}
	_ = w.Flush()
}

func printCommands(out io.Writer, commands []api.Command) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMMAND\tTITLE\tOWNER")
	for _, c := range commands {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Label(), c.Owner)
	}
	_ = w.Flush()
}
