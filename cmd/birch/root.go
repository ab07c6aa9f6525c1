package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/dshills/birch/internal/config"
	"github.com/dshills/birch/internal/logging"
	"github.com/dshills/birch/internal/shell"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	logLevel   string
	logJSON    bool
	pluginDirs []string
}

// newRootCommand creates the birch command tree.
func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "birch",
		Short: "Birch - editor plugin host",
		Long: `Birch hosts editor plugins: it discovers Lua plugins in the plugin search
paths, activates them against the editor capability surface, and reports
plugins that fail to activate or deactivate.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nCommit: %s\nBuilt: %s\nGo version: %s\nPlatform: %s/%s\n",
		commit, date, goVersion(), runtime.GOOS, runtime.GOARCH))

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (default: birch.toml or birch.yaml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")
	rootCmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().StringSliceVarP(&opts.pluginDirs, "plugin-dir", "p", nil, "Plugin search path (repeatable, replaces plugins.paths)")

	rootCmd.AddCommand(newPluginsCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// loadConfig reads the configuration file and applies flag overrides.
func (o *globalOptions) loadConfig() (config.Config, error) {
	path := o.configPath
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			path = config.Find(cwd)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if len(o.pluginDirs) > 0 {
		cfg.Plugins.Paths = o.pluginDirs
	}
	return cfg, cfg.Validate()
}

// newLogger creates the process logger. Logs go to stderr.
func (o *globalOptions) newLogger(cfg config.Config) hclog.Logger {
	logOpts := logging.DefaultOptions()
	logOpts.Level = cfg.LogLevel
	logOpts.JSON = o.logJSON
	logOpts.Output = os.Stderr
	return logging.New(logOpts)
}

// newShell creates a shell. With live set, notifications are printed to
// out as they arrive. The returned logger is the CLI's own sub-logger.
func (o *globalOptions) newShell(out io.Writer, live bool) (*shell.Shell, hclog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := o.newLogger(cfg)

	shellOpts := []shell.Option{shell.WithLogger(logger)}
	if live {
		shellOpts = append(shellOpts, shell.WithNotificationForward(func(n shell.PostedNotification) {
			printNotification(out, n)
		}))
	}
	s, err := shell.New(cfg, shellOpts...)
	if err != nil {
		return nil, nil, err
	}
	return s, logging.Component(logger, "cli"), nil
}

func printNotification(out io.Writer, n shell.PostedNotification) {
	fmt.Fprintf(out, "[%s] %s: %s\n", n.Level, n.Owner, n.Message)
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Birch %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}
}
