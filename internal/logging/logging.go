// Package logging builds the structured loggers used across Birch.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Options configures the root logger.
type Options struct {
	// Level is the minimum level to output ("trace", "debug", "info", "warn", "error").
	Level string
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Name is the root logger name.
	Name string
	// JSON switches to JSON formatted lines.
	JSON bool
	// Disabled discards all output.
	Disabled bool
}

// DefaultOptions returns the default logger options.
func DefaultOptions() Options {
	return Options{
		Level:  "info",
		Output: os.Stderr,
		Name:   "birch",
	}
}

// ParseLevel parses a level name. Unknown names map to info.
func ParseLevel(s string) hclog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return hclog.Trace
	case "debug":
		return hclog.Debug
	case "warn", "warning":
		return hclog.Warn
	case "error":
		return hclog.Error
	case "off":
		return hclog.Off
	default:
		return hclog.Info
	}
}

// New creates a root logger.
func New(opts Options) hclog.Logger {
	if opts.Disabled {
		return hclog.NewNullLogger()
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Name == "" {
		opts.Name = "birch"
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       opts.Name,
		Level:      ParseLevel(opts.Level),
		Output:     opts.Output,
		JSONFormat: opts.JSON,
	})
}

// Component returns a sub-logger for a named component.
func Component(l hclog.Logger, component string) hclog.Logger {
	if l == nil {
		return hclog.NewNullLogger()
	}
	return l.Named(component)
}

// ForPlugin returns a logger that tags every line with the plugin id.
func ForPlugin(l hclog.Logger, id string) hclog.Logger {
	if l == nil {
		return hclog.NewNullLogger()
	}
	return l.With("plugin", id)
}
