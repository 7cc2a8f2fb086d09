// Package cli holds the applimon commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"applimon/internal/config"
	"applimon/internal/logger"

	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "0.3.0"

// options holds the flags shared by every command.
type options struct {
	configPath string
	logLevel   string
	logFormat  string
	dryRun     bool
	progress   bool

	// stderr receives the capture progress bar.
	stderr io.Writer
}

func (o *options) logger() (*logger.ZerologAdapter, error) {
	return logger.New(o.logFormat, o.logLevel)
}

// NewRootCommand builds the command tree. Invoked without a subcommand it
// performs one run, so existing cron lines keep working.
func NewRootCommand() *cobra.Command {
	opts := &options{stderr: os.Stderr}

	root := &cobra.Command{
		Use:           "applimon [image]",
		Short:         "Watch an appliance display through a marker-anchored camera patch",
		Version:       Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), opts, args)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "path to the JSON configuration")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "console", "log format: console or json")
	pf.BoolVar(&opts.dryRun, "dry-run", false, "classify and persist but do not send notifications")
	pf.BoolVar(&opts.progress, "progress", false, "show a progress bar while capturing frames")

	root.AddCommand(
		newRunCommand(opts),
		newMarkerCommand(opts),
		newStatusCommand(opts),
	)
	return root
}

// Execute runs the root command with a context cancelled on SIGINT or
// SIGTERM and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "applimon:", err)
		stop()
		os.Exit(1)
	}
}
