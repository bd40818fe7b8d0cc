// Package cmd holds the wellspring command line: the interactive shell, the
// HTTP API server, the headless reminder daemon and the AMQP listener.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jghoshh/wellspring/app"
	"github.com/jghoshh/wellspring/config"
	"github.com/jghoshh/wellspring/lib/logger"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile   string
	LogLevel  string
	LogFormat string

	// Stdout and Stderr default to the process streams; tests replace them.
	Stdout io.Writer
	Stderr io.Writer
}

// NewRootCommand creates the root command. Without a subcommand it starts the shell.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Stdout: os.Stdout, Stderr: os.Stderr}

	cmd := &cobra.Command{
		Use:   "wellspring",
		Short: "Wellspring - a personal wellness tracker",
		Long: `Track workouts, meditations, moods and journal entries, keep a daily
activity streak and get gentle reminders to look after yourself.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(opts.EnvFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), overrides LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json), overrides LOG_FORMAT")

	cmd.AddCommand(NewShellCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRemindCommand(opts))
	cmd.AddCommand(NewListenCommand(opts))

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root := NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and builds the process logger. Flags win over
// LOG_LEVEL and LOG_FORMAT.
func loadConfig(opts *RootOptions) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}
	return cfg, logger.SetupDefault(opts.Stderr, cfg.LogLevel, cfg.LogFormat), nil
}

func newApp(ctx context.Context, opts *RootOptions, appOpts app.Options) (*app.App, error) {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if appOpts.Out == nil {
		appOpts.Out = opts.Stdout
	}
	return app.New(ctx, cfg, log, appOpts)
}
