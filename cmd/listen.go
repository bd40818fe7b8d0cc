package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jghoshh/wellspring/lib/utils"
	"github.com/jghoshh/wellspring/notify"
	"github.com/spf13/cobra"
)

// NewListenCommand creates the listen command.
func NewListenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Print notifications published to the AMQP queue",
		Long: `Consume the notification queue and print each notification as a banner.

Pair it with NOTIFY_BACKEND=amqp on the process that tracks activity or
runs reminders.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd.Context(), rootOpts)
		},
	}
}

func runListen(ctx context.Context, opts *RootOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadConfig(opts)
	if err != nil {
		return err
	}

	platform, err := notify.DialAMQP(cfg.RabbitMQURL, cfg.NotifyQueue, log)
	if err != nil {
		return err
	}
	defer platform.Close()

	messages, err := platform.Consume(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(opts.Stdout, "Listening for notifications on %s\n\n", cfg.NotifyQueue)
	for msg := range messages {
		printMessage(opts, msg, time.Now())
	}
	return nil
}

func printMessage(opts *RootOptions, msg notify.Message, now time.Time) {
	utils.PrintBanner(opts.Stdout, fmt.Sprintf("%s (%s)", msg.Text(), utils.FormatRelative(msg.SentAt, now)))
}
