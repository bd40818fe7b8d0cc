package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jghoshh/wellspring/app"
	"github.com/jghoshh/wellspring/notify"
	"github.com/spf13/cobra"
)

// NewRemindCommand creates the remind command.
func NewRemindCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Run the reminder scheduler without the shell",
		Long: `Run the daily and periodic reminders in the foreground until interrupted.

If notification permission has never been answered, the question is asked
once on the terminal before the scheduler starts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemind(cmd.Context(), rootOpts, os.Stdin)
		},
	}
}

func runRemind(ctx context.Context, opts *RootOptions, in io.Reader) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts, app.Options{Prompt: linePrompt(in, opts.Stdout)})
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Scheduler.State().Supported {
		return fmt.Errorf("reminders need a notification backend, NOTIFY_BACKEND is %q", a.Config.NotifyBackend)
	}
	if a.Scheduler.State().Permission == notify.PermissionUnset {
		if _, err := a.Scheduler.RequestPermission(ctx); err != nil {
			return err
		}
	}
	a.Scheduler.Start(ctx)

	state := a.Scheduler.State()
	a.Logger.Info("reminder daemon running",
		slog.Bool("enabled", state.Enabled),
		slog.String("permission", state.Permission.String()),
		slog.Any("daily", state.DailyArmed))
	if !state.Enabled || state.Permission != notify.PermissionGranted {
		fmt.Fprintln(opts.Stdout, "Notifications are off. Turn them on from the shell with 'notifications'.")
	}

	<-ctx.Done()
	return nil
}

// linePrompt asks a yes/no question on plain line-oriented streams.
func linePrompt(in io.Reader, out io.Writer) notify.Prompt {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, question string) (bool, error) {
		fmt.Fprintf(out, "%s (yes/no): ", question)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false, err
		}
		return isYes(line), nil
	}
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
