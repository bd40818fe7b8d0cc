package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jghoshh/wellspring/app"
	"github.com/jghoshh/wellspring/notify"
	"github.com/jghoshh/wellspring/server"
	"github.com/spf13/cobra"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr      string
	AccessLog bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tracker as a JSON HTTP API",
		Long: `Serve registration, login and activity tracking over HTTP.

Clients sign in with POST /api/login and send the returned token as a
Bearer header. Prometheus metrics are exposed on /metrics.

Example:
  wellspring serve --addr http://localhost:8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "server URL to listen on, overrides SERVER_URL")
	cmd.Flags().BoolVar(&opts.AccessLog, "access-log", true, "write an access log to stderr")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts.RootOptions, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	// The server never prompts, so an unanswered permission question is left
	// for the shell to ask.
	if a.Scheduler.State().Permission != notify.PermissionUnset {
		a.Scheduler.Start(ctx)
	}

	addr := a.Config.ServerURL
	if opts.Addr != "" {
		addr = opts.Addr
	}

	srv := server.New(a.Auth, a.Tracker, a.Tokens, a.Metrics.Handler(), a.Logger.With(slog.String("component", "server")))
	accessLog := opts.Stderr
	if !opts.AccessLog {
		accessLog = nil
	}

	err = srv.Start(ctx, addr, accessLog)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
