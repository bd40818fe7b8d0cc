// Package app assembles wellspring's services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jghoshh/wellspring/auth"
	"github.com/jghoshh/wellspring/config"
	"github.com/jghoshh/wellspring/core/storage"
	"github.com/jghoshh/wellspring/lib/clock"
	"github.com/jghoshh/wellspring/metrics"
	"github.com/jghoshh/wellspring/notify"
	"github.com/jghoshh/wellspring/reminder"
	"github.com/jghoshh/wellspring/tracker"
)

// Options carry the presentation-specific collaborators.
type Options struct {
	// Out receives console notifications.
	Out io.Writer
	// Prompt asks the user for notification permission on the console platform.
	Prompt notify.Prompt
	// OnPermission is told when a background permission request finishes.
	OnPermission func(notify.Permission, error)
	Clock        clock.Clock
}

// App holds every long-lived component.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     storage.StorageInterface
	Sessions  storage.SessionStore
	Tokens    *auth.TokenSigner
	Auth      *auth.Service
	Tracker   *tracker.Service
	Scheduler *reminder.Scheduler
	Platform  notify.Platform
	Metrics   *metrics.Collector

	amqp *notify.AMQPPlatform
}

// New builds the application. The caller owns the result and must Close it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	store, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, Store: store, Metrics: metrics.NewCollector()}

	a.Tokens = auth.NewTokenSigner(cfg.JWTSigningKey, cfg.SessionTTL, clk)
	a.Sessions = store
	if cfg.SessionBackend == config.SessionKeyring {
		a.Sessions = auth.NewKeyringSessionStore(a.Tokens, "session")
	}

	verifier, err := auth.NewVerifier(cfg.PasswordHashing)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Auth = auth.NewService(store, a.Sessions, verifier, logger.With(slog.String("component", "auth")))

	if err := a.initPlatform(cfg, logger, opts); err != nil {
		a.Close()
		return nil, err
	}

	catalog, err := reminder.LoadCatalog(cfg.ReminderCatalog)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Scheduler, err = reminder.New(ctx, reminder.Options{
		Platform:     a.Platform,
		Preferences:  store,
		Clock:        clk,
		Catalog:      catalog,
		Interval:     cfg.ReminderInterval,
		Metrics:      a.Metrics,
		Logger:       logger.With(slog.String("component", "reminder")),
		OnPermission: opts.OnPermission,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Tracker = tracker.NewService(store, a.Scheduler, clk, a.Metrics, logger.With(slog.String("component", "tracker")))
	return a, nil
}

func (a *App) initPlatform(cfg *config.Config, logger *slog.Logger, opts Options) error {
	switch cfg.NotifyBackend {
	case config.NotifyConsole:
		out := opts.Out
		if out == nil {
			out = io.Discard
		}
		a.Platform = notify.NewConsolePlatform(out, a.Store, opts.Prompt, logger)
	case config.NotifyAMQP:
		p, err := notify.DialAMQP(cfg.RabbitMQURL, cfg.NotifyQueue, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize notifications: %w", err)
		}
		a.amqp = p
		a.Platform = p
	case config.NotifyNone:
		a.Platform = nil
	}
	return nil
}

// AMQP returns the AMQP platform when NOTIFY_BACKEND=amqp.
func (a *App) AMQP() (*notify.AMQPPlatform, bool) {
	return a.amqp, a.amqp != nil
}

// Close stops the scheduler and releases the store and broker connection.
func (a *App) Close() error {
	var errs []error
	if a.Scheduler != nil {
		a.Scheduler.Shutdown()
	}
	if a.amqp != nil {
		errs = append(errs, a.amqp.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
