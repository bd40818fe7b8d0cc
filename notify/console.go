package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jghoshh/wellspring/core/storage"
	"github.com/jghoshh/wellspring/lib/utils"
)

const (
	PermissionAskedKey   = "notificationPermissionAsked"
	PermissionGrantedKey = "notificationPermissionGranted"
)

// Prompt asks the user a yes/no question.
type Prompt func(ctx context.Context, question string) (bool, error)

// ConsolePlatform prints notifications as banners. The permission answer is kept
// in the preference store so the user is asked once.
type ConsolePlatform struct {
	mu     sync.Mutex
	out    io.Writer
	prefs  storage.PreferenceStore
	prompt Prompt
	logger *slog.Logger

	loaded     bool
	permission Permission
}

func NewConsolePlatform(out io.Writer, prefs storage.PreferenceStore, prompt Prompt, logger *slog.Logger) *ConsolePlatform {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsolePlatform{out: out, prefs: prefs, prompt: prompt, logger: logger}
}

func (c *ConsolePlatform) PermissionState() Permission {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		c.permission = c.loadPermission(context.Background())
		c.loaded = true
	}
	return c.permission
}

func (c *ConsolePlatform) loadPermission(ctx context.Context) Permission {
	asked, err := c.prefs.LoadPreference(ctx, PermissionAskedKey)
	if err != nil {
		c.logger.Warn("failed to load notification permission", slog.Any("error", err))
		return PermissionUnset
	}
	if !asked {
		return PermissionUnset
	}
	granted, err := c.prefs.LoadPreference(ctx, PermissionGrantedKey)
	if err != nil || !granted {
		return PermissionDenied
	}
	return PermissionGranted
}

// RequestPermission prompts the user unless the question was already answered.
// Without a prompt the request is treated as denied.
func (c *ConsolePlatform) RequestPermission(ctx context.Context) (Permission, error) {
	if state := c.PermissionState(); state != PermissionUnset {
		return state, nil
	}

	granted := false
	if c.prompt != nil {
		answer, err := c.prompt(ctx, "Allow wellspring to show reminders?")
		if err != nil {
			return PermissionUnset, fmt.Errorf("permission prompt failed: %w", err)
		}
		granted = answer
	}

	if err := c.prefs.SavePreference(ctx, PermissionAskedKey, true); err != nil {
		return PermissionUnset, err
	}
	if err := c.prefs.SavePreference(ctx, PermissionGrantedKey, granted); err != nil {
		return PermissionUnset, err
	}

	state := PermissionDenied
	if granted {
		state = PermissionGranted
	}

	c.mu.Lock()
	c.permission = state
	c.loaded = true
	c.mu.Unlock()

	return state, nil
}

func (c *ConsolePlatform) Emit(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	utils.PrintBanner(c.out, n.Text())
}
