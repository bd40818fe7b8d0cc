// Package reminder schedules the daily and periodic wellness reminders.
//
// Two cadences run side by side while notifications are enabled: a set of fixed
// daily slots (sub-schedule A) and a randomised periodic reminder (sub-schedule B).
// All timers come from a clock.Clock so tests can drive time explicitly.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/jghoshh/wellspring/core/storage"
	"github.com/jghoshh/wellspring/lib/clock"
	"github.com/jghoshh/wellspring/metrics"
	"github.com/jghoshh/wellspring/notify"
)

const DefaultInterval = 5 * time.Minute

const (
	SourceDaily    = "daily"
	SourcePeriodic = "periodic"
	SourceActivity = "activity"
)

var (
	ErrUnsupported      = errors.New("notifications are not supported on this platform")
	ErrPermissionDenied = errors.New("notifications are blocked; allow them in your system settings")
)

// ToggleOutcome reports what Toggle did.
type ToggleOutcome int

const (
	ToggleEnabled ToggleOutcome = iota
	ToggleDisabled
	// TogglePermissionRequested means a permission prompt was started in the background.
	TogglePermissionRequested
)

// State is a snapshot of the scheduler.
type State struct {
	Enabled        bool
	Permission     notify.Permission
	Supported      bool
	PeriodicActive bool
	DailyArmed     []string
}

// Options configure a Scheduler. Platform may be nil when the host has no
// notification support; the scheduler then does nothing.
type Options struct {
	Platform    notify.Platform
	Preferences storage.PreferenceStore
	Clock       clock.Clock
	Catalog     Catalog
	Interval    time.Duration
	Rand        *rand.Rand
	Metrics     metrics.Recorder
	Logger      *slog.Logger
	// OnPermission is called when a background permission request completes.
	OnPermission func(notify.Permission, error)
}

type dailyTask struct {
	timer clock.Timer
	gen   uint64
}

// Scheduler owns the reminder state. It is safe for concurrent use.
type Scheduler struct {
	platform     notify.Platform
	prefs        storage.PreferenceStore
	clock        clock.Clock
	catalog      Catalog
	interval     time.Duration
	metrics      metrics.Recorder
	logger       *slog.Logger
	onPermission func(notify.Permission, error)

	mu          sync.Mutex
	rand        *rand.Rand
	enabled     bool
	closed      bool
	requesting  bool
	periodic    clock.Timer
	periodicGen uint64
	daily       map[string]dailyTask
	dailyGen    uint64

	wg sync.WaitGroup
}

// New builds a Scheduler, restoring the enabled flag from the preference store.
func New(ctx context.Context, opts Options) (*Scheduler, error) {
	s := &Scheduler{
		platform:     opts.Platform,
		prefs:        opts.Preferences,
		clock:        opts.Clock,
		catalog:      opts.Catalog,
		interval:     opts.Interval,
		rand:         opts.Rand,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		onPermission: opts.OnPermission,
		daily:        make(map[string]dailyTask),
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if len(s.catalog.Reminders) == 0 && len(s.catalog.Daily) == 0 {
		s.catalog = DefaultCatalog()
	}
	if s.rand == nil {
		s.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if s.prefs != nil {
		enabled, err := s.prefs.LoadPreference(ctx, storage.NotificationsEnabledKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load notification preference: %w", err)
		}
		s.enabled = enabled
	}
	return s, nil
}

// NextOccurrence returns the next time strictly after now at hour:minute in now's
// location: today's slot if it is still ahead, otherwise tomorrow's.
func NextOccurrence(now time.Time, hour, minute int) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(y, m, d+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

func (s *Scheduler) permission() notify.Permission {
	if s.platform == nil {
		return notify.PermissionDenied
	}
	return s.platform.PermissionState()
}

// Start runs the boot sequence. An unanswered permission question is asked in the
// background. With permission granted and notifications enabled, both
// sub-schedules are started.
func (s *Scheduler) Start(ctx context.Context) {
	if s.platform == nil {
		s.logger.Info("notifications unsupported, reminders disabled")
		return
	}

	switch s.platform.PermissionState() {
	case notify.PermissionUnset:
		s.requestPermissionAsync(ctx)
	case notify.PermissionGranted:
		s.mu.Lock()
		enabled := s.enabled
		s.mu.Unlock()
		if enabled {
			s.StartPeriodic()
			s.armDaily()
		}
	}
}

// Enable turns notifications on, persists the choice and starts both sub-schedules.
func (s *Scheduler) Enable(ctx context.Context) error {
	if err := s.persist(ctx, true); err != nil {
		return err
	}

	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()

	s.StartPeriodic()
	s.armDaily()
	s.logger.Info("notifications enabled")
	return nil
}

// Disable turns notifications off, persists the choice and cancels every pending timer.
func (s *Scheduler) Disable(ctx context.Context) error {
	if err := s.persist(ctx, false); err != nil {
		return err
	}

	s.mu.Lock()
	s.enabled = false
	s.stopPeriodicLocked()
	s.cancelDailyLocked()
	s.mu.Unlock()

	s.logger.Info("notifications disabled")
	return nil
}

// Toggle implements the notifications button.
func (s *Scheduler) Toggle(ctx context.Context) (ToggleOutcome, error) {
	if s.platform == nil {
		return 0, ErrUnsupported
	}

	switch s.platform.PermissionState() {
	case notify.PermissionGranted:
		s.mu.Lock()
		enabled := s.enabled
		s.mu.Unlock()

		if enabled {
			return ToggleDisabled, s.Disable(ctx)
		}
		return ToggleEnabled, s.Enable(ctx)
	case notify.PermissionUnset:
		s.requestPermissionAsync(ctx)
		return TogglePermissionRequested, nil
	default:
		return 0, ErrPermissionDenied
	}
}

// RequestPermission asks the platform for permission. A grant enables
// notifications; a denial disables them and persists that outcome.
func (s *Scheduler) RequestPermission(ctx context.Context) (notify.Permission, error) {
	if s.platform == nil {
		return notify.PermissionDenied, ErrUnsupported
	}

	perm, err := s.platform.RequestPermission(ctx)
	if err != nil {
		return perm, err
	}

	switch perm {
	case notify.PermissionGranted:
		err = s.Enable(ctx)
	case notify.PermissionDenied:
		err = s.Disable(ctx)
	}
	return perm, err
}

func (s *Scheduler) requestPermissionAsync(ctx context.Context) {
	s.mu.Lock()
	if s.requesting || s.closed {
		s.mu.Unlock()
		return
	}
	s.requesting = true
	s.wg.Add(1)
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer s.wg.Done()

		perm, err := s.RequestPermission(ctx)
		if err != nil {
			s.logger.Warn("notification permission request failed", slog.Any("error", err))
		}

		s.mu.Lock()
		s.requesting = false
		s.mu.Unlock()

		if s.onPermission != nil {
			s.onPermission(perm, err)
		}
	}()
}

// Wait blocks until background permission requests have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// StartPeriodic starts sub-schedule B and emits one reminder right away. It is a
// no-op, returning false, when a periodic timer already exists or permission is
// not granted.
func (s *Scheduler) StartPeriodic() bool {
	if s.permission() != notify.PermissionGranted {
		return false
	}

	s.mu.Lock()
	if s.periodic != nil || s.closed {
		s.mu.Unlock()
		return false
	}
	s.periodicGen++
	s.armPeriodicLocked(s.periodicGen)
	msg := s.pickLocked()
	s.mu.Unlock()

	s.emit(SourcePeriodic, msg)
	return true
}

// StopPeriodic cancels sub-schedule B. A later StartPeriodic re-arms from zero.
func (s *Scheduler) StopPeriodic() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopPeriodicLocked()
}

func (s *Scheduler) armPeriodicLocked(gen uint64) {
	s.periodic = s.clock.AfterFunc(s.interval, func() { s.periodicTick(gen) })
}

func (s *Scheduler) periodicTick(gen uint64) {
	s.mu.Lock()
	if s.periodic == nil || gen != s.periodicGen {
		s.mu.Unlock()
		return
	}
	s.armPeriodicLocked(gen)
	msg := s.pickLocked()
	s.mu.Unlock()

	s.emit(SourcePeriodic, msg)
}

func (s *Scheduler) stopPeriodicLocked() {
	if s.periodic == nil {
		return
	}
	s.periodic.Stop()
	s.periodic = nil
	s.periodicGen++
}

func (s *Scheduler) pickLocked() notify.Notification {
	if len(s.catalog.Reminders) == 0 {
		return notify.Notification{Title: "Wellspring", Body: "Take a moment for yourself.", Tag: SourcePeriodic}
	}
	m := s.catalog.Reminders[s.rand.Intn(len(s.catalog.Reminders))]
	return notify.Notification{Title: m.Title, Body: m.Body, Tag: SourcePeriodic}
}

// armDaily arms every daily slot that has no pending task.
func (s *Scheduler) armDaily() {
	if s.permission() != notify.PermissionGranted {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.closed {
		return
	}

	now := s.clock.Now()
	for _, slot := range s.catalog.Daily {
		if _, ok := s.daily[slot.Key]; ok {
			continue
		}
		s.armSlotLocked(slot, now)
	}
}

func (s *Scheduler) armSlotLocked(slot Slot, now time.Time) {
	s.dailyGen++
	gen := s.dailyGen
	next := NextOccurrence(now, slot.Hour, slot.Minute)

	timer := s.clock.AfterFunc(next.Sub(now), func() { s.dailyFire(slot, gen) })
	s.daily[slot.Key] = dailyTask{timer: timer, gen: gen}
	s.logger.Debug("daily reminder armed", slog.String("slot", slot.Key), slog.Time("at", next))
}

func (s *Scheduler) dailyFire(slot Slot, gen uint64) {
	s.mu.Lock()
	task, ok := s.daily[slot.Key]
	if !ok || task.gen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.armSlotLocked(slot, s.clock.Now())
	s.mu.Unlock()

	s.emit(SourceDaily, notify.Notification{
		Title: slot.Title,
		Body:  slot.Body,
		Icon:  "🔔",
		Tag:   SourceDaily + ":" + slot.Key,
	})
}

func (s *Scheduler) cancelDailyLocked() {
	for key, task := range s.daily {
		task.timer.Stop()
		delete(s.daily, key)
	}
}

// Notify emits an ad-hoc notification, such as an activity completion, through
// the same gate as scheduled reminders. It reports whether n was emitted.
func (s *Scheduler) Notify(n notify.Notification) bool {
	if n.Tag == "" {
		n.Tag = SourceActivity
	}
	return s.emit(SourceActivity, n)
}

// emit checks support, the enabled flag and permission immediately before
// handing n to the platform. It never holds the lock while emitting.
func (s *Scheduler) emit(source string, n notify.Notification) bool {
	if s.platform == nil {
		s.metrics.NotificationSuppressed(source, "unsupported")
		return false
	}

	s.mu.Lock()
	enabled := s.enabled && !s.closed
	s.mu.Unlock()
	if !enabled {
		s.metrics.NotificationSuppressed(source, "disabled")
		return false
	}
	if s.platform.PermissionState() != notify.PermissionGranted {
		s.metrics.NotificationSuppressed(source, "permission")
		return false
	}

	s.platform.Emit(n)
	s.metrics.NotificationEmitted(source)
	return true
}

func (s *Scheduler) persist(ctx context.Context, enabled bool) error {
	if s.prefs == nil {
		return nil
	}
	if err := s.prefs.SavePreference(ctx, storage.NotificationsEnabledKey, enabled); err != nil {
		return fmt.Errorf("failed to save notification preference: %w", err)
	}
	return nil
}

// Shutdown cancels every timer. The scheduler emits nothing afterwards.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.stopPeriodicLocked()
	s.cancelDailyLocked()
}

// State returns a snapshot of the scheduler.
func (s *Scheduler) State() State {
	perm := s.permission()

	s.mu.Lock()
	defer s.mu.Unlock()

	armed := make([]string, 0, len(s.daily))
	for _, slot := range s.catalog.Daily {
		if _, ok := s.daily[slot.Key]; ok {
			armed = append(armed, slot.Key)
		}
	}

	return State{
		Enabled:        s.enabled,
		Permission:     perm,
		Supported:      s.platform != nil,
		PeriodicActive: s.periodic != nil,
		DailyArmed:     armed,
	}
}

// Enabled reports whether notifications are switched on.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}
