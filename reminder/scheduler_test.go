package reminder

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/jghoshh/wellspring/core/storage"
	"github.com/jghoshh/wellspring/lib/clock"
	"github.com/jghoshh/wellspring/lib/logger"
	"github.com/jghoshh/wellspring/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

type fixture struct {
	s     *Scheduler
	clock *clock.Fake
	prefs *storage.BlobStore
}

func newFixture(t *testing.T, platform notify.Platform, enabled bool, interval time.Duration) fixture {
	t.Helper()
	ctx := context.Background()

	prefs := storage.NewBlobStore(storage.NewMemoryKV())
	require.NoError(t, prefs.SavePreference(ctx, storage.NotificationsEnabledKey, enabled))

	clk := clock.NewFake(start)
	s, err := New(ctx, Options{
		Platform:    platform,
		Preferences: prefs,
		Clock:       clk,
		Catalog:     DefaultCatalog(),
		Interval:    interval,
		Rand:        rand.New(rand.NewSource(1)),
		Logger:      logger.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return fixture{s: s, clock: clk, prefs: prefs}
}

func byTag(ns []notify.Notification, prefix string) []notify.Notification {
	var out []notify.Notification
	for _, n := range ns {
		if strings.HasPrefix(n.Tag, prefix) {
			out = append(out, n)
		}
	}
	return out
}

func persisted(t *testing.T, f fixture) bool {
	t.Helper()
	v, err := f.prefs.LoadPreference(context.Background(), storage.NotificationsEnabledKey)
	require.NoError(t, err)
	return v
}

func TestNextOccurrence(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2024, 3, 4, h, m, 0, 0, time.UTC) }

	assert.Equal(t, at(9, 0), NextOccurrence(at(8, 0), 9, 0))
	assert.Equal(t, at(9, 0).AddDate(0, 0, 1), NextOccurrence(at(9, 0), 9, 0), "a slot equal to now targets tomorrow")
	assert.Equal(t, at(9, 0).AddDate(0, 0, 1), NextOccurrence(at(22, 15), 9, 0))
	assert.Equal(t, at(21, 0), NextOccurrence(at(12, 0), 21, 0))

	endOfMonth := time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), NextOccurrence(endOfMonth, 9, 0))
}

func TestNextOccurrenceKeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// clocks go forward on 2024-03-31
	now := time.Date(2024, 3, 30, 22, 0, 0, 0, loc)
	next := NextOccurrence(now, 9, 0)
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 31, next.Day())
}

func TestStartPeriodicIsIdempotent(t *testing.T) {
	platform := notify.NewFake(notify.PermissionGranted)
	f := newFixture(t, platform, true, 5*time.Minute)

	assert.True(t, f.s.StartPeriodic())
	assert.False(t, f.s.StartPeriodic())

	assert.Equal(t, 1, f.clock.Pending())
	assert.Len(t, platform.Emitted(), 1, "only the first start emits eagerly")

	f.clock.Advance(5 * time.Minute)
	assert.Len(t, platform.Emitted(), 2)
	assert.Equal(t, 1, f.clock.Pending())
}

func TestStartPeriodicRequiresPermission(t *testing.T) {
	platform := notify.NewFake(notify.PermissionUnset)
	f := newFixture(t, platform, true, 5*time.Minute)

	assert.False(t, f.s.StartPeriodic())
	assert.Equal(t, 0, f.clock.Pending())
	assert.Empty(t, platform.Emitted())
}

func TestStopThenStartRearmsFromZero(t *testing.T) {
	platform := notify.NewFake(notify.PermissionGranted)
	f := newFixture(t, platform, true, 5*time.Minute)

	f.s.StartPeriodic()
	f.clock.Advance(3 * time.Minute)
	f.s.StopPeriodic()
	assert.False(t, f.s.State().PeriodicActive)

	f.s.StartPeriodic()
	due, ok := f.clock.NextDue()
	require.True(t, ok)
	assert.Equal(t, start.Add(8*time.Minute), due)
}

func TestPeriodicPicksFromCatalog(t *testing.T) {
	platform := notify.NewFake(notify.PermissionGranted)
	f := newFixture(t, platform, true, time.Minute)

	f.s.StartPeriodic()
	f.clock.Advance(30 * time.Minute)

	titles := map[string]bool{}
	for _, m := range DefaultCatalog().Reminders {
		titles[m.Title] = true
	}
	emitted := platform.Emitted()
	require.Len(t, emitted, 31)
	for _, n := range emitted {
		assert.True(t, titles[n.Title], n.Title)
		assert.Equal(t, SourcePeriodic, n.Tag)
	}
}

func TestDisableStopsPeriodicAndReenableEmitsEagerly(t *testing.T) {
	ctx := context.Background()
	platform := notify.NewFake(notify.PermissionGranted)
	f := newFixture(t, platform, false, 5*time.Minute)

	require.NoError(t, f.s.Enable(ctx))
	assert.True(t, persisted(t, f))
	assert.Len(t, byTag(platform.Emitted(), SourcePeriodic), 1)

	f.clock.Advance(5 * time.Minute)
	assert.Len(t, byTag(platform.Emitted(), SourcePeriodic), 2)

	require.NoError(t, f.s.Disable(ctx))
	assert.False(t, persisted(t, f))
	assert.Equal(t, 0, f.clock.Pending(), "disable cancels every timer")

	f.clock.Advance(30 * time.Minute)
	assert.Len(t, byTag(platform.Emitted(), SourcePeriodic), 2)

	require.NoError(t, f.s.Enable(ctx))
	assert.Len(t, byTag(platform.Emitted(), SourcePeriodic), 3)
}

func TestDailySlotsFireAndRearm(t *testing.T) {
	platform := notify.NewFake(notify.PermissionGranted)
	f := newFixture(t, platform, false, 72*time.Hour)

	require.NoError(t, f.s.Enable(context.Background()))
	assert.Equal(t, []string{"morning", "midday", "evening"}, f.s.State().DailyArmed)

	f.clock.Advance(time.Hour)
	daily := byTag(platform.Emitted(), SourceDaily)
	require.Len(t, daily, 1)
	assert.Equal(t, "daily:morning", daily[0].Tag)
	assert.Equal(t, "Good morning!", daily[0].Title)

	f.clock.Advance(12 * time.Hour) // 21:00
	daily = byTag(platform.Emitted(), SourceDaily)
	require.Len(t, daily, 3)
	assert.Equal(t, "daily:midday", daily[1].Tag)
	assert.Equal(t, "daily:evening", daily[2].Tag)

	f.clock.Advance(24 * time.Hour)
	assert.Len(t, byTag(platform.Emitted(), SourceDaily), 6)
	assert.Len(t, f.s.State().DailyArmed, 3)
}

func TestToggleCyclesDoNotDuplicateTimers(t *testing.T) {
	ctx := context.Background()
	platform := notify.NewFake(notify.PermissionGranted)
	f := newFixture(t, platform, false, 5*time.Minute)

	outcomes := []ToggleOutcome{ToggleEnabled, ToggleDisabled, ToggleEnabled, ToggleDisabled, ToggleEnabled}
	for _, want := range outcomes {
		got, err := f.s.Toggle(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	assert.Equal(t, 4, f.clock.Pending(), "one periodic timer and three daily tasks")

	f.clock.Advance(time.Hour)
	assert.Len(t, byTag(platform.Emitted(), SourceDaily), 1)
}

func TestToggleErrors(t *testing.T) {
	ctx := context.Background()

	unsupported := newFixture(t, nil, false, 0)
	_, err := unsupported.s.Toggle(ctx)
	assert.ErrorIs(t, err, ErrUnsupported)

	denied := newFixture(t, notify.NewFake(notify.PermissionDenied), false, 0)
	_, err = denied.s.Toggle(ctx)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.False(t, denied.s.Enabled())
}

func TestToggleRequestsPermissionWhenUnset(t *testing.T) {
	ctx := context.Background()
	platform := notify.NewFake(notify.PermissionUnset)
	f := newFixture(t, platform, false, 5*time.Minute)

	outcome, err := f.s.Toggle(ctx)
	require.NoError(t, err)
	assert.Equal(t, TogglePermissionRequested, outcome)

	f.s.Wait()
	assert.Equal(t, 1, platform.Requests())
	assert.True(t, f.s.Enabled())
	assert.True(t, persisted(t, f))
	assert.True(t, f.s.State().PeriodicActive)
	assert.Len(t, platform.Emitted(), 1)
}

func TestPermissionDenialDisablesAndPersists(t *testing.T) {
	platform := notify.NewFake(notify.PermissionUnset)
	platform.AnswerWith(notify.PermissionDenied)
	f := newFixture(t, platform, true, 5*time.Minute)

	perm, err := f.s.RequestPermission(context.Background())
	require.NoError(t, err)
	assert.Equal(t, notify.PermissionDenied, perm)
	assert.False(t, f.s.Enabled())
	assert.False(t, persisted(t, f))
	assert.Equal(t, 0, f.clock.Pending())
}

func TestStartBootSequence(t *testing.T) {
	ctx := context.Background()

	t.Run("granted and enabled", func(t *testing.T) {
		platform := notify.NewFake(notify.PermissionGranted)
		f := newFixture(t, platform, true, 5*time.Minute)

		f.s.Start(ctx)
		st := f.s.State()
		assert.True(t, st.Enabled)
		assert.True(t, st.PeriodicActive)
		assert.Len(t, st.DailyArmed, 3)
		assert.Len(t, platform.Emitted(), 1)
	})

	t.Run("granted but disabled", func(t *testing.T) {
		platform := notify.NewFake(notify.PermissionGranted)
		f := newFixture(t, platform, false, 5*time.Minute)

		f.s.Start(ctx)
		assert.Equal(t, 0, f.clock.Pending())
		assert.Empty(t, platform.Emitted())
	})

	t.Run("unset asks in the background", func(t *testing.T) {
		platform := notify.NewFake(notify.PermissionUnset)
		prefs := storage.NewBlobStore(storage.NewMemoryKV())

		answered := make(chan notify.Permission, 1)
		s, err := New(ctx, Options{
			Platform:     platform,
			Preferences:  prefs,
			Clock:        clock.NewFake(start),
			Logger:       logger.Discard(),
			OnPermission: func(p notify.Permission, _ error) { answered <- p },
		})
		require.NoError(t, err)
		defer s.Shutdown()

		s.Start(ctx)
		s.Wait()

		assert.Equal(t, notify.PermissionGranted, <-answered)
		assert.True(t, s.Enabled())
	})
}

func TestPermissionCheckedBeforeEveryEmit(t *testing.T) {
	platform := notify.NewFake(notify.PermissionGranted)
	f := newFixture(t, platform, true, 5*time.Minute)
	f.s.Start(context.Background())
	require.Len(t, platform.Emitted(), 1)

	platform.SetPermission(notify.PermissionDenied)
	f.clock.Advance(10 * time.Minute)
	assert.Len(t, platform.Emitted(), 1)

	platform.SetPermission(notify.PermissionGranted)
	f.clock.Advance(5 * time.Minute)
	assert.Len(t, platform.Emitted(), 2)
}

func TestNotifyGate(t *testing.T) {
	ctx := context.Background()
	platform := notify.NewFake(notify.PermissionGranted)
	f := newFixture(t, platform, false, 5*time.Minute)

	assert.False(t, f.s.Notify(notify.Notification{Title: "Workout completed!"}))

	require.NoError(t, f.s.Enable(ctx))
	assert.True(t, f.s.Notify(notify.Notification{Title: "Workout completed!"}))

	activity := byTag(platform.Emitted(), SourceActivity)
	require.Len(t, activity, 1)
	assert.Equal(t, "Workout completed!", activity[0].Title)
}

func TestUnsupportedPlatformIsNoop(t *testing.T) {
	f := newFixture(t, nil, true, 5*time.Minute)

	f.s.Start(context.Background())
	assert.False(t, f.s.StartPeriodic())
	assert.False(t, f.s.Notify(notify.Notification{Title: "hi"}))
	assert.Equal(t, 0, f.clock.Pending())
	assert.False(t, f.s.State().Supported)
}

func TestShutdownCancelsEverything(t *testing.T) {
	platform := notify.NewFake(notify.PermissionGranted)
	f := newFixture(t, platform, true, 5*time.Minute)
	f.s.Start(context.Background())

	f.s.Shutdown()
	assert.Equal(t, 0, f.clock.Pending())
	assert.False(t, f.s.Notify(notify.Notification{Title: "late"}))
	assert.False(t, f.s.StartPeriodic())
}

func TestNewRestoresPersistedFlag(t *testing.T) {
	f := newFixture(t, notify.NewFake(notify.PermissionGranted), true, 0)
	assert.True(t, f.s.Enabled())
	assert.Equal(t, DefaultInterval, f.s.interval)
}
