package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsActivities(t *testing.T) {
	c := NewCollector()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	c.ActivityRecorded("workout", 2, at)
	c.ActivityRecorded("workout", 3, at)
	c.ActivityRecorded("mood", 3, at)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.activities.WithLabelValues("workout")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.activities.WithLabelValues("mood")))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(c.lastActivity))
}

func TestStreaksOfDifferentUsersAreAllKept(t *testing.T) {
	c := NewCollector()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	c.ActivityRecorded("workout", 12, at)
	c.ActivityRecorded("mood", 1, at)
	c.ActivityRecorded("journal", 0, at)

	families, err := c.registry.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() != "wellspring_tracker_streak_days" {
			continue
		}
		found = true
		h := f.GetMetric()[0].GetHistogram()
		assert.Equal(t, uint64(3), h.GetSampleCount())
		assert.Equal(t, float64(13), h.GetSampleSum())
	}
	assert.True(t, found, "streak histogram is registered")
}

func TestCollectorCountsNotifications(t *testing.T) {
	c := NewCollector()

	c.NotificationEmitted("periodic")
	c.NotificationSuppressed("daily", "disabled")
	c.NotificationSuppressed("daily", "disabled")

	assert.Equal(t, float64(1), testutil.ToFloat64(c.emitted.WithLabelValues("periodic")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.suppressed.WithLabelValues("daily", "disabled")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.NotificationEmitted("activity")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `wellspring_reminder_notifications_emitted_total{source="activity"} 1`)
}
