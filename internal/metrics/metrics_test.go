package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_HandlerExposesCounters(t *testing.T) {
	m := New()
	m.VersionAppended("import")
	m.VersionAppended("")
	m.VersionConflict()
	m.NotificationsCreated("comment", 3)
	m.NotificationsCreated("comment", 0)
	m.NotificationFailed()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	for _, line := range []string{
		`reqkeeper_versions_appended_total{source="import"} 1`,
		`reqkeeper_versions_appended_total{source="manual"} 1`,
		`reqkeeper_version_conflicts_total 1`,
		`reqkeeper_notifications_created_total{type="comment"} 3`,
		`reqkeeper_notification_failures_total 1`,
	} {
		assert.True(t, strings.Contains(body, line), "missing %q", line)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.VersionAppended("x")
		m.VersionConflict()
		m.NotificationsCreated("mention", 1)
		m.NotificationFailed()
	})
}
