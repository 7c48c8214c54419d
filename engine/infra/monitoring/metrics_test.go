package monitoring_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/credportal/credportal/engine/infra/monitoring"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("Should count outcomes per label", func(t *testing.T) {
		m := monitoring.New()
		m.RecordIntake(monitoring.ResultSuccess)
		m.RecordIntake(monitoring.ResultSuccess)
		m.RecordIntake(monitoring.ResultConflict)
		m.RecordProtocolCollision()
		m.RecordOrphanRemoval(monitoring.ResultFailure)
		assert.Equal(t, 2.0, testutil.ToFloat64(m.IntakeCounter(monitoring.ResultSuccess)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.IntakeCounter(monitoring.ResultConflict)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.ProtocolCollisions()))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.OrphanCounter(monitoring.ResultFailure)))
	})
	t.Run("Should ignore records on a nil receiver", func(t *testing.T) {
		var m *monitoring.Metrics
		assert.NotPanics(t, func() {
			m.RecordIntake(monitoring.ResultSuccess)
			m.RecordProtocolCollision()
			m.RecordOrphanRemoval(monitoring.ResultSuccess)
		})
	})
	t.Run("Should expose counters over HTTP", func(t *testing.T) {
		m := monitoring.New()
		m.RecordProtocolCollision()
		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "credportal_protocol_collisions_total 1")
	})
}
