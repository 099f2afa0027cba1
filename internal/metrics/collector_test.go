package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("intake", reg, zap.NewNop()), reg
}

func TestCollector_ObserveToolInvocation(t *testing.T) {
	c, _ := newTestCollector(t)

	c.ObserveToolInvocation("save_order", "ok", 5*time.Millisecond)
	c.ObserveToolInvocation("save_order", "ok", 7*time.Millisecond)
	c.ObserveToolInvocation("save_order", "validation_error", time.Millisecond)

	ok := testutil.ToFloat64(c.toolInvocationsTotal.WithLabelValues("save_order", "ok"))
	assert.Equal(t, 2.0, ok)
	bad := testutil.ToFloat64(c.toolInvocationsTotal.WithLabelValues("save_order", "validation_error"))
	assert.Equal(t, 1.0, bad)
}

func TestCollector_ObserveRecordWritten(t *testing.T) {
	c, _ := newTestCollector(t)

	c.ObserveRecordWritten("order", 2*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.recordsWrittenTotal.WithLabelValues("order")))
}

func TestCollector_SessionGauge(t *testing.T) {
	c, _ := newTestCollector(t)

	c.SessionStarted()
	c.SessionStarted()
	c.SessionEnded()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsActive))
}

func TestCollector_RegistersAllMetrics(t *testing.T) {
	c, reg := newTestCollector(t)
	c.ObserveToolInvocation("save_order", "ok", time.Millisecond)
	c.ObserveRecordWritten("order", time.Millisecond)
	c.ObserveTurn("utterance")
	c.SessionStarted()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"intake_tool_invocations_total",
		"intake_tool_invocation_duration_seconds",
		"intake_records_written_total",
		"intake_record_write_duration_seconds",
		"intake_sessions_active",
		"intake_session_turns_total",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}
}
