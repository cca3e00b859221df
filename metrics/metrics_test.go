package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Update("message")
		m.Command("tasks", "success", time.Second)
		m.Dialog("reading_new_task_name")
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.Update("message")
	m.Update("message")
	m.Update("callback_query")
	m.Command("tasks", "success", 20*time.Millisecond)
	m.Dialog("reading_new_task_comment")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.updates.WithLabelValues("message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.updates.WithLabelValues("callback_query")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("tasks", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dialogs.WithLabelValues("reading_new_task_comment")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Command("start", "success", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `oopbot_commands_total{command="start",result="success"} 1`), body)
	assert.True(t, strings.Contains(body, "oopbot_command_duration_seconds_bucket"))
}

func TestServeShutdown(t *testing.T) {
	s := Serve("127.0.0.1:0", New(), zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
