package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/contre95/mdlive/src/features/reload"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Records(t *testing.T) {
	m := New()
	m.Request("markdown", 200)
	m.Request("markdown", 200)
	m.LongPoll(LongPollTimeout)
	m.DigestHit()
	m.DigestComputed()
	m.SubscriptionsChanged(1)
	m.SubscriptionsChanged(1)
	m.SubscriptionsChanged(-1)
	m.EventDispatched(reload.EventModified, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("markdown", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.longPolls.WithLabelValues(LongPollTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.digests.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.subscriptions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("modified")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Request("file", 404)
	m.LongPoll(LongPollChanged)
	m.DigestHit()
	m.SubscriptionsChanged(1)
	m.EventDispatched(reload.EventCreated, 0)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.LongPoll(LongPollChanged)

	app := fiber.New()
	app.Get("/metrics", m.Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(body), `mdlive_long_polls_total{outcome="changed"} 1`)
}
