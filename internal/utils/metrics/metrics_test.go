package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elevare/server/internal/adapter/outbound/memory"
	"github.com/elevare/server/internal/port/outbound"
)

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test", reg)

	require.NotNil(t, m)
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.GenerationsTotal)
	assert.NotNil(t, m.CreditsCharged)

	// Registering twice on the same registry must panic.
	assert.Panics(t, func() { New("test", reg) })
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m := New("http_test", prometheus.NewRegistry())

	t.Run("records request with 2xx status", func(t *testing.T) {
		m.RecordHTTPRequest("GET", "/api/v1/subscription", 200, 100*time.Millisecond)

		count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/subscription", "2xx"))
		assert.Equal(t, float64(1), count)
	})

	t.Run("records request with 4xx status", func(t *testing.T) {
		m.RecordHTTPRequest("POST", "/api/v1/generations/:feature", 402, 50*time.Millisecond)

		count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/generations/:feature", "4xx"))
		assert.Equal(t, float64(1), count)
	})

	t.Run("records request with 5xx status", func(t *testing.T) {
		m.RecordHTTPRequest("POST", "/api/v1/generations/:feature", 502, 200*time.Millisecond)

		count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/generations/:feature", "5xx"))
		assert.Equal(t, float64(1), count)
	})
}

func TestMetrics_RecordGeneration(t *testing.T) {
	m := New("gen_test", prometheus.NewRegistry())

	m.RecordGeneration("ebook", "success", 3*time.Second)
	m.RecordGeneration("ebook", "success", 4*time.Second)
	m.RecordGeneration("video", "failure", time.Minute)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("ebook", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("video", "failure")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.GenerationDuration))
}

func TestMetrics_RecordCreditsCharged(t *testing.T) {
	m := New("credits_test", prometheus.NewRegistry())

	m.RecordCreditsCharged("video", 5)
	m.RecordCreditsCharged("video", 5)
	m.RecordCreditsCharged("ebook", 0)

	assert.Equal(t, float64(10), testutil.ToFloat64(m.CreditsCharged.WithLabelValues("video")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CreditsCharged))
}

func TestMetrics_RecordProvider(t *testing.T) {
	m := New("provider_test", prometheus.NewRegistry())

	m.RecordProviderCall("gemini", "generate text", "ok", time.Second)
	m.RecordProviderCall("gemini", "generate text", "network_error", time.Second)
	m.RecordPollAttempts("gemini", 4)
	m.RecordPollAttempts("gemini", 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("gemini", "generate text", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("gemini", "generate text", "network_error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PollAttempts))
}

func TestInstrumentCache(t *testing.T) {
	m := New("cache_test", prometheus.NewRegistry())
	cache := InstrumentCache(memory.NewAggregateCache(), m)
	ctx := context.Background()

	_, err := cache.Get(ctx, "usage:u1")
	assert.ErrorIs(t, err, outbound.ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "usage:u1", []byte("{}"), time.Minute))
	data, err := cache.Get(ctx, "usage:u1")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("miss")))

	t.Run("nil metrics returns cache unchanged", func(t *testing.T) {
		inner := memory.NewAggregateCache()
		assert.Same(t, inner, InstrumentCache(inner, nil))
	})
}

func TestStatusCodeToString(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{299, "2xx"},
		{300, "3xx"},
		{399, "3xx"},
		{400, "4xx"},
		{402, "4xx"},
		{499, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
		{100, "unknown"},
		{0, "unknown"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, statusCodeToString(tt.code))
		})
	}
}
