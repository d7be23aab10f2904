package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shelia5K/FAPI-order-service/internal/services"
)

func TestHealthHandlersHealthz(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	current := now
	handlers := NewHealthHandlers(WithHealthClock(func() time.Time { return current }))
	current = now.Add(90 * time.Second)

	rr := httptest.NewRecorder()
	handlers.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	payload := decodeBody(t, rr)
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, "1m30s", payload["uptime"])
	assert.Equal(t, "2026-10-19T12:01:30Z", payload["timestamp"])
}

func TestHealthHandlersReadyz(t *testing.T) {
	cases := []struct {
		name   string
		status services.HealthStatus
		want   int
	}{
		{"ok", services.HealthStatusOK, http.StatusOK},
		{"degraded rates still ready", services.HealthStatusDegraded, http.StatusOK},
		{"storage down", services.HealthStatusError, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handlers := NewHealthHandlers(WithHealthSystemService(&routerStubSystemService{report: services.HealthReport{
				Status: tc.status,
				Checks: map[string]services.HealthCheck{
					"storage": {Status: services.HealthStatusOK, Latency: 3 * time.Millisecond},
					"rates":   {Status: tc.status, Detail: "timeout"},
				},
				Version: "1.2.3",
			}}))

			rr := httptest.NewRecorder()
			handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			require.Equal(t, tc.want, rr.Code)
			payload := decodeBody(t, rr)
			assert.Equal(t, string(tc.status), payload["status"])
			assert.Equal(t, "1.2.3", payload["version"])
			checks := payload["checks"].(map[string]any)
			assert.EqualValues(t, 3, checks["storage"].(map[string]any)["latencyMs"])
			assert.Equal(t, "timeout", checks["rates"].(map[string]any)["detail"])
		})
	}
}
