package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/hfpag/internal/config"
	"github.com/MrWong99/hfpag/internal/gateway"
	"github.com/MrWong99/hfpag/internal/health"
)

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	}
	return rec, body
}

func TestAdminHandler_Readiness(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.GatewayConfig{})
	h := f.gw.AdminHandler()

	rec, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "not running yet")
	assert.Equal(t, "fail", body["status"])

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- f.gw.Run(ctx, nil) }()

	require.Eventually(t, func() bool {
		rec, _ := get(t, h, "/readyz")
		return rec.Code == http.StatusOK
	}, waitFor, tick)

	cancel()
	require.NoError(t, <-done)
	rec, body = get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	checks, _ := body["checks"].(map[string]any)
	assert.Equal(t, "fail: "+gateway.ErrClosed.Error(), checks["gateway"])
}

func TestAdminHandler_ExtraCheckers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.GatewayConfig{})
	h := f.gw.AdminHandler(health.Checker{
		Name:  "bluez",
		Check: func(context.Context) error { return errors.New("adapter powered off") },
	})

	_, body := get(t, h, "/readyz")
	checks, _ := body["checks"].(map[string]any)
	assert.Equal(t, "fail: adapter powered off", checks["bluez"])
	assert.Contains(t, checks, "gateway")
}

func TestAdminHandler_SessionsAndMetrics(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.GatewayConfig{})
	f.connect(t, peerA)
	h := f.gw.AdminHandler()

	_, body := get(t, h, "/healthz")
	assert.Equal(t, float64(1), body["sessions"])

	_, body = get(t, h, "/sessions")
	assert.Equal(t, []any{string(peerA)}, body["peers"])

	rec, _ := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
