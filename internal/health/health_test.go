package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/hfpag/pkg/hfp"
)

func peers(ids ...hfp.PeerID) SessionLister {
	return func() []hfp.PeerID { return ids }
}

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec, body
}

func TestHealthz_ReportsSessionCount(t *testing.T) {
	t.Parallel()

	rec, body := serve(t, New(peers("00:11:22:33:44:55", "66:77:88:99:AA:BB")), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["sessions"])
}

func TestHealthz_WithoutLister(t *testing.T) {
	t.Parallel()

	_, body := serve(t, New(nil), "/healthz")
	assert.NotContains(t, body, "sessions")
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("adapter powered off") }

	tests := []struct {
		name     string
		checkers []Checker
		want     int
		checks   map[string]any
	}{
		{
			name: "no checkers",
			want: http.StatusOK,
		},
		{
			name:     "all pass",
			checkers: []Checker{{Name: "gateway", Check: ok}, {Name: "bluez", Check: ok}},
			want:     http.StatusOK,
			checks:   map[string]any{"gateway": "ok", "bluez": "ok"},
		},
		{
			name:     "one fails",
			checkers: []Checker{{Name: "gateway", Check: ok}, {Name: "bluez", Check: down}},
			want:     http.StatusServiceUnavailable,
			checks:   map[string]any{"gateway": "ok", "bluez": "fail: adapter powered off"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, body := serve(t, New(nil, tt.checkers...), "/readyz")
			assert.Equal(t, tt.want, rec.Code)
			got, _ := body["checks"].(map[string]any)
			if len(tt.checks) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.checks, got)
		})
	}
}

func TestReadyz_CheckGetsDeadline(t *testing.T) {
	t.Parallel()

	h := New(nil, Checker{Name: "gateway", Check: func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	}})
	rec, _ := serve(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessions(t *testing.T) {
	t.Parallel()

	_, body := serve(t, New(peers("00:11:22:33:44:55")), "/sessions")
	assert.Equal(t, []any{"00:11:22:33:44:55"}, body["peers"])

	_, body = serve(t, New(nil), "/sessions")
	assert.Equal(t, []any{}, body["peers"])
}
