package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/hfpag/internal/config"
	"github.com/MrWong99/hfpag/pkg/hfp"
)

const fullYAML = `
server:
  log_level: debug
  admin_addr: 127.0.0.1:9090
gateway:
  features:
    three_way_calling: true
    ec_nr: true
    in_band_ringtone: true
    codec_negotiation: true
    hf_indicators: true
    esco_s4: true
  wide_band_speech: true
  autoconnect: true
  ring_interval: 3s
  request_queue: 8
  call_manager_breaker:
    max_failures: 2
    reset_timeout: 10s
audio:
  backend:
    name: loopback
  pauser:
    name: none
`

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	require.NoError(t, err)

	assert.Equal(t, config.LogDebug, cfg.Server.LogLevel)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.AdminAddr)

	g := cfg.Gateway
	assert.Equal(t, 3*time.Second, g.RingInterval)
	assert.Equal(t, 8, g.RequestQueue)
	assert.True(t, g.Autoconnect)
	assert.Equal(t, 2, g.CallManagerBreaker.MaxFailures)
	assert.Equal(t, 10*time.Second, g.CallManagerBreaker.ResetTimeout)
	assert.Equal(t, hfp.AgFeatureThreeWayCalling|hfp.AgFeatureECNR|hfp.AgFeatureInBandRing|
		hfp.AgFeatureCodecNegotiation|hfp.AgFeatureHFIndicators|hfp.AgFeatureESCOS4, g.Features.Mask())
	assert.Equal(t, []hfp.CodecID{hfp.CodecCVSD, hfp.CodecMSBC}, g.Codecs())
	assert.Equal(t, "loopback", cfg.Audio.Backend.Name)
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, config.LogInfo, cfg.Server.LogLevel)
	assert.Empty(t, cfg.Server.AdminAddr)
	assert.Equal(t, config.DefaultRingInterval, cfg.Gateway.RingInterval)
	assert.Equal(t, config.DefaultRequestQueue, cfg.Gateway.RequestQueue)
	assert.Equal(t, config.DefaultBreakerMaxFailures, cfg.Gateway.CallManagerBreaker.MaxFailures)
	assert.Equal(t, []hfp.CodecID{hfp.CodecCVSD}, cfg.Gateway.Codecs())
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("gateway:\n  autoconect: true\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{
			name:    "invalid log level",
			yaml:    "server:\n  log_level: loud\n",
			wantErr: []string{"server.log_level"},
		},
		{
			name:    "negative ring interval",
			yaml:    "gateway:\n  ring_interval: -1s\n",
			wantErr: []string{"gateway.ring_interval"},
		},
		{
			name:    "negative queue",
			yaml:    "gateway:\n  request_queue: -4\n",
			wantErr: []string{"gateway.request_queue"},
		},
		{
			name:    "wide band without codec negotiation",
			yaml:    "gateway:\n  wide_band_speech: true\n",
			wantErr: []string{"codec_negotiation"},
		},
		{
			name:    "super wide band without wide band",
			yaml:    "gateway:\n  super_wide_band_speech: true\n  features:\n    codec_negotiation: true\n",
			wantErr: []string{"super_wide_band_speech"},
		},
		{
			name:    "multiple errors are joined",
			yaml:    "server:\n  log_level: loud\ngateway:\n  request_queue: -1\n",
			wantErr: []string{"server.log_level", "gateway.request_queue"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			require.Error(t, err)
			for _, want := range tc.wantErr {
				assert.ErrorContains(t, err, want)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hfpag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullYAML), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Gateway.WideBandSpeech)
}
