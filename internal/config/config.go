// Package config provides the configuration schema, loader, watcher and
// backend registry for the hfpag audio gateway.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/hfpag/pkg/hfp"
)

// LogLevel controls log verbosity for the gateway.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l onto a slog level. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default values applied by [Config.ApplyDefaults].
const (
	DefaultRingInterval          = 5 * time.Second
	DefaultRequestQueue          = 32
	DefaultBreakerMaxFailures    = 5
	DefaultBreakerResetTimeout   = 30 * time.Second
	DefaultAutoconnectMaxBackoff = time.Minute
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gateway GatewayConfig `yaml:"gateway"`
	Audio   AudioConfig   `yaml:"audio"`
}

// ServerConfig holds process-wide settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// AdminAddr is the listen address of the health and metrics endpoints
	// (e.g. "127.0.0.1:9090"). Empty disables them.
	AdminAddr string `yaml:"admin_addr"`
}

// GatewayConfig holds the settings every peer session is created with.
type GatewayConfig struct {
	// Features selects the locally supported Audio Gateway features.
	Features FeaturesConfig `yaml:"features"`

	// WideBandSpeech offers mSBC in addition to CVSD.
	WideBandSpeech bool `yaml:"wide_band_speech"`

	// SuperWideBandSpeech additionally offers LC3-SWB. Requires
	// WideBandSpeech.
	SuperWideBandSpeech bool `yaml:"super_wide_band_speech"`

	// Autoconnect dials a discovered HF when no service level connection
	// exists.
	Autoconnect bool `yaml:"autoconnect"`

	// AutoconnectMaxBackoff caps the delay between autoconnect attempts.
	AutoconnectMaxBackoff time.Duration `yaml:"autoconnect_max_backoff"`

	// RingInterval is the period between RING alerts for an incoming call.
	RingInterval time.Duration `yaml:"ring_interval"`

	// RequestQueue is the capacity of each session's inbound request queue.
	RequestQueue int `yaml:"request_queue"`

	// CallManagerBreaker guards call-manager operations.
	CallManagerBreaker BreakerConfig `yaml:"call_manager_breaker"`
}

// FeaturesConfig toggles the individual Audio Gateway features.
type FeaturesConfig struct {
	ThreeWayCalling     bool `yaml:"three_way_calling"`
	ECNR                bool `yaml:"ec_nr"`
	VoiceRecognition    bool `yaml:"voice_recognition"`
	InBandRingtone      bool `yaml:"in_band_ringtone"`
	RejectCall          bool `yaml:"reject_call"`
	EnhancedCallStatus  bool `yaml:"enhanced_call_status"`
	EnhancedCallControl bool `yaml:"enhanced_call_control"`
	ExtendedErrors      bool `yaml:"extended_errors"`
	CodecNegotiation    bool `yaml:"codec_negotiation"`
	HFIndicators        bool `yaml:"hf_indicators"`
	ESCOS4              bool `yaml:"esco_s4"`
}

// Mask converts f into the feature bitmask reported with +BRSF.
func (f FeaturesConfig) Mask() hfp.AgFeatures {
	var m hfp.AgFeatures
	set := func(on bool, bit hfp.AgFeatures) {
		if on {
			m |= bit
		}
	}
	set(f.ThreeWayCalling, hfp.AgFeatureThreeWayCalling)
	set(f.ECNR, hfp.AgFeatureECNR)
	set(f.VoiceRecognition, hfp.AgFeatureVoiceRecognition)
	set(f.InBandRingtone, hfp.AgFeatureInBandRing)
	set(f.RejectCall, hfp.AgFeatureRejectCall)
	set(f.EnhancedCallStatus, hfp.AgFeatureEnhancedCallStatus)
	set(f.EnhancedCallControl, hfp.AgFeatureEnhancedCallControl)
	set(f.ExtendedErrors, hfp.AgFeatureExtendedErrors)
	set(f.CodecNegotiation, hfp.AgFeatureCodecNegotiation)
	set(f.HFIndicators, hfp.AgFeatureHFIndicators)
	set(f.ESCOS4, hfp.AgFeatureESCOS4)
	return m
}

// Codecs returns the codecs the gateway offers, baseline first.
func (g GatewayConfig) Codecs() []hfp.CodecID {
	codecs := []hfp.CodecID{hfp.CodecCVSD}
	if g.WideBandSpeech {
		codecs = append(codecs, hfp.CodecMSBC)
		if g.SuperWideBandSpeech {
			codecs = append(codecs, hfp.CodecLC3SWB)
		}
	}
	return codecs
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that open the circuit.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long the circuit stays open before probing.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// AudioConfig selects the audio backend and competing-source pauser.
type AudioConfig struct {
	Backend BackendEntry `yaml:"backend"`
	Pauser  BackendEntry `yaml:"pauser"`
}

// BackendEntry names a registered implementation. The Name field is used to
// look up the constructor in the [Registry].
type BackendEntry struct {
	// Name selects the registered implementation.
	Name string `yaml:"name"`

	// Options holds implementation-specific values.
	Options map[string]any `yaml:"options"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	g := &c.Gateway
	if g.RingInterval == 0 {
		g.RingInterval = DefaultRingInterval
	}
	if g.RequestQueue == 0 {
		g.RequestQueue = DefaultRequestQueue
	}
	if g.AutoconnectMaxBackoff == 0 {
		g.AutoconnectMaxBackoff = DefaultAutoconnectMaxBackoff
	}
	if g.CallManagerBreaker.MaxFailures == 0 {
		g.CallManagerBreaker.MaxFailures = DefaultBreakerMaxFailures
	}
	if g.CallManagerBreaker.ResetTimeout == 0 {
		g.CallManagerBreaker.ResetTimeout = DefaultBreakerResetTimeout
	}
}
