package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidBackendNames lists known implementation names per kind.
// Used by [Validate] to warn about unrecognised names.
var ValidBackendNames = map[string][]string{
	"backend": {"loopback", "pipewire", "pulseaudio"},
	"pauser":  {"none", "mpris"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Gateway
	g := cfg.Gateway
	if g.RingInterval < 0 {
		errs = append(errs, fmt.Errorf("gateway.ring_interval %s must not be negative", g.RingInterval))
	}
	if g.RequestQueue < 0 {
		errs = append(errs, fmt.Errorf("gateway.request_queue %d must not be negative", g.RequestQueue))
	}
	if g.AutoconnectMaxBackoff < 0 {
		errs = append(errs, fmt.Errorf("gateway.autoconnect_max_backoff %s must not be negative", g.AutoconnectMaxBackoff))
	}
	if g.CallManagerBreaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("gateway.call_manager_breaker.max_failures %d must not be negative", g.CallManagerBreaker.MaxFailures))
	}
	if g.CallManagerBreaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("gateway.call_manager_breaker.reset_timeout %s must not be negative", g.CallManagerBreaker.ResetTimeout))
	}
	if g.SuperWideBandSpeech && !g.WideBandSpeech {
		errs = append(errs, errors.New("gateway.super_wide_band_speech requires gateway.wide_band_speech"))
	}
	if g.WideBandSpeech && !g.Features.CodecNegotiation {
		errs = append(errs, errors.New("gateway.wide_band_speech requires gateway.features.codec_negotiation"))
	}
	if g.Features.ESCOS4 && !g.Features.CodecNegotiation {
		slog.Warn("gateway.features.esco_s4 without codec_negotiation; HF devices older than HFP 1.7 may ignore it")
	}

	// Audio
	validateBackendName("backend", cfg.Audio.Backend.Name)
	validateBackendName("pauser", cfg.Audio.Pauser.Name)

	return errors.Join(errs...)
}

// validateBackendName logs a warning if name is non-empty and not found in
// the [ValidBackendNames] list for the given kind.
func validateBackendName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidBackendNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown audio implementation name, may be a typo or third-party plugin",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
