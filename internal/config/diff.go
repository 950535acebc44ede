package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// BehaviorChanged is true when the connection-behavior policy changed.
	// Live sessions pick it up immediately.
	BehaviorChanged bool
	Autoconnect     bool

	// SessionDefaultsChanged is true when features, codecs, ring interval or
	// queue size changed. These only apply to sessions created afterwards.
	SessionDefaultsChanged bool
}

// Changed reports whether d carries any change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.BehaviorChanged || d.SessionDefaultsChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Connection behavior
	if old.Gateway.Autoconnect != new.Gateway.Autoconnect {
		d.BehaviorChanged = true
	}
	d.Autoconnect = new.Gateway.Autoconnect

	// Session defaults
	og, ng := old.Gateway, new.Gateway
	if og.Features != ng.Features ||
		og.WideBandSpeech != ng.WideBandSpeech ||
		og.SuperWideBandSpeech != ng.SuperWideBandSpeech ||
		og.RingInterval != ng.RingInterval ||
		og.RequestQueue != ng.RequestQueue ||
		og.AutoconnectMaxBackoff != ng.AutoconnectMaxBackoff ||
		og.CallManagerBreaker != ng.CallManagerBreaker {
		d.SessionDefaultsChanged = true
	}

	return d
}
