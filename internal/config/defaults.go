package config

import (
	"time"

	"llamad/internal/common/fsutil"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultAddr         = ":8080"
	DefaultLlamaBin     = "main"
	DefaultModelsFile   = "data/models.json"
	DefaultMarker       = ">"
	DefaultDelimiter    = "/"
	DefaultStopGrace    = 5 * time.Second
	DefaultMaxBodyBytes = 1 << 20
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"
)

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LlamaBin == "" {
		c.LlamaBin = DefaultLlamaBin
	}
	if c.ModelsFile == "" {
		c.ModelsFile = DefaultModelsFile
	}
	if c.Marker == "" {
		c.Marker = DefaultMarker
	}
	if c.Delimiter == "" {
		c.Delimiter = DefaultDelimiter
	}
	if c.StopGraceSeconds <= 0 {
		c.StopGraceSeconds = int(DefaultStopGrace / time.Second)
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
}

// UseTLS reports whether both certificate and key are configured.
func (c Config) UseTLS() bool { return c.TLSCertFile != "" && c.TLSKeyFile != "" }

// RequestTimeout returns the watchdog duration (0 when disabled).
func (c Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// StopGrace returns how long unload waits after the interrupt before killing.
func (c Config) StopGrace() time.Duration {
	return time.Duration(c.StopGraceSeconds) * time.Second
}

// ExpandPaths resolves a leading "~" in every path-valued field.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.LlamaBin, &c.ModelsFile, &c.LLMStorage, &c.AuthKeysFile, &c.StaticDir, &c.TLSCertFile, &c.TLSKeyFile, &c.TLSCAFile} {
		v, err := fsutil.ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}
