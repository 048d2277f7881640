package supervisor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"llamad/internal/diag"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultMarker    = ">"
	DefaultDelimiter = "/"
	defaultStopGrace = 5 * time.Second
	defaultLlamaBin  = "main"
)

// Config holds Supervisor tunables. Zero values fall back to package defaults.
type Config struct {
	LlamaBin   string
	ModelsFile string
	// LLMStorage is the model directory echoed in the loading log.
	LLMStorage string
	// Marker in a stdout chunk ends the current response.
	Marker string
	// Delimiter replaces newlines in rendered prompts.
	Delimiter string
	// RequestTimeout > 0 enables the per-request watchdog.
	RequestTimeout time.Duration
	// StopGrace is how long an interrupted process has before it is killed.
	StopGrace time.Duration

	Spawn      SpawnFunc
	Logger     *zerolog.Logger
	Diag       *diag.Logger
	Publisher  EventPublisher
	Registerer prometheus.Registerer
}

func (c Config) withDefaults() Config {
	if c.LlamaBin == "" {
		c.LlamaBin = defaultLlamaBin
	}
	if c.Marker == "" {
		c.Marker = DefaultMarker
	}
	if c.Delimiter == "" {
		c.Delimiter = DefaultDelimiter
	}
	if c.StopGrace <= 0 {
		c.StopGrace = defaultStopGrace
	}
	if c.Spawn == nil {
		c.Spawn = ExecSpawn
	}
	if c.Logger == nil {
		l := zerolog.Nop()
		c.Logger = &l
	}
	if c.Diag == nil {
		c.Diag = diag.New(*c.Logger, c.LLMStorage)
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	return c
}
