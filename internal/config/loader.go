package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable understood by FromEnv.
const EnvPrefix = "LLAMAD_"

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr       string `json:"addr" yaml:"addr" toml:"addr" env:"ADDR"`
	LlamaBin   string `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin" env:"LLAMA_BIN"`
	ModelsFile string `json:"models_file" yaml:"models_file" toml:"models_file" env:"MODELS_FILE"`
	// LLMStorage is the directory llama.cpp echoes model paths from; used to pick the
	// model name out of the loading log.
	LLMStorage   string `json:"llm_storage" yaml:"llm_storage" toml:"llm_storage" env:"LLM_STORAGE"`
	AuthKeysFile string `json:"auth_keys_file" yaml:"auth_keys_file" toml:"auth_keys_file" env:"AUTH_KEYS_FILE"`
	StaticDir    string `json:"static_dir" yaml:"static_dir" toml:"static_dir" env:"STATIC_DIR"`
	TLSCertFile  string `json:"tls_cert_file" yaml:"tls_cert_file" toml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile   string `json:"tls_key_file" yaml:"tls_key_file" toml:"tls_key_file" env:"TLS_KEY_FILE"`
	// TLSCAFile holds intermediate certificates sent after the leaf.
	TLSCAFile string `json:"tls_ca_file" yaml:"tls_ca_file" toml:"tls_ca_file" env:"TLS_CA_FILE"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format" env:"LOG_FORMAT"`

	Marker    string `json:"marker" yaml:"marker" toml:"marker" env:"MARKER"`
	Delimiter string `json:"delimiter" yaml:"delimiter" toml:"delimiter" env:"DELIMITER"`
	// RequestTimeoutSeconds arms the per-request watchdog; 0 disables it.
	RequestTimeoutSeconds int `json:"request_timeout_seconds" yaml:"request_timeout_seconds" toml:"request_timeout_seconds" env:"REQUEST_TIMEOUT_SECONDS"`
	StopGraceSeconds      int `json:"stop_grace_seconds" yaml:"stop_grace_seconds" toml:"stop_grace_seconds" env:"STOP_GRACE_SECONDS"`

	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled" env:"CORS_ENABLED"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins" env:"CORS_ORIGINS"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := Decode(path, b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode unmarshals b into v using the decoder picked by the extension of name.
func Decode(name string, b []byte, v any) error {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, v)
	case ".json":
		return json.Unmarshal(b, v)
	case ".toml":
		return toml.Unmarshal(b, v)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
}

// FromEnv overlays LLAMAD_* environment variables onto cfg. Unset variables leave
// the corresponding field untouched.
func FromEnv(cfg *Config) error {
	return env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix})
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}
