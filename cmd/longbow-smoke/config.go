package main

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/23skdu/longbow-smoke/internal/smoke"
)

const envPrefix = "LONGBOW_SMOKE"

// Config validation errors
var (
	ErrInvalidAddr          = errors.New("addr cannot be empty unless embedded is set")
	ErrInvalidNB            = errors.New("nb must be positive")
	ErrInvalidDim           = errors.New("dim must be positive")
	ErrInvalidTimeout       = errors.New("timeout must be positive")
	ErrInvalidLogFormat     = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel      = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidKeepAliveTime = errors.New("keepalive_time must be positive")
)

// Config is the command configuration. Every field can be set from the
// environment with the LONGBOW_SMOKE_ prefix; flags override it.
type Config struct {
	Addr     string `envconfig:"ADDR" default:"127.0.0.1:3000"`
	Embedded bool   `envconfig:"EMBEDDED" default:"false"`

	NB            int           `envconfig:"NB" default:"3000"`
	Dim           int           `envconfig:"DIM" default:"128"`
	Seed          int64         `envconfig:"SEED" default:"0"`
	Timeout       time.Duration `envconfig:"TIMEOUT" default:"2m"`
	Only          []string      `envconfig:"ONLY"`
	DumpDir       string        `envconfig:"DUMP_DIR"`
	DataFrameFile string        `envconfig:"DATAFRAME_FILE"`

	MetricsAddr string `envconfig:"METRICS_ADDR"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	GRPCMaxRecvMsgSize        int           `envconfig:"GRPC_MAX_RECV_MSG_SIZE" default:"104857600"`
	GRPCMaxSendMsgSize        int           `envconfig:"GRPC_MAX_SEND_MSG_SIZE" default:"104857600"`
	GRPCInitialWindowSize     int32         `envconfig:"GRPC_INITIAL_WINDOW_SIZE" default:"1048576"`
	GRPCInitialConnWindowSize int32         `envconfig:"GRPC_INITIAL_CONN_WINDOW_SIZE" default:"1048576"`
	KeepAliveTime             time.Duration `envconfig:"KEEPALIVE_TIME" default:"30s"`
	KeepAliveTimeout          time.Duration `envconfig:"KEEPALIVE_TIMEOUT" default:"10s"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Addr:                      "127.0.0.1:3000",
		NB:                        smoke.DefaultNB,
		Dim:                       smoke.DefaultDim,
		Timeout:                   smoke.DefaultTimeout,
		LogFormat:                 "json",
		LogLevel:                  "info",
		GRPCMaxRecvMsgSize:        104857600, // 100MB
		GRPCMaxSendMsgSize:        104857600,
		GRPCInitialWindowSize:     1 << 20,
		GRPCInitialConnWindowSize: 1 << 20,
		KeepAliveTime:             30 * time.Second,
		KeepAliveTimeout:          10 * time.Second,
	}
}

// LoadConfig reads envFile, when it exists, into the environment and then
// processes the LONGBOW_SMOKE_ variables.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.Addr == "" && !cfg.Embedded {
		return ErrInvalidAddr
	}
	if cfg.NB <= 0 {
		return ErrInvalidNB
	}
	if cfg.Dim <= 0 {
		return ErrInvalidDim
	}
	if cfg.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	if cfg.KeepAliveTime <= 0 {
		return ErrInvalidKeepAliveTime
	}
	if err := cfg.ValidateGRPCConfig(); err != nil {
		return err
	}
	return cfg.SmokeConfig().Validate()
}

// SmokeConfig returns the run settings handed to the smoke suite.
func (c *Config) SmokeConfig() smoke.Config {
	return smoke.Config{
		NB:            c.NB,
		Dim:           c.Dim,
		Seed:          c.Seed,
		Timeout:       c.Timeout,
		Only:          c.Only,
		DataFrameFile: c.DataFrameFile,
		DumpDir:       c.DumpDir,
	}
}

// splitList parses a comma separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
