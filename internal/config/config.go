package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
	IdleTimeoutMS  int    `yaml:"idle_timeout_ms"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
}

type LogFile struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`        // e.g. "logs/throttlite.log"
	MaxSizeMB  int    `yaml:"max_size_mb"` // rotate after this many MB
	MaxBackups int    `yaml:"max_backups"` // rotated files to keep
}

type Observability struct {
	LogLevel       string  `yaml:"log_level"`       // "debug","info","warn","error"
	PrometheusPath string  `yaml:"prometheus_path"` // e.g. "/metrics"
	LogFile        LogFile `yaml:"log_file"`
}

type Throttle struct {
	DefaultWindow    int64 `yaml:"default_window"`     // seconds between accepted events per key
	CleanupIntervalS int   `yaml:"cleanup_interval_s"` // janitor tick, 0 disables
	MaxKeys          int   `yaml:"max_keys"`           // janitor sweeps above this
	RetentionS       int64 `yaml:"retention_s"`        // janitor drops keys idle longer than this
}

type Limits struct {
	ProtectAPI bool  `yaml:"protect_api"` // throttle API callers per key ID
	APIWindow  int64 `yaml:"api_window"`  // seconds between calls per key ID
}

type APIKey struct {
	ID     string `yaml:"id"`
	Secret string `yaml:"secret"`
}

type Auth struct {
	Header string   `yaml:"header"`
	Keys   []APIKey `yaml:"keys"`
}

type Root struct {
	Server        Server        `yaml:"server"`
	Observability Observability `yaml:"observability"`
	Auth          Auth          `yaml:"auth"`
	Throttle      Throttle      `yaml:"throttle"`
	Limits        Limits        `yaml:"limits"`
}

func (s Server) ReadTimeout() time.Duration {
	if s.ReadTimeoutMS == 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

func (s Server) WriteTimeout() time.Duration {
	if s.WriteTimeoutMS == 0 {
		return 10 * time.Second
	}
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

func (s Server) IdleTimeout() time.Duration {
	if s.IdleTimeoutMS == 0 {
		return 60 * time.Second
	}
	return time.Duration(s.IdleTimeoutMS) * time.Millisecond
}

func (s Server) MaxBody() int64 {
	if s.MaxBodyBytes == 0 {
		return 1 << 20
	}
	return s.MaxBodyBytes
} // default 1MB, decide payloads are tiny

func (t Throttle) CleanupInterval() time.Duration {
	return time.Duration(t.CleanupIntervalS) * time.Second
}

func Load(path string) (*Root, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Root
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/metrics"
	}
	if cfg.Observability.LogFile.Path == "" {
		cfg.Observability.LogFile.Path = "logs/throttlite.log"
	}
	if cfg.Observability.LogFile.MaxSizeMB <= 0 {
		cfg.Observability.LogFile.MaxSizeMB = 10
	}
	if cfg.Observability.LogFile.MaxBackups <= 0 {
		cfg.Observability.LogFile.MaxBackups = 5
	}
	if cfg.Auth.Header == "" {
		cfg.Auth.Header = "X-API-Key"
	}
	if cfg.Throttle.DefaultWindow == 0 {
		cfg.Throttle.DefaultWindow = 10
	}
	if cfg.Throttle.MaxKeys <= 0 {
		cfg.Throttle.MaxKeys = 1_000_000
	}
	if cfg.Throttle.RetentionS <= 0 {
		cfg.Throttle.RetentionS = 3600
	}
	if cfg.Limits.APIWindow <= 0 {
		cfg.Limits.APIWindow = 1
	}

	return &cfg, nil
}
