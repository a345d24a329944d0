package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/mockresolver/pkg/mock"
	"github.com/getmockd/mockresolver/pkg/pushback"
	"github.com/getmockd/mockresolver/pkg/template"
)

// CurrentVersion is the collection format version written by SaveToFile.
const CurrentVersion = "1"

// Collection is a set of mock endpoints loaded from one or more files.
type Collection struct {
	// Version is the collection format version
	Version string `json:"version" yaml:"version"`

	// Name is a human-readable name
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Endpoints are served in order; earlier endpoints win routing ties
	Endpoints []*mock.Endpoint `json:"endpoints" yaml:"endpoints"`
}

// assignOrder fixes ConfiguredOrder on every candidate.
func (c *Collection) assignOrder() {
	for _, ep := range c.Endpoints {
		if ep != nil {
			ep.AssignOrder()
		}
	}
}

// Environment variables that override ServerConfig.
const (
	EnvPort      = "MOCKRESOLVER_PORT"
	EnvLogLevel  = "MOCKRESOLVER_LOG_LEVEL"
	EnvLogFormat = "MOCKRESOLVER_LOG_FORMAT"
)

// ServerConfig holds settings for the serve command.
type ServerConfig struct {
	// Host is the interface to bind (default: all interfaces)
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Port is the HTTP port (default: 4280)
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Mocks is a collection file or a directory of collection files
	Mocks string `json:"mocks,omitempty" yaml:"mocks,omitempty"`

	// Watch reloads Mocks when files change
	Watch bool `json:"watch,omitempty" yaml:"watch,omitempty"`

	// WatchDebounce is the quiet period before a reload (default: 300ms)
	WatchDebounce time.Duration `json:"watchDebounce,omitempty" yaml:"watchDebounce,omitempty"`

	// MaxBodySize caps inbound request bodies in bytes (default: 10MB)
	MaxBodySize int64 `json:"maxBodySize,omitempty" yaml:"maxBodySize,omitempty"`

	// ReadTimeout and WriteTimeout bound each HTTP exchange (default: 30s)
	ReadTimeout  time.Duration `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	WriteTimeout time.Duration `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`

	// MaxIterations caps repeat.count and batch renders (default: 10000)
	MaxIterations int `json:"maxIterations,omitempty" yaml:"maxIterations,omitempty"`

	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	Pushback pushback.Config `json:"pushback,omitempty" yaml:"pushback,omitempty"`
}

// LogConfig configures logging for the serve command.
type LogConfig struct {
	// Level is debug, info, warn or error (default: info)
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json (default: text)
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// File additionally receives every record as JSON
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Server defaults.
const (
	DefaultPort            = 4280
	DefaultMaxBodySize     = 10 << 20
	DefaultTimeout         = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultWatchDebounce   = 300 * time.Millisecond
)

// DefaultServerConfig returns a ServerConfig with every default applied.
func DefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero fields with defaults.
func (c *ServerConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = DefaultWatchDebounce
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = template.DefaultMaxIterations
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	d := pushback.DefaultConfig()
	if c.Pushback.Workers <= 0 {
		c.Pushback.Workers = d.Workers
	}
	if c.Pushback.QueueSize <= 0 {
		c.Pushback.QueueSize = d.QueueSize
	}
	if c.Pushback.Burst <= 0 {
		c.Pushback.Burst = d.Burst
	}
	if c.Pushback.Timeout <= 0 {
		c.Pushback.Timeout = d.Timeout
	}
	if c.Pushback.ShutdownGrace <= 0 {
		c.Pushback.ShutdownGrace = d.ShutdownGrace
	}
}

// ApplyEnv overrides fields from MOCKRESOLVER_* environment variables.
// lookup is usually os.LookupEnv.
func (c *ServerConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		c.Port = port
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Log.Format = v
	}
	return nil
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks the server settings.
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Pushback.RatePerSecond < 0 {
		return errors.New("pushback.ratePerSecond must not be negative")
	}
	if c.Watch && c.Mocks == "" {
		return errors.New("watch requires a mocks path")
	}
	return nil
}
