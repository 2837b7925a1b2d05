// Package config loads client configuration from YAML.
//
// A minimal file only names the broker:
//
//	broker:
//	  url: http://orion:1026
//	listener:
//	  address: ":8666"
//	  publicURL: http://client.local:8666/notify
//
// Every omitted setting keeps the value from Default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ngsi-go/ngsi/pkg/encoder"
	"github.com/ngsi-go/ngsi/pkg/typemap"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// LoadError reports a configuration file that could not be read or parsed.
type LoadError struct {
	File  string
	Cause error
}

func (e *LoadError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("config: %v", e.Cause)
	}
	return fmt.Sprintf("config: %s: %v", e.File, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// Config is the complete client configuration.
type Config struct {
	Broker      BrokerConfig      `yaml:"broker"`
	Listener    ListenerConfig    `yaml:"listener"`
	Dispatcher  DispatcherConfig  `yaml:"dispatcher"`
	TypeMap     TypeMapConfig     `yaml:"typeMap"`
	Encoding    EncodingConfig    `yaml:"encoding"`
	ProtocolLog ProtocolLogConfig `yaml:"protocolLog"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
}

// BrokerConfig locates the broker and selects the tenant.
type BrokerConfig struct {
	URL         string        `yaml:"url"`
	Service     string        `yaml:"service"`
	ServicePath string        `yaml:"servicePath"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ListenerConfig configures the push receiver.
type ListenerConfig struct {
	Address string `yaml:"address"`
	Path    string `yaml:"path"`

	// PublicURL is the notification URL given to the broker. It must be
	// reachable from the broker, so it cannot be derived from Address.
	PublicURL    string `yaml:"publicURL"`
	MaxBodyBytes int64  `yaml:"maxBodyBytes"`
}

// DispatcherConfig sizes the notification worker pool.
type DispatcherConfig struct {
	Workers           int `yaml:"workers"`
	QueueSize         int `yaml:"queueSize"`
	InstanceTableSize int `yaml:"instanceTableSize"`
}

// TypeMapConfig selects a type map preset and customizes it.
type TypeMapConfig struct {
	Preset     string         `yaml:"preset"`
	ExactMatch bool           `yaml:"exactMatch"`
	Overrides  []TypeOverride `yaml:"overrides"`
}

// TypeOverride maps a Go type name (e.g. "int32", "time.Time") to a wire
// type name, optionally positioned before or after another entry.
type TypeOverride struct {
	Type   string `yaml:"type"`
	Name   string `yaml:"name"`
	Before string `yaml:"before,omitempty"`
	After  string `yaml:"after,omitempty"`
}

// EncodingConfig selects the field/value encoder.
type EncodingConfig struct {
	// Mode is "none" or "forbidden".
	Mode string `yaml:"mode"`
}

// ProtocolLogConfig enables protocol tracing.
type ProtocolLogConfig struct {
	// Path of a CBOR trace file. Empty disables file tracing.
	Path string `yaml:"path"`

	// Console mirrors trace events to the operational log at Debug level.
	Console bool `yaml:"console"`
}

// DiscoveryConfig enables locating the broker over DNS-SD.
type DiscoveryConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Broker: BrokerConfig{
			Timeout: 30 * time.Second,
		},
		Listener: ListenerConfig{
			Address:      ":8666",
			Path:         "/notify",
			MaxBodyBytes: 1 << 20,
		},
		Dispatcher: DispatcherConfig{
			Workers:           4,
			QueueSize:         256,
			InstanceTableSize: 1024,
		},
		TypeMap: TypeMapConfig{
			Preset: typemap.PresetBasic,
		},
		Encoding: EncodingConfig{
			Mode: "none",
		},
		Discovery: DiscoveryConfig{
			Timeout: 5 * time.Second,
		},
	}
}

// Parse decodes YAML on top of Default and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &LoadError{Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses a configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &LoadError{File: path, Cause: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Broker.URL == "" && !c.Discovery.Enabled {
		return fmt.Errorf("%w: broker.url is required unless discovery is enabled", ErrInvalid)
	}
	if c.Broker.URL != "" {
		if err := absoluteURL(c.Broker.URL); err != nil {
			return fmt.Errorf("%w: broker.url: %v", ErrInvalid, err)
		}
	}
	if c.Broker.ServicePath != "" && !strings.HasPrefix(c.Broker.ServicePath, "/") {
		return fmt.Errorf("%w: broker.servicePath must start with /", ErrInvalid)
	}
	if !strings.HasPrefix(c.Listener.Path, "/") {
		return fmt.Errorf("%w: listener.path must start with /", ErrInvalid)
	}
	if c.Listener.PublicURL != "" {
		if err := absoluteURL(c.Listener.PublicURL); err != nil {
			return fmt.Errorf("%w: listener.publicURL: %v", ErrInvalid, err)
		}
	}
	if c.Listener.MaxBodyBytes < 0 {
		return fmt.Errorf("%w: listener.maxBodyBytes must not be negative", ErrInvalid)
	}
	if c.Dispatcher.Workers < 0 || c.Dispatcher.QueueSize < 0 || c.Dispatcher.InstanceTableSize < 0 {
		return fmt.Errorf("%w: dispatcher sizes must not be negative", ErrInvalid)
	}
	if _, err := c.TypeMap.Build(); err != nil {
		return fmt.Errorf("%w: typeMap: %v", ErrInvalid, err)
	}
	if _, err := c.Encoding.Codec(); err != nil {
		return fmt.Errorf("%w: encoding: %v", ErrInvalid, err)
	}
	return nil
}

// Build creates the configured type map.
func (c TypeMapConfig) Build() (*typemap.TypeMap, error) {
	overrides := make([]typemap.Override, 0, len(c.Overrides))
	for _, o := range c.Overrides {
		overrides = append(overrides, typemap.Override{
			Type:   o.Type,
			Name:   o.Name,
			Before: o.Before,
			After:  o.After,
		})
	}
	return typemap.Build(c.Preset, c.ExactMatch, overrides)
}

// Codec returns the configured encoder.
func (c EncodingConfig) Codec() (encoder.Codec, error) {
	return encoder.ForMode(c.Mode)
}

func absoluteURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", s)
	}
	return nil
}
