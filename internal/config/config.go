package config

import (
	"fmt"
	"strings"

	"github.com/abgdnv/catalog/pkg/config"
	"github.com/abgdnv/catalog/pkg/config/configloader"
)

// ServiceName names the service in telemetry and prefixes its environment variables (CATALOG_).
const ServiceName = "catalog"

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	GRPC       config.GrpcServerConfig `koanf:"grpc"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	Events     config.EventsConfig     `koanf:"events"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
}

// Load reads config.yaml, .env and CATALOG_* environment variables.
func Load() (*Config, error) {
	return configloader.Load[*Config](ServiceName)
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.GRPC.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	b.WriteString(c.Events.String())
	b.WriteString(c.Telemetry.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	validators := []struct {
		section string
		v       configloader.Validator
	}{
		{"server", &c.HTTPServer},
		{"grpc", &c.GRPC},
		{"log", &c.Log},
		{"pprof", &c.PProf},
		{"shutdown", &c.Shutdown},
		{"events", &c.Events},
		{"telemetry", &c.Telemetry},
	}
	for _, s := range validators {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.section, err)
		}
	}
	return nil
}
