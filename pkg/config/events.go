package config

import (
	"fmt"
	"strings"
	"time"
)

// Supported event drivers.
const (
	EventsDriverNone  = "none"
	EventsDriverNATS  = "nats"
	EventsDriverKafka = "kafka"
)

type EventsConfig struct {
	Driver         string        `koanf:"driver"`
	PublishTimeout time.Duration `koanf:"publishtimeout"`
	Nats           NATSConfig    `koanf:"nats"`
	Kafka          KafkaConfig   `koanf:"kafka"`
}

// String returns a string representation of the events configuration.
func (c *EventsConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Events ---\n")
	b.WriteString(fmt.Sprintf("  driver: %s\n", c.Driver))
	b.WriteString(fmt.Sprintf("  publishtimeout: %s\n", c.PublishTimeout))
	switch c.Driver {
	case EventsDriverNATS:
		b.WriteString(c.Nats.String())
	case EventsDriverKafka:
		b.WriteString(c.Kafka.String())
	}
	return b.String()
}

func (c *EventsConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = EventsDriverNone
	}
	switch c.Driver {
	case EventsDriverNone:
		return nil
	case EventsDriverNATS:
		if err := c.Nats.Validate(); err != nil {
			return err
		}
	case EventsDriverKafka:
		if err := c.Kafka.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown events driver: %q", c.Driver)
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("events publish timeout must be greater than 0")
	}
	return nil
}
