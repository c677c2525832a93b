package config

import (
	"fmt"
	"strings"
	"time"
)

type KafkaConfig struct {
	// Brokers is a comma-separated list of host:port pairs.
	Brokers      string        `koanf:"brokers"`
	Topic        string        `koanf:"topic"`
	BatchTimeout time.Duration `koanf:"batchtimeout"`
}

// String returns a string representation of the Kafka configuration.
func (c *KafkaConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Kafka ---\n")
	b.WriteString(fmt.Sprintf("  brokers: %s\n", c.Brokers))
	b.WriteString(fmt.Sprintf("  topic: %s\n", c.Topic))
	b.WriteString(fmt.Sprintf("  batchtimeout: %s\n", c.BatchTimeout))
	return b.String()
}

func (c *KafkaConfig) Validate() error {
	if len(c.BrokerList()) == 0 {
		return fmt.Errorf("kafka brokers are not configured")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka topic is not configured")
	}
	if c.BatchTimeout < 0 {
		return fmt.Errorf("kafka batch timeout must not be negative")
	}
	return nil
}

// BrokerList splits Brokers into trimmed, non-empty addresses.
func (c *KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, broker := range strings.Split(c.Brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
