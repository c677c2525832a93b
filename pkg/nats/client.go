package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/abgdnv/catalog/pkg/messaging"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

func NewClient(url string, timeout time.Duration) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Timeout(timeout), nats.Name("catalog"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

func NewJetStreamContext(nc *nats.Conn) (jetstream.JetStream, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return js, nil
}

type streamCreator interface {
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// EnsureStream creates the named stream capturing every product subject, or updates it in place.
func EnsureStream(ctx context.Context, js streamCreator, name string) error {
	_, err := js.CreateOrUpdateStream(ctx, StreamConfig(name))
	if err != nil {
		return fmt.Errorf("failed to ensure stream %s: %w", name, err)
	}
	return nil
}

// StreamConfig describes the product events stream.
func StreamConfig(name string) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name: name,
		Subjects: []string{
			messaging.ProductsCreatedSubject,
			messaging.ProductsUpdatedSubject,
			messaging.ProductsDeletedSubject,
		},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
	}
}
