package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/cakestore-backend/pkg/config"
	"github.com/angelmondragon/cakestore-backend/pkg/kafka"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/pubsub"
)

const (
	sinkPubSub = "pubsub"
	sinkKafka  = "kafka"
)

// outboundMessage is the transport-neutral form of a published outbox row.
type outboundMessage struct {
	Key        string
	Data       []byte
	Attributes map[string]string
}

type eventSink interface {
	Name() string
	Ping(context.Context) error
	Publish(ctx context.Context, topic string, msg outboundMessage) error
	Close() error
}

// openSink connects the configured transport and returns it with the topic events go to.
func openSink(ctx context.Context, cfg *config.Config, logg *logger.Logger) (eventSink, string, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Eventing.Sink)) {
	case "", sinkPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, "", err
		}
		return &pubsubSink{client: client}, cfg.PubSub.OrdersTopic, nil
	case sinkKafka:
		producer, err := kafka.NewProducer(ctx, cfg.Kafka, logg)
		if err != nil {
			return nil, "", err
		}
		return &kafkaSink{producer: producer}, cfg.Kafka.OrdersTopic, nil
	default:
		return nil, "", fmt.Errorf("unknown eventing sink %q", cfg.Eventing.Sink)
	}
}

type pubsubSink struct {
	client *pubsub.Client
}

func (s *pubsubSink) Name() string                   { return sinkPubSub }
func (s *pubsubSink) Ping(ctx context.Context) error { return s.client.Ping(ctx) }
func (s *pubsubSink) Close() error                   { return s.client.Close() }

func (s *pubsubSink) Publish(ctx context.Context, topic string, msg outboundMessage) error {
	_, err := s.client.Publish(ctx, topic, msg.Key, msg.Data, msg.Attributes)
	return err
}

type kafkaSink struct {
	producer *kafka.Producer
}

func (s *kafkaSink) Name() string                   { return sinkKafka }
func (s *kafkaSink) Ping(ctx context.Context) error { return s.producer.Ping(ctx) }
func (s *kafkaSink) Close() error                   { return s.producer.Close() }

func (s *kafkaSink) Publish(ctx context.Context, topic string, msg outboundMessage) error {
	return s.producer.Publish(ctx, topic, msg.Key, msg.Data, msg.Attributes)
}
