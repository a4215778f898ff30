// Package kafka publishes outbox events to Kafka as an alternative to Pub/Sub.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/cakestore-backend/pkg/config"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
)

var errNoBrokers = errors.New("kafka brokers are required")

// Producer writes synchronously so the outbox row is only marked published after every
// in-sync replica has the message.
type Producer struct {
	writer  *kafka.Writer
	brokers []string
}

func NewProducer(ctx context.Context, cfg config.KafkaConfig, logg *logger.Logger) (*Producer, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}

	p := &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		brokers: brokers,
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "brokers", strings.Join(brokers, ",")), "kafka producer initialized")
	}
	return p, nil
}

// Publish writes one message; the key pins every event of an aggregate to one partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka producer not initialized")
	}
	return p.writer.WriteMessages(ctx, NewMessage(topic, key, value, headers))
}

// NewMessage builds a keyed message carrying headers.
func NewMessage(topic, key string, value []byte, headers map[string]string) kafka.Message {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return msg
}

// Ping dials the first reachable broker.
func (p *Producer) Ping(ctx context.Context) error {
	if p == nil {
		return errors.New("kafka producer not initialized")
	}
	var lastErr error
	for _, broker := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
