// Package pubsub publishes outbox envelopes to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/cakestore-backend/pkg/config"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client keeps one ordered publisher per topic. Messages that share an ordering key are
// delivered in publish order.
type Client struct {
	client    *pubsub.Client
	projectID string
	topics    []string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects to Pub/Sub and fails unless every configured topic already exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	topics, err := configuredTopics(projectID, cfg)
	if err != nil {
		return nil, err
	}

	raw, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:     raw,
		projectID:  projectID,
		topics:     topics,
		publishers: make(map[string]*pubsub.Publisher),
	}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", topics), "pubsub client initialized")
	}
	return c, nil
}

// clientOptions prefers inline service account JSON. Without it the client uses application
// default credentials, or PUBSUB_EMULATOR_HOST when set.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	raw := strings.TrimSpace(gcp.CredentialsJSON)
	if raw == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
}

func configuredTopics(projectID string, cfg config.PubSubConfig) ([]string, error) {
	var topics []string
	for _, name := range []string{cfg.OrdersTopic} {
		if strings.TrimSpace(name) == "" {
			continue
		}
		full, err := TopicName(projectID, name)
		if err != nil {
			return nil, err
		}
		topics = append(topics, full)
	}
	if len(topics) == 0 {
		return nil, errNoTopics
	}
	return topics, nil
}

// TopicName expands a short topic id to projects/<project>/topics/<id>. Full resource names
// pass through unchanged.
func TopicName(projectID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errNoTopics
	}
	if strings.HasPrefix(name, "projects/") {
		if !strings.Contains(name, "/topics/") {
			return "", fmt.Errorf("malformed topic resource name %q", name)
		}
		return name, nil
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return "", errProjectIDRequired
	}
	return "projects/" + projectID + "/topics/" + name, nil
}

func (c *Client) publisher(topic string) (*pubsub.Publisher, error) {
	if c == nil || c.client == nil {
		return nil, errNotInitialized
	}
	full, err := TopicName(c.projectID, topic)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	pub, ok := c.publishers[full]
	if !ok {
		pub = c.client.Publisher(full)
		pub.EnableMessageOrdering = true
		c.publishers[full] = pub
	}
	return pub, nil
}

// Publish sends one message and waits for the server id. A failed publish pauses its
// ordering key inside the client, so the key is resumed before returning the error.
func (c *Client) Publish(ctx context.Context, topic, orderingKey string, data []byte, attributes map[string]string) (string, error) {
	pub, err := c.publisher(topic)
	if err != nil {
		return "", err
	}
	id, err := pub.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attributes,
		OrderingKey: orderingKey,
	}).Get(ctx)
	if err != nil {
		if orderingKey != "" {
			pub.ResumePublish(orderingKey)
		}
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	return id, nil
}

// Ping checks that every configured topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	for _, topic := range c.topics {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
		switch {
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("topic %q does not exist", topic)
		case err != nil:
			return fmt.Errorf("checking topic %q: %w", topic, err)
		}
	}
	return nil
}

// Close flushes pending messages and releases the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}
