package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/veilpost/veilpost-backend/pkg/config"
	"github.com/veilpost/veilpost-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub events topic is required")
)

// PubSub publishes events to a Google Cloud Pub/Sub topic.
type PubSub struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	projectID string
	topic     string
	logger    *logger.Logger
}

// NewPubSub creates a Pub/Sub v2 client and verifies the events topic exists.
func NewPubSub(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*PubSub, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.EventsTopic) == "" {
		return nil, errTopicRequired
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	p := &PubSub{
		client:    psClient,
		projectID: gcp.ProjectID,
		topic:     cfg.EventsTopic,
		logger:    logg,
	}

	if err := p.ensureTopicExists(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	p.publisher = psClient.Publisher(p.topicResourceName())

	if logg != nil {
		logg.Info(ctx, "pubsub broadcaster initialized")
	}

	return p, nil
}

// Publish sends the event and waits for the server acknowledgement.
func (p *PubSub) Publish(ctx context.Context, event Event) error {
	if p == nil || p.publisher == nil {
		return errors.New("broadcaster not initialized")
	}

	data, err := event.marshal()
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"event_type": event.Type},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing %s: %w", event.Type, err)
	}

	if p.logger != nil {
		ctx = p.logger.WithFields(ctx, map[string]any{
			"event_type": event.Type,
			"message_id": id,
		})
		p.logger.Info(ctx, "published event")
	}
	return nil
}

// Ping verifies Pub/Sub connectivity by checking the events topic exists.
func (p *PubSub) Ping(ctx context.Context) error {
	if p == nil {
		return errors.New("broadcaster not initialized")
	}
	return p.ensureTopicExists(ctx)
}

// Close releases the Pub/Sub client resources.
func (p *PubSub) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *PubSub) ensureTopicExists(ctx context.Context) error {
	fullName := p.topicResourceName()
	_, err := p.client.TopicAdminClient.GetTopic(
		ctx,
		&pubsubpb.GetTopicRequest{Topic: fullName},
	)
	if err != nil {
		// v2 uses gRPC errors; NotFound means the topic doesn't exist.
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("topic %q does not exist", p.topic)
		}
		return fmt.Errorf("checking topic %q: %w", p.topic, err)
	}
	return nil
}

func (p *PubSub) topicResourceName() string {
	n := strings.TrimSpace(p.topic)
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	return fmt.Sprintf("projects/%s/topics/%s", p.projectID, n)
}
