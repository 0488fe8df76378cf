package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/cloudevents/sdk-go/v2/event"
)

// PubSubAdapter provides message publishing using Google Cloud Pub/Sub.
// The message data is the event's data payload; CloudEvent attributes
// travel as ce-* message attributes.
type PubSubAdapter struct {
	Client *pubsub.Client
}

func (a *PubSubAdapter) PublishCloudEvent(ctx context.Context, topicID string, e event.Event) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("invalid cloud event: %w", err)
	}
	topic := a.Client.Topic(topicID)
	res := topic.Publish(ctx, &pubsub.Message{Data: e.Data(), Attributes: attributes(e)})
	return res.Get(ctx)
}

func attributes(e event.Event) map[string]string {
	attrs := map[string]string{
		"ce-id":          e.ID(),
		"ce-type":        e.Type(),
		"ce-source":      e.Source(),
		"ce-specversion": e.SpecVersion(),
	}
	if ct := e.DataContentType(); ct != "" {
		attrs["content-type"] = ct
	}
	return attrs
}

// LogPublisher is a mock publisher for local development
type LogPublisher struct {
	Logger *slog.Logger
}

func (p *LogPublisher) PublishCloudEvent(ctx context.Context, topicID string, e event.Event) (string, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("MOCK PUBLISH", "topic", topicID, "type", e.Type(), "data", json.RawMessage(e.Data()))
	return "mock-msg-id", nil
}
