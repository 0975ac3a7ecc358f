// Package gcppubsub forwards ledger events to a Google Cloud Pub/Sub topic.
package gcppubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"

	"stockledger/internal/domain"
)

// Topic is the subset of *pubsub.Topic the forwarder uses.
type Topic interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// Forwarder publishes each ledger event as a JSON message.
type Forwarder struct {
	topic   Topic
	timeout time.Duration
	logger  logrus.FieldLogger
}

// NewForwarder creates a Forwarder for topic.
func NewForwarder(topic Topic, logger logrus.FieldLogger) *Forwarder {
	return &Forwarder{
		topic:   topic,
		timeout: 10 * time.Second,
		logger:  logger.WithField("component", "event.gcppubsub"),
	}
}

// OpenTopic returns the named topic, creating it
// when it does not exist yet.
func OpenTopic(ctx context.Context, client *pubsub.Client, name string) (*pubsub.Topic, error) {
	t := client.Topic(name)
	ok, err := t.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking topic %q: %w", name, err)
	}
	if ok {
		return t, nil
	}
	t, err = client.CreateTopic(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("creating topic %q: %w", name, err)
	}
	return t, nil
}

// Forward publishes ev and waits for the server to acknowledge it.
func (f *Forwarder) Forward(ctx context.Context, ev domain.LedgerEvent) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("gcppubsub.Forward marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	defer cancel()

	res := f.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type": string(ev.Type),
			"kind": string(ev.Kind),
		},
	})
	id, err := res.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("gcppubsub.Forward publish: %w", err)
	}
	return id, nil
}

// Handle adapts Forward to an event.Handler; failures are logged.
func (f *Forwarder) Handle(ctx context.Context, ev domain.LedgerEvent) {
	id, err := f.Forward(ctx, ev)
	if err != nil {
		f.logger.WithError(err).WithField("event", ev.Type).Error("forwarding ledger event failed")
		return
	}
	f.logger.WithFields(logrus.Fields{"event": ev.Type, "message_id": id}).Debug("ledger event forwarded")
}
