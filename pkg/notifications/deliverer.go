package notifications

import (
	"context"
	"encoding/json"

	"github.com/dmitrymomot/skillhub/pkg/pubsub"
)

// Deliverer pushes a stored notification to its recipient in real time.
type Deliverer interface {
	Deliver(ctx context.Context, notif Notification) error
}

// Publisher is satisfied by *pubsub.Bridge.
type Publisher interface {
	Publish(ctx context.Context, channel, payload string)
}

// PubSubDeliverer publishes the serialized notification on the recipient's
// notifications channel.
type PubSubDeliverer struct {
	publisher Publisher
}

// NewPubSubDeliverer creates a PubSubDeliverer.
func NewPubSubDeliverer(publisher Publisher) *PubSubDeliverer {
	return &PubSubDeliverer{publisher: publisher}
}

func (d *PubSubDeliverer) Deliver(ctx context.Context, notif Notification) error {
	data, err := json.Marshal(notif)
	if err != nil {
		return err
	}
	d.publisher.Publish(ctx, pubsub.NotificationsChannel(notif.UserID), string(data))
	return nil
}

// NoOpDeliverer stores nothing and delivers nothing.
type NoOpDeliverer struct{}

func (NoOpDeliverer) Deliver(context.Context, Notification) error { return nil }
