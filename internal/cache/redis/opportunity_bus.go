package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgaray/polyarb/internal/domain"
)

// OpportunityBus publishes detected opportunities to a Redis Pub/Sub channel
// so external consumers (dashboards, recorders) can tail the live feed.
// Delivery is fire-and-forget: Redis keeps no backlog and a missed message is
// simply a missed message.
type OpportunityBus struct {
	client  *Client
	channel string
}

// NewOpportunityBus creates a bus publishing on the given channel.
func NewOpportunityBus(c *Client, channel string) *OpportunityBus {
	return &OpportunityBus{client: c, channel: channel}
}

// Publish serializes the opportunity as JSON and publishes it.
func (b *OpportunityBus) Publish(ctx context.Context, opp domain.Opportunity) error {
	payload, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("redis: marshal opportunity: %w", err)
	}
	if err := b.client.publish(ctx, b.channel, payload); err != nil {
		return fmt.Errorf("redis: publish %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe returns a read-only channel of opportunities published on the
// bus. The subscription closes when ctx is cancelled.
func (b *OpportunityBus) Subscribe(ctx context.Context) (<-chan domain.Opportunity, error) {
	pubsub := b.client.pubsub(ctx, b.channel)

	// Confirm the subscription before handing the channel out.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", b.channel, err)
	}

	out := make(chan domain.Opportunity, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var opp domain.Opportunity
				if err := json.Unmarshal([]byte(msg.Payload), &opp); err != nil {
					continue
				}
				select {
				case out <- opp:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
