package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/xLillium/rip/internal/frame"
)

// RedisBroadcaster is the DOMAIN STACK supplement to the in-process
// broadcaster: it fans a session's frames out over Redis Pub/Sub so
// subscribers attached to a different ripd process than the one whose
// driver is producing frames still observe them, for deployments that
// run more than one ripd process sharing one event log directory on a
// network filesystem.
//
// Wraps a *redis.Client directly rather than behind an abstract
// message-bus interface, the way
// features/stream/pulse/clients/pulse/client.go and
// registry/service.go use go-redis.
type RedisBroadcaster struct {
	client *redis.Client
}

// NewRedisBroadcaster wraps an existing Redis connection. client must
// not be nil.
func NewRedisBroadcaster(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

func redisChannelName(sessionID string) string {
	return fmt.Sprintf("rip:session:%s", sessionID)
}

// Publish serializes fr and publishes it on sessionID's channel.
func (r *RedisBroadcaster) Publish(ctx context.Context, sessionID string, fr frame.Frame) error {
	data, err := json.Marshal(fr)
	if err != nil {
		return fmt.Errorf("redis broadcaster: marshal frame: %w", err)
	}
	return r.client.Publish(ctx, redisChannelName(sessionID), data).Err()
}

// Subscribe returns a channel of frames published for sessionID and a
// close function that releases the underlying Redis subscription. The
// returned channel closes once the subscription is closed or the
// context given to Subscribe is canceled.
func (r *RedisBroadcaster) Subscribe(ctx context.Context, sessionID string) (<-chan frame.Frame, func() error) {
	pubsub := r.client.Subscribe(ctx, redisChannelName(sessionID))
	out := make(chan frame.Frame, BroadcastCapacity)

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var fr frame.Frame
				if err := json.Unmarshal([]byte(msg.Payload), &fr); err != nil {
					continue
				}
				out <- fr
			}
		}
	}()

	return out, pubsub.Close
}
