package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	appLog "tripcal/internal/log"
)

// DefaultChannel is the Redis pub/sub channel for change notifications.
const DefaultChannel = "tripcal:events"

// RedisNotifier shares change notifications between tripcal processes that
// use the same database file.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	// origin tags our own messages so they are not delivered back to us.
	origin string
}

type changeMessage struct {
	Origin      string `json:"origin"`
	ItineraryID string `json:"itinerary_id"`
}

// NewRedisNotifier connects to the Redis server at url
// (e.g. "redis://localhost:6379/0").
func NewRedisNotifier(ctx context.Context, url string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: ping redis: %w", err)
	}
	return &RedisNotifier{client: client, channel: DefaultChannel, origin: uuid.NewString()}, nil
}

func (n *RedisNotifier) Publish(ctx context.Context, itineraryID string) error {
	payload, err := encodeChange(n.origin, itineraryID)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context, fn func(itineraryID string)) error {
	pubsub := n.client.Subscribe(ctx, n.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("store: subscribe %s: %w", n.channel, err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		appLog.Info("listening for remote changes", "channel", n.channel)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				id, ok := decodeChange(n.origin, msg.Payload)
				if !ok {
					continue
				}
				fn(id)
			}
		}
	}()
	return nil
}

// Close releases the Redis connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

func encodeChange(origin, itineraryID string) (string, error) {
	b, err := json.Marshal(changeMessage{Origin: origin, ItineraryID: itineraryID})
	if err != nil {
		return "", fmt.Errorf("store: encode change: %w", err)
	}
	return string(b), nil
}

// decodeChange returns the itinerary of a foreign change message. Our own
// messages and garbage are reported as !ok.
func decodeChange(self, payload string) (string, bool) {
	var m changeMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		appLog.Debug("ignoring malformed change message", "payload", payload)
		return "", false
	}
	if m.ItineraryID == "" || m.Origin == self {
		return "", false
	}
	return m.ItineraryID, true
}
