package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andreyxaxa/Photo-Pipeline/pkg/redisclient"
	"github.com/google/uuid"
)

// RedisNotifier publishes events to per-user pub/sub channels; the real-time
// gateway subscribed on the other side does the socket fan-out.
type RedisNotifier struct {
	*redisclient.RedisClient
	channelPrefix string
}

func NewRedisNotifier(rc *redisclient.RedisClient, channelPrefix string) *RedisNotifier {
	return &RedisNotifier{rc, channelPrefix}
}

type envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

func (n *RedisNotifier) Notify(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error {
	raw, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("RedisNotifier - Notify - json.Marshal: %w", err)
	}

	channel := fmt.Sprintf("%s:%s", n.channelPrefix, userID)

	err = n.Client.Publish(ctx, channel, raw).Err()
	if err != nil {
		return fmt.Errorf("RedisNotifier - Notify - n.Client.Publish: %w", err)
	}

	return nil
}
