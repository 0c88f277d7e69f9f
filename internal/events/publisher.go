package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stream ledger events are appended to by default
const DefaultStream = "ledger-events"

const (
	MovementApplied    = "movement.applied"
	TransferCompleted  = "transfer.completed"
	FeeCharged         = "fee.charged"
	AccountDeactivated = "account.deactivated"
)

type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Publisher notifies other systems about committed ledger changes
// Events are published after commit, so publishing failure never affects the ledger
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// Publisher appending events to redis stream
type RedisPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	if stream == "" {
		stream = DefaultStream
	}

	return &RedisPublisher{client: client, stream: stream}
}

func (p *RedisPublisher) Publish(ctx context.Context, eventType string, data any) error {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":  eventType,
			"event": eventJSON,
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Publisher used when no broker configured
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error {
	return nil
}
