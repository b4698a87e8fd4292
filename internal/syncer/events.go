package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CycleStatus is the outcome of a cycle.
type CycleStatus string

const (
	CycleSucceeded CycleStatus = "success"
	CycleFailed    CycleStatus = "failed"
	CycleSkipped   CycleStatus = "skipped"
)

// Event describes a finished cycle.
type Event struct {
	Trigger    Trigger     `json:"trigger"`
	Status     CycleStatus `json:"status"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Pulled     int         `json:"pulled"`
	Pushed     int         `json:"pushed"`
	Error      string      `json:"error,omitempty"`
}

// Publisher fans cycle events out of the process.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// RedisPublisher publishes events as JSON on a redis channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher binds a client to a channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("syncer: encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("syncer: publish to %s: %w", p.channel, err)
	}
	return nil
}
