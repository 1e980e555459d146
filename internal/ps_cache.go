package internal

import (
	"context"
	"encoding/json"
	"time"

	"khoomi-api-io/catalog/pkg/util"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var CHANNEL_GLOBAL_CACHE = "GLOBAL_CACHE"

type CacheMessage struct {
	Type      string `json:"type"`
	Payload   string `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// RedisCachePublisher broadcasts cache invalidation messages over Redis pub/sub.
type RedisCachePublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisCachePublisher(client *redis.Client, channel string) *RedisCachePublisher {
	if channel == "" {
		channel = CHANNEL_GLOBAL_CACHE
	}
	return &RedisCachePublisher{client: client, channel: channel}
}

// Publish publishes a cache invalidation message to Redis pub/sub as JSON
func (p *RedisCachePublisher) Publish(ctx context.Context, messageType string, payload string) error {
	messageJSON, err := json.Marshal(CacheMessage{
		Type:      messageType,
		Payload:   payload,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return errors.Wrap(err, "marshal cache message")
	}

	if err := p.client.Publish(ctx, p.channel, string(messageJSON)).Err(); err != nil {
		return errors.Wrap(err, "publish cache message")
	}

	util.Logger.Debug("published cache message", zap.ByteString("message", messageJSON))
	return nil
}

// Subscribe delivers decoded messages to handle until ctx is cancelled.
func (p *RedisCachePublisher) Subscribe(ctx context.Context, handle func(CacheMessage)) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m CacheMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				util.LogWarning("dropping malformed cache message", zap.Error(err))
				continue
			}
			handle(m)
		}
	}
}
