package publisher

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand"
	"strconv"

	"sjsage522/webmonitor/logger"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher writes alert events to Redis streams. With streamCount > 1 the
// events are spread over <stream>:0 .. <stream>:N-1.
type RedisPublisher struct {
	client          *redis.Client
	ctx             context.Context
	stream          string
	streamCount     int
	streamMaxLength int
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(ctx context.Context, addr string, db int, stream string, streamCount int, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if streamCount < 1 {
		streamCount = 1
	}

	return &RedisPublisher{
		client:          client,
		ctx:             ctx,
		stream:          stream,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
	}
}

// Ping checks the connection
func (p *RedisPublisher) Ping() error {
	if err := p.client.Ping(p.ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Streams returns the names of all streams this publisher writes to
func (p *RedisPublisher) Streams() []string {
	if p.streamCount == 1 {
		return []string{p.stream}
	}
	streams := make([]string, p.streamCount)
	for i := range streams {
		streams[i] = p.stream + ":" + strconv.Itoa(i)
	}
	return streams
}

// Publish adds the base64 encoded message to one of the streams
func (p *RedisPublisher) Publish(key string, message []byte) error {
	streams := p.Streams()
	stream := streams[rand.Intn(len(streams))]

	err := p.client.XAdd(p.ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			key: base64.StdEncoding.EncodeToString(message),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}

	logger.ForPublisher().Debug().Str("stream", stream).Str("key", key).Msg("Alert published")
	return nil
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisPublisher) TrimStreams() error {
	if p.streamMaxLength <= 0 {
		return nil
	}

	for _, stream := range p.Streams() {
		if err := p.client.XTrimMaxLen(p.ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			return fmt.Errorf("trim %s: %w", stream, err)
		}
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
