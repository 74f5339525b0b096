package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannelPrefix is the Redis pub/sub channel root for comment events.
const DefaultChannelPrefix = "comments:events"

// Channel returns the Redis channel for kind under prefix, e.g. comments:events:new.
func Channel(prefix string, kind Kind) string {
	return prefix + ":" + kindSuffix(kind)
}

// RedisSource pattern-subscribes to <prefix>:* and dispatches each message
// payload for the kind named by the channel suffix.
type RedisSource struct {
	rdb    *redis.Client
	prefix string
	bus    *Bus
	log    *zap.Logger
}

func NewRedisSource(rdb *redis.Client, prefix string, bus *Bus, log *zap.Logger) *RedisSource {
	if log == nil {
		log = zap.NewNop()
	}
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisSource{rdb: rdb, prefix: prefix, bus: bus, log: log.Named("redis_source")}
}

// Run blocks until ctx is cancelled. go-redis resubscribes on reconnect; a
// closed message channel is reported as an error.
func (s *RedisSource) Run(ctx context.Context) error {
	pattern := s.prefix + ":*"
	ps := s.rdb.PSubscribe(ctx, pattern)
	defer func() { _ = ps.Close() }()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("psubscribe %s: %w", pattern, err)
	}
	s.log.Info("subscribed", zap.String("pattern", pattern))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			s.handle(msg.Channel, msg.Payload)
		}
	}
}

func (s *RedisSource) handle(channel, payload string) {
	suffix := strings.TrimPrefix(channel, s.prefix+":")
	kind, ok := subjectKinds[suffix]
	if !ok {
		s.log.Debug("ignoring channel", zap.String("channel", channel))
		return
	}
	_ = s.bus.Dispatch(string(kind), []byte(payload))
}
